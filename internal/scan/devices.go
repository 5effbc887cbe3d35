package scan

import (
	"bufio"
	"context"
	"io"
	"strings"
	"sync"
)

// ReaderCamera adapts a line-oriented reader into a camera: each line read is
// one frame whose pixels carry the raw bytes. This is how a tethered barcode
// scanner or a piped payload feed appears to a terminal client.
type ReaderCamera struct {
	R io.Reader
}

// Open returns a stream over the reader. Constraints are advisory here; a
// text feed has no resolution to negotiate.
func (c *ReaderCamera) Open(_ context.Context, _ Constraints) (Stream, error) {
	return &readerStream{sc: bufio.NewScanner(c.R)}, nil
}

type readerStream struct {
	mu     sync.Mutex
	sc     *bufio.Scanner
	closed bool
}

func (s *readerStream) ReadFrame() (Frame, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return Frame{}, io.EOF
	}
	sc := s.sc
	s.mu.Unlock()

	if !sc.Scan() {
		if err := sc.Err(); err != nil {
			return Frame{}, err
		}
		return Frame{}, io.EOF
	}
	line := append([]byte(nil), sc.Bytes()...)
	return Frame{Pixels: line}, nil
}

func (s *readerStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// TextDecoder treats frame pixels as an already-decoded payload. It pairs
// with ReaderCamera, where the host capability delivers decoded text rather
// than image data.
type TextDecoder struct{}

// Decode returns the frame content with surrounding whitespace removed.
func (TextDecoder) Decode(f Frame) (string, error) {
	return strings.TrimSpace(string(f.Pixels)), nil
}
