// Package photo handles the selfie captured during attendance marking: format
// sniffing, size bounds, and the data-URI encoding the backend expects.
package photo

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
)

// MaxBytes bounds the raw image size accepted for submission.
const MaxBytes = 5 << 20

var (
	// ErrEmpty reports a zero-length image.
	ErrEmpty = errors.New("photo: empty image")
	// ErrTooLarge reports an image over MaxBytes.
	ErrTooLarge = errors.New("photo: image too large")
	// ErrUnsupportedFormat reports an image that is not JPEG, PNG, GIF or WebP.
	ErrUnsupportedFormat = errors.New("photo: unsupported image format")
)

var allowedTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// Photo is an in-memory captured image. It lives only for the duration of a
// single submission attempt.
type Photo struct {
	ContentType string
	Data        []byte
}

// FromBytes validates raw image bytes. The format is sniffed from content,
// never from a file extension.
func FromBytes(data []byte) (*Photo, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	if len(data) > MaxBytes {
		return nil, fmt.Errorf("%w: %d bytes (limit %d)", ErrTooLarge, len(data), MaxBytes)
	}
	ct := http.DetectContentType(data)
	if !allowedTypes[ct] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, ct)
	}
	return &Photo{ContentType: ct, Data: data}, nil
}

// FromFile reads and validates an image file.
func FromFile(path string) (*Photo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("photo: read %s: %w", path, err)
	}
	return FromBytes(data)
}

// DataURI encodes the image for JSON transport.
func (p *Photo) DataURI() string {
	return "data:" + p.ContentType + ";base64," + base64.StdEncoding.EncodeToString(p.Data)
}

// DecodeDataURI reverses DataURI. Raw base64 without a data: prefix is also
// accepted, matching what the backend tolerates.
func DecodeDataURI(uri string) (*Photo, error) {
	payload := uri
	if idx := strings.IndexByte(uri, ','); idx >= 0 {
		payload = uri[idx+1:]
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("photo: decode data uri: %w", err)
	}
	return FromBytes(data)
}
