package scan

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/api"
	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/notify"
	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/photo"
	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/session"
)

var errNoFrame = errors.New("no frame ready")

type fakeStream struct {
	mu     sync.Mutex
	frames chan Frame
	closed bool
}

func newFakeStream() *fakeStream {
	return &fakeStream{frames: make(chan Frame, 16)}
}

func (s *fakeStream) push(payload string) {
	s.frames <- Frame{Pixels: []byte(payload)}
}

func (s *fakeStream) ReadFrame() (Frame, error) {
	select {
	case f := <-s.frames:
		return f, nil
	default:
		return Frame{}, errNoFrame
	}
}

func (s *fakeStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStream) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeCamera struct {
	stream *fakeStream
	err    error
}

func (c *fakeCamera) Open(context.Context, Constraints) (Stream, error) {
	if c.err != nil {
		return nil, c.err
	}
	return c.stream, nil
}

// payloadDecoder reads the frame bytes straight back as the payload.
type payloadDecoder struct{}

func (payloadDecoder) Decode(f Frame) (string, error) {
	return string(f.Pixels), nil
}

type markCall struct {
	qrData    string
	studentID int64
	photo     string
}

type fakeGateway struct {
	mu    sync.Mutex
	calls []markCall
	resp  *api.MarkResponse
	err   error
	block chan struct{}
}

func (g *fakeGateway) MarkAttendance(_ context.Context, qrData string, studentID int64, photoURI string) (*api.MarkResponse, error) {
	g.mu.Lock()
	g.calls = append(g.calls, markCall{qrData: qrData, studentID: studentID, photo: photoURI})
	block := g.block
	g.mu.Unlock()

	if block != nil {
		<-block
	}
	if g.err != nil {
		return nil, g.err
	}
	return g.resp, nil
}

func (g *fakeGateway) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}

type staticProvider struct {
	id *session.Identity
}

func (p staticProvider) Current() (*session.Identity, error) {
	return p.id, nil
}

func student() staticProvider {
	return staticProvider{id: &session.Identity{ID: 7, Username: "student1", UserType: "student"}}
}

func testPhoto(t *testing.T) *photo.Photo {
	t.Helper()
	p, err := photo.FromBytes([]byte("\x89PNG\r\n\x1a\nfake image body"))
	if err != nil {
		t.Fatalf("FromBytes() failed: %v", err)
	}
	return p
}

func waitState(t *testing.T, wf *Workflow, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for wf.State() != want {
		if time.Now().After(deadline) {
			t.Fatalf("state = %v, want %v", wf.State(), want)
		}
		time.Sleep(time.Millisecond)
	}
}

func newTestWorkflow(cam Camera, gw Gateway, ids session.Provider) (*Workflow, *notify.Recorder) {
	rec := &notify.Recorder{}
	wf := New(cam, payloadDecoder{}, gw, ids, rec)
	wf.SampleInterval = time.Millisecond
	return wf, rec
}

func TestScanDetectsAndReleasesCamera(t *testing.T) {
	stream := newFakeStream()
	gw := &fakeGateway{resp: &api.MarkResponse{Success: true, Message: "Marked"}}
	wf, _ := newTestWorkflow(&fakeCamera{stream: stream}, gw, student())

	if err := wf.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	if wf.State() != Scanning {
		t.Fatalf("state = %v, want Scanning", wf.State())
	}

	stream.push("ATTEND|1|Algebra101|2024-01-01T10:00:00Z|tok-abc")
	waitState(t, wf, Detected)

	if !stream.isClosed() {
		t.Fatal("camera stream not released on detection")
	}
	if got := wf.LastPayload(); got != "ATTEND|1|Algebra101|2024-01-01T10:00:00Z|tok-abc" {
		t.Fatalf("LastPayload() = %q", got)
	}
}

func TestDetectionDedupesRepeatedPayload(t *testing.T) {
	stream := newFakeStream()
	wf, rec := newTestWorkflow(&fakeCamera{stream: stream}, &fakeGateway{}, student())

	// Seed the last recognized value, then rescan with the same code still
	// in frame. Only a different payload may fire again.
	if err := wf.InjectPayload("ATTEND|1|A|t|tok-1"); err != nil {
		t.Fatalf("InjectPayload() failed: %v", err)
	}
	if err := wf.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}

	stream.push("ATTEND|1|A|t|tok-1")
	stream.push("ATTEND|1|A|t|tok-1")
	stream.push("ATTEND|2|B|t|tok-2")
	waitState(t, wf, Detected)

	if got := wf.LastPayload(); got != "ATTEND|2|B|t|tok-2" {
		t.Fatalf("LastPayload() = %q, want the second distinct payload", got)
	}

	detections := 0
	for _, e := range rec.Entries() {
		if e.Level == notify.Success && e.Message == "QR detected. Capture a photo to continue." {
			detections++
		}
	}
	if detections != 2 {
		t.Fatalf("detections = %d, want 2 (one per distinct payload)", detections)
	}
}

func TestInjectSamePayloadIsNoOp(t *testing.T) {
	wf, rec := newTestWorkflow(&fakeCamera{stream: newFakeStream()}, &fakeGateway{}, student())

	if err := wf.InjectPayload("tok-1"); err != nil {
		t.Fatalf("InjectPayload() failed: %v", err)
	}
	before := len(rec.Entries())
	if err := wf.InjectPayload("tok-1"); err != nil {
		t.Fatalf("repeat InjectPayload() failed: %v", err)
	}
	if len(rec.Entries()) != before {
		t.Fatal("repeat payload produced a second detection")
	}
}

func TestStopIsIdempotent(t *testing.T) {
	stream := newFakeStream()
	wf, _ := newTestWorkflow(&fakeCamera{stream: stream}, &fakeGateway{}, student())

	// Never started.
	wf.Stop()
	wf.Stop()
	if wf.State() != Idle {
		t.Fatalf("state = %v, want Idle", wf.State())
	}

	// Started, then stopped twice.
	if err := wf.Start(context.Background()); err != nil {
		t.Fatalf("Start() failed: %v", err)
	}
	wf.Stop()
	wf.Stop()
	if wf.State() != Idle {
		t.Fatalf("state = %v, want Idle", wf.State())
	}
	if !stream.isClosed() {
		t.Fatal("stream not closed by Stop")
	}
}

func TestSubmitIsSingleFlight(t *testing.T) {
	gw := &fakeGateway{
		resp:  &api.MarkResponse{Success: true, Message: "Marked"},
		block: make(chan struct{}),
	}
	wf, _ := newTestWorkflow(&fakeCamera{stream: newFakeStream()}, gw, student())

	if err := wf.InjectPayload("tok-1"); err != nil {
		t.Fatalf("InjectPayload() failed: %v", err)
	}
	if err := wf.AttachPhoto(testPhoto(t)); err != nil {
		t.Fatalf("AttachPhoto() failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := wf.Submit(context.Background())
		done <- err
	}()

	deadline := time.Now().Add(2 * time.Second)
	for gw.callCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("first submission never reached the gateway")
		}
		time.Sleep(time.Millisecond)
	}

	if _, err := wf.Submit(context.Background()); !errors.Is(err, ErrSubmitInFlight) {
		t.Fatalf("second Submit() err = %v, want ErrSubmitInFlight", err)
	}

	close(gw.block)
	if err := <-done; err != nil {
		t.Fatalf("first Submit() failed: %v", err)
	}
	if gw.callCount() != 1 {
		t.Fatalf("gateway calls = %d, want 1", gw.callCount())
	}
}

func TestSubmitSuccessResetsState(t *testing.T) {
	gw := &fakeGateway{resp: &api.MarkResponse{Success: true, Message: "Marked"}}
	wf, rec := newTestWorkflow(&fakeCamera{stream: newFakeStream()}, gw, student())

	if err := wf.InjectPayload("ATTEND|1|Algebra101|2024-01-01T10:00:00Z|tok-abc"); err != nil {
		t.Fatalf("InjectPayload() failed: %v", err)
	}
	if err := wf.AttachPhoto(testPhoto(t)); err != nil {
		t.Fatalf("AttachPhoto() failed: %v", err)
	}
	if _, err := wf.Submit(context.Background()); err != nil {
		t.Fatalf("Submit() failed: %v", err)
	}

	if wf.State() != Idle {
		t.Fatalf("state = %v, want Idle after success", wf.State())
	}
	if wf.LastPayload() != "" || wf.HasPhoto() {
		t.Fatal("transient state not cleared after success")
	}

	entries := rec.Entries()
	last := entries[len(entries)-1]
	if last.Level != notify.Success || last.Message != "Marked" {
		t.Fatalf("final notification = %+v, want success %q", last, "Marked")
	}
}

func TestSubmitRejectionRetainsStateForRetry(t *testing.T) {
	gw := &fakeGateway{resp: &api.MarkResponse{Success: false, Message: "Already marked"}}
	wf, rec := newTestWorkflow(&fakeCamera{stream: newFakeStream()}, gw, student())

	if err := wf.InjectPayload("tok-1"); err != nil {
		t.Fatalf("InjectPayload() failed: %v", err)
	}
	if err := wf.AttachPhoto(testPhoto(t)); err != nil {
		t.Fatalf("AttachPhoto() failed: %v", err)
	}

	_, err := wf.Submit(context.Background())
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("Submit() err = %v, want ErrRejected", err)
	}
	if wf.State() != Detected {
		t.Fatalf("state = %v, want Detected after rejection", wf.State())
	}
	if wf.LastPayload() != "tok-1" || !wf.HasPhoto() {
		t.Fatal("payload or photo lost after rejection")
	}

	found := false
	for _, e := range rec.Entries() {
		if e.Level == notify.Danger && e.Message == "Already marked" {
			found = true
		}
	}
	if !found {
		t.Fatal("server message not surfaced verbatim")
	}

	// Retry succeeds without rescanning or recapturing.
	gw.resp = &api.MarkResponse{Success: true, Message: "Marked"}
	if _, err := wf.Submit(context.Background()); err != nil {
		t.Fatalf("retry Submit() failed: %v", err)
	}
	if gw.callCount() != 2 {
		t.Fatalf("gateway calls = %d, want 2", gw.callCount())
	}
}

func TestSubmitTransportFailureRetainsState(t *testing.T) {
	gw := &fakeGateway{err: errors.New("connection refused")}
	wf, _ := newTestWorkflow(&fakeCamera{stream: newFakeStream()}, gw, student())

	if err := wf.InjectPayload("tok-1"); err != nil {
		t.Fatalf("InjectPayload() failed: %v", err)
	}
	if err := wf.AttachPhoto(testPhoto(t)); err != nil {
		t.Fatalf("AttachPhoto() failed: %v", err)
	}

	if _, err := wf.Submit(context.Background()); err == nil {
		t.Fatal("Submit() succeeded despite transport failure")
	}
	if wf.State() != Detected || wf.LastPayload() != "tok-1" || !wf.HasPhoto() {
		t.Fatal("state not preserved after transport failure")
	}
}

func TestCameraDeniedFallsBackToInjectedPayload(t *testing.T) {
	cam := &fakeCamera{err: errors.New("permission denied")}
	wf, rec := newTestWorkflow(cam, &fakeGateway{}, student())

	if err := wf.Start(context.Background()); err == nil {
		t.Fatal("Start() succeeded despite camera denial")
	}
	if wf.State() != Idle {
		t.Fatalf("state = %v, want Idle after camera denial", wf.State())
	}

	warned := false
	for _, e := range rec.Entries() {
		if e.Level == notify.Danger {
			warned = true
		}
	}
	if !warned {
		t.Fatal("camera denial produced no notification")
	}

	if err := wf.InjectPayload("ATTEND|1|Test Lecture|t|tok-test"); err != nil {
		t.Fatalf("InjectPayload() failed: %v", err)
	}
	if wf.State() != Detected {
		t.Fatalf("state = %v, want Detected via test payload", wf.State())
	}
}

func TestSubmitPreconditions(t *testing.T) {
	t.Run("no identity", func(t *testing.T) {
		gw := &fakeGateway{}
		wf, _ := newTestWorkflow(&fakeCamera{stream: newFakeStream()}, gw, staticProvider{})
		if err := wf.InjectPayload("tok-1"); err != nil {
			t.Fatalf("InjectPayload() failed: %v", err)
		}
		if _, err := wf.Submit(context.Background()); !errors.Is(err, ErrNoIdentity) {
			t.Fatalf("Submit() err = %v, want ErrNoIdentity", err)
		}
		if gw.callCount() != 0 {
			t.Fatal("precondition failure reached the backend")
		}
	})

	t.Run("no photo", func(t *testing.T) {
		gw := &fakeGateway{}
		wf, _ := newTestWorkflow(&fakeCamera{stream: newFakeStream()}, gw, student())
		if err := wf.InjectPayload("tok-1"); err != nil {
			t.Fatalf("InjectPayload() failed: %v", err)
		}
		if _, err := wf.Submit(context.Background()); !errors.Is(err, ErrNotReady) {
			t.Fatalf("Submit() err = %v, want ErrNotReady", err)
		}
		if gw.callCount() != 0 {
			t.Fatal("precondition failure reached the backend")
		}
	})

	t.Run("photo before detection", func(t *testing.T) {
		wf, _ := newTestWorkflow(&fakeCamera{stream: newFakeStream()}, &fakeGateway{}, student())
		if err := wf.AttachPhoto(testPhoto(t)); !errors.Is(err, ErrNoPayload) {
			t.Fatalf("AttachPhoto() err = %v, want ErrNoPayload", err)
		}
	})
}
