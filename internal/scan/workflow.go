// Package scan implements the student-side attendance workflow: camera
// lifecycle, frame sampling, QR detection, photo capture and submission.
package scan

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/api"
	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/notify"
	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/photo"
	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/session"
)

// State identifies where the workflow is in the scan-to-submission sequence.
type State int

const (
	Idle State = iota
	Scanning
	Detected
	PhotoCaptured
	Submitting
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Scanning:
		return "scanning"
	case Detected:
		return "detected"
	case PhotoCaptured:
		return "photo-captured"
	case Submitting:
		return "submitting"
	}
	return "unknown"
}

// Frame is one sampled video frame handed to the decoder.
type Frame struct {
	Width  int
	Height int
	Pixels []byte
}

// Stream is an open camera stream. ReadFrame returns the next frame; Close
// releases the device and is safe to call more than once.
type Stream interface {
	ReadFrame() (Frame, error)
	Close() error
}

// Constraints describe the stream the workflow wants to acquire.
type Constraints struct {
	FacingMode string
	Width      int
	Height     int
}

// DefaultConstraints matches the capture settings used for QR scanning.
var DefaultConstraints = Constraints{FacingMode: "environment", Width: 1280, Height: 720}

// Camera acquires an exclusive video stream.
type Camera interface {
	Open(ctx context.Context, c Constraints) (Stream, error)
}

// Decoder extracts a QR payload from a frame. Frames without a decodable
// code return an error or an empty payload; both are ignored.
type Decoder interface {
	Decode(f Frame) (string, error)
}

// Gateway is the slice of the backend API the workflow needs.
type Gateway interface {
	MarkAttendance(ctx context.Context, qrData string, studentID int64, photo string) (*api.MarkResponse, error)
}

// Haptic emits a physical acknowledgment on detection, when available.
type Haptic interface {
	Pulse()
}

var (
	// ErrScanning reports a start request while a scan is already running.
	ErrScanning = errors.New("scan already running")
	// ErrSubmitInFlight reports a second action while a submission is pending.
	ErrSubmitInFlight = errors.New("submission in flight")
	// ErrNoIdentity reports a submission attempt without a logged-in user.
	ErrNoIdentity = errors.New("not logged in")
	// ErrNotReady reports a submission attempt with no payload or photo.
	ErrNotReady = errors.New("photo or QR payload missing")
	// ErrNoPayload reports a photo attach before any QR was detected.
	ErrNoPayload = errors.New("no QR payload detected")
	// ErrRejected reports a success:false answer from the backend.
	ErrRejected = errors.New("attendance rejected")
	// ErrEmptyPayload reports an injected payload with no content.
	ErrEmptyPayload = errors.New("empty payload")
)

// Workflow drives one student's attendance capture. All transitions are
// serialized; frame handling, injection, and submission never overlap.
type Workflow struct {
	// SampleInterval is the frame sampling cadence. Set before Start.
	SampleInterval time.Duration
	// Haptic is optional.
	Haptic Haptic

	camera   Camera
	decoder  Decoder
	gateway  Gateway
	sessions session.Provider
	alerts   notify.Notifier

	mu          sync.Mutex
	state       State
	scanSeq     string
	stream      Stream
	stopCh      chan struct{}
	lastPayload string
	captured    *photo.Photo
	submitting  bool
}

// New creates a workflow in the Idle state.
func New(camera Camera, decoder Decoder, gateway Gateway, sessions session.Provider, alerts notify.Notifier) *Workflow {
	return &Workflow{
		SampleInterval: 100 * time.Millisecond,
		camera:         camera,
		decoder:        decoder,
		gateway:        gateway,
		sessions:       sessions,
		alerts:         alerts,
		state:          Idle,
	}
}

// Start acquires the camera and begins sampling frames. On camera failure the
// workflow stays where it was and the caller is told to use the test payload
// path instead.
func (w *Workflow) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	switch w.state {
	case Scanning:
		return ErrScanning
	case Submitting:
		return ErrSubmitInFlight
	}

	stream, err := w.camera.Open(ctx, DefaultConstraints)
	if err != nil {
		w.alerts.Notify(notify.Danger, "Camera access denied. Use the test payload instead.")
		return fmt.Errorf("open camera: %w", err)
	}

	w.stream = stream
	w.state = Scanning
	w.scanSeq = uuid.NewString()
	w.stopCh = make(chan struct{})
	go w.loop(ctx, stream, w.stopCh, w.scanSeq, w.SampleInterval)

	w.alerts.Notify(notify.Success, "Camera started. Point at the QR code.")
	return nil
}

// loop samples frames at a fixed cadence until stopped. Frames are processed
// strictly in timer order; a detection halts further sampling.
func (w *Workflow) loop(ctx context.Context, stream Stream, stop <-chan struct{}, seq string, every time.Duration) {
	if every <= 0 {
		every = 100 * time.Millisecond
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ctx.Done():
			w.Stop()
			return
		case <-ticker.C:
			frame, err := stream.ReadFrame()
			if err != nil {
				continue
			}
			payload, err := w.decoder.Decode(frame)
			if err != nil || payload == "" {
				continue
			}
			w.handleDetection(seq, payload)
		}
	}
}

// handleDetection applies a decoded payload. Payloads matching the last
// recognized value are ignored so a code sitting in frame fires only once.
func (w *Workflow) handleDetection(seq, payload string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != Scanning || w.scanSeq != seq {
		return
	}
	if payload == w.lastPayload {
		return
	}

	w.lastPayload = payload
	w.releaseLocked()
	w.state = Detected
	if w.Haptic != nil {
		w.Haptic.Pulse()
	}
	w.alerts.Notify(notify.Success, "QR detected. Capture a photo to continue.")
}

// InjectPayload feeds a payload directly into the workflow, substituting for
// a camera detection in environments without camera access.
func (w *Workflow) InjectPayload(payload string) error {
	if payload == "" {
		return ErrEmptyPayload
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state == Submitting {
		return ErrSubmitInFlight
	}
	if payload == w.lastPayload {
		return nil
	}

	w.lastPayload = payload
	w.releaseLocked()
	w.state = Detected
	if w.Haptic != nil {
		w.Haptic.Pulse()
	}
	w.alerts.Notify(notify.Success, "QR detected. Capture a photo to continue.")
	return nil
}

// AttachPhoto stores the captured selfie for the pending payload.
func (w *Workflow) AttachPhoto(p *photo.Photo) error {
	if p == nil || len(p.Data) == 0 {
		return photo.ErrEmpty
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.state != Detected && w.state != PhotoCaptured {
		w.alerts.Notify(notify.Danger, "No QR data available. Scan a code first.")
		return ErrNoPayload
	}

	w.captured = p
	w.state = PhotoCaptured
	w.alerts.Notify(notify.Success, "Photo captured. Confirm to mark attendance.")
	return nil
}

// Submit sends the pending payload and photo to the backend. Submission is
// single-flight: a second call before the first resolves is rejected without
// touching the network. On success all transient state resets; on failure
// payload and photo are retained so the user can retry without rescanning.
func (w *Workflow) Submit(ctx context.Context) (*api.MarkResponse, error) {
	w.mu.Lock()
	if w.submitting {
		w.mu.Unlock()
		return nil, ErrSubmitInFlight
	}

	id, err := w.sessions.Current()
	if err != nil || id == nil {
		w.mu.Unlock()
		w.alerts.Notify(notify.Danger, "Not logged in.")
		return nil, ErrNoIdentity
	}
	if w.lastPayload == "" || w.captured == nil {
		w.mu.Unlock()
		w.alerts.Notify(notify.Danger, "Photo or QR payload missing.")
		return nil, ErrNotReady
	}

	payload := w.lastPayload
	uri := w.captured.DataURI()
	w.submitting = true
	w.state = Submitting
	w.mu.Unlock()

	resp, callErr := w.gateway.MarkAttendance(ctx, payload, id.ID, uri)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.submitting = false

	if callErr != nil {
		w.state = Detected
		return nil, callErr
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "Failed to mark attendance"
		}
		w.alerts.Notify(notify.Danger, msg)
		w.state = Detected
		return resp, fmt.Errorf("%w: %s", ErrRejected, msg)
	}

	w.alerts.Notify(notify.Success, resp.Message)
	w.lastPayload = ""
	w.captured = nil
	w.state = Idle
	return resp, nil
}

// Stop cancels sampling and releases the camera. It is idempotent and safe
// from any state, including when scanning never started.
func (w *Workflow) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.releaseLocked()
	if w.state == Scanning {
		w.state = Idle
	}
}

// releaseLocked tears down the sampling timer and the camera stream together.
func (w *Workflow) releaseLocked() {
	if w.stopCh != nil {
		close(w.stopCh)
		w.stopCh = nil
	}
	if w.stream != nil {
		_ = w.stream.Close()
		w.stream = nil
	}
}

// State returns the current workflow state.
func (w *Workflow) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// LastPayload returns the pending QR payload, if any.
func (w *Workflow) LastPayload() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastPayload
}

// HasPhoto reports whether a photo is attached.
func (w *Workflow) HasPhoto() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.captured != nil
}
