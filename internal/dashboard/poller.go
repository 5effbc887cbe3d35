// Package dashboard renders the faculty-side views: the session list and the
// attendance table for a selected session, refreshed by polling.
package dashboard

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/api"
)

// Gateway is the slice of the backend API the dashboard needs.
type Gateway interface {
	MySessions(ctx context.Context, facultyID int64) (*api.SessionsResponse, error)
	Attendance(ctx context.Context, sessionID int64) (*api.AttendanceResponse, error)
}

// Visibility reports whether the view is currently visible. Hidden views are
// not refreshed.
type Visibility interface {
	Visible() bool
}

// VisibleFunc adapts a function to the Visibility interface.
type VisibleFunc func() bool

// Visible calls the function.
func (f VisibleFunc) Visible() bool { return f() }

// Always is a Visibility that never hides the view.
var Always = VisibleFunc(func() bool { return true })

// Poller periodically re-fetches and re-renders the faculty views. Refreshes
// for the same selection never overlap.
type Poller struct {
	// Interval is the refresh period.
	Interval time.Duration

	gw        Gateway
	facultyID int64
	vis       Visibility
	out       io.Writer

	mu       sync.Mutex
	selected int64
	inflight bool
	sessions []api.Session
	records  []api.Record
}

// NewPoller creates a poller for one faculty user writing to out.
func NewPoller(gw Gateway, facultyID int64, vis Visibility, out io.Writer) *Poller {
	if vis == nil {
		vis = Always
	}
	return &Poller{
		Interval:  5 * time.Second,
		gw:        gw,
		facultyID: facultyID,
		vis:       vis,
		out:       out,
	}
}

// Select chooses the session whose attendance table is rendered.
func (p *Poller) Select(sessionID int64) {
	p.mu.Lock()
	p.selected = sessionID
	p.mu.Unlock()
}

// Selected returns the currently selected session id, zero when none.
func (p *Poller) Selected() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.selected
}

// Sessions returns the last fetched session list.
func (p *Poller) Sessions() []api.Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]api.Session, len(p.sessions))
	copy(out, p.sessions)
	return out
}

// Records returns the last fetched attendance rows for the selection.
func (p *Poller) Records() []api.Record {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]api.Record, len(p.records))
	copy(out, p.records)
	return out
}

// Run refreshes on every tick while visible, until the context ends.
func (p *Poller) Run(ctx context.Context) error {
	ticker := time.NewTicker(p.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if !p.vis.Visible() {
				continue
			}
			p.Refresh(ctx)
		}
	}
}

// Refresh re-fetches the session list and, for the selected session, the
// attendance table, then re-renders both. A refresh already in flight makes
// this call a no-op.
func (p *Poller) Refresh(ctx context.Context) {
	p.mu.Lock()
	if p.inflight {
		p.mu.Unlock()
		return
	}
	p.inflight = true
	selected := p.selected
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.inflight = false
		p.mu.Unlock()
	}()

	resp, err := p.gw.MySessions(ctx, p.facultyID)
	if err != nil || !resp.Success {
		return
	}

	// The selection survives a refresh only while the option set still
	// contains it.
	keep := false
	for _, s := range resp.Sessions {
		if s.ID == selected {
			keep = true
			break
		}
	}

	var records []api.Record
	if keep && selected != 0 {
		att, err := p.gw.Attendance(ctx, selected)
		if err == nil && att.Success {
			records = att.Records
		}
	}

	p.mu.Lock()
	p.sessions = resp.Sessions
	if !keep {
		p.selected = 0
	}
	p.records = records
	p.mu.Unlock()

	if p.out != nil {
		RenderSessions(p.out, resp.Sessions)
		if keep && selected != 0 {
			RenderRecords(p.out, records)
		}
	}
}
