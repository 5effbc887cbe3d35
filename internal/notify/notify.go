// Package notify delivers transient user-facing notifications.
package notify

import (
	"fmt"
	"io"
	"sync"
)

// Level classifies a notification for presentation.
type Level string

const (
	Success Level = "success"
	Info    Level = "info"
	Warning Level = "warning"
	Danger  Level = "danger"
)

// Notifier receives user-facing messages.
type Notifier interface {
	Notify(level Level, message string)
}

var prefixes = map[Level]string{
	Success: "OK",
	Info:    "INFO",
	Warning: "WARN",
	Danger:  "ERROR",
}

// Presenter writes notifications to a terminal or log sink.
type Presenter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewPresenter creates a presenter writing to out.
func NewPresenter(out io.Writer) *Presenter {
	return &Presenter{out: out}
}

// Notify writes a single prefixed line.
func (p *Presenter) Notify(level Level, message string) {
	prefix, ok := prefixes[level]
	if !ok {
		prefix = prefixes[Info]
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "[%s] %s\n", prefix, message)
}

// Entry is one recorded notification.
type Entry struct {
	Level   Level
	Message string
}

// Recorder captures notifications for inspection in tests.
type Recorder struct {
	mu      sync.Mutex
	entries []Entry
}

// Notify records the message.
func (r *Recorder) Notify(level Level, message string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, Entry{Level: level, Message: message})
}

// Entries returns a copy of everything recorded so far.
func (r *Recorder) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}
