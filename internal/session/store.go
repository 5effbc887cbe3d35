// Package session holds the logged-in identity for the life of the device,
// backed by a single JSON record in local storage.
package session

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/auth"
)

// FileName is the fixed name of the persisted identity record.
const FileName = "current_user.json"

// Identity is the client-held profile of the authenticated user.
type Identity struct {
	ID        int64     `json:"id"`
	Username  string    `json:"username"`
	UserType  string    `json:"user_type"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the identity should no longer be trusted.
func (id Identity) Expired(now time.Time) bool {
	return !id.ExpiresAt.IsZero() && now.After(id.ExpiresAt)
}

// Provider supplies the current identity to components that need it.
type Provider interface {
	Current() (*Identity, error)
}

// Store persists one identity record and caches it in memory. Rehydration
// from disk happens at most once per process.
type Store struct {
	mu         sync.Mutex
	path       string
	defaultTTL time.Duration
	cached     *Identity
	loaded     bool
	now        func() time.Time
}

// NewStore creates a store rooted at dir. defaultTTL bounds how long a saved
// identity is trusted when the login token carries no usable expiry.
func NewStore(dir string, defaultTTL time.Duration) *Store {
	if defaultTTL <= 0 {
		defaultTTL = 24 * time.Hour
	}
	return &Store{
		path:       filepath.Join(dir, FileName),
		defaultTTL: defaultTTL,
		now:        time.Now,
	}
}

// Save persists the identity and caches it. An expiry is stamped from the
// token's exp claim when present, otherwise from the default TTL.
func (s *Store) Save(id Identity) error {
	if id.ExpiresAt.IsZero() {
		if exp, ok := auth.Expiry(id.Token); ok {
			id.ExpiresAt = exp
		} else {
			id.ExpiresAt = s.now().Add(s.defaultTTL)
		}
	}

	raw, err := json.Marshal(id)
	if err != nil {
		return fmt.Errorf("encode identity: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create state dir: %w", err)
	}
	if err := os.WriteFile(s.path, raw, 0o600); err != nil {
		return fmt.Errorf("write identity: %w", err)
	}

	s.mu.Lock()
	s.cached = &id
	s.loaded = true
	s.mu.Unlock()
	return nil
}

// Current returns the cached identity, rehydrating from disk on first use.
// A missing or expired record yields (nil, nil); expired records are wiped.
func (s *Store) Current() (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.loaded {
		if err := s.loadLocked(); err != nil {
			return nil, err
		}
	}
	if s.cached != nil && s.cached.Expired(s.now()) {
		if err := s.clearLocked(); err != nil {
			return nil, err
		}
	}
	if s.cached == nil {
		return nil, nil
	}
	id := *s.cached
	return &id, nil
}

// Clear wipes the cache and the persisted record.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.clearLocked()
}

func (s *Store) loadLocked() error {
	s.loaded = true
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read identity: %w", err)
	}
	var id Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		// A corrupt record is treated as logged out rather than fatal.
		return s.clearLocked()
	}
	s.cached = &id
	return nil
}

func (s *Store) clearLocked() error {
	s.cached = nil
	s.loaded = true
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove identity: %w", err)
	}
	return nil
}
