// Package stub is a development stand-in for the attendance backend. It
// implements the same JSON contract entirely in memory so the client can be
// exercised end-to-end without the production server. It is not a backend
// design: state vanishes on exit and nothing is hardened.
package stub

import (
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	// ErrUserExists reports a duplicate username or email on registration.
	ErrUserExists = errors.New("user already exists")
	// ErrAlreadyMarked reports a duplicate attendance submission.
	ErrAlreadyMarked = errors.New("already marked")
)

// User is a registered account.
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	UserType     string
	CreatedAt    time.Time
}

// ClassSession is a faculty-created attendance session.
type ClassSession struct {
	ID          int64
	FacultyID   int64
	SessionName string
	QRData      string
	Token       string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// AttendanceRow is one marked attendance.
type AttendanceRow struct {
	ID        int64
	StudentID int64
	SessionID int64
	MarkedAt  time.Time
	IPAddress string
	Photo     []byte
}

// Store holds all stub state behind one mutex.
type Store struct {
	mu         sync.Mutex
	nextUser   int64
	nextSess   int64
	nextAtt    int64
	users      map[int64]*User
	sessions   map[int64]*ClassSession
	byToken    map[string]int64
	attendance []*AttendanceRow
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		users:    make(map[int64]*User),
		sessions: make(map[int64]*ClassSession),
		byToken:  make(map[string]int64),
	}
}

// CreateUser registers an account with a pre-hashed password.
func (s *Store) CreateUser(username, email, passwordHash, userType string) (*User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.Username == username || u.Email == email {
			return nil, ErrUserExists
		}
	}
	s.nextUser++
	u := &User{
		ID:           s.nextUser,
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		UserType:     userType,
		CreatedAt:    time.Now(),
	}
	s.users[u.ID] = u
	return u, nil
}

// UserByName returns the account with the given username.
func (s *Store) UserByName(username string) (*User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			out := *u
			return &out, true
		}
	}
	return nil, false
}

// UserByID returns the account with the given id.
func (s *Store) UserByID(id int64) (*User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, false
	}
	out := *u
	return &out, true
}

// CreateSession records a new attendance session.
func (s *Store) CreateSession(facultyID int64, name, qrData, token string, expiresAt time.Time) *ClassSession {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSess++
	sess := &ClassSession{
		ID:          s.nextSess,
		FacultyID:   facultyID,
		SessionName: name,
		QRData:      qrData,
		Token:       token,
		CreatedAt:   time.Now(),
		ExpiresAt:   expiresAt,
	}
	s.sessions[sess.ID] = sess
	s.byToken[token] = sess.ID
	return sess
}

// SessionByToken resolves the session a QR token belongs to.
func (s *Store) SessionByToken(token string) (*ClassSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.byToken[token]
	if !ok {
		return nil, false
	}
	out := *s.sessions[id]
	return &out, true
}

// MarkAttendance records an attendance row, rejecting duplicates per
// (student, session).
func (s *Store) MarkAttendance(studentID, sessionID int64, ip string, photo []byte) (*AttendanceRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, a := range s.attendance {
		if a.StudentID == studentID && a.SessionID == sessionID {
			return nil, ErrAlreadyMarked
		}
	}
	s.nextAtt++
	row := &AttendanceRow{
		ID:        s.nextAtt,
		StudentID: studentID,
		SessionID: sessionID,
		MarkedAt:  time.Now(),
		IPAddress: ip,
		Photo:     photo,
	}
	s.attendance = append(s.attendance, row)
	out := *row
	return &out, nil
}

// SessionSummary is a session with its attendance count.
type SessionSummary struct {
	Session ClassSession
	Count   int
}

// SessionsByFaculty returns a faculty's sessions newest first, capped at limit.
func (s *Store) SessionsByFaculty(facultyID int64, limit int) []SessionSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[int64]int)
	for _, a := range s.attendance {
		counts[a.SessionID]++
	}

	var out []SessionSummary
	for _, sess := range s.sessions {
		if sess.FacultyID != facultyID {
			continue
		}
		out = append(out, SessionSummary{Session: *sess, Count: counts[sess.ID]})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Session.CreatedAt.After(out[j].Session.CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// RecordRow is one attendance row joined with its student.
type RecordRow struct {
	Row  AttendanceRow
	User User
}

// RecordsBySession returns the attendance of a session newest first.
func (s *Store) RecordsBySession(sessionID int64) []RecordRow {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []RecordRow
	for _, a := range s.attendance {
		if a.SessionID != sessionID {
			continue
		}
		u := s.users[a.StudentID]
		if u == nil {
			u = &User{Username: "Student"}
		}
		out = append(out, RecordRow{Row: *a, User: *u})
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Row.MarkedAt.After(out[j].Row.MarkedAt)
	})
	return out
}
