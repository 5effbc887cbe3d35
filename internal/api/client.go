// Package api is the client's gateway to the attendance backend. All
// endpoints speak JSON over HTTP; transport-level failures collapse into a
// single ErrNoResponse so callers only ever distinguish "no response" from
// "response with success:false".
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/notify"
)

// ErrNoResponse reports that the backend was unreachable or returned a body
// that could not be decoded. Callers see it once per failed call; the user
// sees a single generic network notification.
var ErrNoResponse = errors.New("no response from server")

// Client calls the attendance backend REST API.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	alerts  notify.Notifier
}

// New creates a client rooted at baseURL's /api prefix.
func New(baseURL string, timeout time.Duration, alerts notify.Notifier) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/") + "/api",
		HTTP:    &http.Client{Timeout: timeout},
		alerts:  alerts,
	}
}

// Login authenticates a user by username and password.
func (c *Client) Login(ctx context.Context, username, password string) (*LoginResponse, error) {
	var out LoginResponse
	err := c.call(ctx, http.MethodPost, "/login", map[string]string{
		"username": username,
		"password": password,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates a new user account.
func (c *Client) Register(ctx context.Context, username, email, password, userType string) (*RegisterResponse, error) {
	var out RegisterResponse
	err := c.call(ctx, http.MethodPost, "/register", map[string]string{
		"username":  username,
		"email":     email,
		"password":  password,
		"user_type": userType,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// GenerateQR asks the backend to create a session and its QR code.
func (c *Client) GenerateQR(ctx context.Context, facultyID int64, sessionName string) (*GenerateQRResponse, error) {
	var out GenerateQRResponse
	err := c.call(ctx, http.MethodPost, "/generate-qr", map[string]any{
		"faculty_id":   facultyID,
		"session_name": sessionName,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MySessions lists sessions created by a faculty user, newest first.
func (c *Client) MySessions(ctx context.Context, facultyID int64) (*SessionsResponse, error) {
	var out SessionsResponse
	err := c.call(ctx, http.MethodPost, "/my-sessions", map[string]any{
		"faculty_id": facultyID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Attendance lists attendance records for a session.
func (c *Client) Attendance(ctx context.Context, sessionID int64) (*AttendanceResponse, error) {
	var out AttendanceResponse
	err := c.call(ctx, http.MethodGet, fmt.Sprintf("/attendance/%d", sessionID), nil, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MarkAttendance submits a scanned QR payload with the student's photo.
func (c *Client) MarkAttendance(ctx context.Context, qrData string, studentID int64, photo string) (*MarkResponse, error) {
	var out MarkResponse
	err := c.call(ctx, http.MethodPost, "/mark-attendance", map[string]any{
		"qr_data":    qrData,
		"student_id": studentID,
		"photo":      photo,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) call(ctx context.Context, method, path string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return c.noResponse(path, err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return c.noResponse(path, err)
	}
	return nil
}

func (c *Client) noResponse(path string, cause error) error {
	if c.alerts != nil {
		c.alerts.Notify(notify.Danger, "Network error. Check if the server is reachable.")
	}
	return fmt.Errorf("%w: %s: %v", ErrNoResponse, path, cause)
}
