package api

// User is the authenticated profile record returned by login.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	UserType string `json:"user_type"`
}

// Session is a faculty-created attendance session. Read-only on the client.
type Session struct {
	ID              int64  `json:"id"`
	SessionName     string `json:"session_name"`
	CreatedAt       string `json:"created_at"`
	AttendanceCount int    `json:"attendance_count"`
}

// Record is one attendance row for a session.
type Record struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	MarkedAt  string `json:"marked_at"`
	IPAddress string `json:"ip_address"`
	Photo     string `json:"photo,omitempty"`
}

// LoginResponse is the /login response body.
type LoginResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
	User    *User  `json:"user,omitempty"`
}

// RegisterResponse is the /register response body.
type RegisterResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// GenerateQRResponse is the /generate-qr response body. QRImage is a PNG
// data URI; QRData is the payload encoded inside it.
type GenerateQRResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	SessionID   int64  `json:"session_id"`
	QRImage     string `json:"qr_image"`
	SessionName string `json:"session_name"`
	QRData      string `json:"qr_data"`
	ExpiresAt   string `json:"expires_at"`
}

// SessionsResponse is the /my-sessions response body.
type SessionsResponse struct {
	Success  bool      `json:"success"`
	Message  string    `json:"message"`
	Sessions []Session `json:"sessions"`
}

// AttendanceResponse is the /attendance/{id} response body.
type AttendanceResponse struct {
	Success bool     `json:"success"`
	Message string   `json:"message"`
	Records []Record `json:"records"`
}

// MarkResponse is the /mark-attendance response body.
type MarkResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	SessionName string `json:"session_name,omitempty"`
	StudentName string `json:"student_name,omitempty"`
	MarkedAt    string `json:"marked_at,omitempty"`
}
