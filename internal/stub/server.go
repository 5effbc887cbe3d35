package stub

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/crypto/bcrypt"

	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/auth"
	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/httpmiddleware"
	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/photo"
)

var (
	qrGenerated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stub_qr_generated_total",
		Help: "Sessions created through /api/generate-qr.",
	})
	attendanceMarked = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stub_attendance_marked_total",
		Help: "Attendance records accepted through /api/mark-attendance.",
	})
)

// Server exposes the backend JSON contract over an in-memory store.
type Server struct {
	store      *Store
	signingKey string
	tokenTTL   time.Duration
	qrValidity time.Duration
}

// NewServer creates a stub server.
func NewServer(store *Store, signingKey string, tokenTTL, qrValidity time.Duration) *Server {
	if tokenTTL <= 0 {
		tokenTTL = 24 * time.Hour
	}
	if qrValidity <= 0 {
		qrValidity = 30 * time.Minute
	}
	return &Server{
		store:      store,
		signingKey: signingKey,
		tokenTTL:   tokenTTL,
		qrValidity: qrValidity,
	}
}

// Seed registers the well-known development accounts, all with password123.
func (s *Server) Seed() error {
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	accounts := []struct{ name, email, userType string }{
		{"student1", "student1@test.com", "student"},
		{"student2", "student2@test.com", "student"},
		{"student3", "student3@test.com", "student"},
		{"faculty1", "faculty1@test.com", "faculty"},
		{"admin", "admin@test.com", "faculty"},
	}
	for _, a := range accounts {
		if _, err := s.store.CreateUser(a.name, a.email, string(hash), a.userType); err != nil {
			return fmt.Errorf("seed %s: %w", a.name, err)
		}
	}
	return nil
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router(rateLimitPerMin int) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/healthz", "/metrics"},
	}))
	if rateLimitPerMin > 0 {
		r.Use(httpmiddleware.NewTokenBucket(rateLimitPerMin, rateLimitPerMin).GinMiddleware())
	}

	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.GET("/test", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"success": true, "message": "API Working!"})
		})
		api.POST("/login", s.login)
		api.POST("/register", s.register)
		api.POST("/generate-qr", s.generateQR)
		api.POST("/mark-attendance", s.markAttendance)
		api.POST("/my-sessions", s.mySessions)
		api.GET("/attendance/:sessionID", s.attendance)
	}
	return r
}

// fail mirrors the backend contract: failures are HTTP 200 bodies with
// success:false and a message the client surfaces verbatim.
func fail(c *gin.Context, message string) {
	c.JSON(http.StatusOK, gin.H{"success": false, "message": message})
}

func (s *Server) login(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Username) == "" || req.Password == "" {
		fail(c, "Username and password required")
		return
	}

	user, ok := s.store.UserByName(strings.TrimSpace(req.Username))
	if !ok || bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)) != nil {
		fail(c, "Invalid credentials")
		return
	}

	token, err := auth.Issue(user.ID, user.Username, user.UserType, s.signingKey, s.tokenTTL)
	if err != nil {
		fail(c, "token issue failed")
		return
	}

	log.Printf("login: %s", user.Username)
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Login successful!",
		"token":   token,
		"user": gin.H{
			"id":        user.ID,
			"username":  user.Username,
			"user_type": user.UserType,
		},
	})
}

func (s *Server) register(c *gin.Context) {
	var req struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
		UserType string `json:"user_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, "All fields required")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if req.Username == "" || req.Email == "" || req.Password == "" || req.UserType == "" {
		fail(c, "All fields required")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		fail(c, "registration failed")
		return
	}
	if _, err := s.store.CreateUser(req.Username, req.Email, string(hash), req.UserType); err != nil {
		fail(c, "User already exists")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Registration successful!"})
}

func (s *Server) generateQR(c *gin.Context) {
	var req struct {
		FacultyID   int64  `json:"faculty_id"`
		SessionName string `json:"session_name"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, "Missing parameters")
		return
	}
	req.SessionName = strings.TrimSpace(req.SessionName)
	if req.FacultyID == 0 || req.SessionName == "" {
		fail(c, "Missing parameters")
		return
	}

	token := uuid.NewString()
	now := time.Now()
	expiresAt := now.Add(s.qrValidity)
	qrData := fmt.Sprintf("ATTEND|%d|%s|%s|%s", req.FacultyID, req.SessionName, now.Format(time.RFC3339), token)

	sess := s.store.CreateSession(req.FacultyID, req.SessionName, qrData, token, expiresAt)

	img, err := QRImage(qrData)
	if err != nil {
		fail(c, err.Error())
		return
	}

	qrGenerated.Inc()
	log.Printf("qr generated: %s", req.SessionName)
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"session_id":   sess.ID,
		"qr_image":     img,
		"session_name": sess.SessionName,
		"qr_data":      qrData,
		"expires_at":   expiresAt.Format(time.RFC3339),
	})
}

func (s *Server) markAttendance(c *gin.Context) {
	var req struct {
		QRData    string `json:"qr_data"`
		StudentID int64  `json:"student_id"`
		Photo     string `json:"photo"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || req.QRData == "" || req.StudentID == 0 {
		fail(c, "Missing data")
		return
	}
	if !strings.HasPrefix(req.QRData, "ATTEND|") {
		fail(c, "Invalid QR")
		return
	}
	parts := strings.Split(req.QRData, "|")
	if len(parts) != 5 {
		fail(c, "Invalid QR")
		return
	}
	sessionName, timestamp, token := parts[2], parts[3], parts[4]

	issued, err := time.Parse(time.RFC3339, timestamp)
	if err != nil {
		fail(c, "Time error")
		return
	}
	if time.Since(issued) > s.qrValidity {
		fail(c, "QR expired")
		return
	}

	sess, ok := s.store.SessionByToken(token)
	if !ok {
		fail(c, "Session not found")
		return
	}

	var photoBytes []byte
	if req.Photo != "" {
		// A malformed photo is dropped, not rejected.
		if p, err := photo.DecodeDataURI(req.Photo); err == nil {
			photoBytes = p.Data
		}
	}

	row, err := s.store.MarkAttendance(req.StudentID, sess.ID, c.ClientIP(), photoBytes)
	if err != nil {
		fail(c, "Already marked")
		return
	}

	studentName := "Student"
	if u, ok := s.store.UserByID(req.StudentID); ok {
		studentName = u.Username
	}

	attendanceMarked.Inc()
	log.Printf("attendance marked: %s -> %s", studentName, sessionName)
	c.JSON(http.StatusOK, gin.H{
		"success":      true,
		"message":      fmt.Sprintf("Attendance marked for %s!", sessionName),
		"session_name": sessionName,
		"student_name": studentName,
		"marked_at":    row.MarkedAt.Format(time.RFC3339),
	})
}

func (s *Server) mySessions(c *gin.Context) {
	var req struct {
		FacultyID int64 `json:"faculty_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, "Missing parameters")
		return
	}

	summaries := s.store.SessionsByFaculty(req.FacultyID, 20)
	sessions := make([]gin.H, 0, len(summaries))
	for _, sm := range summaries {
		sessions = append(sessions, gin.H{
			"id":               sm.Session.ID,
			"session_name":     sm.Session.SessionName,
			"created_at":       sm.Session.CreatedAt.Format(time.RFC3339),
			"attendance_count": sm.Count,
		})
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "sessions": sessions})
}

func (s *Server) attendance(c *gin.Context) {
	sessionID, err := strconv.ParseInt(c.Param("sessionID"), 10, 64)
	if err != nil {
		fail(c, "Invalid session id")
		return
	}

	rows := s.store.RecordsBySession(sessionID)
	records := make([]gin.H, 0, len(rows))
	for _, r := range rows {
		rec := gin.H{
			"username":   r.User.Username,
			"email":      r.User.Email,
			"marked_at":  r.Row.MarkedAt.Format("02-01-2006 15:04:05"),
			"ip_address": orNA(r.Row.IPAddress),
		}
		if len(r.Row.Photo) > 0 {
			if p, err := photo.FromBytes(r.Row.Photo); err == nil {
				rec["photo"] = p.DataURI()
			}
		}
		records = append(records, rec)
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "records": records})
}

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}
