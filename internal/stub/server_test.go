package stub

import (
	"context"
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/api"
	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/notify"
	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/photo"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	m.Run()
}

func newTestBackend(t *testing.T, qrValidity time.Duration) (*httptest.Server, *api.Client) {
	t.Helper()
	srv := NewServer(NewStore(), "test-signing-key", time.Hour, qrValidity)
	if err := srv.Seed(); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	ts := httptest.NewServer(srv.Router(0))
	t.Cleanup(ts.Close)
	return ts, api.New(ts.URL, 5*time.Second, &notify.Recorder{})
}

func pngDataURI(t *testing.T) string {
	t.Helper()
	p, err := photo.FromBytes([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0})
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	return p.DataURI()
}

func TestLoginWithSeededAccounts(t *testing.T) {
	_, cl := newTestBackend(t, 0)
	ctx := context.Background()

	resp, err := cl.Login(ctx, "faculty1", "password123")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !resp.Success || resp.Token == "" {
		t.Fatalf("login response: %+v", resp)
	}
	if resp.User.UserType != "faculty" || resp.User.Username != "faculty1" {
		t.Fatalf("user: %+v", resp.User)
	}

	bad, err := cl.Login(ctx, "faculty1", "wrong")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if bad.Success || bad.Message != "Invalid credentials" {
		t.Fatalf("bad login response: %+v", bad)
	}
}

func TestRegisterThenLogin(t *testing.T) {
	_, cl := newTestBackend(t, 0)
	ctx := context.Background()

	reg, err := cl.Register(ctx, "newstudent", "new@test.com", "secret", "student")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if !reg.Success {
		t.Fatalf("register response: %+v", reg)
	}

	dup, err := cl.Register(ctx, "newstudent", "other@test.com", "secret", "student")
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if dup.Success || dup.Message != "User already exists" {
		t.Fatalf("duplicate register response: %+v", dup)
	}

	login, err := cl.Login(ctx, "newstudent", "secret")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if !login.Success {
		t.Fatalf("login after register: %+v", login)
	}
}

func TestGenerateMarkAndReview(t *testing.T) {
	_, cl := newTestBackend(t, 0)
	ctx := context.Background()

	faculty, err := cl.Login(ctx, "faculty1", "password123")
	if err != nil || !faculty.Success {
		t.Fatalf("faculty login: %v %+v", err, faculty)
	}
	student, err := cl.Login(ctx, "student1", "password123")
	if err != nil || !student.Success {
		t.Fatalf("student login: %v %+v", err, student)
	}

	qr, err := cl.GenerateQR(ctx, faculty.User.ID, "Algebra101")
	if err != nil {
		t.Fatalf("GenerateQR: %v", err)
	}
	if !qr.Success || qr.SessionID == 0 {
		t.Fatalf("generate response: %+v", qr)
	}
	if !strings.HasPrefix(qr.QRData, fmt.Sprintf("ATTEND|%d|Algebra101|", faculty.User.ID)) {
		t.Fatalf("qr payload: %q", qr.QRData)
	}
	if !strings.HasPrefix(qr.QRImage, "data:image/png;base64,") {
		t.Fatalf("qr image: %q", qr.QRImage[:40])
	}

	mark, err := cl.MarkAttendance(ctx, qr.QRData, student.User.ID, pngDataURI(t))
	if err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}
	if !mark.Success || mark.StudentName != "student1" || mark.SessionName != "Algebra101" {
		t.Fatalf("mark response: %+v", mark)
	}

	again, err := cl.MarkAttendance(ctx, qr.QRData, student.User.ID, "")
	if err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}
	if again.Success || again.Message != "Already marked" {
		t.Fatalf("duplicate mark response: %+v", again)
	}

	sessions, err := cl.MySessions(ctx, faculty.User.ID)
	if err != nil {
		t.Fatalf("MySessions: %v", err)
	}
	if len(sessions.Sessions) != 1 || sessions.Sessions[0].AttendanceCount != 1 {
		t.Fatalf("sessions: %+v", sessions.Sessions)
	}

	att, err := cl.Attendance(ctx, qr.SessionID)
	if err != nil {
		t.Fatalf("Attendance: %v", err)
	}
	if len(att.Records) != 1 {
		t.Fatalf("records: %+v", att.Records)
	}
	rec := att.Records[0]
	if rec.Username != "student1" || rec.Email != "student1@test.com" {
		t.Fatalf("record: %+v", rec)
	}
	if !strings.HasPrefix(rec.Photo, "data:image/png;base64,") {
		t.Fatalf("photo not echoed back: %q", rec.Photo)
	}
	if rec.IPAddress == "" {
		t.Fatal("ip address missing")
	}
}

func TestMarkRejectsExpiredAndMalformedPayloads(t *testing.T) {
	_, cl := newTestBackend(t, time.Minute)
	ctx := context.Background()

	student, err := cl.Login(ctx, "student2", "password123")
	if err != nil || !student.Success {
		t.Fatalf("student login: %v %+v", err, student)
	}

	old := time.Now().Add(-2 * time.Minute).Format(time.RFC3339)
	expired := fmt.Sprintf("ATTEND|1|Algebra101|%s|%s", old, uuid.NewString())

	cases := []struct {
		name    string
		payload string
		message string
	}{
		{"expired", expired, "QR expired"},
		{"wrong prefix", "BOGUS|1|x|y|z", "Invalid QR"},
		{"too few parts", "ATTEND|1|x", "Invalid QR"},
		{"bad timestamp", "ATTEND|1|x|not-a-time|tok", "Time error"},
		{"unknown token", fmt.Sprintf("ATTEND|1|x|%s|%s", time.Now().Format(time.RFC3339), uuid.NewString()), "Session not found"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := cl.MarkAttendance(ctx, tc.payload, student.User.ID, "")
			if err != nil {
				t.Fatalf("MarkAttendance: %v", err)
			}
			if resp.Success || resp.Message != tc.message {
				t.Fatalf("response = %+v, want message %q", resp, tc.message)
			}
		})
	}
}

func TestMalformedPhotoIsDroppedNotRejected(t *testing.T) {
	_, cl := newTestBackend(t, 0)
	ctx := context.Background()

	faculty, _ := cl.Login(ctx, "faculty1", "password123")
	student, _ := cl.Login(ctx, "student3", "password123")
	qr, err := cl.GenerateQR(ctx, faculty.User.ID, "Chemistry301")
	if err != nil || !qr.Success {
		t.Fatalf("GenerateQR: %v %+v", err, qr)
	}

	mark, err := cl.MarkAttendance(ctx, qr.QRData, student.User.ID, "data:image/png;base64,!!!not-base64!!!")
	if err != nil {
		t.Fatalf("MarkAttendance: %v", err)
	}
	if !mark.Success {
		t.Fatalf("mark rejected: %+v", mark)
	}

	att, err := cl.Attendance(ctx, qr.SessionID)
	if err != nil {
		t.Fatalf("Attendance: %v", err)
	}
	if len(att.Records) != 1 || att.Records[0].Photo != "" {
		t.Fatalf("records: %+v", att.Records)
	}
}
