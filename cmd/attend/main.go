package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/api"
	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/config"
	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/dashboard"
	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/notify"
	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/photo"
	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/scan"
	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/session"
)

// attend is the terminal client for the QR attendance system. Students scan
// (or paste) a session payload, attach a selfie and submit; faculty generate
// session codes and watch attendance come in.
type app struct {
	cfg    config.App
	client *api.Client
	store  *session.Store
	alerts *notify.Presenter
}

func main() {
	cmd := flag.String("cmd", "", "Command: login|register|logout|whoami|scan|mark|generate|sessions|watch|export")
	serverFlag := flag.String("server", "", "Override server base URL")
	username := flag.String("u", "", "Username (login/register)")
	password := flag.String("p", "", "Password (login/register)")
	email := flag.String("email", "", "Email (register)")
	userType := flag.String("type", "student", "Account type: student|faculty (register)")
	photoPath := flag.String("photo", "", "Path to the selfie image (scan/mark)")
	payload := flag.String("payload", "", "QR payload to submit without a camera (mark)")
	sessionName := flag.String("name", "", "Session name (generate)")
	sessionID := flag.Int64("session", 0, "Session id (watch/export)")
	outPath := flag.String("out", "attendance.xlsx", "Output file (export)")
	flag.Parse()

	cfg := config.Load()
	if *serverFlag != "" {
		cfg.ServerBaseURL = strings.TrimRight(*serverFlag, "/")
	}

	alerts := notify.NewPresenter(os.Stderr)
	a := &app{
		cfg:    cfg,
		client: api.New(cfg.ServerBaseURL, cfg.APITimeout, alerts),
		store:  session.NewStore(cfg.StateDir, cfg.SessionTTL),
		alerts: alerts,
	}

	ctx := context.Background()
	var err error
	switch *cmd {
	case "login":
		err = a.login(ctx, *username, *password)
	case "register":
		err = a.register(ctx, *username, *email, *password, *userType)
	case "logout":
		err = a.logout()
	case "whoami":
		err = a.whoami()
	case "scan":
		err = a.scan(ctx, *photoPath)
	case "mark":
		err = a.mark(ctx, *payload, *photoPath)
	case "generate":
		err = a.generate(ctx, *sessionName)
	case "sessions":
		err = a.sessions(ctx)
	case "watch":
		err = a.watch(ctx, *sessionID)
	case "export":
		err = a.export(ctx, *sessionID, *outPath)
	default:
		flag.Usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (a *app) login(ctx context.Context, username, password string) error {
	if username == "" || password == "" {
		return errors.New("-u and -p required")
	}
	resp, err := a.client.Login(ctx, username, password)
	if err != nil {
		return err
	}
	if !resp.Success || resp.User == nil {
		a.alerts.Notify(notify.Danger, orDefault(resp.Message, "Login failed"))
		return errors.New("login failed")
	}
	err = a.store.Save(session.Identity{
		ID:       resp.User.ID,
		Username: resp.User.Username,
		UserType: resp.User.UserType,
		Token:    resp.Token,
	})
	if err != nil {
		return err
	}
	a.alerts.Notify(notify.Success, fmt.Sprintf("Welcome, %s!", resp.User.Username))
	return nil
}

func (a *app) register(ctx context.Context, username, email, password, userType string) error {
	if username == "" || email == "" || password == "" {
		return errors.New("-u, -email and -p required")
	}
	resp, err := a.client.Register(ctx, username, email, password, userType)
	if err != nil {
		return err
	}
	if !resp.Success {
		a.alerts.Notify(notify.Danger, orDefault(resp.Message, "Registration failed"))
		return errors.New("registration failed")
	}
	a.alerts.Notify(notify.Success, "Registration successful! You can now login.")
	return nil
}

func (a *app) logout() error {
	if err := a.store.Clear(); err != nil {
		return err
	}
	a.alerts.Notify(notify.Info, "Logged out.")
	return nil
}

func (a *app) whoami() error {
	id, err := a.store.Current()
	if err != nil {
		return err
	}
	if id == nil {
		fmt.Println("not logged in")
		return nil
	}
	fmt.Printf("%s (%s), id %d, session valid until %s\n",
		id.Username, id.UserType, id.ID, id.ExpiresAt.Format(time.RFC3339))
	return nil
}

// requireIdentity loads the current identity and checks its account type.
func (a *app) requireIdentity(userType string) (*session.Identity, error) {
	id, err := a.store.Current()
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, errors.New("not logged in (run -cmd login first)")
	}
	if userType != "" && id.UserType != userType {
		return nil, fmt.Errorf("requires a %s account", userType)
	}
	return id, nil
}

// scan runs the full student workflow: camera on, wait for a detection,
// attach the selfie, confirm. Payload lines are read from stdin, which is
// where a tethered scanner or a pasted payload lands on a terminal.
func (a *app) scan(ctx context.Context, photoPath string) error {
	if _, err := a.requireIdentity("student"); err != nil {
		return err
	}
	if photoPath == "" {
		return errors.New("-photo required")
	}

	wf := scan.New(&scan.ReaderCamera{R: os.Stdin}, scan.TextDecoder{}, a.client, a.store, a.alerts)
	wf.SampleInterval = a.cfg.ScanInterval
	defer wf.Stop()

	if err := wf.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, "Paste or scan the QR payload, then press enter...")

	if err := waitForDetection(ctx, wf, 5*time.Minute); err != nil {
		return err
	}
	return a.capture(ctx, wf, photoPath)
}

// mark submits a payload without a camera, the fallback path for
// environments where camera access is denied or absent.
func (a *app) mark(ctx context.Context, payload, photoPath string) error {
	if _, err := a.requireIdentity("student"); err != nil {
		return err
	}
	if payload == "" {
		return errors.New("-payload required")
	}
	if photoPath == "" {
		return errors.New("-photo required")
	}

	wf := scan.New(nil, nil, a.client, a.store, a.alerts)
	if err := wf.InjectPayload(payload); err != nil {
		return err
	}
	return a.capture(ctx, wf, photoPath)
}

func (a *app) capture(ctx context.Context, wf *scan.Workflow, photoPath string) error {
	p, err := photo.FromFile(photoPath)
	if err != nil {
		return err
	}
	if err := wf.AttachPhoto(p); err != nil {
		return err
	}
	_, err = wf.Submit(ctx)
	return err
}

func waitForDetection(ctx context.Context, wf *scan.Workflow, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for wf.State() != scan.Detected {
		if time.Now().After(deadline) {
			return errors.New("no QR code detected")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
	return nil
}

func (a *app) generate(ctx context.Context, sessionName string) error {
	id, err := a.requireIdentity("faculty")
	if err != nil {
		return err
	}
	if sessionName == "" {
		return errors.New("-name required")
	}

	resp, err := a.client.GenerateQR(ctx, id.ID, sessionName)
	if err != nil {
		return err
	}
	if !resp.Success {
		a.alerts.Notify(notify.Danger, orDefault(resp.Message, "Failed to generate QR"))
		return errors.New("generate failed")
	}

	fmt.Printf("Session %d created: %s\nPayload: %s\nExpires: %s\n",
		resp.SessionID, resp.SessionName, resp.QRData, resp.ExpiresAt)

	if img, err := photo.DecodeDataURI(resp.QRImage); err == nil {
		name := fmt.Sprintf("QR_%s.png", sanitize(resp.SessionName))
		if err := os.WriteFile(name, img.Data, 0o644); err == nil {
			a.alerts.Notify(notify.Success, "Saved "+name)
		}
	}
	return nil
}

func (a *app) sessions(ctx context.Context) error {
	id, err := a.requireIdentity("faculty")
	if err != nil {
		return err
	}
	resp, err := a.client.MySessions(ctx, id.ID)
	if err != nil {
		return err
	}
	if !resp.Success {
		return errors.New(orDefault(resp.Message, "failed to load sessions"))
	}
	dashboard.RenderSessions(os.Stdout, resp.Sessions)
	return nil
}

func (a *app) watch(ctx context.Context, sessionID int64) error {
	id, err := a.requireIdentity("faculty")
	if err != nil {
		return err
	}
	poller := dashboard.NewPoller(a.client, id.ID, dashboard.Always, os.Stdout)
	poller.Interval = a.cfg.PollInterval
	if sessionID != 0 {
		poller.Select(sessionID)
	}
	poller.Refresh(ctx)
	return poller.Run(ctx)
}

func (a *app) export(ctx context.Context, sessionID int64, outPath string) error {
	id, err := a.requireIdentity("faculty")
	if err != nil {
		return err
	}
	if sessionID == 0 {
		return errors.New("-session required")
	}

	sessions, err := a.client.MySessions(ctx, id.ID)
	if err != nil {
		return err
	}
	name := fmt.Sprintf("session %d", sessionID)
	for _, s := range sessions.Sessions {
		if s.ID == sessionID {
			name = s.SessionName
		}
	}

	resp, err := a.client.Attendance(ctx, sessionID)
	if err != nil {
		return err
	}
	if !resp.Success {
		return errors.New(orDefault(resp.Message, "failed to load attendance"))
	}
	if err := dashboard.ExportWorkbook(outPath, name, resp.Records); err != nil {
		return err
	}
	a.alerts.Notify(notify.Success, fmt.Sprintf("Exported %d records to %s", len(resp.Records), outPath))
	return nil
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		default:
			return '_'
		}
	}, s)
}
