package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env             string
	ServerBaseURL   string
	APITimeout      time.Duration
	StateDir        string
	SessionTTL      time.Duration
	ScanInterval    time.Duration
	PollInterval    time.Duration
	StubPort        string
	StubSigningKey  string
	StubTokenTTL    time.Duration
	QRValidity      time.Duration
	RateLimitPerMin int
}

// Load returns application config populated from environment variables with sensible defaults.
// A .env file in the working directory is honored when present.
func Load() App {
	if err := godotenv.Load(); err == nil {
		log.Println("loaded configuration from .env")
	}
	return App{
		Env:             getEnv("APP_ENV", "dev"),
		ServerBaseURL:   getEnv("ATTEND_SERVER", "http://localhost:5000"),
		APITimeout:      durationEnv("API_TIMEOUT", 15*time.Second),
		StateDir:        getEnv("ATTEND_STATE_DIR", defaultStateDir()),
		SessionTTL:      durationEnv("SESSION_TTL", 24*time.Hour),
		ScanInterval:    durationEnv("SCAN_INTERVAL", 100*time.Millisecond),
		PollInterval:    durationEnv("POLL_INTERVAL", 5*time.Second),
		StubPort:        getEnv("STUB_PORT", "5000"),
		StubSigningKey:  getEnv("STUB_SIGNING_KEY", "qr-attendance-secret-2025"),
		StubTokenTTL:    durationEnv("STUB_TOKEN_TTL", 24*time.Hour),
		QRValidity:      durationEnv("QR_VALIDITY", 30*time.Minute),
		RateLimitPerMin: intEnv("RATE_LIMIT_PER_MIN", 120),
	}
}

func defaultStateDir() string {
	base, err := os.UserConfigDir()
	if err != nil {
		return ".attend"
	}
	return filepath.Join(base, "attend")
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		d, err := time.ParseDuration(val)
		if err != nil {
			log.Printf("invalid duration for %s: %v, using fallback %s", key, err, fallback)
			return fallback
		}
		return d
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		var parsed int
		if _, err := fmt.Sscanf(val, "%d", &parsed); err == nil {
			return parsed
		}
		log.Printf("invalid int for %s, using fallback %d", key, fallback)
	}
	return fallback
}
