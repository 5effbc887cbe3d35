package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/config"
	"github.com/Jidnyasa-P/Student-Attendance-with-QR/internal/stub"
)

// stubserver is a development stand-in for the attendance backend. It serves
// the same JSON contract in memory, seeded with the well-known dev accounts.
func main() {
	cfg := config.Load()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg); err != nil {
		log.Fatalf("stub server failed: %v", err)
	}
}

func run(cfg config.App) error {
	store := stub.NewStore()
	server := stub.NewServer(store, cfg.StubSigningKey, cfg.StubTokenTTL, cfg.QRValidity)
	if err := server.Seed(); err != nil {
		return err
	}
	log.Println("seeded dev accounts: student1/faculty1 (password123)")

	srv := &http.Server{
		Addr:         ":" + cfg.StubPort,
		Handler:      server.Router(cfg.RateLimitPerMin),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("stub server listening on :%s", cfg.StubPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("forced shutdown: %v", err)
	}
	log.Println("stub server exited")
	return nil
}
