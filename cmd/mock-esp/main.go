package main

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"mailout/internal/config"
	"mailout/internal/httpserver"
	"mailout/internal/logging"
)

// mock-esp stands in for the Resend API during local runs and load tests.
func main() {
	cfg := config.LoadMockESP()
	logging.Init("mock-esp", cfg.LogFormat, cfg.LogLevel)

	s := newServer(cfg)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           httpserver.Logging(s.routes()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	slog.Info("mock esp listening", "port", cfg.Port,
		"rate_limit_every", cfg.RateLimitEvery,
		"fail_domain", cfg.FailDomain,
		"webhook_url", cfg.WebhookURL,
	)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("mock esp server failed", "err", err)
		os.Exit(1)
	}
}
