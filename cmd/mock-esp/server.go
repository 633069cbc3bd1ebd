package main

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"mailout/internal/config"
	"mailout/internal/providers/resend"
)

type errorBody struct {
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

type server struct {
	cfg    config.MockESPConfig
	calls  atomic.Uint64
	client *http.Client
	// sleep waits for d unless ctx ends first; replaced in tests.
	sleep func(ctx context.Context, d time.Duration)
	// deliver runs webhook delivery; synchronous in tests.
	deliver func(func())
}

func newServer(cfg config.MockESPConfig) *server {
	return &server{
		cfg:     cfg,
		client:  &http.Client{Timeout: 5 * time.Second},
		sleep:   sleepCtx,
		deliver: func(f func()) { go f() },
	}
}

func (s *server) routes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/emails", s.handleSend).Methods(http.MethodPost)
	return r
}

func (s *server) handleSend(w http.ResponseWriter, r *http.Request) {
	if r.Header.Get("Authorization") != "Bearer "+s.cfg.APIKey {
		writeError(w, http.StatusUnauthorized, "missing_api_key", "API key is invalid")
		return
	}

	var req resend.SendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "Invalid JSON body")
		return
	}
	if req.From == "" || len(req.To) == 0 || req.Subject == "" {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "from, to and subject are required")
		return
	}

	n := s.calls.Add(1)
	if every := uint64(max(s.cfg.RateLimitEvery, 0)); every > 0 && n%every == 0 {
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusTooManyRequests, "rate_limit_exceeded", "Too many requests")
		return
	}

	if s.cfg.Latency > 0 {
		s.sleep(r.Context(), s.cfg.Latency)
	}

	to := req.To[0]
	if matchesDomain(to, s.cfg.FailDomain) {
		writeError(w, http.StatusUnprocessableEntity, "validation_error", "Recipient domain is not allowed")
		return
	}

	id := uuid.NewString()
	writeJSON(w, http.StatusOK, map[string]string{"id": id})

	if s.cfg.WebhookURL != "" {
		eventType := "email.delivered"
		if matchesDomain(to, s.cfg.BounceDomain) {
			eventType = "email.bounced"
		}
		s.deliver(func() { s.sendWebhook(context.Background(), eventType, id, req) })
	}
}

func (s *server) sendWebhook(ctx context.Context, eventType, id string, req resend.SendRequest) {
	s.sleep(ctx, s.cfg.WebhookDelay)

	ev := resend.WebhookEvent{
		Type:      eventType,
		CreatedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Data:      resend.WebhookData{EmailID: id, To: req.To, Subject: req.Subject},
	}
	if eventType == "email.bounced" {
		ev.Data.Bounce = &resend.WebhookBounce{Type: "hard"}
	}
	body, _ := json.Marshal(ev)

	attempts := max(s.cfg.WebhookMaxRetries, 0) + 1
	for attempt := 0; attempt < attempts; attempt++ {
		status, err := s.postWebhook(ctx, body)
		if err == nil && status >= 200 && status < 300 {
			return
		}
		if err == nil && !retryableStatus(status) {
			slog.Error("mock webhook post non-retryable", "url", s.cfg.WebhookURL, "attempt", attempt+1, "status", status)
			return
		}
		if attempt == attempts-1 {
			slog.Error("mock webhook post failed", "url", s.cfg.WebhookURL, "attempt", attempt+1, "status", status, "err", err)
			return
		}
		wait := (250 * time.Millisecond) << attempt
		slog.Warn("mock webhook post retrying", "url", s.cfg.WebhookURL, "attempt", attempt+1, "status", status, "wait_ms", wait.Milliseconds())
		s.sleep(ctx, wait)
	}
}

func (s *server) postWebhook(ctx context.Context, body []byte) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.WebhookSecret != "" {
		req.Header.Set(resend.SignatureHeader, resend.Sign(s.cfg.WebhookSecret, body))
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	_ = resp.Body.Close()
	return resp.StatusCode, nil
}

func retryableStatus(code int) bool {
	switch code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

func matchesDomain(addr, domain string) bool {
	if domain == "" {
		return false
	}
	at := strings.LastIndexByte(addr, '@')
	return at >= 0 && strings.EqualFold(strings.TrimSpace(addr[at+1:]), domain)
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func writeError(w http.ResponseWriter, status int, name, msg string) {
	writeJSON(w, status, errorBody{StatusCode: status, Name: name, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Debug("mock esp write failed", "err", err)
	}
}
