package main

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailout/internal/config"
	"mailout/internal/esp"
	"mailout/internal/providers/resend"
)

func startMock(t *testing.T, cfg config.MockESPConfig) (*server, *resend.Client) {
	t.Helper()
	if cfg.APIKey == "" {
		cfg.APIKey = "re_mock"
	}
	s := newServer(cfg)
	s.sleep = func(context.Context, time.Duration) {}
	s.deliver = func(f func()) { f() }
	ts := httptest.NewServer(s.routes())
	t.Cleanup(ts.Close)
	return s, &resend.Client{APIKey: cfg.APIKey, BaseURL: ts.URL, HTTP: ts.Client()}
}

func msg(to string) esp.Message {
	return esp.Message{From: "noreply@steinway.com.au", To: to, Subject: "Spring recital"}
}

func TestMockAcceptsSend(t *testing.T) {
	_, client := startMock(t, config.MockESPConfig{})

	res, err := client.Send(context.Background(), msg("ana@example.com"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.HTTPStatus)
	assert.Len(t, res.ID, 36)
}

func TestMockRejectsBadKey(t *testing.T) {
	_, client := startMock(t, config.MockESPConfig{})
	client.APIKey = "re_wrong"

	_, err := client.Send(context.Background(), msg("ana@example.com"))
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, esp.StatusOf(err))
}

func TestMockRateLimitsEveryNth(t *testing.T) {
	_, client := startMock(t, config.MockESPConfig{RateLimitEvery: 3})

	var limited []int
	for i := 1; i <= 6; i++ {
		_, err := client.Send(context.Background(), msg("ana@example.com"))
		if err != nil {
			assert.True(t, esp.IsRateLimited(err))
			limited = append(limited, i)
		}
	}
	assert.Equal(t, []int{3, 6}, limited)
}

func TestMockFailDomain(t *testing.T) {
	_, client := startMock(t, config.MockESPConfig{FailDomain: "blocked.test"})

	_, err := client.Send(context.Background(), msg("Bob@BLOCKED.test"))
	require.Error(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, esp.StatusOf(err))
	assert.False(t, esp.IsRateLimited(err))
}

func TestMockValidatesBody(t *testing.T) {
	_, client := startMock(t, config.MockESPConfig{})

	_, err := client.Send(context.Background(), esp.Message{To: "ana@example.com"})
	require.Error(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, esp.StatusOf(err))
}

func TestMockPostsSignedWebhook(t *testing.T) {
	type received struct {
		ev    resend.WebhookEvent
		valid bool
	}
	got := make(chan received, 1)
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		var ev resend.WebhookEvent
		_ = json.Unmarshal(body, &ev)
		got <- received{ev: ev, valid: resend.VerifySignature("whsec", body, r.Header.Get(resend.SignatureHeader))}
	}))
	defer hook.Close()

	_, client := startMock(t, config.MockESPConfig{
		WebhookURL:    hook.URL,
		WebhookSecret: "whsec",
		BounceDomain:  "bounce.test",
	})

	res, err := client.Send(context.Background(), msg("gone@bounce.test"))
	require.NoError(t, err)

	r := <-got
	assert.True(t, r.valid)
	assert.Equal(t, "email.bounced", r.ev.Type)
	assert.Equal(t, res.ID, r.ev.MessageID())
	assert.Equal(t, "gone@bounce.test", r.ev.Recipient())
	assert.True(t, r.ev.HardBounce())
}

func TestMockRetriesWebhook(t *testing.T) {
	var calls atomic.Int32
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	_, client := startMock(t, config.MockESPConfig{WebhookURL: hook.URL, WebhookMaxRetries: 3})

	_, err := client.Send(context.Background(), msg("ana@example.com"))
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestMatchesDomain(t *testing.T) {
	assert.True(t, matchesDomain("a@Example.com", "example.com"))
	assert.False(t, matchesDomain("a@example.com", ""))
	assert.False(t, matchesDomain("example.com", "example.com"))
}
