package resend

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body.
const SignatureHeader = "x-resend-signature"

func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

func VerifySignature(secret string, body []byte, provided string) bool {
	expected := Sign(secret, body)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(provided))))
}

type WebhookEvent struct {
	Type      string      `json:"type"`
	CreatedAt string      `json:"created_at"`
	Data      WebhookData `json:"data"`
}

type WebhookData struct {
	EmailID    string          `json:"email_id"`
	MessageID  string          `json:"message_id"`
	To         []string        `json:"to"`
	Email      string          `json:"email"`
	Subject    string          `json:"subject"`
	BounceType string          `json:"bounce_type"`
	Bounce     *WebhookBounce  `json:"bounce,omitempty"`
	Click      json.RawMessage `json:"click,omitempty"`
}

type WebhookBounce struct {
	Type string `json:"type"`
}

func (e WebhookEvent) MessageID() string {
	if e.Data.EmailID != "" {
		return e.Data.EmailID
	}
	return e.Data.MessageID
}

func (e WebhookEvent) Recipient() string {
	if e.Data.Email != "" {
		return e.Data.Email
	}
	if len(e.Data.To) > 0 {
		return e.Data.To[0]
	}
	return ""
}

// HardBounce covers both the flat bounce_type field and the nested bounce
// object used by newer payloads.
func (e WebhookEvent) HardBounce() bool {
	if strings.EqualFold(e.Data.BounceType, "hard") {
		return true
	}
	return e.Data.Bounce != nil && (strings.EqualFold(e.Data.Bounce.Type, "hard") || strings.EqualFold(e.Data.Bounce.Type, "permanent"))
}

func (e WebhookEvent) OccurredAt() *time.Time {
	if e.CreatedAt == "" {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, e.CreatedAt)
	if err != nil {
		return nil
	}
	t = t.UTC()
	return &t
}
