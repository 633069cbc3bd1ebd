package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"mailout/internal/observability"
	"mailout/internal/providers/resend"
	"mailout/internal/store"
	"mailout/internal/util"
)

var ErrMissingEmail = errors.New("missing email")

type TrackingStore interface {
	InsertTrackingEvent(ctx context.Context, in store.TrackingEvent) error
	AddSuppression(ctx context.Context, in store.Suppression) error
	InsertDeliveryEvent(ctx context.Context, in store.DeliveryEvent) error
}

// TrackingService records what recipients do with a campaign after it
// was sent: opens, clicks, unsubscribes and provider delivery events.
type TrackingService struct {
	Store TrackingStore
	Now   func() time.Time
}

func (t *TrackingService) now() time.Time {
	if t.Now != nil {
		return t.Now()
	}
	return util.NowUTC()
}

func (t *TrackingService) RecordOpen(ctx context.Context, campaignID, email string) error {
	observability.TrackingEvents.WithLabelValues("open").Inc()
	return t.Store.InsertTrackingEvent(ctx, store.TrackingEvent{
		CampaignID:     campaignID,
		EventType:      "open",
		RecipientEmail: normalizeEmail(email),
		OccurredAt:     t.now(),
	})
}

func (t *TrackingService) RecordClick(ctx context.Context, campaignID, email, linkType, target string) error {
	observability.TrackingEvents.WithLabelValues("click").Inc()
	return t.Store.InsertTrackingEvent(ctx, store.TrackingEvent{
		CampaignID:     campaignID,
		EventType:      "click",
		LinkType:       linkType,
		TargetURL:      target,
		RecipientEmail: normalizeEmail(email),
		OccurredAt:     t.now(),
	})
}

// Unsubscribe adds email to the suppression list and returns the
// normalized address.
func (t *TrackingService) Unsubscribe(ctx context.Context, email string) (string, error) {
	email = normalizeEmail(email)
	if email == "" {
		return "", ErrMissingEmail
	}
	observability.TrackingEvents.WithLabelValues("unsubscribe").Inc()
	if err := t.Store.AddSuppression(ctx, store.Suppression{Email: email, Reason: "unsubscribe", Now: t.now()}); err != nil {
		return "", err
	}
	slog.Info("recipient unsubscribed")
	slog.Debug("unsubscribed address", "email", email)
	return email, nil
}

// HandleResendEvent stores a delivery event and suppresses addresses
// that hard-bounced or complained.
func (t *TrackingService) HandleResendEvent(ctx context.Context, ev resend.WebhookEvent, raw json.RawMessage) error {
	observability.WebhookEvents.WithLabelValues(ev.Type).Inc()

	recipient := normalizeEmail(ev.Recipient())
	if err := t.Store.InsertDeliveryEvent(ctx, store.DeliveryEvent{
		Provider:       "resend",
		ProviderMsgID:  ev.MessageID(),
		EventType:      ev.Type,
		RecipientEmail: recipient,
		Payload:        raw,
		OccurredAt:     ev.OccurredAt(),
	}); err != nil {
		return fmt.Errorf("insert delivery event: %w", err)
	}

	reason := ""
	switch {
	case ev.Type == "email.bounced" && ev.HardBounce():
		reason = "hard_bounce"
	case ev.Type == "email.complained":
		reason = "complaint"
	}
	if reason == "" || recipient == "" {
		return nil
	}
	if err := t.Store.AddSuppression(ctx, store.Suppression{Email: recipient, Reason: reason, Now: t.now()}); err != nil {
		return fmt.Errorf("suppress %s: %w", reason, err)
	}
	slog.Info("address suppressed by provider event", "type", ev.Type, "reason", reason, "provider_msg_id", ev.MessageID())
	return nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
