package pg

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"mailout/internal/domain"
	"mailout/internal/store"
)

type Store struct {
	DB *pgxpool.Pool
}

func New(db *pgxpool.Pool) *Store { return &Store{DB: db} }

func (s *Store) Ping(ctx context.Context) error { return s.DB.Ping(ctx) }

func (s *Store) CreateCampaign(ctx context.Context, c domain.Campaign) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO campaigns (id, name, template_id, subject, recipient_type, status, recipient_count, sent_count, custom_emails, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
	`, c.ID, c.Name, c.TemplateID, c.Subject, string(c.RecipientType), string(c.Status),
		c.RecipientCount, c.SentCount, nullIfEmpty(c.CustomEmails), c.CreatedAt, c.UpdatedAt)
	return err
}

// GetCampaign reports found=false when no row has the id.
func (s *Store) GetCampaign(ctx context.Context, id string) (domain.Campaign, bool, error) {
	var c domain.Campaign
	var recipientType, status string
	row := s.DB.QueryRow(ctx, `
		SELECT id, name, template_id, subject, recipient_type, status, recipient_count, sent_count,
		       sent_at, COALESCE(custom_emails,''), created_at, updated_at
		FROM campaigns WHERE id=$1
	`, id)
	err := row.Scan(&c.ID, &c.Name, &c.TemplateID, &c.Subject, &recipientType, &status,
		&c.RecipientCount, &c.SentCount, &c.SentAt, &c.CustomEmails, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Campaign{}, false, nil
		}
		return domain.Campaign{}, false, err
	}
	c.RecipientType = domain.RecipientType(recipientType)
	c.Status = domain.CampaignStatus(status)
	return c, true, nil
}

// Lifecycle updates only apply when they are at least as new as the row.
// A replayed event older than the last transition is a no-op, so a queued
// "sending" cannot undo an inline "sent".

func (s *Store) MarkSending(ctx context.Context, in store.CampaignSending) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE campaigns SET status=$2, recipient_count=$3, sent_at=NULL, updated_at=$4
		WHERE id=$1 AND updated_at <= $4
	`, in.ID, string(domain.StatusSending), in.RecipientCount, in.Now)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return s.staleOrMissing(ctx, in.ID)
	}
	return nil
}

func (s *Store) MarkSent(ctx context.Context, in store.CampaignSent) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE campaigns SET status=$2, sent_count=$3, sent_at=$4, updated_at=$4
		WHERE id=$1 AND updated_at <= $4
	`, in.ID, string(domain.StatusSent), in.SentCount, in.SentAt)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return s.staleOrMissing(ctx, in.ID)
	}
	return nil
}

func (s *Store) RevertToDraft(ctx context.Context, id string, now time.Time) error {
	ct, err := s.DB.Exec(ctx, `
		UPDATE campaigns SET status=$2, sent_at=NULL, updated_at=$3
		WHERE id=$1 AND updated_at <= $3
	`, id, string(domain.StatusDraft), now)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return s.staleOrMissing(ctx, id)
	}
	return nil
}

// staleOrMissing tells a skipped out-of-order update apart from a missing row.
func (s *Store) staleOrMissing(ctx context.Context, id string) error {
	var exists bool
	if err := s.DB.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM campaigns WHERE id=$1)`, id).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return domain.ErrCampaignNotFound
	}
	return nil
}

func (s *Store) InsertTrackingEvent(ctx context.Context, in store.TrackingEvent) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO email_tracking (campaign_id, event_type, link_type, target_url, recipient_email, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, in.CampaignID, in.EventType, nullIfEmpty(in.LinkType), nullIfEmpty(in.TargetURL), nullIfEmpty(in.RecipientEmail), in.OccurredAt)
	return err
}

// AddSuppression is idempotent; the first reason recorded for an address
// is kept.
func (s *Store) AddSuppression(ctx context.Context, in store.Suppression) error {
	_, err := s.DB.Exec(ctx, `
		INSERT INTO suppressions (email, reason, created_at) VALUES ($1,$2,$3)
		ON CONFLICT (email) DO NOTHING
	`, strings.ToLower(strings.TrimSpace(in.Email)), in.Reason, in.Now)
	return err
}

func (s *Store) SuppressedSet(ctx context.Context, emails []string) (map[string]bool, error) {
	out := map[string]bool{}
	if len(emails) == 0 {
		return out, nil
	}
	rows, err := s.DB.Query(ctx, `SELECT email FROM suppressions WHERE email = ANY($1)`, emails)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var e string
		if err := rows.Scan(&e); err != nil {
			return nil, err
		}
		out[e] = true
	}
	return out, rows.Err()
}

func (s *Store) InsertDeliveryEvent(ctx context.Context, in store.DeliveryEvent) error {
	b, _ := json.Marshal(in.Payload)
	_, err := s.DB.Exec(ctx, `
		INSERT INTO email_events (provider, provider_msg_id, event_type, recipient_email, payload_json, occurred_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, in.Provider, nullIfEmpty(in.ProviderMsgID), in.EventType, nullIfEmpty(in.RecipientEmail), b, in.OccurredAt)
	return err
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
