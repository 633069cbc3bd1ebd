// Package worker applies campaign bookkeeping events, inline after a send
// and from the record queue when the inline write failed.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mailout/internal/domain"
	sqsqueue "mailout/internal/queue/sqs"
	"mailout/internal/store"
)

type Store interface {
	MarkSending(ctx context.Context, in store.CampaignSending) error
	MarkSent(ctx context.Context, in store.CampaignSent) error
	RevertToDraft(ctx context.Context, id string, now time.Time) error
}

type Processor struct {
	Store Store
}

// ErrUnknownKind marks an event that no version of the recorder can apply.
var ErrUnknownKind = errors.New("unknown record event kind")

// Process applies ev. Events for campaigns that no longer exist are
// dropped; any other store error is returned so the event is retried.
func (p *Processor) Process(ctx context.Context, ev sqsqueue.RecordEvent) error {
	var err error
	switch ev.Kind {
	case sqsqueue.RecordSending:
		err = p.Store.MarkSending(ctx, store.CampaignSending{ID: ev.CampaignID, RecipientCount: ev.RecipientCount, Now: ev.OccurredAt})
	case sqsqueue.RecordSent:
		err = p.Store.MarkSent(ctx, store.CampaignSent{ID: ev.CampaignID, SentCount: ev.SentCount, SentAt: ev.OccurredAt})
	case sqsqueue.RecordReverted:
		err = p.Store.RevertToDraft(ctx, ev.CampaignID, ev.OccurredAt)
	default:
		slog.Warn("dropping record event", "kind", ev.Kind, "campaign_id", ev.CampaignID, "err", ErrUnknownKind)
		return nil
	}

	if errors.Is(err, domain.ErrCampaignNotFound) {
		slog.Warn("record event for missing campaign", "kind", ev.Kind, "campaign_id", ev.CampaignID, "send_id", ev.SendID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply %s for %s: %w", ev.Kind, ev.CampaignID, err)
	}
	return nil
}
