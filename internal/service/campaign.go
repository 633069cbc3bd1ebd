package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"mailout/internal/dispatch"
	"mailout/internal/domain"
	"mailout/internal/esp"
	"mailout/internal/lock"
	"mailout/internal/observability"
	"mailout/internal/personalize"
	sqsqueue "mailout/internal/queue/sqs"
	"mailout/internal/recipients"
	"mailout/internal/render"
	"mailout/internal/tracking"
	"mailout/internal/util"
)

const DefaultMaxRecipients = 1000

type CampaignStore interface {
	CreateCampaign(ctx context.Context, c domain.Campaign) error
	GetCampaign(ctx context.Context, id string) (domain.Campaign, bool, error)
}

type Resolver interface {
	Resolve(ctx context.Context, sel recipients.Selection) ([]domain.Recipient, error)
}

type Dispatcher interface {
	Dispatch(ctx context.Context, rs []domain.Recipient, b dispatch.Builder) dispatch.Report
}

// Recorder applies bookkeeping events; worker.Processor in production.
type Recorder interface {
	Process(ctx context.Context, ev sqsqueue.RecordEvent) error
}

type RecordPublisher interface {
	PublishRecord(ctx context.Context, ev sqsqueue.RecordEvent) error
}

type CampaignService struct {
	Campaigns  CampaignStore
	Resolver   Resolver
	Dispatcher Dispatcher
	Locks      lock.Locker
	Recorder   Recorder
	// RecordQueue is optional; failed bookkeeping is only logged without it.
	RecordQueue RecordPublisher

	Renderer     *render.Renderer
	Classifier   render.ClientClassifier
	Personalizer personalize.Personalizer
	Injector     *tracking.Injector

	// Provider names the active ESP; an empty CredentialMissing means the
	// ESP is usable.
	Provider          string
	CredentialMissing string

	From          string
	ReplyTo       string
	MaxRecipients int
	Now           func() time.Time
}

// Status reports whether the send path is usable, for the GET probe.
type Status struct {
	Configured bool   `json:"configured"`
	Provider   string `json:"provider"`
	Missing    string `json:"missing,omitempty"`
	From       string `json:"from"`
}

func (s *CampaignService) Status() Status {
	return Status{Configured: s.CredentialMissing == "", Provider: s.Provider, Missing: s.CredentialMissing, From: s.From}
}

func (s *CampaignService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return util.NowUTC()
}

func (s *CampaignService) maxRecipients() int {
	if s.MaxRecipients > 0 {
		return s.MaxRecipients
	}
	return DefaultMaxRecipients
}

// Send resolves the audience, mails every recipient and records the
// outcome on the campaign. Once dispatch starts the request's own
// cancellation is ignored; bookkeeping failures never fail the call.
func (s *CampaignService) Send(ctx context.Context, req domain.SendCampaignRequest) (domain.SendCampaignResponse, error) {
	if s.CredentialMissing != "" {
		return domain.SendCampaignResponse{}, fmt.Errorf("%w: missing %s", domain.ErrNotConfigured, s.CredentialMissing)
	}
	if err := req.Validate(); err != nil {
		return domain.SendCampaignResponse{}, err
	}
	if req.RecipientType == "" {
		req.RecipientType = domain.RecipientsAll
	}

	rs, err := s.Resolver.Resolve(ctx, recipients.Selection{
		Type:         req.RecipientType,
		CustomerIDs:  req.CustomerIDs,
		Filters:      req.Filters,
		CustomEmails: req.CustomEmails,
	})
	if err != nil {
		return domain.SendCampaignResponse{}, err
	}
	if len(rs) == 0 {
		return domain.SendCampaignResponse{}, domain.ErrNoEligibleRecipients
	}
	if limit := s.maxRecipients(); len(rs) > limit {
		return domain.SendCampaignResponse{}, fmt.Errorf("%w: maximum %d recipients per campaign, got %d", domain.ErrTooManyRecipients, limit, len(rs))
	}

	camp, err := s.campaign(ctx, req)
	if err != nil {
		return domain.SendCampaignResponse{}, err
	}

	lease, err := s.Locks.Acquire(ctx, camp.ID)
	if errors.Is(err, lock.ErrLocked) {
		return domain.SendCampaignResponse{}, fmt.Errorf("%w: %s", domain.ErrCampaignBusy, camp.ID)
	}
	if err != nil {
		return domain.SendCampaignResponse{}, fmt.Errorf("%w: acquire campaign lock: %v", domain.ErrDependency, err)
	}
	// The send outlives the request; so does the lock.
	ctx = context.WithoutCancel(ctx)
	defer func() {
		if err := lease.Release(ctx); err != nil {
			slog.Warn("release campaign lock failed", "campaign_id", camp.ID, "err", err)
		}
	}()

	sendID := util.NewSendID()
	log := slog.With("campaign_id", camp.ID, "send_id", sendID)
	observability.CampaignRecipients.Observe(float64(len(rs)))
	log.Info("campaign send started", "recipients", len(rs), "provider", s.Provider)

	started := s.now()
	s.record(ctx, sqsqueue.RecordEvent{
		Kind: sqsqueue.RecordSending, CampaignID: camp.ID, SendID: sendID,
		RecipientCount: len(rs), OccurredAt: started,
	})
	camp.Status = domain.StatusSending
	camp.RecipientCount = len(rs)
	camp.SentAt = nil

	report := s.Dispatcher.Dispatch(ctx, rs, s.builder(req, camp.ID))
	res := report.Result

	finished := s.now()
	camp.UpdatedAt = finished
	if res.SuccessCount > 0 {
		s.record(ctx, sqsqueue.RecordEvent{
			Kind: sqsqueue.RecordSent, CampaignID: camp.ID, SendID: sendID,
			SentCount: res.SuccessCount, OccurredAt: finished,
		})
		camp.Status = domain.StatusSent
		camp.SentCount = res.SuccessCount
		camp.SentAt = &finished
	} else {
		s.record(ctx, sqsqueue.RecordEvent{
			Kind: sqsqueue.RecordReverted, CampaignID: camp.ID, SendID: sendID, OccurredAt: finished,
		})
		camp.Status = domain.StatusDraft
	}

	outcome := "sent"
	switch {
	case res.SuccessCount == 0:
		outcome = "failed"
	case res.FailureCount > 0:
		outcome = "partial"
	}
	observability.CampaignSends.WithLabelValues(outcome).Inc()
	log.Info("campaign send finished",
		"total", res.TotalRecipients,
		"success", res.SuccessCount,
		"failed", res.FailureCount,
		"duration", finished.Sub(started),
	)

	return domain.SendCampaignResponse{
		Success:  res.SuccessCount > 0,
		Results:  res,
		Campaign: &camp,
		Message:  fmt.Sprintf("Campaign sent to %d of %d recipients", res.SuccessCount, res.TotalRecipients),
	}, nil
}

// campaign loads the named campaign or creates a draft for an ad-hoc send.
func (s *CampaignService) campaign(ctx context.Context, req domain.SendCampaignRequest) (domain.Campaign, error) {
	now := s.now()
	if req.CampaignID != "" {
		c, found, err := s.Campaigns.GetCampaign(ctx, req.CampaignID)
		if err != nil {
			// Mail still goes out; the record stage will retry against the row.
			slog.Error("campaign lookup failed, continuing", "campaign_id", req.CampaignID, "err", err)
			return domain.Campaign{
				ID: req.CampaignID, Name: req.Name, TemplateID: req.TemplateID, Subject: req.Subject,
				RecipientType: req.RecipientType, Status: domain.StatusDraft, UpdatedAt: now,
			}, nil
		}
		if !found {
			return domain.Campaign{}, fmt.Errorf("%w: %s", domain.ErrCampaignNotFound, req.CampaignID)
		}
		return c, nil
	}

	c := domain.Campaign{
		ID:            util.NewCampaignID(),
		Name:          req.Name,
		TemplateID:    req.TemplateID,
		Subject:       req.Subject,
		RecipientType: req.RecipientType,
		Status:        domain.StatusDraft,
		CustomEmails:  req.CustomEmails,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.Campaigns.CreateCampaign(ctx, c); err != nil {
		return domain.Campaign{}, fmt.Errorf("%w: create campaign: %v", domain.ErrDependency, err)
	}
	return c, nil
}

// record applies ev inline and hands it to the record queue on failure.
func (s *CampaignService) record(ctx context.Context, ev sqsqueue.RecordEvent) {
	err := s.Recorder.Process(ctx, ev)
	if err == nil {
		return
	}
	observability.RecordFailures.WithLabelValues(ev.Kind).Inc()
	slog.Error("campaign bookkeeping failed", "kind", ev.Kind, "campaign_id", ev.CampaignID, "send_id", ev.SendID, "err", err)

	if s.RecordQueue == nil {
		return
	}
	if qerr := s.RecordQueue.PublishRecord(ctx, ev); qerr != nil {
		observability.RecordEvents.WithLabelValues("publish_error").Inc()
		slog.Error("queue bookkeeping event failed", "kind", ev.Kind, "campaign_id", ev.CampaignID, "err", qerr)
		return
	}
	observability.RecordEvents.WithLabelValues("published").Inc()
}

// builder renders the template once per client profile and then
// personalizes and tracks each copy.
func (s *CampaignService) builder(req domain.SendCampaignRequest, campaignID string) dispatch.Builder {
	tpl := render.Template{
		Name:         first(req.TemplateName, req.Name),
		Elements:     req.TemplateElements,
		Canvas:       req.CanvasSettings,
		FallbackHTML: req.HTMLContent,
	}

	var mu sync.Mutex
	rendered := map[string]string{}
	htmlFor := func(ctx context.Context, email string) string {
		if len(tpl.Elements) == 0 || s.Renderer == nil || s.Classifier == nil {
			return tpl.FallbackHTML
		}
		profile := s.Classifier.Classify(email)
		mu.Lock()
		defer mu.Unlock()
		if out, ok := rendered[profile.Name]; ok {
			return out
		}
		out := s.Renderer.Render(ctx, tpl, profile).HTML
		rendered[profile.Name] = out
		return out
	}

	return dispatch.BuilderFunc(func(ctx context.Context, r domain.Recipient) (esp.Message, error) {
		c := s.Personalizer.Apply(personalize.Content{
			Subject: req.Subject,
			HTML:    htmlFor(ctx, r.Email),
			Text:    req.TextContent,
		}, r)
		if s.Injector != nil {
			c.HTML = s.Injector.Inject(c.HTML, campaignID, r.Email)
		}
		return esp.Message{
			From:    s.From,
			To:      r.Email,
			ReplyTo: s.ReplyTo,
			Subject: c.Subject,
			HTML:    c.HTML,
			Text:    c.Text,
			Tags:    map[string]string{"campaign_id": campaignID},
		}, nil
	})
}

func first(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
