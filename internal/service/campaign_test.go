package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailout/internal/dispatch"
	"mailout/internal/domain"
	"mailout/internal/esp"
	"mailout/internal/lock"
	"mailout/internal/personalize"
	sqsqueue "mailout/internal/queue/sqs"
	"mailout/internal/recipients"
	"mailout/internal/render"
	"mailout/internal/store"
	"mailout/internal/tracking"
	"mailout/internal/worker"
)

var fixedNow = time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)

type noSleep struct{}

func (noSleep) Now() time.Time                              { return fixedNow }
func (noSleep) Sleep(context.Context, time.Duration) error { return nil }

type fakeSender struct {
	mu   sync.Mutex
	sent []esp.Message
	fail map[string]error
}

func (f *fakeSender) Name() string { return "fake" }

func (f *fakeSender) Send(_ context.Context, msg esp.Message) (esp.Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	if err := f.fail[msg.To]; err != nil {
		return esp.Result{}, err
	}
	return esp.Result{ID: "msg-" + msg.To, HTTPStatus: 200}, nil
}

func (f *fakeSender) byRecipient() map[string]esp.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := map[string]esp.Message{}
	for _, m := range f.sent {
		out[m.To] = m
	}
	return out
}

type fakeCampaigns struct {
	mu        sync.Mutex
	campaigns map[string]domain.Campaign
	lookupErr error
	recordErr error
	sending   []store.CampaignSending
	sent      []store.CampaignSent
	reverted  []string
}

func newFakeCampaigns() *fakeCampaigns {
	return &fakeCampaigns{campaigns: map[string]domain.Campaign{}}
}

func (f *fakeCampaigns) CreateCampaign(_ context.Context, c domain.Campaign) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.campaigns[c.ID] = c
	return nil
}

func (f *fakeCampaigns) GetCampaign(_ context.Context, id string) (domain.Campaign, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lookupErr != nil {
		return domain.Campaign{}, false, f.lookupErr
	}
	c, ok := f.campaigns[id]
	return c, ok, nil
}

func (f *fakeCampaigns) MarkSending(_ context.Context, in store.CampaignSending) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sending = append(f.sending, in)
	return f.recordErr
}

func (f *fakeCampaigns) MarkSent(_ context.Context, in store.CampaignSent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, in)
	return f.recordErr
}

func (f *fakeCampaigns) RevertToDraft(_ context.Context, id string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reverted = append(f.reverted, id)
	return f.recordErr
}

type fakeCustomers struct {
	customers []domain.Customer
	err       error
}

func (f *fakeCustomers) List(context.Context) ([]domain.Customer, error) {
	return f.customers, f.err
}

type fakeQueue struct {
	events []sqsqueue.RecordEvent
}

func (f *fakeQueue) PublishRecord(_ context.Context, ev sqsqueue.RecordEvent) error {
	f.events = append(f.events, ev)
	return nil
}

type harness struct {
	svc       *CampaignService
	sender    *fakeSender
	campaigns *fakeCampaigns
	customers *fakeCustomers
	locks     *lock.Memory
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		sender:    &fakeSender{fail: map[string]error{}},
		campaigns: newFakeCampaigns(),
		customers: &fakeCustomers{customers: []domain.Customer{
			{ID: 1, FirstName: "Ada", LastName: "Lovelace", Email: "ada@gmail.com"},
			{ID: 2, FirstName: "Clara", LastName: "Schumann", Email: "clara@outlook.com"},
			{ID: 3, FirstName: "Glenn", LastName: "Gould", Email: "glenn@example.com"},
		}},
		locks: lock.NewMemory(),
	}
	h.svc = &CampaignService{
		Campaigns:  h.campaigns,
		Resolver:   &recipients.Resolver{Customers: h.customers},
		Dispatcher: &dispatch.Engine{Sender: h.sender, Clock: noSleep{}},
		Locks:      h.locks,
		Recorder:   &worker.Processor{Store: h.campaigns},

		Renderer:     &render.Renderer{},
		Classifier:   render.NewDomainClassifier(),
		Personalizer: personalize.Personalizer{EscapeHTML: true},
		Injector: &tracking.Injector{
			URLs:      tracking.URLs{BaseURL: "https://crm.example.com"},
			OrgDomain: "example.com",
		},

		Provider: "fake",
		From:     "noreply@example.com",
		ReplyTo:  "info@example.com",
		Now:      func() time.Time { return fixedNow },
	}
	return h
}

func baseRequest() domain.SendCampaignRequest {
	return domain.SendCampaignRequest{
		Name:          "Spring Recital",
		TemplateID:    "tpl_1",
		Subject:       "Hi {{firstName}}",
		HTMLContent:   `<html><body><p>Hello {{fullName}}</p><a href="https://example.com/tickets">Tickets</a></body></html>`,
		TextContent:   "Hello {{firstName}}",
		RecipientType: domain.RecipientsAll,
	}
}

func TestSendAllSucceed(t *testing.T) {
	h := newHarness(t)

	resp, err := h.svc.Send(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, domain.SendResult{TotalRecipients: 3, SuccessCount: 3, Failures: []domain.SendFailure{}}, resp.Results)
	assert.Equal(t, "Campaign sent to 3 of 3 recipients", resp.Message)

	require.NotNil(t, resp.Campaign)
	assert.True(t, strings.HasPrefix(resp.Campaign.ID, "cmp_"))
	assert.Equal(t, domain.StatusSent, resp.Campaign.Status)
	assert.Equal(t, 3, resp.Campaign.SentCount)
	require.NotNil(t, resp.Campaign.SentAt)

	assert.Equal(t, []store.CampaignSending{{ID: resp.Campaign.ID, RecipientCount: 3, Now: fixedNow}}, h.campaigns.sending)
	assert.Equal(t, []store.CampaignSent{{ID: resp.Campaign.ID, SentCount: 3, SentAt: fixedNow}}, h.campaigns.sent)
	assert.Empty(t, h.campaigns.reverted)

	_, created := h.campaigns.campaigns[resp.Campaign.ID]
	assert.True(t, created, "ad-hoc send creates a draft row")
}

func TestSendAllFailRevertsToDraft(t *testing.T) {
	h := newHarness(t)
	for _, c := range h.customers.customers {
		h.sender.fail[c.Email] = &esp.SendError{Provider: "fake", HTTPStatus: 422, Message: "invalid recipient"}
	}

	resp, err := h.svc.Send(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.False(t, resp.Success)
	assert.Equal(t, 3, resp.Results.FailureCount)
	assert.Len(t, resp.Results.Failures, 3)
	assert.Equal(t, "Campaign sent to 0 of 3 recipients", resp.Message)
	assert.Equal(t, domain.StatusDraft, resp.Campaign.Status)
	assert.Nil(t, resp.Campaign.SentAt)
	assert.Zero(t, resp.Campaign.SentCount)

	assert.Empty(t, h.campaigns.sent)
	assert.Equal(t, []string{resp.Campaign.ID}, h.campaigns.reverted)
}

func TestSendPartialFailure(t *testing.T) {
	h := newHarness(t)
	h.sender.fail["glenn@example.com"] = &esp.SendError{Provider: "fake", HTTPStatus: 422, Message: "rejected"}

	resp, err := h.svc.Send(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.True(t, resp.Success)
	assert.Equal(t, 2, resp.Results.SuccessCount)
	require.Len(t, resp.Results.Failures, 1)
	assert.Equal(t, "glenn@example.com", resp.Results.Failures[0].Email)
	assert.Equal(t, "Campaign sent to 2 of 3 recipients", resp.Message)
}

func TestSendBuildsPersonalizedTrackedMessages(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Send(context.Background(), baseRequest())
	require.NoError(t, err)

	msgs := h.sender.byRecipient()
	ada := msgs["ada@gmail.com"]
	assert.Equal(t, "noreply@example.com", ada.From)
	assert.Equal(t, "info@example.com", ada.ReplyTo)
	assert.Equal(t, "Hi Ada", ada.Subject)
	assert.Equal(t, "Hello Ada", ada.Text)
	assert.Contains(t, ada.HTML, "Hello Ada Lovelace")
	assert.Contains(t, ada.HTML, tracking.OpenPath)
	assert.Contains(t, ada.HTML, tracking.ClickPath)
	assert.NotContains(t, ada.HTML, `href="https://example.com/tickets"`)
	assert.NotEmpty(t, ada.Tags["campaign_id"])
}

func TestSendRendersPerClientProfile(t *testing.T) {
	h := newHarness(t)
	req := baseRequest()
	req.CanvasSettings = &domain.CanvasSettings{Width: 600, Height: 400}
	req.TemplateElements = []domain.EditorElement{{
		ID: "t", Type: domain.ElementText, Content: "Dear {{firstName}}",
		Style: domain.ElementStyle{Position: &domain.Position{X: 0, Y: 0}, Width: 600, Height: 40},
	}}

	_, err := h.svc.Send(context.Background(), req)
	require.NoError(t, err)

	msgs := h.sender.byRecipient()
	gmail, outlook := msgs["ada@gmail.com"].HTML, msgs["clara@outlook.com"].HTML
	assert.Contains(t, gmail, "Dear Ada")
	assert.Contains(t, outlook, "Dear Clara")
	assert.NotContains(t, gmail, "urn:schemas-microsoft-com:vml")
	assert.Contains(t, outlook, "urn:schemas-microsoft-com:vml")
	assert.NotContains(t, gmail, "Hello {{fullName}}", "stored html is only the fallback")
}

func TestSendRejections(t *testing.T) {
	t.Run("not configured", func(t *testing.T) {
		h := newHarness(t)
		h.svc.CredentialMissing = "RESEND_API_KEY"
		_, err := h.svc.Send(context.Background(), baseRequest())
		assert.ErrorIs(t, err, domain.ErrNotConfigured)
		assert.ErrorContains(t, err, "RESEND_API_KEY")
	})

	t.Run("missing fields", func(t *testing.T) {
		h := newHarness(t)
		req := baseRequest()
		req.HTMLContent = ""
		_, err := h.svc.Send(context.Background(), req)
		assert.ErrorIs(t, err, domain.ErrMissingFields)
	})

	t.Run("no eligible recipients", func(t *testing.T) {
		h := newHarness(t)
		for i := range h.customers.customers {
			h.customers.customers[i].DoNotEmail = true
		}
		_, err := h.svc.Send(context.Background(), baseRequest())
		assert.ErrorIs(t, err, domain.ErrNoEligibleRecipients)
	})

	t.Run("customer store down", func(t *testing.T) {
		h := newHarness(t)
		h.customers.err = errors.New("503")
		_, err := h.svc.Send(context.Background(), baseRequest())
		assert.ErrorIs(t, err, domain.ErrDependency)
	})

	t.Run("unknown campaign", func(t *testing.T) {
		h := newHarness(t)
		req := baseRequest()
		req.CampaignID = "cmp_missing"
		_, err := h.svc.Send(context.Background(), req)
		assert.ErrorIs(t, err, domain.ErrCampaignNotFound)
		assert.Empty(t, h.sender.sent)
	})
}

func TestSendRejectsOverCapBeforeSending(t *testing.T) {
	h := newHarness(t)

	emails := make([]string, 1001)
	for i := range emails {
		emails[i] = fmt.Sprintf("user%d@example.com", i)
	}
	req := baseRequest()
	req.RecipientType = domain.RecipientsCustom
	req.CustomEmails = strings.Join(emails, ",")

	_, err := h.svc.Send(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrTooManyRecipients)
	assert.Empty(t, h.sender.sent)
	assert.Empty(t, h.campaigns.sending)
}

func TestSendExistingCampaignIsLocked(t *testing.T) {
	h := newHarness(t)
	h.campaigns.campaigns["cmp_1"] = domain.Campaign{ID: "cmp_1", Name: "Spring Recital", Status: domain.StatusDraft}

	lease, err := h.locks.Acquire(context.Background(), "cmp_1")
	require.NoError(t, err)

	req := baseRequest()
	req.CampaignID = "cmp_1"
	_, err = h.svc.Send(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrCampaignBusy)
	assert.Empty(t, h.sender.sent)

	require.NoError(t, lease.Release(context.Background()))
	resp, err := h.svc.Send(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "cmp_1", resp.Campaign.ID)

	// The lock is released after the send.
	again, err := h.locks.Acquire(context.Background(), "cmp_1")
	require.NoError(t, err)
	require.NoError(t, again.Release(context.Background()))
}

func TestSendCampaignLookupFailureStillSends(t *testing.T) {
	h := newHarness(t)
	h.campaigns.lookupErr = errors.New("db down")

	req := baseRequest()
	req.CampaignID = "cmp_1"
	resp, err := h.svc.Send(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 3, resp.Results.SuccessCount)
	assert.Equal(t, "cmp_1", resp.Campaign.ID)
}

func TestSendQueuesFailedBookkeeping(t *testing.T) {
	h := newHarness(t)
	h.campaigns.recordErr = errors.New("connection reset")
	q := &fakeQueue{}
	h.svc.RecordQueue = q

	resp, err := h.svc.Send(context.Background(), baseRequest())
	require.NoError(t, err, "bookkeeping failures do not fail the send")
	assert.True(t, resp.Success)

	require.Len(t, q.events, 2)
	assert.Equal(t, sqsqueue.RecordSending, q.events[0].Kind)
	assert.Equal(t, 3, q.events[0].RecipientCount)
	assert.Equal(t, sqsqueue.RecordSent, q.events[1].Kind)
	assert.Equal(t, 3, q.events[1].SentCount)
	assert.Equal(t, q.events[0].SendID, q.events[1].SendID)
	assert.Equal(t, resp.Campaign.ID, q.events[1].CampaignID)
}

func TestStatus(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, Status{Configured: true, Provider: "fake", From: "noreply@example.com"}, h.svc.Status())

	h.svc.CredentialMissing = "RESEND_API_KEY"
	st := h.svc.Status()
	assert.False(t, st.Configured)
	assert.Equal(t, "RESEND_API_KEY", st.Missing)
}
