package domain

import (
	"errors"
	"strings"
	"time"
)

type CampaignStatus string

const (
	StatusDraft     CampaignStatus = "draft"
	StatusScheduled CampaignStatus = "scheduled"
	StatusSending   CampaignStatus = "sending"
	StatusSent      CampaignStatus = "sent"
	StatusPaused    CampaignStatus = "paused"
)

type RecipientType string

const (
	RecipientsAll      RecipientType = "all"
	RecipientsFiltered RecipientType = "filtered"
	RecipientsSelected RecipientType = "selected"
	RecipientsCustom   RecipientType = "custom"
)

// Recipient is materialized per send and never stored. Custom-list
// recipients carry negative ids.
type Recipient struct {
	ID        int64  `json:"id"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	OptedOut  bool   `json:"optedOut"`
}

func (r Recipient) FullName() string {
	return strings.TrimSpace(r.FirstName + " " + r.LastName)
}

// Customer is a record from the enquiry/customer store.
type Customer struct {
	ID              int64
	FirstName       string
	LastName        string
	Email           string
	DoNotEmail      bool
	State           string
	Rating          string
	Status          string
	ProductInterest []string
	Nationality     string
	Source          string
}

type Filters struct {
	State           string `json:"state,omitempty"`
	Rating          string `json:"rating,omitempty"`
	Status          string `json:"status,omitempty"`
	ProductInterest string `json:"productInterest,omitempty"`
	Nationality     string `json:"nationality,omitempty"`
	Source          string `json:"source,omitempty"`
}

type Campaign struct {
	ID             string         `json:"id"`
	Name           string         `json:"name"`
	TemplateID     string         `json:"templateId"`
	Subject        string         `json:"subject"`
	RecipientType  RecipientType  `json:"recipientType"`
	Status         CampaignStatus `json:"status"`
	RecipientCount int            `json:"recipientCount"`
	SentCount      int            `json:"sentCount"`
	SentAt         *time.Time     `json:"sentAt"`
	CustomEmails   string         `json:"customEmails,omitempty"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

type SendFailure struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

type SendResult struct {
	TotalRecipients int           `json:"totalRecipients"`
	SuccessCount    int           `json:"successCount"`
	FailureCount    int           `json:"failureCount"`
	Failures        []SendFailure `json:"failures"`
}

type SendCampaignRequest struct {
	Name             string          `json:"name"`
	TemplateID       string          `json:"templateId"`
	CampaignID       string          `json:"campaignId,omitempty"`
	TemplateName     string          `json:"templateName,omitempty"`
	Subject          string          `json:"subject"`
	HTMLContent      string          `json:"htmlContent"`
	TextContent      string          `json:"textContent"`
	RecipientType    RecipientType   `json:"recipientType"`
	CustomerIDs      []int64         `json:"customerIds,omitempty"`
	CustomEmails     string          `json:"customEmails,omitempty"`
	TemplateElements []EditorElement `json:"templateElements,omitempty"`
	CanvasSettings   *CanvasSettings `json:"canvasSettings,omitempty"`
	Filters          *Filters        `json:"filters,omitempty"`
}

func (r SendCampaignRequest) Validate() error {
	if r.Name == "" || r.TemplateID == "" || r.Subject == "" || r.HTMLContent == "" {
		return ErrMissingFields
	}
	switch r.RecipientType {
	case "", RecipientsAll, RecipientsFiltered, RecipientsSelected, RecipientsCustom:
		return nil
	}
	return ErrInvalidRecipientType
}

type SendCampaignResponse struct {
	Success  bool       `json:"success"`
	Results  SendResult `json:"results"`
	Campaign *Campaign  `json:"campaign,omitempty"`
	Message  string     `json:"message"`
}

var (
	ErrMissingFields        = errors.New("missing required fields: name, templateId, subject, htmlContent")
	ErrInvalidRecipientType = errors.New("invalid recipientType")
	ErrNoEligibleRecipients = errors.New("no eligible customers found for this campaign")
	ErrTooManyRecipients    = errors.New("campaign too large")
	ErrCampaignBusy         = errors.New("campaign send already in progress")
	ErrCampaignNotFound     = errors.New("campaign not found")
	ErrNotConfigured        = errors.New("email service not configured")
	ErrDependency           = errors.New("dependency error")
)
