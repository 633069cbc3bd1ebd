package store

import "time"

// CampaignSending marks the start of a send.
type CampaignSending struct {
	ID             string
	RecipientCount int
	Now            time.Time
}

// CampaignSent records a send that reached at least one recipient.
type CampaignSent struct {
	ID        string
	SentCount int
	SentAt    time.Time
}

type TrackingEvent struct {
	CampaignID     string
	EventType      string
	LinkType       string
	TargetURL      string
	RecipientEmail string
	OccurredAt     time.Time
}

type Suppression struct {
	Email  string
	Reason string
	Now    time.Time
}

type DeliveryEvent struct {
	Provider       string
	ProviderMsgID  string
	EventType      string
	RecipientEmail string
	Payload        any
	OccurredAt     *time.Time
}
