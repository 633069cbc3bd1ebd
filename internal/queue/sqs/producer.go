package sqsqueue

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sqs"
)

// Record event kinds.
const (
	RecordSending  = "sending"
	RecordSent     = "sent"
	RecordReverted = "reverted"
)

// RecordEvent is campaign bookkeeping that could not be written inline
// and is retried by the recorder.
type RecordEvent struct {
	Kind           string    `json:"kind"`
	CampaignID     string    `json:"campaignId"`
	SendID         string    `json:"sendId"`
	RecipientCount int       `json:"recipientCount,omitempty"`
	SentCount      int       `json:"sentCount,omitempty"`
	OccurredAt     time.Time `json:"occurredAt"`
}

// API is the subset of the SQS client used here.
type API interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
}

type Producer struct {
	SQS      API
	QueueURL string
}

func (p *Producer) PublishRecord(ctx context.Context, ev RecordEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	in := &sqs.SendMessageInput{
		QueueUrl:    &p.QueueURL,
		MessageBody: str(string(body)),
	}
	if strings.HasSuffix(p.QueueURL, ".fifo") {
		// events for one campaign apply in order
		in.MessageGroupId = str(ev.CampaignID)
		in.MessageDeduplicationId = str(ev.SendID + ":" + ev.Kind)
	}
	_, err = p.SQS.SendMessage(ctx, in)
	return err
}

func str(s string) *string { return &s }
