package sqsqueue

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"

	"mailout/internal/observability"
)

const (
	receiveRetryDelay = 500 * time.Millisecond
	deleteTimeout     = 5 * time.Second
)

type Consumer struct {
	SQS      API
	QueueURL string

	WaitTimeSeconds   int32
	MaxMessages       int32
	VisibilityTimeout int32
}

type Handler func(ctx context.Context, ev RecordEvent) error

// Poll handles one message at a time until ctx is canceled.
func (c *Consumer) Poll(ctx context.Context, handler Handler) error {
	return c.PollConcurrent(ctx, 1, handler)
}

// PollConcurrent feeds received messages to a worker pool. A message is
// deleted only after its handler succeeds or when it cannot be decoded;
// failures stay on the queue for redrive.
func (c *Consumer) PollConcurrent(ctx context.Context, workers int, handler Handler) error {
	if workers <= 0 {
		workers = 1
	}
	jobs := make(chan types.Message, workers*2)

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for m := range jobs {
				c.handle(ctx, m, handler)
			}
		}()
	}

	err := c.receive(ctx, jobs)
	close(jobs)
	wg.Wait()
	return err
}

func (c *Consumer) receive(ctx context.Context, jobs chan<- types.Message) error {
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		out, err := c.SQS.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            &c.QueueURL,
			MaxNumberOfMessages: c.MaxMessages,
			WaitTimeSeconds:     c.WaitTimeSeconds,
			VisibilityTimeout:   c.VisibilityTimeout,
		})
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Error("sqs receive message failed", "err", err)
			select {
			case <-time.After(receiveRetryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
			continue
		}
		for _, m := range out.Messages {
			select {
			case jobs <- m:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

func (c *Consumer) handle(ctx context.Context, m types.Message, handler Handler) {
	var ev RecordEvent
	if m.Body == nil || json.Unmarshal([]byte(*m.Body), &ev) != nil {
		observability.RecordEvents.WithLabelValues("poison").Inc()
		slog.Warn("dropping undecodable record event", "message_id", aws.ToString(m.MessageId))
		c.delete(ctx, m)
		return
	}
	if err := handler(ctx, ev); err != nil {
		observability.RecordEvents.WithLabelValues("retry").Inc()
		slog.Error("record event failed, leaving for redrive",
			"campaign_id", ev.CampaignID, "send_id", ev.SendID, "kind", ev.Kind, "err", err)
		return
	}
	observability.RecordEvents.WithLabelValues("applied").Inc()
	c.delete(ctx, m)
}

func (c *Consumer) delete(ctx context.Context, m types.Message) {
	delCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), deleteTimeout)
	defer cancel()
	if _, err := c.SQS.DeleteMessage(delCtx, &sqs.DeleteMessageInput{
		QueueUrl:      &c.QueueURL,
		ReceiptHandle: m.ReceiptHandle,
	}); err != nil {
		slog.Error("sqs delete message failed", "message_id", aws.ToString(m.MessageId), "err", err)
	}
}
