package postmark

import (
	"context"
	"fmt"
	"strings"

	"github.com/mrz1836/postmark"

	"mailout/internal/esp"
)

const providerName = "postmark"

type API interface {
	SendEmail(ctx context.Context, email postmark.Email) (postmark.EmailResponse, error)
}

// Sender delivers through Postmark's transactional API. Postmark's own
// open and click tracking stay off; links are already rewritten.
type Sender struct {
	Client API
	Stream string
}

func New(serverToken, accountToken, stream string) *Sender {
	return &Sender{Client: postmark.NewClient(serverToken, accountToken), Stream: stream}
}

func (s *Sender) Name() string { return providerName }

func (s *Sender) Send(ctx context.Context, msg esp.Message) (esp.Result, error) {
	email := postmark.Email{
		From:          msg.From,
		To:            msg.To,
		ReplyTo:       msg.ReplyTo,
		Subject:       msg.Subject,
		HTMLBody:      msg.HTML,
		TextBody:      msg.Text,
		Tag:           msg.Tags["campaign_id"],
		TrackOpens:    false,
		MessageStream: s.Stream,
	}

	resp, err := s.Client.SendEmail(ctx, email)
	if err != nil {
		status := 0
		if strings.Contains(err.Error(), "429") {
			status = 429
		}
		return esp.Result{HTTPStatus: status}, &esp.SendError{Provider: providerName, HTTPStatus: status, Message: err.Error(), Err: err}
	}
	if resp.ErrorCode > 0 {
		// Postmark reports rejections as 422 with an ErrorCode in the body.
		return esp.Result{HTTPStatus: 422}, &esp.SendError{
			Provider:   providerName,
			HTTPStatus: 422,
			Message:    fmt.Sprintf("postmark error %d: %s", resp.ErrorCode, resp.Message),
		}
	}
	return esp.Result{ID: resp.MessageID, HTTPStatus: 200}, nil
}
