package esp

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

// Message is one outbound email, fully rendered and personalized.
type Message struct {
	From    string
	To      string
	ReplyTo string
	Subject string
	HTML    string
	Text    string
	Tags    map[string]string
}

type Result struct {
	ID         string
	HTTPStatus int
}

// Sender is implemented by every provider client. Implementations must be
// safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) (Result, error)
	Name() string
}

// SendError carries the provider's HTTP status so the dispatch layer can
// tell throttling from permanent rejection.
type SendError struct {
	Provider   string
	HTTPStatus int
	Message    string
	Err        error
}

func (e *SendError) Error() string {
	if e.HTTPStatus > 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.HTTPStatus)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *SendError) Unwrap() error { return e.Err }

var rateLimitText = regexp.MustCompile(`(?i)too many requests|\brate\b|rate[ _-]?limit`)

// IsRateLimited reports whether err indicates provider throttling: an HTTP
// 429, or an error message mentioning "too many requests" or "rate".
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	var se *SendError
	if errors.As(err, &se) && se.HTTPStatus == 429 {
		return true
	}
	return rateLimitText.MatchString(err.Error())
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var se *SendError
	if errors.As(err, &se) {
		return se.HTTPStatus
	}
	return 0
}
