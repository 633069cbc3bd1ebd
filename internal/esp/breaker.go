package esp

import (
	"context"
	"errors"
	"time"

	"github.com/sony/gobreaker"
)

// BreakerSender trips after repeated transport or 5xx failures so a dead
// provider fails the remaining recipients fast. Throttling and 4xx
// rejections are answers from a healthy provider and do not count.
type BreakerSender struct {
	Next    Sender
	Breaker *gobreaker.CircuitBreaker
}

func NewBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Timeout:     20 * time.Second,
		ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 10 },
	})
}

func (b *BreakerSender) Name() string { return b.Next.Name() }

func (b *BreakerSender) Send(ctx context.Context, msg Message) (Result, error) {
	if b.Breaker == nil {
		return b.Next.Send(ctx, msg)
	}

	out, err := b.Breaker.Execute(func() (any, error) {
		res, sendErr := b.Next.Send(ctx, msg)
		if sendErr != nil && countsAsOutage(sendErr) {
			return nil, sendErr
		}
		return outcome{res: res, err: sendErr}, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return Result{}, &SendError{Provider: b.Next.Name(), Message: "circuit open", Err: err}
		}
		return Result{}, err
	}
	o := out.(outcome)
	return o.res, o.err
}

type outcome struct {
	res Result
	err error
}

func countsAsOutage(err error) bool {
	if IsRateLimited(err) {
		return false
	}
	status := StatusOf(err)
	return status == 0 || status >= 500
}
