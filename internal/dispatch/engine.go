// Package dispatch sends a campaign's messages under a messages-per-second
// ceiling, retrying provider throttling with exponential backoff.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"mailout/internal/domain"
	"mailout/internal/esp"
	"mailout/internal/observability"
)

const (
	DefaultBatchSize     = 100
	DefaultConcurrency   = 10
	DefaultRatePerSecond = 10
	DefaultMaxAttempts   = 3
	DefaultBaseBackoff   = time.Second

	limiterWaitTimeout = 5 * time.Second
	sendTimeout        = 30 * time.Second
)

// Builder produces the finished message for one recipient.
type Builder interface {
	Build(ctx context.Context, r domain.Recipient) (esp.Message, error)
}

type BuilderFunc func(ctx context.Context, r domain.Recipient) (esp.Message, error)

func (f BuilderFunc) Build(ctx context.Context, r domain.Recipient) (esp.Message, error) {
	return f(ctx, r)
}

type Outcome struct {
	Recipient domain.Recipient
	MessageID string
	Attempts  int
	Err       error
}

type Report struct {
	// Outcomes is in recipient order.
	Outcomes []Outcome
	Result   domain.SendResult
}

type Engine struct {
	Sender esp.Sender

	BatchSize     int
	Concurrency   int
	RatePerSecond int
	MaxAttempts   int
	BaseBackoff   time.Duration

	// Limiter is an optional process-wide ceiling shared by every send.
	Limiter *rate.Limiter
	Clock   Clock
}

func (e *Engine) window() int {
	c, r := e.Concurrency, e.RatePerSecond
	if c <= 0 {
		c = DefaultConcurrency
	}
	if r <= 0 {
		r = DefaultRatePerSecond
	}
	return min(c, r)
}

func (e *Engine) clock() Clock {
	if e.Clock == nil {
		return realClock{}
	}
	return e.Clock
}

// Dispatch builds and sends one message per recipient. Individual
// failures never stop the run; each ends up in the report.
func (e *Engine) Dispatch(ctx context.Context, recipients []domain.Recipient, b Builder) Report {
	batchSize := e.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	window := e.window()
	clock := e.clock()

	outcomes := make([]Outcome, len(recipients))
	for start := 0; start < len(recipients); start += batchSize {
		end := min(start+batchSize, len(recipients))

		msgs := make(map[int]esp.Message, end-start)
		var pending []int
		for i := start; i < end; i++ {
			outcomes[i].Recipient = recipients[i]
			msg, err := b.Build(ctx, recipients[i])
			if err != nil {
				outcomes[i].Err = fmt.Errorf("build message: %w", err)
				continue
			}
			msgs[i] = msg
			pending = append(pending, i)
		}

		for w := 0; w < len(pending); w += window {
			opened := clock.Now()
			chunk := pending[w:min(w+window, len(pending))]

			var wg sync.WaitGroup
			for _, i := range chunk {
				wg.Add(1)
				go func() {
					defer wg.Done()
					outcomes[i] = e.send(ctx, recipients[i], msgs[i])
				}()
			}
			wg.Wait()

			more := w+window < len(pending) || end < len(recipients)
			if !more {
				continue
			}
			if wait := time.Second - clock.Now().Sub(opened); wait > 0 {
				if err := clock.Sleep(ctx, wait); err != nil {
					slog.Warn("dispatch pacing interrupted", "err", err)
				}
			}
		}
	}

	return Report{Outcomes: outcomes, Result: summarize(outcomes)}
}

func (e *Engine) send(ctx context.Context, r domain.Recipient, msg esp.Message) Outcome {
	maxAttempts := e.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	backoff := e.BaseBackoff
	if backoff <= 0 {
		backoff = DefaultBaseBackoff
	}
	provider := e.Sender.Name()

	out := Outcome{Recipient: r}
	for attempt := 1; ; attempt++ {
		out.Attempts = attempt

		res, err := e.attempt(ctx, msg, provider)
		if err == nil {
			out.MessageID = res.ID
			out.Err = nil
			return out
		}
		out.Err = err

		if !esp.IsRateLimited(err) || attempt >= maxAttempts {
			slog.Warn("recipient send failed", "recipient_id", r.ID, "attempts", attempt, "err", err)
			slog.Debug("recipient send failed", "email", r.Email)
			return out
		}

		observability.ESPRetries.WithLabelValues(provider).Inc()
		delay := backoff << (attempt - 1)
		if err := e.clock().Sleep(ctx, delay); err != nil {
			out.Err = errors.Join(out.Err, err)
			return out
		}
	}
}

func (e *Engine) attempt(ctx context.Context, msg esp.Message, provider string) (esp.Result, error) {
	if e.Limiter != nil {
		waitCtx, cancel := context.WithTimeout(ctx, limiterWaitTimeout)
		err := e.Limiter.Wait(waitCtx)
		cancel()
		if err != nil {
			observability.ESPSend.WithLabelValues(provider, "rate_limited_local", "0").Inc()
			return esp.Result{}, &esp.SendError{Provider: provider, HTTPStatus: 429, Message: "local rate limit wait failed", Err: err}
		}
	}

	sendCtx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	start := time.Now()
	res, err := e.Sender.Send(sendCtx, msg)
	observability.ESPLatency.WithLabelValues(provider).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.ESPSend.WithLabelValues(provider, "error", strconv.Itoa(esp.StatusOf(err))).Inc()
		return res, err
	}
	observability.ESPSend.WithLabelValues(provider, "ok", strconv.Itoa(res.HTTPStatus)).Inc()
	return res, nil
}

func summarize(outcomes []Outcome) domain.SendResult {
	res := domain.SendResult{TotalRecipients: len(outcomes), Failures: []domain.SendFailure{}}
	for _, o := range outcomes {
		if o.Err == nil {
			res.SuccessCount++
			continue
		}
		res.FailureCount++
		res.Failures = append(res.Failures, domain.SendFailure{Email: o.Recipient.Email, Error: o.Err.Error()})
	}
	return res
}
