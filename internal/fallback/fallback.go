// Package fallback runs optional enhancements that must never block or
// fail the caller.
package fallback

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrTimeout = errors.New("fallback: primary timed out")

// WithFallback runs primary under a hard timeout. On error, timeout or
// panic it returns fb together with the reason; the error is informational
// and the returned value is always usable.
func WithFallback[T any](ctx context.Context, timeout time.Duration, primary func(ctx context.Context) (T, error), fb T) (T, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	type result struct {
		v   T
		err error
	}
	done := make(chan result, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- result{err: fmt.Errorf("fallback: primary panicked: %v", r)}
			}
		}()
		v, err := primary(ctx)
		done <- result{v: v, err: err}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return fb, r.err
		}
		return r.v, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fb, ErrTimeout
		}
		return fb, ctx.Err()
	}
}
