package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// ReadyzCheck is one dependency the service needs before taking traffic.
type ReadyzCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type readiness struct {
	Ready  bool              `json:"ready"`
	Checks map[string]string `json:"checks"`
}

// Healthz reports liveness only; it never touches dependencies.
func Healthz() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}

// Readyz runs every check concurrently under one deadline and answers 503
// naming the dependencies that failed. Error details stay in the log.
func Readyz(timeout time.Duration, checks ...ReadyzCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, timeout)
			defer cancel()
		}

		errs := make([]error, len(checks))
		var g errgroup.Group
		for i, c := range checks {
			g.Go(func() error {
				errs[i] = c.Check(ctx)
				return nil
			})
		}
		_ = g.Wait()

		out := readiness{Ready: true, Checks: make(map[string]string, len(checks))}
		for i, c := range checks {
			if errs[i] != nil {
				out.Ready = false
				out.Checks[c.Name] = "fail"
				slog.Warn("readiness check failed", "check", c.Name, "err", errs[i])
				continue
			}
			out.Checks[c.Name] = "ok"
		}

		status := http.StatusOK
		if !out.Ready {
			status = http.StatusServiceUnavailable
		}
		writeJSON(w, status, out)
	}
}
