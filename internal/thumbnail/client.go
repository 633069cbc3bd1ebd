package thumbnail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"mailout/internal/fallback"
	"mailout/internal/observability"
)

// Client asks the compositing endpoint for a play-button still and returns a
// URL pointing at it. Any failure yields the plain thumbnail URL.
type Client struct {
	Endpoint string
	HTTP     *http.Client
	Breaker  *gobreaker.CircuitBreaker
	Timeout  time.Duration
}

func NewClient(endpoint string, timeout time.Duration) *Client {
	return &Client{
		Endpoint: endpoint,
		HTTP:     &http.Client{},
		Timeout:  timeout,
		Breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "thumbnail",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(c gobreaker.Counts) bool { return c.ConsecutiveFailures >= 3 },
		}),
	}
}

type probeRequest struct {
	ThumbnailURL string `json:"thumbnailUrl"`
	Width        int    `json:"width,omitempty"`
	Height       int    `json:"height,omitempty"`
}

func (c *Client) Thumbnail(ctx context.Context, thumbnailURL string, width, height int) string {
	if c == nil || c.Endpoint == "" || thumbnailURL == "" {
		return thumbnailURL
	}

	out, err := fallback.WithFallback(ctx, c.Timeout, func(ctx context.Context) (string, error) {
		if c.Breaker == nil {
			return c.probe(ctx, thumbnailURL, width, height)
		}
		v, err := c.Breaker.Execute(func() (any, error) {
			return c.probe(ctx, thumbnailURL, width, height)
		})
		if err != nil {
			return "", err
		}
		return v.(string), nil
	}, thumbnailURL)
	if err != nil {
		observability.ThumbnailComposites.WithLabelValues("fallback").Inc()
		slog.Warn("thumbnail composite unavailable", "source", thumbnailURL, "err", err)
		return out
	}
	observability.ThumbnailComposites.WithLabelValues("ok").Inc()
	return out
}

// probe posts the source to the endpoint and, when it answers with an image,
// returns the GET form of the same composite for use in an <img> tag.
func (c *Client) probe(ctx context.Context, thumbnailURL string, width, height int) (string, error) {
	body, err := json.Marshal(probeRequest{ThumbnailURL: thumbnailURL, Width: width, Height: height})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("thumbnail endpoint status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return "", fmt.Errorf("thumbnail endpoint returned %q", ct)
	}

	q := url.Values{}
	q.Set("url", thumbnailURL)
	if width > 0 {
		q.Set("w", strconv.Itoa(width))
	}
	if height > 0 {
		q.Set("h", strconv.Itoa(height))
	}
	return c.Endpoint + "?" + q.Encode(), nil
}
