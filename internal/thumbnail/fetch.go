package thumbnail

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"syscall"
	"time"
)

const maxSourceBytes = 10 << 20

var (
	ErrSourceURL     = errors.New("thumbnail source must be an absolute http(s) URL")
	ErrPrivateSource = errors.New("thumbnail source resolves to a non-public address")
)

// Fetcher downloads source stills for the compositor.
type Fetcher struct {
	HTTP     *http.Client
	MaxBytes int64
}

// NewFetcher returns a Fetcher that only connects to public addresses.
// The check runs on every dial, so redirects and DNS answers are covered.
func NewFetcher() *Fetcher {
	dialer := &net.Dialer{Timeout: 5 * time.Second, Control: publicOnly}
	transport := &http.Transport{
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   5 * time.Second,
		ResponseHeaderTimeout: 10 * time.Second,
		MaxIdleConns:          10,
		IdleConnTimeout:       90 * time.Second,
	}
	return &Fetcher{
		HTTP:     &http.Client{Timeout: 10 * time.Second, Transport: transport},
		MaxBytes: maxSourceBytes,
	}
}

func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrPrivateSource, host)
	}
	ip = ip.Unmap()
	if !ip.IsGlobalUnicast() || ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
		return fmt.Errorf("%w: %s", ErrPrivateSource, ip)
	}
	return nil
}

func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (image.Image, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, ErrSourceURL
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "image/*")

	resp, err := f.HTTP.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch thumbnail source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch thumbnail source: status %d", resp.StatusCode)
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = maxSourceBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read thumbnail source: %w", err)
	}
	if int64(len(body)) > limit {
		return nil, fmt.Errorf("thumbnail source exceeds %d bytes", limit)
	}
	return Decode(body)
}

// Generate fetches sourceURL and returns the composite as PNG bytes.
func (f *Fetcher) Generate(ctx context.Context, sourceURL string, w, h int) ([]byte, error) {
	w, h, err := Size(w, h)
	if err != nil {
		return nil, err
	}
	src, err := f.Fetch(ctx, sourceURL)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := EncodePNG(&buf, Compose(src, w, h)); err != nil {
		return nil, fmt.Errorf("encode thumbnail: %w", err)
	}
	return buf.Bytes(), nil
}
