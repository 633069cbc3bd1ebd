package resend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strings"

	"mailout/internal/esp"
)

const providerName = "resend"

type Client struct {
	APIKey  string
	BaseURL string
	HTTP    *http.Client
}

type Tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type SendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html,omitempty"`
	Text    string   `json:"text,omitempty"`
	ReplyTo string   `json:"reply_to,omitempty"`
	Tags    []Tag    `json:"tags,omitempty"`
}

type SendResponse struct {
	ID         string `json:"id"`
	StatusCode int    `json:"statusCode"`
	Name       string `json:"name"`
	Message    string `json:"message"`
}

func (c *Client) Name() string { return providerName }

// SendEmail posts one email. It returns the decoded body, the HTTP status
// and the raw response for attempt logging.
func (c *Client) SendEmail(ctx context.Context, req SendRequest) (SendResponse, int, []byte, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return SendResponse{}, 0, nil, err
	}

	baseURL := strings.TrimRight(c.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.resend.com"
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/emails", bytes.NewReader(body))
	if err != nil {
		return SendResponse{}, 0, nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(httpReq)
	if err != nil {
		return SendResponse{}, 0, nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	var out SendResponse
	_ = json.Unmarshal(b, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if out.Message != "" {
			return out, resp.StatusCode, b, errors.New(out.Message)
		}
		return out, resp.StatusCode, b, errors.New("resend send failed")
	}
	return out, resp.StatusCode, b, nil
}

// Send adapts SendEmail to esp.Sender.
func (c *Client) Send(ctx context.Context, msg esp.Message) (esp.Result, error) {
	req := SendRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
		ReplyTo: msg.ReplyTo,
		Tags:    tags(msg.Tags),
	}
	out, status, _, err := c.SendEmail(ctx, req)
	if err != nil {
		return esp.Result{HTTPStatus: status}, &esp.SendError{Provider: providerName, HTTPStatus: status, Message: err.Error(), Err: err}
	}
	return esp.Result{ID: out.ID, HTTPStatus: status}, nil
}

// tags are sorted so identical messages produce identical request bodies.
func tags(m map[string]string) []Tag {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Tag, 0, len(keys))
	for _, k := range keys {
		out = append(out, Tag{Name: k, Value: m[k]})
	}
	return out
}
