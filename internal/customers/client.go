// Package customers reads recipient candidates from the enquiry store.
package customers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"mailout/internal/domain"
)

type Client struct {
	// URL is the full enquiries endpoint, e.g. https://crm.example.com/api/enquiries.
	URL  string
	HTTP *http.Client
}

type enquiry struct {
	ID              flexInt    `json:"id"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	Surname         string     `json:"surname"`
	Email           string     `json:"email"`
	DoNotEmail      bool       `json:"doNotEmail"`
	State           flexString `json:"state"`
	Rating          flexString `json:"rating"`
	Status          flexString `json:"status"`
	ProductInterest flexList   `json:"productInterest"`
	Nationality     flexString `json:"nationality"`
	Source          flexString `json:"source"`
}

// List fetches every customer record. Any transport, status or decode
// failure is returned; callers must not treat it as an empty list.
func (c *Client) List(ctx context.Context) ([]domain.Customer, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.URL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	b, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("customer store returned %d", resp.StatusCode)
	}

	var rows []enquiry
	if err := json.Unmarshal(b, &rows); err != nil {
		return nil, fmt.Errorf("decode customers: %w", err)
	}

	out := make([]domain.Customer, 0, len(rows))
	for _, e := range rows {
		last := e.LastName
		if last == "" {
			last = e.Surname
		}
		out = append(out, domain.Customer{
			ID:              int64(e.ID),
			FirstName:       strings.TrimSpace(e.FirstName),
			LastName:        strings.TrimSpace(last),
			Email:           strings.TrimSpace(e.Email),
			DoNotEmail:      e.DoNotEmail,
			State:           string(e.State),
			Rating:          string(e.Rating),
			Status:          string(e.Status),
			ProductInterest: []string(e.ProductInterest),
			Nationality:     string(e.Nationality),
			Source:          string(e.Source),
		})
	}
	return out, nil
}

// flexString accepts a JSON string, number or null.
type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*s = ""
		return nil
	}
	if b[0] == '"' {
		var v string
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		*s = flexString(v)
		return nil
	}
	*s = flexString(b)
	return nil
}

// flexInt accepts a JSON number or a numeric string.
type flexInt int64

func (n *flexInt) UnmarshalJSON(b []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if s == "" {
		*n = 0
		return nil
	}
	v, err := strconv.ParseInt(string(s), 10, 64)
	if err != nil {
		return fmt.Errorf("customer id %q: %w", string(s), err)
	}
	*n = flexInt(v)
	return nil
}

// flexList accepts an array of strings or a single string.
type flexList []string

func (l *flexList) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '[' {
		var v []flexString
		if err := json.Unmarshal(b, &v); err != nil {
			return err
		}
		out := make([]string, 0, len(v))
		for _, s := range v {
			if s != "" {
				out = append(out, string(s))
			}
		}
		*l = out
		return nil
	}
	var s flexString
	if err := s.UnmarshalJSON(b); err != nil {
		return err
	}
	if s == "" {
		*l = nil
		return nil
	}
	*l = flexList{string(s)}
	return nil
}
