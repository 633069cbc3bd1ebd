package customers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailout/internal/domain"
)

func TestListMapsEnquiries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/enquiries", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id": 1, "firstName": " Ada ", "lastName": "Lovelace", "email": "ada@example.com", "state": "New South Wales",
			 "productInterest": ["Steinway", "Boston"], "rating": 5, "source": null},
			{"id": "2", "firstName": "Grace", "surname": "Hopper", "email": "grace@example.com", "doNotEmail": true,
			 "productInterest": "Yamaha"}
		]`))
	}))
	defer srv.Close()

	c := &Client{URL: srv.URL + "/api/enquiries", HTTP: srv.Client()}
	got, err := c.List(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, domain.Customer{
		ID: 1, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com",
		State: "New South Wales", Rating: "5", ProductInterest: []string{"Steinway", "Boston"},
	}, got[0])

	assert.Equal(t, int64(2), got[1].ID)
	assert.Equal(t, "Hopper", got[1].LastName)
	assert.True(t, got[1].DoNotEmail)
	assert.Equal(t, []string{"Yamaha"}, got[1].ProductInterest)
}

func TestListFailures(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
	}{
		{name: "server error", status: http.StatusInternalServerError, body: `{"error":"boom"}`},
		{name: "not an array", status: http.StatusOK, body: `{"error":"nope"}`},
		{name: "bad id", status: http.StatusOK, body: `[{"id":"abc"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := (&Client{URL: srv.URL, HTTP: srv.Client()}).List(context.Background())
			assert.Error(t, err)
		})
	}
}
