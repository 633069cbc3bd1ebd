package recipients

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mailout/internal/domain"
)

type fakeCustomers struct {
	rows []domain.Customer
	err  error
}

func (f fakeCustomers) List(context.Context) ([]domain.Customer, error) { return f.rows, f.err }

type fakeSuppressions struct {
	set   map[string]bool
	err   error
	asked []string
}

func (f *fakeSuppressions) SuppressedSet(_ context.Context, emails []string) (map[string]bool, error) {
	f.asked = emails
	return f.set, f.err
}

var people = []domain.Customer{
	{ID: 1, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", State: "New South Wales", Rating: "5", ProductInterest: []string{"Steinway Model D"}},
	{ID: 2, FirstName: "Grace", Email: "grace@example.com", State: "Victoria", ProductInterest: []string{"Boston"}, DoNotEmail: true},
	{ID: 3, FirstName: "Alan", Email: "alan@example", State: "victoria"},
	{ID: 4, FirstName: "Edsger", Email: "edsger@example.com", State: "Victoria", Rating: "3", ProductInterest: []string{"Yamaha", "steinway upright"}},
	{ID: 5, FirstName: "Ada again", Email: "ADA@example.com", State: "New South Wales"},
}

func emails(rs []domain.Recipient) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.Email
	}
	return out
}

func TestResolve(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		sel  Selection
		want []string
	}{
		{name: "all", sel: Selection{Type: domain.RecipientsAll}, want: []string{"ada@example.com", "edsger@example.com"}},
		{name: "blank type means all", sel: Selection{}, want: []string{"ada@example.com", "edsger@example.com"}},
		{name: "selected", sel: Selection{Type: domain.RecipientsSelected, CustomerIDs: []int64{4, 2, 99}}, want: []string{"edsger@example.com"}},
		{name: "filtered by state", sel: Selection{Type: domain.RecipientsFiltered, Filters: &domain.Filters{State: "VICTORIA"}}, want: []string{"edsger@example.com"}},
		{name: "filtered by interest", sel: Selection{Type: domain.RecipientsFiltered, Filters: &domain.Filters{ProductInterest: "steinway"}}, want: []string{"ada@example.com", "edsger@example.com"}},
		{name: "filters combine", sel: Selection{Type: domain.RecipientsFiltered, Filters: &domain.Filters{ProductInterest: "steinway", Rating: "5"}}, want: []string{"ada@example.com"}},
		{name: "filtered without filters", sel: Selection{Type: domain.RecipientsFiltered}, want: []string{"ada@example.com", "edsger@example.com"}},
		{name: "custom", sel: Selection{Type: domain.RecipientsCustom, CustomEmails: "x@example.com"}, want: []string{"x@example.com"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := &Resolver{Customers: fakeCustomers{rows: people}}
			got, err := r.Resolve(context.Background(), tt.sel)
			require.NoError(t, err)
			assert.Equal(t, tt.want, emails(got))
		})
	}
}

func TestResolveCustomerStoreFailure(t *testing.T) {
	t.Parallel()

	r := &Resolver{Customers: fakeCustomers{err: errors.New("connection refused")}}
	_, err := r.Resolve(context.Background(), Selection{Type: domain.RecipientsAll})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDependency)
}

func TestResolveDropsSuppressed(t *testing.T) {
	t.Parallel()

	sup := &fakeSuppressions{set: map[string]bool{"ada@example.com": true}}
	r := &Resolver{Customers: fakeCustomers{rows: people}, Suppressions: sup}

	got, err := r.Resolve(context.Background(), Selection{Type: domain.RecipientsAll})
	require.NoError(t, err)
	assert.Equal(t, []string{"edsger@example.com"}, emails(got))
	assert.Equal(t, []string{"ada@example.com", "edsger@example.com"}, sup.asked)

	sup.err = errors.New("db down")
	_, err = r.Resolve(context.Background(), Selection{Type: domain.RecipientsAll})
	assert.ErrorIs(t, err, domain.ErrDependency)
}

func TestResolveOptOutCoversEveryCasing(t *testing.T) {
	t.Parallel()

	rows := []domain.Customer{
		{ID: 1, FirstName: "Jo", Email: "jo@example.com", DoNotEmail: true},
		{ID: 2, FirstName: "Jo", Email: "Jo@Example.com"},
		{ID: 3, FirstName: "Sam", Email: "sam@example.com"},
		{ID: 4, FirstName: "Sam", Email: "SAM@example.com", DoNotEmail: true},
	}
	r := &Resolver{Customers: fakeCustomers{rows: rows}}

	got, err := r.Resolve(context.Background(), Selection{Type: domain.RecipientsAll})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = r.Resolve(context.Background(), Selection{Type: domain.RecipientsSelected, CustomerIDs: []int64{2, 3}})
	require.NoError(t, err)
	assert.Empty(t, got, "an unselected opted-out record still covers its address")
}

func TestParseCustomEmails(t *testing.T) {
	t.Parallel()

	got := ParseCustomEmails(" ada@example.com,not-an-email\ngrace@example.com,,\r\nADA@example.com , bad@host ,x y@z.io,last@example.org")

	require.Len(t, got, 3)
	assert.Equal(t, domain.Recipient{ID: -1, FirstName: "ada", Email: "ada@example.com"}, got[0])
	assert.Equal(t, domain.Recipient{ID: -2, FirstName: "grace", Email: "grace@example.com"}, got[1])
	assert.Equal(t, domain.Recipient{ID: -3, FirstName: "last", Email: "last@example.org"}, got[2])

	assert.Empty(t, ParseCustomEmails(""))
	assert.Empty(t, ParseCustomEmails(" , \n "))
}

func TestValidAddress(t *testing.T) {
	t.Parallel()

	assert.True(t, ValidAddress("a@b.co"))
	assert.True(t, ValidAddress("first.last+tag@sub.example.com"))
	assert.False(t, ValidAddress("a@b"))
	assert.False(t, ValidAddress("a b@c.io"))
	assert.False(t, ValidAddress("@c.io"))
	assert.False(t, ValidAddress(""))
}
