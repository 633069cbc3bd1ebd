// Package recipients turns a campaign's audience selection into the list
// of addresses that will actually be mailed.
package recipients

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"mailout/internal/domain"
	"mailout/internal/observability"
)

var addressShape = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ValidAddress reports whether s looks like a deliverable address.
func ValidAddress(s string) bool {
	return addressShape.MatchString(s)
}

type CustomerStore interface {
	List(ctx context.Context) ([]domain.Customer, error)
}

// SuppressionStore returns the subset of emails (lower-cased) that must
// not be mailed.
type SuppressionStore interface {
	SuppressedSet(ctx context.Context, emails []string) (map[string]bool, error)
}

type Selection struct {
	Type         domain.RecipientType
	CustomerIDs  []int64
	Filters      *domain.Filters
	CustomEmails string
}

type Resolver struct {
	Customers CustomerStore
	// Suppressions is optional.
	Suppressions SuppressionStore
}

// Resolve returns eligible recipients in source order. Customer or
// suppression store failures wrap domain.ErrDependency.
func (r *Resolver) Resolve(ctx context.Context, sel Selection) ([]domain.Recipient, error) {
	// An opt-out on any customer record for an address covers every record
	// for it, selected or not and in any casing.
	optedOut := map[string]bool{}
	var candidates []domain.Recipient
	if sel.Type == domain.RecipientsCustom {
		candidates = ParseCustomEmails(sel.CustomEmails)
	} else {
		all, err := r.Customers.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("%w: customer store: %v", domain.ErrDependency, err)
		}
		for _, c := range all {
			if c.DoNotEmail {
				optedOut[strings.ToLower(c.Email)] = true
			}
		}
		candidates = selectCustomers(all, sel)
	}

	out := make([]domain.Recipient, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		key := strings.ToLower(c.Email)
		switch {
		case optedOut[key]:
			observability.Suppressed.WithLabelValues("opted_out").Inc()
			continue
		case !ValidAddress(c.Email):
			observability.Suppressed.WithLabelValues("invalid_address").Inc()
			continue
		case seen[key]:
			continue
		}
		seen[key] = true
		out = append(out, c)
	}

	if r.Suppressions == nil || len(out) == 0 {
		return out, nil
	}
	emails := make([]string, len(out))
	for i, c := range out {
		emails[i] = strings.ToLower(c.Email)
	}
	suppressed, err := r.Suppressions.SuppressedSet(ctx, emails)
	if err != nil {
		return nil, fmt.Errorf("%w: suppression list: %v", domain.ErrDependency, err)
	}
	if len(suppressed) == 0 {
		return out, nil
	}
	kept := out[:0]
	for _, c := range out {
		if suppressed[strings.ToLower(c.Email)] {
			observability.Suppressed.WithLabelValues("suppression_list").Inc()
			continue
		}
		kept = append(kept, c)
	}
	slog.Debug("suppressed recipients dropped", "count", len(out)-len(kept))
	return kept, nil
}

// ParseCustomEmails splits a comma or newline separated list. Invalid
// tokens are dropped and repeats (ignoring case) keep the first spelling.
// Ids are synthetic and negative so they never collide with customer ids.
func ParseCustomEmails(raw string) []domain.Recipient {
	tokens := strings.FieldsFunc(raw, func(r rune) bool { return r == ',' || r == '\n' })
	out := make([]domain.Recipient, 0, len(tokens))
	seen := make(map[string]bool, len(tokens))
	for _, t := range tokens {
		email := strings.TrimSpace(t)
		key := strings.ToLower(email)
		if !ValidAddress(email) || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, domain.Recipient{
			ID:        -int64(len(out) + 1),
			FirstName: email[:strings.IndexByte(email, '@')],
			Email:     email,
		})
	}
	return out
}

func selectCustomers(all []domain.Customer, sel Selection) []domain.Recipient {
	out := make([]domain.Recipient, 0, len(all))
	for _, c := range all {
		switch sel.Type {
		case domain.RecipientsSelected:
			if !slices.Contains(sel.CustomerIDs, c.ID) {
				continue
			}
		case domain.RecipientsFiltered:
			if !matches(c, sel.Filters) {
				continue
			}
		}
		out = append(out, domain.Recipient{
			ID:        c.ID,
			FirstName: c.FirstName,
			LastName:  c.LastName,
			Email:     c.Email,
			OptedOut:  c.DoNotEmail,
		})
	}
	return out
}

func matches(c domain.Customer, f *domain.Filters) bool {
	if f == nil {
		return true
	}
	if !equalOrBlank(f.State, c.State) || !equalOrBlank(f.Rating, c.Rating) ||
		!equalOrBlank(f.Status, c.Status) || !equalOrBlank(f.Source, c.Source) ||
		!equalOrBlank(f.Nationality, c.Nationality) {
		return false
	}
	want := strings.ToLower(strings.TrimSpace(f.ProductInterest))
	if want == "" {
		return true
	}
	for _, p := range c.ProductInterest {
		if strings.Contains(strings.ToLower(p), want) {
			return true
		}
	}
	return false
}

func equalOrBlank(want, got string) bool {
	want = strings.TrimSpace(want)
	return want == "" || strings.EqualFold(want, strings.TrimSpace(got))
}
