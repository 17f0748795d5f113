// Package promotion serves the automatic discounts of a store: the ones a
// customer receives without entering a code.
package promotion

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront-promotions/internal/domain/discount"
)

// Promotion is a stored automatic discount.
type Promotion struct {
	StoreID  string
	Discount discount.Discount
	// Priority orders promotions before they reach the engine; higher first.
	Priority   int
	Active     bool
	ValidFrom  *time.Time
	ValidUntil *time.Time
}

// Live reports whether p is active at t.
func (p Promotion) Live(t time.Time) bool {
	if !p.Active {
		return false
	}
	if p.ValidFrom != nil && t.Before(*p.ValidFrom) {
		return false
	}
	if p.ValidUntil != nil && t.After(*p.ValidUntil) {
		return false
	}
	return true
}

// Repository lists the promotions of a store.
type Repository interface {
	ListActive(ctx context.Context, storeID string) ([]Promotion, error)
}

// Service resolves the automatic discounts applicable at the current time.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService creates a Service backed by repo.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// Automatic returns the live promotions of a store ordered by priority
// descending, then by discount id. The engine evaluates discounts in list
// order, so this ordering is the effective priority.
func (s *Service) Automatic(ctx context.Context, storeID string) ([]discount.Discount, error) {
	promos, err := s.repo.ListActive(ctx, storeID)
	if err != nil {
		return nil, errors.Wrap(err, "list promotions")
	}

	now := s.now()
	live := make([]Promotion, 0, len(promos))
	for _, p := range promos {
		if p.StoreID != storeID || !p.Live(now) {
			continue
		}
		live = append(live, p)
	}

	slices.SortStableFunc(live, func(a, b Promotion) int {
		if c := cmp.Compare(b.Priority, a.Priority); c != 0 {
			return c
		}
		return cmp.Compare(a.Discount.ID, b.Discount.ID)
	})

	out := make([]discount.Discount, len(live))
	for i, p := range live {
		out[i] = p.Discount
		// Automatic discounts never carry a code.
		out[i].Code = ""
	}
	return out, nil
}
