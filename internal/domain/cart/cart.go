// Package cart keeps shopping carts priced. Every mutation re-runs the
// discount engine over the current items so applied coupons, automatic
// promotions and gift items stay consistent with the cart contents.
package cart

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-promotions/internal/domain/discount"
)

var (
	// ErrCartNotFound is returned when no cart exists for the id.
	ErrCartNotFound = errors.New("cart not found")
	// ErrVersionConflict is returned when a cart was modified concurrently.
	ErrVersionConflict = errors.New("cart was modified concurrently")
	// ErrCouponNotOnCart is returned when removing a code the cart does not hold.
	ErrCouponNotOnCart = errors.New("coupon is not applied to this cart")
)

// Cart is a customer's working set of items and coupon codes.
type Cart struct {
	ID             string
	StoreID        string
	Email          string
	Member         bool
	ShippingAmount decimal.Decimal
	Items          []discount.LineItem
	// Coupons holds the accepted codes in the order they were entered.
	Coupons []string
	// Version is bumped on every successful Save.
	Version   int64
	UpdatedAt time.Time
}

// PurchasedItems returns the non-gift items.
func (c *Cart) PurchasedItems() []discount.LineItem {
	out := make([]discount.LineItem, 0, len(c.Items))
	for _, item := range c.Items {
		if !item.Gift {
			out = append(out, item)
		}
	}
	return out
}

// HasCoupon reports whether code is on the cart.
func (c *Cart) HasCoupon(code string) bool {
	return slices.Contains(c.Coupons, code)
}

// Store persists carts.
type Store interface {
	// Get returns ErrCartNotFound for unknown ids.
	Get(ctx context.Context, id string) (*Cart, error)
	// Save writes c if the stored version still equals c.Version, then
	// increments c.Version. A new cart has Version 0. It returns
	// ErrVersionConflict when another writer saved first.
	Save(ctx context.Context, c *Cart) error
}
