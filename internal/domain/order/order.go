package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-promotions/internal/domain/discount"
)

// ErrNotFound is returned for unknown order ids.
var ErrNotFound = errors.New("order not found")

// Order is a placed order with its pricing frozen.
type Order struct {
	ID           string
	StoreID      string
	Email        string
	Items        []discount.LineItem
	Subtotal     decimal.Decimal
	Discounts    decimal.Decimal
	Shipping     decimal.Decimal
	FreeShipping bool
	Total        decimal.Decimal
	// CouponCodes are the codes entered with the order. A code the engine
	// outranked stays here but has no Applied record.
	CouponCodes []string
	Applied     []discount.Applied
	CreatedAt   time.Time
}

// RedeemedCodes returns the codes of the coupons that produced a discount
// record, in ledger order. Only these consume coupon uses.
func (o *Order) RedeemedCodes() []string {
	var codes []string
	for _, a := range o.Applied {
		if a.Code != "" {
			codes = append(codes, a.Code)
		}
	}
	return codes
}

// Repository defines persistence operations for orders.
type Repository interface {
	// Create persists o and consumes one use of each of o.RedeemedCodes in
	// the same transaction. It returns coupon.ErrCouponUsageLimitReached or
	// coupon.ErrCustomerLimitReached when a code ran out of uses, in which
	// case nothing is written.
	Create(ctx context.Context, o *Order) error
	// Get returns ErrNotFound for ids unknown to storeID.
	Get(ctx context.Context, storeID, id string) (*Order, error)
}
