// Package coupon resolves user-entered coupon codes into discounts the
// pricing engine can evaluate. It owns every user-facing rejection reason;
// the engine itself silently skips discounts that do not apply.
package coupon

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-promotions/internal/domain/discount"
)

var (
	// ErrInvalidCoupon is returned when a coupon code is not found or inactive.
	ErrInvalidCoupon = errors.New("invalid coupon code")
	// ErrCouponExpired is returned when a coupon is outside its valid time window.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponUsageLimitReached is returned when a coupon has exhausted its allowed uses.
	ErrCouponUsageLimitReached = errors.New("coupon usage limit reached")
	// ErrCustomerLimitReached is returned when the customer has used the coupon
	// as many times as allowed.
	ErrCustomerLimitReached = errors.New("coupon already used by this customer")
	// ErrFirstOrderOnly is returned when a first-order coupon is used by a
	// returning customer.
	ErrFirstOrderOnly = errors.New("coupon is valid on the first order only")
	// ErrEmailRequired is returned when a customer-restricted coupon is used
	// without identifying the customer.
	ErrEmailRequired = errors.New("coupon requires a customer email")
	// ErrNotCombinable is returned when a non-stackable coupon meets another
	// non-stackable coupon on the same cart.
	ErrNotCombinable = errors.New("coupon cannot be combined with applied coupons")
	// ErrAlreadyApplied is returned when the code is already on the cart.
	ErrAlreadyApplied = errors.New("coupon already applied")
	// ErrNotApplicable is returned when no cart item qualifies for the coupon.
	ErrNotApplicable = errors.New("coupon does not apply to this cart")
	// ErrOutranked is returned when a coupon validates but another discount
	// on the cart takes its place, so it would produce no discount.
	ErrOutranked = errors.New("coupon is outranked by another discount on this cart")
)

var rejections = []error{
	ErrInvalidCoupon,
	ErrCouponExpired,
	ErrCouponUsageLimitReached,
	ErrCustomerLimitReached,
	ErrFirstOrderOnly,
	ErrEmailRequired,
	ErrNotCombinable,
	ErrAlreadyApplied,
	ErrNotApplicable,
	ErrOutranked,
}

// IsRejection reports whether err is a validation outcome that should be
// shown to the customer, as opposed to a lookup failure.
func IsRejection(err error) bool {
	for _, target := range rejections {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// MinimumNotMetError reports a coupon whose minimum amount is not reached by
// the qualifying items. It matches ErrNotApplicable with errors.Is.
type MinimumNotMetError struct {
	Code     string
	Minimum  decimal.Decimal
	Subtotal decimal.Decimal
}

func (e *MinimumNotMetError) Error() string {
	return fmt.Sprintf("coupon %s requires a minimum of %s, qualifying items total %s",
		e.Code, e.Minimum.StringFixed(2), e.Subtotal.StringFixed(2))
}

// Unwrap allows errors.Is(err, ErrNotApplicable).
func (e *MinimumNotMetError) Unwrap() error {
	return ErrNotApplicable
}

// Rule is a stored coupon: the discount it grants plus the redemption
// constraints checked before the discount reaches the engine.
type Rule struct {
	StoreID     string
	Discount    discount.Discount
	Description string
	Active      bool
	ValidFrom   *time.Time
	ValidUntil  *time.Time

	// MaxUses bounds redemptions across all customers; zero means unlimited.
	MaxUses int
	Uses    int
	// MaxUsesPerCustomer bounds redemptions per customer email; zero means
	// unlimited.
	MaxUsesPerCustomer int
	FirstOrderOnly     bool
}

// Code returns the normalized coupon code.
func (r *Rule) Code() string {
	return r.Discount.Code
}

// Key identifies a coupon code within a store.
type Key struct {
	StoreID string
	Code    string
}

// Redemption records a coupon consumed by a finalized order. Redemptions are
// written by the order repository in the transaction that stores the order.
type Redemption struct {
	StoreID string
	Code    string
	Email   string
	OrderID string
}

// Repository provides lookup of coupon rules and their redemption counts.
type Repository interface {
	// FindByCode returns ErrInvalidCoupon when no coupon exists for the code.
	FindByCode(ctx context.Context, storeID, code string) (*Rule, error)
	// CountRedemptions returns how many times email redeemed the code.
	CountRedemptions(ctx context.Context, storeID, code, email string) (int, error)
	// CountOrders returns how many orders email placed in the store.
	CountOrders(ctx context.Context, storeID, email string) (int, error)
	// ListCodes returns every active coupon key.
	ListCodes(ctx context.Context) ([]Key, error)
}

// NormalizeCode trims and upper-cases a user-entered code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}
