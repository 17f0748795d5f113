package coupon

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront-promotions/internal/domain/discount"
)

// ValidateRequest describes a coupon code entered against a cart.
type ValidateRequest struct {
	StoreID string
	Code    string
	Email   string
	Items   []discount.LineItem
	Context discount.Context
	// Applied holds the coupons already accepted on the cart, excluding the
	// one being validated.
	Applied []discount.Discount
}

// Validator validates a coupon code against a cart and returns the discount
// it grants.
type Validator interface {
	Validate(ctx context.Context, req ValidateRequest) (*discount.Discount, error)
}

// RepoValidator implements Validator by looking up coupon rules from a
// Repository.
type RepoValidator struct {
	repo Repository
	now  func() time.Time
}

// NewRepoValidator creates a RepoValidator backed by the given Repository.
func NewRepoValidator(repo Repository) *RepoValidator {
	return &RepoValidator{repo: repo, now: time.Now}
}

// Validate looks up the coupon rule for the given code, checks its time
// window, global and per-customer usage limits, combinability with the
// coupons already applied, and whether the cart qualifies. It never
// consumes a use; redemption happens once the order is placed.
func (v *RepoValidator) Validate(ctx context.Context, req ValidateRequest) (*discount.Discount, error) {
	code := NormalizeCode(req.Code)
	if code == "" {
		return nil, ErrInvalidCoupon
	}

	rule, err := v.repo.FindByCode(ctx, req.StoreID, code)
	if err != nil {
		if errors.Is(err, ErrInvalidCoupon) {
			return nil, ErrInvalidCoupon
		}
		return nil, errors.Wrap(err, "lookup coupon")
	}
	if !rule.Active {
		return nil, ErrInvalidCoupon
	}

	now := v.now()

	if rule.ValidFrom != nil && now.Before(*rule.ValidFrom) {
		return nil, ErrCouponExpired
	}
	if rule.ValidUntil != nil && now.After(*rule.ValidUntil) {
		return nil, ErrCouponExpired
	}

	if rule.MaxUses > 0 && rule.Uses >= rule.MaxUses {
		return nil, ErrCouponUsageLimitReached
	}

	if err := v.checkCustomer(ctx, req, rule); err != nil {
		return nil, err
	}

	d := rule.Discount
	d.Code = code
	if d.ID == "" {
		d.ID = req.StoreID + ":" + code
	}

	if err := checkCombinable(d, req.Applied); err != nil {
		return nil, err
	}
	if err := checkApplicable(d, req.Items, req.Context); err != nil {
		return nil, err
	}

	return &d, nil
}

func (v *RepoValidator) checkCustomer(ctx context.Context, req ValidateRequest, rule *Rule) error {
	if !rule.FirstOrderOnly && rule.MaxUsesPerCustomer <= 0 {
		return nil
	}
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" {
		return ErrEmailRequired
	}

	if rule.FirstOrderOnly {
		orders, err := v.repo.CountOrders(ctx, req.StoreID, email)
		if err != nil {
			return errors.Wrap(err, "count customer orders")
		}
		if orders > 0 {
			return ErrFirstOrderOnly
		}
	}

	if rule.MaxUsesPerCustomer > 0 {
		used, err := v.repo.CountRedemptions(ctx, req.StoreID, rule.Code(), email)
		if err != nil {
			return errors.Wrap(err, "count customer redemptions")
		}
		if used >= rule.MaxUsesPerCustomer {
			return ErrCustomerLimitReached
		}
	}
	return nil
}

func checkCombinable(d discount.Discount, applied []discount.Discount) error {
	for _, a := range applied {
		if a.IsCoupon() && strings.EqualFold(a.Code, d.Code) {
			return ErrAlreadyApplied
		}
	}
	if d.Stackable {
		return nil
	}
	for _, a := range applied {
		if !a.Stackable {
			return ErrNotCombinable
		}
	}
	return nil
}

func checkApplicable(d discount.Discount, items []discount.LineItem, cx discount.Context) error {
	m := discount.Match(d, items, cx)
	if !m.Eligible {
		if len(m.Items) > 0 && d.MinimumAmount.Valid && m.Subtotal.LessThan(d.MinimumAmount.Decimal) {
			return &MinimumNotMetError{
				Code:     d.Code,
				Minimum:  d.MinimumAmount.Decimal,
				Subtotal: m.Subtotal,
			}
		}
		return ErrNotApplicable
	}
	if _, ok := discount.ComputeAmount(d, m, m.Subtotal); !ok {
		return ErrNotApplicable
	}
	return nil
}
