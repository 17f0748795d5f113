package coupon

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/storefront-promotions/internal/domain/discount"
)

type mockCouponRepo struct {
	rule        *Rule
	err         error
	orders      int
	redemptions int
	countErr    error
	keys        []Key
	findCalls   int
}

func (m *mockCouponRepo) FindByCode(_ context.Context, _, _ string) (*Rule, error) {
	m.findCalls++
	return m.rule, m.err
}

func (m *mockCouponRepo) CountRedemptions(_ context.Context, _, _, _ string) (int, error) {
	return m.redemptions, m.countErr
}

func (m *mockCouponRepo) CountOrders(_ context.Context, _, _ string) (int, error) {
	return m.orders, m.countErr
}

func (m *mockCouponRepo) ListCodes(_ context.Context) ([]Key, error) {
	return m.keys, m.err
}

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func percentRule(code, pct string) *Rule {
	return &Rule{
		StoreID: "store-1",
		Active:  true,
		Discount: discount.Discount{
			ID:    "c-" + code,
			Code:  code,
			Shape: discount.Percentage{Percent: d(pct)},
			Scope: discount.Scope{Kind: discount.ScopeAll},
		},
	}
}

func cartOf(price string, qty int) []discount.LineItem {
	return []discount.LineItem{{ID: "l1", ProductID: "p1", CategoryID: "c1", Price: d(price), Quantity: qty}}
}

func TestRepoValidator_Validate(t *testing.T) {
	fixedNow := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	pastTime := fixedNow.Add(-24 * time.Hour)
	futureTime := fixedNow.Add(24 * time.Hour)

	with := func(r *Rule, mutate func(r *Rule)) *Rule {
		mutate(r)
		return r
	}

	tests := []struct {
		name    string
		repo    *mockCouponRepo
		req     ValidateRequest
		wantID  string
		wantErr error
	}{
		{
			name:   "valid code returns discount",
			repo:   &mockCouponRepo{rule: percentRule("SAVE10", "10")},
			req:    ValidateRequest{StoreID: "store-1", Code: " save10 ", Items: cartOf("100", 1)},
			wantID: "c-SAVE10",
		},
		{
			name:    "blank code is invalid",
			repo:    &mockCouponRepo{rule: percentRule("SAVE10", "10")},
			req:     ValidateRequest{StoreID: "store-1", Code: "   ", Items: cartOf("100", 1)},
			wantErr: ErrInvalidCoupon,
		},
		{
			name:    "unknown code returns ErrInvalidCoupon",
			repo:    &mockCouponRepo{err: ErrInvalidCoupon},
			req:     ValidateRequest{StoreID: "store-1", Code: "BOGUS", Items: cartOf("50", 1)},
			wantErr: ErrInvalidCoupon,
		},
		{
			name:    "inactive coupon is invalid",
			repo:    &mockCouponRepo{rule: with(percentRule("OFF", "10"), func(r *Rule) { r.Active = false })},
			req:     ValidateRequest{StoreID: "store-1", Code: "OFF", Items: cartOf("50", 1)},
			wantErr: ErrInvalidCoupon,
		},
		{
			name:    "expired coupon",
			repo:    &mockCouponRepo{rule: with(percentRule("OLD", "10"), func(r *Rule) { r.ValidUntil = &pastTime })},
			req:     ValidateRequest{StoreID: "store-1", Code: "OLD", Items: cartOf("100", 1)},
			wantErr: ErrCouponExpired,
		},
		{
			name:    "coupon not yet valid",
			repo:    &mockCouponRepo{rule: with(percentRule("SOON", "10"), func(r *Rule) { r.ValidFrom = &futureTime })},
			req:     ValidateRequest{StoreID: "store-1", Code: "SOON", Items: cartOf("100", 1)},
			wantErr: ErrCouponExpired,
		},
		{
			name: "coupon within valid window succeeds",
			repo: &mockCouponRepo{rule: with(percentRule("WINDOW", "10"), func(r *Rule) {
				r.ValidFrom = &pastTime
				r.ValidUntil = &futureTime
			})},
			req:    ValidateRequest{StoreID: "store-1", Code: "WINDOW", Items: cartOf("100", 1)},
			wantID: "c-WINDOW",
		},
		{
			name: "usage limit reached",
			repo: &mockCouponRepo{rule: with(percentRule("LIMITED", "10"), func(r *Rule) {
				r.MaxUses = 100
				r.Uses = 100
			})},
			req:     ValidateRequest{StoreID: "store-1", Code: "LIMITED", Items: cartOf("100", 1)},
			wantErr: ErrCouponUsageLimitReached,
		},
		{
			name: "unlimited uses always succeeds",
			repo: &mockCouponRepo{rule: with(percentRule("UNLIMITED", "10"), func(r *Rule) {
				r.Uses = 9999
			})},
			req:    ValidateRequest{StoreID: "store-1", Code: "UNLIMITED", Items: cartOf("100", 1)},
			wantID: "c-UNLIMITED",
		},
		{
			name:    "first order coupon without email",
			repo:    &mockCouponRepo{rule: with(percentRule("WELCOME", "10"), func(r *Rule) { r.FirstOrderOnly = true })},
			req:     ValidateRequest{StoreID: "store-1", Code: "WELCOME", Items: cartOf("100", 1)},
			wantErr: ErrEmailRequired,
		},
		{
			name: "first order coupon for returning customer",
			repo: &mockCouponRepo{
				rule:   with(percentRule("WELCOME", "10"), func(r *Rule) { r.FirstOrderOnly = true }),
				orders: 2,
			},
			req:     ValidateRequest{StoreID: "store-1", Code: "WELCOME", Email: "a@b.c", Items: cartOf("100", 1)},
			wantErr: ErrFirstOrderOnly,
		},
		{
			name:   "first order coupon for new customer",
			repo:   &mockCouponRepo{rule: with(percentRule("WELCOME", "10"), func(r *Rule) { r.FirstOrderOnly = true })},
			req:    ValidateRequest{StoreID: "store-1", Code: "WELCOME", Email: "a@b.c", Items: cartOf("100", 1)},
			wantID: "c-WELCOME",
		},
		{
			name: "per customer limit reached",
			repo: &mockCouponRepo{
				rule:        with(percentRule("ONCE", "10"), func(r *Rule) { r.MaxUsesPerCustomer = 1 }),
				redemptions: 1,
			},
			req:     ValidateRequest{StoreID: "store-1", Code: "ONCE", Email: "a@b.c", Items: cartOf("100", 1)},
			wantErr: ErrCustomerLimitReached,
		},
		{
			name: "second non-stackable coupon is rejected",
			repo: &mockCouponRepo{rule: percentRule("SECOND", "10")},
			req: ValidateRequest{
				StoreID: "store-1", Code: "SECOND", Items: cartOf("100", 1),
				Applied: []discount.Discount{{ID: "c-FIRST", Code: "FIRST"}},
			},
			wantErr: ErrNotCombinable,
		},
		{
			name: "stackable coupon joins a non-stackable one",
			repo: &mockCouponRepo{rule: with(percentRule("STACK", "10"), func(r *Rule) { r.Discount.Stackable = true })},
			req: ValidateRequest{
				StoreID: "store-1", Code: "STACK", Items: cartOf("100", 1),
				Applied: []discount.Discount{{ID: "c-FIRST", Code: "FIRST"}},
			},
			wantID: "c-STACK",
		},
		{
			name: "same code twice",
			repo: &mockCouponRepo{rule: with(percentRule("STACK", "10"), func(r *Rule) { r.Discount.Stackable = true })},
			req: ValidateRequest{
				StoreID: "store-1", Code: "stack", Items: cartOf("100", 1),
				Applied: []discount.Discount{{ID: "c-STACK", Code: "STACK", Stackable: true}},
			},
			wantErr: ErrAlreadyApplied,
		},
		{
			name: "automatic promotions do not count as entered codes",
			repo: &mockCouponRepo{rule: with(percentRule("STACK", "10"), func(r *Rule) { r.Discount.Stackable = true })},
			req: ValidateRequest{
				StoreID: "store-1", Code: "STACK", Items: cartOf("100", 1),
				Applied: []discount.Discount{{ID: "auto-stack", Stackable: true}},
			},
			wantID: "c-STACK",
		},
		{
			name: "no qualifying items",
			repo: &mockCouponRepo{rule: with(percentRule("SHOES", "10"), func(r *Rule) {
				r.Discount.Scope = discount.Scope{Kind: discount.ScopeCategory, CategoryIDs: []string{"shoes"}}
			})},
			req:     ValidateRequest{StoreID: "store-1", Code: "SHOES", Items: cartOf("100", 1)},
			wantErr: ErrNotApplicable,
		},
		{
			name: "quantity tier not reached",
			repo: &mockCouponRepo{rule: with(percentRule("BULK", "10"), func(r *Rule) {
				r.Discount.Shape = discount.QuantityTiered{Tiers: []discount.Tier{{MinQuantity: 10, DiscountPercent: d("10")}}}
			})},
			req:     ValidateRequest{StoreID: "store-1", Code: "BULK", Items: cartOf("10", 3)},
			wantErr: ErrNotApplicable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewRepoValidator(tt.repo)
			v.now = func() time.Time { return fixedNow }

			got, err := v.Validate(context.Background(), tt.req)

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, got)
				return
			}

			require.NoError(t, err)
			require.NotNil(t, got)
			assert.Equal(t, tt.wantID, got.ID)
			assert.Equal(t, NormalizeCode(tt.req.Code), got.Code)
		})
	}
}

func TestRepoValidator_MinimumNotMet(t *testing.T) {
	rule := percentRule("MIN100", "10")
	rule.Discount.MinimumAmount = decimal.NewNullDecimal(d("100"))
	v := NewRepoValidator(&mockCouponRepo{rule: rule})

	_, err := v.Validate(context.Background(), ValidateRequest{
		StoreID: "store-1",
		Code:    "MIN100",
		Items:   cartOf("80", 1),
	})

	var minErr *MinimumNotMetError
	require.ErrorAs(t, err, &minErr)
	assert.True(t, d("100").Equal(minErr.Minimum))
	assert.True(t, d("80").Equal(minErr.Subtotal))
	assert.ErrorIs(t, err, ErrNotApplicable)
	assert.Contains(t, err.Error(), "requires a minimum of 100.00")
}

func TestRepoValidator_DerivesIDWhenMissing(t *testing.T) {
	rule := percentRule("NOID", "10")
	rule.Discount.ID = ""
	v := NewRepoValidator(&mockCouponRepo{rule: rule})

	got, err := v.Validate(context.Background(), ValidateRequest{StoreID: "store-1", Code: "noid", Items: cartOf("10", 1)})

	require.NoError(t, err)
	assert.Equal(t, "store-1:NOID", got.ID)
}

func TestRepoValidator_LookupError(t *testing.T) {
	v := NewRepoValidator(&mockCouponRepo{err: errors.New("db down")})

	_, err := v.Validate(context.Background(), ValidateRequest{StoreID: "store-1", Code: "ANY"})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "lookup coupon")
	assert.NotErrorIs(t, err, ErrInvalidCoupon)
}

func TestRepoValidator_CountError(t *testing.T) {
	rule := percentRule("ONCE", "10")
	rule.MaxUsesPerCustomer = 1
	v := NewRepoValidator(&mockCouponRepo{rule: rule, countErr: errors.New("db down")})

	_, err := v.Validate(context.Background(), ValidateRequest{StoreID: "store-1", Code: "ONCE", Email: "a@b.c", Items: cartOf("10", 1)})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "count customer redemptions")
}

func TestIsRejection(t *testing.T) {
	assert.True(t, IsRejection(ErrCouponExpired))
	assert.True(t, IsRejection(errors.Wrap(ErrNotCombinable, "apply")))
	assert.True(t, IsRejection(&MinimumNotMetError{Code: "X"}))
	assert.True(t, IsRejection(errors.Wrap(ErrOutranked, "coupon X")))
	assert.False(t, IsRejection(errors.New("connection refused")))
	assert.False(t, IsRejection(nil))
}
