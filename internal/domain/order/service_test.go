package order

import (
	"context"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/xenking/storefront-promotions/internal/domain/cart"
	"github.com/xenking/storefront-promotions/internal/domain/coupon"
	"github.com/xenking/storefront-promotions/internal/domain/discount"
	"github.com/xenking/storefront-promotions/internal/domain/product"
)

// --- Mock implementations ---

type mockProductRepo struct {
	byID   map[string]product.Product
	getErr error
}

func (m *mockProductRepo) List(_ context.Context, _ string) ([]product.Product, error) {
	return nil, nil
}

func (m *mockProductRepo) GetByID(_ context.Context, _, id string) (*product.Product, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (m *mockProductRepo) GetByIDs(_ context.Context, _ string, ids []string) ([]product.Product, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	var out []product.Product
	for _, id := range ids {
		if p, ok := m.byID[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

type mockPromotions struct {
	discounts []discount.Discount
}

func (m *mockPromotions) Automatic(_ context.Context, _ string) ([]discount.Discount, error) {
	return m.discounts, nil
}

type mockCouponValidator struct {
	byCode map[string]discount.Discount
	err    error
}

func (m *mockCouponValidator) Validate(_ context.Context, req coupon.ValidateRequest) (*discount.Discount, error) {
	if m.err != nil {
		return nil, m.err
	}
	d, ok := m.byCode[req.Code]
	if !ok {
		return nil, coupon.ErrInvalidCoupon
	}
	return &d, nil
}

type mockOrderRepo struct {
	lastOrder *Order
	err       error
}

func (m *mockOrderRepo) Create(_ context.Context, o *Order) error {
	m.lastOrder = o
	return m.err
}

func (m *mockOrderRepo) Get(_ context.Context, storeID, id string) (*Order, error) {
	if m.lastOrder == nil || m.lastOrder.StoreID != storeID || m.lastOrder.ID != id {
		return nil, ErrNotFound
	}
	return m.lastOrder, nil
}

// --- Helpers ---

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newProductRepo() *mockProductRepo {
	return &mockProductRepo{byID: map[string]product.Product{
		"p1": {ID: "p1", StoreID: "s1", Name: "Widget", Price: d("10.00"), CategoryID: "tools"},
		"p2": {ID: "p2", StoreID: "s1", Name: "Gadget", Price: d("20.00"), CategoryID: "tools"},
	}}
}

func newTestService(t *testing.T, products *mockProductRepo, promos []discount.Discount, cv *mockCouponValidator, orders *mockOrderRepo) *Service {
	t.Helper()
	if cv == nil {
		cv = &mockCouponValidator{}
	}
	pricer, err := cart.NewService(nil, &mockPromotions{discounts: promos}, cv, products, discount.New(),
		tracenoop.NewTracerProvider(), metricnoop.NewMeterProvider())
	require.NoError(t, err)

	svc := NewService(products, pricer, orders)
	svc.now = func() time.Time { return time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC) }
	return svc
}

// --- Tests ---

func TestPlaceOrder_EmptyItems(t *testing.T) {
	svc := newTestService(t, newProductRepo(), nil, nil, &mockOrderRepo{})

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{StoreID: "s1"})
	require.ErrorIs(t, err, ErrEmptyItems)
}

func TestPlaceOrder_InvalidQuantity(t *testing.T) {
	svc := newTestService(t, newProductRepo(), nil, nil, &mockOrderRepo{})

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		StoreID: "s1",
		Items:   []cart.ItemRequest{{ProductID: "p1", Quantity: 0}},
	})

	var iqErr *cart.InvalidQuantityError
	require.ErrorAs(t, err, &iqErr)
	assert.Equal(t, "p1", iqErr.ProductID)
}

func TestPlaceOrder_ProductNotFound(t *testing.T) {
	svc := newTestService(t, newProductRepo(), nil, nil, &mockOrderRepo{})

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		StoreID: "s1",
		Items:   []cart.ItemRequest{{ProductID: "missing", Quantity: 1}},
	})

	var pnfErr *cart.ProductNotFoundError
	require.ErrorAs(t, err, &pnfErr)
	assert.Equal(t, "missing", pnfErr.ProductID)
}

func TestPlaceOrder_NoCoupon(t *testing.T) {
	repo := &mockOrderRepo{}
	svc := newTestService(t, newProductRepo(), nil, nil, repo)

	result, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		StoreID:        "s1",
		ShippingAmount: d("4.50"),
		Items: []cart.ItemRequest{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 1},
		},
	})

	require.NoError(t, err)
	o := result.Order
	assert.True(t, d("40.00").Equal(o.Subtotal))
	assert.True(t, decimal.Zero.Equal(o.Discounts))
	assert.True(t, d("4.50").Equal(o.Shipping))
	assert.True(t, d("44.50").Equal(o.Total))
	assert.Empty(t, o.CouponCodes)
	assert.NotEmpty(t, o.ID)
	assert.Same(t, o, repo.lastOrder)
}

func TestPlaceOrder_WithCouponsAndPromotions(t *testing.T) {
	promos := []discount.Discount{{
		ID:        "auto-ship",
		Shape:     discount.FreeShipping{},
		Scope:     discount.Scope{Kind: discount.ScopeAll},
		Stackable: true,
	}}
	cv := &mockCouponValidator{byCode: map[string]discount.Discount{
		"SAVE5": {ID: "c-save5", Code: "SAVE5", Shape: discount.FixedAmount{Amount: d("5")}, Scope: discount.Scope{Kind: discount.ScopeAll}},
	}}
	repo := &mockOrderRepo{}
	svc := newTestService(t, newProductRepo(), promos, cv, repo)

	result, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		StoreID:        "s1",
		Email:          "a@b.c",
		ShippingAmount: d("4.50"),
		Items: []cart.ItemRequest{
			{ProductID: "p1", Quantity: 2},
			{ProductID: "p2", Quantity: 1},
		},
		CouponCodes: []string{" save5 ", ""},
	})

	require.NoError(t, err)
	o := result.Order
	assert.True(t, d("5").Equal(o.Discounts))
	assert.True(t, o.FreeShipping)
	assert.True(t, o.Shipping.IsZero())
	assert.True(t, d("35").Equal(o.Total))
	assert.Equal(t, []string{"SAVE5"}, o.CouponCodes)
	assert.Equal(t, []string{"SAVE5"}, o.RedeemedCodes())
	require.Len(t, o.Applied, 2)
	assert.Equal(t, "auto-ship", o.Applied[0].DiscountID)
	assert.Equal(t, "c-save5", o.Applied[1].DiscountID)
	assert.Equal(t, "a@b.c", o.Email)
	assert.Equal(t, 2025, o.CreatedAt.Year())
}

func TestPlaceOrder_RejectedCouponFailsOrder(t *testing.T) {
	repo := &mockOrderRepo{}
	svc := newTestService(t, newProductRepo(), nil, &mockCouponValidator{}, repo)

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		StoreID:     "s1",
		Items:       []cart.ItemRequest{{ProductID: "p1", Quantity: 1}},
		CouponCodes: []string{"BOGUS"},
	})

	require.ErrorIs(t, err, coupon.ErrInvalidCoupon)
	assert.Contains(t, err.Error(), "coupon BOGUS")
	assert.Nil(t, repo.lastOrder)
}

func TestPlaceOrder_OutrankedCouponNotRedeemed(t *testing.T) {
	promos := []discount.Discount{{
		ID:    "auto",
		Shape: discount.Percentage{Percent: d("10")},
		Scope: discount.Scope{Kind: discount.ScopeAll},
	}}
	cv := &mockCouponValidator{byCode: map[string]discount.Discount{
		"SAVE5": {ID: "c-save5", Code: "SAVE5", Shape: discount.FixedAmount{Amount: d("5")}, Scope: discount.Scope{Kind: discount.ScopeAll}},
	}}
	repo := &mockOrderRepo{}
	svc := newTestService(t, newProductRepo(), promos, cv, repo)

	result, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		StoreID:     "s1",
		Email:       "a@b.c",
		Items:       []cart.ItemRequest{{ProductID: "p1", Quantity: 2}},
		CouponCodes: []string{"SAVE5"},
	})

	require.NoError(t, err)
	o := result.Order
	require.Len(t, o.Applied, 1)
	assert.Equal(t, "auto", o.Applied[0].DiscountID)
	assert.True(t, d("2").Equal(o.Discounts))
	assert.Equal(t, []string{"SAVE5"}, o.CouponCodes)
	assert.Empty(t, o.RedeemedCodes())

	ledger := make(map[string]bool)
	for _, a := range repo.lastOrder.Applied {
		ledger[a.Code] = true
	}
	for _, code := range repo.lastOrder.RedeemedCodes() {
		assert.True(t, ledger[code], "redeemed %s without a discount record", code)
	}
}

func TestPlaceOrder_RedemptionRace(t *testing.T) {
	tests := []struct {
		name    string
		repoErr error
	}{
		{name: "global limit", repoErr: coupon.ErrCouponUsageLimitReached},
		{name: "customer limit", repoErr: coupon.ErrCustomerLimitReached},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cv := &mockCouponValidator{byCode: map[string]discount.Discount{
				"LAST": {ID: "c-last", Code: "LAST", Shape: discount.FixedAmount{Amount: d("1")}, Scope: discount.Scope{Kind: discount.ScopeAll}},
			}}
			repo := &mockOrderRepo{err: tt.repoErr}
			svc := newTestService(t, newProductRepo(), nil, cv, repo)

			_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
				StoreID:     "s1",
				Email:       "a@b.c",
				Items:       []cart.ItemRequest{{ProductID: "p1", Quantity: 1}},
				CouponCodes: []string{"LAST"},
			})

			require.ErrorIs(t, err, tt.repoErr)
			var conflict *RedemptionConflictError
			require.ErrorAs(t, err, &conflict)
		})
	}
}

func TestPlaceOrder_RepoError(t *testing.T) {
	svc := newTestService(t, newProductRepo(), nil, nil, &mockOrderRepo{err: errors.New("db down")})

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		StoreID: "s1",
		Items:   []cart.ItemRequest{{ProductID: "p1", Quantity: 1}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "create order")
}

func TestPlaceOrder_ProductLookupError(t *testing.T) {
	products := newProductRepo()
	products.getErr = errors.New("db down")
	svc := newTestService(t, products, nil, nil, &mockOrderRepo{})

	_, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		StoreID: "s1",
		Items:   []cart.ItemRequest{{ProductID: "p1", Quantity: 1}},
	})

	require.Error(t, err)
	assert.Contains(t, err.Error(), "get products")
}

func TestGet(t *testing.T) {
	repo := &mockOrderRepo{}
	svc := newTestService(t, newProductRepo(), nil, nil, repo)

	placed, err := svc.PlaceOrder(context.Background(), PlaceOrderRequest{
		StoreID: "s1",
		Items:   []cart.ItemRequest{{ProductID: "p1", Quantity: 1}},
	})
	require.NoError(t, err)

	got, err := svc.Get(context.Background(), "s1", placed.Order.ID)
	require.NoError(t, err)
	assert.Same(t, placed.Order, got)

	_, err = svc.Get(context.Background(), "s2", placed.Order.ID)
	require.ErrorIs(t, err, ErrNotFound)
}
