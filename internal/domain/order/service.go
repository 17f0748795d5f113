package order

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/storefront-promotions/internal/domain/cart"
	"github.com/xenking/storefront-promotions/internal/domain/coupon"
	"github.com/xenking/storefront-promotions/internal/domain/product"
)

// ErrEmptyItems is returned when an order has no items.
var ErrEmptyItems = errors.New("items required")

// RedemptionConflictError reports a coupon that validated but ran out of
// uses, globally or for the customer, before the order was written. It
// unwraps to coupon.ErrCouponUsageLimitReached or
// coupon.ErrCustomerLimitReached.
type RedemptionConflictError struct {
	Err error
}

func (e *RedemptionConflictError) Error() string {
	return "redeem coupons: " + e.Err.Error()
}

func (e *RedemptionConflictError) Unwrap() error {
	return e.Err
}

// Pricer prices a cart.
type Pricer interface {
	Price(ctx context.Context, c *cart.Cart) (*cart.Quote, error)
}

// PlaceOrderRequest holds the input for placing an order.
type PlaceOrderRequest struct {
	StoreID        string
	Email          string
	Member         bool
	ShippingAmount decimal.Decimal
	Items          []cart.ItemRequest
	CouponCodes    []string
}

// PlaceOrderResult holds the output of a successfully placed order.
type PlaceOrderResult struct {
	Order *Order
	Quote *cart.Quote
}

// Service encapsulates order placement business logic.
type Service struct {
	products product.Repository
	pricer   Pricer
	orders   Repository
	now      func() time.Time
}

// NewService creates an order Service with the required domain dependencies.
func NewService(
	products product.Repository,
	pricer Pricer,
	orders Repository,
) *Service {
	return &Service{
		products: products,
		pricer:   pricer,
		orders:   orders,
		now:      time.Now,
	}
}

// PlaceOrder resolves items against the catalog, prices them with the
// automatic promotions and the given coupons, and persists the order. A
// coupon that does not apply fails the order with its validation error.
func (s *Service) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (*PlaceOrderResult, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}

	items, err := cart.BuildItems(ctx, s.products, req.StoreID, req.Items)
	if err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(req.CouponCodes))
	for _, code := range req.CouponCodes {
		if code = coupon.NormalizeCode(code); code != "" {
			codes = append(codes, code)
		}
	}

	c := &cart.Cart{
		ID:             uuid.New().String(),
		StoreID:        req.StoreID,
		Email:          req.Email,
		Member:         req.Member,
		ShippingAmount: req.ShippingAmount,
		Items:          items,
		Coupons:        codes,
	}
	q, err := s.pricer.Price(ctx, c)
	if err != nil {
		return nil, errors.Wrap(err, "price order")
	}
	if len(q.Rejected) > 0 {
		r := q.Rejected[0]
		return nil, errors.Wrapf(r.Err, "coupon %s", r.Code)
	}

	res := q.Result
	o := &Order{
		ID:           c.ID,
		StoreID:      req.StoreID,
		Email:        req.Email,
		Items:        c.Items,
		Subtotal:     res.Subtotal,
		Discounts:    res.TotalDiscount,
		Shipping:     q.Shipping(),
		FreeShipping: res.FreeShipping,
		Total:        q.Total(),
		CouponCodes:  c.Coupons,
		Applied:      res.Applied,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.orders.Create(ctx, o); err != nil {
		if errors.Is(err, coupon.ErrCouponUsageLimitReached) || errors.Is(err, coupon.ErrCustomerLimitReached) {
			return nil, &RedemptionConflictError{Err: err}
		}
		return nil, errors.Wrap(err, "create order")
	}

	zctx.From(ctx).Info("Order placed",
		zap.String("order_id", o.ID),
		zap.String("store_id", o.StoreID),
		zap.Strings("coupons", o.CouponCodes),
		zap.Strings("redeemed", o.RedeemedCodes()),
		zap.Strings("applied", res.AppliedIDs()),
		zap.String("total", o.Total.StringFixed(2)),
	)

	return &PlaceOrderResult{Order: o, Quote: q}, nil
}

// Get returns an order of storeID.
func (s *Service) Get(ctx context.Context, storeID, id string) (*Order, error) {
	o, err := s.orders.Get(ctx, storeID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, errors.Wrap(err, "get order")
	}
	return o, nil
}
