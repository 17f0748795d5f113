package cart

import (
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/storefront-promotions/internal/domain/coupon"
	"github.com/xenking/storefront-promotions/internal/domain/discount"
	"github.com/xenking/storefront-promotions/internal/domain/product"
)

// ErrStoreMismatch is returned when a cart is addressed through another store.
var ErrStoreMismatch = errors.New("cart belongs to another store")

const (
	instrumentationName = "github.com/xenking/storefront-promotions/internal/domain/cart"
	maxUpdateAttempts   = 3
)

// Promotions supplies the automatic discounts of a store in evaluation order.
type Promotions interface {
	Automatic(ctx context.Context, storeID string) ([]discount.Discount, error)
}

// RejectedCoupon is a code that was on the cart but no longer applies.
type RejectedCoupon struct {
	Code string
	Err  error
}

// Reason returns the customer-facing explanation.
func (r RejectedCoupon) Reason() string {
	return r.Err.Error()
}

// Quote is a priced cart.
type Quote struct {
	Cart     *Cart
	Result   discount.Result
	Rejected []RejectedCoupon
	Gifts    GiftChange
}

// Shipping returns the shipping charge after discounts.
func (q *Quote) Shipping() decimal.Decimal {
	if q.Result.FreeShipping {
		return decimal.Zero
	}
	return q.Cart.ShippingAmount
}

// Total returns the amount due: discounted items plus shipping.
func (q *Quote) Total() decimal.Decimal {
	return q.Result.Remaining.Add(q.Shipping())
}

// SetItemsRequest replaces the items of a cart, creating it when needed.
type SetItemsRequest struct {
	CartID         string
	StoreID        string
	Email          string
	Member         bool
	ShippingAmount decimal.Decimal
	Items          []ItemRequest
}

// Service prices carts and applies cart mutations.
type Service struct {
	store      Store
	promotions Promotions
	coupons    coupon.Validator
	products   product.Repository
	engine     *discount.Engine
	now        func() time.Time

	tracer   trace.Tracer
	applied  metric.Int64Counter
	rejected metric.Int64Counter
	gifts    metric.Int64Counter
}

// NewService creates a cart Service.
func NewService(
	store Store,
	promotions Promotions,
	coupons coupon.Validator,
	products product.Repository,
	engine *discount.Engine,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (*Service, error) {
	meter := mp.Meter(instrumentationName)

	applied, err := meter.Int64Counter("promo.discounts.applied",
		metric.WithDescription("Discount records produced by pricing calls"),
		metric.WithUnit("{discount}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create applied counter")
	}
	rejected, err := meter.Int64Counter("promo.coupons.rejected",
		metric.WithDescription("Coupons rejected or dropped from carts"),
		metric.WithUnit("{coupon}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create rejected counter")
	}
	gifts, err := meter.Int64Counter("promo.gifts.reconciled",
		metric.WithDescription("Gift items added to or removed from carts"),
		metric.WithUnit("{item}"),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create gifts counter")
	}

	return &Service{
		store:      store,
		promotions: promotions,
		coupons:    coupons,
		products:   products,
		engine:     engine,
		now:        time.Now,
		tracer:     tp.Tracer(instrumentationName),
		applied:    applied,
		rejected:   rejected,
		gifts:      gifts,
	}, nil
}

// Price evaluates c and updates it in place: coupons that no longer apply
// are dropped and gift items are reconciled. Automatic promotions are
// evaluated before coupons, and coupons in the order they were entered. c
// is not saved.
func (s *Service) Price(ctx context.Context, c *Cart) (*Quote, error) {
	ctx, span := s.start(ctx, "cart.Price", c)
	defer span.End()

	accepted, rejected, err := s.resolveCoupons(ctx, c)
	if err != nil {
		return nil, fail(span, err)
	}
	q, err := s.price(ctx, c, accepted, rejected)
	if err != nil {
		return nil, fail(span, err)
	}
	return q, nil
}

// Get loads and prices a cart of storeID. The cart is saved back when
// pricing changed its coupons or gift items.
func (s *Service) Get(ctx context.Context, storeID, cartID string) (*Quote, error) {
	ctx, span := s.tracer.Start(ctx, "cart.Get", trace.WithAttributes(attribute.String("cart.id", cartID)))
	defer span.End()

	var quote *Quote
	err := s.update(ctx, storeID, cartID, func(c *Cart) (bool, error) {
		q, err := s.Price(ctx, c)
		if err != nil {
			return false, err
		}
		quote = q
		return len(q.Rejected) > 0 || q.Gifts.Changed(), nil
	})
	if err != nil {
		return nil, fail(span, err)
	}
	return quote, nil
}

// SetItems replaces the purchased items of a cart and re-prices it. Gift
// items are recomputed from scratch.
func (s *Service) SetItems(ctx context.Context, req SetItemsRequest) (*Quote, error) {
	ctx, span := s.tracer.Start(ctx, "cart.SetItems", trace.WithAttributes(
		attribute.String("cart.id", req.CartID),
		attribute.String("store.id", req.StoreID),
	))
	defer span.End()

	items, err := BuildItems(ctx, s.products, req.StoreID, req.Items)
	if err != nil {
		return nil, fail(span, err)
	}

	var quote *Quote
	err = s.upsert(ctx, req, func(c *Cart) (bool, error) {
		c.Email = req.Email
		c.Member = req.Member
		c.ShippingAmount = req.ShippingAmount
		c.Items = items
		q, err := s.Price(ctx, c)
		if err != nil {
			return false, err
		}
		quote = q
		return true, nil
	})
	if err != nil {
		return nil, fail(span, err)
	}
	return quote, nil
}

// ApplyCoupon validates code against the cart and adds it. Validation
// failures are returned as coupon errors and leave the cart unchanged.
func (s *Service) ApplyCoupon(ctx context.Context, storeID, cartID, code string) (*Quote, error) {
	ctx, span := s.tracer.Start(ctx, "cart.ApplyCoupon", trace.WithAttributes(attribute.String("cart.id", cartID)))
	defer span.End()

	code = coupon.NormalizeCode(code)

	var quote *Quote
	err := s.update(ctx, storeID, cartID, func(c *Cart) (bool, error) {
		accepted, rejected, err := s.resolveCoupons(ctx, c)
		if err != nil {
			return false, err
		}
		d, err := s.coupons.Validate(ctx, coupon.ValidateRequest{
			StoreID: c.StoreID,
			Code:    code,
			Email:   c.Email,
			Items:   c.PurchasedItems(),
			Context: pricingContext(c),
			Applied: accepted,
		})
		if err != nil {
			if coupon.IsRejection(err) {
				s.rejected.Add(ctx, 1, metric.WithAttributes(attribute.String("store.id", c.StoreID)))
			}
			return false, err
		}
		q, err := s.price(ctx, c, append(accepted, *d), rejected)
		if err != nil {
			return false, err
		}
		quote = q
		return true, nil
	})
	if err != nil {
		return nil, fail(span, err)
	}
	return quote, nil
}

// RemoveCoupon removes code from the cart and re-prices it.
func (s *Service) RemoveCoupon(ctx context.Context, storeID, cartID, code string) (*Quote, error) {
	ctx, span := s.tracer.Start(ctx, "cart.RemoveCoupon", trace.WithAttributes(attribute.String("cart.id", cartID)))
	defer span.End()

	code = coupon.NormalizeCode(code)

	var quote *Quote
	err := s.update(ctx, storeID, cartID, func(c *Cart) (bool, error) {
		if !c.HasCoupon(code) {
			return false, ErrCouponNotOnCart
		}
		c.Coupons = slices.DeleteFunc(c.Coupons, func(cc string) bool { return cc == code })
		q, err := s.Price(ctx, c)
		if err != nil {
			return false, err
		}
		quote = q
		return true, nil
	})
	if err != nil {
		return nil, fail(span, err)
	}
	return quote, nil
}

// resolveCoupons re-validates every code on the cart in entry order. Codes
// that no longer apply are returned as rejections; lookup failures abort.
func (s *Service) resolveCoupons(ctx context.Context, c *Cart) ([]discount.Discount, []RejectedCoupon, error) {
	var (
		accepted []discount.Discount
		rejected []RejectedCoupon
		items    = c.PurchasedItems()
		cx       = pricingContext(c)
	)
	for _, code := range c.Coupons {
		d, err := s.coupons.Validate(ctx, coupon.ValidateRequest{
			StoreID: c.StoreID,
			Code:    code,
			Email:   c.Email,
			Items:   items,
			Context: cx,
			Applied: accepted,
		})
		if err != nil {
			if !coupon.IsRejection(err) {
				return nil, nil, errors.Wrapf(err, "validate coupon %s", code)
			}
			zctx.From(ctx).Debug("Coupon dropped from cart",
				zap.String("cart_id", c.ID),
				zap.String("code", code),
				zap.Error(err),
			)
			rejected = append(rejected, RejectedCoupon{Code: code, Err: err})
			continue
		}
		accepted = append(accepted, *d)
	}
	return accepted, rejected, nil
}

func (s *Service) price(ctx context.Context, c *Cart, accepted []discount.Discount, rejected []RejectedCoupon) (*Quote, error) {
	automatic, err := s.promotions.Automatic(ctx, c.StoreID)
	if err != nil {
		return nil, errors.Wrap(err, "automatic discounts")
	}

	discounts := make([]discount.Discount, 0, len(automatic)+len(accepted))
	discounts = append(discounts, automatic...)
	discounts = append(discounts, accepted...)

	res := s.engine.Calculate(c.Items, discounts, pricingContext(c))

	catalog, err := s.giftCatalog(ctx, c.StoreID, res)
	if err != nil {
		return nil, err
	}
	items, change := ReconcileGifts(c.Items, res, catalog)

	c.Items = items
	c.Coupons = make([]string, len(accepted))
	for i, d := range accepted {
		c.Coupons[i] = d.Code
	}

	store := metric.WithAttributes(attribute.String("store.id", c.StoreID))
	s.applied.Add(ctx, int64(len(res.Applied)), store)
	if len(rejected) > 0 {
		s.rejected.Add(ctx, int64(len(rejected)), store)
	}
	if change.Changed() {
		s.gifts.Add(ctx, int64(change.Added+change.Removed), store)
	}

	return &Quote{
		Cart:     c,
		Result:   res,
		Rejected: rejected,
		Gifts:    change,
	}, nil
}

func (s *Service) giftCatalog(ctx context.Context, storeID string, res discount.Result) (map[string]product.Product, error) {
	var ids []string
	for _, gifts := range res.GiftProductIDs() {
		ids = append(ids, gifts...)
	}
	slices.Sort(ids)
	ids = slices.Compact(ids)
	if len(ids) == 0 {
		return nil, nil
	}
	products, err := s.products.GetByIDs(ctx, storeID, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get gift products")
	}
	catalog := make(map[string]product.Product, len(products))
	for _, p := range products {
		catalog[p.ID] = p
	}
	return catalog, nil
}

// update loads a cart, applies fn and saves the cart when fn reports a
// change. Version conflicts are retried from a fresh read. Carts of other
// stores are reported as missing.
func (s *Service) update(ctx context.Context, storeID, cartID string, fn func(c *Cart) (bool, error)) error {
	for attempt := 1; ; attempt++ {
		c, err := s.store.Get(ctx, cartID)
		if err != nil {
			return err
		}
		if c.StoreID != storeID {
			return ErrCartNotFound
		}
		changed, err := fn(c)
		if err != nil || !changed {
			return err
		}
		err = s.save(ctx, c)
		if errors.Is(err, ErrVersionConflict) && attempt < maxUpdateAttempts {
			zctx.From(ctx).Debug("Retrying cart update", zap.String("cart_id", cartID), zap.Int("attempt", attempt))
			continue
		}
		return err
	}
}

// upsert is update for SetItems: a missing cart is created.
func (s *Service) upsert(ctx context.Context, req SetItemsRequest, fn func(c *Cart) (bool, error)) error {
	for attempt := 1; ; attempt++ {
		c, err := s.store.Get(ctx, req.CartID)
		switch {
		case errors.Is(err, ErrCartNotFound):
			c = &Cart{ID: req.CartID, StoreID: req.StoreID}
		case err != nil:
			return err
		case c.StoreID != req.StoreID:
			return ErrStoreMismatch
		}
		if _, err := fn(c); err != nil {
			return err
		}
		err = s.save(ctx, c)
		if errors.Is(err, ErrVersionConflict) && attempt < maxUpdateAttempts {
			continue
		}
		return err
	}
}

func (s *Service) save(ctx context.Context, c *Cart) error {
	c.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, c); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return err
		}
		return errors.Wrap(err, "save cart")
	}
	return nil
}

func (s *Service) start(ctx context.Context, name string, c *Cart) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(
		attribute.String("cart.id", c.ID),
		attribute.String("store.id", c.StoreID),
		attribute.Int("cart.items", len(c.Items)),
		attribute.Int("cart.coupons", len(c.Coupons)),
	))
}

func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func pricingContext(c *Cart) discount.Context {
	return discount.Context{
		IsMember:       c.Member,
		ShippingAmount: c.ShippingAmount,
	}
}
