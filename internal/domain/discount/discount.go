// Package discount implements the pricing rules engine: given cart line items,
// an ordered list of candidate discounts and a pricing context, it reports
// which discounts apply, to which items, for how much, whether shipping
// becomes free and which gift products are triggered.
//
// The engine is a pure function of its inputs. It performs no I/O, reads no
// clock and holds no state between calls, so callers re-run it on every cart
// or coupon change instead of caching results.
package discount

import (
	"github.com/shopspring/decimal"
)

// Kind enumerates the supported discount shapes.
type Kind string

const (
	KindPercentage     Kind = "percentage"
	KindFixedAmount    Kind = "fixed_amount"
	KindFreeShipping   Kind = "free_shipping"
	KindGiftCard       Kind = "gift_card"
	KindGiftProduct    Kind = "gift_product"
	KindBuyXPayY       Kind = "buy_x_pay_y"
	KindBuyXGetY       Kind = "buy_x_get_y"
	KindSpendXPayY     Kind = "spend_x_pay_y"
	KindQuantityTiered Kind = "quantity_tiered"
)

// ScopeKind selects which line items a discount targets.
type ScopeKind string

const (
	// ScopeAll targets every line item.
	ScopeAll ScopeKind = "all"
	// ScopeProduct targets items whose product id is listed.
	ScopeProduct ScopeKind = "product"
	// ScopeCategory targets items whose category id is listed.
	ScopeCategory ScopeKind = "category"
	// ScopeMember targets every line item, for members only.
	ScopeMember ScopeKind = "member"
)

// Scope holds the inclusion and exclusion sets of a discount. Exclusions
// always override inclusion.
type Scope struct {
	Kind               ScopeKind
	ProductIDs         []string
	CategoryIDs        []string
	ExcludeProductIDs  []string
	ExcludeCategoryIDs []string
}

// Shape is the kind-specific payload of a discount. The set of
// implementations is closed; see the variant types below.
type Shape interface {
	Kind() Kind
	shape()
}

// Percentage takes Percent percent off the matched subtotal.
type Percentage struct {
	Percent decimal.Decimal
}

// FixedAmount takes a fixed amount off the matched subtotal.
type FixedAmount struct {
	Amount decimal.Decimal
}

// FreeShipping waives shipping without a monetary amount.
type FreeShipping struct{}

// GiftCard contributes up to Balance against the remaining order total.
type GiftCard struct {
	Balance decimal.Decimal
}

// GiftProduct triggers zero-price gift items. When SameProduct is set the
// matched products themselves are gifted and ProductIDs is ignored.
type GiftProduct struct {
	ProductIDs  []string
	SameProduct bool
}

// BuyXPayY charges PayAmount for every complete group of BuyQuantity units.
type BuyXPayY struct {
	BuyQuantity int
	PayAmount   decimal.Decimal
}

// BuyXGetY makes the GetQuantity cheapest units of every complete group of
// BuyQuantity units free.
type BuyXGetY struct {
	BuyQuantity int
	GetQuantity int
}

// SpendXPayY charges PayAmount for every full SpendAmount of matched subtotal.
type SpendXPayY struct {
	SpendAmount decimal.Decimal
	PayAmount   decimal.Decimal
}

// QuantityTiered applies the percentage of the highest tier reached by the
// matched quantity.
type QuantityTiered struct {
	Tiers []Tier
}

// Tier is a single step of a QuantityTiered discount.
type Tier struct {
	MinQuantity     int
	DiscountPercent decimal.Decimal
}

func (Percentage) Kind() Kind     { return KindPercentage }
func (FixedAmount) Kind() Kind    { return KindFixedAmount }
func (FreeShipping) Kind() Kind   { return KindFreeShipping }
func (GiftCard) Kind() Kind       { return KindGiftCard }
func (GiftProduct) Kind() Kind    { return KindGiftProduct }
func (BuyXPayY) Kind() Kind       { return KindBuyXPayY }
func (BuyXGetY) Kind() Kind       { return KindBuyXGetY }
func (SpendXPayY) Kind() Kind     { return KindSpendXPayY }
func (QuantityTiered) Kind() Kind { return KindQuantityTiered }

func (Percentage) shape()     {}
func (FixedAmount) shape()    {}
func (FreeShipping) shape()   {}
func (GiftCard) shape()       {}
func (GiftProduct) shape()    {}
func (BuyXPayY) shape()       {}
func (BuyXGetY) shape()       {}
func (SpendXPayY) shape()     {}
func (QuantityTiered) shape() {}

// Discount is one automatic promotion or redeemed coupon as resolved by the
// caller. The engine only reads it.
type Discount struct {
	ID        string
	Code      string
	Title     string
	Shape     Shape
	Scope     Scope
	Stackable bool

	// MinimumAmount and MinimumQuantity are evaluated against the matched
	// items, not the whole cart. Invalid values mean "no minimum".
	MinimumAmount   decimal.NullDecimal
	MinimumQuantity int
}

// Kind reports the discount kind, or an empty Kind when Shape is unset.
func (d Discount) Kind() Kind {
	if d.Shape == nil {
		return ""
	}
	return d.Shape.Kind()
}

// IsCoupon reports whether the discount was entered as a code.
func (d Discount) IsCoupon() bool {
	return d.Code != ""
}

// LineItem is a cart line reduced to the fields pricing needs.
type LineItem struct {
	ID         string
	ProductID  string
	VariantID  string
	CategoryID string
	Price      decimal.Decimal
	Quantity   int

	// Gift marks items inserted as the effect of a gift_product discount;
	// GiftDiscountID names that discount. Gift items never match and never
	// count towards the payable total.
	Gift           bool
	GiftDiscountID string
}

// Total returns price * quantity for the line.
func (li LineItem) Total() decimal.Decimal {
	return li.Price.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Context carries the per-call pricing flags.
type Context struct {
	IsMember bool
	// ShippingAmount is informational and only used to report the savings
	// of a free shipping discount.
	ShippingAmount decimal.Decimal
}

// Applied is a single entry of the result ledger.
type Applied struct {
	DiscountID     string
	Code           string
	Title          string
	Kind           Kind
	Amount         decimal.Decimal
	FreeShipping   bool
	GiftProductIDs []string
	// ItemIDs lists the matched line items, in cart order.
	ItemIDs []string
}

// Result is the output of a pricing call.
type Result struct {
	Applied         []Applied
	FreeShipping    bool
	ShippingSavings decimal.Decimal
	Subtotal        decimal.Decimal
	TotalDiscount   decimal.Decimal
	Remaining       decimal.Decimal
}

// GiftProductIDs returns the triggered gift products keyed by discount id.
func (r Result) GiftProductIDs() map[string][]string {
	out := make(map[string][]string)
	for _, a := range r.Applied {
		if len(a.GiftProductIDs) > 0 {
			out[a.DiscountID] = a.GiftProductIDs
		}
	}
	return out
}

// AppliedIDs returns the ids of the applied discounts in ledger order.
func (r Result) AppliedIDs() []string {
	ids := make([]string, len(r.Applied))
	for i, a := range r.Applied {
		ids[i] = a.DiscountID
	}
	return ids
}
