package discount

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// GroupingPolicy decides the order in which matched units are packed into
// groups for buy_x_pay_y and buy_x_get_y discounts.
type GroupingPolicy string

const (
	// GroupingCartOrder packs units in cart order.
	GroupingCartOrder GroupingPolicy = "cart_order"
	// GroupingPriceDesc packs the most expensive units first.
	GroupingPriceDesc GroupingPolicy = "price_desc"
	// GroupingPriceAsc packs the cheapest units first.
	GroupingPriceAsc GroupingPolicy = "price_asc"
)

// ParseGroupingPolicy validates a configured policy name. An empty name
// selects GroupingCartOrder.
func ParseGroupingPolicy(s string) (GroupingPolicy, error) {
	switch p := GroupingPolicy(s); p {
	case "":
		return GroupingCartOrder, nil
	case GroupingCartOrder, GroupingPriceDesc, GroupingPriceAsc:
		return p, nil
	default:
		return "", errors.Errorf("unknown grouping policy %q", s)
	}
}

// DefaultPrecision is the number of decimal places amounts are rounded to.
const DefaultPrecision int32 = 2

// Engine evaluates discounts. The zero value is not usable; construct it
// with New. An Engine is immutable and safe for concurrent use.
type Engine struct {
	grouping  GroupingPolicy
	precision int32
}

// Option configures an Engine.
type Option func(*Engine)

// WithGrouping sets the unit grouping policy.
func WithGrouping(p GroupingPolicy) Option {
	return func(e *Engine) {
		e.grouping = p
	}
}

// WithPrecision sets the rounding precision of computed amounts.
func WithPrecision(places int32) Option {
	return func(e *Engine) {
		if places >= 0 {
			e.precision = places
		}
	}
}

// New creates an Engine with the given options applied over the defaults.
func New(opts ...Option) *Engine {
	e := &Engine{
		grouping:  GroupingCartOrder,
		precision: DefaultPrecision,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

var defaultEngine = New()

// Calculate prices items against discounts with the default engine options.
func Calculate(items []LineItem, discounts []Discount, cx Context) Result {
	return defaultEngine.Calculate(items, discounts, cx)
}

// Calculate is the engine entry point. Discounts are evaluated strictly in
// list order; callers place automatic promotions before coupons. The same
// inputs always produce the same Result.
func (e *Engine) Calculate(items []LineItem, discounts []Discount, cx Context) Result {
	return e.Resolve(discounts, items, cx)
}

// candidate is a discount that passed eligibility, with its match result.
type candidate struct {
	discount Discount
	match    MatchResult
}

// Resolve filters the eligible discounts, keeps at most one non-stackable
// discount (the first in input order), and applies the rest in order against
// a running remaining total.
func (e *Engine) Resolve(discounts []Discount, items []LineItem, cx Context) Result {
	subtotal := payableSubtotal(items)

	var (
		eligible      []candidate
		seenExclusive bool
	)
	for _, d := range discounts {
		m := Match(d, items, cx)
		if !m.Eligible || !e.qualifies(d, m) {
			continue
		}
		if !d.Stackable {
			if seenExclusive {
				continue
			}
			seenExclusive = true
		}
		eligible = append(eligible, candidate{discount: d, match: m})
	}

	res := Result{
		Subtotal:        subtotal,
		TotalDiscount:   zero,
		ShippingSavings: zero,
	}
	remaining := subtotal
	for _, c := range eligible {
		eff, ok := e.ComputeAmount(c.discount, c.match, remaining)
		if !ok {
			continue
		}
		remaining = remaining.Sub(eff.Amount)
		if eff.FreeShipping {
			res.FreeShipping = true
		}
		if !eff.Amount.IsPositive() && !eff.FreeShipping && len(eff.GiftProductIDs) == 0 {
			continue
		}
		res.Applied = append(res.Applied, Applied{
			DiscountID:     c.discount.ID,
			Code:           c.discount.Code,
			Title:          c.discount.Title,
			Kind:           c.discount.Kind(),
			Amount:         eff.Amount,
			FreeShipping:   eff.FreeShipping,
			GiftProductIDs: eff.GiftProductIDs,
			ItemIDs:        itemIDs(c.match.Items),
		})
		res.TotalDiscount = res.TotalDiscount.Add(eff.Amount)
	}

	res.Remaining = floorAtZero(remaining)
	if res.FreeShipping {
		res.ShippingSavings = floorAtZero(cx.ShippingAmount)
	}
	return res
}

// qualifies reports whether the shape can produce an effect on m. It mirrors
// the disqualifying branches of ComputeAmount so that a discount whose shape
// cannot apply never claims the single non-stackable slot.
func (e *Engine) qualifies(d Discount, m MatchResult) bool {
	_, ok := e.ComputeAmount(d, m, m.Subtotal)
	return ok
}

// payableSubtotal sums price * quantity over non-gift items.
func payableSubtotal(items []LineItem) decimal.Decimal {
	total := zero
	for _, item := range items {
		if item.Gift || item.Quantity <= 0 {
			continue
		}
		total = total.Add(floorAtZero(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	return total
}

func itemIDs(items []LineItem) []string {
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}
