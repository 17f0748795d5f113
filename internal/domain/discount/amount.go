package discount

import (
	"slices"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Effect is the outcome of a single discount evaluated in isolation.
type Effect struct {
	Amount         decimal.Decimal
	FreeShipping   bool
	GiftProductIDs []string
}

// ComputeAmount evaluates d against its match result using the default
// engine options. See Engine.ComputeAmount.
func ComputeAmount(d Discount, m MatchResult, remaining decimal.Decimal) (Effect, bool) {
	return defaultEngine.ComputeAmount(d, m, remaining)
}

// ComputeAmount returns the effect of d on the matched items. The amount is
// derived from the matched subset only, rounded to the engine precision and
// capped at remaining so the order total never goes negative. The boolean is
// false when the shape itself disqualifies the discount (no tier reached,
// zero spend step, unknown shape).
func (e *Engine) ComputeAmount(d Discount, m MatchResult, remaining decimal.Decimal) (Effect, bool) {
	remaining = floorAtZero(remaining)

	var (
		eff Effect
		raw decimal.Decimal
	)
	switch s := d.Shape.(type) {
	case Percentage:
		raw = m.Subtotal.Mul(clampPercent(s.Percent)).Div(hundred)
	case FixedAmount:
		raw = decimal.Min(floorAtZero(s.Amount), m.Subtotal)
	case FreeShipping:
		eff.FreeShipping = true
		raw = zero
	case GiftCard:
		raw = decimal.Min(floorAtZero(s.Balance), remaining)
	case GiftProduct:
		eff.GiftProductIDs = giftProducts(s, m.Items)
		raw = zero
	case BuyXPayY:
		if s.BuyQuantity <= 0 {
			return Effect{}, false
		}
		raw = e.buyXPayY(s, m.Items)
	case BuyXGetY:
		if s.BuyQuantity <= 0 {
			return Effect{}, false
		}
		raw = e.buyXGetY(s, m.Items)
	case SpendXPayY:
		if !s.SpendAmount.IsPositive() {
			return Effect{}, false
		}
		raw = spendXPayY(s, m.Subtotal)
	case QuantityTiered:
		tier, ok := highestTier(s.Tiers, m.Quantity)
		if !ok {
			return Effect{}, false
		}
		raw = m.Subtotal.Mul(clampPercent(tier.DiscountPercent)).Div(hundred)
	default:
		return Effect{}, false
	}

	eff.Amount = decimal.Min(floorAtZero(raw).Round(e.precision), remaining)
	return eff, true
}

// buyXPayY charges PayAmount per complete group of BuyQuantity units.
func (e *Engine) buyXPayY(s BuyXPayY, items []LineItem) decimal.Decimal {
	pay := floorAtZero(s.PayAmount)
	total := zero
	for _, group := range e.groups(items, s.BuyQuantity) {
		saving := sum(group).Sub(pay)
		total = total.Add(floorAtZero(saving))
	}
	return total
}

// buyXGetY frees the cheapest GetQuantity units of every complete group.
func (e *Engine) buyXGetY(s BuyXGetY, items []LineItem) decimal.Decimal {
	free := min(max(s.GetQuantity, 0), s.BuyQuantity)
	if free == 0 {
		return zero
	}
	total := zero
	for _, group := range e.groups(items, s.BuyQuantity) {
		slices.SortStableFunc(group, func(a, b decimal.Decimal) int { return a.Cmp(b) })
		total = total.Add(sum(group[:free]))
	}
	return total
}

func spendXPayY(s SpendXPayY, subtotal decimal.Decimal) decimal.Decimal {
	multiples := subtotal.Div(s.SpendAmount).Floor()
	saving := floorAtZero(s.SpendAmount.Sub(floorAtZero(s.PayAmount)))
	return decimal.Min(multiples.Mul(saving), subtotal)
}

// highestTier returns the tier with the largest MinQuantity not above qty.
func highestTier(tiers []Tier, qty int) (Tier, bool) {
	var (
		best  Tier
		found bool
	)
	for _, t := range tiers {
		if t.MinQuantity > qty {
			continue
		}
		if !found || t.MinQuantity > best.MinQuantity {
			best, found = t, true
		}
	}
	return best, found
}

// giftProducts returns the configured gift ids, or the matched items' own
// product ids (cart order, deduplicated) for same-product gifts.
func giftProducts(s GiftProduct, items []LineItem) []string {
	var src []string
	if s.SameProduct {
		src = make([]string, 0, len(items))
		for _, item := range items {
			src = append(src, item.ProductID)
		}
	} else {
		src = s.ProductIDs
	}

	out := make([]string, 0, len(src))
	for _, id := range src {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// groups expands items into unit prices in grouping order and splits them
// into complete groups of size n. Leftover units are dropped.
func (e *Engine) groups(items []LineItem, n int) [][]decimal.Decimal {
	ordered := slices.Clone(items)
	switch e.grouping {
	case GroupingPriceDesc:
		slices.SortStableFunc(ordered, func(a, b LineItem) int { return b.Price.Cmp(a.Price) })
	case GroupingPriceAsc:
		slices.SortStableFunc(ordered, func(a, b LineItem) int { return a.Price.Cmp(b.Price) })
	}

	var units []decimal.Decimal
	for _, item := range ordered {
		for range item.Quantity {
			units = append(units, floorAtZero(item.Price))
		}
	}

	out := make([][]decimal.Decimal, 0, len(units)/n)
	for i := 0; i+n <= len(units); i += n {
		out = append(out, slices.Clone(units[i:i+n]))
	}
	return out
}

func sum(values []decimal.Decimal) decimal.Decimal {
	total := zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

func clampPercent(p decimal.Decimal) decimal.Decimal {
	return decimal.Min(floorAtZero(p), hundred)
}

// floorAtZero clamps negative values to zero.
func floorAtZero(d decimal.Decimal) decimal.Decimal {
	if d.IsNegative() {
		return zero
	}
	return d
}
