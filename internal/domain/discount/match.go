package discount

import (
	"slices"

	"github.com/shopspring/decimal"
)

// MatchResult is the subset of line items a discount selects together with
// the aggregates its thresholds are evaluated against.
type MatchResult struct {
	Items    []LineItem
	Subtotal decimal.Decimal
	Quantity int
	Eligible bool
}

// Match selects the line items targeted by d and reports whether d's entry
// conditions hold. It never mutates its arguments.
func Match(d Discount, items []LineItem, cx Context) MatchResult {
	scope := d.Scope
	if d.Kind() == KindGiftCard {
		// Gift cards pay against the order total.
		scope = Scope{Kind: ScopeAll}
	}

	res := MatchResult{Subtotal: zero}
	for _, item := range items {
		if item.Gift || item.Quantity <= 0 {
			continue
		}
		if !included(scope, item) || excluded(scope, item) {
			continue
		}
		res.Items = append(res.Items, item)
		res.Subtotal = res.Subtotal.Add(floorAtZero(item.Price).Mul(decimal.NewFromInt(int64(item.Quantity))))
		res.Quantity += item.Quantity
	}

	res.Eligible = len(res.Items) > 0
	if scope.Kind == ScopeMember && !cx.IsMember {
		res.Eligible = false
	}
	if d.MinimumAmount.Valid && res.Subtotal.LessThan(d.MinimumAmount.Decimal) {
		res.Eligible = false
	}
	if d.MinimumQuantity > 0 && res.Quantity < d.MinimumQuantity {
		res.Eligible = false
	}
	return res
}

func included(s Scope, item LineItem) bool {
	switch s.Kind {
	case ScopeProduct:
		return slices.Contains(s.ProductIDs, item.ProductID)
	case ScopeCategory:
		return item.CategoryID != "" && slices.Contains(s.CategoryIDs, item.CategoryID)
	case ScopeAll, ScopeMember, "":
		return true
	default:
		return false
	}
}

func excluded(s Scope, item LineItem) bool {
	if slices.Contains(s.ExcludeProductIDs, item.ProductID) {
		return true
	}
	return item.CategoryID != "" && slices.Contains(s.ExcludeCategoryIDs, item.CategoryID)
}
