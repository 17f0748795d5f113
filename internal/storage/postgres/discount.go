package postgres

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-promotions/internal/domain/discount"
	"github.com/xenking/storefront-promotions/internal/wire"
)

// discountColumns are shared by the coupons and promotions tables.
const discountColumns = `kind, value, spend_amount, buy_quantity, get_quantity, tiers,
	gift_product_ids, gift_same_product, scope, scope_product_ids, scope_category_ids,
	exclude_product_ids, exclude_category_ids, stackable, minimum_amount, minimum_quantity`

type discountRow struct {
	kind              string
	value             decimal.NullDecimal
	spendAmount       decimal.NullDecimal
	buyQuantity       int
	getQuantity       int
	tiers             []byte
	giftProductIDs    []string
	giftSameProduct   bool
	scope             string
	scopeProductIDs   []string
	scopeCategoryIDs  []string
	excludeProductIDs []string
	excludeCategories []string
	stackable         bool
	minimumAmount     decimal.NullDecimal
	minimumQuantity   int
}

// dest returns scan targets in discountColumns order.
func (r *discountRow) dest() []any {
	return []any{
		&r.kind, &r.value, &r.spendAmount, &r.buyQuantity, &r.getQuantity, &r.tiers,
		&r.giftProductIDs, &r.giftSameProduct, &r.scope, &r.scopeProductIDs, &r.scopeCategoryIDs,
		&r.excludeProductIDs, &r.excludeCategories, &r.stackable, &r.minimumAmount, &r.minimumQuantity,
	}
}

func (r *discountRow) discount(id, code, title string) (discount.Discount, error) {
	tiers, err := decodeTiers(r.tiers)
	if err != nil {
		return discount.Discount{}, errors.Wrapf(err, "decode tiers of %s", id)
	}
	shape, err := discount.NewShape(discount.Kind(r.kind), discount.Params{
		Value:       r.value,
		SpendAmount: r.spendAmount,
		BuyQuantity: r.buyQuantity,
		GetQuantity: r.getQuantity,
		Tiers:       tiers,
		ProductIDs:  r.giftProductIDs,
		SameProduct: r.giftSameProduct,
	})
	if err != nil {
		return discount.Discount{}, errors.Wrapf(err, "discount %s", id)
	}
	return discount.Discount{
		ID:    id,
		Code:  code,
		Title: title,
		Shape: shape,
		Scope: discount.Scope{
			Kind:               discount.ScopeKind(r.scope),
			ProductIDs:         r.scopeProductIDs,
			CategoryIDs:        r.scopeCategoryIDs,
			ExcludeProductIDs:  r.excludeProductIDs,
			ExcludeCategoryIDs: r.excludeCategories,
		},
		Stackable:       r.stackable,
		MinimumAmount:   r.minimumAmount,
		MinimumQuantity: r.minimumQuantity,
	}, nil
}

// discountValues returns query arguments in discountColumns order.
func discountValues(d discount.Discount) []any {
	p := discount.ParamsOf(d.Shape)
	scope := d.Scope.Kind
	if scope == "" {
		scope = discount.ScopeAll
	}
	return []any{
		string(d.Kind()), p.Value, p.SpendAmount, p.BuyQuantity, p.GetQuantity, encodeTiers(p.Tiers),
		nonNil(p.ProductIDs), p.SameProduct, string(scope), nonNil(d.Scope.ProductIDs), nonNil(d.Scope.CategoryIDs),
		nonNil(d.Scope.ExcludeProductIDs), nonNil(d.Scope.ExcludeCategoryIDs), d.Stackable, d.MinimumAmount, d.MinimumQuantity,
	}
}

// nonNil keeps NOT NULL array columns from receiving NULL.
func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func encodeTiers(tiers []discount.Tier) []byte {
	var e jx.Encoder
	wire.Tiers(&e, tiers)
	return e.Bytes()
}

func decodeTiers(raw []byte) ([]discount.Tier, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	return wire.DecodeTiers(jx.DecodeBytes(raw))
}
