package cart

import (
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-promotions/internal/domain/discount"
	"github.com/xenking/storefront-promotions/internal/domain/product"
)

// GiftChange summarizes what ReconcileGifts did.
type GiftChange struct {
	Added   int
	Removed int
}

// Changed reports whether any gift item was added or removed.
func (g GiftChange) Changed() bool {
	return g.Added > 0 || g.Removed > 0
}

type giftKey struct {
	discountID string
	productID  string
}

// ReconcileGifts brings the gift items of a cart in line with a pricing
// result. Each (discount, product) pair moves between two states: no gift
// item, or exactly one gift item tagged with the discount id. A pair enters
// the second state when the discount yields the product and leaves it when
// the discount stops yielding it. Products missing from catalog are not
// inserted. Purchased items keep their order; surviving gifts follow them,
// then new gifts in ledger order.
func ReconcileGifts(items []discount.LineItem, res discount.Result, catalog map[string]product.Product) ([]discount.LineItem, GiftChange) {
	var (
		want   = make(map[giftKey]bool)
		wanted []giftKey
	)
	for _, a := range res.Applied {
		for _, id := range a.GiftProductIDs {
			k := giftKey{discountID: a.DiscountID, productID: id}
			if want[k] {
				continue
			}
			want[k] = true
			wanted = append(wanted, k)
		}
	}

	var (
		change  GiftChange
		present = make(map[giftKey]bool)
		out     = make([]discount.LineItem, 0, len(items)+len(wanted))
		gifts   []discount.LineItem
	)
	for _, item := range items {
		if !item.Gift {
			out = append(out, item)
			continue
		}
		k := giftKey{discountID: item.GiftDiscountID, productID: item.ProductID}
		if !want[k] || present[k] {
			change.Removed++
			continue
		}
		present[k] = true
		gifts = append(gifts, item)
	}
	out = append(out, gifts...)

	for _, k := range wanted {
		if present[k] {
			continue
		}
		p, ok := catalog[k.productID]
		if !ok {
			continue
		}
		present[k] = true
		out = append(out, giftItem(k, p))
		change.Added++
	}
	return out, change
}

func giftItem(k giftKey, p product.Product) discount.LineItem {
	return discount.LineItem{
		ID:             "gift:" + k.discountID + ":" + k.productID,
		ProductID:      p.ID,
		CategoryID:     p.CategoryID,
		Price:          decimal.Zero,
		Quantity:       1,
		Gift:           true,
		GiftDiscountID: k.discountID,
	}
}
