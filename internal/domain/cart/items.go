package cart

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-faster/errors"

	"github.com/xenking/storefront-promotions/internal/domain/discount"
	"github.com/xenking/storefront-promotions/internal/domain/product"
)

// ItemRequest is a line as submitted by a client. Prices always come from
// the catalog.
type ItemRequest struct {
	ProductID string
	VariantID string
	Quantity  int
}

// ProductNotFoundError indicates a requested product does not exist.
type ProductNotFoundError struct {
	ProductID string
}

func (e *ProductNotFoundError) Error() string {
	return fmt.Sprintf("product %s not found", e.ProductID)
}

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %s", e.ProductID)
}

// BuildItems resolves requested lines against the store catalog in a single
// batch and returns them as priced line items, in request order.
func BuildItems(ctx context.Context, products product.Repository, storeID string, reqs []ItemRequest) ([]discount.LineItem, error) {
	if len(reqs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(reqs))
	for i, r := range reqs {
		if r.Quantity <= 0 {
			return nil, &InvalidQuantityError{ProductID: r.ProductID}
		}
		ids[i] = r.ProductID
	}

	fetched, err := products.GetByIDs(ctx, storeID, ids)
	if err != nil {
		return nil, errors.Wrap(err, "get products")
	}
	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	items := make([]discount.LineItem, len(reqs))
	for i, r := range reqs {
		p, ok := byID[r.ProductID]
		if !ok {
			return nil, &ProductNotFoundError{ProductID: r.ProductID}
		}
		items[i] = discount.LineItem{
			ID:         strconv.Itoa(i + 1),
			ProductID:  p.ID,
			VariantID:  r.VariantID,
			CategoryID: p.CategoryID,
			Price:      p.Price,
			Quantity:   r.Quantity,
		}
	}
	return items, nil
}
