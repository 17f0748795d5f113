// Package product defines the store catalog read model.
package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product is a catalog item available for purchase in a store.
type Product struct {
	ID         string
	StoreID    string
	Name       string
	Price      decimal.Decimal
	CategoryID string
	Image      Image
}

// Image holds responsive image URLs for a product.
type Image struct {
	Thumbnail string
	Mobile    string
	Tablet    string
	Desktop   string
}

// Repository defines read operations for a store catalog.
type Repository interface {
	List(ctx context.Context, storeID string) ([]Product, error)
	GetByID(ctx context.Context, storeID, id string) (*Product, error)
	// GetByIDs returns the products found; missing ids are skipped.
	GetByIDs(ctx context.Context, storeID string, ids []string) ([]Product, error)
}
