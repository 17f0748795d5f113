// Package handler serves the storefront promotions HTTP API. Requests are
// scoped to the store of the authenticating API key.
package handler

import (
	"context"
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront-promotions/internal/domain/auth"
	"github.com/xenking/storefront-promotions/internal/domain/cart"
	"github.com/xenking/storefront-promotions/internal/domain/order"
	"github.com/xenking/storefront-promotions/internal/domain/product"
	"github.com/xenking/storefront-promotions/pkg/httpmiddleware"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

// Carts prices and mutates carts.
type Carts interface {
	Price(ctx context.Context, c *cart.Cart) (*cart.Quote, error)
	Get(ctx context.Context, storeID, cartID string) (*cart.Quote, error)
	SetItems(ctx context.Context, req cart.SetItemsRequest) (*cart.Quote, error)
	ApplyCoupon(ctx context.Context, storeID, cartID, code string) (*cart.Quote, error)
	RemoveCoupon(ctx context.Context, storeID, cartID, code string) (*cart.Quote, error)
}

// Orders places and reads orders.
type Orders interface {
	PlaceOrder(ctx context.Context, req order.PlaceOrderRequest) (*order.PlaceOrderResult, error)
	Get(ctx context.Context, storeID, id string) (*order.Order, error)
}

// Config holds non-dependency configuration for the Handler.
type Config struct {
	// ImageBaseURL is prepended to product image paths. When empty, paths
	// are returned as stored.
	ImageBaseURL string
}

// Handler implements the /api routes.
type Handler struct {
	products     product.Repository
	carts        Carts
	orders       Orders
	imageBaseURL string
}

// New constructs a Handler.
func New(cfg Config, products product.Repository, carts Carts, orders Orders) *Handler {
	return &Handler{
		products:     products,
		carts:        carts,
		orders:       orders,
		imageBaseURL: cfg.ImageBaseURL,
	}
}

// Routes returns the API mux. It expects the API key middleware to have
// run before it.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/product", h.store(h.listProducts))
	mux.HandleFunc("GET /api/product/{id}", h.store(h.getProduct))
	mux.HandleFunc("POST /api/pricing/quote", h.store(h.quote))
	mux.HandleFunc("POST /api/coupon/validate", h.store(h.validateCoupon))
	mux.HandleFunc("GET /api/cart/{id}", h.store(h.getCart))
	mux.HandleFunc("PUT /api/cart/{id}/items", h.store(h.setCartItems))
	mux.HandleFunc("POST /api/cart/{id}/coupon", h.store(h.applyCoupon))
	mux.HandleFunc("DELETE /api/cart/{id}/coupon/{code}", h.store(h.removeCoupon))
	mux.HandleFunc("POST /api/order", h.store(h.placeOrder))
	mux.HandleFunc("GET /api/order/{id}", h.store(h.getOrder))
	return mux
}

type storeHandlerFunc func(w http.ResponseWriter, r *http.Request, storeID string)

// store resolves the store of the authenticated key.
func (h *Handler) store(next storeHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, ok := auth.FromContext(r.Context())
		if !ok || info.StoreID == "" {
			httpmiddleware.WriteError(w, http.StatusUnauthorized, "invalid or missing api key")
			return
		}
		next(w, r, info.StoreID)
	}
}

// writeJSON writes status and the object produced by fn.
func writeJSON(w http.ResponseWriter, status int, fn func(e *jx.Encoder)) {
	e := jx.GetEncoder()
	defer jx.PutEncoder(e)
	fn(e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
