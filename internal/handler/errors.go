package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/storefront-promotions/internal/domain/cart"
	"github.com/xenking/storefront-promotions/internal/domain/coupon"
	"github.com/xenking/storefront-promotions/internal/domain/order"
	"github.com/xenking/storefront-promotions/internal/domain/product"
	"github.com/xenking/storefront-promotions/pkg/httpmiddleware"
)

// badRequestError marks malformed request bodies.
type badRequestError struct {
	err error
}

func (e *badRequestError) Error() string { return e.err.Error() }

func (e *badRequestError) Unwrap() error { return e.err }

func badRequest(err error) error {
	return &badRequestError{err: err}
}

// fail writes the error response for err.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := classify(err)
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("request failed", zap.Error(err))
	}
	httpmiddleware.WriteError(w, status, msg)
}

// classify maps err to a status code and a client-safe message.
func classify(err error) (int, string) {
	var (
		badReq    *badRequestError
		invalidQt *cart.InvalidQuantityError
		notFound  *cart.ProductNotFoundError
		conflict  *order.RedemptionConflictError
	)
	switch {
	case errors.As(err, &badReq):
		return http.StatusBadRequest, "invalid request: " + badReq.Error()
	case errors.Is(err, order.ErrEmptyItems):
		return http.StatusBadRequest, err.Error()
	case errors.As(err, &invalidQt):
		return http.StatusBadRequest, invalidQt.Error()
	case errors.As(err, &notFound):
		return http.StatusUnprocessableEntity, notFound.Error()
	case errors.Is(err, product.ErrNotFound):
		return http.StatusNotFound, "product not found"
	case errors.Is(err, cart.ErrCartNotFound), errors.Is(err, cart.ErrStoreMismatch):
		return http.StatusNotFound, "cart not found"
	case errors.Is(err, cart.ErrCouponNotOnCart):
		return http.StatusNotFound, cart.ErrCouponNotOnCart.Error()
	case errors.Is(err, order.ErrNotFound):
		return http.StatusNotFound, "order not found"
	case errors.Is(err, cart.ErrVersionConflict):
		return http.StatusConflict, "cart was modified concurrently, retry"
	case errors.As(err, &conflict):
		return http.StatusConflict, conflict.Error()
	case coupon.IsRejection(err):
		return http.StatusUnprocessableEntity, err.Error()
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}
