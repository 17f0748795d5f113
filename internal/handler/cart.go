package handler

import (
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-promotions/internal/domain/cart"
	"github.com/xenking/storefront-promotions/internal/domain/coupon"
)

func (h *Handler) getCart(w http.ResponseWriter, r *http.Request, storeID string) {
	q, err := h.carts.Get(r.Context(), storeID, r.PathValue("id"))
	writeCart(w, r, q, err)
}

func (h *Handler) setCartItems(w http.ResponseWriter, r *http.Request, storeID string) {
	req, err := decodePricingRequest(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	q, err := h.carts.SetItems(r.Context(), cart.SetItemsRequest{
		CartID:         r.PathValue("id"),
		StoreID:        storeID,
		Email:          req.Email,
		Member:         req.Member,
		ShippingAmount: req.ShippingAmount,
		Items:          req.Items,
	})
	writeCart(w, r, q, err)
}

func (h *Handler) applyCoupon(w http.ResponseWriter, r *http.Request, storeID string) {
	req, err := decodePricingRequest(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	if coupon.NormalizeCode(req.Code) == "" {
		fail(w, r, badRequest(errors.New("code is required")))
		return
	}
	q, err := h.carts.ApplyCoupon(r.Context(), storeID, r.PathValue("id"), req.Code)
	writeCart(w, r, q, err)
}

func (h *Handler) removeCoupon(w http.ResponseWriter, r *http.Request, storeID string) {
	q, err := h.carts.RemoveCoupon(r.Context(), storeID, r.PathValue("id"), r.PathValue("code"))
	writeCart(w, r, q, err)
}

func writeCart(w http.ResponseWriter, r *http.Request, q *cart.Quote, err error) {
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeCart(e, q)
	})
}
