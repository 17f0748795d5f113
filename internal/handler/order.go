package handler

import (
	"net/http"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront-promotions/internal/domain/order"
)

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request, storeID string) {
	req, err := decodePricingRequest(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	res, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		StoreID:        storeID,
		Email:          req.Email,
		Member:         req.Member,
		ShippingAmount: req.ShippingAmount,
		Items:          req.Items,
		CouponCodes:    req.CouponCodes,
	})
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeOrder(e, res.Order)
	})
}

func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request, storeID string) {
	o, err := h.orders.Get(r.Context(), storeID, r.PathValue("id"))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeOrder(e, o)
	})
}
