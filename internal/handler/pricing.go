package handler

import (
	"net/http"
	"slices"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-promotions/internal/domain/cart"
	"github.com/xenking/storefront-promotions/internal/domain/coupon"
	"github.com/xenking/storefront-promotions/internal/domain/discount"
	"github.com/xenking/storefront-promotions/internal/wire"
)

// quote prices a cart without storing it. Codes that do not apply are
// reported under "rejected" instead of failing the request.
func (h *Handler) quote(w http.ResponseWriter, r *http.Request, storeID string) {
	req, err := decodePricingRequest(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	q, err := h.price(r, storeID, req, normalizeCodes(req.CouponCodes))
	if err != nil {
		fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		encodeQuote(e, q)
	})
}

// validateCoupon checks whether "code" applies to the given items on top of
// the already entered "coupon_codes", and previews its effect.
func (h *Handler) validateCoupon(w http.ResponseWriter, r *http.Request, storeID string) {
	req, err := decodePricingRequest(r)
	if err != nil {
		fail(w, r, err)
		return
	}
	code := coupon.NormalizeCode(req.Code)
	if code == "" {
		fail(w, r, badRequest(errors.New("code is required")))
		return
	}

	codes := append(normalizeCodes(req.CouponCodes), code)
	q, err := h.price(r, storeID, req, codes)
	if err != nil {
		fail(w, r, err)
		return
	}
	for _, rej := range q.Rejected {
		if rej.Code == code {
			fail(w, r, rej.Err)
			return
		}
	}
	// A valid code can still be outranked by a non-stackable discount
	// evaluated before it, or come out at zero.
	idx := slices.IndexFunc(q.Result.Applied, func(a discount.Applied) bool { return a.Code == code })
	if idx < 0 {
		fail(w, r, errors.Wrapf(coupon.ErrOutranked, "coupon %s", code))
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("valid")
		e.Bool(true)
		e.FieldStart("code")
		e.Str(code)
		e.FieldStart("applied")
		wire.Applied(e, q.Result.Applied[idx])
		e.FieldStart("total")
		wire.Decimal(e, q.Total())
		e.ObjEnd()
	})
}

// price builds a transient cart from req and prices it with codes.
func (h *Handler) price(r *http.Request, storeID string, req pricingRequest, codes []string) (*cart.Quote, error) {
	items, err := cart.BuildItems(r.Context(), h.products, storeID, req.Items)
	if err != nil {
		return nil, err
	}
	return h.carts.Price(r.Context(), &cart.Cart{
		StoreID:        storeID,
		Email:          req.Email,
		Member:         req.Member,
		ShippingAmount: req.ShippingAmount,
		Items:          items,
		Coupons:        codes,
	})
}

func normalizeCodes(codes []string) []string {
	out := make([]string, 0, len(codes)+1)
	for _, c := range codes {
		if c = coupon.NormalizeCode(c); c != "" {
			out = append(out, c)
		}
	}
	return out
}
