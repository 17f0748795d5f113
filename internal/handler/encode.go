package handler

import (
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/storefront-promotions/internal/domain/cart"
	"github.com/xenking/storefront-promotions/internal/domain/order"
	"github.com/xenking/storefront-promotions/internal/domain/product"
	"github.com/xenking/storefront-promotions/internal/wire"
)

func (h *Handler) encodeProduct(e *jx.Encoder, p product.Product) {
	base := h.imageBaseURL
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("price")
	wire.Decimal(e, p.Price)
	e.FieldStart("category")
	e.Str(p.CategoryID)
	e.FieldStart("image")
	e.ObjStart()
	e.FieldStart("thumbnail")
	e.Str(base + p.Image.Thumbnail)
	e.FieldStart("mobile")
	e.Str(base + p.Image.Mobile)
	e.FieldStart("tablet")
	e.Str(base + p.Image.Tablet)
	e.FieldStart("desktop")
	e.Str(base + p.Image.Desktop)
	e.ObjEnd()
	e.ObjEnd()
}

// encodeQuoteFields writes the pricing fields of q into an open object.
func encodeQuoteFields(e *jx.Encoder, q *cart.Quote) {
	res := q.Result
	e.FieldStart("items")
	wire.LineItems(e, q.Cart.Items)
	e.FieldStart("coupons")
	wire.Strings(e, q.Cart.Coupons)
	e.FieldStart("subtotal")
	wire.Decimal(e, res.Subtotal)
	e.FieldStart("discount")
	wire.Decimal(e, res.TotalDiscount)
	e.FieldStart("shipping")
	wire.Decimal(e, q.Shipping())
	e.FieldStart("free_shipping")
	e.Bool(res.FreeShipping)
	if res.FreeShipping {
		e.FieldStart("shipping_savings")
		wire.Decimal(e, res.ShippingSavings)
	}
	e.FieldStart("total")
	wire.Decimal(e, q.Total())
	e.FieldStart("applied")
	wire.AppliedList(e, res.Applied)
	e.FieldStart("rejected")
	e.ArrStart()
	for _, r := range q.Rejected {
		e.ObjStart()
		e.FieldStart("code")
		e.Str(r.Code)
		e.FieldStart("reason")
		e.Str(r.Reason())
		e.ObjEnd()
	}
	e.ArrEnd()
}

// encodeQuote writes a stateless quote.
func encodeQuote(e *jx.Encoder, q *cart.Quote) {
	e.ObjStart()
	encodeQuoteFields(e, q)
	e.ObjEnd()
}

// encodeCart writes a stored cart with its pricing.
func encodeCart(e *jx.Encoder, q *cart.Quote) {
	c := q.Cart
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("version")
	e.Int64(c.Version)
	if c.Email != "" {
		e.FieldStart("email")
		e.Str(c.Email)
	}
	e.FieldStart("member")
	e.Bool(c.Member)
	if q.Gifts.Changed() {
		e.FieldStart("gifts_added")
		e.Int(q.Gifts.Added)
		e.FieldStart("gifts_removed")
		e.Int(q.Gifts.Removed)
	}
	encodeQuoteFields(e, q)
	e.ObjEnd()
}

func encodeOrder(e *jx.Encoder, o *order.Order) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(o.ID)
	if o.Email != "" {
		e.FieldStart("email")
		e.Str(o.Email)
	}
	e.FieldStart("items")
	wire.LineItems(e, o.Items)
	e.FieldStart("coupons")
	wire.Strings(e, o.CouponCodes)
	e.FieldStart("redeemed")
	wire.Strings(e, o.RedeemedCodes())
	e.FieldStart("subtotal")
	wire.Decimal(e, o.Subtotal)
	e.FieldStart("discounts")
	wire.Decimal(e, o.Discounts)
	e.FieldStart("shipping")
	wire.Decimal(e, o.Shipping)
	e.FieldStart("free_shipping")
	e.Bool(o.FreeShipping)
	e.FieldStart("total")
	wire.Decimal(e, o.Total)
	e.FieldStart("applied")
	wire.AppliedList(e, o.Applied)
	e.FieldStart("created_at")
	e.Str(o.CreatedAt.UTC().Format(time.RFC3339))
	e.ObjEnd()
}
