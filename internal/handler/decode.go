package handler

import (
	"io"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-promotions/internal/domain/cart"
	"github.com/xenking/storefront-promotions/internal/wire"
)

// pricingRequest is the body shared by quote, coupon validation, cart
// items and order requests. Not every endpoint reads every field.
type pricingRequest struct {
	Email          string
	Member         bool
	ShippingAmount decimal.Decimal
	Items          []cart.ItemRequest
	CouponCodes    []string
	Code           string
}

func bodyDecoder(r *http.Request) *jx.Decoder {
	return jx.Decode(io.LimitReader(r.Body, maxBodyBytes), 4096)
}

// decodePricingRequest reads a pricingRequest. Field names are snake_case;
// the camelCase names of the first API version are still accepted.
func decodePricingRequest(r *http.Request) (pricingRequest, error) {
	var req pricingRequest
	err := bodyDecoder(r).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "email":
			req.Email, err = d.Str()
		case "member", "is_member":
			req.Member, err = d.Bool()
		case "shipping_amount", "shippingAmount":
			req.ShippingAmount, err = wire.DecodeDecimal(d)
		case "items":
			req.Items, err = decodeItemRequests(d)
		case "coupon_codes", "couponCodes":
			req.CouponCodes, err = wire.DecodeStrings(d)
		case "coupon_code", "couponCode":
			var code string
			if code, err = d.Str(); err == nil && code != "" {
				req.CouponCodes = append(req.CouponCodes, code)
			}
		case "code":
			req.Code, err = d.Str()
		default:
			err = d.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		return req, badRequest(err)
	}
	if req.ShippingAmount.IsNegative() {
		return req, badRequest(errors.New("shipping_amount must not be negative"))
	}
	return req, nil
}

func decodeItemRequests(d *jx.Decoder) ([]cart.ItemRequest, error) {
	var items []cart.ItemRequest
	err := d.Arr(func(d *jx.Decoder) error {
		var item cart.ItemRequest
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "product_id", "productId":
				item.ProductID, err = d.Str()
			case "variant_id", "variantId":
				item.VariantID, err = d.Str()
			case "quantity":
				item.Quantity, err = d.Int()
			default:
				err = d.Skip()
			}
			return errors.Wrap(err, key)
		}); err != nil {
			return err
		}
		if item.ProductID == "" {
			return errors.New("product_id is required")
		}
		items = append(items, item)
		return nil
	})
	return items, err
}
