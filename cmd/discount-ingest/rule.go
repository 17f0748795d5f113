package main

import (
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-promotions/internal/domain/coupon"
	"github.com/xenking/storefront-promotions/internal/domain/discount"
	"github.com/xenking/storefront-promotions/internal/wire"
)

// decodeRule reads one coupon definition line:
//
//	{"store_id":"s1","code":"SAVE10","kind":"percentage","value":"10",
//	 "scope":{"kind":"category","category_ids":["shoes"]},"max_uses":100}
//
// Missing ids default to store:code, missing active to true.
func decodeRule(line []byte) (*coupon.Rule, error) {
	var (
		rule   = &coupon.Rule{Active: true}
		d      = &rule.Discount
		kind   discount.Kind
		params discount.Params
	)
	d.Scope.Kind = discount.ScopeAll

	err := jx.DecodeBytes(line).Obj(func(dec *jx.Decoder, key string) error {
		var err error
		switch key {
		case "store_id":
			rule.StoreID, err = dec.Str()
		case "code":
			d.Code, err = dec.Str()
		case "id":
			d.ID, err = dec.Str()
		case "title":
			d.Title, err = dec.Str()
		case "description":
			rule.Description, err = dec.Str()
		case "kind":
			var s string
			s, err = dec.Str()
			kind = discount.Kind(s)
		case "value":
			params.Value, err = wire.DecodeNullDecimal(dec)
		case "spend_amount":
			params.SpendAmount, err = wire.DecodeNullDecimal(dec)
		case "buy_quantity":
			params.BuyQuantity, err = dec.Int()
		case "get_quantity":
			params.GetQuantity, err = dec.Int()
		case "tiers":
			params.Tiers, err = wire.DecodeTiers(dec)
		case "product_ids":
			params.ProductIDs, err = wire.DecodeStrings(dec)
		case "same_product":
			params.SameProduct, err = dec.Bool()
		case "scope":
			err = decodeScope(dec, &d.Scope)
		case "stackable":
			d.Stackable, err = dec.Bool()
		case "minimum_amount":
			d.MinimumAmount, err = wire.DecodeNullDecimal(dec)
		case "minimum_quantity":
			d.MinimumQuantity, err = dec.Int()
		case "active":
			rule.Active, err = dec.Bool()
		case "valid_from":
			rule.ValidFrom, err = decodeTime(dec)
		case "valid_until":
			rule.ValidUntil, err = decodeTime(dec)
		case "max_uses":
			rule.MaxUses, err = dec.Int()
		case "max_uses_per_customer":
			rule.MaxUsesPerCustomer, err = dec.Int()
		case "first_order_only":
			rule.FirstOrderOnly, err = dec.Bool()
		default:
			err = dec.Skip()
		}
		return errors.Wrap(err, key)
	})
	if err != nil {
		return nil, err
	}

	if rule.StoreID == "" {
		return nil, errors.New("store_id is required")
	}
	if d.Code = coupon.NormalizeCode(d.Code); d.Code == "" {
		return nil, errors.New("code is required")
	}
	if d.ID == "" {
		d.ID = rule.StoreID + ":" + d.Code
	}
	if d.Shape, err = discount.NewShape(kind, params); err != nil {
		return nil, errors.Wrapf(err, "coupon %s", d.Code)
	}
	if kind == discount.KindGiftCard {
		d.Scope = discount.Scope{Kind: discount.ScopeAll}
	}
	return rule, nil
}

func decodeScope(dec *jx.Decoder, s *discount.Scope) error {
	return dec.Obj(func(dec *jx.Decoder, key string) error {
		var err error
		switch key {
		case "kind":
			var k string
			k, err = dec.Str()
			s.Kind = discount.ScopeKind(k)
		case "product_ids":
			s.ProductIDs, err = wire.DecodeStrings(dec)
		case "category_ids":
			s.CategoryIDs, err = wire.DecodeStrings(dec)
		case "exclude_product_ids":
			s.ExcludeProductIDs, err = wire.DecodeStrings(dec)
		case "exclude_category_ids":
			s.ExcludeCategoryIDs, err = wire.DecodeStrings(dec)
		default:
			err = dec.Skip()
		}
		return errors.Wrap(err, key)
	})
}

func decodeTime(dec *jx.Decoder) (*time.Time, error) {
	if dec.Next() == jx.Null {
		return nil, dec.Null()
	}
	s, err := dec.Str()
	if err != nil {
		return nil, err
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}
