package wire

import (
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/xenking/storefront-promotions/internal/domain/discount"
)

// LineItem writes a cart or order line.
func LineItem(e *jx.Encoder, item discount.LineItem) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(item.ID)
	e.FieldStart("product_id")
	e.Str(item.ProductID)
	if item.VariantID != "" {
		e.FieldStart("variant_id")
		e.Str(item.VariantID)
	}
	e.FieldStart("category_id")
	e.Str(item.CategoryID)
	e.FieldStart("price")
	Decimal(e, item.Price)
	e.FieldStart("quantity")
	e.Int(item.Quantity)
	if item.Gift {
		e.FieldStart("gift")
		e.Bool(true)
		e.FieldStart("gift_discount_id")
		e.Str(item.GiftDiscountID)
	}
	e.ObjEnd()
}

// LineItems writes an array of lines.
func LineItems(e *jx.Encoder, items []discount.LineItem) {
	e.ArrStart()
	for _, item := range items {
		LineItem(e, item)
	}
	e.ArrEnd()
}

// DecodeLineItems reads an array written by LineItems.
func DecodeLineItems(d *jx.Decoder) ([]discount.LineItem, error) {
	var items []discount.LineItem
	err := d.Arr(func(d *jx.Decoder) error {
		var item discount.LineItem
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				item.ID, err = d.Str()
			case "product_id":
				item.ProductID, err = d.Str()
			case "variant_id":
				item.VariantID, err = d.Str()
			case "category_id":
				item.CategoryID, err = d.Str()
			case "price":
				item.Price, err = DecodeDecimal(d)
			case "quantity":
				item.Quantity, err = d.Int()
			case "gift":
				item.Gift, err = d.Bool()
			case "gift_discount_id":
				item.GiftDiscountID, err = d.Str()
			default:
				err = d.Skip()
			}
			return errors.Wrap(err, key)
		}); err != nil {
			return err
		}
		items = append(items, item)
		return nil
	})
	return items, err
}

// Applied writes a ledger record.
func Applied(e *jx.Encoder, a discount.Applied) {
	e.ObjStart()
	e.FieldStart("discount_id")
	e.Str(a.DiscountID)
	if a.Code != "" {
		e.FieldStart("code")
		e.Str(a.Code)
	}
	if a.Title != "" {
		e.FieldStart("title")
		e.Str(a.Title)
	}
	e.FieldStart("kind")
	e.Str(string(a.Kind))
	e.FieldStart("amount")
	Decimal(e, a.Amount)
	e.FieldStart("free_shipping")
	e.Bool(a.FreeShipping)
	if len(a.GiftProductIDs) > 0 {
		e.FieldStart("gift_product_ids")
		Strings(e, a.GiftProductIDs)
	}
	e.FieldStart("item_ids")
	Strings(e, a.ItemIDs)
	e.ObjEnd()
}

// AppliedList writes the ledger.
func AppliedList(e *jx.Encoder, list []discount.Applied) {
	e.ArrStart()
	for _, a := range list {
		Applied(e, a)
	}
	e.ArrEnd()
}

// DecodeAppliedList reads a ledger written by AppliedList.
func DecodeAppliedList(d *jx.Decoder) ([]discount.Applied, error) {
	var list []discount.Applied
	err := d.Arr(func(d *jx.Decoder) error {
		var a discount.Applied
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "discount_id":
				a.DiscountID, err = d.Str()
			case "code":
				a.Code, err = d.Str()
			case "title":
				a.Title, err = d.Str()
			case "kind":
				var s string
				s, err = d.Str()
				a.Kind = discount.Kind(s)
			case "amount":
				a.Amount, err = DecodeDecimal(d)
			case "free_shipping":
				a.FreeShipping, err = d.Bool()
			case "gift_product_ids":
				a.GiftProductIDs, err = DecodeStrings(d)
			case "item_ids":
				a.ItemIDs, err = DecodeStrings(d)
			default:
				err = d.Skip()
			}
			return errors.Wrap(err, key)
		}); err != nil {
			return err
		}
		list = append(list, a)
		return nil
	})
	return list, err
}

// Tiers writes quantity tiers.
func Tiers(e *jx.Encoder, tiers []discount.Tier) {
	e.ArrStart()
	for _, t := range tiers {
		e.ObjStart()
		e.FieldStart("min_quantity")
		e.Int(t.MinQuantity)
		e.FieldStart("discount_percent")
		e.Num(jx.Num(t.DiscountPercent.String()))
		e.ObjEnd()
	}
	e.ArrEnd()
}

// DecodeTiers reads quantity tiers.
func DecodeTiers(d *jx.Decoder) ([]discount.Tier, error) {
	var tiers []discount.Tier
	err := d.Arr(func(d *jx.Decoder) error {
		var t discount.Tier
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "min_quantity":
				t.MinQuantity, err = d.Int()
			case "discount_percent":
				t.DiscountPercent, err = DecodeDecimal(d)
			default:
				err = d.Skip()
			}
			return errors.Wrap(err, key)
		}); err != nil {
			return err
		}
		tiers = append(tiers, t)
		return nil
	})
	return tiers, err
}
