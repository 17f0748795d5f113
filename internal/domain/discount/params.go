package discount

import (
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Params is the flat, storage-friendly form of a Shape. Value carries the
// single amount of most kinds: the percent of percentage, the amount of
// fixed_amount, the balance of gift_card and the pay amount of buy_x_pay_y
// and spend_x_pay_y.
type Params struct {
	Value       decimal.NullDecimal
	SpendAmount decimal.NullDecimal
	BuyQuantity int
	GetQuantity int
	Tiers       []Tier
	ProductIDs  []string
	SameProduct bool
}

// NewShape builds the Shape of kind from p.
func NewShape(kind Kind, p Params) (Shape, error) {
	value := func() (decimal.Decimal, error) {
		if !p.Value.Valid {
			return decimal.Zero, errors.Errorf("%s requires a value", kind)
		}
		return p.Value.Decimal, nil
	}

	switch kind {
	case KindPercentage:
		v, err := value()
		return Percentage{Percent: v}, err
	case KindFixedAmount:
		v, err := value()
		return FixedAmount{Amount: v}, err
	case KindFreeShipping:
		return FreeShipping{}, nil
	case KindGiftCard:
		v, err := value()
		return GiftCard{Balance: v}, err
	case KindGiftProduct:
		if !p.SameProduct && len(p.ProductIDs) == 0 {
			return nil, errors.New("gift_product requires product ids")
		}
		return GiftProduct{ProductIDs: p.ProductIDs, SameProduct: p.SameProduct}, nil
	case KindBuyXPayY:
		v, err := value()
		return BuyXPayY{BuyQuantity: p.BuyQuantity, PayAmount: v}, err
	case KindBuyXGetY:
		return BuyXGetY{BuyQuantity: p.BuyQuantity, GetQuantity: p.GetQuantity}, nil
	case KindSpendXPayY:
		v, err := value()
		if err != nil {
			return nil, err
		}
		if !p.SpendAmount.Valid {
			return nil, errors.New("spend_x_pay_y requires a spend amount")
		}
		return SpendXPayY{SpendAmount: p.SpendAmount.Decimal, PayAmount: v}, nil
	case KindQuantityTiered:
		if len(p.Tiers) == 0 {
			return nil, errors.New("quantity_tiered requires tiers")
		}
		return QuantityTiered{Tiers: p.Tiers}, nil
	default:
		return nil, errors.Errorf("unknown discount kind %q", kind)
	}
}

// ParamsOf flattens s. It is the inverse of NewShape.
func ParamsOf(s Shape) Params {
	var p Params
	switch s := s.(type) {
	case Percentage:
		p.Value = decimal.NewNullDecimal(s.Percent)
	case FixedAmount:
		p.Value = decimal.NewNullDecimal(s.Amount)
	case GiftCard:
		p.Value = decimal.NewNullDecimal(s.Balance)
	case GiftProduct:
		p.ProductIDs = s.ProductIDs
		p.SameProduct = s.SameProduct
	case BuyXPayY:
		p.BuyQuantity = s.BuyQuantity
		p.Value = decimal.NewNullDecimal(s.PayAmount)
	case BuyXGetY:
		p.BuyQuantity = s.BuyQuantity
		p.GetQuantity = s.GetQuantity
	case SpendXPayY:
		p.SpendAmount = decimal.NewNullDecimal(s.SpendAmount)
		p.Value = decimal.NewNullDecimal(s.PayAmount)
	case QuantityTiered:
		p.Tiers = s.Tiers
	}
	return p
}
