package discount

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewShape(t *testing.T) {
	val := decimal.NewNullDecimal(d("10"))

	tests := []struct {
		name    string
		kind    Kind
		params  Params
		want    Shape
		wantErr string
	}{
		{name: "percentage", kind: KindPercentage, params: Params{Value: val}, want: Percentage{Percent: d("10")}},
		{name: "percentage without value", kind: KindPercentage, wantErr: "percentage requires a value"},
		{name: "free shipping ignores params", kind: KindFreeShipping, params: Params{Value: val}, want: FreeShipping{}},
		{name: "buy x pay y", kind: KindBuyXPayY, params: Params{BuyQuantity: 3, Value: val}, want: BuyXPayY{BuyQuantity: 3, PayAmount: d("10")}},
		{name: "buy x get y", kind: KindBuyXGetY, params: Params{BuyQuantity: 3, GetQuantity: 1}, want: BuyXGetY{BuyQuantity: 3, GetQuantity: 1}},
		{
			name:   "spend x pay y",
			kind:   KindSpendXPayY,
			params: Params{SpendAmount: decimal.NewNullDecimal(d("100")), Value: decimal.NewNullDecimal(d("80"))},
			want:   SpendXPayY{SpendAmount: d("100"), PayAmount: d("80")},
		},
		{name: "spend x pay y without spend", kind: KindSpendXPayY, params: Params{Value: val}, wantErr: "spend amount"},
		{name: "gift product needs ids", kind: KindGiftProduct, wantErr: "product ids"},
		{name: "same product gift", kind: KindGiftProduct, params: Params{SameProduct: true}, want: GiftProduct{SameProduct: true}},
		{name: "tiers required", kind: KindQuantityTiered, wantErr: "requires tiers"},
		{name: "unknown kind", kind: "bogus", wantErr: `unknown discount kind "bogus"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewShape(tt.kind, tt.params)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
