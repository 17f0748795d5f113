package discount

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func matchAll(items ...LineItem) MatchResult {
	return Match(Discount{Scope: Scope{Kind: ScopeAll}}, items, Context{})
}

func TestComputeAmount(t *testing.T) {
	tests := []struct {
		name       string
		shape      Shape
		match      MatchResult
		remaining  decimal.Decimal
		wantAmount decimal.Decimal
		wantFree   bool
		wantGifts  []string
		wantNotOK  bool
	}{
		{
			name:       "percentage of matched subtotal",
			shape:      Percentage{Percent: d("10")},
			match:      matchAll(item("l1", "p1", "", "100", 2)),
			remaining:  d("200"),
			wantAmount: d("20"),
		},
		{
			name:       "percentage rounds half up to cents",
			shape:      Percentage{Percent: d("15")},
			match:      matchAll(item("l1", "p1", "", "9.99", 3)),
			remaining:  d("29.97"),
			wantAmount: d("4.50"),
		},
		{
			name:       "percentage above 100 is clamped",
			shape:      Percentage{Percent: d("150")},
			match:      matchAll(item("l1", "p1", "", "40", 1)),
			remaining:  d("40"),
			wantAmount: d("40"),
		},
		{
			name:       "negative percentage is clamped to zero",
			shape:      Percentage{Percent: d("-5")},
			match:      matchAll(item("l1", "p1", "", "40", 1)),
			remaining:  d("40"),
			wantAmount: d("0"),
		},
		{
			name:       "fixed amount capped at matched subtotal",
			shape:      FixedAmount{Amount: d("50")},
			match:      matchAll(item("l1", "p1", "", "30", 1)),
			remaining:  d("500"),
			wantAmount: d("30"),
		},
		{
			name:       "fixed amount capped at remaining payable",
			shape:      FixedAmount{Amount: d("50")},
			match:      matchAll(item("l1", "p1", "", "100", 1)),
			remaining:  d("20"),
			wantAmount: d("20"),
		},
		{
			name:       "free shipping has no monetary amount",
			shape:      FreeShipping{},
			match:      matchAll(item("l1", "p1", "", "100", 1)),
			remaining:  d("100"),
			wantAmount: d("0"),
			wantFree:   true,
		},
		{
			name:       "gift card capped at remaining payable",
			shape:      GiftCard{Balance: d("100")},
			match:      matchAll(item("l1", "p1", "", "50", 1)),
			remaining:  d("30"),
			wantAmount: d("30"),
		},
		{
			name:       "gift card below remaining uses full balance",
			shape:      GiftCard{Balance: d("25")},
			match:      matchAll(item("l1", "p1", "", "50", 1)),
			remaining:  d("50"),
			wantAmount: d("25"),
		},
		{
			name:       "gift product returns configured ids",
			shape:      GiftProduct{ProductIDs: []string{"gift-1", "gift-2", "gift-1"}},
			match:      matchAll(item("l1", "p1", "", "50", 1)),
			remaining:  d("50"),
			wantAmount: d("0"),
			wantGifts:  []string{"gift-1", "gift-2"},
		},
		{
			name:  "gift product same product returns matched product ids",
			shape: GiftProduct{ProductIDs: []string{"ignored"}, SameProduct: true},
			match: matchAll(
				item("l1", "p2", "", "50", 1),
				item("l2", "p1", "", "10", 1),
				item("l3", "p2", "", "50", 1),
			),
			remaining:  d("110"),
			wantAmount: d("0"),
			wantGifts:  []string{"p2", "p1"},
		},
		{
			name:       "buy 2 pay 80 on three units of 50",
			shape:      BuyXPayY{BuyQuantity: 2, PayAmount: d("80")},
			match:      matchAll(item("l1", "p1", "", "50", 3)),
			remaining:  d("150"),
			wantAmount: d("20"),
		},
		{
			name:  "buy 3 pay 100 groups in cart order",
			shape: BuyXPayY{BuyQuantity: 3, PayAmount: d("100")},
			match: matchAll(
				item("l1", "p1", "", "20", 2),
				item("l2", "p2", "", "90", 2),
			),
			// group [20, 20, 90] = 130 -> 30 off; the last 90 is left over
			remaining:  d("220"),
			wantAmount: d("30"),
		},
		{
			name:       "buy x pay y never negative per group",
			shape:      BuyXPayY{BuyQuantity: 2, PayAmount: d("500")},
			match:      matchAll(item("l1", "p1", "", "50", 4)),
			remaining:  d("200"),
			wantAmount: d("0"),
		},
		{
			name:       "buy x pay y with zero group size is not applicable",
			shape:      BuyXPayY{BuyQuantity: 0, PayAmount: d("10")},
			match:      matchAll(item("l1", "p1", "", "50", 4)),
			remaining:  d("200"),
			wantNotOK:  true,
			wantAmount: d("0"),
		},
		{
			name:  "buy 3 get 1 frees cheapest unit per group",
			shape: BuyXGetY{BuyQuantity: 3, GetQuantity: 1},
			match: matchAll(
				item("l1", "p1", "", "30", 1),
				item("l2", "p2", "", "10", 1),
				item("l3", "p3", "", "20", 1),
				item("l4", "p4", "", "5", 1),
			),
			// one complete group [30, 10, 20] -> 10 free; 5 is left over
			remaining:  d("65"),
			wantAmount: d("10"),
		},
		{
			name:       "buy x get y clamps get quantity to group size",
			shape:      BuyXGetY{BuyQuantity: 2, GetQuantity: 5},
			match:      matchAll(item("l1", "p1", "", "10", 2)),
			remaining:  d("20"),
			wantAmount: d("20"),
		},
		{
			name:       "spend 100 pay 80 twice",
			shape:      SpendXPayY{SpendAmount: d("100"), PayAmount: d("80")},
			match:      matchAll(item("l1", "p1", "", "250", 1)),
			remaining:  d("250"),
			wantAmount: d("40"),
		},
		{
			name:       "spend x pay y below first step",
			shape:      SpendXPayY{SpendAmount: d("100"), PayAmount: d("80")},
			match:      matchAll(item("l1", "p1", "", "99", 1)),
			remaining:  d("99"),
			wantAmount: d("0"),
		},
		{
			name:       "spend x pay y with zero spend is not applicable",
			shape:      SpendXPayY{SpendAmount: d("0"), PayAmount: d("10")},
			match:      matchAll(item("l1", "p1", "", "99", 1)),
			remaining:  d("99"),
			wantNotOK:  true,
			wantAmount: d("0"),
		},
		{
			name: "quantity tiered picks highest reached tier",
			shape: QuantityTiered{Tiers: []Tier{
				{MinQuantity: 5, DiscountPercent: d("20")},
				{MinQuantity: 2, DiscountPercent: d("10")},
				{MinQuantity: 10, DiscountPercent: d("30")},
			}},
			match:      matchAll(item("l1", "p1", "", "10", 6)),
			remaining:  d("60"),
			wantAmount: d("12"),
		},
		{
			name: "quantity tiered without reached tier is not applicable",
			shape: QuantityTiered{Tiers: []Tier{
				{MinQuantity: 5, DiscountPercent: d("20")},
			}},
			match:      matchAll(item("l1", "p1", "", "10", 4)),
			remaining:  d("40"),
			wantNotOK:  true,
			wantAmount: d("0"),
		},
		{
			name:       "unset shape is not applicable",
			shape:      nil,
			match:      matchAll(item("l1", "p1", "", "10", 4)),
			remaining:  d("40"),
			wantNotOK:  true,
			wantAmount: d("0"),
		},
		{
			name:       "negative remaining is treated as zero",
			shape:      Percentage{Percent: d("10")},
			match:      matchAll(item("l1", "p1", "", "100", 1)),
			remaining:  d("-5"),
			wantAmount: d("0"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ComputeAmount(Discount{ID: "x", Shape: tt.shape}, tt.match, tt.remaining)

			if tt.wantNotOK {
				require.False(t, ok)
				return
			}
			require.True(t, ok)
			assert.True(t, tt.wantAmount.Equal(got.Amount),
				"expected amount %s, got %s", tt.wantAmount, got.Amount)
			assert.Equal(t, tt.wantFree, got.FreeShipping)
			assert.Equal(t, tt.wantGifts, got.GiftProductIDs)
		})
	}
}

func TestComputeAmount_GroupingPolicy(t *testing.T) {
	m := matchAll(
		item("l1", "p1", "", "10", 1),
		item("l2", "p2", "", "50", 1),
		item("l3", "p3", "", "40", 1),
	)
	shape := BuyXGetY{BuyQuantity: 2, GetQuantity: 1}

	tests := []struct {
		policy GroupingPolicy
		want   decimal.Decimal
	}{
		// [10, 50] -> 10 free
		{policy: GroupingCartOrder, want: d("10")},
		// [50, 40] -> 40 free
		{policy: GroupingPriceDesc, want: d("40")},
		// [10, 40] -> 10 free
		{policy: GroupingPriceAsc, want: d("10")},
	}

	for _, tt := range tests {
		t.Run(string(tt.policy), func(t *testing.T) {
			e := New(WithGrouping(tt.policy))
			got, ok := e.ComputeAmount(Discount{Shape: shape}, m, d("100"))
			require.True(t, ok)
			assert.True(t, tt.want.Equal(got.Amount), "expected %s, got %s", tt.want, got.Amount)
		})
	}
}

func TestComputeAmount_Precision(t *testing.T) {
	m := matchAll(item("l1", "p1", "", "10.01", 1))
	shape := Percentage{Percent: d("33.33")}

	got, ok := New(WithPrecision(0)).ComputeAmount(Discount{Shape: shape}, m, d("10.01"))
	require.True(t, ok)
	assert.True(t, d("3").Equal(got.Amount), "got %s", got.Amount)

	got, ok = New().ComputeAmount(Discount{Shape: shape}, m, d("10.01"))
	require.True(t, ok)
	assert.True(t, d("3.34").Equal(got.Amount), "got %s", got.Amount)
}

func TestParseGroupingPolicy(t *testing.T) {
	p, err := ParseGroupingPolicy("")
	require.NoError(t, err)
	assert.Equal(t, GroupingCartOrder, p)

	p, err = ParseGroupingPolicy("price_desc")
	require.NoError(t, err)
	assert.Equal(t, GroupingPriceDesc, p)

	_, err = ParseGroupingPolicy("best_for_customer")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown grouping policy")
}
