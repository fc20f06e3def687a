package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLineFields_RoundTrip(t *testing.T) {
	rate := 25.0
	lines := []Line{
		&ProductLine{LineBase: LineBase{ID: "1", Name: "Mug", Quantity: 2, TaxRatePercent: &rate, ZaverLineItemID: "zl_1"}, Total: 200, TotalTax: 50, SKU: "MUG"},
		&ShippingLine{LineBase: LineBase{ID: "2", Name: "Post", Quantity: 1}, Total: 49, MethodID: "flat_rate"},
		&FeeLine{LineBase: LineBase{ID: "3", Name: "Handling", Quantity: 1}, Total: 10, TotalTax: 2.5},
		&CouponLine{LineBase: LineBase{ID: "4", Name: "SPRING", Quantity: 1}, Discount: 20, DiscountTax: 5, Code: "SPRING"},
	}

	for _, l := range lines {
		t.Run(string(l.Kind()), func(t *testing.T) {
			got, err := Flatten(l).Line()
			require.NoError(t, err)
			assert.Equal(t, l, got)
		})
	}
}

func TestFlatten_CouponUsesDiscount(t *testing.T) {
	f := Flatten(&CouponLine{LineBase: LineBase{ID: "4", Quantity: 1}, Discount: 20, DiscountTax: 5, Code: "SPRING"})
	assert.Equal(t, LineKindCoupon, f.Kind)
	assert.Equal(t, 20.0, f.Amount)
	assert.Equal(t, 5.0, f.Tax)
	assert.Equal(t, "SPRING", f.Reference)
}

func TestLineFields_UnknownKind(t *testing.T) {
	_, err := LineFields{Kind: "gift_card", ID: "1"}.Line()
	assert.EqualError(t, err, `unknown line kind "gift_card"`)
}

func TestLineBase_Shared(t *testing.T) {
	var l Line = &FeeLine{LineBase: LineBase{ID: "3", Name: "Handling"}}
	l.Base().ZaverLineItemID = "zl_3"
	assert.Equal(t, "zl_3", l.(*FeeLine).ZaverLineItemID)
}
