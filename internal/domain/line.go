package domain

import "fmt"

// LineKind names the variant of an order line.
type LineKind string

// Line kinds.
const (
	LineKindProduct  LineKind = "product"
	LineKindShipping LineKind = "shipping"
	LineKindFee      LineKind = "fee"
	LineKindCoupon   LineKind = "coupon"
)

// Line is one of *ProductLine, *ShippingLine, *FeeLine or *CouponLine.
type Line interface {
	Kind() LineKind
	Base() *LineBase
	sealed()
}

// LineBase holds the fields shared by every line kind.
type LineBase struct {
	ID       string
	Name     string
	Quantity int
	// TaxRatePercent is the configured tax rate, when the store knows it.
	TaxRatePercent  *float64
	ZaverLineItemID string
}

// Base returns the shared fields.
func (b *LineBase) Base() *LineBase { return b }

func (*LineBase) sealed() {}

// ProductLine is a purchased product.
type ProductLine struct {
	LineBase
	Total    float64
	TotalTax float64
	SKU      string
}

// Kind implements Line.
func (*ProductLine) Kind() LineKind { return LineKindProduct }

// ShippingLine is a shipping charge.
type ShippingLine struct {
	LineBase
	Total    float64
	TotalTax float64
	MethodID string
}

// Kind implements Line.
func (*ShippingLine) Kind() LineKind { return LineKindShipping }

// FeeLine is an additional fee.
type FeeLine struct {
	LineBase
	Total    float64
	TotalTax float64
}

// Kind implements Line.
func (*FeeLine) Kind() LineKind { return LineKindFee }

// CouponLine is an applied coupon. Discount amounts are positive.
type CouponLine struct {
	LineBase
	Discount    float64
	DiscountTax float64
	Code        string
}

// Kind implements Line.
func (*CouponLine) Kind() LineKind { return LineKindCoupon }

// LineFields is the flat form of a Line used at storage and API boundaries.
// Amount and Tax map to Total/TotalTax, or Discount/DiscountTax for coupons;
// Reference maps to SKU, MethodID or Code.
type LineFields struct {
	Kind            LineKind `json:"kind" validate:"required,oneof=product shipping fee coupon"`
	ID              string   `json:"id" validate:"required"`
	Name            string   `json:"name" validate:"required"`
	Quantity        int      `json:"quantity" validate:"gte=1"`
	Amount          float64  `json:"amount"`
	Tax             float64  `json:"tax"`
	TaxRatePercent  *float64 `json:"tax_rate_percent,omitempty"`
	Reference       string   `json:"reference,omitempty"`
	ZaverLineItemID string   `json:"zaver_line_item_id,omitempty"`
}

// Line converts the flat form back into its variant.
func (f LineFields) Line() (Line, error) {
	base := LineBase{
		ID:              f.ID,
		Name:            f.Name,
		Quantity:        f.Quantity,
		TaxRatePercent:  f.TaxRatePercent,
		ZaverLineItemID: f.ZaverLineItemID,
	}
	switch f.Kind {
	case LineKindProduct:
		return &ProductLine{LineBase: base, Total: f.Amount, TotalTax: f.Tax, SKU: f.Reference}, nil
	case LineKindShipping:
		return &ShippingLine{LineBase: base, Total: f.Amount, TotalTax: f.Tax, MethodID: f.Reference}, nil
	case LineKindFee:
		return &FeeLine{LineBase: base, Total: f.Amount, TotalTax: f.Tax}, nil
	case LineKindCoupon:
		return &CouponLine{LineBase: base, Discount: f.Amount, DiscountTax: f.Tax, Code: f.Reference}, nil
	default:
		return nil, fmt.Errorf("unknown line kind %q", f.Kind)
	}
}

// Flatten converts l into its flat form.
func Flatten(l Line) LineFields {
	b := l.Base()
	f := LineFields{
		Kind:            l.Kind(),
		ID:              b.ID,
		Name:            b.Name,
		Quantity:        b.Quantity,
		TaxRatePercent:  b.TaxRatePercent,
		ZaverLineItemID: b.ZaverLineItemID,
	}
	switch v := l.(type) {
	case *ProductLine:
		f.Amount, f.Tax, f.Reference = v.Total, v.TotalTax, v.SKU
	case *ShippingLine:
		f.Amount, f.Tax, f.Reference = v.Total, v.TotalTax, v.MethodID
	case *FeeLine:
		f.Amount, f.Tax = v.Total, v.TotalTax
	case *CouponLine:
		f.Amount, f.Tax, f.Reference = v.Discount, v.DiscountTax, v.Code
	}
	return f
}
