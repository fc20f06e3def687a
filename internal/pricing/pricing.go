// Package pricing turns order lines into the normalized amount model sent to
// the payment provider.
package pricing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/utafrali/zaver-checkout/internal/domain"
	apperrors "github.com/utafrali/zaver-checkout/pkg/errors"
)

// Provider item types.
const (
	ItemTypeProduct  = "PRODUCT"
	ItemTypeShipping = "SHIPPING"
	ItemTypeFee      = "FEE"
	ItemTypeDiscount = "DISCOUNT"
)

// Amounts is the normalized amount model for one line. All values are
// rounded to two decimals, half away from zero.
type Amounts struct {
	Quantity       int
	UnitPrice      float64
	TotalAmount    float64
	TaxAmount      float64
	TaxRatePercent float64
}

var hundred = decimal.NewFromInt(100)

// Normalize computes tax-inclusive amounts for a payment line.
func Normalize(line domain.Line) (*Amounts, error) {
	switch l := line.(type) {
	case *domain.ProductLine:
		return normalizeProduct(l, false)
	case *domain.ShippingLine:
		return normalizeShipping(l, false)
	case *domain.FeeLine:
		return normalizeFee(l, false)
	case *domain.CouponLine:
		return normalizeCoupon(l, false)
	default:
		return nil, apperrors.InvalidInput(fmt.Sprintf("unsupported line type %T", line))
	}
}

// NormalizeAbs computes amounts for a refund line, where the store records
// negative totals and quantities. Every output is non-negative.
func NormalizeAbs(line domain.Line) (*Amounts, error) {
	switch l := line.(type) {
	case *domain.ProductLine:
		return normalizeProduct(l, true)
	case *domain.ShippingLine:
		return normalizeShipping(l, true)
	case *domain.FeeLine:
		return normalizeFee(l, true)
	case *domain.CouponLine:
		return normalizeCoupon(l, true)
	default:
		return nil, apperrors.InvalidInput(fmt.Sprintf("unsupported line type %T", line))
	}
}

func normalizeProduct(l *domain.ProductLine, abs bool) (*Amounts, error) {
	return compute(&l.LineBase, l.Total, l.TotalTax, abs)
}

func normalizeShipping(l *domain.ShippingLine, abs bool) (*Amounts, error) {
	return compute(&l.LineBase, l.Total, l.TotalTax, abs)
}

func normalizeFee(l *domain.FeeLine, abs bool) (*Amounts, error) {
	return compute(&l.LineBase, l.Total, l.TotalTax, abs)
}

// Coupon discounts are positive in the store and are not negated here.
func normalizeCoupon(l *domain.CouponLine, abs bool) (*Amounts, error) {
	return compute(&l.LineBase, l.Discount, l.DiscountTax, abs)
}

func compute(b *domain.LineBase, amount, taxAmount float64, abs bool) (*Amounts, error) {
	qty := b.Quantity
	if abs && qty < 0 {
		qty = -qty
	}
	if qty < 1 {
		return nil, apperrors.InvalidInput(fmt.Sprintf("line %s: quantity must be at least 1, got %d", b.ID, b.Quantity))
	}

	excl := decimal.NewFromFloat(amount)
	tax := decimal.NewFromFloat(taxAmount)
	total := excl.Add(tax)
	if abs {
		excl, tax, total = excl.Abs(), tax.Abs(), total.Abs()
	}
	unit := total.Div(decimal.NewFromInt(int64(qty)))

	return &Amounts{
		Quantity:       qty,
		UnitPrice:      Round(unit),
		TotalAmount:    Round(total),
		TaxAmount:      Round(tax),
		TaxRatePercent: taxRate(b.TaxRatePercent, excl, tax),
	}, nil
}

// taxRate prefers the configured rate and otherwise derives it from the
// amounts. A zero excl-tax amount yields a zero rate.
func taxRate(configured *float64, excl, tax decimal.Decimal) float64 {
	if configured != nil {
		return Round(decimal.NewFromFloat(*configured))
	}
	if excl.IsZero() {
		return 0
	}
	return Round(tax.Div(excl).Mul(hundred).Abs())
}

// Round rounds d to two decimals, half away from zero.
func Round(d decimal.Decimal) float64 {
	f, _ := d.Round(2).Float64()
	return f
}

// RoundFloat rounds f to two decimals, half away from zero.
func RoundFloat(f float64) float64 {
	return Round(decimal.NewFromFloat(f))
}

// ItemType maps a line kind to the provider item type.
func ItemType(line domain.Line) string {
	switch line.Kind() {
	case domain.LineKindShipping:
		return ItemTypeShipping
	case domain.LineKindFee:
		return ItemTypeFee
	case domain.LineKindCoupon:
		return ItemTypeDiscount
	default:
		return ItemTypeProduct
	}
}

// MerchantReference returns the reference forwarded with a line: the SKU
// for products and the method id for shipping.
func MerchantReference(line domain.Line) string {
	switch l := line.(type) {
	case *domain.ProductLine:
		return l.SKU
	case *domain.ShippingLine:
		return l.MethodID
	default:
		return ""
	}
}
