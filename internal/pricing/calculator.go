// Package pricing computes line item amounts and quotation totals.
// Everything here is pure decimal arithmetic; rounding to cents happens only
// when a value is stored.
package pricing

import (
	"github.com/diewo77/go-quotations/internal/apperr"
	"github.com/diewo77/go-quotations/internal/models"
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of decimals kept for stored amounts.
const MoneyPlaces = 2

var hundred = decimal.NewFromInt(100)

// Storage limits: amounts are DECIMAL(12,2), quantities DECIMAL(12,3).
var (
	MaxAmount   = decimal.RequireFromString("9999999999.99")
	MaxQuantity = decimal.RequireFromString("999999999.999")
)

// ItemAmounts holds the unrounded amounts of one line.
type ItemAmounts struct {
	Base           decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	LineTotal      decimal.Decimal
}

// Rounded returns a copy with every amount rounded half away from zero to cents.
func (a ItemAmounts) Rounded() ItemAmounts {
	return ItemAmounts{
		Base:           Round(a.Base),
		TaxAmount:      Round(a.TaxAmount),
		DiscountAmount: Round(a.DiscountAmount),
		LineTotal:      Round(a.LineTotal),
	}
}

// Round rounds a money amount to MoneyPlaces, half away from zero.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// Validate checks the calculator preconditions and returns every violation.
func Validate(quantity, unitPrice, taxRate, discountRate decimal.Decimal) *apperr.ValidationError {
	v := map[string]string{}
	if !quantity.IsPositive() {
		v["quantity"] = "must_be_positive"
	} else if quantity.GreaterThan(MaxQuantity) {
		v["quantity"] = "too_large"
	}
	if unitPrice.IsNegative() {
		v["unit_price"] = "must_not_be_negative"
	} else if unitPrice.GreaterThan(MaxAmount) {
		v["unit_price"] = "too_large"
	}
	if taxRate.IsNegative() || taxRate.GreaterThan(hundred) {
		v["tax_rate"] = "out_of_range"
	}
	if discountRate.IsNegative() || discountRate.GreaterThan(hundred) {
		v["discount_rate"] = "out_of_range"
	}
	return apperr.FromViolations(v)
}

// ComputeItem derives the amounts of one line:
//
//	base     = quantity × unitPrice
//	tax      = taxRate/100 × base
//	discount = discountRate/100 × base
//	total    = base + tax − discount
//
// Both rates apply to the pre-tax base.
func ComputeItem(quantity, unitPrice, taxRate, discountRate decimal.Decimal) (ItemAmounts, error) {
	if verr := Validate(quantity, unitPrice, taxRate, discountRate); verr != nil {
		return ItemAmounts{}, verr
	}
	base := quantity.Mul(unitPrice)
	tax := base.Mul(taxRate).Div(hundred)
	discount := base.Mul(discountRate).Div(hundred)
	return ItemAmounts{
		Base:           base,
		TaxAmount:      tax,
		DiscountAmount: discount,
		LineTotal:      base.Add(tax).Sub(discount),
	}, nil
}

// PriceItem computes and stores the derived amounts on item. A line whose
// base or total does not fit an amount column is rejected.
func PriceItem(item *models.QuotationItem) error {
	amounts, err := ComputeItem(item.Quantity, item.UnitPrice, item.TaxRate, item.DiscountRate)
	if err != nil {
		return err
	}
	r := amounts.Rounded()
	if r.Base.GreaterThan(MaxAmount) || r.LineTotal.GreaterThan(MaxAmount) {
		return apperr.Invalid("line_total", "too_large")
	}
	item.TaxAmount = r.TaxAmount
	item.DiscountAmount = r.DiscountAmount
	item.LineTotal = r.LineTotal
	return nil
}
