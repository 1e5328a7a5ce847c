package pricing

import (
	"github.com/diewo77/go-quotations/internal/apperr"
	"github.com/diewo77/go-quotations/internal/models"
	"github.com/shopspring/decimal"
)

// Totals are the document level amounts of a quotation.
type Totals struct {
	Subtotal       decimal.Decimal
	TaxAmount      decimal.Decimal
	DiscountAmount decimal.Decimal
	TotalAmount    decimal.Decimal
}

// SumItems aggregates the given lines. The subtotal is the rounded sum of the
// exact bases; tax and discount are sums of the stored per-line amounts so the
// document always equals what its lines show.
func SumItems(items []models.QuotationItem) Totals {
	subtotal := decimal.Zero
	tax := decimal.Zero
	discount := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Quantity.Mul(it.UnitPrice))
		tax = tax.Add(it.TaxAmount)
		discount = discount.Add(it.DiscountAmount)
	}
	subtotal = Round(subtotal)
	return Totals{
		Subtotal:       subtotal,
		TaxAmount:      Round(tax),
		DiscountAmount: Round(discount),
		TotalAmount:    Round(subtotal.Add(tax).Sub(discount)),
	}
}

// RecomputeTotals brings q's totals in line with its items. With no items the
// caller-supplied subtotal, tax and discount are kept and only the total is
// derived from them. Calling it twice yields the same result.
func RecomputeTotals(q *models.Quotation) {
	if len(q.Items) > 0 {
		t := SumItems(q.Items)
		q.Subtotal = t.Subtotal
		q.TaxAmount = t.TaxAmount
		q.DiscountAmount = t.DiscountAmount
		q.TotalAmount = t.TotalAmount
		return
	}
	q.Subtotal = Round(q.Subtotal)
	q.TaxAmount = Round(q.TaxAmount)
	q.DiscountAmount = Round(q.DiscountAmount)
	q.TotalAmount = Round(q.Subtotal.Add(q.TaxAmount).Sub(q.DiscountAmount))
}

// CheckTotals rejects document totals that do not fit an amount column.
func CheckTotals(q *models.Quotation) *apperr.ValidationError {
	v := map[string]string{}
	for field, val := range map[string]decimal.Decimal{
		"subtotal":        q.Subtotal,
		"tax_amount":      q.TaxAmount,
		"discount_amount": q.DiscountAmount,
		"total_amount":    q.TotalAmount,
	} {
		if val.Abs().GreaterThan(MaxAmount) {
			v[field] = "too_large"
		}
	}
	return apperr.FromViolations(v)
}
