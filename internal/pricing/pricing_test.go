package pricing

import (
	"errors"
	"testing"

	"github.com/diewo77/go-quotations/internal/apperr"
	"github.com/diewo77/go-quotations/internal/models"
	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertMoney(t *testing.T, field string, got decimal.Decimal, want string) {
	t.Helper()
	if !got.Equal(d(want)) {
		t.Errorf("%s = %s, want %s", field, got.String(), want)
	}
}

func TestComputeItem(t *testing.T) {
	tests := []struct {
		name                        string
		qty, price, tax, discount   string
		wantTax, wantDisc, wantLine string
	}{
		{"tax and discount", "2", "50.00", "16", "10", "16.00", "10.00", "106.00"},
		{"no rates", "3", "9.99", "0", "0", "0", "0", "29.97"},
		{"free item", "1", "0", "20", "0", "0", "0", "0"},
		{"fractional quantity", "1.5", "10", "20", "0", "3.00", "0", "18.00"},
		{"full discount", "1", "80", "0", "100", "0", "80.00", "0"},
		{"half cent rounds away from zero", "1", "0.05", "10", "0", "0.01", "0", "0.06"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ComputeItem(d(tt.qty), d(tt.price), d(tt.tax), d(tt.discount))
			if err != nil {
				t.Fatalf("ComputeItem: %v", err)
			}
			r := got.Rounded()
			assertMoney(t, "tax", r.TaxAmount, tt.wantTax)
			assertMoney(t, "discount", r.DiscountAmount, tt.wantDisc)
			assertMoney(t, "line total", r.LineTotal, tt.wantLine)
		})
	}
}

func TestComputeItem_Validation(t *testing.T) {
	tests := []struct {
		name                      string
		qty, price, tax, discount string
		wantField                 string
	}{
		{"zero quantity", "0", "10", "0", "0", "quantity"},
		{"negative quantity", "-1", "10", "0", "0", "quantity"},
		{"negative price", "1", "-0.01", "0", "0", "unit_price"},
		{"tax above 100", "1", "10", "100.01", "0", "tax_rate"},
		{"negative tax", "1", "10", "-1", "0", "tax_rate"},
		{"discount above 100", "1", "10", "0", "101", "discount_rate"},
		{"quantity above column", "1000000000", "1", "0", "0", "quantity"},
		{"price above column", "1", "10000000000", "0", "0", "unit_price"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ComputeItem(d(tt.qty), d(tt.price), d(tt.tax), d(tt.discount))
			var verr *apperr.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.wantField {
				t.Errorf("field = %q, want %q", verr.Field, tt.wantField)
			}
		})
	}
}

func TestComputeItem_IsPure(t *testing.T) {
	a, _ := ComputeItem(d("7"), d("3.33"), d("5.5"), d("2.25"))
	b, _ := ComputeItem(d("7"), d("3.33"), d("5.5"), d("2.25"))
	if !a.LineTotal.Equal(b.LineTotal) || !a.TaxAmount.Equal(b.TaxAmount) {
		t.Fatal("same inputs gave different outputs")
	}
}

func item(t *testing.T, qty, price, tax, discount string) models.QuotationItem {
	t.Helper()
	it := models.QuotationItem{Quantity: d(qty), UnitPrice: d(price), TaxRate: d(tax), DiscountRate: d(discount)}
	if err := PriceItem(&it); err != nil {
		t.Fatalf("PriceItem: %v", err)
	}
	return it
}

func TestRecomputeTotals_WithItems(t *testing.T) {
	q := &models.Quotation{
		Subtotal: d("999"), // overwritten once items exist
		Items: []models.QuotationItem{
			item(t, "2", "50.00", "16", "10"),
			item(t, "1", "19.99", "0", "0"),
		},
	}
	RecomputeTotals(q)
	assertMoney(t, "subtotal", q.Subtotal, "119.99")
	assertMoney(t, "tax", q.TaxAmount, "16.00")
	assertMoney(t, "discount", q.DiscountAmount, "10.00")
	assertMoney(t, "total", q.TotalAmount, "125.99")
}

func TestRecomputeTotals_Idempotent(t *testing.T) {
	q := &models.Quotation{Items: []models.QuotationItem{
		item(t, "3", "0.333", "19.6", "7"),
		item(t, "1.25", "12.10", "5.5", "0"),
	}}
	RecomputeTotals(q)
	first := []decimal.Decimal{q.Subtotal, q.TaxAmount, q.DiscountAmount, q.TotalAmount}
	RecomputeTotals(q)
	second := []decimal.Decimal{q.Subtotal, q.TaxAmount, q.DiscountAmount, q.TotalAmount}
	for i := range first {
		if !first[i].Equal(second[i]) {
			t.Errorf("value %d changed from %s to %s", i, first[i], second[i])
		}
	}
}

func TestRecomputeTotals_OrderInsensitive(t *testing.T) {
	items := []models.QuotationItem{
		item(t, "3", "0.333", "19.6", "7"),
		item(t, "1.25", "12.10", "5.5", "0"),
		item(t, "10", "0.07", "0", "50"),
	}
	forward := &models.Quotation{Items: []models.QuotationItem{items[0], items[1], items[2]}}
	backward := &models.Quotation{Items: []models.QuotationItem{items[2], items[0], items[1]}}
	RecomputeTotals(forward)
	RecomputeTotals(backward)
	if !forward.TotalAmount.Equal(backward.TotalAmount) || !forward.Subtotal.Equal(backward.Subtotal) {
		t.Errorf("totals depend on order: %s vs %s", forward.TotalAmount, backward.TotalAmount)
	}
}

func TestRecomputeTotals_EmptyItemsKeepsManualValues(t *testing.T) {
	q := &models.Quotation{Subtotal: d("100"), TaxAmount: d("10"), DiscountAmount: d("5")}
	RecomputeTotals(q)
	assertMoney(t, "subtotal", q.Subtotal, "100")
	assertMoney(t, "total", q.TotalAmount, "105.00")

	q.Items = append(q.Items, item(t, "1", "40", "0", "0"))
	RecomputeTotals(q)
	assertMoney(t, "subtotal", q.Subtotal, "40")
	assertMoney(t, "tax", q.TaxAmount, "0")
	assertMoney(t, "total", q.TotalAmount, "40")
}

func TestRecomputeTotals_ZeroValues(t *testing.T) {
	q := &models.Quotation{}
	RecomputeTotals(q)
	if !q.TotalAmount.IsZero() {
		t.Errorf("total = %s, want 0", q.TotalAmount)
	}
}

func TestPriceItem_RejectsLineAboveColumn(t *testing.T) {
	it := models.QuotationItem{Quantity: d("100000000"), UnitPrice: d("1000"), TaxRate: d("0"), DiscountRate: d("0")}
	err := PriceItem(&it)
	var verr *apperr.ValidationError
	if !errors.As(err, &verr) || verr.Violations["line_total"] != "too_large" {
		t.Fatalf("expected line_total too_large, got %v", err)
	}

	it = models.QuotationItem{Quantity: d("999999999"), UnitPrice: d("10"), TaxRate: d("10"), DiscountRate: d("0")}
	if err := PriceItem(&it); err == nil {
		t.Fatal("expected tax to push the line total over the column limit")
	}
}

func TestCheckTotals(t *testing.T) {
	q := &models.Quotation{Subtotal: MaxAmount}
	RecomputeTotals(q)
	if verr := CheckTotals(q); verr != nil {
		t.Fatalf("limit itself must pass: %v", verr)
	}

	q = &models.Quotation{Subtotal: MaxAmount, TaxAmount: d("0.01")}
	RecomputeTotals(q)
	verr := CheckTotals(q)
	if verr == nil || verr.Violations["total_amount"] != "too_large" {
		t.Fatalf("expected total_amount too_large, got %v", verr)
	}
	if _, ok := verr.Violations["subtotal"]; ok {
		t.Errorf("subtotal is within bounds: %v", verr.Violations)
	}
}
