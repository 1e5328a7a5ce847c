package services

import (
	"fmt"
	"time"

	"github.com/diewo77/go-quotations/internal/pricing"
	"github.com/diewo77/go-quotations/validation"
	"github.com/shopspring/decimal"
)

// Counterparty identifies who the quotation is addressed to.
type Counterparty struct {
	Name    string `json:"name" validate:"required,max=255"`
	Company string `json:"company" validate:"max=255"`
	Email   string `json:"email" validate:"omitempty,email,max=255"`
	Phone   string `json:"phone" validate:"max=50"`
	Address string `json:"address"`
}

// ItemInput carries the caller-controlled fields of a line item.
type ItemInput struct {
	Description  string          `json:"description" validate:"required,max=500"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TaxRate      decimal.Decimal `json:"tax_rate"`
	DiscountRate decimal.Decimal `json:"discount_rate"`
}

func (in ItemInput) violations() validation.Violations {
	v := validation.Struct(in)
	validation.PositiveDecimal("quantity", in.Quantity, v)
	validation.MaxDecimal("quantity", in.Quantity, pricing.MaxQuantity, v)
	validation.MaxPlaces("quantity", in.Quantity, 3, v)
	validation.NonNegativeDecimal("unit_price", in.UnitPrice, v)
	validation.MaxDecimal("unit_price", in.UnitPrice, pricing.MaxAmount, v)
	validation.MaxPlaces("unit_price", in.UnitPrice, 2, v)
	validation.PercentDecimal("tax_rate", in.TaxRate, v)
	validation.MaxPlaces("tax_rate", in.TaxRate, 2, v)
	validation.PercentDecimal("discount_rate", in.DiscountRate, v)
	validation.MaxPlaces("discount_rate", in.DiscountRate, 2, v)
	return v
}

// TotalsInput holds caller-supplied totals for a quotation without items.
type TotalsInput struct {
	Subtotal       decimal.Decimal `json:"subtotal"`
	TaxAmount      decimal.Decimal `json:"tax_amount"`
	DiscountAmount decimal.Decimal `json:"discount_amount"`
}

func (in TotalsInput) violations() validation.Violations {
	v := validation.Violations{}
	for field, val := range map[string]decimal.Decimal{
		"subtotal":        in.Subtotal,
		"tax_amount":      in.TaxAmount,
		"discount_amount": in.DiscountAmount,
	} {
		validation.NonNegativeDecimal(field, val, v)
		validation.MaxDecimal(field, val, pricing.MaxAmount, v)
		validation.MaxPlaces(field, val, 2, v)
	}
	return v
}

// CreateInput describes a new quotation. Subtotal, TaxAmount and
// DiscountAmount only matter when Items is empty.
type CreateInput struct {
	Counterparty Counterparty `json:"counterparty"`
	IssueDate    *time.Time   `json:"issue_date"`
	ExpiryDate   *time.Time   `json:"expiry_date"`
	TotalsInput
	Notes     string      `json:"notes"`
	Terms     string      `json:"terms"`
	CreatedBy uint        `json:"-"`
	Items     []ItemInput `json:"items"`
}

func (in CreateInput) violations() validation.Violations {
	v := validation.Violations{}
	v.Merge("counterparty.", validation.Struct(in.Counterparty))
	if in.CreatedBy == 0 {
		v.Add("created_by", "required")
	}
	v.Merge("", in.TotalsInput.violations())
	for i, item := range in.Items {
		v.Merge(fmt.Sprintf("items[%d].", i), item.violations())
	}
	return v
}

// DetailsInput edits the descriptive fields of a quotation. Nil fields are
// left unchanged.
type DetailsInput struct {
	Counterparty *Counterparty `json:"counterparty"`
	ExpiryDate   *time.Time    `json:"expiry_date"`
	Notes        *string       `json:"notes"`
	Terms        *string       `json:"terms"`
}

func (in DetailsInput) violations() validation.Violations {
	v := validation.Violations{}
	if in.Counterparty != nil {
		v.Merge("counterparty.", validation.Struct(*in.Counterparty))
	}
	return v
}
