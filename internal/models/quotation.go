package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// QuotationStatus represents the status of a quotation.
type QuotationStatus string

const (
	QuotationStatusDraft    QuotationStatus = "draft"
	QuotationStatusSent     QuotationStatus = "sent"
	QuotationStatusAccepted QuotationStatus = "accepted"
	QuotationStatusRejected QuotationStatus = "rejected"
)

// Valid reports whether s is one of the known statuses.
func (s QuotationStatus) Valid() bool {
	switch s {
	case QuotationStatusDraft, QuotationStatusSent, QuotationStatusAccepted, QuotationStatusRejected:
		return true
	}
	return false
}

// IsTerminal returns true for accepted and rejected.
func (s QuotationStatus) IsTerminal() bool {
	return s == QuotationStatusAccepted || s == QuotationStatusRejected
}

// Quotation is a priced offer sent to a counterparty.
// Implements the Ownable interface for ownership-based authorization.
type Quotation struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`

	// Number is assigned once at creation and never changes.
	Number string `gorm:"size:50;uniqueIndex;not null" json:"number"`

	// CreatedBy is the actor that created the quotation
	CreatedBy uint `gorm:"index;not null" json:"created_by"`

	// Counterparty
	CounterpartyName    string `gorm:"size:255;not null" json:"counterparty_name"`
	CounterpartyCompany string `gorm:"size:255" json:"counterparty_company,omitempty"`
	CounterpartyEmail   string `gorm:"size:255" json:"counterparty_email,omitempty"`
	CounterpartyPhone   string `gorm:"size:50" json:"counterparty_phone,omitempty"`
	CounterpartyAddress string `gorm:"type:text" json:"counterparty_address,omitempty"`

	// Dates
	IssueDate  time.Time `gorm:"not null" json:"issue_date"`
	ExpiryDate time.Time `gorm:"not null;index" json:"expiry_date"`

	// Totals, rounded to 2 places
	Subtotal       decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"subtotal"`
	TaxAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"tax_amount"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount_amount"`
	TotalAmount    decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"total_amount"`

	Status QuotationStatus `gorm:"size:20;not null;default:'draft';index" json:"status"`

	Notes string `gorm:"type:text" json:"notes,omitempty"`
	Terms string `gorm:"type:text" json:"terms,omitempty"`

	// Lifecycle audit, written once by the matching transition
	SentAt          *time.Time `json:"sent_at,omitempty"`
	SentBy          *uint      `json:"sent_by,omitempty"`
	AcceptedAt      *time.Time `json:"accepted_at,omitempty"`
	AcceptedBy      *uint      `json:"accepted_by,omitempty"`
	AcceptanceNotes string     `gorm:"type:text" json:"acceptance_notes,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectedBy      *uint      `json:"rejected_by,omitempty"`
	RejectionReason string     `gorm:"type:text" json:"rejection_reason,omitempty"`

	Items []QuotationItem `gorm:"foreignKey:QuotationID;constraint:OnDelete:CASCADE" json:"items"`

	// Expired is filled on read from ExpiryDate and is never stored.
	Expired bool `gorm:"-" json:"is_expired"`
}

// GetUserID implements the Ownable interface for authorization.
func (q *Quotation) GetUserID() uint {
	return q.CreatedBy
}

// CanEdit returns true while items and details may still change.
func (q *Quotation) CanEdit() bool {
	return !q.Status.IsTerminal()
}

// IsExpired reports whether now is strictly after the expiry date.
func (q *Quotation) IsExpired(now time.Time) bool {
	return now.After(q.ExpiryDate)
}

// MarshalJSON renders money with exactly two decimals ("106.00"), the way the
// amount columns store it.
func (q Quotation) MarshalJSON() ([]byte, error) {
	type plain Quotation
	return json.Marshal(struct {
		plain
		Subtotal       string `json:"subtotal"`
		TaxAmount      string `json:"tax_amount"`
		DiscountAmount string `json:"discount_amount"`
		TotalAmount    string `json:"total_amount"`
	}{
		plain:          plain(q),
		Subtotal:       q.Subtotal.StringFixed(2),
		TaxAmount:      q.TaxAmount.StringFixed(2),
		DiscountAmount: q.DiscountAmount.StringFixed(2),
		TotalAmount:    q.TotalAmount.StringFixed(2),
	})
}

// QuotationItem represents a line item on a quotation.
// Amount fields are derived by the pricing package and never set by callers.
type QuotationItem struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	QuotationID uint `gorm:"index;not null" json:"quotation_id"`

	Description  string          `gorm:"size:500;not null" json:"description"`
	Quantity     decimal.Decimal `gorm:"type:decimal(12,3);not null" json:"quantity"`
	UnitPrice    decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"unit_price"`
	TaxRate      decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"tax_rate"`
	DiscountRate decimal.Decimal `gorm:"type:decimal(5,2);not null;default:0" json:"discount_rate"`

	TaxAmount      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"tax_amount"`
	DiscountAmount decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"discount_amount"`
	LineTotal      decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0" json:"line_total"`

	// Position for ordering
	Position int `gorm:"default:0" json:"position"`
}

// MarshalJSON renders amounts and rates with two decimals. Quantity keeps its
// own precision.
func (it QuotationItem) MarshalJSON() ([]byte, error) {
	type plain QuotationItem
	return json.Marshal(struct {
		plain
		UnitPrice      string `json:"unit_price"`
		TaxRate        string `json:"tax_rate"`
		DiscountRate   string `json:"discount_rate"`
		TaxAmount      string `json:"tax_amount"`
		DiscountAmount string `json:"discount_amount"`
		LineTotal      string `json:"line_total"`
	}{
		plain:          plain(it),
		UnitPrice:      it.UnitPrice.StringFixed(2),
		TaxRate:        it.TaxRate.StringFixed(2),
		DiscountRate:   it.DiscountRate.StringFixed(2),
		TaxAmount:      it.TaxAmount.StringFixed(2),
		DiscountAmount: it.DiscountAmount.StringFixed(2),
		LineTotal:      it.LineTotal.StringFixed(2),
	})
}

// QuotationSequence is the counter row serializing number allocation for one
// partition such as "QUO-2026-".
type QuotationSequence struct {
	PartitionKey string    `gorm:"primaryKey;size:50" json:"partition_key"`
	LastValue    int64     `gorm:"not null" json:"last_value"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// AllModels lists the tables owned by this service, in migration order.
func AllModels() []any {
	return []any{&Quotation{}, &QuotationItem{}, &QuotationSequence{}}
}
