package validation

import (
	"errors"
	"testing"

	"github.com/diewo77/go-quotations/internal/apperr"
	"github.com/shopspring/decimal"
)

func TestDecimalValidators(t *testing.T) {
	d := decimal.RequireFromString
	tests := []struct {
		name string
		run  func(Violations)
		want string
	}{
		{"positive ok", func(v Violations) { PositiveDecimal("q", d("0.001"), v) }, ""},
		{"positive zero", func(v Violations) { PositiveDecimal("q", d("0"), v) }, "must_be_positive"},
		{"non negative zero", func(v Violations) { NonNegativeDecimal("q", d("0"), v) }, ""},
		{"non negative below", func(v Violations) { NonNegativeDecimal("q", d("-0.01"), v) }, "must_not_be_negative"},
		{"percent upper bound", func(v Violations) { PercentDecimal("q", d("100"), v) }, ""},
		{"percent above", func(v Violations) { PercentDecimal("q", d("100.5"), v) }, "out_of_range"},
		{"places ok with trailing zeros", func(v Violations) { MaxPlaces("q", d("1.500"), 2, v) }, ""},
		{"max at bound", func(v Violations) { MaxDecimal("q", d("-99.99"), d("99.99"), v) }, ""},
		{"max above", func(v Violations) { MaxDecimal("q", d("100"), d("99.99"), v) }, "too_large"},
		{"places too many", func(v Violations) { MaxPlaces("q", d("1.555"), 2, v) }, "too_many_decimals"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := Violations{}
			tt.run(v)
			if got := v["q"]; got != tt.want {
				t.Errorf("violation = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAddKeepsFirstViolation(t *testing.T) {
	v := Violations{}
	PositiveDecimal("quantity", decimal.Zero, v)
	MaxPlaces("quantity", decimal.RequireFromString("0.0001"), 3, v)
	if v["quantity"] != "must_be_positive" {
		t.Errorf("got %q", v["quantity"])
	}
}

type contact struct {
	Name  string `json:"name" validate:"required,max=10"`
	Email string `json:"email" validate:"omitempty,email"`
}

type envelope struct {
	Contact contact `json:"counterparty"`
}

func TestStruct(t *testing.T) {
	v := Struct(envelope{Contact: contact{Name: "", Email: "nope"}})
	if v["counterparty.name"] != "required" {
		t.Errorf("name violation = %q (all: %v)", v["counterparty.name"], v)
	}
	if v["counterparty.email"] != "invalid_email" {
		t.Errorf("email violation = %q (all: %v)", v["counterparty.email"], v)
	}

	if v := Struct(envelope{Contact: contact{Name: "Acme"}}); !v.Empty() {
		t.Errorf("expected no violations, got %v", v)
	}
	if v := Struct(envelope{Contact: contact{Name: "A very long name"}}); v["counterparty.name"] != "too_long" {
		t.Errorf("expected too_long, got %v", v)
	}
}

func TestErr(t *testing.T) {
	if (Violations{}).Err() != nil {
		t.Fatal("empty violations should not be an error")
	}
	v := Violations{}
	v.Merge("items[0].", Violations{"quantity": "must_be_positive"})
	var verr *apperr.ValidationError
	if !errors.As(v.Err(), &verr) || verr.Field != "items[0].quantity" {
		t.Fatalf("unexpected error %v", v.Err())
	}
}
