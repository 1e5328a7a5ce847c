package validation

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/diewo77/go-quotations/internal/apperr"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

type Violations map[string]string

func (v Violations) Empty() bool { return len(v) == 0 }

// Add records code for field unless the field already has a violation.
func (v Violations) Add(field, code string) {
	if _, ok := v[field]; !ok {
		v[field] = code
	}
}

// Merge copies other into v with every field prefixed.
func (v Violations) Merge(prefix string, other Violations) {
	for f, c := range other {
		v.Add(prefix+f, c)
	}
}

// Err returns nil when empty, otherwise an *apperr.ValidationError.
func (v Violations) Err() error {
	if v.Empty() {
		return nil
	}
	return apperr.FromViolations(v)
}

// Basic validators
func Required(field, value string, v Violations) {
	if strings.TrimSpace(value) == "" {
		v.Add(field, "required")
	}
}

func PositiveDecimal(field string, val decimal.Decimal, v Violations) {
	if !val.IsPositive() {
		v.Add(field, "must_be_positive")
	}
}

func NonNegativeDecimal(field string, val decimal.Decimal, v Violations) {
	if val.IsNegative() {
		v.Add(field, "must_not_be_negative")
	}
}

// PercentDecimal requires 0 <= val <= 100.
func PercentDecimal(field string, val decimal.Decimal, v Violations) {
	if val.IsNegative() || val.GreaterThan(decimal.NewFromInt(100)) {
		v.Add(field, "out_of_range")
	}
}

// MaxDecimal requires |val| <= max.
func MaxDecimal(field string, val, max decimal.Decimal, v Violations) {
	if val.Abs().GreaterThan(max) {
		v.Add(field, "too_large")
	}
}

// MaxPlaces rejects values with more than places significant decimals.
func MaxPlaces(field string, val decimal.Decimal, places int32, v Violations) {
	if !val.Equal(val.Truncate(places)) {
		v.Add(field, "too_many_decimals")
	}
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name == "" {
				return fld.Name
			}
			return name
		})
	})
	return validate
}

// Struct runs the `validate` struct tags of s. Field names are the json names
// joined by dots, e.g. "counterparty.email"; codes are the failing tag.
func Struct(s any) Violations {
	v := Violations{}
	err := structValidator().Struct(s)
	if err == nil {
		return v
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		v.Add("_", "invalid")
		return v
	}
	for _, fe := range fieldErrs {
		field := fe.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		v.Add(field, codeFor(fe.Tag()))
	}
	return v
}

func codeFor(tag string) string {
	switch tag {
	case "required":
		return "required"
	case "email":
		return "invalid_email"
	case "max":
		return "too_long"
	default:
		return "invalid_" + tag
	}
}
