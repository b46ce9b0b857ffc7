package domain

import (
	"strings"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// OptionalDecimal is a numeric exchange field that may be absent.
// OKX sends "" for fields that do not apply.
type OptionalDecimal struct {
	Value decimal.Decimal
	Valid bool
}

// ParseOptionalDecimal treats an empty string as absent and anything else as a number.
func ParseOptionalDecimal(s string) (OptionalDecimal, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return OptionalDecimal{}, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return OptionalDecimal{}, errors.Wrapf(err, "parse decimal %q", s)
	}
	return OptionalDecimal{Value: d, Valid: true}, nil
}

// OrZero returns the value, or zero when absent.
func (o OptionalDecimal) OrZero() decimal.Decimal {
	if !o.Valid {
		return decimal.Zero
	}
	return o.Value
}
