package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Zero is decimal zero
var Zero = decimal.Zero

// NGN amounts carry two decimal places (naira.kobo).
const Places = 2

// Kobo is one minor currency unit, the tolerance for total reconciliation.
var Kobo = decimal.New(1, -2)

// FromString parses a decimal from a Sage export cell. Thousands separators
// and surrounding whitespace are stripped; an empty cell is zero.
func FromString(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", ""))
	if s == "" {
		return Zero, nil
	}
	return decimal.NewFromString(s)
}

// MustFromString parses a decimal from string, panics on error
func MustFromString(s string) decimal.Decimal {
	d, err := FromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Round rounds to kobo precision.
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// LineNet computes qty*price - discount, rounded to kobo.
func LineNet(qty, price, discount decimal.Decimal) decimal.Decimal {
	return qty.Mul(price).Sub(discount).Round(Places)
}

// VAT computes net * (ratePercent/100), rounded to kobo.
func VAT(net, ratePercent decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	return net.Mul(ratePercent).Div(hundred).Round(Places)
}

// LineTotal computes net + vat for one line.
func LineTotal(qty, price, discount, ratePercent decimal.Decimal) decimal.Decimal {
	net := LineNet(qty, price, discount)
	return net.Add(VAT(net, ratePercent)).Round(Places)
}

// Sum sums a slice of decimals
func Sum(values []decimal.Decimal) decimal.Decimal {
	result := Zero
	for _, v := range values {
		result = result.Add(v)
	}
	return result
}

// WithinTolerance reports whether a and b differ by at most one kobo.
func WithinTolerance(a, b decimal.Decimal) bool {
	return a.Sub(b).Abs().LessThanOrEqual(Kobo)
}

// IsPositive returns true if decimal is greater than zero
func IsPositive(d decimal.Decimal) bool {
	return d.GreaterThan(Zero)
}

// IsNonNegative returns true if decimal is >= zero
func IsNonNegative(d decimal.Decimal) bool {
	return d.GreaterThanOrEqual(Zero)
}
