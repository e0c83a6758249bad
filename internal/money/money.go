// Package money holds the single representation of prices used across the
// storefront: integer minor units (pesewas). Display strings such as
// "GHS 450" or "₵250.00" are only ever parsed at the edge and rendered back
// with Format.
package money

import (
	"errors"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Amount is a monetary value in minor currency units (1/100 of the major unit).
type Amount int64

const (
	minorPerMajor = 100

	MaxAmount Amount = math.MaxInt64
	MinAmount Amount = math.MinInt64
)

var ErrOutOfRange = errors.New("amount out of range")

var (
	maxMinor = decimal.NewFromInt(math.MaxInt64)
	minMinor = decimal.NewFromInt(math.MinInt64)
)

// FromMajor converts a whole major-unit value (e.g. 450 cedis) to an Amount.
func FromMajor(major int64) Amount {
	return Amount(major * minorPerMajor)
}

// FromFloat rounds x to two decimals (half away from zero) and returns it as an Amount.
func FromFloat(x float64) Amount {
	return FromDecimal(decimal.NewFromFloat(x))
}

// FromDecimal rounds d to two decimals and returns it as an Amount. Values
// that do not fit are clamped to MinAmount or MaxAmount.
func FromDecimal(d decimal.Decimal) Amount {
	a, _ := fromDecimal(d)
	return a
}

// FromDecimalChecked is FromDecimal that reports ErrOutOfRange instead of clamping.
func FromDecimalChecked(d decimal.Decimal) (Amount, error) {
	a, ok := fromDecimal(d)
	if !ok {
		return a, ErrOutOfRange
	}
	return a, nil
}

func fromDecimal(d decimal.Decimal) (Amount, bool) {
	minor := d.Round(2).Shift(2)
	switch {
	case minor.GreaterThan(maxMinor):
		return MaxAmount, false
	case minor.LessThan(minMinor):
		return MinAmount, false
	}
	return Amount(minor.IntPart()), true
}

// Parse reads a display-formatted price. Every rune that is not a digit or a
// decimal point is discarded, then the leading number is read. Input without
// digits yields 0; garbage is tolerated, never rejected. Numbers too large
// for an Amount are clamped to MaxAmount.
func Parse(display string) Amount {
	a, _ := parse(display)
	return a
}

// ParseChecked is Parse for input coming from clients: it fails when the
// display has no digits or the number does not fit in an Amount.
func ParseChecked(display string) (Amount, error) {
	a, ok := parse(display)
	if !ok {
		return a, ErrOutOfRange
	}
	return a, nil
}

func parse(display string) (Amount, bool) {
	var b strings.Builder
	for _, r := range display {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}

	num := leadingNumber(b.String())
	if num == "" {
		return 0, false
	}

	d, err := decimal.NewFromString(num)
	if err != nil {
		return 0, false
	}
	return fromDecimal(d)
}

// leadingNumber returns the longest prefix of s shaped like digits[.digits].
func leadingNumber(s string) string {
	intPart, fracPart := s, ""
	if i := strings.IndexByte(s, '.'); i >= 0 {
		intPart = s[:i]
		fracPart = s[i+1:]
		if j := strings.IndexByte(fracPart, '.'); j >= 0 {
			fracPart = fracPart[:j]
		}
	}

	if intPart == "" && fracPart == "" {
		return ""
	}
	if intPart == "" {
		intPart = "0"
	}
	if fracPart == "" {
		return intPart
	}
	return intPart + "." + fracPart
}

// Format renders a with exactly two decimals after prefix, e.g. Format(12340, "GHS ") == "GHS 123.40".
func Format(a Amount, prefix string) string {
	return prefix + a.Decimal().StringFixed(2)
}

// Decimal returns the amount in major units.
func (a Amount) Decimal() decimal.Decimal {
	return decimal.New(int64(a), -2)
}

// Float64 returns the amount in major units. Only use it for display or for
// collaborators that insist on floats.
func (a Amount) Float64() float64 {
	f, _ := a.Decimal().Float64()
	return f
}

// MinorUnits is the integer amount a payment provider expects (major × 100).
func (a Amount) MinorUnits() int64 {
	return int64(a)
}

// Mul multiplies a by n, saturating at MinAmount and MaxAmount.
func (a Amount) Mul(n int) Amount {
	if a == 0 || n == 0 {
		return 0
	}
	p := a * Amount(n)
	if p/Amount(n) != a || (n == -1 && a == MinAmount) {
		if (a > 0) == (n > 0) {
			return MaxAmount
		}
		return MinAmount
	}
	return p
}

// Add returns a+b, saturating at MinAmount and MaxAmount.
func (a Amount) Add(b Amount) Amount {
	s := a + b
	switch {
	case b > 0 && s < a:
		return MaxAmount
	case b < 0 && s > a:
		return MinAmount
	}
	return s
}

func (a Amount) String() string {
	return a.Decimal().StringFixed(2)
}

// MarshalJSON encodes the amount as a JSON number in major units with two decimals.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.Decimal().StringFixed(2)), nil
}

// UnmarshalJSON accepts a JSON number or a quoted decimal in major units.
func (a *Amount) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return err
	}
	*a = FromDecimal(d)
	return nil
}
