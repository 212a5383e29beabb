// Package money provides fixed-point monetary values with exactly four
// fractional digits. All arithmetic stays in decimal form; float64 never
// enters a computation, so repeated operations cannot drift.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Places is the fixed number of fractional digits carried by every Money
// value. Inputs with more precision are rounded half-up on parse.
const Places = 4

// Money is a fixed-point decimal amount. The zero value is usable and
// equals 0.0000.
type Money struct {
	dec decimal.Decimal
}

// Zero is the additive identity.
var Zero = Money{}

// Parse converts a decimal string (e.g. "1.5", "2.00013") into a Money,
// rounding half-up to four fractional digits.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Money{dec: d.Round(Places)}, nil
}

// MustParse is Parse that panics on error. Test helper.
func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

// FromUnits builds a Money from an integer count of 1/10000 units.
// FromUnits(15000) == 1.5000.
func FromUnits(units int64) Money {
	return Money{dec: decimal.New(units, -Places)}
}

// Add returns m + other.
func (m Money) Add(other Money) Money {
	return Money{dec: m.dec.Add(other.dec)}
}

// Sub returns m - other.
func (m Money) Sub(other Money) Money {
	return Money{dec: m.dec.Sub(other.dec)}
}

// Cmp compares m and other: -1 if m < other, 0 if equal, +1 if m > other.
func (m Money) Cmp(other Money) int {
	return m.dec.Cmp(other.dec)
}

// LessThan reports whether m < other.
func (m Money) LessThan(other Money) bool {
	return m.dec.Cmp(other.dec) < 0
}

// Equal reports whether m and other represent the same amount.
func (m Money) Equal(other Money) bool {
	return m.dec.Equal(other.dec)
}

// IsPositive reports whether m > 0.
func (m Money) IsPositive() bool {
	return m.dec.IsPositive()
}

// IsNegative reports whether m < 0.
func (m Money) IsNegative() bool {
	return m.dec.IsNegative()
}

// String formats the amount with exactly four fractional digits, the wire
// format required by the output writer.
func (m Money) String() string {
	return m.dec.StringFixed(Places)
}
