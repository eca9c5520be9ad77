package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// Money is an amount in integer minor units (kobo, cents) with an explicit
// scale. All arithmetic stays in integers; decimal is used only at the
// defined rounding points (rate multiplication, even splits).
type Money struct {
	Units int64 `json:"units" db:"units"`
	Scale int32 `json:"scale" db:"scale"`
}

// New returns a Money of the given minor units and scale.
func New(units int64, scale int32) Money {
	return Money{Units: units, Scale: scale}
}

// Zero returns a zero amount at the given scale.
func Zero(scale int32) Money {
	return Money{Scale: scale}
}

// FromDecimal rounds d half-up to the given scale.
func FromDecimal(d decimal.Decimal, scale int32) Money {
	return Money{Units: d.Shift(scale).Round(0).IntPart(), Scale: scale}
}

// Decimal returns the amount in major units as a decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Units, -m.Scale)
}

func (m Money) String() string {
	return m.Decimal().StringFixed(m.Scale)
}

func (m Money) IsZero() bool     { return m.Units == 0 }
func (m Money) IsNegative() bool { return m.Units < 0 }
func (m Money) IsPositive() bool { return m.Units > 0 }

// Cmp returns -1, 0 or 1 comparing m to other.
func (m Money) Cmp(other Money) int {
	m.mustMatch(other)
	switch {
	case m.Units < other.Units:
		return -1
	case m.Units > other.Units:
		return 1
	}
	return 0
}

func (m Money) LessThan(other Money) bool    { return m.Cmp(other) < 0 }
func (m Money) GreaterThan(other Money) bool { return m.Cmp(other) > 0 }
func (m Money) Equal(other Money) bool       { return m.Cmp(other) == 0 }

func (m Money) Add(other Money) Money {
	m.mustMatch(other)
	return Money{Units: m.Units + other.Units, Scale: m.Scale}
}

func (m Money) Sub(other Money) Money {
	m.mustMatch(other)
	return Money{Units: m.Units - other.Units, Scale: m.Scale}
}

func (m Money) Neg() Money {
	return Money{Units: -m.Units, Scale: m.Scale}
}

// Min returns the smaller of m and other.
func (m Money) Min(other Money) Money {
	if m.Cmp(other) <= 0 {
		return m
	}
	return other
}

// MulRate multiplies by a decimal rate and rounds half-up to m's scale.
// This is one of the defined rounding points.
func (m Money) MulRate(rate decimal.Decimal) Money {
	return FromDecimal(m.Decimal().Mul(rate), m.Scale)
}

// Split divides m into n equal parts using integer division. The returned
// remainder is what integer division leaves over; callers add it to the
// final part so the parts sum back to m exactly.
func (m Money) Split(n int) (part Money, remainder Money) {
	if n <= 0 {
		panic(fmt.Sprintf("money: split into %d parts", n))
	}
	q := m.Units / int64(n)
	r := m.Units - q*int64(n)
	return Money{Units: q, Scale: m.Scale}, Money{Units: r, Scale: m.Scale}
}

// Sum adds amounts; all must share a scale. Sum of nothing is zero at the
// given scale.
func Sum(scale int32, amounts ...Money) Money {
	total := Zero(scale)
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Scale mismatches are programming errors, not data errors.
func (m Money) mustMatch(other Money) {
	if m.Scale != other.Scale {
		panic(fmt.Sprintf("money: scale mismatch %d vs %d", m.Scale, other.Scale))
	}
}
