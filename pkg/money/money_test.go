package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestArithmetic(t *testing.T) {
	a := New(1050, 2)
	b := New(950, 2)

	assert.Equal(t, New(2000, 2), a.Add(b))
	assert.Equal(t, New(100, 2), a.Sub(b))
	assert.Equal(t, New(-1050, 2), a.Neg())
	assert.True(t, b.LessThan(a))
	assert.True(t, a.GreaterThan(b))
	assert.Equal(t, b, a.Min(b))
}

func TestScaleMismatchPanics(t *testing.T) {
	a := New(100, 2)
	b := New(100, 0)

	assert.Panics(t, func() { a.Add(b) })
	assert.Panics(t, func() { a.Cmp(b) })
}

func TestMulRate(t *testing.T) {
	tests := []struct {
		name     string
		amount   Money
		rate     string
		expected Money
	}{
		{
			name:     "one percent of 1,200,000.00",
			amount:   New(120000000, 2),
			rate:     "0.01",
			expected: New(1200000, 2),
		},
		{
			name:     "rounds half up",
			amount:   New(1001, 2), // 10.01
			rate:     "0.5",        // 5.005 -> 5.01
			expected: New(501, 2),
		},
		{
			name:     "zero rate",
			amount:   New(120000000, 2),
			rate:     "0",
			expected: New(0, 2),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, err := decimal.NewFromString(tt.rate)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, tt.amount.MulRate(rate))
		})
	}
}

func TestSplitRemainderSumsBack(t *testing.T) {
	total := New(100000, 2) // 1000.00 into 7 parts
	part, remainder := total.Split(7)

	assert.Equal(t, int64(14285), part.Units)
	assert.Equal(t, int64(5), remainder.Units)

	sum := remainder
	for i := 0; i < 7; i++ {
		sum = sum.Add(part)
	}
	assert.True(t, sum.Equal(total))
}

func TestDecimalRoundTrip(t *testing.T) {
	m := New(123456, 2)
	assert.Equal(t, "1234.56", m.String())
	assert.Equal(t, m, FromDecimal(m.Decimal(), 2))
}
