package daycount

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestAddPeriodsMonthlyClamps(t *testing.T) {
	tests := []struct {
		name     string
		start    time.Time
		n        int
		expected time.Time
	}{
		{
			name:     "jan 31 plus one month clamps to feb 28",
			start:    date(2025, time.January, 31),
			n:        1,
			expected: date(2025, time.February, 28),
		},
		{
			name:     "jan 31 plus one month in a leap year",
			start:    date(2024, time.January, 31),
			n:        1,
			expected: date(2024, time.February, 29),
		},
		{
			name:     "clamp does not stick for later months",
			start:    date(2025, time.January, 31),
			n:        2,
			expected: date(2025, time.March, 31),
		},
		{
			name:     "mid-month day is stable",
			start:    date(2025, time.March, 15),
			n:        3,
			expected: date(2025, time.June, 15),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, AddPeriods(tt.start, FrequencyMonthly, tt.n))
		})
	}
}

func TestAddPeriodsFixedLength(t *testing.T) {
	start := date(2025, time.June, 1)

	assert.Equal(t, date(2025, time.June, 4), AddPeriods(start, FrequencyDaily, 3))
	assert.Equal(t, date(2025, time.June, 15), AddPeriods(start, FrequencyWeekly, 2))
	assert.Equal(t, date(2025, time.June, 29), AddPeriods(start, FrequencyBiweekly, 2))
}

func TestDaysBetween(t *testing.T) {
	assert.Equal(t, 31, DaysBetween(date(2025, time.January, 1), date(2025, time.February, 1)))
	assert.Equal(t, 0, DaysBetween(date(2025, time.January, 1), date(2025, time.January, 1)))
	assert.Equal(t, -1, DaysBetween(date(2025, time.January, 2), date(2025, time.January, 1)))

	// Time-of-day and zone never leak into day math.
	loc := time.FixedZone("WAT", 3600)
	a := time.Date(2025, time.January, 1, 23, 50, 0, 0, loc)
	b := time.Date(2025, time.January, 3, 0, 10, 0, 0, loc)
	assert.Equal(t, 2, DaysBetween(a, b))
}

func TestYearFraction(t *testing.T) {
	a := date(2025, time.January, 1)
	b := date(2025, time.April, 1) // 90 days

	f365 := YearFraction(a, b, Actual365)
	f360 := YearFraction(a, b, Actual360)

	assert.True(t, f365.Equal(decimal.NewFromInt(90).Div(decimal.NewFromInt(365))))
	assert.True(t, f360.Equal(decimal.NewFromInt(90).Div(decimal.NewFromInt(360))))
	assert.True(t, YearFraction(b, a, Actual365).IsZero())
}

func TestPeriodicRate(t *testing.T) {
	rate := PeriodicRate(decimal.NewFromInt(12), FrequencyMonthly)
	assert.True(t, rate.Equal(decimal.NewFromFloat(0.01)))

	assert.True(t, FrequencyMonthly.Valid())
	assert.False(t, Frequency("quarterly").Valid())
}
