package daycount

import (
	"time"

	"github.com/shopspring/decimal"
)

// Convention selects the day-count basis for partial-period interest.
type Convention string

const (
	Actual365 Convention = "actual/365"
	Actual360 Convention = "actual/360"
)

// Base returns the year denominator for the convention.
func (c Convention) Base() int {
	if c == Actual360 {
		return 360
	}
	return 365
}

// Frequency is the repayment period length.
type Frequency string

const (
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyBiweekly Frequency = "biweekly"
	FrequencyMonthly  Frequency = "monthly"
)

// PeriodsPerYear returns how many repayment periods fit in a year.
func (f Frequency) PeriodsPerYear() int {
	switch f {
	case FrequencyDaily:
		return 365
	case FrequencyWeekly:
		return 52
	case FrequencyBiweekly:
		return 26
	case FrequencyMonthly:
		return 12
	}
	return 0
}

// Valid reports whether f is a known frequency.
func (f Frequency) Valid() bool {
	return f.PeriodsPerYear() > 0
}

// Date truncates t to a calendar date in UTC.
func Date(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns whole calendar days from a to b. Negative when b is
// before a.
func DaysBetween(a, b time.Time) int {
	return int(Date(b).Sub(Date(a)).Hours() / 24)
}

// AddPeriods steps a date forward n periods of the given frequency. Monthly
// stepping clamps to the last day of the target month rather than rolling
// over (Jan 31 + 1 month = Feb 28/29), so installment due days stay stable.
func AddPeriods(t time.Time, f Frequency, n int) time.Time {
	t = Date(t)
	switch f {
	case FrequencyDaily:
		return t.AddDate(0, 0, n)
	case FrequencyWeekly:
		return t.AddDate(0, 0, 7*n)
	case FrequencyBiweekly:
		return t.AddDate(0, 0, 14*n)
	case FrequencyMonthly:
		return addMonthsClamped(t, n)
	}
	return t
}

func addMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	last := first.AddDate(0, 1, -1).Day()
	if d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, 0, 0, 0, 0, time.UTC)
}

// PeriodicRate converts an annual percentage rate (e.g. 12 for 12%) to the
// per-period fractional rate for a frequency.
func PeriodicRate(annualPercent decimal.Decimal, f Frequency) decimal.Decimal {
	return annualPercent.Div(decimal.NewFromInt(100)).
		Div(decimal.NewFromInt(int64(f.PeriodsPerYear())))
}

// YearFraction returns the fraction of a year between two dates under the
// convention. Zero when b is not after a.
func YearFraction(a, b time.Time, c Convention) decimal.Decimal {
	days := DaysBetween(a, b)
	if days <= 0 {
		return decimal.Zero
	}
	return decimal.NewFromInt(int64(days)).Div(decimal.NewFromInt(int64(c.Base())))
}
