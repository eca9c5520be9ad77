package engine

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/kobofin/loan-engine/internal/domain"
	"github.com/kobofin/loan-engine/pkg/daycount"
	"github.com/kobofin/loan-engine/pkg/money"
)

// AccruedInterest computes interest earned but not yet due on an outstanding
// principal balance between two dates, under the given day-count convention.
// Pure; the schedule is never touched. Returns zero when the range is empty
// or inverted.
func AccruedInterest(outstanding money.Money, annualPercent decimal.Decimal, from, to time.Time, conv daycount.Convention) money.Money {
	fraction := daycount.YearFraction(from, to, conv)
	if fraction.IsZero() {
		return money.Zero(outstanding.Scale)
	}
	return outstanding.MulRate(annualPercent.Div(decimal.NewFromInt(100)).Mul(fraction))
}

// AccrualAnchor finds the date interest accrues from as of a given date: the
// due date of the latest installment on or before asOf, or the disbursement
// date when no installment has fallen due yet. Superseded lines are ignored.
func AccrualAnchor(installments []*domain.Installment, disbursedAt, asOf time.Time) time.Time {
	anchor := daycount.Date(disbursedAt)
	for _, inst := range installments {
		due := daycount.Date(inst.DueDate)
		if inst.Superseded() || due.After(daycount.Date(asOf)) {
			continue
		}
		if due.After(anchor) {
			anchor = due
		}
	}
	return anchor
}
