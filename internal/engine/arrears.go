package engine

import (
	"time"

	"github.com/kobofin/loan-engine/internal/domain"
	"github.com/kobofin/loan-engine/pkg/daycount"
	"github.com/kobofin/loan-engine/pkg/money"
)

// ComputeArrears derives days-in-arrears and amount-past-due from a schedule
// as of a date. An installment due today is not yet in arrears; only lines
// strictly past their due date count. Read-only.
func ComputeArrears(installments []*domain.Installment, asOf time.Time, scale int32) (int, money.Money) {
	asOfDate := daycount.Date(asOf)
	pastDue := money.Zero(scale)
	days := 0

	for _, inst := range installments {
		if inst.Superseded() || inst.Settled() {
			continue
		}
		due := daycount.Date(inst.DueDate)
		if !due.Before(asOfDate) {
			continue
		}
		pastDue = pastDue.Add(inst.Outstanding())
		if d := daycount.DaysBetween(due, asOfDate); d > days {
			days = d
		}
	}
	return days, pastDue
}

// MarkOverdue flips pending lines past their due date to overdue and returns
// the ones it changed. This is the batch-job side effect; on-demand arrears
// queries use ComputeArrears instead.
func MarkOverdue(installments []*domain.Installment, asOf time.Time) []*domain.Installment {
	asOfDate := daycount.Date(asOf)
	var changed []*domain.Installment
	for _, inst := range installments {
		if inst.Status != domain.InstallmentStatusPending {
			continue
		}
		if daycount.Date(inst.DueDate).Before(asOfDate) {
			inst.Status = domain.InstallmentStatusOverdue
			changed = append(changed, inst)
		}
	}
	return changed
}
