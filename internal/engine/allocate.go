package engine

import (
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kobofin/loan-engine/internal/domain"
	"github.com/kobofin/loan-engine/pkg/daycount"
	"github.com/kobofin/loan-engine/pkg/money"
)

// AllocationResult is the outcome of applying one payment to a schedule.
type AllocationResult struct {
	Lines     []*domain.Allocation
	Applied   money.Money
	Unapplied money.Money
}

// Allocate applies a payment amount across the schedule: oldest due date
// first, and within a line fees, then interest, then principal. Without the
// advance flag only lines due on or before asOf receive money; anything left
// over comes back as Unapplied rather than being dropped. The installments
// are mutated in place (paid amounts and status) so the caller can persist
// them together with the transaction.
func Allocate(installments []*domain.Installment, amount money.Money, asOf time.Time, advance bool) AllocationResult {
	scale := amount.Scale
	remaining := amount
	result := AllocationResult{
		Applied:   money.Zero(scale),
		Unapplied: money.Zero(scale),
	}

	ordered := make([]*domain.Installment, len(installments))
	copy(ordered, installments)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].DueDate.Equal(ordered[j].DueDate) {
			return ordered[i].DueDate.Before(ordered[j].DueDate)
		}
		return ordered[i].Sequence < ordered[j].Sequence
	})

	asOfDate := daycount.Date(asOf)
	for _, inst := range ordered {
		if remaining.IsZero() {
			break
		}
		if inst.Superseded() || inst.Settled() {
			continue
		}
		if daycount.Date(inst.DueDate).After(asOfDate) && !advance {
			continue
		}

		fee := takeComponent(&remaining, inst.FeeOutstanding())
		interest := takeComponent(&remaining, inst.InterestOutstanding())
		principal := takeComponent(&remaining, inst.PrincipalOutstanding())
		if fee.IsZero() && interest.IsZero() && principal.IsZero() {
			continue
		}

		inst.FeePaid = inst.FeePaid.Add(fee)
		inst.InterestPaid = inst.InterestPaid.Add(interest)
		inst.PrincipalPaid = inst.PrincipalPaid.Add(principal)
		inst.RefreshStatus()

		result.Lines = append(result.Lines, &domain.Allocation{
			ID:            uuid.New(),
			InstallmentID: inst.ID,
			Principal:     principal,
			Interest:      interest,
			Fee:           fee,
		})
		result.Applied = result.Applied.Add(fee).Add(interest).Add(principal)
	}

	result.Unapplied = remaining
	return result
}

func takeComponent(remaining *money.Money, outstanding money.Money) money.Money {
	take := remaining.Min(outstanding)
	if take.IsNegative() {
		take = money.Zero(remaining.Scale)
	}
	*remaining = remaining.Sub(take)
	return take
}

// Reverse subtracts a transaction's recorded allocation lines from the
// matching installments, restoring each paid-to-date to its pre-allocation
// value. Returns the negated lines for the reversal transaction.
func Reverse(installments []*domain.Installment, lines []*domain.Allocation) []*domain.Allocation {
	byID := make(map[uuid.UUID]*domain.Installment, len(installments))
	for _, inst := range installments {
		byID[inst.ID] = inst
	}

	negated := make([]*domain.Allocation, 0, len(lines))
	for _, line := range lines {
		inst, ok := byID[line.InstallmentID]
		if !ok {
			continue
		}
		inst.FeePaid = inst.FeePaid.Sub(line.Fee)
		inst.InterestPaid = inst.InterestPaid.Sub(line.Interest)
		inst.PrincipalPaid = inst.PrincipalPaid.Sub(line.Principal)
		inst.RefreshStatus()

		negated = append(negated, &domain.Allocation{
			ID:            uuid.New(),
			InstallmentID: line.InstallmentID,
			Principal:     line.Principal.Neg(),
			Interest:      line.Interest.Neg(),
			Fee:           line.Fee.Neg(),
		})
	}
	return negated
}

// TotalOutstanding sums what is still owed across live schedule lines.
func TotalOutstanding(installments []*domain.Installment, scale int32) money.Money {
	total := money.Zero(scale)
	for _, inst := range installments {
		if inst.Superseded() {
			continue
		}
		total = total.Add(inst.Outstanding())
	}
	return total
}

// PrincipalOutstanding sums the unpaid principal across live schedule lines.
func PrincipalOutstanding(installments []*domain.Installment, scale int32) money.Money {
	total := money.Zero(scale)
	for _, inst := range installments {
		if inst.Superseded() {
			continue
		}
		total = total.Add(inst.PrincipalOutstanding())
	}
	return total
}
