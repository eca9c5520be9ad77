package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/kobofin/loan-engine/pkg/money"
)

const (
	InstallmentStatusPending    = "pending"
	InstallmentStatusPartial    = "partial"
	InstallmentStatusPaid       = "paid"
	InstallmentStatusOverdue    = "overdue"
	InstallmentStatusSuperseded = "superseded"
)

// Installment is one schedule line. Sequence numbers are unique per loan and
// ordered by due date. Lines are never deleted; restructuring marks them
// superseded and appends replacements.
type Installment struct {
	ID            uuid.UUID   `json:"id"`
	LoanID        uuid.UUID   `json:"loan_id"`
	OrgID         uuid.UUID   `json:"org_id"`
	Sequence      int         `json:"sequence"`
	DueDate       time.Time   `json:"due_date"`
	PrincipalDue  money.Money `json:"principal_due"`
	InterestDue   money.Money `json:"interest_due"`
	FeeDue        money.Money `json:"fee_due"`
	PrincipalPaid money.Money `json:"principal_paid"`
	InterestPaid  money.Money `json:"interest_paid"`
	FeePaid       money.Money `json:"fee_paid"`
	Status        string      `json:"status"`
	CreatedAt     time.Time   `json:"created_at"`
}

func (i *Installment) TotalDue() money.Money {
	return i.PrincipalDue.Add(i.InterestDue).Add(i.FeeDue)
}

func (i *Installment) TotalPaid() money.Money {
	return i.PrincipalPaid.Add(i.InterestPaid).Add(i.FeePaid)
}

// Outstanding is what remains owed on this line across all components.
func (i *Installment) Outstanding() money.Money {
	return i.TotalDue().Sub(i.TotalPaid())
}

func (i *Installment) PrincipalOutstanding() money.Money {
	return i.PrincipalDue.Sub(i.PrincipalPaid)
}

func (i *Installment) InterestOutstanding() money.Money {
	return i.InterestDue.Sub(i.InterestPaid)
}

func (i *Installment) FeeOutstanding() money.Money {
	return i.FeeDue.Sub(i.FeePaid)
}

// Settled reports whether every component is fully paid.
func (i *Installment) Settled() bool {
	return !i.Outstanding().IsPositive()
}

// Superseded lines no longer participate in allocation or arrears.
func (i *Installment) Superseded() bool {
	return i.Status == InstallmentStatusSuperseded
}

// RefreshStatus rederives paid/partial/pending from the paid amounts.
// Overdue is applied separately by the arrears batch; a settled line always
// moves to paid, and a partial payment clears a stale overdue mark only when
// it settles the line.
func (i *Installment) RefreshStatus() {
	if i.Superseded() {
		return
	}
	switch {
	case i.Settled():
		i.Status = InstallmentStatusPaid
	case i.Status == InstallmentStatusOverdue:
		// stands until the line settles
	case i.TotalPaid().IsPositive():
		i.Status = InstallmentStatusPartial
	default:
		i.Status = InstallmentStatusPending
	}
}

type ScheduleResponse struct {
	LoanID   uuid.UUID      `json:"loan_id"`
	Schedule []*Installment `json:"schedule"`
}

type ArrearsState struct {
	LoanID        uuid.UUID   `json:"loan_id"`
	AsOfDate      time.Time   `json:"as_of_date"`
	DaysInArrears int         `json:"days_in_arrears"`
	AmountPastDue money.Money `json:"amount_past_due"`
}
