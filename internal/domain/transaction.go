package domain

import (
	"time"

	"github.com/google/uuid"

	"github.com/kobofin/loan-engine/pkg/money"
)

const (
	TransactionTypePayment  = "payment"
	TransactionTypeReversal = "reversal"
)

// Transaction is an immutable payment or reversal event. A reversal never
// rewrites history; it is a new transaction whose allocations negate a prior
// one's.
type Transaction struct {
	ID           uuid.UUID     `json:"id"`
	LoanID       uuid.UUID     `json:"loan_id"`
	OrgID        uuid.UUID     `json:"org_id"`
	Type         string        `json:"type"`
	Amount       money.Money   `json:"amount"`
	Unapplied    money.Money   `json:"unapplied"`
	Date         time.Time     `json:"date"`
	Method       string        `json:"method"`
	Reason       string        `json:"reason,omitempty"`
	ReversesID   *uuid.UUID    `json:"reverses_id,omitempty"`
	ReversedByID *uuid.UUID    `json:"reversed_by_id,omitempty"`
	Allocations  []*Allocation `json:"allocations"`
	CreatedAt    time.Time     `json:"created_at"`
}

// Reversed reports whether a later transaction negated this one.
func (t *Transaction) Reversed() bool {
	return t.ReversedByID != nil
}

// Allocation is one line of a transaction's per-installment breakdown.
// Amounts are negative on reversal transactions.
type Allocation struct {
	ID            uuid.UUID   `json:"id"`
	TransactionID uuid.UUID   `json:"transaction_id"`
	InstallmentID uuid.UUID   `json:"installment_id"`
	Principal     money.Money `json:"principal"`
	Interest      money.Money `json:"interest"`
	Fee           money.Money `json:"fee"`
}

// Applied is the total this line put against its installment.
func (a *Allocation) Applied() money.Money {
	return a.Principal.Add(a.Interest).Add(a.Fee)
}
