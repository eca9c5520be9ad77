package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kobofin/loan-engine/internal/domain"
	customError "github.com/kobofin/loan-engine/pkg/errors"
	"github.com/kobofin/loan-engine/pkg/money"
)

func TestAllocatePaymentSettlesOldestLine(t *testing.T) {
	env := newTestEnv()
	orgID := uuid.New()
	ctx := context.Background()

	loan, _, err := env.schedules.CreateLoan(ctx, orgID, flatLoanRequest(nil))
	require.NoError(t, err)

	transaction, err := env.payments.AllocatePayment(ctx, orgID, loan.ID, &domain.PaymentRequest{
		AmountUnits: 1100000,
		Date:        time.Date(2025, time.February, 15, 0, 0, 0, 0, time.UTC),
		Method:      "bank_transfer",
	})
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionTypePayment, transaction.Type)
	assert.True(t, transaction.Unapplied.IsZero())
	require.Len(t, transaction.Allocations, 1)
	assert.Equal(t, money.New(100000, 2), transaction.Allocations[0].Interest)
	assert.Equal(t, money.New(1000000, 2), transaction.Allocations[0].Principal)

	schedule, err := env.store.Installments().GetByLoanID(ctx, orgID, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InstallmentStatusPaid, schedule[0].Status)
	assert.Equal(t, domain.InstallmentStatusPending, schedule[1].Status)

	stored, err := env.store.Transactions().GetByID(ctx, orgID, transaction.ID)
	require.NoError(t, err)
	require.Len(t, stored.Allocations, 1)
	assert.Equal(t, schedule[0].ID, stored.Allocations[0].InstallmentID)
}

func TestAllocatePaymentRecordsUnappliedCredit(t *testing.T) {
	env := newTestEnv()
	orgID := uuid.New()
	ctx := context.Background()

	loan, _, err := env.schedules.CreateLoan(ctx, orgID, flatLoanRequest(nil))
	require.NoError(t, err)

	// Only the first line has fallen due; without the advance flag the
	// excess is held as credit, never pushed onto future lines.
	transaction, err := env.payments.AllocatePayment(ctx, orgID, loan.ID, &domain.PaymentRequest{
		AmountUnits: 2000000,
		Date:        time.Date(2025, time.February, 15, 0, 0, 0, 0, time.UTC),
		Method:      "cash",
	})
	require.NoError(t, err)

	assert.Equal(t, money.New(900000, 2), transaction.Unapplied)
	require.Len(t, transaction.Allocations, 1)

	schedule, err := env.store.Installments().GetByLoanID(ctx, orgID, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.InstallmentStatusPending, schedule[1].Status)
}

func TestAllocatePaymentAdvanceClosesLoan(t *testing.T) {
	env := newTestEnv()
	orgID := uuid.New()
	ctx := context.Background()

	loan, _, err := env.schedules.CreateLoan(ctx, orgID, flatLoanRequest(nil))
	require.NoError(t, err)

	transaction, err := env.payments.AllocatePayment(ctx, orgID, loan.ID, &domain.PaymentRequest{
		AmountUnits: 11000000,
		Date:        time.Date(2025, time.February, 15, 0, 0, 0, 0, time.UTC),
		Method:      "bank_transfer",
		Advance:     true,
	})
	require.NoError(t, err)
	require.Len(t, transaction.Allocations, 10)
	assert.True(t, transaction.Unapplied.IsZero())

	stored, err := env.store.Loans().GetByID(ctx, orgID, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusClosed, stored.Status)
}

func TestAllocatePaymentErrors(t *testing.T) {
	env := newTestEnv()
	orgID := uuid.New()
	ctx := context.Background()
	request := &domain.PaymentRequest{
		AmountUnits: 1100000,
		Date:        time.Date(2025, time.February, 15, 0, 0, 0, 0, time.UTC),
		Method:      "cash",
	}

	t.Run("unknown loan", func(t *testing.T) {
		_, err := env.payments.AllocatePayment(ctx, orgID, uuid.New(), request)
		assert.True(t, errors.Is(err, customError.ErrLoanNotFound))
	})

	t.Run("terminal loan", func(t *testing.T) {
		loan, _, err := env.schedules.CreateLoan(ctx, orgID, flatLoanRequest(nil))
		require.NoError(t, err)
		require.NoError(t, env.store.Loans().UpdateStatus(ctx, orgID, loan.ID, domain.LoanStatusClosed))

		_, err = env.payments.AllocatePayment(ctx, orgID, loan.ID, request)
		assert.True(t, errors.Is(err, customError.ErrLoanClosed))
	})

	t.Run("nothing outstanding", func(t *testing.T) {
		loan, _, err := env.schedules.CreateLoan(ctx, orgID, flatLoanRequest(nil))
		require.NoError(t, err)
		_, err = env.payments.AllocatePayment(ctx, orgID, loan.ID, &domain.PaymentRequest{
			AmountUnits: 11000000,
			Date:        request.Date,
			Method:      "cash",
			Advance:     true,
		})
		require.NoError(t, err)
		// Reopen the settled loan so the balance check, not the status
		// check, is what rejects the payment.
		require.NoError(t, env.store.Loans().UpdateStatus(ctx, orgID, loan.ID, domain.LoanStatusActive))

		_, err = env.payments.AllocatePayment(ctx, orgID, loan.ID, request)
		assert.True(t, errors.Is(err, customError.ErrNoOutstandingBalance))
	})

	t.Run("loan locked by another operation", func(t *testing.T) {
		loan, _, err := env.schedules.CreateLoan(ctx, orgID, flatLoanRequest(nil))
		require.NoError(t, err)

		release, err := env.locker.Acquire(ctx, loan.ID)
		require.NoError(t, err)
		defer release()

		_, err = env.payments.AllocatePayment(ctx, orgID, loan.ID, request)
		assert.True(t, errors.Is(err, customError.ErrLoanLocked))
	})
}

func TestReverseTransactionRestoresSchedule(t *testing.T) {
	env := newTestEnv()
	orgID := uuid.New()
	ctx := context.Background()

	loan, _, err := env.schedules.CreateLoan(ctx, orgID, flatLoanRequest(nil))
	require.NoError(t, err)

	payment, err := env.payments.AllocatePayment(ctx, orgID, loan.ID, &domain.PaymentRequest{
		AmountUnits: 1650000,
		Date:        time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC),
		Method:      "bank_transfer",
	})
	require.NoError(t, err)
	require.Len(t, payment.Allocations, 2)

	reversal, err := env.payments.ReverseTransaction(ctx, orgID, payment.ID, "teller keyed the wrong account")
	require.NoError(t, err)

	assert.Equal(t, domain.TransactionTypeReversal, reversal.Type)
	require.NotNil(t, reversal.ReversesID)
	assert.Equal(t, payment.ID, *reversal.ReversesID)
	assert.Equal(t, payment.Amount.Neg(), reversal.Amount)
	require.Len(t, reversal.Allocations, 2)
	for i, line := range reversal.Allocations {
		assert.Equal(t, payment.Allocations[i].Principal.Neg(), line.Principal)
		assert.Equal(t, payment.Allocations[i].Interest.Neg(), line.Interest)
		assert.Equal(t, payment.Allocations[i].Fee.Neg(), line.Fee)
	}

	// Every touched line is back to its pre-payment state.
	schedule, err := env.store.Installments().GetByLoanID(ctx, orgID, loan.ID)
	require.NoError(t, err)
	for _, inst := range schedule {
		assert.True(t, inst.TotalPaid().IsZero())
		assert.Equal(t, domain.InstallmentStatusPending, inst.Status)
	}

	// History keeps both transactions; the original is linked, not erased.
	original, err := env.store.Transactions().GetByID(ctx, orgID, payment.ID)
	require.NoError(t, err)
	assert.True(t, original.Reversed())

	_, err = env.payments.ReverseTransaction(ctx, orgID, payment.ID, "twice")
	assert.True(t, errors.Is(err, customError.ErrAlreadyReversed))
}

func TestReverseTransactionRejectsSupersededAllocations(t *testing.T) {
	env := newTestEnv()
	orgID := uuid.New()
	ctx := context.Background()

	loan, _, err := env.schedules.CreateLoan(ctx, orgID, flatLoanRequest(nil))
	require.NoError(t, err)

	// Settles the February line and leaves 55.00 on the March one.
	payment, err := env.payments.AllocatePayment(ctx, orgID, loan.ID, &domain.PaymentRequest{
		AmountUnits: 1650000,
		Date:        time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC),
		Method:      "bank_transfer",
	})
	require.NoError(t, err)
	require.Len(t, payment.Allocations, 2)

	// Restructuring supersedes every unsettled line, the partially paid
	// March one included.
	pivot := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)
	_, err = env.schedules.Recalculate(ctx, orgID, loan.ID, pivot, domain.ReduceInstallment)
	require.NoError(t, err)

	_, err = env.payments.ReverseTransaction(ctx, orgID, payment.ID, "teller keyed the wrong account")
	require.ErrorIs(t, err, customError.ErrReversalConflict)

	// The refused reversal leaves the history untouched.
	original, err := env.store.Transactions().GetByID(ctx, orgID, payment.ID)
	require.NoError(t, err)
	assert.False(t, original.Reversed())
}

func TestReverseTransactionReopensClosedLoan(t *testing.T) {
	env := newTestEnv()
	orgID := uuid.New()
	ctx := context.Background()

	loan, _, err := env.schedules.CreateLoan(ctx, orgID, flatLoanRequest(nil))
	require.NoError(t, err)

	payment, err := env.payments.AllocatePayment(ctx, orgID, loan.ID, &domain.PaymentRequest{
		AmountUnits: 11000000,
		Date:        time.Date(2025, time.February, 15, 0, 0, 0, 0, time.UTC),
		Method:      "bank_transfer",
		Advance:     true,
	})
	require.NoError(t, err)

	_, err = env.payments.ReverseTransaction(ctx, orgID, payment.ID, "bounced settlement")
	require.NoError(t, err)

	stored, err := env.store.Loans().GetByID(ctx, orgID, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.LoanStatusActive, stored.Status)
}

func TestReverseTransactionNotFound(t *testing.T) {
	env := newTestEnv()

	_, err := env.payments.ReverseTransaction(context.Background(), uuid.New(), uuid.New(), "missing")
	assert.True(t, errors.Is(err, customError.ErrTransactionNotFound))
}

func TestGetTransactionsOrdersHistory(t *testing.T) {
	env := newTestEnv()
	orgID := uuid.New()
	ctx := context.Background()

	loan, _, err := env.schedules.CreateLoan(ctx, orgID, flatLoanRequest(nil))
	require.NoError(t, err)

	first, err := env.payments.AllocatePayment(ctx, orgID, loan.ID, &domain.PaymentRequest{
		AmountUnits: 1100000,
		Date:        time.Date(2025, time.February, 15, 0, 0, 0, 0, time.UTC),
		Method:      "cash",
	})
	require.NoError(t, err)

	_, err = env.payments.ReverseTransaction(ctx, orgID, first.ID, "entry error")
	require.NoError(t, err)

	history, err := env.payments.GetTransactions(ctx, orgID, loan.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, domain.TransactionTypePayment, history[0].Type)
	assert.Equal(t, domain.TransactionTypeReversal, history[1].Type)
}
