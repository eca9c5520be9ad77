package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/kobofin/loan-engine/internal/domain"
	"github.com/kobofin/loan-engine/internal/engine"
	"github.com/kobofin/loan-engine/internal/lock"
	"github.com/kobofin/loan-engine/internal/repository"
	"github.com/kobofin/loan-engine/pkg/daycount"
	customError "github.com/kobofin/loan-engine/pkg/errors"
	"github.com/kobofin/loan-engine/pkg/money"
)

// PaymentService applies payments to schedules and reverses them. Every
// mutation runs under the per-loan lock and inside one storage transaction,
// so schedule updates and the transaction record commit together.
type PaymentService struct {
	store  repository.Store
	locks  lock.LoanLocker
	logger *logrus.Logger
}

func NewPaymentService(store repository.Store, locks lock.LoanLocker, logger *logrus.Logger) *PaymentService {
	return &PaymentService{
		store:  store,
		locks:  locks,
		logger: logger,
	}
}

// AllocatePayment applies a payment oldest-installment-first, splitting each
// line fee, then interest, then principal. Anything beyond the outstanding
// balance is recorded on the transaction as unapplied credit.
func (s *PaymentService) AllocatePayment(ctx context.Context, orgID, loanID uuid.UUID, request *domain.PaymentRequest) (*domain.Transaction, error) {
	release, err := s.locks.Acquire(ctx, loanID)
	if err != nil {
		return nil, err
	}
	defer release()

	var transaction *domain.Transaction
	err = s.store.Atomic(ctx, func(tx repository.Store) error {
		loan, err := tx.Loans().GetByID(ctx, orgID, loanID)
		if err != nil {
			return err
		}
		if loan.Terminal() {
			return customError.WrapLoanClosed(loanID.String(), loan.Status)
		}

		schedule, err := tx.Installments().GetByLoanID(ctx, orgID, loanID)
		if err != nil {
			return customError.WrapDatabaseError(err)
		}
		if !engine.TotalOutstanding(schedule, loan.Scale()).IsPositive() {
			return customError.WrapNoOutstandingBalance(loanID.String())
		}

		amount := money.New(request.AmountUnits, loan.Scale())
		result := engine.Allocate(schedule, amount, request.Date, request.Advance)

		transaction = &domain.Transaction{
			ID:          uuid.New(),
			LoanID:      loanID,
			OrgID:       orgID,
			Type:        domain.TransactionTypePayment,
			Amount:      amount,
			Unapplied:   result.Unapplied,
			Date:        daycount.Date(request.Date),
			Method:      request.Method,
			Allocations: result.Lines,
		}

		touched := make(map[uuid.UUID]bool, len(result.Lines))
		for _, line := range result.Lines {
			touched[line.InstallmentID] = true
		}
		for _, inst := range schedule {
			if !touched[inst.ID] {
				continue
			}
			if err := tx.Installments().SaveProgress(ctx, inst); err != nil {
				return customError.WrapDatabaseError(err)
			}
		}

		if err := tx.Transactions().Create(ctx, transaction); err != nil {
			return customError.WrapDatabaseError(err)
		}

		if !engine.TotalOutstanding(schedule, loan.Scale()).IsPositive() {
			if err := tx.Loans().UpdateStatus(ctx, orgID, loanID, domain.LoanStatusClosed); err != nil {
				return customError.WrapDatabaseError(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"loan_id":        loanID,
		"org_id":         orgID,
		"transaction_id": transaction.ID,
		"amount":         transaction.Amount.String(),
		"unapplied":      transaction.Unapplied.String(),
		"lines":          len(transaction.Allocations),
	}).Info("payment allocated")

	return transaction, nil
}

// ReverseTransaction undoes a prior payment by its recorded per-installment
// split. The original transaction is only linked, never rewritten; the
// reversal is a new immutable transaction with negated lines.
func (s *PaymentService) ReverseTransaction(ctx context.Context, orgID, transactionID uuid.UUID, reason string) (*domain.Transaction, error) {
	original, err := s.store.Transactions().GetByID(ctx, orgID, transactionID)
	if err != nil {
		return nil, err
	}

	release, err := s.locks.Acquire(ctx, original.LoanID)
	if err != nil {
		return nil, err
	}
	defer release()

	var reversal *domain.Transaction
	err = s.store.Atomic(ctx, func(tx repository.Store) error {
		original, err = tx.Transactions().GetByID(ctx, orgID, transactionID)
		if err != nil {
			return err
		}
		if original.Type != domain.TransactionTypePayment {
			return customError.NewBusinessError(
				customError.ErrCodeAlreadyReversed,
				"only payment transactions can be reversed",
				customError.ErrAlreadyReversed,
			)
		}
		if original.Reversed() {
			return customError.WrapAlreadyReversed(transactionID.String())
		}

		loan, err := tx.Loans().GetByID(ctx, orgID, original.LoanID)
		if err != nil {
			return err
		}

		schedule, err := tx.Installments().GetByLoanID(ctx, orgID, original.LoanID)
		if err != nil {
			return customError.WrapDatabaseError(err)
		}

		// A recalculation since the payment may have superseded lines the
		// payment settled; debiting those would corrupt the retained history,
		// so the reversal is refused outright.
		byID := make(map[uuid.UUID]*domain.Installment, len(schedule))
		for _, inst := range schedule {
			byID[inst.ID] = inst
		}
		for _, line := range original.Allocations {
			if inst, ok := byID[line.InstallmentID]; !ok || inst.Superseded() {
				return customError.WrapReversalConflict(original.ID.String())
			}
		}

		negated := engine.Reverse(schedule, original.Allocations)

		reversal = &domain.Transaction{
			ID:          uuid.New(),
			LoanID:      original.LoanID,
			OrgID:       orgID,
			Type:        domain.TransactionTypeReversal,
			Amount:      original.Amount.Neg(),
			Unapplied:   money.Zero(loan.Scale()),
			Date:        original.Date,
			Method:      original.Method,
			Reason:      reason,
			ReversesID:  &original.ID,
			Allocations: negated,
		}

		touched := make(map[uuid.UUID]bool, len(negated))
		for _, line := range negated {
			touched[line.InstallmentID] = true
		}
		for _, inst := range schedule {
			if !touched[inst.ID] {
				continue
			}
			if err := tx.Installments().SaveProgress(ctx, inst); err != nil {
				return customError.WrapDatabaseError(err)
			}
		}

		if err := tx.Transactions().Create(ctx, reversal); err != nil {
			return customError.WrapDatabaseError(err)
		}
		if err := tx.Transactions().MarkReversed(ctx, orgID, original.ID, reversal.ID); err != nil {
			return err
		}

		// A reversal can reopen a loan that the payment had settled.
		if loan.Status == domain.LoanStatusClosed &&
			engine.TotalOutstanding(schedule, loan.Scale()).IsPositive() {
			if err := tx.Loans().UpdateStatus(ctx, orgID, loan.ID, domain.LoanStatusActive); err != nil {
				return customError.WrapDatabaseError(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"loan_id":        reversal.LoanID,
		"org_id":         orgID,
		"transaction_id": reversal.ID,
		"reverses":       transactionID,
		"reason":         reason,
	}).Info("transaction reversed")

	return reversal, nil
}

// GetTransactions lists a loan's payment history, oldest first.
func (s *PaymentService) GetTransactions(ctx context.Context, orgID, loanID uuid.UUID) ([]*domain.Transaction, error) {
	transactions, err := s.store.Transactions().GetByLoanID(ctx, orgID, loanID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return transactions, nil
}
