package errors

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors
var (
	ErrInvalidScheduleInput  = errors.New("invalid schedule input")
	ErrLoanNotFound          = errors.New("loan not found")
	ErrLoanClosed            = errors.New("loan is in a terminal state")
	ErrNoOutstandingBalance  = errors.New("no outstanding balance")
	ErrTransactionNotFound   = errors.New("transaction not found")
	ErrAlreadyReversed       = errors.New("transaction already reversed")
	ErrRecalculationConflict = errors.New("pivot date precedes an applied payment")
	ErrReversalConflict      = errors.New("payment touches a superseded installment")
	ErrLoanLocked            = errors.New("loan is locked by another operation")
)

// BusinessError represents a business logic error
type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

// NewBusinessError creates a new business error
func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeInvalidScheduleInput  = "INVALID_SCHEDULE_INPUT"
	ErrCodeLoanNotFound          = "LOAN_NOT_FOUND"
	ErrCodeLoanClosed            = "LOAN_CLOSED"
	ErrCodeNoOutstandingBalance  = "NO_OUTSTANDING_BALANCE"
	ErrCodeTransactionNotFound   = "TRANSACTION_NOT_FOUND"
	ErrCodeAlreadyReversed       = "ALREADY_REVERSED"
	ErrCodeRecalculationConflict = "RECALCULATION_CONFLICT"
	ErrCodeReversalConflict      = "REVERSAL_CONFLICT"
	ErrCodeLoanLocked            = "LOAN_LOCKED"
	ErrCodeDatabaseError         = "DATABASE_ERROR"
	ErrCodeCacheError            = "CACHE_ERROR"
)

// Wrap common errors with business context

func WrapInvalidScheduleInput(reason string) *BusinessError {
	return NewBusinessError(
		ErrCodeInvalidScheduleInput,
		reason,
		ErrInvalidScheduleInput,
	)
}

func WrapLoanNotFound(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanNotFound,
		fmt.Sprintf("Loan %s not found", loanID),
		ErrLoanNotFound,
	)
}

func WrapLoanClosed(loanID, status string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanClosed,
		fmt.Sprintf("Loan %s is %s and cannot be mutated", loanID, status),
		ErrLoanClosed,
	)
}

func WrapNoOutstandingBalance(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeNoOutstandingBalance,
		fmt.Sprintf("Loan %s has no outstanding balance", loanID),
		ErrNoOutstandingBalance,
	)
}

func WrapTransactionNotFound(transactionID string) *BusinessError {
	return NewBusinessError(
		ErrCodeTransactionNotFound,
		fmt.Sprintf("Transaction %s not found", transactionID),
		ErrTransactionNotFound,
	)
}

func WrapAlreadyReversed(transactionID string) *BusinessError {
	return NewBusinessError(
		ErrCodeAlreadyReversed,
		fmt.Sprintf("Transaction %s was already reversed", transactionID),
		ErrAlreadyReversed,
	)
}

func WrapRecalculationConflict(loanID string, pivot time.Time) *BusinessError {
	return NewBusinessError(
		ErrCodeRecalculationConflict,
		fmt.Sprintf("Loan %s has payments applied on or after pivot date %s", loanID, pivot.Format("2006-01-02")),
		ErrRecalculationConflict,
	)
}

func WrapReversalConflict(transactionID string) *BusinessError {
	return NewBusinessError(
		ErrCodeReversalConflict,
		fmt.Sprintf("Transaction %s allocated to installments a later recalculation superseded", transactionID),
		ErrReversalConflict,
	)
}

func WrapLoanLocked(loanID string) *BusinessError {
	return NewBusinessError(
		ErrCodeLoanLocked,
		fmt.Sprintf("Loan %s has a mutation in flight", loanID),
		ErrLoanLocked,
	)
}

func WrapDatabaseError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeDatabaseError,
		"database operation failed",
		err,
	)
}

func WrapCacheError(err error) *BusinessError {
	return NewBusinessError(
		ErrCodeCacheError,
		"cache operation failed",
		err,
	)
}
