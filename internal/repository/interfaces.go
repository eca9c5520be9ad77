package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kobofin/loan-engine/internal/domain"
)

// Every method takes the tenant's org ID explicitly; scoping is a query
// parameter, never ambient state.

// LoanRepository defines the interface for loan data operations
type LoanRepository interface {
	// Create creates a new loan
	Create(ctx context.Context, loan *domain.Loan) error

	// GetByID retrieves a loan scoped to its organization
	GetByID(ctx context.Context, orgID, loanID uuid.UUID) (*domain.Loan, error)

	// UpdateStatus moves a loan through its lifecycle states
	UpdateStatus(ctx context.Context, orgID, loanID uuid.UUID, status string) error

	// ListActive returns the organization's loans open for classification
	ListActive(ctx context.Context, orgID uuid.UUID) ([]*domain.Loan, error)

	// ListOrgs returns every organization holding active loans, for the
	// daily batch to walk
	ListOrgs(ctx context.Context) ([]uuid.UUID, error)
}

// InstallmentRepository defines the interface for schedule line operations
type InstallmentRepository interface {
	// CreateBatch inserts a generated schedule in bulk
	CreateBatch(ctx context.Context, installments []*domain.Installment) error

	// GetByLoanID retrieves a loan's schedule ordered by sequence
	GetByLoanID(ctx context.Context, orgID, loanID uuid.UUID) ([]*domain.Installment, error)

	// SaveProgress persists one line's paid amounts and status
	SaveProgress(ctx context.Context, installment *domain.Installment) error

	// MarkSuperseded retires lines replaced by a recalculation
	MarkSuperseded(ctx context.Context, orgID, loanID uuid.UUID, ids []uuid.UUID) error
}

// TransactionRepository defines the interface for payment event operations
type TransactionRepository interface {
	// Create inserts a transaction together with its allocation lines
	Create(ctx context.Context, transaction *domain.Transaction) error

	// GetByID retrieves a transaction with its allocations
	GetByID(ctx context.Context, orgID, transactionID uuid.UUID) (*domain.Transaction, error)

	// GetByLoanID retrieves a loan's transactions, oldest first
	GetByLoanID(ctx context.Context, orgID, loanID uuid.UUID) ([]*domain.Transaction, error)

	// MarkReversed links a transaction to the reversal that negated it
	MarkReversed(ctx context.Context, orgID, transactionID, reversalID uuid.UUID) error
}

// ClassificationRepository defines the interface for classification records
type ClassificationRepository interface {
	// Upsert writes the single record for (loan, as-of date); re-running a
	// classification overwrites rather than duplicates
	Upsert(ctx context.Context, record *domain.ClassificationRecord) error

	// GetByLoanAndDate retrieves one record
	GetByLoanAndDate(ctx context.Context, orgID, loanID uuid.UUID, asOf time.Time) (*domain.ClassificationRecord, error)

	// History returns a loan's records before a date, newest first
	History(ctx context.Context, orgID, loanID uuid.UUID, before time.Time, limit int) ([]*domain.ClassificationRecord, error)

	// ListByOrgAndDate returns every loan's record for an as-of date
	ListByOrgAndDate(ctx context.Context, orgID uuid.UUID, asOf time.Time) ([]*domain.ClassificationRecord, error)
}

// Store bundles the repositories and provides the atomic scope mutating
// operations run in: schedule updates and their transaction record commit
// together or not at all.
type Store interface {
	Loans() LoanRepository
	Installments() InstallmentRepository
	Transactions() TransactionRepository
	Classifications() ClassificationRepository

	// Atomic runs fn against a Store whose writes all commit or all roll back.
	Atomic(ctx context.Context, fn func(Store) error) error
}
