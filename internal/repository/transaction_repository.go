package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/kobofin/loan-engine/internal/domain"
	customError "github.com/kobofin/loan-engine/pkg/errors"
	"github.com/kobofin/loan-engine/pkg/money"
)

type transactionRepository struct {
	q querier
}

type transactionRow struct {
	ID             uuid.UUID  `db:"id"`
	LoanID         uuid.UUID  `db:"loan_id"`
	OrgID          uuid.UUID  `db:"org_id"`
	Type           string     `db:"type"`
	CurrencyScale  int32      `db:"currency_scale"`
	AmountUnits    int64      `db:"amount_units"`
	UnappliedUnits int64      `db:"unapplied_units"`
	Date           time.Time  `db:"transaction_date"`
	Method         string     `db:"method"`
	Reason         string     `db:"reason"`
	ReversesID     *uuid.UUID `db:"reverses_id"`
	ReversedByID   *uuid.UUID `db:"reversed_by_id"`
	CreatedAt      time.Time  `db:"created_at"`
}

type allocationRow struct {
	ID             uuid.UUID `db:"id"`
	TransactionID  uuid.UUID `db:"transaction_id"`
	InstallmentID  uuid.UUID `db:"installment_id"`
	CurrencyScale  int32     `db:"currency_scale"`
	PrincipalUnits int64     `db:"principal_units"`
	InterestUnits  int64     `db:"interest_units"`
	FeeUnits       int64     `db:"fee_units"`
}

func (r transactionRow) toDomain() *domain.Transaction {
	return &domain.Transaction{
		ID:           r.ID,
		LoanID:       r.LoanID,
		OrgID:        r.OrgID,
		Type:         r.Type,
		Amount:       money.New(r.AmountUnits, r.CurrencyScale),
		Unapplied:    money.New(r.UnappliedUnits, r.CurrencyScale),
		Date:         r.Date,
		Method:       r.Method,
		Reason:       r.Reason,
		ReversesID:   r.ReversesID,
		ReversedByID: r.ReversedByID,
		CreatedAt:    r.CreatedAt,
	}
}

func (r allocationRow) toDomain() *domain.Allocation {
	return &domain.Allocation{
		ID:            r.ID,
		TransactionID: r.TransactionID,
		InstallmentID: r.InstallmentID,
		Principal:     money.New(r.PrincipalUnits, r.CurrencyScale),
		Interest:      money.New(r.InterestUnits, r.CurrencyScale),
		Fee:           money.New(r.FeeUnits, r.CurrencyScale),
	}
}

const transactionColumns = `
	id, loan_id, org_id, type, currency_scale, amount_units, unapplied_units,
	transaction_date, method, reason, reverses_id, reversed_by_id, created_at
`

// Create inserts the transaction and its allocation lines; the table is
// append-only, reversal links are the only later mutation.
func (r *transactionRepository) Create(ctx context.Context, transaction *domain.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	transaction.CreatedAt = time.Now()
	_, err := r.q.ExecContext(ctx, query,
		transaction.ID,
		transaction.LoanID,
		transaction.OrgID,
		transaction.Type,
		transaction.Amount.Scale,
		transaction.Amount.Units,
		transaction.Unapplied.Units,
		transaction.Date,
		transaction.Method,
		transaction.Reason,
		transaction.ReversesID,
		transaction.ReversedByID,
		transaction.CreatedAt,
	)
	if err != nil {
		return err
	}

	lineQuery := `
		INSERT INTO transaction_allocations
			(id, transaction_id, installment_id, currency_scale,
			 principal_units, interest_units, fee_units)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	for _, line := range transaction.Allocations {
		line.TransactionID = transaction.ID
		_, err := r.q.ExecContext(ctx, lineQuery,
			line.ID,
			line.TransactionID,
			line.InstallmentID,
			line.Principal.Scale,
			line.Principal.Units,
			line.Interest.Units,
			line.Fee.Units,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *transactionRepository) GetByID(ctx context.Context, orgID, transactionID uuid.UUID) (*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE org_id = $1 AND id = $2
	`

	var row transactionRow
	if err := r.q.GetContext(ctx, &row, query, orgID, transactionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapTransactionNotFound(transactionID.String())
		}
		return nil, err
	}

	transaction := row.toDomain()
	allocations, err := r.allocationsFor(ctx, transaction.ID)
	if err != nil {
		return nil, err
	}
	transaction.Allocations = allocations
	return transaction, nil
}

func (r *transactionRepository) GetByLoanID(ctx context.Context, orgID, loanID uuid.UUID) ([]*domain.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE org_id = $1 AND loan_id = $2
		ORDER BY created_at
	`

	var rows []transactionRow
	if err := r.q.SelectContext(ctx, &rows, query, orgID, loanID); err != nil {
		return nil, err
	}

	transactions := make([]*domain.Transaction, 0, len(rows))
	for _, row := range rows {
		transaction := row.toDomain()
		allocations, err := r.allocationsFor(ctx, transaction.ID)
		if err != nil {
			return nil, err
		}
		transaction.Allocations = allocations
		transactions = append(transactions, transaction)
	}
	return transactions, nil
}

func (r *transactionRepository) MarkReversed(ctx context.Context, orgID, transactionID, reversalID uuid.UUID) error {
	query := `
		UPDATE transactions
		SET reversed_by_id = $3
		WHERE org_id = $1 AND id = $2 AND reversed_by_id IS NULL
	`

	res, err := r.q.ExecContext(ctx, query, orgID, transactionID, reversalID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return customError.WrapAlreadyReversed(transactionID.String())
	}
	return nil
}

func (r *transactionRepository) allocationsFor(ctx context.Context, transactionID uuid.UUID) ([]*domain.Allocation, error) {
	query := `
		SELECT id, transaction_id, installment_id, currency_scale,
		       principal_units, interest_units, fee_units
		FROM transaction_allocations
		WHERE transaction_id = $1
	`

	var rows []allocationRow
	if err := r.q.SelectContext(ctx, &rows, query, transactionID); err != nil {
		return nil, err
	}

	allocations := make([]*domain.Allocation, 0, len(rows))
	for _, row := range rows {
		allocations = append(allocations, row.toDomain())
	}
	return allocations, nil
}
