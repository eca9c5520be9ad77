package repository

import (
	"context"

	"github.com/jmoiron/sqlx"
)

// querier is satisfied by both *sqlx.DB and *sqlx.Tx so the same repository
// code runs inside and outside a transaction.
type querier interface {
	sqlx.ExtContext
	GetContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
	SelectContext(ctx context.Context, dest interface{}, query string, args ...interface{}) error
}

type postgresStore struct {
	db *sqlx.DB
	q  querier
}

// NewPostgresStore wires the sqlx-backed Store.
func NewPostgresStore(db *sqlx.DB) Store {
	return &postgresStore{db: db, q: db}
}

func (s *postgresStore) Loans() LoanRepository { return &loanRepository{q: s.q} }

func (s *postgresStore) Installments() InstallmentRepository {
	return &installmentRepository{q: s.q}
}

func (s *postgresStore) Transactions() TransactionRepository {
	return &transactionRepository{q: s.q}
}

func (s *postgresStore) Classifications() ClassificationRepository {
	return &classificationRepository{q: s.q}
}

// Atomic runs fn within one database transaction. Nested calls reuse the
// surrounding transaction.
func (s *postgresStore) Atomic(ctx context.Context, fn func(Store) error) error {
	if _, nested := s.q.(*sqlx.Tx); nested {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if err := fn(&postgresStore{db: s.db, q: tx}); err != nil {
		return err
	}
	return tx.Commit()
}
