package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/kobofin/loan-engine/internal/domain"
	"github.com/kobofin/loan-engine/pkg/money"
)

type installmentRepository struct {
	q querier
}

type installmentRow struct {
	ID            uuid.UUID `db:"id"`
	LoanID        uuid.UUID `db:"loan_id"`
	OrgID         uuid.UUID `db:"org_id"`
	Sequence      int       `db:"sequence_number"`
	DueDate       time.Time `db:"due_date"`
	CurrencyScale int32     `db:"currency_scale"`
	PrincipalDue  int64     `db:"principal_due_units"`
	InterestDue   int64     `db:"interest_due_units"`
	FeeDue        int64     `db:"fee_due_units"`
	PrincipalPaid int64     `db:"principal_paid_units"`
	InterestPaid  int64     `db:"interest_paid_units"`
	FeePaid       int64     `db:"fee_paid_units"`
	Status        string    `db:"status"`
	CreatedAt     time.Time `db:"created_at"`
}

func (r installmentRow) toDomain() *domain.Installment {
	return &domain.Installment{
		ID:            r.ID,
		LoanID:        r.LoanID,
		OrgID:         r.OrgID,
		Sequence:      r.Sequence,
		DueDate:       r.DueDate,
		PrincipalDue:  money.New(r.PrincipalDue, r.CurrencyScale),
		InterestDue:   money.New(r.InterestDue, r.CurrencyScale),
		FeeDue:        money.New(r.FeeDue, r.CurrencyScale),
		PrincipalPaid: money.New(r.PrincipalPaid, r.CurrencyScale),
		InterestPaid:  money.New(r.InterestPaid, r.CurrencyScale),
		FeePaid:       money.New(r.FeePaid, r.CurrencyScale),
		Status:        r.Status,
		CreatedAt:     r.CreatedAt,
	}
}

const installmentColumns = `
	id, loan_id, org_id, sequence_number, due_date, currency_scale,
	principal_due_units, interest_due_units, fee_due_units,
	principal_paid_units, interest_paid_units, fee_paid_units,
	status, created_at
`

func (r *installmentRepository) CreateBatch(ctx context.Context, installments []*domain.Installment) error {
	query := `
		INSERT INTO installments (` + installmentColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	now := time.Now()
	for _, inst := range installments {
		inst.CreatedAt = now
		_, err := r.q.ExecContext(ctx, query,
			inst.ID,
			inst.LoanID,
			inst.OrgID,
			inst.Sequence,
			inst.DueDate,
			inst.PrincipalDue.Scale,
			inst.PrincipalDue.Units,
			inst.InterestDue.Units,
			inst.FeeDue.Units,
			inst.PrincipalPaid.Units,
			inst.InterestPaid.Units,
			inst.FeePaid.Units,
			inst.Status,
			inst.CreatedAt,
		)
		if err != nil {
			return err
		}
	}

	return nil
}

func (r *installmentRepository) GetByLoanID(ctx context.Context, orgID, loanID uuid.UUID) ([]*domain.Installment, error) {
	query := `
		SELECT ` + installmentColumns + `
		FROM installments
		WHERE org_id = $1 AND loan_id = $2
		ORDER BY sequence_number
	`

	var rows []installmentRow
	if err := r.q.SelectContext(ctx, &rows, query, orgID, loanID); err != nil {
		return nil, err
	}

	installments := make([]*domain.Installment, 0, len(rows))
	for _, row := range rows {
		installments = append(installments, row.toDomain())
	}
	return installments, nil
}

func (r *installmentRepository) SaveProgress(ctx context.Context, installment *domain.Installment) error {
	query := `
		UPDATE installments
		SET principal_paid_units = $3, interest_paid_units = $4,
		    fee_paid_units = $5, status = $6
		WHERE org_id = $1 AND id = $2
	`

	_, err := r.q.ExecContext(ctx, query,
		installment.OrgID,
		installment.ID,
		installment.PrincipalPaid.Units,
		installment.InterestPaid.Units,
		installment.FeePaid.Units,
		installment.Status,
	)
	return err
}

func (r *installmentRepository) MarkSuperseded(ctx context.Context, orgID, loanID uuid.UUID, ids []uuid.UUID) error {
	query := `
		UPDATE installments
		SET status = $4
		WHERE org_id = $1 AND loan_id = $2 AND id = ANY($3)
	`

	_, err := r.q.ExecContext(ctx, query, orgID, loanID, pq.Array(ids), domain.InstallmentStatusSuperseded)
	return err
}
