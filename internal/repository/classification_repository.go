package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kobofin/loan-engine/internal/domain"
	"github.com/kobofin/loan-engine/pkg/daycount"
	"github.com/kobofin/loan-engine/pkg/money"
)

type classificationRepository struct {
	q querier
}

type classificationRow struct {
	ID               uuid.UUID       `db:"id"`
	LoanID           uuid.UUID       `db:"loan_id"`
	OrgID            uuid.UUID       `db:"org_id"`
	Branch           string          `db:"branch"`
	OfficerID        string          `db:"officer_id"`
	AsOfDate         time.Time       `db:"as_of_date"`
	DaysInArrears    int             `db:"days_in_arrears"`
	CurrencyScale    int32           `db:"currency_scale"`
	OutstandingUnits int64           `db:"outstanding_units"`
	AccruedUnits     int64           `db:"accrued_units"`
	RiskClass        string          `db:"risk_class"`
	ProvisionRate    decimal.Decimal `db:"provision_rate"`
	ProvisionUnits   int64           `db:"provision_units"`
	CreatedAt        time.Time       `db:"created_at"`
}

func (r classificationRow) toDomain() *domain.ClassificationRecord {
	return &domain.ClassificationRecord{
		ID:                   r.ID,
		LoanID:               r.LoanID,
		OrgID:                r.OrgID,
		Branch:               r.Branch,
		OfficerID:            r.OfficerID,
		AsOfDate:             r.AsOfDate,
		DaysInArrears:        r.DaysInArrears,
		OutstandingPrincipal: money.New(r.OutstandingUnits, r.CurrencyScale),
		AccruedInterest:      money.New(r.AccruedUnits, r.CurrencyScale),
		RiskClass:            domain.RiskClass(r.RiskClass),
		ProvisionRate:        r.ProvisionRate,
		ProvisionAmount:      money.New(r.ProvisionUnits, r.CurrencyScale),
		CreatedAt:            r.CreatedAt,
	}
}

const classificationColumns = `
	id, loan_id, org_id, branch, officer_id, as_of_date, days_in_arrears,
	currency_scale, outstanding_units, accrued_units, risk_class,
	provision_rate, provision_units, created_at
`

// Upsert keys on (loan_id, as_of_date) so re-running a classification for
// the same date overwrites its one record.
func (r *classificationRepository) Upsert(ctx context.Context, record *domain.ClassificationRecord) error {
	query := `
		INSERT INTO classification_records (` + classificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (loan_id, as_of_date) DO UPDATE SET
			days_in_arrears = EXCLUDED.days_in_arrears,
			outstanding_units = EXCLUDED.outstanding_units,
			accrued_units = EXCLUDED.accrued_units,
			risk_class = EXCLUDED.risk_class,
			provision_rate = EXCLUDED.provision_rate,
			provision_units = EXCLUDED.provision_units
	`

	record.AsOfDate = daycount.Date(record.AsOfDate)
	record.CreatedAt = time.Now()
	_, err := r.q.ExecContext(ctx, query,
		record.ID,
		record.LoanID,
		record.OrgID,
		record.Branch,
		record.OfficerID,
		record.AsOfDate,
		record.DaysInArrears,
		record.OutstandingPrincipal.Scale,
		record.OutstandingPrincipal.Units,
		record.AccruedInterest.Units,
		string(record.RiskClass),
		record.ProvisionRate,
		record.ProvisionAmount.Units,
		record.CreatedAt,
	)
	return err
}

func (r *classificationRepository) GetByLoanAndDate(ctx context.Context, orgID, loanID uuid.UUID, asOf time.Time) (*domain.ClassificationRecord, error) {
	query := `
		SELECT ` + classificationColumns + `
		FROM classification_records
		WHERE org_id = $1 AND loan_id = $2 AND as_of_date = $3
	`

	var row classificationRow
	if err := r.q.GetContext(ctx, &row, query, orgID, loanID, daycount.Date(asOf)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return row.toDomain(), nil
}

func (r *classificationRepository) History(ctx context.Context, orgID, loanID uuid.UUID, before time.Time, limit int) ([]*domain.ClassificationRecord, error) {
	query := `
		SELECT ` + classificationColumns + `
		FROM classification_records
		WHERE org_id = $1 AND loan_id = $2 AND as_of_date < $3
		ORDER BY as_of_date DESC
		LIMIT $4
	`

	var rows []classificationRow
	if err := r.q.SelectContext(ctx, &rows, query, orgID, loanID, daycount.Date(before), limit); err != nil {
		return nil, err
	}

	records := make([]*domain.ClassificationRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toDomain())
	}
	return records, nil
}

func (r *classificationRepository) ListByOrgAndDate(ctx context.Context, orgID uuid.UUID, asOf time.Time) ([]*domain.ClassificationRecord, error) {
	query := `
		SELECT ` + classificationColumns + `
		FROM classification_records
		WHERE org_id = $1 AND as_of_date = $2
		ORDER BY loan_id
	`

	var rows []classificationRow
	if err := r.q.SelectContext(ctx, &rows, query, orgID, daycount.Date(asOf)); err != nil {
		return nil, err
	}

	records := make([]*domain.ClassificationRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.toDomain())
	}
	return records, nil
}
