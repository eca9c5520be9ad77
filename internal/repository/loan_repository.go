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
	customError "github.com/kobofin/loan-engine/pkg/errors"
	"github.com/kobofin/loan-engine/pkg/money"
)

type loanRepository struct {
	q querier
}

// Monetary columns are integer minor units alongside the currency scale;
// never floating point.
type loanRow struct {
	ID              uuid.UUID       `db:"id"`
	OrgID           uuid.UUID       `db:"org_id"`
	BorrowerID      uuid.UUID       `db:"borrower_id"`
	Branch          string          `db:"branch"`
	OfficerID       string          `db:"officer_id"`
	PrincipalUnits  int64           `db:"principal_units"`
	CurrencyScale   int32           `db:"currency_scale"`
	AnnualRate      decimal.Decimal `db:"annual_rate"`
	Method          string          `db:"method"`
	TermPeriods     int             `db:"term_periods"`
	Frequency       string          `db:"frequency"`
	GracePeriods    int             `db:"grace_periods"`
	GracePolicy     string          `db:"grace_policy"`
	PeriodFeeUnits  int64           `db:"period_fee_units"`
	CollateralUnits int64           `db:"collateral_units"`
	DisbursedAt     time.Time       `db:"disbursed_at"`
	Status          string          `db:"status"`
	CreatedAt       time.Time       `db:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at"`
}

func (r loanRow) toDomain() *domain.Loan {
	return &domain.Loan{
		ID:              r.ID,
		OrgID:           r.OrgID,
		BorrowerID:      r.BorrowerID,
		Branch:          r.Branch,
		OfficerID:       r.OfficerID,
		Principal:       money.New(r.PrincipalUnits, r.CurrencyScale),
		AnnualRate:      r.AnnualRate,
		Method:          domain.InterestMethod(r.Method),
		TermPeriods:     r.TermPeriods,
		Frequency:       daycount.Frequency(r.Frequency),
		GracePeriods:    r.GracePeriods,
		GracePolicy:     domain.GracePolicy(r.GracePolicy),
		PeriodFee:       money.New(r.PeriodFeeUnits, r.CurrencyScale),
		CollateralValue: money.New(r.CollateralUnits, r.CurrencyScale),
		DisbursedAt:     r.DisbursedAt,
		Status:          r.Status,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
}

const loanColumns = `
	id, org_id, borrower_id, branch, officer_id, principal_units,
	currency_scale, annual_rate, method, term_periods, frequency,
	grace_periods, grace_policy, period_fee_units, collateral_units,
	disbursed_at, status, created_at, updated_at
`

func (r *loanRepository) Create(ctx context.Context, loan *domain.Loan) error {
	query := `
		INSERT INTO loans (` + loanColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	`

	now := time.Now()
	loan.CreatedAt = now
	loan.UpdatedAt = now

	_, err := r.q.ExecContext(ctx, query,
		loan.ID,
		loan.OrgID,
		loan.BorrowerID,
		loan.Branch,
		loan.OfficerID,
		loan.Principal.Units,
		loan.Principal.Scale,
		loan.AnnualRate,
		string(loan.Method),
		loan.TermPeriods,
		string(loan.Frequency),
		loan.GracePeriods,
		string(loan.GracePolicy),
		loan.PeriodFee.Units,
		loan.CollateralValue.Units,
		loan.DisbursedAt,
		loan.Status,
		loan.CreatedAt,
		loan.UpdatedAt,
	)

	return err
}

func (r *loanRepository) GetByID(ctx context.Context, orgID, loanID uuid.UUID) (*domain.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE org_id = $1 AND id = $2
	`

	var row loanRow
	if err := r.q.GetContext(ctx, &row, query, orgID, loanID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, customError.WrapLoanNotFound(loanID.String())
		}
		return nil, err
	}

	return row.toDomain(), nil
}

func (r *loanRepository) UpdateStatus(ctx context.Context, orgID, loanID uuid.UUID, status string) error {
	query := `
		UPDATE loans
		SET status = $3, updated_at = $4
		WHERE org_id = $1 AND id = $2
	`

	_, err := r.q.ExecContext(ctx, query, orgID, loanID, status, time.Now())
	return err
}

func (r *loanRepository) ListActive(ctx context.Context, orgID uuid.UUID) ([]*domain.Loan, error) {
	query := `
		SELECT ` + loanColumns + `
		FROM loans
		WHERE org_id = $1 AND status = $2
		ORDER BY created_at
	`

	var rows []loanRow
	if err := r.q.SelectContext(ctx, &rows, query, orgID, domain.LoanStatusActive); err != nil {
		return nil, err
	}

	loans := make([]*domain.Loan, 0, len(rows))
	for _, row := range rows {
		loans = append(loans, row.toDomain())
	}
	return loans, nil
}

func (r *loanRepository) ListOrgs(ctx context.Context) ([]uuid.UUID, error) {
	query := `
		SELECT DISTINCT org_id
		FROM loans
		WHERE status = $1
		ORDER BY org_id
	`

	var orgs []uuid.UUID
	if err := r.q.SelectContext(ctx, &orgs, query, domain.LoanStatusActive); err != nil {
		return nil, err
	}
	return orgs, nil
}
