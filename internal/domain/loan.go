package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kobofin/loan-engine/pkg/daycount"
	"github.com/kobofin/loan-engine/pkg/money"
)

const (
	LoanStatusDraft      = "draft"
	LoanStatusActive     = "active"
	LoanStatusClosed     = "closed"
	LoanStatusWrittenOff = "written_off"
)

// InterestMethod selects how the schedule splits interest and principal.
type InterestMethod string

const (
	MethodFlat     InterestMethod = "flat"
	MethodReducing InterestMethod = "reducing_balance"
	MethodCompound InterestMethod = "compound"
)

func (m InterestMethod) Valid() bool {
	switch m {
	case MethodFlat, MethodReducing, MethodCompound:
		return true
	}
	return false
}

// GracePolicy controls what falls due during the grace period.
type GracePolicy string

const (
	GraceInterestOnly GracePolicy = "interest_only"
	GraceDeferred     GracePolicy = "deferred"
)

// RecalculationMode selects how a restructured schedule is rebuilt.
type RecalculationMode string

const (
	ReduceInstallment RecalculationMode = "reduce_installment"
	ReduceTerm        RecalculationMode = "reduce_term"
)

// Loan is the borrowing contract. Immutable once its schedule exists,
// except through recalculation which replaces the schedule atomically.
type Loan struct {
	ID              uuid.UUID          `json:"id"`
	OrgID           uuid.UUID          `json:"org_id"`
	BorrowerID      uuid.UUID          `json:"borrower_id"`
	Branch          string             `json:"branch,omitempty"`
	OfficerID       string             `json:"officer_id,omitempty"`
	Principal       money.Money        `json:"principal"`
	AnnualRate      decimal.Decimal    `json:"annual_rate"` // percent, 0-100
	Method          InterestMethod     `json:"method"`
	TermPeriods     int                `json:"term_periods"`
	Frequency       daycount.Frequency `json:"frequency"`
	GracePeriods    int                `json:"grace_periods"`
	GracePolicy     GracePolicy        `json:"grace_policy,omitempty"`
	PeriodFee       money.Money        `json:"period_fee"`
	CollateralValue money.Money        `json:"collateral_value"`
	DisbursedAt     time.Time          `json:"disbursed_at"`
	Status          string             `json:"status"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// Terminal reports whether mutating operations are still allowed.
func (l *Loan) Terminal() bool {
	return l.Status == LoanStatusClosed || l.Status == LoanStatusWrittenOff
}

// Scale is the loan currency's minor-unit scale.
func (l *Loan) Scale() int32 {
	return l.Principal.Scale
}

// DTOs for requests and responses

type CreateLoanRequest struct {
	BorrowerID      uuid.UUID `json:"borrower_id" validate:"required"`
	Branch          string    `json:"branch"`
	OfficerID       string    `json:"officer_id"`
	PrincipalUnits  int64     `json:"principal_units" validate:"required,gt=0"`
	CurrencyScale   int32     `json:"currency_scale" validate:"gte=0,lte=6"`
	AnnualRate      string    `json:"annual_rate" validate:"required"`
	Method          string    `json:"method" validate:"required,oneof=flat reducing_balance compound"`
	TermPeriods     int       `json:"term_periods" validate:"required,gte=1,lte=120"`
	Frequency       string    `json:"frequency" validate:"required,oneof=daily weekly biweekly monthly"`
	GracePeriods    int       `json:"grace_periods" validate:"gte=0"`
	GracePolicy     string    `json:"grace_policy" validate:"omitempty,oneof=interest_only deferred"`
	PeriodFeeUnits  int64     `json:"period_fee_units" validate:"gte=0"`
	CollateralUnits int64     `json:"collateral_units" validate:"gte=0"`
	DisbursedAt     time.Time `json:"disbursed_at" validate:"required"`
}

type CreateLoanResponse struct {
	Loan     *Loan          `json:"loan"`
	Schedule []*Installment `json:"schedule"`
}

type PaymentRequest struct {
	AmountUnits int64     `json:"amount_units" validate:"required,gt=0"`
	Date        time.Time `json:"date" validate:"required"`
	Method      string    `json:"method" validate:"required"`
	Advance     bool      `json:"advance"`
}

type ReversalRequest struct {
	Reason string `json:"reason" validate:"required"`
}

type RecalculationRequest struct {
	PivotDate time.Time `json:"pivot_date" validate:"required"`
	Mode      string    `json:"mode" validate:"required,oneof=reduce_installment reduce_term"`
}

type PayoffQuote struct {
	LoanID          uuid.UUID   `json:"loan_id"`
	AsOfDate        time.Time   `json:"as_of_date"`
	Outstanding     money.Money `json:"outstanding"`
	AccruedInterest money.Money `json:"accrued_interest"`
	Total           money.Money `json:"total"`
}
