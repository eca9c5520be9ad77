package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kobofin/loan-engine/pkg/money"
)

// RiskClass buckets a loan by days in arrears, ordered by severity.
type RiskClass string

const (
	ClassCurrent     RiskClass = "current"
	ClassWatch       RiskClass = "watch"
	ClassSubstandard RiskClass = "substandard"
	ClassDoubtful    RiskClass = "doubtful"
	ClassLoss        RiskClass = "loss"
)

// Severity orders classes so a cure-period policy can tell an upgrade from
// a downgrade. Higher is worse.
func (c RiskClass) Severity() int {
	switch c {
	case ClassCurrent:
		return 0
	case ClassWatch:
		return 1
	case ClassSubstandard:
		return 2
	case ClassDoubtful:
		return 3
	case ClassLoss:
		return 4
	}
	return -1
}

// ClassificationRecord is the append-only per-(loan, as-of date) result of a
// classification run. Re-running for the same date overwrites this single
// record.
type ClassificationRecord struct {
	ID                   uuid.UUID       `json:"id"`
	LoanID               uuid.UUID       `json:"loan_id"`
	OrgID                uuid.UUID       `json:"org_id"`
	Branch               string          `json:"branch,omitempty"`
	OfficerID            string          `json:"officer_id,omitempty"`
	AsOfDate             time.Time       `json:"as_of_date"`
	DaysInArrears        int             `json:"days_in_arrears"`
	OutstandingPrincipal money.Money     `json:"outstanding_principal"`
	AccruedInterest      money.Money     `json:"accrued_interest"`
	RiskClass            RiskClass       `json:"risk_class"`
	ProvisionRate        decimal.Decimal `json:"provision_rate"`
	ProvisionAmount      money.Money     `json:"provision_amount"`
	CreatedAt            time.Time       `json:"created_at"`
}

// ClassExposure is one row of a portfolio report.
type ClassExposure struct {
	RiskClass RiskClass   `json:"risk_class"`
	Count     int         `json:"count"`
	Exposure  money.Money `json:"exposure"`
	Provision money.Money `json:"provision"`
}

// PortfolioAtRisk is the aggregated portfolio view for an as-of date.
type PortfolioAtRisk struct {
	OrgID             uuid.UUID        `json:"org_id"`
	AsOfDate          time.Time        `json:"as_of_date"`
	Branch            string           `json:"branch,omitempty"`
	Officer           string           `json:"officer,omitempty"`
	TotalExposure     money.Money      `json:"total_exposure"`
	ExposureInArrears money.Money      `json:"exposure_in_arrears"`
	PAR               decimal.Decimal  `json:"par"`
	ByClass           []*ClassExposure `json:"by_class"`
}

// BatchSummary reports a portfolio classification run. Per-loan failures are
// collected here instead of aborting the batch.
type BatchSummary struct {
	AsOfDate   time.Time         `json:"as_of_date"`
	Classified int               `json:"classified"`
	Failed     int               `json:"failed"`
	Failures   map[string]string `json:"failures,omitempty"`
}
