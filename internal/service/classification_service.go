package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/kobofin/loan-engine/internal/config"
	"github.com/kobofin/loan-engine/internal/domain"
	"github.com/kobofin/loan-engine/internal/engine"
	"github.com/kobofin/loan-engine/internal/repository"
	"github.com/kobofin/loan-engine/pkg/daycount"
	customError "github.com/kobofin/loan-engine/pkg/errors"
	"github.com/kobofin/loan-engine/pkg/money"
)

// ClassificationService derives arrears state, risk classes and provisions.
// Everything takes an explicit as-of date; the service never reads the
// clock for business decisions.
type ClassificationService struct {
	store  repository.Store
	redis  *redis.Client
	config *config.Config
	logger *logrus.Logger
}

func NewClassificationService(store repository.Store, redisClient *redis.Client, cfg *config.Config, logger *logrus.Logger) *ClassificationService {
	return &ClassificationService{
		store:  store,
		redis:  redisClient,
		config: cfg,
		logger: logger,
	}
}

func (s *ClassificationService) classifierConfig() engine.ClassifierConfig {
	return engine.ClassifierConfig{
		WatchRate:       s.config.WatchRate(),
		SubstandardRate: s.config.SubstandardRate(),
		CurePeriods:     s.config.Business.CurePeriods,
		NetCollateral:   s.config.Business.NetCollateral,
	}
}

// GetArrearsState answers the on-demand arrears query. Read-only: statuses
// are left alone, the batch job owns the pending-to-overdue flip.
func (s *ClassificationService) GetArrearsState(ctx context.Context, orgID, loanID uuid.UUID, asOf time.Time) (*domain.ArrearsState, error) {
	loan, err := s.store.Loans().GetByID(ctx, orgID, loanID)
	if err != nil {
		return nil, err
	}
	schedule, err := s.store.Installments().GetByLoanID(ctx, orgID, loanID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	days, pastDue := engine.ComputeArrears(schedule, asOf, loan.Scale())
	return &domain.ArrearsState{
		LoanID:        loanID,
		AsOfDate:      daycount.Date(asOf),
		DaysInArrears: days,
		AmountPastDue: pastDue,
	}, nil
}

// ClassifyLoan computes and stores the classification record for (loan,
// as-of date). Idempotent: re-running overwrites the same single record.
func (s *ClassificationService) ClassifyLoan(ctx context.Context, orgID, loanID uuid.UUID, asOf time.Time) (*domain.ClassificationRecord, error) {
	loan, err := s.store.Loans().GetByID(ctx, orgID, loanID)
	if err != nil {
		return nil, err
	}
	schedule, err := s.store.Installments().GetByLoanID(ctx, orgID, loanID)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	cfg := s.classifierConfig()
	days, _ := engine.ComputeArrears(schedule, asOf, loan.Scale())
	riskClass, rate := engine.Classify(days, cfg)

	if cfg.CurePeriods > 0 {
		history, err := s.store.Classifications().History(ctx, orgID, loanID, asOf, cfg.CurePeriods)
		if err != nil {
			return nil, customError.WrapDatabaseError(err)
		}
		held := engine.ApplyCurePolicy(riskClass, history, cfg)
		if held != riskClass {
			riskClass = held
			_, rate = classRate(held, cfg)
		}
	}

	outstanding := engine.PrincipalOutstanding(schedule, loan.Scale())
	anchor := engine.AccrualAnchor(schedule, loan.DisbursedAt, asOf)
	accrued := engine.AccruedInterest(outstanding, loan.AnnualRate, anchor, asOf, s.config.DayCount())
	base := engine.ProvisionBase(outstanding, loan.CollateralValue, cfg)

	// Re-running for the same date overwrites the one existing record, so a
	// repeat run returns it unchanged rather than minting a new identity.
	recordID := uuid.New()
	if existing, err := s.store.Classifications().GetByLoanAndDate(ctx, orgID, loanID, asOf); err != nil {
		return nil, customError.WrapDatabaseError(err)
	} else if existing != nil {
		recordID = existing.ID
	}

	record := &domain.ClassificationRecord{
		ID:                   recordID,
		LoanID:               loanID,
		OrgID:                orgID,
		Branch:               loan.Branch,
		OfficerID:            loan.OfficerID,
		AsOfDate:             daycount.Date(asOf),
		DaysInArrears:        days,
		OutstandingPrincipal: outstanding,
		AccruedInterest:      accrued,
		RiskClass:            riskClass,
		ProvisionRate:        rate,
		ProvisionAmount:      base.MulRate(rate),
	}

	if err := s.store.Classifications().Upsert(ctx, record); err != nil {
		return nil, customError.WrapDatabaseError(err)
	}
	return record, nil
}

// classRate maps a (possibly cure-held) class back to its provision rate.
func classRate(c domain.RiskClass, cfg engine.ClassifierConfig) (domain.RiskClass, decimal.Decimal) {
	switch c {
	case domain.ClassCurrent:
		return c, decimal.Zero
	case domain.ClassWatch:
		return c, cfg.WatchRate
	case domain.ClassSubstandard:
		return c, cfg.SubstandardRate
	case domain.ClassDoubtful:
		return c, decimal.NewFromFloat(0.50)
	default:
		return c, decimal.NewFromInt(1)
	}
}

// ClassifyPortfolio runs the daily batch across an organization: flip
// overdue statuses, then classify. One loan's failure never aborts the rest;
// it lands in the summary instead.
func (s *ClassificationService) ClassifyPortfolio(ctx context.Context, orgID uuid.UUID, asOf time.Time) (*domain.BatchSummary, []*domain.ClassificationRecord, error) {
	loans, err := s.store.Loans().ListActive(ctx, orgID)
	if err != nil {
		return nil, nil, customError.WrapDatabaseError(err)
	}

	summary := &domain.BatchSummary{
		AsOfDate: daycount.Date(asOf),
		Failures: make(map[string]string),
	}
	records := make([]*domain.ClassificationRecord, 0, len(loans))

	for _, loan := range loans {
		record, err := s.classifyWithSideEffects(ctx, orgID, loan.ID, asOf)
		if err != nil {
			summary.Failed++
			summary.Failures[loan.ID.String()] = err.Error()
			s.logger.WithError(err).WithFields(logrus.Fields{
				"loan_id": loan.ID,
				"org_id":  orgID,
			}).Warn("classification failed for loan")
			continue
		}
		summary.Classified++
		records = append(records, record)
	}

	s.logger.WithFields(logrus.Fields{
		"org_id":     orgID,
		"as_of":      summary.AsOfDate.Format("2006-01-02"),
		"classified": summary.Classified,
		"failed":     summary.Failed,
	}).Info("portfolio classification finished")

	return summary, records, nil
}

// classifyWithSideEffects is the batch variant: it persists the
// pending-to-overdue flips before classifying.
func (s *ClassificationService) classifyWithSideEffects(ctx context.Context, orgID, loanID uuid.UUID, asOf time.Time) (*domain.ClassificationRecord, error) {
	err := s.store.Atomic(ctx, func(tx repository.Store) error {
		schedule, err := tx.Installments().GetByLoanID(ctx, orgID, loanID)
		if err != nil {
			return customError.WrapDatabaseError(err)
		}
		for _, inst := range engine.MarkOverdue(schedule, asOf) {
			if err := tx.Installments().SaveProgress(ctx, inst); err != nil {
				return customError.WrapDatabaseError(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.ClassifyLoan(ctx, orgID, loanID, asOf)
}

// PortfolioAtRisk aggregates the stored records for an as-of date into the
// PAR report, optionally sliced by branch and/or officer. Read-only; cached
// briefly.
func (s *ClassificationService) PortfolioAtRisk(ctx context.Context, orgID uuid.UUID, asOf time.Time, branch, officer string) (*domain.PortfolioAtRisk, error) {
	cacheKey := fmt.Sprintf("par:%s:%s:%s:%s", orgID, daycount.Date(asOf).Format("2006-01-02"), branch, officer)
	if s.redis != nil {
		if cached, err := s.redis.Get(ctx, cacheKey).Bytes(); err == nil {
			var report domain.PortfolioAtRisk
			if json.Unmarshal(cached, &report) == nil {
				return &report, nil
			}
		}
	}

	records, err := s.store.Classifications().ListByOrgAndDate(ctx, orgID, asOf)
	if err != nil {
		return nil, customError.WrapDatabaseError(err)
	}

	report := aggregate(orgID, daycount.Date(asOf), branch, officer, records)

	if s.redis != nil {
		if payload, err := json.Marshal(report); err == nil {
			if err := s.redis.Set(ctx, cacheKey, payload, s.config.Business.ReportCacheTTL).Err(); err != nil {
				s.logger.WithError(err).Warn("caching PAR report failed")
			}
		}
	}
	return report, nil
}

func aggregate(orgID uuid.UUID, asOf time.Time, branch, officer string, records []*domain.ClassificationRecord) *domain.PortfolioAtRisk {
	const scale = int32(2)

	byClass := make(map[domain.RiskClass]*domain.ClassExposure)
	total := money.Money{}
	inArrears := money.Money{}
	initialized := false

	for _, record := range records {
		if branch != "" && record.Branch != branch {
			continue
		}
		if officer != "" && record.OfficerID != officer {
			continue
		}
		if !initialized {
			total = money.Zero(record.OutstandingPrincipal.Scale)
			inArrears = money.Zero(record.OutstandingPrincipal.Scale)
			initialized = true
		}
		entry, ok := byClass[record.RiskClass]
		if !ok {
			entry = &domain.ClassExposure{
				RiskClass: record.RiskClass,
				Exposure:  money.Zero(record.OutstandingPrincipal.Scale),
				Provision: money.Zero(record.OutstandingPrincipal.Scale),
			}
			byClass[record.RiskClass] = entry
		}
		entry.Count++
		entry.Exposure = entry.Exposure.Add(record.OutstandingPrincipal)
		entry.Provision = entry.Provision.Add(record.ProvisionAmount)
		total = total.Add(record.OutstandingPrincipal)
		if record.DaysInArrears > 0 {
			inArrears = inArrears.Add(record.OutstandingPrincipal)
		}
	}
	if !initialized {
		total = money.Zero(scale)
		inArrears = money.Zero(scale)
	}

	par := decimal.Zero
	if total.IsPositive() {
		par = inArrears.Decimal().Div(total.Decimal()).Round(6)
	}

	ordered := []domain.RiskClass{
		domain.ClassCurrent, domain.ClassWatch, domain.ClassSubstandard,
		domain.ClassDoubtful, domain.ClassLoss,
	}
	classes := make([]*domain.ClassExposure, 0, len(byClass))
	for _, class := range ordered {
		if entry, ok := byClass[class]; ok {
			classes = append(classes, entry)
		}
	}

	return &domain.PortfolioAtRisk{
		OrgID:             orgID,
		AsOfDate:          asOf,
		Branch:            branch,
		Officer:           officer,
		TotalExposure:     total,
		ExposureInArrears: inArrears,
		PAR:               par,
		ByClass:           classes,
	}
}
