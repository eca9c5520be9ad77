package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/kobofin/loan-engine/internal/config"
	"github.com/kobofin/loan-engine/internal/domain"
	"github.com/kobofin/loan-engine/internal/engine"
	"github.com/kobofin/loan-engine/internal/lock"
	"github.com/kobofin/loan-engine/internal/repository"
	"github.com/kobofin/loan-engine/pkg/daycount"
	customError "github.com/kobofin/loan-engine/pkg/errors"
	"github.com/kobofin/loan-engine/pkg/money"
)

// ScheduleService owns schedule generation, payoff quotes and restructuring.
type ScheduleService struct {
	store  repository.Store
	locks  lock.LoanLocker
	config *config.Config
	logger *logrus.Logger
}

func NewScheduleService(store repository.Store, locks lock.LoanLocker, cfg *config.Config, logger *logrus.Logger) *ScheduleService {
	return &ScheduleService{
		store:  store,
		locks:  locks,
		config: cfg,
		logger: logger,
	}
}

// CreateLoan validates the request, generates the schedule and commits loan
// plus installments together. Validation failures never touch storage.
func (s *ScheduleService) CreateLoan(ctx context.Context, orgID uuid.UUID, request *domain.CreateLoanRequest) (*domain.Loan, []*domain.Installment, error) {
	rate, err := decimal.NewFromString(request.AnnualRate)
	if err != nil {
		return nil, nil, customError.WrapInvalidScheduleInput("annual rate is not a valid decimal")
	}

	gracePolicy := domain.GracePolicy(request.GracePolicy)
	if request.GracePeriods > 0 && gracePolicy == "" {
		gracePolicy = domain.GracePolicy(s.config.Business.DefaultGracePolicy)
	}

	loan := &domain.Loan{
		ID:              uuid.New(),
		OrgID:           orgID,
		BorrowerID:      request.BorrowerID,
		Branch:          request.Branch,
		OfficerID:       request.OfficerID,
		Principal:       money.New(request.PrincipalUnits, request.CurrencyScale),
		AnnualRate:      rate,
		Method:          domain.InterestMethod(request.Method),
		TermPeriods:     request.TermPeriods,
		Frequency:       daycount.Frequency(request.Frequency),
		GracePeriods:    request.GracePeriods,
		GracePolicy:     gracePolicy,
		PeriodFee:       money.New(request.PeriodFeeUnits, request.CurrencyScale),
		CollateralValue: money.New(request.CollateralUnits, request.CurrencyScale),
		DisbursedAt:     daycount.Date(request.DisbursedAt),
		Status:          domain.LoanStatusActive,
	}

	schedule, err := engine.GenerateSchedule(loan)
	if err != nil {
		return nil, nil, err
	}

	err = s.store.Atomic(ctx, func(tx repository.Store) error {
		if err := tx.Loans().Create(ctx, loan); err != nil {
			return customError.WrapDatabaseError(err)
		}
		if err := tx.Installments().CreateBatch(ctx, schedule); err != nil {
			return customError.WrapDatabaseError(err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"loan_id":      loan.ID,
		"org_id":       orgID,
		"principal":    loan.Principal.String(),
		"method":       loan.Method,
		"term_periods": loan.TermPeriods,
	}).Info("loan created with schedule")

	return loan, schedule, nil
}

// GetLoan returns a loan with its full schedule, superseded lines included.
func (s *ScheduleService) GetLoan(ctx context.Context, orgID, loanID uuid.UUID) (*domain.Loan, []*domain.Installment, error) {
	loan, err := s.store.Loans().GetByID(ctx, orgID, loanID)
	if err != nil {
		return nil, nil, err
	}
	schedule, err := s.store.Installments().GetByLoanID(ctx, orgID, loanID)
	if err != nil {
		return nil, nil, customError.WrapDatabaseError(err)
	}
	return loan, schedule, nil
}

// PayoffQuote prices an early closure: everything still owed on the schedule
// plus interest accrued since the last due date.
func (s *ScheduleService) PayoffQuote(ctx context.Context, orgID, loanID uuid.UUID, asOf time.Time) (*domain.PayoffQuote, error) {
	loan, schedule, err := s.GetLoan(ctx, orgID, loanID)
	if err != nil {
		return nil, err
	}

	outstanding := engine.TotalOutstanding(schedule, loan.Scale())
	anchor := engine.AccrualAnchor(schedule, loan.DisbursedAt, asOf)
	accrued := engine.AccruedInterest(
		engine.PrincipalOutstanding(schedule, loan.Scale()),
		loan.AnnualRate,
		anchor,
		asOf,
		s.config.DayCount(),
	)

	return &domain.PayoffQuote{
		LoanID:          loanID,
		AsOfDate:        daycount.Date(asOf),
		Outstanding:     outstanding,
		AccruedInterest: accrued,
		Total:           outstanding.Add(accrued),
	}, nil
}

// Recalculate restructures a loan that already has payments: unsettled lines
// are superseded and the remaining principal is rescheduled from the pivot
// date, either over the remaining term with a smaller installment
// (ReduceInstallment) or at the old installment size over fewer periods
// (ReduceTerm).
func (s *ScheduleService) Recalculate(ctx context.Context, orgID, loanID uuid.UUID, pivot time.Time, mode domain.RecalculationMode) ([]*domain.Installment, error) {
	release, err := s.locks.Acquire(ctx, loanID)
	if err != nil {
		return nil, err
	}
	defer release()

	var tail []*domain.Installment
	err = s.store.Atomic(ctx, func(tx repository.Store) error {
		loan, err := tx.Loans().GetByID(ctx, orgID, loanID)
		if err != nil {
			return err
		}
		if loan.Terminal() {
			return customError.WrapLoanClosed(loanID.String(), loan.Status)
		}

		transactions, err := tx.Transactions().GetByLoanID(ctx, orgID, loanID)
		if err != nil {
			return customError.WrapDatabaseError(err)
		}
		pivotDate := daycount.Date(pivot)
		for _, t := range transactions {
			if t.Type == domain.TransactionTypePayment && !t.Reversed() &&
				daycount.Date(t.Date).After(pivotDate) {
				return customError.WrapRecalculationConflict(loanID.String(), pivotDate)
			}
		}

		schedule, err := tx.Installments().GetByLoanID(ctx, orgID, loanID)
		if err != nil {
			return customError.WrapDatabaseError(err)
		}

		// Old installments are superseded, never deleted.
		var (
			superseded []uuid.UUID
			lastSeq    int
			samplePay  money.Money
			sampled    bool
		)
		remaining := money.Zero(loan.Scale())
		for _, inst := range schedule {
			if inst.Sequence > lastSeq {
				lastSeq = inst.Sequence
			}
			if inst.Superseded() || inst.Settled() {
				continue
			}
			remaining = remaining.Add(inst.PrincipalOutstanding())
			if !sampled {
				samplePay = inst.TotalDue()
				sampled = true
			}
			superseded = append(superseded, inst.ID)
		}
		if !remaining.IsPositive() {
			return customError.WrapNoOutstandingBalance(loanID.String())
		}

		periods := s.tailPeriods(loan, remaining, len(superseded), samplePay, mode)
		tail, err = engine.GenerateTail(loan, remaining, periods, pivotDate, lastSeq+1)
		if err != nil {
			return err
		}

		if err := tx.Installments().MarkSuperseded(ctx, orgID, loanID, superseded); err != nil {
			return customError.WrapDatabaseError(err)
		}
		if err := tx.Installments().CreateBatch(ctx, tail); err != nil {
			return customError.WrapDatabaseError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"loan_id":   loanID,
		"org_id":    orgID,
		"mode":      mode,
		"new_lines": len(tail),
	}).Info("schedule recalculated")

	return tail, nil
}

// tailPeriods picks the new term: ReduceInstallment keeps the remaining
// period count, ReduceTerm finds the shortest term whose per-period total
// stays at or under the old installment size.
func (s *ScheduleService) tailPeriods(loan *domain.Loan, remaining money.Money, slots int, oldPayment money.Money, mode domain.RecalculationMode) int {
	if slots < 1 {
		slots = 1
	}
	if mode != domain.ReduceTerm || !oldPayment.IsPositive() {
		return slots
	}
	for n := 1; n < slots; n++ {
		probe, err := engine.GenerateTail(loan, remaining, n, loan.DisbursedAt, 2)
		if err != nil || len(probe) == 0 {
			break
		}
		if !probe[0].TotalDue().GreaterThan(oldPayment) {
			return n
		}
	}
	return slots
}
