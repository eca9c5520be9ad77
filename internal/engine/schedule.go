package engine

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kobofin/loan-engine/internal/domain"
	"github.com/kobofin/loan-engine/pkg/daycount"
	customError "github.com/kobofin/loan-engine/pkg/errors"
	"github.com/kobofin/loan-engine/pkg/money"
)

var one = decimal.NewFromInt(1)

// GenerateSchedule produces the full installment list for a loan. Pure: it
// never touches storage, so the caller decides when the result is committed.
func GenerateSchedule(loan *domain.Loan) ([]*domain.Installment, error) {
	if err := validateScheduleInput(loan); err != nil {
		return nil, err
	}
	return buildSchedule(loan, loan.Principal, loan.TermPeriods, loan.DisbursedAt, 1)
}

// GenerateTail reschedules an outstanding balance over term periods starting
// at startDate, numbering lines from firstSeq. Recalculation uses this to
// append the restructured portion of a schedule.
func GenerateTail(loan *domain.Loan, outstanding money.Money, term int, startDate time.Time, firstSeq int) ([]*domain.Installment, error) {
	if term < 1 || term > 120 {
		return nil, customError.WrapInvalidScheduleInput("term must be between 1 and 120 periods")
	}
	if !outstanding.IsPositive() {
		return nil, customError.WrapInvalidScheduleInput("outstanding principal must be greater than zero")
	}
	return buildSchedule(loan, outstanding, term, startDate, firstSeq)
}

func validateScheduleInput(loan *domain.Loan) error {
	switch {
	case !loan.Principal.IsPositive():
		return customError.WrapInvalidScheduleInput("principal must be greater than zero")
	case loan.AnnualRate.IsNegative() || loan.AnnualRate.GreaterThan(decimal.NewFromInt(100)):
		return customError.WrapInvalidScheduleInput("annual rate must be between 0 and 100")
	case loan.TermPeriods < 1 || loan.TermPeriods > 120:
		return customError.WrapInvalidScheduleInput("term must be between 1 and 120 periods")
	case loan.GracePeriods >= loan.TermPeriods:
		return customError.WrapInvalidScheduleInput("grace period must be shorter than the term")
	case loan.GracePeriods < 0:
		return customError.WrapInvalidScheduleInput("grace period cannot be negative")
	case loan.GracePeriods > 0 && loan.GracePolicy != domain.GraceInterestOnly && loan.GracePolicy != domain.GraceDeferred:
		return customError.WrapInvalidScheduleInput("grace policy must be interest_only or deferred when a grace period is set")
	case !loan.Method.Valid():
		return customError.WrapInvalidScheduleInput(fmt.Sprintf("unknown interest method %q", loan.Method))
	case !loan.Frequency.Valid():
		return customError.WrapInvalidScheduleInput(fmt.Sprintf("unknown frequency %q", loan.Frequency))
	case loan.DisbursedAt.IsZero():
		return customError.WrapInvalidScheduleInput("disbursement date is required")
	}
	return nil
}

// buildSchedule amortizes principal over term periods with due dates stepping
// forward from startDate. firstSeq lets recalculation append lines after the
// ones it supersedes.
func buildSchedule(loan *domain.Loan, principal money.Money, term int, startDate time.Time, firstSeq int) ([]*domain.Installment, error) {
	scale := principal.Scale
	grace := loan.GracePeriods
	if firstSeq > 1 {
		// Recalculated tails never re-run the grace period.
		grace = 0
	}
	repaying := term - grace

	var (
		principals []money.Money
		interests  []money.Money
	)
	switch loan.Method {
	case domain.MethodFlat:
		principals, interests = flatComponents(loan, principal, term, grace, repaying)
	case domain.MethodReducing:
		principals, interests = reducingComponents(loan, principal, term, grace, repaying)
	case domain.MethodCompound:
		principals, interests = compoundComponents(loan, principal, term, grace, repaying)
	default:
		return nil, customError.WrapInvalidScheduleInput(fmt.Sprintf("unknown interest method %q", loan.Method))
	}

	installments := make([]*domain.Installment, 0, term)
	for i := 0; i < term; i++ {
		fee := loan.PeriodFee
		if fee.Scale != scale {
			fee = money.Zero(scale)
		}
		// Fully deferred grace lines carry nothing, fees included.
		if i < grace && loan.GracePolicy == domain.GraceDeferred {
			fee = money.Zero(scale)
		}
		installments = append(installments, &domain.Installment{
			ID:            uuid.New(),
			LoanID:        loan.ID,
			OrgID:         loan.OrgID,
			Sequence:      firstSeq + i,
			DueDate:       daycount.AddPeriods(startDate, loan.Frequency, i+1),
			PrincipalDue:  principals[i],
			InterestDue:   interests[i],
			FeeDue:        fee,
			PrincipalPaid: money.Zero(scale),
			InterestPaid:  money.Zero(scale),
			FeePaid:       money.Zero(scale),
			Status:        domain.InstallmentStatusPending,
		})
	}
	return installments, nil
}

// flatComponents: total interest = principal x rate x term-in-years, spread
// evenly; principal spread evenly over the repaying periods. Integer-division
// remainders land on the final installment so the columns sum exactly.
func flatComponents(loan *domain.Loan, principal money.Money, term, grace, repaying int) ([]money.Money, []money.Money) {
	scale := principal.Scale
	termYears := decimal.NewFromInt(int64(term)).
		Div(decimal.NewFromInt(int64(loan.Frequency.PeriodsPerYear())))
	totalInterest := principal.MulRate(loan.AnnualRate.Div(decimal.NewFromInt(100)).Mul(termYears))

	principals := make([]money.Money, term)
	interests := make([]money.Money, term)

	interestPeriods := term
	if loan.GracePolicy == domain.GraceDeferred {
		interestPeriods = repaying
	}
	interestPer, interestRem := totalInterest.Split(interestPeriods)
	principalPer, principalRem := principal.Split(repaying)

	for i := 0; i < term; i++ {
		principals[i] = money.Zero(scale)
		interests[i] = money.Zero(scale)
		if i >= grace {
			principals[i] = principalPer
		}
		if i >= grace || loan.GracePolicy == domain.GraceInterestOnly {
			interests[i] = interestPer
		}
	}
	principals[term-1] = principals[term-1].Add(principalRem)
	interests[term-1] = interests[term-1].Add(interestRem)
	return principals, interests
}

// reducingComponents: constant total payment via the annuity formula,
// interest on the outstanding balance at each period start, final line
// absorbs the balance remainder.
func reducingComponents(loan *domain.Loan, principal money.Money, term, grace, repaying int) ([]money.Money, []money.Money) {
	scale := principal.Scale
	rate := daycount.PeriodicRate(loan.AnnualRate, loan.Frequency)

	principals := make([]money.Money, term)
	interests := make([]money.Money, term)
	for i := range principals {
		principals[i] = money.Zero(scale)
		interests[i] = money.Zero(scale)
	}

	// Interest deferred during grace is spread across the repaying periods.
	deferred := money.Zero(scale)
	for i := 0; i < grace; i++ {
		periodInterest := principal.MulRate(rate)
		if loan.GracePolicy == domain.GraceInterestOnly {
			interests[i] = periodInterest
		} else {
			deferred = deferred.Add(periodInterest)
		}
	}
	deferredPer, deferredRem := deferred.Split(repaying)

	payment := annuityPayment(principal, rate, repaying)
	balance := principal
	for i := grace; i < term; i++ {
		interest := balance.MulRate(rate)
		var due money.Money
		if i == term-1 {
			due = balance
		} else {
			due = payment.Sub(interest)
			if due.GreaterThan(balance) {
				due = balance
			}
		}
		principals[i] = due
		interests[i] = interest.Add(deferredPer)
		balance = balance.Sub(due)
	}
	interests[term-1] = interests[term-1].Add(deferredRem)
	return principals, interests
}

// compoundComponents: the notional balance capitalizes at each period
// boundary, so period i's interest is principal x (1+r)^(i-1) x r. Principal
// itself is spread evenly so the column still sums to the original amount.
func compoundComponents(loan *domain.Loan, principal money.Money, term, grace, repaying int) ([]money.Money, []money.Money) {
	scale := principal.Scale
	rate := daycount.PeriodicRate(loan.AnnualRate, loan.Frequency)

	principals := make([]money.Money, term)
	interests := make([]money.Money, term)
	for i := range principals {
		principals[i] = money.Zero(scale)
		interests[i] = money.Zero(scale)
	}

	principalPer, principalRem := principal.Split(repaying)
	notional := principal.Decimal()
	deferred := money.Zero(scale)
	for i := 0; i < term; i++ {
		interest := money.FromDecimal(notional.Mul(rate), scale)
		notional = notional.Mul(one.Add(rate))
		if i < grace {
			if loan.GracePolicy == domain.GraceInterestOnly {
				interests[i] = interest
			} else {
				deferred = deferred.Add(interest)
			}
			continue
		}
		principals[i] = principalPer
		interests[i] = interest
	}
	deferredPer, deferredRem := deferred.Split(repaying)
	for i := grace; i < term; i++ {
		interests[i] = interests[i].Add(deferredPer)
	}
	principals[term-1] = principals[term-1].Add(principalRem)
	interests[term-1] = interests[term-1].Add(deferredRem)
	return principals, interests
}

// annuityPayment is P x r / (1 - (1+r)^-n), the constant per-period total
// that retires principal P over n periods at periodic rate r.
func annuityPayment(principal money.Money, rate decimal.Decimal, n int) money.Money {
	if rate.IsZero() {
		per, _ := principal.Split(n)
		return per
	}
	pow := one.Add(rate).Pow(decimal.NewFromInt(int64(n)))
	payment := principal.Decimal().Mul(rate).Mul(pow).Div(pow.Sub(one))
	return money.FromDecimal(payment, principal.Scale)
}
