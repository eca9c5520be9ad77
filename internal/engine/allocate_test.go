package engine

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kobofin/loan-engine/internal/domain"
	"github.com/kobofin/loan-engine/pkg/money"
)

func testInstallment(seq int, due time.Time, principal, interest, fee int64) *domain.Installment {
	return &domain.Installment{
		ID:            uuid.New(),
		LoanID:        uuid.New(),
		Sequence:      seq,
		DueDate:       due,
		PrincipalDue:  money.New(principal, 2),
		InterestDue:   money.New(interest, 2),
		FeeDue:        money.New(fee, 2),
		PrincipalPaid: money.Zero(2),
		InterestPaid:  money.Zero(2),
		FeePaid:       money.Zero(2),
		Status:        domain.InstallmentStatusPending,
	}
}

func TestAllocateComponentPriority(t *testing.T) {
	// Fee 10.00, interest 40.00, principal 150.00 due; a payment of 60.00
	// clears fee and interest before touching principal.
	due := time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)
	inst := testInstallment(1, due, 15000, 4000, 1000)

	result := Allocate([]*domain.Installment{inst}, money.New(6000, 2), due, false)

	require.Len(t, result.Lines, 1)
	assert.Equal(t, money.New(1000, 2), result.Lines[0].Fee)
	assert.Equal(t, money.New(4000, 2), result.Lines[0].Interest)
	assert.Equal(t, money.New(1000, 2), result.Lines[0].Principal)
	assert.Equal(t, money.New(6000, 2), result.Applied)
	assert.True(t, result.Unapplied.IsZero())

	assert.Equal(t, money.New(14000, 2), inst.Outstanding())
	assert.Equal(t, domain.InstallmentStatusPartial, inst.Status)
}

func TestAllocateOldestFirst(t *testing.T) {
	asOf := time.Date(2025, time.April, 10, 0, 0, 0, 0, time.UTC)
	first := testInstallment(1, time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), 10000, 2000, 0)
	second := testInstallment(2, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), 10000, 2000, 0)

	// Pass the slices out of order; allocation still hits February first.
	result := Allocate([]*domain.Installment{second, first}, money.New(15000, 2), asOf, false)

	require.Len(t, result.Lines, 2)
	assert.Equal(t, first.ID, result.Lines[0].InstallmentID)
	assert.Equal(t, second.ID, result.Lines[1].InstallmentID)

	assert.True(t, first.Settled())
	assert.Equal(t, domain.InstallmentStatusPaid, first.Status)
	assert.Equal(t, money.New(3000, 2), second.Outstanding())
	assert.Equal(t, domain.InstallmentStatusPartial, second.Status)
}

func TestAllocateSkipsFutureUnlessAdvance(t *testing.T) {
	asOf := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)
	current := testInstallment(1, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), 10000, 0, 0)
	future := testInstallment(2, time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), 10000, 0, 0)

	t.Run("without advance the excess stays unapplied", func(t *testing.T) {
		result := Allocate([]*domain.Installment{current, future}, money.New(15000, 2), asOf, false)
		assert.Equal(t, money.New(10000, 2), result.Applied)
		assert.Equal(t, money.New(5000, 2), result.Unapplied)
		assert.Equal(t, domain.InstallmentStatusPending, future.Status)
	})

	t.Run("with advance the excess prepays the next line", func(t *testing.T) {
		result := Allocate([]*domain.Installment{future}, money.New(5000, 2), asOf, true)
		assert.Equal(t, money.New(5000, 2), result.Applied)
		assert.True(t, result.Unapplied.IsZero())
		assert.Equal(t, domain.InstallmentStatusPartial, future.Status)
	})
}

func TestAllocateSkipsSettledAndSuperseded(t *testing.T) {
	asOf := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	paid := testInstallment(1, time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), 10000, 0, 0)
	paid.PrincipalPaid = paid.PrincipalDue
	paid.Status = domain.InstallmentStatusPaid
	superseded := testInstallment(2, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), 10000, 0, 0)
	superseded.Status = domain.InstallmentStatusSuperseded
	open := testInstallment(3, time.Date(2025, time.April, 1, 0, 0, 0, 0, time.UTC), 10000, 0, 0)

	result := Allocate([]*domain.Installment{paid, superseded, open}, money.New(10000, 2), asOf, false)

	require.Len(t, result.Lines, 1)
	assert.Equal(t, open.ID, result.Lines[0].InstallmentID)
	assert.True(t, open.Settled())
}

func TestAllocateOverdueStandsUntilSettled(t *testing.T) {
	asOf := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	overdue := testInstallment(1, time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), 10000, 2000, 0)
	overdue.Status = domain.InstallmentStatusOverdue

	result := Allocate([]*domain.Installment{overdue}, money.New(5000, 2), asOf, false)
	require.Len(t, result.Lines, 1)
	assert.Equal(t, domain.InstallmentStatusOverdue, overdue.Status)

	result = Allocate([]*domain.Installment{overdue}, money.New(7000, 2), asOf, false)
	require.Len(t, result.Lines, 1)
	assert.True(t, overdue.Settled())
	assert.Equal(t, domain.InstallmentStatusPaid, overdue.Status)
}

func TestReverseRestoresState(t *testing.T) {
	asOf := time.Date(2025, time.April, 10, 0, 0, 0, 0, time.UTC)
	first := testInstallment(1, time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), 10000, 2000, 500)
	second := testInstallment(2, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), 10000, 2000, 500)
	installments := []*domain.Installment{first, second}

	result := Allocate(installments, money.New(20000, 2), asOf, false)
	require.NotEmpty(t, result.Lines)

	negated := Reverse(installments, result.Lines)
	require.Len(t, negated, len(result.Lines))

	// Reversal restores every paid-to-date to its pre-payment value.
	for _, inst := range installments {
		assert.True(t, inst.TotalPaid().IsZero())
		assert.Equal(t, domain.InstallmentStatusPending, inst.Status)
	}
	for i, line := range negated {
		assert.Equal(t, result.Lines[i].Principal.Neg(), line.Principal)
		assert.Equal(t, result.Lines[i].Interest.Neg(), line.Interest)
		assert.Equal(t, result.Lines[i].Fee.Neg(), line.Fee)
	}
}

func TestOutstandingHelpers(t *testing.T) {
	first := testInstallment(1, time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC), 10000, 2000, 500)
	first.InterestPaid = money.New(2000, 2)
	superseded := testInstallment(2, time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC), 10000, 2000, 500)
	superseded.Status = domain.InstallmentStatusSuperseded
	installments := []*domain.Installment{first, superseded}

	assert.Equal(t, money.New(10500, 2), TotalOutstanding(installments, 2))
	assert.Equal(t, money.New(10000, 2), PrincipalOutstanding(installments, 2))
}
