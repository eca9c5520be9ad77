package engine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kobofin/loan-engine/internal/domain"
	"github.com/kobofin/loan-engine/pkg/money"
)

func TestComputeArrears(t *testing.T) {
	asOf := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)

	t.Run("due today is not in arrears", func(t *testing.T) {
		inst := testInstallment(1, asOf, 10000, 0, 0)
		days, pastDue := ComputeArrears([]*domain.Installment{inst}, asOf, 2)
		assert.Equal(t, 0, days)
		assert.True(t, pastDue.IsZero())
	})

	t.Run("days follow the oldest unpaid line", func(t *testing.T) {
		old := testInstallment(1, asOf.AddDate(0, 0, -95), 10000, 2000, 0)
		newer := testInstallment(2, asOf.AddDate(0, 0, -10), 10000, 2000, 0)
		future := testInstallment(3, asOf.AddDate(0, 0, 20), 10000, 2000, 0)

		days, pastDue := ComputeArrears([]*domain.Installment{newer, old, future}, asOf, 2)
		assert.Equal(t, 95, days)
		assert.Equal(t, money.New(24000, 2), pastDue)
	})

	t.Run("settled and superseded lines do not count", func(t *testing.T) {
		settled := testInstallment(1, asOf.AddDate(0, 0, -60), 10000, 0, 0)
		settled.PrincipalPaid = settled.PrincipalDue
		superseded := testInstallment(2, asOf.AddDate(0, 0, -30), 10000, 0, 0)
		superseded.Status = domain.InstallmentStatusSuperseded

		days, pastDue := ComputeArrears([]*domain.Installment{settled, superseded}, asOf, 2)
		assert.Equal(t, 0, days)
		assert.True(t, pastDue.IsZero())
	})

	t.Run("partial payment leaves the remainder past due", func(t *testing.T) {
		inst := testInstallment(1, asOf.AddDate(0, 0, -15), 10000, 2000, 0)
		inst.InterestPaid = money.New(2000, 2)
		inst.PrincipalPaid = money.New(4000, 2)

		days, pastDue := ComputeArrears([]*domain.Installment{inst}, asOf, 2)
		assert.Equal(t, 15, days)
		assert.Equal(t, money.New(6000, 2), pastDue)
	})
}

func TestMarkOverdue(t *testing.T) {
	asOf := time.Date(2025, time.June, 10, 0, 0, 0, 0, time.UTC)
	past := testInstallment(1, asOf.AddDate(0, 0, -5), 10000, 0, 0)
	today := testInstallment(2, asOf, 10000, 0, 0)
	partial := testInstallment(3, asOf.AddDate(0, 0, -3), 10000, 0, 0)
	partial.Status = domain.InstallmentStatusPartial

	changed := MarkOverdue([]*domain.Installment{past, today, partial}, asOf)

	require.Len(t, changed, 1)
	assert.Equal(t, past.ID, changed[0].ID)
	assert.Equal(t, domain.InstallmentStatusOverdue, past.Status)
	assert.Equal(t, domain.InstallmentStatusPending, today.Status)
	assert.Equal(t, domain.InstallmentStatusPartial, partial.Status)
}
