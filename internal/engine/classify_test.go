package engine

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/kobofin/loan-engine/internal/domain"
	"github.com/kobofin/loan-engine/pkg/money"
)

func testClassifierConfig() ClassifierConfig {
	return ClassifierConfig{
		WatchRate:       decimal.NewFromFloat(0.05),
		SubstandardRate: decimal.NewFromFloat(0.20),
	}
}

func TestClassifyBands(t *testing.T) {
	cfg := testClassifierConfig()

	tests := []struct {
		days     int
		expected domain.RiskClass
		rate     decimal.Decimal
	}{
		{days: 0, expected: domain.ClassCurrent, rate: decimal.Zero},
		{days: 1, expected: domain.ClassWatch, rate: cfg.WatchRate},
		{days: 30, expected: domain.ClassWatch, rate: cfg.WatchRate},
		{days: 31, expected: domain.ClassSubstandard, rate: cfg.SubstandardRate},
		{days: 90, expected: domain.ClassSubstandard, rate: cfg.SubstandardRate},
		{days: 91, expected: domain.ClassDoubtful, rate: decimal.NewFromFloat(0.50)},
		{days: 95, expected: domain.ClassDoubtful, rate: decimal.NewFromFloat(0.50)},
		{days: 180, expected: domain.ClassDoubtful, rate: decimal.NewFromFloat(0.50)},
		{days: 181, expected: domain.ClassLoss, rate: decimal.NewFromInt(1)},
	}

	for _, tt := range tests {
		class, rate := Classify(tt.days, cfg)
		assert.Equal(t, tt.expected, class, "days=%d", tt.days)
		assert.True(t, rate.Equal(tt.rate), "days=%d rate=%s", tt.days, rate)
	}
}

func TestApplyCurePolicy(t *testing.T) {
	cfg := testClassifierConfig()
	cfg.CurePeriods = 2

	record := func(class domain.RiskClass, days int) *domain.ClassificationRecord {
		return &domain.ClassificationRecord{RiskClass: class, DaysInArrears: days}
	}

	t.Run("downgrades apply immediately", func(t *testing.T) {
		history := []*domain.ClassificationRecord{record(domain.ClassWatch, 10)}
		got := ApplyCurePolicy(domain.ClassDoubtful, history, cfg)
		assert.Equal(t, domain.ClassDoubtful, got)
	})

	t.Run("upgrade held until the streak is earned", func(t *testing.T) {
		// Arrears cleared, but only one prior run was clean; the watch grade
		// sticks until two consecutive clean runs.
		history := []*domain.ClassificationRecord{
			record(domain.ClassWatch, 0),
			record(domain.ClassSubstandard, 40),
		}
		got := ApplyCurePolicy(domain.ClassCurrent, history, cfg)
		assert.Equal(t, domain.ClassWatch, got)
	})

	t.Run("upgrade allowed after the streak", func(t *testing.T) {
		// Two prior clean runs, even though their stored grade was held at
		// watch; the streak counts the arrears-derived grade.
		history := []*domain.ClassificationRecord{
			record(domain.ClassWatch, 0),
			record(domain.ClassWatch, 0),
			record(domain.ClassSubstandard, 40),
		}
		got := ApplyCurePolicy(domain.ClassCurrent, history, cfg)
		assert.Equal(t, domain.ClassCurrent, got)
	})

	t.Run("disabled policy passes the computed class through", func(t *testing.T) {
		cfg := testClassifierConfig()
		history := []*domain.ClassificationRecord{record(domain.ClassLoss, 200)}
		got := ApplyCurePolicy(domain.ClassCurrent, history, cfg)
		assert.Equal(t, domain.ClassCurrent, got)
	})

	t.Run("no history passes through", func(t *testing.T) {
		got := ApplyCurePolicy(domain.ClassWatch, nil, cfg)
		assert.Equal(t, domain.ClassWatch, got)
	})
}

func TestProvisionBase(t *testing.T) {
	outstanding := money.New(10000000, 2)
	collateral := money.New(4000000, 2)

	cfg := testClassifierConfig()
	assert.Equal(t, outstanding, ProvisionBase(outstanding, collateral, cfg))

	cfg.NetCollateral = true
	assert.Equal(t, money.New(6000000, 2), ProvisionBase(outstanding, collateral, cfg))

	// Over-collateralized loans floor at zero rather than going negative.
	assert.Equal(t, money.Zero(2), ProvisionBase(collateral, outstanding, cfg))
}
