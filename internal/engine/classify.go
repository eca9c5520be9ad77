package engine

import (
	"github.com/shopspring/decimal"

	"github.com/kobofin/loan-engine/internal/domain"
	"github.com/kobofin/loan-engine/pkg/money"
)

// ClassifierConfig carries the tunable parts of the regulatory table and the
// optional policies around it.
type ClassifierConfig struct {
	// WatchRate and SubstandardRate are fractional provision rates; the
	// regulator allows 0.01-0.05 and 0.10-0.25 respectively.
	WatchRate       decimal.Decimal
	SubstandardRate decimal.Decimal
	// CurePeriods > 0 holds a loan at its previous, worse grade until it has
	// earned the better grade this many consecutive runs. Zero means grades
	// improve immediately.
	CurePeriods int
	// NetCollateral deducts eligible collateral from the provisioning base.
	NetCollateral bool
}

// Classify maps days-in-arrears to a risk class and its provision rate.
// Pure function of current arrears; no ratchet.
func Classify(daysInArrears int, cfg ClassifierConfig) (domain.RiskClass, decimal.Decimal) {
	switch {
	case daysInArrears <= 0:
		return domain.ClassCurrent, decimal.Zero
	case daysInArrears <= 30:
		return domain.ClassWatch, cfg.WatchRate
	case daysInArrears <= 90:
		return domain.ClassSubstandard, cfg.SubstandardRate
	case daysInArrears <= 180:
		return domain.ClassDoubtful, decimal.NewFromFloat(0.50)
	default:
		return domain.ClassLoss, decimal.NewFromInt(1)
	}
}

// ApplyCurePolicy holds back a downgrade-to-better grade until the loan has
// earned it for cfg.CurePeriods consecutive prior runs. history is the
// loan's most recent records, newest first, not including the current run.
func ApplyCurePolicy(computed domain.RiskClass, history []*domain.ClassificationRecord, cfg ClassifierConfig) domain.RiskClass {
	if cfg.CurePeriods <= 0 || len(history) == 0 {
		return computed
	}
	previous := history[0].RiskClass
	if computed.Severity() >= previous.Severity() {
		return computed
	}
	// The stored grade can itself be a held one, so the streak is counted on
	// what each prior run's arrears would have graded, not on what was held.
	streak := 0
	for _, rec := range history {
		derived, _ := Classify(rec.DaysInArrears, cfg)
		if derived.Severity() > computed.Severity() {
			break
		}
		streak++
	}
	if streak >= cfg.CurePeriods {
		return computed
	}
	return previous
}

// ProvisionBase is the exposure the provision rate applies to: outstanding
// principal, optionally net of eligible collateral.
func ProvisionBase(outstandingPrincipal, collateral money.Money, cfg ClassifierConfig) money.Money {
	if !cfg.NetCollateral {
		return outstandingPrincipal
	}
	base := outstandingPrincipal.Sub(collateral)
	if base.IsNegative() {
		return money.Zero(outstandingPrincipal.Scale)
	}
	return base
}
