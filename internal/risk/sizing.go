// Package risk sizes new positions and decides when held ones must close.
// Everything here is a pure function of tick inputs; latch state is read
// from and handed back to the caller, which persists it in the journal.
package risk

import (
	"github.com/junghoon-woo/danta/internal/domain"
)

// MacroMultiplier maps the previous NASDAQ session's percent change to a
// budget scale. A weak overnight session shrinks every buy on the tick.
func MacroMultiplier(nasdaqChangePct float64) float64 {
	switch {
	case nasdaqChangePct <= -3:
		return 0.3
	case nasdaqChangePct <= -2:
		return 0.5
	case nasdaqChangePct <= -1:
		return 0.7
	default:
		return 1.0
	}
}

// Budget returns the KRW budget for one new position: the configured
// per-ticker ceiling or an even split of cash across the free slots,
// whichever is lower, scaled by the macro multiplier.
func Budget(p domain.UserPolicy, cash float64, holdingCount int, macroMult float64) float64 {
	if cash <= 0 {
		return 0
	}
	free := p.MaxHoldings - holdingCount
	if free < 1 {
		free = 1
	}
	budget := cash / float64(free)
	if p.PerTickerBudget > 0 && p.PerTickerBudget < budget {
		budget = p.PerTickerBudget
	}
	return budget * macroMult
}

// Quantity converts a budget into whole shares at the live price. Zero means
// the buy is skipped.
func Quantity(budget, price float64) int64 {
	if price <= 0 || budget <= 0 {
		return 0
	}
	return int64(budget / price)
}
