package risk

import (
	"fmt"
	"time"

	"github.com/junghoon-woo/danta/internal/domain"
	"github.com/junghoon-woo/danta/internal/policy"
	"github.com/junghoon-woo/danta/internal/snapshot"
)

// SellTrigger names why a position must be closed. The journal and alerts
// record it verbatim.
type SellTrigger string

const (
	TriggerStopLoss      SellTrigger = "STOP_LOSS"
	TriggerTakeProfit    SellTrigger = "TAKE_PROFIT"
	TriggerSellCondition SellTrigger = "SELL_CONDITION"
	TriggerScoreDecay    SellTrigger = "SCORE_DECAY"
	TriggerMA20Break     SellTrigger = "MA20_BREAK"
	TriggerTimeStop      SellTrigger = "TIME_STOP"
	TriggerEODCleanup    SellTrigger = "EOD_CLEANUP"
	TriggerExitStop      SellTrigger = "EXIT_STOP"
	TriggerExitTarget    SellTrigger = "EXIT_TARGET"
	TriggerExitTrailing  SellTrigger = "EXIT_TRAILING"
	TriggerExitTime      SellTrigger = "EXIT_TIME"
)

// PositionState is the journal-tracked state behind the latched triggers.
type PositionState struct {
	AboveMA20     bool // has closed above SMA-20 since entry
	TrailingArmed bool // has touched the exit plan's trailing trigger
	Plan          *domain.ExitPlan
}

// SellInput bundles one position's tick inputs. A nil Row (ticker absent
// from the snapshot, e.g. on a degraded tick) disables the row-based
// triggers rather than reading zero scores.
type SellInput struct {
	Holding domain.Holding
	Row     *snapshot.Row
	SMA20   float64 // today's SMA-20, 0 when unknown
	State   PositionState
	Now     time.Time
}

// Verdict is the outcome of a sell evaluation. State carries the updated
// latches and must be persisted whether or not the position is sold.
type Verdict struct {
	Trigger SellTrigger
	Reason  string
	State   PositionState
}

// Sell reports whether a trigger fired.
func (v Verdict) Sell() bool { return v.Trigger != "" }

// EvaluateSell runs the sell triggers in their fixed order and returns the
// first that fires. Evaluation never places orders; a buy and a sell of the
// same ticker in one tick resolve to the sell because the controller runs
// sells first and blacklists the ticker.
func EvaluateSell(ev *policy.Evaluator, in SellInput) Verdict {
	p := ev.Policy()
	h := in.Holding
	state := in.State

	price := h.CurrentPrice
	if in.Row != nil && in.Row.Close > 0 {
		price = in.Row.Close
	}

	// Latch transitions happen before any trigger so a tick that both arms
	// and breaches still persists the arm when the position is kept.
	if in.SMA20 > 0 && price > in.SMA20 {
		state.AboveMA20 = true
	}
	if state.Plan != nil && state.Plan.TrailingTrigger > 0 && price >= state.Plan.TrailingTrigger {
		state.TrailingArmed = true
	}

	keep := Verdict{State: state}
	sell := func(trigger SellTrigger, reason string) Verdict {
		return Verdict{Trigger: trigger, Reason: reason, State: state}
	}

	if p.StopLossRate > 0 && h.ProfitRate <= -p.StopLossRate {
		return sell(TriggerStopLoss, fmt.Sprintf("profit %.1f%% breached the -%.1f%% stop", h.ProfitRate, p.StopLossRate))
	}
	if p.TakeProfitRate > 0 && h.ProfitRate >= p.TakeProfitRate {
		return sell(TriggerTakeProfit, fmt.Sprintf("profit %.1f%% reached the %.1f%% target", h.ProfitRate, p.TakeProfitRate))
	}
	if ev.SellSatisfied(in.Row) {
		return sell(TriggerSellCondition, fmt.Sprintf("sell conditions %q hold", p.SellConditions))
	}
	if in.Row != nil && in.Row.HasScore(p.ScoreVersion) && in.Row.Score(p.ScoreVersion) <= p.SellScore {
		return sell(TriggerScoreDecay, fmt.Sprintf("%s score %d fell to the %d floor", p.ScoreVersion, in.Row.Score(p.ScoreVersion), p.SellScore))
	}
	if in.SMA20 > 0 && state.AboveMA20 && price < in.SMA20 {
		return sell(TriggerMA20Break, fmt.Sprintf("close %.0f broke below SMA20 %.0f after holding above it", price, in.SMA20))
	}
	if p.MaxHoldDays > 0 {
		if held := daysHeld(in.Now, h.OpenedAt); held > p.MaxHoldDays {
			return sell(TriggerTimeStop, fmt.Sprintf("held %d days, limit %d", held, p.MaxHoldDays))
		}
	}
	if domain.IsPreClose(in.Now) && in.Row != nil && !ev.BuySatisfied(in.Row) {
		return sell(TriggerEODCleanup, "buy conditions no longer hold at the close")
	}

	if plan := state.Plan; plan != nil {
		if plan.StopPrice > 0 && price <= plan.StopPrice {
			return sell(TriggerExitStop, fmt.Sprintf("price %.1f at plan stop %.1f", price, plan.StopPrice))
		}
		if plan.TargetPrice > 0 && price >= plan.TargetPrice {
			return sell(TriggerExitTarget, fmt.Sprintf("price %.1f at plan target %.1f", price, plan.TargetPrice))
		}
		if state.TrailingArmed && plan.ATR > 0 && price <= plan.TrailingTrigger-plan.ATR {
			return sell(TriggerExitTrailing, fmt.Sprintf("gave back one ATR from the %.1f trigger", plan.TrailingTrigger))
		}
		if plan.MaxHoldDays > 0 {
			if held := daysHeld(in.Now, h.OpenedAt); held > plan.MaxHoldDays {
				return sell(TriggerExitTime, fmt.Sprintf("held %d days, plan limit %d", held, plan.MaxHoldDays))
			}
		}
	}

	return keep
}

// daysHeld counts exchange-local calendar days since entry.
func daysHeld(now, openedAt time.Time) int {
	loc := domain.MarketLocation()
	n := now.In(loc)
	o := openedAt.In(loc)
	nd := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, loc)
	od := time.Date(o.Year(), o.Month(), o.Day(), 0, 0, 0, 0, loc)
	return int(nd.Sub(od).Hours() / 24)
}
