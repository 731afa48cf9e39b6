// Package policy turns a user's trading policy into tick decisions: it
// compiles the buy/sell condition DSL, applies the ordered hard filters to a
// snapshot and ranks the surviving buy candidates.
package policy

import (
	"fmt"
	"strings"

	"github.com/junghoon-woo/danta/internal/domain"
	"github.com/junghoon-woo/danta/internal/scoring"
	"github.com/junghoon-woo/danta/internal/snapshot"
)

// Evaluator holds one user's policy with both conditions compiled. Build it
// once at tick entry so a malformed condition fails the tick before any
// order is considered.
type Evaluator struct {
	policy domain.UserPolicy
	buy    *scoring.Expr // nil falls back to the MinBuyScore threshold
	sell   *scoring.Expr // nil disables the custom sell trigger
}

// NewEvaluator compiles a user policy.
func NewEvaluator(p domain.UserPolicy) (*Evaluator, error) {
	e := &Evaluator{policy: p}
	var err error
	if e.buy, err = compile(p.BuyConditions); err != nil {
		return nil, fmt.Errorf("invalid buy_conditions: %w", err)
	}
	if e.sell, err = compile(p.SellConditions); err != nil {
		return nil, fmt.Errorf("invalid sell_conditions: %w", err)
	}
	return e, nil
}

func compile(dsl string) (*scoring.Expr, error) {
	if strings.TrimSpace(dsl) == "" {
		return nil, nil
	}
	return scoring.ParseExpr(dsl)
}

// Policy returns the policy the evaluator was compiled from.
func (e *Evaluator) Policy() domain.UserPolicy { return e.policy }

// scoreEnv exposes a row's version scores to the condition DSL. Versions the
// snapshot does not carry read as zero.
func scoreEnv(row *snapshot.Row) scoring.MapEnv {
	env := make(scoring.MapEnv, len(row.Scores))
	for version, score := range row.Scores {
		env[strings.ToLower(version)] = float64(score)
	}
	return env
}

// BuySatisfied reports whether a row meets the user's buy conditions. An
// empty DSL means the single-score threshold on the user's score version.
func (e *Evaluator) BuySatisfied(row *snapshot.Row) bool {
	if row == nil {
		return false
	}
	if e.buy == nil {
		return row.Score(e.policy.ScoreVersion) >= e.policy.MinBuyScore
	}
	return e.buy.Eval(scoreEnv(row))
}

// SellSatisfied reports whether the custom sell condition fires for a held
// ticker's row. An empty DSL never fires; neither does a ticker absent from
// the snapshot.
func (e *Evaluator) SellSatisfied(row *snapshot.Row) bool {
	if e.sell == nil || row == nil {
		return false
	}
	return e.sell.Eval(scoreEnv(row))
}
