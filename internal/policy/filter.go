package policy

import (
	"sort"
	"time"

	"github.com/junghoon-woo/danta/internal/domain"
	"github.com/junghoon-woo/danta/internal/snapshot"
)

// Candidate is a snapshot row that passed every buy-side gate, with the
// score it is ranked by.
type Candidate struct {
	Row   *snapshot.Row
	Score int // score on the user's score version
}

// TickState carries the per-user facts the hard filters consult. Maps may be
// nil when the corresponding set is empty.
type TickState struct {
	Now       time.Time
	Held      map[string]bool // tickers currently held
	Pending   map[string]bool // tickers with open orders
	Blacklist map[string]bool // tickers already traded today
}

// Candidates applies the hard filters in their fixed order, then the user's
// buy conditions, and ranks survivors by score descending with prior traded
// value as the tie-break.
func (e *Evaluator) Candidates(snap *snapshot.Snapshot, st TickState) []Candidate {
	if !e.policy.Enabled {
		return nil
	}
	if !domain.IsBuyWindow(st.Now) {
		return nil
	}
	if len(st.Held) >= e.policy.MaxHoldings {
		return nil
	}

	mult := hourMultiplier(st.Now)
	var out []Candidate
	for i := range snap.Rows {
		row := &snap.Rows[i]
		if e.policy.GapLimitPct > 0 && row.ChangePct >= e.policy.GapLimitPct {
			continue
		}
		if e.policy.MinVolumeRatio > 0 && row.VolumeRatio*mult < e.policy.MinVolumeRatio {
			continue
		}
		if st.Blacklist[row.Ticker] {
			continue
		}
		if st.Held[row.Ticker] || st.Pending[row.Ticker] {
			continue
		}
		if !e.BuySatisfied(row) {
			continue
		}
		out = append(out, Candidate{Row: row, Score: row.Score(e.policy.ScoreVersion)})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		if out[i].Row.PrevAmount != out[j].Row.PrevAmount {
			return out[i].Row.PrevAmount > out[j].Row.PrevAmount
		}
		return out[i].Row.Ticker < out[j].Row.Ticker
	})
	return out
}

// hourMultiplier dampens the projected volume ratio through the session: an
// early projection extrapolates a strong open into unrealistic full-day
// figures, so the morning hours count for less.
func hourMultiplier(now time.Time) float64 {
	switch h := now.In(domain.MarketLocation()).Hour(); {
	case h <= 9:
		return 0.10
	case h == 10:
		return 0.30
	case h == 11:
		return 0.50
	case h == 12 || h == 13:
		return 0.70
	default:
		return 1.00
	}
}
