package scoring

import (
	"github.com/junghoon-woo/danta/internal/domain"
	"github.com/junghoon-woo/danta/internal/indicator"
)

// group is one named scoring group. eval returns the raw group score, which
// the template clamps to [min, max] before adding it to the total.
type group struct {
	name string
	min  int
	max  int
	eval func(f *indicator.Frame, x *Extras, r *ScoreResult) int
}

// strategy is the template every built-in scorer runs through:
// length validation, then the disqualifier, then group scoring with per-group
// clamps, an optional raw-total compression, the final clamp to [0, 100], and
// base-indicator attachment.
type strategy struct {
	version    string
	minBars    int
	disqualify func(f *indicator.Frame, x *Extras) (string, bool)
	groups     []group
	compress   func(raw int) int
	exitPlan   func(f *indicator.Frame, score int) *domain.ExitPlan
}

var _ Scorer = (*strategy)(nil)

func (s *strategy) Version() string  { return s.version }
func (s *strategy) MinDataBars() int { return s.minBars }

func (s *strategy) Score(f *indicator.Frame, x *Extras) *ScoreResult {
	if f == nil || f.N() < s.minBars {
		return nil
	}

	r := &ScoreResult{
		Version:     s.version,
		GroupScores: make(map[string]int),
		Indicators:  make(map[string]float64),
	}

	if s.disqualify != nil {
		if signal, bad := s.disqualify(f, x); bad {
			r.Score = 0
			r.Disqualified = true
			r.Reason = signal
			r.addSignal(signal)
			r.finalize()
			return r
		}
	}

	total := 0
	for _, g := range s.groups {
		raw := g.eval(f, x, r)
		if raw < g.min {
			raw = g.min
		}
		if raw > g.max {
			raw = g.max
		}
		r.GroupScores[g.name] = raw
		total += raw
	}

	if s.compress != nil {
		total = s.compress(total)
	}
	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}
	r.Score = total

	if s.exitPlan != nil {
		r.ExitPlan = s.exitPlan(f, total)
	}

	attachBaseIndicators(f, r)
	r.finalize()
	return r
}

// attachBaseIndicators records the last-bar values every consumer of a result
// wants alongside the score. Entries a group already wrote are kept.
func attachBaseIndicators(f *indicator.Frame, r *ScoreResult) {
	base := map[string]float64{
		"close":        indicator.Last(f.Close),
		"change_pct":   indicator.Last(f.ChangePct),
		"rsi":          indicator.Last(f.RSI),
		"sma5":         indicator.Last(f.SMA5),
		"sma20":        indicator.Last(f.SMA20),
		"sma60":        indicator.Last(f.SMA60),
		"sma20_slope":  indicator.Last(f.SMA20Slope),
		"volume_ratio": indicator.Last(f.VolumeRatio5),
		"atr":          indicator.Last(f.ATR),
	}
	for k, v := range base {
		if _, taken := r.Indicators[k]; !taken {
			r.Indicators[k] = v
		}
	}
}
