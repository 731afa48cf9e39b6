package scoring

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// LeaderMapConfig controls how the sympathy leader map is built.
type LeaderMapConfig struct {
	// Window is the number of daily returns correlated per pair.
	Window int
	// MinCorr is the minimum correlation kept in the map.
	MinCorr float64
	// MaxLeaders caps the leaders recorded per follower.
	MaxLeaders int
}

// DefaultLeaderMapConfig matches the production run: 60 trading days,
// correlation floor 0.6, three leaders per follower.
func DefaultLeaderMapConfig() LeaderMapConfig {
	return LeaderMapConfig{Window: 60, MinCorr: 0.6, MaxLeaders: 3}
}

// BuildLeaderMap correlates every follower against the candidate leader set
// over trailing daily returns and keeps the strongest pairings. closes maps
// ticker to its close series in ascending time order; tickers without enough
// history are skipped. A follower is never its own leader.
func BuildLeaderMap(closes map[string][]float64, leaders []string, cfg LeaderMapConfig) map[string][]LeaderRef {
	if cfg.Window <= 1 {
		cfg.Window = 60
	}
	if cfg.MaxLeaders <= 0 {
		cfg.MaxLeaders = 3
	}

	returns := make(map[string][]float64, len(closes))
	for ticker, series := range closes {
		r := trailingReturns(series, cfg.Window)
		if r != nil {
			returns[ticker] = r
		}
	}

	out := make(map[string][]LeaderRef)
	for follower, fr := range returns {
		var refs []LeaderRef
		for _, leader := range leaders {
			if leader == follower {
				continue
			}
			lr, ok := returns[leader]
			if !ok {
				continue
			}
			corr := stat.Correlation(fr, lr, nil)
			if math.IsNaN(corr) || corr < cfg.MinCorr {
				continue
			}
			refs = append(refs, LeaderRef{Leader: leader, Correlation: corr})
		}
		if len(refs) == 0 {
			continue
		}
		sort.Slice(refs, func(i, j int) bool {
			if refs[i].Correlation != refs[j].Correlation {
				return refs[i].Correlation > refs[j].Correlation
			}
			return refs[i].Leader < refs[j].Leader
		})
		if len(refs) > cfg.MaxLeaders {
			refs = refs[:cfg.MaxLeaders]
		}
		out[follower] = refs
	}
	return out
}

// trailingReturns computes the last n daily percent returns, or nil when the
// series is too short or contains a non-positive close inside the window.
func trailingReturns(closes []float64, n int) []float64 {
	if len(closes) < n+1 {
		return nil
	}
	tail := closes[len(closes)-n-1:]
	out := make([]float64, n)
	for i := 1; i < len(tail); i++ {
		if tail[i-1] <= 0 {
			return nil
		}
		out[i-1] = (tail[i] - tail[i-1]) / tail[i-1]
	}
	return out
}
