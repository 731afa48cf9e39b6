package scoring

import (
	"github.com/junghoon-woo/danta/internal/indicator"
)

// v10 plays sector sympathy: when a correlated leader has already moved today
// and the follower lags, the follower scores. It reads the leader map and the
// day's change map from Extras; with no qualifying pair the result is simply
// a zero score, not a disqualification.
func newV10() *strategy {
	return &strategy{
		version: "v10",
		minBars: 30,
		groups: []group{
			{name: "follow", min: 0, max: 100, eval: v10Follow},
		},
	}
}

func v10Follow(f *indicator.Frame, x *Extras, r *ScoreResult) int {
	ownChange := indicator.Last(f.ChangePct)

	best := 0
	var bestLeader string
	var bestCorr, bestLeaderChg, bestGap float64
	for _, ref := range x.LeadersFor(f.Ticker) {
		if ref.Correlation < 0.6 {
			continue
		}
		leaderChg, ok := x.ChangeFor(ref.Leader)
		if !ok || leaderChg < 2 {
			continue
		}
		gap := leaderChg - ownChange
		if gap <= 1 {
			continue
		}
		score := 50
		switch {
		case leaderChg >= 5:
			score += 20
		case leaderChg >= 3:
			score += 15
		default:
			score += 10
		}
		switch {
		case ref.Correlation >= 0.8:
			score += 15
		case ref.Correlation >= 0.7:
			score += 10
		default:
			score += 5
		}
		switch {
		case gap > 3:
			score += 15
		case gap > 2:
			score += 10
		default:
			score += 5
		}
		if score > best {
			best = score
			bestLeader = ref.Leader
			bestCorr = ref.Correlation
			bestLeaderChg = leaderChg
			bestGap = gap
		}
	}
	if best == 0 {
		return 0
	}

	r.addSignal("LEADER_SURGE")
	if bestCorr >= 0.8 {
		r.addSignal("HIGH_CORRELATION")
	}
	r.Indicators["leader_change"] = bestLeaderChg
	r.Indicators["leader_correlation"] = bestCorr
	r.Indicators["leader_gap"] = bestGap
	r.Leader = bestLeader
	if best > 100 {
		best = 100
	}
	return best
}
