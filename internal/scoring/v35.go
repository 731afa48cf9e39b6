package scoring

import (
	"github.com/junghoon-woo/danta/internal/indicator"
)

// v3.5 extends the accumulation thesis with confirmation from outside the
// chart: Wyckoff phase classification, a short-pressure filter, and a bonus
// for insider or major-holder disclosure buying.
func newV35() *strategy {
	return &strategy{
		version:    "v3.5",
		minBars:    60,
		disqualify: v2Disqualify,
		groups: []group{
			{name: "trend", min: 0, max: 20, eval: v3Trend},
			{name: "accumulation", min: 0, max: 35, eval: v3Accumulation},
			{name: "volume", min: 0, max: 20, eval: v3Volume},
			{name: "momentum", min: 0, max: 15, eval: v3Momentum},
			{name: "confirmation", min: 0, max: 10, eval: v35Confirmation},
		},
	}
}

func v35Confirmation(f *indicator.Frame, x *Extras, r *ScoreResult) int {
	// Heavy short building overrides any confirmation evidence.
	if x.ShortChangeFor(f.Ticker) > 0.5 {
		r.addWarning("SHORT_PRESSURE")
		return 0
	}

	total := 0
	switch wyckoffPhase(f) {
	case "D":
		total += 5
		r.addPattern("WYCKOFF_PHASE_D")
	case "C":
		total += 3
		r.addPattern("WYCKOFF_PHASE_C")
	}
	if x.DisclosureFor(f.Ticker) > 0 {
		total += 5
		r.addSignal("DISCLOSURE_BUYING")
	}
	if x.ShortChangeFor(f.Ticker) < 0 {
		total += 2 // shorts covering
		r.addSignal("SHORT_COVERING")
	}
	return total
}
