package scoring

import (
	"math"

	"github.com/junghoon-woo/danta/internal/indicator"
)

// v3 hunts silent accumulation: a base being bought quietly before the move.
// Shares v2's reverse-alignment disqualifier; the weight sits in the
// accumulation-pattern group.
func newV3() *strategy {
	return &strategy{
		version:    "v3",
		minBars:    60,
		disqualify: v2Disqualify,
		groups: []group{
			{name: "trend", min: 0, max: 25, eval: v3Trend},
			{name: "accumulation", min: 0, max: 40, eval: v3Accumulation},
			{name: "volume", min: 0, max: 20, eval: v3Volume},
			{name: "momentum", min: 0, max: 15, eval: v3Momentum},
		},
	}
}

func v3Trend(f *indicator.Frame, _ *Extras, _ *ScoreResult) int {
	total := 0
	close := indicator.Last(f.Close)
	if s60 := indicator.Last(f.SMA60); s60 > 0 && close > s60 {
		total += 10
	}
	if indicator.Last(f.SMA20Slope) > -1 {
		total += 5
	}
	if s20 := indicator.Last(f.SMA20); s20 > 0 && math.Abs(close-s20)/s20 <= 0.10 {
		total += 10 // basing near the 20-day line
	}
	return total
}

func v3Accumulation(f *indicator.Frame, _ *Extras, r *ScoreResult) int {
	total := 0
	if obvBullishDivergence(f) {
		total += 15
		r.addPattern("OBV_BULL_DIV")
	}
	if accumulationCandle(f) {
		total += 10
		r.addPattern("ACCUMULATION_CANDLE")
	}
	if wyckoffSpring(f) {
		total += 10
		r.addPattern("WYCKOFF_SPRING")
	}
	if vcp(f) {
		total += 5
		r.addPattern("VCP")
	}
	return total
}

func v3Volume(f *indicator.Frame, _ *Extras, r *ScoreResult) int {
	total := 0
	if pullbackDryUp(f) {
		total += 10
		r.addSignal("VOLUME_DRYUP")
	}
	vr := indicator.Last(f.VolumeRatio5)
	if vr >= 3 {
		total += 10
		r.addSignal("VOLUME_3X")
	} else if vr >= 2 {
		total += 5
		r.addSignal("VOLUME_2X")
	}
	return total
}

func v3Momentum(f *indicator.Frame, _ *Extras, _ *ScoreResult) int {
	total := 0
	rsi := indicator.Last(f.RSI)
	if rsi >= 40 && rsi <= 60 {
		total += 8
	}
	if k := indicator.Last(f.StochK); k > 0 && k < 30 && indicator.CrossedAbove(f.StochK, f.StochD) {
		total += 7
	}
	return total
}
