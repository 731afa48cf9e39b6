package scoring

import (
	"math"

	"github.com/junghoon-woo/danta/internal/indicator"
)

// v5 hunts coiled setups: pullbacks into support with contracting volatility
// and quiet accumulation. The raw sum can reach 145, so it is compressed onto
// the shared 0-100 scale before ranking.
func newV5() *strategy {
	return &strategy{
		version: "v5",
		minBars: 60,
		groups: []group{
			{name: "pullback", min: 0, max: 30, eval: v5Pullback},
			{name: "squeeze", min: 0, max: 25, eval: v5Squeeze},
			{name: "convergence", min: 0, max: 25, eval: v5Convergence},
			{name: "accumulation", min: 0, max: 20, eval: v5Accumulation},
			{name: "momentum", min: 0, max: 25, eval: v5Momentum},
			{name: "resistance", min: 0, max: 10, eval: v5Resistance},
			{name: "trend", min: 0, max: 10, eval: v5Trend},
		},
		compress: v5Compress,
	}
}

func v5Compress(raw int) int {
	x := float64(raw)
	switch {
	case x <= 60:
		return int(math.Round(x * 0.8))
	case x <= 100:
		return int(math.Round(48 + (x-60)*0.7))
	default:
		return int(math.Round(76 + (x-100)*(24.0/45.0)))
	}
}

func v5Pullback(f *indicator.Frame, _ *Extras, r *ScoreResult) int {
	total := 0
	if pullbackDryUp(f) {
		total += 15
		r.addPattern("PULLBACK_DRYUP")
	}
	close, s20 := indicator.Last(f.Close), indicator.Last(f.SMA20)
	if s20 > 0 && close >= s20 && close <= s20*1.03 {
		total += 10 // resting on the 20-day line
	}
	if hammer(f) {
		total += 5
		r.addPattern("HAMMER")
	}
	return total
}

func v5Squeeze(f *indicator.Frame, _ *Extras, r *ScoreResult) int {
	total := 0
	if bbSqueeze(f) {
		total += 15
		r.addPattern("BB_SQUEEZE")
	}
	width := indicator.Last(f.BBWidth)
	if width > 0 && width < 0.08 {
		total += 10
	}
	return total
}

func v5Convergence(f *indicator.Frame, _ *Extras, r *ScoreResult) int {
	total := 0
	if maConvergence(f) {
		total += 15
		r.addPattern("MA_CONVERGENCE")
	}
	s20, s60 := indicator.Last(f.SMA20), indicator.Last(f.SMA60)
	if s60 > 0 && math.Abs(s20-s60)/s60 < 0.03 {
		total += 10
	}
	return total
}

func v5Accumulation(f *indicator.Frame, _ *Extras, r *ScoreResult) int {
	total := 0
	if indicator.Last(f.OBV) > indicator.Last(f.OBVMA20) {
		total += 10
	}
	if obvBullishDivergence(f) {
		total += 10
		r.addPattern("OBV_BULL_DIV")
	}
	return total
}

func v5Momentum(f *indicator.Frame, _ *Extras, r *ScoreResult) int {
	total := 0
	rsi := indicator.Last(f.RSI)
	if rsi >= 45 && rsi <= 60 {
		total += 10
	}
	if indicator.Last(f.StochK) < 40 && indicator.CrossedAbove(f.StochK, f.StochD) {
		total += 10
		r.addSignal("STOCH_CROSS_UP")
	}
	if indicator.Last(f.MACDHist) > indicator.Prev(f.MACDHist, 1) {
		total += 5
	}
	return total
}

func v5Resistance(f *indicator.Frame, _ *Extras, _ *ScoreResult) int {
	close, high60 := indicator.Last(f.Close), indicator.Last(f.High60)
	if high60 <= 0 {
		return 0
	}
	// Room to run: at least 10% below the 60-day ceiling.
	if close < high60*0.90 {
		return 10
	}
	return 0
}

func v5Trend(f *indicator.Frame, _ *Extras, _ *ScoreResult) int {
	total := 0
	if indicator.Last(f.Close) > indicator.Last(f.SMA60) {
		total += 5
	}
	if indicator.Last(f.SMA20Slope) > -1 {
		total += 5
	}
	return total
}
