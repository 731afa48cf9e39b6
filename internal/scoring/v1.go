package scoring

import (
	"math"

	"github.com/junghoon-woo/danta/internal/indicator"
)

// v1 is the breadth composite: many small independent checks summed, then
// compressed. Oversold readings add points rather than subtracting them, so
// the strategy leans contrarian at the extremes. No disqualifier.
func newV1() *strategy {
	return &strategy{
		version: "v1",
		minBars: 60,
		groups: []group{
			{name: "breadth", min: 0, max: 999, eval: v1Breadth},
		},
		compress: v1Compress,
	}
}

func v1Breadth(f *indicator.Frame, _ *Extras, r *ScoreResult) int {
	close := indicator.Last(f.Close)
	rsi := indicator.Last(f.RSI)
	total := 0

	if close > indicator.Last(f.SMA5) {
		total += 5
	}
	if close > indicator.Last(f.SMA20) {
		total += 5
	}
	if close > indicator.Last(f.SMA60) {
		total += 5
	}
	if s120 := indicator.Last(f.SMA120); s120 > 0 && close > s120 {
		total += 3
	}
	if indicator.Last(f.SMA5) > indicator.Last(f.SMA20) {
		total += 5
	}
	if indicator.Last(f.SMA20) > indicator.Last(f.SMA60) {
		total += 5
		r.addSignal("MA_ALIGNED")
	}
	if indicator.Last(f.SMA20Slope) > 0 {
		total += 5
	}

	switch {
	case rsi > 0 && rsi < 30:
		total += 10
		r.addSignal("RSI_OVERSOLD")
	case rsi < 40:
		total += 6
	case rsi >= 45 && rsi <= 70:
		total += 4
	}

	if indicator.Last(f.MACD) > indicator.Last(f.MACDSignal) {
		total += 6
	}
	if indicator.Last(f.MACDHist) > indicator.Prev(f.MACDHist, 1) {
		total += 4
	}

	bbPos := indicator.Last(f.BBPosition)
	if bbPos < 0.2 {
		total += 6
		r.addSignal("BB_LOWER_TOUCH")
	} else if bbPos > 0.8 {
		total += 3
	}

	vr := indicator.Last(f.VolumeRatio5)
	if vr >= 1.5 {
		total += 5
	}
	if vr >= 3 {
		total += 5
		r.addSignal("VOLUME_3X")
	}

	if indicator.Last(f.OBV) > indicator.Last(f.OBVMA20) {
		total += 6
	}

	if k := indicator.Last(f.StochK); k > 0 && k < 20 {
		total += 5
		r.addSignal("STOCH_OVERSOLD")
	}
	if indicator.CrossedAbove(f.StochK, f.StochD) {
		total += 4
	}

	if st := indicator.Last(f.Supertrend); st > 0 && close > st {
		total += 6
	}
	if indicator.Last(f.TradingValue) >= 1_000_000_000 {
		total += 4
	}
	if indicator.Last(f.ChangePct) > 0 {
		total += 3
	}

	return total
}

// v1Compress maps the raw breadth sum onto [0, 100]: the first 60 raw points
// keep most of their weight, the next 40 count about two thirds, anything
// beyond counts less than half.
func v1Compress(raw int) int {
	x := float64(raw)
	switch {
	case x <= 60:
		return int(math.Round(x * 0.9))
	case x <= 100:
		return int(math.Round(54 + (x-60)*0.65))
	default:
		return int(math.Round(80 + (x-100)*0.4))
	}
}
