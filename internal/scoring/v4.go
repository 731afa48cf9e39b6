package scoring

import (
	"github.com/junghoon-woo/danta/internal/indicator"
)

// v4 weighs investor flow alongside the chart: foreign and institutional net
// buying over the last five sessions counts as supply-side evidence.
func newV4() *strategy {
	return &strategy{
		version:    "v4",
		minBars:    60,
		disqualify: v2Disqualify,
		groups: []group{
			{name: "trend", min: 0, max: 30, eval: v4Trend},
			{name: "supply", min: 0, max: 30, eval: v4Supply},
			{name: "pattern", min: 0, max: 20, eval: v4Pattern},
			{name: "momentum", min: -5, max: 20, eval: v4Momentum},
		},
	}
}

func v4Trend(f *indicator.Frame, _ *Extras, r *ScoreResult) int {
	total := 0
	s5, s20, s60 := indicator.Last(f.SMA5), indicator.Last(f.SMA20), indicator.Last(f.SMA60)
	if s5 > s20 && s20 > s60 {
		total += 12
		r.addSignal("MA_ALIGNED")
	}
	if indicator.Last(f.SMA20Slope) > 0 {
		total += 8
	}
	if indicator.Last(f.Close) > s20 {
		total += 10
	}
	return total
}

func v4Supply(f *indicator.Frame, x *Extras, r *ScoreResult) int {
	total := 0
	vr := indicator.Last(f.VolumeRatio20)
	switch {
	case vr >= 3:
		total += 15
		r.addSignal("VOLUME_3X")
	case vr >= 2:
		total += 10
		r.addSignal("VOLUME_2X")
	case vr >= 1.5:
		total += 5
	}
	flow := x.FlowFor(f.Ticker)
	if flow.ForeignNet5D > 0 {
		total += 10
		r.addSignal("FOREIGN_NET_BUY")
	}
	if flow.InstNet5D > 0 {
		total += 5
		r.addSignal("INST_NET_BUY")
	}
	return total
}

func v4Pattern(f *indicator.Frame, _ *Extras, r *ScoreResult) int {
	total := 0
	if vcp(f) {
		total += 10
		r.addPattern("VCP")
	}
	if obvBullishDivergence(f) {
		total += 10
		r.addPattern("OBV_BULL_DIV")
	}
	return total
}

func v4Momentum(f *indicator.Frame, _ *Extras, r *ScoreResult) int {
	total := 0
	rsi := indicator.Last(f.RSI)
	if rsi >= 50 && rsi <= 70 {
		total += 10
	}
	if indicator.Last(f.MACD) > indicator.Last(f.MACDSignal) {
		total += 10
	}
	if shootingStar(f) {
		total -= 5
		r.addWarning("SHOOTING_STAR")
	}
	return total
}
