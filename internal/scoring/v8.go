package scoring

import (
	"github.com/junghoon-woo/danta/internal/indicator"
)

// v8 is the mean-reversion counterpart: it buys washed-out names showing the
// first signs of a turn, and disqualifies anything still in free fall or
// already trending so hard that a bounce entry makes no sense.
func newV8() *strategy {
	return &strategy{
		version:    "v8",
		minBars:    60,
		disqualify: v8Disqualify,
		groups: []group{
			{name: "bounce", min: 0, max: 40, eval: v8Bounce},
			{name: "energy", min: 0, max: 25, eval: v8Energy},
			{name: "bottom", min: 0, max: 20, eval: v8Bottom},
			{name: "supply", min: 0, max: 15, eval: v8Supply},
		},
	}
}

func v8Disqualify(f *indicator.Frame, _ *Extras) (string, bool) {
	s5, s20, s60 := indicator.Last(f.SMA5), indicator.Last(f.SMA20), indicator.Last(f.SMA60)
	if s5 > s20 && s20 > s60 && indicator.Last(f.SMA20Slope) >= 3 {
		return "TREND_TOO_STRONG", true
	}
	if indicator.Last(f.RSI) > 80 {
		return "OVERHEATED", true
	}
	if indicator.Last(f.ChangePct) <= -7 {
		return "FALLING_KNIFE", true
	}
	if indicator.Prev(f.TradingValue, 1) < 500_000_000 {
		return "THIN_TRADING", true
	}
	if f.ConsecutiveDown() >= 5 {
		return "LOSING_STREAK", true
	}
	return "", false
}

func v8Bounce(f *indicator.Frame, _ *Extras, r *ScoreResult) int {
	total := 0
	rsi := indicator.Last(f.RSI)
	switch {
	case rsi < 30:
		total += 15
		r.addSignal("RSI_OVERSOLD")
	case rsi < 35:
		total += 10
	}
	if indicator.Last(f.BBPosition) < 0.15 {
		total += 10
		r.addSignal("BB_LOWER_TOUCH")
	}
	if hammer(f) {
		total += 10
		r.addPattern("HAMMER")
	}
	if indicator.Last(f.StochK) < 20 && indicator.Last(f.StochK) > indicator.Prev(f.StochK, 1) {
		total += 5
		r.addSignal("STOCH_TURNING")
	}
	return total
}

func v8Energy(f *indicator.Frame, _ *Extras, r *ScoreResult) int {
	total := 0
	if indicator.Last(f.VolumeRatio20) >= 2 {
		total += 15
		r.addSignal("CAPITULATION_VOLUME")
	}
	if indicator.Last(f.OBV) > indicator.Last(f.OBVMA20) {
		total += 10
	}
	return total
}

func v8Bottom(f *indicator.Frame, _ *Extras, r *ScoreResult) int {
	total := 0
	close, low60 := indicator.Last(f.Close), indicator.Last(f.Low60)
	if low60 > 0 && close <= low60*1.03 {
		total += 10
		r.addSignal("NEAR_60D_LOW")
	}
	open := indicator.Last(f.Open)
	prevClose := indicator.Prev(f.Close, 1)
	if prevClose > 0 && open < prevClose && close > open {
		total += 10 // gapped down, bought back up
	}
	return total
}

func v8Supply(f *indicator.Frame, x *Extras, r *ScoreResult) int {
	total := 0
	if indicator.Last(f.TradingValue) >= 1_000_000_000 {
		total += 8
	}
	if x.FlowFor(f.Ticker).ForeignNet5D >= 0 {
		total += 7
	}
	return total
}
