package scoring

import (
	"github.com/junghoon-woo/danta/internal/domain"
	"github.com/junghoon-woo/danta/internal/indicator"
)

// v6 is the swing strategy used by the automated loop: energy building under
// the surface, smart money accumulating, price holding support. It needs 120
// bars so the longer averages and the 60-day window are fully formed, and it
// emits an ATR-based exit plan sized to the conviction of the entry.
func newV6() *strategy {
	return &strategy{
		version:    "v6",
		minBars:    120,
		disqualify: v6Disqualify,
		groups: []group{
			{name: "energy", min: 0, max: 35, eval: v6Energy},
			{name: "smart_money", min: 0, max: 30, eval: v6SmartMoney},
			{name: "support", min: 0, max: 20, eval: v6Support},
			{name: "momentum", min: 0, max: 15, eval: v6Momentum},
		},
		exitPlan: v6ExitPlan,
	}
}

func v6Disqualify(f *indicator.Frame, _ *Extras) (string, bool) {
	s5, s20, s60 := indicator.Last(f.SMA5), indicator.Last(f.SMA20), indicator.Last(f.SMA60)
	if s5 < s20 && s20 < s60 && indicator.Last(f.SMA20Slope) < -2 {
		return "MA_REVERSE_ALIGNED", true
	}
	if indicator.Last(f.RSI) > 85 {
		return "OVERHEATED", true
	}
	if climacticTop(f) {
		return "CLIMACTIC_TOP", true
	}
	if indicator.Last(f.ChangePct) <= -5 {
		return "CRASH_DAY", true
	}
	return "", false
}

func v6Energy(f *indicator.Frame, _ *Extras, r *ScoreResult) int {
	total := 0
	if bbSqueeze(f) {
		total += 10
		r.addPattern("BB_SQUEEZE")
	}
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
	if indicator.Last(f.Close) > indicator.Last(f.Supertrend) {
		total += 10
		r.addSignal("SUPERTREND_BULL")
	}
	return total
}

func v6SmartMoney(f *indicator.Frame, x *Extras, r *ScoreResult) int {
	total := 0
	if indicator.Last(f.OBV) > indicator.Last(f.OBVMA20) {
		total += 10
	}
	if obvBullishDivergence(f) {
		total += 10
		r.addPattern("OBV_BULL_DIV")
	}
	if x.FlowFor(f.Ticker).ForeignNet5D > 0 {
		total += 10
		r.addSignal("FOREIGN_NET_BUY")
	}
	return total
}

func v6Support(f *indicator.Frame, _ *Extras, r *ScoreResult) int {
	total := 0
	close, s20 := indicator.Last(f.Close), indicator.Last(f.SMA20)
	if s20 > 0 && close >= s20 && close <= s20*1.03 {
		total += 10
	}
	low60 := indicator.Last(f.Low60)
	if low60 > 0 && close <= low60*1.10 {
		total += 5
		r.addSignal("NEAR_60D_LOW")
	}
	if hammer(f) {
		total += 5
		r.addPattern("HAMMER")
	}
	return total
}

func v6Momentum(f *indicator.Frame, _ *Extras, _ *ScoreResult) int {
	total := 0
	if indicator.Last(f.MACDHist) > 0 {
		total += 5
	}
	rsi := indicator.Last(f.RSI)
	if rsi >= 55 && rsi <= 75 {
		total += 10
	}
	return total
}

func v6ExitPlan(f *indicator.Frame, score int) *domain.ExitPlan {
	entry := indicator.Last(f.Close)
	atr := indicator.Last(f.ATR)
	if entry <= 0 || atr <= 0 {
		return nil
	}
	var target, stop, trail float64
	var hold int
	switch {
	case score >= 80:
		target, stop, trail, hold = 2.5, 1.2, 1.5, 10
	case score >= 65:
		target, stop, trail, hold = 2.0, 1.0, 1.2, 7
	case score >= 50:
		target, stop, trail, hold = 1.5, 0.8, 1.0, 5
	default:
		return nil
	}
	return &domain.ExitPlan{
		Entry:           entry,
		TargetPrice:     entry + target*atr,
		StopPrice:       entry - stop*atr,
		TrailingTrigger: entry + trail*atr,
		MaxHoldDays:     hold,
		ATR:             atr,
	}
}
