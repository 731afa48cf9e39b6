package scoring

import (
	"github.com/junghoon-woo/danta/internal/domain"
	"github.com/junghoon-woo/danta/internal/indicator"
)

// v7 trades short momentum continuation. It refuses anything below the
// 60-day average, anything with overhead resistance inside two ATRs, and
// anything in a losing streak, then sizes tight exits for a fast turnover.
func newV7() *strategy {
	return &strategy{
		version:    "v7",
		minBars:    120,
		disqualify: v7Disqualify,
		groups: []group{
			{name: "trend", min: 0, max: 25, eval: v7Trend},
			{name: "momentum", min: 0, max: 30, eval: v7Momentum},
			{name: "energy", min: 0, max: 25, eval: v7Energy},
			{name: "support", min: 0, max: 20, eval: v7Support},
		},
		exitPlan: v7ExitPlan,
	}
}

func v7Disqualify(f *indicator.Frame, _ *Extras) (string, bool) {
	close := indicator.Last(f.Close)
	if close < indicator.Last(f.SMA60) {
		return "BELOW_MA60", true
	}
	high60, atr := indicator.Last(f.High60), indicator.Last(f.ATR)
	if atr > 0 && high60 > close && high60 < close+2*atr {
		return "RESISTANCE_NEAR", true
	}
	if f.ConsecutiveDown() >= 4 {
		return "LOSING_STREAK", true
	}
	if indicator.Prev(f.TradingValue, 1) < 1_000_000_000 {
		return "THIN_TRADING", true
	}
	return "", false
}

func v7Trend(f *indicator.Frame, _ *Extras, r *ScoreResult) int {
	total := 0
	s5, s20, s60 := indicator.Last(f.SMA5), indicator.Last(f.SMA20), indicator.Last(f.SMA60)
	if s5 > s20 && s20 > s60 {
		total += 10
		r.addSignal("MA_ALIGNED")
	}
	if indicator.Last(f.SMA20Slope) >= 2 {
		total += 10
		r.addSignal("SMA20_STEEP")
	}
	if indicator.Last(f.Close) > s5 {
		total += 5
	}
	return total
}

func v7Momentum(f *indicator.Frame, _ *Extras, r *ScoreResult) int {
	total := 0
	rsi := indicator.Last(f.RSI)
	if rsi >= 55 && rsi <= 70 {
		total += 15
		r.addSignal("RSI_SWEET_SPOT")
	}
	if indicator.Last(f.MACD) > indicator.Last(f.MACDSignal) {
		total += 10
	}
	if indicator.Last(f.StochK) > indicator.Last(f.StochD) {
		total += 5
	}
	return total
}

func v7Energy(f *indicator.Frame, _ *Extras, r *ScoreResult) int {
	total := 0
	vr := indicator.Last(f.VolumeRatio20)
	switch {
	case vr >= 2.5:
		total += 15
		r.addSignal("VOLUME_SURGE")
	case vr >= 1.5:
		total += 8
	}
	if indicator.Last(f.TradingValue) >= 5_000_000_000 {
		total += 10
	}
	return total
}

func v7Support(f *indicator.Frame, _ *Extras, _ *ScoreResult) int {
	total := 0
	if indicator.Last(f.Close) > indicator.Last(f.SMA20) {
		total += 10
	}
	if indicator.Last(f.SMA20Slope) > 0 {
		total += 10
	}
	return total
}

func v7ExitPlan(f *indicator.Frame, score int) *domain.ExitPlan {
	entry := indicator.Last(f.Close)
	atr := indicator.Last(f.ATR)
	if entry <= 0 || atr <= 0 {
		return nil
	}
	var target, stop, trail float64
	var hold int
	switch {
	case score >= 80:
		target, stop, trail, hold = 2.0, 0.8, 1.2, 7
	case score >= 65:
		target, stop, trail, hold = 1.6, 0.7, 1.0, 5
	case score >= 50:
		target, stop, trail, hold = 1.2, 0.6, 0.8, 3
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
