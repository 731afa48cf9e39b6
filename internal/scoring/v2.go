package scoring

import (
	"github.com/junghoon-woo/danta/internal/indicator"
)

// v2 is the volume-confirmed trend follower. A reverse-aligned MA stack is an
// immediate disqualifier; the rest rewards steep slope, sweet-spot RSI, range
// breakouts and heavy turnover.
func newV2() *strategy {
	return &strategy{
		version:    "v2",
		minBars:    60,
		disqualify: v2Disqualify,
		groups: []group{
			{name: "trend", min: 0, max: 30, eval: v2Trend},
			{name: "momentum", min: 0, max: 35, eval: v2Momentum},
			{name: "supply", min: 0, max: 35, eval: v2Supply},
		},
	}
}

func v2Disqualify(f *indicator.Frame, _ *Extras) (string, bool) {
	s5, s20, s60 := indicator.Last(f.SMA5), indicator.Last(f.SMA20), indicator.Last(f.SMA60)
	if s5 > 0 && s5 < s20 && s20 < s60 {
		return "MA_REVERSE_ALIGNED", true
	}
	return "", false
}

func v2Trend(f *indicator.Frame, _ *Extras, r *ScoreResult) int {
	total := 0
	s5, s20, s60 := indicator.Last(f.SMA5), indicator.Last(f.SMA20), indicator.Last(f.SMA60)
	if s5 > s20 && s20 > s60 {
		total += 10
		r.addSignal("MA_ALIGNED")
	}
	slope := indicator.Last(f.SMA20Slope)
	if slope >= 3 {
		total += 15
		r.addSignal("SMA20_STEEP")
	} else if slope >= 1.5 {
		total += 8
	}
	if indicator.Last(f.Close) > s5 {
		total += 5
	}
	return total
}

func v2Momentum(f *indicator.Frame, _ *Extras, r *ScoreResult) int {
	total := 0
	rsi := indicator.Last(f.RSI)
	if rsi >= 60 && rsi <= 75 {
		total += 15
		r.addSignal("RSI_SWEET_SPOT")
	} else if rsi >= 50 && rsi < 60 {
		total += 8
	}
	if high60 := indicator.Last(f.High60); high60 > 0 && indicator.Last(f.Close) > high60 {
		total += 15
		r.addSignal("BREAKOUT_60D_HIGH")
	}
	if indicator.Last(f.MACD) > indicator.Last(f.MACDSignal) {
		total += 5
	}
	return total
}

func v2Supply(f *indicator.Frame, _ *Extras, r *ScoreResult) int {
	total := 0
	vr := indicator.Last(f.VolumeRatio5)
	switch {
	case vr >= 5:
		total += 20
		r.addSignal("VOLUME_5X")
	case vr >= 3:
		total += 15
		r.addSignal("VOLUME_3X")
	case vr >= 2:
		total += 10
		r.addSignal("VOLUME_2X")
	}

	tv := indicator.Last(f.TradingValue)
	switch {
	case tv >= 10_000_000_000:
		total += 15
	case tv >= 5_000_000_000:
		total += 10
	case tv >= 1_000_000_000:
		total += 5
	}
	return total
}
