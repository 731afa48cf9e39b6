package scoring

import (
	"math"

	"github.com/junghoon-woo/danta/internal/indicator"
)

// Pattern detectors shared by the accumulation-family strategies. All are
// pure functions of the frame and read only the tail the strategy's
// MinDataBars guarantees.

// obvBullishDivergence reports price making a lower low over the last 20 bars
// while OBV makes a higher low: accumulation into weakness.
func obvBullishDivergence(f *indicator.Frame) bool {
	n := f.N()
	if n < 21 {
		return false
	}
	priceLowRecent, priceLowEarlier := windowMin(f.Low, n-10, n), windowMin(f.Low, n-20, n-10)
	obvLowRecent, obvLowEarlier := windowMin(f.OBV, n-10, n), windowMin(f.OBV, n-20, n-10)
	return priceLowRecent < priceLowEarlier && obvLowRecent > obvLowEarlier
}

// accumulationCandle reports a flat-to-down bar that closed in the top part
// of its range on elevated volume.
func accumulationCandle(f *indicator.Frame) bool {
	n := f.N()
	if n == 0 {
		return false
	}
	i := n - 1
	rng := f.High[i] - f.Low[i]
	if rng <= 0 {
		return false
	}
	closePos := (f.Close[i] - f.Low[i]) / rng
	return f.ChangePct[i] <= 0.5 && closePos >= 0.6 && indicator.Last(f.VolumeRatio20) >= 1.5
}

// wyckoffSpring reports a recent bar that pierced the 20-bar support low and
// closed back above it.
func wyckoffSpring(f *indicator.Frame) bool {
	n := f.N()
	if n < 25 {
		return false
	}
	for i := n - 3; i < n; i++ {
		support := windowMin(f.Low, i-20, i)
		if f.Low[i] < support && f.Close[i] > support {
			return true
		}
	}
	return false
}

// vcp approximates a volatility contraction pattern through successive
// Bollinger-width shrinkage.
func vcp(f *indicator.Frame) bool {
	n := f.N()
	if n < 41 {
		return false
	}
	now := indicator.Last(f.BBWidth)
	tenAgo := indicator.Prev(f.BBWidth, 10)
	twentyAgo := indicator.Prev(f.BBWidth, 20)
	if now <= 0 || tenAgo <= 0 || twentyAgo <= 0 {
		return false
	}
	return now < tenAgo*0.75 && now < twentyAgo*0.6
}

// pullbackDryUp reports shrinking volume through a shallow pullback: the last
// three bars are non-advancing and volume sits well under its 20-day average.
func pullbackDryUp(f *indicator.Frame) bool {
	n := f.N()
	if n < 23 {
		return false
	}
	for i := n - 3; i < n; i++ {
		if f.ChangePct[i] > 0.5 {
			return false
		}
	}
	return indicator.Last(f.VolumeRatio20) < 0.6
}

// bbSqueeze reports the band width near its 60-bar minimum.
func bbSqueeze(f *indicator.Frame) bool {
	n := f.N()
	if n < 60 {
		return false
	}
	now := indicator.Last(f.BBWidth)
	if now <= 0 {
		return false
	}
	return now <= windowMin(f.BBWidth, n-60, n)*1.1
}

// maConvergence reports SMA5/10/20 compressed inside a 2% band, the coiled
// state before a directional move.
func maConvergence(f *indicator.Frame) bool {
	s5, s10, s20 := indicator.Last(f.SMA5), indicator.Last(f.SMA10), indicator.Last(f.SMA20)
	if s5 <= 0 || s10 <= 0 || s20 <= 0 {
		return false
	}
	hi := math.Max(s5, math.Max(s10, s20))
	lo := math.Min(s5, math.Min(s10, s20))
	return (hi-lo)/lo <= 0.02
}

// climacticTop reports a blowoff bar: a new 60-bar high on extreme volume
// with a long rejection wick.
func climacticTop(f *indicator.Frame) bool {
	n := f.N()
	if n < 61 {
		return false
	}
	i := n - 1
	madeHigh := f.High[i] > indicator.Last(f.High60)
	body := math.Abs(f.BodyPct[i])
	return madeHigh && indicator.Last(f.VolumeRatio5) >= 5 && f.UpperWickPct[i] > body*2
}

// shootingStar reports a small-bodied bar with a dominant upper wick after an
// advance.
func shootingStar(f *indicator.Frame) bool {
	n := f.N()
	if n < 2 {
		return false
	}
	i := n - 1
	body := math.Abs(f.BodyPct[i])
	advanced := f.ChangePct[i-1] > 0 || f.ChangePct[i] > 1
	return advanced && f.UpperWickPct[i] >= body*2 && f.UpperWickPct[i] >= 1 && f.LowerWickPct[i] <= body
}

// hammer reports a small-bodied bar with a dominant lower wick.
func hammer(f *indicator.Frame) bool {
	n := f.N()
	if n < 1 {
		return false
	}
	i := n - 1
	body := math.Abs(f.BodyPct[i])
	return f.LowerWickPct[i] >= body*2 && f.LowerWickPct[i] >= 1 && f.UpperWickPct[i] <= body
}

// wyckoffPhase classifies the accumulation phase after a markdown: "C" when a
// spring just tested support, "D" once price reclaims SMA20 on strength.
// Empty string when neither applies.
func wyckoffPhase(f *indicator.Frame) string {
	n := f.N()
	if n < 61 {
		return ""
	}
	wasMarkdown := indicator.Prev(f.Close, 20) < indicator.Prev(f.SMA60, 20)
	if !wasMarkdown || !wyckoffSpring(f) {
		return ""
	}
	if indicator.Last(f.Close) > indicator.Last(f.SMA20) && indicator.Last(f.VolumeRatio20) >= 1.2 {
		return "D"
	}
	return "C"
}

// windowMin returns the minimum of xs[lo:hi), +Inf on an empty window.
func windowMin(xs []float64, lo, hi int) float64 {
	if lo < 0 {
		lo = 0
	}
	if hi > len(xs) {
		hi = len(xs)
	}
	min := math.Inf(1)
	for i := lo; i < hi; i++ {
		if xs[i] < min {
			min = xs[i]
		}
	}
	return min
}
