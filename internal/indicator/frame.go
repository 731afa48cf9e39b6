// Package indicator computes technical indicator series over daily OHLCV
// data. Compute is pure and deterministic; the same PriceSeries always yields
// the same Frame. Values inside each indicator's warmup window are zero and
// must not be read, which is why scorers declare a minimum bar count.
package indicator

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/markcheno/go-talib"

	"github.com/junghoon-woo/danta/internal/domain"
)

// Frame holds a price series and every derived indicator series. All slices
// share the series length.
type Frame struct {
	Ticker string

	TS     []time.Time
	Open   []float64
	High   []float64
	Low    []float64
	Close  []float64
	Volume []float64

	ChangePct    []float64 // percent change vs prior close
	TradingValue []float64 // close × volume, KRW

	SMA5       []float64
	SMA10      []float64
	SMA20      []float64
	SMA60      []float64
	SMA120     []float64
	SMA20Slope []float64 // 5-bar percent slope of SMA20

	RSI        []float64 // 14
	MACD       []float64 // 12, 26
	MACDSignal []float64 // 9
	MACDHist   []float64

	BBUpper    []float64 // 20, 2
	BBMiddle   []float64
	BBLower    []float64
	BBWidth    []float64 // (upper − lower) / middle
	BBPosition []float64 // price within bands, clamped to [0, 1]

	VolumeMA5     []float64
	VolumeMA20    []float64
	VolumeRatio5  []float64 // volume / VolumeMA5, 1.0 when the average is zero
	VolumeRatio20 []float64

	OBV     []float64
	OBVMA20 []float64

	ATR        []float64 // 14
	Supertrend []float64 // 10, 3

	StochK    []float64 // 14, 3, 3
	StochD    []float64
	StochRSIK []float64 // 14, 14, 3, 3
	StochRSID []float64

	High60 []float64 // highest high of the prior 60 bars, current bar excluded
	Low60  []float64 // lowest low of the prior 60 bars, current bar excluded

	BodyPct      []float64 // signed candle body, percent of open
	UpperWickPct []float64
	LowerWickPct []float64
}

// Compute derives the full indicator frame from a price series.
func Compute(series *domain.PriceSeries) (*Frame, error) {
	n := series.Len()
	if n == 0 {
		return nil, fmt.Errorf("empty price series for %s", series.Ticker)
	}

	f := &Frame{
		Ticker: series.Ticker,
		TS:     make([]time.Time, n),
		Open:   make([]float64, n),
		High:   make([]float64, n),
		Low:    make([]float64, n),
		Close:  make([]float64, n),
		Volume: make([]float64, n),
	}
	for i, b := range series.Bars {
		f.TS[i] = b.TS
		f.Open[i] = b.Open
		f.High[i] = b.High
		f.Low[i] = b.Low
		f.Close[i] = b.Close
		f.Volume[i] = b.Volume
	}

	f.ChangePct = make([]float64, n)
	f.TradingValue = make([]float64, n)
	for i := 0; i < n; i++ {
		if i > 0 && f.Close[i-1] > 0 {
			f.ChangePct[i] = (f.Close[i] - f.Close[i-1]) / f.Close[i-1] * 100
		}
		f.TradingValue[i] = f.Close[i] * f.Volume[i]
	}

	f.SMA5 = smaOrZero(f.Close, 5)
	f.SMA10 = smaOrZero(f.Close, 10)
	f.SMA20 = smaOrZero(f.Close, 20)
	f.SMA60 = smaOrZero(f.Close, 60)
	f.SMA120 = smaOrZero(f.Close, 120)

	f.SMA20Slope = make([]float64, n)
	for i := 5; i < n; i++ {
		if f.SMA20[i-5] > 0 {
			f.SMA20Slope[i] = (f.SMA20[i] - f.SMA20[i-5]) / f.SMA20[i-5] * 100
		}
	}

	if n >= 15 {
		f.RSI = talib.Rsi(f.Close, 14)
	} else {
		f.RSI = make([]float64, n)
	}

	if n >= 34 {
		f.MACD, f.MACDSignal, f.MACDHist = talib.Macd(f.Close, 12, 26, 9)
	} else {
		f.MACD = make([]float64, n)
		f.MACDSignal = make([]float64, n)
		f.MACDHist = make([]float64, n)
	}

	f.BBUpper = make([]float64, n)
	f.BBMiddle = make([]float64, n)
	f.BBLower = make([]float64, n)
	f.BBWidth = make([]float64, n)
	f.BBPosition = make([]float64, n)
	if n >= 20 {
		f.BBUpper, f.BBMiddle, f.BBLower = talib.BBands(f.Close, 20, 2, 2, talib.SMA)
		for i := 0; i < n; i++ {
			if f.BBMiddle[i] > 0 {
				f.BBWidth[i] = (f.BBUpper[i] - f.BBLower[i]) / f.BBMiddle[i]
			}
			band := f.BBUpper[i] - f.BBLower[i]
			if band > 0 {
				f.BBPosition[i] = clamp01((f.Close[i] - f.BBLower[i]) / band)
			} else {
				f.BBPosition[i] = 0.5
			}
		}
	}

	f.VolumeMA5 = smaOrZero(f.Volume, 5)
	f.VolumeMA20 = smaOrZero(f.Volume, 20)
	f.VolumeRatio5 = ratioSeries(f.Volume, f.VolumeMA5)
	f.VolumeRatio20 = ratioSeries(f.Volume, f.VolumeMA20)

	f.OBV = talib.Obv(f.Close, f.Volume)
	f.OBVMA20 = smaOrZero(f.OBV, 20)

	if n >= 15 {
		f.ATR = talib.Atr(f.High, f.Low, f.Close, 14)
	} else {
		f.ATR = make([]float64, n)
	}

	f.Supertrend = supertrend(f.High, f.Low, f.Close, 10, 3)

	if n >= 18 {
		f.StochK, f.StochD = talib.Stoch(f.High, f.Low, f.Close, 14, 3, talib.SMA, 3, talib.SMA)
	} else {
		f.StochK = make([]float64, n)
		f.StochD = make([]float64, n)
	}
	if n >= 32 {
		f.StochRSIK, f.StochRSID = talib.StochRsi(f.Close, 14, 14, 3, talib.SMA)
	} else {
		f.StochRSIK = make([]float64, n)
		f.StochRSID = make([]float64, n)
	}

	f.High60 = priorExtreme(f.High, 60, true)
	f.Low60 = priorExtreme(f.Low, 60, false)

	f.BodyPct = make([]float64, n)
	f.UpperWickPct = make([]float64, n)
	f.LowerWickPct = make([]float64, n)
	for i := 0; i < n; i++ {
		if f.Open[i] <= 0 {
			continue
		}
		f.BodyPct[i] = (f.Close[i] - f.Open[i]) / f.Open[i] * 100
		f.UpperWickPct[i] = (f.High[i] - math.Max(f.Open[i], f.Close[i])) / f.Open[i] * 100
		f.LowerWickPct[i] = (math.Min(f.Open[i], f.Close[i]) - f.Low[i]) / f.Open[i] * 100
	}

	return f, nil
}

// N returns the bar count.
func (f *Frame) N() int { return len(f.Close) }

// LastTS returns the timestamp of the most recent bar.
func (f *Frame) LastTS() time.Time {
	if len(f.TS) == 0 {
		return time.Time{}
	}
	return f.TS[len(f.TS)-1]
}

// Last returns the most recent value of a series, 0 when empty.
func Last(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	return xs[len(xs)-1]
}

// Prev returns the value `back` bars before the last, 0 when out of range.
func Prev(xs []float64, back int) float64 {
	i := len(xs) - 1 - back
	if i < 0 {
		return 0
	}
	return xs[i]
}

// CrossedAbove reports whether a crossed above b on the last bar.
func CrossedAbove(a, b []float64) bool {
	if len(a) < 2 || len(b) < 2 {
		return false
	}
	return Prev(a, 1) <= Prev(b, 1) && Last(a) > Last(b)
}

// ConsecutiveDown counts closing-down bars ending at the last bar.
func (f *Frame) ConsecutiveDown() int {
	count := 0
	for i := len(f.Close) - 1; i > 0; i-- {
		if f.Close[i] < f.Close[i-1] {
			count++
		} else {
			break
		}
	}
	return count
}

// series maps the rule-engine variable names to frame columns. Lowercase,
// matched case-insensitively.
func (f *Frame) series(name string) []float64 {
	switch name {
	case "open":
		return f.Open
	case "high":
		return f.High
	case "low":
		return f.Low
	case "close":
		return f.Close
	case "volume":
		return f.Volume
	case "change_pct":
		return f.ChangePct
	case "trading_value":
		return f.TradingValue
	case "sma5":
		return f.SMA5
	case "sma10":
		return f.SMA10
	case "sma20":
		return f.SMA20
	case "sma60":
		return f.SMA60
	case "sma120":
		return f.SMA120
	case "sma20_slope":
		return f.SMA20Slope
	case "rsi":
		return f.RSI
	case "macd":
		return f.MACD
	case "macd_signal":
		return f.MACDSignal
	case "macd_hist":
		return f.MACDHist
	case "bb_upper":
		return f.BBUpper
	case "bb_middle":
		return f.BBMiddle
	case "bb_lower":
		return f.BBLower
	case "bb_width":
		return f.BBWidth
	case "bb_position":
		return f.BBPosition
	case "volume_ma5":
		return f.VolumeMA5
	case "volume_ma20":
		return f.VolumeMA20
	case "volume_ratio":
		return f.VolumeRatio5
	case "volume_ratio_20":
		return f.VolumeRatio20
	case "obv":
		return f.OBV
	case "obv_ma20":
		return f.OBVMA20
	case "atr":
		return f.ATR
	case "supertrend":
		return f.Supertrend
	case "stoch_k":
		return f.StochK
	case "stoch_d":
		return f.StochD
	case "stochrsi_k":
		return f.StochRSIK
	case "stochrsi_d":
		return f.StochRSID
	case "high_60d":
		return f.High60
	case "low_60d":
		return f.Low60
	case "body_pct":
		return f.BodyPct
	case "upper_wick":
		return f.UpperWickPct
	case "lower_wick":
		return f.LowerWickPct
	}
	return nil
}

// Lookup resolves a rule-engine variable for the last bar. Names with a
// "_prev" suffix resolve one bar earlier. Unknown names return false.
func (f *Frame) Lookup(name string) (float64, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	back := 0
	if strings.HasSuffix(name, "_prev") {
		name = strings.TrimSuffix(name, "_prev")
		back = 1
	}
	if name == "prev_close" {
		name, back = "close", 1
	}
	xs := f.series(name)
	if xs == nil {
		return 0, false
	}
	i := len(xs) - 1 - back
	if i < 0 {
		return 0, false
	}
	return xs[i], true
}

// smaOrZero runs an SMA, returning a zero slice when the series is shorter
// than the period.
func smaOrZero(xs []float64, period int) []float64 {
	if len(xs) < period {
		return make([]float64, len(xs))
	}
	return talib.Sma(xs, period)
}

// ratioSeries divides value by average per bar, defaulting to 1.0 when the
// average is zero so zero-volume series never divide by zero.
func ratioSeries(values, averages []float64) []float64 {
	out := make([]float64, len(values))
	for i := range values {
		if averages[i] > 0 {
			out[i] = values[i] / averages[i]
		} else {
			out[i] = 1.0
		}
	}
	return out
}

// priorExtreme returns the rolling max (or min) of the previous `window` bars,
// excluding the current bar, so a breakout of the prior range is observable
// on the bar that makes it.
func priorExtreme(xs []float64, window int, max bool) []float64 {
	out := make([]float64, len(xs))
	for i := 1; i < len(xs); i++ {
		lo := i - window
		if lo < 0 {
			lo = 0
		}
		ext := xs[lo]
		for j := lo + 1; j < i; j++ {
			if max && xs[j] > ext || !max && xs[j] < ext {
				ext = xs[j]
			}
		}
		out[i] = ext
	}
	return out
}

// supertrend computes the Supertrend line from ATR bands.
func supertrend(high, low, close []float64, atrPeriod int, factor float64) []float64 {
	n := len(close)
	out := make([]float64, n)
	if n <= atrPeriod {
		return out
	}

	atr := talib.Atr(high, low, close, atrPeriod)
	finalUpper := make([]float64, n)
	finalLower := make([]float64, n)

	for i := 1; i < n; i++ {
		median := (high[i] + low[i]) / 2.0
		basicUpper := median + atr[i]*factor
		basicLower := median - atr[i]*factor

		if basicUpper < finalUpper[i-1] || close[i-1] > finalUpper[i-1] {
			finalUpper[i] = basicUpper
		} else {
			finalUpper[i] = finalUpper[i-1]
		}
		if basicLower > finalLower[i-1] || close[i-1] < finalLower[i-1] {
			finalLower[i] = basicLower
		} else {
			finalLower[i] = finalLower[i-1]
		}

		if finalUpper[i-1] == out[i-1] {
			if close[i] > finalUpper[i] {
				out[i] = finalLower[i]
			} else {
				out[i] = finalUpper[i]
			}
		} else {
			if close[i] < finalLower[i] {
				out[i] = finalUpper[i]
			} else {
				out[i] = finalLower[i]
			}
		}
	}
	return out
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
