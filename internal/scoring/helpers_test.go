package scoring

import (
	"time"

	"github.com/junghoon-woo/danta/internal/indicator"
)

// newTestFrame builds a frame with n bars of zero values. Tests overwrite the
// columns a scenario depends on; everything else stays neutral.
func newTestFrame(ticker string, n int) *indicator.Frame {
	f := &indicator.Frame{Ticker: ticker}
	f.TS = make([]time.Time, n)
	base := time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC)
	for i := range f.TS {
		f.TS[i] = base.AddDate(0, 0, i)
	}
	alloc := func() []float64 { return make([]float64, n) }
	f.Open, f.High, f.Low, f.Close, f.Volume = alloc(), alloc(), alloc(), alloc(), alloc()
	f.ChangePct, f.TradingValue = alloc(), alloc()
	f.SMA5, f.SMA10, f.SMA20, f.SMA60, f.SMA120 = alloc(), alloc(), alloc(), alloc(), alloc()
	f.SMA20Slope = alloc()
	f.RSI, f.MACD, f.MACDSignal, f.MACDHist = alloc(), alloc(), alloc(), alloc()
	f.BBUpper, f.BBMiddle, f.BBLower, f.BBWidth, f.BBPosition = alloc(), alloc(), alloc(), alloc(), alloc()
	f.VolumeMA5, f.VolumeMA20, f.VolumeRatio5, f.VolumeRatio20 = alloc(), alloc(), alloc(), alloc()
	f.OBV, f.OBVMA20 = alloc(), alloc()
	f.ATR, f.Supertrend = alloc(), alloc()
	f.StochK, f.StochD, f.StochRSIK, f.StochRSID = alloc(), alloc(), alloc(), alloc()
	f.High60, f.Low60 = alloc(), alloc()
	f.BodyPct, f.UpperWickPct, f.LowerWickPct = alloc(), alloc(), alloc()
	return f
}

func fill(xs []float64, v float64) {
	for i := range xs {
		xs[i] = v
	}
}

func setLast(xs []float64, v float64) {
	xs[len(xs)-1] = v
}
