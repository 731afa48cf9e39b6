package domain

import "time"

// Stock is one entry of the tradable universe: listing metadata plus the
// liquidity figures the pre-open filter selected it by. Intraday fields are
// filled at scoring time from the day's quote.
type Stock struct {
	Ticker    string  `json:"ticker"`
	Name      string  `json:"name"`
	Market    Market  `json:"market"`
	MarketCap float64 `json:"market_cap"` // KRW
	AvgValue  float64 `json:"avg_value"`  // 20-day average traded value, KRW
	Shares    int64   `json:"shares,omitempty"`

	// Intraday quote data, zero until a quote is attached.
	Price     float64 `json:"price,omitempty"`
	ChangePct float64 `json:"change_pct,omitempty"`
	Volume    float64 `json:"volume,omitempty"`
}

// ScoredStock is a universe entry with today's score attached.
type ScoredStock struct {
	Stock
	Score     int            `json:"score"`
	Version   string         `json:"version"`
	Breakdown map[string]int `json:"breakdown,omitempty"`
	ExitPlan  *ExitPlan      `json:"exit_plan,omitempty"`
}

// VolumeRatio returns today's volume relative to the given average daily
// volume, 0 when the average is unknown.
func (s Stock) VolumeRatio(avgVolume float64) float64 {
	if avgVolume <= 0 {
		return 0
	}
	return s.Volume / avgVolume
}

// Universe is the day's filtered stock list with its creation time, used for
// staleness checks.
type Universe struct {
	Date      string // YYYY-MM-DD in market time
	CreatedAt time.Time
	Stocks    []Stock
}

// Find returns the entry for a ticker, nil when absent.
func (u *Universe) Find(ticker string) *Stock {
	for i := range u.Stocks {
		if u.Stocks[i].Ticker == ticker {
			return &u.Stocks[i]
		}
	}
	return nil
}
