// Package domain holds the core types shared across the trading engine.
// It has no infrastructure dependencies; repositories, clients and services
// all speak in these types.
package domain

import (
	"fmt"
	"time"
)

// Market identifies the listing venue of a ticker.
type Market string

const (
	MarketKOSPI  Market = "KOSPI"
	MarketKOSDAQ Market = "KOSDAQ"
)

// TradeMode is the per-user automation level.
type TradeMode string

const (
	// ModeManual disables all automated order placement for the user.
	ModeManual TradeMode = "manual"
	// ModeSemi queues buy suggestions instead of placing orders.
	ModeSemi TradeMode = "semi"
	// ModeAuto places orders without confirmation.
	ModeAuto TradeMode = "auto"
	// ModeGreenlight delegates decisions to a registered DecisionPlugin.
	// Only honoured for paper accounts.
	ModeGreenlight TradeMode = "greenlight"
)

// OrderSide is the direction of an order.
type OrderSide string

const (
	SideBuy  OrderSide = "buy"
	SideSell OrderSide = "sell"
)

// OrderStatus tracks the lifecycle of an order record.
type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderExecuted  OrderStatus = "executed"
	OrderCancelled OrderStatus = "cancelled"
	OrderDryRun    OrderStatus = "dry_run"
)

// SuggestionStatus tracks the lifecycle of a semi-mode buy suggestion.
type SuggestionStatus string

const (
	SuggestionPending  SuggestionStatus = "pending"
	SuggestionApproved SuggestionStatus = "approved"
	SuggestionExecuted SuggestionStatus = "executed"
	SuggestionRejected SuggestionStatus = "rejected"
	SuggestionExpired  SuggestionStatus = "expired"
)

// PriceBar is a single OHLCV observation. Bars are immutable once observed.
type PriceBar struct {
	TS     time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Validate checks the OHLC geometry invariants.
func (b PriceBar) Validate() error {
	if b.High < b.Open || b.High < b.Close || b.Low > b.Open || b.Low > b.Close {
		return fmt.Errorf("bar at %s violates high/low bounds", b.TS.Format("2006-01-02"))
	}
	if b.Volume < 0 {
		return fmt.Errorf("bar at %s has negative volume", b.TS.Format("2006-01-02"))
	}
	return nil
}

// PriceSeries is an ordered sequence of bars for one ticker, strictly
// increasing timestamps. The last bar may be today's partial bar.
type PriceSeries struct {
	Ticker string
	Market Market
	Bars   []PriceBar
}

// Len returns the number of bars.
func (s *PriceSeries) Len() int { return len(s.Bars) }

// Last returns the most recent bar, or a zero bar when empty.
func (s *PriceSeries) Last() PriceBar {
	if len(s.Bars) == 0 {
		return PriceBar{}
	}
	return s.Bars[len(s.Bars)-1]
}

// Validate checks ordering and per-bar invariants.
func (s *PriceSeries) Validate() error {
	for i, b := range s.Bars {
		if err := b.Validate(); err != nil {
			return err
		}
		if i > 0 && !s.Bars[i-1].TS.Before(b.TS) {
			return fmt.Errorf("series %s not strictly increasing at index %d", s.Ticker, i)
		}
	}
	return nil
}

// Closes returns the close column as a freshly allocated slice.
func (s *PriceSeries) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Holding is a broker-held position for one user.
// Quantity is always > 0; a position is closed by deleting the row.
type Holding struct {
	UserID       int64
	Ticker       string
	Name         string
	Market       Market
	Quantity     int64
	AvgPrice     float64
	CurrentPrice float64
	ProfitRate   float64 // percent, e.g. -8.0
	OpenedAt     time.Time
}

// Value returns the current market value of the position.
func (h Holding) Value() float64 { return float64(h.Quantity) * h.CurrentPrice }

// Order is a journaled order record. Price 0 means a market order.
type Order struct {
	ID            int64
	UserID        int64
	Ticker        string
	Name          string
	Market        Market
	Side          OrderSide
	Quantity      int64
	Price         float64
	PlacedAt      time.Time
	BrokerOrderID string
	Status        OrderStatus
	RealisedPnL   *float64
	RealisedRate  *float64
	Reason        string
}

// Suggestion is a pending buy proposal for a semi-mode user.
type Suggestion struct {
	ID               string
	UserID           int64
	Ticker           string
	Name             string
	Market           Market
	Score            int
	RecommendedPrice float64
	BuyBandHigh      float64
	TargetPrice      float64
	StopPrice        float64
	Status           SuggestionStatus
	CreatedAt        time.Time
	ExpiresAt        time.Time
}

// DailyPerf is the per-user end-of-tick performance snapshot, one row per
// (user, date).
type DailyPerf struct {
	UserID        int64
	Date          string // YYYY-MM-DD in market time
	TotalAssets   float64
	D2Cash        float64
	HoldingsValue float64
	Invested      float64
	RealisedPnL   float64
	NumHoldings   int
}

// User is a trading account with its policy. Broker credentials come from the
// api_key_settings table and must never be logged.
type User struct {
	ID        int64
	Name      string
	IsPaper   bool
	AppKey    string
	AppSecret string
	AccountNo string
	Policy    UserPolicy
}

// UserPolicy is the per-user trading policy, read once at tick entry and not
// mutated during a tick.
type UserPolicy struct {
	Mode            TradeMode
	Enabled         bool
	ScoreVersion    string // version used for the threshold fallback and score decay
	BuyConditions   string // condition DSL, empty falls back to MinBuyScore
	SellConditions  string // condition DSL, empty disables the trigger
	MinBuyScore     int
	SellScore       int
	StopLossRate    float64 // percent, stored positive; -|rate| triggers the stop
	TakeProfitRate  float64 // percent
	MaxHoldings     int
	MaxDailyTrades  int
	MaxHoldDays     int
	PerTickerBudget float64 // KRW ceiling per position
	MinVolumeRatio  float64 // base floor before the hourly multiplier
	GapLimitPct     float64 // intraday change ceiling for new buys
	ExpireHours     int     // suggestion TTL for semi mode
}

// Validate rejects policies the controller cannot safely run.
func (p UserPolicy) Validate() error {
	switch p.Mode {
	case ModeManual, ModeSemi, ModeAuto, ModeGreenlight:
	default:
		return fmt.Errorf("unknown trade mode %q", p.Mode)
	}
	if p.MaxHoldings <= 0 {
		return fmt.Errorf("max_holdings must be positive, got %d", p.MaxHoldings)
	}
	if p.StopLossRate < 0 {
		return fmt.Errorf("stop_loss_rate is stored positive, got %.2f", p.StopLossRate)
	}
	return nil
}

// FeeSchedule carries commission and per-market transfer-tax rates so the
// paper executor books the same costs as live accounting.
type FeeSchedule struct {
	CommissionRate float64            // e.g. 0.00015
	TaxRates       map[Market]float64 // e.g. KOSPI 0.0018
}

// SellTax returns the transfer-tax rate for a market, 0 when unknown.
func (f FeeSchedule) SellTax(m Market) float64 {
	return f.TaxRates[m]
}

// BuyCost returns the cash debit for a buy of the given gross value.
func (f FeeSchedule) BuyCost(gross float64) float64 {
	return gross + gross*f.CommissionRate
}

// SellProceeds returns the cash credit for a sell of the given gross value
// after commission and transfer tax.
func (f FeeSchedule) SellProceeds(gross float64, m Market) float64 {
	return gross - gross*f.CommissionRate - gross*f.SellTax(m)
}

// ExitPlan is the swing-strategy exit contract attached by v6/v7 scorers and
// evaluated by the risk manager.
type ExitPlan struct {
	Entry           float64 `json:"entry"`
	TargetPrice     float64 `json:"target_price"`
	StopPrice       float64 `json:"stop_price"`
	TrailingTrigger float64 `json:"trailing_trigger"`
	MaxHoldDays     int     `json:"max_hold_days"`
	ATR             float64 `json:"atr"`
}
