package domain

import (
	"context"
	"time"
)

// BrokerClient defines the broker operations the engine needs. The KIS REST
// client implements it for live accounts; the paper executor and test fakes
// implement it in-process.
type BrokerClient interface {
	// GetAccountBalance returns holdings plus cash for one account.
	GetAccountBalance(ctx context.Context) (*AccountBalance, error)

	// GetCurrentPrice returns the latest quote for a ticker.
	GetCurrentPrice(ctx context.Context, ticker string) (*Quote, error)

	// GetPendingOrders returns orders placed but not yet fully executed.
	GetPendingOrders(ctx context.Context) ([]PendingOrder, error)

	// PlaceBuy submits a limit buy; price 0 means market.
	PlaceBuy(ctx context.Context, ticker string, quantity int64, price float64) (*OrderResult, error)

	// PlaceSell submits a limit sell; price 0 means market.
	PlaceSell(ctx context.Context, ticker string, quantity int64, price float64) (*OrderResult, error)
}

// MarketDataProvider serves daily price history. The snapshot reader and the
// sqlite-backed history store both implement it; scorers never talk to a
// broker directly.
type MarketDataProvider interface {
	// Series returns up to maxBars daily bars for a ticker, oldest first,
	// including today's partial bar when the market is open.
	Series(ctx context.Context, ticker string, maxBars int) (*PriceSeries, error)

	// Tickers lists the tickers the provider has data for.
	Tickers(ctx context.Context) ([]string, error)
}

// Notifier delivers operator-facing alerts. Implementations must not block
// the trading loop; fire-and-forget with internal retry.
type Notifier interface {
	Notify(ctx context.Context, a Alert)
}

// Clock abstracts time for the scheduler and market-session checks so tests
// can pin the tick instant.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to the Clock interface.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns wall-clock time.
func SystemClock() Clock { return ClockFunc(time.Now) }

// AlertLevel grades operator alerts.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "info"
	AlertWarning  AlertLevel = "warning"
	AlertCritical AlertLevel = "critical"
)

// Alert is an operator-facing event: a trade, a failure, a degraded tick.
type Alert struct {
	Level     AlertLevel
	UserID    int64
	Ticker    string
	Title     string
	Message   string
	CreatedAt time.Time
}
