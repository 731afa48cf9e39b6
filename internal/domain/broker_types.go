package domain

// Broker-facing DTOs. These mirror what the KIS REST API returns after the
// client has normalised field names and numeric strings.

// AccountBalance is the full account picture from a single balance call.
type AccountBalance struct {
	Holdings        []Holding
	D2Cash          float64 // settled cash, available in two days
	MaxBuyAmount    float64 // broker's buying power incl. unsettled funds
	TotalAssets     float64
	TotalProfitLoss float64
	Invested        float64 // sum of purchase amounts across holdings
}

// Quote is the latest price for a ticker.
type Quote struct {
	Ticker    string
	Name      string
	Market    Market
	Price     float64
	Open      float64
	High      float64
	Low       float64
	PrevClose float64
	ChangePct float64 // percent vs previous close
	Volume    float64 // shares traded so far today
}

// PendingOrder is an order resting at the broker, not yet fully filled.
type PendingOrder struct {
	BrokerOrderID string
	Ticker        string
	Side          OrderSide
	Quantity      int64
	FilledQty     int64
	Price         float64
}

// OrderResult is the broker acknowledgement for a placed order.
type OrderResult struct {
	BrokerOrderID string
	Ticker        string
	Side          OrderSide
	Quantity      int64
	Price         float64
	DryRun        bool
}
