package executor

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junghoon-woo/danta/internal/domain"
)

type fakeQuotes struct {
	quotes map[string]*domain.Quote
	errs   map[string]bool
}

func (f *fakeQuotes) GetCurrentPrice(_ context.Context, ticker string) (*domain.Quote, error) {
	if f.errs[ticker] {
		return nil, fmt.Errorf("quote feed down for %s", ticker)
	}
	q, ok := f.quotes[ticker]
	if !ok {
		return nil, fmt.Errorf("no quote for %s", ticker)
	}
	return q, nil
}

func (f *fakeQuotes) set(ticker string, price float64, market domain.Market) {
	if f.quotes == nil {
		f.quotes = map[string]*domain.Quote{}
	}
	f.quotes[ticker] = &domain.Quote{Ticker: ticker, Name: "종목" + ticker, Market: market, Price: price}
}

func paperFees() domain.FeeSchedule {
	return domain.FeeSchedule{
		CommissionRate: 0.001,
		TaxRates: map[domain.Market]float64{
			domain.MarketKOSPI:  0.002,
			domain.MarketKOSDAQ: 0.002,
		},
	}
}

func newTestPaper(cfg PaperConfig, quotes *fakeQuotes, now *time.Time) *Paper {
	cfg.Fees = paperFees()
	clock := domain.ClockFunc(func() time.Time { return *now })
	return NewPaper(cfg, quotes, clock, zerolog.Nop())
}

func TestPaper_BuyDebitsCashWithCommission(t *testing.T) {
	quotes := &fakeQuotes{}
	quotes.set("005930", 50_000, domain.MarketKOSPI)
	now := time.Date(2025, 3, 5, 10, 0, 0, 0, domain.MarketLocation())
	p := newTestPaper(PaperConfig{UserID: 7, Cash: 1_000_000}, quotes, &now)

	res, err := p.Buy(context.Background(), "005930", 10, 0)
	require.NoError(t, err)
	assert.Equal(t, "PAPER-000001", res.BrokerOrderID)
	assert.Equal(t, 50_000.0, res.Price, "market order fills at the quote")

	cash, holdings := p.State()
	assert.InDelta(t, 499_500, cash, 1e-6, "gross 500000 plus 0.1% commission")
	require.Len(t, holdings, 1)
	h := holdings[0]
	assert.Equal(t, int64(7), h.UserID)
	assert.Equal(t, int64(10), h.Quantity)
	assert.Equal(t, 50_000.0, h.AvgPrice)
	assert.Equal(t, domain.MarketKOSPI, h.Market)
	assert.Equal(t, now, h.OpenedAt)
}

func TestPaper_CashNeverGoesNegative(t *testing.T) {
	quotes := &fakeQuotes{}
	quotes.set("005930", 50_000, domain.MarketKOSPI)
	now := time.Date(2025, 3, 5, 10, 0, 0, 0, domain.MarketLocation())
	p := newTestPaper(PaperConfig{UserID: 1, Cash: 500_500}, quotes, &now)

	_, err := p.Buy(context.Background(), "005930", 10, 0)
	require.NoError(t, err, "spending to exactly zero is allowed")
	cash, _ := p.State()
	assert.InDelta(t, 0, cash, 1e-6)

	_, err = p.Buy(context.Background(), "005930", 1, 0)
	assert.ErrorIs(t, err, ErrInsufficientCash)

	cash, holdings := p.State()
	assert.GreaterOrEqual(t, cash, 0.0)
	require.Len(t, holdings, 1)
	assert.Equal(t, int64(10), holdings[0].Quantity, "rejected buy leaves the position untouched")
}

func TestPaper_BuyAugmentsPositionAtWeightedAverage(t *testing.T) {
	quotes := &fakeQuotes{}
	quotes.set("005930", 50_000, domain.MarketKOSPI)
	now := time.Date(2025, 3, 5, 10, 0, 0, 0, domain.MarketLocation())
	opened := now
	p := newTestPaper(PaperConfig{UserID: 1, Cash: 2_000_000}, quotes, &now)

	_, err := p.Buy(context.Background(), "005930", 10, 0)
	require.NoError(t, err)

	now = now.Add(time.Hour)
	quotes.set("005930", 60_000, domain.MarketKOSPI)
	_, err = p.Buy(context.Background(), "005930", 5, 0)
	require.NoError(t, err)

	cash, holdings := p.State()
	assert.InDelta(t, 1_199_200, cash, 1e-6)
	require.Len(t, holdings, 1)
	h := holdings[0]
	assert.Equal(t, int64(15), h.Quantity)
	assert.InDelta(t, 800_000.0/15, h.AvgPrice, 1e-9)
	assert.Equal(t, opened, h.OpenedAt, "augmenting keeps the original entry time")
}

func TestPaper_SellCreditsNetProceedsAndClosesPosition(t *testing.T) {
	quotes := &fakeQuotes{}
	quotes.set("005930", 60_000, domain.MarketKOSPI)
	now := time.Date(2025, 3, 5, 11, 0, 0, 0, domain.MarketLocation())
	p := newTestPaper(PaperConfig{
		UserID:   1,
		Holdings: []domain.Holding{{UserID: 1, Ticker: "005930", Market: domain.MarketKOSPI, Quantity: 15, AvgPrice: 53_000}},
	}, quotes, &now)

	res, err := p.Sell(context.Background(), "005930", 15, 0)
	require.NoError(t, err)
	assert.Equal(t, 60_000.0, res.Price)

	cash, holdings := p.State()
	assert.InDelta(t, 897_300, cash, 1e-6, "gross 900000 minus 900 commission and 1800 tax")
	assert.Empty(t, holdings)
}

func TestPaper_PartialSellKeepsAveragePrice(t *testing.T) {
	quotes := &fakeQuotes{}
	quotes.set("000660", 110_000, domain.MarketKOSPI)
	now := time.Date(2025, 3, 5, 11, 0, 0, 0, domain.MarketLocation())
	p := newTestPaper(PaperConfig{
		UserID:   1,
		Holdings: []domain.Holding{{UserID: 1, Ticker: "000660", Market: domain.MarketKOSPI, Quantity: 20, AvgPrice: 100_000}},
	}, quotes, &now)

	_, err := p.Sell(context.Background(), "000660", 5, 110_000)
	require.NoError(t, err)

	cash, holdings := p.State()
	assert.InDelta(t, 548_350, cash, 1e-6)
	require.Len(t, holdings, 1)
	assert.Equal(t, int64(15), holdings[0].Quantity)
	assert.Equal(t, 100_000.0, holdings[0].AvgPrice)
}

func TestPaper_OversellRejected(t *testing.T) {
	quotes := &fakeQuotes{}
	quotes.set("000660", 110_000, domain.MarketKOSPI)
	now := time.Date(2025, 3, 5, 11, 0, 0, 0, domain.MarketLocation())
	p := newTestPaper(PaperConfig{
		UserID:   1,
		Holdings: []domain.Holding{{UserID: 1, Ticker: "000660", Market: domain.MarketKOSPI, Quantity: 20, AvgPrice: 100_000}},
	}, quotes, &now)

	_, err := p.Sell(context.Background(), "000660", 25, 0)
	assert.ErrorIs(t, err, ErrInsufficientQuantity)
	assert.ErrorContains(t, err, "held 20")

	_, err = p.Sell(context.Background(), "005930", 1, 0)
	assert.ErrorIs(t, err, ErrInsufficientQuantity)
	assert.ErrorContains(t, err, "held 0")
}

func TestPaper_LimitOrdersFillAtTheLimit(t *testing.T) {
	quotes := &fakeQuotes{}
	quotes.set("005930", 50_000, domain.MarketKOSPI)
	now := time.Date(2025, 3, 5, 10, 0, 0, 0, domain.MarketLocation())
	p := newTestPaper(PaperConfig{UserID: 1, Cash: 1_000_000}, quotes, &now)

	res, err := p.Buy(context.Background(), "005930", 10, 49_500)
	require.NoError(t, err)
	assert.Equal(t, 49_500.0, res.Price)

	cash, holdings := p.State()
	assert.InDelta(t, 1_000_000-495_000*1.001, cash, 1e-6)
	assert.Equal(t, 49_500.0, holdings[0].AvgPrice)
}

func TestPaper_QuoteOutage(t *testing.T) {
	quotes := &fakeQuotes{errs: map[string]bool{"123450": true}}
	now := time.Date(2025, 3, 5, 10, 0, 0, 0, domain.MarketLocation())
	p := newTestPaper(PaperConfig{
		UserID:   1,
		Holdings: []domain.Holding{{UserID: 1, Ticker: "123450", Market: domain.MarketKOSPI, Quantity: 10, AvgPrice: 10_000}},
	}, quotes, &now)

	_, err := p.Buy(context.Background(), "123450", 1, 0)
	assert.ErrorContains(t, err, "failed to price market order")

	// A limit sell still fills and books tax from the holding's market.
	_, err = p.Sell(context.Background(), "123450", 10, 10_000)
	require.NoError(t, err)
	cash, holdings := p.State()
	assert.InDelta(t, 99_700, cash, 1e-6, "gross 100000 minus 100 commission and 200 tax")
	assert.Empty(t, holdings)
}

func TestPaper_HoldingsRepriceOnDemand(t *testing.T) {
	quotes := &fakeQuotes{}
	quotes.set("035720", 11_000, domain.MarketKOSDAQ)
	now := time.Date(2025, 3, 5, 10, 0, 0, 0, domain.MarketLocation())
	p := newTestPaper(PaperConfig{
		UserID:   1,
		Holdings: []domain.Holding{{UserID: 1, Ticker: "035720", Market: domain.MarketKOSDAQ, Quantity: 3, AvgPrice: 10_000, CurrentPrice: 10_000}},
	}, quotes, &now)

	holdings, err := p.Holdings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 11_000.0, holdings[0].CurrentPrice)
	assert.InDelta(t, 10.0, holdings[0].ProfitRate, 1e-9)

	quotes.errs = map[string]bool{"035720": true}
	holdings, err = p.Holdings(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 11_000.0, holdings[0].CurrentPrice, "failed reprice keeps the last price")
}

func TestPaper_DryRunLeavesTheAccountUntouched(t *testing.T) {
	quotes := &fakeQuotes{}
	quotes.set("005930", 50_000, domain.MarketKOSPI)
	now := time.Date(2025, 3, 5, 10, 0, 0, 0, domain.MarketLocation())
	p := newTestPaper(PaperConfig{
		UserID:   1,
		Cash:     1_000_000,
		Holdings: []domain.Holding{{UserID: 1, Ticker: "000660", Market: domain.MarketKOSPI, Quantity: 5, AvgPrice: 90_000}},
		DryRun:   true,
	}, quotes, &now)

	res, err := p.Buy(context.Background(), "005930", 10, 0)
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Empty(t, res.BrokerOrderID)

	res, err = p.Sell(context.Background(), "000660", 5, 0)
	require.NoError(t, err)
	assert.True(t, res.DryRun)

	cash, holdings := p.State()
	assert.Equal(t, 1_000_000.0, cash)
	require.Len(t, holdings, 1)
	assert.Equal(t, int64(5), holdings[0].Quantity)
}

func TestPaper_PendingIsAlwaysEmpty(t *testing.T) {
	quotes := &fakeQuotes{}
	now := time.Date(2025, 3, 5, 10, 0, 0, 0, domain.MarketLocation())
	p := newTestPaper(PaperConfig{UserID: 1, Cash: 100_000}, quotes, &now)

	pending, err := p.Pending(context.Background())
	require.NoError(t, err)
	assert.Empty(t, pending, "simulated fills are immediate")
}

func TestPaper_StateRoundTripsIntoANewSimulator(t *testing.T) {
	quotes := &fakeQuotes{}
	quotes.set("005930", 50_000, domain.MarketKOSPI)
	quotes.set("000660", 100_000, domain.MarketKOSPI)
	now := time.Date(2025, 3, 5, 10, 0, 0, 0, domain.MarketLocation())
	p := newTestPaper(PaperConfig{UserID: 1, Cash: 2_000_000}, quotes, &now)

	_, err := p.Buy(context.Background(), "005930", 10, 0)
	require.NoError(t, err)
	_, err = p.Buy(context.Background(), "000660", 5, 0)
	require.NoError(t, err)

	cash, holdings := p.State()
	require.Len(t, holdings, 2)
	assert.Equal(t, "000660", holdings[0].Ticker, "state is sorted by ticker")

	rebuilt := newTestPaper(PaperConfig{UserID: 1, Cash: cash, Holdings: holdings}, quotes, &now)
	cash2, holdings2 := rebuilt.State()
	assert.Equal(t, cash, cash2)
	assert.Equal(t, holdings, holdings2)
}
