// Package history serves the collector-maintained market data: daily OHLCV
// bars, the equity listing with its liquidity figures, investor flows and
// index closes. The external collector writes these tables; the engine only
// reads them.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/junghoon-woo/danta/internal/domain"
	"github.com/junghoon-woo/danta/internal/scoring"
	"github.com/junghoon-woo/danta/internal/snapshot"
)

// Schema creates the read-side tables when the collector has not run yet, so
// a fresh deployment starts with empty data instead of query errors.
const Schema = `
CREATE TABLE IF NOT EXISTS price_bars (
    ticker TEXT NOT NULL,
    date   TEXT NOT NULL,
    open   REAL NOT NULL,
    high   REAL NOT NULL,
    low    REAL NOT NULL,
    close  REAL NOT NULL,
    volume REAL NOT NULL DEFAULT 0,
    PRIMARY KEY (ticker, date)
);

CREATE TABLE IF NOT EXISTS listings (
    ticker    TEXT PRIMARY KEY,
    name      TEXT NOT NULL,
    market    TEXT NOT NULL,
    marcap    REAL NOT NULL DEFAULT 0,
    avg_value REAL NOT NULL DEFAULT 0,
    shares    INTEGER NOT NULL DEFAULT 0,
    updated_at INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS market_flows (
    ticker           TEXT PRIMARY KEY,
    date             TEXT NOT NULL,
    foreign_net_5d   REAL NOT NULL DEFAULT 0,
    inst_net_5d      REAL NOT NULL DEFAULT 0,
    buy_strength     REAL NOT NULL DEFAULT 0,
    disclosure_score REAL NOT NULL DEFAULT 0,
    short_change     REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS index_bars (
    symbol TEXT NOT NULL,
    date   TEXT NOT NULL,
    close  REAL NOT NULL,
    PRIMARY KEY (symbol, date)
);
`

// Store reads market data out of the deployment database.
type Store struct {
	db        *sql.DB
	clock     domain.Clock
	leaderCfg scoring.LeaderMapConfig
	log       zerolog.Logger
}

var (
	_ domain.MarketDataProvider = (*Store)(nil)
	_ snapshot.SideDataProvider = (*Store)(nil)
)

// NewStore wraps the shared database connection.
func NewStore(db *sql.DB, clock domain.Clock, log zerolog.Logger) *Store {
	return &Store{
		db:        db,
		clock:     clock,
		leaderCfg: scoring.DefaultLeaderMapConfig(),
		log:       log.With().Str("component", "history").Logger(),
	}
}

// Series returns up to maxBars daily bars for a ticker, oldest first. The
// last bar is today's partial bar when the collector has written one.
func (s *Store) Series(ctx context.Context, ticker string, maxBars int) (*domain.PriceSeries, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT date, open, high, low, close, volume
		FROM price_bars WHERE ticker = ?
		ORDER BY date DESC LIMIT ?`, ticker, maxBars)
	if err != nil {
		return nil, fmt.Errorf("failed to query bars for %s: %w", ticker, err)
	}
	defer rows.Close()

	var bars []domain.PriceBar
	for rows.Next() {
		var (
			b    domain.PriceBar
			date string
		)
		if err := rows.Scan(&date, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan bar for %s: %w", ticker, err)
		}
		ts, err := time.ParseInLocation("2006-01-02", date, domain.MarketLocation())
		if err != nil {
			return nil, fmt.Errorf("bad bar date %q for %s: %w", date, ticker, err)
		}
		b.TS = ts
		bars = append(bars, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bars for %s: %w", ticker, err)
	}

	// Flip to ascending order.
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}

	market, _ := s.marketOf(ctx, ticker)
	return &domain.PriceSeries{Ticker: ticker, Market: market, Bars: bars}, nil
}

// Tickers lists every ticker with at least one bar.
func (s *Store) Tickers(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT ticker FROM price_bars ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("failed to query tickers: %w", err)
	}
	defer rows.Close()

	var tickers []string
	for rows.Next() {
		var t string
		if err := rows.Scan(&t); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		tickers = append(tickers, t)
	}
	return tickers, rows.Err()
}

// Listings returns the full equity listing for the universe filter.
func (s *Store) Listings(ctx context.Context) ([]domain.Stock, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT ticker, name, market, marcap, avg_value, shares FROM listings ORDER BY ticker`)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

	var stocks []domain.Stock
	for rows.Next() {
		var (
			st     domain.Stock
			market string
		)
		if err := rows.Scan(&st.Ticker, &st.Name, &market, &st.MarketCap, &st.AvgValue, &st.Shares); err != nil {
			return nil, fmt.Errorf("failed to scan listing: %w", err)
		}
		st.Market = domain.Market(market)
		stocks = append(stocks, st)
	}
	return stocks, rows.Err()
}

// SideData assembles the non-price scoring inputs for a tick: investor
// flows, disclosure and short-interest readings, today's change map and the
// leader map for the sympathy strategy.
func (s *Store) SideData(ctx context.Context, tickers []string) (*snapshot.SideData, error) {
	extras := &scoring.Extras{
		AsOf:                s.clock.Now(),
		InvestorFlow:        make(map[string]scoring.Flow),
		Disclosures:         make(map[string]float64),
		ShortInterestChange: make(map[string]float64),
	}
	strength := make(map[string]float64)

	rows, err := s.db.QueryContext(ctx, `
		SELECT ticker, foreign_net_5d, inst_net_5d, buy_strength, disclosure_score, short_change
		FROM market_flows`)
	if err != nil {
		return nil, fmt.Errorf("failed to query market flows: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			ticker                string
			flow                  scoring.Flow
			bs, disclosure, short float64
		)
		if err := rows.Scan(&ticker, &flow.ForeignNet5D, &flow.InstNet5D, &bs, &disclosure, &short); err != nil {
			return nil, fmt.Errorf("failed to scan market flow: %w", err)
		}
		extras.InvestorFlow[ticker] = flow
		strength[ticker] = bs
		if disclosure != 0 {
			extras.Disclosures[ticker] = disclosure
		}
		if short != 0 {
			extras.ShortInterestChange[ticker] = short
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating market flows: %w", err)
	}

	closes, changes, err := s.closesAndChanges(ctx, tickers)
	if err != nil {
		return nil, err
	}
	extras.ChangeMap = changes
	extras.Leaders = scoring.BuildLeaderMap(closes, s.leaderTickers(closes), s.leaderCfg)

	return &snapshot.SideData{Extras: extras, BuyStrength: strength}, nil
}

// MacroChange returns the previous session's percent change of an index,
// 0 when fewer than two closes exist.
func (s *Store) MacroChange(ctx context.Context, symbol string) (float64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT close FROM index_bars WHERE symbol = ? ORDER BY date DESC LIMIT 2`, symbol)
	if err != nil {
		return 0, fmt.Errorf("failed to query index bars for %s: %w", symbol, err)
	}
	defer rows.Close()

	var closes []float64
	for rows.Next() {
		var c float64
		if err := rows.Scan(&c); err != nil {
			return 0, fmt.Errorf("failed to scan index close: %w", err)
		}
		closes = append(closes, c)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}
	if len(closes) < 2 || closes[1] == 0 {
		return 0, nil
	}
	return (closes[0] - closes[1]) / closes[1] * 100, nil
}

// LastQuote builds a quote from the newest bar. Paper accounts without
// broker credentials price against it.
func (s *Store) LastQuote(ctx context.Context, ticker string) (*domain.Quote, error) {
	series, err := s.Series(ctx, ticker, 2)
	if err != nil {
		return nil, err
	}
	if series.Len() == 0 {
		return nil, fmt.Errorf("no bars for %s", ticker)
	}
	last := series.Last()
	q := &domain.Quote{
		Ticker: ticker,
		Market: series.Market,
		Price:  last.Close,
		Open:   last.Open,
		High:   last.High,
		Low:    last.Low,
		Volume: last.Volume,
	}
	if series.Len() >= 2 {
		prev := series.Bars[series.Len()-2].Close
		q.PrevClose = prev
		if prev > 0 {
			q.ChangePct = (last.Close - prev) / prev * 100
		}
	}
	return q, nil
}

// GetCurrentPrice satisfies executor.PriceSource with the newest stored bar.
func (s *Store) GetCurrentPrice(ctx context.Context, ticker string) (*domain.Quote, error) {
	return s.LastQuote(ctx, ticker)
}

func (s *Store) marketOf(ctx context.Context, ticker string) (domain.Market, error) {
	var market string
	err := s.db.QueryRowContext(ctx,
		`SELECT market FROM listings WHERE ticker = ?`, ticker).Scan(&market)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query market for %s: %w", ticker, err)
	}
	return domain.Market(market), nil
}

// closesAndChanges loads each ticker's close series plus today's percent
// change in one pass over the bar table.
func (s *Store) closesAndChanges(ctx context.Context, tickers []string) (map[string][]float64, map[string]float64, error) {
	window := s.leaderCfg.Window + 1
	closes := make(map[string][]float64, len(tickers))
	changes := make(map[string]float64, len(tickers))
	for _, ticker := range tickers {
		series, err := s.Series(ctx, ticker, window)
		if err != nil {
			return nil, nil, err
		}
		if series.Len() == 0 {
			continue
		}
		closes[ticker] = series.Closes()
		if n := series.Len(); n >= 2 {
			prev := series.Bars[n-2].Close
			if prev > 0 {
				changes[ticker] = (series.Bars[n-1].Close - prev) / prev * 100
			}
		}
	}
	return closes, changes, nil
}

// leaderTickers picks the most liquid half of the tick's tickers as leader
// candidates, capped at 50 so the pairwise correlation stays cheap.
func (s *Store) leaderTickers(closes map[string][]float64) []string {
	type liquid struct {
		ticker string
		value  float64
	}
	rows, err := s.db.Query(`SELECT ticker, avg_value FROM listings ORDER BY avg_value DESC`)
	if err != nil {
		s.log.Warn().Err(err).Msg("leader candidates unavailable, sympathy scoring disabled")
		return nil
	}
	defer rows.Close()

	var ranked []liquid
	for rows.Next() {
		var l liquid
		if err := rows.Scan(&l.ticker, &l.value); err != nil {
			return nil
		}
		if _, ok := closes[l.ticker]; ok {
			ranked = append(ranked, l)
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].value > ranked[j].value })

	limit := len(ranked) / 2
	if limit > 50 {
		limit = 50
	}
	leaders := make([]string, 0, limit)
	for _, l := range ranked[:limit] {
		leaders = append(leaders, l.ticker)
	}
	return leaders
}
