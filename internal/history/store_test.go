package history

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junghoon-woo/danta/internal/domain"
)

func testStore(t *testing.T) (*Store, *sql.DB) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	db.SetMaxOpenConns(1)
	_, err = db.Exec(Schema)
	require.NoError(t, err)

	clock := domain.ClockFunc(func() time.Time {
		return time.Date(2026, 8, 25, 10, 0, 0, 0, domain.MarketLocation())
	})
	return NewStore(db, clock, zerolog.Nop()), db
}

func seedBars(t *testing.T, db *sql.DB, ticker string, start time.Time, closes []float64) {
	t.Helper()
	for i, c := range closes {
		date := start.AddDate(0, 0, i).Format("2006-01-02")
		_, err := db.Exec(`
			INSERT INTO price_bars (ticker, date, open, high, low, close, volume)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			ticker, date, c, c*1.01, c*0.99, c, 100000+float64(i))
		require.NoError(t, err)
	}
}

func TestSeries_AscendingAndCapped(t *testing.T) {
	s, db := testStore(t)
	start := time.Date(2026, 5, 1, 0, 0, 0, 0, domain.MarketLocation())
	closes := make([]float64, 10)
	for i := range closes {
		closes[i] = 1000 + float64(i)*10
	}
	seedBars(t, db, "005930", start, closes)
	_, err := db.Exec(`INSERT INTO listings (ticker, name, market, marcap, avg_value, shares)
		VALUES ('005930', 'Samsung', 'KOSPI', 4e14, 5e11, 5969782550)`)
	require.NoError(t, err)

	series, err := s.Series(context.Background(), "005930", 5)
	require.NoError(t, err)
	require.Equal(t, 5, series.Len())
	assert.Equal(t, domain.MarketKOSPI, series.Market)
	// Newest five bars, oldest first.
	assert.Equal(t, 1050.0, series.Bars[0].Close)
	assert.Equal(t, 1090.0, series.Last().Close)
	require.NoError(t, series.Validate())
}

func TestSeries_UnknownTickerIsEmptyNotError(t *testing.T) {
	s, _ := testStore(t)
	series, err := s.Series(context.Background(), "999999", 120)
	require.NoError(t, err)
	assert.Zero(t, series.Len())
}

func TestListings(t *testing.T) {
	s, db := testStore(t)
	_, err := db.Exec(`INSERT INTO listings (ticker, name, market, marcap, avg_value, shares) VALUES
		('005930', 'Samsung', 'KOSPI', 4e14, 5e11, 100),
		('035720', 'Kakao', 'KOSPI', 2e13, 1e11, 200)`)
	require.NoError(t, err)

	stocks, err := s.Listings(context.Background())
	require.NoError(t, err)
	require.Len(t, stocks, 2)
	assert.Equal(t, "005930", stocks[0].Ticker)
	assert.Equal(t, 5e11, stocks[0].AvgValue)
}

func TestMacroChange(t *testing.T) {
	s, db := testStore(t)
	_, err := db.Exec(`INSERT INTO index_bars (symbol, date, close) VALUES
		('COMP', '2026-08-22', 20000),
		('COMP', '2026-08-24', 19500)`)
	require.NoError(t, err)

	change, err := s.MacroChange(context.Background(), "COMP")
	require.NoError(t, err)
	assert.InDelta(t, -2.5, change, 1e-9)

	// A single close cannot produce a change.
	change, err = s.MacroChange(context.Background(), "SPX")
	require.NoError(t, err)
	assert.Zero(t, change)
}

func TestSideData_FlowsChangesAndLeaders(t *testing.T) {
	s, db := testStore(t)

	start := time.Date(2026, 4, 1, 0, 0, 0, 0, domain.MarketLocation())
	lead := make([]float64, 70)
	follow := make([]float64, 70)
	for i := range lead {
		lead[i] = 1000 + float64(i)*10
		follow[i] = 500 + float64(i)*5 // perfectly correlated returns shape
	}
	seedBars(t, db, "LEAD01", start, lead)
	seedBars(t, db, "FOLL01", start, follow)
	_, err := db.Exec(`INSERT INTO listings (ticker, name, market, marcap, avg_value, shares) VALUES
		('LEAD01', 'Leader', 'KOSPI', 1e14, 9e11, 100),
		('FOLL01', 'Follower', 'KOSDAQ', 1e12, 1e10, 100)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO market_flows
		(ticker, date, foreign_net_5d, inst_net_5d, buy_strength, disclosure_score, short_change)
		VALUES ('FOLL01', '2026-08-25', 120000, -30000, 110, 2, -0.5)`)
	require.NoError(t, err)

	side, err := s.SideData(context.Background(), []string{"LEAD01", "FOLL01"})
	require.NoError(t, err)

	flow := side.Extras.FlowFor("FOLL01")
	assert.Equal(t, 120000.0, flow.ForeignNet5D)
	assert.Equal(t, -30000.0, flow.InstNet5D)
	assert.Equal(t, 110.0, side.BuyStrength["FOLL01"])
	assert.Equal(t, 2.0, side.Extras.DisclosureFor("FOLL01"))

	change, ok := side.Extras.ChangeFor("LEAD01")
	require.True(t, ok)
	assert.Greater(t, change, 0.0)

	refs := side.Extras.LeadersFor("FOLL01")
	require.NotEmpty(t, refs, "perfectly correlated pair must appear in the leader map")
	assert.Equal(t, "LEAD01", refs[0].Leader)
	assert.Greater(t, refs[0].Correlation, 0.9)
}

func TestLastQuote(t *testing.T) {
	s, db := testStore(t)
	start := time.Date(2026, 8, 21, 0, 0, 0, 0, domain.MarketLocation())
	seedBars(t, db, "005930", start, []float64{70000, 71400})

	q, err := s.LastQuote(context.Background(), "005930")
	require.NoError(t, err)
	assert.Equal(t, 71400.0, q.Price)
	assert.Equal(t, 70000.0, q.PrevClose)
	assert.InDelta(t, 2.0, q.ChangePct, 1e-9)

	_, err = s.LastQuote(context.Background(), "000000")
	assert.Error(t, err)
}

func TestTickers(t *testing.T) {
	s, db := testStore(t)
	start := time.Date(2026, 8, 24, 0, 0, 0, 0, domain.MarketLocation())
	for i, ticker := range []string{"B", "A", "C"} {
		seedBars(t, db, ticker, start, []float64{1000 + float64(i)})
	}
	tickers, err := s.Tickers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, tickers)
}
