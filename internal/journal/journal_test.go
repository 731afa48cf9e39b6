package journal

import (
	"database/sql"
	"testing"
	"time"

	_ "modernc.org/sqlite"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junghoon-woo/danta/internal/domain"
)

func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	// The in-memory database vanishes if the pool opens a second connection.
	db.SetMaxOpenConns(1)
	_, err = db.Exec(Schema)
	require.NoError(t, err)
	return db
}

func nopLog() zerolog.Logger { return zerolog.Nop() }

func TestUserRepository_CreateAndListEnabled(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db, nopLog())

	enabled := domain.User{
		Name:    "auto",
		IsPaper: true,
		AppKey:  "key", AppSecret: "secret",
		Policy: domain.UserPolicy{
			Mode: domain.ModeAuto, Enabled: true, ScoreVersion: "v2",
			BuyConditions: "V1>=60 AND V5>=50", MinBuyScore: 60, SellScore: 40,
			StopLossRate: 7, MaxHoldings: 5, ExpireHours: 24,
		},
	}
	disabled := domain.User{
		Name:   "idle",
		Policy: domain.UserPolicy{Mode: domain.ModeManual, MaxHoldings: 3},
	}
	require.NoError(t, repo.Create(&enabled))
	require.NoError(t, repo.Create(&disabled))
	require.NotZero(t, enabled.ID)

	users, err := repo.ListEnabled()
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "auto", users[0].Name)
	assert.Equal(t, domain.ModeAuto, users[0].Policy.Mode)
	assert.Equal(t, "V1>=60 AND V5>=50", users[0].Policy.BuyConditions)
	assert.Equal(t, "key", users[0].AppKey)
	assert.True(t, users[0].IsPaper)

	got, err := repo.Get(disabled.ID)
	require.NoError(t, err)
	assert.False(t, got.Policy.Enabled)
	assert.Empty(t, got.AppKey)

	_, err = repo.Get(999)
	assert.Error(t, err)
}

func TestUserSettings_GapLimitDefaultKeepsTheGate(t *testing.T) {
	db := testDB(t)
	repo := NewUserRepository(db, nopLog())

	// A settings row written without the column, as a manual SQL insert or an
	// older writer would, must still carry the 15% gap gate.
	_, err := db.Exec(`INSERT INTO users (name, is_paper, created_at) VALUES ('bare', 1, 0)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO user_settings (user_id, updated_at) VALUES (1, 0)`)
	require.NoError(t, err)

	u, err := repo.Get(1)
	require.NoError(t, err)
	assert.EqualValues(t, 15, u.Policy.GapLimitPct)
}

func TestOrderRepository_TradedTodayBlacklist(t *testing.T) {
	db := testDB(t)
	repo := NewOrderRepository(db, nopLog())

	now := time.Date(2026, 8, 25, 10, 0, 0, 0, domain.MarketLocation())
	date := domain.MarketDate(now)

	record := func(ticker string, side domain.OrderSide, status domain.OrderStatus) {
		require.NoError(t, repo.Record(&domain.Order{
			UserID: 1, Ticker: ticker, Side: side, Quantity: 10, Price: 1000,
			PlacedAt: now, Status: status,
		}))
	}
	record("005930", domain.SideBuy, domain.OrderExecuted)
	record("000660", domain.SideSell, domain.OrderExecuted)
	record("035720", domain.SideBuy, domain.OrderCancelled) // not executed
	record("005380", domain.SideBuy, domain.OrderDryRun)    // not executed

	black, err := repo.TradedToday(1, date)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"005930": true, "000660": true}, black)

	// Another user's trades never leak into the blacklist.
	other, err := repo.TradedToday(2, date)
	require.NoError(t, err)
	assert.Empty(t, other)

	n, err := repo.CountExecutedToday(1, date)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestHoldingRepository_LatchRoundTrip(t *testing.T) {
	db := testDB(t)
	repo := NewHoldingRepository(db, nopLog())

	opened := time.Date(2026, 8, 20, 9, 30, 0, 0, domain.MarketLocation())
	recs := []HoldingRecord{
		{
			Holding: domain.Holding{
				UserID: 1, Ticker: "005930", Name: "삼성전자", Market: domain.MarketKOSPI,
				Quantity: 10, AvgPrice: 70000, CurrentPrice: 71000, ProfitRate: 1.43,
				OpenedAt: opened,
			},
			AboveMA20:     true,
			TrailingArmed: true,
			Plan:          &domain.ExitPlan{Entry: 70000, TargetPrice: 77000, StopPrice: 66500, TrailingTrigger: 74000, MaxHoldDays: 10, ATR: 1500},
		},
	}
	require.NoError(t, repo.SaveAll(1, recs))

	got, err := repo.ListByUser(1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.True(t, got[0].AboveMA20)
	assert.True(t, got[0].TrailingArmed)
	require.NotNil(t, got[0].Plan)
	assert.Equal(t, 77000.0, got[0].Plan.TargetPrice)
	assert.Equal(t, opened.Unix(), got[0].OpenedAt.Unix())

	// A full resync with no positions clears the view.
	require.NoError(t, repo.SaveAll(1, nil))
	got, err = repo.ListByUser(1)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSuggestionRepository_Lifecycle(t *testing.T) {
	db := testDB(t)
	repo := NewSuggestionRepository(db, nopLog())

	now := time.Now()
	s := domain.Suggestion{
		UserID: 1, Ticker: "035720", Score: 72, RecommendedPrice: 45000,
		Status: domain.SuggestionPending, CreatedAt: now, ExpiresAt: now.Add(24 * time.Hour),
	}
	require.NoError(t, repo.Create(&s))
	require.NotEmpty(t, s.ID)

	stale := domain.Suggestion{
		UserID: 1, Ticker: "000660", Score: 65, RecommendedPrice: 120000,
		Status: domain.SuggestionPending, CreatedAt: now.Add(-48 * time.Hour),
		ExpiresAt: now.Add(-24 * time.Hour),
	}
	require.NoError(t, repo.Create(&stale))

	expired, err := repo.ExpirePending(now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, expired)

	pending, err := repo.PendingTickers(1)
	require.NoError(t, err)
	assert.Equal(t, map[string]bool{"035720": true}, pending)

	require.NoError(t, repo.Approve(s.ID))
	got, err := repo.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SuggestionApproved, got.Status)

	// Approving again is not a pending transition.
	err = repo.Approve(s.ID)
	assert.ErrorIs(t, err, ErrSuggestionNotPending)

	// The operator records the execution; it only applies once.
	require.NoError(t, repo.MarkExecuted(s.ID))
	got, err = repo.Get(s.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SuggestionExecuted, got.Status)
	assert.ErrorIs(t, repo.MarkExecuted(s.ID), ErrSuggestionNotApproved)
}

func TestAlertRepository_DedupePerUserTickerKindDay(t *testing.T) {
	db := testDB(t)
	repo := NewAlertRepository(db, nopLog())

	a := domain.Alert{
		Level: domain.AlertWarning, UserID: 1, Ticker: "005930",
		Title: "ALERT_BROKER", Message: "timeout", CreatedAt: time.Now(),
	}
	fresh, err := repo.Record(a)
	require.NoError(t, err)
	assert.True(t, fresh)

	dup, err := repo.Record(a)
	require.NoError(t, err)
	assert.False(t, dup, "same (user,ticker,kind,day) must dedupe")

	a.Ticker = "000660"
	fresh, err = repo.Record(a)
	require.NoError(t, err)
	assert.True(t, fresh)

	recent, err := repo.Recent(10)
	require.NoError(t, err)
	assert.Len(t, recent, 2)
}

func TestPerfRepository_UpsertOneRowPerDay(t *testing.T) {
	db := testDB(t)
	repo := NewPerfRepository(db, nopLog())

	p := domain.DailyPerf{UserID: 1, Date: "2026-08-25", TotalAssets: 10_000_000, D2Cash: 4_000_000, NumHoldings: 3}
	require.NoError(t, repo.Upsert(p))

	p.TotalAssets = 10_250_000
	p.NumHoldings = 4
	require.NoError(t, repo.Upsert(p))

	got, err := repo.Latest(1)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 10_250_000.0, got.TotalAssets)
	assert.Equal(t, 4, got.NumHoldings)

	rows, err := repo.Range(1, "2026-08-01", "2026-08-31")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestDayLockRepository_LatchWithoutTouchingConfig(t *testing.T) {
	db := testDB(t)
	locks := NewDayLockRepository(db, nopLog())

	locked, err := locks.IsLocked(1, "2026-08-25")
	require.NoError(t, err)
	assert.False(t, locked)

	require.NoError(t, locks.Lock(1, "2026-08-25", "broker rejected credentials"))
	require.NoError(t, locks.Lock(1, "2026-08-25", "second reason ignored"))

	locked, err = locks.IsLocked(1, "2026-08-25")
	require.NoError(t, err)
	assert.True(t, locked)

	// Next day starts clean.
	locked, err = locks.IsLocked(1, "2026-08-26")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestBalanceRepository_SeedAndSave(t *testing.T) {
	db := testDB(t)
	repo := NewBalanceRepository(db, nopLog())

	cash, err := repo.Get(1, 10_000_000)
	require.NoError(t, err)
	assert.Equal(t, 10_000_000.0, cash)

	require.NoError(t, repo.Save(1, 7_500_000))
	cash, err = repo.Get(1, 10_000_000)
	require.NoError(t, err)
	assert.Equal(t, 7_500_000.0, cash)
}
