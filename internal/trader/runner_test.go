package trader

import (
	"context"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junghoon-woo/danta/internal/alert"
	"github.com/junghoon-woo/danta/internal/config"
	"github.com/junghoon-woo/danta/internal/domain"
	"github.com/junghoon-woo/danta/internal/executor"
	"github.com/junghoon-woo/danta/internal/journal"
)

type fakeFactory struct {
	e      *env
	quotes quoteMap
	cash   float64
	failID int64
}

func (f *fakeFactory) ForUser(_ context.Context, u domain.User) (executor.Executor, error) {
	if u.ID == f.failID {
		return nil, fmt.Errorf("no credentials on file")
	}
	return executor.NewPaper(executor.PaperConfig{
		UserID: u.ID, Cash: f.cash, Fees: f.e.fees,
	}, f.quotes, f.e.clock, zerolog.Nop()), nil
}

type fixedMacro float64

func (m fixedMacro) MacroChange(context.Context, string) (float64, error) {
	return float64(m), nil
}

func TestRunnerTickIsolatesFailingUsers(t *testing.T) {
	e := newEnv(t)
	log := zerolog.Nop()
	users := journal.NewUserRepository(e.db, log)

	good := testUser(domain.ModeAuto)
	good.Name = "good"
	require.NoError(t, users.Create(&good))
	bad := testUser(domain.ModeAuto)
	bad.Name = "bad"
	require.NoError(t, users.Create(&bad))

	alerts := alert.NewService(journal.NewAlertRepository(e.db, log), e.notifier, e.clock, log)
	factory := &fakeFactory{e: e, quotes: quoteMap{"005930": 70_000}, cash: 5_000_000, failID: bad.ID}
	runner := NewRunner(e.ctrl, users, factory, fixedMacro(0), config.TradingConfig{
		MacroTicker: "COMP", Parallelism: 2,
	}, alerts, log)

	snap := testSnap(row("005930", 70_000, 80))
	require.NoError(t, runner.Tick(context.Background(), snap))

	goodOrders, err := e.journal.Orders.History(good.ID, 10)
	require.NoError(t, err)
	assert.Len(t, goodOrders, 1, "the healthy user trades despite the broken one")

	badOrders, err := e.journal.Orders.History(bad.ID, 10)
	require.NoError(t, err)
	assert.Empty(t, badOrders)
	assert.Contains(t, e.notifier.titles(), alert.KindConfig)
}

func TestRunnerMacroShrinksAllBudgets(t *testing.T) {
	e := newEnv(t)
	log := zerolog.Nop()
	users := journal.NewUserRepository(e.db, log)

	u := testUser(domain.ModeAuto)
	require.NoError(t, users.Create(&u))

	alerts := alert.NewService(journal.NewAlertRepository(e.db, log), e.notifier, e.clock, log)
	factory := &fakeFactory{e: e, quotes: quoteMap{"005930": 70_000}, cash: 5_000_000}
	// A -2.5% NASDAQ session halves every budget on the tick.
	runner := NewRunner(e.ctrl, users, factory, fixedMacro(-2.5), config.TradingConfig{
		MacroTicker: "COMP", Parallelism: 1,
	}, alerts, log)

	require.NoError(t, runner.Tick(context.Background(), testSnap(row("005930", 70_000, 80))))

	orders, err := e.journal.Orders.History(u.ID, 10)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.EqualValues(t, 7, orders[0].Quantity)
}
