package trader

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/junghoon-woo/danta/internal/clients/kis"
	"github.com/junghoon-woo/danta/internal/config"
	"github.com/junghoon-woo/danta/internal/domain"
	"github.com/junghoon-woo/danta/internal/executor"
	"github.com/junghoon-woo/danta/internal/journal"
)

// Factory builds executors from user records. Live users get their own KIS
// client; paper users get a simulator seeded from the journaled virtual
// balance and holdings, priced off the history store.
type Factory struct {
	cfg      *config.Config
	balances *journal.BalanceRepository
	holdings *journal.HoldingRepository
	prices   executor.PriceSource
	clock    domain.Clock
	log      zerolog.Logger
}

var _ ExecutorFactory = (*Factory)(nil)

func NewFactory(cfg *config.Config, balances *journal.BalanceRepository,
	holdings *journal.HoldingRepository, prices executor.PriceSource,
	clock domain.Clock, log zerolog.Logger) *Factory {
	return &Factory{
		cfg:      cfg,
		balances: balances,
		holdings: holdings,
		prices:   prices,
		clock:    clock,
		log:      log,
	}
}

// ForUser builds the user's executor for this tick.
func (f *Factory) ForUser(ctx context.Context, u domain.User) (executor.Executor, error) {
	if u.IsPaper {
		return f.paper(u)
	}
	return f.live(u)
}

func (f *Factory) paper(u domain.User) (executor.Executor, error) {
	cash, err := f.balances.Get(u.ID, f.cfg.Trading.PaperSeed)
	if err != nil {
		return nil, fmt.Errorf("failed to load virtual balance: %w", err)
	}
	recs, err := f.holdings.ListByUser(u.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load journaled holdings: %w", err)
	}
	holdings := make([]domain.Holding, 0, len(recs))
	for _, rec := range recs {
		holdings = append(holdings, rec.Holding)
	}
	return executor.NewPaper(executor.PaperConfig{
		UserID:   u.ID,
		Cash:     cash,
		Holdings: holdings,
		Fees:     f.cfg.Trading.Fees,
		DryRun:   f.cfg.Trading.DryRun,
	}, f.prices, f.clock, f.log), nil
}

// live builds a per-user broker client. Users without their own credentials
// fall back to the engine-wide KIS settings.
func (f *Factory) live(u domain.User) (executor.Executor, error) {
	key, secret, account := u.AppKey, u.AppSecret, u.AccountNo
	if key == "" {
		key, secret = f.cfg.KIS.AppKey, f.cfg.KIS.AppSecret
	}
	if account == "" {
		account = f.cfg.KIS.AccountNo
	}
	client, err := kis.NewClient(kis.Config{
		BaseURL:    f.cfg.KIS.BaseURL,
		AppKey:     key,
		AppSecret:  secret,
		AccountNo:  account,
		IsPaper:    false,
		Timeout:    f.cfg.KIS.Timeout,
		MinDelay:   f.cfg.KIS.MinDelay,
		MaxRetries: f.cfg.KIS.MaxRetries,
	}, f.log)
	if err != nil {
		return nil, fmt.Errorf("failed to build broker client: %w", err)
	}
	return executor.NewLive(client, f.cfg.Trading.DryRun, f.log), nil
}
