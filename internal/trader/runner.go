package trader

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/junghoon-woo/danta/internal/alert"
	"github.com/junghoon-woo/danta/internal/config"
	"github.com/junghoon-woo/danta/internal/domain"
	"github.com/junghoon-woo/danta/internal/executor"
	"github.com/junghoon-woo/danta/internal/journal"
	"github.com/junghoon-woo/danta/internal/risk"
	"github.com/junghoon-woo/danta/internal/snapshot"
)

// ExecutorFactory builds the executor a user trades through. Live accounts
// get a fresh broker client per user so credentials and token state never
// cross accounts; paper accounts get a simulator seeded from the journal.
type ExecutorFactory interface {
	ForUser(ctx context.Context, u domain.User) (executor.Executor, error)
}

// MacroSource yields the previous session's percent change for an index
// symbol. The history store implements it.
type MacroSource interface {
	MacroChange(ctx context.Context, symbol string) (float64, error)
}

// Runner fans one snapshot out to every enabled user. Users run concurrently
// under a parallelism cap; each user gets the full tick deadline.
type Runner struct {
	controller  *Controller
	users       *journal.UserRepository
	factory     ExecutorFactory
	macro       MacroSource
	macroTicker string
	alerts      *alert.Service
	parallelism int
	deadline    time.Duration
	log         zerolog.Logger
}

// NewRunner wires a runner. macro may be nil to disable the macro gate.
func NewRunner(controller *Controller, users *journal.UserRepository, factory ExecutorFactory,
	macro MacroSource, cfg config.TradingConfig, alerts *alert.Service, log zerolog.Logger) *Runner {
	parallelism := cfg.Parallelism
	if parallelism <= 0 {
		parallelism = 1
	}
	return &Runner{
		controller:  controller,
		users:       users,
		factory:     factory,
		macro:       macro,
		macroTicker: cfg.MacroTicker,
		alerts:      alerts,
		parallelism: parallelism,
		deadline:    cfg.TickDeadline,
		log:         log.With().Str("component", "trader").Logger(),
	}
}

// Tick runs every enabled user against the snapshot. Per-user failures are
// alerted and logged, never propagated: one user cannot fail the tick.
func (r *Runner) Tick(ctx context.Context, snap *snapshot.Snapshot) error {
	users, err := r.users.ListEnabled()
	if err != nil {
		return fmt.Errorf("failed to list enabled users: %w", err)
	}
	if len(users) == 0 {
		r.log.Debug().Msg("no enabled users")
		return nil
	}

	mult := r.macroMultiplier(ctx)
	r.log.Info().Int("users", len(users)).Float64("macro_mult", mult).
		Int("rows", snap.Len()).Bool("degraded", snap.Degraded).Msg("tick started")

	sem := make(chan struct{}, r.parallelism)
	var wg sync.WaitGroup
	for _, u := range users {
		wg.Add(1)
		go func(u domain.User) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			r.runOne(ctx, u, snap, mult)
		}(u)
	}
	wg.Wait()
	return nil
}

func (r *Runner) runOne(ctx context.Context, u domain.User, snap *snapshot.Snapshot, mult float64) {
	userCtx := ctx
	var cancel context.CancelFunc
	if r.deadline > 0 {
		userCtx, cancel = context.WithTimeout(ctx, r.deadline)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error().Int64("user_id", u.ID).Interface("panic", rec).Msg("user tick panicked")
			r.alerts.Emit(ctx, domain.AlertCritical, u.ID, "", alert.KindInternal,
				fmt.Sprintf("user tick panicked: %v", rec))
		}
	}()

	ex, err := r.factory.ForUser(userCtx, u)
	if err != nil {
		r.alerts.Emit(ctx, domain.AlertCritical, u.ID, "", alert.KindConfig,
			fmt.Sprintf("failed to build executor: %v", err))
		return
	}
	if err := r.controller.RunUser(userCtx, u, ex, snap, mult); err != nil {
		r.log.Error().Err(err).Int64("user_id", u.ID).Msg("user tick failed")
		r.alerts.Emit(ctx, domain.AlertWarning, u.ID, "", alert.KindTickFailed, err.Error())
	}
}

// macroMultiplier maps the previous NASDAQ session onto a budget scale.
// Missing macro data means full budgets, not a frozen engine.
func (r *Runner) macroMultiplier(ctx context.Context) float64 {
	if r.macro == nil || r.macroTicker == "" {
		return 1.0
	}
	chg, err := r.macro.MacroChange(ctx, r.macroTicker)
	if err != nil {
		r.log.Warn().Err(err).Str("symbol", r.macroTicker).Msg("macro change unavailable")
		return 1.0
	}
	return risk.MacroMultiplier(chg)
}
