// Command danta runs the KRX intraday trading engine: the pre-open universe
// filter, the snapshot-and-trade tick, and the long-running daemon with the
// operator API.
//
// Exit codes: 0 success, 1 argument error, 2 snapshot stale or missing,
// 3 broker auth failure, 4 partial completion (some users failed).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/junghoon-woo/danta/internal/alert"
	"github.com/junghoon-woo/danta/internal/config"
	"github.com/junghoon-woo/danta/internal/database"
	"github.com/junghoon-woo/danta/internal/domain"
	"github.com/junghoon-woo/danta/internal/history"
	"github.com/junghoon-woo/danta/internal/indicator"
	"github.com/junghoon-woo/danta/internal/journal"
	"github.com/junghoon-woo/danta/internal/reliability"
	"github.com/junghoon-woo/danta/internal/scheduler"
	"github.com/junghoon-woo/danta/internal/scoring"
	"github.com/junghoon-woo/danta/internal/server"
	"github.com/junghoon-woo/danta/internal/snapshot"
	"github.com/junghoon-woo/danta/internal/trader"
	"github.com/junghoon-woo/danta/internal/universe"
)

const (
	exitOK = iota
	exitUsage
	exitSnapshotStale
	exitBrokerAuth
	exitPartial
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	if len(args) == 0 {
		usage()
		return exitUsage
	}

	cmd, rest := args[0], args[1:]
	switch cmd {
	case "filter", "snapshot", "trade", "serve":
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", cmd)
		usage()
		return exitUsage
	}

	app, err := newApp()
	if err != nil {
		fmt.Fprintln(os.Stderr, "startup failed:", err)
		return exitUsage
	}
	defer app.close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case "filter":
		return app.cmdFilter(ctx)
	case "snapshot":
		return app.cmdSnapshot(ctx, rest)
	case "trade":
		return app.cmdTrade(ctx, rest)
	default:
		return app.cmdServe(ctx)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, `usage: danta <command> [flags]

commands:
  filter      rebuild the pre-open tradable universe
  snapshot    build one score snapshot [--run-users] [--dry-run]
  trade       run user ticks against the latest snapshot (--all | --user <id>) [--dry-run]
  serve       run the scheduler daemon with the operator API`)
}

// app is the wired engine. Every command shares this object graph; commands
// differ only in which part they drive.
type app struct {
	cfg   *config.Config
	log   zerolog.Logger
	db    *database.DB
	clock domain.Clock

	users       *journal.UserRepository
	orders      *journal.OrderRepository
	suggestions *journal.SuggestionRepository
	perf        *journal.PerfRepository
	locks       *journal.DayLockRepository

	alerts    *alert.Service
	hist      *history.Store
	universe  *universe.Service
	snapshots *snapshot.Service
	snapStore *snapshot.Store
	runner    *trader.Runner
	ctrl      *trader.Controller
	factory   *trader.Factory
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := newLogger(cfg)

	db, err := database.New(database.Config{
		Path:    cfg.DatabasePath(),
		Profile: database.ProfileLedger,
		Name:    "danta",
	})
	if err != nil {
		return nil, err
	}
	if err := db.ApplySchema(journal.Schema); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.ApplySchema(history.Schema); err != nil {
		db.Close()
		return nil, err
	}

	clock := domain.SystemClock()
	conn := db.Conn()

	users := journal.NewUserRepository(conn, log)
	orders := journal.NewOrderRepository(conn, log)
	holdings := journal.NewHoldingRepository(conn, log)
	suggestions := journal.NewSuggestionRepository(conn, log)
	perf := journal.NewPerfRepository(conn, log)
	balances := journal.NewBalanceRepository(conn, log)
	locks := journal.NewDayLockRepository(conn, log)

	alerts := alert.NewService(journal.NewAlertRepository(conn, log),
		alert.NewLogNotifier(log), clock, log)

	hist := history.NewStore(conn, clock, log)
	cache := indicator.NewCache(4096, 2*time.Minute, clock, log)

	rules, err := loadRules(cfg.RulesPath)
	if err != nil {
		db.Close()
		return nil, err
	}
	engine := scoring.NewEngine(scoring.NewRegistry(rules), log, func(version, ticker string, serr error) {
		alerts.Emit(context.Background(), domain.AlertWarning, 0, ticker,
			alert.KindInternal, fmt.Sprintf("scorer %s failed: %v", version, serr))
	})

	universeSvc := universe.NewService(hist, universe.NewStore(cfg.UniverseDir(), log),
		cfg.Universe, clock, log)

	snapStore := snapshot.NewStore(cfg.SnapshotDir(), log)
	writer := snapshot.NewWriter(hist, cache, engine, hist, alerts, snapshot.Config{
		Workers:        cfg.Snapshot.Workers,
		MaxBars:        cfg.Snapshot.MaxBars,
		RetryCount:     cfg.Snapshot.RetryCount,
		LiquidityFloor: cfg.Universe.MinAvgValue * 5,
		DegradeAfter:   cfg.Trading.TickInterval / 2,
	}, clock, log)
	snapshots := snapshot.NewService(universeSvc, writer, snapStore, log)

	factory := trader.NewFactory(cfg, balances, holdings, hist, clock, log)
	ctrl := trader.NewController(trader.Journal{
		Orders:      orders,
		Holdings:    holdings,
		Suggestions: suggestions,
		Perf:        perf,
		Balances:    balances,
		Locks:       locks,
	}, alerts, hist, cache, trader.NewRegistry(), cfg.Trading.Fees, clock, log)
	runner := trader.NewRunner(ctrl, users, factory, hist, cfg.Trading, alerts, log)

	return &app{
		cfg:         cfg,
		log:         log,
		db:          db,
		clock:       clock,
		users:       users,
		orders:      orders,
		suggestions: suggestions,
		perf:        perf,
		locks:       locks,
		alerts:      alerts,
		hist:        hist,
		universe:    universeSvc,
		snapshots:   snapshots,
		snapStore:   snapStore,
		runner:      runner,
		ctrl:        ctrl,
		factory:     factory,
	}, nil
}

func (a *app) close() {
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.Error().Err(err).Msg("failed to close database")
		}
	}
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var log zerolog.Logger
	if cfg.LogJSON {
		log = zerolog.New(os.Stderr)
	} else {
		log = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.TimeOnly})
	}
	return log.Level(level).With().Timestamp().Logger()
}

func loadRules(path string) (*scoring.RuleSet, error) {
	if path == "" {
		return nil, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	rules, err := scoring.ParseRules(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to parse rules file: %w", err)
	}
	return rules, nil
}

func (a *app) cmdFilter(ctx context.Context) int {
	u, err := a.universe.Run(ctx)
	if err != nil {
		a.log.Error().Err(err).Msg("universe filter failed")
		return exitUsage
	}
	a.log.Info().Int("stocks", len(u.Stocks)).Msg("universe filter completed")
	return exitOK
}

func (a *app) cmdSnapshot(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("snapshot", flag.ContinueOnError)
	runUsers := fs.Bool("run-users", false, "run user ticks on the fresh snapshot")
	dryRun := fs.Bool("dry-run", false, "journal orders without placing them")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if *dryRun {
		a.cfg.Trading.DryRun = true
	}

	snap, err := a.snapshots.Tick(ctx)
	if err != nil {
		a.log.Error().Err(err).Msg("snapshot tick failed")
		return exitSnapshotStale
	}
	a.log.Info().Int("rows", snap.Len()).Bool("degraded", snap.Degraded).Msg("snapshot written")

	if *runUsers {
		if err := a.runner.Tick(ctx, snap); err != nil {
			a.log.Error().Err(err).Msg("trade pass failed")
			return exitPartial
		}
	}
	return exitOK
}

func (a *app) cmdTrade(ctx context.Context, args []string) int {
	fs := flag.NewFlagSet("trade", flag.ContinueOnError)
	all := fs.Bool("all", false, "process every enabled user")
	userID := fs.Int64("user", 0, "process one user id")
	dryRun := fs.Bool("dry-run", false, "journal orders without placing them")
	if err := fs.Parse(args); err != nil {
		return exitUsage
	}
	if !*all && *userID == 0 {
		fmt.Fprintln(os.Stderr, "trade needs --all or --user <id>")
		return exitUsage
	}
	if *dryRun {
		a.cfg.Trading.DryRun = true
	}

	snap, err := a.snapStore.Latest(a.clock.Now(), a.cfg.Snapshot.MaxAge)
	if err != nil {
		a.log.Error().Err(err).Msg("no usable snapshot")
		return exitSnapshotStale
	}

	if *all {
		return a.tradeAll(ctx, snap)
	}
	return a.tradeOne(ctx, snap, *userID)
}

func (a *app) tradeAll(ctx context.Context, snap *snapshot.Snapshot) int {
	users, err := a.users.ListEnabled()
	if err != nil {
		a.log.Error().Err(err).Msg("failed to list users")
		return exitPartial
	}
	failed := 0
	for _, u := range users {
		if code := a.tradeOne(ctx, snap, u.ID); code != exitOK {
			failed++
		}
	}
	if failed > 0 {
		a.log.Warn().Int("failed", failed).Int("total", len(users)).Msg("some users failed")
		return exitPartial
	}
	return exitOK
}

func (a *app) tradeOne(ctx context.Context, snap *snapshot.Snapshot, userID int64) int {
	u, err := a.users.Get(userID)
	if err != nil {
		a.log.Error().Err(err).Int64("user_id", userID).Msg("unknown user")
		return exitUsage
	}

	ex, err := a.factory.ForUser(ctx, *u)
	if err != nil {
		a.log.Error().Err(err).Int64("user_id", userID).Msg("failed to build executor")
		return exitBrokerAuth
	}

	date := domain.MarketDate(a.clock.Now())
	lockedBefore, _ := a.locks.IsLocked(userID, date)

	if err := a.ctrl.RunUser(ctx, *u, ex, snap, 1.0); err != nil {
		a.log.Error().Err(err).Int64("user_id", userID).Msg("user tick failed")
		return exitPartial
	}

	// A permanent broker failure latches a day lock mid-run.
	lockedAfter, _ := a.locks.IsLocked(userID, date)
	if !lockedBefore && lockedAfter {
		return exitBrokerAuth
	}
	return exitOK
}

func (a *app) cmdServe(ctx context.Context) int {
	pid, err := scheduler.AcquirePIDFile(a.cfg.PIDFilePath())
	if err != nil {
		a.log.Error().Err(err).Msg("engine already running")
		return exitUsage
	}
	defer func() {
		if err := pid.Release(); err != nil {
			a.log.Error().Err(err).Msg("failed to release pid file")
		}
	}()

	sched := scheduler.New(a.log)
	tick := &scheduler.TickJob{Snapshots: a.snapshots, Trader: a.runner, Clock: a.clock, Log: a.log}
	if err := sched.AddJob(scheduler.TickSpec(a.cfg.Trading.TickInterval), tick); err != nil {
		a.log.Error().Err(err).Msg("failed to register tick job")
		return exitUsage
	}
	if err := sched.AddJob(scheduler.UniverseSpec, &scheduler.UniverseJob{Universe: a.universe, Log: a.log}); err != nil {
		a.log.Error().Err(err).Msg("failed to register universe job")
		return exitUsage
	}
	if err := sched.AddJob(scheduler.MaintenanceSpec, &scheduler.MaintenanceJob{DB: a.db, Log: a.log}); err != nil {
		a.log.Error().Err(err).Msg("failed to register maintenance job")
		return exitUsage
	}

	if a.cfg.Archive.Enabled {
		store, err := reliability.NewS3Store(ctx, a.cfg.Archive, a.log)
		if err != nil {
			a.log.Error().Err(err).Msg("failed to build archive store")
			return exitUsage
		}
		archiver := reliability.NewArchiver(store, a.db, a.cfg.SnapshotDir(),
			a.cfg.Archive.Prefix, a.cfg.Archive.Keep, a.clock, a.log)
		if err := sched.AddJob(scheduler.ArchiveSpec, &scheduler.ArchiveJob{Archiver: archiver, Log: a.log}); err != nil {
			a.log.Error().Err(err).Msg("failed to register archive job")
			return exitUsage
		}
	}

	var srv *server.Server
	errCh := make(chan error, 1)
	if a.cfg.Server.Enabled {
		srv = server.New(server.Config{
			Port:        a.cfg.Server.Port,
			DB:          a.db,
			Users:       a.users,
			Suggestions: a.suggestions,
			Orders:      a.orders,
			Perf:        a.perf,
			Alerts:      a.alerts,
			Snapshots:   a.snapStore,
			SnapshotAge: a.cfg.Snapshot.MaxAge,
			Clock:       a.clock,
			Log:         a.log,
		})
		go func() { errCh <- srv.Start() }()
	}

	sched.Start()
	a.log.Info().Msg("danta engine running")

	select {
	case <-ctx.Done():
		a.log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			a.log.Error().Err(err).Msg("operator api failed")
		}
	}

	// Finish the in-flight tick before letting the process exit.
	sched.Stop()
	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error().Err(err).Msg("server shutdown failed")
		}
	}
	a.log.Info().Msg("danta engine stopped")
	return exitOK
}
