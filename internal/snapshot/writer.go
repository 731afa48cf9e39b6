package snapshot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/junghoon-woo/danta/internal/domain"
	"github.com/junghoon-woo/danta/internal/indicator"
	"github.com/junghoon-woo/danta/internal/scoring"
)

const (
	// minSnapshotBars is the series length below which a ticker is dropped
	// from the snapshot without an alert.
	minSnapshotBars = 60

	// degradedFloorMultiple scales the liquidity floor when the build runs
	// out of its latency budget: only tickers this many times above the
	// floor are still scored.
	degradedFloorMultiple = 5

	defaultWorkers = 40
	defaultMaxBars = 150
)

// SideData carries the per-ticker inputs that do not derive from the daily
// price series: investor flows, disclosure and short-interest scores, the
// leader map and intraday execution strength.
type SideData struct {
	Extras      *scoring.Extras
	BuyStrength map[string]float64
}

func (d *SideData) extras() *scoring.Extras {
	if d == nil {
		return nil
	}
	return d.Extras
}

func (d *SideData) buyStrengthFor(ticker string) float64 {
	if d == nil || d.BuyStrength == nil {
		return 0
	}
	return d.BuyStrength[ticker]
}

// SideDataProvider loads side data for the tick's tickers. The history store
// implements it from the collector-maintained tables. A failure is logged and
// the build continues without side inputs.
type SideDataProvider interface {
	SideData(ctx context.Context, tickers []string) (*SideData, error)
}

// Config controls the snapshot fan-out.
type Config struct {
	Workers        int           // concurrent per-ticker builders
	MaxBars        int           // daily bars fetched per ticker
	RetryCount     int           // series fetch retries before dropping
	LiquidityFloor float64       // prior traded-value floor, KRW
	DegradeAfter   time.Duration // latency budget; 0 disables degraded mode
}

// Writer builds one snapshot per tick by scoring every universe ticker
// through a bounded worker pool.
type Writer struct {
	provider domain.MarketDataProvider
	cache    *indicator.Cache
	engine   *scoring.Engine
	side     SideDataProvider
	notifier domain.Notifier
	cfg      Config
	clock    domain.Clock
	log      zerolog.Logger
}

// NewWriter wires a snapshot writer. side and notifier may be nil.
func NewWriter(provider domain.MarketDataProvider, cache *indicator.Cache, engine *scoring.Engine, side SideDataProvider, notifier domain.Notifier, cfg Config, clock domain.Clock, log zerolog.Logger) *Writer {
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.MaxBars <= 0 {
		cfg.MaxBars = defaultMaxBars
	}
	return &Writer{
		provider: provider,
		cache:    cache,
		engine:   engine,
		side:     side,
		notifier: notifier,
		cfg:      cfg,
		clock:    clock,
		log:      log.With().Str("component", "snapshot_writer").Logger(),
	}
}

// Build scores every universe ticker and assembles the tick's snapshot. When
// the build exceeds its latency budget it degrades to the top-liquidity
// subset and reports the tick as degraded.
func (w *Writer) Build(ctx context.Context, u *domain.Universe) (*Snapshot, error) {
	if u == nil || len(u.Stocks) == 0 {
		return nil, errors.New("empty universe")
	}

	tickTS := w.clock.Now().In(domain.MarketLocation()).Truncate(time.Minute)

	tickers := make([]string, len(u.Stocks))
	for i, stock := range u.Stocks {
		tickers[i] = stock.Ticker
	}
	side := w.loadSideData(ctx, tickers)

	start := time.Now()
	jobs := make(chan domain.Stock)
	out := make(chan Row, w.cfg.Workers)
	var degraded atomic.Bool
	var cut atomic.Int64

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for stock := range jobs {
				if ctx.Err() != nil {
					continue
				}
				if w.cfg.DegradeAfter > 0 && time.Since(start) > w.cfg.DegradeAfter {
					degraded.Store(true)
				}
				if degraded.Load() && stock.AvgValue < w.cfg.LiquidityFloor*degradedFloorMultiple {
					cut.Add(1)
					continue
				}
				if row, ok := w.buildRow(ctx, stock, side, tickTS); ok {
					out <- row
				}
			}
		}()
	}

	var rows []Row
	collected := make(chan struct{})
	go func() {
		defer close(collected)
		for row := range out {
			rows = append(rows, row)
		}
	}()

feed:
	for _, stock := range u.Stocks {
		select {
		case jobs <- stock:
		case <-ctx.Done():
			break feed
		}
	}
	close(jobs)
	wg.Wait()
	close(out)
	<-collected

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("snapshot build interrupted: %w", err)
	}
	if len(rows) == 0 {
		return nil, errors.New("snapshot build produced no rows")
	}

	applyRelativeStrength(rows)
	snap := New(tickTS, rows, degraded.Load())

	if snap.Degraded {
		w.log.Warn().
			Dur("budget", w.cfg.DegradeAfter).
			Int64("cut", cut.Load()).
			Int("rows", snap.Len()).
			Msg("snapshot degraded to top-liquidity subset")
		if w.notifier != nil {
			w.notifier.Notify(ctx, domain.Alert{
				Level:     domain.AlertWarning,
				Title:     "SNAPSHOT_DEGRADED",
				Message:   fmt.Sprintf("build exceeded %s; %d tickers cut, %d rows kept", w.cfg.DegradeAfter, cut.Load(), snap.Len()),
				CreatedAt: tickTS,
			})
		}
	}

	w.log.Info().
		Time("tick", tickTS).
		Int("universe", len(u.Stocks)).
		Int("rows", snap.Len()).
		Bool("degraded", snap.Degraded).
		Msg("snapshot built")
	return snap, nil
}

func (w *Writer) loadSideData(ctx context.Context, tickers []string) *SideData {
	if w.side == nil {
		return nil
	}
	data, err := w.side.SideData(ctx, tickers)
	if err != nil {
		w.log.Warn().Err(err).Msg("side data unavailable, scoring without flows")
		return nil
	}
	return data
}

// buildRow fetches one ticker's series, applies the skip rules and scores
// every registered version. ok is false when the ticker is dropped.
func (w *Writer) buildRow(ctx context.Context, stock domain.Stock, side *SideData, tickTS time.Time) (Row, bool) {
	series, err := w.fetchSeries(ctx, stock.Ticker)
	if err != nil {
		w.log.Warn().Err(err).Str("ticker", stock.Ticker).Msg("dropping ticker, series fetch failed")
		return Row{}, false
	}
	if series.Len() < minSnapshotBars {
		return Row{}, false
	}

	f, err := w.cache.GetOrCompute(series)
	if err != nil {
		w.log.Warn().Err(err).Str("ticker", stock.Ticker).Msg("dropping ticker, indicator compute failed")
		return Row{}, false
	}

	prevVolume := indicator.Prev(f.Volume, 1)
	if prevVolume <= 0 {
		return Row{}, false
	}
	prevAmount := indicator.Prev(f.TradingValue, 1)
	if w.cfg.LiquidityFloor > 0 && prevAmount < w.cfg.LiquidityFloor {
		return Row{}, false
	}

	results := w.engine.ScoreAll(f, side.extras())
	scores := make(map[string]int, len(results))
	var plans map[string]*domain.ExitPlan
	for version, res := range results {
		scores[version] = res.Score
		if res.ExitPlan != nil {
			if plans == nil {
				plans = make(map[string]*domain.ExitPlan)
			}
			plans[version] = res.ExitPlan
		}
	}
	var signals []string
	if v2 := results["v2"]; v2 != nil {
		signals = v2.Signals
	}

	proj := indicator.ProjectVolume(indicator.Last(f.Volume), indicator.Prev(f.VolumeMA5, 1), tickTS)
	flow := side.extras().FlowFor(stock.Ticker)

	return Row{
		Ticker:      stock.Ticker,
		Name:        stock.Name,
		Market:      stock.Market,
		Open:        indicator.Last(f.Open),
		High:        indicator.Last(f.High),
		Low:         indicator.Last(f.Low),
		Close:       indicator.Last(f.Close),
		PrevClose:   indicator.Prev(f.Close, 1),
		ChangePct:   indicator.Last(f.ChangePct),
		Volume:      indicator.Last(f.Volume),
		VolumeRatio: proj.Projected,
		PrevAmount:  prevAmount,
		PrevMarcap:  stock.MarketCap,
		BuyStrength: side.buyStrengthFor(stock.Ticker),
		ForeignNet:  flow.ForeignNet5D,
		InstNet:     flow.InstNet5D,
		Scores:      scores,
		Signals:     signals,
		Plans:       plans,
	}, true
}

func (w *Writer) fetchSeries(ctx context.Context, ticker string) (*domain.PriceSeries, error) {
	attempts := w.cfg.RetryCount + 1
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		series, err := w.provider.Series(ctx, ticker, w.cfg.MaxBars)
		if err == nil {
			return series, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

// applyRelativeStrength centres each row's change on the tick's universe
// mean, so a flat stock on a falling day still shows positive strength.
func applyRelativeStrength(rows []Row) {
	var sum float64
	for i := range rows {
		sum += rows[i].ChangePct
	}
	mean := sum / float64(len(rows))
	for i := range rows {
		rows[i].RelStrength = rows[i].ChangePct - mean
	}
}
