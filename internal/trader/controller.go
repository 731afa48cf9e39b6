// Package trader runs the per-user trading pass over each intraday snapshot:
// sells first, then buys, with every side effect journaled. A user's failure
// never touches another user's pass.
package trader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/junghoon-woo/danta/internal/alert"
	"github.com/junghoon-woo/danta/internal/clients/kis"
	"github.com/junghoon-woo/danta/internal/domain"
	"github.com/junghoon-woo/danta/internal/executor"
	"github.com/junghoon-woo/danta/internal/indicator"
	"github.com/junghoon-woo/danta/internal/journal"
	"github.com/junghoon-woo/danta/internal/policy"
	"github.com/junghoon-woo/danta/internal/risk"
	"github.com/junghoon-woo/danta/internal/snapshot"
)

// defaultSuggestionTTL applies when a semi-mode policy has no expire_hours.
const defaultSuggestionTTL = 24 * time.Hour

// buyBandPct widens the recommended price into the band a semi-mode user may
// still buy at after a small move.
const buyBandPct = 1.0

// Journal bundles the repositories the controller writes through.
type Journal struct {
	Orders      *journal.OrderRepository
	Holdings    *journal.HoldingRepository
	Suggestions *journal.SuggestionRepository
	Perf        *journal.PerfRepository
	Balances    *journal.BalanceRepository
	Locks       *journal.DayLockRepository
}

// Controller executes one user's pass against a snapshot. It is stateless
// between ticks; all persistence goes through the journal.
type Controller struct {
	journal  Journal
	alerts   *alert.Service
	provider domain.MarketDataProvider
	cache    *indicator.Cache
	plugins  *Registry
	fees     domain.FeeSchedule
	clock    domain.Clock
	log      zerolog.Logger
}

// NewController wires a controller. plugins may be nil when no decision
// plugin is registered.
func NewController(j Journal, alerts *alert.Service, provider domain.MarketDataProvider,
	cache *indicator.Cache, plugins *Registry, fees domain.FeeSchedule,
	clock domain.Clock, log zerolog.Logger) *Controller {
	return &Controller{
		journal:  j,
		alerts:   alerts,
		provider: provider,
		cache:    cache,
		plugins:  plugins,
		fees:     fees,
		clock:    clock,
		log:      log.With().Str("component", "trader").Logger(),
	}
}

// tickState is the mutable per-pass view: cash, held tickers and the traded
// blacklist move together as orders fill.
type tickState struct {
	cash      float64
	held      map[string]bool
	pending   map[string]bool
	blacklist map[string]bool
	recs      map[string]journal.HoldingRecord
	trades    int // executed orders today, including this pass
}

// RunUser executes one full pass for a user: expire suggestions, evaluate
// sells on every position, then buys per the user's mode. macroMult scales
// buy budgets and is shared across users on a tick.
func (c *Controller) RunUser(ctx context.Context, user domain.User, ex executor.Executor,
	snap *snapshot.Snapshot, macroMult float64) error {
	now := c.clock.Now()
	date := domain.MarketDate(now)
	log := c.log.With().Int64("user_id", user.ID).Str("mode", string(user.Policy.Mode)).Logger()

	if user.Policy.Mode == domain.ModeManual {
		log.Debug().Msg("manual mode, skipping")
		return nil
	}

	locked, err := c.journal.Locks.IsLocked(user.ID, date)
	if err != nil {
		return fmt.Errorf("failed to check day lock: %w", err)
	}
	if locked {
		log.Warn().Str("date", date).Msg("user locked out for the day")
		return nil
	}

	if _, err := c.journal.Suggestions.ExpirePending(now); err != nil {
		log.Warn().Err(err).Msg("failed to expire pending suggestions")
	}

	// A policy that does not compile is a configuration error: skip the user
	// for the rest of the day rather than retry a guaranteed failure.
	ev, err := policy.NewEvaluator(user.Policy)
	if err != nil {
		c.alerts.Emit(ctx, domain.AlertCritical, user.ID, "", alert.KindConfig, err.Error())
		if lockErr := c.journal.Locks.Lock(user.ID, date, "invalid policy: "+err.Error()); lockErr != nil {
			log.Error().Err(lockErr).Msg("failed to set day lock")
		}
		return nil
	}

	holdings, err := ex.Holdings(ctx)
	if err != nil {
		return c.brokerFailure(ctx, user, date, "failed to fetch holdings", err)
	}
	cash, err := ex.Cash(ctx)
	if err != nil {
		return c.brokerFailure(ctx, user, date, "failed to fetch cash balance", err)
	}
	pendingOrders, err := ex.Pending(ctx)
	if err != nil {
		return c.brokerFailure(ctx, user, date, "failed to fetch pending orders", err)
	}

	blacklist, err := c.journal.Orders.TradedToday(user.ID, date)
	if err != nil {
		return fmt.Errorf("failed to load traded-today set: %w", err)
	}
	trades, err := c.journal.Orders.CountExecutedToday(user.ID, date)
	if err != nil {
		return fmt.Errorf("failed to count executed orders: %w", err)
	}
	latches, err := c.loadLatches(user.ID)
	if err != nil {
		return err
	}

	st := &tickState{
		cash:      cash,
		held:      make(map[string]bool, len(holdings)),
		pending:   make(map[string]bool, len(pendingOrders)),
		blacklist: blacklist,
		recs:      make(map[string]journal.HoldingRecord, len(holdings)),
		trades:    trades,
	}
	for _, h := range holdings {
		st.held[h.Ticker] = true
		rec := latches[h.Ticker]
		rec.Holding = h
		st.recs[h.Ticker] = rec
	}
	for _, p := range pendingOrders {
		st.pending[p.Ticker] = true
	}

	c.runSells(ctx, user, ex, snap, ev, st, now, log)

	switch user.Policy.Mode {
	case domain.ModeSemi:
		c.queueSuggestions(ctx, user, ex, snap, ev, st, now, log)
	case domain.ModeAuto:
		c.runBuys(ctx, user, ex, snap, ev, macroMult, st, now, log)
	case domain.ModeGreenlight:
		c.runPlugin(ctx, user, ex, snap, st, now, log)
	}

	return c.persist(user, ex, st, date, log)
}

// brokerFailure classifies a failed broker fetch. A permanent failure (bad
// credentials, closed account) latches the user out for the rest of the day;
// a transient one, already retried once by the client, fails only this tick.
func (c *Controller) brokerFailure(ctx context.Context, user domain.User, date, msg string, err error) error {
	if kis.IsPermanent(err) {
		c.alerts.Emit(ctx, domain.AlertCritical, user.ID, "", alert.KindBroker,
			fmt.Sprintf("%s: %v", msg, err))
		if lockErr := c.journal.Locks.Lock(user.ID, date, msg+": "+err.Error()); lockErr != nil {
			c.log.Error().Err(lockErr).Int64("user_id", user.ID).Msg("failed to set day lock")
		}
		return nil
	}
	c.alerts.Emit(ctx, domain.AlertWarning, user.ID, "", alert.KindBroker,
		fmt.Sprintf("%s: %v", msg, err))
	return fmt.Errorf("%s: %w", msg, err)
}

func (c *Controller) loadLatches(userID int64) (map[string]journal.HoldingRecord, error) {
	recs, err := c.journal.Holdings.ListByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load journaled holdings: %w", err)
	}
	out := make(map[string]journal.HoldingRecord, len(recs))
	for _, rec := range recs {
		out[rec.Ticker] = rec
	}
	return out, nil
}

// runSells evaluates every position against the sell-trigger ladder and
// closes the ones that fire. Latch updates persist even when nothing sells.
func (c *Controller) runSells(ctx context.Context, user domain.User, ex executor.Executor,
	snap *snapshot.Snapshot, ev *policy.Evaluator, st *tickState, now time.Time, log zerolog.Logger) {
	tickers := make([]string, 0, len(st.recs))
	for t := range st.recs {
		tickers = append(tickers, t)
	}
	sort.Strings(tickers)

	for _, ticker := range tickers {
		rec := st.recs[ticker]
		row := snap.Find(ticker)

		verdict := risk.EvaluateSell(ev, risk.SellInput{
			Holding: rec.Holding,
			Row:     row,
			SMA20:   c.sma20(ctx, ticker),
			State: risk.PositionState{
				AboveMA20:     rec.AboveMA20,
				TrailingArmed: rec.TrailingArmed,
				Plan:          rec.Plan,
			},
			Now: now,
		})

		rec.AboveMA20 = verdict.State.AboveMA20
		rec.TrailingArmed = verdict.State.TrailingArmed
		rec.Plan = verdict.State.Plan
		st.recs[ticker] = rec

		if !verdict.Sell() {
			continue
		}
		c.sell(ctx, user, ex, rec, row, verdict, st, now, log)
	}
}

func (c *Controller) sell(ctx context.Context, user domain.User, ex executor.Executor,
	rec journal.HoldingRecord, row *snapshot.Row, verdict risk.Verdict,
	st *tickState, now time.Time, log zerolog.Logger) {
	h := rec.Holding
	price := h.CurrentPrice
	if row != nil && row.Close > 0 {
		price = row.Close
	}

	res, err := ex.Sell(ctx, h.Ticker, h.Quantity, 0)
	if err != nil {
		c.orderRejected(ctx, user, h.Ticker, h.Name, h.Market, domain.SideSell,
			h.Quantity, price, string(verdict.Trigger), st, now, err, log)
		return
	}

	status := domain.OrderExecuted
	if res.DryRun {
		status = domain.OrderDryRun
	}

	gross := price * float64(h.Quantity)
	proceeds := c.fees.SellProceeds(gross, h.Market)
	cost := h.AvgPrice * float64(h.Quantity)
	pnl := proceeds - cost
	rate := 0.0
	if cost > 0 {
		rate = pnl / cost * 100
	}

	order := &domain.Order{
		UserID:        user.ID,
		Ticker:        h.Ticker,
		Name:          h.Name,
		Market:        h.Market,
		Side:          domain.SideSell,
		Quantity:      h.Quantity,
		Price:         price,
		PlacedAt:      now,
		BrokerOrderID: res.BrokerOrderID,
		Status:        status,
		RealisedPnL:   &pnl,
		RealisedRate:  &rate,
		Reason:        fmt.Sprintf("%s: %s", verdict.Trigger, verdict.Reason),
	}
	if err := c.journal.Orders.Record(order); err != nil {
		log.Error().Err(err).Str("ticker", h.Ticker).Msg("failed to journal sell")
	}

	delete(st.recs, h.Ticker)
	delete(st.held, h.Ticker)
	if status == domain.OrderExecuted {
		st.cash += proceeds
		st.blacklist[h.Ticker] = true
		st.trades++
		c.alerts.Emit(ctx, domain.AlertInfo, user.ID, h.Ticker, alert.KindSellExecuted,
			fmt.Sprintf("sold %d %s @ %.0f (%s, pnl %.0f)", h.Quantity, h.Ticker, price, verdict.Trigger, pnl))
	}
	log.Info().Str("ticker", h.Ticker).Str("trigger", string(verdict.Trigger)).
		Float64("pnl", pnl).Msg("position closed")
}

// orderRejected journals a broker rejection and blacklists the ticker so the
// same order is not re-attempted for the rest of the day.
func (c *Controller) orderRejected(ctx context.Context, user domain.User,
	ticker, name string, market domain.Market, side domain.OrderSide,
	qty int64, price float64, reason string, st *tickState, now time.Time, err error, log zerolog.Logger) {
	order := &domain.Order{
		UserID:   user.ID,
		Ticker:   ticker,
		Name:     name,
		Market:   market,
		Side:     side,
		Quantity: qty,
		Price:    price,
		PlacedAt: now,
		Status:   domain.OrderCancelled,
		Reason:   fmt.Sprintf("%s: rejected: %v", reason, err),
	}
	if jerr := c.journal.Orders.Record(order); jerr != nil {
		log.Error().Err(jerr).Str("ticker", ticker).Msg("failed to journal rejection")
	}
	st.blacklist[ticker] = true
	c.alerts.Emit(ctx, domain.AlertWarning, user.ID, ticker, alert.KindOrderRejected,
		fmt.Sprintf("%s %s x%d rejected: %v", side, ticker, qty, err))
}

// runBuys places auto-mode buys for ranked candidates until slots, cash or
// the daily trade cap run out.
func (c *Controller) runBuys(ctx context.Context, user domain.User, ex executor.Executor,
	snap *snapshot.Snapshot, ev *policy.Evaluator, macroMult float64,
	st *tickState, now time.Time, log zerolog.Logger) {
	cands := ev.Candidates(snap, policy.TickState{
		Now: now, Held: st.held, Pending: st.pending, Blacklist: st.blacklist,
	})
	for _, cand := range cands {
		if len(st.held) >= user.Policy.MaxHoldings {
			break
		}
		if user.Policy.MaxDailyTrades > 0 && st.trades >= user.Policy.MaxDailyTrades {
			log.Debug().Msg("daily trade cap reached")
			break
		}
		if st.cash <= 0 {
			break
		}
		c.buy(ctx, user, ex, cand, macroMult, st, now, log)
	}
}

func (c *Controller) buy(ctx context.Context, user domain.User, ex executor.Executor,
	cand policy.Candidate, macroMult float64, st *tickState, now time.Time, log zerolog.Logger) {
	row := cand.Row
	price := c.livePrice(ctx, ex, row.Ticker, row.Close)
	budget := risk.Budget(user.Policy, st.cash, len(st.held), macroMult)
	qty := risk.Quantity(budget, price)
	if qty <= 0 {
		log.Debug().Str("ticker", row.Ticker).Float64("budget", budget).
			Float64("price", price).Msg("budget below one share")
		return
	}

	res, err := ex.Buy(ctx, row.Ticker, qty, 0)
	if err != nil {
		if errors.Is(err, executor.ErrInsufficientCash) {
			log.Debug().Str("ticker", row.Ticker).Msg("insufficient cash")
			return
		}
		c.orderRejected(ctx, user, row.Ticker, row.Name, row.Market, domain.SideBuy,
			qty, price, fmt.Sprintf("score %d", cand.Score), st, now, err, log)
		return
	}

	status := domain.OrderExecuted
	if res.DryRun {
		status = domain.OrderDryRun
	}

	order := &domain.Order{
		UserID:        user.ID,
		Ticker:        row.Ticker,
		Name:          row.Name,
		Market:        row.Market,
		Side:          domain.SideBuy,
		Quantity:      qty,
		Price:         price,
		PlacedAt:      now,
		BrokerOrderID: res.BrokerOrderID,
		Status:        status,
		Reason:        fmt.Sprintf("%s score %d", user.Policy.ScoreVersion, cand.Score),
	}
	if err := c.journal.Orders.Record(order); err != nil {
		log.Error().Err(err).Str("ticker", row.Ticker).Msg("failed to journal buy")
	}
	if status != domain.OrderExecuted {
		return
	}

	st.cash -= c.fees.BuyCost(price * float64(qty))
	st.held[row.Ticker] = true
	st.blacklist[row.Ticker] = true
	st.trades++
	st.recs[row.Ticker] = journal.HoldingRecord{
		Holding: domain.Holding{
			UserID:       user.ID,
			Ticker:       row.Ticker,
			Name:         row.Name,
			Market:       row.Market,
			Quantity:     qty,
			AvgPrice:     price,
			CurrentPrice: price,
			OpenedAt:     now,
		},
		Plan: row.Plan(user.Policy.ScoreVersion),
	}
	c.alerts.Emit(ctx, domain.AlertInfo, user.ID, row.Ticker, alert.KindBuyExecuted,
		fmt.Sprintf("bought %d %s @ %.0f (score %d)", qty, row.Ticker, price, cand.Score))
	log.Info().Str("ticker", row.Ticker).Int64("quantity", qty).Float64("price", price).
		Int("score", cand.Score).Msg("position opened")
}

// queueSuggestions turns this tick's candidates into pending suggestions for
// a semi-mode user. At most one suggestion per free slot. Acting on an
// approval is the operator's move, recorded through the API; the engine never
// places an order from one.
func (c *Controller) queueSuggestions(ctx context.Context, user domain.User, ex executor.Executor,
	snap *snapshot.Snapshot, ev *policy.Evaluator,
	st *tickState, now time.Time, log zerolog.Logger) {
	pendingSugg, err := c.journal.Suggestions.PendingTickers(user.ID)
	if err != nil {
		log.Error().Err(err).Msg("failed to list pending suggestions")
		return
	}

	cands := ev.Candidates(snap, policy.TickState{
		Now: now, Held: st.held, Pending: st.pending, Blacklist: st.blacklist,
	})
	free := user.Policy.MaxHoldings - len(st.held) - len(pendingSugg)
	ttl := defaultSuggestionTTL
	if user.Policy.ExpireHours > 0 {
		ttl = time.Duration(user.Policy.ExpireHours) * time.Hour
	}

	for _, cand := range cands {
		if free <= 0 {
			break
		}
		row := cand.Row
		if pendingSugg[row.Ticker] {
			continue
		}
		price := c.livePrice(ctx, ex, row.Ticker, row.Close)
		target, stop := exitLevels(user.Policy, row, price)

		s := &domain.Suggestion{
			ID:               uuid.NewString(),
			UserID:           user.ID,
			Ticker:           row.Ticker,
			Name:             row.Name,
			Market:           row.Market,
			Score:            cand.Score,
			RecommendedPrice: price,
			BuyBandHigh:      price * (1 + buyBandPct/100),
			TargetPrice:      target,
			StopPrice:        stop,
			Status:           domain.SuggestionPending,
			CreatedAt:        now,
			ExpiresAt:        now.Add(ttl),
		}
		if err := c.journal.Suggestions.Create(s); err != nil {
			log.Error().Err(err).Str("ticker", row.Ticker).Msg("failed to queue suggestion")
			continue
		}
		free--
		c.alerts.Emit(ctx, domain.AlertInfo, user.ID, row.Ticker, alert.KindSuggestionQueued,
			fmt.Sprintf("suggest buy %s @ %.0f (score %d)", row.Ticker, price, cand.Score))
		log.Info().Str("ticker", row.Ticker).Int("score", cand.Score).Msg("suggestion queued")
	}
}

// exitLevels prefers the scorer's exit plan and falls back to the policy's
// flat take-profit and stop-loss rates.
func exitLevels(p domain.UserPolicy, row *snapshot.Row, price float64) (target, stop float64) {
	if plan := row.Plan(p.ScoreVersion); plan != nil {
		return plan.TargetPrice, plan.StopPrice
	}
	if p.TakeProfitRate > 0 {
		target = price * (1 + p.TakeProfitRate/100)
	}
	if p.StopLossRate > 0 {
		stop = price * (1 - p.StopLossRate/100)
	}
	return target, stop
}

// runPlugin delegates buy decisions to the registered plugin. Only honoured
// for paper accounts; the hard filters still gate every decision.
func (c *Controller) runPlugin(ctx context.Context, user domain.User, ex executor.Executor,
	snap *snapshot.Snapshot, st *tickState, now time.Time, log zerolog.Logger) {
	if !user.IsPaper {
		c.alerts.Emit(ctx, domain.AlertWarning, user.ID, "", alert.KindConfig,
			"greenlight mode requires a paper account; skipping buys")
		return
	}
	plugin := c.plugins.Active()
	if plugin == nil {
		log.Warn().Msg("greenlight mode with no registered plugin")
		return
	}
	if !domain.IsBuyWindow(now) {
		return
	}

	holdings := make([]domain.Holding, 0, len(st.recs))
	for _, rec := range st.recs {
		holdings = append(holdings, rec.Holding)
	}
	decisions, err := plugin.Decide(ctx, PluginInput{
		UserID:   user.ID,
		Policy:   user.Policy,
		Snapshot: snap,
		Holdings: holdings,
		Cash:     st.cash,
	})
	if err != nil {
		c.alerts.Emit(ctx, domain.AlertWarning, user.ID, "", alert.KindInternal,
			fmt.Sprintf("plugin %s failed: %v", plugin.Name(), err))
		return
	}

	for _, d := range decisions {
		if d.Quantity <= 0 || st.held[d.Ticker] || st.pending[d.Ticker] || st.blacklist[d.Ticker] {
			continue
		}
		if len(st.held) >= user.Policy.MaxHoldings ||
			(user.Policy.MaxDailyTrades > 0 && st.trades >= user.Policy.MaxDailyTrades) {
			break
		}
		row := snap.Find(d.Ticker)
		if row == nil {
			continue
		}
		price := c.livePrice(ctx, ex, d.Ticker, row.Close)
		if c.fees.BuyCost(price*float64(d.Quantity)) > st.cash {
			continue
		}

		res, err := ex.Buy(ctx, d.Ticker, d.Quantity, 0)
		if err != nil {
			c.orderRejected(ctx, user, d.Ticker, row.Name, row.Market, domain.SideBuy,
				d.Quantity, price, "plugin "+plugin.Name(), st, now, err, log)
			continue
		}
		status := domain.OrderExecuted
		if res.DryRun {
			status = domain.OrderDryRun
		}
		order := &domain.Order{
			UserID:        user.ID,
			Ticker:        d.Ticker,
			Name:          row.Name,
			Market:        row.Market,
			Side:          domain.SideBuy,
			Quantity:      d.Quantity,
			Price:         price,
			PlacedAt:      now,
			BrokerOrderID: res.BrokerOrderID,
			Status:        status,
			Reason:        fmt.Sprintf("plugin %s: %s", plugin.Name(), d.Reason),
		}
		if err := c.journal.Orders.Record(order); err != nil {
			log.Error().Err(err).Str("ticker", d.Ticker).Msg("failed to journal plugin buy")
		}
		if status != domain.OrderExecuted {
			continue
		}
		st.cash -= c.fees.BuyCost(price * float64(d.Quantity))
		st.held[d.Ticker] = true
		st.blacklist[d.Ticker] = true
		st.trades++
		st.recs[d.Ticker] = journal.HoldingRecord{
			Holding: domain.Holding{
				UserID: user.ID, Ticker: d.Ticker, Name: row.Name, Market: row.Market,
				Quantity: d.Quantity, AvgPrice: price, CurrentPrice: price, OpenedAt: now,
			},
			Plan: row.Plan(user.Policy.ScoreVersion),
		}
		c.alerts.Emit(ctx, domain.AlertInfo, user.ID, d.Ticker, alert.KindBuyExecuted,
			fmt.Sprintf("bought %d %s @ %.0f (plugin %s)", d.Quantity, d.Ticker, price, plugin.Name()))
	}
}

// persist writes the end-of-pass account state: holdings with latches, the
// virtual balance for paper accounts, and the daily performance row.
func (c *Controller) persist(user domain.User, ex executor.Executor, st *tickState,
	date string, log zerolog.Logger) error {
	if p, ok := ex.(*executor.Paper); ok {
		cash, holdings := p.State()
		st.cash = cash
		// Reprice the journaled records from the simulator's view.
		for _, h := range holdings {
			if rec, ok := st.recs[h.Ticker]; ok {
				rec.Holding = h
				st.recs[h.Ticker] = rec
			}
		}
		if err := c.journal.Balances.Save(user.ID, cash); err != nil {
			return fmt.Errorf("failed to save virtual balance: %w", err)
		}
	}

	recs := make([]journal.HoldingRecord, 0, len(st.recs))
	for _, rec := range st.recs {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].Ticker < recs[j].Ticker })
	if err := c.journal.Holdings.SaveAll(user.ID, recs); err != nil {
		return fmt.Errorf("failed to save holdings: %w", err)
	}

	realised, err := c.journal.Orders.RealisedToday(user.ID, date)
	if err != nil {
		log.Error().Err(err).Msg("failed to sum realised pnl")
	}
	var value, invested float64
	for _, rec := range recs {
		value += rec.Value()
		invested += rec.AvgPrice * float64(rec.Quantity)
	}
	perf := domain.DailyPerf{
		UserID:        user.ID,
		Date:          date,
		TotalAssets:   st.cash + value,
		D2Cash:        st.cash,
		HoldingsValue: value,
		Invested:      invested,
		RealisedPnL:   realised,
		NumHoldings:   len(recs),
	}
	if err := c.journal.Perf.Upsert(perf); err != nil {
		return fmt.Errorf("failed to upsert daily performance: %w", err)
	}
	return nil
}

// livePrice quotes the executor and falls back to the snapshot close when
// the quote fails mid-session.
func (c *Controller) livePrice(ctx context.Context, ex executor.Executor, ticker string, fallback float64) float64 {
	q, err := ex.Price(ctx, ticker)
	if err != nil || q == nil || q.Price <= 0 {
		return fallback
	}
	return q.Price
}

// sma20 computes today's SMA-20 from the history store. 0 disables the
// MA20-break trigger for the position rather than firing on garbage.
func (c *Controller) sma20(ctx context.Context, ticker string) float64 {
	series, err := c.provider.Series(ctx, ticker, 60)
	if err != nil || series == nil || series.Len() < 20 {
		return 0
	}
	frame, err := c.cache.GetOrCompute(series)
	if err != nil {
		return 0
	}
	return indicator.Last(frame.SMA20)
}
