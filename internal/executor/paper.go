package executor

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"github.com/junghoon-woo/danta/internal/domain"
)

// cashEpsilon absorbs float rounding in fee arithmetic so a buy that spends
// the account to exactly zero is not rejected.
const cashEpsilon = 1e-6

// Paper simulates an account in process. It is rebuilt each tick from the
// journal's virtual balance and holdings, mutated by fills, and read back for
// persistence via State. Commission and transfer tax are booked on every fill
// so realised figures line up with live accounting.
type Paper struct {
	mu       sync.Mutex
	userID   int64
	cash     float64
	holdings map[string]*domain.Holding
	fees     domain.FeeSchedule
	source   PriceSource
	clock    domain.Clock
	dryRun   bool
	counter  int64
	log      zerolog.Logger
}

var _ Executor = (*Paper)(nil)

// PaperConfig seeds the simulator with one user's persisted account state.
type PaperConfig struct {
	UserID   int64
	Cash     float64
	Holdings []domain.Holding
	Fees     domain.FeeSchedule
	DryRun   bool
}

// NewPaper builds a simulator over real quotes.
func NewPaper(cfg PaperConfig, source PriceSource, clock domain.Clock, log zerolog.Logger) *Paper {
	held := make(map[string]*domain.Holding, len(cfg.Holdings))
	for _, h := range cfg.Holdings {
		c := h
		held[h.Ticker] = &c
	}
	return &Paper{
		userID:   cfg.UserID,
		cash:     cfg.Cash,
		holdings: held,
		fees:     cfg.Fees,
		source:   source,
		clock:    clock,
		dryRun:   cfg.DryRun,
		log:      log.With().Str("component", "executor").Str("mode", "paper").Int64("user_id", cfg.UserID).Logger(),
	}
}

// Holdings reprices every position at the current quote. A failed quote keeps
// the position's last known price.
func (p *Paper) Holdings(ctx context.Context) ([]domain.Holding, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, h := range p.holdings {
		q, err := p.source.GetCurrentPrice(ctx, h.Ticker)
		if err != nil {
			p.log.Warn().Err(err).Str("ticker", h.Ticker).Msg("reprice failed, keeping last price")
			continue
		}
		h.CurrentPrice = q.Price
		if h.AvgPrice > 0 {
			h.ProfitRate = (q.Price - h.AvgPrice) / h.AvgPrice * 100
		}
	}
	return p.sortedHoldings(), nil
}

func (p *Paper) Cash(context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash, nil
}

// Pending always returns nothing: simulated fills are immediate.
func (p *Paper) Pending(context.Context) ([]domain.PendingOrder, error) {
	return nil, nil
}

func (p *Paper) Price(ctx context.Context, ticker string) (*domain.Quote, error) {
	return p.source.GetCurrentPrice(ctx, ticker)
}

func (p *Paper) Buy(ctx context.Context, ticker string, quantity int64, price float64) (*domain.OrderResult, error) {
	if err := validateOrder(ticker, quantity, price); err != nil {
		return nil, err
	}
	if p.dryRun {
		p.log.Info().Str("ticker", ticker).Int64("quantity", quantity).Float64("price", price).
			Msg("dry run, buy not simulated")
		return &domain.OrderResult{Ticker: ticker, Side: domain.SideBuy, Quantity: quantity, Price: price, DryRun: true}, nil
	}

	fill, name, market, err := p.fillPrice(ctx, ticker, price)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	cost := p.fees.BuyCost(fill * float64(quantity))
	if cost > p.cash+cashEpsilon {
		return nil, fmt.Errorf("buy %s x%d needs %.0f, cash %.0f: %w", ticker, quantity, cost, p.cash, ErrInsufficientCash)
	}
	p.cash -= cost
	if p.cash < 0 {
		p.cash = 0 // float dust
	}

	if h, ok := p.holdings[ticker]; ok {
		total := float64(h.Quantity)*h.AvgPrice + float64(quantity)*fill
		h.Quantity += quantity
		h.AvgPrice = total / float64(h.Quantity)
		h.CurrentPrice = fill
		h.ProfitRate = (fill - h.AvgPrice) / h.AvgPrice * 100
	} else {
		p.holdings[ticker] = &domain.Holding{
			UserID:       p.userID,
			Ticker:       ticker,
			Name:         name,
			Market:       market,
			Quantity:     quantity,
			AvgPrice:     fill,
			CurrentPrice: fill,
			OpenedAt:     p.clock.Now(),
		}
	}

	res := &domain.OrderResult{
		BrokerOrderID: p.nextOrderID(),
		Ticker:        ticker,
		Side:          domain.SideBuy,
		Quantity:      quantity,
		Price:         fill,
	}
	p.log.Info().Str("ticker", ticker).Int64("quantity", quantity).Float64("fill", fill).
		Float64("cash", p.cash).Str("order_id", res.BrokerOrderID).Msg("buy filled")
	return res, nil
}

func (p *Paper) Sell(ctx context.Context, ticker string, quantity int64, price float64) (*domain.OrderResult, error) {
	if err := validateOrder(ticker, quantity, price); err != nil {
		return nil, err
	}
	if p.dryRun {
		p.log.Info().Str("ticker", ticker).Int64("quantity", quantity).Float64("price", price).
			Msg("dry run, sell not simulated")
		return &domain.OrderResult{Ticker: ticker, Side: domain.SideSell, Quantity: quantity, Price: price, DryRun: true}, nil
	}

	p.mu.Lock()
	h, err := p.heldLocked(ticker, quantity)
	if err != nil {
		p.mu.Unlock()
		return nil, err
	}
	market := h.Market
	p.mu.Unlock()

	fill, _, qmarket, err := p.fillPrice(ctx, ticker, price)
	if err != nil {
		return nil, err
	}
	if market == "" {
		market = qmarket
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	// Re-validate: the pricing call above ran unlocked.
	h, err = p.heldLocked(ticker, quantity)
	if err != nil {
		return nil, err
	}

	p.cash += p.fees.SellProceeds(fill*float64(quantity), market)
	h.Quantity -= quantity
	if h.Quantity == 0 {
		delete(p.holdings, ticker)
	} else {
		h.CurrentPrice = fill
		h.ProfitRate = (fill - h.AvgPrice) / h.AvgPrice * 100
	}

	res := &domain.OrderResult{
		BrokerOrderID: p.nextOrderID(),
		Ticker:        ticker,
		Side:          domain.SideSell,
		Quantity:      quantity,
		Price:         fill,
	}
	p.log.Info().Str("ticker", ticker).Int64("quantity", quantity).Float64("fill", fill).
		Float64("cash", p.cash).Str("order_id", res.BrokerOrderID).Msg("sell filled")
	return res, nil
}

// State returns the simulated cash and positions for persistence after a
// tick. Holdings are sorted by ticker.
func (p *Paper) State() (float64, []domain.Holding) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cash, p.sortedHoldings()
}

// fillPrice resolves the execution price: the limit when given, the current
// quote for market orders.
func (p *Paper) fillPrice(ctx context.Context, ticker string, limit float64) (price float64, name string, market domain.Market, err error) {
	q, qerr := p.source.GetCurrentPrice(ctx, ticker)
	if qerr != nil {
		if limit > 0 {
			// A limit order can still fill without a fresh quote.
			return limit, "", "", nil
		}
		return 0, "", "", fmt.Errorf("failed to price market order for %s: %w", ticker, qerr)
	}
	if limit > 0 {
		return limit, q.Name, q.Market, nil
	}
	if q.Price <= 0 {
		return 0, "", "", fmt.Errorf("no tradable price for %s", ticker)
	}
	return q.Price, q.Name, q.Market, nil
}

// heldLocked returns the position when it covers the requested quantity.
// Callers hold p.mu.
func (p *Paper) heldLocked(ticker string, quantity int64) (*domain.Holding, error) {
	h, ok := p.holdings[ticker]
	if !ok || h.Quantity < quantity {
		held := int64(0)
		if ok {
			held = h.Quantity
		}
		return nil, fmt.Errorf("sell %s x%d, held %d: %w", ticker, quantity, held, ErrInsufficientQuantity)
	}
	return h, nil
}

func (p *Paper) nextOrderID() string {
	p.counter++
	return fmt.Sprintf("PAPER-%06d", p.counter)
}

func (p *Paper) sortedHoldings() []domain.Holding {
	out := make([]domain.Holding, 0, len(p.holdings))
	for _, h := range p.holdings {
		out = append(out, *h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Ticker < out[j].Ticker })
	return out
}
