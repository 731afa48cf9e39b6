package executor

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/junghoon-woo/danta/internal/domain"
)

// Live trades through the broker client. It adds no bookkeeping of its own;
// the broker's balance endpoints are the source of truth.
type Live struct {
	client domain.BrokerClient
	dryRun bool
	log    zerolog.Logger
}

var _ Executor = (*Live)(nil)

// NewLive wraps a broker client. With dryRun set, Buy and Sell skip the
// broker call and return a result flagged DryRun.
func NewLive(client domain.BrokerClient, dryRun bool, log zerolog.Logger) *Live {
	return &Live{
		client: client,
		dryRun: dryRun,
		log:    log.With().Str("component", "executor").Str("mode", "live").Logger(),
	}
}

func (l *Live) Holdings(ctx context.Context) ([]domain.Holding, error) {
	bal, err := l.client.GetAccountBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch account balance: %w", err)
	}
	return bal.Holdings, nil
}

func (l *Live) Cash(ctx context.Context) (float64, error) {
	bal, err := l.client.GetAccountBalance(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to fetch account balance: %w", err)
	}
	return bal.D2Cash, nil
}

func (l *Live) Pending(ctx context.Context) ([]domain.PendingOrder, error) {
	return l.client.GetPendingOrders(ctx)
}

func (l *Live) Price(ctx context.Context, ticker string) (*domain.Quote, error) {
	return l.client.GetCurrentPrice(ctx, ticker)
}

func (l *Live) Buy(ctx context.Context, ticker string, quantity int64, price float64) (*domain.OrderResult, error) {
	if err := validateOrder(ticker, quantity, price); err != nil {
		return nil, err
	}
	if l.dryRun {
		l.log.Info().Str("ticker", ticker).Int64("quantity", quantity).Float64("price", price).
			Msg("dry run, buy not sent")
		return &domain.OrderResult{Ticker: ticker, Side: domain.SideBuy, Quantity: quantity, Price: price, DryRun: true}, nil
	}
	res, err := l.client.PlaceBuy(ctx, ticker, quantity, price)
	if err != nil {
		return nil, fmt.Errorf("failed to place buy for %s: %w", ticker, err)
	}
	l.log.Info().Str("ticker", ticker).Int64("quantity", quantity).Float64("price", price).
		Str("order_id", res.BrokerOrderID).Msg("buy placed")
	return res, nil
}

func (l *Live) Sell(ctx context.Context, ticker string, quantity int64, price float64) (*domain.OrderResult, error) {
	if err := validateOrder(ticker, quantity, price); err != nil {
		return nil, err
	}
	if l.dryRun {
		l.log.Info().Str("ticker", ticker).Int64("quantity", quantity).Float64("price", price).
			Msg("dry run, sell not sent")
		return &domain.OrderResult{Ticker: ticker, Side: domain.SideSell, Quantity: quantity, Price: price, DryRun: true}, nil
	}
	res, err := l.client.PlaceSell(ctx, ticker, quantity, price)
	if err != nil {
		return nil, fmt.Errorf("failed to place sell for %s: %w", ticker, err)
	}
	l.log.Info().Str("ticker", ticker).Int64("quantity", quantity).Float64("price", price).
		Str("order_id", res.BrokerOrderID).Msg("sell placed")
	return res, nil
}
