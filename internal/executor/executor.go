// Package executor abstracts order placement and account state behind one
// interface so the per-user controller runs identically against the live
// broker and the in-process paper simulator.
//
// Fills are immediate and total. Market orders (price 0) fill at the current
// quote, limit orders at the limit price. Partial fills and order books are
// out of scope.
package executor

import (
	"context"
	"errors"

	"github.com/junghoon-woo/danta/internal/domain"
)

// Executor is what the controller trades through.
type Executor interface {
	// Holdings returns the account's current positions, repriced.
	Holdings(ctx context.Context) ([]domain.Holding, error)

	// Cash returns the settled cash available for new buys.
	Cash(ctx context.Context) (float64, error)

	// Pending returns orders placed but not yet fully executed.
	Pending(ctx context.Context) ([]domain.PendingOrder, error)

	// Price returns the latest quote for a ticker.
	Price(ctx context.Context, ticker string) (*domain.Quote, error)

	// Buy places a buy order. Price 0 means market.
	Buy(ctx context.Context, ticker string, quantity int64, price float64) (*domain.OrderResult, error)

	// Sell places a sell order. Price 0 means market.
	Sell(ctx context.Context, ticker string, quantity int64, price float64) (*domain.OrderResult, error)
}

// PriceSource yields current quotes. The live KIS client satisfies it; the
// paper simulator needs one because simulated accounts still trade at real
// prices.
type PriceSource interface {
	GetCurrentPrice(ctx context.Context, ticker string) (*domain.Quote, error)
}

var (
	// ErrInsufficientCash rejects a paper buy that would drive cash negative.
	ErrInsufficientCash = errors.New("insufficient cash")

	// ErrInsufficientQuantity rejects a paper sell exceeding the held quantity.
	ErrInsufficientQuantity = errors.New("insufficient quantity")
)

func validateOrder(ticker string, quantity int64, price float64) error {
	if ticker == "" {
		return errors.New("ticker must not be empty")
	}
	if quantity <= 0 {
		return errors.New("quantity must be positive")
	}
	if price < 0 {
		return errors.New("price must be zero (market) or positive (limit)")
	}
	return nil
}
