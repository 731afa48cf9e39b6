package journal

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/junghoon-woo/danta/internal/domain"
)

const orderColumns = `id, user_id, ticker, name, market, side, quantity, price, placed_at, date, broker_order_id, status, realised_pnl, realised_rate, reason`

// OrderRepository journals placed orders. Rows are append-only; the daily
// blacklist and the trade-count gate are both derived from them.
type OrderRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewOrderRepository(db *sql.DB, log zerolog.Logger) *OrderRepository {
	return &OrderRepository{db: db, log: log.With().Str("repo", "orders").Logger()}
}

// Record inserts one order. The date column is derived from PlacedAt in
// exchange time so the blacklist is a pure function of the market calendar.
func (r *OrderRepository) Record(o *domain.Order) error {
	if o.Ticker == "" || o.Quantity <= 0 {
		return fmt.Errorf("order must carry a ticker and a positive quantity")
	}
	res, err := r.db.Exec(`
		INSERT INTO orders
		(user_id, ticker, name, market, side, quantity, price, placed_at, date,
		 broker_order_id, status, realised_pnl, realised_rate, reason, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		o.UserID,
		o.Ticker,
		o.Name,
		string(o.Market),
		string(o.Side),
		o.Quantity,
		o.Price,
		o.PlacedAt.Unix(),
		domain.MarketDate(o.PlacedAt),
		o.BrokerOrderID,
		string(o.Status),
		nullFloatPtr(o.RealisedPnL),
		nullFloatPtr(o.RealisedRate),
		o.Reason,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to record order: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		o.ID = id
	}
	r.log.Info().Int64("user_id", o.UserID).Str("ticker", o.Ticker).
		Str("side", string(o.Side)).Int64("quantity", o.Quantity).
		Str("status", string(o.Status)).Str("reason", o.Reason).Msg("order recorded")
	return nil
}

// TradedToday returns the tickers with an executed order for the user on the
// given market date. Buying and selling the same ticker twice in one day is
// blocked through this set.
func (r *OrderRepository) TradedToday(userID int64, date string) (map[string]bool, error) {
	rows, err := r.db.Query(
		`SELECT DISTINCT ticker FROM orders WHERE user_id = ? AND date = ? AND status = 'executed'`,
		userID, date,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query traded tickers: %w", err)
	}
	defer rows.Close()

	traded := make(map[string]bool)
	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		traded[ticker] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickers: %w", err)
	}
	return traded, nil
}

// CountExecutedToday counts executed orders for the max-daily-trades gate.
func (r *OrderRepository) CountExecutedToday(userID int64, date string) (int, error) {
	var count int
	err := r.db.QueryRow(
		`SELECT COUNT(*) FROM orders WHERE user_id = ? AND date = ? AND status = 'executed'`,
		userID, date,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count executed orders: %w", err)
	}
	return count, nil
}

// RealisedToday sums realised P/L over the user's executed sells for a date.
func (r *OrderRepository) RealisedToday(userID int64, date string) (float64, error) {
	var pnl sql.NullFloat64
	err := r.db.QueryRow(
		`SELECT SUM(realised_pnl) FROM orders
		 WHERE user_id = ? AND date = ? AND side = 'sell' AND status = 'executed'`,
		userID, date,
	).Scan(&pnl)
	if err != nil {
		return 0, fmt.Errorf("failed to sum realised pnl: %w", err)
	}
	return pnl.Float64, nil
}

// History lists the user's orders, most recent first.
func (r *OrderRepository) History(userID int64, limit int) ([]domain.Order, error) {
	rows, err := r.db.Query(
		`SELECT `+orderColumns+` FROM orders WHERE user_id = ? ORDER BY placed_at DESC, id DESC LIMIT ?`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query order history: %w", err)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating orders: %w", err)
	}
	return orders, nil
}

func scanOrder(rows *sql.Rows) (domain.Order, error) {
	var (
		o            domain.Order
		market, side string
		status       string
		placedAt     int64
		date         string
		pnl, rate    sql.NullFloat64
	)
	err := rows.Scan(&o.ID, &o.UserID, &o.Ticker, &o.Name, &market, &side,
		&o.Quantity, &o.Price, &placedAt, &date, &o.BrokerOrderID, &status,
		&pnl, &rate, &o.Reason)
	if err != nil {
		return o, err
	}
	o.Market = domain.Market(market)
	o.Side = domain.OrderSide(side)
	o.Status = domain.OrderStatus(status)
	o.PlacedAt = time.Unix(placedAt, 0).In(domain.MarketLocation())
	if pnl.Valid {
		o.RealisedPnL = &pnl.Float64
	}
	if rate.Valid {
		o.RealisedRate = &rate.Float64
	}
	return o, nil
}

func nullFloatPtr(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
