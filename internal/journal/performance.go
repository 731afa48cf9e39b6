package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/junghoon-woo/danta/internal/domain"
)

// PerfRepository keeps one performance row per (user, market date), upserted
// at the end of every user-tick.
type PerfRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewPerfRepository(db *sql.DB, log zerolog.Logger) *PerfRepository {
	return &PerfRepository{db: db, log: log.With().Str("repo", "daily_performance").Logger()}
}

// Upsert writes the day's figures, replacing any earlier tick's row.
func (r *PerfRepository) Upsert(p domain.DailyPerf) error {
	if p.Date == "" {
		return fmt.Errorf("daily performance needs a date")
	}
	_, err := r.db.Exec(`
		INSERT INTO daily_performance
		(user_id, date, total_assets, d2_cash, holdings_value, invested, realised_pnl, num_holdings, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, date) DO UPDATE SET
			total_assets = excluded.total_assets,
			d2_cash = excluded.d2_cash,
			holdings_value = excluded.holdings_value,
			invested = excluded.invested,
			realised_pnl = excluded.realised_pnl,
			num_holdings = excluded.num_holdings,
			updated_at = excluded.updated_at`,
		p.UserID, p.Date, p.TotalAssets, p.D2Cash, p.HoldingsValue,
		p.Invested, p.RealisedPnL, p.NumHoldings, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert daily performance: %w", err)
	}
	return nil
}

// Range returns rows for [from, to] inclusive, oldest first. Dates are
// YYYY-MM-DD strings, which sort lexicographically.
func (r *PerfRepository) Range(userID int64, from, to string) ([]domain.DailyPerf, error) {
	rows, err := r.db.Query(`
		SELECT user_id, date, total_assets, d2_cash, holdings_value, invested, realised_pnl, num_holdings
		FROM daily_performance
		WHERE user_id = ? AND date >= ? AND date <= ?
		ORDER BY date`, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to query daily performance: %w", err)
	}
	defer rows.Close()

	var perfs []domain.DailyPerf
	for rows.Next() {
		var p domain.DailyPerf
		err := rows.Scan(&p.UserID, &p.Date, &p.TotalAssets, &p.D2Cash,
			&p.HoldingsValue, &p.Invested, &p.RealisedPnL, &p.NumHoldings)
		if err != nil {
			return nil, fmt.Errorf("failed to scan daily performance: %w", err)
		}
		perfs = append(perfs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating daily performance: %w", err)
	}
	return perfs, nil
}

// Latest returns the most recent row for a user, nil when none exists.
func (r *PerfRepository) Latest(userID int64) (*domain.DailyPerf, error) {
	var p domain.DailyPerf
	err := r.db.QueryRow(`
		SELECT user_id, date, total_assets, d2_cash, holdings_value, invested, realised_pnl, num_holdings
		FROM daily_performance
		WHERE user_id = ? ORDER BY date DESC LIMIT 1`, userID).
		Scan(&p.UserID, &p.Date, &p.TotalAssets, &p.D2Cash,
			&p.HoldingsValue, &p.Invested, &p.RealisedPnL, &p.NumHoldings)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get latest performance: %w", err)
	}
	return &p, nil
}
