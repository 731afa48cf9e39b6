package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// BalanceRepository persists the simulated cash of paper accounts between
// process runs. Live accounts never touch it; their cash lives at the broker.
type BalanceRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewBalanceRepository(db *sql.DB, log zerolog.Logger) *BalanceRepository {
	return &BalanceRepository{db: db, log: log.With().Str("repo", "virtual_balance").Logger()}
}

// Get returns the user's simulated cash. When the user has no row yet the
// seed amount is written and returned, so a fresh paper account starts funded.
func (r *BalanceRepository) Get(userID int64, seed float64) (float64, error) {
	var cash float64
	err := r.db.QueryRow(`SELECT cash FROM virtual_balance WHERE user_id = ?`, userID).Scan(&cash)
	if errors.Is(err, sql.ErrNoRows) {
		if err := r.Save(userID, seed); err != nil {
			return 0, err
		}
		r.log.Info().Int64("user_id", userID).Float64("seed", seed).Msg("virtual balance seeded")
		return seed, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to get virtual balance: %w", err)
	}
	return cash, nil
}

// Save upserts the user's simulated cash.
func (r *BalanceRepository) Save(userID int64, cash float64) error {
	if cash < 0 {
		return fmt.Errorf("virtual balance must not be negative, got %.2f", cash)
	}
	_, err := r.db.Exec(`
		INSERT INTO virtual_balance (user_id, cash, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET cash = excluded.cash, updated_at = excluded.updated_at`,
		userID, cash, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save virtual balance: %w", err)
	}
	return nil
}
