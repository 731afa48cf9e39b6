package journal

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/junghoon-woo/danta/internal/database"
	"github.com/junghoon-woo/danta/internal/domain"
)

// UserRepository loads trading accounts with their policy and broker
// credentials. Policies are read once at tick entry; nothing here mutates
// them mid-tick.
type UserRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewUserRepository(db *sql.DB, log zerolog.Logger) *UserRepository {
	return &UserRepository{db: db, log: log.With().Str("repo", "users").Logger()}
}

const userSelect = `
	SELECT u.id, u.name, u.is_paper, u.account_no,
	       s.mode, s.enabled, s.score_version, s.buy_conditions, s.sell_conditions,
	       s.min_buy_score, s.sell_score, s.stop_loss_rate, s.take_profit_rate,
	       s.max_holdings, s.max_daily_trades, s.max_hold_days, s.per_ticker_budget,
	       s.min_volume_ratio, s.gap_limit_pct, s.expire_hours,
	       COALESCE(k.app_key, ''), COALESCE(k.app_secret, '')
	FROM users u
	JOIN user_settings s ON s.user_id = u.id
	LEFT JOIN api_key_settings k ON k.user_id = u.id`

// ListEnabled returns every user whose automation is switched on, ordered by
// id so tick logs stay comparable run to run.
func (r *UserRepository) ListEnabled() ([]domain.User, error) {
	rows, err := r.db.Query(userSelect + ` WHERE s.enabled = 1 ORDER BY u.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query enabled users: %w", err)
	}
	defer rows.Close()
	return collectUsers(rows)
}

// Get returns one user regardless of the enabled flag.
func (r *UserRepository) Get(id int64) (*domain.User, error) {
	rows, err := r.db.Query(userSelect+` WHERE u.id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query user %d: %w", id, err)
	}
	defer rows.Close()

	users, err := collectUsers(rows)
	if err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, fmt.Errorf("user %d not found", id)
	}
	return &users[0], nil
}

// Create inserts a user with their settings in one transaction and returns
// the assigned id. Used by tests and the bootstrap path.
func (r *UserRepository) Create(u *domain.User) error {
	return database.WithTransaction(r.db, func(tx *sql.Tx) error {
		now := time.Now().Unix()
		res, err := tx.Exec(
			`INSERT INTO users (name, is_paper, account_no, created_at) VALUES (?, ?, ?, ?)`,
			u.Name, boolInt(u.IsPaper), u.AccountNo, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert user: %w", err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read user id: %w", err)
		}
		u.ID = id

		p := u.Policy
		_, err = tx.Exec(`
			INSERT INTO user_settings
			(user_id, mode, enabled, score_version, buy_conditions, sell_conditions,
			 min_buy_score, sell_score, stop_loss_rate, take_profit_rate, max_holdings,
			 max_daily_trades, max_hold_days, per_ticker_budget, min_volume_ratio,
			 gap_limit_pct, expire_hours, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			id, string(p.Mode), boolInt(p.Enabled), p.ScoreVersion, p.BuyConditions,
			p.SellConditions, p.MinBuyScore, p.SellScore, p.StopLossRate,
			p.TakeProfitRate, p.MaxHoldings, p.MaxDailyTrades, p.MaxHoldDays,
			p.PerTickerBudget, p.MinVolumeRatio, p.GapLimitPct, p.ExpireHours, now,
		)
		if err != nil {
			return fmt.Errorf("failed to insert user settings: %w", err)
		}

		if u.AppKey != "" || u.AppSecret != "" {
			_, err = tx.Exec(
				`INSERT INTO api_key_settings (user_id, app_key, app_secret, updated_at) VALUES (?, ?, ?, ?)`,
				id, u.AppKey, u.AppSecret, now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert api keys: %w", err)
			}
		}
		return nil
	})
}

func collectUsers(rows *sql.Rows) ([]domain.User, error) {
	var users []domain.User
	for rows.Next() {
		var (
			u       domain.User
			paper   int
			mode    string
			enabled int
		)
		err := rows.Scan(
			&u.ID, &u.Name, &paper, &u.AccountNo,
			&mode, &enabled, &u.Policy.ScoreVersion, &u.Policy.BuyConditions,
			&u.Policy.SellConditions, &u.Policy.MinBuyScore, &u.Policy.SellScore,
			&u.Policy.StopLossRate, &u.Policy.TakeProfitRate, &u.Policy.MaxHoldings,
			&u.Policy.MaxDailyTrades, &u.Policy.MaxHoldDays, &u.Policy.PerTickerBudget,
			&u.Policy.MinVolumeRatio, &u.Policy.GapLimitPct, &u.Policy.ExpireHours,
			&u.AppKey, &u.AppSecret,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.IsPaper = paper != 0
		u.Policy.Mode = domain.TradeMode(mode)
		u.Policy.Enabled = enabled != 0
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating users: %w", err)
	}
	return users, nil
}
