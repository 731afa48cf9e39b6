package journal

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/junghoon-woo/danta/internal/domain"
)

// AlertRepository journals operator alerts with one-per-day dedupe on
// (user, ticker, kind, date). A stop loss firing on every tick of a falling
// position produces a single row.
type AlertRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewAlertRepository(db *sql.DB, log zerolog.Logger) *AlertRepository {
	return &AlertRepository{db: db, log: log.With().Str("repo", "alert_history").Logger()}
}

// Record inserts an alert unless the same (user, ticker, kind) was already
// journaled for the alert's market date. Returns whether a row was written.
func (r *AlertRepository) Record(a domain.Alert) (bool, error) {
	if a.Title == "" {
		return false, fmt.Errorf("alert needs a title")
	}
	created := a.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	res, err := r.db.Exec(`
		INSERT INTO alert_history (user_id, ticker, kind, level, message, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, ticker, kind, date) DO NOTHING`,
		a.UserID, a.Ticker, a.Title, string(a.Level), a.Message,
		domain.MarketDate(created), created.Unix(),
	)
	if err != nil {
		return false, fmt.Errorf("failed to record alert: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return n > 0, nil
}

// Recent lists the newest alerts across all users.
func (r *AlertRepository) Recent(limit int) ([]domain.Alert, error) {
	rows, err := r.db.Query(`
		SELECT user_id, ticker, kind, level, message, created_at
		FROM alert_history ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []domain.Alert
	for rows.Next() {
		var (
			a       domain.Alert
			level   string
			created int64
		)
		if err := rows.Scan(&a.UserID, &a.Ticker, &a.Title, &level, &a.Message, &created); err != nil {
			return nil, fmt.Errorf("failed to scan alert: %w", err)
		}
		a.Level = domain.AlertLevel(level)
		a.CreatedAt = time.Unix(created, 0).In(domain.MarketLocation())
		alerts = append(alerts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating alerts: %w", err)
	}
	return alerts, nil
}
