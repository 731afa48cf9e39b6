package journal

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DayLockRepository holds the per-(user, date) trading latch. A permanent
// broker failure locks the user out for the rest of the day without touching
// their enabled flag, so the configuration survives the incident untouched.
type DayLockRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewDayLockRepository(db *sql.DB, log zerolog.Logger) *DayLockRepository {
	return &DayLockRepository{db: db, log: log.With().Str("repo", "day_locks").Logger()}
}

// Lock latches a user for the given market date. Locking an already locked
// day keeps the original reason.
func (r *DayLockRepository) Lock(userID int64, date, reason string) error {
	_, err := r.db.Exec(`
		INSERT INTO user_day_locks (user_id, date, reason, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (user_id, date) DO NOTHING`,
		userID, date, reason, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to lock user %d for %s: %w", userID, date, err)
	}
	r.log.Warn().Int64("user_id", userID).Str("date", date).Str("reason", reason).
		Msg("user locked out for the day")
	return nil
}

// IsLocked reports whether a user sits behind a latch for the date.
func (r *DayLockRepository) IsLocked(userID int64, date string) (bool, error) {
	var n int
	err := r.db.QueryRow(
		`SELECT COUNT(1) FROM user_day_locks WHERE user_id = ? AND date = ?`,
		userID, date,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check day lock: %w", err)
	}
	return n > 0, nil
}
