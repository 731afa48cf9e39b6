package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/junghoon-woo/danta/internal/database"
	"github.com/junghoon-woo/danta/internal/domain"
)

// HoldingRecord is a journaled position: the holding itself plus the trigger
// latches and the exit plan attached at buy time. The latches survive process
// restarts so an armed trailing stop or an MA-20 touch is never forgotten.
type HoldingRecord struct {
	domain.Holding
	AboveMA20     bool
	TrailingArmed bool
	Plan          *domain.ExitPlan
}

// HoldingRepository materialises the holdings view per user.
type HoldingRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewHoldingRepository(db *sql.DB, log zerolog.Logger) *HoldingRepository {
	return &HoldingRepository{db: db, log: log.With().Str("repo", "holdings").Logger()}
}

// SaveAll replaces the user's holdings with the given records in one
// transaction. The executor's account state is authoritative at tick end;
// resyncing wholesale keeps the view consistent with it.
func (r *HoldingRepository) SaveAll(userID int64, recs []HoldingRecord) error {
	err := database.WithTransaction(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec(`DELETE FROM holdings WHERE user_id = ?`, userID); err != nil {
			return fmt.Errorf("failed to clear holdings: %w", err)
		}
		now := time.Now().Unix()
		for _, rec := range recs {
			plan, err := marshalPlan(rec.Plan)
			if err != nil {
				return fmt.Errorf("failed to encode exit plan for %s: %w", rec.Ticker, err)
			}
			_, err = tx.Exec(`
				INSERT INTO holdings
				(user_id, ticker, name, market, quantity, avg_price, current_price,
				 profit_rate, opened_at, above_ma20, trailing_armed, exit_plan, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				userID, rec.Ticker, rec.Name, string(rec.Market), rec.Quantity,
				rec.AvgPrice, rec.CurrentPrice, rec.ProfitRate, rec.OpenedAt.Unix(),
				boolInt(rec.AboveMA20), boolInt(rec.TrailingArmed), plan, now,
			)
			if err != nil {
				return fmt.Errorf("failed to insert holding %s: %w", rec.Ticker, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	r.log.Debug().Int64("user_id", userID).Int("holdings", len(recs)).Msg("holdings synced")
	return nil
}

// ListByUser returns the user's journaled positions sorted by ticker.
func (r *HoldingRepository) ListByUser(userID int64) ([]HoldingRecord, error) {
	rows, err := r.db.Query(`
		SELECT ticker, name, market, quantity, avg_price, current_price,
		       profit_rate, opened_at, above_ma20, trailing_armed, exit_plan
		FROM holdings WHERE user_id = ? ORDER BY ticker`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to query holdings: %w", err)
	}
	defer rows.Close()

	var recs []HoldingRecord
	for rows.Next() {
		var (
			rec      HoldingRecord
			market   string
			openedAt int64
			above    int
			armed    int
			plan     sql.NullString
		)
		err := rows.Scan(&rec.Ticker, &rec.Name, &market, &rec.Quantity,
			&rec.AvgPrice, &rec.CurrentPrice, &rec.ProfitRate, &openedAt,
			&above, &armed, &plan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan holding: %w", err)
		}
		rec.UserID = userID
		rec.Market = domain.Market(market)
		rec.OpenedAt = time.Unix(openedAt, 0).In(domain.MarketLocation())
		rec.AboveMA20 = above != 0
		rec.TrailingArmed = armed != 0
		if plan.Valid && plan.String != "" {
			var p domain.ExitPlan
			if err := json.Unmarshal([]byte(plan.String), &p); err != nil {
				return nil, fmt.Errorf("failed to decode exit plan for %s: %w", rec.Ticker, err)
			}
			rec.Plan = &p
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating holdings: %w", err)
	}
	return recs, nil
}

func marshalPlan(p *domain.ExitPlan) (sql.NullString, error) {
	if p == nil {
		return sql.NullString{}, nil
	}
	raw, err := json.Marshal(p)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(raw), Valid: true}, nil
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
