package journal

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/junghoon-woo/danta/internal/domain"
)

// ErrSuggestionNotPending rejects approve/reject on a suggestion that has
// already left the pending state.
var ErrSuggestionNotPending = errors.New("suggestion is not pending")

// ErrSuggestionNotApproved rejects recording an execution for a suggestion
// that was never approved.
var ErrSuggestionNotApproved = errors.New("suggestion is not approved")

const suggestionColumns = `id, user_id, ticker, name, market, score, recommended_price, buy_band_high, target_price, stop_price, status, created_at, expires_at`

// SuggestionRepository queues semi-mode buy proposals. The controller writes
// pending rows; the operator approves or rejects them through the API; the
// tick entry sweep expires the stale ones. Approved suggestions are never
// auto-executed here.
type SuggestionRepository struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewSuggestionRepository(db *sql.DB, log zerolog.Logger) *SuggestionRepository {
	return &SuggestionRepository{db: db, log: log.With().Str("repo", "buy_suggestions").Logger()}
}

// Create inserts a pending suggestion, generating its ID when empty.
func (r *SuggestionRepository) Create(s *domain.Suggestion) error {
	if s.Ticker == "" {
		return fmt.Errorf("suggestion needs a ticker")
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.Status == "" {
		s.Status = domain.SuggestionPending
	}
	_, err := r.db.Exec(`
		INSERT INTO buy_suggestions
		(id, user_id, ticker, name, market, score, recommended_price, buy_band_high,
		 target_price, stop_price, status, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.ID, s.UserID, s.Ticker, s.Name, string(s.Market), s.Score,
		s.RecommendedPrice, s.BuyBandHigh, s.TargetPrice, s.StopPrice,
		string(s.Status), s.CreatedAt.Unix(), s.ExpiresAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to create suggestion: %w", err)
	}
	r.log.Info().Int64("user_id", s.UserID).Str("ticker", s.Ticker).
		Int("score", s.Score).Time("expires_at", s.ExpiresAt).Msg("buy suggestion queued")
	return nil
}

// ExpirePending flips pending suggestions past their TTL to expired and
// returns how many changed. Runs at every tick entry.
func (r *SuggestionRepository) ExpirePending(now time.Time) (int64, error) {
	res, err := r.db.Exec(
		`UPDATE buy_suggestions SET status = 'expired' WHERE status = 'pending' AND expires_at <= ?`,
		now.Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire suggestions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to read expiry result: %w", err)
	}
	if n > 0 {
		r.log.Info().Int64("expired", n).Msg("stale suggestions expired")
	}
	return n, nil
}

// Get returns one suggestion, nil when absent.
func (r *SuggestionRepository) Get(id string) (*domain.Suggestion, error) {
	row := r.db.QueryRow(`SELECT `+suggestionColumns+` FROM buy_suggestions WHERE id = ?`, id)
	s, err := scanSuggestion(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get suggestion: %w", err)
	}
	return &s, nil
}

// ListByUser returns the user's suggestions with the given status, newest
// first. An empty status lists all of them.
func (r *SuggestionRepository) ListByUser(userID int64, status domain.SuggestionStatus) ([]domain.Suggestion, error) {
	query := `SELECT ` + suggestionColumns + ` FROM buy_suggestions WHERE user_id = ?`
	args := []any{userID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY created_at DESC, id`

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query suggestions: %w", err)
	}
	defer rows.Close()

	var out []domain.Suggestion
	for rows.Next() {
		s, err := scanSuggestion(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("failed to scan suggestion: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating suggestions: %w", err)
	}
	return out, nil
}

// PendingTickers returns the tickers with an open suggestion for the user,
// so the same candidate is not queued twice.
func (r *SuggestionRepository) PendingTickers(userID int64) (map[string]bool, error) {
	rows, err := r.db.Query(
		`SELECT DISTINCT ticker FROM buy_suggestions WHERE user_id = ? AND status = 'pending'`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending suggestion tickers: %w", err)
	}
	defer rows.Close()

	pending := make(map[string]bool)
	for rows.Next() {
		var ticker string
		if err := rows.Scan(&ticker); err != nil {
			return nil, fmt.Errorf("failed to scan ticker: %w", err)
		}
		pending[ticker] = true
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating tickers: %w", err)
	}
	return pending, nil
}

// Approve moves a pending suggestion to approved.
func (r *SuggestionRepository) Approve(id string) error {
	return r.transition(id, domain.SuggestionApproved)
}

// Reject moves a pending suggestion to rejected.
func (r *SuggestionRepository) Reject(id string) error {
	return r.transition(id, domain.SuggestionRejected)
}

// MarkExecuted records that the operator placed the order for an approved
// suggestion. The engine never acts on approvals itself; this transition
// arrives through the API and closes the suggestion so it cannot be acted on
// twice.
func (r *SuggestionRepository) MarkExecuted(id string) error {
	res, err := r.db.Exec(
		`UPDATE buy_suggestions SET status = 'executed' WHERE id = ? AND status = 'approved'`, id,
	)
	if err != nil {
		return fmt.Errorf("failed to mark suggestion %s executed: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("suggestion %s: %w", id, ErrSuggestionNotApproved)
	}
	r.log.Info().Str("id", id).Msg("suggestion execution recorded")
	return nil
}

func (r *SuggestionRepository) transition(id string, to domain.SuggestionStatus) error {
	res, err := r.db.Exec(
		`UPDATE buy_suggestions SET status = ? WHERE id = ? AND status = 'pending'`,
		string(to), id,
	)
	if err != nil {
		return fmt.Errorf("failed to update suggestion %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("suggestion %s: %w", id, ErrSuggestionNotPending)
	}
	r.log.Info().Str("id", id).Str("status", string(to)).Msg("suggestion updated")
	return nil
}

func scanSuggestion(scan func(...any) error) (domain.Suggestion, error) {
	var (
		s       domain.Suggestion
		market  string
		status  string
		created int64
		expires int64
	)
	err := scan(&s.ID, &s.UserID, &s.Ticker, &s.Name, &market, &s.Score,
		&s.RecommendedPrice, &s.BuyBandHigh, &s.TargetPrice, &s.StopPrice,
		&status, &created, &expires)
	if err != nil {
		return s, err
	}
	s.Market = domain.Market(market)
	s.Status = domain.SuggestionStatus(status)
	s.CreatedAt = time.Unix(created, 0).In(domain.MarketLocation())
	s.ExpiresAt = time.Unix(expires, 0).In(domain.MarketLocation())
	return s, nil
}
