// Package alert journals operator alerts and fans them out to a notifier.
// The journal's (user, ticker, kind, day) dedupe sits in front of delivery,
// so a trigger that fires on every tick reaches the operator once per day.
package alert

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/junghoon-woo/danta/internal/domain"
	"github.com/junghoon-woo/danta/internal/journal"
)

// Alert kinds the engine emits. The kind doubles as the dedupe key and the
// journal's title column.
const (
	KindConfig           = "ALERT_CONFIG"
	KindBroker           = "ALERT_BROKER"
	KindInternal         = "ALERT_INTERNAL"
	KindSnapshotDegraded = "SNAPSHOT_DEGRADED"
	KindTickFailed       = "TICK_FAILED"
	KindBuyExecuted      = "BUY_EXECUTED"
	KindSellExecuted     = "SELL_EXECUTED"
	KindOrderRejected    = "ORDER_REJECTED"
	KindSuggestionQueued = "SUGGESTION_QUEUED"
)

// Service records alerts and notifies the push collaborator for fresh ones.
// It satisfies domain.Notifier so components that only speak the interface
// still get journaling for free.
type Service struct {
	repo     *journal.AlertRepository
	notifier domain.Notifier
	clock    domain.Clock
	log      zerolog.Logger
}

var _ domain.Notifier = (*Service)(nil)

// NewService wires the alert pipeline. notifier may be nil, leaving only the
// journal trail.
func NewService(repo *journal.AlertRepository, notifier domain.Notifier, clock domain.Clock, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		clock:    clock,
		log:      log.With().Str("component", "alerts").Logger(),
	}
}

// Notify journals the alert and, when it is the first of its kind for the
// day, forwards it. Failures are logged and swallowed: alerting must never
// fail a trading tick.
func (s *Service) Notify(ctx context.Context, a domain.Alert) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.clock.Now()
	}
	fresh, err := s.repo.Record(a)
	if err != nil {
		s.log.Error().Err(err).Str("kind", a.Title).Msg("failed to journal alert")
		return
	}
	if !fresh {
		return
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, a)
	}
}

// Emit is a convenience for building and sending an alert in one call.
func (s *Service) Emit(ctx context.Context, level domain.AlertLevel, userID int64, ticker, kind, message string) {
	s.Notify(ctx, domain.Alert{
		Level:     level,
		UserID:    userID,
		Ticker:    ticker,
		Title:     kind,
		Message:   message,
		CreatedAt: s.clock.Now(),
	})
}

// Recent lists the newest journaled alerts.
func (s *Service) Recent(limit int) ([]domain.Alert, error) {
	return s.repo.Recent(limit)
}

// LogNotifier writes alerts to the process log. It is the default delivery
// target; push transports replace it in deployments that have one.
type LogNotifier struct {
	log zerolog.Logger
}

var _ domain.Notifier = (*LogNotifier)(nil)

func NewLogNotifier(log zerolog.Logger) *LogNotifier {
	return &LogNotifier{log: log.With().Str("component", "notifier").Logger()}
}

// Notify logs the alert at a level matching its severity.
func (n *LogNotifier) Notify(_ context.Context, a domain.Alert) {
	var ev *zerolog.Event
	switch a.Level {
	case domain.AlertCritical:
		ev = n.log.Error()
	case domain.AlertWarning:
		ev = n.log.Warn()
	default:
		ev = n.log.Info()
	}
	if a.UserID != 0 {
		ev = ev.Int64("user_id", a.UserID)
	}
	if a.Ticker != "" {
		ev = ev.Str("ticker", a.Ticker)
	}
	ev.Str("kind", a.Title).Time("at", a.CreatedAt.In(domain.MarketLocation())).Msg(a.Message)
}
