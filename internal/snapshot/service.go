package snapshot

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/junghoon-woo/danta/internal/domain"
)

// UniverseSource serves the day's filtered universe. A missing universe file
// aborts the tick; there is no fallback enumeration.
type UniverseSource interface {
	Load() (*domain.Universe, error)
}

// Service runs one complete snapshot tick: load the day's universe, build
// the snapshot, persist it atomically.
type Service struct {
	universe UniverseSource
	writer   *Writer
	store    *Store
	log      zerolog.Logger
}

// NewService wires the snapshot tick.
func NewService(universe UniverseSource, writer *Writer, store *Store, log zerolog.Logger) *Service {
	return &Service{
		universe: universe,
		writer:   writer,
		store:    store,
		log:      log.With().Str("component", "snapshot").Logger(),
	}
}

// Tick produces and persists the snapshot for the current minute.
func (s *Service) Tick(ctx context.Context) (*Snapshot, error) {
	u, err := s.universe.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load universe: %w", err)
	}

	snap, err := s.writer.Build(ctx, u)
	if err != nil {
		return nil, err
	}
	if err := s.store.Write(snap); err != nil {
		return nil, err
	}
	return snap, nil
}

// Latest returns the newest persisted snapshot within maxAge of now.
func (s *Service) Latest(now time.Time, maxAge time.Duration) (*Snapshot, error) {
	return s.store.Latest(now, maxAge)
}
