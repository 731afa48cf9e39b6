package universe

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/junghoon-woo/danta/internal/config"
	"github.com/junghoon-woo/danta/internal/domain"
)

// Lister supplies the full equity listing with market cap, prior traded
// value and share counts. The history store implements this from the
// collector-maintained listing table.
type Lister interface {
	Listings(ctx context.Context) ([]domain.Stock, error)
}

// Service runs the pre-market universe job and serves the day's file to the
// intraday ticks.
type Service struct {
	lister Lister
	store  *Store
	cfg    config.UniverseConfig
	clock  domain.Clock
	log    zerolog.Logger
}

// NewService wires the universe job.
func NewService(lister Lister, store *Store, cfg config.UniverseConfig, clock domain.Clock, log zerolog.Logger) *Service {
	return &Service{
		lister: lister,
		store:  store,
		cfg:    cfg,
		clock:  clock,
		log:    log.With().Str("component", "universe").Logger(),
	}
}

// Run builds and writes today's universe file, replacing any earlier run for
// the same date.
func (s *Service) Run(ctx context.Context) (*domain.Universe, error) {
	now := s.clock.Now()
	date := domain.MarketDate(now)

	listings, err := s.lister.Listings(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load listings: %w", err)
	}

	selected := Select(listings, s.cfg)
	if len(selected) == 0 {
		return nil, errors.New("no listings passed the universe filter")
	}

	kospi := 0
	for _, stock := range selected {
		if stock.Market == domain.MarketKOSPI {
			kospi++
		}
	}

	u := &domain.Universe{Date: date, CreatedAt: now, Stocks: selected}
	if err := s.store.Write(u); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("date", date).
		Int("listings", len(listings)).
		Int("kospi", kospi).
		Int("kosdaq", len(selected)-kospi).
		Msg("universe built")
	return u, nil
}

// Load returns the universe for the current market date. ErrNotFound aborts
// the caller's tick.
func (s *Service) Load() (*domain.Universe, error) {
	return s.store.Load(domain.MarketDate(s.clock.Now()))
}
