package snapshot

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junghoon-woo/danta/internal/domain"
	"github.com/junghoon-woo/danta/internal/universe"
)

type fakeUniverse struct {
	u   *domain.Universe
	err error
}

func (f fakeUniverse) Load() (*domain.Universe, error) { return f.u, f.err }

func TestService_TickBuildsAndPersists(t *testing.T) {
	provider := &fakeProvider{series: map[string]*domain.PriceSeries{
		"100010": seriesOf("100010", 150),
	}}
	w := newTestWriter(t, provider, nil, nil, Config{Workers: 1, LiquidityFloor: 1e9})
	store := NewStore(t.TempDir(), zerolog.Nop())
	svc := NewService(fakeUniverse{u: universeOf(listingOf("100010", 2e9))}, w, store, zerolog.Nop())

	snap, err := svc.Tick(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, snap.Len())

	_, err = os.Stat(store.Path(snap.TickTS))
	require.NoError(t, err, "tick persists the snapshot file")

	loaded, err := svc.Latest(snap.TickTS.Add(5*time.Minute), 15*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, snap.TickTS, loaded.TickTS)
}

func TestService_MissingUniverseAbortsTick(t *testing.T) {
	w := newTestWriter(t, &fakeProvider{}, nil, nil, Config{})
	store := NewStore(t.TempDir(), zerolog.Nop())
	svc := NewService(fakeUniverse{err: universe.ErrNotFound}, w, store, zerolog.Nop())

	_, err := svc.Tick(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, universe.ErrNotFound)
}
