package scheduler

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junghoon-woo/danta/internal/domain"
	"github.com/junghoon-woo/danta/internal/snapshot"
)

type fakeSnapshots struct {
	snap  *snapshot.Snapshot
	err   error
	calls int
}

func (f *fakeSnapshots) Tick(context.Context) (*snapshot.Snapshot, error) {
	f.calls++
	return f.snap, f.err
}

type fakeTrader struct {
	calls int
	err   error
}

func (f *fakeTrader) Tick(context.Context, *snapshot.Snapshot) error {
	f.calls++
	return f.err
}

func fixedClock(t time.Time) domain.Clock {
	return domain.ClockFunc(func() time.Time { return t })
}

func TestTickJob_RunsInsideWindow(t *testing.T) {
	snaps := &fakeSnapshots{snap: snapshot.New(time.Now(), nil, false)}
	trader := &fakeTrader{}
	job := &TickJob{
		Snapshots: snaps,
		Trader:    trader,
		Clock:     fixedClock(time.Date(2026, 8, 25, 10, 0, 0, 0, domain.MarketLocation())),
		Log:       zerolog.Nop(),
	}

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, 1, snaps.calls)
	assert.Equal(t, 1, trader.calls)
}

func TestTickJob_SkipsOutsideWindow(t *testing.T) {
	for name, at := range map[string]time.Time{
		"before open": time.Date(2026, 8, 25, 8, 30, 0, 0, domain.MarketLocation()),
		"after close": time.Date(2026, 8, 25, 15, 45, 0, 0, domain.MarketLocation()),
		"weekend":     time.Date(2026, 8, 29, 10, 0, 0, 0, domain.MarketLocation()),
	} {
		snaps := &fakeSnapshots{}
		trader := &fakeTrader{}
		job := &TickJob{Snapshots: snaps, Trader: trader, Clock: fixedClock(at), Log: zerolog.Nop()}

		require.NoError(t, job.Run(context.Background()), name)
		assert.Zero(t, snaps.calls, name)
		assert.Zero(t, trader.calls, name)
	}
}

func TestTickJob_SnapshotFailureSkipsTrading(t *testing.T) {
	snaps := &fakeSnapshots{err: errors.New("fetch storm")}
	trader := &fakeTrader{}
	job := &TickJob{
		Snapshots: snaps,
		Trader:    trader,
		Clock:     fixedClock(time.Date(2026, 8, 25, 10, 0, 0, 0, domain.MarketLocation())),
		Log:       zerolog.Nop(),
	}

	require.Error(t, job.Run(context.Background()))
	assert.Zero(t, trader.calls, "no trading without a snapshot")
}

func TestTickSpec(t *testing.T) {
	assert.Equal(t, "*/10 * * * MON-FRI", TickSpec(10*time.Minute))
	assert.Equal(t, "*/1 * * * MON-FRI", TickSpec(30*time.Second))
	assert.Equal(t, "*/60 * * * MON-FRI", TickSpec(2*time.Hour))
}

func TestSchedulerRunsRegisteredJob(t *testing.T) {
	s := New(zerolog.Nop())
	ran := make(chan struct{}, 1)
	err := s.AddJob("@every 10ms", JobFunc{JobName: "probe", Fn: func(context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}})
	require.NoError(t, err)

	s.Start()
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job never ran")
	}
}

func TestPIDFileLifecycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "danta.pid")

	pf, err := AcquirePIDFile(path)
	require.NoError(t, err)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, strconv.Itoa(os.Getpid()), string(raw))

	require.NoError(t, pf.Release())
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestPIDFileReclaimsStale(t *testing.T) {
	path := filepath.Join(t.TempDir(), "danta.pid")
	// A pid far outside any plausible live range.
	require.NoError(t, os.WriteFile(path, []byte("999999999"), 0o644))

	pf, err := AcquirePIDFile(path)
	require.NoError(t, err, "a dead pid must be reclaimed")
	require.NoError(t, pf.Release())
}
