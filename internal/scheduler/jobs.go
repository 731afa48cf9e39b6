package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/junghoon-woo/danta/internal/domain"
	"github.com/junghoon-woo/danta/internal/snapshot"
)

// Cron schedules, exchange time. The tick spec is derived from the
// configured interval at wiring time.
const (
	// UniverseSpec runs the pre-open filter before the session warmup.
	UniverseSpec = "0 7 * * MON-FRI"
	// ArchiveSpec runs nightly archival after the session settles.
	ArchiveSpec = "30 16 * * MON-FRI"
	// MaintenanceSpec compacts the database on the weekend.
	MaintenanceSpec = "0 3 * * SAT"
)

// TickSpec builds the intraday cron expression for a tick interval. Cron
// has minute granularity; intervals are clamped to [1m, 60m].
func TickSpec(interval time.Duration) string {
	minutes := int(interval.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	if minutes > 60 {
		minutes = 60
	}
	return fmt.Sprintf("*/%d * * * MON-FRI", minutes)
}

// SnapshotTicker builds one snapshot per intraday tick.
type SnapshotTicker interface {
	Tick(ctx context.Context) (*snapshot.Snapshot, error)
}

// TradeTicker fans a snapshot out to every enabled user.
type TradeTicker interface {
	Tick(ctx context.Context, snap *snapshot.Snapshot) error
}

// UniverseRunner rebuilds the morning universe file.
type UniverseRunner interface {
	Run(ctx context.Context) (*domain.Universe, error)
}

// Archiver uploads the nightly archive and prunes old ones.
type Archiver interface {
	Run(ctx context.Context) error
}

// Maintainer compacts the journal database.
type Maintainer interface {
	Maintain() error
}

// TickJob is the heart of the intraday loop: build a snapshot, trade it.
// Outside the scheduler window it returns without side effects, so the cron
// expression stays simple and the window logic stays testable.
type TickJob struct {
	Snapshots SnapshotTicker
	Trader    TradeTicker
	Clock     domain.Clock
	Log       zerolog.Logger
}

func (j *TickJob) Name() string { return "intraday-tick" }

func (j *TickJob) Run(ctx context.Context) error {
	now := j.Clock.Now()
	if !domain.IsSchedulerWindow(now) {
		j.Log.Debug().Time("now", now).Msg("outside scheduler window")
		return nil
	}

	snap, err := j.Snapshots.Tick(ctx)
	if err != nil {
		return fmt.Errorf("snapshot build failed: %w", err)
	}
	if err := j.Trader.Tick(ctx, snap); err != nil {
		return fmt.Errorf("trade pass failed: %w", err)
	}
	return nil
}

// UniverseJob rebuilds the day's tradable universe before the open.
type UniverseJob struct {
	Universe UniverseRunner
	Log      zerolog.Logger
}

func (j *UniverseJob) Name() string { return "universe-filter" }

func (j *UniverseJob) Run(ctx context.Context) error {
	u, err := j.Universe.Run(ctx)
	if err != nil {
		return fmt.Errorf("universe filter failed: %w", err)
	}
	j.Log.Info().Int("stocks", len(u.Stocks)).Msg("universe rebuilt")
	return nil
}

// ArchiveJob ships the nightly archive. A nil archiver (archival disabled)
// makes the job a no-op so wiring stays unconditional.
type ArchiveJob struct {
	Archiver Archiver
	Log      zerolog.Logger
}

func (j *ArchiveJob) Name() string { return "nightly-archive" }

func (j *ArchiveJob) Run(ctx context.Context) error {
	if j.Archiver == nil {
		return nil
	}
	return j.Archiver.Run(ctx)
}

// MaintenanceJob checkpoints and compacts the journal database.
type MaintenanceJob struct {
	DB  Maintainer
	Log zerolog.Logger
}

func (j *MaintenanceJob) Name() string { return "db-maintenance" }

func (j *MaintenanceJob) Run(context.Context) error {
	return j.DB.Maintain()
}
