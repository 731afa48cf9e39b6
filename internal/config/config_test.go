package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junghoon-woo/danta/internal/domain"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DANTA_DATA_DIR", t.TempDir())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, 200, cfg.Universe.KOSPICount)
	assert.Equal(t, 200, cfg.Universe.KOSDAQCount)
	assert.Equal(t, 50_000_000_000.0, cfg.Universe.MinMarketCap)
	assert.Equal(t, 40, cfg.Snapshot.Workers)
	assert.Equal(t, 15*time.Minute, cfg.Snapshot.MaxAge)
	assert.Equal(t, 5*time.Minute, cfg.Trading.TickDeadline)
	assert.Equal(t, 0.00015, cfg.Trading.Fees.CommissionRate)
	assert.Equal(t, 0.0018, cfg.Trading.Fees.SellTax(domain.MarketKOSPI))
	assert.False(t, cfg.Archive.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DANTA_DATA_DIR", t.TempDir())
	t.Setenv("SNAPSHOT_WORKERS", "8")
	t.Setenv("SNAPSHOT_MAX_AGE", "5m")
	t.Setenv("UNIVERSE_KOSPI_COUNT", "100")
	t.Setenv("DRY_RUN", "true")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8, cfg.Snapshot.Workers)
	assert.Equal(t, 5*time.Minute, cfg.Snapshot.MaxAge)
	assert.Equal(t, 100, cfg.Universe.KOSPICount)
	assert.True(t, cfg.Trading.DryRun)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("DANTA_DATA_DIR", t.TempDir())
	t.Setenv("SNAPSHOT_WORKERS", "lots")
	t.Setenv("SNAPSHOT_MAX_AGE", "soon")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Snapshot.Workers)
	assert.Equal(t, 15*time.Minute, cfg.Snapshot.MaxAge)
}

func TestValidate(t *testing.T) {
	t.Setenv("DANTA_DATA_DIR", t.TempDir())
	cfg, err := Load()
	require.NoError(t, err)

	cfg.Snapshot.Workers = 0
	assert.Error(t, cfg.Validate())

	cfg.Snapshot.Workers = 40
	cfg.Archive.Enabled = true
	cfg.Archive.Bucket = ""
	assert.Error(t, cfg.Validate())
}

func TestDerivedPaths(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("DANTA_DATA_DIR", dir)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Contains(t, cfg.DatabasePath(), "danta.db")
	assert.Contains(t, cfg.SnapshotDir(), "snapshots")
	assert.Contains(t, cfg.UniverseDir(), "universe")
	assert.Contains(t, cfg.PIDFilePath(), "danta.pid")
}
