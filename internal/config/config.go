// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/junghoon-woo/danta/internal/domain"
)

// Config holds application configuration. Values come from the environment
// (optionally a .env file); per-user broker credentials live in the database,
// not here.
type Config struct {
	DataDir  string // base directory for the database, snapshots and universe files, always absolute
	LogLevel string
	LogJSON  bool // true forces JSON logs even on a TTY

	Universe  UniverseConfig
	Snapshot  SnapshotConfig
	Trading   TradingConfig
	KIS       KISConfig
	Server    ServerConfig
	Archive   ArchiveConfig
	RulesPath string // scoring rules YAML, empty uses built-in defaults
}

// UniverseConfig controls the pre-open stock filter.
type UniverseConfig struct {
	KOSPICount       int     // top-N KOSPI entries by market cap
	KOSDAQCount      int     // top-N KOSDAQ entries by market cap
	MinAvgValue      float64 // 20-day average traded value floor, KRW
	MinMarketCap     float64 // market-cap floor, KRW
	MarketCapCeiling float64 // 0 disables the ceiling
}

// SnapshotConfig controls the price snapshot job and its staleness rules.
type SnapshotConfig struct {
	Workers    int           // concurrent fetchers for the snapshot build
	MaxAge     time.Duration // snapshots older than this are stale
	MaxBars    int           // daily bars kept per ticker
	RetryCount int           // per-ticker fetch retries before skipping
}

// TradingConfig holds engine-wide trading parameters shared by all users.
type TradingConfig struct {
	TickInterval time.Duration // intraday loop cadence
	TickDeadline time.Duration // per-tick budget before cancellation
	Fees         domain.FeeSchedule
	MacroTicker  string // index ticker for the macro regime gate, empty disables
	DryRun       bool   // global override: journal orders without placing them
	Parallelism  int    // concurrent user ticks
	PaperSeed    float64 // starting virtual balance for paper accounts, KRW
}

// KISConfig holds broker API settings. App keys here are the fallback for
// users without their own credentials.
type KISConfig struct {
	BaseURL    string
	AppKey     string
	AppSecret  string
	AccountNo  string
	Timeout    time.Duration
	MinDelay   time.Duration // spacing between requests, rate-limit guard
	MaxRetries int
}

// ServerConfig controls the operator HTTP API.
type ServerConfig struct {
	Enabled bool
	Port    int
}

// ArchiveConfig controls nightly S3 archival of the database and snapshots.
type ArchiveConfig struct {
	Enabled   bool
	Bucket    string
	Prefix    string
	Region    string
	Endpoint  string // non-AWS S3-compatible endpoint, empty for AWS
	AccessKey string
	SecretKey string
	Keep      int // archives retained before pruning
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DANTA_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:   absDataDir,
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogJSON:   getEnvAsBool("LOG_JSON", false),
		RulesPath: getEnv("DANTA_RULES_PATH", ""),
		Universe: UniverseConfig{
			KOSPICount:       getEnvAsInt("UNIVERSE_KOSPI_COUNT", 200),
			KOSDAQCount:      getEnvAsInt("UNIVERSE_KOSDAQ_COUNT", 200),
			MinAvgValue:      getEnvAsFloat("UNIVERSE_MIN_AVG_VALUE", 1_000_000_000),
			MinMarketCap:     getEnvAsFloat("UNIVERSE_MIN_MARKET_CAP", 50_000_000_000),
			MarketCapCeiling: getEnvAsFloat("UNIVERSE_MARKET_CAP_CEILING", 0),
		},
		Snapshot: SnapshotConfig{
			Workers:    getEnvAsInt("SNAPSHOT_WORKERS", 40),
			MaxAge:     getEnvAsDuration("SNAPSHOT_MAX_AGE", 15*time.Minute),
			MaxBars:    getEnvAsInt("SNAPSHOT_MAX_BARS", 260),
			RetryCount: getEnvAsInt("SNAPSHOT_RETRY_COUNT", 2),
		},
		Trading: TradingConfig{
			TickInterval: getEnvAsDuration("TICK_INTERVAL", 10*time.Minute),
			TickDeadline: getEnvAsDuration("TICK_DEADLINE", 5*time.Minute),
			Fees: domain.FeeSchedule{
				CommissionRate: getEnvAsFloat("FEE_COMMISSION_RATE", 0.00015),
				TaxRates: map[domain.Market]float64{
					domain.MarketKOSPI:  getEnvAsFloat("FEE_TAX_KOSPI", 0.0018),
					domain.MarketKOSDAQ: getEnvAsFloat("FEE_TAX_KOSDAQ", 0.0018),
				},
			},
			MacroTicker: getEnv("MACRO_TICKER", "COMP"),
			DryRun:      getEnvAsBool("DRY_RUN", false),
			Parallelism: getEnvAsInt("TRADE_PARALLELISM", 4),
			PaperSeed:   getEnvAsFloat("PAPER_SEED_BALANCE", 10_000_000),
		},
		KIS: KISConfig{
			BaseURL:    getEnv("KIS_BASE_URL", "https://openapi.koreainvestment.com:9443"),
			AppKey:     getEnv("KIS_APP_KEY", ""),
			AppSecret:  getEnv("KIS_APP_SECRET", ""),
			AccountNo:  getEnv("KIS_ACCOUNT_NO", ""),
			Timeout:    getEnvAsDuration("KIS_TIMEOUT", 10*time.Second),
			MinDelay:   getEnvAsDuration("KIS_MIN_DELAY", 120*time.Millisecond),
			MaxRetries: getEnvAsInt("KIS_MAX_RETRIES", 3),
		},
		Server: ServerConfig{
			Enabled: getEnvAsBool("SERVER_ENABLED", true),
			Port:    getEnvAsInt("SERVER_PORT", 8170),
		},
		Archive: ArchiveConfig{
			Enabled:   getEnvAsBool("ARCHIVE_ENABLED", false),
			Bucket:    getEnv("ARCHIVE_BUCKET", ""),
			Prefix:    getEnv("ARCHIVE_PREFIX", "danta"),
			Region:    getEnv("ARCHIVE_REGION", "auto"),
			Endpoint:  getEnv("ARCHIVE_ENDPOINT", ""),
			AccessKey: getEnv("ARCHIVE_ACCESS_KEY", ""),
			SecretKey: getEnv("ARCHIVE_SECRET_KEY", ""),
			Keep:      getEnvAsInt("ARCHIVE_KEEP", 14),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks if required configuration is present.
func (c *Config) Validate() error {
	if c.Snapshot.Workers <= 0 {
		return fmt.Errorf("snapshot workers must be positive, got %d", c.Snapshot.Workers)
	}
	if c.Snapshot.MaxAge <= 0 {
		return fmt.Errorf("snapshot max age must be positive, got %s", c.Snapshot.MaxAge)
	}
	if c.Trading.TickDeadline <= 0 {
		return fmt.Errorf("tick deadline must be positive, got %s", c.Trading.TickDeadline)
	}
	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return fmt.Errorf("archive enabled but ARCHIVE_BUCKET is empty")
	}
	return nil
}

// DatabasePath returns the sqlite file under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "danta.db")
}

// SnapshotDir returns the directory snapshot files are written to.
func (c *Config) SnapshotDir() string {
	return filepath.Join(c.DataDir, "snapshots")
}

// UniverseDir returns the directory universe CSV files are written to.
func (c *Config) UniverseDir() string {
	return filepath.Join(c.DataDir, "universe")
}

// PIDFilePath returns the scheduler lock file path.
func (c *Config) PIDFilePath() string {
	return filepath.Join(c.DataDir, "danta.pid")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
