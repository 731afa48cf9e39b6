package universe

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junghoon-woo/danta/internal/domain"
)

func sampleUniverse() *domain.Universe {
	return &domain.Universe{
		Date: "2025-03-05",
		Stocks: []domain.Stock{
			{Ticker: "005930", Name: "삼성전자", Market: domain.MarketKOSPI, MarketCap: 400e12, AvgValue: 500e9, Shares: 5_969_782_550},
			{Ticker: "000660", Name: "SK하이닉스", Market: domain.MarketKOSPI, MarketCap: 120e12, AvgValue: 300e9, Shares: 728_002_365},
			{Ticker: "247540", Name: "에코프로비엠", Market: domain.MarketKOSDAQ, MarketCap: 25e12, AvgValue: 200e9, Shares: 97_801_344},
		},
	}
}

func TestStore_WriteLoadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir(), zerolog.Nop())

	u := sampleUniverse()
	require.NoError(t, store.Write(u))

	got, err := store.Load("2025-03-05")
	require.NoError(t, err)
	assert.Equal(t, u.Stocks, got.Stocks)
	assert.Equal(t, "2025-03-05", got.Date)
	assert.False(t, got.CreatedAt.IsZero(), "creation time comes from the file")

	// Idempotent: a second load yields the same set.
	again, err := store.Load("2025-03-05")
	require.NoError(t, err)
	assert.Equal(t, got.Stocks, again.Stocks)
}

func TestStore_PathUsesCompactDate(t *testing.T) {
	store := NewStore("/data/universe", zerolog.Nop())
	assert.Equal(t, "/data/universe/filtered_stocks_20250305.csv", store.Path("2025-03-05"))
}

func TestStore_LoadMissingFile(t *testing.T) {
	store := NewStore(t.TempDir(), zerolog.Nop())

	_, err := store.Load("2025-03-05")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_WriteLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, zerolog.Nop())
	require.NoError(t, store.Write(sampleUniverse()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "filtered_stocks_20250305.csv", entries[0].Name())
}

func TestStore_RestoresStrippedLeadingZeros(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "filtered_stocks_20250305.csv")
	csv := "Code,Name,Market,Marcap,Amount,Stocks\n" +
		"5930,삼성전자,KOSPI,400000000000000,500000000000,5969782550\n"
	require.NoError(t, os.WriteFile(path, []byte(csv), 0o644))

	store := NewStore(dir, zerolog.Nop())
	got, err := store.Load("2025-03-05")
	require.NoError(t, err)
	require.Len(t, got.Stocks, 1)
	assert.Equal(t, "005930", got.Stocks[0].Ticker)
}

func TestStore_RejectsMalformedRows(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "filtered_stocks_20250305.csv")
	require.NoError(t, os.WriteFile(path, []byte("Code,Name,Market\n005930,삼성전자,KOSPI\n"), 0o644))

	store := NewStore(dir, zerolog.Nop())
	_, err := store.Load("2025-03-05")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expected 6 columns")
}

