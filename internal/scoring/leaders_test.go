package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scaled returns the series multiplied by k; scaling preserves percent
// returns exactly, so the correlation against the original is 1.
func scaled(xs []float64, k float64) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = x * k
	}
	return out
}

// mirrored inverts every percent move, giving correlation -1.
func mirrored(xs []float64) []float64 {
	out := make([]float64, len(xs))
	out[0] = xs[0]
	for i := 1; i < len(xs); i++ {
		r := (xs[i] - xs[i-1]) / xs[i-1]
		out[i] = out[i-1] * (1 - r)
	}
	return out
}

func TestBuildLeaderMap_PerfectCorrelation(t *testing.T) {
	leader := []float64{100, 102, 101, 105, 104, 108, 110, 109, 113, 115, 114}
	closes := map[string][]float64{
		"005930": leader,
		"000660": scaled(leader, 10),
		"035420": mirrored(leader),
	}

	got := BuildLeaderMap(closes, []string{"005930"}, LeaderMapConfig{Window: 10, MinCorr: 0.6, MaxLeaders: 3})

	require.Contains(t, got, "000660")
	refs := got["000660"]
	require.Len(t, refs, 1)
	assert.Equal(t, "005930", refs[0].Leader)
	assert.InDelta(t, 1.0, refs[0].Correlation, 1e-9)

	assert.NotContains(t, got, "035420", "inverse mover falls under the floor")
	assert.NotContains(t, got, "005930", "a ticker is never its own leader")
}

func TestBuildLeaderMap_CapsAndOrders(t *testing.T) {
	base := []float64{100, 102, 101, 105, 104, 108, 110, 109, 113, 115, 114}
	closes := map[string][]float64{
		"A": scaled(base, 1),
		"B": scaled(base, 2),
		"C": scaled(base, 3),
		"F": scaled(base, 10),
	}

	got := BuildLeaderMap(closes, []string{"A", "B", "C"}, LeaderMapConfig{Window: 10, MinCorr: 0.6, MaxLeaders: 2})

	refs := got["F"]
	require.Len(t, refs, 2, "capped at MaxLeaders")
	assert.Equal(t, "A", refs[0].Leader, "equal correlations break ties by ticker")
	assert.Equal(t, "B", refs[1].Leader)
}

func TestBuildLeaderMap_SkipsShortSeries(t *testing.T) {
	closes := map[string][]float64{
		"005930": {100, 102, 101, 105, 104, 108, 110, 109, 113, 115, 114},
		"352820": {100, 101, 102}, // listed last week
	}

	got := BuildLeaderMap(closes, []string{"005930"}, LeaderMapConfig{Window: 10, MinCorr: 0.6, MaxLeaders: 3})
	assert.NotContains(t, got, "352820")
}

func TestBuildLeaderMap_Defaults(t *testing.T) {
	cfg := DefaultLeaderMapConfig()
	assert.Equal(t, 60, cfg.Window)
	assert.InDelta(t, 0.6, cfg.MinCorr, 1e-9)
	assert.Equal(t, 3, cfg.MaxLeaders)

	// Zero-value config falls back to sane numbers instead of panicking.
	base := []float64{100, 102, 101, 105}
	got := BuildLeaderMap(map[string][]float64{"A": base}, []string{"A"}, LeaderMapConfig{})
	assert.Empty(t, got, "series shorter than the default window")
}

func TestTrailingReturns(t *testing.T) {
	rets := trailingReturns([]float64{100, 110, 99, 108.9}, 3)
	require.Len(t, rets, 3)
	assert.InDelta(t, 0.10, rets[0], 1e-9)
	assert.InDelta(t, -0.10, rets[1], 1e-9)
	assert.InDelta(t, 0.10, rets[2], 1e-9)

	assert.Nil(t, trailingReturns([]float64{100, 110}, 3), "too short")
	assert.Nil(t, trailingReturns([]float64{100, 0, 110, 120}, 3), "bad close inside the window")
}
