package scoring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleRules = `
versions:
  v2:
    min_data_bars: 60
    disqualify:
      condition: "sma5 < sma20 AND sma20 < sma60"
      signal: MA_REVERSE_ALIGNED
    groups:
      - name: trend
        max: 30
        rules:
          - condition: "sma5 > sma20 AND sma20 > sma60"
            score: 10
            signal: MA_ALIGNED
          - condition: "sma20_slope >= 3"
            score: 15
            signal: SMA20_STEEP
            exclusive_group: slope
          - condition: "sma20_slope >= 1.5"
            score: 8
            exclusive_group: slope
      - name: momentum
        max: 20
        rules:
          - condition: "60 <= rsi <= 75"
            score: 15
            signal: RSI_SWEET_SPOT
          - condition: "macd > macd_signal"
            score: 10
`

func TestParseRules_CompilesScorers(t *testing.T) {
	rs, err := ParseRules([]byte(sampleRules))
	require.NoError(t, err)

	scorers := rs.Scorers()
	require.Len(t, scorers, 1)
	assert.Equal(t, "v2", scorers[0].Version())
	assert.Equal(t, 60, scorers[0].MinDataBars())
}

func TestRuleScorer_ExclusiveGroupFirstMatchWins(t *testing.T) {
	rs, err := ParseRules([]byte(sampleRules))
	require.NoError(t, err)
	scorer := rs.Scorers()[0]

	f := newTestFrame("005930", 60)
	fill(f.SMA5, 110)
	fill(f.SMA20, 105)
	fill(f.SMA60, 100)
	// Steep slope satisfies both tiers of the slope group; only the first
	// matching rule may count.
	setLast(f.SMA20Slope, 5)

	res := scorer.Score(f, nil)
	require.NotNil(t, res)
	assert.Equal(t, 25, res.GroupScores["trend"], "aligned 10 + steep tier 15, lower tier skipped")
	assert.Contains(t, res.Signals, "MA_ALIGNED")
	assert.Contains(t, res.Signals, "SMA20_STEEP")
}

func TestRuleScorer_GroupMaxClamps(t *testing.T) {
	rs, err := ParseRules([]byte(`
versions:
  vx:
    groups:
      - name: stacked
        max: 10
        rules:
          - condition: "close > 0"
            score: 8
          - condition: "close > 1"
            score: 8
`))
	require.NoError(t, err)
	scorer := rs.Scorers()[0]

	f := newTestFrame("000660", 60)
	fill(f.Close, 100)

	res := scorer.Score(f, nil)
	require.NotNil(t, res)
	assert.Equal(t, 10, res.GroupScores["stacked"])
	assert.Equal(t, 10, res.Score)
}

func TestRuleScorer_Disqualify(t *testing.T) {
	rs, err := ParseRules([]byte(sampleRules))
	require.NoError(t, err)
	scorer := rs.Scorers()[0]

	f := newTestFrame("005930", 60)
	fill(f.SMA5, 90)
	fill(f.SMA20, 95)
	fill(f.SMA60, 100)

	res := scorer.Score(f, nil)
	require.NotNil(t, res)
	assert.True(t, res.Disqualified)
	assert.Equal(t, 0, res.Score)
	assert.Equal(t, "MA_REVERSE_ALIGNED", res.Reason)
	assert.Equal(t, []string{"MA_REVERSE_ALIGNED"}, res.Signals)
}

func TestParseRules_Defaults(t *testing.T) {
	rs, err := ParseRules([]byte(`
versions:
  vy:
    disqualify:
      condition: "rsi > 90"
    groups:
      - name: only
        max: 100
        rules:
          - condition: "close > 0"
            score: 50
`))
	require.NoError(t, err)

	vr := rs.Versions["vy"]
	assert.Equal(t, 60, vr.MinDataBars, "min_data_bars defaults to 60")
	assert.Equal(t, "DISQUALIFIED", vr.Disqualify.Signal, "signal defaults when omitted")
}

func TestParseRules_BadConditionFailsLoad(t *testing.T) {
	_, err := ParseRules([]byte(`
versions:
  v9:
    groups:
      - name: broken
        max: 10
        rules:
          - condition: "rsi >"
            score: 5
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "version v9")
	assert.Contains(t, err.Error(), "group broken")
}

func TestParseRules_NonPositiveMaxRejected(t *testing.T) {
	_, err := ParseRules([]byte(`
versions:
  vz:
    groups:
      - name: empty
        max: 0
        rules:
          - condition: "close > 0"
            score: 5
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max must be positive")
}

func TestParseRules_BadYAML(t *testing.T) {
	_, err := ParseRules([]byte("versions: [not a map"))
	assert.Error(t, err)
}

func TestLoadRules_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "version_config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleRules), 0o644))

	rs, err := LoadRules(path)
	require.NoError(t, err)
	assert.Contains(t, rs.Versions, "v2")

	_, err = LoadRules(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestNewRegistry_RulesOverrideBuiltins(t *testing.T) {
	rs, err := ParseRules([]byte(`
versions:
  v2:
    disqualify:
      condition: "change_pct < -90"
      signal: CUSTOM_DQ
    groups:
      - name: custom
        max: 100
        rules:
          - condition: "close > 0"
            score: 77
`))
	require.NoError(t, err)

	reg := NewRegistry(rs)
	scorer, ok := reg.Get("v2")
	require.True(t, ok)

	f := newTestFrame("005930", 60)
	fill(f.Close, 100)
	res := scorer.Score(f, nil)
	require.NotNil(t, res)
	assert.Equal(t, 77, res.Score, "rule-driven scorer replaced the built-in")

	// Registration order keeps the built-in slot.
	assert.Equal(t, []string{"v1", "v2", "v3", "v3.5", "v4", "v5", "v6", "v7", "v8", "v10"}, reg.Versions())
}
