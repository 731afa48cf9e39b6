package scoring

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junghoon-woo/danta/internal/indicator"
)

func TestNewRegistry_BuiltinVersions(t *testing.T) {
	reg := NewRegistry(nil)
	assert.Equal(t, []string{"v1", "v2", "v3", "v3.5", "v4", "v5", "v6", "v7", "v8", "v10"}, reg.Versions())

	for _, v := range reg.Versions() {
		s, ok := reg.Get(v)
		require.True(t, ok)
		assert.Equal(t, v, s.Version())
	}

	_, ok := reg.Get("v99")
	assert.False(t, ok)
}

func TestEngine_ScoreAllSkipsShortVersions(t *testing.T) {
	engine := NewEngine(NewRegistry(nil), zerolog.Nop(), nil)

	f := newTestFrame("005930", 60)
	results := engine.ScoreAll(f, nil)

	assert.Contains(t, results, "v1")
	assert.Contains(t, results, "v2")
	assert.Contains(t, results, "v10")
	assert.NotContains(t, results, "v6", "needs 120 bars")
	assert.NotContains(t, results, "v7", "needs 120 bars")

	long := newTestFrame("005930", 120)
	results = engine.ScoreAll(long, nil)
	assert.Len(t, results, 10)
}

func TestEngine_ScoreVersion(t *testing.T) {
	engine := NewEngine(NewRegistry(nil), zerolog.Nop(), nil)

	f := newTestFrame("005930", 60)
	res := engine.ScoreVersion("v2", f, nil)
	require.NotNil(t, res)
	assert.Equal(t, "v2", res.Version)

	assert.Nil(t, engine.ScoreVersion("v99", f, nil), "unknown version")
	assert.Nil(t, engine.ScoreVersion("v6", f, nil), "not enough bars")
}

type panicScorer struct{}

func (panicScorer) Version() string  { return "vboom" }
func (panicScorer) MinDataBars() int { return 1 }
func (panicScorer) Score(*indicator.Frame, *Extras) *ScoreResult {
	panic("synthetic failure")
}

func TestEngine_PanicConfinedToOneVersion(t *testing.T) {
	reg := &Registry{
		scorers: map[string]Scorer{"vboom": panicScorer{}, "v2": newV2()},
		ordered: []string{"vboom", "v2"},
	}

	var gotVersion, gotTicker string
	engine := NewEngine(reg, zerolog.Nop(), func(version, ticker string, err error) {
		gotVersion, gotTicker = version, ticker
		assert.ErrorContains(t, err, "synthetic failure")
	})

	f := newTestFrame("005930", 60)
	results := engine.ScoreAll(f, nil)

	require.Contains(t, results, "vboom")
	assert.Equal(t, 0, results["vboom"].Score)
	assert.Equal(t, "internal", results["vboom"].Reason)
	assert.Equal(t, "vboom", gotVersion)
	assert.Equal(t, "005930", gotTicker)

	require.Contains(t, results, "v2", "healthy versions still score")
	assert.Equal(t, "v2", results["v2"].Version)
}

func TestScoreResult_SignalSetSemantics(t *testing.T) {
	r := &ScoreResult{}
	r.addSignal("B")
	r.addSignal("A")
	r.addSignal("B")
	r.addWarning("W")
	r.addWarning("W")
	r.finalize()

	assert.Equal(t, []string{"A", "B"}, r.Signals, "deduplicated and sorted")
	assert.Equal(t, []string{"W"}, r.Warnings)
	assert.True(t, r.HasSignal("A"))
	assert.False(t, r.HasSignal("C"))
}
