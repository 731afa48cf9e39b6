package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/junghoon-woo/danta/internal/domain"
	"github.com/junghoon-woo/danta/internal/scoring"
	"github.com/junghoon-woo/danta/internal/snapshot"
)

func basePolicy() domain.UserPolicy {
	return domain.UserPolicy{
		Mode:            domain.ModeAuto,
		Enabled:         true,
		ScoreVersion:    "v2",
		MinBuyScore:     60,
		SellScore:       40,
		StopLossRate:    3,
		MaxHoldings:     5,
		MaxHoldDays:     10,
		PerTickerBudget: 1_000_000,
		MinVolumeRatio:  0.5,
		GapLimitPct:     15,
		ExpireHours:     24,
	}
}

func rowWith(ticker string, scores map[string]int) snapshot.Row {
	return snapshot.Row{
		Ticker:      ticker,
		Market:      domain.MarketKOSPI,
		Close:       10000,
		ChangePct:   2,
		VolumeRatio: 5,
		PrevAmount:  1e9,
		Scores:      scores,
	}
}

func TestNewEvaluator_RejectsMalformedConditions(t *testing.T) {
	p := basePolicy()
	p.BuyConditions = "V1 >="
	_, err := NewEvaluator(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid buy_conditions")

	var parseErr *scoring.ParseError
	assert.ErrorAs(t, err, &parseErr)

	p = basePolicy()
	p.SellConditions = "AND V2 < 40"
	_, err = NewEvaluator(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid sell_conditions")
}

func TestBuySatisfied_ConditionDSL(t *testing.T) {
	p := basePolicy()
	p.BuyConditions = "V1>=60 AND V5>=50 AND V4>40"
	e, err := NewEvaluator(p)
	require.NoError(t, err)

	tests := []struct {
		name   string
		scores map[string]int
		want   bool
	}{
		{"all terms hold", map[string]int{"v1": 65, "v5": 55, "v4": 41}, true},
		{"boundary v4 not strict enough", map[string]int{"v1": 65, "v5": 55, "v4": 40}, false},
		{"missing score reads zero", map[string]int{"v1": 65, "v5": 55}, false},
		{"first term fails", map[string]int{"v1": 59, "v5": 55, "v4": 50}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := rowWith("005930", tt.scores)
			assert.Equal(t, tt.want, e.BuySatisfied(&row))
		})
	}
}

func TestBuySatisfied_OrConnector(t *testing.T) {
	p := basePolicy()
	p.BuyConditions = "V1>=90 OR V2>=60"
	e, err := NewEvaluator(p)
	require.NoError(t, err)

	row := rowWith("005930", map[string]int{"v1": 10, "v2": 60})
	assert.True(t, e.BuySatisfied(&row))

	row = rowWith("005930", map[string]int{"v1": 10, "v2": 59})
	assert.False(t, e.BuySatisfied(&row))
}

func TestBuySatisfied_CaseInsensitiveTokens(t *testing.T) {
	p := basePolicy()
	p.BuyConditions = "v2 >= 60 and V3.5 > 50"
	e, err := NewEvaluator(p)
	require.NoError(t, err)

	row := rowWith("005930", map[string]int{"v2": 70, "v3.5": 51})
	assert.True(t, e.BuySatisfied(&row))
}

func TestBuySatisfied_EmptyDSLFallsBackToThreshold(t *testing.T) {
	e, err := NewEvaluator(basePolicy())
	require.NoError(t, err)

	row := rowWith("005930", map[string]int{"v2": 60})
	assert.True(t, e.BuySatisfied(&row))

	row = rowWith("005930", map[string]int{"v2": 59})
	assert.False(t, e.BuySatisfied(&row))

	assert.False(t, e.BuySatisfied(nil))
}

func TestSellSatisfied(t *testing.T) {
	p := basePolicy()
	p.SellConditions = "V2<=40"
	e, err := NewEvaluator(p)
	require.NoError(t, err)

	row := rowWith("005930", map[string]int{"v2": 40})
	assert.True(t, e.SellSatisfied(&row))

	row = rowWith("005930", map[string]int{"v2": 41})
	assert.False(t, e.SellSatisfied(&row))

	assert.False(t, e.SellSatisfied(nil), "ticker absent from the snapshot never fires")

	empty, err := NewEvaluator(basePolicy())
	require.NoError(t, err)
	row = rowWith("005930", map[string]int{"v2": 0})
	assert.False(t, empty.SellSatisfied(&row), "empty sell DSL is disabled")
}
