package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

// kst builds an exchange-local instant. 2025-03-05 is a Wednesday.
func kst(day, hour, min int) time.Time {
	return time.Date(2025, 3, day, hour, min, 0, 0, MarketLocation())
}

func TestIsTradingHours(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"before open", kst(5, 8, 59), false},
		{"at open", kst(5, 9, 0), true},
		{"midday", kst(5, 12, 30), true},
		{"at cutoff", kst(5, 15, 20), true},
		{"after cutoff", kst(5, 15, 21), false},
		{"saturday", kst(8, 10, 0), false},
		{"sunday", kst(9, 10, 0), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTradingHours(tt.at))
		})
	}
}

func TestIsTradingHours_ConvertsToMarketTime(t *testing.T) {
	// 01:00 UTC on a Wednesday is 10:00 in Seoul.
	utc := time.Date(2025, 3, 5, 1, 0, 0, 0, time.UTC)
	assert.True(t, IsTradingHours(utc))

	// 15:00 UTC is 00:00 Thursday in Seoul.
	late := time.Date(2025, 3, 5, 15, 0, 0, 0, time.UTC)
	assert.False(t, IsTradingHours(late))
}

func TestIsSchedulerWindow(t *testing.T) {
	assert.False(t, IsSchedulerWindow(kst(5, 8, 49)))
	assert.True(t, IsSchedulerWindow(kst(5, 8, 50)))
	assert.True(t, IsSchedulerWindow(kst(5, 15, 20)))
	assert.False(t, IsSchedulerWindow(kst(5, 15, 21)))
	assert.False(t, IsSchedulerWindow(kst(8, 10, 0)))
}

func TestBuyWindowAndPreClose(t *testing.T) {
	assert.True(t, IsBuyWindow(kst(5, 9, 0)))
	assert.True(t, IsBuyWindow(kst(5, 14, 59)))
	assert.False(t, IsBuyWindow(kst(5, 15, 0)), "pre-close window blocks new buys")
	assert.False(t, IsBuyWindow(kst(5, 15, 21)))
	assert.False(t, IsBuyWindow(kst(8, 10, 0)))

	assert.False(t, IsPreClose(kst(5, 14, 59)))
	assert.True(t, IsPreClose(kst(5, 15, 0)))
	assert.True(t, IsPreClose(kst(5, 15, 20)))
	assert.False(t, IsPreClose(kst(5, 15, 21)), "after hours is not pre-close")
}

func TestSessionElapsedHours(t *testing.T) {
	assert.Equal(t, 0.0, SessionElapsedHours(kst(5, 8, 0)))
	assert.Equal(t, 0.0, SessionElapsedHours(kst(5, 9, 0)))
	assert.InDelta(t, 1.5, SessionElapsedHours(kst(5, 10, 30)), 1e-9)
	// Clamped past the close.
	assert.InDelta(t, SessionElapsedHours(kst(5, 15, 20)), SessionElapsedHours(kst(5, 18, 0)), 1e-9)
}

func TestMarketDate(t *testing.T) {
	// 16:00 UTC on March 5 is already March 6 in Seoul.
	utc := time.Date(2025, 3, 5, 16, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-03-06", MarketDate(utc))
}

func TestClockFunc(t *testing.T) {
	fixed := kst(5, 10, 0)
	var c Clock = ClockFunc(func() time.Time { return fixed })
	assert.Equal(t, fixed, c.Now())
}
