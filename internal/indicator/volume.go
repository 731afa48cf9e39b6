package indicator

import (
	"time"

	"github.com/junghoon-woo/danta/internal/domain"
)

// earlySessionDampener discounts projections made in the first hour, when a
// strong open extrapolates to unrealistic full-day volume.
const earlySessionDampener = 0.7

// VolumeProjection carries both the raw and the to-close extrapolated volume
// ratios for a partially elapsed session.
type VolumeProjection struct {
	Raw       float64 // today's volume / average volume, unadjusted
	Projected float64 // raw scaled to the full session length
}

// ProjectVolume extrapolates same-day volume to the close using elapsed
// session time. Before the open or after the close the projection equals the
// raw ratio. This is the only indicator that reads the wall clock.
func ProjectVolume(todayVolume, avgVolume float64, now time.Time) VolumeProjection {
	raw := 1.0
	if avgVolume > 0 {
		raw = todayVolume / avgVolume
	}

	elapsed := domain.SessionElapsedHours(now)
	sessionHours := 19.0 / 3.0 // 09:00–15:20
	if elapsed <= 0 || elapsed >= sessionHours {
		return VolumeProjection{Raw: raw, Projected: raw}
	}

	projected := raw * sessionHours / elapsed
	if elapsed < 1.0 {
		projected *= earlySessionDampener
	}
	return VolumeProjection{Raw: raw, Projected: projected}
}
