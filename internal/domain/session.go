package domain

import "time"

// The engine keeps all session arithmetic in exchange time regardless of the
// host timezone.
var seoul = func() *time.Location {
	loc, err := time.LoadLocation("Asia/Seoul")
	if err != nil {
		// Fixed offset fallback for hosts without tzdata. KST has no DST.
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}()

// MarketLocation returns the exchange timezone (Asia/Seoul).
func MarketLocation() *time.Location { return seoul }

// MarketDate formats an instant as the exchange-local calendar date.
func MarketDate(t time.Time) string {
	return t.In(seoul).Format("2006-01-02")
}

// minuteOfDay collapses an instant to exchange-local minutes since midnight.
func minuteOfDay(t time.Time) int {
	lt := t.In(seoul)
	return lt.Hour()*60 + lt.Minute()
}

// IsTradingHours reports whether new orders may be placed: weekdays 09:00
// through 15:20 exchange time. Exchange holidays are not modelled; on a
// holiday the broker rejects orders and the tick degrades gracefully.
func IsTradingHours(t time.Time) bool {
	lt := t.In(seoul)
	if wd := lt.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	m := minuteOfDay(t)
	return m >= 9*60 && m <= 15*60+20
}

// IsSchedulerWindow reports whether the intraday loop should run: weekdays
// 08:50 through 15:20 exchange time. The pre-market margin lets the first
// tick warm caches and expire stale suggestions before the open.
func IsSchedulerWindow(t time.Time) bool {
	lt := t.In(seoul)
	if wd := lt.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return false
	}
	m := minuteOfDay(t)
	return m >= 8*60+50 && m <= 15*60+20
}

// IsBuyWindow reports whether new buys may be opened: trading hours minus
// the 15:00–15:20 pre-close window, which only evaluates sells.
func IsBuyWindow(t time.Time) bool {
	return IsTradingHours(t) && minuteOfDay(t) < 15*60
}

// IsPreClose reports whether an instant falls in the 15:00–15:20 tidy
// window, where positions failing their buy conditions are closed out.
func IsPreClose(t time.Time) bool {
	return IsTradingHours(t) && minuteOfDay(t) >= 15*60
}

// SessionElapsedHours returns how far into the 09:00 session an instant is,
// clamped to [0, 6.33]. Used to project partial-day volume to a full-day
// estimate.
func SessionElapsedHours(t time.Time) float64 {
	open := 9 * 60
	close := 15*60 + 20
	m := minuteOfDay(t)
	if m <= open {
		return 0
	}
	if m > close {
		m = close
	}
	return float64(m-open) / 60.0
}
