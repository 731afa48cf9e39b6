// Package snapshot builds and persists the per-tick score snapshot: one CSV
// row per universe ticker carrying the latest session figures and the score
// of every registered strategy. The file is the atomic publish unit every
// user tick of the same minute consumes.
package snapshot

import (
	"sort"
	"time"

	"github.com/junghoon-woo/danta/internal/domain"
)

// Row is one ticker's entry in a snapshot.
type Row struct {
	Ticker      string
	Name        string
	Market      domain.Market
	Open        float64
	High        float64
	Low         float64
	Close       float64
	PrevClose   float64
	ChangePct   float64
	Volume      float64
	VolumeRatio float64 // projected full-session volume vs 5-day average
	PrevAmount  float64 // prior session traded value, KRW
	PrevMarcap  float64 // market cap from the morning universe file
	BuyStrength float64 // intraday execution strength, 100 = balanced
	ForeignNet  float64 // 5-day foreign net buying, shares
	InstNet     float64 // 5-day institutional net buying, shares
	RelStrength float64 // change_pct minus the tick's universe mean change

	Scores  map[string]int // strategy version → score
	Signals []string       // breakout strategy signals, sorted

	// Plans holds per-version exit plans for consumers running in the same
	// process as the build. Plans are not serialised; rows loaded from disk
	// carry none.
	Plans map[string]*domain.ExitPlan
}

// Score returns the row's score for a strategy version, 0 when the version
// is absent from the snapshot.
func (r *Row) Score(version string) int {
	return r.Scores[version]
}

// HasScore reports whether a version was recorded for this row.
func (r *Row) HasScore(version string) bool {
	_, ok := r.Scores[version]
	return ok
}

// Plan returns the exit plan a version attached, nil when there is none or
// the row was loaded from disk.
func (r *Row) Plan(version string) *domain.ExitPlan {
	if r.Plans == nil {
		return nil
	}
	return r.Plans[version]
}

// Snapshot is the full result of one tick: every surviving universe ticker,
// sorted by ticker code.
type Snapshot struct {
	TickTS   time.Time
	Degraded bool // build ran in reduced, top-liquidity-only mode
	Rows     []Row

	byTicker map[string]int
}

// New builds a snapshot from assembled rows, sorting them and indexing by
// ticker.
func New(tickTS time.Time, rows []Row, degraded bool) *Snapshot {
	sort.Slice(rows, func(i, j int) bool { return rows[i].Ticker < rows[j].Ticker })
	s := &Snapshot{TickTS: tickTS, Degraded: degraded, Rows: rows}
	s.reindex()
	return s
}

func (s *Snapshot) reindex() {
	s.byTicker = make(map[string]int, len(s.Rows))
	for i := range s.Rows {
		s.byTicker[s.Rows[i].Ticker] = i
	}
}

// Len returns the number of rows.
func (s *Snapshot) Len() int { return len(s.Rows) }

// Find returns the row for a ticker, nil when the ticker did not survive the
// build.
func (s *Snapshot) Find(ticker string) *Row {
	if i, ok := s.byTicker[ticker]; ok {
		return &s.Rows[i]
	}
	return nil
}

// Age returns how far behind now the snapshot's tick is.
func (s *Snapshot) Age(now time.Time) time.Duration {
	return now.Sub(s.TickTS)
}
