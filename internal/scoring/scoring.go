// Package scoring implements the versioned scoring strategies. Every scorer
// is a pure function of an indicator frame (plus optional side inputs); the
// engine guarantees a total result per version even when a strategy fails
// internally.
package scoring

import (
	"fmt"
	"runtime/debug"
	"sort"

	"github.com/rs/zerolog"

	"github.com/junghoon-woo/danta/internal/domain"
	"github.com/junghoon-woo/danta/internal/indicator"
)

// ScoreResult is the output of one scoring version for one ticker.
type ScoreResult struct {
	Version      string            `json:"version"`
	Score        int               `json:"score"`
	GroupScores  map[string]int    `json:"group_scores,omitempty"`
	Signals      []string          `json:"signals,omitempty"`
	Patterns     []string          `json:"patterns,omitempty"`
	Warnings     []string          `json:"warnings,omitempty"`
	Indicators   map[string]float64 `json:"indicators,omitempty"`
	ExitPlan     *domain.ExitPlan  `json:"exit_plan,omitempty"`
	// Leader is set by the sympathy strategy to the ticker whose move
	// produced the score.
	Leader       string            `json:"leader,omitempty"`
	Disqualified bool              `json:"disqualified"`
	Reason       string            `json:"reason,omitempty"`
}

// addSignal appends a signal once.
func (r *ScoreResult) addSignal(s string) {
	for _, existing := range r.Signals {
		if existing == s {
			return
		}
	}
	r.Signals = append(r.Signals, s)
}

func (r *ScoreResult) addPattern(s string) {
	for _, existing := range r.Patterns {
		if existing == s {
			return
		}
	}
	r.Patterns = append(r.Patterns, s)
}

func (r *ScoreResult) addWarning(s string) {
	for _, existing := range r.Warnings {
		if existing == s {
			return
		}
	}
	r.Warnings = append(r.Warnings, s)
}

// HasSignal reports whether a signal was emitted.
func (r *ScoreResult) HasSignal(s string) bool {
	for _, existing := range r.Signals {
		if existing == s {
			return true
		}
	}
	return false
}

// finalize sorts the set-valued fields so two runs over the same frame are
// byte-identical.
func (r *ScoreResult) finalize() {
	sort.Strings(r.Signals)
	sort.Strings(r.Patterns)
	sort.Strings(r.Warnings)
}

// Scorer is one versioned scoring strategy.
type Scorer interface {
	// Version returns the strategy name, e.g. "v2".
	Version() string
	// MinDataBars is the minimum series length the strategy accepts.
	MinDataBars() int
	// Score evaluates the frame. Returns nil when the frame is too short.
	Score(f *indicator.Frame, extras *Extras) *ScoreResult
}

// Registry maps version names to scorers.
type Registry struct {
	scorers  map[string]Scorer
	ordered  []string
}

// NewRegistry builds a registry with the built-in strategies. Entries in
// rules override the built-in with a rule-driven scorer of the same version;
// rule-only versions are added.
func NewRegistry(rules *RuleSet) *Registry {
	r := &Registry{scorers: make(map[string]Scorer)}
	for _, s := range []Scorer{
		newV1(), newV2(), newV3(), newV35(), newV4(),
		newV5(), newV6(), newV7(), newV8(), newV10(),
	} {
		r.register(s)
	}
	if rules != nil {
		for _, s := range rules.Scorers() {
			r.register(s)
		}
	}
	return r
}

func (r *Registry) register(s Scorer) {
	if _, exists := r.scorers[s.Version()]; !exists {
		r.ordered = append(r.ordered, s.Version())
	}
	r.scorers[s.Version()] = s
}

// Get returns the scorer for a version.
func (r *Registry) Get(version string) (Scorer, bool) {
	s, ok := r.scorers[version]
	return s, ok
}

// Versions lists registered versions in registration order.
func (r *Registry) Versions() []string {
	out := make([]string, len(r.ordered))
	copy(out, r.ordered)
	return out
}

// Engine runs every registered scorer over a frame. A panic inside one
// strategy is confined to that version: the result is score 0 with reason
// "internal" and the other versions still score.
type Engine struct {
	registry *Registry
	log      zerolog.Logger
	onError  func(version, ticker string, err error)
}

// NewEngine creates a scoring engine. onError, when non-nil, receives
// internal strategy failures for alerting.
func NewEngine(registry *Registry, log zerolog.Logger, onError func(version, ticker string, err error)) *Engine {
	return &Engine{
		registry: registry,
		log:      log.With().Str("component", "scoring_engine").Logger(),
		onError:  onError,
	}
}

// ScoreAll evaluates every version against the frame. Versions whose
// MinDataBars exceeds the series length are absent from the result map.
func (e *Engine) ScoreAll(f *indicator.Frame, extras *Extras) map[string]*ScoreResult {
	results := make(map[string]*ScoreResult, len(e.registry.ordered))
	for _, version := range e.registry.ordered {
		scorer := e.registry.scorers[version]
		res := e.scoreOne(scorer, f, extras)
		if res != nil {
			results[version] = res
		}
	}
	return results
}

// ScoreVersion evaluates a single version. Returns nil when the frame is too
// short or the version is unknown.
func (e *Engine) ScoreVersion(version string, f *indicator.Frame, extras *Extras) *ScoreResult {
	scorer, ok := e.registry.Get(version)
	if !ok {
		return nil
	}
	return e.scoreOne(scorer, f, extras)
}

func (e *Engine) scoreOne(scorer Scorer, f *indicator.Frame, extras *Extras) (res *ScoreResult) {
	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("scorer %s panic: %v", scorer.Version(), p)
			e.log.Error().
				Err(err).
				Str("version", scorer.Version()).
				Str("ticker", f.Ticker).
				Bytes("stack", debug.Stack()).
				Msg("scoring strategy failed")
			if e.onError != nil {
				e.onError(scorer.Version(), f.Ticker, err)
			}
			res = &ScoreResult{Version: scorer.Version(), Score: 0, Reason: "internal"}
		}
	}()
	return scorer.Score(f, extras)
}
