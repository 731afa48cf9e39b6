package snapshot

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/junghoon-woo/danta/internal/domain"
)

// ErrMissing is returned when no snapshot file exists yet.
var ErrMissing = errors.New("no snapshot file")

// ErrStale is returned when the newest snapshot is older than the reader's
// max age. User ticks short-circuit on it and retry next tick.
var ErrStale = errors.New("snapshot stale")

// fileTimeLayout is the timestamp embedded in snapshot file names.
const fileTimeLayout = "20060102_1504"

// Column order is a compatibility contract with every downstream reader.
// Append-only changes go through the score column list; the base list never
// moves.
var baseColumns = []string{
	"code", "name", "market",
	"open", "high", "low", "close", "prev_close", "change_pct",
	"volume", "volume_ratio", "prev_amount", "prev_marcap",
	"buy_strength", "foreign_net", "inst_net", "rel_strength",
}

// scoreColumns lists the serialised strategy versions. v9_prob is reserved
// for the externally computed model probability and is always written empty.
var scoreColumns = []string{"v1", "v2", "v3.5", "v4", "v5", "v6", "v7", "v8", "v9_prob", "v10"}

func header() []string {
	h := make([]string, 0, len(baseColumns)+len(scoreColumns)+1)
	h = append(h, baseColumns...)
	h = append(h, scoreColumns...)
	return append(h, "signals")
}

// Store reads and writes snapshot CSV files under one directory.
type Store struct {
	dir string
	log zerolog.Logger
}

// NewStore creates a snapshot store rooted at dir.
func NewStore(dir string, log zerolog.Logger) *Store {
	return &Store{
		dir: dir,
		log: log.With().Str("component", "snapshot_store").Logger(),
	}
}

// Path returns the snapshot file path for a tick timestamp.
func (s *Store) Path(tickTS time.Time) string {
	name := tickTS.In(domain.MarketLocation()).Format(fileTimeLayout) + ".csv"
	return filepath.Join(s.dir, name)
}

// Write persists the snapshot atomically. An existing file for the same tick
// is left untouched, which makes a re-tick within the same minute a no-op.
func (s *Store) Write(snap *Snapshot) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create snapshot directory: %w", err)
	}

	final := s.Path(snap.TickTS)
	if _, err := os.Stat(final); err == nil {
		s.log.Debug().Str("path", final).Msg("snapshot for this tick already written")
		return nil
	}

	tmp := final + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temp snapshot file: %w", err)
	}

	w := csv.NewWriter(f)
	writeErr := w.Write(header())
	for i := range snap.Rows {
		if writeErr != nil {
			break
		}
		writeErr = w.Write(encodeRow(&snap.Rows[i]))
	}
	if writeErr == nil {
		w.Flush()
		writeErr = w.Error()
	}
	if closeErr := f.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write snapshot file: %w", writeErr)
	}

	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move snapshot file into place: %w", err)
	}

	s.log.Info().
		Str("path", final).
		Int("rows", snap.Len()).
		Bool("degraded", snap.Degraded).
		Msg("snapshot written")
	return nil
}

func encodeRow(r *Row) []string {
	rec := []string{
		r.Ticker,
		r.Name,
		string(r.Market),
		formatFloat(r.Open),
		formatFloat(r.High),
		formatFloat(r.Low),
		formatFloat(r.Close),
		formatFloat(r.PrevClose),
		formatFloat(r.ChangePct),
		formatFloat(r.Volume),
		formatFloat(r.VolumeRatio),
		formatFloat(r.PrevAmount),
		formatFloat(r.PrevMarcap),
		formatFloat(r.BuyStrength),
		formatFloat(r.ForeignNet),
		formatFloat(r.InstNet),
		formatFloat(r.RelStrength),
	}
	for _, version := range scoreColumns {
		if version == "v9_prob" {
			rec = append(rec, "")
			continue
		}
		if score, ok := r.Scores[version]; ok {
			rec = append(rec, strconv.Itoa(score))
		} else {
			rec = append(rec, "")
		}
	}
	return append(rec, strings.Join(r.Signals, "|"))
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Load reads one snapshot file. The reader is header-driven: columns missing
// from older files read as zero, and score columns beyond the known list are
// picked up as long as they parse.
func (s *Store) Load(path string) (*Snapshot, error) {
	tickTS, err := time.ParseInLocation(fileTimeLayout, strings.TrimSuffix(filepath.Base(path), ".csv"), domain.MarketLocation())
	if err != nil {
		return nil, fmt.Errorf("snapshot file %s: name is not a tick timestamp: %w", path, err)
	}

	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrMissing, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open snapshot file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse snapshot file: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("snapshot file %s is empty", path)
	}

	colIdx := make(map[string]int, len(records[0]))
	for i, name := range records[0] {
		colIdx[strings.TrimSpace(name)] = i
	}
	if _, ok := colIdx["code"]; !ok {
		return nil, fmt.Errorf("snapshot file %s has no header row", path)
	}

	baseSet := make(map[string]bool, len(baseColumns))
	for _, name := range baseColumns {
		baseSet[name] = true
	}

	rows := make([]Row, 0, len(records)-1)
	for i, rec := range records[1:] {
		row := Row{
			Ticker: fieldAt(rec, colIdx, "code"),
			Name:   fieldAt(rec, colIdx, "name"),
			Market: domain.Market(fieldAt(rec, colIdx, "market")),
			Scores: make(map[string]int),
		}
		var parseErr error
		parse := func(col string) float64 {
			raw := fieldAt(rec, colIdx, col)
			if raw == "" {
				return 0
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil && parseErr == nil {
				parseErr = fmt.Errorf("snapshot file %s row %d: bad %s: %w", path, i+2, col, err)
			}
			return v
		}
		row.Open = parse("open")
		row.High = parse("high")
		row.Low = parse("low")
		row.Close = parse("close")
		row.PrevClose = parse("prev_close")
		row.ChangePct = parse("change_pct")
		row.Volume = parse("volume")
		row.VolumeRatio = parse("volume_ratio")
		row.PrevAmount = parse("prev_amount")
		row.PrevMarcap = parse("prev_marcap")
		row.BuyStrength = parse("buy_strength")
		row.ForeignNet = parse("foreign_net")
		row.InstNet = parse("inst_net")
		row.RelStrength = parse("rel_strength")
		if parseErr != nil {
			return nil, parseErr
		}

		for name, idx := range colIdx {
			if baseSet[name] || name == "signals" || name == "v9_prob" || !strings.HasPrefix(name, "v") {
				continue
			}
			if idx < 0 || idx >= len(rec) {
				continue
			}
			raw := strings.TrimSpace(rec[idx])
			if raw == "" {
				continue
			}
			score, err := strconv.Atoi(raw)
			if err != nil {
				return nil, fmt.Errorf("snapshot file %s row %d: bad score %s: %w", path, i+2, name, err)
			}
			row.Scores[name] = score
		}

		if raw := fieldAt(rec, colIdx, "signals"); raw != "" {
			for _, sig := range strings.Split(raw, "|") {
				if sig != "" {
					row.Signals = append(row.Signals, sig)
				}
			}
		}
		rows = append(rows, row)
	}

	return New(tickTS, rows, false), nil
}

func fieldAt(rec []string, colIdx map[string]int, name string) string {
	idx, ok := colIdx[name]
	if !ok || idx < 0 || idx >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[idx])
}

// Latest loads the newest snapshot, enforcing the reader-side staleness rule:
// a file older than maxAge returns ErrStale so the caller's tick aborts.
func (s *Store) Latest(now time.Time, maxAge time.Duration) (*Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w in %s", ErrMissing, s.dir)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot directory: %w", err)
	}

	var newest time.Time
	var newestPath string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".csv") {
			continue
		}
		ts, err := time.ParseInLocation(fileTimeLayout, strings.TrimSuffix(e.Name(), ".csv"), domain.MarketLocation())
		if err != nil {
			continue
		}
		if newestPath == "" || ts.After(newest) {
			newest = ts
			newestPath = filepath.Join(s.dir, e.Name())
		}
	}
	if newestPath == "" {
		return nil, fmt.Errorf("%w in %s", ErrMissing, s.dir)
	}
	if age := now.Sub(newest); age > maxAge {
		return nil, fmt.Errorf("%w: %s is %s old", ErrStale, newestPath, age.Round(time.Second))
	}
	return s.Load(newestPath)
}
