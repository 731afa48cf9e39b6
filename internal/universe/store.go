package universe

import (
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/junghoon-woo/danta/internal/domain"
)

// ErrNotFound is returned when the day's universe file has not been written.
// Ticks treat this as a hard abort, never as an empty universe.
var ErrNotFound = errors.New("universe file not found")

var csvHeader = []string{"Code", "Name", "Market", "Marcap", "Amount", "Stocks"}

// Store reads and writes universe CSV files under a directory.
type Store struct {
	dir string
	log zerolog.Logger
}

// NewStore creates a universe file store rooted at dir.
func NewStore(dir string, log zerolog.Logger) *Store {
	return &Store{
		dir: dir,
		log: log.With().Str("component", "universe_store").Logger(),
	}
}

// Path returns the universe file path for a market date (YYYY-MM-DD).
func (s *Store) Path(date string) string {
	return filepath.Join(s.dir, fmt.Sprintf("filtered_stocks_%s.csv", strings.ReplaceAll(date, "-", "")))
}

// Write persists the universe atomically: the file appears complete or not at
// all, so a reader can never observe a half-written list.
func (s *Store) Write(u *domain.Universe) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create universe directory: %w", err)
	}

	final := s.Path(u.Date)
	tmp := final + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create temp universe file: %w", err)
	}

	w := csv.NewWriter(f)
	writeErr := w.Write(csvHeader)
	for _, stock := range u.Stocks {
		if writeErr != nil {
			break
		}
		writeErr = w.Write([]string{
			zeroPad(stock.Ticker),
			stock.Name,
			string(stock.Market),
			strconv.FormatFloat(stock.MarketCap, 'f', 0, 64),
			strconv.FormatFloat(stock.AvgValue, 'f', 0, 64),
			strconv.FormatInt(stock.Shares, 10),
		})
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
		return fmt.Errorf("failed to write universe file: %w", writeErr)
	}

	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to move universe file into place: %w", err)
	}

	s.log.Info().
		Str("path", final).
		Int("stocks", len(u.Stocks)).
		Msg("universe file written")
	return nil
}

// Load reads the universe for a market date. Loading the same file twice
// yields the same set; missing files return ErrNotFound.
func (s *Store) Load(date string) (*domain.Universe, error) {
	path := s.Path(date)

	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to stat universe file: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open universe file: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse universe file: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("universe file %s is empty", path)
	}

	u := &domain.Universe{Date: date, CreatedAt: info.ModTime()}
	for i, rec := range records {
		if i == 0 && len(rec) > 0 && rec[0] == csvHeader[0] {
			continue
		}
		if len(rec) < 6 {
			return nil, fmt.Errorf("universe file %s row %d: expected 6 columns, got %d", path, i+1, len(rec))
		}
		marcap, err := strconv.ParseFloat(rec[3], 64)
		if err != nil {
			return nil, fmt.Errorf("universe file %s row %d: bad marcap: %w", path, i+1, err)
		}
		amount, err := strconv.ParseFloat(rec[4], 64)
		if err != nil {
			return nil, fmt.Errorf("universe file %s row %d: bad amount: %w", path, i+1, err)
		}
		shares, err := strconv.ParseInt(rec[5], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("universe file %s row %d: bad share count: %w", path, i+1, err)
		}
		u.Stocks = append(u.Stocks, domain.Stock{
			Ticker:    zeroPad(rec[0]),
			Name:      rec[1],
			Market:    domain.Market(rec[2]),
			MarketCap: marcap,
			AvgValue:  amount,
			Shares:    shares,
		})
	}
	return u, nil
}

// zeroPad restores the leading zeros spreadsheet tools strip from ticker
// codes.
func zeroPad(code string) string {
	for len(code) < 6 {
		code = "0" + code
	}
	return code
}
