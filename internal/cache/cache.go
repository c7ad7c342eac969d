// Package cache persists fetched price series between runs and decides
// staleness against the market-close schedule rather than a fixed TTL.
package cache

import (
	"context"
	"encoding/gob"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"sma-signal/internal/marketdata"
)

// ErrDataUnavailable indicates the market data source exhausted its
// retries and no cached series was available to fall back onto.
var ErrDataUnavailable = errors.New("cache: market data unavailable")

// marketCloseHourUTC is the US equity close expressed as a fixed UTC
// hour (4 PM ET). DST drift and exchange holidays are deliberately
// ignored; a holiday is just a weekday with no new bar in the series.
const marketCloseHourUTC = 21

// Entry is the persisted cache blob. It is replaced wholesale on every
// refresh so the symbols stay time-consistent with each other.
type Entry struct {
	SeriesBySymbol     map[string][]marketdata.PricePoint
	FetchedAt          time.Time
	LastKnownCloseDate time.Time
}

// LastMarketClose returns the scheduled close of the most recently
// completed weekday session at or before now.
func LastMarketClose(now time.Time) time.Time {
	now = now.UTC()
	close := time.Date(now.Year(), now.Month(), now.Day(), marketCloseHourUTC, 0, 0, 0, time.UTC)

	if now.Hour() < marketCloseHourUTC {
		close = close.AddDate(0, 0, -1)
	}
	for close.Weekday() == time.Saturday || close.Weekday() == time.Sunday {
		close = close.AddDate(0, 0, -1)
	}
	return close
}

// Store owns the cache file and the fetch-or-reuse decision.
type Store struct {
	path    string
	fetcher marketdata.Fetcher
	logger  zerolog.Logger

	now   func() time.Time
	entry *Entry
}

// NewStore builds a cache store backed by the file at path.
func NewStore(path string, fetcher marketdata.Fetcher, logger zerolog.Logger) *Store {
	return &Store{
		path:    path,
		fetcher: fetcher,
		logger:  logger.With().Str("component", "cache").Logger(),
		now:     time.Now,
	}
}

// GetOrFetch returns one series per requested symbol. A cached entry is
// reused while it postdates the last completed session close; otherwise
// all symbols are refetched together and the entry replaced wholesale.
// When the source fails and a stale entry covers the request, the stale
// entry is returned as a degraded result.
func (s *Store) GetOrFetch(ctx context.Context, symbols []string, start, end time.Time) (map[string][]marketdata.PricePoint, error) {
	if len(symbols) == 0 {
		return nil, fmt.Errorf("at least one symbol required")
	}

	entry := s.load()
	now := s.now().UTC()

	if valid(entry, symbols, now) {
		age := now.Sub(entry.FetchedAt)
		s.logger.Info().Dur("age", age).Time("fetched_at", entry.FetchedAt).Msg("using cached market data")
		return entry.SeriesBySymbol, nil
	}

	fresh, err := s.fetchAll(ctx, symbols, start, end)
	if err != nil {
		if entry != nil && covers(entry, symbols) {
			s.logger.Warn().Err(err).Time("fetched_at", entry.FetchedAt).
				Msg("fetch failed; falling back to stale cache")
			return entry.SeriesBySymbol, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrDataUnavailable, err)
	}

	newEntry := &Entry{
		SeriesBySymbol:     fresh,
		FetchedAt:          now,
		LastKnownCloseDate: latestCloseDate(fresh),
	}
	if err := s.save(newEntry); err != nil {
		// A cache write failure degrades future runs, not this one.
		s.logger.Warn().Err(err).Msg("failed to persist cache entry")
	}
	s.entry = newEntry

	return fresh, nil
}

// Invalidate drops the cached entry; the next GetOrFetch always fetches.
func (s *Store) Invalidate() error {
	s.entry = nil
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove cache file: %w", err)
	}
	return nil
}

func (s *Store) fetchAll(ctx context.Context, symbols []string, start, end time.Time) (map[string][]marketdata.PricePoint, error) {
	fresh := make(map[string][]marketdata.PricePoint, len(symbols))
	for _, symbol := range symbols {
		series, err := s.fetcher.Fetch(ctx, symbol, start, end)
		if err != nil {
			return nil, err
		}
		fresh[symbol] = series
	}
	return fresh, nil
}

func valid(entry *Entry, symbols []string, now time.Time) bool {
	if entry == nil {
		return false
	}
	if entry.FetchedAt.Before(LastMarketClose(now)) {
		return false
	}
	return covers(entry, symbols)
}

func covers(entry *Entry, symbols []string) bool {
	for _, symbol := range symbols {
		if len(entry.SeriesBySymbol[symbol]) == 0 {
			return false
		}
	}
	return true
}

func latestCloseDate(series map[string][]marketdata.PricePoint) time.Time {
	var latest time.Time
	for _, points := range series {
		if n := len(points); n > 0 && points[n-1].Date.After(latest) {
			latest = points[n-1].Date
		}
	}
	return latest
}

// load reads the cache file. A missing or corrupt file is a cache miss,
// never an error.
func (s *Store) load() *Entry {
	if s.entry != nil {
		return s.entry
	}

	file, err := os.Open(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn().Err(err).Str("path", s.path).Msg("cache open failed; treating as miss")
		}
		return nil
	}
	defer file.Close()

	var entry Entry
	if err := gob.NewDecoder(file).Decode(&entry); err != nil {
		s.logger.Warn().Err(err).Str("path", s.path).Msg("cache decode failed; treating as miss")
		return nil
	}

	s.entry = &entry
	return s.entry
}

// save writes the entry via a temp file and rename so an interrupted
// run never leaves a truncated cache behind.
func (s *Store) save(entry *Entry) error {
	dir := filepath.Dir(s.path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cache dir: %w", err)
		}
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".tmp")
	if err != nil {
		return fmt.Errorf("create temp cache file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(entry); err != nil {
		tmp.Close()
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp cache file: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace cache file: %w", err)
	}
	return nil
}
