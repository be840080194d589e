package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"oil-price-watch/internal/detector"
	"oil-price-watch/internal/pricefeed"
)

// maxEntries caps the persisted log; the oldest entries are evicted first.
const maxEntries = 1000

// ErrEmptyHistory is returned by Summary when no entries are recorded.
var ErrEmptyHistory = errors.New("history: no entries recorded")

// Entry is one persisted price observation.
type Entry struct {
	Timestamp    float64 `json:"timestamp"`
	TimestampISO string  `json:"timestampIso"`
	Price        float64 `json:"price"`
	Cycle        int64   `json:"cycle"`
	EventType    string  `json:"eventType"`
}

type fileLayout struct {
	LastUpdated  float64 `json:"lastUpdated"`
	TotalEntries int     `json:"totalEntries"`
	History      []Entry `json:"history"`
}

// Summary aggregates the most recent window of entries.
type Summary struct {
	Window       int
	MinPrice     float64
	MaxPrice     float64
	AvgPrice     float64
	PriceRange   float64
	MinCycle     int64
	MaxCycle     int64
	TotalEntries int
}

// Store is a bounded append-only log of price points backed by a single JSON
// artifact. Every append rewrites the whole capped collection; the polling
// cadence is minutes, not milliseconds, so the simple write wins.
type Store struct {
	path    string
	logger  zerolog.Logger
	entries []Entry
}

// NewStore loads existing history from path. A missing artifact is a fresh
// start; an unreadable one degrades to empty history.
func NewStore(path string, logger zerolog.Logger) *Store {
	s := &Store{
		path:   path,
		logger: logger.With().Str("component", "history").Logger(),
	}
	s.load()
	return s
}

func (s *Store) load() {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			s.logger.Info().Str("path", s.path).Msg("no existing price history, starting fresh")
		} else {
			s.logger.Error().Err(err).Str("path", s.path).Msg("failed to read price history")
		}
		return
	}

	var layout fileLayout
	if err := json.Unmarshal(data, &layout); err != nil {
		s.logger.Error().Err(err).Str("path", s.path).Msg("failed to decode price history, starting fresh")
		return
	}

	s.entries = layout.History
	if len(s.entries) > maxEntries {
		s.entries = s.entries[len(s.entries)-maxEntries:]
	}
	s.logger.Info().Int("entries", len(s.entries)).Msg("loaded price history")
}

// Append records an accepted price point and synchronously persists the
// capped collection. On write failure the in-memory entry is retained for the
// next attempt.
func (s *Store) Append(point pricefeed.PricePoint, kind detector.Kind) error {
	now := time.Now().UTC()
	s.entries = append(s.entries, Entry{
		Timestamp:    float64(now.UnixNano()) / float64(time.Second),
		TimestampISO: now.Format(time.RFC3339Nano),
		Price:        point.Price,
		Cycle:        point.Cycle,
		EventType:    string(kind),
	})
	if len(s.entries) > maxEntries {
		s.entries = s.entries[len(s.entries)-maxEntries:]
	}
	return s.save()
}

func (s *Store) save() error {
	layout := fileLayout{
		LastUpdated:  float64(time.Now().UnixNano()) / float64(time.Second),
		TotalEntries: len(s.entries),
		History:      s.entries,
	}

	data, err := json.MarshalIndent(layout, "", "  ")
	if err != nil {
		return fmt.Errorf("encode price history: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write price history: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace price history: %w", err)
	}
	return nil
}

// All returns the entries oldest first.
func (s *Store) All() []Entry {
	out := make([]Entry, len(s.entries))
	copy(out, s.entries)
	return out
}

// Len reports the number of stored entries.
func (s *Store) Len() int {
	return len(s.entries)
}

// Latest returns the most recent entry, if any.
func (s *Store) Latest() (Entry, bool) {
	if len(s.entries) == 0 {
		return Entry{}, false
	}
	return s.entries[len(s.entries)-1], true
}

// Summary computes statistics over the most recent window entries.
func (s *Store) Summary(window int) (Summary, error) {
	if len(s.entries) == 0 {
		return Summary{}, ErrEmptyHistory
	}
	if window <= 0 {
		window = 10
	}

	recent := s.entries
	if len(recent) > window {
		recent = recent[len(recent)-window:]
	}

	summary := Summary{
		Window:       len(recent),
		MinPrice:     recent[0].Price,
		MaxPrice:     recent[0].Price,
		MinCycle:     recent[0].Cycle,
		MaxCycle:     recent[0].Cycle,
		TotalEntries: len(s.entries),
	}

	var sum float64
	for _, e := range recent {
		sum += e.Price
		if e.Price < summary.MinPrice {
			summary.MinPrice = e.Price
		}
		if e.Price > summary.MaxPrice {
			summary.MaxPrice = e.Price
		}
		if e.Cycle < summary.MinCycle {
			summary.MinCycle = e.Cycle
		}
		if e.Cycle > summary.MaxCycle {
			summary.MaxCycle = e.Cycle
		}
	}
	summary.AvgPrice = sum / float64(len(recent))
	summary.PriceRange = summary.MaxPrice - summary.MinPrice

	return summary, nil
}

// Clear drops all entries and removes the backing artifact.
func (s *Store) Clear() error {
	s.entries = nil
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove price history: %w", err)
	}
	s.logger.Info().Str("path", s.path).Msg("price history cleared")
	return nil
}
