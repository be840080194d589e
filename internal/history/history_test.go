package history

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oil-price-watch/internal/detector"
	"oil-price-watch/internal/pricefeed"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "price_history.json"), zerolog.Nop())
}

func TestAppendAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price_history.json")
	s := NewStore(path, zerolog.Nop())

	require.NoError(t, s.Append(pricefeed.PricePoint{Price: 75.0, Cycle: 1000}, detector.KindInitial))
	require.NoError(t, s.Append(pricefeed.PricePoint{Price: 76.5, Cycle: 1001}, detector.KindUpdate))

	reloaded := NewStore(path, zerolog.Nop())
	require.Equal(t, 2, reloaded.Len())

	latest, ok := reloaded.Latest()
	require.True(t, ok)
	assert.Equal(t, 76.5, latest.Price)
	assert.Equal(t, int64(1001), latest.Cycle)
	assert.Equal(t, "update", latest.EventType)
}

func TestPersistedLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price_history.json")
	s := NewStore(path, zerolog.Nop())
	require.NoError(t, s.Append(pricefeed.PricePoint{Price: 75.0, Cycle: 1000}, detector.KindInitial))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var layout map[string]any
	require.NoError(t, json.Unmarshal(data, &layout))
	assert.Contains(t, layout, "lastUpdated")
	assert.EqualValues(t, 1, layout["totalEntries"])

	entries, ok := layout["history"].([]any)
	require.True(t, ok)
	entry := entries[0].(map[string]any)
	for _, key := range []string{"timestamp", "timestampIso", "price", "cycle", "eventType"} {
		assert.Contains(t, entry, key)
	}
}

func TestCapEvictsOldestFirst(t *testing.T) {
	s := tempStore(t)
	for i := 0; i < 1500; i++ {
		require.NoError(t, s.Append(pricefeed.PricePoint{Price: float64(i), Cycle: int64(i)}, detector.KindUpdate))
	}

	entries := s.All()
	require.Len(t, entries, 1000)
	assert.Equal(t, int64(500), entries[0].Cycle, "retained entries must be the most recent tail")
	assert.Equal(t, int64(1499), entries[len(entries)-1].Cycle)
}

func TestSummaryWindow(t *testing.T) {
	s := tempStore(t)
	for i := 0; i < 20; i++ {
		require.NoError(t, s.Append(pricefeed.PricePoint{Price: 70 + float64(i), Cycle: int64(1000 + i)}, detector.KindUpdate))
	}

	summary, err := s.Summary(10)
	require.NoError(t, err)
	assert.Equal(t, 10, summary.Window)
	assert.Equal(t, 80.0, summary.MinPrice)
	assert.Equal(t, 89.0, summary.MaxPrice)
	assert.InDelta(t, 84.5, summary.AvgPrice, 1e-9)
	assert.Equal(t, int64(1010), summary.MinCycle)
	assert.Equal(t, int64(1019), summary.MaxCycle)
	assert.Equal(t, 20, summary.TotalEntries)
}

func TestSummaryEmpty(t *testing.T) {
	s := tempStore(t)
	_, err := s.Summary(10)
	assert.ErrorIs(t, err, ErrEmptyHistory)
}

func TestCorruptFileDegradesToEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price_history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s := NewStore(path, zerolog.Nop())
	assert.Zero(t, s.Len())
}

func TestClearRemovesArtifact(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price_history.json")
	s := NewStore(path, zerolog.Nop())
	require.NoError(t, s.Append(pricefeed.PricePoint{Price: 75.0, Cycle: 1}, detector.KindInitial))

	require.NoError(t, s.Clear())
	assert.Zero(t, s.Len())
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// clearing an already-clean store is fine
	require.NoError(t, s.Clear())
}
