package monitor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"oil-price-watch/internal/detector"
	"oil-price-watch/internal/history"
	"oil-price-watch/internal/poller"
)

type fixture struct {
	monitor *Monitor
	store   *history.Store
	body    *atomic.Value
	path    string
}

func newFixture(t *testing.T, threshold float64) *fixture {
	t.Helper()

	body := &atomic.Value{}
	body.Store(`[{"price": 75.00, "cycle": 1000}]`)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body.Load().(string)))
	}))
	t.Cleanup(srv.Close)

	path := filepath.Join(t.TempDir(), "price_history.json")
	store := history.NewStore(path, zerolog.Nop())
	p := poller.New(poller.Options{
		URL:          srv.URL,
		BaseInterval: time.Minute,
		Timeout:      2 * time.Second,
		RetryCount:   -1,
	}, zerolog.Nop())

	return &fixture{
		monitor: New(p, store, threshold, zerolog.Nop()),
		store:   store,
		body:    body,
		path:    path,
	}
}

func TestInitialEvent(t *testing.T) {
	f := newFixture(t, 0.01)

	event := f.monitor.CheckForUpdates(context.Background())
	require.NotNil(t, event)
	assert.Equal(t, detector.KindInitial, event.Kind)
	assert.Equal(t, 75.00, event.NewPrice)
	assert.Equal(t, int64(1000), event.NewCycle)
	assert.Equal(t, 1, f.store.Len())
}

func TestUpdateAboveThreshold(t *testing.T) {
	f := newFixture(t, 0.01)
	require.NotNil(t, f.monitor.CheckForUpdates(context.Background()))

	f.body.Store(`[{"price": 76.50, "cycle": 1001}]`)
	event := f.monitor.CheckForUpdates(context.Background())
	require.NotNil(t, event)
	assert.Equal(t, detector.KindUpdate, event.Kind)
	assert.InDelta(t, 1.50, event.Delta, 1e-9)
	assert.InDelta(t, 2.00, event.DeltaPercent, 1e-9)
	assert.Equal(t, 2, f.store.Len())
}

func TestUpdateBelowThresholdAdvancesState(t *testing.T) {
	f := newFixture(t, 5.00)
	require.NotNil(t, f.monitor.CheckForUpdates(context.Background()))

	f.body.Store(`[{"price": 75.50, "cycle": 1001}]`)
	event := f.monitor.CheckForUpdates(context.Background())
	assert.Nil(t, event, "sub-threshold change must not produce an event")

	current := f.monitor.CurrentPrice()
	require.NotNil(t, current)
	assert.Equal(t, 75.50, current.Price)
	assert.Equal(t, int64(1001), current.Cycle)
	assert.Equal(t, 2, f.store.Len(), "accepted point is still appended to history")
}

func TestStaleCycleIgnored(t *testing.T) {
	f := newFixture(t, 0.01)

	f.body.Store(`[{"price": 75.00, "cycle": 1001}]`)
	require.NotNil(t, f.monitor.CheckForUpdates(context.Background()))

	f.body.Store(`[{"price": 80.00, "cycle": 1000}]`)
	event := f.monitor.CheckForUpdates(context.Background())
	assert.Nil(t, event)

	current := f.monitor.CurrentPrice()
	require.NotNil(t, current)
	assert.Equal(t, 75.00, current.Price)
	assert.Equal(t, int64(1001), current.Cycle)
	assert.Equal(t, 1, f.store.Len(), "stale data must not reach history")
}

func TestMalformedPayloadLeavesStateUntouched(t *testing.T) {
	f := newFixture(t, 0.01)
	f.body.Store(`[]`)

	event := f.monitor.CheckForUpdates(context.Background())
	assert.Nil(t, event)
	assert.Nil(t, f.monitor.CurrentPrice())
	assert.Zero(t, f.store.Len())

	st := f.monitor.Status()
	assert.True(t, st.LastCheckFailed)
	assert.NotEmpty(t, st.LastError)

	// the fingerprint still advanced, so the same bad payload is quiet next time
	event = f.monitor.CheckForUpdates(context.Background())
	assert.Nil(t, event)
	assert.False(t, f.monitor.Status().LastCheckFailed)
}

func TestUnchangedPayloadIsIdempotent(t *testing.T) {
	f := newFixture(t, 0.01)
	require.NotNil(t, f.monitor.CheckForUpdates(context.Background()))

	for i := 0; i < 3; i++ {
		assert.Nil(t, f.monitor.CheckForUpdates(context.Background()))
	}
	assert.Equal(t, 1, f.store.Len(), "unchanged payload must never duplicate history entries")
}

func TestWarmStartFromHistory(t *testing.T) {
	f := newFixture(t, 0.01)
	require.NotNil(t, f.monitor.CheckForUpdates(context.Background()))

	store := history.NewStore(f.path, zerolog.Nop())
	p := poller.New(poller.Options{URL: "http://127.0.0.1:1", BaseInterval: time.Minute, RetryCount: -1}, zerolog.Nop())
	restored := New(p, store, 0.01, zerolog.Nop())

	current := restored.CurrentPrice()
	require.NotNil(t, current, "monitor must seed current price from history")
	assert.Equal(t, 75.00, current.Price)
	assert.Equal(t, int64(1000), current.Cycle)
}

func TestFetchFailureIsReportedViaStatus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "price_history.json")
	store := history.NewStore(path, zerolog.Nop())
	p := poller.New(poller.Options{
		URL:          "http://127.0.0.1:1",
		BaseInterval: time.Minute,
		Timeout:      time.Second,
		RetryCount:   -1,
	}, zerolog.Nop())
	m := New(p, store, 0.01, zerolog.Nop())

	assert.Nil(t, m.CheckForUpdates(context.Background()))

	st := m.Status()
	assert.True(t, st.LastCheckFailed)
	assert.Equal(t, poller.CauseConnection, st.LastError)
}

func TestStartStopAndStatus(t *testing.T) {
	f := newFixture(t, 0.01)

	assert.False(t, f.monitor.Active())
	f.monitor.Start()
	assert.True(t, f.monitor.Active())
	f.monitor.Start() // repeated start is a no-op
	f.monitor.Stop()
	assert.False(t, f.monitor.Active())

	require.NotNil(t, f.monitor.CheckForUpdates(context.Background()))
	st := f.monitor.Status()
	require.NotNil(t, st.CurrentPrice)
	require.NotNil(t, st.LastEvent)
	assert.Equal(t, 0.01, st.Threshold)
	assert.Equal(t, 1, st.HistoryCount)
	assert.NotEmpty(t, st.Poller.ContentHash)
}

func TestSummaryAndReset(t *testing.T) {
	f := newFixture(t, 0.01)
	require.NotNil(t, f.monitor.CheckForUpdates(context.Background()))

	summary, err := f.monitor.Summary(10)
	require.NoError(t, err)
	assert.Equal(t, 75.00, summary.MinPrice)
	assert.Equal(t, int64(1000), summary.MaxCycle)

	require.NoError(t, f.monitor.Reset())
	assert.Nil(t, f.monitor.CurrentPrice())
	assert.Zero(t, f.store.Len())
	_, err = f.monitor.Summary(10)
	assert.ErrorIs(t, err, history.ErrEmptyHistory)

	// after reset the same payload is an initial event again
	event := f.monitor.CheckForUpdates(context.Background())
	require.NotNil(t, event)
	assert.Equal(t, detector.KindInitial, event.Kind)
}
