package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"oil-price-watch/internal/detector"
	"oil-price-watch/internal/history"
	"oil-price-watch/internal/poller"
	"oil-price-watch/internal/pricefeed"
)

// Monitor composes the poller, parser, detector, and history store into a
// single check-for-updates operation. CheckForUpdates is serialised by an
// internal mutex; one call in flight at a time.
type Monitor struct {
	poller    *poller.Poller
	store     *history.Store
	threshold float64
	logger    zerolog.Logger

	mu              sync.Mutex
	current         *pricefeed.PricePoint
	lastEvent       *detector.ChangeEvent
	lastError       string
	lastCheckFailed bool
	active          bool
}

// Status is a fixed-shape snapshot of monitor plus poller state.
type Status struct {
	Active          bool
	CurrentPrice    *pricefeed.PricePoint
	LastEvent       *detector.ChangeEvent
	LastError       string
	LastCheckFailed bool
	HistoryCount    int
	Threshold       float64
	Poller          poller.Status
}

// New builds a monitor and warm-starts its current price from the most recent
// history entry when one exists.
func New(p *poller.Poller, store *history.Store, threshold float64, logger zerolog.Logger) *Monitor {
	m := &Monitor{
		poller:    p,
		store:     store,
		threshold: threshold,
		logger:    logger.With().Str("component", "monitor").Logger(),
	}

	if entry, ok := store.Latest(); ok {
		observedAt := time.Unix(0, int64(entry.Timestamp*float64(time.Second))).UTC()
		m.current = &pricefeed.PricePoint{
			Price:      entry.Price,
			Cycle:      entry.Cycle,
			ObservedAt: observedAt,
		}
		m.logger.Info().
			Float64("price", entry.Price).
			Int64("cycle", entry.Cycle).
			Msg("current price restored from history")
	}

	return m
}

// CheckForUpdates runs one poll cycle. It returns a change event when a
// reportable transition occurred and nil otherwise; fetch and parse failures
// are logged and reported through Status, never propagated.
func (m *Monitor) CheckForUpdates(ctx context.Context) *detector.ChangeEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastCheckFailed = false

	changed, payload, info := m.poller.Fetch(ctx, true)
	if info.Error != "" {
		m.lastError = info.Error
		m.lastCheckFailed = true
		return nil
	}
	if !changed {
		m.logger.Debug().Msg("no content changes detected")
		return nil
	}
	if len(payload) == 0 {
		m.logger.Warn().Msg("no payload received despite change detection")
		return nil
	}

	incoming, err := pricefeed.ParseLatest(payload)
	if err != nil {
		m.logger.Error().Err(err).Msg("failed to parse price payload")
		m.lastError = err.Error()
		m.lastCheckFailed = true
		return nil
	}
	incoming.ObservedAt = info.FetchedAt

	event := detector.Detect(m.current, incoming, m.threshold)
	if event != nil {
		m.current = &incoming
		m.lastEvent = event
		m.appendHistory(incoming, event.Kind)
		m.logger.Info().
			Str("kind", string(event.Kind)).
			Float64("price", event.NewPrice).
			Int64("cycle", event.NewCycle).
			Float64("delta", event.Delta).
			Msg("price update processed")
		return event
	}

	// No reportable event, but the held price still advances on a newer cycle.
	if m.current == nil || incoming.Cycle > m.current.Cycle {
		m.current = &incoming
		m.appendHistory(incoming, detector.KindUpdate)
		m.logger.Debug().
			Float64("price", incoming.Price).
			Int64("cycle", incoming.Cycle).
			Msg("price advanced without reportable change")
	}

	return nil
}

func (m *Monitor) appendHistory(point pricefeed.PricePoint, kind detector.Kind) {
	if err := m.store.Append(point, kind); err != nil {
		m.logger.Error().Err(err).Msg("failed to persist price history")
	}
}

// CurrentPrice returns a copy of the last accepted price point, or nil.
func (m *Monitor) CurrentPrice() *pricefeed.PricePoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.current == nil {
		return nil
	}
	point := *m.current
	return &point
}

// NextPollTime reports when the caller should invoke CheckForUpdates next.
func (m *Monitor) NextPollTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.poller.NextPollTime()
}

// Start marks the monitor active. Advisory only; the scheduling loop lives
// outside the monitor.
func (m *Monitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.active {
		m.logger.Warn().Msg("monitoring is already active")
		return
	}
	m.active = true
	m.logger.Info().Msg("price monitoring started")
}

// Stop clears the active flag.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.active {
		m.logger.Warn().Msg("monitoring is not active")
		return
	}
	m.active = false
	m.logger.Info().Msg("price monitoring stopped")
}

// Active reports the advisory monitoring flag.
func (m *Monitor) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active
}

// Status snapshots monitor and poller state.
func (m *Monitor) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	status := Status{
		Active:          m.active,
		LastError:       m.lastError,
		LastCheckFailed: m.lastCheckFailed,
		HistoryCount:    m.store.Len(),
		Threshold:       m.threshold,
		Poller:          m.poller.Status(),
	}
	if m.current != nil {
		point := *m.current
		status.CurrentPrice = &point
	}
	if m.lastEvent != nil {
		event := *m.lastEvent
		status.LastEvent = &event
	}
	return status
}

// Summary aggregates the most recent history window.
func (m *Monitor) Summary(window int) (history.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Summary(window)
}

// Reset clears monitor state, polling state, and the history artifact.
func (m *Monitor) Reset() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.current = nil
	m.lastEvent = nil
	m.lastError = ""
	m.lastCheckFailed = false
	m.active = false
	m.poller.Reset()

	if err := m.store.Clear(); err != nil {
		return err
	}
	m.logger.Info().Msg("monitoring state reset")
	return nil
}
