package detector

import (
	"math"
	"time"

	"oil-price-watch/internal/pricefeed"
)

// Kind labels a change event.
type Kind string

const (
	// KindInitial marks the first price ever observed.
	KindInitial Kind = "initial"
	// KindUpdate marks a price change past the configured threshold.
	KindUpdate Kind = "update"
)

// ChangeEvent records a reportable price transition. Immutable after creation.
type ChangeEvent struct {
	Timestamp    time.Time
	OldPrice     *float64
	NewPrice     float64
	OldCycle     *int64
	NewCycle     int64
	Delta        float64
	DeltaPercent float64
	Kind         Kind
}

// Detect decides whether incoming constitutes a reportable change against
// previous. It returns nil when the incoming cycle has not advanced, when the
// absolute delta stays below threshold, or when the previous price is zero
// (percent change is undefined there). The caller is responsible for advancing
// its held price on any newer cycle regardless of the outcome.
func Detect(previous *pricefeed.PricePoint, incoming pricefeed.PricePoint, threshold float64) *ChangeEvent {
	if previous == nil {
		return &ChangeEvent{
			Timestamp: time.Now().UTC(),
			NewPrice:  incoming.Price,
			NewCycle:  incoming.Cycle,
			Kind:      KindInitial,
		}
	}

	if incoming.Cycle <= previous.Cycle {
		return nil
	}
	if previous.Price == 0 {
		return nil
	}

	delta := incoming.Price - previous.Price
	if math.Abs(delta) < threshold {
		return nil
	}

	oldPrice := previous.Price
	oldCycle := previous.Cycle
	return &ChangeEvent{
		Timestamp:    time.Now().UTC(),
		OldPrice:     &oldPrice,
		NewPrice:     incoming.Price,
		OldCycle:     &oldCycle,
		NewCycle:     incoming.Cycle,
		Delta:        delta,
		DeltaPercent: delta / previous.Price * 100,
		Kind:         KindUpdate,
	}
}
