package pricefeed

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"time"
)

// PricePoint is a single upstream price observation. The cycle counter is
// assigned by the source and only ever moves forward; the entry with the
// highest cycle in a payload is the latest one.
type PricePoint struct {
	Price      float64
	Cycle      int64
	ObservedAt time.Time
}

// ParseError reports a payload that could not be decoded into price points.
type ParseError struct {
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse price payload: %s: %v", e.Reason, e.Err)
	}
	return fmt.Sprintf("parse price payload: %s", e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

type rawEntry struct {
	Price *json.Number `json:"price"`
	Cycle *json.Number `json:"cycle"`
}

// parsePoints decodes the raw payload into price points in first-seen order.
// Each array element is decoded on its own, so an individually malformed entry
// is skipped without poisoning the rest; decoding fails only when the payload
// is not a JSON array, the array is empty, or no entry survives.
func parsePoints(payload []byte) ([]PricePoint, error) {
	var raw []json.RawMessage
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, &ParseError{Reason: "invalid JSON", Err: err}
	}
	if len(raw) == 0 {
		return nil, &ParseError{Reason: "payload array is empty"}
	}

	points := make([]PricePoint, 0, len(raw))
	for _, item := range raw {
		dec := json.NewDecoder(bytes.NewReader(item))
		dec.UseNumber()

		var entry rawEntry
		if err := dec.Decode(&entry); err != nil {
			continue
		}
		if entry.Price == nil || entry.Cycle == nil {
			continue
		}
		price, err := entry.Price.Float64()
		if err != nil {
			continue
		}
		cycle, err := entry.Cycle.Int64()
		if err != nil {
			continue
		}
		points = append(points, PricePoint{Price: price, Cycle: cycle})
	}

	if len(points) == 0 {
		return nil, &ParseError{Reason: "no valid price entries found"}
	}
	return points, nil
}

// ParseLatest extracts the point carrying the highest cycle from the payload.
// Ties keep the first entry seen.
func ParseLatest(payload []byte) (PricePoint, error) {
	points, err := parsePoints(payload)
	if err != nil {
		return PricePoint{}, err
	}

	latest := points[0]
	for _, p := range points[1:] {
		if p.Cycle > latest.Cycle {
			latest = p
		}
	}
	return latest, nil
}

// History returns up to limit points from the payload, newest cycle first.
func History(payload []byte, limit int) ([]PricePoint, error) {
	points, err := parsePoints(payload)
	if err != nil {
		return nil, err
	}

	sort.SliceStable(points, func(i, j int) bool {
		return points[i].Cycle > points[j].Cycle
	})

	if limit > 0 && len(points) > limit {
		points = points[:limit]
	}
	return points, nil
}

// Stats summarises the full set of points in a payload.
type Stats struct {
	TotalEntries int
	LatestPrice  float64
	LatestCycle  int64
	MinPrice     float64
	MaxPrice     float64
	AvgPrice     float64
	PriceRange   float64
}

// Statistics computes payload-wide price statistics.
func Statistics(payload []byte) (Stats, error) {
	points, err := parsePoints(payload)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		TotalEntries: len(points),
		MinPrice:     math.Inf(1),
		MaxPrice:     math.Inf(-1),
	}

	var sum float64
	for _, p := range points {
		sum += p.Price
		stats.MinPrice = math.Min(stats.MinPrice, p.Price)
		stats.MaxPrice = math.Max(stats.MaxPrice, p.Price)
	}

	latest := points[0]
	for _, p := range points[1:] {
		if p.Cycle > latest.Cycle {
			latest = p
		}
	}
	stats.LatestPrice = latest.Price
	stats.LatestCycle = latest.Cycle
	stats.AvgPrice = sum / float64(len(points))
	stats.PriceRange = stats.MaxPrice - stats.MinPrice

	return stats, nil
}
