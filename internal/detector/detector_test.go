package detector

import (
	"math"
	"testing"

	"oil-price-watch/internal/pricefeed"
)

func TestDetectInitial(t *testing.T) {
	event := Detect(nil, pricefeed.PricePoint{Price: 75.00, Cycle: 1000}, 0.01)
	if event == nil {
		t.Fatal("first observation must produce an event")
	}
	if event.Kind != KindInitial {
		t.Fatalf("expected initial event, got %s", event.Kind)
	}
	if event.OldPrice != nil || event.OldCycle != nil {
		t.Fatal("initial event must not carry old values")
	}
	if event.Delta != 0 || event.DeltaPercent != 0 {
		t.Fatalf("initial event must have zero delta, got %v / %v", event.Delta, event.DeltaPercent)
	}
	if event.NewPrice != 75.00 || event.NewCycle != 1000 {
		t.Fatalf("unexpected event payload: %+v", event)
	}
}

func TestDetectUpdateAboveThreshold(t *testing.T) {
	prev := &pricefeed.PricePoint{Price: 75.00, Cycle: 1000}
	event := Detect(prev, pricefeed.PricePoint{Price: 76.50, Cycle: 1001}, 0.01)
	if event == nil {
		t.Fatal("expected update event")
	}
	if event.Kind != KindUpdate {
		t.Fatalf("expected update kind, got %s", event.Kind)
	}
	if math.Abs(event.Delta-1.50) > 1e-9 {
		t.Fatalf("expected delta +1.50, got %v", event.Delta)
	}
	if math.Abs(event.DeltaPercent-2.00) > 1e-9 {
		t.Fatalf("expected +2.00%%, got %v", event.DeltaPercent)
	}
	if *event.OldPrice != 75.00 || *event.OldCycle != 1000 {
		t.Fatalf("unexpected old values: %+v", event)
	}
}

func TestDetectBelowThreshold(t *testing.T) {
	prev := &pricefeed.PricePoint{Price: 75.00, Cycle: 1000}
	if event := Detect(prev, pricefeed.PricePoint{Price: 75.50, Cycle: 1001}, 5.00); event != nil {
		t.Fatalf("sub-threshold change must not produce an event, got %+v", event)
	}
}

func TestDetectExactThresholdFires(t *testing.T) {
	prev := &pricefeed.PricePoint{Price: 75.00, Cycle: 1000}
	if event := Detect(prev, pricefeed.PricePoint{Price: 75.50, Cycle: 1001}, 0.50); event == nil {
		t.Fatal("delta equal to threshold must fire")
	}
}

func TestDetectStaleCycle(t *testing.T) {
	prev := &pricefeed.PricePoint{Price: 75.00, Cycle: 1001}
	if event := Detect(prev, pricefeed.PricePoint{Price: 80.00, Cycle: 1000}, 0.01); event != nil {
		t.Fatalf("lower cycle must be ignored, got %+v", event)
	}
	if event := Detect(prev, pricefeed.PricePoint{Price: 80.00, Cycle: 1001}, 0.01); event != nil {
		t.Fatalf("equal cycle must be ignored, got %+v", event)
	}
}

func TestDetectNegativeDelta(t *testing.T) {
	prev := &pricefeed.PricePoint{Price: 75.00, Cycle: 1000}
	event := Detect(prev, pricefeed.PricePoint{Price: 73.00, Cycle: 1001}, 0.01)
	if event == nil {
		t.Fatal("price drop past threshold must fire")
	}
	if event.Delta >= 0 {
		t.Fatalf("expected negative delta, got %v", event.Delta)
	}
}

func TestDetectZeroPreviousPrice(t *testing.T) {
	prev := &pricefeed.PricePoint{Price: 0, Cycle: 1000}
	if event := Detect(prev, pricefeed.PricePoint{Price: 75.00, Cycle: 1001}, 0.01); event != nil {
		t.Fatalf("zero previous price must not produce an event, got %+v", event)
	}
}
