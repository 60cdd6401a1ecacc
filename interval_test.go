package traceenergy

import (
	"errors"
	"testing"
)

func TestEstimateIntervalUsesLeadingSamples(t *testing.T) {
	trace := buildTrace(repeat(0.1, 40), 1100)
	// Later jitter must not affect the estimate.
	for i := 25; i < len(trace); i++ {
		trace[i].Time += 1
		trace[i].Micros += 1_000_000
	}
	interval, err := EstimateInterval(trace, 20)
	if err != nil {
		t.Fatalf("EstimateInterval error: %v", err)
	}
	if !approxEqual(interval, 0.0011, 1e-12) {
		t.Fatalf("interval=%v want 0.0011", interval)
	}
	us, err := EstimateIntervalMicros(trace, 0)
	if err != nil {
		t.Fatalf("EstimateIntervalMicros error: %v", err)
	}
	if us <= 1100 {
		t.Fatalf("default 30 sample lookback should include the jump, got %v us", us)
	}
	us, err = EstimateIntervalMicros(trace, 20)
	if err != nil {
		t.Fatalf("EstimateIntervalMicros error: %v", err)
	}
	if us != 1100 {
		t.Fatalf("interval=%v us want 1100", us)
	}
	if rows := CaseRows(5, interval); !approxEqual(rows, 5/0.0011, 1e-6) {
		t.Fatalf("case rows=%v", rows)
	}
}

func TestEstimateIntervalErrors(t *testing.T) {
	if _, err := EstimateInterval(buildTrace(repeat(0.1, 5), 100), 20); !errors.Is(err, ErrInsufficientSamples) {
		t.Fatalf("expected ErrInsufficientSamples, got %v", err)
	}
	flat := buildTrace(repeat(0.1, 20), 0)
	if _, err := EstimateInterval(flat, 20); !errors.Is(err, ErrNonMonotonicTime) {
		t.Fatalf("expected ErrNonMonotonicTime, got %v", err)
	}
}

func TestSkipStartup(t *testing.T) {
	trace := buildTrace(repeat(0.1, 100), 500_000)
	out, err := SkipStartup(trace, 9, 0.5)
	if err != nil {
		t.Fatalf("SkipStartup error: %v", err)
	}
	if len(out) != 82 {
		t.Fatalf("len=%d want 82", len(out))
	}
	if _, err := SkipStartup(trace, 60, 0.5); !errors.Is(err, ErrInsufficientSamples) {
		t.Fatalf("expected ErrInsufficientSamples, got %v", err)
	}
}
