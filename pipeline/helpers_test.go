package pipeline

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	traceenergy "github.com/lucasjlepore/trace-analyzer"
	"github.com/lucasjlepore/trace-analyzer/oml"
)

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// capturePowers is a 40 sample lead-in, the marker 1011 at ten samples per
// bit and four cases of ten samples at 5, 10, 20 and 2 mW, all times scale.
func capturePowers(scale float64) []float64 {
	const low, high = 0.001, 0.025
	var powers []float64
	powers = append(powers, repeat(low*scale, 40)...)
	for _, bit := range []int{1, 0, 1, 1} {
		level := low
		if bit == 1 {
			level = high
		}
		powers = append(powers, repeat(level*scale, 10)...)
	}
	for _, p := range []float64{0.005, 0.010, 0.020, 0.002} {
		powers = append(powers, repeat(p*scale, 10)...)
	}
	return powers
}

func testExperiment(t *testing.T) *traceenergy.Experiment {
	t.Helper()
	exp := &traceenergy.Experiment{
		Name:          "scenario",
		Cases:         4,
		CaseDurationS: 5,
		Sync:          traceenergy.SyncConfig{Kind: traceenergy.SyncBits, Code: 0b1011, Bits: 4, Strip: true},
		Radio:         traceenergy.RadioConfig{FrameBytes: 128, RateKbps: 250},
		Baseline:      traceenergy.BaselineConfig{Source: traceenergy.BaselineCase, Case: "D"},
		TaxonomyEntries: []traceenergy.TaxonomyEntry{
			{ID: 1, Label: "A"},
			{ID: 2, Label: "B"},
			{ID: 3, Label: "C", Kind: traceenergy.AggregateMax, Event: true},
			{ID: 4, Label: "D"},
		},
	}
	if err := exp.Prepare(); err != nil {
		t.Fatalf("Prepare error: %v", err)
	}
	return exp
}

// encodeCapture renders powers as an instrument capture sampled at 2 Hz.
func encodeCapture(t *testing.T, powers []float64) []byte {
	t.Helper()
	const voltage = 3.3
	records := make([]oml.Record, len(powers))
	for i, p := range powers {
		us := int64(i) * 500_000
		records[i] = oml.Record{
			Seconds:      us / 1_000_000,
			Microseconds: us % 1_000_000,
			Power:        p,
			Voltage:      voltage,
			Current:      p / voltage,
		}
	}
	var buf bytes.Buffer
	if err := oml.Encode(&buf, records); err != nil {
		t.Fatalf("Encode error: %v", err)
	}
	return buf.Bytes()
}

func writeCapture(t *testing.T, dir, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write capture: %v", err)
	}
	return path
}

func approxEqual(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}
