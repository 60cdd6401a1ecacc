package traceenergy

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestLoadRegistryPresets(t *testing.T) {
	reg, err := LoadRegistry("")
	if err != nil {
		t.Fatalf("LoadRegistry error: %v", err)
	}
	for _, name := range []string{"radio-states", "transmit", "transmit-energy", "receive"} {
		if _, err := reg.Get(name); err != nil {
			t.Fatalf("preset %s: %v", name, err)
		}
	}

	transmit, _ := reg.Get("transmit-energy")
	tax := transmit.Taxonomy()
	checks := map[int]string{
		8:  "SLEEP",
		11: "Idle",
		12: "UNICAST - PHY_POWER_m17dBm",
		13: "BROADCAST - PHY_POWER_m17dBm",
		30: "UNICAST - PHY_POWER_0dBm",
		32: "UNICAST - PHY_POWER_0_7dBm",
		43: "BROADCAST - PHY_POWER_3dBm",
	}
	for id, want := range checks {
		if got := tax[id].Label; got != want {
			t.Fatalf("transmit case %d label=%q want %q", id, got, want)
		}
	}
	if tax[12].Kind != AggregateMax || !tax[12].Event || tax[8].Event {
		t.Fatalf("unexpected kinds: 8=%+v 12=%+v", tax[8], tax[12])
	}
	if len(tax.EventIDs()) != 32 {
		t.Fatalf("event cases=%d want 32", len(tax.EventIDs()))
	}
	if _, ok := tax[1]; ok {
		t.Fatal("sync cases must stay unlabeled")
	}

	radio, _ := reg.Get("radio-states")
	if got := radio.Taxonomy()[32].Label; got != "TX TX_PWR 15" {
		t.Fatalf("radio-states case 32 label=%q", got)
	}
	if radio.Sync.Kind != SyncBits || radio.Sync.Bits != 8 || radio.Sync.Code != 22 {
		t.Fatalf("radio-states sync=%+v", radio.Sync)
	}

	receive, _ := reg.Get("receive")
	if receive.Sync.Kind != SyncConstant || receive.Baseline.Source != BaselinePhase0 || receive.StartupS != 9 {
		t.Fatalf("receive preset=%+v", receive)
	}
	if rows := receive.SyncRowsToStrip(ConstantSyncPattern(2, 4096, 1000, 0, 0.85)); rows != 9 {
		t.Fatalf("receive strips %d rows, want the whole pattern", rows)
	}
}

func TestLoadRegistryUnknownName(t *testing.T) {
	reg, err := LoadRegistry("")
	if err != nil {
		t.Fatalf("LoadRegistry error: %v", err)
	}
	if _, err := reg.Get("nope"); !errors.Is(err, ErrUnknownExperiment) {
		t.Fatalf("expected ErrUnknownExperiment, got %v", err)
	}
}

func TestLoadRegistryUserFileOverrides(t *testing.T) {
	doc := `
experiments:
  - name: transmit
    cases: 10
    case_duration_s: 2
    sync: {kind: bits, code: 5, bits: 3}
    taxonomy:
      - from: 4
        to: 9
        stride: 3
        values: [low, high]
        label: "{{.Value}}-{{.Offset}}"
        kind: max
`
	path := filepath.Join(t.TempDir(), "experiments.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry error: %v", err)
	}
	exp, _ := reg.Get("transmit")
	if exp.Cases != 10 {
		t.Fatalf("user file did not override preset: cases=%d", exp.Cases)
	}
	tax := exp.Taxonomy()
	if tax[4].Label != "low-0" || tax[7].Label != "high-3" || tax[9].Label != "high-5" {
		t.Fatalf("labels: 4=%q 7=%q 9=%q", tax[4].Label, tax[7].Label, tax[9].Label)
	}
	if exp.IntervalLookback != DefaultIntervalLookback || exp.Bounds != DefaultBounds {
		t.Fatalf("defaults not applied: %+v", exp)
	}
	if _, err := reg.Get("receive"); err != nil {
		t.Fatalf("presets lost: %v", err)
	}
}

func TestExperimentValidation(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(e *Experiment)
	}{
		{"no cases", func(e *Experiment) { e.Cases = 0 }},
		{"code too wide", func(e *Experiment) { e.Sync.Code = 0x1F }},
		{"missing baseline", func(e *Experiment) { e.Baseline.Case = "Z" }},
		{"event without radio", func(e *Experiment) { e.Radio = RadioConfig{} }},
		{"case out of range", func(e *Experiment) {
			e.TaxonomyEntries = append(e.TaxonomyEntries, TaxonomyEntry{ID: 5, Label: "E"})
		}},
		{"duplicate case", func(e *Experiment) {
			e.TaxonomyEntries = append(e.TaxonomyEntries, TaxonomyEntry{ID: 2, Label: "B2"})
		}},
		{"bad kind", func(e *Experiment) { e.TaxonomyEntries[0].Kind = "median" }},
		{"bad template", func(e *Experiment) { e.TaxonomyEntries[0].Label = "{{.Missing" }},
		{"bad filename", func(e *Experiment) { e.FilenamePattern = `m3-[0-9]+` }},
		{"bad sync kind", func(e *Experiment) { e.Sync.Kind = "chirp" }},
		{"constant without frames", func(e *Experiment) { e.Sync = SyncConfig{Kind: SyncConstant, Level: 0.85} }},
	}
	for _, tc := range cases {
		exp := scenarioExperiment()
		tc.mutate(exp)
		if err := exp.Prepare(); !errors.Is(err, ErrInvalidExperiment) {
			t.Fatalf("%s: expected ErrInvalidExperiment, got %v", tc.name, err)
		}
	}
	if err := scenarioExperiment().Prepare(); err != nil {
		t.Fatalf("scenario experiment should be valid: %v", err)
	}
}
