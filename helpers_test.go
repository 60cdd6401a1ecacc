package traceenergy

const testVoltage = 3.3

// buildTrace returns one sample per power value, intervalUS apart.
func buildTrace(powers []float64, intervalUS int64) Trace {
	trace := make(Trace, len(powers))
	for i, p := range powers {
		us := int64(i) * intervalUS
		trace[i] = NewSample(us/1_000_000, us%1_000_000, p, testVoltage, p/testVoltage)
	}
	return trace
}

func repeat(v float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// scenarioPowers is a 40 sample lead-in, the 4 bit marker 1011 at ten
// samples per bit, then four cases of ten samples at 5, 10, 20 and 2 mW.
func scenarioPowers() []float64 {
	const low, high = 0.001, 0.025
	var powers []float64
	powers = append(powers, repeat(low, 40)...)
	for _, bit := range []float64{1, 0, 1, 1} {
		level := low
		if bit == 1 {
			level = high
		}
		powers = append(powers, repeat(level, 10)...)
	}
	for _, p := range []float64{0.005, 0.010, 0.020, 0.002} {
		powers = append(powers, repeat(p, 10)...)
	}
	return powers
}

// scenarioExperiment samples at 2 Hz with 5 s cases, giving ten rows per case.
func scenarioExperiment() *Experiment {
	return &Experiment{
		Name:          "scenario",
		Cases:         4,
		CaseDurationS: 5,
		Sync:          SyncConfig{Kind: SyncBits, Code: 0b1011, Bits: 4, Strip: true},
		Radio:         RadioConfig{FrameBytes: 128, RateKbps: 250},
		Baseline:      BaselineConfig{Source: BaselineCase, Case: "D"},
		TaxonomyEntries: []TaxonomyEntry{
			{ID: 1, Label: "A"},
			{ID: 2, Label: "B"},
			{ID: 3, Label: "C", Kind: AggregateMax, Event: true},
			{ID: 4, Label: "D"},
		},
	}
}

func approxEqual(a, b, tol float64) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= tol
}

const (
	receiveIdle  = 0.030
	receivePeak  = 0.100
	receiveSync  = receiveIdle + 0.85*(receivePeak-receiveIdle)
	receiveCases = 6
)

// receivePowers is a 20 sample start-up, a 25 sample idle lead-in, an 81
// sample constant-level sync burst, six 30 sample cases with a two sample
// frame at stable rows 4 and 5, then 100 idle samples.
func receivePowers() []float64 {
	var powers []float64
	powers = append(powers, repeat(0.060, 20)...)
	powers = append(powers, repeat(receiveIdle, 25)...)
	powers = append(powers, repeat(receiveSync, 81)...)
	for c := 0; c < receiveCases; c++ {
		window := repeat(receiveIdle, 30)
		window[14], window[15] = receivePeak, receivePeak
		powers = append(powers, window...)
	}
	return append(powers, repeat(receiveIdle, 100)...)
}

// receiveExperiment samples at 2 Hz with 15 s cases (30 rows). Ten 4096 us
// frames at eight rows of error each give an 81 row sync burst.
func receiveExperiment() *Experiment {
	return &Experiment{
		Name:          "receive-scenario",
		Cases:         receiveCases,
		CaseDurationS: 15,
		StartupS:      10,
		Sync:          SyncConfig{Kind: SyncConstant, Transmissions: 10, RowError: 8, Level: 0.85},
		Radio:         RadioConfig{FrameBytes: 128, RateKbps: 250},
		Baseline:      BaselineConfig{Source: BaselinePhase0},
		TaxonomyEntries: []TaxonomyEntry{
			{From: 1, To: receiveCases, Label: "RX {{.ID}}", Kind: AggregateMax, Event: true},
		},
	}
}
