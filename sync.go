package traceenergy

import "math"

// SyncKind selects how the start-of-experiment marker is emitted by the device.
type SyncKind string

const (
	// SyncBits is an n-bit code sent MSB first, one case duration per bit.
	SyncBits SyncKind = "bits"
	// SyncConstant is a long burst of back-to-back radio transmissions.
	SyncConstant SyncKind = "constant"
)

// DefaultConstantLevel is the reference level of a constant-level pattern.
// It must differ from 0 and 1 so plots never confuse it with a bit level.
const DefaultConstantLevel = 0.85

// SyncPattern is the expected normalized amplitude of the sync marker, one
// entry per sample at the trace's native rate.
type SyncPattern struct {
	Kind   SyncKind  `json:"kind"`
	Levels []float64 `json:"-"`
}

// Len returns the pattern length in samples.
func (p SyncPattern) Len() int {
	return len(p.Levels)
}

// SyncBitLevels expands code into bits 0/1 levels, most significant first.
func SyncBitLevels(code uint64, bits int) []float64 {
	levels := make([]float64, bits)
	for i := 0; i < bits; i++ {
		if code&(1<<uint(bits-1-i)) != 0 {
			levels[i] = 1
		}
	}
	return levels
}

// RepeatLevels replicates each level rows times. Level j covers positions
// [round(j*rows), round((j+1)*rows)), so a fractional rows spreads rounding
// across the pattern instead of dropping it at every level boundary.
func RepeatLevels(levels []float64, rows float64) []float64 {
	if rows <= 0 || len(levels) == 0 {
		return nil
	}
	out := make([]float64, 0, int(math.Round(float64(len(levels))*rows)))
	for j, level := range levels {
		end := int(math.Round(float64(j+1) * rows))
		for len(out) < end {
			out = append(out, level)
		}
	}
	return out
}

// BitSyncPattern builds the pattern of an n-bit sync code (8 bits on the
// reference firmware), one case width per bit.
func BitSyncPattern(code uint64, bits int, caseRows float64) SyncPattern {
	return SyncPattern{
		Kind:   SyncBits,
		Levels: RepeatLevels(SyncBitLevels(code, bits), caseRows),
	}
}

// TransmissionDurationUS is the on-air time in microseconds of one frame.
func TransmissionDurationUS(frameBytes int, rateKbps float64) float64 {
	return (8 * float64(frameBytes)) / (rateKbps / 1000)
}

// ConstantSyncRows is the sample count of a burst of transmissions. rowError
// is the calibrated per-transmission gap (in rows) the nominal rate misses.
func ConstantSyncRows(transmissions int, durationUS, intervalUS, rowError float64) int {
	n := float64(transmissions)
	return int(math.Ceil(n*durationUS/intervalUS + n*rowError))
}

// ConstantSyncPattern builds a constant-level pattern covering a burst of transmissions.
func ConstantSyncPattern(transmissions int, durationUS, intervalUS, rowError, level float64) SyncPattern {
	if level <= 0 || level >= 1 {
		level = DefaultConstantLevel
	}
	rows := ConstantSyncRows(transmissions, durationUS, intervalUS, rowError)
	if rows < 0 {
		rows = 0
	}
	levels := make([]float64, rows)
	for i := range levels {
		levels[i] = level
	}
	return SyncPattern{Kind: SyncConstant, Levels: levels}
}

// VisualMarkers returns an alternating overlay, one level per case window,
// that makes case boundaries visible next to the sync pattern in plots.
func VisualMarkers(firstCase, cases int, caseRows float64, levels [2]float64) []float64 {
	if cases < firstCase {
		return nil
	}
	per := make([]float64, 0, cases-firstCase+1)
	for i := firstCase - 1; i < cases; i++ {
		per = append(per, levels[i%2])
	}
	return RepeatLevels(per, caseRows)
}
