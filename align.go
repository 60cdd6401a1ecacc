package traceenergy

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Alignment locates the sync marker inside a filtered trace.
type Alignment struct {
	// Offset is the index of the first sample of the sync marker.
	Offset int `json:"offset"`
	// Peak is the correlation value at Offset.
	Peak          float64 `json:"peak"`
	HeadLength    int     `json:"head_length"`
	PatternLength int     `json:"pattern_length"`
	// SyncRows is the number of marker samples removed by Trim after Offset.
	SyncRows int `json:"sync_rows"`
}

// DataStart is the index in the filtered trace where case 1 begins.
func (a Alignment) DataStart() int {
	return a.Offset + a.SyncRows
}

// NormalizeMinMax maps values linearly onto [0,1] using lo and hi.
func NormalizeMinMax(values []float64, lo, hi float64) ([]float64, error) {
	if !(hi > lo) {
		return nil, fmt.Errorf("%w: min=%g max=%g", ErrFlatTrace, lo, hi)
	}
	out := make([]float64, len(values))
	span := hi - lo
	for i, v := range values {
		out[i] = (v - lo) / span
	}
	return out, nil
}

// HeadLength is the number of leading samples searched for the marker: two
// full experiment repetitions, so the marker is contained even under drift.
func HeadLength(cases int, caseRows float64) int {
	return int(2 * float64(cases) * caseRows)
}

// Align finds the offset where the normalized trace head best matches the
// sync pattern. Ties resolve to the lowest offset.
func Align(trace Trace, pattern SyncPattern, cases int, caseRows float64) (Alignment, error) {
	if len(trace) == 0 {
		return Alignment{}, ErrEmptyTrace
	}
	powers := trace.Powers()
	lo, hi := floats.Min(powers), floats.Max(powers)

	headLen := HeadLength(cases, caseRows)
	if headLen > len(powers) {
		headLen = len(powers)
	}
	head, err := NormalizeMinMax(powers[:headLen], lo, hi)
	if err != nil {
		return Alignment{}, err
	}
	corr, err := Correlate(head, pattern.Levels)
	if err != nil {
		return Alignment{}, fmt.Errorf("%w: head=%d pattern=%d", err, headLen, pattern.Len())
	}
	tol := 0.0
	if usesFFT(len(head), pattern.Len()) {
		tol = peakTolerance
	}
	offset, peak := firstPeakWithin(corr, tol)
	return Alignment{
		Offset:        offset,
		Peak:          peak,
		HeadLength:    headLen,
		PatternLength: pattern.Len(),
	}, nil
}

// ExpectedRows is the sample count from the marker start to the end of the
// last case: every index i < cases*caseRows (+syncRows) belongs to a case.
func ExpectedRows(cases int, caseRows float64, syncRows int) int {
	return int(math.Ceil(float64(cases)*caseRows + float64(syncRows)))
}

// Trim cuts the trace down to the experiment: samples before the marker are
// dropped, the tail is truncated after the last complete case and, when
// syncRows > 0, the marker samples themselves are removed. The returned
// warnings describe a trace that ended before the last case.
func Trim(trace Trace, a *Alignment, cases int, caseRows float64, syncRows int) (Trace, []string) {
	var warnings []string
	if a.Offset >= len(trace) {
		return nil, []string{fmt.Sprintf("alignment offset %d beyond trace length %d", a.Offset, len(trace))}
	}
	out := trace[a.Offset:]
	want := ExpectedRows(cases, caseRows, syncRows)
	if len(out) > want {
		out = out[:want]
	} else if len(out) < want {
		warnings = append(warnings, fmt.Sprintf("trace ends %d samples before the last case", want-len(out)))
	}
	if syncRows > 0 {
		if syncRows >= len(out) {
			a.SyncRows = len(out)
			return nil, append(warnings, "no samples left after removing sync rows")
		}
		out = out[syncRows:]
		a.SyncRows = syncRows
	}
	return out, warnings
}
