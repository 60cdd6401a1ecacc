package traceenergy

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

const (
	// DefaultIntervalLookback is the number of leading samples used to estimate the interval in seconds.
	DefaultIntervalLookback = 20
	// DefaultIntervalLookbackMicros is the number of leading samples used for the microsecond interval.
	DefaultIntervalLookbackMicros = 30
)

// EstimateInterval returns the mean spacing in seconds of the first lookback samples.
func EstimateInterval(trace Trace, lookback int) (float64, error) {
	if lookback < 2 {
		lookback = DefaultIntervalLookback
	}
	if len(trace) < lookback {
		return 0, fmt.Errorf("%w: interval needs %d samples, have %d", ErrInsufficientSamples, lookback, len(trace))
	}
	diffs := make([]float64, lookback-1)
	for i := 1; i < lookback; i++ {
		diffs[i-1] = trace[i].Time - trace[i-1].Time
	}
	interval := stat.Mean(diffs, nil)
	if !(interval > 0) {
		return 0, fmt.Errorf("%w: interval %g s", ErrNonMonotonicTime, interval)
	}
	return interval, nil
}

// EstimateIntervalMicros is EstimateInterval on the integer microsecond
// timestamps, free of the float rounding in Sample.Time.
func EstimateIntervalMicros(trace Trace, lookback int) (float64, error) {
	if lookback < 2 {
		lookback = DefaultIntervalLookbackMicros
	}
	if len(trace) < lookback {
		return 0, fmt.Errorf("%w: interval needs %d samples, have %d", ErrInsufficientSamples, lookback, len(trace))
	}
	diffs := make([]float64, lookback-1)
	for i := 1; i < lookback; i++ {
		diffs[i-1] = float64(trace[i].Micros - trace[i-1].Micros)
	}
	interval := stat.Mean(diffs, nil)
	if !(interval > 0) {
		return 0, fmt.Errorf("%w: interval %g us", ErrNonMonotonicTime, interval)
	}
	return interval, nil
}

// CaseRows is the real-valued number of samples per case. It is not rounded:
// windowing floors per lookup so rounding error does not accumulate.
func CaseRows(caseDurationS, interval float64) float64 {
	return caseDurationS / interval
}

// SkipStartup drops the samples recorded during the device start-up period.
func SkipStartup(trace Trace, startupS, interval float64) (Trace, error) {
	if startupS <= 0 {
		return trace, nil
	}
	rows := int(startupS / interval)
	if rows >= len(trace) {
		return nil, fmt.Errorf("%w: start-up spans %d samples, have %d", ErrInsufficientSamples, rows, len(trace))
	}
	return trace[rows:], nil
}
