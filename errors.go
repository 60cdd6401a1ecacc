package traceenergy

import "errors"

var (
	// ErrEmptyTrace is returned when a trace has no samples, either on input or after outlier filtering.
	ErrEmptyTrace = errors.New("traceenergy: empty trace")
	// ErrInsufficientSamples is returned when a trace is shorter than a required lookback window.
	ErrInsufficientSamples = errors.New("traceenergy: insufficient samples")
	// ErrNonMonotonicTime is returned when the estimated sampling interval is not positive.
	ErrNonMonotonicTime = errors.New("traceenergy: non-monotonic sample time")
	// ErrFlatTrace is returned when min-max normalization is impossible (max power == min power).
	ErrFlatTrace = errors.New("traceenergy: flat trace")
	// ErrPatternTooLong is returned when the correlation head is shorter than the sync pattern.
	ErrPatternTooLong = errors.New("traceenergy: sync pattern longer than trace head")
	// ErrEventWindowTooLarge is returned when a case has fewer stable samples than one event spans.
	ErrEventWindowTooLarge = errors.New("traceenergy: event window larger than case samples")
	// ErrBaselineCaseMissing is returned when the configured baseline case has no statistics.
	ErrBaselineCaseMissing = errors.New("traceenergy: baseline case missing")
	// ErrInvalidExperiment is returned when an experiment configuration fails validation.
	ErrInvalidExperiment = errors.New("traceenergy: invalid experiment")
	// ErrUnknownExperiment is returned when an experiment name is not registered.
	ErrUnknownExperiment = errors.New("traceenergy: unknown experiment")
)
