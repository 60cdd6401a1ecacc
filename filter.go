package traceenergy

// Bounds is the open interval of plausible instrument readings.
type Bounds struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// DefaultBounds rejects non-positive readings and saturated values.
var DefaultBounds = Bounds{Min: 0, Max: 1000}

func (b Bounds) contains(v float64) bool {
	return v > b.Min && v < b.Max
}

// FilterOutliers drops every sample whose power, current or voltage falls
// outside b. The input is not modified. The result may be empty.
func FilterOutliers(trace Trace, b Bounds) (Trace, error) {
	if len(trace) == 0 {
		return nil, ErrEmptyTrace
	}
	out := make(Trace, 0, len(trace))
	for _, s := range trace {
		if !b.contains(s.Power) || !b.contains(s.Current) || !b.contains(s.Voltage) {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
