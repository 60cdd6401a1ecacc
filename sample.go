package traceenergy

// Sample is one instrument measurement. Power is in W, Voltage in V and
// Current in A, exactly as recorded; milli-unit scaling happens at
// aggregation time.
type Sample struct {
	Time    float64 `json:"time_s"`
	Micros  int64   `json:"time_us"`
	Power   float64 `json:"power_w"`
	Voltage float64 `json:"voltage_v"`
	Current float64 `json:"current_a"`
}

// NewSample builds a sample from the instrument's split second/microsecond timestamp.
func NewSample(sec, usec int64, power, voltage, current float64) Sample {
	return Sample{
		Time:    float64(sec) + float64(usec)/1e6,
		Micros:  sec*1_000_000 + usec,
		Power:   power,
		Voltage: voltage,
		Current: current,
	}
}

// Trace is a time-ordered sequence of samples from one capture file.
type Trace []Sample

// Powers returns the power column.
func (t Trace) Powers() []float64 {
	out := make([]float64, len(t))
	for i, s := range t {
		out[i] = s.Power
	}
	return out
}

// Currents returns the current column.
func (t Trace) Currents() []float64 {
	out := make([]float64, len(t))
	for i, s := range t {
		out[i] = s.Current
	}
	return out
}

// Voltages returns the voltage column.
func (t Trace) Voltages() []float64 {
	out := make([]float64, len(t))
	for i, s := range t {
		out[i] = s.Voltage
	}
	return out
}

// Micros returns the integer microsecond timestamps.
func (t Trace) Micros() []int64 {
	out := make([]int64, len(t))
	for i, s := range t {
		out[i] = s.Micros
	}
	return out
}
