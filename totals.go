package traceenergy

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// TraceTotals is the whole-capture consumption, independent of any experiment.
type TraceTotals struct {
	Samples        int     `json:"samples"`
	DurationS      float64 `json:"duration_s"`
	AvgVoltageV    float64 `json:"avg_voltage_v"`
	AvgCurrentMA   float64 `json:"avg_current_ma"`
	AvgPowerMW     float64 `json:"avg_power_mw"`
	TotalEnergyWs  float64 `json:"total_energy_ws"`
	TotalEnergyMWh float64 `json:"total_energy_mwh"`
}

// ComputeTotals integrates power over the whole trace. Each sample after the
// first contributes its power times the gap to the previous sample; the
// first sample only anchors the clock.
func ComputeTotals(trace Trace) (TraceTotals, error) {
	if len(trace) < 2 {
		return TraceTotals{}, fmt.Errorf("%w: totals need 2 samples, have %d", ErrInsufficientSamples, len(trace))
	}
	rest := trace[1:]
	var energy float64
	for i := 1; i < len(trace); i++ {
		energy += (trace[i].Time - trace[i-1].Time) * trace[i].Power
	}
	return TraceTotals{
		Samples:        len(trace),
		DurationS:      trace[len(trace)-1].Time - trace[1].Time,
		AvgVoltageV:    stat.Mean(rest.Voltages(), nil),
		AvgCurrentMA:   milli * stat.Mean(rest.Currents(), nil),
		AvgPowerMW:     milli * stat.Mean(rest.Powers(), nil),
		TotalEnergyWs:  energy,
		TotalEnergyMWh: energy * milli / 3600,
	}, nil
}
