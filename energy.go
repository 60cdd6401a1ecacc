package traceenergy

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/stat"
)

// microsPerHour converts µs·mW to mWh once scaled by the event duration.
const microsPerHour = 3_600_000_000.0

// Baseline is the steady level subtracted from event samples.
type Baseline struct {
	Source    BaselineSource `json:"source"`
	Label     string         `json:"label,omitempty"`
	PowerMW   float64        `json:"power_mw"`
	CurrentMA float64        `json:"current_ma"`
}

// EnergyEvent is the energy of one located event above the baseline.
type EnergyEvent struct {
	CaseID int    `json:"case_id"`
	Label  string `json:"label"`
	// StartIndex is the position of the event window inside the case's stable samples.
	StartIndex int     `json:"start_index"`
	Rows       int     `json:"rows"`
	StartUS    float64 `json:"start_us"`
	EndUS      float64 `json:"end_us"`
	EnergyMWh  float64 `json:"energy_mwh"`
	EnergyMAh  float64 `json:"energy_mah"`
}

// TransmissionRows is the sample count spanning one event of durationUS.
func TransmissionRows(durationUS, intervalUS float64) int {
	return 1 + int(math.Ceil(durationUS/intervalUS))
}

// ResolveBaseline picks the baseline configured for the experiment from the
// statistics and the aligned trace of the same file.
func ResolveBaseline(cfg BaselineConfig, stats []CaseStatistics, aligned Trace, caseRows float64, cases int) (Baseline, error) {
	switch cfg.Source {
	case "", BaselineNone:
		return Baseline{Source: BaselineNone}, nil
	case BaselineCase:
		s, ok := StatisticsByLabel(stats, cfg.Case)
		if !ok {
			return Baseline{}, fmt.Errorf("%w: %q", ErrBaselineCaseMissing, cfg.Case)
		}
		return Baseline{Source: BaselineCase, Label: cfg.Case, PowerMW: s.PowerMW(), CurrentMA: s.CurrentMA()}, nil
	case BaselinePhase0:
		var powers, currents []float64
		for i, s := range aligned {
			if _, phase := Locate(i, caseRows, cases); phase == PhaseLeadIn {
				powers = append(powers, s.Power)
				currents = append(currents, s.Current)
			}
		}
		if len(powers) == 0 {
			return Baseline{}, fmt.Errorf("%w: no lead-in samples", ErrBaselineCaseMissing)
		}
		return Baseline{
			Source:    BaselinePhase0,
			PowerMW:   milli * stat.Mean(powers, nil),
			CurrentMA: milli * stat.Mean(currents, nil),
		}, nil
	default:
		return Baseline{}, fmt.Errorf("%w: baseline source %q", ErrInvalidExperiment, cfg.Source)
	}
}

// LocateEvent returns the start of the rows-sample window with the largest
// power sum. Ties resolve to the earliest window.
func LocateEvent(samples Trace, rows int) (int, error) {
	if rows <= 0 || len(samples) < rows {
		return 0, fmt.Errorf("%w: need %d samples, have %d", ErrEventWindowTooLarge, rows, len(samples))
	}
	powers := samples.Powers()
	best, bestSum := 0, math.Inf(-1)
	for start := 0; start+rows <= len(powers); start++ {
		sum := floats.Sum(powers[start : start+rows])
		if sum > bestSum {
			best, bestSum = start, sum
		}
	}
	return best, nil
}

// IntegrateEvent locates the event inside the stable samples of one case and
// integrates its power and current above the baseline.
func IntegrateEvent(caseID int, label string, samples Trace, rows int, durationUS float64, base Baseline) (EnergyEvent, error) {
	start, err := LocateEvent(samples, rows)
	if err != nil {
		return EnergyEvent{}, fmt.Errorf("case %d: %w", caseID, err)
	}
	window := samples[start : start+rows]

	power := make([]float64, rows)
	current := make([]float64, rows)
	x := make([]float64, rows)
	for i, s := range window {
		power[i] = milli*s.Power - base.PowerMW
		current[i] = milli*s.Current - base.CurrentMA
		x[i] = float64(s.Micros)
	}

	// The sampling period is coarser than the event: pin one boundary to the
	// event duration measured from the other.
	last := rows - 1
	if power[0] < power[last] {
		x[0] = x[last] - durationUS
	} else {
		x[last] = x[0] + durationUS
	}

	scale := microsPerHour / durationUS
	return EnergyEvent{
		CaseID:     caseID,
		Label:      label,
		StartIndex: start,
		Rows:       rows,
		StartUS:    x[0],
		EndUS:      x[last],
		EnergyMWh:  trapezoid(x, power) / scale,
		EnergyMAh:  trapezoid(x, current) / scale,
	}, nil
}

// IntegrateEvents runs IntegrateEvent for every event case of the taxonomy
// present in the aligned trace.
func IntegrateEvents(aligned Trace, caseRows float64, cases int, tax Taxonomy, rows int, durationUS float64, base Baseline) ([]EnergyEvent, error) {
	ids := tax.EventIDs()
	if len(ids) == 0 {
		return nil, nil
	}
	groups := PhaseSamples(aligned, caseRows, cases, PhaseStable)
	events := make([]EnergyEvent, 0, len(ids))
	for _, id := range ids {
		samples, ok := groups[id]
		if !ok {
			continue
		}
		ev, err := IntegrateEvent(id, tax[id].Label, samples, rows, durationUS, base)
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, nil
}

// EventSummary averages the event cases of one file.
type EventSummary struct {
	Events               int     `json:"events"`
	AvgPowerMaxExtraMW   float64 `json:"avg_power_max_extra_mw"`
	AvgCurrentMaxExtraMA float64 `json:"avg_current_max_extra_ma"`
	BaselinePowerMW      float64 `json:"baseline_power_mw"`
	BaselineCurrentMA    float64 `json:"baseline_current_ma"`
	AvgPowerMaxTotalMW   float64 `json:"avg_power_max_total_mw"`
	AvgCurrentMaxTotalMA float64 `json:"avg_current_max_total_ma"`
	AvgEnergyExtraMWh    float64 `json:"avg_energy_extra_mwh"`
	AvgEnergyExtraMAh    float64 `json:"avg_energy_extra_mah"`
	BaselineEnergyMWh    float64 `json:"baseline_energy_per_event_mwh"`
	BaselineEnergyMAh    float64 `json:"baseline_energy_per_event_mah"`
	AvgEnergyTotalMWh    float64 `json:"avg_energy_total_mwh"`
	AvgEnergyTotalMAh    float64 `json:"avg_energy_total_mah"`
}

// SummarizeEvents combines event energies with the representative statistics
// of the event cases. It returns nil when there are no events.
func SummarizeEvents(stats []CaseStatistics, events []EnergyEvent, base Baseline, durationUS float64) *EventSummary {
	if len(events) == 0 {
		return nil
	}
	eventCases := make(map[int]struct{}, len(events))
	mwh := make([]float64, 0, len(events))
	mah := make([]float64, 0, len(events))
	for _, ev := range events {
		eventCases[ev.CaseID] = struct{}{}
		mwh = append(mwh, ev.EnergyMWh)
		mah = append(mah, ev.EnergyMAh)
	}
	var powerExtra, currentExtra []float64
	for _, s := range stats {
		if _, ok := eventCases[s.CaseID]; !ok {
			continue
		}
		powerExtra = append(powerExtra, s.PowerMW()-base.PowerMW)
		currentExtra = append(currentExtra, s.CurrentMA()-base.CurrentMA)
	}

	sum := &EventSummary{
		Events:            len(events),
		BaselinePowerMW:   base.PowerMW,
		BaselineCurrentMA: base.CurrentMA,
		AvgEnergyExtraMWh: stat.Mean(mwh, nil),
		AvgEnergyExtraMAh: stat.Mean(mah, nil),
		BaselineEnergyMWh: constantEnergy(base.PowerMW, durationUS),
		BaselineEnergyMAh: constantEnergy(base.CurrentMA, durationUS),
	}
	if len(powerExtra) > 0 {
		sum.AvgPowerMaxExtraMW = stat.Mean(powerExtra, nil)
		sum.AvgCurrentMaxExtraMA = stat.Mean(currentExtra, nil)
	}
	sum.AvgPowerMaxTotalMW = sum.AvgPowerMaxExtraMW + base.PowerMW
	sum.AvgCurrentMaxTotalMA = sum.AvgCurrentMaxExtraMA + base.CurrentMA
	sum.AvgEnergyTotalMWh = sum.AvgEnergyExtraMWh + sum.BaselineEnergyMWh
	sum.AvgEnergyTotalMAh = sum.AvgEnergyExtraMAh + sum.BaselineEnergyMAh
	return sum
}

// constantEnergy is the energy of a constant level held for one event.
func constantEnergy(level, durationUS float64) float64 {
	if durationUS <= 0 {
		return 0
	}
	return trapezoid([]float64{0, durationUS}, []float64{level, level}) / (microsPerHour / durationUS)
}

// trapezoid integrates y over x. integrate.Trapezoidal requires sorted x; a
// boundary correction under heavy jitter can break that, so fall back to the
// plain sum.
func trapezoid(x, y []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	if sort.Float64sAreSorted(x) {
		return integrate.Trapezoidal(x, y)
	}
	var area float64
	for i := 1; i < len(x); i++ {
		area += (x[i] - x[i-1]) * (y[i] + y[i-1]) / 2
	}
	return area
}
