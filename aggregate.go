package traceenergy

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const milli = 1000.0

// CaseStatistics summarizes the stable samples of one labeled case in mW and mA.
type CaseStatistics struct {
	CaseID        int             `json:"case_id"`
	Label         string          `json:"label"`
	Kind          AggregationKind `json:"kind"`
	Samples       int             `json:"samples"`
	MeanPowerMW   float64         `json:"mean_power_mw"`
	MeanCurrentMA float64         `json:"mean_current_ma"`
	MaxPowerMW    *float64        `json:"max_power_mw,omitempty"`
	MaxCurrentMA  *float64        `json:"max_current_ma,omitempty"`
}

// PowerMW returns the representative power of the case: the peak for bursty
// cases, the mean otherwise.
func (c CaseStatistics) PowerMW() float64 {
	if c.Kind == AggregateMax && c.MaxPowerMW != nil {
		return *c.MaxPowerMW
	}
	return c.MeanPowerMW
}

// CurrentMA returns the representative current of the case.
func (c CaseStatistics) CurrentMA() float64 {
	if c.Kind == AggregateMax && c.MaxCurrentMA != nil {
		return *c.MaxCurrentMA
	}
	return c.MeanCurrentMA
}

// Aggregate computes per-case statistics over the stable phase of an aligned
// trace. Cases missing from the taxonomy are dropped. The result is ordered
// by case id.
func Aggregate(trace Trace, caseRows float64, cases int, tax Taxonomy) []CaseStatistics {
	groups := PhaseSamples(trace, caseRows, cases, PhaseStable)
	out := make([]CaseStatistics, 0, len(groups))
	for _, id := range tax.IDs() {
		samples, ok := groups[id]
		if !ok || len(samples) == 0 {
			continue
		}
		out = append(out, aggregateCase(id, tax[id], samples))
	}
	return out
}

func aggregateCase(id int, info CaseInfo, samples Trace) CaseStatistics {
	powers := samples.Powers()
	currents := samples.Currents()
	stats := CaseStatistics{
		CaseID:        id,
		Label:         info.Label,
		Kind:          info.Kind,
		Samples:       len(samples),
		MeanPowerMW:   milli * stat.Mean(powers, nil),
		MeanCurrentMA: milli * stat.Mean(currents, nil),
	}
	if info.Kind == AggregateMax {
		stats.MaxPowerMW = floatPtr(milli * floats.Max(powers))
		stats.MaxCurrentMA = floatPtr(milli * floats.Max(currents))
	}
	return stats
}

// StatisticsByLabel returns the first statistics entry with label.
func StatisticsByLabel(stats []CaseStatistics, label string) (CaseStatistics, bool) {
	for _, s := range stats {
		if s.Label == label {
			return s, true
		}
	}
	return CaseStatistics{}, false
}

func floatPtr(v float64) *float64 {
	return &v
}
