package pipeline

import (
	"bytes"
	"encoding/csv"
	"math"
	"sort"
	"strconv"

	traceenergy "github.com/lucasjlepore/trace-analyzer"
	"gonum.org/v1/gonum/stat"
)

// Cross-capture summary file names.
const (
	EventSummaryCSV = "event_summary.csv"
	CaseSummaryCSV  = "case_summary.csv"
)

// EventSummaryRow is the event summary of one capture.
type EventSummaryRow struct {
	Node    int                      `json:"node"`
	Label   string                   `json:"label,omitempty"`
	Path    string                   `json:"path"`
	Summary traceenergy.EventSummary `json:"summary"`
}

// CaseSummaryRow is one case averaged over every capture that contains it.
type CaseSummaryRow struct {
	traceenergy.CaseSummary
	Captures int `json:"captures"`
}

// CaseSummaryTable reports the cases of a batch against the lowest level
// seen in any capture.
type CaseSummaryTable struct {
	IdlePowerMW   float64          `json:"idle_power_mw"`
	IdleCurrentMA float64          `json:"idle_current_ma"`
	Captures      int              `json:"captures"`
	Cases         []CaseSummaryRow `json:"cases"`
}

// BuildEventSummaryRows collects the event summaries of reports, ordered by
// node then label. Reports without events are skipped.
func BuildEventSummaryRows(reports []*traceenergy.FileReport) []EventSummaryRow {
	sorted := append([]*traceenergy.FileReport(nil), reports...)
	sortReports(sorted)

	var rows []EventSummaryRow
	for _, r := range sorted {
		if r.EventSummary == nil {
			continue
		}
		rows = append(rows, EventSummaryRow{Node: r.Node, Label: r.Label, Path: r.Path, Summary: *r.EventSummary})
	}
	return rows
}

// BuildCaseSummary averages the representative level of every case across
// reports. The idle level is the minimum over all cases of all reports, and
// extras are measured against it.
func BuildCaseSummary(reports []*traceenergy.FileReport) CaseSummaryTable {
	table := CaseSummaryTable{IdlePowerMW: math.Inf(1), IdleCurrentMA: math.Inf(1)}
	type acc struct {
		label    string
		powers   []float64
		currents []float64
	}
	byCase := make(map[int]*acc)
	for _, r := range reports {
		if len(r.Cases) == 0 {
			continue
		}
		table.Captures++
		for _, c := range r.Cases {
			p, i := c.PowerMW(), c.CurrentMA()
			table.IdlePowerMW = math.Min(table.IdlePowerMW, p)
			table.IdleCurrentMA = math.Min(table.IdleCurrentMA, i)
			a, ok := byCase[c.CaseID]
			if !ok {
				a = &acc{label: c.Label}
				byCase[c.CaseID] = a
			}
			a.powers = append(a.powers, p)
			a.currents = append(a.currents, i)
		}
	}
	if table.Captures == 0 {
		return CaseSummaryTable{}
	}

	ids := make([]int, 0, len(byCase))
	for id := range byCase {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	table.Cases = make([]CaseSummaryRow, 0, len(ids))
	for _, id := range ids {
		a := byCase[id]
		power := stat.Mean(a.powers, nil)
		current := stat.Mean(a.currents, nil)
		table.Cases = append(table.Cases, CaseSummaryRow{
			CaseSummary: traceenergy.CaseSummary{
				CaseID:         id,
				Label:          a.label,
				PowerMW:        power,
				CurrentMA:      current,
				PowerExtraMW:   power - table.IdlePowerMW,
				CurrentExtraMA: current - table.IdleCurrentMA,
			},
			Captures: len(a.powers),
		})
	}
	return table
}

var eventSummaryHeader = []string{
	"node",
	"label",
	"events",
	"avg_power_max_extra_mw",
	"avg_current_max_extra_ma",
	"baseline_power_mw",
	"baseline_current_ma",
	"avg_power_max_total_mw",
	"avg_current_max_total_ma",
	"avg_energy_extra_mwh",
	"avg_energy_extra_mah",
	"baseline_energy_per_event_mwh",
	"baseline_energy_per_event_mah",
	"avg_energy_total_mwh",
	"avg_energy_total_mah",
}

func eventSummaryValues(s traceenergy.EventSummary) []float64 {
	return []float64{
		s.AvgPowerMaxExtraMW,
		s.AvgCurrentMaxExtraMA,
		s.BaselinePowerMW,
		s.BaselineCurrentMA,
		s.AvgPowerMaxTotalMW,
		s.AvgCurrentMaxTotalMA,
		s.AvgEnergyExtraMWh,
		s.AvgEnergyExtraMAh,
		s.BaselineEnergyMWh,
		s.BaselineEnergyMAh,
		s.AvgEnergyTotalMWh,
		s.AvgEnergyTotalMAh,
	}
}

func marshalEventSummaryCSV(rows []EventSummaryRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(eventSummaryHeader); err != nil {
		return nil, err
	}
	for _, r := range rows {
		record := []string{strconv.Itoa(r.Node), r.Label, strconv.Itoa(r.Summary.Events)}
		for _, v := range eventSummaryValues(r.Summary) {
			record = append(record, formatEnergy(v))
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

var caseSummaryHeader = []string{"case_id", "label", "captures", "power_total_mw", "current_total_ma", "power_extra_mw", "current_extra_ma"}

func marshalCaseSummaryCSV(table CaseSummaryTable) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(caseSummaryHeader); err != nil {
		return nil, err
	}
	for _, c := range table.Cases {
		record := []string{
			strconv.Itoa(c.CaseID),
			c.Label,
			strconv.Itoa(c.Captures),
			formatFloat(c.PowerMW),
			formatFloat(c.CurrentMA),
			formatFloat(c.PowerExtraMW),
			formatFloat(c.CurrentExtraMA),
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
