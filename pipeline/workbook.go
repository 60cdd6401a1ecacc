package pipeline

import (
	"bytes"
	"fmt"
	"strings"
	"unicode/utf8"

	traceenergy "github.com/lucasjlepore/trace-analyzer"
	"github.com/xuri/excelize/v2"
)

var sheetUnsafe = strings.NewReplacer(":", "_", "\\", "_", "/", "_", "?", "_", "*", "_", "[", "(", "]", ")")

const (
	summarySheet      = "Summary"
	eventsSheet       = "Events"
	caseSummarySheet  = "Case Summary"
	eventSummarySheet = "Event Summary"
	maxSheetName      = 31
)

// marshalWorkbook renders the batch result as an xlsx workbook: the power
// pivot, the event energy pivot when present, the cross-capture case and
// event summaries, and one sheet per capture.
func marshalWorkbook(exp *traceenergy.Experiment, result *BatchResult) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	table := result.Table
	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return nil, err
	}
	if err := setRow(f, summarySheet, 1, []any{"Experiment", exp.Name}); err != nil {
		return nil, err
	}
	if err := setRow(f, summarySheet, 2, []any{"Representative power (mW)"}); err != nil {
		return nil, err
	}
	if err := writePivot(f, summarySheet, 4, table, func(r ResultRow) map[string]float64 { return r.Values }); err != nil {
		return nil, err
	}

	if table.hasEvents() {
		if _, err := f.NewSheet(eventsSheet); err != nil {
			return nil, err
		}
		if err := setRow(f, eventsSheet, 1, []any{"Event energy above baseline (mWh)"}); err != nil {
			return nil, err
		}
		if err := writePivot(f, eventsSheet, 3, table, func(r ResultRow) map[string]float64 { return r.Events }); err != nil {
			return nil, err
		}
	}

	if _, err := f.NewSheet(caseSummarySheet); err != nil {
		return nil, err
	}
	if err := writeCaseSummarySheet(f, caseSummarySheet, result.CaseSummary); err != nil {
		return nil, err
	}

	if len(result.EventSummaries) > 0 {
		if _, err := f.NewSheet(eventSummarySheet); err != nil {
			return nil, err
		}
		if err := writeEventSummarySheet(f, eventSummarySheet, result.EventSummaries); err != nil {
			return nil, err
		}
	}

	used := make(map[string]struct{})
	for _, name := range []string{summarySheet, eventsSheet, caseSummarySheet, eventSummarySheet} {
		used[strings.ToLower(name)] = struct{}{}
	}
	for _, report := range result.Reports {
		name := sheetName(report, used)
		if _, err := f.NewSheet(name); err != nil {
			return nil, err
		}
		if err := writeReportSheet(f, name, report); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeCaseSummarySheet(f *excelize.File, sheet string, table CaseSummaryTable) error {
	if err := setRow(f, sheet, 1, []any{"Idle power (mW)", table.IdlePowerMW}); err != nil {
		return err
	}
	if err := setRow(f, sheet, 2, []any{"Idle current (mA)", table.IdleCurrentMA}); err != nil {
		return err
	}
	if err := setRow(f, sheet, 3, []any{"Captures", table.Captures}); err != nil {
		return err
	}
	if err := setRow(f, sheet, 5, stringsToAny(caseSummaryHeader)); err != nil {
		return err
	}
	for i, c := range table.Cases {
		values := []any{c.CaseID, c.Label, c.Captures, c.PowerMW, c.CurrentMA, c.PowerExtraMW, c.CurrentExtraMA}
		if err := setRow(f, sheet, 6+i, values); err != nil {
			return err
		}
	}
	return nil
}

func writeEventSummarySheet(f *excelize.File, sheet string, rows []EventSummaryRow) error {
	if err := setRow(f, sheet, 1, stringsToAny(eventSummaryHeader)); err != nil {
		return err
	}
	for i, r := range rows {
		values := []any{r.Node, r.Label, r.Summary.Events}
		for _, v := range eventSummaryValues(r.Summary) {
			values = append(values, v)
		}
		if err := setRow(f, sheet, 2+i, values); err != nil {
			return err
		}
	}
	return nil
}

func writePivot(f *excelize.File, sheet string, firstRow int, table ResultTable, values func(ResultRow) map[string]float64) error {
	header := append([]any{"node", "label"}, stringsToAny(table.Labels)...)
	if err := setRow(f, sheet, firstRow, header); err != nil {
		return err
	}
	for i, row := range table.Rows {
		cells := []any{row.Node, row.Label}
		vals := values(row)
		for _, label := range table.Labels {
			if v, ok := vals[label]; ok {
				cells = append(cells, v)
			} else {
				cells = append(cells, nil)
			}
		}
		if err := setRow(f, sheet, firstRow+1+i, cells); err != nil {
			return err
		}
	}
	return nil
}

func writeReportSheet(f *excelize.File, sheet string, r *traceenergy.FileReport) error {
	info := [][]any{
		{"Path", r.Path},
		{"Node", r.Node},
		{"Interval (ms)", r.IntervalS * 1000},
		{"Sync offset", r.Alignment.Offset},
		{"Idle power (mW)", r.NodeSummary.IdlePowerMW},
		{"Idle current (mA)", r.NodeSummary.IdleCurrentMA},
	}
	for i, values := range info {
		if err := setRow(f, sheet, 1+i, values); err != nil {
			return err
		}
	}

	header := []any{"case_id", "label", "kind", "samples", "power_mw", "current_ma", "power_extra_mw", "current_extra_ma"}
	if err := setRow(f, sheet, 8, header); err != nil {
		return err
	}
	for i, c := range r.NodeSummary.Cases {
		s, _ := traceenergy.StatisticsByLabel(r.Cases, c.Label)
		values := []any{c.CaseID, c.Label, string(s.Kind), s.Samples, c.PowerMW, c.CurrentMA, c.PowerExtraMW, c.CurrentExtraMA}
		if err := setRow(f, sheet, 9+i, values); err != nil {
			return err
		}
	}

	if len(r.Events) == 0 {
		return nil
	}
	row := 10 + len(r.NodeSummary.Cases)
	if err := setRow(f, sheet, row, []any{"case_id", "label", "start_index", "rows", "energy_mwh", "energy_mah"}); err != nil {
		return err
	}
	for i, ev := range r.Events {
		if err := setRow(f, sheet, row+1+i, []any{ev.CaseID, ev.Label, ev.StartIndex, ev.Rows, ev.EnergyMWh, ev.EnergyMAh}); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}

// sheetName derives a unique worksheet name for a capture. Names are
// compared case-insensitively, as spreadsheet applications do.
func sheetName(r *traceenergy.FileReport, used map[string]struct{}) string {
	base := fmt.Sprintf("Node %d", r.Node)
	if label := strings.Trim(sheetUnsafe.Replace(r.Label), "' "); label != "" {
		base += " " + label
	}
	base = truncateSheetName(base, maxSheetName)
	name := base
	for i := 2; ; i++ {
		if _, ok := used[strings.ToLower(name)]; !ok {
			break
		}
		suffix := fmt.Sprintf(" #%d", i)
		name = truncateSheetName(base, maxSheetName-len(suffix)) + suffix
	}
	used[strings.ToLower(name)] = struct{}{}
	return name
}

// truncateSheetName keeps at most n runes and drops a trailing apostrophe or
// space left by the cut.
func truncateSheetName(name string, n int) string {
	if utf8.RuneCountInString(name) > n {
		name = string([]rune(name)[:n])
	}
	return strings.TrimRight(name, "' ")
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
