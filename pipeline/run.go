package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	traceenergy "github.com/lucasjlepore/trace-analyzer"
	"go.uber.org/zap"
)

// Artifact file names.
const (
	ReportFile         = "report.json"
	CaseStatisticsFile = "case_statistics.csv"
	EnergyEventsFile   = "energy_events.csv"
	AlignedSamplesBase = "aligned_samples"
	PlotFile           = "plot.pdf"
	NotesFile          = "notes.txt"
)

// Run analyzes one capture and writes all artifacts into opts.OutDir.
func Run(opts Options) (*Result, error) {
	if strings.TrimSpace(opts.InputPath) == "" {
		return nil, fmt.Errorf("input path is required")
	}
	if strings.TrimSpace(opts.OutDir) == "" {
		return nil, fmt.Errorf("output directory is required")
	}
	if opts.Experiment == nil {
		return nil, fmt.Errorf("experiment is required")
	}
	format, err := normalizeFormat(opts.Format)
	if err != nil {
		return nil, err
	}

	report, err := traceenergy.AnalyzeFile(opts.InputPath, opts.Experiment, traceenergy.Options{
		Logger:      opts.Logger,
		KeepAligned: true,
	})
	if err != nil {
		return nil, err
	}

	files, err := renderArtifacts(report, opts.Experiment, format, opts.Plot)
	if err != nil {
		return nil, err
	}
	if err := ensureOutputDir(opts.OutDir, opts.Overwrite); err != nil {
		return nil, err
	}
	if err := writeFiles(opts.OutDir, files); err != nil {
		return nil, err
	}

	res := &Result{
		OutputDir:          opts.OutDir,
		ReportPath:         filepath.Join(opts.OutDir, ReportFile),
		CaseStatisticsPath: filepath.Join(opts.OutDir, CaseStatisticsFile),
		AlignedSamplesPath: filepath.Join(opts.OutDir, AlignedSamplesBase+"."+format),
		Warnings:           report.Warnings,
		Report:             report,
	}
	if _, ok := files[EnergyEventsFile]; ok {
		res.EnergyEventsPath = filepath.Join(opts.OutDir, EnergyEventsFile)
	}
	if _, ok := files[PlotFile]; ok {
		res.PlotPath = filepath.Join(opts.OutDir, PlotFile)
	}
	return res, nil
}

// RunBytes analyzes an in-memory capture and returns the artifacts without
// touching the filesystem.
func RunBytes(opts BytesOptions) (*BytesResult, error) {
	if len(opts.Data) == 0 {
		return nil, fmt.Errorf("capture bytes are required")
	}
	if opts.Experiment == nil {
		return nil, fmt.Errorf("experiment is required")
	}
	format, err := normalizeFormat(opts.Format)
	if err != nil {
		return nil, err
	}
	name := opts.SourceFileName
	if strings.TrimSpace(name) == "" {
		return nil, fmt.Errorf("source file name is required for node metadata")
	}

	report, err := traceenergy.AnalyzeBytes(name, opts.Data, opts.Experiment, traceenergy.Options{
		Logger:      opts.Logger,
		KeepAligned: true,
	})
	if err != nil {
		return nil, err
	}
	files, err := renderArtifacts(report, opts.Experiment, format, opts.Plot)
	if err != nil {
		return nil, err
	}
	return &BytesResult{Files: files, Report: report, Warnings: report.Warnings}, nil
}

// renderArtifacts serializes every per-capture artifact of report.
func renderArtifacts(report *traceenergy.FileReport, exp *traceenergy.Experiment, format string, plot bool) (map[string][]byte, error) {
	files := make(map[string][]byte, 6)

	data, err := marshalJSON(report)
	if err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	files[ReportFile] = data
	files[NotesFile] = []byte(report.Notes)

	if files[CaseStatisticsFile], err = marshalCaseStatisticsCSV(report.Cases); err != nil {
		return nil, fmt.Errorf("write case statistics: %w", err)
	}
	if len(report.Events) > 0 {
		if files[EnergyEventsFile], err = marshalEnergyEventsCSV(report.Events); err != nil {
			return nil, fmt.Errorf("write energy events: %w", err)
		}
	}

	rows := alignedRows(report, exp)
	alignedName := AlignedSamplesBase + "." + format
	switch format {
	case "csv":
		files[alignedName], err = marshalAlignedCSV(rows)
	case "parquet":
		files[alignedName], err = marshalAlignedParquet(rows)
	}
	if err != nil {
		return nil, fmt.Errorf("write aligned samples %s: %w", format, err)
	}

	if plot {
		if files[PlotFile], err = RenderPlotPDF(report, exp); err != nil {
			return nil, fmt.Errorf("render plot: %w", err)
		}
	}
	return files, nil
}

func normalizeFormat(format string) (string, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "parquet"
	}
	if format != "parquet" && format != "csv" {
		return "", fmt.Errorf("unsupported format %q (expected parquet|csv)", format)
	}
	return format, nil
}

// alignedRows labels every retained sample with its case and phase.
func alignedRows(report *traceenergy.FileReport, exp *traceenergy.Experiment) []AlignedSampleRow {
	tax := exp.Taxonomy()
	rows := make([]AlignedSampleRow, len(report.Aligned))
	for i, s := range report.Aligned {
		caseID, phase := traceenergy.Locate(i, report.CaseRows, exp.Cases)
		row := AlignedSampleRow{
			Index:     i,
			CaseID:    caseID,
			Phase:     phase,
			TimeS:     s.Time,
			Micros:    s.Micros,
			PowerMW:   s.Power * 1000,
			VoltageV:  s.Voltage,
			CurrentMA: s.Current * 1000,
		}
		if info, ok := tax.Lookup(caseID); ok {
			row.Label = info.Label
		}
		rows[i] = row
	}
	return rows
}

func marshalJSON(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeJSON(path string, v any) error {
	data, err := marshalJSON(v)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func marshalCaseStatisticsCSV(stats []traceenergy.CaseStatistics) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{
		"case_id", "label", "kind", "samples", "mean_power_mw", "mean_current_ma", "max_power_mw", "max_current_ma", "power_mw", "current_ma",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, s := range stats {
		row := []string{
			strconv.Itoa(s.CaseID),
			s.Label,
			string(s.Kind),
			strconv.Itoa(s.Samples),
			formatFloat(s.MeanPowerMW),
			formatFloat(s.MeanCurrentMA),
			formatFloatPtr(s.MaxPowerMW),
			formatFloatPtr(s.MaxCurrentMA),
			formatFloat(s.PowerMW()),
			formatFloat(s.CurrentMA()),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func marshalEnergyEventsCSV(events []traceenergy.EnergyEvent) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"case_id", "label", "start_index", "rows", "start_us", "end_us", "energy_mwh", "energy_mah"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, ev := range events {
		row := []string{
			strconv.Itoa(ev.CaseID),
			ev.Label,
			strconv.Itoa(ev.StartIndex),
			strconv.Itoa(ev.Rows),
			formatFloat(ev.StartUS),
			formatFloat(ev.EndUS),
			formatEnergy(ev.EnergyMWh),
			formatEnergy(ev.EnergyMAh),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func marshalAlignedCSV(rows []AlignedSampleRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"index", "case_id", "phase", "label", "time_s", "micros", "power_mw", "voltage_v", "current_ma"}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, r := range rows {
		row := []string{
			strconv.Itoa(r.Index),
			strconv.Itoa(r.CaseID),
			strconv.Itoa(r.Phase),
			r.Label,
			formatFloat(r.TimeS),
			strconv.FormatInt(r.Micros, 10),
			formatFloat(r.PowerMW),
			formatFloat(r.VoltageV),
			formatFloat(r.CurrentMA),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func writeFiles(dir string, files map[string][]byte) error {
	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), files[name], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", name, err)
		}
	}
	return nil
}

func ensureOutputDir(path string, overwrite bool) error {
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	entries, err := os.ReadDir(path)
	if err != nil {
		return fmt.Errorf("read output directory: %w", err)
	}
	if len(entries) > 0 && !overwrite {
		return fmt.Errorf("output directory is not empty: %s (set overwrite=true to allow)", path)
	}
	return nil
}

func logger(l *zap.Logger) *zap.Logger {
	if l == nil {
		return zap.NewNop()
	}
	return l
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 6, 64)
}

func formatFloatPtr(v *float64) string {
	if v == nil {
		return ""
	}
	return formatFloat(*v)
}

// formatEnergy keeps significant digits for the tiny per-event energies.
func formatEnergy(v float64) string {
	return strconv.FormatFloat(v, 'g', 10, 64)
}
