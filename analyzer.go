package traceenergy

import (
	"fmt"
	"math"
	"path/filepath"

	"github.com/lucasjlepore/trace-analyzer/oml"
	"go.uber.org/zap"
)

// Options controls optional work done while analyzing one capture.
type Options struct {
	Logger *zap.Logger
	// KeepAligned retains the aligned trace and sync pattern on the report
	// for artifact writers and plots.
	KeepAligned bool
}

func (o Options) logger() *zap.Logger {
	if o.Logger == nil {
		return zap.NewNop()
	}
	return o.Logger
}

// SampleCounts tracks the trace size through the pipeline.
type SampleCounts struct {
	Raw      int `json:"raw"`
	Filtered int `json:"filtered"`
	Startup  int `json:"startup_skipped"`
	Aligned  int `json:"aligned"`
}

// CaseSummary is one case relative to the node's idle level.
type CaseSummary struct {
	CaseID         int     `json:"case_id"`
	Label          string  `json:"label"`
	PowerMW        float64 `json:"power_total_mw"`
	CurrentMA      float64 `json:"current_total_ma"`
	PowerExtraMW   float64 `json:"power_extra_mw"`
	CurrentExtraMA float64 `json:"current_extra_ma"`
}

// NodeSummary reports every labeled case of a node against its lowest level.
type NodeSummary struct {
	IdlePowerMW   float64       `json:"idle_power_mw"`
	IdleCurrentMA float64       `json:"idle_current_ma"`
	Cases         []CaseSummary `json:"cases"`
}

// FileReport is the complete result of analyzing one capture.
type FileReport struct {
	Path             string           `json:"path"`
	Node             int              `json:"node"`
	Label            string           `json:"label,omitempty"`
	Experiment       string           `json:"experiment"`
	IntervalS        float64          `json:"interval_s"`
	IntervalUS       float64          `json:"interval_us"`
	CaseRows         float64          `json:"case_rows"`
	TransmissionRows int              `json:"transmission_rows,omitempty"`
	Alignment        Alignment        `json:"alignment"`
	Samples          SampleCounts     `json:"samples"`
	Cases            []CaseStatistics `json:"cases"`
	Events           []EnergyEvent    `json:"events,omitempty"`
	Baseline         Baseline         `json:"baseline"`
	NodeSummary      NodeSummary      `json:"node_summary"`
	EventSummary     *EventSummary    `json:"event_summary,omitempty"`
	Source           *SourceInfo      `json:"source,omitempty"`
	Warnings         []string         `json:"warnings,omitempty"`
	Notes            string           `json:"notes"`

	// Populated when Options.KeepAligned is set.
	Aligned Trace       `json:"-"`
	Pattern SyncPattern `json:"-"`
}

// SourceInfo identifies the capture a report was computed from.
type SourceInfo struct {
	SHA256     string `json:"sha256"`
	SizeBytes  int64  `json:"size_bytes"`
	DataLines  int    `json:"data_lines"`
	BlankLines int    `json:"blank_lines"`
}

// AnalyzeFile parses a capture from disk and analyzes it. The node id comes
// from the file name; a name that does not match the experiment's pattern is
// rejected before the file is read.
func AnalyzeFile(path string, exp *Experiment, opts Options) (*FileReport, error) {
	meta, err := oml.ParseFilename(path, exp.FilenamePattern)
	if err != nil {
		return nil, err
	}
	capture, err := oml.ParseFile(path)
	if err != nil {
		return nil, err
	}
	return analyzeCapture(path, meta, capture, exp, opts)
}

// AnalyzeBytes analyzes an in-memory capture named name.
func AnalyzeBytes(name string, data []byte, exp *Experiment, opts Options) (*FileReport, error) {
	meta, err := oml.ParseFilename(name, exp.FilenamePattern)
	if err != nil {
		return nil, err
	}
	capture, err := oml.ParseBytes(data)
	if err != nil {
		return nil, err
	}
	return analyzeCapture(name, meta, capture, exp, opts)
}

// TraceFromCapture converts parsed instrument records into a trace.
func TraceFromCapture(capture *oml.Capture) Trace {
	trace := make(Trace, len(capture.Records))
	for i, rec := range capture.Records {
		trace[i] = NewSample(rec.Seconds, rec.Microseconds, rec.Power, rec.Voltage, rec.Current)
	}
	return trace
}

func analyzeCapture(path string, meta oml.Metadata, capture *oml.Capture, exp *Experiment, opts Options) (*FileReport, error) {
	trace := TraceFromCapture(capture)
	opts.Logger = opts.logger().With(zap.String("file", filepath.Base(path)), zap.Int("node", meta.Node))
	report, err := AnalyzeSamples(trace, exp, opts)
	if err != nil {
		return nil, err
	}
	report.Path = path
	report.Node = meta.Node
	report.Label = meta.Label
	report.Source = &SourceInfo{
		SHA256:     capture.SourceSHA256,
		SizeBytes:  capture.SourceSizeBytes,
		DataLines:  capture.DataLines,
		BlankLines: capture.BlankLines,
	}
	report.Notes = BuildNotes(report)
	return report, nil
}

// BuildSyncPattern returns the marker pattern of exp at the given sampling rate.
func BuildSyncPattern(exp *Experiment, caseRows, intervalUS float64) SyncPattern {
	if exp.Sync.Kind == SyncConstant {
		return ConstantSyncPattern(exp.Sync.Transmissions, exp.Radio.DurationUS(), intervalUS, exp.Sync.RowError, exp.Sync.Level)
	}
	return BitSyncPattern(exp.Sync.Code, exp.Sync.Bits, caseRows)
}

// AnalyzeSamples runs the full pipeline over a raw trace: outlier filter,
// interval estimate, start-up skip, sync alignment, segmentation,
// aggregation and event integration. The same input always yields the same
// report.
func AnalyzeSamples(raw Trace, exp *Experiment, opts Options) (*FileReport, error) {
	log := opts.logger()
	report := &FileReport{Experiment: exp.Name}
	report.Samples.Raw = len(raw)

	filtered, err := FilterOutliers(raw, exp.Bounds)
	if err != nil {
		return nil, fmt.Errorf("filter: %w", err)
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("filter: %w: all %d samples out of range", ErrEmptyTrace, len(raw))
	}
	report.Samples.Filtered = len(filtered)

	interval, err := EstimateInterval(filtered, exp.IntervalLookback)
	if err != nil {
		return nil, fmt.Errorf("interval: %w", err)
	}
	trace, err := SkipStartup(filtered, exp.StartupS, interval)
	if err != nil {
		return nil, fmt.Errorf("start-up: %w", err)
	}
	report.Samples.Startup = len(filtered) - len(trace)

	intervalUS, err := EstimateIntervalMicros(trace, exp.IntervalLookbackUS)
	if err != nil {
		return nil, fmt.Errorf("interval: %w", err)
	}
	caseRows := CaseRows(exp.CaseDurationS, interval)
	report.IntervalS = interval
	report.IntervalUS = intervalUS
	report.CaseRows = caseRows

	pattern := BuildSyncPattern(exp, caseRows, intervalUS)
	alignment, err := Align(trace, pattern, exp.Cases, caseRows)
	if err != nil {
		return nil, fmt.Errorf("align: %w", err)
	}
	aligned, warnings := Trim(trace, &alignment, exp.Cases, caseRows, exp.SyncRowsToStrip(pattern))
	report.Alignment = alignment
	report.Warnings = append(report.Warnings, warnings...)
	if len(aligned) == 0 {
		return nil, fmt.Errorf("align: %w: nothing left after trimming at offset %d", ErrInsufficientSamples, alignment.Offset)
	}
	report.Samples.Aligned = len(aligned)
	log.Debug("trace aligned",
		zap.Int("offset", alignment.Offset),
		zap.Float64("peak", alignment.Peak),
		zap.Float64("case_rows", caseRows),
		zap.Int("samples", len(aligned)),
	)

	tax := exp.Taxonomy()
	report.Cases = Aggregate(aligned, caseRows, exp.Cases, tax)

	report.Baseline, err = ResolveBaseline(exp.Baseline, report.Cases, aligned, caseRows, exp.Cases)
	if err != nil {
		return nil, fmt.Errorf("baseline: %w", err)
	}

	if len(tax.EventIDs()) > 0 {
		durationUS := exp.Radio.DurationUS()
		report.TransmissionRows = TransmissionRows(durationUS, intervalUS)
		report.Events, err = IntegrateEvents(aligned, caseRows, exp.Cases, tax, report.TransmissionRows, durationUS, report.Baseline)
		if err != nil {
			return nil, fmt.Errorf("energy: %w", err)
		}
		report.EventSummary = SummarizeEvents(report.Cases, report.Events, report.Baseline, durationUS)
	}

	report.NodeSummary = SummarizeNode(report.Cases)
	for _, w := range report.Warnings {
		log.Warn(w)
	}
	if opts.KeepAligned {
		report.Aligned = aligned
		report.Pattern = pattern
	}
	report.Notes = BuildNotes(report)
	return report, nil
}

// SummarizeNode reports every case against the lowest representative power
// and current found among the labeled cases.
func SummarizeNode(stats []CaseStatistics) NodeSummary {
	if len(stats) == 0 {
		return NodeSummary{}
	}
	idlePower, idleCurrent := math.Inf(1), math.Inf(1)
	for _, s := range stats {
		idlePower = math.Min(idlePower, s.PowerMW())
		idleCurrent = math.Min(idleCurrent, s.CurrentMA())
	}
	summary := NodeSummary{
		IdlePowerMW:   idlePower,
		IdleCurrentMA: idleCurrent,
		Cases:         make([]CaseSummary, 0, len(stats)),
	}
	for _, s := range stats {
		summary.Cases = append(summary.Cases, CaseSummary{
			CaseID:         s.CaseID,
			Label:          s.Label,
			PowerMW:        s.PowerMW(),
			CurrentMA:      s.CurrentMA(),
			PowerExtraMW:   s.PowerMW() - idlePower,
			CurrentExtraMA: s.CurrentMA() - idleCurrent,
		})
	}
	return summary
}
