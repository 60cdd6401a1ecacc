package pipeline

import (
	"context"

	traceenergy "github.com/lucasjlepore/trace-analyzer"
	"github.com/lucasjlepore/trace-analyzer/metrics"
	"go.uber.org/zap"
)

// Options configures a single-capture run.
type Options struct {
	InputPath  string
	OutDir     string
	Experiment *traceenergy.Experiment
	Format     string // parquet|csv
	Plot       bool
	Overwrite  bool
	Logger     *zap.Logger
}

// Result returns generated output paths.
type Result struct {
	OutputDir          string                  `json:"output_dir"`
	ReportPath         string                  `json:"report_path"`
	CaseStatisticsPath string                  `json:"case_statistics_path"`
	EnergyEventsPath   string                  `json:"energy_events_path,omitempty"`
	AlignedSamplesPath string                  `json:"aligned_samples_path"`
	PlotPath           string                  `json:"plot_path,omitempty"`
	Warnings           []string                `json:"warnings,omitempty"`
	Report             *traceenergy.FileReport `json:"-"`
}

// BytesOptions configures an in-memory run for environments without a
// filesystem.
type BytesOptions struct {
	SourceFileName string
	Data           []byte
	Experiment     *traceenergy.Experiment
	Format         string // parquet|csv
	Plot           bool
	Logger         *zap.Logger
}

// BytesResult holds rendered artifacts keyed by file name.
type BytesResult struct {
	Files    map[string][]byte
	Report   *traceenergy.FileReport
	Warnings []string
}

// ReportSink receives every successfully analyzed report of a batch.
type ReportSink interface {
	SaveReport(ctx context.Context, report *traceenergy.FileReport) error
}

// BatchOptions configures a multi-capture run.
type BatchOptions struct {
	Paths       []string
	OutDir      string
	Experiment  *traceenergy.Experiment
	Format      string // parquet|csv
	Plot        bool
	Overwrite   bool
	Concurrency int
	Logger      *zap.Logger
	Metrics     *metrics.Recorder
	Sink        ReportSink
}

// BatchResult summarizes a multi-capture run.
type BatchResult struct {
	OutputDir           string                    `json:"output_dir"`
	SummaryPath         string                    `json:"summary_path"`
	ResultsCSVPath      string                    `json:"results_csv_path,omitempty"`
	EventSummaryCSVPath string                    `json:"event_summary_csv_path,omitempty"`
	CaseSummaryCSVPath  string                    `json:"case_summary_csv_path,omitempty"`
	WorkbookPath        string                    `json:"workbook_path,omitempty"`
	Reports             []*traceenergy.FileReport `json:"-"`
	Failures            []FileFailure             `json:"failures,omitempty"`
	Table               ResultTable               `json:"-"`
	EventSummaries      []EventSummaryRow         `json:"-"`
	CaseSummary         CaseSummaryTable          `json:"-"`
	SucceededCount      int                       `json:"succeeded"`
	FailedCount         int                       `json:"failed"`
}

// FileFailure records a capture that could not be analyzed or persisted.
type FileFailure struct {
	Path  string `json:"path"`
	Stage string `json:"stage"`
	Error string `json:"error"`
}

// BatchFileEntry is one analyzed capture in batch_summary.json.
type BatchFileEntry struct {
	Path      string   `json:"path"`
	Node      int      `json:"node"`
	Label     string   `json:"label,omitempty"`
	OutputDir string   `json:"output_dir"`
	Offset    int      `json:"offset"`
	Samples   int      `json:"aligned_samples"`
	Events    int      `json:"events"`
	Warnings  []string `json:"warnings,omitempty"`
}

// BatchSummaryFile is the batch_summary.json document.
type BatchSummaryFile struct {
	Experiment string           `json:"experiment"`
	Total      int              `json:"total"`
	Succeeded  int              `json:"succeeded"`
	Failed     int              `json:"failed"`
	Files      []BatchFileEntry `json:"files"`
	Failures   []FileFailure    `json:"failures,omitempty"`
}

// ResultTable pivots the representative power of every case label per node.
type ResultTable struct {
	Labels []string    `json:"labels"`
	Rows   []ResultRow `json:"rows"`
}

// ResultRow is one capture in the pivot table. Values are keyed by case
// label; labels missing from the capture are absent.
type ResultRow struct {
	Node   int                `json:"node"`
	Label  string             `json:"label,omitempty"`
	Values map[string]float64 `json:"values"`
	Events map[string]float64 `json:"events_mwh,omitempty"`
}

// AlignedSampleRow is one sample of the aligned trace with its case and phase.
type AlignedSampleRow struct {
	Index     int
	CaseID    int
	Phase     int
	Label     string
	TimeS     float64
	Micros    int64
	PowerMW   float64
	VoltageV  float64
	CurrentMA float64
}
