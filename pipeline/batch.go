package pipeline

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	traceenergy "github.com/lucasjlepore/trace-analyzer"
	"github.com/lucasjlepore/trace-analyzer/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Batch artifact file names.
const (
	BatchSummaryName  = "batch_summary.json"
	EnergyResultsCSV  = "energy_results.csv"
	EnergyResultsXLSX = "energy_results.xlsx"
)

// Failure stages reported in batch_summary.json.
const (
	StageAnalyze   = "analyze"
	StageStore     = "store"
	StageCancelled = "cancelled"
)

// RunBatch analyzes every capture in opts.Paths with bounded concurrency.
// Each capture gets its own artifact directory under opts.OutDir; a failing
// capture is logged and listed in the summary without stopping the others.
// Merged results are ordered by node then label regardless of scheduling.
func RunBatch(ctx context.Context, opts BatchOptions) (*BatchResult, error) {
	if len(opts.Paths) == 0 {
		return nil, fmt.Errorf("at least one input path is required")
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
	if err := ensureOutputDir(opts.OutDir, opts.Overwrite); err != nil {
		return nil, err
	}
	log := logger(opts.Logger).With(zap.String("experiment", opts.Experiment.Name))

	limit := opts.Concurrency
	if limit <= 0 {
		limit = runtime.NumCPU()
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)

	var (
		mu       sync.Mutex
		reports  []*traceenergy.FileReport
		entries  []BatchFileEntry
		failures []FileFailure
	)
	fail := func(path, stage string, err error) {
		mu.Lock()
		defer mu.Unlock()
		failures = append(failures, FileFailure{Path: path, Stage: stage, Error: err.Error()})
	}

	dirs := captureDirs(opts.OutDir, opts.Paths)
	for i, path := range opts.Paths {
		if err := gctx.Err(); err != nil {
			for _, skipped := range opts.Paths[i:] {
				fail(skipped, StageCancelled, err)
			}
			break
		}
		path := path
		dir := dirs[i]
		g.Go(func() error {
			started := time.Now()
			res, err := Run(Options{
				InputPath:  path,
				OutDir:     dir,
				Experiment: opts.Experiment,
				Format:     format,
				Plot:       opts.Plot,
				Overwrite:  opts.Overwrite,
				Logger:     log,
			})
			outcome := metrics.FileOutcome{Experiment: opts.Experiment.Name, Err: err, Duration: time.Since(started)}
			if err != nil {
				log.Warn("capture failed", zap.String("file", path), zap.Error(err))
				opts.Metrics.ObserveFile(outcome)
				fail(path, StageAnalyze, err)
				return nil
			}

			report := res.Report
			outcome.Node = report.Node
			outcome.Offset = report.Alignment.Offset
			outcome.Filtered = report.Samples.Raw - report.Samples.Filtered
			outcome.Events = len(report.Events)
			if opts.Sink != nil {
				if err := opts.Sink.SaveReport(gctx, report); err != nil {
					log.Warn("store report failed", zap.String("file", path), zap.Error(err))
					outcome.Err = err
					fail(path, StageStore, err)
				}
			}
			opts.Metrics.ObserveFile(outcome)

			// Artifacts are written; drop the per-sample data before merging.
			report.Aligned = nil
			report.Pattern = traceenergy.SyncPattern{}

			mu.Lock()
			defer mu.Unlock()
			reports = append(reports, report)
			entries = append(entries, BatchFileEntry{
				Path:      path,
				Node:      report.Node,
				Label:     report.Label,
				OutputDir: dir,
				Offset:    report.Alignment.Offset,
				Samples:   report.Samples.Aligned,
				Events:    len(report.Events),
				Warnings:  report.Warnings,
			})
			return nil
		})
	}
	_ = g.Wait()

	sortReports(reports)
	sort.Slice(entries, func(i, j int) bool {
		return lessCapture(entries[i].Node, entries[i].Label, entries[i].Path, entries[j].Node, entries[j].Label, entries[j].Path)
	})
	sort.SliceStable(failures, func(i, j int) bool { return failures[i].Path < failures[j].Path })

	result := &BatchResult{
		OutputDir:      opts.OutDir,
		SummaryPath:    filepath.Join(opts.OutDir, BatchSummaryName),
		Reports:        reports,
		Failures:       failures,
		SucceededCount: len(reports),
		FailedCount:    len(opts.Paths) - len(reports),
	}
	summary := BatchSummaryFile{
		Experiment: opts.Experiment.Name,
		Total:      len(opts.Paths),
		Succeeded:  result.SucceededCount,
		Failed:     result.FailedCount,
		Files:      entries,
		Failures:   failures,
	}
	if err := writeJSON(result.SummaryPath, summary); err != nil {
		return nil, fmt.Errorf("write batch summary: %w", err)
	}

	if len(reports) > 0 {
		if err := writeBatchTables(opts.Experiment, result); err != nil {
			return nil, err
		}
	}

	log.Info("batch complete",
		zap.Int("files", len(opts.Paths)),
		zap.Int("succeeded", result.SucceededCount),
		zap.Int("failed", result.FailedCount),
	)
	return result, ctx.Err()
}

// writeBatchTables writes the cross-capture CSV tables and the workbook.
func writeBatchTables(exp *traceenergy.Experiment, result *BatchResult) error {
	result.Table = BuildResultTable(exp.Taxonomy().Labels(), result.Reports)
	result.EventSummaries = BuildEventSummaryRows(result.Reports)
	result.CaseSummary = BuildCaseSummary(result.Reports)

	data, err := marshalResultTableCSV(result.Table)
	if err != nil {
		return fmt.Errorf("write energy results csv: %w", err)
	}
	result.ResultsCSVPath = filepath.Join(result.OutputDir, EnergyResultsCSV)
	if err := os.WriteFile(result.ResultsCSVPath, data, 0o644); err != nil {
		return err
	}

	if data, err = marshalCaseSummaryCSV(result.CaseSummary); err != nil {
		return fmt.Errorf("write case summary csv: %w", err)
	}
	result.CaseSummaryCSVPath = filepath.Join(result.OutputDir, CaseSummaryCSV)
	if err := os.WriteFile(result.CaseSummaryCSVPath, data, 0o644); err != nil {
		return err
	}

	if len(result.EventSummaries) > 0 {
		if data, err = marshalEventSummaryCSV(result.EventSummaries); err != nil {
			return fmt.Errorf("write event summary csv: %w", err)
		}
		result.EventSummaryCSVPath = filepath.Join(result.OutputDir, EventSummaryCSV)
		if err := os.WriteFile(result.EventSummaryCSVPath, data, 0o644); err != nil {
			return err
		}
	}

	if data, err = marshalWorkbook(exp, result); err != nil {
		return fmt.Errorf("write energy results workbook: %w", err)
	}
	result.WorkbookPath = filepath.Join(result.OutputDir, EnergyResultsXLSX)
	return os.WriteFile(result.WorkbookPath, data, 0o644)
}

// BuildResultTable pivots representative power and event energy by case
// label. Columns follow labels; rows are sorted by node then label.
func BuildResultTable(labels []string, reports []*traceenergy.FileReport) ResultTable {
	sorted := append([]*traceenergy.FileReport(nil), reports...)
	sortReports(sorted)

	table := ResultTable{Labels: append([]string(nil), labels...), Rows: make([]ResultRow, 0, len(sorted))}
	for _, r := range sorted {
		row := ResultRow{Node: r.Node, Label: r.Label, Values: make(map[string]float64, len(r.Cases))}
		for _, c := range r.Cases {
			row.Values[c.Label] = c.PowerMW()
		}
		if len(r.Events) > 0 {
			row.Events = make(map[string]float64, len(r.Events))
			for _, ev := range r.Events {
				row.Events[ev.Label] = ev.EnergyMWh
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

func (t ResultTable) hasEvents() bool {
	for _, r := range t.Rows {
		if len(r.Events) > 0 {
			return true
		}
	}
	return false
}

func marshalResultTableCSV(table ResultTable) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := append([]string{"node", "label"}, table.Labels...)
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, r := range table.Rows {
		row := []string{strconv.Itoa(r.Node), r.Label}
		for _, label := range table.Labels {
			if v, ok := r.Values[label]; ok {
				row = append(row, formatFloat(v))
			} else {
				row = append(row, "")
			}
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// captureDirs assigns every input a distinct artifact directory named after
// its file stem.
func captureDirs(outDir string, paths []string) []string {
	used := make(map[string]struct{}, len(paths))
	dirs := make([]string, len(paths))
	for i, path := range paths {
		stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		name := stem
		for n := 2; ; n++ {
			if _, ok := used[name]; !ok {
				break
			}
			name = fmt.Sprintf("%s-%d", stem, n)
		}
		used[name] = struct{}{}
		dirs[i] = filepath.Join(outDir, name)
	}
	return dirs
}

func sortReports(reports []*traceenergy.FileReport) {
	sort.Slice(reports, func(i, j int) bool {
		return lessCapture(reports[i].Node, reports[i].Label, reports[i].Path, reports[j].Node, reports[j].Label, reports[j].Path)
	})
}

func lessCapture(nodeA int, labelA, pathA string, nodeB int, labelB, pathB string) bool {
	if nodeA != nodeB {
		return nodeA < nodeB
	}
	if labelA != labelB {
		return labelA < labelB
	}
	return pathA < pathB
}
