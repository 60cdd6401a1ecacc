package pipeline

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	traceenergy "github.com/lucasjlepore/trace-analyzer"
)

func readCSV(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return rows
}

func TestRunWritesArtifacts(t *testing.T) {
	exp := testExperiment(t)
	dir := t.TempDir()
	input := writeCapture(t, dir, "m3-7.oml", encodeCapture(t, capturePowers(1)))

	outDir := filepath.Join(dir, "out")
	res, err := Run(Options{
		InputPath:  input,
		OutDir:     outDir,
		Experiment: exp,
		Format:     "csv",
		Plot:       true,
	})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}

	report := traceenergy.FileReport{}
	data, err := os.ReadFile(res.ReportPath)
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	if err := json.Unmarshal(data, &report); err != nil {
		t.Fatalf("unmarshal report: %v", err)
	}
	if report.Node != 7 || report.Alignment.Offset != 40 {
		t.Fatalf("report node=%d offset=%d", report.Node, report.Alignment.Offset)
	}

	stats := readCSV(t, res.CaseStatisticsPath)
	if len(stats) != 5 {
		t.Fatalf("case statistics rows=%d want header+4", len(stats))
	}
	if stats[0][0] != "case_id" || stats[3][1] != "C" || stats[3][2] != "max" {
		t.Fatalf("unexpected case statistics: %v", stats)
	}
	if stats[1][8] != "5.000000" {
		t.Fatalf("case A power=%q want 5.000000", stats[1][8])
	}
	if stats[1][6] != "" {
		t.Fatalf("mean case carries max power %q", stats[1][6])
	}

	if res.EnergyEventsPath == "" {
		t.Fatalf("expected energy events artifact")
	}
	events := readCSV(t, res.EnergyEventsPath)
	if len(events) != 2 || events[1][1] != "C" {
		t.Fatalf("unexpected energy events: %v", events)
	}

	aligned := readCSV(t, res.AlignedSamplesPath)
	if len(aligned)-1 != res.Report.Samples.Aligned {
		t.Fatalf("aligned rows=%d want %d", len(aligned)-1, res.Report.Samples.Aligned)
	}
	if aligned[1][1] != "1" || aligned[1][3] != "A" {
		t.Fatalf("first aligned row=%v", aligned[1])
	}

	pdf, err := os.ReadFile(res.PlotPath)
	if err != nil {
		t.Fatalf("read plot: %v", err)
	}
	if !bytes.HasPrefix(pdf, []byte("%PDF")) {
		t.Fatalf("plot is not a pdf")
	}
	notes, err := os.ReadFile(filepath.Join(outDir, NotesFile))
	if err != nil {
		t.Fatalf("read notes: %v", err)
	}
	if !strings.Contains(string(notes), "Node 7") {
		t.Fatalf("notes missing node header:\n%s", notes)
	}
}

func TestRunWritesParquet(t *testing.T) {
	exp := testExperiment(t)
	dir := t.TempDir()
	input := writeCapture(t, dir, "m3-3.oml", encodeCapture(t, capturePowers(1)))

	res, err := Run(Options{InputPath: input, OutDir: filepath.Join(dir, "out"), Experiment: exp})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if filepath.Ext(res.AlignedSamplesPath) != ".parquet" {
		t.Fatalf("default format path=%s", res.AlignedSamplesPath)
	}
	data, err := os.ReadFile(res.AlignedSamplesPath)
	if err != nil {
		t.Fatalf("read parquet: %v", err)
	}
	if !bytes.HasPrefix(data, []byte("PAR1")) || !bytes.HasSuffix(data, []byte("PAR1")) {
		t.Fatalf("aligned samples are not parquet")
	}
	if res.PlotPath != "" {
		t.Fatalf("plot written without request")
	}
}

func TestRunRejectsNonEmptyOutput(t *testing.T) {
	exp := testExperiment(t)
	dir := t.TempDir()
	input := writeCapture(t, dir, "m3-3.oml", encodeCapture(t, capturePowers(1)))

	outDir := filepath.Join(dir, "out")
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(outDir, "keep.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Run(Options{InputPath: input, OutDir: outDir, Experiment: exp, Format: "csv"}); err == nil {
		t.Fatalf("expected non-empty output directory error")
	}
	if _, err := Run(Options{InputPath: input, OutDir: outDir, Experiment: exp, Format: "csv", Overwrite: true}); err != nil {
		t.Fatalf("Run() with overwrite error: %v", err)
	}
}

func TestRunValidatesOptions(t *testing.T) {
	exp := testExperiment(t)
	cases := []Options{
		{OutDir: "out", Experiment: exp},
		{InputPath: "m3-1.oml", Experiment: exp},
		{InputPath: "m3-1.oml", OutDir: "out"},
		{InputPath: "m3-1.oml", OutDir: "out", Experiment: exp, Format: "xml"},
	}
	for i, opts := range cases {
		if _, err := Run(opts); err == nil {
			t.Fatalf("case %d: expected validation error", i)
		}
	}
}

func TestRunBytes(t *testing.T) {
	exp := testExperiment(t)
	res, err := RunBytes(BytesOptions{
		SourceFileName: "m3-12.oml",
		Data:           encodeCapture(t, capturePowers(2)),
		Experiment:     exp,
		Format:         "csv",
	})
	if err != nil {
		t.Fatalf("RunBytes() error: %v", err)
	}
	for _, name := range []string{ReportFile, NotesFile, CaseStatisticsFile, EnergyEventsFile, "aligned_samples.csv"} {
		if len(res.Files[name]) == 0 {
			t.Fatalf("missing artifact %s", name)
		}
	}
	if _, ok := res.Files[PlotFile]; ok {
		t.Fatalf("plot rendered without request")
	}
	if res.Report.Node != 12 {
		t.Fatalf("node=%d want 12", res.Report.Node)
	}
	a, ok := traceenergy.StatisticsByLabel(res.Report.Cases, "A")
	if !ok || !approxEqual(a.PowerMW(), 10, 1e-9) {
		t.Fatalf("case A=%+v", a)
	}

	if _, err := RunBytes(BytesOptions{Data: []byte("x"), Experiment: exp}); err == nil {
		t.Fatalf("expected error for missing source name")
	}
}

func TestRenderPlotPDFRequiresAlignedTrace(t *testing.T) {
	exp := testExperiment(t)
	if _, err := RenderPlotPDF(&traceenergy.FileReport{}, exp); err == nil {
		t.Fatalf("expected error for report without aligned samples")
	}
}
