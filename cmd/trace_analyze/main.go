package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	traceenergy "github.com/lucasjlepore/trace-analyzer"
	"github.com/lucasjlepore/trace-analyzer/metrics"
	"github.com/lucasjlepore/trace-analyzer/pipeline"
	"github.com/lucasjlepore/trace-analyzer/store/postgres"
	"go.uber.org/zap"
)

func main() {
	var (
		experiment  = flag.String("experiment", "", "Experiment name (see --list)")
		configPath  = flag.String("config", os.Getenv("TRACE_EXPERIMENTS"), "Experiment YAML merged over the built-in presets (env TRACE_EXPERIMENTS)")
		outDir      = flag.String("out", "", "Output directory")
		format      = flag.String("format", "parquet", "Aligned sample format: parquet|csv")
		concurrency = flag.Int("concurrency", 0, "Captures analyzed in parallel (0 = number of CPUs)")
		plot        = flag.Bool("plot", false, "Render plot.pdf for every capture")
		metricsPath = flag.String("metrics", "", "Write prometheus textfile metrics to this path")
		pgDSN       = flag.String("pg-dsn", os.Getenv("TRACE_PG_DSN"), "Postgres DSN for the result sink (env TRACE_PG_DSN)")
		overwrite   = flag.Bool("overwrite", true, "Allow writing into non-empty output directories")
		verbose     = flag.Bool("verbose", false, "Enable debug logging")
		list        = flag.Bool("list", false, "List known experiments and exit")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s --experiment transmit --out outdir [flags] <capture.oml|dir>...\n", filepath.Base(os.Args[0]))
		flag.PrintDefaults()
	}
	flag.Parse()

	registry, err := traceenergy.LoadRegistry(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load experiments: %v\n", err)
		os.Exit(1)
	}
	if *list {
		for _, name := range registry.Names() {
			fmt.Printf("%-20s %s\n", name, registry[name].Description)
		}
		return
	}
	if strings.TrimSpace(*experiment) == "" || strings.TrimSpace(*outDir) == "" || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}
	exp, err := registry.Get(*experiment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}
	paths, err := expandInputs(flag.Args())
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, runConfig{
		experiment:  exp,
		paths:       paths,
		outDir:      *outDir,
		format:      *format,
		concurrency: *concurrency,
		plot:        *plot,
		metricsPath: *metricsPath,
		pgDSN:       *pgDSN,
		overwrite:   *overwrite,
		verbose:     *verbose,
	}, os.Stdout)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "trace_analyze failed: %v\n", err)
		os.Exit(1)
	}
}

type runConfig struct {
	experiment  *traceenergy.Experiment
	paths       []string
	outDir      string
	format      string
	concurrency int
	plot        bool
	metricsPath string
	pgDSN       string
	overwrite   bool
	verbose     bool
}

// run analyzes the batch and prints the summary to out. It returns an error
// when setup fails or no capture succeeded.
func run(ctx context.Context, cfg runConfig, out io.Writer) error {
	log, err := newLogger(cfg.verbose)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	opts := pipeline.BatchOptions{
		Paths:       cfg.paths,
		OutDir:      cfg.outDir,
		Experiment:  cfg.experiment,
		Format:      cfg.format,
		Plot:        cfg.plot,
		Overwrite:   cfg.overwrite,
		Concurrency: cfg.concurrency,
		Logger:      log,
	}
	var recorder *metrics.Recorder
	if cfg.metricsPath != "" {
		recorder = metrics.New()
		opts.Metrics = recorder
	}
	if cfg.pgDSN != "" {
		db, err := postgres.Open(ctx, cfg.pgDSN)
		if err != nil {
			return fmt.Errorf("postgres unavailable: %w", err)
		}
		defer db.Close()
		store := postgres.NewResultStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
		opts.Sink = store
	}

	result, err := pipeline.RunBatch(ctx, opts)
	if result == nil {
		return err
	}
	if err != nil {
		log.Warn("batch interrupted", zap.Error(err))
	}
	if recorder != nil {
		if err := recorder.WriteTextfile(cfg.metricsPath); err != nil {
			log.Error("write metrics textfile", zap.Error(err))
		}
	}

	fmt.Fprintf(out, "trace_analyze complete\n")
	fmt.Fprintf(out, "Output dir:          %s\n", result.OutputDir)
	fmt.Fprintf(out, "batch summary:       %s\n", result.SummaryPath)
	if result.ResultsCSVPath != "" {
		fmt.Fprintf(out, "energy results:      %s\n", result.ResultsCSVPath)
		fmt.Fprintf(out, "case summary:        %s\n", result.CaseSummaryCSVPath)
		if result.EventSummaryCSVPath != "" {
			fmt.Fprintf(out, "event summary:       %s\n", result.EventSummaryCSVPath)
		}
		fmt.Fprintf(out, "workbook:            %s\n", result.WorkbookPath)
	}
	fmt.Fprintf(out, "captures:            %d ok, %d failed\n", result.SucceededCount, result.FailedCount)
	for _, f := range result.Failures {
		fmt.Fprintf(out, "failed (%s): %s: %s\n", f.Stage, f.Path, f.Error)
	}
	if result.SucceededCount == 0 {
		return fmt.Errorf("no capture of %d succeeded", len(cfg.paths))
	}
	return nil
}

func newLogger(verbose bool) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}
	return cfg.Build()
}

// expandInputs replaces directories with the captures they contain.
func expandInputs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}
		matches, err := filepath.Glob(filepath.Join(arg, "*.oml"))
		if err != nil {
			return nil, err
		}
		sort.Strings(matches)
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no captures found in %s", strings.Join(args, ", "))
	}
	return paths, nil
}
