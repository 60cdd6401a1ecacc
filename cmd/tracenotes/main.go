package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	traceenergy "github.com/lucasjlepore/trace-analyzer"
	"go.uber.org/zap"
)

func main() {
	var (
		experiment = flag.String("experiment", "", "Experiment name")
		configPath = flag.String("config", os.Getenv("TRACE_EXPERIMENTS"), "Experiment YAML merged over the built-in presets (env TRACE_EXPERIMENTS)")
		jsonOut    = flag.Bool("json", false, "Emit the full report as JSON")
		verbose    = flag.Bool("verbose", false, "Log pipeline progress to stderr")
	)
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s --experiment name [flags] <capture.oml>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 || *experiment == "" {
		flag.Usage()
		os.Exit(2)
	}

	registry, err := traceenergy.LoadRegistry(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load experiments: %v\n", err)
		os.Exit(1)
	}
	exp, err := registry.Get(*experiment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(2)
	}

	opts := traceenergy.Options{}
	if *verbose {
		log, err := zap.NewDevelopment()
		if err != nil {
			fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = log.Sync() }()
		opts.Logger = log
	}

	report, err := traceenergy.AnalyzeFile(flag.Arg(0), exp, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "analysis failed: %v\n", err)
		os.Exit(1)
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			fmt.Fprintf(os.Stderr, "json encode failed: %v\n", err)
			os.Exit(1)
		}
		return
	}
	fmt.Print(report.Notes)
}
