package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	traceenergy "github.com/lucasjlepore/trace-analyzer"
	"github.com/lucasjlepore/trace-analyzer/oml"
)

type fileTotals struct {
	Path string `json:"path"`
	traceenergy.TraceTotals
}

func main() {
	jsonOut := flag.Bool("json", false, "Emit totals as JSON")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [flags] <capture.oml>...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(2)
	}

	var (
		all    []fileTotals
		failed int
	)
	for _, path := range flag.Args() {
		totals, err := computeFile(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		if *jsonOut {
			all = append(all, fileTotals{Path: path, TraceTotals: totals})
			continue
		}
		fmt.Println(path)
		fmt.Printf("Total duration: %.0f s\n", totals.DurationS)
		fmt.Printf("Average voltage: %.2f V\n", totals.AvgVoltageV)
		fmt.Printf("Average current: %d mA\n", roundInt(totals.AvgCurrentMA))
		fmt.Printf("Average power: %d mW\n", roundInt(totals.AvgPowerMW))
		fmt.Printf("Total energy consumption: %d Ws\n", int(totals.TotalEnergyWs))
	}

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(all); err != nil {
			fmt.Fprintf(os.Stderr, "json encode failed: %v\n", err)
			os.Exit(1)
		}
	}
	if failed == flag.NArg() {
		os.Exit(1)
	}
}

func computeFile(path string) (traceenergy.TraceTotals, error) {
	capture, err := oml.ParseFile(path)
	if err != nil {
		return traceenergy.TraceTotals{}, err
	}
	return traceenergy.ComputeTotals(traceenergy.TraceFromCapture(capture))
}

func roundInt(v float64) int {
	if v < 0 {
		return int(v - 0.5)
	}
	return int(v + 0.5)
}
