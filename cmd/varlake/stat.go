package main

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/varlake/varlake/varlake"
)

// StatResult is the dataset summary for JSON output.
type StatResult struct {
	Dataset       string   `json:"dataset"`
	FormatVersion int      `json:"format_version"`
	SampleCount   int      `json:"sample_count"`
	Samples       []string `json:"samples,omitempty"`
	Records       uint64   `json:"records"`
	Attributes    int      `json:"attributes"`
}

// runStat prints a dataset summary.
func runStat(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("stat", flag.ExitOnError)
	dataset := fs.StringP("dataset", "d", "", "Dataset location")
	asJSON := fs.Bool("json", false, "Output as JSON")
	listSamples := fs.Bool("list-samples", false, "Include sample names")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: varlake stat [options]

Description:
  Show a summary of the dataset: format version, samples, record count,
  and queryable attribute count.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  varlake stat -d /data/cohort
  varlake stat -d /data/cohort --json

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(ExitUsage)
	}

	cfg, err := LoadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitConfig)
	}
	location, err := resolveDataset(*dataset, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitConfig)
	}

	ctx := context.Background()
	session, err := openReadSession(ctx, cfg, globals, location)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneral)
	}
	defer func() { _ = session.Close() }()

	result := StatResult{Dataset: location}
	if result.FormatVersion, err = session.FormatVersion(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitData)
	}
	if result.SampleCount, err = session.SampleCount(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitData)
	}
	if *listSamples {
		if result.Samples, err = session.Samples(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(ExitData)
		}
	}
	if result.Records, err = session.Count(ctx, varlake.CountQuery{}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitData)
	}
	attrs, err := session.Attributes(ctx, varlake.ClassAll)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitData)
	}
	result.Attributes = len(attrs)

	if *asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		_ = enc.Encode(result)
		return
	}

	fmt.Printf("Dataset:        %s\n", result.Dataset)
	fmt.Printf("Format version: %d\n", result.FormatVersion)
	fmt.Printf("Samples:        %d\n", result.SampleCount)
	fmt.Printf("Records:        %d\n", result.Records)
	fmt.Printf("Attributes:     %d\n", result.Attributes)
	for _, name := range result.Samples {
		fmt.Printf("  - %s\n", name)
	}
}
