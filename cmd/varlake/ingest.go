package main

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/varlake/varlake/varlake"
)

// runIngest ingests VCF files into a dataset.
func runIngest(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	dataset := fs.StringP("dataset", "d", "", "Dataset location")
	threads := fs.Int("threads", 0, "Parser worker count (default: CPU count)")
	memoryBudget := fs.Int("memory-budget", 0, "Ingestion memory budget in MB")
	scratchPath := fs.String("scratch-path", "", "Scratch directory for staging inputs")
	scratchSize := fs.Int("scratch-size", 0, "Scratch space cap in MB")
	batchSize := fs.Int("batch-size", 0, "Inputs handed to the worker pool at a time (default 10)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: varlake ingest [options] <vcf>...

Description:
  Parse VCF files (.vcf, .vcf.gz, .vcf.zst) and store their records in
  the dataset. Sample names from the headers are registered
  automatically.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  varlake ingest -d /data/cohort sample1.vcf.gz sample2.vcf.gz
  varlake ingest -d /data/cohort --threads 8 --scratch-path /tmp --scratch-size 4096 *.vcf.zst

`)
	}

	if err := fs.Parse(args); err != nil {
		os.Exit(ExitUsage)
	}
	if fs.NArg() == 0 {
		fmt.Fprintf(os.Stderr, "Error: at least one VCF file required\n")
		fs.Usage()
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
	opts, err := sessionOptions(ctx, cfg, globals, location)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitConfig)
	}
	if list := cfg.engineConfigList(); len(list) > 0 {
		opts = append(opts, varlake.WithWriteConfig(varlake.WriteConfig{EngineConfig: list}))
	}

	session, err := varlake.NewWriteSession(location, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneral)
	}
	defer func() { _ = session.Close() }()

	err = session.IngestSamples(ctx, varlake.IngestParams{
		URIs:                fs.Args(),
		Threads:             *threads,
		TotalMemoryBudgetMB: *memoryBudget,
		ScratchSpacePath:    *scratchPath,
		ScratchSpaceSizeMB:  *scratchSize,
		SampleBatchSize:     *batchSize,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitData)
	}
	fmt.Fprintf(os.Stderr, "Ingested %d input(s) into %s\n", fs.NArg(), location)
}
