package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"
	flag "github.com/spf13/pflag"

	"github.com/varlake/varlake/varlake"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// runExport streams query results as JSON lines, one record per line,
// draining the result set batch by batch.
func runExport(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("export", flag.ExitOnError)
	dataset := fs.StringP("dataset", "d", "", "Dataset location")
	attrs := fs.StringSliceP("attrs", "a", nil, "Attributes to export (default: builtin set, or config file)")
	samples := fs.StringSliceP("samples", "s", nil, "Samples to include (default: all)")
	regions := fs.StringSliceP("regions", "r", nil, "Regions to include, e.g. chr1:100-200 (default: all)")
	samplesFile := fs.String("samples-file", "", "File of sample names, one per line")
	bedFile := fs.String("bed-file", "", "BED file contributing regions")
	output := fs.StringP("output", "o", "", "Output file (default: stdout)")
	limit := fs.Uint64("limit", 0, "Stop after this many records")
	memoryBudget := fs.Int("memory-budget", 0, "Per-batch memory budget in MB")
	regionPart := fs.String("region-partition", "", "Region shard as index/count, e.g. 0/4")
	samplePart := fs.String("sample-partition", "", "Sample shard as index/count")
	noSort := fs.Bool("no-sort-regions", false, "Scan regions in the order given")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: varlake export [options]

Description:
  Query the dataset and write matching records as JSON lines. Results
  are fetched in memory-bounded batches, so arbitrarily large result
  sets export under a fixed memory ceiling.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  varlake export -d /data/cohort -r chr1:1-1000000
  varlake export -d /data/cohort -s NA12878 -a sample_name,contig,pos_start,info_DP
  varlake export -d /data/cohort --region-partition 0/4 -o shard0.jsonl

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

	readCfg := varlake.ReadConfig{EngineConfig: cfg.engineConfigList()}
	if *limit > 0 {
		readCfg.Limit = varlake.Uint64(*limit)
	}
	if *memoryBudget > 0 {
		readCfg.MemoryBudgetMB = varlake.Int(*memoryBudget)
	}
	if *noSort {
		readCfg.SortRegions = varlake.Bool(false)
	}
	if readCfg.RegionPartition, err = parsePartition(*regionPart); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitUsage)
	}
	if readCfg.SamplePartition, err = parsePartition(*samplePart); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitUsage)
	}

	ctx := context.Background()
	opts, err := sessionOptions(ctx, cfg, globals, location)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitConfig)
	}
	opts = append(opts, varlake.WithReadConfig(readCfg))

	session, err := varlake.NewReadSession(location, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneral)
	}
	defer func() { _ = session.Close() }()

	out := os.Stdout
	if *output != "" {
		f, err := os.Create(*output)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot write to %s: %v\n", *output, err)
			os.Exit(ExitGeneral)
		}
		defer func() { _ = f.Close() }()
		out = f
	}

	selection := *attrs
	if len(selection) == 0 {
		selection = cfg.Attributes
	}
	query := varlake.Query{
		Attributes:  selection,
		Samples:     *samples,
		Regions:     *regions,
		SamplesFile: *samplesFile,
		BEDFile:     *bedFile,
	}

	w := bufio.NewWriter(out)
	enc := json.NewEncoder(w)
	var total int
	it := session.Batches(ctx, query)
	for it.Next() {
		batch := it.Batch()
		for i := 0; i < batch.NumRows(); i++ {
			if err := enc.Encode(batch.Row(i)); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(ExitGeneral)
			}
		}
		total += batch.NumRows()
	}
	if err := it.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitData)
	}
	if err := w.Flush(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneral)
	}
	fmt.Fprintf(os.Stderr, "Exported %d record(s)\n", total)
}
