package main

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/varlake/varlake/varlake"
)

// runCount prints the number of records matching a selection.
func runCount(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("count", flag.ExitOnError)
	dataset := fs.StringP("dataset", "d", "", "Dataset location")
	samples := fs.StringSliceP("samples", "s", nil, "Samples to include (default: all)")
	regions := fs.StringSliceP("regions", "r", nil, "Regions to include (default: all)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: varlake count [options]

Description:
  Count the records matching the sample and region selection without
  materializing any attribute data.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  varlake count -d /data/cohort
  varlake count -d /data/cohort -s NA12878 -r chr1:1-1000000

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
	opts, err := sessionOptions(ctx, cfg, globals, location)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitConfig)
	}
	if list := cfg.engineConfigList(); len(list) > 0 {
		opts = append(opts, varlake.WithReadConfig(varlake.ReadConfig{EngineConfig: list}))
	}

	session, err := varlake.NewReadSession(location, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneral)
	}
	defer func() { _ = session.Close() }()

	n, err := session.Count(ctx, varlake.CountQuery{Samples: *samples, Regions: *regions})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitData)
	}
	fmt.Println(n)
}
