package main

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/varlake/varlake/varlake"
)

// runCreate creates a dataset at the configured location.
func runCreate(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("create", flag.ExitOnError)
	dataset := fs.StringP("dataset", "d", "", "Dataset location")
	extraAttrs := fs.StringSlice("extra-attrs", nil, "INFO/FORMAT fields to materialize as typed columns (info_DP, fmt_GQ)")
	tileCapacity := fs.Int("tile-capacity", 0, "Rows per stored fragment (default 10000)")
	anchorGap := fs.Int("anchor-gap", 0, "Anchor gap for long-variant indexing (default 1000)")
	checksum := fs.String("checksum", "", "Fragment checksum: sha256, md5, or none (default sha256)")
	noDuplicates := fs.Bool("no-duplicates", false, "Drop records duplicating (sample, contig, start, alleles)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: varlake create [options]

Description:
  Create a dataset at the given location. Creating over an existing
  dataset succeeds without modifying it.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  varlake create --dataset /data/cohort
  varlake create -d s3://genomics/cohort --checksum none
  varlake create -d mem://demo --extra-attrs info_DP,fmt_GQ

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
		opts = append(opts, varlake.WithWriteConfig(varlake.WriteConfig{EngineConfig: list}))
	}

	session, err := varlake.NewWriteSession(location, opts...)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitGeneral)
	}
	defer func() { _ = session.Close() }()

	params := varlake.CreateParams{
		ExtraAttributes: *extraAttrs,
		TileCapacity:    *tileCapacity,
		AnchorGap:       *anchorGap,
		Checksum:        varlake.ChecksumKind(*checksum),
	}
	if *noDuplicates {
		f := false
		params.AllowDuplicates = &f
	}

	if err := session.CreateDataset(ctx, params); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitData)
	}
	fmt.Fprintf(os.Stderr, "Dataset ready at %s\n", location)
}
