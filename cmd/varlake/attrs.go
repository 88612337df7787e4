package main

import (
	"context"
	"fmt"
	"os"

	flag "github.com/spf13/pflag"

	"github.com/varlake/varlake/varlake"
)

// runAttrs lists the dataset's queryable attributes for one class.
func runAttrs(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("attrs", flag.ExitOnError)
	dataset := fs.StringP("dataset", "d", "", "Dataset location")
	class := fs.String("class", "all", "Attribute class: all, info, fmt, or builtin")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: varlake attrs [options]

Description:
  List queryable attribute names, one per line.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, `
Examples:
  varlake attrs -d /data/cohort
  varlake attrs -d /data/cohort --class info

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

	names, err := session.Attributes(ctx, varlake.AttributeClass(*class))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitData)
	}
	for _, name := range names {
		fmt.Println(name)
	}
}

// runSamples lists the dataset's registered sample names.
func runSamples(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("samples", flag.ExitOnError)
	dataset := fs.StringP("dataset", "d", "", "Dataset location")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: varlake samples [options]

Description:
  List registered sample names, one per line.

Options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\n")
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

	names, err := session.Samples(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitData)
	}
	for _, name := range names {
		fmt.Println(name)
	}
}

// openReadSession wires the common options for metadata subcommands.
func openReadSession(ctx context.Context, cfg *Config, globals GlobalFlags, location string) (*varlake.ReadSession, error) {
	opts, err := sessionOptions(ctx, cfg, globals, location)
	if err != nil {
		return nil, err
	}
	if list := cfg.engineConfigList(); len(list) > 0 {
		opts = append(opts, varlake.WithReadConfig(varlake.ReadConfig{EngineConfig: list}))
	}
	return varlake.NewReadSession(location, opts...)
}
