// Command varlake manages columnar variant datasets: creation, VCF
// ingestion, paginated export, and dataset inspection.
package main

import (
	"fmt"
	"log/slog"
	"os"

	flag "github.com/spf13/pflag"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitUsage   = 1
	ExitGeneral = 2
	ExitConfig  = 3
	ExitData    = 4
)

// GlobalFlags carries options every subcommand inherits.
type GlobalFlags struct {
	Verbose bool
}

func main() {
	fs := flag.NewFlagSet("varlake", flag.ExitOnError)
	fs.SetInterspersed(false)
	configPath := fs.StringP("config", "c", "", "Path to YAML config file")
	verbose := fs.BoolP("verbose", "v", false, "Enable verbose logging")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: varlake [global options] <command> [options]

Commands:
  create    Create a dataset
  ingest    Ingest VCF files into a dataset
  export    Export query results as JSON lines
  count     Count records matching a selection
  attrs     List queryable attributes
  samples   List registered samples
  stat      Show a dataset summary

Global options:
`)
		fs.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nRun 'varlake <command> --help' for command options.\n\n")
	}

	if err := fs.Parse(os.Args[1:]); err != nil {
		os.Exit(ExitUsage)
	}

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	globals := GlobalFlags{Verbose: *verbose}

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		os.Exit(ExitUsage)
	}

	switch args[0] {
	case "create":
		runCreate(args[1:], *configPath, globals)
	case "ingest":
		runIngest(args[1:], *configPath, globals)
	case "export":
		runExport(args[1:], *configPath, globals)
	case "count":
		runCount(args[1:], *configPath, globals)
	case "attrs":
		runAttrs(args[1:], *configPath, globals)
	case "samples":
		runSamples(args[1:], *configPath, globals)
	case "stat":
		runStat(args[1:], *configPath, globals)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
		fs.Usage()
		os.Exit(ExitUsage)
	}
}
