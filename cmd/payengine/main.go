package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/google/uuid"

	"github.com/finvolt/payengine/internal/config"
	"github.com/finvolt/payengine/internal/ledger"
	"github.com/finvolt/payengine/internal/output"
	"github.com/finvolt/payengine/internal/source"
	csvsource "github.com/finvolt/payengine/internal/source/csv"
	"github.com/finvolt/payengine/internal/source/ofx"
	"github.com/finvolt/payengine/internal/source/sqlite"
	"github.com/finvolt/payengine/internal/ui"
	"github.com/finvolt/payengine/internal/validate"
)

const version = "0.1.0"

var (
	versionFlag = flag.Bool("version", false, "Show version")

	verbose    = flag.Bool("verbose", false, "Show per-record diagnostics")
	outputFile = flag.String("output", "", "Output CSV file (default: stdout)")
	configFile = flag.String("config", "", "YAML configuration file")
	formatName = flag.String("format", "", "Input format: auto, csv, ofx, sqlite (default: auto)")
)

func main() {
	flag.Usage = func() {
		fmt.Fprint(os.Stderr, `payengine - sequential transaction ledger

Usage:
  payengine [flags] <transactions-file>

Flags:
`)
		flag.PrintDefaults()
		fmt.Fprint(os.Stderr, `
Examples:
  # Process a CSV transaction log to stdout
  payengine transactions.csv > accounts.csv

  # Force the input format and write to a file
  payengine -format sqlite -output accounts.csv transactions.db

  # Show rejected-record diagnostics
  payengine -verbose transactions.csv

`)
	}

	flag.Parse()

	if *versionFlag {
		fmt.Printf("payengine version %s\n", version)
		os.Exit(0)
	}

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Error: exactly one input file is required\n\n")
		flag.Usage()
		os.Exit(1)
	}

	if err := run(flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig resolves the effective configuration: embedded defaults,
// then the optional config file, then explicitly set CLI flags.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if *configFile != "" {
		cfg, err = config.LoadFromFile(*configFile)
	} else {
		cfg, err = config.LoadEmbedded()
	}
	if err != nil {
		return nil, err
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "verbose":
			cfg.Verbose = *verbose
		case "output":
			cfg.Output = *outputFile
		case "format":
			cfg.Format = *formatName
		}
	})

	switch cfg.Format {
	case "", config.FormatAuto, config.FormatCSV, config.FormatOFX, config.FormatSQLite:
	default:
		return nil, fmt.Errorf("unknown format %q (expected auto, csv, ofx, or sqlite)", cfg.Format)
	}
	return cfg, nil
}

func run(inputPath string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	runID := uuid.NewString()
	if cfg.Verbose {
		fmt.Fprintf(os.Stderr, "run %s: input %s\n", runID, inputPath)
	} else {
		ui.Header("Processing Transactions")
		ui.Step(1, 3, "Reading transaction stream")
	}

	reg := source.NewRegistry(
		csvsource.NewFormat(),
		ofx.NewFormat(),
		sqlite.NewFormat(),
	)

	var format source.Format
	if cfg.Format == "" || cfg.Format == config.FormatAuto {
		format, err = reg.Find(inputPath)
		if err != nil {
			return err
		}
	} else {
		var ok bool
		format, ok = reg.Get(cfg.Format)
		if !ok {
			return fmt.Errorf("no registered format named %q", cfg.Format)
		}
	}

	if cfg.Verbose {
		fmt.Fprintf(os.Stderr, "run %s: using %s source\n", runID, format.Name())
	}

	src, err := format.Open(ctx, inputPath)
	if err != nil {
		return err
	}

	lgr := ledger.New()
	applied, rejected, err := processStream(src, lgr, func(ruleErr *ledger.RuleError) {
		if cfg.Verbose {
			fmt.Fprintf(os.Stderr, "run %s: skipped: %v\n", runID, ruleErr)
		}
	})

	// Close before acting on the processing result so a close failure on
	// a fully-read source still surfaces.
	if closeErr := src.Close(); closeErr != nil && err == nil {
		err = fmt.Errorf("failed to close input: %w", closeErr)
	}
	if err != nil {
		return err
	}

	if cfg.Verbose {
		fmt.Fprintf(os.Stderr, "run %s: applied %d records, skipped %d, %d account(s)\n",
			runID, applied, rejected, lgr.AccountCount())
	} else {
		ui.Success(fmt.Sprintf("Applied %d records (%d skipped) across %d account(s)", applied, rejected, lgr.AccountCount()))
		ui.Step(2, 3, "Checking account invariants")
	}

	snapshots := lgr.Snapshots()
	if err := validate.CheckSnapshots(snapshots).Err(); err != nil {
		if !cfg.Verbose {
			ui.Error("Account invariants violated")
		}
		return err
	}

	if !cfg.Verbose {
		ui.Step(3, 3, "Writing account summary")
	}

	if err := output.WriteSnapshotsToFile(snapshots, output.WriteOptions{FilePath: cfg.Output}); err != nil {
		return err
	}

	if cfg.Output != "" && !cfg.Verbose {
		ui.Success(fmt.Sprintf("Summary written to %s", cfg.Output))
	}
	return nil
}

// processStream pulls records one at a time and applies them in order.
// Rule violations are reported through onReject and swallowed; any other
// error aborts the stream.
func processStream(src source.Source, lgr *ledger.Ledger, onReject func(*ledger.RuleError)) (applied, rejected int, err error) {
	for {
		rec, err := src.Next()
		if err == io.EOF {
			return applied, rejected, nil
		}
		if err != nil {
			return applied, rejected, err
		}

		if err := lgr.Apply(rec); err != nil {
			var ruleErr *ledger.RuleError
			if !errors.As(err, &ruleErr) {
				return applied, rejected, err
			}
			rejected++
			if onReject != nil {
				onReject(ruleErr)
			}
			continue
		}
		applied++
	}
}
