// Package cli parses the biodbcore command line into an app.Config.
package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lupphes/biodbcore/internal/app"
	"github.com/lupphes/biodbcore/internal/pipeline"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated app.Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("biodbcore", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
BioDbCoRe - retrieve, process and analyze genomic data from public repositories.

Usage:
  biodbcore [options]

Modes:
  refseq  fetch the reference genome of a taxon from NCBI RefSeq
  ena     search ENA for sequencing runs and download their FASTQ files
  both    refseq first, then ena with the genome size feeding the coverage filter

Options:
`)
		flagSet.PrintDefaults()
	}

	taxonomyID := flagSet.Int("taxonomy-id", 0, "NCBI taxonomy ID to retrieve data for.")
	outdir := flagSet.String("outdir", "", "Directory all artifacts are written to.")
	mode := flagSet.String("mode", "both", "Pipeline mode: 'refseq', 'ena' or 'both'.")
	referenceGenome := flagSet.String("reference-genome", "", "Path to a local reference genome FASTA; skips the RefSeq fetch.")
	sequenceDir := flagSet.String("sequence-dir", "", "Directory of local sequence files; skips the ENA download.")
	genomeSizeUngapped := flagSet.Int64("genome-size-ungapped", 0, "Ungapped genome size in bp for the coverage filter.")
	libraryStrategy := flagSet.String("library-strategy", "", "Comma-separated ENA library strategies (e.g. 'WGS,WXS').")
	instrumentPlatform := flagSet.String("instrument-platform", "", "Comma-separated ENA instrument platforms (e.g. 'ILLUMINA').")
	maxResults := flagSet.Int("max-results", pipeline.DefaultMaxResults, "Maximum number of sequencing runs to download.")
	minCoverage := flagSet.Float64("min-coverage", 0, "Minimum sequencing coverage to keep a run. 0 disables the bound.")
	maxCoverage := flagSet.Float64("max-coverage", 0, "Maximum sequencing coverage to keep a run. 0 disables the bound.")
	assemblyLevel := flagSet.String("assembly-level", "", "Minimum RefSeq assembly level: 'contig', 'scaffold', 'chromosome' or 'complete genome'.")
	jobPath := flagSet.String("job", "", "Path to an HCL job file or directory; runs the jobs declared there.")
	uploadURL := flagSet.String("upload-url", "", "Pre-signed PUT URL to mirror the results archive to.")
	workers := flagSet.Int("workers", 4, "Number of concurrent download workers.")
	healthPort := flagSet.Int("healthcheck-port", 0, "Port for the HTTP health check server. 0 is disabled.")
	httpTimeout := flagSet.Duration("http-timeout", 60*time.Second, "Timeout for individual API requests.")
	logFormat := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevel := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if flagSet.NArg() > 0 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("unexpected argument: %q", flagSet.Arg(0))}
	}

	if *jobPath == "" && *outdir == "" {
		slog.Debug("No output directory or job file provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	format := strings.ToLower(*logFormat)
	if format != "text" && format != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	level := strings.ToLower(*logLevel)
	switch level {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	parsedMode, err := pipeline.ParseMode(*mode)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("CLI parameter validation complete.")

	flagsSet := make(map[string]bool)
	flagSet.Visit(func(f *flag.Flag) { flagsSet[f.Name] = true })

	config, err := app.NewConfig(app.Config{
		Pipeline: pipeline.Options{
			TaxonomyID:          *taxonomyID,
			Outdir:              *outdir,
			Mode:                parsedMode,
			ReferenceGenome:     *referenceGenome,
			SequenceDir:         *sequenceDir,
			GenomeSizeUngapped:  *genomeSizeUngapped,
			LibraryStrategies:   splitCSV(*libraryStrategy),
			InstrumentPlatforms: splitCSV(*instrumentPlatform),
			MaxResults:          *maxResults,
			MinCoverage:         *minCoverage,
			MaxCoverage:         *maxCoverage,
			AssemblyLevel:       *assemblyLevel,
		},
		JobPath:         *jobPath,
		FlagsSet:        flagsSet,
		UploadURL:       *uploadURL,
		Workers:         *workers,
		HealthcheckPort: *healthPort,
		HTTPTimeout:     *httpTimeout,
		LogFormat:       format,
		LogLevel:        level,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.")
	return config, false, nil
}

// splitCSV splits a comma-separated flag value, dropping empty entries.
func splitCSV(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
