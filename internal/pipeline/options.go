// Package pipeline orchestrates a BioDbCoRe run: reference genome retrieval
// from RefSeq, sequencing-run search on ENA, and concurrent FASTQ download,
// with a JSON manifest of everything fetched.
package pipeline

import (
	"fmt"
	"strings"
)

// Mode selects which stages a run executes.
type Mode string

const (
	// ModeRefSeq fetches only the reference genome.
	ModeRefSeq Mode = "refseq"
	// ModeENA searches and downloads sequencing runs only.
	ModeENA Mode = "ena"
	// ModeBoth runs refseq first and feeds its genome sizes into the ENA
	// coverage filter.
	ModeBoth Mode = "both"
)

// ParseMode validates a user-supplied mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case ModeRefSeq:
		return ModeRefSeq, nil
	case ModeENA:
		return ModeENA, nil
	case ModeBoth:
		return ModeBoth, nil
	default:
		return "", fmt.Errorf("unsupported mode: %q (want refseq, ena or both)", s)
	}
}

// Options configure a pipeline run.
type Options struct {
	// TaxonomyID is the NCBI taxonomy ID to retrieve data for.
	TaxonomyID int
	// Outdir is where all artifacts land. Created if absent.
	Outdir string
	// Mode selects the stages to run.
	Mode Mode

	// ReferenceGenome, when set, is a local FASTA used instead of fetching
	// from RefSeq.
	ReferenceGenome string
	// SequenceDir, when set, is a local directory of sequence files used
	// instead of downloading from ENA.
	SequenceDir string
	// GenomeSizeUngapped, when non-zero, overrides the ungapped genome size
	// the coverage filter divides by.
	GenomeSizeUngapped int64

	// LibraryStrategies and InstrumentPlatforms narrow the ENA search.
	LibraryStrategies   []string
	InstrumentPlatforms []string
	// MaxResults caps the number of runs downloaded. Zero selects
	// DefaultMaxResults.
	MaxResults int
	// MinCoverage and MaxCoverage bound the coverage filter; zero means
	// unbounded.
	MinCoverage float64
	MaxCoverage float64
	// AssemblyLevel is the minimum acceptable RefSeq assembly level.
	AssemblyLevel string
}

// DefaultMaxResults matches the historical default of the tool.
const DefaultMaxResults = 10

// validate checks option combinations that every mode needs.
func (o *Options) validate() error {
	if o.Outdir == "" {
		return fmt.Errorf("outdir must not be empty")
	}
	if _, err := ParseMode(string(o.Mode)); err != nil {
		return err
	}
	// A taxonomy ID is only dispensable when local inputs replace every
	// remote stage of the selected mode.
	needsTaxon := false
	if o.Mode == ModeRefSeq || o.Mode == ModeBoth {
		needsTaxon = needsTaxon || o.ReferenceGenome == ""
	}
	if o.Mode == ModeENA || o.Mode == ModeBoth {
		needsTaxon = needsTaxon || o.SequenceDir == ""
	}
	if o.TaxonomyID <= 0 && needsTaxon {
		return fmt.Errorf("a positive taxonomy ID is required unless local inputs cover the whole run")
	}
	if o.MinCoverage < 0 || o.MaxCoverage < 0 {
		return fmt.Errorf("coverage bounds must not be negative")
	}
	if o.MinCoverage > 0 && o.MaxCoverage > 0 && o.MinCoverage > o.MaxCoverage {
		return fmt.Errorf("min coverage %v exceeds max coverage %v", o.MinCoverage, o.MaxCoverage)
	}
	return nil
}
