// Package ena searches the ENA portal API for sequencing runs and selects
// the ones worth downloading.
//
// The portal's read_run result is the unit of interest: one run is one
// sequencing experiment submission, carrying one or two (paired-end) FASTQ
// files hosted on the ENA FTP mirrors.
package ena

import "errors"

// ErrNoRuns is returned when a search matches no sequencing runs.
var ErrNoRuns = errors.New("no sequencing runs matched the search")

// FileRef points at a single FASTQ file hosted by ENA.
type FileRef struct {
	// URL is the https URL of the file.
	URL string
	// MD5 is the hex digest advertised for the file, possibly empty.
	MD5 string
	// Bytes is the advertised file size, zero when unknown.
	Bytes int64
}

// Run is one sequencing run returned by a read_run search.
type Run struct {
	Accession           string
	SampleAccession     string
	ExperimentAccession string
	LibraryStrategy     string
	InstrumentPlatform  string
	InstrumentModel     string
	FirstPublic         string
	BaseCount           int64
	ReadCount           int64
	Files               []FileRef

	// Coverage is BaseCount divided by the ungapped genome size. Zero until
	// ComputeCoverage has run (or when the genome size is unknown).
	Coverage float64
}
