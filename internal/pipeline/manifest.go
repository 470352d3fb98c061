package pipeline

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ManifestName is the file name of the run manifest inside the output
// directory.
const ManifestName = "biodbcore_manifest.json"

// Summary is the machine-readable record of one pipeline run. It is both
// the return value of Pipeline.Run and the content of the manifest file.
type Summary struct {
	TaxonomyID  int              `json:"taxonomy_id"`
	Mode        Mode             `json:"mode"`
	Outdir      string           `json:"outdir"`
	GeneratedAt time.Time        `json:"generated_at"`
	Reference   *ReferenceGenome `json:"reference_genome,omitempty"`
	Sequences   *SequenceSet     `json:"sequences,omitempty"`
}

// ReferenceGenome records the outcome of the refseq stage.
type ReferenceGenome struct {
	Path               string `json:"path"`
	Accession          string `json:"accession,omitempty"`
	AssemblyName       string `json:"assembly_name,omitempty"`
	AssemblyLevel      string `json:"assembly_level,omitempty"`
	Organism           string `json:"organism,omitempty"`
	GenomeSize         int64  `json:"genome_size"`
	GenomeSizeUngapped int64  `json:"genome_size_ungapped"`
}

// SequenceSet records the outcome of the ena stage.
type SequenceSet struct {
	Dir      string      `json:"dir"`
	Runs     []RunRecord `json:"runs,omitempty"`
	AllFiles []string    `json:"all_files"`
}

// RunRecord maps one run accession to its downloaded files.
type RunRecord struct {
	Accession          string   `json:"accession"`
	Files              []string `json:"files"`
	Coverage           float64  `json:"coverage,omitempty"`
	LibraryStrategy    string   `json:"library_strategy,omitempty"`
	InstrumentPlatform string   `json:"instrument_platform,omitempty"`
	BaseCount          int64    `json:"base_count,omitempty"`
	// Error is set when this run's download failed.
	Error string `json:"error,omitempty"`
}

// FailedRuns returns the accessions whose download failed.
func (s *Summary) FailedRuns() []string {
	if s.Sequences == nil {
		return nil
	}
	var failed []string
	for _, r := range s.Sequences.Runs {
		if r.Error != "" {
			failed = append(failed, r.Accession)
		}
	}
	return failed
}

// Write stores the summary as pretty-printed JSON in dir.
func (s *Summary) Write(dir string) error {
	s.GeneratedAt = time.Now().UTC()

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding manifest: %w", err)
	}
	path := filepath.Join(dir, ManifestName)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("writing manifest: %w", err)
	}
	return nil
}

// ReadSummary loads a manifest previously written by Write.
func ReadSummary(dir string) (*Summary, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	var s Summary
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding manifest: %w", err)
	}
	return &s, nil
}
