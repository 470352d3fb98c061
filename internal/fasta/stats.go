// Package fasta computes size statistics over FASTA reference genomes.
//
// Reference assemblies from RefSeq arrive as (optionally gzipped) FASTA
// files. The pipeline needs two numbers from them: the total sequence length
// and the ungapped length, i.e. the length excluding ambiguous 'N' bases.
// The ungapped length is what sequencing coverage is computed against.
package fasta

import (
	"bufio"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"strings"
)

// Stats holds the aggregate sizes of a genome.
type Stats struct {
	// TotalLength is the number of sequence characters across all records.
	TotalLength int64
	// UngappedLength is TotalLength minus 'N'/'n' bases.
	UngappedLength int64
	// Sequences is the number of FASTA records seen.
	Sequences int
}

// Scan reads FASTA records from r and accumulates size statistics. Header
// lines (starting with '>') delimit records; every other non-empty line is
// sequence data.
func Scan(r io.Reader) (Stats, error) {
	var stats Stats

	scanner := bufio.NewScanner(r)
	// Sequence lines are normally short, but some tools emit single-line
	// sequences; allow up to 64 MiB per line.
	scanner.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ">") {
			stats.Sequences++
			continue
		}
		stats.TotalLength += int64(len(line))
		for _, c := range line {
			if c != 'N' && c != 'n' {
				stats.UngappedLength++
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return Stats{}, fmt.Errorf("reading FASTA stream: %w", err)
	}
	return stats, nil
}

// ScanFile opens path and computes its Stats. Files ending in ".gz" are
// transparently decompressed.
func ScanFile(path string) (Stats, error) {
	f, err := os.Open(path)
	if err != nil {
		return Stats{}, fmt.Errorf("opening FASTA file %q: %w", path, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".gz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return Stats{}, fmt.Errorf("opening gzip stream of %q: %w", path, err)
		}
		defer gz.Close()
		r = gz
	}

	return Scan(r)
}
