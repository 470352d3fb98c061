package ena

import (
	"fmt"
	"strconv"
	"strings"
)

// parseRunTSV decodes the portal's tab-separated read_run listing. The first
// line is a header naming the columns; the parser resolves columns by name
// so the portal may add or reorder fields without breaking us.
func parseRunTSV(body string) ([]Run, error) {
	lines := strings.Split(strings.TrimRight(body, "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return nil, nil
	}

	header := strings.Split(lines[0], "\t")
	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(name)] = i
	}
	if _, ok := col["run_accession"]; !ok {
		return nil, fmt.Errorf("response has no run_accession column (header: %q)", lines[0])
	}

	field := func(row []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	var runs []Run
	for lineNo, line := range lines[1:] {
		if strings.TrimSpace(line) == "" {
			continue
		}
		row := strings.Split(line, "\t")

		run := Run{
			Accession:           field(row, "run_accession"),
			SampleAccession:     field(row, "sample_accession"),
			ExperimentAccession: field(row, "experiment_accession"),
			LibraryStrategy:     field(row, "library_strategy"),
			InstrumentPlatform:  field(row, "instrument_platform"),
			InstrumentModel:     field(row, "instrument_model"),
			FirstPublic:         field(row, "first_public"),
		}
		if run.Accession == "" {
			return nil, fmt.Errorf("row %d has an empty run_accession", lineNo+2)
		}

		run.BaseCount = parseInt(field(row, "base_count"))
		run.ReadCount = parseInt(field(row, "read_count"))

		files, err := parseFileRefs(field(row, "fastq_ftp"), field(row, "fastq_md5"), field(row, "fastq_bytes"))
		if err != nil {
			return nil, fmt.Errorf("run %s: %w", run.Accession, err)
		}
		run.Files = files

		runs = append(runs, run)
	}
	return runs, nil
}

// parseFileRefs pairs up the three parallel semicolon-separated columns the
// portal uses for per-file data. MD5s and sizes are optional; URLs are not.
func parseFileRefs(ftp, md5s, bytes string) ([]FileRef, error) {
	if ftp == "" {
		return nil, nil
	}
	urls := strings.Split(ftp, ";")
	digests := splitOrEmpty(md5s, len(urls))
	sizes := splitOrEmpty(bytes, len(urls))
	if digests == nil {
		return nil, fmt.Errorf("fastq_md5 has %d entries for %d files", strings.Count(md5s, ";")+1, len(urls))
	}
	if sizes == nil {
		return nil, fmt.Errorf("fastq_bytes has %d entries for %d files", strings.Count(bytes, ";")+1, len(urls))
	}

	refs := make([]FileRef, 0, len(urls))
	for i, u := range urls {
		u = strings.TrimSpace(u)
		if u == "" {
			continue
		}
		// The portal lists bare FTP host paths; ENA serves the same paths
		// over https, which is what we actually download.
		if !strings.Contains(u, "://") {
			u = "https://" + u
		}
		refs = append(refs, FileRef{
			URL:   u,
			MD5:   digests[i],
			Bytes: parseInt(sizes[i]),
		})
	}
	return refs, nil
}

// splitOrEmpty splits a semicolon list into exactly n entries, or returns n
// empty strings when the column itself is empty. A populated column with the
// wrong cardinality yields nil.
func splitOrEmpty(s string, n int) []string {
	if s == "" {
		return make([]string, n)
	}
	parts := strings.Split(s, ";")
	if len(parts) != n {
		return nil
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseInt(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
