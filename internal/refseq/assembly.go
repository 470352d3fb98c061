package refseq

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// genomesBaseURL is the NCBI FTP mirror serving assembly directories over
// https. The directory scheme fans the accession digits out in triplets:
// GCF_000005845.2 lives under genomes/all/GCF/000/005/845/.
var genomesBaseURL = "https://ftp.ncbi.nlm.nih.gov/genomes/all"

// Assembly describes one RefSeq assembly of a taxon.
type Assembly struct {
	// Accession is the versioned RefSeq accession, e.g. "GCF_000005845.2".
	Accession string
	// Name is the submitter-assigned assembly name, e.g. "ASM584v2".
	Name string
	// Level is the assembly level reported by NCBI ("Contig", "Scaffold",
	// "Chromosome", "Complete Genome").
	Level string
	// RefseqCategory is "reference genome", "representative genome" or empty.
	RefseqCategory string
	// ReleaseDate is the ISO date the assembly was released.
	ReleaseDate string
	// OrganismName is the scientific name of the organism.
	OrganismName string
	// TaxID is the organism's taxonomy ID.
	TaxID int

	// TotalLength and UngappedLength are the sizes advertised by NCBI.
	// Zero when the report omitted them; the pipeline then falls back to
	// scanning the downloaded FASTA.
	TotalLength    int64
	UngappedLength int64
}

func newAssembly(r assemblyReport) Assembly {
	return Assembly{
		Accession:      r.Accession,
		Name:           r.AssemblyInfo.AssemblyName,
		Level:          r.AssemblyInfo.AssemblyLevel,
		RefseqCategory: r.AssemblyInfo.RefseqCategory,
		ReleaseDate:    r.AssemblyInfo.ReleaseDate,
		OrganismName:   r.Organism.OrganismName,
		TaxID:          r.Organism.TaxID,
		TotalLength:    parseSize(r.AssemblyStats.TotalSequenceLength),
		UngappedLength: parseSize(r.AssemblyStats.TotalUngappedLength),
	}
}

// accessionPattern matches versioned GCF/GCA accessions.
var accessionPattern = regexp.MustCompile(`^(GC[AF])_(\d{9})\.\d+$`)

// GenomicFASTAURL constructs the download URL of the assembly's genomic
// FASTA on the NCBI mirror.
func (a *Assembly) GenomicFASTAURL() (string, error) {
	m := accessionPattern.FindStringSubmatch(a.Accession)
	if m == nil {
		return "", fmt.Errorf("malformed assembly accession %q", a.Accession)
	}
	if a.Name == "" {
		return "", fmt.Errorf("assembly %s has no assembly name", a.Accession)
	}
	digits := m[2]
	dirName := a.Accession + "_" + sanitizeName(a.Name)
	return fmt.Sprintf("%s/%s/%s/%s/%s/%s/%s_genomic.fna.gz",
		genomesBaseURL, m[1], digits[0:3], digits[3:6], digits[6:9], dirName, dirName), nil
}

// sanitizeName maps an assembly name onto the directory-safe form NCBI uses
// (spaces and slashes become underscores).
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '/', '\\', '#':
			return '_'
		}
		return r
	}, name)
}

// levelRank orders assembly levels from least to most complete.
func levelRank(level string) int {
	switch strings.ToLower(level) {
	case "complete genome":
		return 4
	case "chromosome":
		return 3
	case "scaffold":
		return 2
	case "contig":
		return 1
	default:
		return 0
	}
}

// categoryRank prefers the curated RefSeq categories.
func categoryRank(category string) int {
	switch strings.ToLower(category) {
	case "reference genome":
		return 2
	case "representative genome":
		return 1
	default:
		return 0
	}
}

// selectAssembly picks the best candidate: reference category first, then
// assembly level, then release date, then accession for determinism. When
// minLevel is set, candidates below that level are discarded first.
func selectAssembly(candidates []Assembly, minLevel string) (*Assembly, error) {
	if minLevel != "" {
		want := levelRank(minLevel)
		if want == 0 {
			return nil, fmt.Errorf("unknown assembly level %q", minLevel)
		}
		filtered := candidates[:0:0]
		for _, c := range candidates {
			if levelRank(c.Level) >= want {
				filtered = append(filtered, c)
			}
		}
		candidates = filtered
	}
	if len(candidates) == 0 {
		return nil, ErrNoAssembly
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if ca, cb := categoryRank(a.RefseqCategory), categoryRank(b.RefseqCategory); ca != cb {
			return ca > cb
		}
		if la, lb := levelRank(a.Level), levelRank(b.Level); la != lb {
			return la > lb
		}
		if a.ReleaseDate != b.ReleaseDate {
			return a.ReleaseDate > b.ReleaseDate
		}
		return a.Accession < b.Accession
	})

	best := candidates[0]
	return &best, nil
}

// parseSize parses the stringly-typed sizes in NCBI's assembly stats.
func parseSize(s string) int64 {
	if s == "" {
		return 0
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return n
}
