package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/lupphes/biodbcore/internal/ena"
	"github.com/lupphes/biodbcore/internal/executor"
	"github.com/lupphes/biodbcore/internal/refseq"
	"github.com/stretchr/testify/require"
)

// fakeGenomeSource serves a canned assembly and writes a fake FASTA on fetch.
type fakeGenomeSource struct {
	assembly  *refseq.Assembly
	err       error
	lookups   int
	fetchedTo string
}

func (f *fakeGenomeSource) LookupAssembly(ctx context.Context, taxID int, opts refseq.LookupOptions) (*refseq.Assembly, error) {
	f.lookups++
	if f.err != nil {
		return nil, f.err
	}
	return f.assembly, nil
}

func (f *fakeGenomeSource) FetchGenome(ctx context.Context, assembly *refseq.Assembly, outdir string) (string, error) {
	f.fetchedTo = outdir
	path := filepath.Join(outdir, assembly.Accession+"_genomic.fna")
	if err := os.WriteFile(path, []byte(">chr1\nACGTN\n"), 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// fakeSearcher returns canned runs.
type fakeSearcher struct {
	runs []ena.Run
	err  error
	got  ena.SearchOptions
}

func (f *fakeSearcher) Search(ctx context.Context, opts ena.SearchOptions) ([]ena.Run, error) {
	f.got = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.runs, nil
}

// fakeDownloader pretends every run downloaded one file per FileRef.
type fakeDownloader struct {
	failAccession string
	gotRuns       []ena.Run
}

func (f *fakeDownloader) DownloadRuns(ctx context.Context, runs []ena.Run, outdir string) []executor.Result {
	f.gotRuns = runs
	results := make([]executor.Result, len(runs))
	for i, run := range runs {
		results[i].RunAccession = run.Accession
		if run.Accession == f.failAccession {
			results[i].Err = errors.New("simulated transfer failure")
			continue
		}
		for j := range run.Files {
			name := fmt.Sprintf("%s_%d.fastq.gz", run.Accession, j+1)
			path := filepath.Join(outdir, run.Accession, name)
			os.MkdirAll(filepath.Dir(path), 0o755)
			os.WriteFile(path, []byte("reads"), 0o644)
			results[i].Files = append(results[i].Files, path)
		}
	}
	return results
}

func refAssembly() *refseq.Assembly {
	return &refseq.Assembly{
		Accession:      "GCF_000005845.2",
		Name:           "ASM584v2",
		Level:          "Complete Genome",
		OrganismName:   "Escherichia coli",
		TotalLength:    4_641_652,
		UngappedLength: 4_641_652,
	}
}

func enaRun(acc string, baseCount int64, files int) ena.Run {
	run := ena.Run{Accession: acc, BaseCount: baseCount}
	for i := 0; i < files; i++ {
		run.Files = append(run.Files, ena.FileRef{URL: fmt.Sprintf("https://example.org/%s_%d.fastq.gz", acc, i+1)})
	}
	return run
}

func TestRun_RefSeqMode(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	outdir := t.TempDir()
	genomes := &fakeGenomeSource{assembly: refAssembly()}
	p, err := New(Options{TaxonomyID: 562, Outdir: outdir, Mode: ModeRefSeq}, genomes, nil, nil)
	require.NoError(t, err)

	// --- Act ---
	summary, err := p.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	require.NotNil(t, summary.Reference)
	require.Equal(t, "GCF_000005845.2", summary.Reference.Accession)
	require.Equal(t, int64(4_641_652), summary.Reference.GenomeSize)
	require.Nil(t, summary.Sequences)

	// The manifest must land in the output directory and round-trip.
	loaded, err := ReadSummary(outdir)
	require.NoError(t, err)
	require.Equal(t, summary.Reference.Accession, loaded.Reference.Accession)
}

func TestRun_RefSeqMode_LocalReferenceSkipsLookup(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	outdir := t.TempDir()
	refPath := filepath.Join(t.TempDir(), "local.fna")
	require.NoError(t, os.WriteFile(refPath, []byte(">c\nACGTACGTNN\n"), 0o644))
	genomes := &fakeGenomeSource{assembly: refAssembly()}
	p, err := New(Options{TaxonomyID: 562, Outdir: outdir, Mode: ModeRefSeq, ReferenceGenome: refPath}, genomes, nil, nil)
	require.NoError(t, err)

	// --- Act ---
	summary, err := p.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	require.Zero(t, genomes.lookups, "a local reference must not hit NCBI")
	require.Equal(t, refPath, summary.Reference.Path)
	require.Equal(t, int64(10), summary.Reference.GenomeSize)
	require.Equal(t, int64(8), summary.Reference.GenomeSizeUngapped)
}

func TestRun_ENAMode_FiltersSortsAndDownloads(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	outdir := t.TempDir()
	searcher := &fakeSearcher{runs: []ena.Run{
		enaRun("SRR-low", 1_000_000, 1),      // 0.2x on a 5 Mbp genome
		enaRun("SRR-high", 500_000_000, 2),   // 100x
		enaRun("SRR-huge", 5_000_000_000, 1), // 1000x, above max
	}}
	downloader := &fakeDownloader{}
	p, err := New(Options{
		TaxonomyID:         562,
		Outdir:             outdir,
		Mode:               ModeENA,
		GenomeSizeUngapped: 5_000_000,
		MinCoverage:        10,
		MaxCoverage:        500,
		LibraryStrategies:  []string{"WGS"},
	}, nil, searcher, downloader)
	require.NoError(t, err)

	// --- Act ---
	summary, err := p.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, []string{"WGS"}, searcher.got.LibraryStrategies)
	require.Len(t, downloader.gotRuns, 1, "only SRR-high survives the coverage window")
	require.Equal(t, "SRR-high", downloader.gotRuns[0].Accession)
	require.Len(t, summary.Sequences.Runs, 1)
	require.InDelta(t, 100.0, summary.Sequences.Runs[0].Coverage, 1e-9)
	require.Len(t, summary.Sequences.Runs[0].Files, 2)
	require.Empty(t, summary.FailedRuns())
}

func TestRun_ENAMode_TruncatesToMaxResults(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	searcher := &fakeSearcher{runs: []ena.Run{
		enaRun("SRR1", 300, 1),
		enaRun("SRR2", 100, 1),
		enaRun("SRR3", 200, 1),
	}}
	downloader := &fakeDownloader{}
	p, err := New(Options{
		TaxonomyID:         562,
		Outdir:             t.TempDir(),
		Mode:               ModeENA,
		GenomeSizeUngapped: 100,
		MaxResults:         2,
	}, nil, searcher, downloader)
	require.NoError(t, err)

	// --- Act ---
	_, err = p.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	require.Len(t, downloader.gotRuns, 2)
	require.Equal(t, "SRR1", downloader.gotRuns[0].Accession, "highest coverage first")
	require.Equal(t, "SRR3", downloader.gotRuns[1].Accession)
}

func TestRun_ENAMode_UnknownGenomeSizeDisablesCoverageFilter(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	searcher := &fakeSearcher{runs: []ena.Run{enaRun("SRR1", 100, 1)}}
	downloader := &fakeDownloader{}
	p, err := New(Options{
		TaxonomyID:  562,
		Outdir:      t.TempDir(),
		Mode:        ModeENA,
		MinCoverage: 10, // would exclude everything if applied with size 0
	}, nil, searcher, downloader)
	require.NoError(t, err)

	// --- Act ---
	_, err = p.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	require.Len(t, downloader.gotRuns, 1, "without a genome size the coverage filter must be disabled")
}

func TestRun_ENAMode_LocalSequenceDir(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	seqDir := t.TempDir()
	sub := filepath.Join(seqDir, "SRR9")
	require.NoError(t, os.MkdirAll(sub, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sub, "SRR9_1.fastq.gz"), []byte("x"), 0o644))
	searcher := &fakeSearcher{err: errors.New("must not be called")}
	p, err := New(Options{Outdir: t.TempDir(), Mode: ModeENA, SequenceDir: seqDir}, nil, searcher, nil)
	require.NoError(t, err)

	// --- Act ---
	summary, err := p.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, seqDir, summary.Sequences.Dir)
	require.Len(t, summary.Sequences.AllFiles, 1)
}

func TestRun_ENAMode_NoRunsIsNotFatal(t *testing.T) {
	t.Parallel()

	searcher := &fakeSearcher{err: fmt.Errorf("searching ENA: %w", ena.ErrNoRuns)}
	p, err := New(Options{TaxonomyID: 562, Outdir: t.TempDir(), Mode: ModeENA}, nil, searcher, nil)
	require.NoError(t, err)

	summary, err := p.Run(context.Background())

	require.NoError(t, err)
	require.Empty(t, summary.Sequences.Runs)
}

func TestRun_BothMode_RefSeqSizeFeedsCoverage(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	genomes := &fakeGenomeSource{assembly: &refseq.Assembly{
		Accession:      "GCF_1",
		Name:           "ASM1",
		TotalLength:    5_000_000,
		UngappedLength: 5_000_000,
	}}
	searcher := &fakeSearcher{runs: []ena.Run{
		enaRun("SRR-thin", 1_000_000, 1),   // 0.2x, filtered
		enaRun("SRR-deep", 250_000_000, 1), // 50x, kept
	}}
	downloader := &fakeDownloader{}
	p, err := New(Options{
		TaxonomyID:  562,
		Outdir:      t.TempDir(),
		Mode:        ModeBoth,
		MinCoverage: 5,
	}, genomes, searcher, downloader)
	require.NoError(t, err)

	// --- Act ---
	summary, err := p.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, 1, genomes.lookups)
	require.NotNil(t, summary.Reference)
	require.Len(t, downloader.gotRuns, 1)
	require.Equal(t, "SRR-deep", downloader.gotRuns[0].Accession)
}

func TestRun_FailedDownloadIsRecorded(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	searcher := &fakeSearcher{runs: []ena.Run{enaRun("SRR-sad", 100, 1), enaRun("SRR-ok", 90, 1)}}
	downloader := &fakeDownloader{failAccession: "SRR-sad"}
	p, err := New(Options{TaxonomyID: 562, Outdir: t.TempDir(), Mode: ModeENA, GenomeSizeUngapped: 10}, nil, searcher, downloader)
	require.NoError(t, err)

	// --- Act ---
	summary, err := p.Run(context.Background())

	// --- Assert ---
	require.NoError(t, err, "per-run failures must not fail the pipeline")
	require.Equal(t, []string{"SRR-sad"}, summary.FailedRuns())
}

func TestNew_RejectsInvalidOptions(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		opts Options
	}{
		{"empty outdir", Options{TaxonomyID: 562, Mode: ModeENA}},
		{"bad mode", Options{TaxonomyID: 562, Outdir: "x", Mode: "turbo"}},
		{"missing taxon", Options{Outdir: "x", Mode: ModeENA}},
		{"negative coverage", Options{TaxonomyID: 1, Outdir: "x", Mode: ModeENA, MinCoverage: -1}},
		{"inverted window", Options{TaxonomyID: 1, Outdir: "x", Mode: ModeENA, MinCoverage: 10, MaxCoverage: 5}},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tc.opts.Outdir = filepath.Join(t.TempDir(), tc.opts.Outdir)
			if tc.name == "empty outdir" {
				tc.opts.Outdir = ""
			}
			_, err := New(tc.opts, nil, nil, nil)
			require.Error(t, err)
		})
	}
}

func TestParseMode(t *testing.T) {
	t.Parallel()

	for _, ok := range []string{"refseq", "ENA", " both "} {
		_, err := ParseMode(ok)
		require.NoError(t, err, ok)
	}
	_, err := ParseMode("all")
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported mode")
}
