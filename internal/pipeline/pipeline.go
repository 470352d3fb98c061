package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/lupphes/biodbcore/internal/ctxlog"
	"github.com/lupphes/biodbcore/internal/ena"
	"github.com/lupphes/biodbcore/internal/executor"
	"github.com/lupphes/biodbcore/internal/fasta"
	"github.com/lupphes/biodbcore/internal/refseq"
)

// GenomeSource resolves and fetches reference assemblies. *refseq.Client is
// the production implementation.
type GenomeSource interface {
	LookupAssembly(ctx context.Context, taxID int, opts refseq.LookupOptions) (*refseq.Assembly, error)
	FetchGenome(ctx context.Context, assembly *refseq.Assembly, outdir string) (string, error)
}

// RunSearcher finds sequencing runs. *ena.Client is the production
// implementation.
type RunSearcher interface {
	Search(ctx context.Context, opts ena.SearchOptions) ([]ena.Run, error)
}

// Downloader fetches the files of selected runs. *executor.Pool is the
// production implementation.
type Downloader interface {
	DownloadRuns(ctx context.Context, runs []ena.Run, outdir string) []executor.Result
}

// Pipeline wires the stages of one retrieval run together.
type Pipeline struct {
	opts       Options
	genomes    GenomeSource
	searcher   RunSearcher
	downloader Downloader
}

// New validates opts and returns a ready Pipeline. The output directory is
// created here so every stage can assume it exists.
func New(opts Options, genomes GenomeSource, searcher RunSearcher, downloader Downloader) (*Pipeline, error) {
	if err := opts.validate(); err != nil {
		return nil, fmt.Errorf("invalid pipeline options: %w", err)
	}
	abs, err := filepath.Abs(opts.Outdir)
	if err != nil {
		return nil, fmt.Errorf("resolving outdir: %w", err)
	}
	opts.Outdir = abs
	if err := os.MkdirAll(opts.Outdir, 0o755); err != nil {
		return nil, fmt.Errorf("creating outdir: %w", err)
	}
	if opts.MaxResults == 0 {
		opts.MaxResults = DefaultMaxResults
	}
	return &Pipeline{opts: opts, genomes: genomes, searcher: searcher, downloader: downloader}, nil
}

// Run executes the stages selected by the configured mode and writes the
// manifest into the output directory.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	summary := &Summary{
		TaxonomyID: p.opts.TaxonomyID,
		Mode:       p.opts.Mode,
		Outdir:     p.opts.Outdir,
	}

	switch p.opts.Mode {
	case ModeRefSeq:
		if err := p.runRefSeq(ctx, summary); err != nil {
			return nil, err
		}
	case ModeENA:
		if err := p.runENA(ctx, summary); err != nil {
			return nil, err
		}
	case ModeBoth:
		if err := p.runRefSeq(ctx, summary); err != nil {
			return nil, err
		}
		if err := p.runENA(ctx, summary); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported mode: %q", p.opts.Mode)
	}

	if err := summary.Write(p.opts.Outdir); err != nil {
		return nil, err
	}
	return summary, nil
}

// runRefSeq resolves the reference genome, either from a local file or from
// NCBI, and records the genome sizes on the summary.
func (p *Pipeline) runRefSeq(ctx context.Context, summary *Summary) error {
	logger := ctxlog.FromContext(ctx)

	ref := &ReferenceGenome{}
	summary.Reference = ref

	if p.opts.ReferenceGenome != "" {
		logger.Info("Using local reference genome.", "path", p.opts.ReferenceGenome)
		stats, err := fasta.ScanFile(p.opts.ReferenceGenome)
		if err != nil {
			return fmt.Errorf("scanning local reference genome: %w", err)
		}
		ref.Path = p.opts.ReferenceGenome
		ref.GenomeSize = stats.TotalLength
		ref.GenomeSizeUngapped = stats.UngappedLength
	} else {
		logger.Info("Fetching RefSeq genome data.", "taxonomy_id", p.opts.TaxonomyID)
		assembly, err := p.genomes.LookupAssembly(ctx, p.opts.TaxonomyID, refseq.LookupOptions{
			AssemblyLevel: p.opts.AssemblyLevel,
		})
		if err != nil {
			return err
		}
		path, err := p.genomes.FetchGenome(ctx, assembly, p.opts.Outdir)
		if err != nil {
			return err
		}
		ref.Path = path
		ref.Accession = assembly.Accession
		ref.AssemblyName = assembly.Name
		ref.AssemblyLevel = assembly.Level
		ref.Organism = assembly.OrganismName
		ref.GenomeSize = assembly.TotalLength
		ref.GenomeSizeUngapped = assembly.UngappedLength

		// The dataset report usually carries the sizes; scan the file only
		// when it did not.
		if ref.GenomeSize == 0 || ref.GenomeSizeUngapped == 0 {
			stats, err := fasta.ScanFile(path)
			if err != nil {
				return fmt.Errorf("scanning downloaded genome: %w", err)
			}
			ref.GenomeSize = stats.TotalLength
			ref.GenomeSizeUngapped = stats.UngappedLength
		}
	}

	logger.Info("Reference genome ready.",
		"path", ref.Path,
		"genome_size", ref.GenomeSize,
		"genome_size_ungapped", ref.GenomeSizeUngapped,
	)
	return nil
}

// runENA searches for sequencing runs and downloads their FASTQ files, or
// inventories a user-supplied local sequence directory.
func (p *Pipeline) runENA(ctx context.Context, summary *Summary) error {
	logger := ctxlog.FromContext(ctx)

	seq := &SequenceSet{}
	summary.Sequences = seq

	if p.opts.SequenceDir != "" {
		logger.Info("Using local sequence directory.", "dir", p.opts.SequenceDir)
		files, err := listSequenceFiles(p.opts.SequenceDir)
		if err != nil {
			return err
		}
		if len(files) == 0 {
			logger.Warn("No sequence files found in the local directory.", "dir", p.opts.SequenceDir)
		}
		seq.Dir = p.opts.SequenceDir
		seq.AllFiles = files
		return nil
	}
	seq.Dir = p.opts.Outdir

	genomeSizeUngapped := p.resolveUngappedSize(ctx, summary)
	if genomeSizeUngapped == 0 {
		logger.Warn("Ungapped genome size unknown; the coverage filter is disabled for this run.")
	}

	logger.Info("Searching for sequence data in ENA.", "taxonomy_id", p.opts.TaxonomyID)
	runs, err := p.searcher.Search(ctx, ena.SearchOptions{
		TaxonomyID:          p.opts.TaxonomyID,
		LibraryStrategies:   p.opts.LibraryStrategies,
		InstrumentPlatforms: p.opts.InstrumentPlatforms,
	})
	if err != nil {
		if errors.Is(err, ena.ErrNoRuns) {
			logger.Warn("No sequence data found.")
			return nil
		}
		return err
	}

	ena.ComputeCoverage(runs, genomeSizeUngapped)
	if genomeSizeUngapped > 0 {
		runs = ena.FilterByCoverage(runs, p.opts.MinCoverage, p.opts.MaxCoverage)
	}
	ena.SortByCoverage(runs)
	runs = ena.Truncate(runs, p.opts.MaxResults)
	if len(runs) == 0 {
		logger.Warn("All candidate runs were filtered out.")
		return nil
	}

	logger.Info("Downloading FASTQ files.", "runs", len(runs))
	results := p.downloader.DownloadRuns(ctx, runs, seq.Dir)

	for i, res := range results {
		record := RunRecord{
			Accession:          res.RunAccession,
			Files:              res.Files,
			Coverage:           runs[i].Coverage,
			LibraryStrategy:    runs[i].LibraryStrategy,
			InstrumentPlatform: runs[i].InstrumentPlatform,
			BaseCount:          runs[i].BaseCount,
		}
		if res.Err != nil {
			record.Error = res.Err.Error()
		}
		seq.Runs = append(seq.Runs, record)
	}

	files, err := listSequenceFiles(seq.Dir)
	if err != nil {
		return err
	}
	seq.AllFiles = files
	return nil
}

// resolveUngappedSize picks the ungapped genome size for coverage math, in
// order of preference: explicit option, refseq stage result, scan of a local
// reference genome.
func (p *Pipeline) resolveUngappedSize(ctx context.Context, summary *Summary) int64 {
	logger := ctxlog.FromContext(ctx)

	if p.opts.GenomeSizeUngapped > 0 {
		logger.Info("Using provided ungapped genome size.", "genome_size_ungapped", p.opts.GenomeSizeUngapped)
		return p.opts.GenomeSizeUngapped
	}
	if summary.Reference != nil && summary.Reference.GenomeSizeUngapped > 0 {
		return summary.Reference.GenomeSizeUngapped
	}
	if p.opts.ReferenceGenome != "" {
		stats, err := fasta.ScanFile(p.opts.ReferenceGenome)
		if err != nil {
			logger.Warn("Could not scan local reference genome for its size.", "error", err)
			return 0
		}
		return stats.UngappedLength
	}
	return 0
}

// listSequenceFiles walks dir recursively and returns all regular files,
// excluding the pipeline's own manifest.
func listSequenceFiles(dir string) ([]string, error) {
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("sequence directory %q does not exist", dir)
		}
		return nil, fmt.Errorf("accessing sequence directory %q: %w", dir, err)
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || d.Name() == ManifestName {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("listing sequence files under %q: %w", dir, err)
	}
	return files, nil
}
