package app

import (
	"context"
	"fmt"
	"os"

	"github.com/lupphes/biodbcore/internal/ctxlog"
	"github.com/lupphes/biodbcore/internal/ena"
	"github.com/lupphes/biodbcore/internal/executor"
	"github.com/lupphes/biodbcore/internal/jobfile"
	"github.com/lupphes/biodbcore/internal/pipeline"
	"github.com/lupphes/biodbcore/internal/refseq"
	"github.com/lupphes/biodbcore/internal/upload"
)

// Run executes every configured retrieval job.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")

	if a.config.HealthcheckPort > 0 {
		a.startHealthcheckServer(a.config.HealthcheckPort)
	}

	jobs, err := a.resolveJobs(ctx)
	if err != nil {
		return err
	}

	genomes := refseq.NewClient(a.httpClient, a.transferClient, os.Getenv(EnvNCBIBaseURL), os.Getenv(EnvNCBIAPIKey))
	searcher := ena.NewClient(a.httpClient, os.Getenv(EnvENABaseURL))
	downloader := executor.New(a.transferClient, a.config.Workers)

	for _, job := range jobs {
		jobLogger := a.logger.With("job", job.Name)
		jobCtx := ctxlog.WithLogger(ctx, jobLogger)

		jobLogger.Info("Starting retrieval job.",
			"taxonomy_id", job.Options.TaxonomyID,
			"mode", job.Options.Mode,
			"outdir", job.Options.Outdir,
		)

		p, err := pipeline.New(job.Options, genomes, searcher, downloader)
		if err != nil {
			return fmt.Errorf("job %q: %w", job.Name, err)
		}
		summary, err := p.Run(jobCtx)
		if err != nil {
			return fmt.Errorf("job %q: %w", job.Name, err)
		}

		if failed := summary.FailedRuns(); len(failed) > 0 {
			jobLogger.Warn("Some runs failed to download.", "failed_runs", failed)
		}

		if job.UploadURL != "" {
			if err := upload.Mirror(jobCtx, a.transferClient, summary.Outdir, job.UploadURL); err != nil {
				return fmt.Errorf("job %q: %w", job.Name, err)
			}
		}

		jobLogger.Info("Retrieval job finished.", "outdir", summary.Outdir)
	}

	a.logger.Debug("App.Run method finished.")
	return nil
}

// resolveJobs turns the configuration into the list of jobs to run: the
// declared jobs of a job file (with explicit CLI flags overriding their
// fields), or the single job described entirely by flags.
func (a *App) resolveJobs(ctx context.Context) ([]jobfile.Job, error) {
	if a.config.JobPath == "" {
		return []jobfile.Job{{
			Name:      "cli",
			Options:   a.config.Pipeline,
			UploadURL: a.config.UploadURL,
		}}, nil
	}

	jobs, err := jobfile.Load(ctx, a.config.JobPath)
	if err != nil {
		return nil, err
	}
	for i := range jobs {
		a.applyFlagOverrides(&jobs[i])
	}
	return jobs, nil
}

// applyFlagOverrides copies explicitly-set CLI flag values over the fields a
// job file declared. Flags always win over file values.
func (a *App) applyFlagOverrides(job *jobfile.Job) {
	set := a.config.FlagsSet
	if len(set) == 0 {
		return
	}
	flags := a.config.Pipeline

	if set["taxonomy-id"] {
		job.Options.TaxonomyID = flags.TaxonomyID
	}
	if set["outdir"] {
		job.Options.Outdir = flags.Outdir
	}
	if set["mode"] {
		job.Options.Mode = flags.Mode
	}
	if set["reference-genome"] {
		job.Options.ReferenceGenome = flags.ReferenceGenome
	}
	if set["sequence-dir"] {
		job.Options.SequenceDir = flags.SequenceDir
	}
	if set["genome-size-ungapped"] {
		job.Options.GenomeSizeUngapped = flags.GenomeSizeUngapped
	}
	if set["library-strategy"] {
		job.Options.LibraryStrategies = flags.LibraryStrategies
	}
	if set["instrument-platform"] {
		job.Options.InstrumentPlatforms = flags.InstrumentPlatforms
	}
	if set["max-results"] {
		job.Options.MaxResults = flags.MaxResults
	}
	if set["min-coverage"] {
		job.Options.MinCoverage = flags.MinCoverage
	}
	if set["max-coverage"] {
		job.Options.MaxCoverage = flags.MaxCoverage
	}
	if set["assembly-level"] {
		job.Options.AssemblyLevel = flags.AssemblyLevel
	}
	if set["upload-url"] {
		job.UploadURL = a.config.UploadURL
	}
}
