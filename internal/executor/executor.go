// Package executor downloads the FASTQ files of selected sequencing runs
// with a fixed-size pool of concurrent workers.
package executor

import (
	"context"
	"net/http"
	"path"
	"path/filepath"
	"sync"

	"github.com/lupphes/biodbcore/internal/ctxlog"
	"github.com/lupphes/biodbcore/internal/ena"
	"github.com/lupphes/biodbcore/internal/fetch"
)

// DefaultWorkers is the pool size used when the caller does not choose one.
const DefaultWorkers = 4

// Result is the outcome of downloading one run.
type Result struct {
	// RunAccession identifies the sequencing run.
	RunAccession string
	// Files are the local paths of the files downloaded (or found present).
	Files []string
	// Err is non-nil when any file of the run failed. Files still lists
	// whatever was completed before the failure.
	Err error
}

// Pool is a concurrent run downloader.
type Pool struct {
	httpClient *http.Client
	workers    int
}

// New returns a Pool with the given concurrency. workers < 1 selects
// DefaultWorkers.
func New(httpClient *http.Client, workers int) *Pool {
	if workers < 1 {
		workers = DefaultWorkers
	}
	return &Pool{httpClient: httpClient, workers: workers}
}

// DownloadRuns fetches the FASTQ files of every run into
// outdir/<run_accession>/. One run is one unit of work; a failing run is
// recorded in its Result and does not abort the others. Context cancellation
// stops the pool; queued runs then come back with ctx.Err().
//
// Results are returned in the order of the input runs.
func (p *Pool) DownloadRuns(ctx context.Context, runs []ena.Run, outdir string) []Result {
	logger := ctxlog.FromContext(ctx)
	logger.Info("Starting FASTQ downloads.", "runs", len(runs), "workers", p.workers)

	jobs := make(chan int)
	results := make([]Result, len(runs))

	var wg sync.WaitGroup
	for workerID := 0; workerID < p.workers; workerID++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			p.worker(ctx, workerID, jobs, runs, results, outdir)
		}(workerID)
	}

	for i := range runs {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	logger.Info("FASTQ downloads finished.", "runs", len(runs), "failed", failed)
	return results
}

// worker is the processing loop of one concurrent worker.
func (p *Pool) worker(ctx context.Context, workerID int, jobs <-chan int, runs []ena.Run, results []Result, outdir string) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Download worker started.", "workerID", workerID)

	for i := range jobs {
		run := runs[i]
		workerLogger := logger.With("workerID", workerID, "run", run.Accession)

		if ctx.Err() != nil {
			results[i] = Result{RunAccession: run.Accession, Err: ctx.Err()}
			continue
		}

		workerLogger.Debug("Worker picked up run.")
		results[i] = p.downloadRun(ctx, run, outdir)
		if results[i].Err != nil {
			workerLogger.Error("Run download failed.", "error", results[i].Err)
			continue
		}
		workerLogger.Info("Run downloaded.", "files", len(results[i].Files))
	}

	logger.Debug("Download worker finished.", "workerID", workerID)
}

// downloadRun fetches every file of a single run.
func (p *Pool) downloadRun(ctx context.Context, run ena.Run, outdir string) Result {
	result := Result{RunAccession: run.Accession}
	runDir := filepath.Join(outdir, run.Accession)

	for _, file := range run.Files {
		dest := filepath.Join(runDir, path.Base(file.URL))
		local, err := fetch.DownloadFile(ctx, p.httpClient, file.URL, dest, fetch.DownloadOptions{
			MD5:     file.MD5,
			Size:    file.Bytes,
			Retries: 2,
		})
		if err != nil {
			result.Err = err
			return result
		}
		result.Files = append(result.Files, local)
	}
	return result
}
