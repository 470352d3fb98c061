package app

import (
	"errors"
	"time"

	"github.com/lupphes/biodbcore/internal/pipeline"
)

// Config holds everything an App instance needs to run.
type Config struct {
	// Pipeline carries the retrieval options assembled from CLI flags.
	Pipeline pipeline.Options
	// JobPath, when set, points at an HCL job file or directory; the jobs
	// declared there are run instead of a single flag-defined job.
	JobPath string
	// FlagsSet names the pipeline-related CLI flags the user set explicitly.
	// When a job file is in play, exactly these flags override job values.
	FlagsSet map[string]bool

	// UploadURL, when set, mirrors the output directory to a pre-signed PUT
	// URL after a successful run.
	UploadURL string

	Workers         int
	HealthcheckPort int
	HTTPTimeout     time.Duration
	LogFormat       string
	LogLevel        string
}

// NewConfig validates a Config assembled by the CLI layer.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.JobPath == "" && cfg.Pipeline.Outdir == "" {
		return nil, errors.New("an output directory (or a job file) is required")
	}
	if cfg.Workers < 0 {
		return nil, errors.New("workers must not be negative")
	}
	return &cfg, nil
}
