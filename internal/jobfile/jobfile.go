// Package jobfile loads declarative retrieval jobs from HCL files.
//
// A job file describes one or more named retrieval jobs:
//
//	job "ecoli" {
//	  taxonomy_id = 562
//	  mode        = "both"
//	  outdir      = "data/ecoli"
//
//	  filters {
//	    library_strategy    = ["WGS"]
//	    instrument_platform = ["ILLUMINA"]
//	    max_results         = 5
//	    min_coverage        = 10
//	    max_coverage        = 100
//	  }
//
//	  upload {
//	    url = env.UPLOAD_URL
//	  }
//	}
//
// Process environment variables are exposed to expressions as the `env`
// object, so secrets and machine-specific paths stay out of the file.
package jobfile

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/lupphes/biodbcore/internal/ctxlog"
	"github.com/lupphes/biodbcore/internal/pipeline"
	"github.com/zclconf/go-cty/cty"
)

// Job is one named retrieval job from a job file.
type Job struct {
	Name string
	// Options are the pipeline options the job resolves to. CLI flags may
	// still override individual fields.
	Options pipeline.Options
	// UploadURL, when set, mirrors the output directory to a pre-signed URL
	// after the run.
	UploadURL string
}

// fileRoot decodes the top level of a job file. There is no catch-all body:
// unknown blocks and attributes are load errors.
type fileRoot struct {
	Jobs []*jobBlock `hcl:"job,block"`
}

type jobBlock struct {
	Name               string        `hcl:"name,label"`
	TaxonomyID         int           `hcl:"taxonomy_id,optional"`
	Mode               string        `hcl:"mode,optional"`
	Outdir             string        `hcl:"outdir,optional"`
	ReferenceGenome    string        `hcl:"reference_genome,optional"`
	SequenceDir        string        `hcl:"sequence_dir,optional"`
	GenomeSizeUngapped int64         `hcl:"genome_size_ungapped,optional"`
	Filters            *filtersBlock `hcl:"filters,block"`
	Upload             *uploadBlock  `hcl:"upload,block"`
}

type filtersBlock struct {
	LibraryStrategy    []string `hcl:"library_strategy,optional"`
	InstrumentPlatform []string `hcl:"instrument_platform,optional"`
	MaxResults         int      `hcl:"max_results,optional"`
	MinCoverage        float64  `hcl:"min_coverage,optional"`
	MaxCoverage        float64  `hcl:"max_coverage,optional"`
	AssemblyLevel      string   `hcl:"assembly_level,optional"`
}

type uploadBlock struct {
	URL string `hcl:"url"`
}

// Load parses every job file under path (a single .hcl file or a directory
// searched recursively) and returns the jobs in declaration order.
func Load(ctx context.Context, path string) ([]Job, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := findJobFiles(path)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no .hcl job files found under %q", path)
	}
	logger.Debug("Discovered job files.", "count", len(files))

	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{"env": envObject()},
	}

	parser := hclparse.NewParser()
	var jobs []Job
	seen := make(map[string]string)

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse job file %s: %w", file, diags)
		}

		var root fileRoot
		diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &root)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode job file %s: %w", file, diags)
		}

		for _, block := range root.Jobs {
			if prev, dup := seen[block.Name]; dup {
				return nil, fmt.Errorf("duplicate job %q in %s (first declared in %s)", block.Name, file, prev)
			}
			seen[block.Name] = file
			jobs = append(jobs, translateJob(block))
		}
	}

	logger.Debug("Job files loaded.", "jobs", len(jobs))
	return jobs, nil
}

// translateJob maps a decoded block onto the runtime job model. A job that
// omits `mode` gets the full pipeline, matching the CLI default.
func translateJob(block *jobBlock) Job {
	mode := pipeline.Mode(strings.ToLower(block.Mode))
	if mode == "" {
		mode = pipeline.ModeBoth
	}
	job := Job{
		Name: block.Name,
		Options: pipeline.Options{
			TaxonomyID:         block.TaxonomyID,
			Mode:               mode,
			Outdir:             block.Outdir,
			ReferenceGenome:    block.ReferenceGenome,
			SequenceDir:        block.SequenceDir,
			GenomeSizeUngapped: block.GenomeSizeUngapped,
		},
	}
	if block.Filters != nil {
		job.Options.LibraryStrategies = block.Filters.LibraryStrategy
		job.Options.InstrumentPlatforms = block.Filters.InstrumentPlatform
		job.Options.MaxResults = block.Filters.MaxResults
		job.Options.MinCoverage = block.Filters.MinCoverage
		job.Options.MaxCoverage = block.Filters.MaxCoverage
		job.Options.AssemblyLevel = block.Filters.AssemblyLevel
	}
	if block.Upload != nil {
		job.UploadURL = block.Upload.URL
	}
	return job
}

// envObject snapshots the process environment into a cty object for use in
// job file expressions.
func envObject() cty.Value {
	vars := make(map[string]cty.Value)
	for _, kv := range os.Environ() {
		if k, v, ok := strings.Cut(kv, "="); ok && k != "" {
			vars[k] = cty.StringVal(v)
		}
	}
	if len(vars) == 0 {
		return cty.EmptyObjectVal
	}
	return cty.ObjectVal(vars)
}

// findJobFiles accepts a single .hcl file or walks a directory for them.
func findJobFiles(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("accessing job path %q: %w", path, err)
	}

	if !info.IsDir() {
		if filepath.Ext(path) != ".hcl" {
			return nil, fmt.Errorf("job file %q is not an .hcl file", path)
		}
		return []string{path}, nil
	}

	var files []string
	err = filepath.Walk(path, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && filepath.Ext(p) == ".hcl" {
			files = append(files, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking job directory %q: %w", path, err)
	}
	return files, nil
}
