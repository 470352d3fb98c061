package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/lupphes/biodbcore/internal/pipeline"
	"github.com/stretchr/testify/require"
)

func TestParse_FullFlagSet(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	args := []string{
		"--taxonomy-id", "562",
		"--outdir", "data/ecoli",
		"--mode", "both",
		"--library-strategy", "WGS, WXS",
		"--instrument-platform", "ILLUMINA",
		"--max-results", "5",
		"--min-coverage", "10",
		"--max-coverage", "100",
		"--assembly-level", "chromosome",
		"--workers", "8",
		"--http-timeout", "30s",
		"--log-format", "json",
		"--log-level", "debug",
	}
	out := &bytes.Buffer{}

	// --- Act ---
	config, shouldExit, err := Parse(args, out)

	// --- Assert ---
	require.NoError(t, err)
	require.False(t, shouldExit)
	require.Equal(t, 562, config.Pipeline.TaxonomyID)
	require.Equal(t, "data/ecoli", config.Pipeline.Outdir)
	require.Equal(t, pipeline.ModeBoth, config.Pipeline.Mode)
	require.Equal(t, []string{"WGS", "WXS"}, config.Pipeline.LibraryStrategies)
	require.Equal(t, []string{"ILLUMINA"}, config.Pipeline.InstrumentPlatforms)
	require.Equal(t, 5, config.Pipeline.MaxResults)
	require.Equal(t, 8, config.Workers)
	require.Equal(t, 30*time.Second, config.HTTPTimeout)
	require.Equal(t, "json", config.LogFormat)
	require.Equal(t, "debug", config.LogLevel)
	require.True(t, config.FlagsSet["taxonomy-id"])
	require.False(t, config.FlagsSet["upload-url"])
}

func TestParse_NoArgsPrintsUsage(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}

	config, shouldExit, err := Parse(nil, out)

	require.NoError(t, err)
	require.True(t, shouldExit)
	require.Nil(t, config)
	require.Contains(t, out.String(), "Usage:")
}

func TestParse_HelpFlag(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}

	_, shouldExit, err := Parse([]string{"-h"}, out)

	require.NoError(t, err)
	require.True(t, shouldExit)
	require.Contains(t, out.String(), "Usage:")
}

func TestParse_InvalidMode(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}

	_, _, err := Parse([]string{"--outdir", "x", "--mode", "turbo"}, out)

	require.Error(t, err)
	exitErr, ok := err.(*ExitError)
	require.True(t, ok)
	require.Equal(t, 2, exitErr.Code)
	require.Contains(t, exitErr.Message, "unsupported mode")
}

func TestParse_InvalidLogFormat(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}

	_, _, err := Parse([]string{"--outdir", "x", "--log-format", "xml"}, out)

	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid log-format")
}

func TestParse_InvalidLogLevel(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}

	_, _, err := Parse([]string{"--outdir", "x", "--log-level", "loud"}, out)

	require.Error(t, err)
	require.Contains(t, err.Error(), "invalid log-level")
}

func TestParse_UnknownFlag(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}

	_, _, err := Parse([]string{"--frobnicate"}, out)

	require.Error(t, err)
	exitErr, ok := err.(*ExitError)
	require.True(t, ok)
	require.Equal(t, 2, exitErr.Code)
}

func TestParse_PositionalArgumentRejected(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}

	_, _, err := Parse([]string{"--outdir", "x", "extra"}, out)

	require.Error(t, err)
	require.Contains(t, err.Error(), "unexpected argument")
}

func TestParse_JobFileAloneIsEnough(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}

	config, shouldExit, err := Parse([]string{"--job", "jobs.hcl"}, out)

	require.NoError(t, err)
	require.False(t, shouldExit)
	require.Equal(t, "jobs.hcl", config.JobPath)
}

func TestSplitCSV(t *testing.T) {
	t.Parallel()

	require.Nil(t, splitCSV(""))
	require.Nil(t, splitCSV("  "))
	require.Equal(t, []string{"a"}, splitCSV("a"))
	require.Equal(t, []string{"a", "b"}, splitCSV(" a , b ,"))
}
