package fasta

import (
	"compress/gzip"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleFASTA = `>chr1 test chromosome
ACGTACGTNN
ACGT
>chr2
NNNNACGT
`

func TestScan_CountsTotalAndUngapped(t *testing.T) {
	t.Parallel()

	// --- Act ---
	stats, err := Scan(strings.NewReader(sampleFASTA))

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, int64(22), stats.TotalLength)
	require.Equal(t, int64(16), stats.UngappedLength, "the six N bases must be excluded")
	require.Equal(t, 2, stats.Sequences)
}

func TestScan_LowercaseNsAreGaps(t *testing.T) {
	t.Parallel()

	stats, err := Scan(strings.NewReader(">s\nacgtnn\n"))

	require.NoError(t, err)
	require.Equal(t, int64(6), stats.TotalLength)
	require.Equal(t, int64(4), stats.UngappedLength)
}

func TestScan_EmptyInput(t *testing.T) {
	t.Parallel()

	stats, err := Scan(strings.NewReader(""))

	require.NoError(t, err)
	require.Zero(t, stats.TotalLength)
	require.Zero(t, stats.Sequences)
}

func TestScanFile_PlainAndGzipAgree(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	dir := t.TempDir()
	plainPath := filepath.Join(dir, "genome.fna")
	require.NoError(t, os.WriteFile(plainPath, []byte(sampleFASTA), 0o644))

	gzPath := filepath.Join(dir, "genome.fna.gz")
	f, err := os.Create(gzPath)
	require.NoError(t, err)
	gz := gzip.NewWriter(f)
	_, err = gz.Write([]byte(sampleFASTA))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	require.NoError(t, f.Close())

	// --- Act ---
	plainStats, err := ScanFile(plainPath)
	require.NoError(t, err)
	gzStats, err := ScanFile(gzPath)
	require.NoError(t, err)

	// --- Assert ---
	require.Equal(t, plainStats, gzStats)
}

func TestScanFile_MissingFile(t *testing.T) {
	t.Parallel()

	_, err := ScanFile(filepath.Join(t.TempDir(), "nope.fna"))

	require.Error(t, err)
}
