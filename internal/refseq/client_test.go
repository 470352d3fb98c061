package refseq

import (
	"compress/gzip"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/lupphes/biodbcore/internal/fetch"
	"github.com/stretchr/testify/require"
)

const sampleReport = `{
  "reports": [
    {
      "accession": "GCF_000005845.2",
      "assembly_info": {
        "assembly_name": "ASM584v2",
        "assembly_level": "Complete Genome",
        "refseq_category": "reference genome",
        "release_date": "2013-09-26"
      },
      "assembly_stats": {
        "total_sequence_length": "4641652",
        "total_ungapped_length": "4641652"
      },
      "organism": {
        "tax_id": 511145,
        "organism_name": "Escherichia coli str. K-12 substr. MG1655"
      }
    },
    {
      "accession": "GCF_000008865.2",
      "assembly_info": {
        "assembly_name": "ASM886v2",
        "assembly_level": "Complete Genome",
        "refseq_category": "",
        "release_date": "2018-11-20"
      },
      "assembly_stats": {
        "total_sequence_length": "5594605",
        "total_ungapped_length": "5594605"
      },
      "organism": {
        "tax_id": 386585,
        "organism_name": "Escherichia coli O157:H7 str. Sakai"
      }
    }
  ],
  "total_count": 2
}`

func TestLookupAssembly_SelectsReference(t *testing.T) {
	t.Parallel()

	// --- Arrange ---
	var gotPath, gotKey, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("api-key")
		gotAgent = r.Header.Get("User-Agent")
		w.Write([]byte(sampleReport))
	}))
	t.Cleanup(srv.Close)
	client := NewClient(srv.Client(), srv.Client(), srv.URL, "secret-key")

	// --- Act ---
	assembly, err := client.LookupAssembly(context.Background(), 562, LookupOptions{})

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, "/genome/taxon/562/dataset_report", gotPath)
	require.Equal(t, "secret-key", gotKey)
	require.Equal(t, fetch.UserAgent, gotAgent)
	require.Equal(t, "GCF_000005845.2", assembly.Accession)
	require.Equal(t, int64(4641652), assembly.TotalLength)
	require.Equal(t, int64(4641652), assembly.UngappedLength)
	require.Equal(t, "Escherichia coli str. K-12 substr. MG1655", assembly.OrganismName)
}

func TestLookupAssembly_EmptyReport(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"reports": [], "total_count": 0}`))
	}))
	t.Cleanup(srv.Close)
	client := NewClient(srv.Client(), srv.Client(), srv.URL, "")

	_, err := client.LookupAssembly(context.Background(), 999999, LookupOptions{})

	require.ErrorIs(t, err, ErrNoAssembly)
}

func TestLookupAssembly_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	t.Cleanup(srv.Close)
	client := NewClient(srv.Client(), srv.Client(), srv.URL, "")

	_, err := client.LookupAssembly(context.Background(), 562, LookupOptions{})

	require.Error(t, err)
	var statusErr *fetch.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusTooManyRequests, statusErr.StatusCode)
}

func TestFetchGenome_DownloadsFASTA(t *testing.T) {
	// Not parallel: swaps the package-level mirror URL.

	// --- Arrange ---
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gz := gzip.NewWriter(w)
		gz.Write([]byte(">chr1\nACGT\n"))
		gz.Close()
	}))
	t.Cleanup(srv.Close)

	oldBase := genomesBaseURL
	genomesBaseURL = srv.URL
	t.Cleanup(func() { genomesBaseURL = oldBase })

	client := NewClient(srv.Client(), srv.Client(), srv.URL, "")
	assembly := &Assembly{Accession: "GCF_000005845.2", Name: "ASM584v2"}
	outdir := t.TempDir()

	// --- Act ---
	path, err := client.FetchGenome(context.Background(), assembly, outdir)

	// --- Assert ---
	require.NoError(t, err)
	require.Equal(t, filepath.Join(outdir, "GCF_000005845.2_ASM584v2_genomic.fna.gz"), path)
	_, statErr := os.Stat(path)
	require.NoError(t, statErr)
}
