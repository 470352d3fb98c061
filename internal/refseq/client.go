// Package refseq resolves a taxonomy ID to its RefSeq reference assembly
// via the NCBI Datasets v2 REST API and downloads the genomic FASTA.
package refseq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/lupphes/biodbcore/internal/ctxlog"
	"github.com/lupphes/biodbcore/internal/fetch"
)

// DefaultBaseURL is the production NCBI Datasets v2 endpoint.
const DefaultBaseURL = "https://api.ncbi.nlm.nih.gov/datasets/v2"

// ErrNoAssembly is returned when NCBI reports no RefSeq assembly for a taxon.
var ErrNoAssembly = errors.New("no RefSeq assembly found for taxon")

// Client talks to the NCBI Datasets API.
type Client struct {
	// apiClient serves the dataset-report queries; fileClient streams the
	// genomic FASTA and must not carry a whole-body timeout.
	apiClient  *http.Client
	fileClient *http.Client
	baseURL    string
	apiKey     string
}

// NewClient returns a Datasets client. baseURL is overridable for tests;
// empty selects DefaultBaseURL. apiKey may be empty; with a key NCBI allows
// a higher request rate.
func NewClient(apiClient, fileClient *http.Client, baseURL, apiKey string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		apiClient:  apiClient,
		fileClient: fileClient,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
	}
}

// datasetReport mirrors the subset of the dataset_report response we use.
// NCBI encodes the assembly stats as JSON strings, hence the string fields.
type datasetReport struct {
	Reports []assemblyReport `json:"reports"`
	Total   int              `json:"total_count"`
}

type assemblyReport struct {
	Accession    string `json:"accession"`
	AssemblyInfo struct {
		AssemblyName   string `json:"assembly_name"`
		AssemblyLevel  string `json:"assembly_level"`
		RefseqCategory string `json:"refseq_category"`
		ReleaseDate    string `json:"release_date"`
	} `json:"assembly_info"`
	AssemblyStats struct {
		TotalSequenceLength string `json:"total_sequence_length"`
		TotalUngappedLength string `json:"total_ungapped_length"`
	} `json:"assembly_stats"`
	Organism struct {
		TaxID        int    `json:"tax_id"`
		OrganismName string `json:"organism_name"`
	} `json:"organism"`
}

// LookupOptions narrow the assembly search for a taxon.
type LookupOptions struct {
	// AssemblyLevel, when set, keeps only assemblies of at least this level
	// ("contig", "scaffold", "chromosome", "complete genome").
	AssemblyLevel string
}

// LookupAssembly queries the dataset report for taxID and picks the best
// RefSeq assembly: reference-category first, then higher assembly level,
// then most recent release.
func (c *Client) LookupAssembly(ctx context.Context, taxID int, opts LookupOptions) (*Assembly, error) {
	logger := ctxlog.FromContext(ctx)

	params := url.Values{}
	params.Set("filters.assembly_source", "refseq")
	params.Set("page_size", "100")
	reportURL := fmt.Sprintf("%s/genome/taxon/%d/dataset_report?%s", c.baseURL, taxID, params.Encode())
	logger.Debug("Querying NCBI dataset report.", "taxonomy_id", taxID, "url", reportURL)

	var report datasetReport
	if err := c.getJSON(ctx, reportURL, &report); err != nil {
		return nil, fmt.Errorf("querying NCBI dataset report for taxon %d: %w", taxID, err)
	}
	if len(report.Reports) == 0 {
		return nil, fmt.Errorf("taxon %d: %w", taxID, ErrNoAssembly)
	}

	candidates := make([]Assembly, 0, len(report.Reports))
	for _, r := range report.Reports {
		candidates = append(candidates, newAssembly(r))
	}

	best, err := selectAssembly(candidates, opts.AssemblyLevel)
	if err != nil {
		return nil, fmt.Errorf("taxon %d: %w", taxID, err)
	}

	logger.Info("Selected RefSeq assembly.",
		"accession", best.Accession,
		"name", best.Name,
		"level", best.Level,
		"organism", best.OrganismName,
	)
	return best, nil
}

// FetchGenome downloads the genomic FASTA of assembly into outdir and
// returns the local path.
func (c *Client) FetchGenome(ctx context.Context, assembly *Assembly, outdir string) (string, error) {
	logger := ctxlog.FromContext(ctx)

	genomeURL, err := assembly.GenomicFASTAURL()
	if err != nil {
		return "", err
	}

	dest := fmt.Sprintf("%s/%s_%s_genomic.fna.gz", strings.TrimSuffix(outdir, "/"), assembly.Accession, sanitizeName(assembly.Name))
	logger.Info("Downloading reference genome.", "url", genomeURL, "dest", dest)

	path, err := fetch.DownloadFile(ctx, c.fileClient, genomeURL, dest, fetch.DownloadOptions{Retries: 2})
	if err != nil {
		return "", fmt.Errorf("downloading genome %s: %w", assembly.Accession, err)
	}

	if info, statErr := os.Stat(path); statErr == nil {
		logger.Info("Reference genome downloaded.", "path", path, "bytes", info.Size())
	}
	return path, nil
}

// getJSON issues a GET with the NCBI api-key header (when configured) and
// decodes the JSON response into v.
func (c *Client) getJSON(ctx context.Context, rawURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", fetch.UserAgent)
	if c.apiKey != "" {
		req.Header.Set("api-key", c.apiKey)
	}
	resp, err := c.apiClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &fetch.StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return json.NewDecoder(resp.Body).Decode(v)
}
