package ena

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/lupphes/biodbcore/internal/ctxlog"
	"github.com/lupphes/biodbcore/internal/fetch"
)

// DefaultBaseURL is the production ENA portal API endpoint.
const DefaultBaseURL = "https://www.ebi.ac.uk/ena/portal/api"

// searchFields are the read_run columns requested from the portal. The TSV
// parser resolves columns by header name, so order is not significant.
var searchFields = []string{
	"run_accession",
	"sample_accession",
	"experiment_accession",
	"library_strategy",
	"instrument_platform",
	"instrument_model",
	"first_public",
	"base_count",
	"read_count",
	"fastq_ftp",
	"fastq_md5",
	"fastq_bytes",
}

// Client talks to the ENA portal API.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient returns a portal client. baseURL is overridable for tests and
// mirrors; empty selects DefaultBaseURL.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{httpClient: httpClient, baseURL: strings.TrimSuffix(baseURL, "/")}
}

// SearchOptions narrow a read_run search.
type SearchOptions struct {
	// TaxonomyID selects the taxon subtree (tax_tree) to search under.
	TaxonomyID int
	// LibraryStrategies restricts results to the given strategies (e.g.
	// "WGS"). Matching is case-insensitive. Empty means any.
	LibraryStrategies []string
	// InstrumentPlatforms restricts results to the given platforms (e.g.
	// "ILLUMINA"). Matching is case-insensitive. Empty means any.
	InstrumentPlatforms []string
	// Limit caps the number of rows the portal returns. Zero means the
	// portal default.
	Limit int
}

// Search runs a read_run query and parses the TSV response. It returns
// ErrNoRuns when the portal answers with an empty result set.
func (c *Client) Search(ctx context.Context, opts SearchOptions) ([]Run, error) {
	logger := ctxlog.FromContext(ctx)

	query := buildQuery(opts)
	params := url.Values{}
	params.Set("result", "read_run")
	params.Set("query", query)
	params.Set("fields", strings.Join(searchFields, ","))
	params.Set("format", "tsv")
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	searchURL := c.baseURL + "/search?" + params.Encode()
	logger.Debug("Searching ENA portal.", "query", query, "url", searchURL)

	body, err := fetch.Get(ctx, c.httpClient, searchURL)
	if err != nil {
		return nil, fmt.Errorf("searching ENA: %w", err)
	}

	runs, err := parseRunTSV(string(body))
	if err != nil {
		return nil, fmt.Errorf("parsing ENA response: %w", err)
	}
	if len(runs) == 0 {
		return nil, ErrNoRuns
	}

	logger.Info("ENA search complete.", "taxonomy_id", opts.TaxonomyID, "runs", len(runs))
	return runs, nil
}

// buildQuery assembles the portal query string. The portal accepts a
// boolean expression over typed fields; string values are double-quoted.
func buildQuery(opts SearchOptions) string {
	clauses := []string{fmt.Sprintf("tax_tree(%d)", opts.TaxonomyID)}

	if group := orGroup("library_strategy", opts.LibraryStrategies); group != "" {
		clauses = append(clauses, group)
	}
	if group := orGroup("instrument_platform", opts.InstrumentPlatforms); group != "" {
		clauses = append(clauses, group)
	}

	return strings.Join(clauses, " AND ")
}

// orGroup renders `(field="a" OR field="b")`. ENA field matching is exact,
// and the controlled vocabularies are upper-case, so values are upper-cased
// here to keep the CLI forgiving.
func orGroup(field string, values []string) string {
	if len(values) == 0 {
		return ""
	}
	parts := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%q", field, strings.ToUpper(v)))
	}
	if len(parts) == 0 {
		return ""
	}
	if len(parts) == 1 {
		return parts[0]
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}
