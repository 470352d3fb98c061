// Package fetch provides the shared HTTP plumbing for the repository
// clients: a tuned http.Client, JSON/TSV GET helpers, and a verifying
// file downloader.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single API request. Bulk file transfers use
// NewTransferClient, which has no whole-body deadline.
const DefaultTimeout = 60 * time.Second

// UserAgent identifies the tool to the upstream repositories. Every
// outbound request carries it.
const UserAgent = "biodbcore/0.1 (+https://github.com/lupphes/biodbcore)"

// NewClient returns the http.Client for API requests. Connection pooling
// matters here: a single pipeline run issues many requests against the same
// two or three hosts.
func NewClient(timeout time.Duration) *http.Client {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &http.Client{
		Timeout:   timeout,
		Transport: newTransport(0),
	}
}

// NewTransferClient returns the http.Client for bulk file transfers. It
// carries no Client.Timeout: that deadline covers the entire body read and
// would abort a multi-gigabyte FASTQ or genome transfer that is still making
// progress. headerTimeout only bounds the wait for response headers; the body
// read is bounded by the caller's context.
func NewTransferClient(headerTimeout time.Duration) *http.Client {
	if headerTimeout == 0 {
		headerTimeout = DefaultTimeout
	}
	return &http.Client{
		Transport: newTransport(headerTimeout),
	}
}

func newTransport(responseHeaderTimeout time.Duration) *http.Transport {
	return &http.Transport{
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		ResponseHeaderTimeout: responseHeaderTimeout,
	}
}

// Get issues a GET for url and returns the response body. Non-2xx statuses
// are turned into errors so callers never parse an error page.
func Get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request for %s: %w", url, err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request for %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode, Body: string(body)}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body of %s: %w", url, err)
	}
	return body, nil
}

// GetJSON issues a GET for url and decodes the JSON response into v.
func GetJSON(ctx context.Context, client *http.Client, url string, v any) error {
	body, err := Get(ctx, client, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding JSON from %s: %w", url, err)
	}
	return nil
}
