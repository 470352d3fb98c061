package fetch

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/lupphes/biodbcore/internal/ctxlog"
)

// DownloadOptions control how a single file download behaves.
type DownloadOptions struct {
	// MD5 is the hex digest the repository advertises for the file. Empty
	// means no verification.
	MD5 string
	// Size is the advertised byte size, used for the skip-if-present check.
	// Zero means unknown.
	Size int64
	// Retries is the number of additional attempts after a failed transfer.
	Retries int
}

// retryBackoff is the pause between download attempts.
var retryBackoff = 2 * time.Second

// DownloadFile streams url into dest. The file is written to a ".part"
// sibling first and renamed into place only after the transfer (and MD5
// verification, when an expected digest is given) succeeded, so an aborted
// run never leaves a truncated file that looks complete.
//
// When dest already exists with the advertised size the download is skipped
// and (dest, nil) is returned.
func DownloadFile(ctx context.Context, client *http.Client, url, dest string, opts DownloadOptions) (string, error) {
	logger := ctxlog.FromContext(ctx)

	if opts.Size > 0 {
		if info, err := os.Stat(dest); err == nil && info.Size() == opts.Size {
			logger.Debug("File already present, skipping download.", "path", dest, "size", info.Size())
			return dest, nil
		}
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("creating directory for %s: %w", dest, err)
	}

	var lastErr error
	for attempt := 0; attempt <= opts.Retries; attempt++ {
		if attempt > 0 {
			logger.Warn("Retrying download.", "url", url, "attempt", attempt, "error", lastErr)
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(retryBackoff):
			}
		}
		if lastErr = downloadOnce(ctx, client, url, dest, opts); lastErr == nil {
			return dest, nil
		}
		if ctx.Err() != nil {
			return "", lastErr
		}
	}
	return "", fmt.Errorf("downloading %s: %w", url, lastErr)
}

func downloadOnce(ctx context.Context, client *http.Client, url, dest string, opts DownloadOptions) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: url, StatusCode: resp.StatusCode}
	}

	part := dest + ".part"
	out, err := os.Create(part)
	if err != nil {
		return fmt.Errorf("creating %s: %w", part, err)
	}

	hash := md5.New()
	_, err = io.Copy(io.MultiWriter(out, hash), resp.Body)
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(part)
		return fmt.Errorf("writing %s: %w", part, err)
	}

	if opts.MD5 != "" {
		got := hex.EncodeToString(hash.Sum(nil))
		if got != opts.MD5 {
			os.Remove(part)
			return &ChecksumError{Path: dest, Want: opts.MD5, Got: got}
		}
	}

	if err := os.Rename(part, dest); err != nil {
		os.Remove(part)
		return fmt.Errorf("renaming %s into place: %w", part, err)
	}
	return nil
}
