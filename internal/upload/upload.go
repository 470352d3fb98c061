// Package upload mirrors a finished output directory to object storage via
// a pre-signed PUT URL. The directory is shipped as a single tar.gz archive
// so one URL covers the whole run.
package upload

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"

	"github.com/lupphes/biodbcore/internal/ctxlog"
)

// Mirror archives dir and PUTs the archive to uploadURL. The archive is
// staged as a temporary file next to dir so Content-Length can be set; some
// object stores reject chunked pre-signed uploads.
func Mirror(ctx context.Context, client *http.Client, dir, uploadURL string) error {
	logger := ctxlog.FromContext(ctx).With("dir", dir)

	archive, err := os.CreateTemp(filepath.Dir(dir), ".biodbcore-upload-*.tar.gz")
	if err != nil {
		return fmt.Errorf("creating staging archive: %w", err)
	}
	defer os.Remove(archive.Name())
	defer archive.Close()

	if err := writeArchive(archive, dir); err != nil {
		return err
	}

	stat, err := archive.Stat()
	if err != nil {
		return fmt.Errorf("getting archive stats: %w", err)
	}
	if _, err := archive.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("rewinding archive: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, uploadURL, archive)
	if err != nil {
		return fmt.Errorf("creating upload request: %w", err)
	}
	req.Header.Set("Content-Type", "application/gzip")
	req.ContentLength = stat.Size()

	logger.Info("Uploading results archive.", "size", stat.Size())

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("executing upload request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("upload failed with status: %s", resp.Status)
	}

	logger.Info("Results archive uploaded.", "status", resp.Status)
	return nil
}

// writeArchive streams dir into w as a tar.gz, with paths relative to dir.
func writeArchive(w io.Writer, dir string) error {
	gz := gzip.NewWriter(w)
	tw := tar.NewWriter(gz)

	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		hdr, err := tar.FileInfoHeader(info, "")
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(tw, f)
		f.Close()
		return err
	})
	if err != nil {
		return fmt.Errorf("archiving %q: %w", dir, err)
	}

	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalizing tar stream: %w", err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("finalizing gzip stream: %w", err)
	}
	return nil
}
