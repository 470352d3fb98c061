package fetch

import "fmt"

// StatusError reports a non-2xx HTTP response from an upstream repository.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// ChecksumError reports a downloaded file whose MD5 digest does not match
// the digest advertised by the repository.
type ChecksumError struct {
	Path string
	Want string
	Got  string
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("md5 mismatch for %s: want %s, got %s", e.Path, e.Want, e.Got)
}
