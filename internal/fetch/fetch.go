// Package fetch downloads ordinance documents from municipal sources over
// HTTP and FTP, with per-host rate limiting and retry.
package fetch

import (
	"context"
	"io"
	"net/url"
	"os"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/zoning-cli/internal/config"
)

// Fetcher retrieves a document by URL and returns its body. The caller must
// close the returned reader.
type Fetcher interface {
	Download(ctx context.Context, rawURL string) (io.ReadCloser, error)
	DownloadToFile(ctx context.Context, rawURL, path string) (int64, error)
}

// Resolver picks a Fetcher by URL scheme. Bare paths and file:// URLs read
// from the local filesystem.
type Resolver struct {
	http *HTTPFetcher
	ftp  *FTPFetcher
}

// NewResolver builds a Resolver from fetch configuration.
func NewResolver(cfg config.FetchConfig) *Resolver {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	return &Resolver{
		http: NewHTTPFetcher(HTTPOptions{
			UserAgent:  cfg.UserAgent,
			Timeout:    timeout,
			MaxRetries: cfg.MaxRetries,
			RatePerSec: cfg.RatePerSec,
		}),
		ftp: NewFTPFetcher(FTPOptions{Timeout: timeout}),
	}
}

// For returns the Fetcher responsible for the given URL.
func (r *Resolver) For(rawURL string) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: parse url %s", rawURL)
	}
	switch u.Scheme {
	case "http", "https":
		return r.http, nil
	case "ftp":
		return r.ftp, nil
	case "", "file":
		return localFetcher{}, nil
	default:
		return nil, eris.Errorf("fetch: unsupported scheme %q", u.Scheme)
	}
}

// Download resolves the URL's fetcher and retrieves the document.
func (r *Resolver) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	f, err := r.For(rawURL)
	if err != nil {
		return nil, err
	}
	return f.Download(ctx, rawURL)
}

// localFetcher serves already-downloaded documents straight from disk.
type localFetcher struct{}

func (localFetcher) Download(_ context.Context, rawURL string) (io.ReadCloser, error) {
	path := rawURL
	if u, err := url.Parse(rawURL); err == nil && u.Scheme == "file" {
		path = u.Path
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: open local file %s", path)
	}
	return f, nil
}

func (l localFetcher) DownloadToFile(ctx context.Context, rawURL, path string) (int64, error) {
	rc, err := l.Download(ctx, rawURL)
	if err != nil {
		return 0, err
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(path)
	if err != nil {
		return 0, eris.Wrap(err, "fetch: create file")
	}
	defer out.Close() //nolint:errcheck

	n, err := io.Copy(out, rc)
	if err != nil {
		return n, eris.Wrap(err, "fetch: copy file")
	}
	return n, nil
}
