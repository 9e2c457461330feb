// Package ingest pulls reference data drops from remote sources and
// parses the spreadsheet exports ERP systems produce. JSON bundles are
// refdata's job; ingest covers everything upstream of them: fetching
// the files and converting CSV/XLSX exports into reference records.
package ingest

import (
	"context"
	"io"
	"net/url"

	"github.com/rotisserie/eris"
)

// Fetcher downloads one remote file.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL and writes it to the given path.
	// Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// ForURL returns the fetcher matching the URL scheme. Supported
// schemes are http, https, and ftp.
func ForURL(rawURL string) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "ingest: parse url %s", rawURL)
	}
	switch u.Scheme {
	case "http", "https":
		return NewHTTPFetcher(HTTPOptions{}), nil
	case "ftp":
		return NewFTPFetcher(FTPOptions{}), nil
	default:
		return nil, eris.Errorf("ingest: unsupported scheme %q", u.Scheme)
	}
}
