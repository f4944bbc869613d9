package ports

import (
	"context"

	"github.com/bft-labs/rescript/internal/domain"
)

// Fetcher retrieves a remote file to a local path.
// Implementations retry transient failures and verify the byte count.
type Fetcher interface {
	// Fetch downloads url into dst and returns what was retrieved.
	Fetch(ctx context.Context, url, dst string) (domain.Download, error)

	// GetJSON performs a GET request and decodes the JSON body into v.
	GetJSON(ctx context.Context, url string, v any) error

	// GetBody performs a GET request and returns the full body.
	GetBody(ctx context.Context, url string) ([]byte, error)
}

// DownloadRecorder is notified of every completed download.
type DownloadRecorder interface {
	OnDownload(d domain.Download)
}
