package http

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/bft-labs/rescript/internal/domain"
	"github.com/bft-labs/rescript/internal/ports"
)

// DefaultRetries is the number of attempts made for every request.
const DefaultRetries = 10

// Config controls retry behaviour of the Downloader.
type Config struct {
	Retries        int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
	UserAgent      string
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: server returned %d: %s", e.URL, e.Code, e.Body)
}

// Is makes a 404 match domain.ErrNotFound.
func (e *StatusError) Is(target error) bool {
	return target == domain.ErrNotFound && e.Code == http.StatusNotFound
}

// Downloader implements ports.Fetcher over HTTP.
type Downloader struct {
	client   ports.HTTPClient
	logger   ports.Logger
	cfg      Config
	recorder ports.DownloadRecorder
}

// NewDownloader creates a Downloader. A nil client uses http.DefaultClient.
func NewDownloader(client ports.HTTPClient, logger ports.Logger, cfg Config) *Downloader {
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.Retries <= 0 {
		cfg.Retries = DefaultRetries
	}
	if cfg.BackoffMax <= 0 {
		cfg.BackoffMax = DefaultBackoffMax
	}
	return &Downloader{client: client, logger: logger, cfg: cfg}
}

// SetRecorder registers a recorder notified after every successful Fetch.
func (d *Downloader) SetRecorder(r ports.DownloadRecorder) {
	d.recorder = r
}

// Fetch downloads url into dst, retrying failed or short transfers.
func (d *Downloader) Fetch(ctx context.Context, url, dst string) (domain.Download, error) {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return domain.Download{}, err
	}

	var n int64
	var sum string
	attempts, err := d.retry(ctx, url, func(resp *http.Response) error {
		var ferr error
		n, sum, ferr = writeBody(resp, dst)
		return ferr
	})
	if err != nil {
		return domain.Download{}, err
	}

	dl := domain.Download{
		URL:       url,
		Bytes:     n,
		SHA256:    sum,
		Attempts:  attempts,
		FetchedAt: time.Now().UTC(),
	}
	d.logger.Info("downloaded", ports.String("url", url), ports.Int64("bytes", n), ports.Int("attempts", attempts))
	if d.recorder != nil {
		d.recorder.OnDownload(dl)
	}
	return dl, nil
}

// GetBody performs a GET request with retries and returns the body.
func (d *Downloader) GetBody(ctx context.Context, url string) ([]byte, error) {
	var body []byte
	_, err := d.retry(ctx, url, func(resp *http.Response) error {
		b, rerr := io.ReadAll(resp.Body)
		if rerr != nil {
			return fmt.Errorf("%w: %v", domain.ErrIncompleteDownload, rerr)
		}
		body = b
		return nil
	})
	return body, err
}

// GetJSON performs a GET request with retries and decodes the JSON body.
func (d *Downloader) GetJSON(ctx context.Context, url string, v any) error {
	body, err := d.GetBody(ctx, url)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %s: %w", url, err)
	}
	return nil
}

// retry runs one request per attempt until handle succeeds, a permanent error
// occurs or the attempts are exhausted. It returns the number of attempts.
func (d *Downloader) retry(ctx context.Context, url string, handle func(*http.Response) error) (int, error) {
	b := newBackoff(d.cfg.BackoffInitial, d.cfg.BackoffMax)

	var lastErr error
	for attempt := 1; attempt <= d.cfg.Retries; attempt++ {
		lastErr = d.once(ctx, url, handle)
		if lastErr == nil {
			return attempt, nil
		}
		if ctx.Err() != nil {
			return attempt, ctx.Err()
		}
		if !retryable(lastErr) {
			return attempt, lastErr
		}
		d.logger.Warn("request failed, retrying",
			ports.String("url", url),
			ports.Int("attempt", attempt),
			ports.Err(lastErr),
		)
		if attempt < d.cfg.Retries {
			if err := b.Wait(ctx); err != nil {
				return attempt, err
			}
		}
	}
	return d.cfg.Retries, fmt.Errorf("unable to retrieve %s after %d attempts: %w", url, d.cfg.Retries, lastErr)
}

func (d *Downloader) once(ctx context.Context, url string, handle func(*http.Response) error) error {
	if g := ports.RequestGateFrom(ctx); g != nil {
		if err := g.Wait(ctx); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return &permanentError{err: fmt.Errorf("create request: %w", err)}
	}
	if d.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", d.cfg.UserAgent)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{URL: url, Code: resp.StatusCode, Body: string(body)}
	}
	return handle(resp)
}

// writeBody streams the response into dst and verifies the announced length.
func writeBody(resp *http.Response, dst string) (int64, string, error) {
	f, err := os.Create(dst)
	if err != nil {
		return 0, "", &permanentError{err: err}
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(f, h), resp.Body)
	if err != nil {
		return n, "", fmt.Errorf("%w: read %d bytes: %v", domain.ErrIncompleteDownload, n, err)
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return n, "", fmt.Errorf("%w: got %d of %d bytes", domain.ErrIncompleteDownload, n, resp.ContentLength)
	}
	if err := f.Sync(); err != nil {
		return n, "", &permanentError{err: err}
	}
	return n, hex.EncodeToString(h.Sum(nil)), nil
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// retryable reports whether a failed attempt should be retried.
// Client errors other than timeouts and rate limits are permanent.
func retryable(err error) bool {
	var pe *permanentError
	if errors.As(err, &pe) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		if se.Code == http.StatusRequestTimeout || se.Code == http.StatusTooManyRequests {
			return true
		}
		return se.Code >= 500
	}
	return true
}

var _ ports.Fetcher = (*Downloader)(nil)
