// Package download fetches open-data exports over HTTP with conditional
// requests, retries and rate limiting.
package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/Veraticus/civic-flow/internal/common"
	"github.com/Veraticus/civic-flow/internal/service"
	"golang.org/x/time/rate"
)

// ETagStore persists entity tags between runs.
type ETagStore interface {
	GetETag(ctx context.Context, url string) (string, error)
	SaveETag(ctx context.Context, url, etag string) error
}

// ProgressFunc returns a writer that observes size bytes being written for
// the named file. size is -1 when unknown.
type ProgressFunc func(size int64, name string) io.Writer

// Config configures a Downloader.
type Config struct {
	Dir               string
	UserAgent         string
	Retry             service.RetryOptions
	Timeout           time.Duration
	RequestsPerSecond float64
}

// Result describes the outcome of a Fetch.
type Result struct {
	Path        string
	ETag        string
	Bytes       int64
	NotModified bool
}

// Downloader fetches files into a local directory.
type Downloader struct {
	client   *http.Client
	limiter  *rate.Limiter
	cache    ETagStore
	progress ProgressFunc
	cfg      Config
}

// Option configures optional Downloader behavior.
type Option func(*Downloader)

// WithHTTPClient replaces the default client.
func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) {
		d.client = c
	}
}

// WithProgress reports body bytes as they are written.
func WithProgress(fn ProgressFunc) Option {
	return func(d *Downloader) {
		d.progress = fn
	}
}

// New creates a Downloader writing into cfg.Dir. cache may be nil, in which
// case every fetch is unconditional.
func New(cfg Config, cache ETagStore, opts ...Option) (*Downloader, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("%w: download directory", common.ErrMissingConfig)
	}
	if err := os.MkdirAll(cfg.Dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create download directory: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Minute
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "civic-flow"
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	d := &Downloader{
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, 1),
		cache:   cache,
		cfg:     cfg,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// LocalPath returns where rawURL is stored on disk.
func (d *Downloader) LocalPath(rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", rawURL, err)
	}
	name := path.Base(u.Path)
	if name == "." || name == "/" || name == "" {
		return "", fmt.Errorf("url %q has no file name", rawURL)
	}
	return filepath.Join(d.cfg.Dir, name), nil
}

// Fetch downloads rawURL. When a previous download exists and the server
// answers 304 the local copy is reused and NotModified is set. Rate limits
// and server errors are retried; other client errors fail immediately.
func (d *Downloader) Fetch(ctx context.Context, rawURL string) (*Result, error) {
	dest, err := d.LocalPath(rawURL)
	if err != nil {
		return nil, err
	}

	etag := ""
	if _, statErr := os.Stat(dest); statErr == nil && d.cache != nil {
		if etag, err = d.cache.GetETag(ctx, rawURL); err != nil {
			slog.Warn("failed to read cached etag", "url", rawURL, "error", err)
			etag = ""
		}
	}

	var result *Result
	err = common.WithRetry(ctx, func() error {
		var fetchErr error
		result, fetchErr = d.fetchOnce(ctx, rawURL, dest, etag)
		return fetchErr
	}, d.cfg.Retry)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", common.ErrDownloadFailed, rawURL, err)
	}

	if d.cache != nil && !result.NotModified {
		if err := d.cache.SaveETag(ctx, rawURL, result.ETag); err != nil {
			slog.Warn("failed to save etag", "url", rawURL, "error", err)
		}
	}

	slog.Info("fetched",
		"url", rawURL,
		"path", result.Path,
		"not_modified", result.NotModified,
		"bytes", result.Bytes)
	return result, nil
}

func (d *Downloader) fetchOnce(ctx context.Context, rawURL, dest, etag string) (*Result, error) {
	if err := d.limiter.Wait(ctx); err != nil {
		return nil, common.Permanent(err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, http.NoBody)
	if err != nil {
		return nil, common.Permanent(fmt.Errorf("new request: %w", err))
	}
	req.Header.Set("User-Agent", d.cfg.UserAgent)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return nil, common.Permanent(err)
		}
		return nil, common.Retryable(fmt.Errorf("do request: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	switch {
	case resp.StatusCode == http.StatusNotModified:
		return &Result{Path: dest, ETag: etag, NotModified: true}, nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, fmt.Errorf("status %d: %w", resp.StatusCode, common.ErrRateLimit)
	case resp.StatusCode >= 500:
		return nil, common.Retryable(fmt.Errorf("status %d", resp.StatusCode))
	case resp.StatusCode != http.StatusOK:
		return nil, common.Permanent(fmt.Errorf("status %d", resp.StatusCode))
	}

	n, err := d.writeBody(resp, dest)
	if err != nil {
		return nil, common.Retryable(err)
	}

	return &Result{Path: dest, ETag: resp.Header.Get("ETag"), Bytes: n}, nil
}

// writeBody streams the body to a temp file beside dest and renames it into
// place so a failed transfer never truncates the previous copy.
func (d *Downloader) writeBody(resp *http.Response, dest string) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".*.part")
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	var w io.Writer = tmp
	if d.progress != nil {
		w = io.MultiWriter(tmp, d.progress(resp.ContentLength, filepath.Base(dest)))
	}

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		_ = tmp.Close()
		return n, fmt.Errorf("read body: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return n, fmt.Errorf("rename into place: %w", err)
	}
	return n, nil
}
