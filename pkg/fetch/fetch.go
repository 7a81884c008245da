// Package fetch retrieves rule list documents over HTTP or from disk.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"blockagg/pkg/filtering"
)

const (
	defaultHTTPTimeout = 30 * time.Second
	defaultRetryDelay  = 2 * time.Second
	defaultMaxDelay    = 30 * time.Second
	defaultUserAgent   = "blockagg"
)

// ErrSourceUnreachable wraps every failure to obtain a source document.
var ErrSourceUnreachable = errors.New("source unreachable")

// Fetcher returns the raw content of a source.
type Fetcher interface {
	Fetch(ctx context.Context, source filtering.Source) ([]byte, error)
}

// Options configures an HTTPFetcher.
type Options struct {
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
	MaxDelay   time.Duration
	UserAgent  string
	CacheDir   string
	Client     *http.Client
	Log        *slog.Logger
}

// HTTPFetcher downloads http(s) sources with retries and falls back to a
// cached copy when every attempt fails. Other locations are read from disk.
type HTTPFetcher struct {
	client     *http.Client
	retries    int
	retryDelay time.Duration
	maxDelay   time.Duration
	userAgent  string
	cacheDir   string
	log        *slog.Logger
}

// NewHTTPFetcher constructs an HTTPFetcher.
func NewHTTPFetcher(opts Options) *HTTPFetcher {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultHTTPTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	f := &HTTPFetcher{
		client:     client,
		retries:    max(opts.Retries, 0),
		retryDelay: opts.RetryDelay,
		maxDelay:   opts.MaxDelay,
		userAgent:  opts.UserAgent,
		cacheDir:   EnsureCacheDir(opts.CacheDir, log),
		log:        log,
	}
	if f.retryDelay <= 0 {
		f.retryDelay = defaultRetryDelay
	}
	if f.maxDelay <= 0 {
		f.maxDelay = defaultMaxDelay
	}
	if f.userAgent == "" {
		f.userAgent = defaultUserAgent
	}
	return f
}

// Fetch returns the document behind source.Location.
func (f *HTTPFetcher) Fetch(ctx context.Context, source filtering.Source) ([]byte, error) {
	if !IsURL(source.Location) {
		data, err := os.ReadFile(source.Location)
		if err != nil {
			return nil, fmt.Errorf("%w: read file: %w", ErrSourceUnreachable, err)
		}
		return data, nil
	}

	data, err := f.downloadWithRetry(ctx, source)
	if err == nil {
		if f.cacheDir != "" {
			if err := writeCache(f.cacheDir, source, data); err != nil {
				f.log.Warn("failed to write cache", "list", source.ID, "error", err)
			}
		}
		return data, nil
	}

	if f.cacheDir == "" {
		return nil, fmt.Errorf("%w: %w", ErrSourceUnreachable, err)
	}
	cached, cacheErr := readCache(f.cacheDir, source)
	if cacheErr != nil {
		return nil, fmt.Errorf("%w: download failed: %w; cache error: %s", ErrSourceUnreachable, err, cacheErr.Error())
	}
	f.log.Warn("download failed, using cached list", "list", source.ID, "error", err)
	return cached, nil
}

func (f *HTTPFetcher) downloadWithRetry(ctx context.Context, source filtering.Source) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= f.retries; attempt++ {
		if attempt > 0 {
			delay := calcBackoff(f.retryDelay, f.maxDelay, attempt)
			f.log.Debug("retrying download", "list", source.ID, "attempt", attempt+1, "backoff", delay, "error", lastErr)
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
		}

		data, err := f.download(ctx, source)
		if err == nil {
			return data, nil
		}
		lastErr = err

		var statusErr *StatusError
		if errors.As(err, &statusErr) && !statusErr.Temporary() {
			break
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, lastErr
}

func (f *HTTPFetcher) download(ctx context.Context, source filtering.Source) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source.Location, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", f.userAgent)
	applyAuth(req, source.Auth)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			f.log.Warn("failed to close rule list response body", "error", err)
		}
	}()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, &StatusError{Code: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

func applyAuth(req *http.Request, auth filtering.AuthConfig) {
	if auth.Username != "" || auth.Password != "" {
		req.SetBasicAuth(auth.Username, auth.Password)
	}
	if auth.Token != "" {
		header := auth.Header
		if header == "" {
			header = "Authorization"
		}
		scheme := auth.Scheme
		if scheme == "" {
			scheme = "Bearer"
		}
		req.Header.Set(header, strings.TrimSpace(scheme+" "+auth.Token))
	}
}

// IsURL reports whether location is fetched over HTTP.
func IsURL(location string) bool {
	return strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://")
}
