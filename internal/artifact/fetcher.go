// Package artifact retrieves serialized model artifacts from Google Drive,
// plain URLs or the local filesystem.
package artifact

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"forest-cover/internal/common"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
)

var (
	// ErrMarkupResponse means the server answered with a web page instead of
	// a model, e.g. a sign-in, quota or virus-scan warning page.
	ErrMarkupResponse = errors.New("response is markup, not a model artifact")
	ErrEmptyArtifact  = errors.New("artifact is empty")
)

// StatusError represents a non-2xx HTTP response.
type StatusError struct {
	Code int
	Body string // first 512 bytes
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("HTTP %d", e.Code)
	}
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.Body)
}

// Cache stores downloaded artifacts across restarts.
type Cache interface {
	GetArtifact(key string) ([]byte, bool, error)
	PutArtifact(key string, data []byte) error
	DeleteArtifact(key string) error
}

// AcceptFunc inspects candidate artifact bytes. Only bytes it accepts are
// returned from or written to the cache.
type AcceptFunc func(data []byte) error

// MetricsInterface defines metrics methods needed by the fetcher
type MetricsInterface interface {
	ArtifactFetchAttemptsInc()
	ArtifactCacheHitsInc()
	ArtifactSizeSet(float64)
}

// Config controls the HTTP side of a Fetcher.
type Config struct {
	DriveBaseURL string
	Timeout      time.Duration
	Retries      int
	RetryWait    time.Duration
}

// Source identifies one artifact.
type Source struct {
	Kind     string // drive, url or file
	Location string // file id, URL or path
}

// Key is the cache key for s.
func (s Source) Key() string { return s.Kind + ":" + s.Location }

func (s Source) String() string { return s.Key() }

// Fetcher downloads artifacts with retry and optional caching.
type Fetcher struct {
	rest     *resty.Client
	driveURL string
	cache    Cache
	metrics  MetricsInterface
}

// NewFetcher creates a fetcher. cache and metrics may be nil.
func NewFetcher(cfg Config, cache Cache, metrics MetricsInterface) *Fetcher {
	r := resty.New()
	if cfg.Timeout > 0 {
		r.SetTimeout(cfg.Timeout)
	} else {
		r.SetTimeout(60 * time.Second)
	}
	r.SetRetryCount(cfg.Retries)
	if cfg.RetryWait > 0 {
		r.SetRetryWaitTime(cfg.RetryWait)
		r.SetRetryMaxWaitTime(8 * cfg.RetryWait)
	}
	r.AddRetryCondition(func(resp *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		code := resp.StatusCode()
		return code == 429 || code >= 500
	})
	r.OnBeforeRequest(func(_ *resty.Client, _ *resty.Request) error {
		if metrics != nil {
			metrics.ArtifactFetchAttemptsInc()
		}
		return nil
	})

	driveURL := cfg.DriveBaseURL
	if driveURL == "" {
		driveURL = common.DefaultDriveBaseURL
	}

	return &Fetcher{
		rest:     r,
		driveURL: driveURL,
		cache:    cache,
		metrics:  metrics,
	}
}

// Fetch returns the artifact bytes for src, consulting the cache first for
// remote kinds. accept, when non-nil, must approve the bytes before they are
// returned; a rejected cache entry is dropped and downloaded again, and a
// rejected download is never cached.
func (f *Fetcher) Fetch(ctx context.Context, src Source, accept AcceptFunc) ([]byte, error) {
	if accept == nil {
		accept = func([]byte) error { return nil }
	}

	if src.Kind == common.SourceFile {
		data, err := ReadFile(src.Location)
		if err == nil {
			err = accept(data)
		}
		if err != nil {
			return nil, err
		}
		return f.observe(data), nil
	}

	key := src.Key()
	if data, ok := f.cached(key, accept); ok {
		return f.observe(data), nil
	}

	var data []byte
	var err error
	switch src.Kind {
	case common.SourceDrive:
		data, err = f.FetchDrive(ctx, src.Location)
	case common.SourceURL:
		data, err = f.FetchURL(ctx, src.Location)
	default:
		return nil, fmt.Errorf("unsupported artifact source %q", src.Kind)
	}
	if err != nil {
		return nil, err
	}
	if err := accept(data); err != nil {
		return nil, err
	}

	if f.cache != nil {
		if err := f.cache.PutArtifact(key, data); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("artifact cache write failed")
		}
	}
	return f.observe(data), nil
}

// cached returns the cache entry for key if accept approves it. A rejected
// entry is deleted.
func (f *Fetcher) cached(key string, accept AcceptFunc) ([]byte, bool) {
	if f.cache == nil {
		return nil, false
	}
	data, ok, err := f.cache.GetArtifact(key)
	if err != nil {
		log.Warn().Err(err).Str("key", key).Msg("artifact cache read failed")
		return nil, false
	}
	if !ok || len(data) == 0 {
		return nil, false
	}

	if err := accept(data); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("cached artifact rejected, downloading again")
		if err := f.cache.DeleteArtifact(key); err != nil {
			log.Warn().Err(err).Str("key", key).Msg("artifact cache delete failed")
		}
		return nil, false
	}

	if f.metrics != nil {
		f.metrics.ArtifactCacheHitsInc()
	}
	log.Info().Str("key", key).Int("bytes", len(data)).Msg("using cached artifact")
	return data, true
}

// FetchURL downloads an artifact from a plain URL.
func (f *Fetcher) FetchURL(ctx context.Context, url string) ([]byte, error) {
	resp, err := f.rest.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return accept(resp)
}

// ReadFile reads an artifact from disk.
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrEmptyArtifact)
	}
	return data, nil
}

func (f *Fetcher) observe(data []byte) []byte {
	if f.metrics != nil {
		f.metrics.ArtifactSizeSet(float64(len(data)))
	}
	return data
}

// accept turns a final response into artifact bytes or an error.
func accept(resp *resty.Response) ([]byte, error) {
	body := resp.Body()
	if code := resp.StatusCode(); code < 200 || code >= 300 {
		return nil, &StatusError{Code: resp.StatusCode(), Body: truncate(body, 512)}
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, ErrEmptyArtifact
	}
	if LooksLikeMarkup(body) || strings.HasPrefix(resp.Header().Get("Content-Type"), "text/html") {
		if mentionsQuota(body) {
			return nil, fmt.Errorf("%w: download quota exceeded", ErrMarkupResponse)
		}
		return nil, ErrMarkupResponse
	}
	return body, nil
}

// LooksLikeMarkup reports whether data starts like an HTML or XML document.
func LooksLikeMarkup(data []byte) bool {
	head := data
	if len(head) > 512 {
		head = head[:512]
	}
	head = bytes.TrimPrefix(head, []byte("\xef\xbb\xbf"))
	s := strings.ToLower(strings.TrimSpace(string(head)))
	if !strings.HasPrefix(s, "<") {
		return false
	}
	for _, marker := range []string{"<!doctype html", "<html", "<head", "<body", "<?xml"} {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}

func mentionsQuota(body []byte) bool {
	return bytes.Contains(bytes.ToLower(body), []byte("quota exceeded"))
}

func truncate(b []byte, n int) string {
	if len(b) > n {
		b = b[:n]
	}
	return string(b)
}
