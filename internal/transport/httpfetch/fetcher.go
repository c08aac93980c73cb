// Package httpfetch probes and downloads remote images referenced by document URLs.
package httpfetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mmdex/internal/domain"
	"github.com/kailas-cloud/mmdex/internal/metrics"
)

// Defaults for remote image handling.
const (
	DefaultMaxBytes = 5 << 20
	DefaultTimeout  = 10 * time.Second
)

// DefaultAllowedTypes is the image content-type allow-list.
var DefaultAllowedTypes = []string{"image/jpeg", "image/png"}

// Config holds fetcher settings. Zero values fall back to the defaults above.
type Config struct {
	MaxBytes     int64
	AllowedTypes []string
	Timeout      time.Duration
	UserAgent    string
}

// Fetcher performs metadata probes (HEAD) and bounded downloads (GET).
type Fetcher struct {
	client    *http.Client
	maxBytes  int64
	allowed   map[string]struct{}
	userAgent string
	logger    *zap.Logger
}

// New creates a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	return NewWithClient(cfg, nil, logger)
}

// NewWithClient creates a Fetcher with a caller-supplied HTTP client (tests, custom transports).
func NewWithClient(cfg Config, client *http.Client, logger *zap.Logger) *Fetcher {
	if cfg.MaxBytes <= 0 {
		cfg.MaxBytes = DefaultMaxBytes
	}
	if len(cfg.AllowedTypes) == 0 {
		cfg.AllowedTypes = DefaultAllowedTypes
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	allowed := make(map[string]struct{}, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		allowed[strings.ToLower(t)] = struct{}{}
	}
	return &Fetcher{
		client:    client,
		maxBytes:  cfg.MaxBytes,
		allowed:   allowed,
		userAgent: cfg.UserAgent,
		logger:    logger,
	}
}

// Probe checks a URL with a HEAD request without downloading the body.
// Rejections (status, type, size) wrap domain.ErrUnsupportedMedia; transport failures wrap domain.ErrNetworkFetch.
func (f *Fetcher) Probe(ctx context.Context, url string) error {
	resp, err := f.do(ctx, http.MethodHead, url)
	if err != nil {
		metrics.ImageFetchTotal.WithLabelValues(http.MethodHead, "error").Inc()
		return err
	}
	_ = resp.Body.Close()

	if reason := f.reject(resp); reason != "" {
		metrics.ImageFetchTotal.WithLabelValues(http.MethodHead, "rejected").Inc()
		return domain.UnsupportedMediaf("%s", reason)
	}
	metrics.ImageFetchTotal.WithLabelValues(http.MethodHead, "ok").Inc()
	return nil
}

// Download fetches the image body, enforcing the same allow-list and size cap as Probe.
// Every failure wraps domain.ErrNetworkFetch: a remote resource may change between
// attempts, so the ingestion worker leaves such messages to queue redelivery.
func (f *Fetcher) Download(ctx context.Context, url string) (domain.Image, error) {
	resp, err := f.do(ctx, http.MethodGet, url)
	if err != nil {
		metrics.ImageFetchTotal.WithLabelValues(http.MethodGet, "error").Inc()
		return domain.Image{}, err
	}
	defer func() { _ = resp.Body.Close() }()

	if reason := f.reject(resp); reason != "" {
		metrics.ImageFetchTotal.WithLabelValues(http.MethodGet, "rejected").Inc()
		return domain.Image{}, fmt.Errorf("%s: %w", reason, domain.ErrNetworkFetch)
	}

	// Content-Length may be absent or wrong; read one byte past the cap to detect overflow.
	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		metrics.ImageFetchTotal.WithLabelValues(http.MethodGet, "error").Inc()
		return domain.Image{}, fmt.Errorf("read body of %s: %w: %w", url, domain.ErrNetworkFetch, err)
	}
	if int64(len(data)) > f.maxBytes {
		metrics.ImageFetchTotal.WithLabelValues(http.MethodGet, "rejected").Inc()
		return domain.Image{}, fmt.Errorf("%s: %w", sizeMessage(f.maxBytes), domain.ErrNetworkFetch)
	}

	metrics.ImageFetchTotal.WithLabelValues(http.MethodGet, "ok").Inc()
	return domain.Image{ContentType: mediaType(resp.Header.Get("Content-Type")), Data: data}, nil
}

func (f *Fetcher) do(ctx context.Context, method, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, http.NoBody)
	if err != nil {
		return nil, domain.Validationf("invalid url %q", url)
	}
	if f.userAgent != "" {
		req.Header.Set("User-Agent", f.userAgent)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		f.logger.Debug("image fetch failed",
			zap.String("method", method),
			zap.String("url", url),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%s %s: %w: %w", method, url, domain.ErrNetworkFetch, err)
	}
	return resp, nil
}

// reject applies status, content-type and declared-size rules to a response.
// It returns the user-facing rejection reason, or "" when the response is acceptable.
func (f *Fetcher) reject(resp *http.Response) string {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Sprintf("Fetch error: Received %d status.", resp.StatusCode)
	}
	if !f.Allowed(resp.Header.Get("Content-Type")) {
		return "Invalid file type. Only JPEG and PNG images are allowed."
	}
	if resp.ContentLength > f.maxBytes {
		return sizeMessage(f.maxBytes)
	}
	return ""
}

// Allowed reports whether contentType is on the allow-list.
func (f *Fetcher) Allowed(contentType string) bool {
	_, ok := f.allowed[mediaType(contentType)]
	return ok
}

// MaxBytes returns the configured size cap.
func (f *Fetcher) MaxBytes() int64 { return f.maxBytes }

func mediaType(header string) string {
	mt, _, err := mime.ParseMediaType(header)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(header))
	}
	return strings.ToLower(mt)
}

func sizeMessage(limit int64) string {
	return fmt.Sprintf("File size exceeds the limit of %d MB.", limit>>20)
}
