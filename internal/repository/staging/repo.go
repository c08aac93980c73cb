package staging

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kailas-cloud/mmdex/internal/db"
	"github.com/kailas-cloud/mmdex/internal/domain"
	"github.com/kailas-cloud/mmdex/internal/domain/search/request"
	"github.com/kailas-cloud/mmdex/internal/metrics"
)

// ErrNotFound is returned when a staged blob expired or was already released.
var ErrNotFound = errors.New("staged blob not found")

const (
	maxFilenameLength = 128
	defaultTTL        = 5 * time.Minute
)

// store is the consumer interface for staged blobs (ISP).
type store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetWithTTL(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, key string) error
}

// Config configures blob staging.
type Config struct {
	Prefix string
	// PublicBaseURL is where GET /staging/{id}/{name} is reachable by the fetcher.
	PublicBaseURL string
	// TTL expires blobs left behind by a crashed request.
	TTL time.Duration
}

// Repo stages query images in Redis under request-unique keys.
type Repo struct {
	store store
	cfg   Config
	newID func() string
}

// New creates a staging repository.
func New(s store, cfg Config) *Repo {
	if cfg.Prefix == "" {
		cfg.Prefix = domain.KeyPrefix
	}
	if cfg.TTL <= 0 {
		cfg.TTL = defaultTTL
	}
	cfg.PublicBaseURL = strings.TrimSuffix(cfg.PublicBaseURL, "/")
	return &Repo{store: s, cfg: cfg, newID: uuid.NewString}
}

// Stage uploads the image and returns a reference dereferenceable like any image URL.
func (r *Repo) Stage(ctx context.Context, up request.Upload) (request.Staged, error) {
	id := r.newID()
	name := sanitizeFilename(up.Filename)
	key := r.key(id, name)

	err := r.store.SetWithTTL(ctx, key, encodeBlob(up.ContentType, up.Data), r.cfg.TTL)
	metrics.StagingOperationsTotal.WithLabelValues("stage", metrics.StatusLabel(err)).Inc()
	if err != nil {
		return request.Staged{}, fmt.Errorf("stage %s: %w: %w", key, domain.ErrStorage, err)
	}
	return request.Staged{Key: key, URL: r.cfg.PublicBaseURL + "/staging/" + id + "/" + name}, nil
}

// Unstage deletes the blob. Deleting an expired blob is not an error.
func (r *Repo) Unstage(ctx context.Context, ref request.Staged) error {
	err := r.store.Del(ctx, ref.Key)
	metrics.StagingOperationsTotal.WithLabelValues("unstage", metrics.StatusLabel(err)).Inc()
	if err != nil {
		return fmt.Errorf("unstage %s: %w: %w", ref.Key, domain.ErrStorage, err)
	}
	return nil
}

// Open returns the content type and bytes of a staged blob.
func (r *Repo) Open(ctx context.Context, id, name string) (string, []byte, error) {
	if _, err := uuid.Parse(id); err != nil {
		return "", nil, ErrNotFound
	}
	if name != sanitizeFilename(name) {
		return "", nil, ErrNotFound
	}
	raw, err := r.store.Get(ctx, r.key(id, name))
	if err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return "", nil, ErrNotFound
		}
		return "", nil, fmt.Errorf("open staged blob: %w: %w", domain.ErrStorage, err)
	}
	ct, data, ok := decodeBlob(raw)
	if !ok {
		return "", nil, fmt.Errorf("corrupt staged blob %s: %w", id, domain.ErrStorage)
	}
	return ct, data, nil
}

func (r *Repo) key(id, name string) string {
	return r.cfg.Prefix + "staging:" + id + "/" + name
}

// encodeBlob stores the content type on the first line, followed by the raw bytes.
func encodeBlob(contentType string, data []byte) []byte {
	buf := make([]byte, 0, len(contentType)+1+len(data))
	buf = append(buf, contentType...)
	buf = append(buf, '\n')
	return append(buf, data...)
}

func decodeBlob(raw []byte) (string, []byte, bool) {
	i := bytes.IndexByte(raw, '\n')
	if i < 0 {
		return "", nil, false
	}
	return string(raw[:i]), raw[i+1:], true
}

// sanitizeFilename keeps the base name and replaces anything outside [A-Za-z0-9._-].
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, "\\", "/"))
	var b strings.Builder
	for _, c := range name {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '.', c == '-', c == '_':
			b.WriteRune(c)
		default:
			b.WriteByte('_')
		}
	}
	out := strings.TrimLeft(b.String(), ".")
	if len(out) > maxFilenameLength {
		out = out[len(out)-maxFilenameLength:]
	}
	if out == "" {
		return "upload"
	}
	return out
}
