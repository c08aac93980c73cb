package document

import (
	"fmt"
	"maps"
	"strings"
	"time"

	"github.com/kailas-cloud/mmdex/internal/domain"
)

// Field limits keep the (url, description) unique index entry inside a btree page.
const (
	MaxURLLength         = 1024
	MaxDescriptionLength = 1024
)

// Document is the persisted document aggregate (immutable value object).
type Document struct {
	id          int64
	url         *string
	description *string
	metadata    map[string]any
	embedding   []float32
	createdAt   time.Time
}

// New validates and creates a Document ready for persistence.
// At least one of url and description must be present. The id is assigned by the store.
func New(url, description *string, metadata map[string]any, embedding []float32) (Document, error) {
	c := Candidate{URL: url, Description: description, Metadata: metadata}
	if err := c.Validate(); err != nil {
		return Document{}, err
	}
	if len(embedding) == 0 {
		return Document{}, fmt.Errorf("embedding is required")
	}
	return Document{
		url:         cloneString(url),
		description: cloneString(description),
		metadata:    maps.Clone(metadata),
		embedding:   embedding,
	}, nil
}

// Reconstruct creates a Document without validation (storage hydration).
func Reconstruct(
	id int64, url, description *string, metadata map[string]any,
	embedding []float32, createdAt time.Time,
) Document {
	return Document{
		id: id, url: url, description: description, metadata: metadata,
		embedding: embedding, createdAt: createdAt,
	}
}

// ID returns the store-assigned identifier.
func (d *Document) ID() int64 { return d.id }

// URL returns the image URL, nil when absent.
func (d *Document) URL() *string { return d.url }

// Description returns the text description, nil when absent.
func (d *Document) Description() *string { return d.description }

// Metadata returns the caller supplied metadata.
func (d *Document) Metadata() map[string]any { return d.metadata }

// Embedding returns the embedding vector.
func (d *Document) Embedding() []float32 { return d.embedding }

// CreatedAt returns the persistence timestamp.
func (d *Document) CreatedAt() time.Time { return d.createdAt }

// Candidate is a document as submitted by a client, before validation.
type Candidate struct {
	URL         *string
	Description *string
	Metadata    map[string]any
}

// Validate checks the structural rules that need no network access.
func (c Candidate) Validate() error {
	url, desc := deref(c.URL), deref(c.Description)
	if strings.TrimSpace(url) == "" && strings.TrimSpace(desc) == "" {
		return fmt.Errorf("url or description is required: %w", domain.ErrValidation)
	}
	if len(url) > MaxURLLength {
		return fmt.Errorf("url too long (max %d): %w", MaxURLLength, domain.ErrValidation)
	}
	if len(desc) > MaxDescriptionLength {
		return fmt.Errorf("description too long (max %d): %w", MaxDescriptionLength, domain.ErrValidation)
	}
	if url != "" && !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return fmt.Errorf("url must be http or https: %w", domain.ErrValidation)
	}
	return nil
}

// HasURL reports whether the candidate references an image.
func (c Candidate) HasURL() bool { return deref(c.URL) != "" }

// Normalize drops empty optional fields so they are stored as NULL.
func (c Candidate) Normalize() Candidate {
	out := Candidate{Metadata: c.Metadata}
	if v := deref(c.URL); v != "" {
		out.URL = &v
	}
	if v := deref(c.Description); v != "" {
		out.Description = &v
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
