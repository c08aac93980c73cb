package document

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/kailas-cloud/mmdex/internal/domain"
)

func strPtr(s string) *string { return &s }

func TestNew_Valid(t *testing.T) {
	meta := map[string]any{"source": "catalog"}
	emb := []float32{0.1, 0.2}

	doc, err := New(strPtr("https://example.com/cat.png"), strPtr("a cat"), meta, emb)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.ID() != 0 {
		t.Errorf("ID() = %d, want 0 before persistence", doc.ID())
	}
	if *doc.URL() != "https://example.com/cat.png" {
		t.Errorf("URL() = %q", *doc.URL())
	}
	if *doc.Description() != "a cat" {
		t.Errorf("Description() = %q", *doc.Description())
	}
	if doc.Metadata()["source"] != "catalog" {
		t.Errorf("Metadata() = %v", doc.Metadata())
	}
	if len(doc.Embedding()) != 2 {
		t.Errorf("Embedding() len = %d", len(doc.Embedding()))
	}
}

func TestNew_DescriptionOnly(t *testing.T) {
	doc, err := New(nil, strPtr("A"), nil, []float32{1})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc.URL() != nil {
		t.Errorf("URL() = %v, want nil", doc.URL())
	}
}

func TestNew_ClonesInputs(t *testing.T) {
	meta := map[string]any{"k": "v"}
	desc := "original"

	doc, _ := New(nil, &desc, meta, []float32{1})

	meta["k"] = "mutated"
	desc = "mutated"

	if doc.Metadata()["k"] != "v" {
		t.Error("metadata mutation leaked into document")
	}
	if *doc.Description() != "original" {
		t.Error("description mutation leaked into document")
	}
}

func TestNew_MissingEmbedding(t *testing.T) {
	if _, err := New(nil, strPtr("A"), nil, nil); err == nil {
		t.Fatal("expected error for missing embedding")
	}
}

func TestCandidate_Validate(t *testing.T) {
	tests := []struct {
		name    string
		c       Candidate
		wantErr string
	}{
		{"description only", Candidate{Description: strPtr("A")}, ""},
		{"url only", Candidate{URL: strPtr("http://example.com/a.jpg")}, ""},
		{"both", Candidate{URL: strPtr("https://x/a.png"), Description: strPtr("A")}, ""},
		{"neither", Candidate{}, "url or description is required"},
		{"blank strings", Candidate{URL: strPtr(""), Description: strPtr("   ")}, "url or description is required"},
		{"bad scheme", Candidate{URL: strPtr("ftp://x/a.png")}, "http or https"},
		{"url too long", Candidate{URL: strPtr("https://x/" + strings.Repeat("a", MaxURLLength))}, "url too long"},
		{"description too long", Candidate{Description: strPtr(strings.Repeat("a", MaxDescriptionLength+1))}, "description too long"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.c.Validate()
			if tc.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error containing %q", tc.wantErr)
			}
			if !strings.Contains(err.Error(), tc.wantErr) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tc.wantErr)
			}
			if !errors.Is(err, domain.ErrValidation) {
				t.Errorf("error %v is not ErrValidation", err)
			}
			if !domain.IsTerminal(err) {
				t.Error("validation error must be terminal")
			}
		})
	}
}

func TestCandidate_Normalize(t *testing.T) {
	c := Candidate{URL: strPtr(""), Description: strPtr("A")}.Normalize()
	if c.URL != nil {
		t.Errorf("URL = %v, want nil", c.URL)
	}
	if c.Description == nil || *c.Description != "A" {
		t.Errorf("Description = %v", c.Description)
	}
	if c.HasURL() {
		t.Error("HasURL() = true, want false")
	}
}

func TestReconstruct(t *testing.T) {
	ts := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	doc := Reconstruct(42, nil, strPtr("A"), map[string]any{"a": 1.0}, []float32{0.5}, ts)
	if doc.ID() != 42 {
		t.Errorf("ID() = %d", doc.ID())
	}
	if !doc.CreatedAt().Equal(ts) {
		t.Errorf("CreatedAt() = %v", doc.CreatedAt())
	}
	if doc.Embedding()[0] != 0.5 {
		t.Errorf("Embedding() = %v", doc.Embedding())
	}
}
