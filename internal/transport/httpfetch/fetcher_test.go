package httpfetch

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"github.com/kailas-cloud/mmdex/internal/domain"
)

// imageServer serves fixed bytes with the given content type and status on every path.
func imageServer(t *testing.T, status int, contentType string, body []byte) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(status)
		if r.Method == http.MethodGet {
			_, _ = w.Write(body)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProbe_OK(t *testing.T) {
	srv := imageServer(t, http.StatusOK, "image/png", []byte("png"))
	f := New(Config{}, nil)

	if err := f.Probe(context.Background(), srv.URL+"/a.png"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProbe_Rejections(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
		body        []byte
		maxBytes    int64
		wantMsg     string
	}{
		{"not found", http.StatusNotFound, "text/html", nil, 0, "Fetch error: Received 404 status."},
		{"wrong type", http.StatusOK, "image/gif", []byte("gif"), 0, "Only JPEG and PNG images are allowed"},
		{"too large", http.StatusOK, "image/jpeg", bytes.Repeat([]byte{1}, 2<<20+1), 2 << 20, "File size exceeds the limit of 2 MB."},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := imageServer(t, tc.status, tc.contentType, tc.body)
			f := New(Config{MaxBytes: tc.maxBytes}, nil)

			err := f.Probe(context.Background(), srv.URL)
			if !errors.Is(err, domain.ErrUnsupportedMedia) {
				t.Fatalf("expected ErrUnsupportedMedia, got %v", err)
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("error %q does not contain %q", err.Error(), tc.wantMsg)
			}
		})
	}
}

func TestProbe_ContentTypeParams(t *testing.T) {
	srv := imageServer(t, http.StatusOK, "IMAGE/JPEG; charset=binary", []byte("jpg"))
	if err := New(Config{}, nil).Probe(context.Background(), srv.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestProbe_Unreachable(t *testing.T) {
	srv := imageServer(t, http.StatusOK, "image/png", nil)
	url := srv.URL
	srv.Close()

	err := New(Config{}, nil).Probe(context.Background(), url)
	if !errors.Is(err, domain.ErrNetworkFetch) {
		t.Fatalf("expected ErrNetworkFetch, got %v", err)
	}
}

func TestProbe_InvalidURL(t *testing.T) {
	err := New(Config{}, nil).Probe(context.Background(), "http://bad host/")
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestDownload_OK(t *testing.T) {
	body := []byte("\x89PNG....")
	srv := imageServer(t, http.StatusOK, "image/png", body)

	img, err := New(Config{}, nil).Download(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if img.ContentType != "image/png" || !bytes.Equal(img.Data, body) {
		t.Errorf("image = %+v", img)
	}
}

func TestDownload_FailuresAreTransient(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		contentType string
	}{
		{"server error", http.StatusInternalServerError, "image/png"},
		{"wrong type", http.StatusOK, "text/html"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			srv := imageServer(t, tc.status, tc.contentType, []byte("x"))
			_, err := New(Config{}, nil).Download(context.Background(), srv.URL)
			if !errors.Is(err, domain.ErrNetworkFetch) {
				t.Fatalf("expected ErrNetworkFetch, got %v", err)
			}
			if domain.IsTerminal(err) {
				t.Error("download failures must not be terminal")
			}
		})
	}
}

func TestDownload_BodyExceedsCapWithoutLength(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		// Streaming response: no Content-Length header.
		w.(http.Flusher).Flush()
		_, _ = w.Write(bytes.Repeat([]byte{1}, 2048))
	}))
	defer srv.Close()

	_, err := New(Config{MaxBytes: 1024}, nil).Download(context.Background(), srv.URL)
	if !errors.Is(err, domain.ErrNetworkFetch) {
		t.Fatalf("expected ErrNetworkFetch, got %v", err)
	}
	if !strings.Contains(err.Error(), "File size exceeds") {
		t.Errorf("unexpected message: %v", err)
	}
}

func TestUserAgentHeader(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "image/png")
	}))
	defer srv.Close()

	f := New(Config{UserAgent: "mmdex-test"}, nil)
	if err := f.Probe(context.Background(), srv.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "mmdex-test" {
		t.Errorf("User-Agent = %q", got)
	}
}

func TestAllowed(t *testing.T) {
	f := New(Config{}, nil)
	if !f.Allowed("image/png") || !f.Allowed("image/jpeg") {
		t.Error("default allow-list must contain png and jpeg")
	}
	if f.Allowed("image/webp") {
		t.Error("webp must be rejected")
	}
	if f.MaxBytes() != DefaultMaxBytes {
		t.Errorf("MaxBytes = %d", f.MaxBytes())
	}
}
