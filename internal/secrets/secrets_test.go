package secrets

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

type countingProvider struct {
	values map[string]string
	calls  int
}

func (p *countingProvider) Name() string { return "counting" }

func (p *countingProvider) Get(_ context.Context, key string) (string, error) {
	p.calls++
	if v, ok := p.values[key]; ok {
		return v, nil
	}
	return "", ErrNotFound
}

func TestEnvProvider_WithPrefix(t *testing.T) {
	t.Setenv("MMDEX_DB_PASSWORD", "s3cret")

	val, err := NewEnvProvider("").Get(context.Background(), KeyDBPassword)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "s3cret" {
		t.Errorf("got %q", val)
	}
}

func TestEnvProvider_WithoutPrefix(t *testing.T) {
	t.Setenv("DB_USERNAME", "app")

	val, err := NewEnvProvider("MMDEX_").Get(context.Background(), KeyDBUsername)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "app" {
		t.Errorf("got %q", val)
	}
}

func TestEnvProvider_NotFound(t *testing.T) {
	_, err := NewEnvProvider("MMDEX_").Get(context.Background(), "definitely_missing_key_xyz")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestManager_CachesUntilClear(t *testing.T) {
	p := &countingProvider{values: map[string]string{"k": "v"}}
	m := NewManagerWithProviders(p, nil)

	for range 3 {
		val, err := m.Get(context.Background(), "k")
		if err != nil || val != "v" {
			t.Fatalf("Get() = %q, %v", val, err)
		}
	}
	if p.calls != 1 {
		t.Errorf("provider calls = %d, want 1", p.calls)
	}

	m.Clear()
	if _, err := m.Get(context.Background(), "k"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.calls != 2 {
		t.Errorf("provider calls after Clear = %d, want 2", p.calls)
	}
}

func TestManager_Fallback(t *testing.T) {
	primary := &countingProvider{values: map[string]string{}}
	fallback := &countingProvider{values: map[string]string{"k": "from-fallback"}}
	m := NewManagerWithProviders(primary, fallback)

	val, err := m.Get(context.Background(), "k")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "from-fallback" {
		t.Errorf("got %q", val)
	}
}

func TestManager_NotFound(t *testing.T) {
	m := NewManagerWithProviders(&countingProvider{}, nil)
	if _, err := m.Get(context.Background(), "k"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestNewManager_UnknownProvider(t *testing.T) {
	if _, err := NewManager(Config{Provider: "aws"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNewManager_VaultRequiresConfig(t *testing.T) {
	if _, err := NewManager(Config{Provider: "vault"}); err == nil {
		t.Fatal("expected error without vault config")
	}
}

func TestVaultProvider_Get(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/secret/data/mmdex" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("X-Vault-Token") != "tok" {
			t.Errorf("token header = %q", r.Header.Get("X-Vault-Token"))
		}
		_, _ = w.Write([]byte(`{"data":{"data":{"db_username":"app","db_password":"pw"}}}`))
	}))
	defer srv.Close()

	p, err := NewVaultProvider(VaultConfig{Address: srv.URL + "/", Token: "tok"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	val, err := p.Get(context.Background(), KeyDBPassword)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if val != "pw" {
		t.Errorf("got %q", val)
	}
	if _, err := p.Get(context.Background(), "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestVaultProvider_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "sealed", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p, _ := NewVaultProvider(VaultConfig{Address: srv.URL, Token: "tok"})
	if _, err := p.Get(context.Background(), "k"); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewVaultProvider_Validation(t *testing.T) {
	if _, err := NewVaultProvider(VaultConfig{Token: "t"}); err == nil {
		t.Error("expected error without address")
	}
	if _, err := NewVaultProvider(VaultConfig{Address: "http://x"}); err == nil {
		t.Error("expected error without token")
	}
}
