// Package secrets reads credentials from environment variables or HashiCorp Vault.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
)

// Well-known secret keys.
const (
	KeyDBUsername = "db_username"
	KeyDBPassword = "db_password"
)

// ErrNotFound is returned when no provider holds the requested key.
var ErrNotFound = errors.New("secret not found")

// Provider is a read-only secret backend.
type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Name() string
}

// Config configures the secrets manager.
type Config struct {
	// Provider selects the backend: "env" or "vault".
	Provider  string
	EnvPrefix string
	Vault     *VaultConfig
}

// Manager resolves secrets from a primary provider with env fallback and
// caches every resolved value until Clear is called.
type Manager struct {
	primary  Provider
	fallback Provider

	mu    sync.RWMutex
	cache map[string]string
}

// NewManager creates a secrets manager for the configured backend.
func NewManager(cfg Config) (*Manager, error) {
	fallback := NewEnvProvider(cfg.EnvPrefix)

	var primary Provider
	switch cfg.Provider {
	case "vault":
		if cfg.Vault == nil {
			return nil, fmt.Errorf("vault config required for vault provider")
		}
		vp, err := NewVaultProvider(*cfg.Vault)
		if err != nil {
			return nil, fmt.Errorf("create vault provider: %w", err)
		}
		primary = vp
	case "env", "":
		primary = fallback
		fallback = nil
	default:
		return nil, fmt.Errorf("unknown secrets provider: %s", cfg.Provider)
	}

	return NewManagerWithProviders(primary, fallback), nil
}

// NewManagerWithProviders wires explicit providers. fallback may be nil.
func NewManagerWithProviders(primary, fallback Provider) *Manager {
	return &Manager{primary: primary, fallback: fallback, cache: make(map[string]string)}
}

// Get retrieves a secret, trying the cache, then primary, then fallback.
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	val, ok := m.cache[key]
	m.mu.RUnlock()
	if ok {
		return val, nil
	}

	val, err := m.primary.Get(ctx, key)
	if err != nil && m.fallback != nil {
		val, err = m.fallback.Get(ctx, key)
	}
	if err != nil {
		return "", fmt.Errorf("%s (%s): %w", key, m.primary.Name(), err)
	}

	m.mu.Lock()
	m.cache[key] = val
	m.mu.Unlock()
	return val, nil
}

// Clear drops every cached value so the next Get hits the backend again.
func (m *Manager) Clear() {
	m.mu.Lock()
	m.cache = make(map[string]string)
	m.mu.Unlock()
}

// EnvProvider reads secrets from environment variables.
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates an environment-based provider. Keys are upper-cased
// and looked up with the prefix first, then without it.
func NewEnvProvider(prefix string) *EnvProvider {
	if prefix == "" {
		prefix = "MMDEX_"
	}
	return &EnvProvider{prefix: prefix}
}

// Name returns the provider name.
func (p *EnvProvider) Name() string { return "env" }

// Get looks the key up in the environment.
func (p *EnvProvider) Get(_ context.Context, key string) (string, error) {
	upper := strings.ToUpper(key)
	if val := os.Getenv(p.prefix + upper); val != "" {
		return val, nil
	}
	if val := os.Getenv(upper); val != "" {
		return val, nil
	}
	return "", fmt.Errorf("env %s%s: %w", p.prefix, upper, ErrNotFound)
}
