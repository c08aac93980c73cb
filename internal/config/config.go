package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the mmdex configuration shared by every subcommand.
type Config struct {
	HTTP      HTTPConfig      `yaml:"http"`
	Postgres  PostgresConfig  `yaml:"postgres"`
	Secrets   SecretsConfig   `yaml:"secrets"`
	Redis     RedisConfig     `yaml:"redis"`
	Queue     QueueConfig     `yaml:"queue"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Ingest    IngestConfig    `yaml:"ingest"`
	Search    SearchConfig    `yaml:"search"`
	Staging   StagingConfig   `yaml:"staging"`
	Documents DocumentsConfig `yaml:"documents"`
	Logging   LoggingConfig   `yaml:"logging"`
	Tracing   TracingConfig   `yaml:"tracing"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int   `yaml:"port"`
	ReadTimeoutSec  int   `yaml:"read_timeout_sec"`
	WriteTimeoutSec int   `yaml:"write_timeout_sec"`
	ShutdownSec     int   `yaml:"shutdown_timeout_sec"`
	MaxJSONBytes    int64 `yaml:"max_json_bytes"`
}

// PostgresConfig locates the vector store. Credentials come from the secret store.
type PostgresConfig struct {
	Host              string `yaml:"host"`
	Port              int    `yaml:"port"`
	Database          string `yaml:"database"`
	SSLMode           string `yaml:"sslmode"`
	MaxConns          int32  `yaml:"max_conns"`
	ConnectTimeoutSec int    `yaml:"connect_timeout_sec"`
	ConnectRetries    uint64 `yaml:"connect_retries"`
}

// SecretsConfig selects the credential backend.
type SecretsConfig struct {
	Provider  string      `yaml:"provider"` // env | vault
	EnvPrefix string      `yaml:"env_prefix"`
	Vault     VaultConfig `yaml:"vault"`
}

// VaultConfig holds HashiCorp Vault KV v2 settings.
type VaultConfig struct {
	Address    string `yaml:"address"`
	Token      string `yaml:"token"`
	MountPath  string `yaml:"mount_path"`
	SecretPath string `yaml:"secret_path"`
	TimeoutSec int    `yaml:"timeout_sec"`
}

// RedisConfig holds the broker, staging and cache connection.
type RedisConfig struct {
	Addrs     []string `yaml:"addrs"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
	DB        int      `yaml:"db"`
	KeyPrefix string   `yaml:"key_prefix"`
}

// QueueConfig holds ingestion queue settings.
type QueueConfig struct {
	Group           string `yaml:"group"`
	MaxBatch        int    `yaml:"max_batch"`
	VisibilitySec   int    `yaml:"visibility_timeout_sec"`
	MaxReceiveCount int64  `yaml:"max_receive_count"`
	BlockSec        int    `yaml:"block_sec"`
}

// EmbeddingConfig holds the multimodal embedding endpoint.
type EmbeddingConfig struct {
	APIKey      string `yaml:"api_key"`
	BaseURL     string `yaml:"base_url"`
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	Dimensions  int    `yaml:"dimensions"`
	TimeoutSec  int    `yaml:"timeout_sec"`
	CacheTTLSec int    `yaml:"cache_ttl_sec"` // 0 disables the query embedding cache

	DailyTokenLimit   int64  `yaml:"daily_token_limit"`   // 0 = unlimited
	MonthlyTokenLimit int64  `yaml:"monthly_token_limit"` // 0 = unlimited
	BudgetAction      string `yaml:"budget_action"`       // warn | reject
}

// IngestConfig tunes the worker loop.
type IngestConfig struct {
	Consumer           string `yaml:"consumer"`
	HandleTimeoutSec   int    `yaml:"handle_timeout_sec"`
	ReclaimIntervalSec int    `yaml:"reclaim_interval_sec"`
	ReclaimBatch       int    `yaml:"reclaim_batch"`
}

// SearchConfig holds search settings.
type SearchConfig struct {
	TimeoutSec int `yaml:"timeout_sec"`
}

// StagingConfig holds settings for images uploaded with a search.
type StagingConfig struct {
	PublicBaseURL string `yaml:"public_base_url"`
	TTLSec        int    `yaml:"ttl_sec"`
}

// DocumentsConfig holds submission, image and pagination limits.
type DocumentsConfig struct {
	MaxSubmission         int      `yaml:"max_submission"`
	MaxImageBytes         int64    `yaml:"max_image_bytes"`
	AllowedTypes          []string `yaml:"allowed_types"`
	MaxImageDimension     int      `yaml:"max_image_dimension"`
	FetchTimeoutSec       int      `yaml:"fetch_timeout_sec"`
	ValidationConcurrency int      `yaml:"validation_concurrency"`
	DefaultPageSize       int      `yaml:"default_page_size"`
	MaxPageSize           int      `yaml:"max_page_size"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// TracingConfig holds OpenTelemetry settings. An empty endpoint disables tracing.
type TracingConfig struct {
	OTLPEndpoint string  `yaml:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate"`
	ServiceName  string  `yaml:"service_name"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}
	return Parse(data)
}

// Parse expands environment references in data, decodes it, applies defaults and validates.
func Parse(data []byte) (Config, error) {
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	defaultInt(&c.HTTP.ReadTimeoutSec, 10)
	defaultInt(&c.HTTP.WriteTimeoutSec, 60)
	defaultInt(&c.HTTP.ShutdownSec, 10)
	if c.HTTP.MaxJSONBytes <= 0 {
		c.HTTP.MaxJSONBytes = 1 << 20
	}

	defaultInt(&c.Postgres.Port, 5432)
	if c.Postgres.Database == "" {
		c.Postgres.Database = "mmdex"
	}
	if c.Postgres.SSLMode == "" {
		c.Postgres.SSLMode = "prefer"
	}
	defaultInt(&c.Postgres.ConnectTimeoutSec, 10)
	if c.Postgres.ConnectRetries == 0 {
		c.Postgres.ConnectRetries = 5
	}

	if c.Secrets.Provider == "" {
		c.Secrets.Provider = "env"
	}

	if c.Redis.KeyPrefix == "" {
		c.Redis.KeyPrefix = "mmdex:"
	}

	if c.Queue.Group == "" {
		c.Queue.Group = "ingest-workers"
	}
	defaultInt(&c.Queue.MaxBatch, 10)
	defaultInt(&c.Queue.VisibilitySec, 30)
	if c.Queue.MaxReceiveCount <= 0 {
		c.Queue.MaxReceiveCount = 3
	}
	defaultInt(&c.Queue.BlockSec, 5)

	if c.Embedding.Provider == "" {
		c.Embedding.Provider = "openai"
	}
	defaultInt(&c.Embedding.Dimensions, 1024)
	defaultInt(&c.Embedding.TimeoutSec, 30)
	if c.Embedding.BudgetAction == "" {
		c.Embedding.BudgetAction = "warn"
	}

	defaultInt(&c.Ingest.HandleTimeoutSec, 120)
	defaultInt(&c.Ingest.ReclaimIntervalSec, 10)
	defaultInt(&c.Ingest.ReclaimBatch, 10)

	defaultInt(&c.Search.TimeoutSec, 30)

	defaultInt(&c.Staging.TTLSec, 300)

	defaultInt(&c.Documents.MaxSubmission, 100)
	if c.Documents.MaxImageBytes <= 0 {
		c.Documents.MaxImageBytes = 5 << 20
	}
	if len(c.Documents.AllowedTypes) == 0 {
		c.Documents.AllowedTypes = []string{"image/jpeg", "image/png"}
	}
	defaultInt(&c.Documents.MaxImageDimension, 2048)
	defaultInt(&c.Documents.FetchTimeoutSec, 10)
	defaultInt(&c.Documents.ValidationConcurrency, 8)
	defaultInt(&c.Documents.DefaultPageSize, 20)
	defaultInt(&c.Documents.MaxPageSize, 100)

	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "mmdex"
	}
	if c.Tracing.SampleRate <= 0 {
		c.Tracing.SampleRate = 1
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Redis.Addrs) == 0 {
		return fmt.Errorf("redis.addrs is required")
	}
	if c.Postgres.Host == "" {
		return fmt.Errorf("postgres.host is required")
	}
	if c.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding.dimensions must be positive, got %d", c.Embedding.Dimensions)
	}
	if c.Embedding.BudgetAction != "warn" && c.Embedding.BudgetAction != "reject" {
		return fmt.Errorf("embedding.budget_action must be \"warn\" or \"reject\", got %q", c.Embedding.BudgetAction)
	}
	if c.Queue.MaxBatch < 1 || c.Queue.MaxBatch > 10 {
		return fmt.Errorf("queue.max_batch must be between 1 and 10, got %d", c.Queue.MaxBatch)
	}
	switch c.Secrets.Provider {
	case "env":
	case "vault":
		if c.Secrets.Vault.Address == "" {
			return fmt.Errorf("secrets.vault.address is required for the vault provider")
		}
	default:
		return fmt.Errorf("secrets.provider must be \"env\" or \"vault\", got %q", c.Secrets.Provider)
	}
	if c.Documents.DefaultPageSize > c.Documents.MaxPageSize {
		return fmt.Errorf("documents.default_page_size %d exceeds max_page_size %d",
			c.Documents.DefaultPageSize, c.Documents.MaxPageSize)
	}
	if c.Tracing.SampleRate > 1 {
		return fmt.Errorf("tracing.sample_rate must be at most 1, got %g", c.Tracing.SampleRate)
	}
	return nil
}

func defaultInt(v *int, def int) {
	if *v <= 0 {
		*v = def
	}
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
