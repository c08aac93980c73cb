package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mmdex/internal/config"
	"github.com/kailas-cloud/mmdex/internal/db/postgres"
	dbRedis "github.com/kailas-cloud/mmdex/internal/db/redis"
	logpkg "github.com/kailas-cloud/mmdex/internal/logger"
	"github.com/kailas-cloud/mmdex/internal/metrics"
	"github.com/kailas-cloud/mmdex/internal/observability"
	queuerepo "github.com/kailas-cloud/mmdex/internal/repository/queue"
	"github.com/kailas-cloud/mmdex/internal/secrets"
	"github.com/kailas-cloud/mmdex/internal/transport/httpfetch"
	openaiEmb "github.com/kailas-cloud/mmdex/internal/transport/openai"
	embeddinguc "github.com/kailas-cloud/mmdex/internal/usecase/embedding"
	"github.com/kailas-cloud/mmdex/internal/version"
)

// app carries what every subcommand needs before building its own graph.
type app struct {
	env    string
	cfg    config.Config
	logger *zap.Logger
	tracer *observability.TracerProvider
}

func bootstrap(ctx context.Context, env, component string) (*app, error) {
	cfg, err := config.Load(env)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	base, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger := logpkg.Component(base, component)

	tp, err := observability.InitTracing(ctx, observability.TracingConfig{
		ServiceName:    cfg.Tracing.ServiceName,
		ServiceVersion: version.Version,
		Environment:    env,
		OTLPEndpoint:   cfg.Tracing.OTLPEndpoint,
		SampleRate:     cfg.Tracing.SampleRate,
	})
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	metrics.RegisterEmbeddingMetrics()
	metrics.RegisterPipelineMetrics()

	logger.Info("Starting mmdex",
		zap.String("version", version.Version),
		zap.String("commit", version.Commit),
		zap.String("env", env),
		zap.Bool("tracing", cfg.Tracing.OTLPEndpoint != ""),
	)
	return &app{env: env, cfg: cfg, logger: logger, tracer: tp}, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.tracer.Shutdown(ctx); err != nil {
		a.logger.Warn("tracer shutdown", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func (a *app) redisStore() (*dbRedis.Store, error) {
	store, err := dbRedis.NewStore(dbRedis.Config{
		Addrs:    a.cfg.Redis.Addrs,
		Username: a.cfg.Redis.Username,
		Password: a.cfg.Redis.Password,
		DB:       a.cfg.Redis.DB,
	})
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	return store, nil
}

func (a *app) queue(store *dbRedis.Store) *queuerepo.Repo {
	return queuerepo.New(store, queuerepo.Config{
		Prefix:          a.cfg.Redis.KeyPrefix,
		Group:           a.cfg.Queue.Group,
		Visibility:      seconds(a.cfg.Queue.VisibilitySec),
		MaxReceiveCount: a.cfg.Queue.MaxReceiveCount,
		Block:           seconds(a.cfg.Queue.BlockSec),
	})
}

// connector builds the lazily connecting Postgres pool. registerVector must be
// false before the vector extension exists.
func (a *app) connector(registerVector bool) (*postgres.Connector, error) {
	sc := a.cfg.Secrets
	creds, err := secrets.NewManager(secrets.Config{
		Provider:  sc.Provider,
		EnvPrefix: sc.EnvPrefix,
		Vault: &secrets.VaultConfig{
			Address:    sc.Vault.Address,
			Token:      sc.Vault.Token,
			MountPath:  sc.Vault.MountPath,
			SecretPath: sc.Vault.SecretPath,
			Timeout:    seconds(sc.Vault.TimeoutSec),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create secrets manager: %w", err)
	}

	pc := a.cfg.Postgres
	cfg := postgres.Config{
		Host:           pc.Host,
		Port:           pc.Port,
		Database:       pc.Database,
		SSLMode:        pc.SSLMode,
		MaxConns:       pc.MaxConns,
		ConnectTimeout: seconds(pc.ConnectTimeoutSec),
		ConnectRetries: pc.ConnectRetries,
	}
	return postgres.NewConnectorWithDial(cfg, creds, postgres.PoolDialer(pc.MaxConns, registerVector), a.logger), nil
}

func (a *app) embedder() *openaiEmb.Embedder {
	ec := a.cfg.Embedding
	return openaiEmb.NewEmbedder(&openaiEmb.Config{
		APIKey:     ec.APIKey,
		BaseURL:    ec.BaseURL,
		Model:      ec.Model,
		Dimensions: ec.Dimensions,
		Provider:   ec.Provider,
		Timeout:    seconds(ec.TimeoutSec),
		Logger:     a.logger,
	})
}

// budgeted wraps the provider with the token budget shared through Redis.
func (a *app) budgeted(ctx context.Context, inner *openaiEmb.Embedder, store *dbRedis.Store) *embeddinguc.GuardedEmbedder {
	ec := a.cfg.Embedding
	budget := embeddinguc.NewBudget(ec.Provider, embeddinguc.Limits{
		Daily:   ec.DailyTokenLimit,
		Monthly: ec.MonthlyTokenLimit,
		Action:  embeddinguc.Action(ec.BudgetAction),
	}, a.logger).WithStore(ctx, store, a.cfg.Redis.KeyPrefix)
	return embeddinguc.NewGuardedEmbedder(inner, budget, a.logger)
}

func (a *app) fetcher() *httpfetch.Fetcher {
	dc := a.cfg.Documents
	return httpfetch.New(httpfetch.Config{
		MaxBytes:     dc.MaxImageBytes,
		AllowedTypes: dc.AllowedTypes,
		Timeout:      seconds(dc.FetchTimeoutSec),
		UserAgent:    "mmdex/" + version.Version,
	}, a.logger)
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}
