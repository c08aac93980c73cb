package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mmdex/internal/domain"
	"github.com/kailas-cloud/mmdex/internal/metrics"
	documentrepo "github.com/kailas-cloud/mmdex/internal/repository/document"
	"github.com/kailas-cloud/mmdex/internal/repository/embcache"
	stagingrepo "github.com/kailas-cloud/mmdex/internal/repository/staging"
	chiTransport "github.com/kailas-cloud/mmdex/internal/transport/chi"
	dispatchuc "github.com/kailas-cloud/mmdex/internal/usecase/dispatch"
	documentuc "github.com/kailas-cloud/mmdex/internal/usecase/document"
	healthuc "github.com/kailas-cloud/mmdex/internal/usecase/health"
	searchuc "github.com/kailas-cloud/mmdex/internal/usecase/search"
	validationuc "github.com/kailas-cloud/mmdex/internal/usecase/validation"
	vectorizeuc "github.com/kailas-cloud/mmdex/internal/usecase/vectorize"
)

func runServe(ctx context.Context, env string) error {
	a, err := bootstrap(ctx, env, "api")
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg

	store, err := a.redisStore()
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.WaitForReady(ctx, 10*time.Second); err != nil {
		return fmt.Errorf("redis not ready: %w", err)
	}

	queue := a.queue(store)
	if err := queue.EnsureGroup(ctx); err != nil {
		return fmt.Errorf("ensure consumer group: %w", err)
	}

	// Postgres connects on first use so the API starts while the database warms up.
	conn, err := a.connector(true)
	if err != nil {
		return err
	}
	defer conn.Close()

	fetcher := a.fetcher()
	embedder := a.embedder()
	guarded := a.budgeted(ctx, embedder, store)

	// Query embeddings repeat far more often than document embeddings.
	var queryEmbedder domain.Embedder = guarded
	if cfg.Embedding.CacheTTLSec > 0 {
		queryEmbedder = embcache.New(guarded, store, cfg.Redis.KeyPrefix,
			seconds(cfg.Embedding.CacheTTLSec), metrics.EmbeddingCacheTotal, a.logger)
	}

	docRepo := documentrepo.New(conn)
	staging := stagingrepo.New(store, stagingrepo.Config{
		Prefix:        cfg.Redis.KeyPrefix,
		PublicBaseURL: cfg.Staging.PublicBaseURL,
		TTL:           seconds(cfg.Staging.TTLSec),
	})

	validator := validationuc.New(fetcher).WithConcurrency(cfg.Documents.ValidationConcurrency)
	dispatcher := dispatchuc.New(queue, a.logger).WithChunkSize(cfg.Queue.MaxBatch)
	docSvc := documentuc.New(docRepo, validator, dispatcher).
		WithPagination(cfg.Documents.DefaultPageSize, cfg.Documents.MaxPageSize).
		WithMaxSubmission(cfg.Documents.MaxSubmission)

	vectorizer := vectorizeuc.New(fetcher, queryEmbedder, cfg.Documents.MaxImageDimension)
	searchSvc := searchuc.New(docRepo, vectorizer, staging, a.logger).
		WithTimeout(seconds(cfg.Search.TimeoutSec)).
		WithImageTypes(cfg.Documents.AllowedTypes)

	healthSvc := healthuc.New(conn, store, embedder)

	server := chiTransport.NewServer(docSvc, searchSvc, staging, healthSvc, a.logger).
		WithBodyLimits(cfg.HTTP.MaxJSONBytes, cfg.Documents.MaxImageBytes)

	addr := fmt.Sprintf(":%d", cfg.HTTP.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       seconds(cfg.HTTP.ReadTimeoutSec),
		WriteTimeout:      seconds(cfg.HTTP.WriteTimeoutSec),
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Starting HTTP server", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		a.logger.Info("Received shutdown signal")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), seconds(cfg.HTTP.ShutdownSec))
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("Error during shutdown", zap.Error(err))
	}

	a.logger.Info("Server stopped gracefully")
	return nil
}
