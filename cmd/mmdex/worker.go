package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	documentrepo "github.com/kailas-cloud/mmdex/internal/repository/document"
	ingestuc "github.com/kailas-cloud/mmdex/internal/usecase/ingest"
	vectorizeuc "github.com/kailas-cloud/mmdex/internal/usecase/vectorize"
)

func runWorker(ctx context.Context, env string) error {
	a, err := bootstrap(ctx, env, "worker")
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

	conn, err := a.connector(true)
	if err != nil {
		return err
	}
	defer conn.Close()

	embedder := a.budgeted(ctx, a.embedder(), store)
	vectorizer := vectorizeuc.New(a.fetcher(), embedder, cfg.Documents.MaxImageDimension)
	worker := ingestuc.New(queue, vectorizer, documentrepo.New(conn), ingestuc.Config{
		Consumer:        cfg.Ingest.Consumer,
		HandleTimeout:   seconds(cfg.Ingest.HandleTimeoutSec),
		ReclaimInterval: seconds(cfg.Ingest.ReclaimIntervalSec),
		ReclaimBatch:    cfg.Ingest.ReclaimBatch,
	}, a.logger)

	a.logger.Info("Starting ingestion worker",
		zap.String("stream", queue.Stream()),
		zap.String("dead_letter_stream", queue.DeadLetterStream()),
		zap.String("consumer", cfg.Ingest.Consumer),
	)
	if err := worker.Run(ctx); err != nil {
		return fmt.Errorf("worker: %w", err)
	}
	a.logger.Info("Worker stopped gracefully")
	return nil
}
