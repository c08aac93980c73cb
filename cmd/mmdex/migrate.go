package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/mmdex/internal/db/postgres"
)

func runMigrate(ctx context.Context, env string) error {
	a, err := bootstrap(ctx, env, "migrate")
	if err != nil {
		return err
	}
	defer a.close()

	// vector types cannot be registered on connect until the extension exists.
	conn, err := a.connector(false)
	if err != nil {
		return err
	}
	defer conn.Close()

	q, err := conn.Querier(ctx)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	if err := postgres.Migrate(ctx, q, a.cfg.Embedding.Dimensions); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	a.logger.Info("Schema is up to date",
		zap.String("table", postgres.DocumentsTable),
		zap.Int("dimensions", a.cfg.Embedding.Dimensions),
	)
	return nil
}
