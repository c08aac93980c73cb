// Command mmdex runs the multimodal document ingestion and search service.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/mmdex/internal/config"
	"github.com/kailas-cloud/mmdex/internal/version"
)

func main() {
	// .env is a local convenience; production injects the environment directly.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var env string

	root := &cobra.Command{
		Use:          "mmdex",
		Short:        "Multimodal document ingestion and similarity search",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&env, "env", config.GetEnv(),
		"configuration environment, reads config/<env>.yaml")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Run the HTTP API",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runServe(cmd.Context(), env)
			},
		},
		&cobra.Command{
			Use:   "worker",
			Short: "Run the ingestion worker",
			Long: `Consumes queued documents one at a time, embeds them and stores them.

Messages that keep failing are moved to the dead-letter stream after
queue.max_receive_count deliveries.`,
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runWorker(cmd.Context(), env)
			},
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create the vector extension, documents table and HNSW index",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return runMigrate(cmd.Context(), env)
			},
		},
		&cobra.Command{
			Use:   "version",
			Short: "Print build information",
			Run: func(cmd *cobra.Command, _ []string) {
				fmt.Fprintln(cmd.OutOrStdout(), version.String())
			},
		},
	)
	return root
}
