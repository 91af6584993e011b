// Package cli provides the command-line interface for ragline.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mfarrag/ragline/internal/chunker"
	"github.com/mfarrag/ragline/internal/config"
	"github.com/mfarrag/ragline/internal/db"
	"github.com/mfarrag/ragline/internal/embedding"
	"github.com/mfarrag/ragline/internal/filestore"
	"github.com/mfarrag/ragline/internal/ledger"
	"github.com/mfarrag/ragline/internal/service"
	"github.com/mfarrag/ragline/internal/vectorstore/qdrant"
	"github.com/mfarrag/ragline/internal/worker"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose bool

	// Global config and db client
	cfg        config.Config
	dbClient   *db.Client
	logCleanup func() error
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "ragline",
	Short: "Idempotent document ingestion pipeline",
	Long: `Ragline ingests project documents into a retrieval index: files are
chunked into a document store, embedded, and upserted into a vector
collection per project.

Every ingestion run is recorded in a task ledger keyed by a content hash
of its arguments, so duplicate or retried submissions never redo
completed work.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Skip DB connection for version and help commands
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		// .env is optional; environment always wins.
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load()
		if err != nil {
			return err
		}

		logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
		slog.SetDefault(logger)
		logCleanup = cleanup

		ctx := context.Background()
		dbCfg := db.Config{
			URL:       cfg.SurrealDBURL,
			Namespace: cfg.SurrealDBNamespace,
			Database:  cfg.SurrealDBDatabase,
			Username:  cfg.SurrealDBUser,
			Password:  cfg.SurrealDBPass,
			AuthLevel: cfg.SurrealDBAuthLevel,
		}

		dbClient, err = db.NewClient(ctx, dbCfg, logger)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}

		if err := dbClient.InitSchema(ctx); err != nil {
			return fmt.Errorf("initialize schema: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
		}
		if logCleanup != nil {
			_ = logCleanup()
		}
	},
}

// getService wires the ingestion orchestrator from the loaded config.
// Commands that never embed pass requireEmbedder=false to avoid needing a
// reachable embedding backend.
func getService(requireEmbedder bool) (*service.IngestService, error) {
	var embedder embedding.Embedder
	if requireEmbedder {
		client, err := embedding.New(embedding.Config{
			Provider:     embedding.Provider(cfg.EmbeddingProvider),
			Model:        cfg.EmbeddingModel,
			Dimension:    cfg.EmbeddingDimension,
			OllamaHost:   cfg.OllamaHost,
			OpenAIAPIKey: cfg.OpenAIAPIKey,
		})
		if err != nil {
			return nil, fmt.Errorf("init embedder: %w", err)
		}
		embedder = client
	}

	vectors := qdrant.New(qdrant.Config{URL: cfg.QdrantURL, APIKey: cfg.QdrantAPIKey})
	files := filestore.New(cfg.FilesDir)

	return service.NewIngestService(
		dbClient,
		files,
		chunker.NewRecursiveSplitter(),
		vectors,
		embedder,
		ledger.New(dbClient),
		nil,
		cfg.TaskTimeLimit,
	), nil
}

// getPool wraps a service in the worker queue layer.
func getPool(svc *service.IngestService) (*worker.Pool, error) {
	return worker.NewPool(svc, cfg.WorkerConcurrency,
		worker.WithRetries(cfg.MaxRetries, cfg.RetryBackoff),
		worker.WithLogger(slog.Default()))
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(indexCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(tasksCmd)
	rootCmd.AddCommand(cleanupCmd)
}
