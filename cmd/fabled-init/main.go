// Package main implements fabled-init, the indexing tool that loads
// the Aesop's Fables dataset into Qdrant.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fabled/internal/config"
	"github.com/fyrsmithlabs/fabled/internal/corpus"
	"github.com/fyrsmithlabs/fabled/internal/embeddings"
	"github.com/fyrsmithlabs/fabled/internal/logging"
	"github.com/fyrsmithlabs/fabled/internal/vectorstore"
)

var (
	configPath string
	dataPath   string
	recreate   bool
	batchSize  int
	version    = "dev"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "fabled-init",
	Short: "Index the Aesop's Fables corpus into Qdrant",
	Long: `fabled-init loads the raw fables dataset, embeds each fable with the
configured model and upserts the vectors into the Qdrant collection the
fabled daemon searches.

Examples:
  # Index the default dataset
  fabled-init --data data/aesop_fables_raw.json

  # Drop and rebuild the collection
  fabled-init --data data/aesop_fables_raw.json --recreate

  # Use a config file and a smaller embedding batch
  fabled-init --config config.yaml --data data.json --batch-size 16`,
	Version: version,
	RunE:    runInit,
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to YAML config file (optional)")
	rootCmd.Flags().StringVar(&dataPath, "data", "data/aesop_fables_raw.json", "path to the raw fables JSON dataset")
	rootCmd.Flags().BoolVar(&recreate, "recreate", false, "drop the collection before indexing")
	rootCmd.Flags().IntVar(&batchSize, "batch-size", 32, "number of fables embedded and upserted per batch")
}

func runInit(cmd *cobra.Command, args []string) error {
	if batchSize <= 0 {
		return fmt.Errorf("batch-size must be positive")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	fables, err := corpus.Load(dataPath)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}
	stats := corpus.Statistics(fables)
	logger.Info("Corpus loaded",
		zap.String("path", dataPath),
		zap.Int("fables", stats.TotalFables),
		zap.Int("total_words", stats.TotalWords),
		zap.Float64("avg_words", stats.AverageWords))

	encoder, err := embeddings.New(embeddings.Config{
		Model:     cfg.Embedding.Model,
		CacheDir:  cfg.Embedding.CacheDir,
		MaxLength: cfg.Embedding.MaxLength,
	})
	if err != nil {
		return fmt.Errorf("load embedding model: %w", err)
	}
	defer func() {
		_ = encoder.Close()
	}()

	store, err := vectorstore.NewQdrantStore(vectorstore.Config{
		Host:         cfg.Qdrant.Host,
		Port:         cfg.Qdrant.Port,
		Collection:   cfg.Qdrant.Collection,
		UseTLS:       cfg.Qdrant.UseTLS,
		RetryBackoff: cfg.Qdrant.RetryBackoff.Duration(),
	})
	if err != nil {
		return fmt.Errorf("connect to qdrant: %w", err)
	}
	defer func() {
		_ = store.Close()
	}()

	if recreate {
		logger.Info("Dropping collection", zap.String("collection", store.Collection()))
		if err := store.DeleteCollection(ctx); err != nil {
			return fmt.Errorf("drop collection: %w", err)
		}
	}

	if err := store.EnsureCollection(ctx, uint64(encoder.Dimension())); err != nil {
		return fmt.Errorf("ensure collection: %w", err)
	}

	start := time.Now()
	for offset := 0; offset < len(fables); offset += batchSize {
		end := offset + batchSize
		if end > len(fables) {
			end = len(fables)
		}
		batch := fables[offset:end]

		texts := make([]string, len(batch))
		for i, f := range batch {
			texts[i] = f.IndexText()
		}

		vectors, err := encoder.EmbedDocuments(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed batch at %d: %w", offset, err)
		}
		if err := store.UpsertFables(ctx, batch, vectors); err != nil {
			return fmt.Errorf("upsert batch at %d: %w", offset, err)
		}

		logger.Info("Batch indexed",
			zap.Int("from", batch[0].ID),
			zap.Int("to", batch[len(batch)-1].ID),
			zap.Int("indexed", end),
			zap.Int("total", len(fables)))
	}

	count, err := store.Count(ctx)
	if err != nil {
		return fmt.Errorf("count points: %w", err)
	}

	logger.Info("Indexing complete",
		zap.String("collection", store.Collection()),
		zap.Uint64("points", count),
		zap.Duration("elapsed", time.Since(start)))
	return nil
}
