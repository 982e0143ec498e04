// Fabled serves semantic search and question answering over Aesop's
// Fables.
//
// The daemon embeds queries locally, retrieves matching fables from
// Qdrant and answers questions through a configured language model
// provider.
//
// Usage:
//
//	# Start with defaults
//	fabled
//
//	# Start with a config file
//	fabled -config config.yaml
//
//	# Configure via environment
//	FABLED_SERVER_PORT=9090 FABLED_QDRANT_HOST=qdrant fabled
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fyrsmithlabs/fabled/internal/config"
	"github.com/fyrsmithlabs/fabled/internal/embeddings"
	fabledhttp "github.com/fyrsmithlabs/fabled/internal/http"
	"github.com/fyrsmithlabs/fabled/internal/llm"
	"github.com/fyrsmithlabs/fabled/internal/logging"
	"github.com/fyrsmithlabs/fabled/internal/rag"
	"github.com/fyrsmithlabs/fabled/internal/vectorstore"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file (optional)")
	flag.Parse()

	if args := flag.Args(); len(args) > 0 {
		switch args[0] {
		case "version":
			printVersion()
			os.Exit(0)
		default:
			fmt.Fprintf(os.Stderr, "Unknown command: %s\n", args[0])
			fmt.Fprintf(os.Stderr, "\nUsage:\n")
			fmt.Fprintf(os.Stderr, "  fabled           Start the fabled daemon\n")
			fmt.Fprintf(os.Stderr, "  fabled version   Show version information\n")
			os.Exit(1)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down gracefully...", sig)
		cancel()
	}()

	if err := run(ctx, *configPath); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server shutdown complete")
}

func printVersion() {
	fmt.Printf("fabled by Fyrsmith Labs\n")
	fmt.Printf("Version:    %s\n", version)
	fmt.Printf("Commit:     %s\n", gitCommit)
	fmt.Printf("Build Date: %s\n", buildDate)
}

// run starts the fabled server and blocks until the context is
// cancelled.
//
// Initialization order:
//  1. Load and validate configuration
//  2. Initialize logger
//  3. Load the embedding model
//  4. Connect to Qdrant and verify the collection schema
//  5. Build the provider registry and retrieval pipeline
//  6. Start the HTTP server
//  7. Graceful shutdown on context cancellation
func run(ctx context.Context, configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	defer func() {
		_ = logger.Sync() // Best-effort sync on shutdown
	}()

	logger.Info("Starting fabled",
		zap.Int("port", cfg.Server.Port),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.String("default_provider", cfg.LLM.DefaultProvider))

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

	logger.Info("Embedding model loaded",
		zap.String("model", encoder.Model()),
		zap.Int("dimension", encoder.Dimension()))

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

	// A missing collection is not fatal: the daemon serves /health and
	// reports it until fabled-init populates the index. A schema
	// mismatch is fatal since every search would return wrong results.
	switch err := store.VerifySchema(ctx, uint64(encoder.Dimension())); {
	case err == nil:
		logger.Info("Collection schema verified",
			zap.String("collection", store.Collection()))
	case errors.Is(err, vectorstore.ErrCollectionMissing):
		logger.Warn("Collection does not exist yet; run fabled-init to index the corpus",
			zap.String("collection", store.Collection()))
	default:
		return fmt.Errorf("verify collection schema: %w", err)
	}

	registry, err := llm.NewRegistry(cfg.LLM, logger)
	if err != nil {
		return fmt.Errorf("initialize providers: %w", err)
	}

	pipeline := rag.NewService(encoder, store, registry, cfg.LLM.ContextBudget, logger)

	srv, err := fabledhttp.NewServer(cfg.Server, cfg.LLM, pipeline, store, logger)
	if err != nil {
		return fmt.Errorf("create http server: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown http server: %w", err)
	}
	return nil
}
