package main

import (
	"log"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/tomasellis/framedex/config"
	"github.com/tomasellis/framedex/core"
	"github.com/tomasellis/framedex/processors"
	"github.com/tomasellis/framedex/server"
	"github.com/tomasellis/framedex/storage"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	if err := os.MkdirAll(cfg.DataRoot, 0755); err != nil {
		logger.Fatal("failed to create data dir", zap.Error(err))
	}

	store := storage.NewStore(cfg, logger)
	logger.Info("vector store initialized", zap.String("backend", cfg.Store), zap.String("collection", store.Name()))

	embedder := newEmbedder(cfg, logger)
	registry := core.NewJobRegistry()
	extractor := processors.NewFrameExtractor(logger)
	patches := processors.NewPatchEmbedder(embedder, logger)
	orchestrator := processors.NewOrchestrator(registry, extractor, patches, store, cfg.BatchSize, logger)

	srv := server.New(cfg, logger, registry, orchestrator, patches, store, embedder)
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

// newEmbedder connects the configured embedding endpoint, degrading to
// the deterministic mock when none is configured so the service stays
// usable with the memory store.
func newEmbedder(cfg *config.Config, logger *zap.Logger) server.Embedder {
	if cfg.HasValidAPI() && cfg.APIKey != "" {
		embedder, err := storage.NewEmbeddingClient(cfg)
		if err == nil {
			logger.Info("embedding client initialized",
				zap.String("model", cfg.EmbeddingModel), zap.Int("dim", cfg.EmbeddingDim))
			return embedder
		}
		logger.Warn("embedding client init failed, using mock embedder", zap.Error(err))
	} else {
		config.PrintConfigInstructions()
		logger.Warn("no embedding endpoint configured, using mock embedder")
	}
	return &storage.MockEmbedder{Dim: cfg.EmbeddingDim}
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zc := zap.NewProductionConfig()
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
