// Package server wires the HTTP surface: job submission and polling,
// direct embedding endpoints, and vector-store management.
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/tomasellis/framedex/config"
	"github.com/tomasellis/framedex/core"
	"github.com/tomasellis/framedex/processors"
	"github.com/tomasellis/framedex/storage"
)

// Embedder is the embedding capability as the server sees it: the
// vector function plus enough identity for /health responses.
type Embedder interface {
	EmbedImage(ctx context.Context, jpegData []byte) ([]float32, error)
	Model() string
	Device() string
}

// Server holds the process-wide shared resources, constructed once at
// startup and read-shared by every request handler.
type Server struct {
	cfg          *config.Config
	log          *zap.Logger
	registry     *core.JobRegistry
	orchestrator *processors.Orchestrator
	patches      *processors.PatchEmbedder
	store        storage.VectorStore
	queries      *storage.QueryEngine
	embedder     Embedder
}

func New(cfg *config.Config, log *zap.Logger, registry *core.JobRegistry, orchestrator *processors.Orchestrator, patches *processors.PatchEmbedder, store storage.VectorStore, embedder Embedder) *Server {
	return &Server{
		cfg:          cfg,
		log:          log,
		registry:     registry,
		orchestrator: orchestrator,
		patches:      patches,
		store:        store,
		queries:      storage.NewQueryEngine(store, log),
		embedder:     embedder,
	}
}

// Routes registers every endpoint on a fresh mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/start-process-video", s.startProcessVideoHandler)
	mux.HandleFunc("/status/", s.statusHandler)
	mux.HandleFunc("/jobs", s.jobsHandler)

	mux.HandleFunc("/embed/single", s.embedSingleHandler)
	mux.HandleFunc("/embed/batch", s.embedBatchHandler)

	mux.HandleFunc("/vector-db/upsert", s.upsertHandler)
	mux.HandleFunc("/vector-db/query", s.queryHandler)
	mux.HandleFunc("/vector-db/delete", s.deleteHandler)
	mux.HandleFunc("/vector-db/stats", s.statsHandler)

	mux.HandleFunc("/health", s.healthHandler)
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

// ListenAndServe blocks serving the configured port.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.log.Info("server listening", zap.String("addr", addr))
	return http.ListenAndServe(addr, s.Routes())
}
