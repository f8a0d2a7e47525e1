package server

import (
	"encoding/json"
	"fmt"
	"image"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/tomasellis/framedex/core"
	"github.com/tomasellis/framedex/processors"
)

func (s *Server) startProcessVideoHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		core.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req processors.JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.VideoPath == "" {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "video_path is required"})
		return
	}
	if req.OutputDir == "" {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "output_dir is required"})
		return
	}
	if req.FrameInterval <= 0 {
		req.FrameInterval = s.cfg.FrameInterval
	}

	jobID := s.orchestrator.Submit(req)
	core.WriteJSON(w, http.StatusOK, map[string]string{"job_id": jobID, "status": "started"})
}

func (s *Server) statusHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		core.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/status/")
	if jobID == "" {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "job id is required"})
		return
	}

	job, ok := s.registry.Get(jobID)
	if !ok {
		core.WriteJSON(w, http.StatusOK, map[string]string{"status": "unknown"})
		return
	}
	core.WriteJSON(w, http.StatusOK, map[string]any{
		"status":   job.Status,
		"progress": job.Progress,
		"total":    job.Total,
		"error":    job.Error,
	})
}

func (s *Server) jobsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		core.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	core.WriteJSON(w, http.StatusOK, s.registry.List())
}

// embedSingleHandler embeds one uploaded image as 13 patch embeddings.
func (s *Server) embedSingleHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		core.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid multipart form"})
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "missing file field 'file'"})
		return
	}
	defer file.Close()

	img, _, err := image.Decode(file)
	if err != nil {
		s.log.Warn("failed to decode uploaded image",
			zap.String("filename", header.Filename), zap.Error(err))
		core.WriteJSON(w, http.StatusOK, map[string]any{"embeddings": []any{}})
		return
	}

	type patchEmbedding struct {
		PatchType string    `json:"patch_type"`
		Embedding []float32 `json:"embedding"`
		X         int       `json:"x"`
		Y         int       `json:"y"`
		Width     int       `json:"width"`
		Height    int       `json:"height"`
	}
	embeddings := make([]patchEmbedding, 0, 13)
	for _, res := range s.patches.EmbedPatches(r.Context(), img) {
		if res.Err != nil {
			continue
		}
		embeddings = append(embeddings, patchEmbedding{
			PatchType: res.Patch.PatchType,
			Embedding: res.Embedding,
			X:         res.Patch.X,
			Y:         res.Patch.Y,
			Width:     res.Patch.Width,
			Height:    res.Patch.Height,
		})
	}
	core.WriteJSON(w, http.StatusOK, map[string]any{"embeddings": embeddings})
}

// embedBatchHandler embeds whole images by path. Missing or unreadable
// files are skipped so one bad path never sinks the batch.
func (s *Server) embedBatchHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		core.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		ImagePaths []string `json:"image_paths"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	type imageEmbedding struct {
		Path       string    `json:"path"`
		Embedding  []float32 `json:"embedding"`
		Dimensions int       `json:"dimensions"`
		Filename   string    `json:"filename"`
	}
	embeddings := make([]imageEmbedding, 0, len(req.ImagePaths))
	for _, path := range req.ImagePaths {
		if _, err := os.Stat(path); err != nil {
			s.log.Warn("image file not found", zap.String("path", path))
			continue
		}
		emb, err := s.patches.EmbedWhole(r.Context(), path)
		if err != nil {
			s.log.Warn("failed to embed image", zap.String("path", path), zap.Error(err))
			continue
		}
		embeddings = append(embeddings, imageEmbedding{
			Path:       path,
			Embedding:  emb,
			Dimensions: len(emb),
			Filename:   filepath.Base(path),
		})
	}

	core.WriteJSON(w, http.StatusOK, map[string]any{
		"embeddings": embeddings,
		"model_info": map[string]any{
			"model":           s.embedder.Model(),
			"device":          s.embedder.Device(),
			"total_processed": len(embeddings),
			"total_requested": len(req.ImagePaths),
		},
	})
}

func (s *Server) upsertHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		core.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if s.store == nil {
		core.WriteJSON(w, http.StatusOK, map[string]string{"error": "vector store not initialized"})
		return
	}

	var req struct {
		Vectors []core.VectorRecord `json:"vectors"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Vectors) == 0 {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "no vectors provided"})
		return
	}

	count, err := s.store.Upsert(r.Context(), req.Vectors)
	if err != nil {
		core.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("failed to upsert vectors: %v", err)})
		return
	}
	core.WriteJSON(w, http.StatusOK, map[string]any{"status": "success", "count": count})
}

func (s *Server) queryHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		core.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if s.store == nil {
		core.WriteJSON(w, http.StatusOK, map[string]string{"error": "vector store not initialized"})
		return
	}

	var req struct {
		Embedding []float32         `json:"embedding"`
		Limit     int               `json:"limit"`
		Filter    map[string]string `json:"filter"`
		Threshold *float64          `json:"threshold"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if len(req.Embedding) == 0 {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "no embedding provided"})
		return
	}
	if req.Limit <= 0 {
		req.Limit = 10
	}

	result, err := s.queries.Query(r.Context(), req.Embedding, req.Limit, req.Filter, req.Threshold)
	if err != nil {
		core.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("failed to query vectors: %v", err)})
		return
	}
	core.WriteJSON(w, http.StatusOK, result)
}

func (s *Server) deleteHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		core.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if s.store == nil {
		core.WriteJSON(w, http.StatusOK, map[string]string{"error": "vector store not initialized"})
		return
	}

	var req struct {
		FrameID string `json:"frameId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.FrameID == "" {
		core.WriteJSON(w, http.StatusBadRequest, map[string]string{"error": "no frame ID provided"})
		return
	}

	if err := s.store.Delete(r.Context(), map[string]string{"framePath": req.FrameID}); err != nil {
		core.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("failed to delete vectors: %v", err)})
		return
	}
	core.WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": fmt.Sprintf("Deleted vectors for frame %s", req.FrameID),
	})
}

func (s *Server) statsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		core.WriteJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	if s.store == nil {
		core.WriteJSON(w, http.StatusOK, map[string]string{"error": "vector store not initialized"})
		return
	}

	count, err := s.store.Count(r.Context())
	if err != nil {
		core.WriteJSON(w, http.StatusInternalServerError, map[string]string{"error": fmt.Sprintf("failed to get database stats: %v", err)})
		return
	}
	core.WriteJSON(w, http.StatusOK, map[string]any{
		"total_vectors":   count,
		"collection_name": s.store.Name(),
		"status":          "healthy",
	})
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	device := ""
	if s.embedder != nil {
		device = s.embedder.Device()
	}
	core.WriteJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"model_loaded": s.embedder != nil,
		"device":       device,
	})
}
