package core

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
)

// PatchSpec names one rectangular sub-region of a frame.
type PatchSpec struct {
	PatchType string `json:"patch_type"`
	X         int    `json:"x"`
	Y         int    `json:"y"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

// FrameRecord is one extracted (or discovered) frame image on disk.
// TimestampSec is derived from the frame index and sampling interval,
// or parsed out of a frame_NNNNNN filename.
type FrameRecord struct {
	Path         string `json:"path"`
	TimestampSec int    `json:"timestamp"`
	FrameNumber  int    `json:"frame_number"`
}

// VectorMetadata travels with every stored embedding.
type VectorMetadata struct {
	FramePath  string `json:"framePath"`
	Timestamp  int    `json:"timestamp"`
	MovieTitle string `json:"movieTitle"`
	Director   string `json:"director"`
	MovieURL   string `json:"movieUrl"`
	PatchType  string `json:"patchType"`
	X          int    `json:"x"`
	Y          int    `json:"y"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	CreatedAt  string `json:"createdAt"`
}

// VectorRecord is the unit of storage. ID is deterministic
// (see VectorID) so re-upserting overwrites instead of duplicating.
type VectorRecord struct {
	ID        string         `json:"id"`
	Embedding []float32      `json:"embedding"`
	Metadata  VectorMetadata `json:"metadata"`
}

// Match is one ranked result from a similarity query. Score is cosine
// distance: lower means more similar.
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata VectorMetadata `json:"metadata"`
}

type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobDone       JobStatus = "done"
	JobError      JobStatus = "error"
)

// Job tracks one asynchronous video-processing run. Progress counts
// frames completed out of Total.
type Job struct {
	ID        string    `json:"job_id"`
	Status    JobStatus `json:"status"`
	Progress  int       `json:"progress"`
	Total     int       `json:"total"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewJobID returns a fresh UUID string for a job.
func NewJobID() string {
	return uuid.NewString()
}

// WriteJSON writes v as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "write json error: %v", err)
	}
}
