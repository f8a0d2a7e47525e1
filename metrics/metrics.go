package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "framedex_jobs_processed_total",
		Help: "Total number of processing jobs finished, by terminal status",
	}, []string{"status"})

	BatchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "framedex_batch_duration_seconds",
		Help:    "Duration of one pipeline stage per batch",
		Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120},
	}, []string{"stage"})

	FramesExtractedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framedex_frames_extracted_total",
		Help: "Total number of frames extracted or discovered across all jobs",
	})

	PatchesEmbeddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framedex_patches_embedded_total",
		Help: "Total number of patch embeddings computed",
	})

	PatchFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framedex_patch_failures_total",
		Help: "Total number of patches skipped due to crop or embed errors",
	})

	VectorsUpsertedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "framedex_vectors_upserted_total",
		Help: "Total number of vectors upserted into the store",
	})

	ActiveJobs = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "framedex_active_jobs",
		Help: "Number of jobs currently in the processing state",
	})
)
