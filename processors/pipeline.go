package processors

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tomasellis/framedex/core"
	"github.com/tomasellis/framedex/metrics"
	"github.com/tomasellis/framedex/storage"
)

// JobRequest is one submission of a video for indexing.
type JobRequest struct {
	VideoPath     string `json:"video_path"`
	OutputDir     string `json:"output_dir"`
	FrameInterval int    `json:"frame_interval"`
	MovieTitle    string `json:"movieTitle"`
	Director      string `json:"director"`
	MovieURL      string `json:"movieUrl"`
}

// Orchestrator drives one video end to end: frame discovery or
// extraction, batching, dedup, patch embedding, upsert, and job-status
// bookkeeping. Batches run strictly one after another, so memory is
// bounded by one batch of vectors and progress only moves forward.
type Orchestrator struct {
	registry  *core.JobRegistry
	extractor *FrameExtractor
	patches   *PatchEmbedder
	store     storage.VectorStore
	log       *zap.Logger
	batchSize int
}

func NewOrchestrator(registry *core.JobRegistry, extractor *FrameExtractor, patches *PatchEmbedder, store storage.VectorStore, batchSize int, log *zap.Logger) *Orchestrator {
	if batchSize <= 0 {
		batchSize = 20
	}
	return &Orchestrator{
		registry:  registry,
		extractor: extractor,
		patches:   patches,
		store:     store,
		log:       log,
		batchSize: batchSize,
	}
}

// Submit registers a pending job and starts processing in the
// background. The caller polls the registry for progress; a submitted
// job runs to completion or failure, there is no cancellation.
func (o *Orchestrator) Submit(req JobRequest) string {
	jobID := o.registry.Create()
	go o.run(jobID, req)
	return jobID
}

func (o *Orchestrator) run(jobID string, req JobRequest) {
	ctx := context.Background()
	log := o.log.With(zap.String("job_id", jobID))

	if req.FrameInterval <= 0 {
		req.FrameInterval = 3
	}
	if req.MovieTitle == "" {
		req.MovieTitle = "Unknown Movie Title"
	}
	if req.Director == "" {
		req.Director = "Unknown Director"
	}

	log.Info("starting video processing",
		zap.String("video", req.VideoPath),
		zap.String("output_dir", req.OutputDir))

	frames, err := o.extractor.ExtractOrDiscover(ctx, req.VideoPath, req.OutputDir, req.FrameInterval)
	if err != nil {
		o.fail(jobID, log, err)
		return
	}
	metrics.FramesExtractedTotal.Add(float64(len(frames)))

	o.registry.Update(jobID, func(j *core.Job) {
		j.Status = core.JobProcessing
		j.Total = len(frames)
		j.Progress = 0
	})
	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()

	batches := 0
	for start := 0; start < len(frames); start += o.batchSize {
		end := start + o.batchSize
		if end > len(frames) {
			end = len(frames)
		}
		batch := frames[start:end]
		batches++

		log.Info("processing batch",
			zap.Int("batch", batches),
			zap.Int("size", len(batch)))

		if o.processBatch(ctx, log, batch, req) {
			// progress counts the batch's pre-filter frame count
			o.registry.Update(jobID, func(j *core.Job) { j.Progress += len(batch) })
		}
	}

	o.registry.Update(jobID, func(j *core.Job) { j.Status = core.JobDone })
	metrics.JobsProcessedTotal.WithLabelValues(string(core.JobDone)).Inc()
	log.Info("video processing complete", zap.Int("frames", len(frames)), zap.Int("batches", batches))
}

// processBatch runs dedup, embedding and upsert for one batch.
// Per-frame and per-patch failures are logged and skipped; the return
// value reports whether the batch's upsert succeeded and progress may
// advance.
func (o *Orchestrator) processBatch(ctx context.Context, log *zap.Logger, batch []core.FrameRecord, req JobRequest) bool {
	dedupStart := time.Now()
	pending := o.filterUnprocessed(ctx, log, batch)
	metrics.BatchDuration.WithLabelValues("dedup").Observe(time.Since(dedupStart).Seconds())

	embedStart := time.Now()
	records := make([]core.VectorRecord, 0, len(pending)*13)
	for _, frame := range pending {
		results, err := o.patches.EmbedFrame(ctx, frame.Path)
		if err != nil {
			log.Warn("skipping frame", zap.String("frame", frame.Path), zap.Error(err))
			metrics.PatchFailuresTotal.Inc()
			continue
		}
		createdAt := time.Now().UTC().Format(time.RFC3339)
		for _, res := range results {
			if res.Err != nil {
				metrics.PatchFailuresTotal.Inc()
				continue
			}
			metrics.PatchesEmbeddedTotal.Inc()
			records = append(records, core.VectorRecord{
				ID:        core.VectorID(req.MovieTitle, frame.TimestampSec, res.Patch.PatchType),
				Embedding: res.Embedding,
				Metadata: core.VectorMetadata{
					FramePath:  frame.Path,
					Timestamp:  frame.TimestampSec,
					MovieTitle: req.MovieTitle,
					Director:   req.Director,
					MovieURL:   req.MovieURL,
					PatchType:  res.Patch.PatchType,
					X:          res.Patch.X,
					Y:          res.Patch.Y,
					Width:      res.Patch.Width,
					Height:     res.Patch.Height,
					CreatedAt:  createdAt,
				},
			})
		}
	}
	metrics.BatchDuration.WithLabelValues("embed").Observe(time.Since(embedStart).Seconds())

	if len(records) == 0 {
		// everything deduplicated or skipped; the batch still counts
		return true
	}

	upsertStart := time.Now()
	count, err := o.store.Upsert(ctx, records)
	metrics.BatchDuration.WithLabelValues("upsert").Observe(time.Since(upsertStart).Seconds())
	if err != nil {
		log.Error("batch upsert failed", zap.Int("vectors", len(records)), zap.Error(err))
		return false
	}
	metrics.VectorsUpsertedTotal.Add(float64(count))
	return true
}

// filterUnprocessed drops frames whose paths already exist as ids in
// the store. Storage keys are derived from (title, timestamp, patch),
// not paths, so this only catches literal re-submission of the same
// path set; the lookup stays best-effort on store errors.
func (o *Orchestrator) filterUnprocessed(ctx context.Context, log *zap.Logger, batch []core.FrameRecord) []core.FrameRecord {
	paths := make([]string, 0, len(batch))
	for _, f := range batch {
		paths = append(paths, f.Path)
	}

	existing, err := o.store.Get(ctx, paths)
	if err != nil {
		log.Warn("existence check failed, processing full batch", zap.Error(err))
		return batch
	}
	if len(existing) == 0 {
		return batch
	}

	seen := make(map[string]bool, len(existing))
	for _, id := range existing {
		seen[id] = true
	}
	pending := make([]core.FrameRecord, 0, len(batch))
	for _, f := range batch {
		if !seen[f.Path] {
			pending = append(pending, f)
		}
	}
	return pending
}

func (o *Orchestrator) fail(jobID string, log *zap.Logger, err error) {
	log.Error("job failed", zap.Error(err))
	o.registry.Update(jobID, func(j *core.Job) {
		j.Status = core.JobError
		j.Error = err.Error()
	})
	metrics.JobsProcessedTotal.WithLabelValues(string(core.JobError)).Inc()
}
