package storage

import (
	"context"

	"go.uber.org/zap"

	"github.com/tomasellis/framedex/core"
)

// fallbackTopK is how many diagnostic matches a threshold miss returns.
const fallbackTopK = 10

// QueryEngine wraps a VectorStore with threshold filtering and the
// diagnostic fallback retrieval.
type QueryEngine struct {
	store VectorStore
	log   *zap.Logger
}

func NewQueryEngine(store VectorStore, log *zap.Logger) *QueryEngine {
	return &QueryEngine{store: store, log: log}
}

// QueryResult separates matches that survived the threshold from the
// unfiltered fallback set returned when nothing survived.
type QueryResult struct {
	Results  []core.Match `json:"results"`
	Fallback []core.Match `json:"fallback"`
}

// Query retrieves the top-k matches under filter and keeps those with
// cosine distance at or below threshold. A nil threshold keeps
// everything. When a threshold was supplied and excluded every match,
// a second unfiltered top-10 query runs purely for diagnostic
// visibility and lands in Fallback.
func (q *QueryEngine) Query(ctx context.Context, vector []float32, topK int, filter map[string]string, threshold *float64) (QueryResult, error) {
	matches, err := q.store.Query(ctx, vector, topK, filter)
	if err != nil {
		return QueryResult{}, err
	}

	filtered := matches
	if threshold != nil {
		filtered = make([]core.Match, 0, len(matches))
		for _, m := range matches {
			if m.Score <= *threshold {
				filtered = append(filtered, m)
			}
		}
	}

	result := QueryResult{Results: filtered, Fallback: []core.Match{}}
	if len(filtered) == 0 && threshold != nil {
		fallback, err := q.store.Query(ctx, vector, fallbackTopK, nil)
		if err != nil {
			return QueryResult{}, err
		}
		result.Fallback = fallback
		q.log.Info("no matches within threshold, returning fallback",
			zap.Float64("threshold", *threshold),
			zap.Int("fallback_count", len(fallback)))
	}
	if result.Results == nil {
		result.Results = []core.Match{}
	}
	return result, nil
}
