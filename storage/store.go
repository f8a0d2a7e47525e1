package storage

import (
	"context"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/tomasellis/framedex/config"
	"github.com/tomasellis/framedex/core"
)

// VectorStore abstracts the similarity-searchable backend. Distances
// are cosine (lower = more similar) for every implementation; the
// metric is fixed at collection creation and never re-derived per
// query.
type VectorStore interface {
	// Upsert stores each record under its id, overwriting any record
	// already there. Returns how many records were written.
	Upsert(ctx context.Context, records []core.VectorRecord) (int, error)
	// Get returns the subset of ids that already exist in the store.
	Get(ctx context.Context, ids []string) ([]string, error)
	// Query returns up to topK matches ranked by ascending cosine
	// distance, restricted to records whose metadata matches filter.
	Query(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]core.Match, error)
	// Delete removes every record whose metadata matches filter.
	Delete(ctx context.Context, filter map[string]string) error
	Count(ctx context.Context) (int64, error)
	Name() string
}

// NewStore picks the backend from cfg.Store. A backend that fails to
// initialize degrades to the in-memory store with a warning so the
// embedding endpoints keep working.
func NewStore(cfg *config.Config, log *zap.Logger) VectorStore {
	switch cfg.Store {
	case "milvus":
		s, err := newMilvusStore(cfg)
		if err != nil {
			log.Warn("milvus init failed, falling back to memory store", zap.Error(err))
			return NewMemoryStore()
		}
		return s
	case "pgvector":
		s, err := newPgVectorStore(context.Background(), cfg)
		if err != nil {
			log.Warn("pgvector init failed, falling back to memory store", zap.Error(err))
			return NewMemoryStore()
		}
		return s
	default:
		return NewMemoryStore()
	}
}

// ---------------- Memory implementation (default and fallback) ----------------

type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]core.VectorRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]core.VectorRecord)}
}

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) Upsert(ctx context.Context, records []core.VectorRecord) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range records {
		s.records[rec.ID] = rec
	}
	return len(records), nil
}

func (s *MemoryStore) Get(ctx context.Context, ids []string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	existing := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := s.records[id]; ok {
			existing = append(existing, id)
		}
	}
	return existing, nil
}

func (s *MemoryStore) Query(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]core.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := make([]core.Match, 0, len(s.records))
	for _, rec := range s.records {
		if !metadataMatches(rec.Metadata, filter) {
			continue
		}
		matches = append(matches, core.Match{
			ID:       rec.ID,
			Score:    cosineDistance(vector, rec.Embedding),
			Metadata: rec.Metadata,
		})
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Score < matches[j].Score })
	if topK > 0 && topK < len(matches) {
		matches = matches[:topK]
	}
	return matches, nil
}

func (s *MemoryStore) Delete(ctx context.Context, filter map[string]string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.records {
		if metadataMatches(rec.Metadata, filter) {
			delete(s.records, id)
		}
	}
	return nil
}

func (s *MemoryStore) Count(ctx context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

// metadataMatches checks equality on the filterable metadata fields.
// An empty filter matches everything; an unknown key matches nothing.
func metadataMatches(md core.VectorMetadata, filter map[string]string) bool {
	for key, want := range filter {
		var got string
		switch key {
		case "framePath":
			got = md.FramePath
		case "movieTitle":
			got = md.MovieTitle
		case "director":
			got = md.Director
		case "patchType":
			got = md.PatchType
		default:
			return false
		}
		if got != want {
			return false
		}
	}
	return true
}

// cosineDistance returns 1 - cosine similarity. Mismatched or zero
// vectors land at the maximum distance so they sort last.
func cosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}
