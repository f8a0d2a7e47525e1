package storage

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"github.com/tomasellis/framedex/core"
)

func seedQueryStore(t *testing.T) *MemoryStore {
	t.Helper()
	s := NewMemoryStore()
	records := []core.VectorRecord{
		rec("near", []float32{1, 0}, core.VectorMetadata{MovieTitle: "Solaris"}),
		rec("mid", []float32{0.7, 0.7}, core.VectorMetadata{MovieTitle: "Solaris"}),
		rec("far", []float32{0, 1}, core.VectorMetadata{MovieTitle: "Stalker"}),
	}
	if _, err := s.Upsert(context.Background(), records); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestQueryNoThresholdKeepsAll(t *testing.T) {
	q := NewQueryEngine(seedQueryStore(t), zap.NewNop())

	res, err := q.Query(context.Background(), []float32{1, 0}, 10, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Results) != 3 {
		t.Errorf("got %d results without threshold, want 3", len(res.Results))
	}
	if len(res.Fallback) != 0 {
		t.Errorf("fallback populated without a threshold: %v", res.Fallback)
	}
}

func TestQueryThresholdFilters(t *testing.T) {
	q := NewQueryEngine(seedQueryStore(t), zap.NewNop())

	threshold := 0.5
	res, err := q.Query(context.Background(), []float32{1, 0}, 10, nil, &threshold)
	if err != nil {
		t.Fatal(err)
	}
	// "near" at 0 and "mid" at ~0.29 pass, "far" at 1 does not
	if len(res.Results) != 2 {
		t.Fatalf("got %d results under threshold %f, want 2: %v", len(res.Results), threshold, res.Results)
	}
	for _, m := range res.Results {
		if m.Score > threshold {
			t.Errorf("match %s score %f exceeds threshold", m.ID, m.Score)
		}
	}
	if len(res.Fallback) != 0 {
		t.Errorf("fallback populated even though results survived")
	}
}

func TestQueryThresholdMissTriggersFallback(t *testing.T) {
	q := NewQueryEngine(seedQueryStore(t), zap.NewNop())

	threshold := 0.0001
	res, err := q.Query(context.Background(), []float32{0.6, 0.8}, 10, nil, &threshold)
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Results) != 0 {
		t.Fatalf("expected no results under threshold %f, got %v", threshold, res.Results)
	}
	if len(res.Fallback) == 0 {
		t.Fatal("threshold miss must return the unfiltered fallback set")
	}
	if len(res.Fallback) > fallbackTopK {
		t.Errorf("fallback has %d matches, cap is %d", len(res.Fallback), fallbackTopK)
	}
}

func TestQueryEmptyStoreNoThreshold(t *testing.T) {
	q := NewQueryEngine(NewMemoryStore(), zap.NewNop())

	res, err := q.Query(context.Background(), []float32{1, 0}, 10, nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	// empty, not nil, and no fallback without a threshold
	if res.Results == nil || len(res.Results) != 0 {
		t.Errorf("results = %v, want empty slice", res.Results)
	}
	if res.Fallback == nil || len(res.Fallback) != 0 {
		t.Errorf("fallback = %v, want empty slice", res.Fallback)
	}
}

func TestQueryFilterWithThreshold(t *testing.T) {
	q := NewQueryEngine(seedQueryStore(t), zap.NewNop())

	threshold := 0.5
	res, err := q.Query(context.Background(), []float32{1, 0}, 10,
		map[string]string{"movieTitle": "Stalker"}, &threshold)
	if err != nil {
		t.Fatal(err)
	}
	// "far" is the only Stalker record and sits past the threshold, so
	// the fallback ignores the metadata filter entirely
	if len(res.Results) != 0 {
		t.Fatalf("results = %v, want none", res.Results)
	}
	if len(res.Fallback) != 3 {
		t.Errorf("fallback = %d matches, want all 3 (unfiltered)", len(res.Fallback))
	}
}
