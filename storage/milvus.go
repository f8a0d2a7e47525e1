package storage

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"

	"github.com/tomasellis/framedex/config"
	"github.com/tomasellis/framedex/core"
)

// MilvusStore keeps patch vectors in a Milvus collection with a
// varchar primary key, so upserting an existing id overwrites it.
type MilvusStore struct {
	mc   client.Client
	coll string
	dim  int
}

func newMilvusStore(cfg *config.Config) (*MilvusStore, error) {
	mc, err := client.NewClient(context.Background(), client.Config{
		Address:  cfg.MilvusAddr,
		Username: cfg.MilvusUsername,
		Password: cfg.MilvusPassword,
		APIKey:   cfg.MilvusAPIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}

	s := &MilvusStore{mc: mc, coll: cfg.MilvusCollection, dim: cfg.EmbeddingDim}
	if err := s.ensureSchemaAndIndex(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *MilvusStore) Name() string { return s.coll }

func (s *MilvusStore) ensureSchemaAndIndex() error {
	ctx := context.Background()
	has, err := s.mc.HasCollection(ctx, s.coll)
	if err != nil {
		return err
	}
	if !has {
		schema := entity.NewSchema()
		schema.WithField(entity.NewField().WithName("id").WithIsPrimaryKey(true).WithDataType(entity.FieldTypeVarChar).WithMaxLength(512))
		schema.WithField(entity.NewField().WithName("frame_path").WithDataType(entity.FieldTypeVarChar).WithMaxLength(1024))
		schema.WithField(entity.NewField().WithName("ts").WithDataType(entity.FieldTypeInt64))
		schema.WithField(entity.NewField().WithName("movie_title").WithDataType(entity.FieldTypeVarChar).WithMaxLength(512))
		schema.WithField(entity.NewField().WithName("director").WithDataType(entity.FieldTypeVarChar).WithMaxLength(512))
		schema.WithField(entity.NewField().WithName("movie_url").WithDataType(entity.FieldTypeVarChar).WithMaxLength(1024))
		schema.WithField(entity.NewField().WithName("patch_type").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64))
		schema.WithField(entity.NewField().WithName("x").WithDataType(entity.FieldTypeInt64))
		schema.WithField(entity.NewField().WithName("y").WithDataType(entity.FieldTypeInt64))
		schema.WithField(entity.NewField().WithName("width").WithDataType(entity.FieldTypeInt64))
		schema.WithField(entity.NewField().WithName("height").WithDataType(entity.FieldTypeInt64))
		schema.WithField(entity.NewField().WithName("created_at").WithDataType(entity.FieldTypeVarChar).WithMaxLength(64))
		schema.WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(s.dim)))

		if err := s.mc.CreateCollection(ctx, schema, int32(2)); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	}
	idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
	if err != nil {
		return fmt.Errorf("new hnsw index: %w", err)
	}
	if err := s.mc.CreateIndex(ctx, s.coll, "vector", idx, false, client.WithIndexName("idx_vector")); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := s.mc.LoadCollection(ctx, s.coll, false); err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	return nil
}

func (s *MilvusStore) Upsert(ctx context.Context, records []core.VectorRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	n := len(records)
	ids := make([]string, 0, n)
	framePaths := make([]string, 0, n)
	timestamps := make([]int64, 0, n)
	titles := make([]string, 0, n)
	directors := make([]string, 0, n)
	urls := make([]string, 0, n)
	patchTypes := make([]string, 0, n)
	xs := make([]int64, 0, n)
	ys := make([]int64, 0, n)
	widths := make([]int64, 0, n)
	heights := make([]int64, 0, n)
	createdAts := make([]string, 0, n)
	vectors := make([][]float32, 0, n)

	for _, rec := range records {
		ids = append(ids, rec.ID)
		framePaths = append(framePaths, rec.Metadata.FramePath)
		timestamps = append(timestamps, int64(rec.Metadata.Timestamp))
		titles = append(titles, rec.Metadata.MovieTitle)
		directors = append(directors, rec.Metadata.Director)
		urls = append(urls, rec.Metadata.MovieURL)
		patchTypes = append(patchTypes, rec.Metadata.PatchType)
		xs = append(xs, int64(rec.Metadata.X))
		ys = append(ys, int64(rec.Metadata.Y))
		widths = append(widths, int64(rec.Metadata.Width))
		heights = append(heights, int64(rec.Metadata.Height))
		createdAts = append(createdAts, rec.Metadata.CreatedAt)
		vectors = append(vectors, rec.Embedding)
	}

	_, err := s.mc.Upsert(ctx, s.coll, "",
		entity.NewColumnVarChar("id", ids),
		entity.NewColumnVarChar("frame_path", framePaths),
		entity.NewColumnInt64("ts", timestamps),
		entity.NewColumnVarChar("movie_title", titles),
		entity.NewColumnVarChar("director", directors),
		entity.NewColumnVarChar("movie_url", urls),
		entity.NewColumnVarChar("patch_type", patchTypes),
		entity.NewColumnInt64("x", xs),
		entity.NewColumnInt64("y", ys),
		entity.NewColumnInt64("width", widths),
		entity.NewColumnInt64("height", heights),
		entity.NewColumnVarChar("created_at", createdAts),
		entity.NewColumnFloatVector("vector", s.dim, vectors),
	)
	if err != nil {
		return 0, fmt.Errorf("milvus upsert: %w", err)
	}
	return len(records), nil
}

func (s *MilvusStore) Get(ctx context.Context, ids []string) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	quoted := make([]string, 0, len(ids))
	for _, id := range ids {
		quoted = append(quoted, strconv.Quote(id))
	}
	expr := fmt.Sprintf("id in [%s]", strings.Join(quoted, ", "))

	rs, err := s.mc.Query(ctx, s.coll, nil, expr, []string{"id"})
	if err != nil {
		return nil, fmt.Errorf("milvus query ids: %w", err)
	}
	var existing []string
	for _, col := range rs {
		if c, ok := col.(*entity.ColumnVarChar); ok && c.Name() == "id" {
			existing = append(existing, c.Data()...)
		}
	}
	return existing, nil
}

var milvusFilterColumns = map[string]string{
	"framePath":  "frame_path",
	"movieTitle": "movie_title",
	"director":   "director",
	"patchType":  "patch_type",
}

func milvusFilterExpr(filter map[string]string) (string, error) {
	conds := make([]string, 0, len(filter))
	for key, val := range filter {
		col, ok := milvusFilterColumns[key]
		if !ok {
			return "", fmt.Errorf("unsupported filter key %q", key)
		}
		conds = append(conds, fmt.Sprintf("%s == %s", col, strconv.Quote(val)))
	}
	return strings.Join(conds, " && "), nil
}

var milvusOutputFields = []string{
	"frame_path", "ts", "movie_title", "director", "movie_url",
	"patch_type", "x", "y", "width", "height", "created_at",
}

func (s *MilvusStore) Query(ctx context.Context, vector []float32, topK int, filter map[string]string) ([]core.Match, error) {
	if topK <= 0 {
		topK = 10
	}
	expr, err := milvusFilterExpr(filter)
	if err != nil {
		return nil, err
	}

	sp, _ := entity.NewIndexHNSWSearchParam(74)
	res, err := s.mc.Search(ctx, s.coll, []string{}, expr, milvusOutputFields,
		[]entity.Vector{entity.FloatVector(vector)}, "vector", entity.COSINE, topK, sp)
	if err != nil {
		return nil, fmt.Errorf("milvus search: %w", err)
	}

	var matches []core.Match
	for _, r := range res {
		cols := map[string]entity.Column{}
		for _, c := range r.Fields {
			cols[c.Name()] = c
		}
		idCol, _ := r.IDs.(*entity.ColumnVarChar)
		for i := 0; i < r.ResultCount; i++ {
			var m core.Match
			if idCol != nil && i < len(idCol.Data()) {
				m.ID = idCol.Data()[i]
			}
			// Milvus COSINE scores are similarities (higher = closer);
			// convert to cosine distance to match the store contract.
			m.Score = 1 - float64(r.Scores[i])
			m.Metadata = milvusMetadata(cols, i)
			matches = append(matches, m)
		}
	}
	return matches, nil
}

func milvusMetadata(cols map[string]entity.Column, i int) core.VectorMetadata {
	md := core.VectorMetadata{}
	varchar := func(name string) string {
		if c, ok := cols[name].(*entity.ColumnVarChar); ok {
			if data := c.Data(); i < len(data) {
				return data[i]
			}
		}
		return ""
	}
	int64f := func(name string) int {
		if c, ok := cols[name].(*entity.ColumnInt64); ok {
			if data := c.Data(); i < len(data) {
				return int(data[i])
			}
		}
		return 0
	}
	md.FramePath = varchar("frame_path")
	md.Timestamp = int64f("ts")
	md.MovieTitle = varchar("movie_title")
	md.Director = varchar("director")
	md.MovieURL = varchar("movie_url")
	md.PatchType = varchar("patch_type")
	md.X = int64f("x")
	md.Y = int64f("y")
	md.Width = int64f("width")
	md.Height = int64f("height")
	md.CreatedAt = varchar("created_at")
	return md
}

func (s *MilvusStore) Delete(ctx context.Context, filter map[string]string) error {
	if len(filter) == 0 {
		return fmt.Errorf("refusing to delete without a filter")
	}
	expr, err := milvusFilterExpr(filter)
	if err != nil {
		return err
	}
	if err := s.mc.Delete(ctx, s.coll, "", expr); err != nil {
		return fmt.Errorf("milvus delete: %w", err)
	}
	return nil
}

func (s *MilvusStore) Count(ctx context.Context) (int64, error) {
	stats, err := s.mc.GetCollectionStatistics(ctx, s.coll)
	if err != nil {
		return 0, fmt.Errorf("milvus stats: %w", err)
	}
	n, err := strconv.ParseInt(stats["row_count"], 10, 64)
	if err != nil {
		return 0, fmt.Errorf("parse row_count: %w", err)
	}
	return n, nil
}
