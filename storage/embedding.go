package storage

import (
	"context"
	"encoding/base64"
	"fmt"
	"hash/fnv"
	"math"

	openai "github.com/sashabaranov/go-openai"

	"github.com/tomasellis/framedex/config"
)

// EmbeddingClient talks to an OpenAI-compatible /embeddings endpoint
// serving a CLIP-family image model. Patch crops are submitted as
// base64 data URIs, which such endpoints accept in place of text input.
type EmbeddingClient struct {
	client *openai.Client
	model  string
	dim    int
}

func NewEmbeddingClient(cfg *config.Config) (*EmbeddingClient, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	oc := openai.DefaultConfig(cfg.APIKey)
	oc.BaseURL = cfg.BaseURL
	return &EmbeddingClient{
		client: openai.NewClientWithConfig(oc),
		model:  cfg.EmbeddingModel,
		dim:    cfg.EmbeddingDim,
	}, nil
}

func (c *EmbeddingClient) Model() string { return c.model }

// Device reports where the model runs. The model lives behind the
// remote endpoint, so placement is opaque to this service.
func (c *EmbeddingClient) Device() string { return "remote" }

func (c *EmbeddingClient) EmbedImage(ctx context.Context, jpegData []byte) ([]float32, error) {
	dataURI := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(jpegData)
	resp, err := c.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Model: openai.EmbeddingModel(c.model),
		Input: []string{dataURI},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding API failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}
	emb := resp.Data[0].Embedding
	if c.dim > 0 && len(emb) != c.dim {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(emb), c.dim)
	}
	return emb, nil
}

// MockEmbedder produces deterministic unit vectors derived from the
// image bytes. Used with the memory store and throughout the tests; no
// endpoint required.
type MockEmbedder struct {
	Dim int
}

func (m *MockEmbedder) Model() string  { return "mock" }
func (m *MockEmbedder) Device() string { return "cpu" }

func (m *MockEmbedder) EmbedImage(ctx context.Context, jpegData []byte) ([]float32, error) {
	dim := m.Dim
	if dim <= 0 {
		dim = 512
	}
	h := fnv.New64a()
	h.Write(jpegData)
	seed := h.Sum64()

	vec := make([]float32, dim)
	var norm float64
	for i := range vec {
		// xorshift keeps the sequence cheap and reproducible
		seed ^= seed << 13
		seed ^= seed >> 7
		seed ^= seed << 17
		v := float64(int64(seed%2000)-1000) / 1000.0
		vec[i] = float32(v)
		norm += v * v
	}
	norm = math.Sqrt(norm)
	if norm > 0 {
		for i := range vec {
			vec[i] = float32(float64(vec[i]) / norm)
		}
	}
	return vec, nil
}
