package config

import (
	"testing"
)

func TestDefaults(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d, want 8080", cfg.Port)
	}
	if cfg.Store != "memory" {
		t.Errorf("store = %q, want memory", cfg.Store)
	}
	if cfg.EmbeddingDim != 512 {
		t.Errorf("embedding dim = %d, want 512", cfg.EmbeddingDim)
	}
	if cfg.FrameInterval != 3 || cfg.BatchSize != 20 {
		t.Errorf("pipeline defaults = %d/%d, want 3/20", cfg.FrameInterval, cfg.BatchSize)
	}
}

func TestEnvOverrides(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	t.Setenv("PORT", "9090")
	t.Setenv("STORE", " Milvus ")
	t.Setenv("EMBEDDING_DIM", "768")
	t.Setenv("BATCH_SIZE", "5")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Port)
	}
	if cfg.Store != "milvus" {
		t.Errorf("store = %q, want milvus (trimmed, lowercased)", cfg.Store)
	}
	if cfg.EmbeddingDim != 768 {
		t.Errorf("embedding dim = %d, want 768", cfg.EmbeddingDim)
	}
	if cfg.BatchSize != 5 {
		t.Errorf("batch size = %d, want 5", cfg.BatchSize)
	}
}

func TestLoadConfigCaches(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	first, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	second, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("LoadConfig should return the cached instance")
	}
}

func TestEnvIgnoresInvalidNumbers(t *testing.T) {
	Reset()
	t.Cleanup(Reset)

	t.Setenv("PORT", "not-a-port")
	t.Setenv("FRAME_INTERVAL", "-2")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 {
		t.Errorf("port = %d, invalid value should keep the default", cfg.Port)
	}
	if cfg.FrameInterval != 3 {
		t.Errorf("frame interval = %d, non-positive value should keep the default", cfg.FrameInterval)
	}
}

func TestValidate(t *testing.T) {
	cfg := defaults()
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}

	cfg.BaseURL = ""
	cfg.EmbeddingDim = 0
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation failure")
	}
}

func TestHasValidAPI(t *testing.T) {
	cfg := defaults()
	if !cfg.HasValidAPI() {
		t.Error("defaults configure an endpoint")
	}
	cfg.BaseURL = "  "
	if cfg.HasValidAPI() {
		t.Error("blank base URL is not a configured endpoint")
	}
}
