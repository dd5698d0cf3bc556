package embed

import (
	"context"
	"os"
	"strings"

	"github.com/jhelwig/seneschal-program-sub001/internal/config"
)

// NewFromConfig builds an Ollama-backed embedder from an
// EmbeddingsConfig, wrapped in a query cache unless disabled via
// SENESCHAL_EMBED_CACHE.
func NewFromConfig(ctx context.Context, cfg config.EmbeddingsConfig) (Embedder, error) {
	embedder, err := NewOllamaEmbedder(ctx, OllamaConfig{
		Host:        cfg.Host,
		Model:       cfg.Model,
		Dimensions:  cfg.Dimensions,
		BatchSize:   cfg.BatchSize,
		WarmTimeout: cfg.WarmTimeout,
		ColdTimeout: cfg.ColdTimeout,
		MaxRetries:  cfg.MaxRetries,
	})
	if err != nil {
		return nil, err
	}

	if isCacheDisabled() {
		return embedder, nil
	}
	return NewCachedEmbedderWithDefaults(embedder), nil
}

// isCacheDisabled checks whether the query embedding cache is
// disabled via environment override.
func isCacheDisabled() bool {
	v := strings.ToLower(os.Getenv("SENESCHAL_EMBED_CACHE"))
	return v == "false" || v == "0" || v == "off" || v == "disabled"
}

// NewVisionFromConfig builds a vision captioning client from a
// VisionConfig.
func NewVisionFromConfig(cfg config.VisionConfig) *VisionClient {
	return NewVisionClient(VisionConfig{
		Host:    cfg.Host,
		Model:   cfg.Model,
		Timeout: cfg.Timeout,
	})
}

// EmbedderInfo summarizes an embedder's resolved configuration, used
// for startup logging and diagnostics.
type EmbedderInfo struct {
	Model      string
	Dimensions int
	Available  bool
}

// GetInfo reports an embedder's resolved model, dimension, and
// reachability.
func GetInfo(ctx context.Context, embedder Embedder) EmbedderInfo {
	return EmbedderInfo{
		Model:      embedder.ModelName(),
		Dimensions: embedder.Dimensions(),
		Available:  embedder.Available(ctx),
	}
}
