// Package embed provides an Ollama-backed embedding client for chunk
// and image-caption vectors, plus a vision client for image
// captioning, both talking to the same class of local Ollama server.
package embed

import (
	"context"
	"math"
	"time"
)

// ModelUnloadThreshold is the duration after which Ollama is assumed
// to have unloaded the model, so the next call should use the cold
// (longer) timeout rather than the warm one.
const ModelUnloadThreshold = 5 * time.Minute

// Embedder generates vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	ModelName() string
	Available(ctx context.Context) bool
	Close() error
}

// normalizeVector normalizes a vector to unit length, leaving zero
// vectors untouched.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
