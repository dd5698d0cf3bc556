package embed

import "time"

// OllamaConnectTimeout bounds the initial health-check/model-discovery
// call made when constructing an embedder or vision client.
const OllamaConnectTimeout = 5 * time.Second

// OllamaPoolSize is the HTTP connection pool size used by both the
// embedding and vision clients.
const OllamaPoolSize = 4

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	Host            string
	Model           string
	Dimensions      int // 0 = auto-detect from a probe embedding
	BatchSize       int
	WarmTimeout     time.Duration
	ColdTimeout     time.Duration
	MaxRetries      int
	PoolSize        int
	SkipHealthCheck bool
}

// OllamaEmbedRequest is the Ollama /api/embed request body.
type OllamaEmbedRequest struct {
	Model string `json:"model"`
	Input any    `json:"input"` // string or []string for batch
}

// OllamaEmbedResponse is the Ollama /api/embed response body.
type OllamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// OllamaModelListResponse is the Ollama /api/tags response body.
type OllamaModelListResponse struct {
	Models []OllamaModelInfo `json:"models"`
}

// OllamaModelInfo describes a single installed model.
type OllamaModelInfo struct {
	Name       string    `json:"name"`
	ModifiedAt time.Time `json:"modified_at"`
	Size       int64     `json:"size"`
}
