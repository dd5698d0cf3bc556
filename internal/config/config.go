package config

import (
	"fmt"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the complete static seneschal configuration: everything
// loaded once at process startup from the config file, env vars, and
// defaults. Settings that can be changed at runtime by a client (search
// weights, access tags, per-collection toggles) live in the dynamic
// settings layer (see dynamic.go) instead.
type Config struct {
	Version    int              `yaml:"version" json:"version"`
	Storage    StorageConfig    `yaml:"storage" json:"storage"`
	Server     ServerConfig     `yaml:"server" json:"server"`
	Ingestion  IngestionConfig  `yaml:"ingestion" json:"ingestion"`
	Search     SearchConfig     `yaml:"search" json:"search"`
	Embeddings EmbeddingsConfig `yaml:"embeddings" json:"embeddings"`
	Vision     VisionConfig     `yaml:"vision" json:"vision"`
	AutoImport AutoImportConfig `yaml:"auto_import" json:"auto_import"`
	Duplex     DuplexConfig     `yaml:"duplex" json:"duplex"`
	PDFImages  PDFImagesConfig  `yaml:"pdf_images" json:"pdf_images"`
}

// StorageConfig configures on-disk layout: the SQLite database and the
// directory image extraction writes WebP output into.
type StorageConfig struct {
	// DataDir is the root directory for the database file and extracted
	// image output. Defaults to ~/.seneschal/data.
	DataDir string `yaml:"data_dir" json:"data_dir"`
	// DBPath overrides the SQLite database file path. Empty derives it
	// from DataDir (DataDir/seneschal.db).
	DBPath string `yaml:"db_path" json:"db_path"`
	// ImageDir overrides the extracted-image output directory. Empty
	// derives it from DataDir (DataDir/images).
	ImageDir string `yaml:"image_dir" json:"image_dir"`
	// DocumentsDir overrides where ingested source content is copied
	// to. Empty derives it from DataDir (DataDir/documents).
	DocumentsDir string `yaml:"documents_dir" json:"documents_dir"`
	// SQLiteCacheMB is the SQLite page cache size in MB.
	SQLiteCacheMB int `yaml:"sqlite_cache_mb" json:"sqlite_cache_mb"`
}

// ServerConfig configures the duplex session transport and tool dispatch.
type ServerConfig struct {
	// Transport selects how external tool sessions connect: "websocket"
	// (default) or "stdio" for single-client local testing.
	Transport string `yaml:"transport" json:"transport"`
	Port      int    `yaml:"port" json:"port"`
	LogLevel  string `yaml:"log_level" json:"log_level"`
}

// IngestionConfig configures document ingestion preconditions and
// background worker concurrency.
type IngestionConfig struct {
	// MaxFileSizeBytes rejects documents larger than this at ingest time.
	MaxFileSizeBytes int64 `yaml:"max_file_size_bytes" json:"max_file_size_bytes"`
	// SupportedFormats lists the file extensions ingestion will accept.
	SupportedFormats []string `yaml:"supported_formats" json:"supported_formats"`
	// WorkerConcurrency is the number of concurrent document-ingestion
	// workers (text extraction + embedding).
	WorkerConcurrency int `yaml:"worker_concurrency" json:"worker_concurrency"`
	// CaptioningConcurrency is the number of concurrent image-captioning
	// workers.
	CaptioningConcurrency int `yaml:"captioning_concurrency" json:"captioning_concurrency"`
	// ChunkSize and ChunkOverlap configure the text chunker (characters).
	ChunkSize    int `yaml:"chunk_size" json:"chunk_size"`
	ChunkOverlap int `yaml:"chunk_overlap" json:"chunk_overlap"`
}

// SearchConfig configures hybrid lexical+dense search fusion.
type SearchConfig struct {
	// LexicalWeight and DenseWeight must sum to 1.0; used by RRF fusion
	// as tiebreak weighting between the two rankings.
	LexicalWeight float64 `yaml:"lexical_weight" json:"lexical_weight"`
	DenseWeight   float64 `yaml:"dense_weight" json:"dense_weight"`
	// RRFConstant is the reciprocal rank fusion smoothing parameter (k).
	RRFConstant int `yaml:"rrf_constant" json:"rrf_constant"`
	// MaxResults is the default result count cap for a search call.
	MaxResults int `yaml:"max_results" json:"max_results"`
	// UseHNSW enables the HNSW approximate index as an accelerator in
	// front of the brute-force dense scan once the corpus is large
	// enough to benefit from it.
	UseHNSW bool `yaml:"use_hnsw" json:"use_hnsw"`
	// HNSWThreshold is the chunk-embedding count above which UseHNSW
	// actually kicks in (brute force stays exact below this).
	HNSWThreshold int `yaml:"hnsw_threshold" json:"hnsw_threshold"`
}

// EmbeddingsConfig configures the Ollama-compatible embedding backend.
type EmbeddingsConfig struct {
	Host       string `yaml:"host" json:"host"`
	Model      string `yaml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" json:"dimensions"`
	BatchSize  int    `yaml:"batch_size" json:"batch_size"`

	WarmTimeout time.Duration `yaml:"warm_timeout" json:"warm_timeout"`
	ColdTimeout time.Duration `yaml:"cold_timeout" json:"cold_timeout"`
	MaxRetries  int           `yaml:"max_retries" json:"max_retries"`
}

// VisionConfig configures the vision-capable LLM used for image
// captioning (background-image suppression, alt-text generation).
type VisionConfig struct {
	Host    string        `yaml:"host" json:"host"`
	Model   string        `yaml:"model" json:"model"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// AutoImportConfig configures the filesystem watcher that ingests
// documents dropped into a watched directory tree.
type AutoImportConfig struct {
	Enabled bool `yaml:"enabled" json:"enabled"`
	// WatchDirs are directories scanned for new documents.
	WatchDirs []string `yaml:"watch_dirs" json:"watch_dirs"`
	// ScanInterval is how often the watcher re-scans for files fsnotify
	// missed (e.g. files present before the watcher started).
	ScanInterval time.Duration `yaml:"scan_interval" json:"scan_interval"`
	// FailedSubdirName names the subtree (matched case-insensitively at
	// any depth) that is never imported from, so a failed import moved
	// there for inspection does not get re-queued in a loop.
	FailedSubdirName string `yaml:"failed_subdir_name" json:"failed_subdir_name"`
}

// PDFImagesConfig configures the tunable (non-geometric) thresholds of
// the PDF image extraction pipeline. The purely geometric tolerances
// (adjacency, dimension matching, position matching) are fixed
// constants in internal/pdfimage; these are corpus-dependent enough to
// be worth exposing.
type PDFImagesConfig struct {
	// BackgroundMinPages is how many distinct pages a repeating image
	// signature must appear on before it's classified as a background.
	BackgroundMinPages int `yaml:"background_min_pages" json:"background_min_pages"`
	// BackgroundAreaThreshold is the minimum fraction of a page's area
	// a candidate background image must cover on every appearance.
	BackgroundAreaThreshold float64 `yaml:"background_area_threshold" json:"background_area_threshold"`
	// TextOverlapMinDPI is the DPI floor for a group region render when
	// the group overlaps any text or path content.
	TextOverlapMinDPI float64 `yaml:"text_overlap_min_dpi" json:"text_overlap_min_dpi"`
}

// DuplexConfig configures the external tool-call session transport.
type DuplexConfig struct {
	// ToolCallTimeout bounds how long an external tool call waits for a
	// GM client reply before failing with ERR_104_TOOL_TIMEOUT.
	ToolCallTimeout time.Duration `yaml:"tool_call_timeout" json:"tool_call_timeout"`
	// OutboundMailboxSize bounds the per-session outbound message queue;
	// a full mailbox closes the session rather than blocking the
	// dispatcher or workers that broadcast through it.
	OutboundMailboxSize int `yaml:"outbound_mailbox_size" json:"outbound_mailbox_size"`
}

var defaultSupportedFormats = []string{".pdf", ".epub", ".md", ".markdown", ".txt"}

// NewConfig creates a new Config with sensible defaults.
func NewConfig() *Config {
	return &Config{
		Version: 1,
		Storage: StorageConfig{
			DataDir:       defaultDataDir(),
			SQLiteCacheMB: 64,
		},
		Server: ServerConfig{
			Transport: "websocket",
			Port:      8765,
			LogLevel:  "info",
		},
		Ingestion: IngestionConfig{
			MaxFileSizeBytes:      200 * 1024 * 1024, // 200MB
			SupportedFormats:      defaultSupportedFormats,
			WorkerConcurrency:     2,
			CaptioningConcurrency: runtime.NumCPU(),
			ChunkSize:             1500,
			ChunkOverlap:          200,
		},
		Search: SearchConfig{
			LexicalWeight: 0.5,
			DenseWeight:   0.5,
			RRFConstant:   60,
			MaxResults:    20,
			UseHNSW:       false,
			HNSWThreshold: 50000,
		},
		Embeddings: EmbeddingsConfig{
			Host:        "http://localhost:11434",
			Model:       "nomic-embed-text",
			Dimensions:  768,
			BatchSize:   32,
			WarmTimeout: 120 * time.Second,
			ColdTimeout: 180 * time.Second,
			MaxRetries:  3,
		},
		Vision: VisionConfig{
			Host:    "http://localhost:11434",
			Model:   "llava",
			Timeout: 60 * time.Second,
		},
		AutoImport: AutoImportConfig{
			Enabled:          false,
			WatchDirs:        nil,
			ScanInterval:     10 * time.Second,
			FailedSubdirName: "failed",
		},
		Duplex: DuplexConfig{
			ToolCallTimeout:     30 * time.Second,
			OutboundMailboxSize: 64,
		},
		PDFImages: PDFImagesConfig{
			BackgroundMinPages:      3,
			BackgroundAreaThreshold: 0.8,
			TextOverlapMinDPI:       150.0,
		},
	}
}

// defaultDataDir returns ~/.seneschal/data, falling back to a temp
// directory when the home directory can't be resolved.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".seneschal", "data")
	}
	return filepath.Join(home, ".seneschal", "data")
}

// DBPath returns the resolved SQLite database path.
func (c *Config) DBPath() string {
	if c.Storage.DBPath != "" {
		return c.Storage.DBPath
	}
	return filepath.Join(c.Storage.DataDir, "seneschal.db")
}

// ImageDir returns the resolved image output directory.
func (c *Config) ImageDir() string {
	if c.Storage.ImageDir != "" {
		return c.Storage.ImageDir
	}
	return filepath.Join(c.Storage.DataDir, "images")
}

// DocumentsDir returns the resolved directory that ingested source
// files are copied into: {data_dir}/documents/{doc_id}_{filename}.
func (c *Config) DocumentsDir() string {
	if c.Storage.DocumentsDir != "" {
		return c.Storage.DocumentsDir
	}
	return filepath.Join(c.Storage.DataDir, "documents")
}

// GetUserConfigPath returns the path to the user/global configuration
// file, following the XDG Base Directory specification:
//   - $XDG_CONFIG_HOME/seneschal/config.yaml (if set)
//   - ~/.config/seneschal/config.yaml (default)
func GetUserConfigPath() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "seneschal", "config.yaml")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), ".config", "seneschal", "config.yaml")
	}
	return filepath.Join(home, ".config", "seneschal", "config.yaml")
}

// GetUserConfigDir returns the directory containing the user configuration.
func GetUserConfigDir() string {
	return filepath.Dir(GetUserConfigPath())
}

// UserConfigExists returns true if the user configuration file exists.
func UserConfigExists() bool {
	return fileExists(GetUserConfigPath())
}

// loadUserConfig loads the user/global configuration file if it exists.
// Returns nil config and nil error if the file doesn't exist (that's OK).
func loadUserConfig() (*Config, error) {
	configPath := GetUserConfigPath()

	if !fileExists(configPath) {
		return nil, nil
	}

	cfg := NewConfig()
	if err := cfg.loadYAML(configPath); err != nil {
		return nil, fmt.Errorf("failed to load user config from %s: %w", configPath, err)
	}

	return cfg, nil
}

// Load loads configuration from the specified directory, in order of
// increasing precedence:
//  1. Hardcoded defaults
//  2. User/global config (~/.config/seneschal/config.yaml)
//  3. Explicit config file in dir (seneschal.yaml or seneschal.yml)
//  4. Environment variables (SENESCHAL_*)
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if userCfg, err := loadUserConfig(); err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	} else if userCfg != nil {
		cfg.mergeWith(userCfg)
	}

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// loadFromFile attempts to load configuration from seneschal.yaml or
// seneschal.yml in dir.
func (c *Config) loadFromFile(dir string) error {
	yamlPath := filepath.Join(dir, "seneschal.yaml")
	if _, err := os.Stat(yamlPath); err == nil {
		return c.loadYAML(yamlPath)
	}

	ymlPath := filepath.Join(dir, "seneschal.yml")
	if _, err := os.Stat(ymlPath); err == nil {
		return c.loadYAML(ymlPath)
	}

	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Version != 0 {
		c.Version = other.Version
	}

	if other.Storage.DataDir != "" {
		c.Storage.DataDir = other.Storage.DataDir
	}
	if other.Storage.DBPath != "" {
		c.Storage.DBPath = other.Storage.DBPath
	}
	if other.Storage.ImageDir != "" {
		c.Storage.ImageDir = other.Storage.ImageDir
	}
	if other.Storage.SQLiteCacheMB != 0 {
		c.Storage.SQLiteCacheMB = other.Storage.SQLiteCacheMB
	}

	if other.Server.Transport != "" {
		c.Server.Transport = other.Server.Transport
	}
	if other.Server.Port != 0 {
		c.Server.Port = other.Server.Port
	}
	if other.Server.LogLevel != "" {
		c.Server.LogLevel = other.Server.LogLevel
	}

	if other.Ingestion.MaxFileSizeBytes != 0 {
		c.Ingestion.MaxFileSizeBytes = other.Ingestion.MaxFileSizeBytes
	}
	if len(other.Ingestion.SupportedFormats) > 0 {
		c.Ingestion.SupportedFormats = other.Ingestion.SupportedFormats
	}
	if other.Ingestion.WorkerConcurrency != 0 {
		c.Ingestion.WorkerConcurrency = other.Ingestion.WorkerConcurrency
	}
	if other.Ingestion.CaptioningConcurrency != 0 {
		c.Ingestion.CaptioningConcurrency = other.Ingestion.CaptioningConcurrency
	}
	if other.Ingestion.ChunkSize != 0 {
		c.Ingestion.ChunkSize = other.Ingestion.ChunkSize
	}
	if other.Ingestion.ChunkOverlap != 0 {
		c.Ingestion.ChunkOverlap = other.Ingestion.ChunkOverlap
	}

	if other.Search.LexicalWeight != 0 {
		c.Search.LexicalWeight = other.Search.LexicalWeight
	}
	if other.Search.DenseWeight != 0 {
		c.Search.DenseWeight = other.Search.DenseWeight
	}
	if other.Search.RRFConstant != 0 {
		c.Search.RRFConstant = other.Search.RRFConstant
	}
	if other.Search.MaxResults != 0 {
		c.Search.MaxResults = other.Search.MaxResults
	}
	if other.Search.UseHNSW {
		c.Search.UseHNSW = other.Search.UseHNSW
	}
	if other.Search.HNSWThreshold != 0 {
		c.Search.HNSWThreshold = other.Search.HNSWThreshold
	}

	if other.Embeddings.Host != "" {
		c.Embeddings.Host = other.Embeddings.Host
	}
	if other.Embeddings.Model != "" {
		c.Embeddings.Model = other.Embeddings.Model
	}
	if other.Embeddings.Dimensions != 0 {
		c.Embeddings.Dimensions = other.Embeddings.Dimensions
	}
	if other.Embeddings.BatchSize != 0 {
		c.Embeddings.BatchSize = other.Embeddings.BatchSize
	}
	if other.Embeddings.WarmTimeout != 0 {
		c.Embeddings.WarmTimeout = other.Embeddings.WarmTimeout
	}
	if other.Embeddings.ColdTimeout != 0 {
		c.Embeddings.ColdTimeout = other.Embeddings.ColdTimeout
	}
	if other.Embeddings.MaxRetries != 0 {
		c.Embeddings.MaxRetries = other.Embeddings.MaxRetries
	}

	if other.Vision.Host != "" {
		c.Vision.Host = other.Vision.Host
	}
	if other.Vision.Model != "" {
		c.Vision.Model = other.Vision.Model
	}
	if other.Vision.Timeout != 0 {
		c.Vision.Timeout = other.Vision.Timeout
	}

	if other.AutoImport.Enabled {
		c.AutoImport.Enabled = other.AutoImport.Enabled
	}
	if len(other.AutoImport.WatchDirs) > 0 {
		c.AutoImport.WatchDirs = other.AutoImport.WatchDirs
	}
	if other.AutoImport.ScanInterval != 0 {
		c.AutoImport.ScanInterval = other.AutoImport.ScanInterval
	}
	if other.AutoImport.FailedSubdirName != "" {
		c.AutoImport.FailedSubdirName = other.AutoImport.FailedSubdirName
	}

	if other.Duplex.ToolCallTimeout != 0 {
		c.Duplex.ToolCallTimeout = other.Duplex.ToolCallTimeout
	}
	if other.Duplex.OutboundMailboxSize != 0 {
		c.Duplex.OutboundMailboxSize = other.Duplex.OutboundMailboxSize
	}

	if other.PDFImages.BackgroundMinPages != 0 {
		c.PDFImages.BackgroundMinPages = other.PDFImages.BackgroundMinPages
	}
	if other.PDFImages.BackgroundAreaThreshold != 0 {
		c.PDFImages.BackgroundAreaThreshold = other.PDFImages.BackgroundAreaThreshold
	}
	if other.PDFImages.TextOverlapMinDPI != 0 {
		c.PDFImages.TextOverlapMinDPI = other.PDFImages.TextOverlapMinDPI
	}
}

// applyEnvOverrides applies SENESCHAL_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("SENESCHAL_DATA_DIR"); v != "" {
		c.Storage.DataDir = v
	}
	if v := os.Getenv("SENESCHAL_LEXICAL_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.LexicalWeight = w
		}
	}
	if v := os.Getenv("SENESCHAL_DENSE_WEIGHT"); v != "" {
		if w, err := parseFloat64(v); err == nil && w >= 0 && w <= 1 {
			c.Search.DenseWeight = w
		}
	}
	if v := os.Getenv("SENESCHAL_RRF_CONSTANT"); v != "" {
		if k, err := strconv.Atoi(v); err == nil && k > 0 {
			c.Search.RRFConstant = k
		}
	}
	if v := os.Getenv("SENESCHAL_EMBEDDINGS_HOST"); v != "" {
		c.Embeddings.Host = v
	}
	if v := os.Getenv("SENESCHAL_EMBEDDINGS_MODEL"); v != "" {
		c.Embeddings.Model = v
	}
	if v := os.Getenv("SENESCHAL_VISION_HOST"); v != "" {
		c.Vision.Host = v
	}
	if v := os.Getenv("SENESCHAL_VISION_MODEL"); v != "" {
		c.Vision.Model = v
	}
	if v := os.Getenv("SENESCHAL_LOG_LEVEL"); v != "" {
		c.Server.LogLevel = v
	}
	if v := os.Getenv("SENESCHAL_TRANSPORT"); v != "" {
		c.Server.Transport = v
	}
	if v := os.Getenv("SENESCHAL_AUTO_IMPORT_ENABLED"); v != "" {
		c.AutoImport.Enabled = strings.ToLower(v) == "true" || v == "1"
	}
}

// parseFloat64 parses a string to float64, used for config parsing.
func parseFloat64(s string) (float64, error) {
	var f float64
	_, err := fmt.Sscanf(strings.TrimSpace(s), "%f", &f)
	return f, err
}

// fileExists checks if a file exists and is not a directory.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.Search.LexicalWeight < 0 || c.Search.LexicalWeight > 1 {
		return fmt.Errorf("search.lexical_weight must be between 0 and 1, got %f", c.Search.LexicalWeight)
	}
	if c.Search.DenseWeight < 0 || c.Search.DenseWeight > 1 {
		return fmt.Errorf("search.dense_weight must be between 0 and 1, got %f", c.Search.DenseWeight)
	}

	sum := c.Search.LexicalWeight + c.Search.DenseWeight
	if math.Abs(sum-1.0) > 0.01 {
		return fmt.Errorf("search.lexical_weight + search.dense_weight must equal 1.0, got %.2f", sum)
	}

	if c.Search.MaxResults < 0 {
		return fmt.Errorf("search.max_results must be non-negative, got %d", c.Search.MaxResults)
	}
	if c.Ingestion.ChunkSize < 0 {
		return fmt.Errorf("ingestion.chunk_size must be non-negative, got %d", c.Ingestion.ChunkSize)
	}
	if c.Ingestion.MaxFileSizeBytes < 0 {
		return fmt.Errorf("ingestion.max_file_size_bytes must be non-negative, got %d", c.Ingestion.MaxFileSizeBytes)
	}

	validTransports := map[string]bool{"websocket": true, "stdio": true}
	if !validTransports[strings.ToLower(c.Server.Transport)] {
		return fmt.Errorf("server.transport must be 'websocket' or 'stdio', got %s", c.Server.Transport)
	}

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Server.LogLevel)] {
		return fmt.Errorf("server.log_level must be 'debug', 'info', 'warn', or 'error', got %s", c.Server.LogLevel)
	}

	return nil
}

// WriteYAML writes the configuration to a YAML file.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// LoadUserConfig loads the user configuration file.
// Returns nil config and nil error if the file doesn't exist.
func LoadUserConfig() (*Config, error) {
	return loadUserConfig()
}
