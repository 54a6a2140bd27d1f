package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultLogLevel         = "info"
	DefaultEmbeddingModel   = "text-embedding-3-small"
	DefaultLLMModel         = "gpt-4o-mini"
	DefaultSimilarityWeight = 0.5
	DefaultImportanceWeight = 0.3
	DefaultRecencyWeight    = 0.2
	DefaultThreshold        = 0.4
	DefaultDecayRatePerHour = 0.99
	DefaultCandidateLimit   = 20
	DefaultImportance       = 5
	DefaultMaxImportance    = 10
	DefaultArchiveMinLength = 10
	DefaultEmbeddingCacheMB = 64
)

// Config holds all runtime settings for the memory subsystem.
type Config struct {
	DataDir   string
	DBPath    string
	VectorDir string
	LogLevel  string

	// Embedding backend. An empty API key selects the local fallback embedder.
	EmbeddingProvider string
	EmbeddingModel    string
	EmbeddingAPIKey   string
	EmbeddingBaseURL  string
	EmbeddingCacheMB  int64

	// Language model used by the conversation archiver.
	LLMModel   string
	LLMAPIKey  string
	LLMBaseURL string

	// Relevance scoring policy.
	SimilarityWeight   float64
	ImportanceWeight   float64
	RecencyWeight      float64
	RelevanceThreshold float64
	DecayRatePerHour   float64
	CandidateLimit     int
	DefaultImportance  int
	MaxImportance      int

	// Conversation archiver.
	ArchiveMinLength int
}

// tomlConfig mirrors the on-disk config.toml layout.
type tomlConfig struct {
	LogLevel  string `toml:"log_level"`
	Embedding struct {
		Provider string `toml:"provider"`
		Model    string `toml:"model"`
		APIKey   string `toml:"api_key"`
		BaseURL  string `toml:"base_url"`
		CacheMB  int64  `toml:"cache_mb"`
	} `toml:"embedding"`
	LLM struct {
		Model   string `toml:"model"`
		APIKey  string `toml:"api_key"`
		BaseURL string `toml:"base_url"`
	} `toml:"llm"`
	// Pointer fields distinguish "absent" from an explicit zero: weights,
	// the threshold and the decay rate may all legitimately be set to 0.
	Recall struct {
		SimilarityWeight  *float64 `toml:"similarity_weight"`
		ImportanceWeight  *float64 `toml:"importance_weight"`
		RecencyWeight     *float64 `toml:"recency_weight"`
		Threshold         *float64 `toml:"threshold"`
		DecayRatePerHour  *float64 `toml:"decay_rate_per_hour"`
		CandidateLimit    int      `toml:"candidate_limit"`
		DefaultImportance int      `toml:"default_importance"`
		MaxImportance     int      `toml:"max_importance"`
	} `toml:"recall"`
	Archive struct {
		MinLength int `toml:"min_length"`
	} `toml:"archive"`
}

// Default returns the built-in configuration rooted at dataDir.
// An empty dataDir resolves to ~/.sentinelai.
func Default(dataDir string) *Config {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		dataDir = filepath.Join(home, ".sentinelai")
	}

	return &Config{
		DataDir:            dataDir,
		DBPath:             filepath.Join(dataDir, "brain.db"),
		VectorDir:          filepath.Join(dataDir, "brain_vectors"),
		LogLevel:           DefaultLogLevel,
		EmbeddingProvider:  "openai",
		EmbeddingModel:     DefaultEmbeddingModel,
		EmbeddingCacheMB:   DefaultEmbeddingCacheMB,
		LLMModel:           DefaultLLMModel,
		SimilarityWeight:   DefaultSimilarityWeight,
		ImportanceWeight:   DefaultImportanceWeight,
		RecencyWeight:      DefaultRecencyWeight,
		RelevanceThreshold: DefaultThreshold,
		DecayRatePerHour:   DefaultDecayRatePerHour,
		CandidateLimit:     DefaultCandidateLimit,
		DefaultImportance:  DefaultImportance,
		MaxImportance:      DefaultMaxImportance,
		ArchiveMinLength:   DefaultArchiveMinLength,
	}
}

// Load builds the configuration: defaults, then <dataDir>/config.toml if
// present, then SENTINEL_* environment overrides. A missing config file is
// not an error.
func Load(dataDir string) (*Config, error) {
	if env := os.Getenv("SENTINEL_DATA_DIR"); env != "" && dataDir == "" {
		dataDir = env
	}
	cfg := Default(dataDir)

	path := filepath.Join(cfg.DataDir, "config.toml")
	data, err := os.ReadFile(path)
	if err == nil {
		var parsed tomlConfig
		if err := toml.Unmarshal(data, &parsed); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		applyFile(cfg, &parsed)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyFile(cfg *Config, parsed *tomlConfig) {
	if parsed.LogLevel != "" {
		cfg.LogLevel = parsed.LogLevel
	}
	if parsed.Embedding.Provider != "" {
		cfg.EmbeddingProvider = parsed.Embedding.Provider
	}
	if parsed.Embedding.Model != "" {
		cfg.EmbeddingModel = parsed.Embedding.Model
	}
	if parsed.Embedding.APIKey != "" {
		cfg.EmbeddingAPIKey = parsed.Embedding.APIKey
	}
	if parsed.Embedding.BaseURL != "" {
		cfg.EmbeddingBaseURL = parsed.Embedding.BaseURL
	}
	if parsed.Embedding.CacheMB > 0 {
		cfg.EmbeddingCacheMB = parsed.Embedding.CacheMB
	}
	if parsed.LLM.Model != "" {
		cfg.LLMModel = parsed.LLM.Model
	}
	if parsed.LLM.APIKey != "" {
		cfg.LLMAPIKey = parsed.LLM.APIKey
	}
	if parsed.LLM.BaseURL != "" {
		cfg.LLMBaseURL = parsed.LLM.BaseURL
	}
	if parsed.Recall.SimilarityWeight != nil {
		cfg.SimilarityWeight = *parsed.Recall.SimilarityWeight
	}
	if parsed.Recall.ImportanceWeight != nil {
		cfg.ImportanceWeight = *parsed.Recall.ImportanceWeight
	}
	if parsed.Recall.RecencyWeight != nil {
		cfg.RecencyWeight = *parsed.Recall.RecencyWeight
	}
	if parsed.Recall.Threshold != nil {
		cfg.RelevanceThreshold = *parsed.Recall.Threshold
	}
	if parsed.Recall.DecayRatePerHour != nil {
		cfg.DecayRatePerHour = *parsed.Recall.DecayRatePerHour
	}
	if parsed.Recall.CandidateLimit > 0 {
		cfg.CandidateLimit = parsed.Recall.CandidateLimit
	}
	if parsed.Recall.DefaultImportance > 0 {
		cfg.DefaultImportance = parsed.Recall.DefaultImportance
	}
	if parsed.Recall.MaxImportance > 0 {
		cfg.MaxImportance = parsed.Recall.MaxImportance
	}
	if parsed.Archive.MinLength > 0 {
		cfg.ArchiveMinLength = parsed.Archive.MinLength
	}
}

func applyEnv(cfg *Config) {
	if level := os.Getenv("SENTINEL_LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}
	if provider := os.Getenv("SENTINEL_EMBEDDING_PROVIDER"); provider != "" {
		cfg.EmbeddingProvider = provider
	}
	if model := os.Getenv("SENTINEL_EMBEDDING_MODEL"); model != "" {
		cfg.EmbeddingModel = model
	}
	if key := os.Getenv("SENTINEL_EMBEDDING_API_KEY"); key != "" {
		cfg.EmbeddingAPIKey = key
	}
	if baseURL := os.Getenv("SENTINEL_EMBEDDING_BASE_URL"); baseURL != "" {
		cfg.EmbeddingBaseURL = baseURL
	}
	if model := os.Getenv("SENTINEL_LLM_MODEL"); model != "" {
		cfg.LLMModel = model
	}
	if key := os.Getenv("SENTINEL_LLM_API_KEY"); key != "" {
		cfg.LLMAPIKey = key
	}
	if baseURL := os.Getenv("SENTINEL_LLM_BASE_URL"); baseURL != "" {
		cfg.LLMBaseURL = baseURL
	}
	if limit := os.Getenv("SENTINEL_RECALL_CANDIDATE_LIMIT"); limit != "" {
		if n, err := strconv.Atoi(limit); err == nil && n > 0 {
			cfg.CandidateLimit = n
		}
	}
	if threshold := os.Getenv("SENTINEL_RECALL_THRESHOLD"); threshold != "" {
		if f, err := strconv.ParseFloat(threshold, 64); err == nil && f >= 0 {
			cfg.RelevanceThreshold = f
		}
	}
}

// EnsureDataDir creates the data directory if it does not exist.
func (c *Config) EnsureDataDir() error {
	return os.MkdirAll(c.DataDir, 0o755)
}
