package embeddings

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"github.com/sammyboi1801/SentinelAI/internal/config"
)

// Embedder converts text to a fixed-length vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

// ForConfig applies the embedding selection policy: a configured API key
// selects the hosted backend, otherwise the credential-free local embedder.
// The returned embedder is wrapped in the in-process cache.
func ForConfig(cfg *config.Config) Embedder {
	var base Embedder
	if cfg.EmbeddingAPIKey != "" {
		base = NewOpenAI(cfg.EmbeddingAPIKey, cfg.EmbeddingModel, cfg.EmbeddingBaseURL)
	} else {
		base = NewLocal(0)
	}

	cached, err := NewCached(base, cfg.EmbeddingCacheMB<<20)
	if err != nil {
		return base
	}
	return cached
}

// OpenAI calls an OpenAI-compatible embeddings endpoint.
type OpenAI struct {
	client *openai.Client
	model  openai.EmbeddingModel
	dims   int
}

// NewOpenAI creates a hosted embedder. baseURL may be empty for the default
// endpoint, or point at any OpenAI-compatible server.
func NewOpenAI(apiKey, model, baseURL string) *OpenAI {
	clientCfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		clientCfg.BaseURL = baseURL
	}
	if model == "" {
		model = config.DefaultEmbeddingModel
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(clientCfg),
		model:  openai.EmbeddingModel(model),
		dims:   1536,
	}
}

// Embed requests a single embedding.
func (e *OpenAI) Embed(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: e.model,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embeddings returned")
	}

	vec := resp.Data[0].Embedding
	e.dims = len(vec)
	return vec, nil
}

// Dimensions returns the embedding size.
func (e *OpenAI) Dimensions() int {
	return e.dims
}

// Local is the deterministic fallback embedder used when no embedding
// credentials are configured. It hashes word tokens and character trigrams
// into a fixed number of buckets and normalizes the result, so texts sharing
// vocabulary land near each other. Not a semantic model; it keeps recall
// functional offline.
type Local struct {
	dims int
}

// NewLocal creates a local embedder. dims <= 0 selects the default (384).
func NewLocal(dims int) *Local {
	if dims <= 0 {
		dims = 384
	}
	return &Local{dims: dims}
}

// Embed produces a bag-of-features vector from tokens and trigrams.
func (e *Local) Embed(_ context.Context, text string) ([]float32, error) {
	vec := make([]float32, e.dims)
	normalized := normalizeText(text)

	// Word tokens weigh double so whole-word overlap dominates.
	for _, token := range strings.Fields(normalized) {
		vec[bucket(token, e.dims)] += 2
	}

	compact := strings.ReplaceAll(normalized, " ", "")
	for i := 0; i+3 <= len(compact); i++ {
		vec[bucket(compact[i:i+3], e.dims)]++
	}

	// Constant bias bucket keeps the vector non-zero for any input.
	vec[0] += 0.1

	return normalize(vec), nil
}

// Dimensions returns the embedding size.
func (e *Local) Dimensions() int {
	return e.dims
}

// normalizeText lowercases and replaces non-alphanumeric runs with spaces so
// "lives_in" and "lives in" tokenize the same way.
func normalizeText(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		if r >= 'a' && r <= 'z' || r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else {
			b.WriteByte(' ')
		}
	}
	return b.String()
}

func bucket(feature string, dims int) int {
	h := fnv.New32a()
	h.Write([]byte(feature))
	return int(h.Sum32() % uint32(dims))
}

func normalize(vec []float32) []float32 {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec
}
