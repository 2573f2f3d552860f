// Package ai wraps the external embedding and generation providers.
package ai

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
)

// ErrProvider marks failures of the external embedding or generation
// service (unreachable, non-2xx, malformed reply). Calls are not retried
// here; retry policy belongs to the caller.
var ErrProvider = errors.New("ai: provider error")

// Embedder maps text to a fixed-dimension vector. The same Embedder must
// be used for documents and queries; vectors from different models are
// not comparable.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dim() int
}

// Generator produces an answer to a question, optionally grounded in
// retrieved context.
type Generator interface {
	Generate(ctx context.Context, question, context string) (string, error)
}

// Provider is an enumeration of supported embedding providers.
type Provider string

const (
	ProviderOllama Provider = "ollama"
	ProviderGemini Provider = "gemini"
	ProviderStub   Provider = "stub"
)

// ClientConfig holds configuration for provider clients.
type ClientConfig struct {
	Provider    Provider
	BaseURL     string // Ollama server address
	APIKey      string // Gemini API key
	EmbedModel  string
	ChatModel   string
	Dim         int
	Temperature float32
}

// NewEmbedder creates an embedding client for the configured provider.
func NewEmbedder(ctx context.Context, config *ClientConfig) (Embedder, error) {
	if config == nil {
		return nil, errors.New("client config is required")
	}
	switch config.Provider {
	case ProviderOllama:
		return NewOllamaClient(config), nil
	case ProviderGemini:
		return NewGeminiClient(ctx, config)
	case ProviderStub:
		return NewStubEmbedder(config.Dim), nil
	default:
		return nil, fmt.Errorf("unsupported provider: %s", config.Provider)
	}
}

// StubEmbedder is a deterministic in-process embedder for tests.
type StubEmbedder struct {
	dim int
}

// NewStubEmbedder creates a StubEmbedder of the given dimensionality.
func NewStubEmbedder(dim int) *StubEmbedder {
	return &StubEmbedder{dim: dim}
}

// Embed returns a deterministic pseudo-vector derived from the text, so
// identical inputs always embed identically.
func (s *StubEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	h := fnv.New32a()
	_, _ = h.Write([]byte(text))
	seed := h.Sum32()

	vec := make([]float32, s.dim)
	for i := range vec {
		seed = seed*1664525 + 1013904223
		vec[i] = float32(seed%1000)/1000 - 0.5
	}
	return vec, nil
}

// Dim returns the embedding dimension.
func (s *StubEmbedder) Dim() int {
	return s.dim
}
