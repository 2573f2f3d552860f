package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// OllamaClient produces embeddings through a local Ollama server.
type OllamaClient struct {
	config *ClientConfig
	http   *http.Client
}

// NewOllamaClient creates an embedding client against an Ollama server.
func NewOllamaClient(config *ClientConfig) *OllamaClient {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.EmbedModel == "" {
		config.EmbedModel = "nomic-embed-text:v1.5"
	}
	if config.Dim == 0 {
		config.Dim = 768
	}

	return &OllamaClient{
		config: config,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Embed requests an embedding from the Ollama /api/embeddings endpoint.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	payload := map[string]string{
		"model":  c.config.EmbedModel,
		"prompt": text,
	}
	b, _ := json.Marshal(payload)

	url := strings.TrimRight(c.config.BaseURL, "/") + "/api/embeddings"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: ollama embeddings returned %s", ErrProvider, resp.Status)
	}

	var out struct {
		Embedding []float64 `json:"embedding"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode embedding: %v", ErrProvider, err)
	}
	if len(out.Embedding) == 0 {
		return nil, fmt.Errorf("%w: empty embedding", ErrProvider)
	}

	vec := make([]float32, len(out.Embedding))
	for i, v := range out.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Dim returns the embedding dimension.
func (c *OllamaClient) Dim() int {
	return c.config.Dim
}
