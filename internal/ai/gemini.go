package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GeminiClient talks to the Gemini API for both embeddings and chat
// generation.
type GeminiClient struct {
	config *ClientConfig
	client *genai.Client
}

// NewGeminiClient creates a client for the Gemini API.
func NewGeminiClient(ctx context.Context, config *ClientConfig) (*GeminiClient, error) {
	if config == nil {
		return nil, errors.New("config cannot be nil")
	}

	if config.EmbedModel == "" {
		config.EmbedModel = "text-embedding-004"
	}
	if config.ChatModel == "" {
		config.ChatModel = "gemini-2.0-flash"
	}
	if config.Dim == 0 {
		config.Dim = 768
	}
	if config.Temperature == 0 {
		config.Temperature = 0.7
	}

	cc := genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
	}
	if strings.TrimSpace(config.APIKey) != "" {
		cc.APIKey = config.APIKey
	}

	client, err := genai.NewClient(ctx, &cc)
	if err != nil {
		return nil, fmt.Errorf("%w: create gemini client: %v", ErrProvider, err)
	}

	return &GeminiClient{config: config, client: client}, nil
}

// Embed implements the embedding functionality using the Gemini API.
func (c *GeminiClient) Embed(ctx context.Context, text string) ([]float32, error) {
	cfg := genai.EmbedContentConfig{
		TaskType: "RETRIEVAL_DOCUMENT",
	}

	res, err := c.client.Models.EmbedContent(ctx, c.config.EmbedModel, genai.Text(text), &cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: embedding failed: %v", ErrProvider, err)
	}
	if res == nil || len(res.Embeddings) == 0 {
		return nil, fmt.Errorf("%w: no embedding returned", ErrProvider)
	}
	return res.Embeddings[0].Values, nil
}

// Dim returns the embedding dimension.
func (c *GeminiClient) Dim() int {
	return c.config.Dim
}

// Generate answers a question, grounding the model in the retrieved
// context when one is available. An empty context string means retrieval
// found nothing relevant; the model is told so rather than left to guess.
func (c *GeminiClient) Generate(ctx context.Context, question, contextText string) (string, error) {
	var prompt string
	if contextText != "" {
		prompt = "Context:\n" + contextText + "\n\nQuestion: " + question
	} else {
		prompt = "Question: " + question + "\nContext: no relevant documents were found."
	}

	temp := c.config.Temperature
	cfg := genai.GenerateContentConfig{
		Temperature: &temp,
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.config.ChatModel, genai.Text(prompt), &cfg)
	if err != nil {
		return "", fmt.Errorf("%w: generation failed: %v", ErrProvider, err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no answer returned", ErrProvider)
	}

	return strings.TrimSpace(resp.Candidates[0].Content.Parts[0].Text), nil
}
