// Package retrieve turns a question into ranked context passages.
package retrieve

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/knowbase/docbot/internal/ai"
	"github.com/knowbase/docbot/internal/store"
	"github.com/knowbase/docbot/pkg/models"
)

// Service coordinates query embedding and vector search. The Embedder
// must be the same model that embedded the corpus; vectors from
// different models are not comparable.
type Service struct {
	Embedder  ai.Embedder
	Store     store.VectorIndex
	TopK      int
	Threshold float64
}

// NewService creates a retrieval service.
func NewService(embedder ai.Embedder, idx store.VectorIndex, topK int, threshold float64) *Service {
	if topK <= 0 {
		topK = 5
	}
	return &Service{
		Embedder:  embedder,
		Store:     idx,
		TopK:      topK,
		Threshold: threshold,
	}
}

// Retrieve embeds the query and returns up to topK stored passages above
// the similarity threshold, ordered by descending similarity. An empty
// result means no relevant context exists; it is a normal value, not an
// error, and callers must treat it as such.
func (s *Service) Retrieve(ctx context.Context, query string, topK int) ([]models.RetrievalResult, error) {
	query = strings.TrimSpace(query)
	if topK <= 0 {
		topK = s.TopK
	}

	vec, err := s.Embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	results, err := s.Store.Search(ctx, vec, topK, s.Threshold)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	if len(results) == 0 {
		log.Debug().Str("query", query).Msg("no relevant context found")
		return results, nil
	}

	scores := make([]string, 0, len(results))
	sources := make(map[string]struct{}, len(results))
	for _, r := range results {
		scores = append(scores, fmt.Sprintf("%.3f", r.Similarity))
		sources[r.Meta.Source] = struct{}{}
	}
	log.Debug().
		Int("chunks", len(results)).
		Int("sources", len(sources)).
		Strs("scores", scores).
		Msg("context retrieved")

	return results, nil
}

// BuildContext concatenates result texts in ranked order, newline
// joined. It is a pure transform; an empty slice yields an empty string.
func BuildContext(results []models.RetrievalResult) string {
	if len(results) == 0 {
		return ""
	}
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = r.Content
	}
	return strings.Join(parts, "\n")
}
