package services

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-chat/internal/logger"
)

// RetrievalService fuses lexical and vector search over a user's indexed
// chunks. Implements driving.RetrievalService.
type RetrievalService struct {
	index    driven.SearchIndex
	embedder driven.EmbeddingService
}

// NewRetrievalService creates a new retrieval service.
func NewRetrievalService(index driven.SearchIndex, embedder driven.EmbeddingService) *RetrievalService {
	return &RetrievalService{index: index, embedder: embedder}
}

// SearchLexical performs keyword/phrase search only.
func (s *RetrievalService) SearchLexical(ctx context.Context, userID int64, query string, limit int) ([]domain.RetrievedChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", domain.ErrInvalidInput)
	}
	limit = clampLimit(limit)

	hits, err := s.index.SearchLexical(ctx, userID, query, domain.DefaultHybridParams().TextChars, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	results := make([]domain.RetrievedChunk, 0, len(hits))
	for i, h := range hits {
		results = append(results, domain.RetrievedChunk{
			ChunkID:        h.ChunkID,
			DocumentID:     h.DocumentID,
			Filename:       h.Filename,
			ChunkIndex:     h.ChunkIndex,
			Text:           h.Text,
			LexicalScore:   h.Score,
			LexicalRank:    i + 1,
			MatchedLexical: true,
		})
	}
	return results, nil
}

// SearchVector embeds the query and ranks chunks by cosine similarity.
func (s *RetrievalService) SearchVector(ctx context.Context, userID int64, query string, limit int) ([]domain.RetrievedChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", domain.ErrInvalidInput)
	}
	limit = clampLimit(limit)

	vector, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	hits, err := s.index.SearchVector(ctx, userID, vector, s.embedder.ModelName(), domain.DefaultHybridParams().TextChars, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	results := make([]domain.RetrievedChunk, 0, len(hits))
	for i, h := range hits {
		results = append(results, domain.RetrievedChunk{
			ChunkID:       h.ChunkID,
			DocumentID:    h.DocumentID,
			Filename:      h.Filename,
			ChunkIndex:    h.ChunkIndex,
			Text:          h.Text,
			VectorDist:    h.Distance,
			VectorSim:     1 - h.Distance,
			VectorRank:    i + 1,
			MatchedVector: true,
		})
	}
	return results, nil
}

// SearchHybrid runs both legs and fuses them with weighted reciprocal
// rank fusion. Either leg failing fails the whole search; an empty
// candidate list from one side just contributes nothing to fusion.
func (s *RetrievalService) SearchHybrid(ctx context.Context, userID int64, query string, params domain.HybridParams) ([]domain.RetrievedChunk, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("%w: query must not be empty", domain.ErrInvalidInput)
	}
	params = params.Clamped()

	lexHits, err := s.index.SearchLexical(ctx, userID, query, params.TextChars, params.FullTextCandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}

	vector, err := s.embedQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	vecHits, err := s.index.SearchVector(ctx, userID, vector, s.embedder.ModelName(), params.TextChars, params.VectorCandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	logger.Debug("hybrid search fused %d lexical and %d vector candidates", len(lexHits), len(vecHits))
	fused := fuseRRF(lexHits, vecHits, params)
	if len(fused) > params.Limit {
		fused = fused[:params.Limit]
	}
	return fused, nil
}

// embedQuery embeds search text and validates the vector length against
// the model's declared dimensionality.
func (s *RetrievalService) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: no embedding service configured", domain.ErrEmbeddingUnavailable)
	}

	vector, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if want := s.embedder.Dimensions(); len(vector) != want {
		return nil, fmt.Errorf("%w: query vector has %d dimensions, want %d",
			domain.ErrDimensionMismatch, len(vector), want)
	}
	return vector, nil
}

// fuseRRF merges the two rank-ordered candidate lists with weighted
// reciprocal rank fusion. A chunk absent from one side contributes
// nothing for that side. Ties break by ascending chunk id so identical
// inputs always produce identical ordering.
func fuseRRF(lexHits []driven.LexicalHit, vecHits []driven.VectorHit, params domain.HybridParams) []domain.RetrievedChunk {
	k := float64(params.RRFRankConstant)
	merged := make(map[int64]*domain.RetrievedChunk, len(lexHits)+len(vecHits))

	for i, h := range lexHits {
		merged[h.ChunkID] = &domain.RetrievedChunk{
			ChunkID:        h.ChunkID,
			DocumentID:     h.DocumentID,
			Filename:       h.Filename,
			ChunkIndex:     h.ChunkIndex,
			Text:           h.Text,
			LexicalScore:   h.Score,
			LexicalRank:    i + 1,
			MatchedLexical: true,
			HybridScore:    params.FullTextWeight / (k + float64(i+1)),
		}
	}

	for i, h := range vecHits {
		c, ok := merged[h.ChunkID]
		if !ok {
			c = &domain.RetrievedChunk{
				ChunkID:    h.ChunkID,
				DocumentID: h.DocumentID,
				Filename:   h.Filename,
				ChunkIndex: h.ChunkIndex,
				Text:       h.Text,
			}
			merged[h.ChunkID] = c
		}
		c.VectorDist = h.Distance
		c.VectorSim = 1 - h.Distance
		c.VectorRank = i + 1
		c.MatchedVector = true
		c.HybridScore += params.VectorWeight / (k + float64(i+1))
	}

	fused := make([]domain.RetrievedChunk, 0, len(merged))
	for _, c := range merged {
		fused = append(fused, *c)
	}
	sort.Slice(fused, func(a, b int) bool {
		if fused[a].HybridScore != fused[b].HybridScore {
			return fused[a].HybridScore > fused[b].HybridScore
		}
		return fused[a].ChunkID < fused[b].ChunkID
	})
	return fused
}

// clampLimit forces a single-mode result limit into the allowed range.
func clampLimit(limit int) int {
	if limit < domain.MinHybridLimit {
		return domain.DefaultHybridParams().Limit
	}
	if limit > domain.MaxHybridLimit {
		return domain.MaxHybridLimit
	}
	return limit
}
