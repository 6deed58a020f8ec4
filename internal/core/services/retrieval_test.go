package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven"
)

// mockSearchIndex returns canned candidate lists.
type mockSearchIndex struct {
	lexHits []driven.LexicalHit
	lexErr  error
	vecHits []driven.VectorHit
	vecErr  error

	lastLexQuery  string
	lastVecModel  string
	lastLexLimit  int
	lastVecLimit  int
	lastVecVector []float32
}

func (m *mockSearchIndex) SearchLexical(_ context.Context, _ int64, query string, _, limit int) ([]driven.LexicalHit, error) {
	m.lastLexQuery = query
	m.lastLexLimit = limit
	return m.lexHits, m.lexErr
}

func (m *mockSearchIndex) SearchVector(_ context.Context, _ int64, vector []float32, model string, _, limit int) ([]driven.VectorHit, error) {
	m.lastVecVector = vector
	m.lastVecModel = model
	m.lastVecLimit = limit
	return m.vecHits, m.vecErr
}

// mockEmbedder returns a fixed vector for every input.
type mockEmbedder struct {
	vector []float32
	dims   int
	err    error
}

func (m *mockEmbedder) Embed(context.Context, string) ([]float32, error) { return m.vector, m.err }
func (m *mockEmbedder) Dimensions() int                                  { return m.dims }
func (m *mockEmbedder) ModelName() string                                { return "mock-embed" }
func (m *mockEmbedder) Ping(context.Context) error                       { return nil }

func threeVec() *mockEmbedder {
	return &mockEmbedder{vector: []float32{0.1, 0.2, 0.3}, dims: 3}
}

func lexHit(id int64, score float64) driven.LexicalHit {
	return driven.LexicalHit{ChunkID: id, DocumentID: 1, Filename: "a.txt", ChunkIndex: int(id), Score: score}
}

func vecHit(id int64, dist float64) driven.VectorHit {
	return driven.VectorHit{ChunkID: id, DocumentID: 1, Filename: "a.txt", ChunkIndex: int(id), Distance: dist}
}

func TestSearchHybridFusion(t *testing.T) {
	// Chunk B appears in both lists so it must outrank A (lexical rank 1
	// only) and C (vector rank 2 only) after fusion.
	index := &mockSearchIndex{
		lexHits: []driven.LexicalHit{lexHit(1, 0.9), lexHit(2, 0.4)},
		vecHits: []driven.VectorHit{vecHit(2, 0.10), vecHit(3, 0.25)},
	}
	svc := NewRetrievalService(index, threeVec())

	results, err := svc.SearchHybrid(context.Background(), 7, "rank fusion", domain.DefaultHybridParams())
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, int64(2), results[0].ChunkID)
	assert.Equal(t, int64(1), results[1].ChunkID)
	assert.Equal(t, int64(3), results[2].ChunkID)

	assert.InDelta(t, 0.5/62+0.5/61, results[0].HybridScore, 1e-12)
	assert.InDelta(t, 0.5/61, results[1].HybridScore, 1e-12)
	assert.InDelta(t, 0.5/62, results[2].HybridScore, 1e-12)

	both := results[0]
	assert.True(t, both.MatchedLexical)
	assert.True(t, both.MatchedVector)
	assert.Equal(t, 2, both.LexicalRank)
	assert.Equal(t, 1, both.VectorRank)
	assert.InDelta(t, 0.90, both.VectorSim, 1e-9)

	lexOnly := results[1]
	assert.True(t, lexOnly.MatchedLexical)
	assert.False(t, lexOnly.MatchedVector)
	assert.Zero(t, lexOnly.VectorRank)
}

func TestSearchHybridZeroVectorWeight(t *testing.T) {
	index := &mockSearchIndex{
		lexHits: []driven.LexicalHit{lexHit(1, 0.9), lexHit(2, 0.4)},
		vecHits: []driven.VectorHit{vecHit(3, 0.05), vecHit(2, 0.10)},
	}
	svc := NewRetrievalService(index, threeVec())

	params := domain.DefaultHybridParams()
	params.VectorWeight = 0

	results, err := svc.SearchHybrid(context.Background(), 7, "query", params)
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Lexical order decides; the vector-only chunk scores 0 and sorts last.
	assert.Equal(t, int64(1), results[0].ChunkID)
	assert.Equal(t, int64(2), results[1].ChunkID)
	assert.Equal(t, int64(3), results[2].ChunkID)
	assert.Zero(t, results[2].HybridScore)

	// The vector leg still ran and its ranks are still reported.
	assert.True(t, results[1].MatchedVector)
	assert.Equal(t, 2, results[1].VectorRank)
}

func TestSearchHybridTieBreaksByChunkID(t *testing.T) {
	// Two chunks at the same lexical rank position is impossible, so tie
	// equal fusion scores via symmetric lexical/vector placement.
	index := &mockSearchIndex{
		lexHits: []driven.LexicalHit{lexHit(9, 0.5)},
		vecHits: []driven.VectorHit{vecHit(4, 0.2)},
	}
	svc := NewRetrievalService(index, threeVec())

	results, err := svc.SearchHybrid(context.Background(), 7, "query", domain.DefaultHybridParams())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.InDelta(t, results[0].HybridScore, results[1].HybridScore, 1e-12)
	assert.Equal(t, int64(4), results[0].ChunkID)
	assert.Equal(t, int64(9), results[1].ChunkID)
}

func TestSearchHybridFailsWhenEmbeddingFails(t *testing.T) {
	index := &mockSearchIndex{
		lexHits: []driven.LexicalHit{lexHit(1, 0.9)},
	}
	svc := NewRetrievalService(index, &mockEmbedder{err: errors.New("embed down")})

	results, err := svc.SearchHybrid(context.Background(), 7, "query", domain.DefaultHybridParams())
	require.Error(t, err)
	assert.Nil(t, results)
	assert.ErrorContains(t, err, "embed down")
}

func TestSearchHybridFailsWhenVectorLegFails(t *testing.T) {
	index := &mockSearchIndex{
		lexHits: []driven.LexicalHit{lexHit(1, 0.9)},
		vecErr:  errors.New("index offline"),
	}
	svc := NewRetrievalService(index, threeVec())

	results, err := svc.SearchHybrid(context.Background(), 7, "query", domain.DefaultHybridParams())
	require.Error(t, err)
	assert.Nil(t, results)
	assert.ErrorContains(t, err, "index offline")
}

func TestSearchHybridLimitAndCandidateLimits(t *testing.T) {
	index := &mockSearchIndex{}
	for i := int64(1); i <= 30; i++ {
		index.lexHits = append(index.lexHits, lexHit(i, 1/float64(i)))
	}
	svc := NewRetrievalService(index, threeVec())

	params := domain.DefaultHybridParams()
	params.Limit = 5
	params.FullTextCandidateLimit = 40
	params.VectorCandidateLimit = 25

	results, err := svc.SearchHybrid(context.Background(), 7, "query", params)
	require.NoError(t, err)
	assert.Len(t, results, 5)
	assert.Equal(t, 40, index.lastLexLimit)
	assert.Equal(t, 25, index.lastVecLimit)
}

func TestSearchHybridEmptyQuery(t *testing.T) {
	svc := NewRetrievalService(&mockSearchIndex{}, threeVec())

	_, err := svc.SearchHybrid(context.Background(), 7, "   ", domain.DefaultHybridParams())
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestSearchLexical(t *testing.T) {
	index := &mockSearchIndex{
		lexHits: []driven.LexicalHit{lexHit(5, 0.8), lexHit(6, 0.3)},
	}
	svc := NewRetrievalService(index, threeVec())

	results, err := svc.SearchLexical(context.Background(), 7, "exact phrase", 10)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, 1, results[0].LexicalRank)
	assert.Equal(t, 2, results[1].LexicalRank)
	assert.Equal(t, 0.8, results[0].LexicalScore)
	assert.True(t, results[0].MatchedLexical)
	assert.False(t, results[0].MatchedVector)
}

func TestSearchVector(t *testing.T) {
	index := &mockSearchIndex{
		vecHits: []driven.VectorHit{vecHit(5, 0.15)},
	}
	svc := NewRetrievalService(index, threeVec())

	results, err := svc.SearchVector(context.Background(), 7, "meaning", 10)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "mock-embed", index.lastVecModel)
	assert.InDelta(t, 0.85, results[0].VectorSim, 1e-9)
	assert.Equal(t, 1, results[0].VectorRank)
}

func TestSearchVectorDimensionMismatch(t *testing.T) {
	embedder := &mockEmbedder{vector: []float32{0.1, 0.2}, dims: 3}
	svc := NewRetrievalService(&mockSearchIndex{}, embedder)

	_, err := svc.SearchVector(context.Background(), 7, "meaning", 10)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestSearchLimitClamped(t *testing.T) {
	index := &mockSearchIndex{}
	svc := NewRetrievalService(index, threeVec())

	_, err := svc.SearchLexical(context.Background(), 7, "query", 500)
	require.NoError(t, err)
	assert.Equal(t, domain.MaxHybridLimit, index.lastLexLimit)

	_, err = svc.SearchLexical(context.Background(), 7, "query", 0)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultHybridParams().Limit, index.lastLexLimit)
}
