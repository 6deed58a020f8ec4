package memory

import (
	"context"
	"math"
	"sort"
	"strings"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven"
)

// Ensure SearchIndex implements the interface.
var _ driven.SearchIndex = (*SearchIndex)(nil)

// SearchIndex is an in-memory implementation of driven.SearchIndex backed
// by a memory DocumentStore. Lexical scoring is naive term counting, not
// cover density, but ordering and filtering semantics match the Postgres
// adapter.
type SearchIndex struct {
	docs *DocumentStore
}

// indexedChunk pairs a chunk with its parent document's filename.
type indexedChunk struct {
	chunk    domain.Chunk
	filename string
}

// NewSearchIndex creates a search index over the given document store.
func NewSearchIndex(docs *DocumentStore) *SearchIndex {
	return &SearchIndex{docs: docs}
}

// SearchLexical ranks chunks by matched term frequency, descending.
func (s *SearchIndex) SearchLexical(_ context.Context, userID int64, query string, textChars, limit int) ([]driven.LexicalHit, error) {
	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	var hits []driven.LexicalHit
	for _, ic := range s.docs.allChunks(userID) {
		text := strings.ToLower(ic.chunk.Text)
		score := 0.0
		matchedAll := true
		for _, term := range terms {
			n := strings.Count(text, term)
			if n == 0 {
				matchedAll = false
				break
			}
			score += float64(n)
		}
		if !matchedAll {
			continue
		}
		hits = append(hits, driven.LexicalHit{
			ChunkID:    ic.chunk.ID,
			DocumentID: ic.chunk.DocumentID,
			Filename:   ic.filename,
			ChunkIndex: ic.chunk.Index,
			Text:       truncate(ic.chunk.Text, textChars),
			Score:      score,
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// SearchVector ranks embedded chunks by cosine distance, nearest first,
// restricted to chunks embedded with exactly model.
func (s *SearchIndex) SearchVector(_ context.Context, userID int64, vector []float32, model string, textChars, limit int) ([]driven.VectorHit, error) {
	var hits []driven.VectorHit
	for _, ic := range s.docs.allChunks(userID) {
		if !ic.chunk.Embedded() || ic.chunk.EmbeddingModel != model {
			continue
		}
		if len(ic.chunk.Embedding) != len(vector) {
			continue
		}
		hits = append(hits, driven.VectorHit{
			ChunkID:    ic.chunk.ID,
			DocumentID: ic.chunk.DocumentID,
			Filename:   ic.filename,
			ChunkIndex: ic.chunk.Index,
			Text:       truncate(ic.chunk.Text, textChars),
			Distance:   cosineDistance(vector, ic.chunk.Embedding),
		})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance != hits[j].Distance {
			return hits[i].Distance < hits[j].Distance
		}
		return hits[i].ChunkID < hits[j].ChunkID
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

func cosineDistance(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func truncate(text string, max int) string {
	if max > 0 && len(text) > max {
		return text[:max]
	}
	return text
}
