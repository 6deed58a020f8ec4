package driven

import "context"

// SearchIndex provides the two retrieval legs over indexed chunks.
// Backed by Postgres full-text search and pgvector.
//
// Both legs filter to the requesting user's non-deleted documents inside
// the query itself.
type SearchIndex interface {
	// SearchLexical ranks chunks against a web-search-syntax query
	// (quoted phrases, exclusion, OR) by cover-density relevance,
	// descending. textChars bounds the returned chunk text.
	SearchLexical(ctx context.Context, userID int64, query string, textChars, limit int) ([]LexicalHit, error)

	// SearchVector ranks chunks by ascending cosine distance to the query
	// vector, restricted to chunks embedded with exactly model.
	SearchVector(ctx context.Context, userID int64, vector []float32, model string, textChars, limit int) ([]VectorHit, error)
}

// LexicalHit is one lexical search result. Slice order is rank order,
// best first.
type LexicalHit struct {
	ChunkID    int64
	DocumentID int64
	Filename   string
	ChunkIndex int
	Text       string

	// Score is the cover-density relevance score.
	Score float64
}

// VectorHit is one vector search result. Slice order is rank order,
// nearest first.
type VectorHit struct {
	ChunkID    int64
	DocumentID int64
	Filename   string
	ChunkIndex int
	Text       string

	// Distance is the cosine distance to the query vector.
	Distance float64
}
