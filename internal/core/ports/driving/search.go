package driving

import (
	"context"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

// RetrievalService exposes the three search modes over a user's indexed
// chunks.
type RetrievalService interface {
	// SearchLexical performs keyword/phrase search.
	SearchLexical(ctx context.Context, userID int64, query string, limit int) ([]domain.RetrievedChunk, error)

	// SearchVector performs semantic similarity search.
	SearchVector(ctx context.Context, userID int64, query string, limit int) ([]domain.RetrievedChunk, error)

	// SearchHybrid fuses both modes with reciprocal rank fusion.
	SearchHybrid(ctx context.Context, userID int64, query string, params domain.HybridParams) ([]domain.RetrievedChunk, error)
}
