package driving

import (
	"context"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

// DocumentService manages document ingestion and lifecycle.
// Format extraction happens upstream; ingestion receives extracted text.
type DocumentService interface {
	// IngestDocument chunks the text, stores document and chunks in one
	// transaction, and starts background embedding.
	IngestDocument(ctx context.Context, userID int64, req domain.IngestRequest) (*domain.IngestResult, error)

	// ListDocuments returns the user's active documents with chunk counts.
	ListDocuments(ctx context.Context, userID int64, limit, offset int) ([]domain.DocumentSummary, error)

	// DeleteDocument soft-deletes a document.
	DeleteDocument(ctx context.Context, userID, documentID int64) error
}

// EmbedService generates and persists chunk embeddings.
type EmbedService interface {
	// EmbedDocument embeds all chunks of the document that are missing an
	// embedding, in batches. Resumable and safe to run concurrently.
	EmbedDocument(ctx context.Context, userID, documentID int64, batchSize int) (*domain.EmbedStats, error)

	// EmbedDocumentBackground runs EmbedDocument as a fire-and-forget
	// job: failures are logged, never propagated.
	EmbedDocumentBackground(userID, documentID int64)
}
