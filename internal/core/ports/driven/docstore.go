package driven

import (
	"context"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

// DocumentStore persists documents and chunks.
// Backed by Postgres for production; a memory implementation exists for tests.
//
// Every read is scoped to an owning user and excludes soft-deleted
// documents. Scoping is enforced inside the store's queries, never as a
// post-filter.
type DocumentStore interface {
	// InsertDocumentWithChunks stores a document and its chunk texts in a
	// single transaction and returns the new document id. Chunk ordinals
	// are assigned from slice order, zero-based.
	InsertDocumentWithChunks(ctx context.Context, doc *domain.Document, chunks []string) (int64, error)

	// ListDocuments returns the user's active documents, newest first,
	// with chunk and embedded-chunk counts.
	ListDocuments(ctx context.Context, userID int64, limit, offset int) ([]domain.DocumentSummary, error)

	// SoftDeleteDocument marks a document deleted. Returns
	// domain.ErrNotFound when the document is absent, already deleted, or
	// owned by someone else.
	SoftDeleteDocument(ctx context.Context, userID, documentID int64) error

	// DocumentBelongsToUser reports whether an active document is owned
	// by the user.
	DocumentBelongsToUser(ctx context.Context, userID, documentID int64) (bool, error)

	// ChunksNeedingEmbedding returns up to limit chunks of the document
	// whose embedding is still absent, ordered by chunk ordinal.
	ChunksNeedingEmbedding(ctx context.Context, userID, documentID int64, limit int) ([]domain.Chunk, error)

	// CountChunksNeedingEmbedding counts chunks still missing an embedding.
	CountChunksNeedingEmbedding(ctx context.Context, userID, documentID int64) (int, error)

	// UpdateChunkEmbeddings writes a batch of embeddings in one
	// transaction. Each row update is conditioned on the embedding still
	// being absent, so concurrent runs degrade to redundant work instead
	// of double-writing.
	UpdateChunkEmbeddings(ctx context.Context, updates []ChunkEmbedding, model string) error
}

// ChunkEmbedding pairs a chunk id with its computed vector.
type ChunkEmbedding struct {
	ChunkID int64
	Vector  []float32
}
