package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven"
)

// Ensure documentStore implements the interface.
var _ driven.DocumentStore = (*documentStore)(nil)

// documentStore is the Postgres implementation of driven.DocumentStore.
type documentStore struct {
	store *Store
}

// InsertDocumentWithChunks stores a document and its chunks in one
// transaction.
func (s *documentStore) InsertDocumentWithChunks(ctx context.Context, doc *domain.Document, chunks []string) (int64, error) {
	metadata, err := json.Marshal(doc.Metadata)
	if err != nil {
		return 0, fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := s.store.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var docID int64
	err = tx.QueryRow(ctx, `
		INSERT INTO documents (user_id, filename, content_type, size_bytes, extracted_text, metadata)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb)
		RETURNING id
	`, doc.UserID, doc.Filename, nullIfEmpty(doc.ContentType), doc.SizeBytes, doc.ExtractedText, metadata).Scan(&docID)
	if err != nil {
		return 0, fmt.Errorf("insert document: %w", err)
	}

	rows := make([][]any, 0, len(chunks))
	for i, text := range chunks {
		rows = append(rows, []any{docID, i, text})
	}
	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"chunks"},
		[]string{"document_id", "chunk_index", "text"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return 0, fmt.Errorf("insert chunks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return docID, nil
}

// ListDocuments returns the user's active documents with chunk counts,
// newest first.
func (s *documentStore) ListDocuments(ctx context.Context, userID int64, limit, offset int) ([]domain.DocumentSummary, error) {
	rows, err := s.store.pool.Query(ctx, `
		SELECT
		  d.id,
		  d.filename,
		  COALESCE(d.content_type, ''),
		  d.size_bytes,
		  d.created_at,
		  COALESCE(stats.chunk_count, 0),
		  COALESCE(stats.embedded_chunk_count, 0)
		FROM documents d
		LEFT JOIN LATERAL (
		  SELECT
		    count(*) AS chunk_count,
		    count(*) FILTER (WHERE c.embedding IS NOT NULL) AS embedded_chunk_count
		  FROM chunks c
		  WHERE c.document_id = d.id
		) stats ON true
		WHERE d.user_id = $1
		  AND d.deleted_at IS NULL
		ORDER BY d.created_at DESC, d.id DESC
		LIMIT $2
		OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	summaries := []domain.DocumentSummary{}
	for rows.Next() {
		var d domain.DocumentSummary
		if err := rows.Scan(&d.ID, &d.Filename, &d.ContentType, &d.SizeBytes, &d.CreatedAt, &d.ChunkCount, &d.EmbeddedChunkCount); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		summaries = append(summaries, d)
	}
	return summaries, rows.Err()
}

// SoftDeleteDocument marks a document deleted.
func (s *documentStore) SoftDeleteDocument(ctx context.Context, userID, documentID int64) error {
	tag, err := s.store.pool.Exec(ctx, `
		UPDATE documents
		SET deleted_at = now()
		WHERE id = $1
		  AND user_id = $2
		  AND deleted_at IS NULL
	`, documentID, userID)
	if err != nil {
		return fmt.Errorf("soft delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %d: %w", documentID, domain.ErrNotFound)
	}
	return nil
}

// DocumentBelongsToUser reports whether an active document is owned by
// the user.
func (s *documentStore) DocumentBelongsToUser(ctx context.Context, userID, documentID int64) (bool, error) {
	var ok bool
	err := s.store.pool.QueryRow(ctx, `
		SELECT EXISTS (
		  SELECT 1
		  FROM documents
		  WHERE id = $1
		    AND user_id = $2
		    AND deleted_at IS NULL
		)
	`, documentID, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("check document ownership: %w", err)
	}
	return ok, nil
}

// ChunksNeedingEmbedding returns unembedded chunks in ordinal order.
func (s *documentStore) ChunksNeedingEmbedding(ctx context.Context, userID, documentID int64, limit int) ([]domain.Chunk, error) {
	rows, err := s.store.pool.Query(ctx, `
		SELECT c.id, c.chunk_index, c.text
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.document_id = $1
		  AND d.user_id = $2
		  AND d.deleted_at IS NULL
		  AND c.embedding IS NULL
		ORDER BY c.chunk_index
		LIMIT $3
	`, documentID, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending chunks: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		c := domain.Chunk{DocumentID: documentID}
		if err := rows.Scan(&c.ID, &c.Index, &c.Text); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// CountChunksNeedingEmbedding counts chunks still missing an embedding.
func (s *documentStore) CountChunksNeedingEmbedding(ctx context.Context, userID, documentID int64) (int, error) {
	var n int
	err := s.store.pool.QueryRow(ctx, `
		SELECT count(*)
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.document_id = $1
		  AND d.user_id = $2
		  AND d.deleted_at IS NULL
		  AND c.embedding IS NULL
	`, documentID, userID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count pending chunks: %w", err)
	}
	return n, nil
}

// UpdateChunkEmbeddings writes a batch of embeddings in one transaction.
// Each row update is conditioned on the embedding still being absent.
func (s *documentStore) UpdateChunkEmbeddings(ctx context.Context, updates []driven.ChunkEmbedding, model string) error {
	if len(updates) == 0 {
		return nil
	}

	tx, err := s.store.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(`
			UPDATE chunks
			SET embedding = $2,
			    embedding_model = $3,
			    embedded_at = now()
			WHERE id = $1
			  AND embedding IS NULL
		`, u.ChunkID, pgvector.NewVector(u.Vector), model)
	}

	results := tx.SendBatch(ctx, batch)
	for range updates {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("update chunk embedding: %w", err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("close batch: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// nullIfEmpty maps an empty string to SQL NULL.
func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
