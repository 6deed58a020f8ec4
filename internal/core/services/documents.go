package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/custodia-labs/sercha-chat/internal/chunker"
	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-chat/internal/logger"
	"github.com/custodia-labs/sercha-chat/internal/normalise"
)

// DocumentService handles ingestion and lifecycle of documents.
// Implements driving.DocumentService.
type DocumentService struct {
	docs     driven.DocumentStore
	embedder driving.EmbedService
	chunking chunker.Options
}

// NewDocumentService creates a new document service. embedder may be nil,
// in which case ingestion stores chunks without starting an embedding run.
func NewDocumentService(docs driven.DocumentStore, embedder driving.EmbedService, chunking chunker.Options) *DocumentService {
	if chunking.ChunkSize <= 0 {
		chunking = chunker.DefaultOptions()
	}
	return &DocumentService{docs: docs, embedder: embedder, chunking: chunking}
}

// IngestDocument strips markup according to the content type, chunks
// the resulting text, persists document and chunks
// in one transaction, and kicks off background embedding for the new
// document. The turn returns as soon as the text is durable, embeddings
// catch up asynchronously.
func (s *DocumentService) IngestDocument(ctx context.Context, userID int64, req domain.IngestRequest) (*domain.IngestResult, error) {
	filename := strings.TrimSpace(req.Filename)
	if filename == "" {
		return nil, fmt.Errorf("%w: filename must not be empty", domain.ErrInvalidInput)
	}

	text := normalise.Text(req.ContentType, req.Text)

	chunks, chunkRes, err := chunker.Split(text, s.chunking)
	if err != nil {
		return nil, fmt.Errorf("chunk %s: %w", filename, err)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: document %s has no extractable text", domain.ErrInvalidInput, filename)
	}

	metadata := map[string]any{
		"chunk_strategy": chunkRes.Strategy,
		"chunk_size":     s.chunking.ChunkSize,
		"chunk_overlap":  s.chunking.Overlap,
	}
	for k, v := range req.Metadata {
		metadata[k] = v
	}

	doc := &domain.Document{
		UserID:        userID,
		Filename:      filename,
		ContentType:   req.ContentType,
		SizeBytes:     int64(len(req.Text)),
		ExtractedText: text,
		Metadata:      metadata,
	}

	docID, err := s.docs.InsertDocumentWithChunks(ctx, doc, chunks)
	if err != nil {
		return nil, fmt.Errorf("store document %s: %w", filename, err)
	}

	logger.Info("ingested %s as document %d: %d chunks via %s",
		filename, docID, len(chunks), chunkRes.Strategy)

	started := false
	if s.embedder != nil {
		go s.embedder.EmbedDocumentBackground(userID, docID)
		started = true
	}

	return &domain.IngestResult{
		DocumentID:       docID,
		ChunkCount:       len(chunks),
		EmbeddingStarted: started,
	}, nil
}

// ListDocuments returns the user's active documents, newest first.
func (s *DocumentService) ListDocuments(ctx context.Context, userID int64, limit, offset int) ([]domain.DocumentSummary, error) {
	if limit < 1 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}
	return s.docs.ListDocuments(ctx, userID, limit, offset)
}

// DeleteDocument soft-deletes a document. The document and its chunks
// drop out of every listing and search immediately.
func (s *DocumentService) DeleteDocument(ctx context.Context, userID, documentID int64) error {
	if err := s.docs.SoftDeleteDocument(ctx, userID, documentID); err != nil {
		return fmt.Errorf("delete document %d: %w", documentID, err)
	}
	logger.Debug("soft-deleted document %d", documentID)
	return nil
}
