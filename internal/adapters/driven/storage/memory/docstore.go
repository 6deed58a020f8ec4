// Package memory provides in-memory store implementations for tests and
// local development. The implementations mirror the Postgres adapter's
// ownership and soft-delete semantics without requiring a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven"
)

// Ensure DocumentStore implements the interface.
var _ driven.DocumentStore = (*DocumentStore)(nil)

// DocumentStore is an in-memory implementation of driven.DocumentStore.
type DocumentStore struct {
	mu        sync.RWMutex
	nextDocID int64
	nextChkID int64
	documents map[int64]*domain.Document
	chunks    map[int64][]*domain.Chunk
}

// NewDocumentStore creates a new in-memory document store.
func NewDocumentStore() *DocumentStore {
	return &DocumentStore{
		documents: make(map[int64]*domain.Document),
		chunks:    make(map[int64][]*domain.Chunk),
	}
}

// InsertDocumentWithChunks stores a document and its chunks atomically.
func (s *DocumentStore) InsertDocumentWithChunks(_ context.Context, doc *domain.Document, chunks []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextDocID++
	stored := *doc
	stored.ID = s.nextDocID
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = time.Now()
	}
	s.documents[stored.ID] = &stored

	rows := make([]*domain.Chunk, 0, len(chunks))
	for i, text := range chunks {
		s.nextChkID++
		rows = append(rows, &domain.Chunk{
			ID:         s.nextChkID,
			DocumentID: stored.ID,
			Index:      i,
			Text:       text,
		})
	}
	s.chunks[stored.ID] = rows
	return stored.ID, nil
}

// ListDocuments returns the user's active documents, newest first.
func (s *DocumentStore) ListDocuments(_ context.Context, userID int64, limit, offset int) ([]domain.DocumentSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var summaries []domain.DocumentSummary
	for _, doc := range s.documents {
		if doc.UserID != userID || doc.Deleted() {
			continue
		}
		embedded := 0
		for _, c := range s.chunks[doc.ID] {
			if c.Embedded() {
				embedded++
			}
		}
		summaries = append(summaries, domain.DocumentSummary{
			ID:                 doc.ID,
			Filename:           doc.Filename,
			ContentType:        doc.ContentType,
			SizeBytes:          doc.SizeBytes,
			ChunkCount:         len(s.chunks[doc.ID]),
			EmbeddedChunkCount: embedded,
			CreatedAt:          doc.CreatedAt,
		})
	}

	// Newest first, id as the tie-break.
	sortSummaries(summaries)

	if offset >= len(summaries) {
		return []domain.DocumentSummary{}, nil
	}
	summaries = summaries[offset:]
	if len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries, nil
}

// SoftDeleteDocument marks a document deleted.
func (s *DocumentStore) SoftDeleteDocument(_ context.Context, userID, documentID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.documents[documentID]
	if !ok || doc.UserID != userID || doc.Deleted() {
		return fmt.Errorf("document %d: %w", documentID, domain.ErrNotFound)
	}
	now := time.Now()
	doc.DeletedAt = &now
	return nil
}

// DocumentBelongsToUser reports whether an active document is owned by the user.
func (s *DocumentStore) DocumentBelongsToUser(_ context.Context, userID, documentID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[documentID]
	return ok && doc.UserID == userID && !doc.Deleted(), nil
}

// ChunksNeedingEmbedding returns unembedded chunks in ordinal order.
func (s *DocumentStore) ChunksNeedingEmbedding(_ context.Context, userID, documentID int64, limit int) ([]domain.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[documentID]
	if !ok || doc.UserID != userID || doc.Deleted() {
		return nil, nil
	}

	var pending []domain.Chunk
	for _, c := range s.chunks[documentID] {
		if c.Embedded() {
			continue
		}
		pending = append(pending, *c)
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

// CountChunksNeedingEmbedding counts chunks still missing an embedding.
func (s *DocumentStore) CountChunksNeedingEmbedding(_ context.Context, userID, documentID int64) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.documents[documentID]
	if !ok || doc.UserID != userID || doc.Deleted() {
		return 0, nil
	}

	n := 0
	for _, c := range s.chunks[documentID] {
		if !c.Embedded() {
			n++
		}
	}
	return n, nil
}

// UpdateChunkEmbeddings writes a batch of embeddings. Each write is
// conditioned on the embedding still being absent.
func (s *DocumentStore) UpdateChunkEmbeddings(_ context.Context, updates []driven.ChunkEmbedding, model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	for _, u := range updates {
		for _, rows := range s.chunks {
			for _, c := range rows {
				if c.ID == u.ChunkID && !c.Embedded() {
					c.Embedding = append([]float32(nil), u.Vector...)
					c.EmbeddingModel = model
					c.EmbeddedAt = &now
				}
			}
		}
	}
	return nil
}

// allChunks snapshots every chunk of the user's active documents. Used by
// the memory search index.
func (s *DocumentStore) allChunks(userID int64) []indexedChunk {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []indexedChunk
	for _, doc := range s.documents {
		if doc.UserID != userID || doc.Deleted() {
			continue
		}
		for _, c := range s.chunks[doc.ID] {
			out = append(out, indexedChunk{chunk: *c, filename: doc.Filename})
		}
	}
	return out
}

func sortSummaries(summaries []domain.DocumentSummary) {
	sort.Slice(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}
