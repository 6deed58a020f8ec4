package services

import (
	"context"
	"errors"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven"
)

// mockDocStore keeps chunk embedding state in memory and mimics the
// store's conditional batch write.
type mockDocStore struct {
	ownerID    int64
	documentID int64
	chunks     []domain.Chunk

	writeBatches [][]driven.ChunkEmbedding
	listErr      error
	writeErr     error
}

func newMockDocStore(chunkTexts ...string) *mockDocStore {
	s := &mockDocStore{ownerID: 7, documentID: 42}
	for i, text := range chunkTexts {
		s.chunks = append(s.chunks, domain.Chunk{
			ID:         int64(100 + i),
			DocumentID: s.documentID,
			Index:      i,
			Text:       text,
		})
	}
	return s
}

func (s *mockDocStore) InsertDocumentWithChunks(context.Context, *domain.Document, []string) (int64, error) {
	return 0, errors.New("not implemented")
}

func (s *mockDocStore) ListDocuments(context.Context, int64, int, int) ([]domain.DocumentSummary, error) {
	return nil, errors.New("not implemented")
}

func (s *mockDocStore) SoftDeleteDocument(context.Context, int64, int64) error {
	return errors.New("not implemented")
}

func (s *mockDocStore) DocumentBelongsToUser(_ context.Context, userID, documentID int64) (bool, error) {
	return userID == s.ownerID && documentID == s.documentID, nil
}

func (s *mockDocStore) ChunksNeedingEmbedding(_ context.Context, _, _ int64, limit int) ([]domain.Chunk, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	var pending []domain.Chunk
	for _, c := range s.chunks {
		if !c.Embedded() {
			pending = append(pending, c)
		}
		if len(pending) == limit {
			break
		}
	}
	return pending, nil
}

func (s *mockDocStore) CountChunksNeedingEmbedding(context.Context, int64, int64) (int, error) {
	n := 0
	for _, c := range s.chunks {
		if !c.Embedded() {
			n++
		}
	}
	return n, nil
}

func (s *mockDocStore) UpdateChunkEmbeddings(_ context.Context, updates []driven.ChunkEmbedding, model string) error {
	if s.writeErr != nil {
		return s.writeErr
	}
	s.writeBatches = append(s.writeBatches, updates)
	for _, u := range updates {
		for i := range s.chunks {
			if s.chunks[i].ID == u.ChunkID && !s.chunks[i].Embedded() {
				s.chunks[i].Embedding = u.Vector
				s.chunks[i].EmbeddingModel = model
			}
		}
	}
	return nil
}

func (s *mockDocStore) embeddedIDs() []int64 {
	var ids []int64
	for _, c := range s.chunks {
		if c.Embedded() {
			ids = append(ids, c.ID)
		}
	}
	sort.Slice(ids, func(a, b int) bool { return ids[a] < ids[b] })
	return ids
}

func TestEmbedDocumentBatches(t *testing.T) {
	store := newMockDocStore("one", "two", "three", "four", "five")
	svc := NewEmbedService(store, threeVec(), EmbedConfig{})

	stats, err := svc.EmbedDocument(context.Background(), 7, 42, 2)
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Embedded)
	assert.Equal(t, 0, stats.Remaining)
	assert.Equal(t, "mock-embed", stats.Model)
	assert.Len(t, store.embeddedIDs(), 5)

	// 5 chunks at batch size 2 means three writes of 2, 2, 1.
	require.Len(t, store.writeBatches, 3)
	assert.Len(t, store.writeBatches[0], 2)
	assert.Len(t, store.writeBatches[2], 1)
}

func TestEmbedDocumentResumes(t *testing.T) {
	store := newMockDocStore("one", "two", "three")
	// A previous run already embedded the middle chunk.
	store.chunks[1].Embedding = []float32{0.1, 0.2, 0.3}
	store.chunks[1].EmbeddingModel = "mock-embed"

	svc := NewEmbedService(store, threeVec(), EmbedConfig{})

	stats, err := svc.EmbedDocument(context.Background(), 7, 42, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Embedded)
	assert.Equal(t, 0, stats.Remaining)

	require.Len(t, store.writeBatches, 1)
	batch := store.writeBatches[0]
	require.Len(t, batch, 2)
	assert.Equal(t, int64(100), batch[0].ChunkID)
	assert.Equal(t, int64(102), batch[1].ChunkID)
}

func TestEmbedDocumentIdempotent(t *testing.T) {
	store := newMockDocStore("one", "two")
	svc := NewEmbedService(store, threeVec(), EmbedConfig{})

	first, err := svc.EmbedDocument(context.Background(), 7, 42, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Embedded)

	second, err := svc.EmbedDocument(context.Background(), 7, 42, 10)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Embedded)
	assert.Equal(t, 0, second.Remaining)
	assert.Len(t, store.writeBatches, 1)
}

func TestEmbedDocumentDimensionMismatchAborts(t *testing.T) {
	store := newMockDocStore("one", "two")
	embedder := &mockEmbedder{vector: []float32{0.1}, dims: 3}
	svc := NewEmbedService(store, embedder, EmbedConfig{})

	_, err := svc.EmbedDocument(context.Background(), 7, 42, 10)
	require.ErrorIs(t, err, domain.ErrDimensionMismatch)

	// Nothing was written, the run is cleanly resumable.
	assert.Empty(t, store.writeBatches)
	assert.Empty(t, store.embeddedIDs())
}

func TestEmbedDocumentUnknownDocument(t *testing.T) {
	store := newMockDocStore("one")
	svc := NewEmbedService(store, threeVec(), EmbedConfig{})

	_, err := svc.EmbedDocument(context.Background(), 7, 999, 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.EmbedDocument(context.Background(), 8, 42, 10)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestEmbedDocumentEmbedderFailure(t *testing.T) {
	store := newMockDocStore("one")
	embedder := &mockEmbedder{err: errors.New("model not loaded"), dims: 3}
	svc := NewEmbedService(store, embedder, EmbedConfig{})

	_, err := svc.EmbedDocument(context.Background(), 7, 42, 10)
	require.Error(t, err)
	assert.Empty(t, store.embeddedIDs())
}

func TestEmbedDocumentBackgroundSwallowsErrors(t *testing.T) {
	store := newMockDocStore("one")
	store.listErr = errors.New("db down")
	svc := NewEmbedService(store, threeVec(), EmbedConfig{})

	// Must not panic and must not leave any partial state.
	svc.EmbedDocumentBackground(7, 42)
	assert.Empty(t, store.writeBatches)
}

func TestEmbedDocumentBackgroundCompletes(t *testing.T) {
	store := newMockDocStore("one", "two")
	svc := NewEmbedService(store, threeVec(), EmbedConfig{})

	svc.EmbedDocumentBackground(7, 42)
	assert.Len(t, store.embeddedIDs(), 2)
}
