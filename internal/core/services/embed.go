package services

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/time/rate"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-chat/internal/logger"
)

// EmbedConfig configures the embedding pipeline.
type EmbedConfig struct {
	// DefaultBatchSize is used when a caller passes batchSize <= 0.
	DefaultBatchSize int

	// RequestsPerSecond throttles calls to the embedding service.
	// 0 means unthrottled.
	RequestsPerSecond float64
	Burst             int

	// BackgroundTimeout bounds a fire-and-forget embedding run.
	BackgroundTimeout time.Duration
}

// EmbedService embeds document chunks in resumable batches. Implements
// driving.EmbedService.
//
// Progress state is the data itself: a chunk needs embedding exactly when
// its stored embedding is absent. A crashed or interrupted run leaves
// nothing to clean up, the next run picks up the remaining chunks.
type EmbedService struct {
	docs     driven.DocumentStore
	embedder driven.EmbeddingService
	limiter  *rate.Limiter
	cfg      EmbedConfig
}

// NewEmbedService creates a new embedding service.
func NewEmbedService(docs driven.DocumentStore, embedder driven.EmbeddingService, cfg EmbedConfig) *EmbedService {
	if cfg.DefaultBatchSize <= 0 {
		cfg.DefaultBatchSize = 16
	}
	if cfg.BackgroundTimeout <= 0 {
		cfg.BackgroundTimeout = 10 * time.Minute
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		burst := cfg.Burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst)
	}

	return &EmbedService{docs: docs, embedder: embedder, limiter: limiter, cfg: cfg}
}

// EmbedDocument embeds every chunk of the document that is still missing
// an embedding, in batches of batchSize. Each batch is embedded then
// written in one transaction, so an interrupted run loses at most the
// in-flight batch and a re-run resumes from the first unembedded chunk.
func (s *EmbedService) EmbedDocument(ctx context.Context, userID, documentID int64, batchSize int) (*domain.EmbedStats, error) {
	if batchSize <= 0 {
		batchSize = s.cfg.DefaultBatchSize
	}

	owned, err := s.docs.DocumentBelongsToUser(ctx, userID, documentID)
	if err != nil {
		return nil, fmt.Errorf("check document ownership: %w", err)
	}
	if !owned {
		return nil, fmt.Errorf("%w: document %d", domain.ErrNotFound, documentID)
	}

	model := s.embedder.ModelName()
	wantDims := s.embedder.Dimensions()
	stats := &domain.EmbedStats{DocumentID: documentID, Model: model}

	for {
		chunks, err := s.docs.ChunksNeedingEmbedding(ctx, userID, documentID, batchSize)
		if err != nil {
			return nil, fmt.Errorf("load pending chunks: %w", err)
		}
		if len(chunks) == 0 {
			break
		}

		updates := make([]driven.ChunkEmbedding, 0, len(chunks))
		for _, chunk := range chunks {
			if err := s.wait(ctx); err != nil {
				return nil, err
			}

			vector, err := s.embedder.Embed(ctx, chunk.Text)
			if err != nil {
				return nil, fmt.Errorf("embed chunk %d: %w", chunk.ID, err)
			}
			if len(vector) != wantDims {
				return nil, fmt.Errorf("%w: chunk %d got %d dimensions, want %d",
					domain.ErrDimensionMismatch, chunk.ID, len(vector), wantDims)
			}
			updates = append(updates, driven.ChunkEmbedding{ChunkID: chunk.ID, Vector: vector})
		}

		if err := s.docs.UpdateChunkEmbeddings(ctx, updates, model); err != nil {
			return nil, fmt.Errorf("store embeddings: %w", err)
		}
		stats.Embedded += len(updates)

		if len(chunks) < batchSize {
			break
		}
	}

	remaining, err := s.docs.CountChunksNeedingEmbedding(ctx, userID, documentID)
	if err != nil {
		return nil, fmt.Errorf("count pending chunks: %w", err)
	}
	stats.Remaining = remaining

	logger.Debug("embedded %d chunks of document %d with %s, %d remaining",
		stats.Embedded, documentID, model, remaining)
	return stats, nil
}

// EmbedDocumentBackground runs EmbedDocument detached from the caller's
// request. Failures are logged and swallowed.
func (s *EmbedService) EmbedDocumentBackground(userID, documentID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.BackgroundTimeout)
	defer cancel()

	stats, err := s.EmbedDocument(ctx, userID, documentID, 0)
	if err != nil {
		logger.Warn("background embedding of document %d failed: %v", documentID, err)
		return
	}
	logger.Info("background embedding of document %d done: %d embedded, %d remaining",
		documentID, stats.Embedded, stats.Remaining)
}

func (s *EmbedService) wait(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("embedding rate limit: %w", err)
	}
	return nil
}
