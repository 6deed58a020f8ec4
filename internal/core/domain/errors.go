package domain

import "errors"

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist, is soft-deleted,
	// or is not owned by the requesting user. Ownership failures deliberately
	// collapse into not-found so existence is never leaked across users.
	ErrNotFound = errors.New("not found")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLLMUnavailable indicates the generation service is not configured
	// or could not produce an answer.
	ErrLLMUnavailable = errors.New("LLM service unavailable")

	// ErrEmbeddingUnavailable indicates the embedding service is not
	// configured. Vector and hybrid search are disabled without embeddings.
	ErrEmbeddingUnavailable = errors.New("embedding service unavailable")

	// ErrSearchUnavailable indicates the search index is not configured.
	ErrSearchUnavailable = errors.New("search index unavailable")

	// ErrDimensionMismatch indicates an embedding vector did not match the
	// expected dimensionality. This is a data-integrity failure and the
	// current operation is aborted, never retried automatically.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrEmptyAnswer indicates the generation service returned no usable
	// content in either its structured or plain-text response field.
	ErrEmptyAnswer = errors.New("empty generation response")
)
