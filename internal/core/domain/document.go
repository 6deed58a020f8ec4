package domain

import "time"

// Document represents an ingested document with its extracted text.
// Text extraction happens upstream; this core only sees extracted text.
type Document struct {
	// ID is the storage identifier.
	ID int64

	// UserID is the owning user. All reads are scoped to it.
	UserID int64

	// Filename is the original upload filename.
	Filename string

	// ContentType is the declared MIME type, if any.
	ContentType string

	// SizeBytes is the original upload size.
	SizeBytes int64

	// ExtractedText is the full text content. Immutable once created.
	ExtractedText string

	// Metadata contains arbitrary key-value pairs (chunking info, etc).
	Metadata map[string]any

	// DeletedAt marks a soft delete. Rows are never physically removed.
	DeletedAt *time.Time

	// CreatedAt is when the document was ingested.
	CreatedAt time.Time
}

// Deleted reports whether the document is soft-deleted.
func (d *Document) Deleted() bool {
	return d.DeletedAt != nil
}

// Chunk represents the indexed and retrieved unit of a document.
// The embedding is either fully absent, or present together with the
// model name that produced it.
type Chunk struct {
	// ID is the storage identifier.
	ID int64

	// DocumentID links to the parent Document.
	DocumentID int64

	// Index is the zero-based ordinal within the document.
	Index int

	// Text is the chunk content. Written once at ingest, never mutated.
	Text string

	// Embedding is the vector representation, nil until embedded.
	Embedding []float32

	// EmbeddingModel names the model that produced Embedding.
	EmbeddingModel string

	// EmbeddedAt is when the embedding was written.
	EmbeddedAt *time.Time
}

// Embedded reports whether the chunk has a stored embedding.
func (c *Chunk) Embedded() bool {
	return len(c.Embedding) > 0
}

// DocumentSummary is the listing view of a document with chunk counts.
type DocumentSummary struct {
	ID                 int64
	Filename           string
	ContentType        string
	SizeBytes          int64
	ChunkCount         int
	EmbeddedChunkCount int
	CreatedAt          time.Time
}

// IngestRequest carries extracted text into the ingestion pipeline.
type IngestRequest struct {
	Filename    string
	ContentType string
	Text        string
	Metadata    map[string]any
}

// IngestResult reports what ingestion produced.
type IngestResult struct {
	DocumentID int64
	ChunkCount int

	// EmbeddingStarted is true when a background embedding run was kicked
	// off for the new document.
	EmbeddingStarted bool
}

// EmbedStats reports the outcome of one embedding run over a document.
type EmbedStats struct {
	DocumentID int64
	Model      string

	// Embedded is the number of chunks embedded by this run.
	Embedded int

	// Remaining is the number of chunks still missing an embedding
	// after this run finished.
	Remaining int
}
