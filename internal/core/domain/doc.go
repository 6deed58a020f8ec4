// Package domain defines the core business entities for sercha-chat.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Document: An ingested document with extracted text
//   - Chunk: The indexed and retrieved unit of a document
//   - Conversation: A chat thread identified by an opaque key
//   - Message: One turn in a conversation
//   - RetrievedChunk: A ranked retrieval candidate with per-mode scores
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
