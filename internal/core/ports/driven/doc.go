// Package driven provides interfaces for infrastructure adapters
// (secondary/outbound ports).
//
// The core calls its collaborators exclusively through these narrow
// contracts: a persistence layer (documents, chunks, conversations,
// messages), a combined lexical/vector search index, an embedding
// service, and a generation (LLM) service.
package driven
