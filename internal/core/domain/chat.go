package domain

// Route is the per-turn decision of whether a question needs
// document-grounded retrieval.
type Route string

// Routes a turn can resolve to.
const (
	// RouteCasual answers from the system prompt and history alone.
	RouteCasual Route = "casual"

	// RouteRAG grounds the answer in retrieved document context.
	// This is the safe default under classifier failure.
	RouteRAG Route = "rag"
)

// Source attributes one retrieved passage inside an assistant message.
// It is carried inside Message.Sources, never persisted as its own entity.
type Source struct {
	// SourceID is the per-answer local reference id: S1, S2, ... assigned
	// in output order. Unrelated to ChunkID.
	SourceID string `json:"source_id"`

	// ChunkID is the originating chunk.
	ChunkID int64 `json:"id"`

	// DocumentID is the chunk's parent document.
	DocumentID int64 `json:"document_id"`

	// Filename is the parent document's filename.
	Filename string `json:"filename"`

	// ChunkIndex is the chunk ordinal within the document.
	ChunkIndex int `json:"chunk_index"`

	// The three ranking scores that surfaced this passage.
	HybridScore  float64 `json:"hybrid_score"`
	LexicalScore float64 `json:"fts_score"`
	VectorSim    float64 `json:"vec_sim"`
}

// ChatRequest is one conversational turn submitted by a user.
type ChatRequest struct {
	// Question is the user's message. Must be non-empty after trimming.
	Question string

	// ConversationKey resumes an existing thread when set. A new
	// conversation with a generated key is created when empty.
	ConversationKey string

	// TopK overrides the configured result count for grounded turns.
	// 0 means use the default. Clamped to [MinHybridLimit, MaxHybridLimit].
	TopK int

	// Hybrid retrieval tuning. nil means use the configured default; an
	// explicit zero weight disables that retrieval mode's influence.
	FullTextCandidateLimit *int
	VectorCandidateLimit   *int
	FullTextWeight         *float64
	VectorWeight           *float64
	RRFRankConstant        *int

	// Debug includes the resolved route and raw retrieval results in the
	// response.
	Debug bool
}

// ChatResult is the answer to one conversational turn.
type ChatResult struct {
	// ConversationID is the conversation's external key.
	ConversationID string `json:"conversation_id"`

	Question string `json:"question"`
	Answer   string `json:"answer"`

	// Sources is empty for casual turns and when retrieval found nothing.
	Sources []Source `json:"sources"`

	// Route and Retrieval are populated only when the request set Debug.
	Route     Route            `json:"route,omitempty"`
	Retrieval []RetrievedChunk `json:"retrieval,omitempty"`
}
