package domain

import "time"

// Role identifies the author of a message.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one this core persists.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Conversation represents a chat thread. It is identified externally by an
// opaque key (client-supplied or generated) and owned by exactly one user.
// Conversations are created lazily on the first turn referencing a key.
type Conversation struct {
	// ID is the internal storage identifier.
	ID int64

	// Key is the opaque external identifier.
	Key string

	// UserID is the owning user.
	UserID int64

	// Metadata contains arbitrary key-value pairs.
	Metadata map[string]any

	// CreatedAt is when the conversation was first created.
	CreatedAt time.Time

	// UpdatedAt advances on every persisted message.
	UpdatedAt time.Time
}

// Message is one turn in a conversation. Messages are append-only and
// ordered by creation time, then id as the tie-break for same-timestamp
// inserts.
type Message struct {
	// ID is the storage identifier.
	ID int64

	// ConversationID links to the parent Conversation.
	ConversationID int64

	// Role is user or assistant.
	Role Role

	// Content is the message text.
	Content string

	// Sources carries attribution for grounded assistant messages.
	// Empty for user messages and for casual turns.
	Sources []Source

	// Metadata carries at minimum the resolved route for the turn.
	Metadata map[string]any

	// CreatedAt is when the message was persisted.
	CreatedAt time.Time
}

// ConversationSummary is the listing view of a conversation.
type ConversationSummary struct {
	// Key is the opaque external identifier.
	Key string

	CreatedAt time.Time
	UpdatedAt time.Time

	// MessageCount is the total number of messages in the thread.
	MessageCount int

	// LastMessagePreview is a short prefix of the latest message.
	LastMessagePreview string

	// BestSimilarity is the best fuzzy match score when a search query
	// filtered the listing, 0 otherwise.
	BestSimilarity float64
}

// ConversationListOptions configures conversation listing.
type ConversationListOptions struct {
	Limit  int
	Offset int

	// Query enables fuzzy filtering over message content when non-empty.
	Query string

	// SimilarityThreshold is the minimum trigram similarity that admits a
	// match on its own. Substring matches are admitted regardless.
	SimilarityThreshold float64
}

// Clamped returns a copy with limit, offset and threshold forced into
// sane ranges.
func (o ConversationListOptions) Clamped() ConversationListOptions {
	if o.Limit < 1 {
		o.Limit = 50
	}
	if o.Limit > 200 {
		o.Limit = 200
	}
	if o.Offset < 0 {
		o.Offset = 0
	}
	if o.SimilarityThreshold < 0 {
		o.SimilarityThreshold = 0
	}
	if o.SimilarityThreshold > 1 {
		o.SimilarityThreshold = 1
	}
	return o
}
