package driving

import (
	"context"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

// ChatService orchestrates conversational turns.
type ChatService interface {
	// Chat runs one full turn: resolve conversation, route, optionally
	// retrieve, generate, persist, respond.
	Chat(ctx context.Context, userID int64, req domain.ChatRequest) (*domain.ChatResult, error)

	// ListConversations returns the user's conversations, optionally
	// fuzzy-filtered by message content.
	ListConversations(ctx context.Context, userID int64, opts domain.ConversationListOptions) ([]domain.ConversationSummary, error)

	// ConversationMessages returns a bounded chronological slice of a
	// conversation's messages by external key.
	ConversationMessages(ctx context.Context, userID int64, key string, limit int) ([]domain.Message, error)
}
