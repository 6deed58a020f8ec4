package driven

import (
	"context"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

// ConversationStore persists conversations and their messages.
//
// Messages are append-only, ordered by creation time then id. The store
// bumps the conversation's updated_at on every inserted message.
type ConversationStore interface {
	// GetOrCreateConversation looks up the conversation with the given
	// key for the user, creating it when absent. Returns
	// domain.ErrNotFound when the key exists but belongs to another user.
	GetOrCreateConversation(ctx context.Context, userID int64, key string) (*domain.Conversation, error)

	// GetConversationByKey returns the user's conversation or
	// domain.ErrNotFound.
	GetConversationByKey(ctx context.Context, userID int64, key string) (*domain.Conversation, error)

	// InsertMessage appends a message and bumps the conversation's
	// updated_at.
	InsertMessage(ctx context.Context, conversationID int64, msg *domain.Message) (*domain.Message, error)

	// ListRecentMessages returns the most recent limit messages in
	// chronological order.
	ListRecentMessages(ctx context.Context, conversationID int64, limit int) ([]domain.Message, error)

	// ListMessagesByKey returns the most recent limit messages of the
	// user's conversation in chronological order, or domain.ErrNotFound.
	ListMessagesByKey(ctx context.Context, userID int64, key string, limit int) ([]domain.Message, error)

	// ListConversations returns conversation summaries, newest activity
	// first, optionally fuzzy-filtered by message content.
	ListConversations(ctx context.Context, userID int64, opts domain.ConversationListOptions) ([]domain.ConversationSummary, error)
}
