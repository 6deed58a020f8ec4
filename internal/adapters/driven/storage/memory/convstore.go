package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven"
)

// Ensure ConversationStore implements the interface.
var _ driven.ConversationStore = (*ConversationStore)(nil)

// ConversationStore is an in-memory implementation of driven.ConversationStore.
type ConversationStore struct {
	mu         sync.RWMutex
	nextConvID int64
	nextMsgID  int64
	byKey      map[string]*domain.Conversation
	messages   map[int64][]domain.Message
}

// NewConversationStore creates a new in-memory conversation store.
func NewConversationStore() *ConversationStore {
	return &ConversationStore{
		byKey:    make(map[string]*domain.Conversation),
		messages: make(map[int64][]domain.Message),
	}
}

// GetOrCreateConversation looks up the user's conversation by key,
// creating it when absent.
func (s *ConversationStore) GetOrCreateConversation(_ context.Context, userID int64, key string) (*domain.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if conv, ok := s.byKey[key]; ok {
		if conv.UserID != userID {
			return nil, fmt.Errorf("conversation %s: %w", key, domain.ErrNotFound)
		}
		out := *conv
		return &out, nil
	}

	s.nextConvID++
	now := time.Now()
	conv := &domain.Conversation{
		ID:        s.nextConvID,
		Key:       key,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.byKey[key] = conv
	out := *conv
	return &out, nil
}

// GetConversationByKey returns the user's conversation or domain.ErrNotFound.
func (s *ConversationStore) GetConversationByKey(_ context.Context, userID int64, key string) (*domain.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.byKey[key]
	if !ok || conv.UserID != userID {
		return nil, fmt.Errorf("conversation %s: %w", key, domain.ErrNotFound)
	}
	out := *conv
	return &out, nil
}

// InsertMessage appends a message and bumps the conversation's updated_at.
func (s *ConversationStore) InsertMessage(_ context.Context, conversationID int64, msg *domain.Message) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var conv *domain.Conversation
	for _, c := range s.byKey {
		if c.ID == conversationID {
			conv = c
			break
		}
	}
	if conv == nil {
		return nil, fmt.Errorf("conversation %d: %w", conversationID, domain.ErrNotFound)
	}

	s.nextMsgID++
	stored := *msg
	stored.ID = s.nextMsgID
	stored.ConversationID = conversationID
	stored.CreatedAt = time.Now()
	s.messages[conversationID] = append(s.messages[conversationID], stored)
	conv.UpdatedAt = stored.CreatedAt

	out := stored
	return &out, nil
}

// ListRecentMessages returns the most recent limit messages in
// chronological order.
func (s *ConversationStore) ListRecentMessages(_ context.Context, conversationID int64, limit int) ([]domain.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[conversationID]
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]domain.Message(nil), msgs...), nil
}

// ListMessagesByKey returns the most recent limit messages of the user's
// conversation in chronological order.
func (s *ConversationStore) ListMessagesByKey(ctx context.Context, userID int64, key string, limit int) ([]domain.Message, error) {
	conv, err := s.GetConversationByKey(ctx, userID, key)
	if err != nil {
		return nil, err
	}
	return s.ListRecentMessages(ctx, conv.ID, limit)
}

// ListConversations returns conversation summaries, newest activity
// first. A non-empty query keeps conversations with a fuzzy content
// match: a substring match always admits, otherwise bigram similarity
// against the threshold decides. Matching conversations order by best
// similarity first.
func (s *ConversationStore) ListConversations(_ context.Context, userID int64, opts domain.ConversationListOptions) ([]domain.ConversationSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := strings.ToLower(strings.TrimSpace(opts.Query))

	var summaries []domain.ConversationSummary
	for _, conv := range s.byKey {
		if conv.UserID != userID {
			continue
		}
		msgs := s.messages[conv.ID]

		best := 0.0
		if query != "" {
			matched := false
			for _, m := range msgs {
				content := strings.ToLower(m.Content)
				sim := bigramSimilarity(query, content)
				if strings.Contains(content, query) || sim >= opts.SimilarityThreshold {
					matched = true
				}
				if sim > best {
					best = sim
				}
			}
			if !matched {
				continue
			}
		}

		summary := domain.ConversationSummary{
			Key:            conv.Key,
			CreatedAt:      conv.CreatedAt,
			UpdatedAt:      conv.UpdatedAt,
			MessageCount:   len(msgs),
			BestSimilarity: best,
		}
		if len(msgs) > 0 {
			summary.LastMessagePreview = truncate(msgs[len(msgs)-1].Content, 120)
		}
		summaries = append(summaries, summary)
	}

	sort.Slice(summaries, func(i, j int) bool {
		if query != "" && summaries[i].BestSimilarity != summaries[j].BestSimilarity {
			return summaries[i].BestSimilarity > summaries[j].BestSimilarity
		}
		return summaries[i].UpdatedAt.After(summaries[j].UpdatedAt)
	})

	if opts.Offset >= len(summaries) {
		return []domain.ConversationSummary{}, nil
	}
	summaries = summaries[opts.Offset:]
	if len(summaries) > opts.Limit {
		summaries = summaries[:opts.Limit]
	}
	return summaries, nil
}

// bigramSimilarity approximates trigram similarity with character bigram
// overlap. Close enough for the memory adapter's fuzzy listing.
func bigramSimilarity(a, b string) float64 {
	ga, gb := bigrams(a), bigrams(b)
	if len(ga) == 0 || len(gb) == 0 {
		return 0
	}
	shared := 0
	for g := range ga {
		if gb[g] {
			shared++
		}
	}
	union := len(ga) + len(gb) - shared
	return float64(shared) / float64(union)
}

func bigrams(s string) map[string]bool {
	out := make(map[string]bool)
	runes := []rune(s)
	for i := 0; i+1 < len(runes); i++ {
		out[string(runes[i:i+2])] = true
	}
	return out
}
