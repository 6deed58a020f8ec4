package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven"
)

// Ensure conversationStore implements the interface.
var _ driven.ConversationStore = (*conversationStore)(nil)

// conversationStore is the Postgres implementation of driven.ConversationStore.
type conversationStore struct {
	store *Store
}

// GetOrCreateConversation upserts the conversation row. The conditional
// ON CONFLICT update only matches when the existing row belongs to the
// same user, so a foreign key collides into an empty result.
func (s *conversationStore) GetOrCreateConversation(ctx context.Context, userID int64, key string) (*domain.Conversation, error) {
	row := s.store.pool.QueryRow(ctx, `
		INSERT INTO conversations (conversation_key, user_id)
		VALUES ($1, $2)
		ON CONFLICT (conversation_key) DO UPDATE
		SET updated_at = conversations.updated_at
		WHERE conversations.user_id = EXCLUDED.user_id
		RETURNING id, conversation_key, user_id, metadata, created_at, updated_at
	`, key, userID)

	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get or create conversation: %w", err)
	}
	return conv, nil
}

// GetConversationByKey returns the user's conversation or domain.ErrNotFound.
func (s *conversationStore) GetConversationByKey(ctx context.Context, userID int64, key string) (*domain.Conversation, error) {
	row := s.store.pool.QueryRow(ctx, `
		SELECT id, conversation_key, user_id, metadata, created_at, updated_at
		FROM conversations
		WHERE conversation_key = $1
		  AND user_id = $2
	`, key, userID)

	conv, err := scanConversation(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("conversation %s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return conv, nil
}

// InsertMessage appends a message and bumps the conversation's updated_at
// in one transaction.
func (s *conversationStore) InsertMessage(ctx context.Context, conversationID int64, msg *domain.Message) (*domain.Message, error) {
	sources, err := json.Marshal(sourcesOrEmpty(msg.Sources))
	if err != nil {
		return nil, fmt.Errorf("marshal sources: %w", err)
	}
	metadata, err := json.Marshal(metadataOrEmpty(msg.Metadata))
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}

	tx, err := s.store.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	stored := *msg
	stored.ConversationID = conversationID
	err = tx.QueryRow(ctx, `
		INSERT INTO messages (conversation_id, role, content, sources, metadata)
		VALUES ($1, $2, $3, $4::jsonb, $5::jsonb)
		RETURNING id, created_at
	`, conversationID, string(msg.Role), msg.Content, sources, metadata).Scan(&stored.ID, &stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}

	if _, err := tx.Exec(ctx, "UPDATE conversations SET updated_at = now() WHERE id = $1", conversationID); err != nil {
		return nil, fmt.Errorf("bump conversation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return &stored, nil
}

// ListRecentMessages returns the most recent limit messages in
// chronological order. The query reads newest-first for the index, the
// slice is reversed afterwards.
func (s *conversationStore) ListRecentMessages(ctx context.Context, conversationID int64, limit int) ([]domain.Message, error) {
	rows, err := s.store.pool.Query(ctx, `
		SELECT id, conversation_id, role, content, sources, metadata, created_at
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, conversationID, limit)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs, err := scanMessages(rows)
	if err != nil {
		return nil, err
	}
	reverseMessages(msgs)
	return msgs, nil
}

// ListMessagesByKey returns the most recent limit messages of the user's
// conversation in chronological order.
func (s *conversationStore) ListMessagesByKey(ctx context.Context, userID int64, key string, limit int) ([]domain.Message, error) {
	conv, err := s.GetConversationByKey(ctx, userID, key)
	if err != nil {
		return nil, err
	}
	return s.ListRecentMessages(ctx, conv.ID, limit)
}

// ListConversations returns conversation summaries, newest activity
// first. A non-empty query fuzzy-filters by message content: trigram
// operator match, similarity above the threshold, or plain substring all
// admit a conversation, ordered by best similarity first.
func (s *conversationStore) ListConversations(ctx context.Context, userID int64, opts domain.ConversationListOptions) ([]domain.ConversationSummary, error) {
	query := strings.ToLower(strings.TrimSpace(opts.Query))

	rows, err := s.store.pool.Query(ctx, `
		WITH matched AS (
		  SELECT
		    m.conversation_id,
		    max(similarity(lower(m.content), $4)) AS best_similarity
		  FROM messages m
		  JOIN conversations c2 ON c2.id = m.conversation_id
		  WHERE c2.user_id = $1
		    AND $4 <> ''
		    AND (
		      lower(m.content) % $4
		      OR similarity(lower(m.content), $4) >= $5
		      OR lower(m.content) LIKE ('%' || $4 || '%')
		    )
		  GROUP BY m.conversation_id
		)
		SELECT
		  c.conversation_key,
		  c.created_at,
		  c.updated_at,
		  COALESCE(msg.message_count, 0)::int,
		  COALESCE(msg.last_message_preview, ''),
		  COALESCE(matched.best_similarity, 0.0)::float8
		FROM conversations c
		LEFT JOIN LATERAL (
		  SELECT
		    count(*)::int AS message_count,
		    (
		      SELECT left(m2.content, 180)
		      FROM messages m2
		      WHERE m2.conversation_id = c.id
		      ORDER BY m2.created_at DESC, m2.id DESC
		      LIMIT 1
		    ) AS last_message_preview
		  FROM messages m
		  WHERE m.conversation_id = c.id
		) msg ON true
		LEFT JOIN matched ON matched.conversation_id = c.id
		WHERE c.user_id = $1
		  AND ($4 = '' OR matched.conversation_id IS NOT NULL)
		ORDER BY
		  CASE WHEN $4 <> '' THEN COALESCE(matched.best_similarity, 0.0) END DESC,
		  c.updated_at DESC,
		  c.id DESC
		LIMIT $2
		OFFSET $3
	`, userID, opts.Limit, opts.Offset, query, opts.SimilarityThreshold)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	summaries := []domain.ConversationSummary{}
	for rows.Next() {
		var c domain.ConversationSummary
		if err := rows.Scan(&c.Key, &c.CreatedAt, &c.UpdatedAt, &c.MessageCount, &c.LastMessagePreview, &c.BestSimilarity); err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		summaries = append(summaries, c)
	}
	return summaries, rows.Err()
}

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var conv domain.Conversation
	var metadata []byte
	if err := row.Scan(&conv.ID, &conv.Key, &conv.UserID, &metadata, &conv.CreatedAt, &conv.UpdatedAt); err != nil {
		return nil, err
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &conv.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshal metadata: %w", err)
		}
	}
	return &conv, nil
}

func scanMessages(rows pgx.Rows) ([]domain.Message, error) {
	var msgs []domain.Message
	for rows.Next() {
		var m domain.Message
		var role string
		var sources, metadata []byte
		if err := rows.Scan(&m.ID, &m.ConversationID, &role, &m.Content, &sources, &metadata, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.Role = domain.Role(role)
		if len(sources) > 0 {
			if err := json.Unmarshal(sources, &m.Sources); err != nil {
				return nil, fmt.Errorf("unmarshal sources: %w", err)
			}
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &m.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

func reverseMessages(msgs []domain.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

func sourcesOrEmpty(sources []domain.Source) []domain.Source {
	if sources == nil {
		return []domain.Source{}
	}
	return sources
}

func metadataOrEmpty(metadata map[string]any) map[string]any {
	if metadata == nil {
		return map[string]any{}
	}
	return metadata
}
