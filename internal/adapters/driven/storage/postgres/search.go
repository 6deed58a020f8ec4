package postgres

import (
	"context"
	"fmt"

	"github.com/pgvector/pgvector-go"

	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven"
)

// Ensure searchIndex implements the interface.
var _ driven.SearchIndex = (*searchIndex)(nil)

// searchIndex is the Postgres implementation of driven.SearchIndex.
// Both legs filter ownership and soft deletion inside the query.
type searchIndex struct {
	store *Store
}

// SearchLexical ranks chunks against a websearch-syntax query by
// cover-density relevance, descending.
func (s *searchIndex) SearchLexical(ctx context.Context, userID int64, query string, textChars, limit int) ([]driven.LexicalHit, error) {
	rows, err := s.store.pool.Query(ctx, `
		WITH q AS (
		  SELECT websearch_to_tsquery('english', $1) AS tsq
		)
		SELECT
		  c.id,
		  c.document_id,
		  d.filename,
		  c.chunk_index,
		  regexp_replace(left(c.text, $3), E'\s+', ' ', 'g') AS text,
		  ts_rank_cd(c.tsv, (SELECT tsq FROM q))::float8 AS fts_score
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.tsv @@ (SELECT tsq FROM q)
		  AND d.user_id = $2
		  AND d.deleted_at IS NULL
		ORDER BY fts_score DESC
		LIMIT $4
	`, query, userID, textChars, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var hits []driven.LexicalHit
	for rows.Next() {
		var h driven.LexicalHit
		if err := rows.Scan(&h.ChunkID, &h.DocumentID, &h.Filename, &h.ChunkIndex, &h.Text, &h.Score); err != nil {
			return nil, fmt.Errorf("scan lexical hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}

// SearchVector ranks chunks by ascending cosine distance to the query
// vector, restricted to chunks embedded with exactly model.
func (s *searchIndex) SearchVector(ctx context.Context, userID int64, vector []float32, model string, textChars, limit int) ([]driven.VectorHit, error) {
	rows, err := s.store.pool.Query(ctx, `
		SELECT
		  c.id,
		  c.document_id,
		  d.filename,
		  c.chunk_index,
		  regexp_replace(left(c.text, $4), E'\s+', ' ', 'g') AS text,
		  (c.embedding <=> $1)::float8 AS vec_dist
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE c.embedding IS NOT NULL
		  AND c.embedding_model = $2
		  AND d.user_id = $3
		  AND d.deleted_at IS NULL
		ORDER BY vec_dist ASC
		LIMIT $5
	`, pgvector.NewVector(vector), model, userID, textChars, limit)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	defer rows.Close()

	var hits []driven.VectorHit
	for rows.Next() {
		var h driven.VectorHit
		if err := rows.Scan(&h.ChunkID, &h.DocumentID, &h.Filename, &h.ChunkIndex, &h.Text, &h.Distance); err != nil {
			return nil, fmt.Errorf("scan vector hit: %w", err)
		}
		hits = append(hits, h)
	}
	return hits, rows.Err()
}
