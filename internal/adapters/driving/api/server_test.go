package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

// mockChatService returns canned results and records calls.
type mockChatService struct {
	result     *domain.ChatResult
	err        error
	lastUserID int64
	lastReq    domain.ChatRequest

	summaries []domain.ConversationSummary
	messages  []domain.Message
}

func (m *mockChatService) Chat(_ context.Context, userID int64, req domain.ChatRequest) (*domain.ChatResult, error) {
	m.lastUserID = userID
	m.lastReq = req
	return m.result, m.err
}

func (m *mockChatService) ListConversations(_ context.Context, userID int64, _ domain.ConversationListOptions) ([]domain.ConversationSummary, error) {
	m.lastUserID = userID
	return m.summaries, m.err
}

func (m *mockChatService) ConversationMessages(_ context.Context, userID int64, _ string, _ int) ([]domain.Message, error) {
	m.lastUserID = userID
	return m.messages, m.err
}

type mockDocumentService struct {
	ingestResult *domain.IngestResult
	ingestErr    error
	docs         []domain.DocumentSummary
	deleteErr    error
	deletedID    int64
}

func (m *mockDocumentService) IngestDocument(_ context.Context, _ int64, _ domain.IngestRequest) (*domain.IngestResult, error) {
	return m.ingestResult, m.ingestErr
}

func (m *mockDocumentService) ListDocuments(_ context.Context, _ int64, _, _ int) ([]domain.DocumentSummary, error) {
	return m.docs, nil
}

func (m *mockDocumentService) DeleteDocument(_ context.Context, _, documentID int64) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	m.deletedID = documentID
	return nil
}

type mockEmbedDriving struct {
	stats *domain.EmbedStats
	err   error
}

func (m *mockEmbedDriving) EmbedDocument(context.Context, int64, int64, int) (*domain.EmbedStats, error) {
	return m.stats, m.err
}

func (m *mockEmbedDriving) EmbedDocumentBackground(int64, int64) {}

type mockRetrievalDriving struct {
	results    []domain.RetrievedChunk
	err        error
	lastParams domain.HybridParams
}

func (m *mockRetrievalDriving) SearchLexical(context.Context, int64, string, int) ([]domain.RetrievedChunk, error) {
	return m.results, m.err
}

func (m *mockRetrievalDriving) SearchVector(context.Context, int64, string, int) ([]domain.RetrievedChunk, error) {
	return m.results, m.err
}

func (m *mockRetrievalDriving) SearchHybrid(_ context.Context, _ int64, _ string, params domain.HybridParams) ([]domain.RetrievedChunk, error) {
	m.lastParams = params
	return m.results, m.err
}

type mockProbe struct{ err error }

func (m mockProbe) Ping(context.Context) error { return m.err }

type apiFixture struct {
	chat      *mockChatService
	docs      *mockDocumentService
	embed     *mockEmbedDriving
	retrieval *mockRetrievalDriving
	server    *Server
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	f := &apiFixture{
		chat:      &mockChatService{},
		docs:      &mockDocumentService{},
		embed:     &mockEmbedDriving{},
		retrieval: &mockRetrievalDriving{},
	}
	f.server = NewServer(Deps{
		Chat:      f.chat,
		Documents: f.docs,
		Embed:     f.embed,
		Retrieval: f.retrieval,
		Probes:    map[string]Pinger{"database": mockProbe{}},
	})
	return f
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	f.server.Handler().ServeHTTP(rec, req)
	return rec
}

func asUser(userID string) map[string]string {
	return map[string]string{"X-User-ID": userID}
}

func TestChatEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.chat.result = &domain.ChatResult{
		ConversationID: "thread-1",
		Question:       "q",
		Answer:         "a",
		Sources:        []domain.Source{},
	}

	rec := f.do(t, http.MethodPost, "/chat", map[string]any{
		"question":        "q",
		"conversation_id": "thread-1",
		"top_k":           3,
	}, asUser("7"))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(7), f.chat.lastUserID)
	assert.Equal(t, "thread-1", f.chat.lastReq.ConversationKey)
	assert.Equal(t, 3, f.chat.lastReq.TopK)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "a", body["answer"])
	assert.Equal(t, []any{}, body["sources"])
}

func TestChatEndpointExplicitZeroWeight(t *testing.T) {
	f := newAPIFixture(t)
	f.chat.result = &domain.ChatResult{Sources: []domain.Source{}}

	rec := f.do(t, http.MethodPost, "/chat", map[string]any{
		"question":      "q",
		"vector_weight": 0,
	}, asUser("7"))
	require.Equal(t, http.StatusOK, rec.Code)

	// An explicit zero arrives as a set value, omitted fields stay unset.
	require.NotNil(t, f.chat.lastReq.VectorWeight)
	assert.Zero(t, *f.chat.lastReq.VectorWeight)
	assert.Nil(t, f.chat.lastReq.FullTextWeight)
	assert.Nil(t, f.chat.lastReq.RRFRankConstant)
}

func TestChatRequiresIdentity(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodPost, "/chat", map[string]any{"question": "q"}, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(t, http.MethodPost, "/chat", map[string]any{"question": "q"}, asUser("not-a-number"))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "invalid input", err: domain.ErrInvalidInput, want: http.StatusBadRequest},
		{name: "not found", err: domain.ErrNotFound, want: http.StatusNotFound},
		{name: "llm down", err: domain.ErrLLMUnavailable, want: http.StatusBadGateway},
		{name: "unknown", err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newAPIFixture(t)
			f.chat.err = tt.err

			rec := f.do(t, http.MethodPost, "/chat", map[string]any{"question": "q"}, asUser("7"))
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestIngestDocumentEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.docs.ingestResult = &domain.IngestResult{DocumentID: 42, ChunkCount: 3, EmbeddingStarted: true}

	rec := f.do(t, http.MethodPost, "/documents", map[string]any{
		"filename": "notes.txt",
		"text":     "content",
	}, asUser("7"))

	require.Equal(t, http.StatusCreated, rec.Code)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(42), body["document_id"])
	assert.Equal(t, true, body["embedding_started"])
}

func TestDeleteDocumentEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodDelete, "/documents/42", nil, asUser("7"))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int64(42), f.docs.deletedID)

	rec = f.do(t, http.MethodDelete, "/documents/abc", nil, asUser("7"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.docs.deleteErr = domain.ErrNotFound
	rec = f.do(t, http.MethodDelete, "/documents/42", nil, asUser("7"))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestEmbedDocumentEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.embed.stats = &domain.EmbedStats{DocumentID: 42, Model: "nomic-embed-text", Embedded: 5}

	rec := f.do(t, http.MethodPost, "/documents/42/embed", nil, asUser("7"))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, float64(5), body["embedded"])
}

func TestSearchHybridEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.retrieval.results = []domain.RetrievedChunk{{
		ChunkID:        1,
		Filename:       "a.txt",
		HybridScore:    0.01,
		LexicalScore:   0.8,
		LexicalRank:    1,
		MatchedLexical: true,
	}}

	rec := f.do(t, http.MethodGet, "/search/hybrid?q=postgres&limit=5&vector_weight=0", nil, asUser("7"))
	require.Equal(t, http.StatusOK, rec.Code)

	// Explicit zero weight passes through, absent params pick defaults.
	assert.Zero(t, f.retrieval.lastParams.VectorWeight)
	assert.Equal(t, 5, f.retrieval.lastParams.Limit)
	assert.Equal(t, domain.DefaultHybridParams().FullTextWeight, f.retrieval.lastParams.FullTextWeight)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	results := body["results"].([]any)
	require.Len(t, results, 1)
	first := results[0].(map[string]any)
	assert.Equal(t, float64(1), first["fts_rank"])
	_, hasVec := first["vec_rank"]
	assert.False(t, hasVec)
}

func TestHealthEndpoint(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(t, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	degraded := NewServer(Deps{Probes: map[string]Pinger{
		"database": mockProbe{},
		"ollama":   mockProbe{err: errors.New("unreachable")},
	}})
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec = httptest.NewRecorder()
	degraded.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestListConversationsEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.chat.summaries = []domain.ConversationSummary{{Key: "thread-1", MessageCount: 4}}

	rec := f.do(t, http.MethodGet, "/conversations?q=postgres&limit=10", nil, asUser("7"))
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Len(t, body["conversations"], 1)
}
