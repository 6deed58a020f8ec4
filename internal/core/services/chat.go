package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driving"
	"github.com/custodia-labs/sercha-chat/internal/logger"
)

// maxHistoryMessages caps how much history a single turn loads.
const maxHistoryMessages = 50

// ChatConfig configures turn orchestration.
type ChatConfig struct {
	// Temperature for answer generation. Route classification always
	// runs at 0.
	Temperature float64

	// MaxOutputTokens bounds the generated answer.
	MaxOutputTokens int

	// HistoryMessages is how many recent messages each turn loads.
	// Clamped to [0, maxHistoryMessages].
	HistoryMessages int

	// TopK is the default grounded-retrieval result count.
	TopK int

	// ContextCharsPerChunk bounds the text of each retrieved chunk in
	// the generation context.
	ContextCharsPerChunk int

	// GenerationTimeout bounds one generation call.
	GenerationTimeout time.Duration
}

// ChatService orchestrates one conversational turn end to end.
// Implements driving.ChatService.
//
// A turn walks a fixed state sequence: resolve the conversation, route,
// retrieve when grounded, generate, persist both messages, respond.
// Persistence happens strictly after generation so a failed turn leaves
// the conversation untouched.
type ChatService struct {
	convs     driven.ConversationStore
	router    *RouterService
	retriever driving.RetrievalService
	llm       driven.LLMService
	cfg       ChatConfig
}

// NewChatService creates a new chat orchestrator.
func NewChatService(
	convs driven.ConversationStore,
	router *RouterService,
	retriever driving.RetrievalService,
	llm driven.LLMService,
	cfg ChatConfig,
) *ChatService {
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 1024
	}
	if cfg.HistoryMessages <= 0 {
		cfg.HistoryMessages = 8
	}
	if cfg.TopK <= 0 {
		cfg.TopK = 5
	}
	if cfg.ContextCharsPerChunk <= 0 {
		cfg.ContextCharsPerChunk = 2200
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 2 * time.Minute
	}
	return &ChatService{convs: convs, router: router, retriever: retriever, llm: llm, cfg: cfg}
}

// turnState is one step of the per-turn state machine.
type turnState int

const (
	stateResolveConversation turnState = iota
	stateRoute
	stateCasual
	stateRetrieve
	stateGenerate
	statePersist
	stateRespond
	stateDone
)

// turn carries the working state of one conversational turn between
// state handlers.
type turn struct {
	userID   int64
	req      domain.ChatRequest
	question string

	conv    *domain.Conversation
	history []domain.Message

	route   domain.Route
	results []domain.RetrievedChunk
	sources []domain.Source

	answer string
	result *domain.ChatResult
}

// Chat runs one full conversational turn.
func (s *ChatService) Chat(ctx context.Context, userID int64, req domain.ChatRequest) (*domain.ChatResult, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return nil, fmt.Errorf("%w: question must not be empty", domain.ErrInvalidInput)
	}

	t := &turn{userID: userID, req: req, question: question}

	for state := stateResolveConversation; state != stateDone; {
		next, err := s.step(ctx, t, state)
		if err != nil {
			return nil, err
		}
		state = next
	}
	return t.result, nil
}

// step dispatches one state transition.
func (s *ChatService) step(ctx context.Context, t *turn, state turnState) (turnState, error) {
	switch state {
	case stateResolveConversation:
		return s.resolveConversation(ctx, t)
	case stateRoute:
		return s.routeTurn(ctx, t)
	case stateCasual:
		return s.generateCasual(ctx, t)
	case stateRetrieve:
		return s.retrieve(ctx, t)
	case stateGenerate:
		return s.generateGrounded(ctx, t)
	case statePersist:
		return s.persist(ctx, t)
	case stateRespond:
		return s.respond(t)
	default:
		return stateDone, fmt.Errorf("invalid turn state %d", state)
	}
}

func (s *ChatService) resolveConversation(ctx context.Context, t *turn) (turnState, error) {
	key := strings.TrimSpace(t.req.ConversationKey)
	if key == "" {
		key = uuid.NewString()
	}

	conv, err := s.convs.GetOrCreateConversation(ctx, t.userID, key)
	if err != nil {
		return stateDone, fmt.Errorf("resolve conversation %s: %w", key, err)
	}
	t.conv = conv

	history, err := s.convs.ListRecentMessages(ctx, conv.ID, s.historyLimit())
	if err != nil {
		return stateDone, fmt.Errorf("load history: %w", err)
	}
	t.history = history
	return stateRoute, nil
}

func (s *ChatService) routeTurn(ctx context.Context, t *turn) (turnState, error) {
	t.route = s.router.Classify(ctx, t.question, t.history)
	logger.Debug("turn in conversation %s routed to %s", t.conv.Key, t.route)

	if t.route == domain.RouteCasual {
		return stateCasual, nil
	}
	return stateRetrieve, nil
}

func (s *ChatService) generateCasual(ctx context.Context, t *turn) (turnState, error) {
	messages := make([]driven.ChatMessage, 0, len(t.history)+2)
	messages = append(messages, driven.ChatMessage{Role: "system", Content: casualSystemPrompt})
	messages = appendHistory(messages, t.history)
	messages = append(messages, driven.ChatMessage{Role: "user", Content: t.question})

	answer, err := s.generate(ctx, messages)
	if err != nil {
		return stateDone, err
	}
	t.answer = answer
	return statePersist, nil
}

func (s *ChatService) retrieve(ctx context.Context, t *turn) (turnState, error) {
	results, err := s.retriever.SearchHybrid(ctx, t.userID, t.question, s.hybridParams(t.req))
	if err != nil {
		return stateDone, fmt.Errorf("%w: %v", domain.ErrSearchUnavailable, err)
	}
	t.results = results

	if len(results) == 0 {
		// Nothing to ground on. Answer honestly without a generation
		// call and still persist the turn.
		t.answer = noContextAnswer
		t.sources = []domain.Source{}
		return statePersist, nil
	}
	return stateGenerate, nil
}

func (s *ChatService) generateGrounded(ctx context.Context, t *turn) (turnState, error) {
	contextBlock, sources := buildContext(t.results)

	messages := make([]driven.ChatMessage, 0, len(t.history)+2)
	messages = append(messages, driven.ChatMessage{Role: "system", Content: groundedSystemPrompt})
	messages = appendHistory(messages, t.history)
	messages = append(messages, driven.ChatMessage{Role: "user", Content: groundedUserPrompt(t.question, contextBlock)})

	answer, err := s.generate(ctx, messages)
	if err != nil {
		return stateDone, err
	}
	t.answer = answer
	t.sources = sources
	return statePersist, nil
}

// appendHistory copies prior turns into the generation request, skipping
// any row with a role the LLM API does not know.
func appendHistory(messages []driven.ChatMessage, history []domain.Message) []driven.ChatMessage {
	for _, m := range history {
		if !m.Role.Valid() {
			continue
		}
		messages = append(messages, driven.ChatMessage{Role: string(m.Role), Content: m.Content})
	}
	return messages
}

// persist appends the user and assistant messages, user first. Nothing is
// written until generation has succeeded, so a failed turn never leaves a
// dangling user message.
func (s *ChatService) persist(ctx context.Context, t *turn) (turnState, error) {
	metadata := map[string]any{"route": string(t.route)}

	_, err := s.convs.InsertMessage(ctx, t.conv.ID, &domain.Message{
		ConversationID: t.conv.ID,
		Role:           domain.RoleUser,
		Content:        t.question,
		Metadata:       metadata,
	})
	if err != nil {
		return stateDone, fmt.Errorf("persist user message: %w", err)
	}

	_, err = s.convs.InsertMessage(ctx, t.conv.ID, &domain.Message{
		ConversationID: t.conv.ID,
		Role:           domain.RoleAssistant,
		Content:        t.answer,
		Sources:        t.sources,
		Metadata:       metadata,
	})
	if err != nil {
		return stateDone, fmt.Errorf("persist assistant message: %w", err)
	}
	return stateRespond, nil
}

func (s *ChatService) respond(t *turn) (turnState, error) {
	sources := t.sources
	if sources == nil {
		sources = []domain.Source{}
	}

	t.result = &domain.ChatResult{
		ConversationID: t.conv.Key,
		Question:       t.question,
		Answer:         t.answer,
		Sources:        sources,
	}
	if t.req.Debug {
		t.result.Route = t.route
		t.result.Retrieval = t.results
	}
	return stateDone, nil
}

// generate runs one generation call under the configured timeout and
// temperature.
func (s *ChatService) generate(ctx context.Context, messages []driven.ChatMessage) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.GenerationTimeout)
	defer cancel()

	answer, err := s.llm.Chat(ctx, messages, driven.ChatOptions{
		Temperature: s.cfg.Temperature,
		MaxTokens:   s.cfg.MaxOutputTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrLLMUnavailable, err)
	}
	answer = strings.TrimSpace(answer)
	if answer == "" {
		return "", domain.ErrEmptyAnswer
	}
	return answer, nil
}

// hybridParams resolves the turn's retrieval parameters from config
// defaults and per-request overrides.
func (s *ChatService) hybridParams(req domain.ChatRequest) domain.HybridParams {
	params := domain.DefaultHybridParams()
	params.Limit = s.cfg.TopK
	params.TextChars = s.cfg.ContextCharsPerChunk

	if req.TopK > 0 {
		params.Limit = req.TopK
	}
	if req.FullTextCandidateLimit != nil {
		params.FullTextCandidateLimit = *req.FullTextCandidateLimit
	}
	if req.VectorCandidateLimit != nil {
		params.VectorCandidateLimit = *req.VectorCandidateLimit
	}
	if req.FullTextWeight != nil {
		params.FullTextWeight = *req.FullTextWeight
	}
	if req.VectorWeight != nil {
		params.VectorWeight = *req.VectorWeight
	}
	if req.RRFRankConstant != nil {
		params.RRFRankConstant = *req.RRFRankConstant
	}
	return params.Clamped()
}

func (s *ChatService) historyLimit() int {
	limit := s.cfg.HistoryMessages
	if limit < 0 {
		limit = 0
	}
	if limit > maxHistoryMessages {
		limit = maxHistoryMessages
	}
	return limit
}

// ListConversations returns the user's conversations newest-activity
// first, optionally fuzzy-filtered by message content.
func (s *ChatService) ListConversations(ctx context.Context, userID int64, opts domain.ConversationListOptions) ([]domain.ConversationSummary, error) {
	return s.convs.ListConversations(ctx, userID, opts.Clamped())
}

// ConversationMessages returns a bounded chronological slice of a
// conversation's messages.
func (s *ChatService) ConversationMessages(ctx context.Context, userID int64, key string, limit int) ([]domain.Message, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return nil, fmt.Errorf("%w: conversation key must not be empty", domain.ErrInvalidInput)
	}
	if limit < 1 || limit > 500 {
		limit = 200
	}
	return s.convs.ListMessagesByKey(ctx, userID, key, limit)
}
