package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
	"github.com/custodia-labs/sercha-chat/internal/core/ports/driven"
	"github.com/custodia-labs/sercha-chat/internal/logger"
)

// Routing history bounds: the classifier sees at most this many prior
// turns and this many characters, truncated from the front.
const (
	routeHistoryMaxItems = 6
	routeHistoryMaxChars = 1200
)

// RouterConfig configures route classification.
type RouterConfig struct {
	// Timeout bounds the classification call. A timeout degrades to the
	// RAG default, it never fails the turn.
	Timeout time.Duration

	// MaxOutputTokens bounds the classifier's reply.
	MaxOutputTokens int
}

// RouterService classifies an incoming message as casual chat or a
// question that needs grounded retrieval.
type RouterService struct {
	llm driven.LLMService
	cfg RouterConfig
}

// NewRouterService creates a new router service. llm may be nil, in which
// case every message routes to RAG.
func NewRouterService(llm driven.LLMService, cfg RouterConfig) *RouterService {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.MaxOutputTokens <= 0 {
		cfg.MaxOutputTokens = 60
	}
	return &RouterService{llm: llm, cfg: cfg}
}

// Classify resolves the route for a question given recent history.
// It never returns an error: any classification failure, timeout, or
// unparseable reply falls through to the safe RouteRAG default.
func (s *RouterService) Classify(ctx context.Context, question string, history []domain.Message) domain.Route {
	if s.llm == nil {
		logger.Debug("router: no LLM configured, defaulting to %s", domain.RouteRAG)
		return domain.RouteRAG
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	text, err := s.llm.Chat(ctx, []driven.ChatMessage{
		{Role: "system", Content: routeSystemPrompt},
		{Role: "user", Content: routeUserPrompt(question, historyView(history))},
	}, driven.ChatOptions{
		Temperature: 0,
		MaxTokens:   s.cfg.MaxOutputTokens,
	})
	if err != nil {
		logger.Warn("router: classification failed, defaulting to %s: %v", domain.RouteRAG, err)
		return domain.RouteRAG
	}

	route, strategy := parseRoute(text)
	logger.Debug("router: resolved %s via %s", route, strategy)
	return route
}

// routeStrategy is one fallible parse attempt in the fallback chain.
type routeStrategy struct {
	name  string
	parse func(string) (domain.Route, bool)
}

// routeStrategies is evaluated in order: strict structured output first,
// then a substring heuristic. Anything that falls through defaults to RAG.
var routeStrategies = []routeStrategy{
	{name: "strict_json", parse: parseRouteJSON},
	{name: "substring", parse: parseRouteSubstring},
}

// parseRoute runs the fallback chain over a classifier reply and reports
// which strategy decided.
func parseRoute(text string) (domain.Route, string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return domain.RouteRAG, "default"
	}

	for _, strat := range routeStrategies {
		if route, ok := strat.parse(text); ok {
			return route, strat.name
		}
	}
	return domain.RouteRAG, "default"
}

// parseRouteJSON accepts only the strict {"route":"..."} schema with a
// known route value.
func parseRouteJSON(text string) (domain.Route, bool) {
	var payload struct {
		Route string `json:"route"`
	}
	if err := json.Unmarshal([]byte(text), &payload); err != nil {
		return "", false
	}

	switch domain.Route(strings.ToLower(strings.TrimSpace(payload.Route))) {
	case domain.RouteCasual:
		return domain.RouteCasual, true
	case domain.RouteRAG:
		return domain.RouteRAG, true
	}
	return "", false
}

// parseRouteSubstring is the loose fallback for models that answer in
// plain text: the presence of the literal token decides.
func parseRouteSubstring(text string) (domain.Route, bool) {
	if strings.Contains(strings.ToLower(text), string(domain.RouteCasual)) {
		return domain.RouteCasual, true
	}
	return "", false
}

// historyView renders a bounded, role-tagged view of recent turns for the
// classifier, most recent last.
func historyView(history []domain.Message) string {
	if len(history) == 0 {
		return "(empty)"
	}

	selected := history
	if len(selected) > routeHistoryMaxItems {
		selected = selected[len(selected)-routeHistoryMaxItems:]
	}

	lines := make([]string, 0, len(selected))
	for _, m := range selected {
		content := strings.TrimSpace(m.Content)
		if !m.Role.Valid() || content == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", m.Role, content))
	}

	text := strings.TrimSpace(strings.Join(lines, "\n"))
	if text == "" {
		return "(empty)"
	}
	if len(text) > routeHistoryMaxChars {
		text = truncateFront(text, routeHistoryMaxChars)
	}
	return text
}

// truncateFront keeps at most max trailing bytes of text, moving the cut
// forward to the next rune boundary so no rune is split.
func truncateFront(text string, max int) string {
	cut := len(text) - max
	for cut < len(text) && !utf8.RuneStart(text[cut]) {
		cut++
	}
	return text[cut:]
}
