package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

// chatRequest is the POST /chat body. The tuning fields are pointers so
// an omitted field and an explicit zero stay distinguishable: omitted
// means the configured default, a zero weight disables that leg.
type chatRequest struct {
	Question               string   `json:"question"`
	ConversationID         string   `json:"conversation_id"`
	TopK                   int      `json:"top_k"`
	FullTextCandidateLimit *int     `json:"full_text_candidate_limit"`
	VectorCandidateLimit   *int     `json:"vector_candidate_limit"`
	FullTextWeight         *float64 `json:"full_text_weight"`
	VectorWeight           *float64 `json:"vector_weight"`
	RRFRankConstant        *int     `json:"rrf_rank_constant"`
	Debug                  bool     `json:"debug"`
}

func (s *Server) handleChat(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}

	result, err := s.deps.Chat.Chat(c.Request.Context(), currentUser(c), domain.ChatRequest{
		Question:               req.Question,
		ConversationKey:        req.ConversationID,
		TopK:                   req.TopK,
		FullTextCandidateLimit: req.FullTextCandidateLimit,
		VectorCandidateLimit:   req.VectorCandidateLimit,
		FullTextWeight:         req.FullTextWeight,
		VectorWeight:           req.VectorWeight,
		RRFRankConstant:        req.RRFRankConstant,
		Debug:                  req.Debug,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleListConversations(c *gin.Context) {
	opts := domain.ConversationListOptions{
		Limit:               intQuery(c, "limit", 50),
		Offset:              intQuery(c, "offset", 0),
		Query:               c.Query("q"),
		SimilarityThreshold: floatQuery(c, "similarity_threshold", 0.2),
	}

	summaries, err := s.deps.Chat.ListConversations(c.Request.Context(), currentUser(c), opts)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": summaries})
}

func (s *Server) handleConversationMessages(c *gin.Context) {
	msgs, err := s.deps.Chat.ConversationMessages(
		c.Request.Context(), currentUser(c), c.Param("id"), intQuery(c, "limit", 200))
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]gin.H, 0, len(msgs))
	for _, m := range msgs {
		sources := m.Sources
		if sources == nil {
			sources = []domain.Source{}
		}
		out = append(out, gin.H{
			"id":         m.ID,
			"role":       m.Role,
			"content":    m.Content,
			"sources":    sources,
			"metadata":   m.Metadata,
			"created_at": m.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"conversation_id": c.Param("id"), "messages": out})
}

// intQuery parses an integer query parameter, falling back on absence or
// garbage.
func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func floatQuery(c *gin.Context, name string, fallback float64) float64 {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}
