package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

func (s *Server) handleSearchLexical(c *gin.Context) {
	results, err := s.deps.Retrieval.SearchLexical(
		c.Request.Context(), currentUser(c), c.Query("q"), intQuery(c, "limit", 10))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, searchResponse(c.Query("q"), "lexical", results))
}

func (s *Server) handleSearchVector(c *gin.Context) {
	results, err := s.deps.Retrieval.SearchVector(
		c.Request.Context(), currentUser(c), c.Query("q"), intQuery(c, "limit", 10))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, searchResponse(c.Query("q"), "vector", results))
}

func (s *Server) handleSearchHybrid(c *gin.Context) {
	// Absent parameters fall back to the standard fusion configuration.
	// An explicit weight of 0 is honored so one leg can be disabled.
	def := domain.DefaultHybridParams()
	params := domain.HybridParams{
		Limit:                  intQuery(c, "limit", def.Limit),
		TextChars:              def.TextChars,
		FullTextCandidateLimit: intQuery(c, "full_text_candidate_limit", def.FullTextCandidateLimit),
		VectorCandidateLimit:   intQuery(c, "vector_candidate_limit", def.VectorCandidateLimit),
		FullTextWeight:         floatQuery(c, "full_text_weight", def.FullTextWeight),
		VectorWeight:           floatQuery(c, "vector_weight", def.VectorWeight),
		RRFRankConstant:        intQuery(c, "rrf_rank_constant", def.RRFRankConstant),
	}

	results, err := s.deps.Retrieval.SearchHybrid(c.Request.Context(), currentUser(c), c.Query("q"), params)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, searchResponse(c.Query("q"), "hybrid", results))
}

func searchResponse(query, mode string, results []domain.RetrievedChunk) gin.H {
	out := make([]gin.H, 0, len(results))
	for _, r := range results {
		item := gin.H{
			"id":           r.ChunkID,
			"document_id":  r.DocumentID,
			"filename":     r.Filename,
			"chunk_index":  r.ChunkIndex,
			"text":         r.Text,
			"hybrid_score": r.HybridScore,
		}
		if r.MatchedLexical {
			item["fts_score"] = r.LexicalScore
			item["fts_rank"] = r.LexicalRank
		}
		if r.MatchedVector {
			item["vec_dist"] = r.VectorDist
			item["vec_sim"] = r.VectorSim
			item["vec_rank"] = r.VectorRank
		}
		out = append(out, item)
	}
	return gin.H{"query": query, "mode": mode, "results": out}
}
