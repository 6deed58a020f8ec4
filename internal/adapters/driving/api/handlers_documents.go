package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/sercha-chat/internal/core/domain"
)

// ingestRequest is the POST /documents body. Text extraction happens
// upstream, the API accepts extracted text only.
type ingestRequest struct {
	Filename    string         `json:"filename"`
	ContentType string         `json:"content_type"`
	Text        string         `json:"text"`
	Metadata    map[string]any `json:"metadata"`
}

func (s *Server) handleIngestDocument(c *gin.Context) {
	var req ingestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err))
		return
	}

	result, err := s.deps.Documents.IngestDocument(c.Request.Context(), currentUser(c), domain.IngestRequest{
		Filename:    req.Filename,
		ContentType: req.ContentType,
		Text:        req.Text,
		Metadata:    req.Metadata,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"document_id":       result.DocumentID,
		"chunk_count":       result.ChunkCount,
		"embedding_started": result.EmbeddingStarted,
	})
}

func (s *Server) handleListDocuments(c *gin.Context) {
	docs, err := s.deps.Documents.ListDocuments(
		c.Request.Context(), currentUser(c), intQuery(c, "limit", 100), intQuery(c, "offset", 0))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

func (s *Server) handleDeleteDocument(c *gin.Context) {
	docID, err := pathID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	if err := s.deps.Documents.DeleteDocument(c.Request.Context(), currentUser(c), docID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": docID})
}

// handleEmbedDocument runs a synchronous embedding pass over the
// document's pending chunks. Ingestion already embeds in the background,
// this endpoint exists to resume after failures.
func (s *Server) handleEmbedDocument(c *gin.Context) {
	docID, err := pathID(c)
	if err != nil {
		writeError(c, err)
		return
	}

	stats, err := s.deps.Embed.EmbedDocument(
		c.Request.Context(), currentUser(c), docID, intQuery(c, "batch_size", 0))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"document_id": stats.DocumentID,
		"model":       stats.Model,
		"embedded":    stats.Embedded,
		"remaining":   stats.Remaining,
	})
}

func pathID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid document id %q", domain.ErrInvalidInput, c.Param("id"))
	}
	return id, nil
}
