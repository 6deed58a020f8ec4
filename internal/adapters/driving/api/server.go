// Package api provides the HTTP driving adapter. Handlers stay thin:
// decode, call the driving port, map errors to status codes.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/sercha-chat/internal/core/ports/driving"
)

// Pinger is a dependency the health endpoint can probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps holds the driving ports and health probes the server exposes.
type Deps struct {
	Chat      driving.ChatService
	Documents driving.DocumentService
	Embed     driving.EmbedService
	Retrieval driving.RetrievalService

	// Probes are named health checks reported by GET /health.
	Probes map[string]Pinger
}

// Server is the HTTP API server.
type Server struct {
	deps   Deps
	engine *gin.Engine
}

// NewServer creates the API server and registers all routes.
func NewServer(deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{deps: deps, engine: engine}
	s.routes()
	return s
}

// Handler returns the http.Handler for the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	s.engine.GET("/health", s.handleHealth)

	authed := s.engine.Group("/", userIdentity())
	authed.POST("/chat", s.handleChat)
	authed.GET("/conversations", s.handleListConversations)
	authed.GET("/conversations/:id/messages", s.handleConversationMessages)

	authed.GET("/documents", s.handleListDocuments)
	authed.POST("/documents", s.handleIngestDocument)
	authed.DELETE("/documents/:id", s.handleDeleteDocument)
	authed.POST("/documents/:id/embed", s.handleEmbedDocument)

	authed.GET("/search", s.handleSearchLexical)
	authed.GET("/search/vector", s.handleSearchVector)
	authed.GET("/search/hybrid", s.handleSearchHybrid)
}

// handleHealth probes every registered dependency. The endpoint reports
// 503 when any probe fails but always lists per-probe status.
func (s *Server) handleHealth(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	status := http.StatusOK
	checks := make(map[string]string, len(s.deps.Probes))
	for name, probe := range s.deps.Probes {
		if err := probe.Ping(ctx); err != nil {
			checks[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	overall := "ok"
	if status != http.StatusOK {
		overall = "degraded"
	}
	c.JSON(status, gin.H{"status": overall, "checks": checks})
}
