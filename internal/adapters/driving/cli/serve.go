package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	embeddingollama "github.com/custodia-labs/sercha-chat/internal/adapters/driven/embedding/ollama"
	llmollama "github.com/custodia-labs/sercha-chat/internal/adapters/driven/llm/ollama"
	"github.com/custodia-labs/sercha-chat/internal/adapters/driven/storage/postgres"
	"github.com/custodia-labs/sercha-chat/internal/adapters/driving/api"
	"github.com/custodia-labs/sercha-chat/internal/chunker"
	"github.com/custodia-labs/sercha-chat/internal/config"
	"github.com/custodia-labs/sercha-chat/internal/core/services"
	"github.com/custodia-labs/sercha-chat/internal/logger"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the chat API server",
	Long: `Starts the HTTP API. Requires a reachable Postgres (with the vector
and pg_trgm extensions available) and an Ollama server.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := postgres.NewStore(ctx, postgres.Config{
		URL:      cfg.Database.URL,
		MaxConns: cfg.Database.MaxConns,
	})
	if err != nil {
		return fmt.Errorf("connect to postgres: %w", err)
	}
	defer store.Close()

	embedder := embeddingollama.NewEmbeddingService(embeddingollama.Config{
		BaseURL:    cfg.Ollama.BaseURL,
		Model:      cfg.Ollama.EmbeddingModel,
		Dimensions: cfg.Ollama.EmbeddingDimensions,
		Timeout:    cfg.Ollama.EmbedTimeout(),
	})
	generator := llmollama.NewLLMService(llmollama.LLMConfig{
		BaseURL: cfg.Ollama.BaseURL,
		Model:   cfg.Ollama.GenerationModel,
		Timeout: cfg.Ollama.GenerationTimeout(),
	})
	routerLLM := llmollama.NewLLMService(llmollama.LLMConfig{
		BaseURL: cfg.Ollama.BaseURL,
		Model:   cfg.Ollama.RouterModelName(),
		Timeout: cfg.Ollama.RouteTimeout(),
	})

	if err := embedder.Ping(ctx); err != nil {
		logger.Warn("ollama not reachable yet: %v", err)
	}

	embedSvc := services.NewEmbedService(store.DocumentStore(), embedder, services.EmbedConfig{
		DefaultBatchSize:  cfg.Embedding.BatchSize,
		RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
		Burst:             cfg.Embedding.Burst,
	})
	docSvc := services.NewDocumentService(store.DocumentStore(), embedSvc, chunker.Options{
		ChunkSize:     cfg.Chunking.ChunkSize,
		Overlap:       cfg.Chunking.Overlap,
		MinChunkSize:  cfg.Chunking.MinChunkSize,
		SentenceAware: cfg.Chunking.SentenceAware,
	})
	retrievalSvc := services.NewRetrievalService(store.SearchIndex(), embedder)
	routerSvc := services.NewRouterService(routerLLM, services.RouterConfig{
		Timeout:         cfg.Ollama.RouteTimeout(),
		MaxOutputTokens: cfg.Generation.RouteMaxOutputTokens,
	})
	chatSvc := services.NewChatService(store.ConversationStore(), routerSvc, retrievalSvc, generator, services.ChatConfig{
		Temperature:          cfg.Generation.Temperature,
		MaxOutputTokens:      cfg.Generation.MaxOutputTokens,
		HistoryMessages:      cfg.Generation.HistoryMessages,
		TopK:                 cfg.Generation.TopK,
		ContextCharsPerChunk: cfg.Generation.ContextCharsPerChunk,
		GenerationTimeout:    cfg.Ollama.GenerationTimeout(),
	})

	server := api.NewServer(api.Deps{
		Chat:      chatSvc,
		Documents: docSvc,
		Embed:     embedSvc,
		Retrieval: retrievalSvc,
		Probes: map[string]api.Pinger{
			"database": store,
			"ollama":   generator,
		},
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening on %s (generation=%s router=%s embedding=%s)",
			cfg.Server.Addr, cfg.Ollama.GenerationModel, cfg.Ollama.RouterModelName(), cfg.Ollama.EmbeddingModel)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
	}
	return nil
}
