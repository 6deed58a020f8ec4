// Package config provides the application configuration.
//
// Configuration is an explicitly constructed, immutable value: it is read
// once at startup (TOML file plus environment overrides) and passed into
// each component at construction time. Nothing reads settings at call time.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all application settings.
type Config struct {
	Server     Server     `toml:"server"`
	Database   Database   `toml:"database"`
	Ollama     Ollama     `toml:"ollama"`
	Chunking   Chunking   `toml:"chunking"`
	Embedding  Embedding  `toml:"embedding"`
	Generation Generation `toml:"generation"`
}

// Server configures the HTTP listener.
type Server struct {
	Addr string `toml:"addr"`
}

// Database configures the Postgres connection.
type Database struct {
	URL      string `toml:"url"`
	MaxConns int32  `toml:"max_conns"`
}

// Ollama configures the upstream model server.
type Ollama struct {
	BaseURL             string `toml:"base_url"`
	GenerationModel     string `toml:"generation_model"`
	RouterModel         string `toml:"router_model"`
	EmbeddingModel      string `toml:"embedding_model"`
	EmbeddingDimensions int    `toml:"embedding_dimensions"`

	GenerationTimeoutSeconds int `toml:"generation_timeout_seconds"`
	RouteTimeoutSeconds      int `toml:"route_timeout_seconds"`
	EmbedTimeoutSeconds      int `toml:"embed_timeout_seconds"`
}

// Chunking configures the document chunker.
type Chunking struct {
	ChunkSize     int  `toml:"chunk_size"`
	Overlap       int  `toml:"overlap"`
	MinChunkSize  int  `toml:"min_chunk_size"`
	SentenceAware bool `toml:"sentence_aware"`
}

// Embedding configures the embedding pipeline.
type Embedding struct {
	BatchSize int `toml:"batch_size"`

	// RequestsPerSecond throttles calls to the embedding service.
	// 0 disables throttling.
	RequestsPerSecond float64 `toml:"requests_per_second"`
	Burst             int     `toml:"burst"`
}

// Generation configures answer generation and routing.
type Generation struct {
	Temperature          float64 `toml:"temperature"`
	MaxOutputTokens      int     `toml:"max_output_tokens"`
	RouteMaxOutputTokens int     `toml:"route_max_output_tokens"`
	HistoryMessages      int     `toml:"history_messages"`
	TopK                 int     `toml:"top_k"`
	ContextCharsPerChunk int     `toml:"context_chars_per_chunk"`
}

// Default returns the baseline configuration.
func Default() *Config {
	cfg := &Config{}

	cfg.Server.Addr = ":8080"
	cfg.Database.URL = "postgres://postgres@localhost:5432/sercha_chat?sslmode=disable"
	cfg.Database.MaxConns = 10

	cfg.Ollama.BaseURL = "http://localhost:11434"
	cfg.Ollama.GenerationModel = "qwen2.5:3b-instruct"
	cfg.Ollama.RouterModel = ""
	cfg.Ollama.EmbeddingModel = "nomic-embed-text"
	cfg.Ollama.EmbeddingDimensions = 768
	cfg.Ollama.GenerationTimeoutSeconds = 120
	cfg.Ollama.RouteTimeoutSeconds = 20
	cfg.Ollama.EmbedTimeoutSeconds = 60

	cfg.Chunking.ChunkSize = 1000
	cfg.Chunking.Overlap = 100
	cfg.Chunking.MinChunkSize = 350
	cfg.Chunking.SentenceAware = true

	cfg.Embedding.BatchSize = 16
	cfg.Embedding.RequestsPerSecond = 0
	cfg.Embedding.Burst = 1

	cfg.Generation.Temperature = 0.2
	cfg.Generation.MaxOutputTokens = 200
	cfg.Generation.RouteMaxOutputTokens = 60
	cfg.Generation.HistoryMessages = 8
	cfg.Generation.TopK = 5
	cfg.Generation.ContextCharsPerChunk = 2200

	return cfg
}

// Load reads configuration from the given TOML file, layering it over the
// defaults, then applies environment overrides. A missing file is not an
// error; the defaults apply. An empty path defaults to
// ~/.sercha-chat/config.toml.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		home, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(home, ".sercha-chat", "config.toml")
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
			// Defaults apply.
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides settings that are conventionally supplied through the
// environment in deployments.
func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := os.Getenv("OLLAMA_BASE_URL"); v != "" {
		c.Ollama.BaseURL = v
	}
	if v := os.Getenv("SERCHA_CHAT_ADDR"); v != "" {
		c.Server.Addr = v
	}
}

// Validate checks settings that have no usable fallback.
func (c *Config) Validate() error {
	if c.Database.URL == "" {
		return fmt.Errorf("database.url is required")
	}
	if c.Ollama.BaseURL == "" {
		return fmt.Errorf("ollama.base_url is required")
	}
	if c.Ollama.EmbeddingDimensions <= 0 {
		return fmt.Errorf("ollama.embedding_dimensions must be > 0")
	}
	if c.Chunking.ChunkSize <= 0 {
		return fmt.Errorf("chunking.chunk_size must be > 0")
	}
	return nil
}

// RouterModelName returns the classification model, falling back to the
// generation model when unset.
func (o Ollama) RouterModelName() string {
	if o.RouterModel != "" {
		return o.RouterModel
	}
	return o.GenerationModel
}

// GenerationTimeout returns the generation timeout as a duration.
func (o Ollama) GenerationTimeout() time.Duration {
	return time.Duration(o.GenerationTimeoutSeconds) * time.Second
}

// RouteTimeout returns the classification timeout as a duration.
func (o Ollama) RouteTimeout() time.Duration {
	return time.Duration(o.RouteTimeoutSeconds) * time.Second
}

// EmbedTimeout returns the embedding timeout as a duration.
func (o Ollama) EmbedTimeout() time.Duration {
	return time.Duration(o.EmbedTimeoutSeconds) * time.Second
}
