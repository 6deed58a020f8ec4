package driven

import "context"

// LLMService provides text generation for answers and route classification.
// The model is fixed at construction; the orchestrator holds one instance
// for generation and one for classification.
type LLMService interface {
	// Chat produces one assistant message from a conversation.
	// An empty response is an error, never an empty string.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)

	// ModelName returns the name of the model being used.
	ModelName() string

	// Ping validates the service is reachable with a lightweight request.
	Ping(ctx context.Context) error
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// ChatOptions configures generation behaviour.
type ChatOptions struct {
	// Temperature controls randomness (0.0 = deterministic).
	Temperature float64

	// MaxTokens bounds the generated output. 0 means model default.
	MaxTokens int
}
