package client

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"koda/internal/config"
)

// Provider is the model backend boundary. One call per model query:
// the full conversation history and the tool declarations permitted in
// the current mode go in, text plus zero or more tool calls come out.
type Provider interface {
	Send(ctx context.Context, history []*genai.Content, tools []*genai.FunctionDeclaration) (*Response, error)

	// Model returns the active model name.
	Model() string

	// SetModel changes the model for subsequent calls.
	SetModel(name string)

	// SetSystemInstruction sets the system-level instruction, passed
	// via the API's native parameter rather than injected as a user
	// message.
	SetSystemInstruction(instruction string)

	Close() error
}

// Response is a complete model response.
type Response struct {
	// Text is the accumulated text content.
	Text string

	// FunctionCalls contains all tool calls the model issued, in
	// request order.
	FunctionCalls []*genai.FunctionCall

	// Parts preserves the raw response parts for history replay.
	Parts []*genai.Part

	// InputTokens / OutputTokens from usage metadata, when available.
	InputTokens  int
	OutputTokens int
}

// ProviderError wraps a transport or inference failure that survived
// the retry loop and must be surfaced to the user.
type ProviderError struct {
	Backend string
	Err     error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s provider: %v", e.Backend, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// New creates a Provider for the configured backend.
func New(ctx context.Context, cfg *config.Config) (Provider, error) {
	switch cfg.API.Backend {
	case "gemini":
		return NewGeminiProvider(ctx, cfg)
	case "ollama":
		return NewOllamaProvider(cfg)
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.API.Backend)
	}
}

// Ptr returns a pointer to the given value.
func Ptr[T any](v T) *T {
	return &v
}
