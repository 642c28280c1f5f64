package client

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/genai"

	"koda/internal/config"
	"koda/internal/logging"
)

// GeminiProvider wraps the Google Gemini API.
type GeminiProvider struct {
	client            *genai.Client
	model             string
	genConfig         *genai.GenerateContentConfig
	retry             retryPolicy
	systemInstruction string
	mu                sync.RWMutex
}

// NewGeminiProvider creates a Gemini API provider.
func NewGeminiProvider(ctx context.Context, cfg *config.Config) (*GeminiProvider, error) {
	if cfg.API.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key required: set GEMINI_API_KEY or api.api_key in the config file")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  cfg.API.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	genConfig := &genai.GenerateContentConfig{
		Temperature:     Ptr(cfg.Model.Temperature),
		MaxOutputTokens: cfg.Model.MaxTokens,
	}

	retry := defaultRetryPolicy()
	if cfg.Retry.MaxRetries > 0 {
		retry.maxRetries = cfg.Retry.MaxRetries
	}
	if cfg.Retry.RetryDelay > 0 {
		retry.retryDelay = cfg.Retry.RetryDelay
	}

	return &GeminiProvider{
		client:    client,
		model:     cfg.Model.Name,
		genConfig: genConfig,
		retry:     retry,
	}, nil
}

// Send sends the conversation and returns the complete response.
func (p *GeminiProvider) Send(ctx context.Context, history []*genai.Content, tools []*genai.FunctionDeclaration) (*Response, error) {
	contents := sanitizeContents(history)

	p.mu.RLock()
	model := p.model
	genConfig := *p.genConfig
	if p.systemInstruction != "" {
		genConfig.SystemInstruction = genai.NewContentFromText(p.systemInstruction, genai.RoleUser)
	}
	p.mu.RUnlock()

	if len(tools) > 0 {
		genConfig.Tools = []*genai.Tool{{FunctionDeclarations: tools}}
	}

	return p.retry.withRetry(ctx, "gemini", func() (*Response, error) {
		resp, err := p.client.Models.GenerateContent(ctx, model, contents, &genConfig)
		if err != nil {
			return nil, err
		}
		return extractResponse(resp)
	})
}

// extractResponse flattens a GenerateContentResponse into a Response.
func extractResponse(resp *genai.GenerateContentResponse) (*Response, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("empty response from model")
	}

	out := &Response{}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		out.Parts = append(out.Parts, part)
		if part.Text != "" {
			out.Text += part.Text
		}
		if part.FunctionCall != nil {
			out.FunctionCalls = append(out.FunctionCalls, part.FunctionCall)
		}
	}

	if resp.UsageMetadata != nil {
		out.InputTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.OutputTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	logging.Debug("gemini response",
		"text_len", len(out.Text),
		"tool_calls", len(out.FunctionCalls))

	return out, nil
}

// sanitizeContents drops empty parts and contents before sending.
// The API rejects parts that carry neither text nor a function payload.
func sanitizeContents(contents []*genai.Content) []*genai.Content {
	var result []*genai.Content

	for _, content := range contents {
		if content == nil {
			continue
		}

		var validParts []*genai.Part
		for _, part := range content.Parts {
			if part == nil {
				continue
			}
			if part.FunctionCall != nil || part.FunctionResponse != nil || part.Text != "" {
				validParts = append(validParts, part)
			}
		}

		if len(validParts) == 0 {
			validParts = []*genai.Part{genai.NewPartFromText(" ")}
		}

		result = append(result, &genai.Content{
			Role:  content.Role,
			Parts: validParts,
		})
	}

	if len(result) == 0 {
		result = []*genai.Content{{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{genai.NewPartFromText(" ")},
		}}
	}

	return result
}

// Model returns the model name.
func (p *GeminiProvider) Model() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model
}

// SetModel changes the model for subsequent calls.
func (p *GeminiProvider) SetModel(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model = name
}

// SetSystemInstruction sets the system-level instruction.
func (p *GeminiProvider) SetSystemInstruction(instruction string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.systemInstruction = instruction
}

// Close releases the provider.
func (p *GeminiProvider) Close() error {
	return nil
}
