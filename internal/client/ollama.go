package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ollama/ollama/api"
	"google.golang.org/genai"

	"koda/internal/config"
	"koda/internal/logging"
)

// OllamaProvider implements Provider against a local Ollama server.
type OllamaProvider struct {
	client            *api.Client
	model             string
	temperature       float32
	maxTokens         int32
	retry             retryPolicy
	systemInstruction string
	mu                sync.RWMutex
}

// NewOllamaProvider creates an Ollama API provider.
func NewOllamaProvider(cfg *config.Config) (*OllamaProvider, error) {
	if cfg.Model.Name == "" {
		return nil, fmt.Errorf("model name is required")
	}

	host := cfg.API.OllamaHost
	if host == "" {
		host = "http://localhost:11434"
	}

	baseURL, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host: %w", err)
	}

	if baseURL.Scheme == "http" {
		h := baseURL.Hostname()
		if h != "localhost" && h != "127.0.0.1" && h != "::1" {
			logging.Warn("Ollama connection uses unencrypted HTTP to remote host", "host", h)
		}
	}

	timeout := cfg.Retry.HTTPTimeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}

	retry := defaultRetryPolicy()
	if cfg.Retry.MaxRetries > 0 {
		retry.maxRetries = cfg.Retry.MaxRetries
	}
	if cfg.Retry.RetryDelay > 0 {
		retry.retryDelay = cfg.Retry.RetryDelay
	}

	maxTokens := cfg.Model.MaxTokens
	if maxTokens == 0 {
		maxTokens = 8192
	}

	return &OllamaProvider{
		client:      api.NewClient(baseURL, httpClient),
		model:       cfg.Model.Name,
		temperature: cfg.Model.Temperature,
		maxTokens:   maxTokens,
		retry:       retry,
	}, nil
}

// Send sends the conversation and returns the complete response.
func (p *OllamaProvider) Send(ctx context.Context, history []*genai.Content, tools []*genai.FunctionDeclaration) (*Response, error) {
	p.mu.RLock()
	model := p.model
	temperature := p.temperature
	maxTokens := p.maxTokens
	sysInstruction := p.systemInstruction
	p.mu.RUnlock()

	messages := convertHistoryToMessages(history, sysInstruction)

	req := &api.ChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   Ptr(false),
		Options: map[string]interface{}{
			"num_predict": maxTokens,
		},
	}
	if temperature > 0 {
		req.Options["temperature"] = temperature
	}
	if len(tools) > 0 {
		req.Tools = convertToolsToOllama(tools)
	}

	return p.retry.withRetry(ctx, "ollama", func() (*Response, error) {
		out := &Response{}

		err := p.client.Chat(ctx, req, func(resp api.ChatResponse) error {
			if resp.Message.Content != "" {
				out.Text += resp.Message.Content
				out.Parts = append(out.Parts, genai.NewPartFromText(resp.Message.Content))
			}

			for i, tc := range resp.Message.ToolCalls {
				fc := convertOllamaToolCall(tc, len(out.FunctionCalls)+i)
				out.FunctionCalls = append(out.FunctionCalls, fc)
				out.Parts = append(out.Parts, &genai.Part{FunctionCall: fc})
			}

			if resp.Done {
				if resp.PromptEvalCount > 0 {
					out.InputTokens = resp.PromptEvalCount
				}
				if resp.EvalCount > 0 {
					out.OutputTokens = resp.EvalCount
				}
			}
			return nil
		})
		if err != nil {
			return nil, wrapOllamaError(err, model)
		}
		return out, nil
	})
}

// convertHistoryToMessages converts genai history to Ollama messages.
func convertHistoryToMessages(history []*genai.Content, sysInstruction string) []api.Message {
	messages := make([]api.Message, 0, len(history)+1)

	if sysInstruction != "" {
		messages = append(messages, api.Message{Role: "system", Content: sysInstruction})
	}

	for _, content := range history {
		if content == nil {
			continue
		}

		role := string(content.Role)
		switch content.Role {
		case genai.RoleUser:
			role = "user"
		case genai.RoleModel:
			role = "assistant"
		}

		var textParts []string
		var toolCalls []api.ToolCall

		for _, part := range content.Parts {
			if part == nil {
				continue
			}
			if part.Text != "" {
				textParts = append(textParts, part.Text)
			}
			if part.FunctionCall != nil {
				toolCalls = append(toolCalls, convertGenaiToolCall(part.FunctionCall))
			}
			if part.FunctionResponse != nil {
				messages = appendToolResult(messages, part.FunctionResponse)
			}
		}

		if len(textParts) == 0 && len(toolCalls) == 0 {
			continue
		}

		messages = append(messages, api.Message{
			Role:      role,
			Content:   strings.Join(textParts, "\n"),
			ToolCalls: toolCalls,
		})
	}

	return messages
}

// appendToolResult flattens a FunctionResponse into a tool role message.
func appendToolResult(messages []api.Message, fr *genai.FunctionResponse) []api.Message {
	var contentStr string
	if fr.Response != nil {
		if val, ok := fr.Response["content"].(string); ok {
			contentStr = val
		}
		if errStr, ok := fr.Response["error"].(string); ok && errStr != "" {
			contentStr = "Error: " + errStr
		}
	}
	if contentStr == "" {
		if data, err := json.Marshal(fr.Response); err == nil {
			contentStr = string(data)
		} else {
			contentStr = "Operation completed"
		}
	}

	return append(messages, api.Message{
		Role:       "tool",
		Content:    contentStr,
		ToolName:   fr.Name,
		ToolCallID: fr.ID,
	})
}

// convertToolsToOllama converts genai declarations to Ollama tools.
func convertToolsToOllama(decls []*genai.FunctionDeclaration) []api.Tool {
	tools := make([]api.Tool, 0, len(decls))

	for _, decl := range decls {
		params := api.ToolFunctionParameters{
			Type:       "object",
			Properties: api.NewToolPropertiesMap(),
		}

		if decl.Parameters != nil {
			if len(decl.Parameters.Required) > 0 {
				params.Required = decl.Parameters.Required
			}

			for name, propSchema := range decl.Parameters.Properties {
				prop := api.ToolProperty{
					Description: propSchema.Description,
				}
				if propSchema.Type != "" {
					prop.Type = api.PropertyType{strings.ToLower(string(propSchema.Type))}
				}
				if len(propSchema.Enum) > 0 {
					enumVals := make([]any, len(propSchema.Enum))
					for i, v := range propSchema.Enum {
						enumVals[i] = v
					}
					prop.Enum = enumVals
				}
				params.Properties.Set(name, prop)
			}
		}

		tools = append(tools, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        decl.Name,
				Description: decl.Description,
				Parameters:  params,
			},
		})
	}

	return tools
}

// convertOllamaToolCall converts an Ollama tool call to genai form.
func convertOllamaToolCall(tc api.ToolCall, index int) *genai.FunctionCall {
	id := tc.ID
	if id == "" {
		id = fmt.Sprintf("call_%d", index)
		if tc.Function.Index > 0 {
			id = fmt.Sprintf("call_%d", tc.Function.Index)
		}
	}
	return &genai.FunctionCall{
		ID:   id,
		Name: tc.Function.Name,
		Args: tc.Function.Arguments.ToMap(),
	}
}

// convertGenaiToolCall converts a genai call to Ollama form.
func convertGenaiToolCall(fc *genai.FunctionCall) api.ToolCall {
	args := api.NewToolCallFunctionArguments()
	for k, v := range fc.Args {
		args.Set(k, v)
	}
	return api.ToolCall{
		ID: fc.ID,
		Function: api.ToolCallFunction{
			Name:      fc.Name,
			Arguments: args,
		},
	}
}

// wrapOllamaError adds actionable context to common Ollama failures.
func wrapOllamaError(err error, model string) error {
	if err == nil {
		return nil
	}

	errStr := err.Error()

	if strings.Contains(errStr, "connection refused") {
		return fmt.Errorf("Ollama server is not running (start it with `ollama serve`): %w", err)
	}

	if strings.Contains(errStr, "model") && strings.Contains(errStr, "not found") {
		return fmt.Errorf("model %q is not installed (pull it with `ollama pull %s`): %w", model, model, err)
	}

	return err
}

// Model returns the model name.
func (p *OllamaProvider) Model() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.model
}

// SetModel changes the model for subsequent calls.
func (p *OllamaProvider) SetModel(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.model = name
}

// SetSystemInstruction sets the system-level instruction.
func (p *OllamaProvider) SetSystemInstruction(instruction string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.systemInstruction = instruction
}

// ListModels returns the models installed on the server.
func (p *OllamaProvider) ListModels(ctx context.Context) ([]string, error) {
	resp, err := p.client.List(ctx)
	if err != nil {
		return nil, wrapOllamaError(err, p.Model())
	}

	models := make([]string, 0, len(resp.Models))
	for _, m := range resp.Models {
		models = append(models, m.Name)
	}
	return models, nil
}

// Close releases the provider.
func (p *OllamaProvider) Close() error {
	return nil
}
