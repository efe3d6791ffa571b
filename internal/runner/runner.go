// Package runner turns chat transcripts into provider API calls. Each
// supported provider family has its own adapter; the right one is picked
// from the model name, so callers never branch on vendor.
package runner

import (
	"context"
	"net/http"
	"strings"
	"time"
)

const (
	AdapterEcho      = "echo"
	AdapterOpenAI    = "openai_compatible"
	AdapterAnthropic = "anthropic"
	AdapterGoogle    = "google"
	AdapterOllama    = "ollama"

	// EchoModel short-circuits provider calls entirely, for UI smoke tests
	// without an API key.
	EchoModel = "echo_model"

	ErrorCodeProviderNotConfigured = "provider_not_configured"
	ErrorCodeProviderNotSupported  = "provider_not_supported"
	ErrorCodeProviderRequestFailed = "provider_request_failed"
	ErrorCodeProviderInvalidReply  = "provider_invalid_reply"
)

type RunnerError struct {
	Code    string
	Message string
	Err     error
}

func (e *RunnerError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return e.Code
}

func (e *RunnerError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Message is one turn of the provider-neutral transcript.
type Message struct {
	Role       string // system, user, assistant, tool
	Text       string
	ToolCalls  []ToolCall // assistant turns that requested tools
	ToolCallID string     // tool result turns
	ToolName   string
}

type Request struct {
	System   string
	Messages []Message
}

type GenerateConfig struct {
	Model     string
	APIKey    string
	BaseURL   string
	TimeoutMS int
}

type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]interface{}
}

type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]interface{}
}

type TurnResult struct {
	Text      string
	ToolCalls []ToolCall
}

type ProviderAdapter interface {
	ID() string
	GenerateTurn(ctx context.Context, req Request, cfg GenerateConfig, tools []ToolDefinition, runner *Runner) (TurnResult, error)
}

type Runner struct {
	httpClient *http.Client
	adapters   map[string]ProviderAdapter
}

func New() *Runner {
	return NewWithHTTPClient(&http.Client{Timeout: 120 * time.Second})
}

func NewWithHTTPClient(client *http.Client) *Runner {
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	r := &Runner{
		httpClient: client,
		adapters:   map[string]ProviderAdapter{},
	}
	r.registerAdapter(&echoAdapter{})
	r.registerAdapter(&openAICompatibleAdapter{})
	r.registerAdapter(&anthropicAdapter{})
	r.registerAdapter(&googleAdapter{})
	r.registerAdapter(&ollamaAdapter{})
	return r
}

func (r *Runner) registerAdapter(adapter ProviderAdapter) {
	if adapter == nil {
		return
	}
	id := strings.TrimSpace(adapter.ID())
	if id == "" {
		return
	}
	r.adapters[id] = adapter
}

// AdapterForModel maps a model name onto an adapter ID by prefix. Unknown
// prefixes return "".
func AdapterForModel(model string) string {
	m := strings.ToLower(strings.TrimSpace(model))
	switch {
	case m == EchoModel:
		return AdapterEcho
	case strings.HasPrefix(m, "gpt-"), strings.HasPrefix(m, "o1"), strings.HasPrefix(m, "o3"), strings.HasPrefix(m, "o4"):
		return AdapterOpenAI
	case strings.HasPrefix(m, "claude-"):
		return AdapterAnthropic
	case strings.HasPrefix(m, "gemini-"):
		return AdapterGoogle
	case strings.HasPrefix(m, "ollama-"):
		return AdapterOllama
	default:
		return ""
	}
}

// GenerateTurn runs one model call for the transcript, dispatching on the
// model name.
func (r *Runner) GenerateTurn(ctx context.Context, req Request, cfg GenerateConfig, tools []ToolDefinition) (TurnResult, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		return TurnResult{}, &RunnerError{Code: ErrorCodeProviderNotConfigured, Message: "model is required"}
	}
	adapterID := AdapterForModel(model)
	if adapterID == "" {
		return TurnResult{}, &RunnerError{
			Code:    ErrorCodeProviderNotSupported,
			Message: "unsupported model " + strings.TrimSpace(model),
		}
	}
	adapter, ok := r.adapters[adapterID]
	if !ok {
		return TurnResult{}, &RunnerError{
			Code:    ErrorCodeProviderNotSupported,
			Message: "adapter " + adapterID + " is not registered",
		}
	}
	return adapter.GenerateTurn(ctx, req, cfg, tools, r)
}

// requestContext applies the per-call timeout when configured.
func requestContext(ctx context.Context, cfg GenerateConfig) (context.Context, context.CancelFunc) {
	if cfg.TimeoutMS > 0 {
		return context.WithTimeout(ctx, time.Duration(cfg.TimeoutMS)*time.Millisecond)
	}
	return ctx, func() {}
}

type echoAdapter struct{}

func (a *echoAdapter) ID() string { return AdapterEcho }

func (a *echoAdapter) GenerateTurn(_ context.Context, req Request, _ GenerateConfig, _ []ToolDefinition, _ *Runner) (TurnResult, error) {
	parts := make([]string, 0, len(req.Messages))
	for _, msg := range req.Messages {
		if msg.Role != "user" {
			continue
		}
		if text := strings.TrimSpace(msg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	if len(parts) == 0 {
		return TurnResult{Text: "Echo: (empty input)"}, nil
	}
	return TurnResult{Text: "Echo: " + parts[len(parts)-1]}, nil
}
