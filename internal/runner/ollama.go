package runner

import (
	"context"
	"strings"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	ollamaTimeoutMS      = 120000
	ollamaModelPrefix    = "ollama-"
)

// ollamaAdapter drives a local Ollama server through its OpenAI-compatible
// endpoint. The UI reuses the API key field for the server URL, and the
// "ollama-" model prefix is stripped before the call.
type ollamaAdapter struct{}

func (a *ollamaAdapter) ID() string { return AdapterOllama }

func (a *ollamaAdapter) GenerateTurn(ctx context.Context, req Request, cfg GenerateConfig, tools []ToolDefinition, runner *Runner) (TurnResult, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.APIKey), "/")
	if baseURL == "" {
		baseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	}
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	model := strings.TrimPrefix(strings.TrimSpace(cfg.Model), ollamaModelPrefix)
	if model == "" {
		return TurnResult{}, &RunnerError{Code: ErrorCodeProviderNotConfigured, Message: "ollama model name is empty"}
	}
	// Local models are slow; give them a generous default budget.
	if cfg.TimeoutMS <= 0 {
		cfg.TimeoutMS = ollamaTimeoutMS
	}
	return runner.openAIChatTurn(ctx, req, cfg, tools, baseURL+"/v1", model, "")
}
