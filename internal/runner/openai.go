package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

type openAICompatibleAdapter struct{}

func (a *openAICompatibleAdapter) ID() string { return AdapterOpenAI }

func (a *openAICompatibleAdapter) GenerateTurn(ctx context.Context, req Request, cfg GenerateConfig, tools []ToolDefinition, runner *Runner) (TurnResult, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return TurnResult{}, &RunnerError{Code: ErrorCodeProviderNotConfigured, Message: "provider api key is required"}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}
	return runner.openAIChatTurn(ctx, req, cfg, tools, baseURL, cfg.Model, apiKey)
}

// openAIChatTurn is shared with the ollama adapter, which speaks the same
// chat completions dialect.
func (r *Runner) openAIChatTurn(ctx context.Context, req Request, cfg GenerateConfig, tools []ToolDefinition, baseURL, model, apiKey string) (TurnResult, error) {
	payload := openAIChatRequest{
		Model:    model,
		Messages: toOpenAIMessages(req),
		Tools:    toOpenAITools(tools),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return TurnResult{}, &RunnerError{Code: ErrorCodeProviderRequestFailed, Message: "failed to encode provider request", Err: err}
	}

	requestCtx, cancel := requestContext(ctx, cfg)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodPost, baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return TurnResult{}, &RunnerError{Code: ErrorCodeProviderRequestFailed, Message: "failed to create provider request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := r.httpClient.Do(httpReq)
	if err != nil {
		return TurnResult{}, &RunnerError{Code: ErrorCodeProviderRequestFailed, Message: "provider request failed", Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return TurnResult{}, &RunnerError{Code: ErrorCodeProviderRequestFailed, Message: "failed to read provider response", Err: err}
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return TurnResult{}, &RunnerError{
			Code:    ErrorCodeProviderRequestFailed,
			Message: fmt.Sprintf("provider returned status %d: %s", resp.StatusCode, trimBody(respBody)),
		}
	}

	var completion openAIChatResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return TurnResult{}, &RunnerError{Code: ErrorCodeProviderInvalidReply, Message: "provider response is not valid json", Err: err}
	}
	if len(completion.Choices) == 0 {
		return TurnResult{}, &RunnerError{Code: ErrorCodeProviderInvalidReply, Message: "provider response has no choices"}
	}

	message := completion.Choices[0].Message
	text := strings.TrimSpace(message.Content)
	toolCalls, err := parseOpenAIToolCalls(message.ToolCalls)
	if err != nil {
		return TurnResult{}, &RunnerError{Code: ErrorCodeProviderInvalidReply, Message: err.Error(), Err: err}
	}
	if text == "" && len(toolCalls) == 0 {
		return TurnResult{}, &RunnerError{Code: ErrorCodeProviderInvalidReply, Message: "provider response has empty content"}
	}
	return TurnResult{Text: text, ToolCalls: toolCalls}, nil
}

type openAIChatRequest struct {
	Model    string                 `json:"model"`
	Messages []openAIMessage        `json:"messages"`
	Tools    []openAIToolDefinition `json:"tools,omitempty"`
}

type openAIMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openAIToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
	Name       string           `json:"name,omitempty"`
}

type openAIToolDefinition struct {
	Type     string             `json:"type"`
	Function openAIToolFunction `json:"function"`
}

type openAIToolFunction struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type openAIToolCall struct {
	ID       string             `json:"id,omitempty"`
	Type     string             `json:"type,omitempty"`
	Function openAIFunctionCall `json:"function"`
}

type openAIFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

type openAIChatResponse struct {
	Choices []struct {
		Message struct {
			Content   string           `json:"content"`
			ToolCalls []openAIToolCall `json:"tool_calls,omitempty"`
		} `json:"message"`
	} `json:"choices"`
}

func toOpenAIMessages(req Request) []openAIMessage {
	out := make([]openAIMessage, 0, len(req.Messages)+1)
	if system := strings.TrimSpace(req.System); system != "" {
		out = append(out, openAIMessage{Role: "system", Content: system})
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case "assistant":
			item := openAIMessage{Role: "assistant", Content: msg.Text}
			for _, tc := range msg.ToolCalls {
				args, err := json.Marshal(tc.Arguments)
				if err != nil {
					args = []byte("{}")
				}
				item.ToolCalls = append(item.ToolCalls, openAIToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: openAIFunctionCall{
						Name:      tc.Name,
						Arguments: string(args),
					},
				})
			}
			out = append(out, item)
		case "tool":
			out = append(out, openAIMessage{
				Role:       "tool",
				Content:    msg.Text,
				ToolCallID: msg.ToolCallID,
				Name:       msg.ToolName,
			})
		default:
			if strings.TrimSpace(msg.Text) == "" {
				continue
			}
			out = append(out, openAIMessage{Role: "user", Content: msg.Text})
		}
	}
	return out
}

func toOpenAITools(tools []ToolDefinition) []openAIToolDefinition {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openAIToolDefinition, 0, len(tools))
	for _, item := range tools {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		out = append(out, openAIToolDefinition{
			Type: "function",
			Function: openAIToolFunction{
				Name:        name,
				Description: strings.TrimSpace(item.Description),
				Parameters:  normalizeToolParameters(item.Parameters),
			},
		})
	}
	return out
}

func parseOpenAIToolCalls(in []openAIToolCall) ([]ToolCall, error) {
	if len(in) == 0 {
		return nil, nil
	}
	calls := make([]ToolCall, 0, len(in))
	for i, item := range in {
		name := strings.TrimSpace(item.Function.Name)
		if name == "" {
			return nil, fmt.Errorf("provider tool call[%d] name is empty", i)
		}
		callID := strings.TrimSpace(item.ID)
		if callID == "" {
			callID = fmt.Sprintf("call_%d", i+1)
		}
		argumentsRaw := strings.TrimSpace(item.Function.Arguments)
		if argumentsRaw == "" {
			argumentsRaw = "{}"
		}
		var arguments map[string]interface{}
		if err := json.Unmarshal([]byte(argumentsRaw), &arguments); err != nil {
			return nil, fmt.Errorf("provider tool call %q has invalid arguments: %w", name, err)
		}
		if arguments == nil {
			arguments = map[string]interface{}{}
		}
		calls = append(calls, ToolCall{ID: callID, Name: name, Arguments: arguments})
	}
	return calls, nil
}

func normalizeToolParameters(in map[string]interface{}) map[string]interface{} {
	if len(in) == 0 {
		return map[string]interface{}{
			"type":                 "object",
			"additionalProperties": true,
		}
	}
	if _, ok := in["type"]; !ok {
		out := make(map[string]interface{}, len(in)+1)
		for k, v := range in {
			out[k] = v
		}
		out["type"] = "object"
		return out
	}
	return in
}

func trimBody(raw []byte) string {
	s := strings.TrimSpace(string(raw))
	if len(s) > 300 {
		return s[:300] + "..."
	}
	return s
}
