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

const (
	defaultAnthropicBaseURL = "https://api.anthropic.com"
	anthropicVersion        = "2023-06-01"
	anthropicMaxTokens      = 4096
)

// anthropicModelAliases maps the short model names the UI offers onto the
// dated API identifiers Anthropic actually serves.
var anthropicModelAliases = map[string]string{
	"claude-3.5-sonnet": "claude-3-5-sonnet-20241022",
	"claude-3.5-haiku":  "claude-3-5-haiku-20241022",
	"claude-3-opus":     "claude-3-opus-20240229",
	"claude-3-sonnet":   "claude-3-sonnet-20240229",
	"claude-3-haiku":    "claude-3-haiku-20240307",
}

// ResolveAnthropicModel applies the alias table, passing unknown names
// through unchanged.
func ResolveAnthropicModel(model string) string {
	if mapped, ok := anthropicModelAliases[strings.ToLower(strings.TrimSpace(model))]; ok {
		return mapped
	}
	return model
}

type anthropicAdapter struct{}

func (a *anthropicAdapter) ID() string { return AdapterAnthropic }

func (a *anthropicAdapter) GenerateTurn(ctx context.Context, req Request, cfg GenerateConfig, tools []ToolDefinition, runner *Runner) (TurnResult, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return TurnResult{}, &RunnerError{Code: ErrorCodeProviderNotConfigured, Message: "provider api key is required"}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}

	payload := anthropicRequest{
		Model:     ResolveAnthropicModel(cfg.Model),
		MaxTokens: anthropicMaxTokens,
		System:    strings.TrimSpace(req.System),
		Messages:  toAnthropicMessages(req.Messages),
		Tools:     toAnthropicTools(tools),
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return TurnResult{}, &RunnerError{Code: ErrorCodeProviderRequestFailed, Message: "failed to encode provider request", Err: err}
	}

	requestCtx, cancel := requestContext(ctx, cfg)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodPost, baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return TurnResult{}, &RunnerError{Code: ErrorCodeProviderRequestFailed, Message: "failed to create provider request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", apiKey)
	httpReq.Header.Set("anthropic-version", anthropicVersion)

	resp, err := runner.httpClient.Do(httpReq)
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

	var parsed anthropicResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return TurnResult{}, &RunnerError{Code: ErrorCodeProviderInvalidReply, Message: "provider response is not valid json", Err: err}
	}

	var texts []string
	var toolCalls []ToolCall
	for i, block := range parsed.Content {
		switch block.Type {
		case "text":
			if t := strings.TrimSpace(block.Text); t != "" {
				texts = append(texts, t)
			}
		case "tool_use":
			callID := strings.TrimSpace(block.ID)
			if callID == "" {
				callID = fmt.Sprintf("call_%d", i+1)
			}
			args := block.Input
			if args == nil {
				args = map[string]interface{}{}
			}
			toolCalls = append(toolCalls, ToolCall{ID: callID, Name: block.Name, Arguments: args})
		}
	}
	if len(texts) == 0 && len(toolCalls) == 0 {
		return TurnResult{}, &RunnerError{Code: ErrorCodeProviderInvalidReply, Message: "provider response has empty content"}
	}
	return TurnResult{Text: strings.Join(texts, "\n"), ToolCalls: toolCalls}, nil
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Tools     []anthropicTool    `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string           `json:"role"`
	Content []anthropicBlock `json:"content"`
}

type anthropicBlock struct {
	Type      string                 `json:"type"`
	Text      string                 `json:"text,omitempty"`
	ID        string                 `json:"id,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Input     map[string]interface{} `json:"input,omitempty"`
	ToolUseID string                 `json:"tool_use_id,omitempty"`
	Content   string                 `json:"content,omitempty"`
}

type anthropicTool struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	InputSchema map[string]interface{} `json:"input_schema"`
}

type anthropicResponse struct {
	Content []anthropicBlock `json:"content"`
}

func toAnthropicMessages(messages []Message) []anthropicMessage {
	out := make([]anthropicMessage, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "assistant":
			var blocks []anthropicBlock
			if t := strings.TrimSpace(msg.Text); t != "" {
				blocks = append(blocks, anthropicBlock{Type: "text", Text: t})
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropicBlock{
					Type:  "tool_use",
					ID:    tc.ID,
					Name:  tc.Name,
					Input: tc.Arguments,
				})
			}
			if len(blocks) == 0 {
				continue
			}
			out = append(out, anthropicMessage{Role: "assistant", Content: blocks})
		case "tool":
			out = append(out, anthropicMessage{
				Role: "user",
				Content: []anthropicBlock{{
					Type:      "tool_result",
					ToolUseID: msg.ToolCallID,
					Content:   msg.Text,
				}},
			})
		default:
			if strings.TrimSpace(msg.Text) == "" {
				continue
			}
			out = append(out, anthropicMessage{
				Role:    "user",
				Content: []anthropicBlock{{Type: "text", Text: msg.Text}},
			})
		}
	}
	return out
}

func toAnthropicTools(tools []ToolDefinition) []anthropicTool {
	if len(tools) == 0 {
		return nil
	}
	out := make([]anthropicTool, 0, len(tools))
	for _, item := range tools {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		out = append(out, anthropicTool{
			Name:        name,
			Description: strings.TrimSpace(item.Description),
			InputSchema: normalizeToolParameters(item.Parameters),
		})
	}
	return out
}
