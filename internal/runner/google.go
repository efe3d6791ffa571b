package runner

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const defaultGoogleBaseURL = "https://generativelanguage.googleapis.com"

type googleAdapter struct{}

func (a *googleAdapter) ID() string { return AdapterGoogle }

func (a *googleAdapter) GenerateTurn(ctx context.Context, req Request, cfg GenerateConfig, tools []ToolDefinition, runner *Runner) (TurnResult, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return TurnResult{}, &RunnerError{Code: ErrorCodeProviderNotConfigured, Message: "provider api key is required"}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultGoogleBaseURL
	}

	payload := googleRequest{
		Contents: toGoogleContents(req.Messages),
	}
	if system := strings.TrimSpace(req.System); system != "" {
		payload.SystemInstruction = &googleContent{Parts: []googlePart{{Text: system}}}
	}
	if decls := toGoogleTools(tools); len(decls) > 0 {
		payload.Tools = []googleToolSet{{FunctionDeclarations: decls}}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return TurnResult{}, &RunnerError{Code: ErrorCodeProviderRequestFailed, Message: "failed to encode provider request", Err: err}
	}

	requestCtx, cancel := requestContext(ctx, cfg)
	defer cancel()

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		baseURL, url.PathEscape(cfg.Model), url.QueryEscape(apiKey))
	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return TurnResult{}, &RunnerError{Code: ErrorCodeProviderRequestFailed, Message: "failed to create provider request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")

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

	var parsed googleResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return TurnResult{}, &RunnerError{Code: ErrorCodeProviderInvalidReply, Message: "provider response is not valid json", Err: err}
	}
	if len(parsed.Candidates) == 0 {
		return TurnResult{}, &RunnerError{Code: ErrorCodeProviderInvalidReply, Message: "provider response has no candidates"}
	}

	var texts []string
	var toolCalls []ToolCall
	for i, part := range parsed.Candidates[0].Content.Parts {
		if t := strings.TrimSpace(part.Text); t != "" {
			texts = append(texts, t)
		}
		if part.FunctionCall != nil {
			args := part.FunctionCall.Args
			if args == nil {
				args = map[string]interface{}{}
			}
			toolCalls = append(toolCalls, ToolCall{
				ID:        fmt.Sprintf("call_%d", i+1),
				Name:      part.FunctionCall.Name,
				Arguments: args,
			})
		}
	}
	if len(texts) == 0 && len(toolCalls) == 0 {
		return TurnResult{}, &RunnerError{Code: ErrorCodeProviderInvalidReply, Message: "provider response has empty content"}
	}
	return TurnResult{Text: strings.Join(texts, "\n"), ToolCalls: toolCalls}, nil
}

type googleRequest struct {
	SystemInstruction *googleContent  `json:"systemInstruction,omitempty"`
	Contents          []googleContent `json:"contents"`
	Tools             []googleToolSet `json:"tools,omitempty"`
}

type googleContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []googlePart `json:"parts"`
}

type googlePart struct {
	Text             string                  `json:"text,omitempty"`
	FunctionCall     *googleFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *googleFunctionResponse `json:"functionResponse,omitempty"`
}

type googleFunctionCall struct {
	Name string                 `json:"name"`
	Args map[string]interface{} `json:"args,omitempty"`
}

type googleFunctionResponse struct {
	Name     string                 `json:"name"`
	Response map[string]interface{} `json:"response"`
}

type googleToolSet struct {
	FunctionDeclarations []googleFunctionDecl `json:"functionDeclarations"`
}

type googleFunctionDecl struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters,omitempty"`
}

type googleResponse struct {
	Candidates []struct {
		Content googleContent `json:"content"`
	} `json:"candidates"`
}

func toGoogleContents(messages []Message) []googleContent {
	out := make([]googleContent, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "assistant":
			var parts []googlePart
			if t := strings.TrimSpace(msg.Text); t != "" {
				parts = append(parts, googlePart{Text: t})
			}
			for _, tc := range msg.ToolCalls {
				parts = append(parts, googlePart{FunctionCall: &googleFunctionCall{
					Name: tc.Name,
					Args: tc.Arguments,
				}})
			}
			if len(parts) == 0 {
				continue
			}
			out = append(out, googleContent{Role: "model", Parts: parts})
		case "tool":
			var response map[string]interface{}
			if err := json.Unmarshal([]byte(msg.Text), &response); err != nil {
				response = map[string]interface{}{"output": msg.Text}
			}
			out = append(out, googleContent{
				Role: "user",
				Parts: []googlePart{{FunctionResponse: &googleFunctionResponse{
					Name:     msg.ToolName,
					Response: response,
				}}},
			})
		default:
			if strings.TrimSpace(msg.Text) == "" {
				continue
			}
			out = append(out, googleContent{Role: "user", Parts: []googlePart{{Text: msg.Text}}})
		}
	}
	return out
}

func toGoogleTools(tools []ToolDefinition) []googleFunctionDecl {
	if len(tools) == 0 {
		return nil
	}
	out := make([]googleFunctionDecl, 0, len(tools))
	for _, item := range tools {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			continue
		}
		out = append(out, googleFunctionDecl{
			Name:        name,
			Description: strings.TrimSpace(item.Description),
			Parameters:  normalizeGoogleParameters(item.Parameters),
		})
	}
	return out
}

// normalizeGoogleParameters strips JSON-schema keys Gemini rejects.
func normalizeGoogleParameters(in map[string]interface{}) map[string]interface{} {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(in))
	for k, v := range in {
		if k == "additionalProperties" {
			continue
		}
		out[k] = v
	}
	return out
}
