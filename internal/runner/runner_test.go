package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func userRequest(text string) Request {
	return Request{Messages: []Message{{Role: "user", Text: text}}}
}

func TestAdapterForModel(t *testing.T) {
	cases := map[string]string{
		"echo_model":        AdapterEcho,
		"gpt-4o":            AdapterOpenAI,
		"o3-mini":           AdapterOpenAI,
		"claude-3.5-sonnet": AdapterAnthropic,
		"gemini-1.5-pro":    AdapterGoogle,
		"ollama-llama3":     AdapterOllama,
		"mystery-model":     "",
	}
	for model, want := range cases {
		require.Equal(t, want, AdapterForModel(model), "model %s", model)
	}
}

func TestEchoModelShortCircuits(t *testing.T) {
	r := New()
	turn, err := r.GenerateTurn(context.Background(), userRequest("hello"), GenerateConfig{Model: "echo_model"}, nil)
	require.NoError(t, err)
	require.Equal(t, "Echo: hello", turn.Text)
}

func TestUnsupportedModel(t *testing.T) {
	r := New()
	_, err := r.GenerateTurn(context.Background(), userRequest("hi"), GenerateConfig{Model: "mystery-9000"}, nil)
	var rerr *RunnerError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, ErrorCodeProviderNotSupported, rerr.Code)
}

func TestMissingAPIKey(t *testing.T) {
	r := New()
	for _, model := range []string{"gpt-4o", "claude-3-haiku", "gemini-1.5-flash"} {
		_, err := r.GenerateTurn(context.Background(), userRequest("hi"), GenerateConfig{Model: model}, nil)
		var rerr *RunnerError
		require.ErrorAs(t, err, &rerr, "model %s", model)
		require.Equal(t, ErrorCodeProviderNotConfigured, rerr.Code, "model %s", model)
	}
}

func TestOpenAIAdapterToolCall(t *testing.T) {
	var got openAIChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"choices":[{"message":{"content":"","tool_calls":[
			{"id":"call_abc","type":"function","function":{"name":"get_revit_project_info","arguments":"{}"}}
		]}}]}`)
	}))
	defer srv.Close()

	r := New()
	turn, err := r.GenerateTurn(context.Background(),
		Request{
			System:   "You control Revit.",
			Messages: []Message{{Role: "user", Text: "what project is open?"}},
		},
		GenerateConfig{Model: "gpt-4o", APIKey: "sk-test", BaseURL: srv.URL},
		[]ToolDefinition{{Name: "get_revit_project_info", Description: "Project metadata"}},
	)
	require.NoError(t, err)
	require.Empty(t, turn.Text)
	require.Len(t, turn.ToolCalls, 1)
	require.Equal(t, "get_revit_project_info", turn.ToolCalls[0].Name)

	require.Equal(t, "system", got.Messages[0].Role)
	require.Len(t, got.Tools, 1)
	require.Equal(t, "object", got.Tools[0].Function.Parameters["type"])
}

func TestOpenAIAdapterErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"invalid key"}}`, http.StatusUnauthorized)
	}))
	defer srv.Close()

	r := New()
	_, err := r.GenerateTurn(context.Background(), userRequest("hi"),
		GenerateConfig{Model: "gpt-4o", APIKey: "bad", BaseURL: srv.URL}, nil)
	var rerr *RunnerError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, ErrorCodeProviderRequestFailed, rerr.Code)
	require.Contains(t, rerr.Message, "401")
}

func TestAnthropicAdapter(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/messages", r.URL.Path)
		require.Equal(t, "sk-ant", r.Header.Get("x-api-key"))
		require.Equal(t, anthropicVersion, r.Header.Get("anthropic-version"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"content":[
			{"type":"text","text":"Selecting them now."},
			{"type":"tool_use","id":"tu_1","name":"select_stored_elements","input":{"storage_name":"windows"}}
		]}`)
	}))
	defer srv.Close()

	r := New()
	turn, err := r.GenerateTurn(context.Background(),
		Request{System: "sys", Messages: []Message{
			{Role: "user", Text: "select the stored windows"},
			{Role: "assistant", Text: "", ToolCalls: []ToolCall{{ID: "tu_0", Name: "list_stored_elements", Arguments: map[string]interface{}{}}}},
			{Role: "tool", ToolCallID: "tu_0", ToolName: "list_stored_elements", Text: `{"status":"success"}`},
		}},
		GenerateConfig{Model: "claude-3.5-sonnet", APIKey: "sk-ant", BaseURL: srv.URL}, nil)
	require.NoError(t, err)
	require.Equal(t, "Selecting them now.", turn.Text)
	require.Len(t, turn.ToolCalls, 1)
	require.Equal(t, map[string]interface{}{"storage_name": "windows"}, turn.ToolCalls[0].Arguments)

	// Alias table expands the short model name.
	require.Equal(t, "claude-3-5-sonnet-20241022", got.Model)
	// Tool result round-trips as a user-role tool_result block.
	last := got.Messages[len(got.Messages)-1]
	require.Equal(t, "user", last.Role)
	require.Equal(t, "tool_result", last.Content[0].Type)
	require.Equal(t, "tu_0", last.Content[0].ToolUseID)
}

func TestGoogleAdapter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Contains(t, r.URL.Path, "models/gemini-1.5-pro:generateContent")
		require.Equal(t, "g-key", r.URL.Query().Get("key"))
		fmt.Fprint(w, `{"candidates":[{"content":{"role":"model","parts":[
			{"functionCall":{"name":"get_elements_by_category","args":{"category":"Walls"}}}
		]}}]}`)
	}))
	defer srv.Close()

	r := New()
	turn, err := r.GenerateTurn(context.Background(), userRequest("how many walls?"),
		GenerateConfig{Model: "gemini-1.5-pro", APIKey: "g-key", BaseURL: srv.URL}, nil)
	require.NoError(t, err)
	require.Len(t, turn.ToolCalls, 1)
	require.Equal(t, "get_elements_by_category", turn.ToolCalls[0].Name)
	require.Equal(t, "Walls", turn.ToolCalls[0].Arguments["category"])
}

func TestOllamaAdapterStripsPrefixAndSkipsAuth(t *testing.T) {
	var got openAIChatRequest
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		auth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		fmt.Fprint(w, `{"choices":[{"message":{"content":"local reply"}}]}`)
	}))
	defer srv.Close()

	r := New()
	turn, err := r.GenerateTurn(context.Background(), userRequest("hi"),
		GenerateConfig{Model: "ollama-llama3", APIKey: srv.URL}, nil)
	require.NoError(t, err)
	require.Equal(t, "local reply", turn.Text)
	require.Equal(t, "llama3", got.Model)
	require.Empty(t, auth)
}

func TestEmptyProviderReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"choices":[{"message":{"content":""}}]}`)
	}))
	defer srv.Close()

	r := New()
	_, err := r.GenerateTurn(context.Background(), userRequest("hi"),
		GenerateConfig{Model: "gpt-4o", APIKey: "k", BaseURL: srv.URL}, nil)
	var rerr *RunnerError
	require.ErrorAs(t, err, &rerr)
	require.Equal(t, ErrorCodeProviderInvalidReply, rerr.Code)
}
