package app

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"revitmcp/internal/domain"
	"revitmcp/internal/repo"
	"revitmcp/internal/runner"
	"revitmcp/internal/tools"
)

// handleChatAPI runs the agent loop: model call, tool dispatch, repeat until
// the model answers in text or the turn budget runs out. Provider failures
// come back as a 200 with error_detail, so the chat page can always render
// something.
func (s *Server) handleChatAPI(w http.ResponseWriter, r *http.Request) {
	var req domain.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json", "invalid request body", nil)
		return
	}
	if len(req.Conversation) == 0 {
		writeErr(w, http.StatusBadRequest, "invalid_chat", "conversation is required", nil)
		return
	}

	var prefs repo.Preferences
	s.store.Read(func(state *repo.State) { prefs = state.Preferences })

	model := strings.TrimSpace(req.Model)
	if model == "" {
		model = prefs.DefaultModel
	}
	cfg := runner.GenerateConfig{
		Model:  model,
		APIKey: strings.TrimSpace(req.APIKey),
	}
	if adapterID := runner.AdapterForModel(model); adapterID != "" {
		var setting repo.ProviderSetting
		s.store.Read(func(state *repo.State) { setting = state.Providers[adapterID] })
		if cfg.APIKey == "" {
			cfg.APIKey = setting.APIKey
		}
		cfg.BaseURL = setting.BaseURL
		cfg.TimeoutMS = setting.TimeoutMS
	}

	transcript := runner.Request{
		System:   tools.SystemPrompt,
		Messages: toRunnerMessages(req.Conversation),
	}
	defs := tools.Definitions()

	var imageOutput string
	for turn := 0; turn < prefs.MaxToolTurns; turn++ {
		result, err := s.runner.GenerateTurn(r.Context(), transcript, cfg, defs)
		if err != nil {
			writeJSON(w, http.StatusOK, chatError(err))
			return
		}
		if len(result.ToolCalls) == 0 {
			writeJSON(w, http.StatusOK, domain.ChatResponse{
				Reply:       result.Text,
				ImageOutput: imageOutput,
			})
			return
		}

		transcript.Messages = append(transcript.Messages, runner.Message{
			Role:      "assistant",
			Text:      result.Text,
			ToolCalls: result.ToolCalls,
		})
		for _, call := range result.ToolCalls {
			out := s.tools.Dispatch(r.Context(), call.Name, call.Arguments)
			s.hub.Broadcast("tool_call", map[string]interface{}{
				"tool":   call.Name,
				"status": out["status"],
			})
			if img := imageFromResult(out); img != "" {
				imageOutput = img
			}
			raw, merr := json.Marshal(out)
			if merr != nil {
				raw = []byte(`{"status":"error","message":"tool result not serializable"}`)
			}
			transcript.Messages = append(transcript.Messages, runner.Message{
				Role:       "tool",
				Text:       string(raw),
				ToolCallID: call.ID,
				ToolName:   call.Name,
			})
		}
	}

	writeJSON(w, http.StatusOK, domain.ChatResponse{
		Reply:       "I hit the tool-call limit for a single request. The work done so far is listed above; ask me to continue for the rest.",
		ImageOutput: imageOutput,
	})
}

func toRunnerMessages(conversation []domain.ChatMessage) []runner.Message {
	out := make([]runner.Message, 0, len(conversation))
	for _, msg := range conversation {
		role := strings.ToLower(strings.TrimSpace(msg.Role))
		// The chat page labels assistant turns "bot".
		if role == "bot" {
			role = "assistant"
		}
		if role != "user" && role != "assistant" && role != "system" {
			role = "user"
		}
		out = append(out, runner.Message{Role: role, Text: msg.Content})
	}
	return out
}

func chatError(err error) domain.ChatResponse {
	var rerr *runner.RunnerError
	if errors.As(err, &rerr) {
		switch rerr.Code {
		case runner.ErrorCodeProviderNotConfigured:
			return domain.ChatResponse{
				Reply:       "That model needs an API key. Add one in settings or include it with the request.",
				ErrorDetail: rerr.Message,
			}
		case runner.ErrorCodeProviderNotSupported:
			return domain.ChatResponse{
				Reply:       "I don't recognize that model name.",
				ErrorDetail: rerr.Message,
			}
		}
	}
	return domain.ChatResponse{
		Reply:       "The model request failed. Check the error detail and try again.",
		ErrorDetail: err.Error(),
	}
}

// imageFromResult lifts an exported view out of a tool result so the chat
// response can inline it.
func imageFromResult(out map[string]interface{}) string {
	b64, _ := out["image_base64"].(string)
	if b64 == "" {
		return ""
	}
	contentType, _ := out["content_type"].(string)
	if contentType == "" {
		contentType = "image/png"
	}
	return "data:" + contentType + ";base64," + b64
}
