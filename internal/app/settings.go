package app

import (
	"encoding/json"
	"net/http"
	"strings"

	"revitmcp/internal/repo"
	"revitmcp/internal/runner"
)

type providerSettingView struct {
	APIKey    string `json:"api_key"`
	BaseURL   string `json:"base_url,omitempty"`
	TimeoutMS int    `json:"timeout_ms,omitempty"`
}

type settingsView struct {
	Providers   map[string]providerSettingView `json:"providers"`
	Preferences repo.Preferences               `json:"preferences"`
}

// handleGetSettings returns the stored settings with API keys masked.
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	out := settingsView{Providers: map[string]providerSettingView{}}
	s.store.Read(func(state *repo.State) {
		for id, setting := range state.Providers {
			out.Providers[id] = providerSettingView{
				APIKey:    maskKey(setting.APIKey),
				BaseURL:   setting.BaseURL,
				TimeoutMS: setting.TimeoutMS,
			}
		}
		out.Preferences = state.Preferences
	})
	writeJSON(w, http.StatusOK, out)
}

type settingsUpdate struct {
	Providers   map[string]repo.ProviderSetting `json:"providers,omitempty"`
	Preferences *repo.Preferences               `json:"preferences,omitempty"`
}

// handleUpdateSettings merges the submitted providers and preferences into
// the stored state. Submitting a provider with an empty api_key removes it.
func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json", "invalid request body", nil)
		return
	}
	for id := range req.Providers {
		if !validAdapterID(id) {
			writeErr(w, http.StatusBadRequest, "invalid_provider", "unknown provider adapter "+id, nil)
			return
		}
	}
	err := s.store.Write(func(state *repo.State) error {
		for id, setting := range req.Providers {
			if strings.TrimSpace(setting.APIKey) == "" {
				delete(state.Providers, id)
				continue
			}
			state.Providers[id] = setting
		}
		if req.Preferences != nil {
			prefs := *req.Preferences
			if prefs.DefaultModel == "" {
				prefs.DefaultModel = state.Preferences.DefaultModel
			}
			if prefs.MaxToolTurns <= 0 {
				prefs.MaxToolTurns = state.Preferences.MaxToolTurns
			}
			state.Preferences = prefs
		}
		return nil
	})
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "store_error", err.Error(), nil)
		return
	}
	s.handleGetSettings(w, r)
}

func validAdapterID(id string) bool {
	switch id {
	case runner.AdapterOpenAI, runner.AdapterAnthropic, runner.AdapterGoogle, runner.AdapterOllama:
		return true
	default:
		return false
	}
}

func maskKey(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 6 {
		return "***"
	}
	return s[:3] + "***" + s[len(s)-3:]
}
