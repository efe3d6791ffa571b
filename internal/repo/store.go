// Package repo persists gateway settings as a JSON state file under the
// data dir: provider credentials, chat preferences and saved workflow
// schedules.
package repo

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"revitmcp/internal/domain"
)

type ProviderSetting struct {
	APIKey    string `json:"api_key"`
	BaseURL   string `json:"base_url,omitempty"`
	TimeoutMS int    `json:"timeout_ms,omitempty"`
}

type Preferences struct {
	DefaultModel string `json:"default_model"`
	// MaxToolTurns caps the tool-call loop per chat request.
	MaxToolTurns int `json:"max_tool_turns"`
}

type State struct {
	Providers      map[string]ProviderSetting              `json:"providers"`
	Preferences    Preferences                             `json:"preferences"`
	Schedules      map[string]domain.WorkflowSchedule      `json:"schedules"`
	ScheduleStates map[string]domain.WorkflowScheduleState `json:"schedule_states"`
}

type Store struct {
	mu        sync.RWMutex
	state     State
	stateFile string
}

func NewStore(dataDir string) (*Store, error) {
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, err
	}
	s := &Store{
		stateFile: filepath.Join(dataDir, "state.json"),
		state:     defaultState(),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func defaultState() State {
	return State{
		Providers: map[string]ProviderSetting{},
		Preferences: Preferences{
			DefaultModel: "echo_model",
			MaxToolTurns: 8,
		},
		Schedules:      map[string]domain.WorkflowSchedule{},
		ScheduleStates: map[string]domain.WorkflowScheduleState{},
	}
}

func (s *Store) load() error {
	b, err := os.ReadFile(s.stateFile)
	if errors.Is(err, os.ErrNotExist) {
		return s.saveLocked()
	}
	if err != nil {
		return err
	}
	var state State
	if err := json.Unmarshal(b, &state); err != nil {
		return err
	}
	if state.Providers == nil {
		state.Providers = map[string]ProviderSetting{}
	}
	if state.Schedules == nil {
		state.Schedules = map[string]domain.WorkflowSchedule{}
	}
	if state.ScheduleStates == nil {
		state.ScheduleStates = map[string]domain.WorkflowScheduleState{}
	}
	if state.Preferences.DefaultModel == "" {
		state.Preferences.DefaultModel = "echo_model"
	}
	if state.Preferences.MaxToolTurns <= 0 {
		state.Preferences.MaxToolTurns = 8
	}
	s.state = state
	return nil
}

func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

func (s *Store) saveLocked() error {
	b, err := json.MarshalIndent(s.state, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(s.stateFile, b, 0o644)
}

func (s *Store) Read(fn func(state *State)) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	fn(&s.state)
}

func (s *Store) Write(fn func(state *State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := fn(&s.state); err != nil {
		return err
	}
	return s.saveLocked()
}

// APIKeyForAdapter returns the stored key for a provider adapter ID, or ""
// when none is configured.
func (s *Store) APIKeyForAdapter(adapterID string) string {
	var key string
	s.Read(func(state *State) {
		key = state.Providers[adapterID].APIKey
	})
	return key
}
