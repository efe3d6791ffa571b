package app

import (
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	cronv3 "github.com/robfig/cron/v3"

	"revitmcp/internal/domain"
	"revitmcp/internal/repo"
)

type scheduleRequest struct {
	Name        string                `json:"name"`
	Enabled     *bool                 `json:"enabled,omitempty"`
	Cron        string                `json:"cron"`
	UserRequest string                `json:"user_request"`
	Plan        []domain.WorkflowStep `json:"plan"`
}

func (req scheduleRequest) validate() (string, bool) {
	if strings.TrimSpace(req.Name) == "" {
		return "name is required", false
	}
	if strings.TrimSpace(req.Cron) == "" {
		return "cron is required", false
	}
	if _, err := cronv3.ParseStandard(req.Cron); err != nil {
		return "invalid cron expression: " + err.Error(), false
	}
	if len(req.Plan) == 0 {
		return "plan needs at least one step", false
	}
	return "", true
}

func (s *Server) listSchedules(w http.ResponseWriter, r *http.Request) {
	var out []domain.WorkflowScheduleView
	s.store.Read(func(state *repo.State) {
		for id, spec := range state.Schedules {
			out = append(out, domain.WorkflowScheduleView{
				Spec:  spec,
				State: state.ScheduleStates[id],
			})
		}
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Spec.CreatedAt < out[j].Spec.CreatedAt })
	writeJSON(w, http.StatusOK, map[string]interface{}{"schedules": out})
}

func (s *Server) createSchedule(w http.ResponseWriter, r *http.Request) {
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json", "invalid request body", nil)
		return
	}
	if msg, ok := req.validate(); !ok {
		writeErr(w, http.StatusBadRequest, "invalid_schedule", msg, nil)
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}
	spec := domain.WorkflowSchedule{
		ID:          newID("sched"),
		Name:        strings.TrimSpace(req.Name),
		Enabled:     enabled,
		Cron:        strings.TrimSpace(req.Cron),
		UserRequest: strings.TrimSpace(req.UserRequest),
		Plan:        req.Plan,
		CreatedAt:   nowISO(),
		UpdatedAt:   nowISO(),
	}
	if err := s.store.Write(func(state *repo.State) error {
		state.Schedules[spec.ID] = spec
		return nil
	}); err != nil {
		writeErr(w, http.StatusInternalServerError, "store_error", err.Error(), nil)
		return
	}
	writeJSON(w, http.StatusCreated, spec)
}

func (s *Server) getSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var view domain.WorkflowScheduleView
	found := false
	s.store.Read(func(state *repo.State) {
		spec, ok := state.Schedules[id]
		if !ok {
			return
		}
		view = domain.WorkflowScheduleView{Spec: spec, State: state.ScheduleStates[id]}
		found = true
	})
	if !found {
		writeErr(w, http.StatusNotFound, "schedule_not_found", "no schedule with that id", nil)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) updateSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req scheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json", "invalid request body", nil)
		return
	}
	if msg, ok := req.validate(); !ok {
		writeErr(w, http.StatusBadRequest, "invalid_schedule", msg, nil)
		return
	}

	var updated domain.WorkflowSchedule
	found := false
	err := s.store.Write(func(state *repo.State) error {
		spec, ok := state.Schedules[id]
		if !ok {
			return nil
		}
		spec.Name = strings.TrimSpace(req.Name)
		spec.Cron = strings.TrimSpace(req.Cron)
		spec.UserRequest = strings.TrimSpace(req.UserRequest)
		spec.Plan = req.Plan
		if req.Enabled != nil {
			spec.Enabled = *req.Enabled
		}
		spec.UpdatedAt = nowISO()
		state.Schedules[id] = spec
		// Cron change invalidates the computed next run.
		st := state.ScheduleStates[id]
		st.NextRunAt = ""
		state.ScheduleStates[id] = st
		updated = spec
		found = true
		return nil
	})
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "store_error", err.Error(), nil)
		return
	}
	if !found {
		writeErr(w, http.StatusNotFound, "schedule_not_found", "no schedule with that id", nil)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) deleteSchedule(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	found := false
	err := s.store.Write(func(state *repo.State) error {
		if _, ok := state.Schedules[id]; ok {
			delete(state.Schedules, id)
			delete(state.ScheduleStates, id)
			found = true
		}
		return nil
	})
	if err != nil {
		writeErr(w, http.StatusInternalServerError, "store_error", err.Error(), nil)
		return
	}
	if !found {
		writeErr(w, http.StatusNotFound, "schedule_not_found", "no schedule with that id", nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) runScheduleNow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var spec domain.WorkflowSchedule
	found := false
	s.store.Read(func(state *repo.State) {
		spec, found = state.Schedules[id]
	})
	if !found {
		writeErr(w, http.StatusNotFound, "schedule_not_found", "no schedule with that id", nil)
		return
	}
	result := s.executeSchedule(r.Context(), spec)
	writeJSON(w, http.StatusOK, result)
}
