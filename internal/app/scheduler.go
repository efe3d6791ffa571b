package app

import (
	"context"
	"time"

	cronv3 "github.com/robfig/cron/v3"

	"revitmcp/internal/domain"
	"revitmcp/internal/repo"
)

const schedulerTickInterval = time.Second

func (s *Server) startScheduler() {
	go func() {
		defer close(s.schedDone)
		s.schedulerTick(time.Now().UTC())

		ticker := time.NewTicker(schedulerTickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.schedulerTick(time.Now().UTC())
			case <-s.schedStop:
				return
			}
		}
	}()
}

// schedulerTick computes next-run times for enabled schedules and fires the
// ones that have come due since the previous tick.
func (s *Server) schedulerTick(now time.Time) {
	type dueRun struct {
		spec domain.WorkflowSchedule
	}
	var due []dueRun
	stateUpdates := map[string]domain.WorkflowScheduleState{}

	s.store.Read(func(state *repo.State) {
		for id, spec := range state.Schedules {
			st := state.ScheduleStates[id]
			if !spec.Enabled {
				if st.NextRunAt != "" {
					st.NextRunAt = ""
					stateUpdates[id] = st
				}
				continue
			}
			sched, err := cronv3.ParseStandard(spec.Cron)
			if err != nil {
				if st.LastError != err.Error() {
					st.LastError = err.Error()
					st.NextRunAt = ""
					stateUpdates[id] = st
				}
				continue
			}

			if st.NextRunAt == "" {
				st.NextRunAt = sched.Next(now).Format(time.RFC3339)
				stateUpdates[id] = st
				continue
			}
			nextRun, perr := time.Parse(time.RFC3339, st.NextRunAt)
			if perr != nil {
				st.NextRunAt = sched.Next(now).Format(time.RFC3339)
				stateUpdates[id] = st
				continue
			}
			if !now.Before(nextRun) {
				due = append(due, dueRun{spec: spec})
				st.NextRunAt = sched.Next(now).Format(time.RFC3339)
				stateUpdates[id] = st
			}
		}
	})

	if len(stateUpdates) > 0 {
		if err := s.store.Write(func(state *repo.State) error {
			for id, st := range stateUpdates {
				if _, ok := state.Schedules[id]; !ok {
					continue
				}
				state.ScheduleStates[id] = st
			}
			return nil
		}); err != nil {
			s.logger.Printf("scheduler state update failed: %v", err)
			return
		}
	}

	for _, d := range due {
		s.schedWG.Add(1)
		go func(spec domain.WorkflowSchedule) {
			defer s.schedWG.Done()
			s.executeSchedule(context.Background(), spec)
		}(d.spec)
	}
}

// executeSchedule runs the saved plan through the workflow tool, records the
// outcome, and broadcasts it on the event hub.
func (s *Server) executeSchedule(ctx context.Context, spec domain.WorkflowSchedule) map[string]interface{} {
	s.logger.Printf("schedule %s (%s) running", spec.ID, spec.Name)
	steps := make([]interface{}, 0, len(spec.Plan))
	for _, step := range spec.Plan {
		steps = append(steps, map[string]interface{}{
			"tool":        step.Tool,
			"params":      step.Params,
			"description": step.Description,
		})
	}
	out := s.tools.Dispatch(ctx, "plan_and_execute_workflow", map[string]interface{}{
		"user_request": spec.UserRequest,
		"steps":        steps,
	})

	finalStatus, _ := out["final_status"].(string)
	if finalStatus == "" {
		finalStatus = domain.WorkflowError
	}
	lastError := ""
	if msg, _ := out["message"].(string); msg != "" {
		lastError = msg
	}
	if err := s.store.Write(func(state *repo.State) error {
		if _, ok := state.Schedules[spec.ID]; !ok {
			return nil
		}
		st := state.ScheduleStates[spec.ID]
		st.LastRunAt = nowISO()
		st.LastStatus = finalStatus
		st.LastError = lastError
		state.ScheduleStates[spec.ID] = st
		return nil
	}); err != nil {
		s.logger.Printf("schedule %s state update failed: %v", spec.ID, err)
	}

	s.hub.Broadcast("schedule_run", map[string]interface{}{
		"schedule_id":  spec.ID,
		"name":         spec.Name,
		"final_status": finalStatus,
	})
	return out
}
