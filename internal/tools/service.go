// Package tools implements the dispatchable Revit tools the LLM can call.
// Each tool wraps a listener route, the element storage cache, or the
// workflow executor, and always returns an envelope rather than an error.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"

	"revitmcp/internal/bridge"
	"revitmcp/internal/domain"
	"revitmcp/internal/storage"
	"revitmcp/internal/workflow"
)

type toolFn func(ctx context.Context, params map[string]interface{}) map[string]interface{}

type Service struct {
	bridge *bridge.Client
	cache  *storage.Cache
	logger *log.Logger
	byName map[string]toolFn
}

func NewService(client *bridge.Client, cache *storage.Cache, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	s := &Service{
		bridge: client,
		cache:  cache,
		logger: logger,
	}
	s.byName = map[string]toolFn{
		"get_revit_project_info":    s.projectInfo,
		"get_elements_by_category":  s.elementsByCategory,
		"select_elements_by_id":     s.selectByID,
		"select_stored_elements":    s.selectStored,
		"list_stored_elements":      s.listStored,
		"filter_elements":           s.filterElements,
		"get_element_properties":    s.elementProperties,
		"update_element_parameters": s.updateParameters,
		"export_revit_view":         s.exportView,
		"plan_and_execute_workflow": s.planAndExecute,
	}
	return s
}

// Dispatch runs one named tool. Unknown names come back as error envelopes
// so the result can go straight into a tool-result message.
func (s *Service) Dispatch(ctx context.Context, name string, params map[string]interface{}) map[string]interface{} {
	fn, ok := s.byName[name]
	if !ok {
		return domain.ErrorEnvelope(fmt.Sprintf("unknown tool %q", name))
	}
	if params == nil {
		params = map[string]interface{}{}
	}
	s.logger.Printf("tool dispatch name=%s", name)
	return fn(ctx, params)
}

func (s *Service) projectInfo(ctx context.Context, _ map[string]interface{}) map[string]interface{} {
	return s.bridge.Call(ctx, http.MethodGet, "/project_info", nil)
}

func (s *Service) elementsByCategory(ctx context.Context, params map[string]interface{}) map[string]interface{} {
	category := stringParam(params, "category_name")
	if category == "" {
		return domain.ErrorEnvelope("category_name is required")
	}
	env := s.bridge.Call(ctx, http.MethodPost, "/get_elements_by_category",
		map[string]string{"category_name": category})
	if !env.IsSuccess() {
		return env
	}
	entry := s.cache.Store(category, canonicalCategory(env, category),
		"get_elements_by_category", env.StringIDs("element_ids"))
	env["storage_key"] = entry.Key
	return env
}

func (s *Service) selectByID(ctx context.Context, params map[string]interface{}) map[string]interface{} {
	ids, ok := params["element_ids"]
	if !ok {
		return domain.ErrorEnvelope("element_ids is required")
	}
	return s.bridge.Call(ctx, http.MethodPost, "/select_elements_by_id",
		map[string]interface{}{"element_ids": ids})
}

func (s *Service) selectStored(ctx context.Context, params map[string]interface{}) map[string]interface{} {
	name := stringParam(params, "storage_name")
	if name == "" {
		return domain.ErrorEnvelope("storage_name is required")
	}
	entry, ok := s.cache.Resolve(name)
	if !ok {
		return domain.Envelope{
			"status":         domain.StatusError,
			"message":        fmt.Sprintf("no stored element set matches %q", name),
			"available_keys": storedKeys(s.cache),
		}
	}

	// Selection from storage always zooms the view to the result.
	env := s.bridge.Call(ctx, http.MethodPost, "/select_elements_focused",
		map[string]interface{}{"element_ids": entry.ElementIDs})
	if env.IsSuccess() {
		env["source"] = "storage"
		env["matched_key"] = entry.Key
		env["stored_count"] = entry.Count
		env["stored_at"] = entry.StoredAt.Format("2006-01-02T15:04:05Z07:00")
	}
	return env
}

func (s *Service) listStored(_ context.Context, _ map[string]interface{}) map[string]interface{} {
	entries := s.cache.List()
	sets := make([]map[string]interface{}, 0, len(entries))
	for _, e := range entries {
		sets = append(sets, map[string]interface{}{
			"key":       e.Key,
			"label":     e.Label,
			"category":  e.Category,
			"count":     e.Count,
			"source":    e.Source,
			"stored_at": e.StoredAt.Format("2006-01-02T15:04:05Z07:00"),
		})
	}
	return domain.SuccessEnvelope(map[string]interface{}{
		"count":       len(sets),
		"stored_sets": sets,
	})
}

func (s *Service) filterElements(ctx context.Context, params map[string]interface{}) map[string]interface{} {
	category := stringParam(params, "category_name")
	if category == "" {
		return domain.ErrorEnvelope("category_name is required")
	}
	payload := map[string]interface{}{"category_name": category}
	level := stringParam(params, "level_name")
	if level != "" {
		payload["level_name"] = level
	}
	filters, hasFilters := params["parameters"]
	if hasFilters {
		payload["parameters"] = filters
	}

	env := s.bridge.Call(ctx, http.MethodPost, "/elements/filter", payload)
	if !env.IsSuccess() {
		return env
	}

	// Filtered sets get qualified labels so they do not clobber the plain
	// category set.
	label := category
	if level != "" {
		label += " " + level
	}
	if hasFilters {
		label += " filtered"
	}
	entry := s.cache.Store(label, canonicalCategory(env, category),
		"filter_elements", env.StringIDs("element_ids"))
	env["storage_key"] = entry.Key
	return env
}

func (s *Service) elementProperties(ctx context.Context, params map[string]interface{}) map[string]interface{} {
	ids, ok := params["element_ids"]
	if !ok {
		return domain.ErrorEnvelope("element_ids is required")
	}
	payload := map[string]interface{}{"element_ids": ids}
	if names, ok := params["parameter_names"]; ok {
		payload["parameter_names"] = names
	}
	return s.bridge.Call(ctx, http.MethodPost, "/elements/get_properties", payload)
}

func (s *Service) updateParameters(ctx context.Context, params map[string]interface{}) map[string]interface{} {
	updates, ok := params["updates"]
	if !ok {
		return domain.ErrorEnvelope("updates is required")
	}
	return s.bridge.Call(ctx, http.MethodPost, "/elements/update_parameters",
		map[string]interface{}{"updates": updates})
}

func (s *Service) exportView(ctx context.Context, params map[string]interface{}) map[string]interface{} {
	viewName := stringParam(params, "view_name")
	if viewName == "" {
		return domain.ErrorEnvelope("view_name is required")
	}
	return s.bridge.Call(ctx, http.MethodPost, "/export_revit_view",
		map[string]string{"view_name": viewName})
}

func (s *Service) planAndExecute(ctx context.Context, params map[string]interface{}) map[string]interface{} {
	userRequest := stringParam(params, "user_request")
	steps, err := decodeSteps(params["steps"])
	if err != nil {
		return domain.ErrorEnvelope(err.Error())
	}

	exec := workflow.NewExecutor(s.logger)
	for name := range s.byName {
		if name == "plan_and_execute_workflow" {
			// Workflows do not nest.
			continue
		}
		toolName := name
		exec.Register(toolName, func(p map[string]interface{}) map[string]interface{} {
			return s.Dispatch(ctx, toolName, p)
		})
	}

	rec := exec.Execute(userRequest, steps)
	out := map[string]interface{}{
		"status":         domain.StatusSuccess,
		"user_request":   rec.UserRequest,
		"planned_steps":  rec.PlannedSteps,
		"executed_steps": rec.ExecutedSteps,
		"final_status":   rec.FinalStatus,
		"summary":        rec.Summary,
	}
	if rec.FinalStatus == domain.WorkflowError {
		out["status"] = domain.StatusError
		out["message"] = rec.Error
	}
	return out
}

func decodeSteps(raw interface{}) ([]domain.WorkflowStep, error) {
	if raw == nil {
		return nil, fmt.Errorf("steps is required")
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("steps is not encodable: %v", err)
	}
	var steps []domain.WorkflowStep
	if err := json.Unmarshal(buf, &steps); err != nil {
		return nil, fmt.Errorf("steps must be a list of {tool, params, description} objects")
	}
	return steps, nil
}

func stringParam(params map[string]interface{}, key string) string {
	v, _ := params[key].(string)
	return strings.TrimSpace(v)
}

// canonicalCategory prefers the canonical name the listener resolved.
func canonicalCategory(env domain.Envelope, fallback string) string {
	if c, ok := env["category"].(string); ok && c != "" {
		return c
	}
	return fallback
}

func storedKeys(cache *storage.Cache) []string {
	entries := cache.List()
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	return keys
}
