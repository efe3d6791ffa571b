// Package workflow executes multi-step tool plans produced by the LLM
// planner. Steps run in order, failures are contained per step, and later
// steps can reference earlier results through placeholders.
package workflow

import (
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"revitmcp/internal/domain"
)

// ToolFunc is one dispatchable tool. It receives decoded JSON params and
// returns a result envelope; it must not panic, but the executor guards
// against it anyway.
type ToolFunc func(params map[string]interface{}) map[string]interface{}

// placeholderRe matches ${step_N_field} references to earlier step results.
var placeholderRe = regexp.MustCompile(`\$\{step_(\d+)_([^}]+)\}`)

type Executor struct {
	registry map[string]ToolFunc
	logger   *log.Logger
}

func NewExecutor(logger *log.Logger) *Executor {
	if logger == nil {
		logger = log.Default()
	}
	return &Executor{
		registry: make(map[string]ToolFunc),
		logger:   logger,
	}
}

// Register adds a tool under its dispatch name. Later registrations replace
// earlier ones.
func (e *Executor) Register(name string, fn ToolFunc) {
	e.registry[name] = fn
}

// Tools returns the registered tool names, for error messages and planning.
func (e *Executor) Tools() []string {
	out := make([]string, 0, len(e.registry))
	for name := range e.registry {
		out = append(out, name)
	}
	return out
}

// Execute runs the plan. Every step is attempted: a failing step is recorded
// and execution moves on, so one bad step cannot sink the steps after it
// unless they reference its results.
func (e *Executor) Execute(userRequest string, steps []domain.WorkflowStep) domain.WorkflowRecord {
	rec := domain.WorkflowRecord{
		UserRequest:  userRequest,
		PlannedSteps: len(steps),
	}
	if len(steps) == 0 {
		rec.FinalStatus = domain.WorkflowError
		rec.Error = "workflow plan contains no steps"
		rec.Summary = "Nothing to execute: the plan was empty."
		return rec
	}

	// Results of completed steps, 1-based by step number.
	results := make(map[int]map[string]interface{})
	succeeded := 0
	totalElements := 0

	for i, step := range steps {
		stepNum := i + 1
		res := domain.WorkflowStepResult{
			StepNumber:  stepNum,
			Tool:        step.Tool,
			Description: step.Description,
		}

		params := e.substituteParams(step.Params, results)
		out, err := e.runStep(step.Tool, params)
		if err == nil {
			results[stepNum] = out
			res.Status = domain.StepCompleted
			res.Result = out
			succeeded++
			totalElements += countElements(out)
		} else {
			res.Status = domain.StepError
			res.Error = err.Error()
			e.logger.Printf("workflow step %d (%s) failed: %v", stepNum, step.Tool, err)
		}
		rec.ExecutedSteps = append(rec.ExecutedSteps, res)
		rec.StepResults = append(rec.StepResults, res.Result)
	}

	switch {
	case succeeded == len(steps):
		rec.FinalStatus = domain.WorkflowSuccess
	case succeeded > 0:
		rec.FinalStatus = domain.WorkflowPartial
	default:
		rec.FinalStatus = domain.WorkflowFailed
	}
	rec.Summary = summarize(succeeded, len(steps), totalElements)
	return rec
}

// runStep dispatches one tool call, converting a panic into a step error.
func (e *Executor) runStep(tool string, params map[string]interface{}) (out map[string]interface{}, err error) {
	fn, ok := e.registry[tool]
	if !ok {
		return nil, fmt.Errorf("unknown tool %q", tool)
	}
	defer func() {
		if r := recover(); r != nil {
			out = nil
			err = fmt.Errorf("tool %q panicked: %v", tool, r)
		}
	}()
	out = fn(params)
	if status, _ := out["status"].(string); status == domain.StatusError {
		msg, _ := out["message"].(string)
		if msg == "" {
			msg = "tool reported an error"
		}
		return nil, fmt.Errorf("%s", msg)
	}
	return out, nil
}

// substituteParams resolves ${step_N_field} references against completed
// step results. A string that is exactly one placeholder is replaced by the
// referenced value with its original type; placeholders embedded in longer
// strings are interpolated as text. A reference that does not resolve is
// left verbatim with a logged warning, and the step still runs.
func (e *Executor) substituteParams(params map[string]interface{}, results map[int]map[string]interface{}) map[string]interface{} {
	if params == nil {
		return map[string]interface{}{}
	}
	return e.substituteValue(params, results).(map[string]interface{})
}

func (e *Executor) substituteValue(v interface{}, results map[int]map[string]interface{}) interface{} {
	switch x := v.(type) {
	case string:
		return e.substituteString(x, results)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(x))
		for k, item := range x {
			out[k] = e.substituteValue(item, results)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, item := range x {
			out[i] = e.substituteValue(item, results)
		}
		return out
	default:
		return v
	}
}

func (e *Executor) substituteString(s string, results map[int]map[string]interface{}) interface{} {
	m := placeholderRe.FindStringSubmatch(s)
	if m != nil && m[0] == s {
		// Whole-string reference keeps the referenced value's type.
		val, err := lookupReference(m[1], m[2], results)
		if err != nil {
			e.logger.Printf("workflow: leaving %s unresolved: %v", s, err)
			return s
		}
		return val
	}

	return placeholderRe.ReplaceAllStringFunc(s, func(match string) string {
		sm := placeholderRe.FindStringSubmatch(match)
		val, err := lookupReference(sm[1], sm[2], results)
		if err != nil {
			e.logger.Printf("workflow: leaving %s unresolved: %v", match, err)
			return match
		}
		return fmt.Sprintf("%v", val)
	})
}

// lookupReference reads a field from an earlier step's result, checking the
// top level first and then one level under "data".
func lookupReference(stepStr, field string, results map[int]map[string]interface{}) (interface{}, error) {
	stepNum, err := strconv.Atoi(stepStr)
	if err != nil {
		return nil, fmt.Errorf("invalid step reference %q", stepStr)
	}
	res, ok := results[stepNum]
	if !ok {
		return nil, fmt.Errorf("reference to step %d, which has no result", stepNum)
	}
	if val, ok := res[field]; ok {
		return val, nil
	}
	if data, ok := res["data"].(map[string]interface{}); ok {
		if val, ok := data[field]; ok {
			return val, nil
		}
	}
	return nil, fmt.Errorf("step %d result has no field %q", stepNum, field)
}

// countElements estimates how many elements a step touched, for the summary
// line.
func countElements(result map[string]interface{}) int {
	if ids, ok := result["element_ids"].([]interface{}); ok {
		return len(ids)
	}
	if ids, ok := result["element_ids"].([]string); ok {
		return len(ids)
	}
	switch n := result["count"].(type) {
	case int:
		return n
	case float64:
		return int(n)
	}
	if els, ok := result["elements"].([]interface{}); ok {
		return len(els)
	}
	return 0
}

func summarize(succeeded, total, elements int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Executed %d of %d steps successfully.", succeeded, total)
	if elements > 0 {
		fmt.Fprintf(&b, " Touched %d elements across completed steps.", elements)
	}
	return b.String()
}
