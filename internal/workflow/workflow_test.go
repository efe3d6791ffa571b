package workflow

import (
	"testing"

	"github.com/stretchr/testify/require"

	"revitmcp/internal/domain"
)

func newTestExecutor() *Executor {
	e := NewExecutor(nil)
	e.Register("list_windows", func(params map[string]interface{}) map[string]interface{} {
		return map[string]interface{}{
			"status":      "success",
			"element_ids": []interface{}{"1001", "1002"},
			"count":       2,
		}
	})
	e.Register("echo", func(params map[string]interface{}) map[string]interface{} {
		out := map[string]interface{}{"status": "success"}
		for k, v := range params {
			out[k] = v
		}
		return out
	})
	e.Register("always_fails", func(params map[string]interface{}) map[string]interface{} {
		return map[string]interface{}{"status": "error", "message": "boom"}
	})
	e.Register("panics", func(params map[string]interface{}) map[string]interface{} {
		panic("unexpected")
	})
	return e
}

func TestExecuteAllSuccess(t *testing.T) {
	e := newTestExecutor()
	rec := e.Execute("select the windows", []domain.WorkflowStep{
		{Tool: "list_windows"},
		{Tool: "echo", Params: map[string]interface{}{
			"element_ids": "${step_1_element_ids}",
		}},
	})
	require.Equal(t, domain.WorkflowSuccess, rec.FinalStatus)
	require.Len(t, rec.ExecutedSteps, 2)

	// Whole-string placeholder keeps the slice type.
	second := rec.ExecutedSteps[1].Result.(map[string]interface{})
	require.Equal(t, []interface{}{"1001", "1002"}, second["element_ids"])
	require.Contains(t, rec.Summary, "2 of 2")
}

func TestExecuteInterpolatesEmbeddedPlaceholder(t *testing.T) {
	e := newTestExecutor()
	rec := e.Execute("report", []domain.WorkflowStep{
		{Tool: "list_windows"},
		{Tool: "echo", Params: map[string]interface{}{
			"note": "found ${step_1_count} windows",
		}},
	})
	require.Equal(t, domain.WorkflowSuccess, rec.FinalStatus)
	second := rec.ExecutedSteps[1].Result.(map[string]interface{})
	require.Equal(t, "found 2 windows", second["note"])
}

func TestExecutePartialOnStepError(t *testing.T) {
	e := newTestExecutor()
	rec := e.Execute("mixed", []domain.WorkflowStep{
		{Tool: "list_windows"},
		{Tool: "always_fails"},
		{Tool: "echo"},
	})
	require.Equal(t, domain.WorkflowPartial, rec.FinalStatus)
	require.Equal(t, domain.StepError, rec.ExecutedSteps[1].Status)
	require.Equal(t, "boom", rec.ExecutedSteps[1].Error)
	require.Equal(t, domain.StepCompleted, rec.ExecutedSteps[2].Status)
}

func TestExecuteFailedWhenNothingSucceeds(t *testing.T) {
	e := newTestExecutor()
	rec := e.Execute("doomed", []domain.WorkflowStep{
		{Tool: "always_fails"},
		{Tool: "no_such_tool"},
	})
	require.Equal(t, domain.WorkflowFailed, rec.FinalStatus)
	require.Contains(t, rec.ExecutedSteps[1].Error, "unknown tool")
}

func TestExecuteRecoversFromPanic(t *testing.T) {
	e := newTestExecutor()
	rec := e.Execute("crashy", []domain.WorkflowStep{
		{Tool: "panics"},
		{Tool: "list_windows"},
	})
	require.Equal(t, domain.WorkflowPartial, rec.FinalStatus)
	require.Contains(t, rec.ExecutedSteps[0].Error, "panicked")
	require.Equal(t, domain.StepCompleted, rec.ExecutedSteps[1].Status)
}

func TestExecuteEmptyPlan(t *testing.T) {
	e := newTestExecutor()
	rec := e.Execute("nothing", nil)
	require.Equal(t, domain.WorkflowError, rec.FinalStatus)
	require.NotEmpty(t, rec.Error)
}

func TestReferenceToFailedStepLeftVerbatim(t *testing.T) {
	e := newTestExecutor()
	rec := e.Execute("chained", []domain.WorkflowStep{
		{Tool: "always_fails"},
		{Tool: "echo", Params: map[string]interface{}{
			"element_ids": "${step_1_element_ids}",
		}},
	})
	// The unresolved reference does not sink step 2; the token passes
	// through verbatim.
	require.Equal(t, domain.WorkflowPartial, rec.FinalStatus)
	require.Equal(t, domain.StepCompleted, rec.ExecutedSteps[1].Status)
	second := rec.ExecutedSteps[1].Result.(map[string]interface{})
	require.Equal(t, "${step_1_element_ids}", second["element_ids"])
}

func TestReferenceToMissingFieldLeftVerbatim(t *testing.T) {
	e := newTestExecutor()
	rec := e.Execute("bad field", []domain.WorkflowStep{
		{Tool: "list_windows"},
		{Tool: "echo", Params: map[string]interface{}{
			"x":    "${step_1_nonexistent}",
			"note": "ids: ${step_1_nonexistent}",
		}},
	})
	require.Equal(t, domain.WorkflowSuccess, rec.FinalStatus)
	second := rec.ExecutedSteps[1].Result.(map[string]interface{})
	require.Equal(t, "${step_1_nonexistent}", second["x"])
	require.Equal(t, "ids: ${step_1_nonexistent}", second["note"])
}

func TestReferenceResolvesUnderData(t *testing.T) {
	e := newTestExecutor()
	e.Register("nested", func(params map[string]interface{}) map[string]interface{} {
		return map[string]interface{}{
			"status": "success",
			"data":   map[string]interface{}{"view_name": "Level 1"},
		}
	})
	rec := e.Execute("nested", []domain.WorkflowStep{
		{Tool: "nested"},
		{Tool: "echo", Params: map[string]interface{}{
			"view": "${step_1_view_name}",
		}},
	})
	require.Equal(t, domain.WorkflowSuccess, rec.FinalStatus)
	second := rec.ExecutedSteps[1].Result.(map[string]interface{})
	require.Equal(t, "Level 1", second["view"])
}
