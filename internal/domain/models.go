package domain

// Envelope is the uniform response shape used on both sides of the bridge:
// the Revit listener returns it, the bridge client normalizes every failure
// into it, and tool wrappers hand it back to the LLM adapters verbatim.
type Envelope map[string]interface{}

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

func SuccessEnvelope(data map[string]interface{}) Envelope {
	out := Envelope{"status": StatusSuccess}
	for k, v := range data {
		out[k] = v
	}
	return out
}

func ErrorEnvelope(message string) Envelope {
	return Envelope{"status": StatusError, "message": message}
}

func (e Envelope) Status() string {
	s, _ := e["status"].(string)
	return s
}

func (e Envelope) IsSuccess() bool {
	return e.Status() == StatusSuccess
}

func (e Envelope) Message() string {
	m, _ := e["message"].(string)
	return m
}

// StringIDs extracts a []string from an envelope field that may have been
// decoded as []interface{} (JSON) or produced natively as []string.
func (e Envelope) StringIDs(key string) []string {
	switch v := e[key].(type) {
	case []string:
		return v
	case []interface{}:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

type APIErrorBody struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// ChatMessage is one turn of the web chat conversation as the UI sends it.
// The UI historically uses role "bot" for assistant turns.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ChatRequest struct {
	Conversation []ChatMessage `json:"conversation"`
	APIKey       string        `json:"apiKey"`
	Model        string        `json:"model"`
}

type ChatResponse struct {
	Reply       string `json:"reply"`
	ImageOutput string `json:"image_output,omitempty"`
	ErrorDetail string `json:"error_detail,omitempty"`
}

// WorkflowStep is one planned tool invocation inside an execution plan.
type WorkflowStep struct {
	Tool        string                 `json:"tool"`
	Params      map[string]interface{} `json:"params"`
	Description string                 `json:"description,omitempty"`
}

const (
	StepPending   = "pending"
	StepCompleted = "completed"
	StepError     = "error"
)

type WorkflowStepResult struct {
	StepNumber  int         `json:"step_number"`
	Tool        string      `json:"tool"`
	Description string      `json:"description"`
	Status      string      `json:"status"`
	Error       string      `json:"error,omitempty"`
	Result      interface{} `json:"result"`
}

const (
	WorkflowSuccess = "success"
	WorkflowPartial = "partial"
	WorkflowFailed  = "failed"
	WorkflowError   = "error"
)

// WorkflowRecord aggregates one planner invocation. It lives for a single
// request/response cycle and is never persisted.
type WorkflowRecord struct {
	UserRequest   string               `json:"user_request"`
	PlannedSteps  int                  `json:"planned_steps"`
	ExecutedSteps []WorkflowStepResult `json:"executed_steps"`
	StepResults   []interface{}        `json:"step_results"`
	FinalStatus   string               `json:"final_status"`
	Summary       string               `json:"summary"`
	Error         string               `json:"error,omitempty"`
}

// WorkflowSchedule is a saved execution plan that the gateway runs on a cron
// schedule.
type WorkflowSchedule struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	Enabled     bool           `json:"enabled"`
	Cron        string         `json:"cron"`
	UserRequest string         `json:"user_request"`
	Plan        []WorkflowStep `json:"plan"`
	CreatedAt   string         `json:"created_at"`
	UpdatedAt   string         `json:"updated_at"`
}

type WorkflowScheduleState struct {
	NextRunAt  string `json:"next_run_at,omitempty"`
	LastRunAt  string `json:"last_run_at,omitempty"`
	LastStatus string `json:"last_status,omitempty"`
	LastError  string `json:"last_error,omitempty"`
}

type WorkflowScheduleView struct {
	Spec  WorkflowSchedule      `json:"spec"`
	State WorkflowScheduleState `json:"state"`
}

// ParameterFilter is one parameter condition of an /elements/filter request.
type ParameterFilter struct {
	Name      string `json:"name"`
	Value     string `json:"value"`
	Condition string `json:"condition,omitempty"`
}

type FilterRequest struct {
	CategoryName string            `json:"category_name"`
	LevelName    string            `json:"level_name,omitempty"`
	Parameters   []ParameterFilter `json:"parameters,omitempty"`
}

type PropertiesRequest struct {
	ElementIDs     []string `json:"element_ids"`
	ParameterNames []string `json:"parameter_names,omitempty"`
}

// ParameterUpdate assigns new raw values to named parameters of one element.
type ParameterUpdate struct {
	ElementID  string                 `json:"element_id"`
	Parameters map[string]interface{} `json:"parameters"`
}

type UpdateRequest struct {
	Updates []ParameterUpdate `json:"updates"`
}
