package listener

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"revitmcp/internal/domain"
	"revitmcp/internal/observability"
	"revitmcp/internal/revit"
)

// RoutePrefix is the version prefix all listener routes live under. The
// bridge client probes it during port detection.
const RoutePrefix = "/revit-mcp-v1"

// Server is the Revit-side route layer. It owns no document state of its
// own; everything goes through the session.
type Server struct {
	session revit.Session
	logger  *log.Logger
}

func NewServer(session revit.Session, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{session: session, logger: logger}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(observability.RequestID)
	r.Use(observability.Logging)

	r.Route(RoutePrefix, func(r chi.Router) {
		r.Get("/project_info", s.handleProjectInfo)
		r.Post("/select_elements_by_id", s.handleSelectByID)
		r.Post("/select_elements_by_category", s.handleSelectByCategory)
		r.Post("/select_elements_focused", s.handleSelectFocused)
		r.Post("/get_elements_by_category", s.handleGetByCategory)
		r.Post("/elements/filter", s.handleFilter)
		r.Post("/elements/get_properties", s.handleGetProperties)
		r.Post("/elements/update_parameters", s.handleUpdateParameters)
		r.Post("/export_revit_view", s.handleExportView)
	})
	return r
}

func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, domain.ErrorEnvelope(message))
}

// writeSessionError maps session errors onto the listener's status contract.
func writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, revit.ErrNoDocument):
		writeError(w, http.StatusServiceUnavailable, "no active Revit document")
	case errors.Is(err, revit.ErrElementNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return errors.New("empty request body")
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}
