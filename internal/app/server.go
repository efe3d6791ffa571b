package app

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"revitmcp/internal/bridge"
	"revitmcp/internal/config"
	"revitmcp/internal/domain"
	"revitmcp/internal/observability"
	"revitmcp/internal/repo"
	"revitmcp/internal/runner"
	"revitmcp/internal/storage"
	"revitmcp/internal/tools"
)

const version = "0.1.0"

// Server is the gateway process: it serves the chat API, dispatches tools
// over the bridge, and runs saved workflow schedules.
type Server struct {
	cfg    config.Config
	store  *repo.Store
	runner *runner.Runner
	bridge *bridge.Client
	cache  *storage.Cache
	tools  *tools.Service
	hub    *Hub
	logger *log.Logger

	schedStop chan struct{}
	schedDone chan struct{}
	schedWG   sync.WaitGroup
	closeOnce sync.Once
}

func NewServer(cfg config.Config) (*Server, error) {
	store, err := repo.NewStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	logger := log.Default()
	client := bridge.NewClient(cfg.ListenerHost, cfg.ListenerPorts, bridge.WithLogger(logger))
	cache := storage.NewCache()

	srv := &Server{
		cfg:       cfg,
		store:     store,
		runner:    runner.New(),
		bridge:    client,
		cache:     cache,
		tools:     tools.NewService(client, cache, logger),
		hub:       NewHub(logger),
		logger:    logger,
		schedStop: make(chan struct{}),
		schedDone: make(chan struct{}),
	}
	srv.startScheduler()
	return srv, nil
}

func (s *Server) Close() {
	s.closeOnce.Do(func() {
		close(s.schedStop)
		<-s.schedDone
		s.schedWG.Wait()
	})
}

func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(observability.RequestID)
	r.Use(observability.Logging)
	r.Use(cors)

	r.Get("/", s.handleIndex)
	r.Get("/version", s.handleVersion)
	r.Get("/healthz", s.handleHealthz)
	r.Get("/test_log", s.handleTestLog)

	r.Get("/settings", s.handleGetSettings)
	r.Put("/settings", s.handleUpdateSettings)

	r.Post("/chat_api", s.handleChatAPI)
	r.Post("/send_revit_command", s.handleSendRevitCommand)
	r.Get("/storage", s.handleStorage)

	r.Route("/workflows/schedules", func(r chi.Router) {
		r.Get("/", s.listSchedules)
		r.Post("/", s.createSchedule)
		r.Get("/{id}", s.getSchedule)
		r.Put("/{id}", s.updateSchedule)
		r.Delete("/{id}", s.deleteSchedule)
		r.Post("/{id}/run", s.runScheduleNow)
	})

	r.Get("/ws/events", s.hub.handleWS)

	return r
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": version})
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"ok":           true,
		"listener_url": s.bridge.BaseURL(),
	})
}

// handleTestLog emits a few lines so log shipping can be checked end to end.
func (s *Server) handleTestLog(w http.ResponseWriter, r *http.Request) {
	s.logger.Printf("test_log: info line")
	s.logger.Printf("test_log: warning line")
	s.logger.Printf("test_log: error line")
	writeJSON(w, http.StatusOK, map[string]bool{"logged": true})
}

func (s *Server) handleStorage(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"stored_sets": s.cache.List(),
	})
}

// handleSendRevitCommand is the legacy pass-through: it forwards an
// arbitrary listener call without tool mediation.
func (s *Server) handleSendRevitCommand(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Method  string                 `json:"method"`
		Path    string                 `json:"path"`
		Payload map[string]interface{} `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, "invalid_json", "invalid request body", nil)
		return
	}
	if req.Path == "" {
		writeErr(w, http.StatusBadRequest, "invalid_command", "path is required", nil)
		return
	}
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}
	var payload interface{}
	if req.Payload != nil {
		payload = req.Payload
	}
	env := s.bridge.Call(r.Context(), method, req.Path, payload)
	writeJSON(w, http.StatusOK, env)
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization,X-Request-Id")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func writeErr(w http.ResponseWriter, code int, errCode, message string, details interface{}) {
	writeJSON(w, code, domain.APIErrorBody{Error: domain.APIError{Code: errCode, Message: message, Details: details}})
}

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func newID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}
