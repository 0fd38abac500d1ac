package kernel

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/oapi-codegen/runtime"

	"github.com/manthysbr/aulesql/internal/config"
	"github.com/manthysbr/aulesql/internal/core/domain"
	"github.com/manthysbr/aulesql/internal/core/services"
)

//go:embed openapi.yaml
var openAPISpec []byte

// RunHistory is the persisted run history (DuckDB). Optional.
type RunHistory interface {
	ListTraces(ctx context.Context, limit int) ([]domain.TraceSummary, error)
	GetTrace(ctx context.Context, id domain.TraceID) (*domain.Trace, error)
}

type Server struct {
	logger    *slog.Logger
	agent     atomic.Pointer[services.ReActAgentService]
	explorer  *services.SchemaExplorer
	tracer    *services.TraceCollector
	history   RunHistory
	eventBus  *services.EventBus
	settings  *config.SettingsStore // optional
	validator *requestValidator
}

// NewServer wires the HTTP API. history and settings may be nil.
func NewServer(
	logger *slog.Logger,
	agent *services.ReActAgentService,
	explorer *services.SchemaExplorer,
	tracer *services.TraceCollector,
	history RunHistory,
	eventBus *services.EventBus,
	settings *config.SettingsStore,
) (*Server, error) {
	validator, err := newRequestValidator(openAPISpec)
	if err != nil {
		return nil, err
	}
	s := &Server{
		logger:    logger,
		explorer:  explorer,
		tracer:    tracer,
		history:   history,
		eventBus:  eventBus,
		settings:  settings,
		validator: validator,
	}
	s.agent.Store(agent)
	return s, nil
}

// SwapAgent replaces the agent used by new requests. Runs in flight keep the
// agent they started with.
func (s *Server) SwapAgent(agent *services.ReActAgentService) {
	s.agent.Store(agent)
	s.logger.Info("agent reconfigured")
}

// Handler returns the http.Handler for the server.
// Every request is validated against the embedded OpenAPI document first.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /v1/ask", s.handleAsk)
	mux.HandleFunc("GET /v1/tools", s.handleListTools)
	mux.HandleFunc("GET /v1/schema", s.handleSchema)
	mux.HandleFunc("GET /v1/runs", s.handleListRuns)
	mux.HandleFunc("GET /v1/runs/{id}", s.handleGetRun)
	mux.HandleFunc("GET /v1/runs/{id}/events", s.handleRunEvents)
	mux.HandleFunc("GET /v1/settings", s.handleGetSettings)
	mux.HandleFunc("PUT /v1/settings", s.handleUpdateSettings)

	return s.validator.middleware(s.logger, mux)
}

type askRequest struct {
	Question string `json:"question"`
	RunID    string `json:"run_id,omitempty"`
}

// handleAsk runs the agent synchronously. Every outcome is a 200; the outcome
// field tells them apart. Clients that want live steps pick a run_id and
// subscribe to /v1/runs/{id}/events before posting.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	runID := domain.RunID(req.RunID)
	if runID == "" {
		runID = domain.NewRunID()
	}

	result := s.agent.Load().RunWithID(r.Context(), runID, question)
	writeJSON(w, http.StatusOK, result)
}

type toolView struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Input       string `json:"input,omitempty"`
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	catalog, err := s.agent.Load().Catalog()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]toolView, 0, catalog.Len())
	for _, t := range catalog.ListTools() {
		out = append(out, toolView{Name: t.Name, Description: t.Description, Input: t.InputShape})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	tables, err := s.explorer.Explore(r.Context())
	if err != nil {
		s.logger.Error("schema exploration failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, tables)
}

// handleListRuns prefers the persisted history and falls back to the
// in-memory trace buffer.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.history != nil {
		runs, err := s.history.ListTraces(r.Context(), limit)
		if err == nil {
			writeJSON(w, http.StatusOK, runs)
			return
		}
		s.logger.Warn("run history unavailable, using memory", "error", err)
	}
	writeJSON(w, http.StatusOK, s.tracer.ListTraces(limit))
}

func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	id, ok := bindRunID(w, r)
	if !ok {
		return
	}

	if trace, err := s.tracer.GetTrace(domain.TraceID(id)); err == nil {
		writeJSON(w, http.StatusOK, trace)
		return
	}
	if s.history != nil {
		if trace, err := s.history.GetTrace(r.Context(), domain.TraceID(id)); err == nil {
			writeJSON(w, http.StatusOK, trace)
			return
		}
	}
	writeError(w, http.StatusNotFound, "run not found: "+id)
}

// bindRunID reads the {id} path parameter, writing a 400 when it is unusable
func bindRunID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "id", r.PathValue("id"), &id, runtime.BindStyledParameterOptions{
		ParamLocation: runtime.ParamLocationPath,
		Required:      true,
	})
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run id: "+err.Error())
		return "", false
	}
	return id, true
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotFound, "settings are not persisted in this mode")
		return
	}
	writeJSON(w, http.StatusOK, s.settings.GetMaskedConfig())
}

func (s *Server) handleUpdateSettings(w http.ResponseWriter, r *http.Request) {
	if s.settings == nil {
		writeError(w, http.StatusNotFound, "settings are not persisted in this mode")
		return
	}

	update := s.settings.GetConfig()
	if err := json.NewDecoder(r.Body).Decode(update); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if err := s.settings.UpdateConfig(r.Context(), update); err != nil {
		var cfgErr *domain.ConfigError
		if errors.As(err, &cfgErr) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s.settings.GetMaskedConfig())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
