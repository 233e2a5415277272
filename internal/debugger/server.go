package debugger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chriserin/pickle/internal/executor"
	"github.com/chriserin/pickle/internal/parser"
	"github.com/chriserin/pickle/internal/step"
	"github.com/chriserin/pickle/internal/suite"
)

const maxBody = 1 << 20

// Runner is the part of a suite the debugger drives.
type Runner interface {
	Feature() *parser.Feature
	RunStep(ctx context.Context, scenarioID, stepID int, c *step.Context) (*executor.StepOutcome, error)
}

// Server lets a client walk through the loaded feature one step at a time.
// All steps run against one shared variable bag that the client can read,
// extend and reset.
type Server struct {
	runner    Runner
	logger    *slog.Logger
	sessionID string

	mu   sync.Mutex
	vars *step.Context
}

func New(runner Runner, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		runner:    runner,
		logger:    logger,
		sessionID: uuid.New().String(),
		vars:      step.NewContext(),
	}
}

func (s *Server) SessionID() string { return s.sessionID }

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.RegisterRoutes(mux)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, maxBody)
		w.Header().Set("X-Pickle-Session", s.sessionID)
		mux.ServeHTTP(w, r)
	})
}

func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /api/feature", s.handleFeature)
	mux.HandleFunc("GET /api/feature/variables", s.handleGetVariables)
	mux.HandleFunc("POST /api/feature/variables", s.handleMergeVariables)
	mux.HandleFunc("DELETE /api/feature/variables", s.handleResetVariables)
	mux.HandleFunc("POST /api/scenarios/{scenarioID}/steps/{stepID}", s.handleRunStep)
}

// ListenAndServe serves until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string, ready func(net.Addr)) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", addr, err)
	}
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(ln)
	}()
	s.logger.Info("debugger listening", "addr", ln.Addr().String(), "session", s.sessionID)
	if ready != nil {
		ready(ln.Addr())
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down debugger: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "session": s.sessionID})
}

func (s *Server) handleFeature(w http.ResponseWriter, _ *http.Request) {
	f := s.runner.Feature()
	if f == nil {
		writeError(w, http.StatusConflict, "NO_FEATURE", suite.ErrNoFeature.Error())
		return
	}
	writeJSON(w, http.StatusOK, f)
}

func (s *Server) handleGetVariables(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.context().Variables())
}

type variablesRequest struct {
	Variables map[string]any `json:"variables"`
}

func (s *Server) handleMergeVariables(w http.ResponseWriter, r *http.Request) {
	var req variablesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	if req.Variables == nil {
		writeError(w, http.StatusBadRequest, "INVALID_VARIABLES", `"variables" must be an object`)
		return
	}
	c := s.context()
	c.Merge(req.Variables)
	writeJSON(w, http.StatusOK, c.Variables())
}

func (s *Server) handleResetVariables(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	s.vars = step.NewContext()
	s.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

type stepResponse struct {
	ScenarioID int             `json:"scenarioId"`
	StepID     int             `json:"stepId"`
	Status     executor.Status `json:"status"`
	Error      string          `json:"error,omitempty"`
	DurationMs int64           `json:"durationMs"`
}

func (s *Server) handleRunStep(w http.ResponseWriter, r *http.Request) {
	scenarioID, err := strconv.Atoi(r.PathValue("scenarioID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", fmt.Sprintf("invalid scenario id %q", r.PathValue("scenarioID")))
		return
	}
	stepID, err := strconv.Atoi(r.PathValue("stepID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_ID", fmt.Sprintf("invalid step id %q", r.PathValue("stepID")))
		return
	}

	o, err := s.runner.RunStep(r.Context(), scenarioID, stepID, s.context())
	switch {
	case errors.Is(err, suite.ErrNotFound):
		writeError(w, http.StatusNotFound, "NOT_FOUND", err.Error())
		return
	case errors.Is(err, suite.ErrNoFeature):
		writeError(w, http.StatusConflict, "NO_FEATURE", err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "RUN_ERROR", err.Error())
		return
	}

	resp := stepResponse{
		ScenarioID: scenarioID,
		StepID:     stepID,
		Status:     o.Status,
		DurationMs: o.Duration.Milliseconds(),
	}
	if o.Err != nil {
		resp.Error = o.Err.Error()
	}
	s.logger.Info("step executed", "scenario", scenarioID, "step", o.Step.Line(), "status", o.Status.String())
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) context() *step.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vars
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, apiError{Error: apiErrorBody{Code: code, Message: message}})
}
