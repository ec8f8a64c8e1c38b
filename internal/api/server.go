// Package api exposes the survey service over HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/hearth/internal/interview"
	"github.com/MikeSquared-Agency/hearth/internal/report"
	"github.com/MikeSquared-Agency/hearth/internal/schedule"
	"github.com/MikeSquared-Agency/hearth/internal/survey"
)

// Orchestrator is the interview surface the handlers call.
// *interview.Interviewer satisfies it.
type Orchestrator interface {
	Start(ctx context.Context, userID string) (survey.Session, string, error)
	HandleTurn(ctx context.Context, sessionID, userID, text string) (*interview.TurnResult, error)
	Abandon(ctx context.Context, sessionID, reason string) error
	Export(ctx context.Context, sessionID string) (report.Export, error)
	Schedule(ctx context.Context, sessionID string) (schedule.Analysis, error)
}

// History reads the recorded conversation for audit endpoints.
type History interface {
	History(ctx context.Context, sessionID string) ([]survey.Turn, error)
}

type Server struct {
	router  *chi.Mux
	port    int
	orch    Orchestrator
	history History
	logger  *slog.Logger
}

func NewServer(port int, orch Orchestrator, history History, logger *slog.Logger) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:  router,
		port:    port,
		orch:    orch,
		history: history,
		logger:  logger,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/status", s.status)

	router.Route("/api/v1/sessions", func(r chi.Router) {
		r.Post("/", s.startSession)
		r.Post("/{sessionID}/turns", s.postTurn)
		r.Post("/{sessionID}/abandon", s.abandonSession)
		r.Get("/{sessionID}/history", s.sessionHistory)
		r.Get("/{sessionID}/schedule", s.sessionSchedule)
		r.Get("/{sessionID}/export", s.sessionExport)
	})

	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) status(w http.ResponseWriter, r *http.Request) {
	s.respond(w, http.StatusOK, map[string]string{
		"service": "hearth",
		"status":  "ok",
	})
}

func (s *Server) respond(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}

// respondErr maps diagnostics to client-facing statuses: lifecycle
// conflicts are 409, field problems 422, missing rows 404, and anything
// else is an internal fault.
func (s *Server) respondErr(w http.ResponseWriter, err error) {
	if diag, ok := survey.AsDiagnostic(err); ok {
		code := http.StatusUnprocessableEntity
		if diag.Code == survey.CodeSessionClosed || diag.Code == survey.CodeInvalidUserState {
			code = http.StatusConflict
		}
		s.respond(w, code, map[string]string{
			"error": diag.Error(),
			"code":  string(diag.Code),
		})
		return
	}
	if isNotFound(err) {
		s.respond(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	s.logger.Error("request failed", "error", err)
	s.respond(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
}
