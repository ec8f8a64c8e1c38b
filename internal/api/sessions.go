package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/hearth/internal/store"
	"github.com/MikeSquared-Agency/hearth/internal/survey"
)

type startRequest struct {
	UserID string `json:"user_id"`
}

type startResponse struct {
	SessionID string `json:"session_id"`
	Greeting  string `json:"greeting"`
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respond(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.UserID == "" {
		s.respond(w, http.StatusBadRequest, map[string]string{"error": "user_id is required"})
		return
	}

	sess, greeting, err := s.orch.Start(r.Context(), req.UserID)
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respond(w, http.StatusCreated, startResponse{SessionID: sess.ID, Greeting: greeting})
}

type turnRequest struct {
	UserID string `json:"user_id"`
	Text   string `json:"text"`
}

type turnResponse struct {
	Reply       string          `json:"reply"`
	Committed   []applianceView `json:"committed,omitempty"`
	Diagnostics []string        `json:"diagnostics,omitempty"`
	Done        bool            `json:"done"`
}

type applianceView struct {
	RecordID   int64  `json:"record_id"`
	Name       string `json:"name"`
	PowerWatts int    `json:"power_watts"`
	FuncTime   int    `json:"func_time_minutes"`
	NumWindows int    `json:"num_windows"`
}

func (s *Server) postTurn(w http.ResponseWriter, r *http.Request) {
	var req turnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respond(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return
	}
	if req.UserID == "" || req.Text == "" {
		s.respond(w, http.StatusBadRequest, map[string]string{"error": "user_id and text are required"})
		return
	}

	result, err := s.orch.HandleTurn(r.Context(), chi.URLParam(r, "sessionID"), req.UserID, req.Text)
	if err != nil {
		s.respondErr(w, err)
		return
	}

	resp := turnResponse{
		Reply:       result.Reply,
		Diagnostics: result.Diagnostics,
		Done:        result.Done,
	}
	for _, a := range result.Committed {
		resp.Committed = append(resp.Committed, applianceView{
			RecordID:   a.ID,
			Name:       a.Name,
			PowerWatts: a.Power,
			FuncTime:   a.FuncTime,
			NumWindows: a.NumWindows,
		})
	}
	s.respond(w, http.StatusOK, resp)
}

type abandonRequest struct {
	Reason string `json:"reason"`
}

func (s *Server) abandonSession(w http.ResponseWriter, r *http.Request) {
	var req abandonRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	if req.Reason == "" {
		req.Reason = "unspecified"
	}

	if err := s.orch.Abandon(r.Context(), chi.URLParam(r, "sessionID"), req.Reason); err != nil {
		s.respondErr(w, err)
		return
	}
	s.respond(w, http.StatusOK, map[string]string{"status": string(survey.StatusAbandoned)})
}

type historyTurn struct {
	Order     int             `json:"order"`
	Role      string          `json:"role"`
	Text      string          `json:"text"`
	Extracted json.RawMessage `json:"extracted,omitempty"`
}

func (s *Server) sessionHistory(w http.ResponseWriter, r *http.Request) {
	turns, err := s.history.History(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondErr(w, err)
		return
	}

	out := make([]historyTurn, 0, len(turns))
	for _, t := range turns {
		out = append(out, historyTurn{
			Order:     t.Order,
			Role:      string(t.Role),
			Text:      t.Text,
			Extracted: t.Extracted,
		})
	}
	s.respond(w, http.StatusOK, map[string]any{"turns": out})
}

func (s *Server) sessionSchedule(w http.ResponseWriter, r *http.Request) {
	analysis, err := s.orch.Schedule(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respond(w, http.StatusOK, analysis)
}

func (s *Server) sessionExport(w http.ResponseWriter, r *http.Request) {
	export, err := s.orch.Export(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		s.respondErr(w, err)
		return
	}
	s.respond(w, http.StatusOK, export)
}

func isNotFound(err error) bool {
	return errors.Is(err, store.ErrNotFound)
}
