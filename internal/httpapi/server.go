// Package httpapi exposes the session engine to an external UI: commands as
// POSTs, a snapshot endpoint, and a server-sent-events stream of state
// changes. One user, one session; there is no session addressing.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/hperssn/breathe/internal/domain"
	"github.com/hperssn/breathe/internal/engine"
)

type Server struct {
	engine *engine.Engine
	log    *slog.Logger
}

func New(eng *engine.Engine, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{engine: eng, log: log}
}

func (s *Server) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Post("/session/start", s.startSession)
	r.Post("/session/retention/end", s.endRetention)
	r.Post("/session/stop", s.stopSession)
	r.Get("/session", s.getSession)
	r.Get("/session/summary", s.getSummary)
	r.Get("/session/events", s.streamEvents)

	r.Get("/settings", s.getSettings)
	r.Put("/settings", s.putSettings)

	return r
}

func (s *Server) startSession(w http.ResponseWriter, r *http.Request) {
	if err := s.engine.Start(); err != nil {
		if errors.Is(err, engine.ErrSessionActive) {
			s.respondError(w, err.Error(), http.StatusConflict)
			return
		}
		s.respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.respondJSON(w, s.engine.Snapshot(), http.StatusCreated)
}

func (s *Server) endRetention(w http.ResponseWriter, r *http.Request) {
	// A no-op outside retention, mirroring the engine contract.
	if err := s.engine.EndRetention(); err != nil {
		s.respondError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	s.respondJSON(w, s.engine.Snapshot(), http.StatusOK)
}

func (s *Server) stopSession(w http.ResponseWriter, r *http.Request) {
	s.engine.Stop()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, s.engine.Snapshot(), http.StatusOK)
}

func (s *Server) getSummary(w http.ResponseWriter, r *http.Request) {
	sum, ok := s.engine.Summary()
	if !ok {
		s.respondError(w, "session not completed", http.StatusNotFound)
		return
	}
	s.respondJSON(w, sum, http.StatusOK)
}

func (s *Server) getSettings(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, s.engine.Settings(), http.StatusOK)
}

func (s *Server) putSettings(w http.ResponseWriter, r *http.Request) {
	var settings domain.Settings
	if err := json.NewDecoder(r.Body).Decode(&settings); err != nil {
		s.respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if err := s.engine.UpdateSettings(settings); err != nil {
		if errors.Is(err, engine.ErrSessionActive) {
			s.respondError(w, err.Error(), http.StatusConflict)
			return
		}
		s.respondError(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.respondJSON(w, settings, http.StatusOK)
}

func (s *Server) respondJSON(w http.ResponseWriter, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("failed to encode response", "error", err)
	}
}

func (s *Server) respondError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
