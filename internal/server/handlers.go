package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"TweetWatch/internal/domain"
	"TweetWatch/internal/usecase"
)

type errorResponse struct {
	Error string `json:"error"`
}

type startResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type queryRequest struct {
	Account string `json:"account"`
	Query   string `json:"query"`
}

// ReminderView is the wire form of a registered reminder.
type ReminderView struct {
	EntityID     string    `json:"entity_id"`
	Name         string    `json:"name"`
	DueTime      string    `json:"due_time"`
	Period       string    `json:"period"`
	RegisteredAt time.Time `json:"registered_at"`
	NextFire     time.Time `json:"next_fire"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// entityIDMiddleware rejects ids outside the entity id alphabet before any
// mailbox is activated for them.
func (s *Server) entityIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := domain.ValidateEntityID(chi.URLParam(r, "id")); err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := s.watches.Start(r.Context(), id)
	if errors.Is(err, usecase.ErrAlreadyStarted) {
		writeJSON(w, http.StatusConflict, startResponse{ID: id, Status: "already_started"})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, startResponse{ID: id, Status: "started"})
}

func (s *Server) handleConfigure(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}

	q := domain.WatchQuery{Account: req.Account, Query: req.Query}
	if err := s.watches.Configure(r.Context(), chi.URLParam(r, "id"), q); err != nil {
		s.writeError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	batch, ok, err := s.watches.Snapshot(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "watch has not started"})
		return
	}

	writeJSON(w, http.StatusOK, batch)
}

func (s *Server) handleReminder(w http.ResponseWriter, r *http.Request) {
	rem, ok, err := s.watches.Reminder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "no reminder registered"})
		return
	}

	writeJSON(w, http.StatusOK, ReminderView{
		EntityID:     rem.EntityID,
		Name:         rem.Name,
		DueTime:      rem.DueTime.String(),
		Period:       rem.Period.String(),
		RegisteredAt: rem.RegisteredAt,
		NextFire:     rem.NextFire(time.Now()),
	})
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, usecase.ErrInvalidQuery):
		status = http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		status = http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		status = http.StatusServiceUnavailable
	}

	if status == http.StatusInternalServerError {
		s.log.Error("request failed", "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
