package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"transcript-tool/internal/models"
)

type sessionStore interface {
	Create(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
	GetByID(ctx context.Context, id string) (*models.Session, error)
	Delete(ctx context.Context, id string) error
}

type SessionHandler struct {
	sessions sessionStore
}

func NewSessionHandler(sessions sessionStore) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	id := models.NewSessionID()
	if err := h.sessions.Create(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	session, err := h.sessions.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, session)
}

func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	session, err := h.sessions.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, session)
}

func (h *SessionHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !requireSession(w, r, h.sessions, id) {
		return
	}
	if err := h.sessions.Delete(r.Context(), id); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sessionChecker interface {
	Exists(ctx context.Context, id string) (bool, error)
}

// requireSession writes a 404 and returns false when the session does not exist.
func requireSession(w http.ResponseWriter, r *http.Request, sessions sessionChecker, id string) bool {
	exists, err := sessions.Exists(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return false
	}
	if !exists {
		writeJSON(w, http.StatusNotFound, errorResp("NOT_FOUND", "Session not found", r))
		return false
	}
	return true
}
