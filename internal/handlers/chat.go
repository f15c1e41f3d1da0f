package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"transcript-tool/internal/models"
)

type replier interface {
	Reply(ctx context.Context, sessionID, message string) (*models.Message, error)
}

type messageStore interface {
	ListBySession(ctx context.Context, sessionID string) ([]*models.Message, error)
	DeleteBySession(ctx context.Context, sessionID string) error
}

type ChatHandler struct {
	sessions sessionChecker
	messages messageStore
	chat     replier
}

func NewChatHandler(sessions sessionChecker, messages messageStore, chat replier) *ChatHandler {
	return &ChatHandler{sessions: sessions, messages: messages, chat: chat}
}

func (h *ChatHandler) AskQuestion(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var req models.ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("INVALID_ARGUMENT", "Invalid request body", r))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeJSON(w, http.StatusBadRequest, errorResp("INVALID_ARGUMENT", "Message is required", r))
		return
	}
	if !requireSession(w, r, h.sessions, sessionID) {
		return
	}

	reply, err := h.chat.Reply(r.Context(), sessionID, req.Message)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, models.ChatResponse{Reply: reply.Content})
}

func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if !requireSession(w, r, h.sessions, sessionID) {
		return
	}
	msgs, err := h.messages.ListBySession(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"messages": msgs})
}

func (h *ChatHandler) ClearMessages(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if !requireSession(w, r, h.sessions, sessionID) {
		return
	}
	if err := h.messages.DeleteBySession(r.Context(), sessionID); err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
