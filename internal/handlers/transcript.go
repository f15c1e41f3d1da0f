package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"transcript-tool/internal/models"
	"transcript-tool/internal/services"
)

type transcriptStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.TranscriptRecord, error)
	ListBySession(ctx context.Context, sessionID string) ([]*models.TranscriptRecord, error)
}

type TranscriptHandler struct {
	sessions    sessionChecker
	transcripts transcriptStore
}

func NewTranscriptHandler(sessions sessionChecker, transcripts transcriptStore) *TranscriptHandler {
	return &TranscriptHandler{sessions: sessions, transcripts: transcripts}
}

func (h *TranscriptHandler) List(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if !requireSession(w, r, h.sessions, sessionID) {
		return
	}
	records, err := h.transcripts.ListBySession(r.Context(), sessionID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if records == nil {
		records = []*models.TranscriptRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"session_id":  sessionID,
		"transcripts": records,
	})
}

// Export renders one transcript as a downloadable document.
func (h *TranscriptHandler) Export(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("INVALID_ARGUMENT", "Invalid transcript ID", r))
		return
	}
	record, err := h.transcripts.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "" {
		format = services.FormatDOCX
	}
	body, contentType, err := services.RenderDocument(record.Text, services.DocumentMeta{
		VideoName:      record.VideoName,
		SourceLanguage: record.SourceLanguage,
		TargetLanguage: record.TargetLanguage,
		CreatedAt:      record.CreatedAt,
	}, format)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="transcript_%s.%s"`, record.ID.String()[:8], format))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
