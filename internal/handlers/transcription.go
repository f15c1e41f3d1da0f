package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	apperrors "transcript-tool/internal/errors"
	"transcript-tool/internal/models"
	"transcript-tool/internal/services"
)

type jobStore interface {
	Create(ctx context.Context, j *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

type jobQueue interface {
	Enqueue(ctx context.Context, job *models.Job) error
}

type TranscriptionHandler struct {
	sessions    sessionChecker
	jobs        jobStore
	queue       jobQueue
	storagePath string
	maxUpload   int64
}

func NewTranscriptionHandler(sessions sessionChecker, jobs jobStore, queue jobQueue, storagePath string, maxUploadMB int) *TranscriptionHandler {
	return &TranscriptionHandler{
		sessions:    sessions,
		jobs:        jobs,
		queue:       queue,
		storagePath: storagePath,
		maxUpload:   int64(maxUploadMB) * 1024 * 1024,
	}
}

type transcriptionRequest struct {
	URL            string `json:"url"`
	SourceLanguage string `json:"source_language"`
	TargetLanguage string `json:"target_language"`
}

// Submit accepts either a multipart upload in "file" or a JSON body naming a URL,
// and queues a transcription job for the session.
func (h *TranscriptionHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")
	if !requireSession(w, r, h.sessions, sessionID) {
		return
	}

	var job *models.Job
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		job, err = h.fromUpload(w, r)
	} else {
		job, err = h.fromURL(r)
	}
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	job.SessionID = sessionID

	if err := h.jobs.Create(r.Context(), job); err != nil {
		h.discard(job)
		handleServiceError(w, r, err)
		return
	}
	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		log.Printf("failed to enqueue job %s: %v", job.ID, err)
		h.discard(job)
		writeJSON(w, http.StatusServiceUnavailable, errorResp("QUEUE_UNAVAILABLE", "Could not queue the transcription, please try again", r))
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"job_id": job.ID,
		"status": job.Status,
	})
}

func (h *TranscriptionHandler) fromURL(r *http.Request) (*models.Job, error) {
	var req transcriptionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "Invalid request body")
	}
	ref := strings.TrimSpace(req.URL)
	if ref == "" {
		return nil, apperrors.New(apperrors.KindInvalidArgument, "A video URL is required")
	}
	kind := services.Classify(ref)
	if kind == models.SourceUpload || kind == models.SourceUnrecognized {
		return nil, apperrors.New(apperrors.KindUnrecognizedSource, "Unsupported video URL")
	}
	return &models.Job{
		SourceKind:     kind,
		Reference:      ref,
		DisplayName:    ref,
		SourceLanguage: models.SourceLanguage(req.SourceLanguage),
		TargetLanguage: models.TargetLanguage(req.TargetLanguage),
	}, nil
}

func (h *TranscriptionHandler) fromUpload(w http.ResponseWriter, r *http.Request) (*models.Job, error) {
	if r.ContentLength > h.maxUpload {
		return nil, apperrors.Newf(apperrors.KindTooLarge, "File size exceeds %dMB limit", h.maxUpload/(1024*1024))
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, apperrors.Newf(apperrors.KindTooLarge, "File size exceeds %dMB limit", h.maxUpload/(1024*1024))
		}
		return nil, apperrors.New(apperrors.KindInvalidArgument, "No file provided")
	}
	defer file.Close()

	dir := filepath.Join(h.storagePath, "uploads")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "failed to prepare upload storage")
	}
	staged := filepath.Join(dir, uuid.NewString()+strings.ToLower(filepath.Ext(header.Filename)))
	out, err := os.Create(staged)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "failed to stage upload")
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		os.Remove(staged)
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "failed to stage upload")
	}
	if err := out.Close(); err != nil {
		os.Remove(staged)
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "failed to stage upload")
	}

	name := filepath.Base(header.Filename)
	return &models.Job{
		SourceKind:     models.SourceUpload,
		Reference:      name,
		DisplayName:    name,
		StagedPath:     &staged,
		SourceLanguage: models.SourceLanguage(r.FormValue("source_language")),
		TargetLanguage: models.TargetLanguage(r.FormValue("target_language")),
	}, nil
}

func (h *TranscriptionHandler) discard(job *models.Job) {
	if job.StagedPath == nil {
		return
	}
	if err := os.Remove(*job.StagedPath); err != nil && !os.IsNotExist(err) {
		log.Printf("failed to remove staged upload %s: %v", *job.StagedPath, err)
	}
}

// GetJob reports the status of a queued transcription.
func (h *TranscriptionHandler) GetJob(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResp("INVALID_ARGUMENT", "Invalid job ID", r))
		return
	}
	job, err := h.jobs.GetByID(r.Context(), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	job.StagedPath = nil
	writeJSON(w, http.StatusOK, job)
}
