package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobPending    = "pending"
	JobProcessing = "processing"
	JobCompleted  = "completed"
	JobFailed     = "failed"
)

// Job is a queued transcription request. Staged uploads live under the storage path
// until a worker picks the job up.
type Job struct {
	ID             uuid.UUID  `json:"id"`
	SessionID      string     `json:"session_id"`
	SourceKind     SourceKind `json:"source_kind"`
	Reference      string     `json:"reference"`
	DisplayName    string     `json:"display_name"`
	StagedPath     *string    `json:"staged_path,omitempty"`
	SourceLanguage string     `json:"source_language"`
	TargetLanguage string     `json:"target_language"`
	Status         string     `json:"status"` // "pending" | "processing" | "completed" | "failed"
	Progress       float64    `json:"progress"`
	Attempts       int        `json:"attempts"`
	ErrorKind      *string    `json:"error_kind"`
	ErrorMessage   *string    `json:"error_message"`
	TranscriptID   *uuid.UUID `json:"transcript_id"`
	CreatedAt      time.Time  `json:"created_at"`
	CompletedAt    *time.Time `json:"completed_at"`
}

// WebSocket message types
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type ProgressEvent struct {
	JobID    uuid.UUID `json:"job_id"`
	Fraction float64   `json:"fraction"`
	Stage    string    `json:"stage"`
	Message  string    `json:"message"`
}

type CompletedEvent struct {
	JobID        uuid.UUID `json:"job_id"`
	TranscriptID uuid.UUID `json:"transcript_id"`
}

type ErrorEvent struct {
	JobID        uuid.UUID `json:"job_id"`
	ErrorCode    string    `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
}

// API Error response
type APIError struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id"`
}

type ErrorResponse struct {
	Error APIError `json:"error"`
}
