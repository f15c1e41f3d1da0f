package models

import (
	"time"

	"github.com/google/uuid"
)

const TranscriptCompleted = "completed"

// TranscriptRecord is written once when a transcription succeeds and never updated.
type TranscriptRecord struct {
	ID             uuid.UUID  `json:"id"`
	SessionID      string     `json:"session_id"`
	VideoName      string     `json:"video_name"`
	SourceKind     SourceKind `json:"source_kind"`
	SourceURL      *string    `json:"source_url"`
	SourceLanguage string     `json:"source_language"`
	TargetLanguage string     `json:"target_language"`
	FileSizeBytes  int64      `json:"file_size_bytes"`
	MediaKind      MediaKind  `json:"media_kind"`
	Method         string     `json:"method"`
	Text           string     `json:"text"`
	Status         string     `json:"status"`
	CreatedAt      time.Time  `json:"created_at"`
}
