package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	apperrors "transcript-tool/internal/errors"
	"transcript-tool/internal/models"
)

const transcriptColumns = `id, session_id, video_name, source_kind, source_url, source_language,
	target_language, file_size_bytes, media_kind, method, text, status, created_at`

type TranscriptRepo struct {
	pool Pool
}

func NewTranscriptRepo(pool Pool) *TranscriptRepo {
	return &TranscriptRepo{pool: pool}
}

// Create stores a finished transcript. Records are append-only.
func (r *TranscriptRepo) Create(ctx context.Context, t *models.TranscriptRecord) error {
	t.ID = uuid.New()
	if t.Status == "" {
		t.Status = models.TranscriptCompleted
	}

	query := `INSERT INTO transcripts (id, session_id, video_name, source_kind, source_url, source_language,
		target_language, file_size_bytes, media_kind, method, text, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		t.ID, t.SessionID, t.VideoName, string(t.SourceKind), t.SourceURL, t.SourceLanguage,
		t.TargetLanguage, t.FileSizeBytes, string(t.MediaKind), t.Method, t.Text, t.Status,
	).Scan(&t.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindInternal, "failed to save transcript")
	}
	return nil
}

func (r *TranscriptRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.TranscriptRecord, error) {
	row := r.pool.QueryRow(ctx, "SELECT "+transcriptColumns+" FROM transcripts WHERE id = $1", id)
	t, err := scanTranscript(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Wrap(err, apperrors.KindNotFound, "transcript not found")
		}
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "failed to get transcript")
	}
	return t, nil
}

// ListBySession returns the session's transcripts, newest first.
func (r *TranscriptRepo) ListBySession(ctx context.Context, sessionID string) ([]*models.TranscriptRecord, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT "+transcriptColumns+" FROM transcripts WHERE session_id = $1 ORDER BY created_at DESC", sessionID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "failed to list transcripts")
	}
	defer rows.Close()

	var out []*models.TranscriptRecord
	for rows.Next() {
		t, err := scanTranscript(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.KindInternal, "failed to scan transcript")
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "failed to list transcripts")
	}
	return out, nil
}

// Latest returns the newest transcript in the session.
func (r *TranscriptRepo) Latest(ctx context.Context, sessionID string) (*models.TranscriptRecord, error) {
	row := r.pool.QueryRow(ctx,
		"SELECT "+transcriptColumns+" FROM transcripts WHERE session_id = $1 ORDER BY created_at DESC LIMIT 1", sessionID)
	t, err := scanTranscript(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Wrap(err, apperrors.KindNotFound, "session has no transcript yet")
		}
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "failed to get transcript")
	}
	return t, nil
}

func scanTranscript(row pgx.Row) (*models.TranscriptRecord, error) {
	t := &models.TranscriptRecord{}
	var sourceKind, mediaKind string
	err := row.Scan(
		&t.ID, &t.SessionID, &t.VideoName, &sourceKind, &t.SourceURL, &t.SourceLanguage,
		&t.TargetLanguage, &t.FileSizeBytes, &mediaKind, &t.Method, &t.Text, &t.Status, &t.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	t.SourceKind = models.SourceKind(sourceKind)
	t.MediaKind = models.MediaKind(mediaKind)
	return t, nil
}
