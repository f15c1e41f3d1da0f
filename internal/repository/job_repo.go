package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	apperrors "transcript-tool/internal/errors"
	"transcript-tool/internal/models"
)

type JobRepo struct {
	pool Pool
}

func NewJobRepo(pool Pool) *JobRepo {
	return &JobRepo{pool: pool}
}

func (r *JobRepo) Create(ctx context.Context, j *models.Job) error {
	j.ID = uuid.New()
	j.Status = models.JobPending
	j.Attempts = 0

	query := `INSERT INTO jobs (id, session_id, source_kind, reference, display_name, staged_path,
		source_language, target_language, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9) RETURNING created_at`

	err := r.pool.QueryRow(ctx, query,
		j.ID, j.SessionID, string(j.SourceKind), j.Reference, j.DisplayName, j.StagedPath,
		j.SourceLanguage, j.TargetLanguage, j.Status,
	).Scan(&j.CreatedAt)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindInternal, "failed to create job")
	}
	return nil
}

func (r *JobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	j := &models.Job{}
	var sourceKind string
	query := `SELECT id, session_id, source_kind, reference, display_name, staged_path, source_language,
		target_language, status, progress, attempts, error_kind, error_message, transcript_id, created_at, completed_at
		FROM jobs WHERE id = $1`

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&j.ID, &j.SessionID, &sourceKind, &j.Reference, &j.DisplayName, &j.StagedPath, &j.SourceLanguage,
		&j.TargetLanguage, &j.Status, &j.Progress, &j.Attempts, &j.ErrorKind, &j.ErrorMessage,
		&j.TranscriptID, &j.CreatedAt, &j.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Wrap(err, apperrors.KindNotFound, "job not found")
		}
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "failed to get job")
	}
	j.SourceKind = models.SourceKind(sourceKind)
	return j, nil
}

func (r *JobRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status string) error {
	_, err := r.pool.Exec(ctx, "UPDATE jobs SET status = $1 WHERE id = $2", status, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindInternal, "failed to update job status")
	}
	return nil
}

func (r *JobRepo) UpdateProgress(ctx context.Context, id uuid.UUID, fraction float64) error {
	_, err := r.pool.Exec(ctx, "UPDATE jobs SET progress = GREATEST(progress, $1) WHERE id = $2", fraction, id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindInternal, "failed to update job progress")
	}
	return nil
}

func (r *JobRepo) Complete(ctx context.Context, id uuid.UUID, transcriptID uuid.UUID, attempts int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, progress = 1, transcript_id = $2, attempts = $3, completed_at = $4
		WHERE id = $5`,
		models.JobCompleted, transcriptID, attempts, time.Now(), id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindInternal, "failed to complete job")
	}
	return nil
}

func (r *JobRepo) Fail(ctx context.Context, id uuid.UUID, kind, errMsg string, attempts int) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE jobs SET status = $1, error_kind = $2, error_message = $3, attempts = $4, completed_at = $5
		WHERE id = $6`,
		models.JobFailed, kind, errMsg, attempts, time.Now(), id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindInternal, "failed to mark job failed")
	}
	return nil
}
