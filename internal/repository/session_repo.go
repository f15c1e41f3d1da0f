package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	apperrors "transcript-tool/internal/errors"
	"transcript-tool/internal/models"
)

type SessionRepo struct {
	pool Pool
}

func NewSessionRepo(pool Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

// Create inserts the session if it does not exist yet.
func (r *SessionRepo) Create(ctx context.Context, id string) error {
	_, err := r.pool.Exec(ctx,
		"INSERT INTO sessions (id) VALUES ($1) ON CONFLICT (id) DO NOTHING", id)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindInternal, "failed to create session")
	}
	return nil
}

func (r *SessionRepo) Exists(ctx context.Context, id string) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx, "SELECT EXISTS(SELECT 1 FROM sessions WHERE id = $1)", id).Scan(&exists)
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.KindInternal, "failed to check session")
	}
	return exists, nil
}

func (r *SessionRepo) GetByID(ctx context.Context, id string) (*models.Session, error) {
	s := &models.Session{}
	err := r.pool.QueryRow(ctx,
		"SELECT id, created_at, updated_at FROM sessions WHERE id = $1", id,
	).Scan(&s.ID, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.Wrap(err, apperrors.KindNotFound, "session not found")
		}
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "failed to get session")
	}
	return s, nil
}

// Delete removes the session with its messages and transcripts in one transaction.
func (r *SessionRepo) Delete(ctx context.Context, id string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindInternal, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	for _, stmt := range []string{
		"DELETE FROM messages WHERE session_id = $1",
		"DELETE FROM transcripts WHERE session_id = $1",
		"DELETE FROM sessions WHERE id = $1",
	} {
		if _, err := tx.Exec(ctx, stmt, id); err != nil {
			return apperrors.Wrap(err, apperrors.KindInternal, "failed to delete session")
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return apperrors.Wrap(err, apperrors.KindInternal, "failed to commit session delete")
	}
	return nil
}
