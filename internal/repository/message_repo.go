package repository

import (
	"context"

	apperrors "transcript-tool/internal/errors"
	"transcript-tool/internal/models"
)

type MessageRepo struct {
	pool Pool
}

func NewMessageRepo(pool Pool) *MessageRepo {
	return &MessageRepo{pool: pool}
}

func (r *MessageRepo) Create(ctx context.Context, sessionID, role, content string) (*models.Message, error) {
	m := &models.Message{SessionID: sessionID, Role: role, Content: content}
	err := r.pool.QueryRow(ctx,
		"INSERT INTO messages (session_id, role, content) VALUES ($1, $2, $3) RETURNING id, created_at",
		sessionID, role, content,
	).Scan(&m.ID, &m.CreatedAt)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "failed to save message")
	}
	return m, nil
}

// ListBySession returns messages in conversation order.
func (r *MessageRepo) ListBySession(ctx context.Context, sessionID string) ([]*models.Message, error) {
	rows, err := r.pool.Query(ctx,
		"SELECT id, session_id, role, content, created_at FROM messages WHERE session_id = $1 ORDER BY id ASC",
		sessionID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "failed to list messages")
	}
	defer rows.Close()

	var out []*models.Message
	for rows.Next() {
		m := &models.Message{}
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, apperrors.Wrap(err, apperrors.KindInternal, "failed to scan message")
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "failed to list messages")
	}
	return out, nil
}

func (r *MessageRepo) DeleteBySession(ctx context.Context, sessionID string) error {
	if _, err := r.pool.Exec(ctx, "DELETE FROM messages WHERE session_id = $1", sessionID); err != nil {
		return apperrors.Wrap(err, apperrors.KindInternal, "failed to clear messages")
	}
	return nil
}
