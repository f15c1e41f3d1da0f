package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	apperrors "transcript-tool/internal/errors"
	"transcript-tool/internal/models"
)

const credentialColumns = "id, fingerprint, api_key, status, last_used, error_count, last_error, created_at"

type CredentialRepo struct {
	pool Pool
}

func NewCredentialRepo(pool Pool) *CredentialRepo {
	return &CredentialRepo{pool: pool}
}

// Save inserts the credential if its fingerprint is new and loads the stored
// row into c either way, so a previously expired key stays expired.
func (r *CredentialRepo) Save(ctx context.Context, c *models.Credential) error {
	query := `INSERT INTO api_credentials (fingerprint, api_key, status) VALUES ($1, $2, $3)
		ON CONFLICT (fingerprint) DO UPDATE SET fingerprint = EXCLUDED.fingerprint
		RETURNING ` + credentialColumns

	stored, err := scanCredential(r.pool.QueryRow(ctx, query, c.Fingerprint, c.Value, string(models.CredentialUnknown)))
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindInternal, "failed to save credential")
	}
	*c = *stored
	return nil
}

// List returns every credential in insertion order.
func (r *CredentialRepo) List(ctx context.Context) ([]*models.Credential, error) {
	return r.query(ctx, "SELECT "+credentialColumns+" FROM api_credentials ORDER BY id ASC")
}

// ListActive returns credentials that are not expired, fewest errors first.
func (r *CredentialRepo) ListActive(ctx context.Context) ([]*models.Credential, error) {
	return r.query(ctx, "SELECT "+credentialColumns+" FROM api_credentials WHERE status <> 'expired' ORDER BY error_count ASC, id ASC")
}

func (r *CredentialRepo) MarkExpired(ctx context.Context, fingerprint, errMsg string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE api_credentials SET status = 'expired', error_count = error_count + 1,
		last_error = $1, last_used = NOW() WHERE fingerprint = $2`,
		errMsg, fingerprint)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindInternal, "failed to mark credential expired")
	}
	return nil
}

// MarkUsed stamps last_used and promotes an unknown credential to active.
func (r *CredentialRepo) MarkUsed(ctx context.Context, fingerprint string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE api_credentials SET last_used = NOW(),
		status = CASE WHEN status = 'unknown' THEN 'active' ELSE status END
		WHERE fingerprint = $1`,
		fingerprint)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindInternal, "failed to mark credential used")
	}
	return nil
}

func (r *CredentialRepo) Reset(ctx context.Context, fingerprint string) error {
	tag, err := r.pool.Exec(ctx,
		"UPDATE api_credentials SET status = 'active', error_count = 0, last_error = NULL WHERE fingerprint = $1",
		fingerprint)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindInternal, "failed to reset credential")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.KindNotFound, "credential not found")
	}
	return nil
}

func (r *CredentialRepo) Delete(ctx context.Context, fingerprint string) error {
	tag, err := r.pool.Exec(ctx, "DELETE FROM api_credentials WHERE fingerprint = $1", fingerprint)
	if err != nil {
		return apperrors.Wrap(err, apperrors.KindInternal, "failed to delete credential")
	}
	if tag.RowsAffected() == 0 {
		return apperrors.New(apperrors.KindNotFound, "credential not found")
	}
	return nil
}

func (r *CredentialRepo) query(ctx context.Context, sql string) ([]*models.Credential, error) {
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "failed to list credentials")
	}
	defer rows.Close()

	var out []*models.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.KindInternal, "failed to scan credential")
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.KindInternal, "failed to list credentials")
	}
	return out, nil
}

func scanCredential(row pgx.Row) (*models.Credential, error) {
	c := &models.Credential{}
	var status string
	err := row.Scan(&c.ID, &c.Fingerprint, &c.Value, &status, &c.LastUsed, &c.ErrorCount, &c.LastError, &c.CreatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = models.CredentialStatus(status)
	return c, nil
}
