package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// RevokedTokenRepository is the SQLite-backed token denylist.
type RevokedTokenRepository struct {
	helper *QueryHelper
	mapper *ErrorMapper
	now    func() time.Time
}

// NewRevokedTokenRepository creates a denylist stored in the revoked_tokens table.
func NewRevokedTokenRepository(pool *ConnectionPool, now func() time.Time) *RevokedTokenRepository {
	if now == nil {
		now = time.Now
	}
	return &RevokedTokenRepository{
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		now:    now,
	}
}

// Revoke records tokenID until expiresAt and prunes entries that already lapsed.
func (r *RevokedTokenRepository) Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error {
	if _, err := r.helper.Exec(ctx, `
		INSERT INTO revoked_tokens (token_id, expires_at) VALUES (?, ?)
		ON CONFLICT (token_id) DO UPDATE SET expires_at = excluded.expires_at`,
		tokenID, formatTime(expiresAt),
	); err != nil {
		return r.mapper.MapError(err)
	}
	_, err := r.PruneExpired(ctx)
	return err
}

// IsRevoked reports whether tokenID is on the denylist and not yet expired.
func (r *RevokedTokenRepository) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	var one int
	err := r.helper.QueryRow(ctx,
		`SELECT 1 FROM revoked_tokens WHERE token_id = ? AND expires_at > ?`,
		tokenID, formatTime(r.now()),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, r.mapper.MapError(err)
	}
	return true, nil
}

// PruneExpired deletes entries whose token would be rejected as expired anyway.
func (r *RevokedTokenRepository) PruneExpired(ctx context.Context) (int64, error) {
	result, err := r.helper.Exec(ctx, `DELETE FROM revoked_tokens WHERE expires_at <= ?`, formatTime(r.now()))
	if err != nil {
		return 0, r.mapper.MapError(err)
	}
	return result.RowsAffected()
}
