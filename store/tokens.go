package store

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
)

// TokenStore keeps the ids of issued refresh tokens. A refresh token can be
// redeemed once.
type TokenStore struct {
	db *sqlx.DB
}

func (s *TokenStore) Save(ctx context.Context, credential, tokenID, refreshTokenID string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO tokens (credential, token_id, refresh_token_id, expires_at)
VALUES (?, ?, ?, ?)`,
		strings.ToLower(credential), tokenID, refreshTokenID, toMillis(expiresAt))
	return errors.Wrap(err, "insert token")
}

// Consume deletes the token and fails with ErrNotFound when it was never
// issued, already redeemed or expired at now.
func (s *TokenStore) Consume(ctx context.Context, credential, tokenID, refreshTokenID string, now time.Time) error {
	var expiresAt int64
	err := s.db.QueryRowxContext(ctx, `
DELETE FROM tokens
WHERE credential = ? AND token_id = ? AND refresh_token_id = ?
RETURNING expires_at`,
		strings.ToLower(credential), tokenID, refreshTokenID,
	).Scan(&expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return errors.Wrap(err, "delete token")
	}
	if expiresAt <= toMillis(now) {
		return ErrNotFound
	}
	return nil
}

// Revoke drops every token issued to credential.
func (s *TokenStore) Revoke(ctx context.Context, credential string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM tokens WHERE credential = ?", strings.ToLower(credential))
	return errors.Wrap(err, "delete tokens")
}

// PruneExpired removes tokens that can no longer be redeemed.
func (s *TokenStore) PruneExpired(ctx context.Context, now time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM tokens WHERE expires_at <= ?", toMillis(now))
	if err != nil {
		return 0, errors.Wrap(err, "prune tokens")
	}
	return res.RowsAffected()
}
