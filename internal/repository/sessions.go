package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
)

type RefreshSession struct {
	ID        string
	UserID    string
	TokenHash string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

func (s *Store) CreateRefreshSession(ctx context.Context, session RefreshSession) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO refresh_sessions (id, user_id, token_hash, created_at, expires_at, revoked_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, session.ID, session.UserID, session.TokenHash, session.CreatedAt, session.ExpiresAt, session.RevokedAt)
	return err
}

func (s *Store) GetRefreshSession(ctx context.Context, tokenHash string) (RefreshSession, error) {
	var session RefreshSession
	row := s.pool.QueryRow(ctx, `
		SELECT id, user_id, token_hash, created_at, expires_at, revoked_at
		FROM refresh_sessions
		WHERE token_hash = $1
	`, tokenHash)
	err := row.Scan(&session.ID, &session.UserID, &session.TokenHash, &session.CreatedAt, &session.ExpiresAt, &session.RevokedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return session, ErrNotFound
	}
	return session, err
}

func (s *Store) RevokeRefreshSession(ctx context.Context, sessionID string, revokedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `UPDATE refresh_sessions SET revoked_at = $1 WHERE id = $2`, revokedAt, sessionID)
	return err
}

func (s *Store) RevokeRefreshSessionsByUser(ctx context.Context, userID string, revokedAt time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE refresh_sessions SET revoked_at = $1 WHERE user_id = $2 AND revoked_at IS NULL
	`, revokedAt, userID)
	return err
}
