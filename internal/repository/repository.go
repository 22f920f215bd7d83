package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mamounbq1/Info-Plat-sub004/internal/model"
)

// ErrNotFound is returned when a profile does not exist or has been
// tombstoned.
var ErrNotFound = errors.New("profile not found")

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

func NewPool(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

const profileColumns = `
	id, email, full_name, password_hash, role, approved, status, subject,
	created_at, approved_at, rejected_at, claims_synced_at, deleted_at
`

func scanProfile(row pgx.Row) (model.UserProfile, error) {
	var p model.UserProfile
	err := row.Scan(
		&p.ID,
		&p.Email,
		&p.FullName,
		&p.PasswordHash,
		&p.Role,
		&p.Approved,
		&p.Status,
		&p.Subject,
		&p.CreatedAt,
		&p.ApprovedAt,
		&p.RejectedAt,
		&p.ClaimsSyncedAt,
		&p.DeletedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return p, ErrNotFound
	}
	return p, err
}

func (s *Store) GetProfile(ctx context.Context, principalID string) (model.UserProfile, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM user_profiles
		WHERE id = $1 AND deleted_at IS NULL
	`, principalID)
	return scanProfile(row)
}

func (s *Store) GetProfileByEmail(ctx context.Context, email string) (model.UserProfile, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+profileColumns+`
		FROM user_profiles
		WHERE email = $1 AND deleted_at IS NULL
	`, email)
	return scanProfile(row)
}

type ListFilter struct {
	Role   model.Role
	Status model.Status
	Limit  int
	Offset int
}

func (s *Store) ListProfiles(ctx context.Context, filter ListFilter) ([]model.UserProfile, error) {
	limit := filter.Limit
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
		SELECT `+profileColumns+`
		FROM user_profiles
		WHERE deleted_at IS NULL
		  AND ($1 = '' OR role = $1)
		  AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`, string(filter.Role), string(filter.Status), limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profiles []model.UserProfile
	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, p)
	}
	return profiles, rows.Err()
}

// CreateProfile inserts the profile and enqueues its sync event in the
// same transaction, so the synchronizer sees every committed write.
func (s *Store) CreateProfile(ctx context.Context, p model.UserProfile) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			INSERT INTO user_profiles (id, email, full_name, password_hash, role, approved, status, subject, created_at, approved_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		`, p.ID, p.Email, p.FullName, p.PasswordHash, p.Role, p.Approved, p.Status, p.Subject, p.CreatedAt, p.ApprovedAt)
		if err != nil {
			return err
		}
		return enqueueSyncEvent(ctx, tx, model.SyncEvent{
			PrincipalID: p.ID,
			Next:        p.Snapshot(),
		})
	})
}

type statusTransition struct {
	from   model.Status
	to     model.Status
	column string
}

var (
	approveTransition = statusTransition{from: model.StatusPending, to: model.StatusActive, column: "approved_at"}
	rejectTransition  = statusTransition{from: model.StatusPending, to: model.StatusRejected, column: "rejected_at"}
	revokeTransition  = statusTransition{from: model.StatusActive, to: model.StatusRejected, column: "rejected_at"}
)

// Approve moves a pending profile to active and marks it approved.
func (s *Store) Approve(ctx context.Context, principalID string, at time.Time) (model.UserProfile, error) {
	return s.transition(ctx, principalID, approveTransition, true, at)
}

// Reject moves a pending profile to rejected.
func (s *Store) Reject(ctx context.Context, principalID string, at time.Time) (model.UserProfile, error) {
	return s.transition(ctx, principalID, rejectTransition, false, at)
}

// Revoke moves an active profile to rejected, withdrawing access.
func (s *Store) Revoke(ctx context.Context, principalID string, at time.Time) (model.UserProfile, error) {
	return s.transition(ctx, principalID, revokeTransition, false, at)
}

// ErrInvalidTransition is returned when a status change does not match
// the allowed pending->active, pending->rejected, active->rejected set.
var ErrInvalidTransition = errors.New("invalid status transition")

func (s *Store) transition(ctx context.Context, principalID string, t statusTransition, approved bool, at time.Time) (model.UserProfile, error) {
	var updated model.UserProfile
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		previous, err := scanProfile(tx.QueryRow(ctx, `
			SELECT `+profileColumns+`
			FROM user_profiles
			WHERE id = $1 AND deleted_at IS NULL
			FOR UPDATE
		`, principalID))
		if err != nil {
			return err
		}
		if previous.Status != t.from {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, previous.Status, t.to)
		}

		row := tx.QueryRow(ctx, `
			UPDATE user_profiles
			SET status = $2, approved = $3, `+t.column+` = $4
			WHERE id = $1
			RETURNING `+profileColumns+`
		`, principalID, t.to, approved, at)
		updated, err = scanProfile(row)
		if err != nil {
			return err
		}
		return enqueueSyncEvent(ctx, tx, model.SyncEvent{
			PrincipalID: principalID,
			Previous:    previous.Snapshot(),
			Next:        updated.Snapshot(),
		})
	})
	return updated, err
}

// UpdateProfile applies mutable profile fields (name, subject) and
// enqueues a sync event; role and status changes go through the
// dedicated transitions.
func (s *Store) UpdateProfile(ctx context.Context, principalID string, fullName string, subject *string) (model.UserProfile, error) {
	var updated model.UserProfile
	err := s.withTx(ctx, func(tx pgx.Tx) error {
		previous, err := scanProfile(tx.QueryRow(ctx, `
			SELECT `+profileColumns+`
			FROM user_profiles
			WHERE id = $1 AND deleted_at IS NULL
			FOR UPDATE
		`, principalID))
		if err != nil {
			return err
		}
		row := tx.QueryRow(ctx, `
			UPDATE user_profiles
			SET full_name = $2, subject = $3
			WHERE id = $1
			RETURNING `+profileColumns+`
		`, principalID, fullName, subject)
		updated, err = scanProfile(row)
		if err != nil {
			return err
		}
		return enqueueSyncEvent(ctx, tx, model.SyncEvent{
			PrincipalID: principalID,
			Previous:    previous.Snapshot(),
			Next:        updated.Snapshot(),
		})
	})
	return updated, err
}

// DeleteProfile tombstones the profile and enqueues a deletion event
// (nil next state) so the synchronizer clears the issuer claims.
func (s *Store) DeleteProfile(ctx context.Context, principalID string, at time.Time) error {
	return s.withTx(ctx, func(tx pgx.Tx) error {
		previous, err := scanProfile(tx.QueryRow(ctx, `
			SELECT `+profileColumns+`
			FROM user_profiles
			WHERE id = $1 AND deleted_at IS NULL
			FOR UPDATE
		`, principalID))
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE user_profiles SET deleted_at = $2 WHERE id = $1
		`, principalID, at); err != nil {
			return err
		}
		return enqueueSyncEvent(ctx, tx, model.SyncEvent{
			PrincipalID: principalID,
			Previous:    previous.Snapshot(),
		})
	})
}

// MarkClaimsSynced records when issued claims last matched the profile.
// Callers treat a failure here as non-fatal.
func (s *Store) MarkClaimsSynced(ctx context.Context, principalID string, at time.Time) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE user_profiles SET claims_synced_at = $2 WHERE id = $1 AND deleted_at IS NULL
	`, principalID, at)
	return err
}

func (s *Store) withTx(ctx context.Context, fn func(pgx.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	return tx.Commit(ctx)
}

func enqueueSyncEvent(ctx context.Context, tx pgx.Tx, ev model.SyncEvent) error {
	previous, err := marshalSnapshot(ev.Previous)
	if err != nil {
		return err
	}
	next, err := marshalSnapshot(ev.Next)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO sync_outbox (principal_id, previous_state, next_state, attempt_count, next_attempt_at, created_at)
		VALUES ($1, $2, $3, 0, now(), now())
	`, ev.PrincipalID, previous, next)
	if err != nil {
		return fmt.Errorf("enqueue sync event: %w", err)
	}
	return nil
}

func marshalSnapshot(snap *model.ProfileSnapshot) ([]byte, error) {
	if snap == nil {
		return nil, nil
	}
	return json.Marshal(snap)
}
