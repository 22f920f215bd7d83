package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/mamounbq1/Info-Plat-sub004/internal/model"
)

// OutboxEvent is one leased sync delivery. Delivery is at-least-once:
// a crashed dispatcher leaves the row to be claimed again after its
// lease expires.
type OutboxEvent struct {
	ID           int64
	AttemptCount int
	Event        model.SyncEvent
}

// OutboxSummary reports queue depth for operator visibility.
type OutboxSummary struct {
	Pending int
	Dead    int
}

// ClaimDueEvents leases up to limit due outbox rows. Claimed rows get
// their attempt count bumped and their next attempt pushed out by the
// lease, so concurrent dispatchers never double-deliver inside a lease
// window.
func (s *Store) ClaimDueEvents(ctx context.Context, limit int, lease time.Duration, now time.Time) ([]OutboxEvent, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.pool.Query(ctx, `
		UPDATE sync_outbox
		SET attempt_count = attempt_count + 1, next_attempt_at = $3
		WHERE id IN (
			SELECT id FROM sync_outbox
			WHERE dead = false AND next_attempt_at <= $2
			ORDER BY id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, principal_id, previous_state, next_state, attempt_count
	`, limit, now, now.Add(lease))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []OutboxEvent
	for rows.Next() {
		var (
			ev       OutboxEvent
			previous []byte
			next     []byte
		)
		if err := rows.Scan(&ev.ID, &ev.Event.PrincipalID, &previous, &next, &ev.AttemptCount); err != nil {
			return nil, err
		}
		if ev.Event.Previous, err = unmarshalSnapshot(previous); err != nil {
			return nil, err
		}
		if ev.Event.Next, err = unmarshalSnapshot(next); err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CompleteEvent removes a delivered outbox row.
func (s *Store) CompleteEvent(ctx context.Context, id int64) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM sync_outbox WHERE id = $1`, id)
	return err
}

// FailEvent records a delivery failure. Rows that exceed deadThreshold
// deliveries are parked as dead so they stop retrying but stay visible
// until an operator forces a re-sync.
func (s *Store) FailEvent(ctx context.Context, id int64, deliveryErr error, nextAttempt time.Time, deadThreshold int) (dead bool, err error) {
	message := ""
	if deliveryErr != nil {
		message = deliveryErr.Error()
	}
	row := s.pool.QueryRow(ctx, `
		UPDATE sync_outbox
		SET last_error = $2,
		    next_attempt_at = $3,
		    dead = attempt_count >= $4
		WHERE id = $1
		RETURNING dead
	`, id, message, nextAttempt, deadThreshold)
	if err := row.Scan(&dead); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return dead, nil
}

func (s *Store) GetOutboxSummary(ctx context.Context) (OutboxSummary, error) {
	var summary OutboxSummary
	row := s.pool.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE dead = false),
			COUNT(*) FILTER (WHERE dead = true)
		FROM sync_outbox
	`)
	if err := row.Scan(&summary.Pending, &summary.Dead); err != nil {
		return OutboxSummary{}, err
	}
	return summary, nil
}

func unmarshalSnapshot(data []byte) (*model.ProfileSnapshot, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var snap model.ProfileSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode sync snapshot: %w", err)
	}
	return &snap, nil
}
