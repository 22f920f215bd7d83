// Package claimsync keeps issued claims consistent with the profile
// store. The synchronizer consumes sync events at-least-once and
// derives claims from the full latest snapshot, so duplicate or
// reordered deliveries converge to the same result.
package claimsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/mamounbq1/Info-Plat-sub004/internal/issuer"
	"github.com/mamounbq1/Info-Plat-sub004/internal/metrics"
	"github.com/mamounbq1/Info-Plat-sub004/internal/model"
)

// ProfileMarker records when issued claims last matched the profile.
// Failures here never fail a sync.
type ProfileMarker interface {
	MarkClaimsSynced(ctx context.Context, principalID string, at time.Time) error
}

// RetryPolicy bounds retries of transient issuer failures. Delays
// double from BaseDelay; permanent errors short-circuit.
type RetryPolicy struct {
	BaseDelay   time.Duration
	MaxAttempts int
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{BaseDelay: 500 * time.Millisecond, MaxAttempts: 5}
}

func (p RetryPolicy) Do(ctx context.Context, op func(context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	delay := p.BaseDelay

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		lastErr = op(ctx)
		if lastErr == nil {
			return nil
		}
		if issuer.IsPermanent(lastErr) {
			return lastErr
		}
		if attempt == attempts {
			break
		}
		metrics.SyncRetries.Inc()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return fmt.Errorf("retries exhausted after %d attempts: %w", attempts, lastErr)
}

type Synchronizer struct {
	issuer issuer.Issuer
	marker ProfileMarker
	retry  RetryPolicy
}

func NewSynchronizer(iss issuer.Issuer, marker ProfileMarker, retry RetryPolicy) *Synchronizer {
	return &Synchronizer{issuer: iss, marker: marker, retry: retry}
}

// Handle processes one sync event. A nil next state clears the
// principal's claims; anything else pushes claims derived from the
// snapshot. Errors returned here mean the delivery should be retried
// by the caller's at-least-once envelope.
func (s *Synchronizer) Handle(ctx context.Context, ev model.SyncEvent) error {
	if ev.PrincipalID == "" {
		return errors.New("sync event missing principal id")
	}
	if ev.Next == nil {
		return s.clear(ctx, ev.PrincipalID)
	}
	_, err := s.Push(ctx, ev.PrincipalID, ev.Next)
	return err
}

// Push derives claims from the snapshot and writes them to the issuer,
// then best-effort records the sync marker on the profile.
func (s *Synchronizer) Push(ctx context.Context, principalID string, snap *model.ProfileSnapshot) (model.Claims, error) {
	claims := model.ResolveClaims(snap)
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.issuer.SetClaims(ctx, principalID, claims)
	})
	if err != nil {
		metrics.SyncAttempts.WithLabelValues("failed").Inc()
		metrics.SyncFailures.Inc()
		log.Printf("claims sync failed for %s: %v", principalID, err)
		return model.Claims{}, err
	}
	metrics.SyncAttempts.WithLabelValues("ok").Inc()

	if s.marker != nil {
		if err := s.marker.MarkClaimsSynced(ctx, principalID, time.Now().UTC()); err != nil {
			log.Printf("claims sync marker write failed for %s: %v", principalID, err)
		}
	}
	return claims, nil
}

func (s *Synchronizer) clear(ctx context.Context, principalID string) error {
	err := s.retry.Do(ctx, func(ctx context.Context) error {
		return s.issuer.ClearClaims(ctx, principalID)
	})
	if errors.Is(err, issuer.ErrPrincipalNotFound) {
		// Already cleared; duplicate deletes are expected.
		err = nil
	}
	if err != nil {
		metrics.SyncAttempts.WithLabelValues("failed").Inc()
		metrics.SyncFailures.Inc()
		log.Printf("claims clear failed for %s: %v", principalID, err)
		return err
	}
	metrics.SyncAttempts.WithLabelValues("ok").Inc()
	return nil
}
