package jobs

import (
	"context"
	"log"
	"time"

	"github.com/mamounbq1/Info-Plat-sub004/internal/claimsync"
	"github.com/mamounbq1/Info-Plat-sub004/internal/config"
	"github.com/mamounbq1/Info-Plat-sub004/internal/metrics"
	"github.com/mamounbq1/Info-Plat-sub004/internal/repository"
)

// StartOutboxDispatcher polls the sync outbox and delivers due events
// to the synchronizer. Delivery is at-least-once: leased rows that are
// not completed become due again after the lease, and rows that keep
// failing are parked dead for operator attention.
func StartOutboxDispatcher(ctx context.Context, cfg config.Config, store *repository.Store, sync *claimsync.Synchronizer) {
	interval := cfg.SyncDispatchInterval
	if interval <= 0 {
		interval = 2 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				dispatchDue(ctx, cfg, store, sync)
			}
		}
	}()
}

func dispatchDue(ctx context.Context, cfg config.Config, store *repository.Store, sync *claimsync.Synchronizer) {
	events, err := store.ClaimDueEvents(ctx, cfg.SyncDispatchBatch, cfg.SyncDispatchLease, time.Now().UTC())
	if err != nil {
		log.Printf("outbox claim error: %v", err)
		return
	}

	for _, ev := range events {
		if err := sync.Handle(ctx, ev.Event); err != nil {
			next := time.Now().UTC().Add(cfg.SyncDispatchLease)
			dead, failErr := store.FailEvent(ctx, ev.ID, err, next, cfg.OutboxDeadThreshold)
			if failErr != nil {
				log.Printf("outbox fail-mark error for event %d: %v", ev.ID, failErr)
				continue
			}
			if dead {
				metrics.OutboxDeadLetters.Inc()
				log.Printf("outbox event %d for %s parked dead after %d deliveries: %v", ev.ID, ev.Event.PrincipalID, ev.AttemptCount, err)
			}
			continue
		}
		if err := store.CompleteEvent(ctx, ev.ID); err != nil {
			// The lease expires and the event is redelivered; the
			// synchronizer is idempotent, so the duplicate converges.
			log.Printf("outbox complete error for event %d: %v", ev.ID, err)
		}
	}
}
