// Package metrics exposes the service's Prometheus collectors. Sync
// failures after retry exhaustion are the alert-worthy signal: claims
// are lagging the profile store until an operator forces a re-sync.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SyncAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authsync_sync_attempts_total",
		Help: "Claims sync attempts by outcome.",
	}, []string{"outcome"})

	SyncRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authsync_sync_retries_total",
		Help: "Transient issuer failures that were retried.",
	})

	SyncFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authsync_sync_failures_total",
		Help: "Sync deliveries that exhausted all retry attempts.",
	})

	OutboxDeadLetters = promauto.NewCounter(prometheus.CounterOpts{
		Name: "authsync_outbox_dead_letters_total",
		Help: "Outbox events parked after repeated delivery failures.",
	})

	RefreshRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "authsync_refresh_requests_total",
		Help: "On-demand claims refresh requests by outcome.",
	}, []string{"outcome"})
)
