// Package metrics exposes the Prometheus collectors shared by both
// processes (§10 ambient stack). Grounded on tomtom215/cartographus's
// internal/authz/metrics.go: package-level promauto vars plus small
// Record* helpers, rather than a metrics struct threaded everywhere.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Server-side.

	ResolverInvocationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signage_resolver_invocations_total",
			Help: "Total number of schedule resolver invocations, by whether a schedule matched.",
		},
		[]string{"matched"},
	)

	SyncOriginRemintsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signage_sync_origin_remints_total",
			Help: "Total number of sync-origin re-mints, by schedule group.",
		},
		[]string{"group_id"},
	)

	EventBusClientsConnected = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "signage_event_bus_clients_connected",
			Help: "Current number of devices connected to the event bus.",
		},
	)

	PlayerRegistrationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signage_player_registrations_total",
			Help: "Total number of POST /player/register attempts, by outcome.",
		},
		[]string{"outcome"}, // "success", "not_found", "forbidden"
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "signage_http_request_duration_seconds",
			Help:    "Server HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "code"},
	)

	// Player-side.

	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signage_player_cache_hits_total",
			Help: "Total number of cache hits while syncing the playlist.",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signage_player_cache_misses_total",
			Help: "Total number of cache misses (downloads) while syncing the playlist.",
		},
	)

	CacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signage_player_cache_evictions_total",
			Help: "Total number of files evicted from the content cache.",
		},
	)

	SyncDriftCorrectionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "signage_player_sync_drift_corrections_total",
			Help: "Total number of times the 1Hz drift check forced a resync or video seek.",
		},
	)

	PollerCircuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "signage_player_poller_circuit_state",
			Help: "Poller circuit breaker state: 0=closed, 1=half-open, 2=open.",
		},
	)
)

// RecordResolve records one resolver invocation.
func RecordResolve(matched bool) {
	label := "false"
	if matched {
		label = "true"
	}
	ResolverInvocationsTotal.WithLabelValues(label).Inc()
}

// RecordOriginRemint records a sync-origin re-mint for a schedule group.
func RecordOriginRemint(groupID string) {
	SyncOriginRemintsTotal.WithLabelValues(groupID).Inc()
}

// RecordRegistration records the outcome of a POST /player/register call.
func RecordRegistration(outcome string) {
	PlayerRegistrationsTotal.WithLabelValues(outcome).Inc()
}
