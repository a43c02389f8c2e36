/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jukebox"

// API metrics
var (
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "Duration of HTTP API requests.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "Total HTTP API requests.",
		},
		[]string{"method", "endpoint", "status"},
	)

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "api_active_connections",
		Help:      "In-flight HTTP API requests.",
	})

	WebsocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "websocket_clients",
		Help:      "Connected playlist websocket clients.",
	})
)

// Playback metrics
var (
	QueuePending = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_pending_items",
		Help:      "Items waiting in the shared queue.",
	})

	QueueSubmitters = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "queue_submitters",
		Help:      "Submitters known to the rotation.",
	})

	PlaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "plays_total",
		Help:      "Items handed to the media engine.",
	})

	PlaybackFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "playback_failures_total",
		Help:      "Items the media engine refused to load or resume.",
	})

	CompletionsSuppressedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "completions_suppressed_total",
		Help:      "End-of-content events discarded inside the suppression window.",
	})

	ReportsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reports_total",
		Help:      "Report records written.",
	})

	PlayLogErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "playlog_errors_total",
		Help:      "Failed play or report log appends.",
	})
)

// Media engine metrics
var (
	MediaEngineConnectionStatus = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "media_engine_connection_status",
		Help:      "1 when the media engine IPC connection is up.",
	})

	MediaEngineRestarts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "media_engine_restarts_total",
			Help:      "Media engine process restarts.",
		},
		[]string{"reason"},
	)
)

// Library and event bus metrics
var (
	LibraryItems = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "library_items",
		Help:      "Content items in the library registry.",
	})

	LibraryScanDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "library_scan_duration_seconds",
		Help:      "Duration of library scans.",
		Buckets:   []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	})

	EventBusPublishErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "eventbus_publish_errors_total",
			Help:      "Remote event fan-out publish failures.",
		},
		[]string{"backend"},
	)
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Database metrics
var (
	DatabaseQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "database_query_duration_seconds",
			Help:      "Duration of history database operations.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DatabaseErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_errors_total",
			Help:      "Failed history database operations.",
		},
		[]string{"operation", "type"},
	)

	DatabaseConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "database_connections_active",
		Help:      "Open history database connections.",
	})
)
