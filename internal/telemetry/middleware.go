/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry holds the Prometheus metrics, HTTP instrumentation and
// OpenTelemetry tracing setup.
package telemetry

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

// unmatchedRoute labels requests no route matched, keeping raw paths out of
// the metric labels.
const unmatchedRoute = "unmatched"

// statusRecorder captures the response status for the request metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (rec *statusRecorder) WriteHeader(code int) {
	if rec.wrote {
		return
	}
	rec.status = code
	rec.wrote = true
	rec.ResponseWriter.WriteHeader(code)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if !rec.wrote {
		rec.WriteHeader(http.StatusOK)
	}
	return rec.ResponseWriter.Write(b)
}

// Unwrap lets http.ResponseController reach the hijacker for websocket
// upgrades.
func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// MetricsMiddleware counts API requests by method, chi route pattern and
// status. The events websocket is counted once at upgrade; its lifetime is
// tracked by WebsocketClients rather than the in-flight gauge and latency
// histogram.
func MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		upgrade := strings.EqualFold(r.Header.Get("Upgrade"), "websocket")

		if !upgrade {
			APIActiveConnections.Inc()
			defer APIActiveConnections.Dec()
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := routeLabel(r)
		status := strconv.Itoa(rec.status)

		APIRequestsTotal.WithLabelValues(r.Method, route, status).Inc()
		if !upgrade {
			APIRequestDuration.WithLabelValues(r.Method, route, status).Observe(time.Since(start).Seconds())
		}
	})
}

func routeLabel(r *http.Request) string {
	routeCtx := chi.RouteContext(r.Context())
	if routeCtx == nil {
		return unmatchedRoute
	}
	if pattern := routeCtx.RoutePattern(); pattern != "" {
		return pattern
	}
	return unmatchedRoute
}
