/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

// Package telemetry exposes Prometheus metrics and OpenTelemetry tracing
// for the planner and its API surface.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// API metrics
var (
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skuld_api_request_duration_seconds",
		Help:    "Duration of API requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skuld_api_requests_total",
		Help: "Total number of API requests.",
	}, []string{"method", "endpoint", "status"})

	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skuld_api_active_connections",
		Help: "Number of in-flight API requests.",
	})
)

// Planner metrics
var (
	PlansComputedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skuld_plans_computed_total",
		Help: "Successfully computed plans.",
	}, []string{"strategy"})

	PlanFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skuld_plan_failures_total",
		Help: "Planner runs that ended in an error, by reason.",
	}, []string{"strategy", "reason"})

	PlanComputeDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skuld_plan_compute_duration_seconds",
		Help:    "Time spent computing a plan.",
		Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
	}, []string{"strategy"})

	PlanTasksScheduled = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skuld_plan_tasks_scheduled",
		Help:    "Tasks placed per computed plan.",
		Buckets: []float64{1, 2, 5, 10, 20, 50, 100, 200},
	}, []string{"strategy"})

	PlanExportsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skuld_plan_exports_total",
		Help: "Plan exports, by format.",
	}, []string{"format"})
)

// Event delivery metrics
var (
	EventsPublishedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skuld_events_published_total",
		Help: "Events published to the bus.",
	}, []string{"type"})

	WSClientsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skuld_ws_clients_active",
		Help: "Connected websocket event subscribers.",
	})
)

// Handler exposes the Prometheus metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
