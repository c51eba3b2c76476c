// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestCount = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sahayak_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "sahayak_http_request_duration_seconds",
			Help: "HTTP request duration in seconds",
		},
		[]string{"method", "route"},
	)

	// ProviderCalls counts provider attempts by outcome:
	// success, retry, abort, config_error.
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sahayak_provider_calls_total",
			Help: "Outbound provider call attempts",
		},
		[]string{"provider", "model", "outcome"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sahayak_provider_latency_seconds",
			Help:    "Outbound provider call latency in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 4, 8, 12, 18, 30},
		},
		[]string{"provider"},
	)

	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sahayak_pipeline_runs_total",
			Help: "Completed router pipelines by branch and provenance",
		},
		[]string{"pipeline", "provenance"},
	)

	Rejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sahayak_rejections_total",
			Help: "Requests rejected before any provider call",
		},
		[]string{"reason"},
	)

	// AuthResults counts identity resolution: authenticated, rejected or
	// guest.
	AuthResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sahayak_auth_results_total",
			Help: "Identity resolution outcomes by provider",
		},
		[]string{"provider", "result"},
	)

	GuestQuestions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sahayak_guest_questions_total",
			Help: "Questions answered for guest callers",
		},
	)
)
