// Vigilis - Abuse Detection and Access Throttling for Media Platforms
// Copyright 2026 A. Vasquez (avasquez-dev)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/avasquez-dev/vigilis

// Package metrics provides Prometheus instrumentation for the admission and
// analysis paths: per-class check volume and rejections, store failures
// (the fail-open counter), analyzer confidence distribution, signal
// triggers, bans, consent lookups and forensic delivery health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Rate limiter metrics
	AdmissionChecksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigilis_admission_checks_total",
			Help: "Total rate limit admission checks",
		},
		[]string{"class", "allowed"},
	)

	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigilis_rate_limit_rejections_total",
			Help: "Total requests rejected by the sliding-window limiter",
		},
		[]string{"class"},
	)

	StoreErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigilis_store_errors_total",
			Help: "Counter store errors absorbed by fail-open handling",
		},
		[]string{"component", "op"},
	)

	// Analyzer metrics
	AnalyzerConfidence = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "vigilis_analyzer_confidence",
			Help:    "Distribution of fused confidence scores",
			Buckets: []float64{0, 10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	SignalTriggers = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigilis_signal_triggers_total",
			Help: "Total times each behavioral signal fired",
		},
		[]string{"signal"},
	)

	RequestsBlocked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigilis_requests_blocked_total",
			Help: "Total requests blocked by the scraping analyzer",
		},
	)

	// Ban registry metrics
	BansIssued = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigilis_bans_issued_total",
			Help: "Total bans added to the registry",
		},
		[]string{"source"}, // "auto", "manual"
	)

	BansLifted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigilis_bans_lifted_total",
			Help: "Total bans removed by explicit reset",
		},
	)

	// Consent gate metrics
	ConsentLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigilis_consent_lookups_total",
			Help: "Consent gate lookups by outcome",
		},
		[]string{"outcome"}, // "granted", "denied", "error", "cached"
	)

	// Forensic sink metrics
	ForensicEventsSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "vigilis_forensic_events_sent_total",
			Help: "Suspicious-activity records delivered to the forensic sink",
		},
	)

	ForensicEventsDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigilis_forensic_events_dropped_total",
			Help: "Suspicious-activity records dropped without delivery",
		},
		[]string{"reason"}, // "queue_full", "rate_limited", "delivery_failed"
	)

	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "vigilis_http_requests_total",
			Help: "Total HTTP requests served",
		},
		[]string{"method", "route", "status_code"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "vigilis_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "route"},
	)
)
