package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsCreated counts persisted notifications by alert type.
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insighthub_notifications_created_total",
			Help: "Total number of notifications persisted",
		},
		[]string{"type"},
	)

	// NotificationsGated counts candidates rejected by user settings (global|type|threshold).
	NotificationsGated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insighthub_notifications_gated_total",
			Help: "Total number of alert candidates rejected by settings gates",
		},
		[]string{"gate"},
	)

	// DeliveryAttempts records delivery sink calls by outcome (success|failure).
	DeliveryAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insighthub_delivery_attempts_total",
			Help: "Total number of delivery attempts",
		},
		[]string{"sink", "result"},
	)

	// TrendCandidates counts alert candidates produced by trend scans (company_active|category_trend).
	TrendCandidates = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "insighthub_trend_candidates_total",
			Help: "Total number of candidates emitted by trend scans",
		},
		[]string{"type"},
	)

	// DigestItems observes the number of items selected per assembled digest.
	DigestItems = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "insighthub_digest_items",
			Help:    "Items included per assembled digest",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		},
	)
)
