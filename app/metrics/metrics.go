// Package metrics exposes Prometheus counters for the ingestion pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FetchRunsTotal counts completed fetch runs by terminal status.
	FetchRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenderintel_fetch_runs_total",
		Help: "Completed fetch runs by terminal status.",
	}, []string{"source", "status"})

	// FetchDuration observes wall-clock duration of fetch runs per source.
	FetchDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "tenderintel_fetch_duration_seconds",
		Help:    "Duration of fetch runs.",
		Buckets: prometheus.ExponentialBuckets(0.5, 2, 10),
	}, []string{"source"})

	// TendersIngested counts tenders created by ingestion.
	TendersIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenderintel_tenders_ingested_total",
		Help: "New tenders created by ingestion.",
	}, []string{"source"})

	// TendersUpdated counts tenders updated after a content change.
	TendersUpdated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenderintel_tenders_updated_total",
		Help: "Existing tenders updated after a content change.",
	}, []string{"source"})

	// RecordsFailed counts raw records skipped due to per-record failures.
	RecordsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenderintel_records_failed_total",
		Help: "Raw records skipped because processing failed.",
	}, []string{"source"})

	// KeywordMatches counts keyword matches persisted.
	KeywordMatches = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tenderintel_keyword_matches_total",
		Help: "Keyword matches found across all tenders.",
	})

	// NotificationsSent counts notifications delivered per channel.
	NotificationsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenderintel_notifications_sent_total",
		Help: "Notifications delivered, by channel.",
	}, []string{"channel"})

	// NotificationsFailed counts delivery failures per channel.
	NotificationsFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tenderintel_notifications_failed_total",
		Help: "Notification delivery failures, by channel.",
	}, []string{"channel"})
)
