// Logkeeper - Audit Trail and Log Retention for NORSU Alumni
// Copyright 2026 NORSU Alumni Network
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/norsu-alumni/logkeeper

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for:
// - Audit capture (records written, capture failures)
// - Cleanup operations and archive output
// - Archive storage usage
// - Admin notifications
// - The admin HTTP surface

var (
	// Audit Metrics
	AuditRecordsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logkeeper_audit_records_total",
			Help: "Total number of audit records written",
		},
		[]string{"action"},
	)

	AuditCaptureFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logkeeper_audit_capture_failures_total",
			Help: "Total number of swallowed audit capture failures",
		},
		[]string{"stage"}, // "pre_save", "post_save", "pre_delete", "post_delete", "persist", "panic"
	)

	AuditPreImageEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "logkeeper_audit_preimage_evictions_total",
			Help: "Pre-images evicted from the interceptor cache before their post event",
		},
	)

	// Cleanup Metrics
	CleanupOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logkeeper_cleanup_operations_total",
			Help: "Total number of cleanup operations by trigger and outcome",
		},
		[]string{"type", "status"},
	)

	CleanupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "logkeeper_cleanup_duration_seconds",
			Help:    "Duration of cleanup operations in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900},
		},
	)

	CleanupDeletedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logkeeper_cleanup_deleted_total",
			Help: "Total number of audit records or file log entries removed by cleanup",
		},
		[]string{"stream"}, // "audit", "file"
	)

	CleanupLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "logkeeper_cleanup_last_success_timestamp",
			Help: "Unix timestamp of the last successful cleanup",
		},
	)

	ArchivesCreatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logkeeper_archives_created_total",
			Help: "Total number of archive files written",
		},
		[]string{"format"}, // "csv", "pdf"
	)

	// Storage Metrics
	ArchiveStorageBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "logkeeper_archive_storage_bytes",
			Help: "Bytes currently used under the archive root",
		},
	)

	ArchiveStorageUsagePercent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "logkeeper_archive_storage_usage_percent",
			Help: "Archive storage usage as a percentage of the configured maximum",
		},
	)

	// Notification Metrics
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logkeeper_notifications_total",
			Help: "Total number of admin notifications by signal and outcome",
		},
		[]string{"signal", "outcome"}, // outcome: "logged", "emailed", "email_failed"
	)

	// API Metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "logkeeper_http_requests_total",
			Help: "Total number of admin HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "logkeeper_http_request_duration_seconds",
			Help:    "Duration of admin HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	HTTPActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "logkeeper_http_active_requests",
			Help: "Number of admin HTTP requests currently being processed",
		},
	)
)

// RecordAuditWrite counts a persisted audit record
func RecordAuditWrite(action string) {
	AuditRecordsTotal.WithLabelValues(action).Inc()
}

// RecordCaptureFailure counts a swallowed interceptor failure
func RecordCaptureFailure(stage string) {
	AuditCaptureFailures.WithLabelValues(stage).Inc()
}

// RecordCleanup records the outcome of one cleanup operation
func RecordCleanup(opType, status string, duration time.Duration, auditDeleted, fileDeleted int64) {
	CleanupOperationsTotal.WithLabelValues(opType, status).Inc()
	CleanupDuration.Observe(duration.Seconds())
	if auditDeleted > 0 {
		CleanupDeletedTotal.WithLabelValues("audit").Add(float64(auditDeleted))
	}
	if fileDeleted > 0 {
		CleanupDeletedTotal.WithLabelValues("file").Add(float64(fileDeleted))
	}
	if status == "success" {
		CleanupLastSuccess.Set(float64(time.Now().Unix()))
	}
}

// RecordArchive counts one archive artifact by format
func RecordArchive(format string) {
	ArchivesCreatedTotal.WithLabelValues(format).Inc()
}

// UpdateStorageGauges publishes the latest archive measurement
func UpdateStorageGauges(bytes int64, usagePercent float64) {
	ArchiveStorageBytes.Set(float64(bytes))
	ArchiveStorageUsagePercent.Set(usagePercent)
}

// RecordNotification counts an admin notification
func RecordNotification(signal, outcome string) {
	NotificationsTotal.WithLabelValues(signal, outcome).Inc()
}

// RecordHTTPRequest records an admin HTTP request
func RecordHTTPRequest(method, route string, statusCode int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(statusCode)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

// TrackActiveRequest tracks in-flight admin requests
func TrackActiveRequest(inc bool) {
	if inc {
		HTTPActiveRequests.Inc()
	} else {
		HTTPActiveRequests.Dec()
	}
}
