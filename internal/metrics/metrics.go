// Custodia - Multi-Tenant Facility Management Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/custodia

// Package metrics provides Prometheus instrumentation for Custodia:
// database query performance, API latency and throughput, rate limiting
// and blocking, authentication outcomes, task queue flow, and backups.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "duckdb_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "duckdb_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Rate Limiting Metrics
	RateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"scope"}, // endpoint class: auth, login, write, default, health, reports
	)

	RateLimitViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rate_limit_violations_total",
			Help: "Total number of tracked rate-limit violations",
		},
		[]string{"scope"},
	)

	BlockedIPsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "blocked_ips_active",
			Help: "Current number of actively blocked IP addresses",
		},
	)

	IPBlocksImposed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ip_blocks_imposed_total",
			Help: "Total number of IP blocks imposed by violation escalation",
		},
	)

	BlockedRequestsRejected = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "blocked_requests_rejected_total",
			Help: "Total number of requests rejected because the source IP was blocked",
		},
	)

	// Authentication Metrics
	LoginAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "login_attempts_total",
			Help: "Total number of login attempts",
		},
		[]string{"result"}, // success, failure, locked
	)

	AccountLockouts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "account_lockouts_total",
			Help: "Total number of account lockouts imposed",
		},
	)

	CSRFFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "csrf_failures_total",
			Help: "Total number of CSRF validation failures",
		},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sessions_active",
			Help: "Current number of active sessions",
		},
	)

	// Monitoring API Key Metrics
	MonitoringKeyValidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "monitoring_key_validations_total",
			Help: "Total number of monitoring API key validation attempts",
		},
		[]string{"result"}, // valid, invalid, expired, revoked, ip_denied, scope_denied
	)

	// Encryption Metrics
	EncryptionOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "encryption_operations_total",
			Help: "Total number of field encryption operations",
		},
		[]string{"operation", "key_id"}, // operation: encrypt, decrypt
	)

	KeyRotationRows = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "key_rotation_rows_total",
			Help: "Total number of rows re-encrypted during key rotation",
		},
		[]string{"result"}, // rotated, failed
	)

	// Forensics Metrics
	ForensicEventsRecorded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forensic_events_recorded_total",
			Help: "Total number of session forensic events recorded",
		},
		[]string{"event"},
	)

	// Task Queue Metrics
	TasksPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_published_total",
			Help: "Total number of tasks published per queue",
		},
		[]string{"queue"},
	)

	TasksProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_processed_total",
			Help: "Total number of tasks processed per queue",
		},
		[]string{"queue", "result"}, // result: success, failure
	)

	TaskProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "task_processing_duration_seconds",
			Help:    "Duration of task handler execution in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"queue"},
	)

	TasksPoisoned = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasks_poisoned_total",
			Help: "Total number of tasks routed to the poison queue",
		},
		[]string{"queue"},
	)

	// Circuit Breaker Metrics (external_api queue)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: success, failure, rejected
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "websocket_connections",
			Help: "Current number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	// Backup Metrics
	BackupDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "backup_duration_seconds",
			Help:    "Duration of backup runs in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	BackupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backups_total",
			Help: "Total number of backup runs",
		},
		[]string{"result"}, // success, failure
	)

	BackupLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "backup_last_success_timestamp",
			Help: "Unix timestamp of last successful backup",
		},
	)

	// Report Metrics
	ReportsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reports_generated_total",
			Help: "Total number of report jobs completed",
		},
		[]string{"type", "result"},
	)

	ReportGenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "report_generation_duration_seconds",
			Help:    "Duration of report materialization in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"type"},
	)

	// System Metrics
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)

	AppUptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "app_uptime_seconds",
			Help: "Application uptime in seconds",
		},
	)
)

// RecordDBQuery records a database query metric.
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request metric.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordRateLimitHit records a rate limit rejection for an endpoint class.
func RecordRateLimitHit(scope string) {
	RateLimitHits.WithLabelValues(scope).Inc()
	RateLimitViolations.WithLabelValues(scope).Inc()
}

// RecordIPBlock records an escalation block being imposed.
func RecordIPBlock() {
	IPBlocksImposed.Inc()
}

// RecordLogin records a login attempt outcome.
func RecordLogin(result string) {
	LoginAttempts.WithLabelValues(result).Inc()
}

// RecordTask records a task handler execution.
func RecordTask(queue string, duration time.Duration, err error) {
	TaskProcessingDuration.WithLabelValues(queue).Observe(duration.Seconds())
	if err != nil {
		TasksProcessed.WithLabelValues(queue, "failure").Inc()
	} else {
		TasksProcessed.WithLabelValues(queue, "success").Inc()
	}
}

// RecordBackup records a backup run outcome.
func RecordBackup(duration time.Duration, err error) {
	BackupDuration.Observe(duration.Seconds())
	if err != nil {
		BackupsTotal.WithLabelValues("failure").Inc()
		return
	}
	BackupsTotal.WithLabelValues("success").Inc()
	BackupLastSuccess.Set(float64(time.Now().Unix()))
}

// RecordReport records a report job outcome.
func RecordReport(reportType string, duration time.Duration, err error) {
	ReportGenerationDuration.WithLabelValues(reportType).Observe(duration.Seconds())
	if err != nil {
		ReportsGenerated.WithLabelValues(reportType, "failure").Inc()
		return
	}
	ReportsGenerated.WithLabelValues(reportType, "success").Inc()
}
