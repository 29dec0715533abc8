// Package metrics provides Prometheus metrics for Pulse.
// Counters, gauges, and histograms for snapshot computation, the snapshot
// cache, imports, HTTP traffic, and health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Snapshots ──────────────────────────────────────────────────────────────

// SnapshotsComputed tracks snapshot computations by outcome (ok, invalid, error).
var SnapshotsComputed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pulse",
	Name:      "snapshots_computed_total",
	Help:      "Total snapshot computations by outcome.",
}, []string{"outcome"})

// SnapshotLatency tracks how long a full snapshot takes to compute.
var SnapshotLatency = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "pulse",
	Name:      "snapshot_latency_seconds",
	Help:      "Snapshot computation duration in seconds, including record load.",
	Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
})

// AchievementsUnlocked tracks how many achievements the latest snapshot unlocked.
var AchievementsUnlocked = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "pulse",
	Name:      "achievements_unlocked",
	Help:      "Achievements unlocked in the most recent snapshot.",
})

// SuccessProbability tracks the projected chance of reaching the goal.
var SuccessProbability = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "pulse",
	Name:      "success_probability_percent",
	Help:      "Projected success probability of the most recent snapshot.",
})

// ─── Cache ──────────────────────────────────────────────────────────────────

// CacheHits tracks snapshot cache hits.
var CacheHits = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "pulse",
	Name:      "snapshot_cache_hits_total",
	Help:      "Snapshot requests served from cache.",
})

// CacheMisses tracks snapshot cache misses.
var CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "pulse",
	Name:      "snapshot_cache_misses_total",
	Help:      "Snapshot requests that required a computation.",
})

// ─── Imports ────────────────────────────────────────────────────────────────

// RecordsImported tracks stored rows by kind (daily, habits).
var RecordsImported = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pulse",
	Name:      "records_imported_total",
	Help:      "Total rows stored by import kind.",
}, []string{"kind"})

// RowsSkipped tracks rows dropped for lacking a usable date.
var RowsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pulse",
	Name:      "rows_skipped_total",
	Help:      "Total rows skipped because their date could not be parsed.",
}, []string{"kind"})

// MalformedCells tracks counter cells normalized to zero, by field.
var MalformedCells = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pulse",
	Name:      "malformed_cells_total",
	Help:      "Total non-numeric counter cells treated as zero.",
}, []string{"field"})

// ─── HTTP ───────────────────────────────────────────────────────────────────

// HTTPRequests tracks API requests by route and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pulse",
	Name:      "http_requests_total",
	Help:      "Total HTTP requests by route pattern and status.",
}, []string{"route", "status"})

// HTTPLatency tracks API request duration.
var HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "pulse",
	Name:      "http_request_duration_seconds",
	Help:      "HTTP request duration in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"route"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "pulse",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

// HealthRecoveries tracks auto-recovery attempts.
var HealthRecoveries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "pulse",
	Name:      "health_recoveries_total",
	Help:      "Total auto-recovery attempts per check.",
}, []string{"check"})
