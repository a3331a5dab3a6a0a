package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsRegistry holds all Prometheus metrics for the scraping engine
type MetricsRegistry struct {
	// Job metrics
	JobsProcessedTotal prometheus.CounterVec
	JobDurationSeconds prometheus.HistogramVec
	QueueDepth         prometheus.GaugeVec

	// Scrape metrics
	SourcesScrapedTotal prometheus.CounterVec
	PageLoadDuration    prometheus.HistogramVec
	ExtractionsTotal    prometheus.CounterVec

	// Persistence metrics
	AircraftUpsertsTotal  prometheus.CounterVec
	ValidationIssuesTotal prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   prometheus.CounterVec
	CacheMissesTotal prometheus.CounterVec
}

// NewMetricsRegistry initializes and returns a new MetricsRegistry with all metrics
func NewMetricsRegistry() *MetricsRegistry {
	return &MetricsRegistry{
		JobsProcessedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleetscraper_jobs_processed_total",
				Help: "Total scraping jobs finished by terminal outcome",
			},
			[]string{"outcome"},
		),
		JobDurationSeconds: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fleetscraper_job_duration_seconds",
				Help:    "Wall-clock duration of scraping jobs",
				Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
			},
			[]string{"job_type"},
		),
		QueueDepth: *promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "fleetscraper_queue_depth",
				Help: "Jobs currently in the queue by status",
			},
			[]string{"status"},
		),
		SourcesScrapedTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleetscraper_sources_scraped_total",
				Help: "Scrape attempts against external sources by type and result",
			},
			[]string{"source_type", "result"},
		),
		PageLoadDuration: *promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fleetscraper_page_load_duration_seconds",
				Help:    "Page fetch latency distribution",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"host"},
		),
		ExtractionsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleetscraper_extractions_total",
				Help: "Structured extraction calls by result",
			},
			[]string{"result"},
		),
		AircraftUpsertsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleetscraper_aircraft_upserts_total",
				Help: "Aircraft rows written by operation",
			},
			[]string{"operation"},
		),
		ValidationIssuesTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleetscraper_validation_issues_total",
				Help: "Validation issues raised by severity",
			},
			[]string{"severity"},
		),
		CacheHitsTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleetscraper_cache_hits_total",
				Help: "Total cache hits by cache key pattern",
			},
			[]string{"cache_key_pattern"},
		),
		CacheMissesTotal: *promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fleetscraper_cache_misses_total",
				Help: "Total cache misses by cache key pattern",
			},
			[]string{"cache_key_pattern"},
		),
	}
}
