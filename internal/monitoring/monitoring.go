package monitoring

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/jbandu/fleetscraper/internal/constants"
	"github.com/jbandu/fleetscraper/internal/models/entities"
)

// Monitor aggregates queue, coverage and data-quality counters. Strictly
// read-only; the engine never depends on it.
type Monitor struct {
	db *sqlx.DB
}

func NewMonitor(db *sqlx.DB) *Monitor {
	return &Monitor{db: db}
}

type QueueCounters struct {
	Pending      int `db:"pending" json:"pending"`
	Running      int `db:"running" json:"running"`
	Completed24h int `db:"completed_24h" json:"completed_24h"`
	Failed24h    int `db:"failed_24h" json:"failed_24h"`
	Total7d      int `db:"total_7d" json:"total_7d"`
}

type AirlineCoverage struct {
	Scraped      int `db:"scraped" json:"scraped"`
	NeverScraped int `db:"never_scraped" json:"never_scraped"`
	Stale        int `db:"stale" json:"stale"`
}

type ConfidenceBuckets struct {
	High     int `db:"high" json:"high"`
	Medium   int `db:"medium" json:"medium"`
	Low      int `db:"low" json:"low"`
	Unscored int `db:"unscored" json:"unscored"`
}

// EngineStats is the full monitoring snapshot.
type EngineStats struct {
	Queue              QueueCounters     `json:"queue"`
	Coverage           AirlineCoverage   `json:"airline_coverage"`
	Quality            ConfidenceBuckets `json:"data_quality"`
	AvgDurationSeconds float64           `json:"avg_job_duration_seconds"`
}

func (m *Monitor) GetStats(ctx context.Context) (*EngineStats, error) {
	stats := &EngineStats{}

	if err := m.db.QueryRowxContext(ctx, constants.QueueCounters).StructScan(&stats.Queue); err != nil {
		return nil, err
	}
	if err := m.db.QueryRowxContext(ctx, constants.AirlineCoverage).StructScan(&stats.Coverage); err != nil {
		return nil, err
	}
	if err := m.db.QueryRowxContext(ctx, constants.ConfidenceBuckets).StructScan(&stats.Quality); err != nil {
		return nil, err
	}
	if err := m.db.QueryRowxContext(ctx, constants.AverageJobDuration).Scan(&stats.AvgDurationSeconds); err != nil {
		return nil, err
	}

	return stats, nil
}

// RecentJobs returns the latest jobs, newest first.
func (m *Monitor) RecentJobs(ctx context.Context, limit int) ([]entities.ScrapingJob, error) {
	if limit <= 0 {
		limit = 20
	}
	var jobs []entities.ScrapingJob
	if err := m.db.SelectContext(ctx, &jobs, constants.RecentJobs, limit); err != nil {
		return nil, err
	}
	return jobs, nil
}
