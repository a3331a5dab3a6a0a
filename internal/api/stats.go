package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/jbandu/fleetscraper/internal/logging"
	"github.com/jbandu/fleetscraper/internal/monitoring"
)

// StatsHandler handles GET /stats
func StatsHandler(monitor *monitoring.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := monitor.GetStats(r.Context())
		if err != nil {
			logging.Error("stats query failed", "error", err.Error())
			http.Error(w, "stats unavailable", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(stats)
	}
}

type jobSummary struct {
	JobID           string     `json:"job_id"`
	AirlineCode     string     `json:"airline_code"`
	AirlineName     string     `json:"airline_name"`
	JobType         string     `json:"job_type"`
	Status          string     `json:"status"`
	Priority        string     `json:"priority"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	DurationSeconds *float64   `json:"duration_seconds,omitempty"`
	DiscoveredCount int        `json:"discovered_count"`
	NewCount        int        `json:"new_count"`
	UpdatedCount    int        `json:"updated_count"`
	ErrorCount      int        `json:"error_count"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// RecentJobsHandler handles GET /jobs/recent
func RecentJobsHandler(monitor *monitoring.Monitor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		jobs, err := monitor.RecentJobs(r.Context(), 20)
		if err != nil {
			logging.Error("recent jobs query failed", "error", err.Error())
			http.Error(w, "jobs unavailable", http.StatusInternalServerError)
			return
		}

		out := make([]jobSummary, 0, len(jobs))
		for _, j := range jobs {
			out = append(out, jobSummary{
				JobID:           j.JobID,
				AirlineCode:     j.AirlineCode,
				AirlineName:     j.AirlineName,
				JobType:         j.JobType,
				Status:          j.Status,
				Priority:        j.Priority,
				StartedAt:       j.StartedAt,
				CompletedAt:     j.CompletedAt,
				DurationSeconds: j.DurationSeconds,
				DiscoveredCount: j.DiscoveredCount,
				NewCount:        j.NewCount,
				UpdatedCount:    j.UpdatedCount,
				ErrorCount:      j.ErrorCount,
				ErrorMessage:    j.ErrorMessage,
				CreatedAt:       j.CreatedAt,
			})
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(out)
	}
}
