package entities

import (
	"encoding/json"
	"time"
)

// JobRetryMeta is the retry state machine payload kept in result_summary.
type JobRetryMeta struct {
	MaxRetries        int    `json:"max_retries"`
	RetryDelayMinutes int    `json:"retry_delay_minutes"`
	RetryCount        int    `json:"retry_count"`
	ScheduledAt       string `json:"scheduled_at"` // ISO-8601 UTC
	LastError         string `json:"last_error,omitempty"`
}

func (m *JobRetryMeta) ScheduledTime() (time.Time, error) {
	return time.Parse(time.RFC3339, m.ScheduledAt)
}

type ScrapingJob struct {
	ID              int64      `db:"id"`
	JobID           string     `db:"job_id"`
	AirlineCode     string     `db:"airline_code"`
	AirlineName     string     `db:"airline_name"`
	JobType         string     `db:"job_type"`
	Status          string     `db:"status"`
	Priority        string     `db:"priority"`
	StartedAt       *time.Time `db:"started_at"`
	CompletedAt     *time.Time `db:"completed_at"`
	DurationSeconds *float64   `db:"duration_seconds"`
	DiscoveredCount int        `db:"discovered_count"`
	NewCount        int        `db:"new_count"`
	UpdatedCount    int        `db:"updated_count"`
	ErrorCount      int        `db:"error_count"`
	Progress        int        `db:"progress"`
	ErrorMessage    *string    `db:"error_message"`
	ResultSummary   []byte     `db:"result_summary"` // JSONB, see RetryMeta()
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}

// RetryMeta decodes the retry payload. Rows created outside the queue may not
// carry one; callers get zero values with MaxRetries defaulted by the queue.
func (j *ScrapingJob) RetryMeta() (*JobRetryMeta, error) {
	if len(j.ResultSummary) == 0 {
		return &JobRetryMeta{}, nil
	}
	var m JobRetryMeta
	if err := json.Unmarshal(j.ResultSummary, &m); err != nil {
		return nil, err
	}
	return &m, nil
}
