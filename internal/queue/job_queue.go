package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jbandu/fleetscraper/internal/constants"
	"github.com/jbandu/fleetscraper/internal/db/repositories"
	"github.com/jbandu/fleetscraper/internal/logging"
	"github.com/jbandu/fleetscraper/internal/models/entities"
)

// Counters are the per-job result counts written on completion.
type Counters struct {
	Discovered int
	New        int
	Updated    int
	Errors     int
}

// CreateOptions parameterize a new job. Zero values fall back to queue
// defaults.
type CreateOptions struct {
	JobType           constants.JobType
	Priority          constants.JobPriority
	MaxRetries        int
	RetryDelayMinutes int
	ScheduledAt       time.Time
}

// Defaults configure the retry policy applied when CreateOptions leave it
// unset.
type Defaults struct {
	MaxRetries        int
	RetryDelayMinutes int
}

// JobQueue is the persistent queue over the scraping_jobs table. Multiple
// scheduler processes may share one database; the lease protocol keeps them
// from double-dispatching.
type JobQueue struct {
	db       *sqlx.DB
	airlines *repositories.AirlineRepository
	defaults Defaults
}

func NewJobQueue(db *sqlx.DB, airlines *repositories.AirlineRepository, defaults Defaults) *JobQueue {
	if defaults.MaxRetries <= 0 {
		defaults.MaxRetries = 3
	}
	if defaults.RetryDelayMinutes <= 0 {
		defaults.RetryDelayMinutes = 30
	}
	return &JobQueue{db: db, airlines: airlines, defaults: defaults}
}

// Create enqueues a pending job for an airline. The airline must exist; the
// returned job id is the external handle for all later operations.
func (q *JobQueue) Create(ctx context.Context, airlineCode string, opts CreateOptions) (string, error) {
	airline, err := q.airlines.FindByCode(ctx, airlineCode)
	if err != nil {
		return "", err
	}

	if opts.JobType == "" {
		opts.JobType = constants.JobTypeFullFleetUpdate
	}
	if opts.Priority == "" {
		opts.Priority = constants.JobPriorityNormal
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = q.defaults.MaxRetries
	}
	if opts.RetryDelayMinutes <= 0 {
		opts.RetryDelayMinutes = q.defaults.RetryDelayMinutes
	}
	scheduledAt := opts.ScheduledAt
	if scheduledAt.IsZero() {
		scheduledAt = time.Now().UTC()
	}

	jobID := fmt.Sprintf("job_%s_%d", strings.ToUpper(airline.IATACode), time.Now().UnixMilli())

	meta, err := json.Marshal(entities.JobRetryMeta{
		MaxRetries:        opts.MaxRetries,
		RetryDelayMinutes: opts.RetryDelayMinutes,
		RetryCount:        0,
		ScheduledAt:       scheduledAt.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return "", err
	}

	var (
		id        int64
		createdAt time.Time
	)
	err = q.db.QueryRowxContext(ctx, constants.InsertScrapingJob,
		jobID,
		airline.IATACode,
		airline.Name,
		string(opts.JobType),
		string(opts.Priority),
		string(meta),
	).Scan(&id, &createdAt)
	if err != nil {
		return "", fmt.Errorf("insert job: %w", err)
	}

	logging.Info("job created",
		"job_id", jobID,
		"airline_code", airline.IATACode,
		"job_type", string(opts.JobType),
		"priority", string(opts.Priority),
	)
	return jobID, nil
}

// LeasedJob is a pending job selected for dispatch. The underlying row lock
// is held until Start or Release, so concurrent leasers skip past it.
type LeasedJob struct {
	Job entities.ScrapingJob
	tx  *sqlx.Tx
}

// Lease picks the next eligible pending job, highest priority first. Returns
// (nil, nil) when the queue has nothing eligible. The caller must Start or
// Release the lease.
func (q *JobQueue) Lease(ctx context.Context) (*LeasedJob, error) {
	tx, err := q.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}

	var job entities.ScrapingJob
	err = tx.QueryRowxContext(ctx, constants.LeaseScrapingJob).StructScan(&job)
	if errors.Is(err, sql.ErrNoRows) {
		_ = tx.Rollback()
		return nil, nil
	}
	if err != nil {
		_ = tx.Rollback()
		return nil, err
	}

	return &LeasedJob{Job: job, tx: tx}, nil
}

// Start transitions the leased job to running and releases the row lock.
func (l *LeasedJob) Start(ctx context.Context) error {
	if _, err := l.tx.ExecContext(ctx, constants.StartScrapingJob, l.Job.JobID); err != nil {
		_ = l.tx.Rollback()
		return fmt.Errorf("start job %s: %w", l.Job.JobID, err)
	}
	return l.tx.Commit()
}

// Release abandons the lease without state change, e.g. during shutdown.
func (l *LeasedJob) Release() error {
	return l.tx.Rollback()
}

// JobRow exposes the leased row.
func (l *LeasedJob) JobRow() *entities.ScrapingJob {
	return &l.Job
}

// Complete finishes a job successfully, recording duration and counters.
func (q *JobQueue) Complete(ctx context.Context, jobID string, c Counters) error {
	res, err := q.db.ExecContext(ctx, constants.CompleteScrapingJob,
		jobID, c.Discovered, c.New, c.Updated, c.Errors)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", constants.ErrJobNotFound, jobID)
	}
	return nil
}

// Fail records a failure. With retries left and shouldRetry set, the job goes
// back to pending with its scheduled time shifted by the retry delay;
// otherwise it is terminal.
func (q *JobQueue) Fail(ctx context.Context, jobID string, jobErr string, shouldRetry bool) error {
	job, err := q.GetStatus(ctx, jobID)
	if err != nil {
		return err
	}

	meta, err := job.RetryMeta()
	if err != nil {
		return fmt.Errorf("decode retry meta for %s: %w", jobID, err)
	}
	if meta.MaxRetries == 0 {
		meta.MaxRetries = q.defaults.MaxRetries
	}
	if meta.RetryDelayMinutes == 0 {
		meta.RetryDelayMinutes = q.defaults.RetryDelayMinutes
	}
	meta.LastError = jobErr

	if shouldRetry && meta.RetryCount+1 < meta.MaxRetries {
		meta.RetryCount++
		meta.ScheduledAt = time.Now().UTC().
			Add(time.Duration(meta.RetryDelayMinutes) * time.Minute).
			Format(time.RFC3339)

		encoded, err := json.Marshal(meta)
		if err != nil {
			return err
		}
		if _, err := q.db.ExecContext(ctx, constants.FailScrapingJobRetry, jobID, jobErr, string(encoded)); err != nil {
			return err
		}
		logging.Warn("job failed, retry scheduled",
			"job_id", jobID,
			"retry_count", meta.RetryCount,
			"scheduled_at", meta.ScheduledAt,
			"error", jobErr,
		)
		return nil
	}

	encoded, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx, constants.FailScrapingJobTerminal, jobID, jobErr, string(encoded)); err != nil {
		return err
	}
	logging.Error("job failed terminally", "job_id", jobID, "error", jobErr)
	return nil
}

// Cancel stops a pending or running job. Terminal jobs cannot be cancelled.
func (q *JobQueue) Cancel(ctx context.Context, jobID string) error {
	res, err := q.db.ExecContext(ctx, constants.CancelScrapingJob, jobID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		if _, err := q.GetStatus(ctx, jobID); err != nil {
			return err
		}
		return fmt.Errorf("%w: %s", constants.ErrInvalidJobState, jobID)
	}
	return nil
}

func (q *JobQueue) GetStatus(ctx context.Context, jobID string) (*entities.ScrapingJob, error) {
	var job entities.ScrapingJob
	err := q.db.QueryRowxContext(ctx, constants.GetScrapingJobByJobID, jobID).StructScan(&job)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", constants.ErrJobNotFound, jobID)
	}
	if err != nil {
		return nil, err
	}
	return &job, nil
}

// QueueStats is the per-status census of the jobs table.
type QueueStats struct {
	Pending   int `db:"pending"`
	Running   int `db:"running"`
	Completed int `db:"completed"`
	Failed    int `db:"failed"`
	Cancelled int `db:"cancelled"`
}

func (q *JobQueue) Stats(ctx context.Context) (*QueueStats, error) {
	rows, err := q.db.QueryxContext(ctx, constants.CountJobsByStatus)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	stats := &QueueStats{}
	for rows.Next() {
		var (
			status string
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		switch constants.JobStatus(status) {
		case constants.JobStatusPending:
			stats.Pending = count
		case constants.JobStatusRunning:
			stats.Running = count
		case constants.JobStatusCompleted:
			stats.Completed = count
		case constants.JobStatusFailed:
			stats.Failed = count
		case constants.JobStatusCancelled:
			stats.Cancelled = count
		}
	}
	return stats, rows.Err()
}

// CleanupOldJobs deletes terminal jobs older than the retention window.
func (q *JobQueue) CleanupOldJobs(ctx context.Context, days int) (int64, error) {
	res, err := q.db.ExecContext(ctx, constants.CleanupOldScrapingJobs, days)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ReclaimStale rescues jobs a dead worker left running. Jobs with retries
// left go back to pending with retry_count bumped; exhausted ones fail.
func (q *JobQueue) ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error) {
	tx, err := q.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	var stale []entities.ScrapingJob
	if err := tx.SelectContext(ctx, &stale, constants.ListStaleRunningJobs, int(olderThan.Minutes())); err != nil {
		return 0, err
	}

	reclaimed := 0
	for _, job := range stale {
		meta, err := job.RetryMeta()
		if err != nil {
			logging.Error("reclaim: bad retry meta", "job_id", job.JobID, "error", err.Error())
			continue
		}
		if meta.MaxRetries == 0 {
			meta.MaxRetries = q.defaults.MaxRetries
		}
		meta.LastError = "worker lost: job reclaimed after stale timeout"

		if meta.RetryCount < meta.MaxRetries {
			meta.RetryCount++
			meta.ScheduledAt = time.Now().UTC().Format(time.RFC3339)
			encoded, err := json.Marshal(meta)
			if err != nil {
				return 0, err
			}
			if _, err := tx.ExecContext(ctx, constants.FailScrapingJobRetry, job.JobID, meta.LastError, string(encoded)); err != nil {
				return 0, err
			}
			reclaimed++
		} else {
			encoded, err := json.Marshal(meta)
			if err != nil {
				return 0, err
			}
			if _, err := tx.ExecContext(ctx, constants.FailScrapingJobTerminal, job.JobID, meta.LastError, string(encoded)); err != nil {
				return 0, err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, err
	}
	if len(stale) > 0 {
		logging.Warn("stale jobs reclaimed", "reclaimed", reclaimed, "terminal", len(stale)-reclaimed)
	}
	return reclaimed, nil
}
