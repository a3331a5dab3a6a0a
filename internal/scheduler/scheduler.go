package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/jbandu/fleetscraper/internal/constants"
	"github.com/jbandu/fleetscraper/internal/logging"
	"github.com/jbandu/fleetscraper/internal/metrics"
	"github.com/jbandu/fleetscraper/internal/models/dtos"
	"github.com/jbandu/fleetscraper/internal/models/entities"
	"github.com/jbandu/fleetscraper/internal/queue"
	"github.com/jbandu/fleetscraper/internal/workflow"
)

// Config bounds the scheduler loop.
type Config struct {
	MaxConcurrentJobs   int
	PollInterval        time.Duration
	WorkflowConcurrency int
	CronEnabled         bool
	CronExpression      string
	Timezone            string
	StaleJobTimeout     time.Duration
	StaleAfterDays      int
	EnqueueCapPerTick   int
}

func (c *Config) applyDefaults() {
	if c.MaxConcurrentJobs <= 0 {
		c.MaxConcurrentJobs = 3
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.CronExpression == "" {
		c.CronExpression = "0 2 * * *"
	}
	if c.Timezone == "" {
		c.Timezone = "UTC"
	}
	if c.StaleJobTimeout <= 0 {
		c.StaleJobTimeout = time.Hour
	}
	if c.StaleAfterDays <= 0 {
		c.StaleAfterDays = 7
	}
	if c.EnqueueCapPerTick <= 0 {
		c.EnqueueCapPerTick = 100
	}
}

// Lease is one claimed pending job.
type Lease interface {
	JobRow() *entities.ScrapingJob
	Start(ctx context.Context) error
	Release() error
}

// Queue is the queue surface the scheduler drives.
type Queue interface {
	Lease(ctx context.Context) (Lease, error)
	Create(ctx context.Context, airlineCode string, opts queue.CreateOptions) (string, error)
	Complete(ctx context.Context, jobID string, c queue.Counters) error
	Fail(ctx context.Context, jobID string, jobErr string, shouldRetry bool) error
	ReclaimStale(ctx context.Context, olderThan time.Duration) (int, error)
}

// AirlineLister feeds the cron branch.
type AirlineLister interface {
	ListDue(ctx context.Context, staleDays, limit int) ([]entities.Airline, error)
}

// WorkflowRunner executes one airline update.
type WorkflowRunner interface {
	RunFullUpdate(ctx context.Context, airlineCode string, opts workflow.Options) (*dtos.WorkflowResult, error)
}

// QueueFacade adapts *queue.JobQueue to the Queue interface (its Lease
// returns a concrete type).
type QueueFacade struct {
	*queue.JobQueue
}

func (f QueueFacade) Lease(ctx context.Context) (Lease, error) {
	lease, err := f.JobQueue.Lease(ctx)
	if err != nil || lease == nil {
		return nil, err
	}
	return lease, nil
}

// Scheduler polls the queue, runs up to MaxConcurrentJobs workflows at once
// and enqueues due airlines on the cron tick.
type Scheduler struct {
	cfg      Config
	queue    Queue
	airlines AirlineLister
	workflow WorkflowRunner
	metrics  *metrics.MetricsRegistry
	workerID string

	mu     sync.Mutex
	active map[string]struct{}
	wg     sync.WaitGroup
}

func New(cfg Config, q Queue, airlines AirlineLister, wf WorkflowRunner, metricsReg *metrics.MetricsRegistry) *Scheduler {
	cfg.applyDefaults()
	return &Scheduler{
		cfg:      cfg,
		queue:    q,
		airlines: airlines,
		workflow: wf,
		metrics:  metricsReg,
		workerID: uuid.NewString()[:8],
		active:   make(map[string]struct{}),
	}
}

// Run blocks until ctx is cancelled, then drains active jobs before
// returning. Jobs already dispatched are never interrupted; cancellation
// stops leasing and the cron branch only.
func (s *Scheduler) Run(ctx context.Context) error {
	logging.Info("scheduler starting",
		"worker_id", s.workerID,
		"max_concurrent_jobs", s.cfg.MaxConcurrentJobs,
		"poll_interval", s.cfg.PollInterval.String(),
		"cron_enabled", s.cfg.CronEnabled,
	)

	if reclaimed, err := s.queue.ReclaimStale(ctx, s.cfg.StaleJobTimeout); err != nil {
		logging.Error("stale job reclamation failed", "error", err.Error())
	} else if reclaimed > 0 {
		logging.Info("stale jobs requeued", "count", reclaimed)
	}

	var cronRunner *cron.Cron
	if s.cfg.CronEnabled {
		loc, err := time.LoadLocation(s.cfg.Timezone)
		if err != nil {
			return fmt.Errorf("load timezone %q: %w", s.cfg.Timezone, err)
		}
		cronRunner = cron.New(cron.WithLocation(loc))
		if _, err := cronRunner.AddFunc(s.cfg.CronExpression, func() {
			s.enqueueDueAirlines(context.Background())
		}); err != nil {
			return fmt.Errorf("cron expression %q: %w", s.cfg.CronExpression, err)
		}
		cronRunner.Start()
		logging.Info("cron enabled", "expression", s.cfg.CronExpression, "timezone", s.cfg.Timezone)
	}

	for ctx.Err() == nil {
		if s.activeCount() >= s.cfg.MaxConcurrentJobs {
			s.sleep(ctx)
			continue
		}

		lease, err := s.queue.Lease(ctx)
		if err != nil {
			if ctx.Err() == nil {
				logging.Error("lease failed", "error", err.Error())
			}
			s.sleep(ctx)
			continue
		}
		if lease == nil {
			s.sleep(ctx)
			continue
		}

		job := lease.JobRow()
		if err := lease.Start(ctx); err != nil {
			logging.Error("job start failed", "job_id", job.JobID, "error", err.Error())
			continue
		}

		s.track(job.JobID)
		s.wg.Add(1)
		// Dispatched jobs run to completion even through shutdown; a hard
		// kill leaves them running for reclamation.
		go s.execute(context.WithoutCancel(ctx), job)
	}

	if cronRunner != nil {
		cronRunner.Stop()
	}
	logging.Info("scheduler draining", "active_jobs", s.activeCount())
	s.wg.Wait()
	logging.Info("scheduler stopped", "worker_id", s.workerID)
	return nil
}

func (s *Scheduler) execute(ctx context.Context, job *entities.ScrapingJob) {
	defer s.wg.Done()
	defer s.untrack(job.JobID)

	log := logging.WithJob(job.JobID, job.AirlineCode)
	started := time.Now()

	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("panic: %v", r)
			log.Errorw("job panicked", "panic", msg)
			if err := s.queue.Fail(ctx, job.JobID, msg, true); err != nil {
				log.Errorw("fail after panic failed", "error", err.Error())
			}
			s.countOutcome("panic")
		}
	}()

	log.Infow("job started", "job_type", job.JobType, "priority", job.Priority)

	result, err := s.workflow.RunFullUpdate(ctx, job.AirlineCode, workflow.Options{})
	if err != nil {
		retry := ShouldRetry(err)
		log.Warnw("job failed", "error", err.Error(), "retryable", retry)
		if failErr := s.queue.Fail(ctx, job.JobID, err.Error(), retry); failErr != nil {
			log.Errorw("recording failure failed", "error", failErr.Error())
		}
		s.countOutcome("failed")
		return
	}

	counters := queue.Counters{
		Discovered: result.AircraftFound,
		New:        result.AircraftAdded,
		Updated:    result.AircraftUpdated,
		Errors:     result.Errors,
	}
	if err := s.queue.Complete(ctx, job.JobID, counters); err != nil {
		log.Errorw("recording completion failed", "error", err.Error())
		return
	}

	s.countOutcome("completed")
	if s.metrics != nil {
		s.metrics.JobDurationSeconds.WithLabelValues(job.JobType).Observe(time.Since(started).Seconds())
	}
	log.Infow("job completed",
		"found", result.AircraftFound,
		"added", result.AircraftAdded,
		"updated", result.AircraftUpdated,
		"errors", result.Errors,
		"duration_ms", result.DurationMS,
	)
}

// enqueueDueAirlines creates pending jobs for every enabled airline that has
// never been scraped or has gone stale, capped per tick.
func (s *Scheduler) enqueueDueAirlines(ctx context.Context) {
	due, err := s.airlines.ListDue(ctx, s.cfg.StaleAfterDays, s.cfg.EnqueueCapPerTick)
	if err != nil {
		logging.Error("cron: listing due airlines failed", "error", err.Error())
		return
	}

	enqueued := 0
	for _, airline := range due {
		priority := constants.JobPriorityNormal
		if airline.LastScrapedAt == nil {
			priority = constants.JobPriorityHigh
		}

		if _, err := s.queue.Create(ctx, airline.IATACode, queue.CreateOptions{
			JobType:  constants.JobTypeFullFleetUpdate,
			Priority: priority,
		}); err != nil {
			logging.Error("cron: enqueue failed", "airline_code", airline.IATACode, "error", err.Error())
			continue
		}
		enqueued++
	}

	if enqueued > 0 {
		logging.Info("cron: airlines enqueued", "count", enqueued)
	}
}

// ShouldRetry classifies a job error. Input errors can never succeed on a
// re-run; everything else is assumed transient.
func ShouldRetry(err error) bool {
	switch {
	case errors.Is(err, constants.ErrAirlineNotFound),
		errors.Is(err, constants.ErrAircraftTypeNotFound),
		errors.Is(err, constants.ErrInvalidRegistration):
		return false
	}
	return true
}

func (s *Scheduler) countOutcome(outcome string) {
	if s.metrics != nil {
		s.metrics.JobsProcessedTotal.WithLabelValues(outcome).Inc()
	}
}

func (s *Scheduler) activeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}

func (s *Scheduler) track(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active[jobID] = struct{}{}
}

func (s *Scheduler) untrack(jobID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, jobID)
}

func (s *Scheduler) sleep(ctx context.Context) {
	select {
	case <-ctx.Done():
	case <-time.After(s.cfg.PollInterval):
	}
}
