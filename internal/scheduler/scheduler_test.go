package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/jbandu/fleetscraper/internal/constants"
	"github.com/jbandu/fleetscraper/internal/models/dtos"
	"github.com/jbandu/fleetscraper/internal/models/entities"
	"github.com/jbandu/fleetscraper/internal/queue"
	"github.com/jbandu/fleetscraper/internal/workflow"
)

func TestShouldRetry(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{fmt.Errorf("%w: XX", constants.ErrAirlineNotFound), false},
		{fmt.Errorf("%w: 738", constants.ErrAircraftTypeNotFound), false},
		{fmt.Errorf("%w", constants.ErrInvalidRegistration), false},
		{fmt.Errorf("wrapped twice: %w", fmt.Errorf("%w: XX", constants.ErrAirlineNotFound)), false},
		{errors.New("connection reset by peer"), true},
		{sql.ErrConnDone, true},
		{context.DeadlineExceeded, true},
	}
	for _, c := range cases {
		if got := ShouldRetry(c.err); got != c.want {
			t.Errorf("ShouldRetry(%v) = %v, want %v", c.err, got, c.want)
		}
	}
}

type fakeLease struct {
	job     *entities.ScrapingJob
	started bool
}

func (l *fakeLease) JobRow() *entities.ScrapingJob { return l.job }
func (l *fakeLease) Start(context.Context) error   { l.started = true; return nil }
func (l *fakeLease) Release() error                { return nil }

type fakeQueue struct {
	mu        sync.Mutex
	pending   []*entities.ScrapingJob
	completed map[string]queue.Counters
	failed    map[string]bool // jobID -> shouldRetry
	created   []string
	priority  map[string]constants.JobPriority
	reclaimed int
}

func newFakeQueue(jobs ...*entities.ScrapingJob) *fakeQueue {
	return &fakeQueue{
		pending:   jobs,
		completed: make(map[string]queue.Counters),
		failed:    make(map[string]bool),
		priority:  make(map[string]constants.JobPriority),
	}
}

func (q *fakeQueue) Lease(context.Context) (Lease, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		return nil, nil
	}
	job := q.pending[0]
	q.pending = q.pending[1:]
	return &fakeLease{job: job}, nil
}

func (q *fakeQueue) Create(_ context.Context, airlineCode string, opts queue.CreateOptions) (string, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.created = append(q.created, airlineCode)
	q.priority[airlineCode] = opts.Priority
	return "job_" + airlineCode + "_1", nil
}

func (q *fakeQueue) Complete(_ context.Context, jobID string, c queue.Counters) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.completed[jobID] = c
	return nil
}

func (q *fakeQueue) Fail(_ context.Context, jobID string, _ string, shouldRetry bool) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.failed[jobID] = shouldRetry
	return nil
}

func (q *fakeQueue) ReclaimStale(context.Context, time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.reclaimed++
	return 0, nil
}

type fakeAirlines struct {
	due []entities.Airline
}

func (f *fakeAirlines) ListDue(context.Context, int, int) ([]entities.Airline, error) {
	return f.due, nil
}

type fakeRunner struct {
	mu      sync.Mutex
	results map[string]*dtos.WorkflowResult
	errs    map[string]error
	calls   []string
}

func (r *fakeRunner) RunFullUpdate(_ context.Context, airlineCode string, _ workflow.Options) (*dtos.WorkflowResult, error) {
	r.mu.Lock()
	r.calls = append(r.calls, airlineCode)
	r.mu.Unlock()
	if err, ok := r.errs[airlineCode]; ok {
		return nil, err
	}
	if res, ok := r.results[airlineCode]; ok {
		return res, nil
	}
	return &dtos.WorkflowResult{}, nil
}

func runScheduler(t *testing.T, s *Scheduler, d time.Duration) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	if err := s.Run(ctx); err != nil {
		t.Fatalf("scheduler run: %v", err)
	}
}

func TestScheduler_CompletesLeasedJob(t *testing.T) {
	job := &entities.ScrapingJob{JobID: "job_ZZ_1", AirlineCode: "ZZ", JobType: "full_fleet_update", Priority: "normal"}
	q := newFakeQueue(job)
	runner := &fakeRunner{results: map[string]*dtos.WorkflowResult{
		"ZZ": {AircraftFound: 2, AircraftAdded: 2},
	}}

	s := New(Config{PollInterval: 5 * time.Millisecond}, q, &fakeAirlines{}, runner, nil)
	runScheduler(t, s, 100*time.Millisecond)

	counters, ok := q.completed["job_ZZ_1"]
	if !ok {
		t.Fatal("expected job completed")
	}
	if counters.Discovered != 2 || counters.New != 2 {
		t.Errorf("unexpected counters: %+v", counters)
	}
	if q.reclaimed != 1 {
		t.Errorf("expected one startup reclamation pass, got %d", q.reclaimed)
	}
}

func TestScheduler_NonRetryableFailure(t *testing.T) {
	job := &entities.ScrapingJob{JobID: "job_XX_1", AirlineCode: "XX"}
	q := newFakeQueue(job)
	runner := &fakeRunner{errs: map[string]error{
		"XX": fmt.Errorf("%w: XX", constants.ErrAirlineNotFound),
	}}

	s := New(Config{PollInterval: 5 * time.Millisecond}, q, &fakeAirlines{}, runner, nil)
	runScheduler(t, s, 100*time.Millisecond)

	shouldRetry, ok := q.failed["job_XX_1"]
	if !ok {
		t.Fatal("expected job failed")
	}
	if shouldRetry {
		t.Error("airline-not-found must not be retried")
	}
}

func TestScheduler_TransientFailureRetries(t *testing.T) {
	job := &entities.ScrapingJob{JobID: "job_ZZ_1", AirlineCode: "ZZ"}
	q := newFakeQueue(job)
	runner := &fakeRunner{errs: map[string]error{
		"ZZ": errors.New("pq: connection reset"),
	}}

	s := New(Config{PollInterval: 5 * time.Millisecond}, q, &fakeAirlines{}, runner, nil)
	runScheduler(t, s, 100*time.Millisecond)

	shouldRetry, ok := q.failed["job_ZZ_1"]
	if !ok {
		t.Fatal("expected job failed")
	}
	if !shouldRetry {
		t.Error("transient failures must be retried")
	}
}

func TestScheduler_DrainsAllPendingJobs(t *testing.T) {
	jobs := []*entities.ScrapingJob{
		{JobID: "job_AA_1", AirlineCode: "AA"},
		{JobID: "job_BB_1", AirlineCode: "BB"},
		{JobID: "job_CC_1", AirlineCode: "CC"},
		{JobID: "job_DD_1", AirlineCode: "DD"},
	}
	q := newFakeQueue(jobs...)
	runner := &fakeRunner{}

	s := New(Config{MaxConcurrentJobs: 2, PollInterval: 2 * time.Millisecond}, q, &fakeAirlines{}, runner, nil)
	runScheduler(t, s, 200*time.Millisecond)

	if len(q.completed) != 4 {
		t.Errorf("expected all 4 jobs completed, got %d", len(q.completed))
	}
}

func TestEnqueueDueAirlines_PriorityByScrapeHistory(t *testing.T) {
	never := entities.Airline{IATACode: "AA", Name: "Alpha"}
	scraped := time.Now().AddDate(0, 0, -10)
	stale := entities.Airline{IATACode: "BB", Name: "Bravo", LastScrapedAt: &scraped}

	q := newFakeQueue()
	s := New(Config{}, q, &fakeAirlines{due: []entities.Airline{never, stale}}, &fakeRunner{}, nil)

	s.enqueueDueAirlines(context.Background())

	if len(q.created) != 2 {
		t.Fatalf("expected 2 jobs enqueued, got %v", q.created)
	}
	if q.priority["AA"] != constants.JobPriorityHigh {
		t.Errorf("never-scraped airline must enqueue high, got %q", q.priority["AA"])
	}
	if q.priority["BB"] != constants.JobPriorityNormal {
		t.Errorf("stale airline must enqueue normal, got %q", q.priority["BB"])
	}
}

func TestConfigDefaults(t *testing.T) {
	cfg := Config{}
	cfg.applyDefaults()

	if cfg.MaxConcurrentJobs != 3 {
		t.Errorf("expected 3 concurrent jobs, got %d", cfg.MaxConcurrentJobs)
	}
	if cfg.PollInterval != 5*time.Second {
		t.Errorf("expected 5s poll interval, got %s", cfg.PollInterval)
	}
	if cfg.CronExpression != "0 2 * * *" {
		t.Errorf("unexpected cron default %q", cfg.CronExpression)
	}
	if cfg.StaleJobTimeout != time.Hour {
		t.Errorf("expected 1h stale timeout, got %s", cfg.StaleJobTimeout)
	}
	if cfg.EnqueueCapPerTick != 100 {
		t.Errorf("expected enqueue cap 100, got %d", cfg.EnqueueCapPerTick)
	}
}
