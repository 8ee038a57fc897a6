package queue

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/everstory-ai/everstory/pkg/domain/interfaces"
	"github.com/everstory-ai/everstory/pkg/domain/model"
	"github.com/everstory-ai/everstory/pkg/domain/types"
	"github.com/everstory-ai/everstory/pkg/utils/logging"
)

// Handler processes one job payload. Handlers run with at-least-once
// semantics: a retry re-executes the full handler, so they must tolerate
// re-runs.
type Handler func(ctx context.Context, payload json.RawMessage) error

// Queue is an in-process work queue with named job types, retry with
// exponential backoff, and a retained failed set for operator inspection.
//
// Architecture assumptions:
// - Single server instance (no distributed locking)
// - For horizontal scaling, replace with a broker-backed implementation
//   behind the same interfaces.JobQueue
type Queue struct {
	mu          sync.Mutex
	handlers    map[types.JobName]Handler
	pending     map[string]*model.Job
	failed      []*model.Job
	timers      map[string]*time.Timer
	ready       chan *model.Job
	backoffBase time.Duration
	workers     int
	stopCh      chan struct{}
	wg          sync.WaitGroup
	started     bool
}

var _ interfaces.JobQueue = &Queue{}

// Option customizes the queue
type Option func(*Queue)

// WithWorkers sets the number of concurrent worker goroutines
func WithWorkers(n int) Option {
	return func(q *Queue) {
		q.workers = n
	}
}

// WithBackoffBase overrides the base retry delay (tests use a short one)
func WithBackoffBase(d time.Duration) Option {
	return func(q *Queue) {
		q.backoffBase = d
	}
}

// New creates a stopped queue. Register handlers, then call Start.
func New(opts ...Option) *Queue {
	q := &Queue{
		handlers:    make(map[types.JobName]Handler),
		pending:     make(map[string]*model.Job),
		timers:      make(map[string]*time.Timer),
		ready:       make(chan *model.Job, 256),
		backoffBase: model.JobBackoffBase,
		workers:     4,
		stopCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Register binds a handler to a job name. Must be called before Start.
func (q *Queue) Register(name types.JobName, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[name] = handler
}

// Add enqueues a job. A duplicate pending JobID is dropped silently so the
// enqueue is idempotent.
func (q *Queue) Add(ctx context.Context, name types.JobName, payload any, opts ...interfaces.JobOption) error {
	if !name.IsValid() {
		return goerr.New("unknown job name", goerr.V("name", name))
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return goerr.Wrap(err, "failed to marshal job payload", goerr.V("name", name))
	}

	cfg := &interfaces.JobConfig{
		MaxAttempts: model.JobMaxAttempts,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	jobID := cfg.JobID
	if jobID == "" {
		jobID = model.NewJobID()
	}

	q.mu.Lock()
	if _, exists := q.pending[jobID]; exists {
		q.mu.Unlock()
		logging.From(ctx).Info("duplicate pending job dropped",
			"job_id", jobID,
			"name", name,
		)
		return nil
	}

	job := &model.Job{
		ID:          jobID,
		Name:        name,
		Payload:     raw,
		MaxAttempts: cfg.MaxAttempts,
		NextRunAt:   time.Now().Add(cfg.Delay),
		CreatedAt:   time.Now(),
	}
	q.pending[jobID] = job
	q.mu.Unlock()

	logging.From(ctx).Info("job enqueued",
		"job_id", jobID,
		"name", name,
		"delay", cfg.Delay.String(),
	)

	q.schedule(job, cfg.Delay)
	return nil
}

// Start launches the worker goroutines
func (q *Queue) Start(ctx context.Context) error {
	q.mu.Lock()
	if q.started {
		q.mu.Unlock()
		return goerr.New("queue already started")
	}
	q.started = true
	q.mu.Unlock()

	logging.Default().Info("job queue starting", "workers", q.workers)

	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.run(ctx)
	}
	return nil
}

// Stop signals workers to stop and waits for in-flight jobs to finish.
// Delayed retries that have not fired yet are cancelled.
func (q *Queue) Stop() {
	logging.Default().Info("job queue stopping")
	close(q.stopCh)

	q.mu.Lock()
	for _, t := range q.timers {
		t.Stop()
	}
	q.timers = make(map[string]*time.Timer)
	q.mu.Unlock()

	q.wg.Wait()
	logging.Default().Info("job queue stopped")
}

// Failed returns a snapshot of jobs that exhausted their retry budget
func (q *Queue) Failed() []*model.Job {
	q.mu.Lock()
	defer q.mu.Unlock()

	result := make([]*model.Job, len(q.failed))
	copy(result, q.failed)
	return result
}

// PendingCount returns the number of jobs waiting or running
func (q *Queue) PendingCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) schedule(job *model.Job, delay time.Duration) {
	if delay <= 0 {
		q.push(job)
		return
	}

	q.mu.Lock()
	q.timers[job.ID] = time.AfterFunc(delay, func() {
		q.mu.Lock()
		delete(q.timers, job.ID)
		q.mu.Unlock()
		q.push(job)
	})
	q.mu.Unlock()
}

func (q *Queue) push(job *model.Job) {
	select {
	case q.ready <- job:
	case <-q.stopCh:
	}
}

func (q *Queue) run(ctx context.Context) {
	defer q.wg.Done()

	for {
		select {
		case job := <-q.ready:
			q.process(ctx, job)

		case <-q.stopCh:
			return

		case <-ctx.Done():
			return
		}
	}
}

func (q *Queue) process(ctx context.Context, job *model.Job) {
	logger := logging.From(ctx)

	q.mu.Lock()
	handler, exists := q.handlers[job.Name]
	q.mu.Unlock()

	if !exists {
		logger.Error("no handler registered for job", "name", job.Name, "job_id", job.ID)
		q.fail(job)
		return
	}

	job.Attempts++
	err := q.invoke(ctx, handler, job)
	if err == nil {
		// removeOnComplete: successful jobs are pruned
		q.mu.Lock()
		delete(q.pending, job.ID)
		q.mu.Unlock()

		logger.Info("job completed", "job_id", job.ID, "name", job.Name, "attempts", job.Attempts)
		return
	}

	job.LastError = err.Error()
	logger.Error("job failed",
		"job_id", job.ID,
		"name", job.Name,
		"attempt", job.Attempts,
		"max_attempts", job.MaxAttempts,
		"error", goerr.Unwrap(err),
	)

	if job.Attempts >= job.MaxAttempts {
		q.fail(job)
		return
	}

	backoff := job.Backoff(q.backoffBase)
	job.NextRunAt = time.Now().Add(backoff)
	q.schedule(job, backoff)
}

func (q *Queue) invoke(ctx context.Context, handler Handler, job *model.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = goerr.New("panic in job handler", goerr.V("panic", r), goerr.V("name", job.Name))
		}
	}()
	return handler(ctx, job.Payload)
}

// fail moves a job to the retained failed set (removeOnFail=false)
func (q *Queue) fail(job *model.Job) {
	q.mu.Lock()
	defer q.mu.Unlock()

	delete(q.pending, job.ID)
	q.failed = append(q.failed, job)
}
