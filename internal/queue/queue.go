package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"momentiq.app/pipeline/common/logger"
)

// HandlerFunc processes one job. Handlers run under a per-job lock with a
// fixed TTL; a handler that outlives the TTL risks concurrent re-execution,
// so handlers must tolerate at-least-once delivery.
type HandlerFunc func(ctx context.Context, job Job) error

const reasonNoHandler = "no handler registered"

type Config struct {
	PendingSet    string
	DeadLetterSet string
	PollInterval  time.Duration // how often the poller wakes up
	BatchSize     int64         // max due jobs fetched per poll
	LockTTL       time.Duration // per-job lock lifetime
	MaxAttempts   int           // default retry budget for enqueued jobs
}

// Queue is a delayed, retryable job queue over a scored-set backend.
// It is an explicitly constructed service with a Run/Stop lifecycle; multiple
// independent queues can coexist and tests get clean teardown.
type Queue struct {
	sets  SortedSetStore
	locks Locker
	cfg   Config

	mu       sync.RWMutex
	handlers map[JobType]HandlerFunc

	stopOnce  sync.Once
	stopCh    chan struct{}
	stoppedCh chan struct{}
}

func New(sets SortedSetStore, locks Locker, cfg Config) *Queue {
	if cfg.PendingSet == "" {
		cfg.PendingSet = "jobs:pending"
	}
	if cfg.DeadLetterSet == "" {
		cfg.DeadLetterSet = "jobs:dead"
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = 30 * time.Second
	}
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 3
	}

	return &Queue{
		sets:      sets,
		locks:     locks,
		cfg:       cfg,
		handlers:  make(map[JobType]HandlerFunc),
		stopCh:    make(chan struct{}),
		stoppedCh: make(chan struct{}),
	}
}

// RegisterHandler associates a processing function with a job type.
// Jobs whose type has no handler are dead-lettered immediately with a
// distinct reason, never silently dropped.
func (q *Queue) RegisterHandler(jobType JobType, handler HandlerFunc) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
}

// EnqueueOption customizes a single enqueue call.
type EnqueueOption func(*Job)

// WithDelay defers the job's first eligibility by d.
func WithDelay(d time.Duration) EnqueueOption {
	return func(j *Job) {
		j.ScheduledAt = j.CreatedAt.Add(d)
	}
}

// WithMaxAttempts overrides the queue's default retry budget.
func WithMaxAttempts(n int) EnqueueOption {
	return func(j *Job) {
		if n > 0 {
			j.MaxAttempts = n
		}
	}
}

// WithTraceID propagates a trace across the queue boundary.
func WithTraceID(traceID string) EnqueueOption {
	return func(j *Job) {
		j.TraceID = traceID
	}
}

// Enqueue creates a job scored into the pending set by its scheduled time.
func (q *Queue) Enqueue(ctx context.Context, jobType JobType, payload any, opts ...EnqueueOption) (string, error) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encoding payload: %w", err)
	}

	now := time.Now().UTC()
	job := Job{
		ID:          uuid.NewString(),
		Type:        jobType,
		Payload:     encoded,
		MaxAttempts: q.cfg.MaxAttempts,
		CreatedAt:   now,
		ScheduledAt: now,
	}
	for _, opt := range opts {
		opt(&job)
	}

	member, err := job.encode()
	if err != nil {
		return "", err
	}

	if err := q.sets.AddScored(ctx, q.cfg.PendingSet, float64(job.ScheduledAt.Unix()), member); err != nil {
		return "", fmt.Errorf("enqueueing job: %w", err)
	}

	slog.InfoContext(ctx, "job enqueued",
		"job_id", job.ID,
		"job_type", string(job.Type),
		"scheduled_at", job.ScheduledAt)
	return job.ID, nil
}

// Run starts the poller loop. Blocks until Stop() is called or the context
// is cancelled. One poller per Queue instance.
func (q *Queue) Run(ctx context.Context) error {
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		Component: "pipeline.queue.poller",
	})

	defer close(q.stoppedCh)

	ticker := time.NewTicker(q.cfg.PollInterval)
	defer ticker.Stop()

	slog.InfoContext(ctx, "queue poller started",
		"interval", q.cfg.PollInterval,
		"pending_set", q.cfg.PendingSet,
		"dead_letter_set", q.cfg.DeadLetterSet)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-q.stopCh:
			slog.InfoContext(ctx, "queue poller stopping")
			return nil
		case <-ticker.C:
			if err := q.pollOnce(ctx); err != nil {
				slog.ErrorContext(ctx, "poll cycle error", "error", err)
			}
		}
	}
}

// Stop signals the poller to stop and waits for it to finish.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() { close(q.stopCh) })
	<-q.stoppedCh
}

func (q *Queue) pollOnce(ctx context.Context) error {
	now := float64(time.Now().Unix())
	members, err := q.sets.RangeByScore(ctx, q.cfg.PendingSet, 0, now, q.cfg.BatchSize)
	if err != nil {
		return fmt.Errorf("fetching due jobs: %w", err)
	}

	for _, member := range members {
		q.processMember(ctx, member)
	}
	return nil
}

// processMember runs one due job under its distributed lock. Handler errors
// and panics drive the retry/dead-letter state machine; nothing here crashes
// the poller.
func (q *Queue) processMember(ctx context.Context, member string) {
	job, err := decodeJob(member)
	if err != nil {
		// Poison member: drop it so it can't wedge the queue.
		slog.ErrorContext(ctx, "failed to decode pending job, removing",
			"error", err,
			"member", logger.Truncate(member, 256))
		if _, remErr := q.sets.RemoveByValue(ctx, q.cfg.PendingSet, member); remErr != nil {
			slog.ErrorContext(ctx, "failed to remove undecodable job", "error", remErr)
		}
		return
	}

	jobType := string(job.Type)
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		JobID:   &job.ID,
		JobType: &jobType,
	})

	lockKey := "lock:job:" + job.ID
	token, err := q.locks.Acquire(ctx, lockKey, q.cfg.LockTTL)
	if err != nil {
		slog.ErrorContext(ctx, "lock acquire failed", "error", err)
		return
	}
	if token == "" {
		// Another worker owns this job within the lock TTL.
		return
	}
	defer func() {
		if err := q.locks.Release(ctx, lockKey, token); err != nil {
			slog.WarnContext(ctx, "lock release failed", "error", err)
		}
	}()

	sc := logger.StartSpanFromTraceID(ctx, job.TraceID, "queue.process_job",
		trace.WithSpanKind(trace.SpanKindConsumer))
	defer sc.End()
	ctx = sc.Context()

	q.mu.RLock()
	handler, registered := q.handlers[job.Type]
	q.mu.RUnlock()

	if !registered {
		slog.ErrorContext(ctx, "no handler registered for job type, dead-lettering")
		q.deadLetter(ctx, member, job, reasonNoHandler)
		return
	}

	if err := invokeHandler(ctx, handler, job); err != nil {
		sc.RecordError(err)
		q.handleFailedJob(ctx, member, job, err)
		return
	}

	if _, err := q.sets.RemoveByValue(ctx, q.cfg.PendingSet, member); err != nil {
		slog.ErrorContext(ctx, "failed to remove completed job", "error", err)
		return
	}

	slog.InfoContext(ctx, "job processed", "attempts", job.Attempts)
}

// invokeHandler recovers handler panics into errors so a misbehaving handler
// feeds the retry state machine instead of killing the poller.
func invokeHandler(ctx context.Context, handler HandlerFunc, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "panic recovered in job handler", "panic", r)
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return handler(ctx, job)
}

func (q *Queue) handleFailedJob(ctx context.Context, member string, job Job, handlerErr error) {
	job.Attempts++
	job.LastError = handlerErr.Error()

	if job.Attempts >= job.MaxAttempts {
		slog.ErrorContext(ctx, "max attempts reached, dead-lettering job",
			"error", handlerErr,
			"attempts", job.Attempts)
		q.deadLetter(ctx, member, job, job.LastError)
		return
	}

	// Exponential backoff: 2s, 4s, 8s, ...
	backoff := time.Duration(math.Pow(2, float64(job.Attempts))) * time.Second
	job.ScheduledAt = time.Now().UTC().Add(backoff)

	rescheduled, err := job.encode()
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode rescheduled job", "error", err)
		return
	}

	if _, err := q.sets.RemoveByValue(ctx, q.cfg.PendingSet, member); err != nil {
		slog.ErrorContext(ctx, "failed to remove failed job for reschedule", "error", err)
		return
	}
	if err := q.sets.AddScored(ctx, q.cfg.PendingSet, float64(job.ScheduledAt.Unix()), rescheduled); err != nil {
		slog.ErrorContext(ctx, "failed to reschedule job", "error", err)
		return
	}

	slog.WarnContext(ctx, "job rescheduled after failure",
		"error", handlerErr,
		"attempts", job.Attempts,
		"backoff", backoff)
}

// deadLetter moves a job out of pending into the dead-letter set, keyed by
// insertion time.
func (q *Queue) deadLetter(ctx context.Context, member string, job Job, reason string) {
	job.LastError = reason

	dead, err := job.encode()
	if err != nil {
		slog.ErrorContext(ctx, "failed to encode dead-letter job", "error", err)
		return
	}

	if _, err := q.sets.RemoveByValue(ctx, q.cfg.PendingSet, member); err != nil {
		slog.ErrorContext(ctx, "failed to remove job for dead-letter", "error", err)
		return
	}
	if err := q.sets.AddScored(ctx, q.cfg.DeadLetterSet, float64(time.Now().Unix()), dead); err != nil {
		slog.ErrorContext(ctx, "failed to add job to dead-letter set", "error", err)
		return
	}

	slog.ErrorContext(ctx, "job dead-lettered", "reason", reason)
}

// Stats reports pending and dead-letter counts for observability.
type Stats struct {
	Pending    int64 `json:"pending"`
	DeadLetter int64 `json:"dead_letter"`
}

func (q *Queue) Stats(ctx context.Context) (Stats, error) {
	pending, err := q.sets.Count(ctx, q.cfg.PendingSet)
	if err != nil {
		return Stats{}, fmt.Errorf("counting pending: %w", err)
	}
	dead, err := q.sets.Count(ctx, q.cfg.DeadLetterSet)
	if err != nil {
		return Stats{}, fmt.Errorf("counting dead-letter: %w", err)
	}
	return Stats{Pending: pending, DeadLetter: dead}, nil
}

// RetryDeadLetter moves a dead job back to pending with a fresh retry budget.
// Returns false if no dead-letter job has the given id.
func (q *Queue) RetryDeadLetter(ctx context.Context, jobID string) (bool, error) {
	members, err := q.sets.RangeByScore(ctx, q.cfg.DeadLetterSet, 0, math.MaxFloat64, 0)
	if err != nil {
		return false, fmt.Errorf("listing dead-letter jobs: %w", err)
	}

	for _, member := range members {
		job, err := decodeJob(member)
		if err != nil || job.ID != jobID {
			continue
		}

		job.Attempts = 0
		job.LastError = ""
		job.ScheduledAt = time.Now().UTC()

		requeued, err := job.encode()
		if err != nil {
			return false, err
		}

		if err := q.sets.AddScored(ctx, q.cfg.PendingSet, float64(job.ScheduledAt.Unix()), requeued); err != nil {
			return false, fmt.Errorf("requeueing dead-letter job: %w", err)
		}
		if _, err := q.sets.RemoveByValue(ctx, q.cfg.DeadLetterSet, member); err != nil {
			return false, fmt.Errorf("removing requeued job from dead-letter: %w", err)
		}

		slog.InfoContext(ctx, "dead-letter job requeued", "job_id", job.ID, "job_type", string(job.Type))
		return true, nil
	}

	return false, nil
}

// ClearDeadLetter drains the dead-letter set, returning the count cleared.
func (q *Queue) ClearDeadLetter(ctx context.Context) (int64, error) {
	cleared, err := q.sets.Clear(ctx, q.cfg.DeadLetterSet)
	if err != nil {
		return 0, fmt.Errorf("clearing dead-letter set: %w", err)
	}
	if cleared > 0 {
		slog.InfoContext(ctx, "dead-letter set cleared", "count", cleared)
	}
	return cleared, nil
}
