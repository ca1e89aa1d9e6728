package services

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

const (
	defaultQueueCapacity  = 256
	defaultMaxAttempts    = 3
	defaultRetryBaseDelay = 5 * time.Second
)

// classifyJob is one queued classification request.
type classifyJob struct {
	emailID string
	userID  string
	attempt int
}

// ClassifyQueue decouples ingestion from classification: syncs enqueue
// saved emails and a single worker drains them through the association
// builder. Failed jobs are retried a bounded number of times with a
// growing delay; jobs that exhaust their attempts stay in the
// unprocessed backlog, where the batch sweep picks them up.
type ClassifyQueue struct {
	associations *AssociationService
	jobs         chan classifyJob
	maxAttempts  int
	retryDelay   time.Duration
	logger       *slog.Logger

	startOnce sync.Once
	started   chan struct{}
	stopOnce  sync.Once
	stopped   chan struct{}
	done      chan struct{}
}

// QueueOption customizes a ClassifyQueue.
type QueueOption func(*ClassifyQueue)

// WithQueueCapacity sets the channel buffer size.
func WithQueueCapacity(n int) QueueOption {
	return func(q *ClassifyQueue) {
		if n > 0 {
			q.jobs = make(chan classifyJob, n)
		}
	}
}

// WithMaxAttempts bounds retries per job.
func WithMaxAttempts(n int) QueueOption {
	return func(q *ClassifyQueue) {
		if n > 0 {
			q.maxAttempts = n
		}
	}
}

// WithRetryBaseDelay sets the first retry delay; later attempts wait
// attempt times longer.
func WithRetryBaseDelay(d time.Duration) QueueOption {
	return func(q *ClassifyQueue) {
		if d > 0 {
			q.retryDelay = d
		}
	}
}

// NewClassifyQueue creates a stopped queue; call Start to run it.
func NewClassifyQueue(associations *AssociationService, logger *slog.Logger, opts ...QueueOption) *ClassifyQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ClassifyQueue{
		associations: associations,
		jobs:         make(chan classifyJob, defaultQueueCapacity),
		maxAttempts:  defaultMaxAttempts,
		retryDelay:   defaultRetryBaseDelay,
		logger:       logger,
		started:      make(chan struct{}),
		stopped:      make(chan struct{}),
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// Start launches the worker; calling it again is a no-op. The context
// cancels in-flight work on shutdown.
func (q *ClassifyQueue) Start(ctx context.Context) {
	q.startOnce.Do(func() {
		close(q.started)
		go q.worker(ctx)
	})
}

// Stop prevents further processing and waits for the worker, if one
// was ever started, to exit.
func (q *ClassifyQueue) Stop() {
	q.stopOnce.Do(func() { close(q.stopped) })
	select {
	case <-q.started:
		<-q.done
	default:
	}
}

// Enqueue submits an email for classification without blocking. A
// false return means the queue is full; the email stays unprocessed
// and the batch sweep will reach it.
func (q *ClassifyQueue) Enqueue(emailID, userID string) bool {
	select {
	case <-q.stopped:
		return false
	default:
	}
	select {
	case q.jobs <- classifyJob{emailID: emailID, userID: userID, attempt: 1}:
		return true
	default:
		return false
	}
}

// Len reports the number of pending jobs.
func (q *ClassifyQueue) Len() int {
	return len(q.jobs)
}

func (q *ClassifyQueue) worker(ctx context.Context) {
	defer close(q.done)
	for {
		select {
		case <-q.stopped:
			return
		case <-ctx.Done():
			return
		case job := <-q.jobs:
			q.process(ctx, job)
		}
	}
}

// process runs one job and requeues it on failure until the attempt
// budget runs out.
func (q *ClassifyQueue) process(ctx context.Context, job classifyJob) {
	err := q.associations.ProcessEmail(ctx, job.emailID)
	if err == nil {
		return
	}

	if job.attempt >= q.maxAttempts {
		q.logger.Error("classification failed permanently",
			slog.String("email_id", job.emailID),
			slog.Int("attempts", job.attempt),
			slog.Any("error", err))
		return
	}

	q.logger.Warn("classification failed, retrying",
		slog.String("email_id", job.emailID),
		slog.Int("attempt", job.attempt),
		slog.Any("error", err))

	delay := time.Duration(job.attempt) * q.retryDelay
	job.attempt++

	select {
	case <-ctx.Done():
		return
	case <-q.stopped:
		return
	case <-time.After(delay):
	}

	// Requeue without blocking the worker; a full queue drops the
	// retry and the batch sweep recovers the email.
	select {
	case q.jobs <- job:
	default:
		q.logger.Warn("queue full, dropping retry",
			slog.String("email_id", job.emailID))
	}
}
