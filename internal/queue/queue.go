// Package queue implements the sequential FIFO job queue of §4.3: a
// single in-memory queue of job IDs dispatched to the engine one at a
// time by a single background worker.
package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// ErrQueueFull is returned by Enqueue when the optional max depth bound
// has been reached.
var ErrQueueFull = errors.New("queue: max depth reached")

// Starter is the engine-side contract the dispatcher drives: StartJob
// transitions a queued job to running and runs it to a terminal state
// (or panics/returns an error, which the dispatcher swallows and logs —
// the engine itself is responsible for calling FailJob before returning).
type Starter interface {
	StartJob(ctx context.Context, jobID string) error
}

// Queue is a single-worker FIFO dispatcher. Enqueue never blocks the
// caller; at most one job is driven through Starter.StartJob at a time.
type Queue struct {
	mu       sync.Mutex
	items    []string
	maxDepth int // 0 = unbounded

	processing bool
	wake       chan struct{}

	starter Starter
	logger  *slog.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// New returns a Queue that dispatches to starter. maxDepth of 0 means
// unbounded, matching §4.3's current-design default.
func New(starter Starter, maxDepth int, logger *slog.Logger) *Queue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &Queue{
		maxDepth: maxDepth,
		wake:     make(chan struct{}, 1),
		starter:  starter,
		logger:   logger.With("component", "queue"),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go q.run()
	return q
}

// Enqueue appends jobID to the tail of the queue and wakes the dispatcher
// if it is idle. Never blocks.
func (q *Queue) Enqueue(jobID string) error {
	q.mu.Lock()
	if q.maxDepth > 0 && len(q.items) >= q.maxDepth {
		q.mu.Unlock()
		return ErrQueueFull
	}
	q.items = append(q.items, jobID)
	q.mu.Unlock()

	select {
	case q.wake <- struct{}{}:
	default:
	}
	return nil
}

// Length returns the number of jobs currently waiting (not counting the
// one, if any, actively dispatching).
func (q *Queue) Length() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// HasCapacity reports whether Enqueue would currently succeed. Callers
// that must not create a Job on queue saturation (§7) check this before
// minting an ID — this is a check-then-act race under concurrent
// callers, acceptable for the optional backpressure bound §4.3 describes
// as a SHOULD, not a hard guarantee.
func (q *Queue) HasCapacity() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.maxDepth <= 0 || len(q.items) < q.maxDepth
}

// IsProcessing reports whether the dispatcher currently holds the
// execution slot — true while a job is running or while the dispatcher is
// between pop and StartJob returning.
func (q *Queue) IsProcessing() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.processing
}

// Stop signals the dispatcher loop to exit after its current job (if
// any) finishes, and waits for it to do so.
func (q *Queue) Stop() {
	q.stopOnce.Do(func() { close(q.stopCh) })
	<-q.doneCh
}

func (q *Queue) run() {
	defer close(q.doneCh)
	for {
		id, ok := q.pop()
		if !ok {
			select {
			case <-q.wake:
				continue
			case <-q.stopCh:
				return
			}
		}

		q.setProcessing(true)
		func() {
			defer q.setProcessing(false)
			defer func() {
				if r := recover(); r != nil {
					q.logger.Error("dispatcher: StartJob panicked", "job_id", id, "recover", r)
				}
			}()
			if err := q.starter.StartJob(context.Background(), id); err != nil {
				q.logger.Warn("dispatcher: StartJob returned an error; job is already marked failed", "job_id", id, "error", err)
			}
		}()

		select {
		case <-q.stopCh:
			return
		default:
		}
	}
}

func (q *Queue) pop() (string, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return "", false
	}
	id := q.items[0]
	q.items = q.items[1:]
	return id, true
}

func (q *Queue) setProcessing(v bool) {
	q.mu.Lock()
	q.processing = v
	q.mu.Unlock()
}
