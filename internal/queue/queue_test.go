package queue

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingStarter struct {
	mu      sync.Mutex
	started []string
	delay   time.Duration
	fail    map[string]bool
}

func (s *recordingStarter) StartJob(ctx context.Context, jobID string) error {
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	s.mu.Lock()
	s.started = append(s.started, jobID)
	s.mu.Unlock()
	if s.fail != nil && s.fail[jobID] {
		return context.DeadlineExceeded
	}
	return nil
}

func (s *recordingStarter) Started() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.started...)
}

func TestEnqueue_DispatchesInFIFOOrder(t *testing.T) {
	starter := &recordingStarter{delay: 10 * time.Millisecond}
	q := New(starter, 0, nil)
	defer q.Stop()

	q.Enqueue("a")
	q.Enqueue("b")
	q.Enqueue("c")

	waitForLen(t, func() int { return len(starter.Started()) }, 3, time.Second)

	got := starter.Started()
	want := []string{"a", "b", "c"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("dispatch order = %v, want %v", got, want)
		}
	}
}

func TestEnqueue_RejectsOnceMaxDepthReached(t *testing.T) {
	starter := &recordingStarter{delay: 200 * time.Millisecond}
	q := New(starter, 1, nil)
	defer q.Stop()

	if err := q.Enqueue("a"); err != nil {
		t.Fatalf("first Enqueue() error = %v", err)
	}
	// Give the dispatcher a moment to pop "a" off the queue so capacity frees up,
	// then fill it again before it can drain.
	time.Sleep(5 * time.Millisecond)
	if err := q.Enqueue("b"); err != nil {
		t.Fatalf("second Enqueue() error = %v", err)
	}
	if err := q.Enqueue("c"); err != ErrQueueFull {
		t.Errorf("third Enqueue() error = %v, want ErrQueueFull", err)
	}
}

func TestFailedStartJob_DoesNotStallTheDispatcher(t *testing.T) {
	starter := &recordingStarter{fail: map[string]bool{"bad": true}}
	q := New(starter, 0, nil)
	defer q.Stop()

	q.Enqueue("bad")
	q.Enqueue("good")

	waitForLen(t, func() int { return len(starter.Started()) }, 2, time.Second)
}

func TestLength_DecreasesAsJobsDispatch(t *testing.T) {
	starter := &recordingStarter{delay: 20 * time.Millisecond}
	q := New(starter, 0, nil)
	defer q.Stop()

	q.Enqueue("a")
	q.Enqueue("b")

	waitForCond(t, func() bool { return q.Length() == 0 }, time.Second)
}

func waitForLen(t *testing.T, fn func() int, want int, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() >= want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met: got %d, want >= %d", fn(), want)
}

func waitForCond(t *testing.T, cond func() bool, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before timeout")
}
