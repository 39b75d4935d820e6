package webhook

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmylchreest/crawlhook/internal/eventbus"
	"github.com/jmylchreest/crawlhook/internal/models"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
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

func TestAttach_DeliversSubscribedEvent(t *testing.T) {
	var received int32
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&body)
		atomic.AddInt32(&received, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bus := eventbus.New(nil)
	e := New(nil, time.Second)
	cfg := &models.WebhookConfig{URL: srv.URL, Retries: 1}
	e.Attach(bus, func(ev eventbus.Event) (*models.WebhookConfig, map[string]any) {
		return cfg, map[string]any{}
	})

	bus.Publish(eventbus.Event{Kind: eventbus.KindJobStart, JobID: "job-1"})

	waitFor(t, time.Second, func() bool { return atomic.LoadInt32(&received) == 1 })
	if body["status"] != "started" {
		t.Errorf("status = %v, want started", body["status"])
	}
	if body["jobId"] != "job-1" {
		t.Errorf("jobId = %v, want job-1", body["jobId"])
	}
}

func TestAttach_FilterBlocksUnlistedEvents(t *testing.T) {
	var received int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&received, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bus := eventbus.New(nil)
	e := New(nil, time.Second)
	cfg := &models.WebhookConfig{URL: srv.URL, On: []string{"completed", "failed"}, Retries: 1}
	e.Attach(bus, func(ev eventbus.Event) (*models.WebhookConfig, map[string]any) {
		return cfg, map[string]any{}
	})

	bus.Publish(eventbus.Event{Kind: eventbus.KindJobStart, JobID: "job-1"})
	bus.Publish(eventbus.Event{Kind: eventbus.KindProgress, JobID: "job-1"})
	bus.Publish(eventbus.Event{Kind: eventbus.KindJobComplete, JobID: "job-1"})

	waitFor(t, time.Second, func() bool { return atomic.LoadInt32(&received) == 1 })
	time.Sleep(50 * time.Millisecond)
	if atomic.LoadInt32(&received) != 1 {
		t.Errorf("received = %d, want exactly 1 (only completed matched the filter)", received)
	}
}

func TestDeliverWithRetries_RetriesOnFailureThenSucceeds(t *testing.T) {
	var attempts int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&attempts, 1)
		if n < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	bus := eventbus.New(nil)
	e := New(nil, time.Second)
	cfg := &models.WebhookConfig{URL: srv.URL, Retries: 3}
	e.Attach(bus, func(ev eventbus.Event) (*models.WebhookConfig, map[string]any) {
		return cfg, nil
	})

	bus.Publish(eventbus.Event{Kind: eventbus.KindJobError, JobID: "job-1"})

	waitFor(t, 5*time.Second, func() bool { return atomic.LoadInt32(&attempts) == 2 })
}

func TestAttach_NoConfigMeansNoDelivery(t *testing.T) {
	var received int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&received, 1)
	}))
	defer srv.Close()

	bus := eventbus.New(nil)
	e := New(nil, time.Second)
	e.Attach(bus, func(ev eventbus.Event) (*models.WebhookConfig, map[string]any) {
		return nil, nil
	})

	bus.Publish(eventbus.Event{Kind: eventbus.KindJobStart, JobID: "job-1"})
	time.Sleep(50 * time.Millisecond)

	if atomic.LoadInt32(&received) != 0 {
		t.Error("no webhook config should mean no delivery")
	}
}
