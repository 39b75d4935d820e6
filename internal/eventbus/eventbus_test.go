package eventbus

import (
	"sync/atomic"
	"testing"
)

func TestSubscribeAndPublish(t *testing.T) {
	b := New(nil)
	var got Event
	b.Subscribe(KindJobStart, func(ev Event) { got = ev })

	b.Publish(Event{Kind: KindJobStart, JobID: "job-1"})

	if got.JobID != "job-1" {
		t.Errorf("JobID = %q, want job-1", got.JobID)
	}
}

func TestSubscribe_OnlyMatchingKind(t *testing.T) {
	b := New(nil)
	var calls int32
	b.Subscribe(KindJobComplete, func(Event) { atomic.AddInt32(&calls, 1) })

	b.Publish(Event{Kind: KindJobStart})

	if atomic.LoadInt32(&calls) != 0 {
		t.Error("handler subscribed to jobComplete should not fire for jobStart")
	}
}

func TestSubscribeAll_ReceivesEveryKind(t *testing.T) {
	b := New(nil)
	var calls int32
	b.SubscribeAll(func(Event) { atomic.AddInt32(&calls, 1) })

	b.Publish(Event{Kind: KindJobStart})
	b.Publish(Event{Kind: KindPageComplete})

	if atomic.LoadInt32(&calls) != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestPublish_RecoversFromPanickingSubscriber(t *testing.T) {
	b := New(nil)
	var secondCalled bool

	b.Subscribe(KindJobStart, func(Event) { panic("boom") })
	b.Subscribe(KindJobStart, func(Event) { secondCalled = true })

	b.Publish(Event{Kind: KindJobStart})

	if !secondCalled {
		t.Error("a panicking subscriber must not prevent other subscribers from running")
	}
}
