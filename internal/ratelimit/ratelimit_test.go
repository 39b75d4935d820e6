package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestWait_AllowsBurstUpToCapacity(t *testing.T) {
	b := New(60)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	for i := 0; i < 60; i++ {
		if err := b.Wait(ctx); err != nil {
			t.Fatalf("Wait() burst %d error = %v", i, err)
		}
	}
}

func TestWait_RespectsContextCancellation(t *testing.T) {
	b := New(1)
	ctx, cancel := context.WithCancel(context.Background())

	// Drain the single token, then cancel before the refill.
	_ = b.Wait(context.Background())
	cancel()

	if err := b.Wait(ctx); err == nil {
		t.Error("Wait() should return an error once the context is cancelled")
	}
}
