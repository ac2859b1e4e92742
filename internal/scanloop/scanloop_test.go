package scanloop

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestRun_InvokesUntilStopped(t *testing.T) {
	stopCh := make(chan struct{})
	done := make(chan struct{})
	var calls atomic.Int32

	go func() {
		defer close(done)
		Run(stopCh, func() time.Duration { return 5 * time.Millisecond }, 0, func() {
			calls.Add(1)
		})
	}()

	deadline := time.Now().Add(time.Second)
	for calls.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	close(stopCh)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after stop")
	}
	if calls.Load() < 3 {
		t.Fatalf("expected at least 3 calls, got %d", calls.Load())
	}
}

func TestRun_ReadsIntervalEachCycle(t *testing.T) {
	stopCh := make(chan struct{})
	var reads atomic.Int32
	var calls atomic.Int32

	go Run(stopCh, func() time.Duration {
		reads.Add(1)
		return time.Millisecond
	}, 0, func() { calls.Add(1) })

	deadline := time.Now().Add(time.Second)
	for calls.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	close(stopCh)

	if reads.Load() < 2 {
		t.Fatalf("interval should be re-read per cycle, got %d reads", reads.Load())
	}
}

func TestRun_StopBeforeFirstTick(t *testing.T) {
	stopCh := make(chan struct{})
	close(stopCh)
	called := false
	Run(stopCh, func() time.Duration { return time.Hour }, time.Second, func() { called = true })
	if called {
		t.Fatal("fn should not run when stopped before first tick")
	}
}
