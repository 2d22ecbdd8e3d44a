package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"
)

func TestStartFiresJobImmediately(t *testing.T) {
	t.Parallel()

	sched := NewCronScheduler("0 6 * * *", time.UTC)
	fired := make(chan struct{}, 1)

	if err := sched.Start(context.Background(), func() {
		select {
		case fired <- struct{}{}:
		default:
		}
	}); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer sched.Stop(context.Background())

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("job did not fire on startup")
	}
}

func TestStartRejectsInvalidExpression(t *testing.T) {
	t.Parallel()

	sched := NewCronScheduler("not a cron spec", time.UTC)
	if err := sched.Start(context.Background(), func() {}); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}

	// A failed Start leaves nothing to tear down.
	if err := sched.Stop(context.Background()); err != nil {
		t.Fatalf("Stop after failed Start: %v", err)
	}
}

func TestStartWithoutJobIsNoOp(t *testing.T) {
	t.Parallel()

	sched := NewCronScheduler("0 6 * * *", time.UTC)
	if err := sched.Start(context.Background(), nil); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if err := sched.Stop(context.Background()); err != nil {
		t.Fatalf("Stop error: %v", err)
	}
}

func TestStopAfterCancelledStartContext(t *testing.T) {
	t.Parallel()

	sched := NewCronScheduler("0 6 * * *", time.UTC)
	ctx, cancel := context.WithCancel(context.Background())

	if err := sched.Start(ctx, func() {}); err != nil {
		t.Fatalf("Start error: %v", err)
	}

	// Cancelling the start context and stopping race in the shutdown path;
	// both must be safe in any order and any number of times.
	cancel()
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := sched.Stop(context.Background()); err != nil {
				t.Errorf("Stop error: %v", err)
			}
		}()
	}
	wg.Wait()

	if err := sched.Stop(context.Background()); err != nil {
		t.Fatalf("repeated Stop error: %v", err)
	}
}

func TestStartIsIdempotentWhileRunning(t *testing.T) {
	t.Parallel()

	sched := NewCronScheduler("0 6 * * *", time.UTC)
	var mu sync.Mutex
	fires := 0
	job := func() {
		mu.Lock()
		fires++
		mu.Unlock()
	}

	if err := sched.Start(context.Background(), job); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	if err := sched.Start(context.Background(), job); err != nil {
		t.Fatalf("second Start error: %v", err)
	}
	if err := sched.Stop(context.Background()); err != nil {
		t.Fatalf("Stop error: %v", err)
	}

	// Only the first Start fires the immediate run.
	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := fires
		mu.Unlock()
		if n >= 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	n := fires
	mu.Unlock()
	if n != 1 {
		t.Fatalf("expected exactly one startup fire, got %d", n)
	}
}
