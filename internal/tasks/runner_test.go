package tasks

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func TestRunner_CompletesTask(t *testing.T) {
	r := NewRunner(context.Background(), testLogger(), 2)

	ran := make(chan struct{})
	if err := r.Submit("investigate-1", func(ctx context.Context) error {
		close(ran)
		return nil
	}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("task never ran")
	}

	r.Wait()
	if got := r.Status("investigate-1"); got != StatusCompleted {
		t.Errorf("expected completed, got %s", got)
	}
}

func TestRunner_FailedTask(t *testing.T) {
	r := NewRunner(context.Background(), testLogger(), 1)

	wantErr := errors.New("stage blew up")
	if err := r.Submit("fix-1", func(ctx context.Context) error {
		return wantErr
	}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	r.Wait()

	if got := r.Status("fix-1"); got != StatusFailed {
		t.Errorf("expected failed, got %s", got)
	}
	if !errors.Is(r.Err("fix-1"), wantErr) {
		t.Errorf("expected the task error, got %v", r.Err("fix-1"))
	}
}

func TestRunner_UnknownKey(t *testing.T) {
	r := NewRunner(context.Background(), testLogger(), 1)
	if got := r.Status("missing"); got != StatusNotFound {
		t.Errorf("expected not_found, got %s", got)
	}
	if r.Cancel("missing") {
		t.Error("expected Cancel of an unknown key to return false")
	}
}

func TestRunner_RejectsDuplicateActiveKey(t *testing.T) {
	r := NewRunner(context.Background(), testLogger(), 1)

	release := make(chan struct{})
	started := make(chan struct{})
	if err := r.Submit("dup", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	<-started

	if err := r.Submit("dup", func(ctx context.Context) error { return nil }); !errors.Is(err, ErrTaskExists) {
		t.Errorf("expected ErrTaskExists, got %v", err)
	}

	close(release)
	r.Wait()

	// terminal keys may be resubmitted
	if err := r.Submit("dup", func(ctx context.Context) error { return nil }); err != nil {
		t.Errorf("expected resubmit after completion to succeed, got %v", err)
	}
	r.Wait()
}

func TestRunner_ConcurrencyBound(t *testing.T) {
	const limit = 2
	r := NewRunner(context.Background(), testLogger(), limit)

	var running, peak int32
	var mu sync.Mutex
	release := make(chan struct{})

	for i := 0; i < 6; i++ {
		key := string(rune('a' + i))
		if err := r.Submit(key, func(ctx context.Context) error {
			n := atomic.AddInt32(&running, 1)
			mu.Lock()
			if n > peak {
				peak = n
			}
			mu.Unlock()
			<-release
			atomic.AddInt32(&running, -1)
			return nil
		}); err != nil {
			t.Fatalf("submit %s: %v", key, err)
		}
	}

	// give the runner time to start whatever it is going to start
	time.Sleep(100 * time.Millisecond)
	close(release)
	r.Wait()

	mu.Lock()
	defer mu.Unlock()
	if peak > limit {
		t.Errorf("expected at most %d concurrent tasks, observed %d", limit, peak)
	}
}

func TestRunner_CancelRunningTask(t *testing.T) {
	r := NewRunner(context.Background(), testLogger(), 1)

	started := make(chan struct{})
	if err := r.Submit("slow", func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	<-started

	if !r.Cancel("slow") {
		t.Fatal("expected Cancel to return true for a running task")
	}
	r.Wait()

	if got := r.Status("slow"); got != StatusCancelled {
		t.Errorf("expected cancelled, got %s", got)
	}
}

func TestRunner_CancelPendingTask(t *testing.T) {
	r := NewRunner(context.Background(), testLogger(), 1)

	started := make(chan struct{})
	release := make(chan struct{})
	if err := r.Submit("holder", func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	<-started

	ran := make(chan struct{})
	if err := r.Submit("queued", func(ctx context.Context) error {
		close(ran)
		return nil
	}); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if !r.Cancel("queued") {
		t.Fatal("expected Cancel to return true for a pending task")
	}

	close(release)
	r.Wait()

	select {
	case <-ran:
		t.Error("cancelled pending task should not have run")
	default:
	}
	if got := r.Status("queued"); got != StatusCancelled {
		t.Errorf("expected cancelled, got %s", got)
	}
}
