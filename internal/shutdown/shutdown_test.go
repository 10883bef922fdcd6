package shutdown

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

func TestCleanupsRunInReverseOrder(t *testing.T) {
	mgr := NewManager()

	var mu sync.Mutex
	var order []string
	record := func(name string) CleanupFunc {
		return func(ctx context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}
	}

	mgr.RegisterCleanup("store", record("store"))
	mgr.RegisterCleanup("gateway", record("gateway"))
	mgr.RegisterCleanup("watcher", record("watcher"))

	mgr.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := mgr.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	want := []string{"watcher", "gateway", "store"}
	if len(order) != len(want) {
		t.Fatalf("ran %d cleanups, want %d", len(order), len(want))
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("cleanup order %v, want %v", order, want)
		}
	}
}

func TestShutdownIsIdempotent(t *testing.T) {
	mgr := NewManager()
	calls := 0
	mgr.RegisterCleanup("once", func(ctx context.Context) error {
		calls++
		return nil
	})

	mgr.Shutdown()
	mgr.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := mgr.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if calls != 1 {
		t.Fatalf("cleanup ran %d times, want 1", calls)
	}
}

func TestCleanupErrorDoesNotStopOthers(t *testing.T) {
	mgr := NewManager()

	ran := false
	mgr.RegisterCleanup("first", func(ctx context.Context) error {
		ran = true
		return nil
	})
	mgr.RegisterCleanup("failing", func(ctx context.Context) error {
		return errors.New("close failed")
	})

	mgr.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := mgr.Wait(ctx); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if !ran {
		t.Fatal("later-registered failure stopped earlier cleanup")
	}
}

func TestWaitHonorsDeadline(t *testing.T) {
	mgr := NewManager()
	mgr.RegisterCleanup("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})

	mgr.Shutdown()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := mgr.Wait(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait = %v, want deadline exceeded", err)
	}
}

func TestContextCancelledOnShutdown(t *testing.T) {
	mgr := NewManager()
	if mgr.IsShutdown() {
		t.Fatal("fresh manager reports shutdown")
	}

	mgr.Shutdown()

	select {
	case <-mgr.Context().Done():
	case <-time.After(time.Second):
		t.Fatal("context not cancelled after Shutdown")
	}
	if !mgr.IsShutdown() {
		t.Fatal("IsShutdown false after Shutdown")
	}
}
