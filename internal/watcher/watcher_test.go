package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func waitForCount(t *testing.T, n *atomic.Int32, want int32, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if n.Load() >= want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("got %d change callbacks, want at least %d", n.Load(), want)
}

func TestWatcherRequiresPath(t *testing.T) {
	if _, err := New(&Config{OnChange: func() {}}); err == nil {
		t.Fatal("expected error for empty database path")
	}
}

func TestWatcherFiresAfterQuietPeriod(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "tasks.db")
	writeFile(t, db, "initial")

	var calls atomic.Int32
	w, err := New(&Config{
		DBPath:           db,
		DebounceDuration: 20 * time.Millisecond,
		QuietPeriod:      50 * time.Millisecond,
		OnChange:         func() { calls.Add(1) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	writeFile(t, db, "changed")
	waitForCount(t, &calls, 1, 3*time.Second)
}

func TestWatcherBatchesBursts(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "tasks.db")
	writeFile(t, db, "initial")

	var calls atomic.Int32
	w, err := New(&Config{
		DBPath:           db,
		DebounceDuration: 20 * time.Millisecond,
		QuietPeriod:      150 * time.Millisecond,
		OnChange:         func() { calls.Add(1) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	for i := 0; i < 5; i++ {
		writeFile(t, db, "burst")
		time.Sleep(20 * time.Millisecond)
	}
	waitForCount(t, &calls, 1, 3*time.Second)

	// The burst settles into a single sync, not one per write.
	time.Sleep(300 * time.Millisecond)
	if got := calls.Load(); got > 2 {
		t.Fatalf("got %d callbacks for one burst, want 1 or 2", got)
	}
}

func TestWatcherIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "tasks.db")
	writeFile(t, db, "initial")

	var calls atomic.Int32
	w, err := New(&Config{
		DBPath:           db,
		DebounceDuration: 20 * time.Millisecond,
		QuietPeriod:      50 * time.Millisecond,
		OnChange:         func() { calls.Add(1) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	writeFile(t, filepath.Join(dir, "notes.txt"), "unrelated")
	time.Sleep(200 * time.Millisecond)
	if got := calls.Load(); got != 0 {
		t.Fatalf("got %d callbacks for unrelated file, want 0", got)
	}
}

func TestWatcherCountsJournalSiblings(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "tasks.db")
	writeFile(t, db, "initial")

	var calls atomic.Int32
	w, err := New(&Config{
		DBPath:           db,
		DebounceDuration: 20 * time.Millisecond,
		QuietPeriod:      50 * time.Millisecond,
		OnChange:         func() { calls.Add(1) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer w.Stop()

	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	writeFile(t, db+"-wal", "wal data")
	waitForCount(t, &calls, 1, 3*time.Second)
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(dir, "tasks.db")
	writeFile(t, db, "initial")

	w, err := New(DefaultConfig(db, func() {}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := w.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}

	w.Stop()
	w.Stop()

	if err := w.Start(); err == nil {
		t.Fatal("expected error restarting a stopped watcher")
	}
}
