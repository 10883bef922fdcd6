package cache

import (
	"sync"
	"testing"
	"time"

	"todosync/store"
)

// recordingListener collects callbacks and signals on every event so tests
// can wait for the async dispatcher deterministically.
type recordingListener struct {
	mu       sync.Mutex
	added    []store.Task
	updated  []store.Task
	deleted  []string
	fullSets [][]store.Task
	signal   chan struct{}
}

func newRecordingListener() *recordingListener {
	return &recordingListener{signal: make(chan struct{}, 128)}
}

func (r *recordingListener) OnTasksUpdated(tasks []store.Task) {
	r.mu.Lock()
	r.fullSets = append(r.fullSets, tasks)
	r.mu.Unlock()
	r.signal <- struct{}{}
}

func (r *recordingListener) OnTaskAdded(task store.Task) {
	r.mu.Lock()
	r.added = append(r.added, task)
	r.mu.Unlock()
	r.signal <- struct{}{}
}

func (r *recordingListener) OnTaskUpdated(task store.Task) {
	r.mu.Lock()
	r.updated = append(r.updated, task)
	r.mu.Unlock()
	r.signal <- struct{}{}
}

func (r *recordingListener) OnTaskDeleted(taskID string) {
	r.mu.Lock()
	r.deleted = append(r.deleted, taskID)
	r.mu.Unlock()
	r.signal <- struct{}{}
}

// waitEvents blocks until n callbacks have fired or the test times out.
func (r *recordingListener) waitEvents(t *testing.T, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.signal:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d of %d", i+1, n)
		}
	}
}

func task(id, title string) store.Task {
	return store.Task{ID: id, Title: title}
}

func TestAddOptimisticIdempotent(t *testing.T) {
	c := New()
	defer c.Close()

	c.AddOptimistic(task("a", "first"))
	c.AddOptimistic(task("a", "second"))

	all := c.GetAllTasks()
	if len(all) != 1 {
		t.Fatalf("expected exactly one entry after duplicate add, got %d", len(all))
	}
	if all[0].Title != "second" {
		t.Errorf("second add should behave as an update, got title %q", all[0].Title)
	}
}

func TestEmptyIDNeverEntersCache(t *testing.T) {
	c := New()
	defer c.Close()

	c.AddOptimistic(store.Task{Title: "no id"})
	c.UpdateOptimistic(store.Task{Title: "still no id"})

	if got := c.Len(); got != 0 {
		t.Fatalf("cache should stay empty, got %d entries", got)
	}
	for _, tk := range c.GetAllTasks() {
		if tk.ID == "" {
			t.Error("GetAllTasks returned a task with empty id")
		}
	}
}

func TestDeleteThenGet(t *testing.T) {
	c := New()
	defer c.Close()

	c.AddOptimistic(task("a", "doomed"))
	c.DeleteOptimistic("a")

	if _, ok := c.GetTask("a"); ok {
		t.Error("GetTask should report not found immediately after delete")
	}
}

func TestDeleteNonexistentFiresNothing(t *testing.T) {
	c := New()
	defer c.Close()

	l := newRecordingListener()
	c.AddListener(l)

	c.DeleteOptimistic("ghost")
	c.Close()

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.deleted) != 0 || len(l.fullSets) != 0 {
		t.Error("deleting a missing record must not notify listeners")
	}
}

func TestLoadFromRemoteRoundTrip(t *testing.T) {
	c := New()
	defer c.Close()

	in := []store.Task{task("a", "one"), task("b", "two"), task("c", "three")}
	c.LoadFromRemote(in)

	if !c.Initialized() {
		t.Error("cache should be initialized after LoadFromRemote")
	}

	got := map[string]bool{}
	for _, tk := range c.GetAllTasks() {
		got[tk.ID] = true
	}
	if len(got) != 3 || !got["a"] || !got["b"] || !got["c"] {
		t.Errorf("round trip mismatch: %v", got)
	}
}

func TestSyncFromRemoteReconciliation(t *testing.T) {
	c := New()
	defer c.Close()

	c.LoadFromRemote([]store.Task{task("a", "A"), task("b", "B"), task("c", "C")})

	// Remote snapshot holds new versions of a and c; b is gone.
	c.SyncFromRemote([]store.Task{task("a", "A'"), task("c", "C'")})

	all := c.GetAllTasks()
	if len(all) != 2 {
		t.Fatalf("expected 2 tasks after reconciliation, got %d", len(all))
	}
	if _, ok := c.GetTask("b"); ok {
		t.Error("task absent from remote snapshot should be removed")
	}
	a, _ := c.GetTask("a")
	if a.Title != "A'" {
		t.Errorf("remote version should win, got %q", a.Title)
	}
}

func TestGetTasksForDate(t *testing.T) {
	c := New()
	defer c.Close()

	weekly := store.Task{ID: "w", Title: "weekly", DueDate: "01/01/2024",
		RepeatType: store.RepeatWeekly, Repeating: true}
	oneOff := store.Task{ID: "o", Title: "once", DueDate: "08/01/2024"}
	other := store.Task{ID: "x", Title: "elsewhere", DueDate: "05/01/2024"}
	c.LoadFromRemote([]store.Task{weekly, oneOff, other})

	got := c.GetTasksForDate("08/01/2024")
	ids := map[string]bool{}
	for _, tk := range got {
		ids[tk.ID] = true
	}
	if len(ids) != 2 || !ids["w"] || !ids["o"] {
		t.Errorf("expected weekly recurrence and exact match on 08/01/2024, got %v", ids)
	}
}

func TestListenerReceivesFullSnapshots(t *testing.T) {
	c := New()
	defer c.Close()

	l := newRecordingListener()
	c.AddListener(l)

	c.AddOptimistic(task("a", "one"))
	l.waitEvents(t, 2) // added + tasks-updated

	c.AddOptimistic(task("b", "two"))
	l.waitEvents(t, 2)

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.added) != 2 {
		t.Fatalf("expected 2 add callbacks, got %d", len(l.added))
	}
	last := l.fullSets[len(l.fullSets)-1]
	if len(last) != 2 {
		t.Errorf("OnTasksUpdated should carry the full list, got %d entries", len(last))
	}
}

func TestListenerRemovalStopsNotifications(t *testing.T) {
	c := New()
	defer c.Close()

	l := newRecordingListener()
	c.AddListener(l)

	c.AddOptimistic(task("a", "one"))
	l.waitEvents(t, 2)

	c.RemoveListener(l)
	c.AddOptimistic(task("b", "two"))
	c.Close() // drains the queue

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.added) != 1 {
		t.Errorf("removed listener should not receive further adds, got %d", len(l.added))
	}
}

// serializationProbe fails the test if two callbacks ever overlap.
type serializationProbe struct {
	t       *testing.T
	running int32
	mu      sync.Mutex
	events  int
}

func (p *serializationProbe) enter() {
	p.mu.Lock()
	p.running++
	if p.running > 1 {
		p.t.Error("concurrent listener callbacks detected")
	}
	p.events++
	p.mu.Unlock()
	time.Sleep(time.Millisecond)
	p.mu.Lock()
	p.running--
	p.mu.Unlock()
}

func (p *serializationProbe) OnTasksUpdated([]store.Task) { p.enter() }
func (p *serializationProbe) OnTaskAdded(store.Task)      { p.enter() }
func (p *serializationProbe) OnTaskUpdated(store.Task)    { p.enter() }
func (p *serializationProbe) OnTaskDeleted(string)        { p.enter() }

func TestCallbacksNeverConcurrent(t *testing.T) {
	c := New()

	probe := &serializationProbe{t: t}
	c.AddListener(probe)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			ids := []string{"a", "b", "c", "d"}
			for j := 0; j < 10; j++ {
				c.UpdateOptimistic(task(ids[n], "spin"))
			}
		}(i)
	}
	wg.Wait()
	c.Close()

	probe.mu.Lock()
	defer probe.mu.Unlock()
	if probe.events == 0 {
		t.Error("probe received no events")
	}
}

func TestMutationAfterCloseIgnored(t *testing.T) {
	c := New()
	c.Close()

	c.AddOptimistic(task("a", "late"))
	if c.Len() != 0 {
		t.Error("mutations after Close should be ignored")
	}
}
