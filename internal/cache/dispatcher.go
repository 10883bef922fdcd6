package cache

import (
	"sync"

	"todosync/store"
)

// Listener receives cache change notifications. Every callback runs on the
// cache's single dispatch goroutine, in listener registration order, so
// implementations never see two concurrent callbacks. OnTasksUpdated always
// receives the full current task list, never a delta.
type Listener interface {
	OnTasksUpdated(tasks []store.Task)
	OnTaskAdded(task store.Task)
	OnTaskUpdated(task store.Task)
	OnTaskDeleted(taskID string)
}

type eventKind int

const (
	eventTasksUpdated eventKind = iota
	eventTaskAdded
	eventTaskUpdated
	eventTaskDeleted
)

// event is one queued listener notification. Snapshots are captured at
// mutation time so the dispatcher never reads cache state.
type event struct {
	kind   eventKind
	task   store.Task
	taskID string
	all    []store.Task
}

// dispatcher funnels events from any producer goroutine onto one consumer
// goroutine that invokes the registered listeners. The queue is unbounded so
// enqueueing never blocks a cache mutation, even if a listener turns around
// and reads the cache.
type dispatcher struct {
	mu        sync.Mutex
	cond      *sync.Cond
	queue     []event
	listeners []Listener
	stopped   bool
	done      chan struct{}
}

func newDispatcher() *dispatcher {
	d := &dispatcher{done: make(chan struct{})}
	d.cond = sync.NewCond(&d.mu)
	go d.run()
	return d
}

func (d *dispatcher) run() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.stopped {
			d.cond.Wait()
		}
		if len(d.queue) == 0 && d.stopped {
			d.mu.Unlock()
			return
		}
		ev := d.queue[0]
		d.queue = d.queue[1:]
		targets := make([]Listener, len(d.listeners))
		copy(targets, d.listeners)
		d.mu.Unlock()

		for _, l := range targets {
			switch ev.kind {
			case eventTasksUpdated:
				l.OnTasksUpdated(ev.all)
			case eventTaskAdded:
				l.OnTaskAdded(ev.task)
			case eventTaskUpdated:
				l.OnTaskUpdated(ev.task)
			case eventTaskDeleted:
				l.OnTaskDeleted(ev.taskID)
			}
		}
	}
}

// enqueue appends an event for delivery. Never blocks.
func (d *dispatcher) enqueue(ev event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.queue = append(d.queue, ev)
	d.cond.Signal()
}

func (d *dispatcher) addListener(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.listeners {
		if existing == l {
			return
		}
	}
	d.listeners = append(d.listeners, l)
}

// removeListener stops future notifications for l. Events already being
// delivered may still reach it; this is the only cancellation primitive.
func (d *dispatcher) removeListener(l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, existing := range d.listeners {
		if existing == l {
			d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
			return
		}
	}
}

// stop drains the remaining queue and waits for the consumer to exit.
func (d *dispatcher) stop() {
	d.mu.Lock()
	d.stopped = true
	d.cond.Signal()
	d.mu.Unlock()
	<-d.done
}
