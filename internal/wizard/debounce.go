package wizard

import (
	"sync"
	"time"
)

// Scheduler abstracts delayed execution so debounce behavior is testable
// without wall-clock timers.
type Scheduler interface {
	// AfterFunc runs fn after d; the returned cancel stops a pending run.
	AfterFunc(d time.Duration, fn func()) (cancel func())
}

type timerScheduler struct{}

func (timerScheduler) AfterFunc(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}

// debouncer coalesces rapid triggers: each trigger cancels and supersedes
// any pending one, so only the last scheduled fn within a quiet window runs.
type debouncer struct {
	sched Scheduler
	quiet time.Duration

	mu     sync.Mutex
	cancel func()
}

func (d *debouncer) trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
	}
	d.cancel = d.sched.AfterFunc(d.quiet, fn)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
}
