package consent

import (
	"sync"
	"time"
)

// TimerOwner tracks every timer the consent flow arms so that resolution can
// cancel all of them in one call, preventing stray callbacks from firing
// after a decision has already landed.
type TimerOwner struct {
	mu     sync.Mutex
	next   int
	timers map[int]*time.Timer
}

// NewTimerOwner returns an empty owner.
func NewTimerOwner() *TimerOwner {
	return &TimerOwner{timers: make(map[int]*time.Timer)}
}

// Schedule arms a timer that runs fn after d, unless CancelAll intervenes.
// The timer removes itself from the owner before fn runs.
func (o *TimerOwner) Schedule(d time.Duration, fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()

	id := o.next
	o.next++
	o.timers[id] = time.AfterFunc(d, func() {
		o.mu.Lock()
		_, live := o.timers[id]
		delete(o.timers, id)
		o.mu.Unlock()
		if live {
			fn()
		}
	})
}

// CancelAll stops every outstanding timer. Callbacks that have not started
// yet will not run.
func (o *TimerOwner) CancelAll() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, t := range o.timers {
		t.Stop()
		delete(o.timers, id)
	}
}

// Pending reports how many timers are still armed.
func (o *TimerOwner) Pending() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.timers)
}
