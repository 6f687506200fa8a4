package sync

import "time"

// Scheduler runs a function after a delay. Scheduling is the reconciler's
// only form of timing, so pulling it behind an interface lets tests drive
// debounce cycles without wall-clock waits.
type Scheduler interface {
	// Schedule arranges for fn to run after d. The returned cancel function
	// stops the pending run; cancelling after fn has started is a no-op.
	Schedule(d time.Duration, fn func()) (cancel func())
}

type timerScheduler struct{}

// NewTimerScheduler returns the production Scheduler backed by time.AfterFunc.
func NewTimerScheduler() Scheduler {
	return timerScheduler{}
}

func (timerScheduler) Schedule(d time.Duration, fn func()) func() {
	t := time.AfterFunc(d, fn)
	return func() { t.Stop() }
}
