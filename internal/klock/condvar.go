package klock

// Condvar is a condition variable layered on Observable: waiting
// atomically drops the caller's lock guard, suspends the caller, and on
// wakeup reacquires the lock before returning. There is no missed-wakeup
// window between dropping the lock and suspending, because the waiter is
// pushed onto the queue before the lock is released — a Notify racing
// with the drop still finds it queued.
type Condvar struct {
	inner Observable
}

// WaitMutex drops guard, suspends w, and on wakeup reacquires the mutex,
// returning the new guard.
func (c *Condvar) WaitMutex(w Waiter, guard *MutexGuard) *MutexGuard {
	m := guard.m
	c.inner.waitings.push(w)
	guard.Unlock()
	w.Suspend()
	return m.Lock(w)
}

// NotifyOne wakes the single longest-waiting task, if any.
func (c *Condvar) NotifyOne() {
	c.inner.NotifyOne()
}

// NotifyAll wakes every currently-queued task.
func (c *Condvar) NotifyAll() {
	c.inner.NotifyAll()
}
