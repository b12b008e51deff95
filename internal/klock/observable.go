package klock

// Observable is the bare wait-set primitive condition variables are
// built from: Wait drops the caller onto the queue and suspends it;
// NotifyOne/NotifyAll wake queued waiters.
type Observable struct {
	waitings waitingQueue
}

// Wait enqueues w and suspends it. The caller must have already released
// any lock it held before calling Wait. Condvar.WaitMutex (condvar.go)
// instead queues the waiter before dropping its lock.
func (o *Observable) Wait(w Waiter) {
	o.waitings.push(w)
	w.Suspend()
}

// NotifyOne wakes the single longest-waiting task, if any are queued.
func (o *Observable) NotifyOne() {
	if w := o.waitings.pop(); w != nil {
		w.Wakeup()
	}
}

// NotifyAll wakes every currently-queued task.
func (o *Observable) NotifyAll() {
	for _, w := range o.waitings.popAll() {
		w.Wakeup()
	}
}
