package klock

import "sync/atomic"

// Semaphore is a counting semaphore with a FIFO wait queue. Down blocks
// while the count is zero; Up releases one waiter (or simply grows the
// count, if none are queued).
type Semaphore struct {
	count int64
	queue waitingQueue
}

// NewSemaphore creates a semaphore initialized to n permits.
func NewSemaphore(n int64) *Semaphore {
	return &Semaphore{count: n}
}

// Down acquires one permit, suspending w if none are currently available.
func (s *Semaphore) Down(w Waiter) {
	for {
		if s.tryTake() {
			return
		}
		s.queue.push(w)
		w.Suspend()
	}
}

func (s *Semaphore) tryTake() bool {
	for {
		cur := atomic.LoadInt64(&s.count)
		if cur <= 0 {
			return false
		}
		if atomic.CompareAndSwapInt64(&s.count, cur, cur-1) {
			return true
		}
	}
}

// Up releases one permit and wakes the longest-waiting blocked task, if
// any.
func (s *Semaphore) Up() {
	atomic.AddInt64(&s.count, 1)
	if w := s.queue.pop(); w != nil {
		w.Wakeup()
	}
}

// Available reports the current permit count (may be stale immediately).
func (s *Semaphore) Available() int64 {
	return atomic.LoadInt64(&s.count)
}
