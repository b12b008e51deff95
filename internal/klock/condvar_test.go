package klock

import (
	"sync"
	"testing"
	"time"
)

// TestCondvarProducerConsumer checks that a waiter queued on
// the condvar before the mutex is released never misses a Notify that
// happens concurrently with the drop.
func TestCondvarProducerConsumer(t *testing.T) {
	var m Mutex
	var cv Condvar
	ready := false
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		w := newChanWaiter()
		g := m.Lock(w)
		for !ready {
			g = cv.WaitMutex(w, g)
		}
		g.Unlock()
	}()

	// Give the consumer a chance to queue up on the condvar first.
	time.Sleep(20 * time.Millisecond)

	producerW := newChanWaiter()
	g := m.Lock(producerW)
	ready = true
	g.Unlock()
	cv.NotifyOne()

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("consumer never woke up: missed wakeup")
	}
}
