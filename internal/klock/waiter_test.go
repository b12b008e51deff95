package klock

// chanWaiter is a minimal Waiter backed by a buffered channel, standing
// in for proc.Task in unit tests so klock can be tested without an
// import cycle on the scheduler package.
type chanWaiter struct {
	ch chan struct{}
}

func newChanWaiter() *chanWaiter {
	return &chanWaiter{ch: make(chan struct{}, 1)}
}

func (w *chanWaiter) Suspend() { <-w.ch }
func (w *chanWaiter) Wakeup()  { w.ch <- struct{}{} }
