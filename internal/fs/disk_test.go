package fs

import (
	"sync"
	"testing"
	"time"
)

// fakeWaiter is a minimal klock.Waiter for exercising NonBlockingDisk
// outside the scheduler package (avoids an import cycle with proc).
type fakeWaiter struct {
	mu   sync.Mutex
	cond *sync.Cond
	woke bool
}

func newFakeWaiter() *fakeWaiter {
	w := &fakeWaiter{}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *fakeWaiter) Suspend() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for !w.woke {
		w.cond.Wait()
	}
	w.woke = false
}

func (w *fakeWaiter) Wakeup() {
	w.mu.Lock()
	w.woke = true
	w.cond.Signal()
	w.mu.Unlock()
}

// The wrapper must remain usable wherever a plain blocking disk is.
var _ DiskManager = (*NonBlockingDisk)(nil)

func TestNonBlockingDiskCompletesAndWakes(t *testing.T) {
	mem := NewMemDisk()
	nb := NewNonBlockingDisk(mem, 4)
	nb.SetNonBlocking(true)

	var buf Block
	buf[0] = 0x55
	w := newFakeWaiter()

	done := make(chan error, 1)
	go func() {
		done <- nb.WriteFor(w, 3, &buf)
	}()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("write: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("non-blocking write never completed")
	}

	if n := nb.Pending(); n != 0 {
		t.Fatalf("%d requests still registered after completion", n)
	}

	var out Block
	if err := mem.Read(3, &out); err != nil {
		t.Fatal(err)
	}
	if out[0] != 0x55 {
		t.Fatalf("byte = %#x, want 0x55", out[0])
	}
}

func TestBlockingModeSkipsSuspend(t *testing.T) {
	mem := NewMemDisk()
	nb := NewNonBlockingDisk(mem, 4)
	// Non-blocking off by default: a waiter whose Suspend always hangs
	// must never be invoked.
	w := &hangingWaiter{}
	var buf Block
	if err := nb.ReadFor(w, 0, &buf); err != nil {
		t.Fatal(err)
	}

	// Waiterless callers run inline even with non-blocking enabled:
	// there is no task to park.
	nb.SetNonBlocking(true)
	if err := nb.ReadFor(nil, 0, &buf); err != nil {
		t.Fatal(err)
	}
	if err := nb.Read(0, &buf); err != nil {
		t.Fatal(err)
	}
}

type hangingWaiter struct{}

func (hangingWaiter) Suspend() { panic("Suspend should not be called in blocking mode") }
func (hangingWaiter) Wakeup()  {}
