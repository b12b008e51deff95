package klock

import (
	"testing"
	"time"
)

// TestSemaphoreChainedHandoff chains three tasks
// A->B->C via semaphores initialized to 0/0, each releasing the next,
// must observe strict ordering A, then B, then C.
func TestSemaphoreChainedHandoff(t *testing.T) {
	toB := NewSemaphore(0)
	toC := NewSemaphore(0)

	order := make(chan string, 3)

	go func() {
		w := newChanWaiter()
		toB.Down(w)
		order <- "B"
		toC.Up()
	}()
	go func() {
		w := newChanWaiter()
		toC.Down(w)
		order <- "C"
	}()

	order <- "A"
	toB.Up()

	var got []string
	for i := 0; i < 3; i++ {
		select {
		case s := <-order:
			got = append(got, s)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for ordered completion")
		}
	}

	want := []string{"A", "B", "C"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("order = %v, want %v", got, want)
		}
	}
}

func TestSemaphoreBasic(t *testing.T) {
	s := NewSemaphore(1)
	w := newChanWaiter()
	s.Down(w)
	if s.Available() != 0 {
		t.Fatalf("available = %d, want 0", s.Available())
	}
	s.Up()
	if s.Available() != 1 {
		t.Fatalf("available = %d, want 1", s.Available())
	}
}
