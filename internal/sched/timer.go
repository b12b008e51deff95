package sched

import (
	"container/heap"
	"sync"

	"eduos/internal/proc"
)

type timerUnit struct {
	deadline uint64
	task     *proc.Task
}

type timerHeap []*timerUnit

func (h timerHeap) Len() int            { return len(h) }
func (h timerHeap) Less(i, j int) bool  { return h[i].deadline < h[j].deadline }
func (h timerHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *timerHeap) Push(x any)         { *h = append(*h, x.(*timerUnit)) }
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Timer is the global timer wheel: a min-heap of (deadline, task). One
// Timer is shared across every hart.
type Timer struct {
	mu    sync.Mutex
	tasks timerHeap
}

// NewTimer creates an empty timer wheel.
func NewTimer() *Timer {
	return &Timer{}
}

// Subscribe registers t to be woken once the wheel is notified of a time
// at or past deadline.
func (tm *Timer) Subscribe(deadline uint64, t *proc.Task) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	heap.Push(&tm.tasks, &timerUnit{deadline: deadline, task: t})
}

// Notify wakes every subscriber whose deadline is at or before now.
func (tm *Timer) Notify(now uint64) {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	for tm.tasks.Len() > 0 && tm.tasks[0].deadline <= now {
		item := heap.Pop(&tm.tasks).(*timerUnit)
		item.task.Wakeup()
	}
}

// Len reports the number of pending timer subscriptions.
func (tm *Timer) Len() int {
	tm.mu.Lock()
	defer tm.mu.Unlock()
	return tm.tasks.Len()
}
