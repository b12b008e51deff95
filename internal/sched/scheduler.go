// Package sched implements the CFS-like scheduler: a per-hart min-heap
// keyed by vruntime, a global timer wheel, and work-stealing dispatch
// across harts. Queues hold plain *proc.Task references; a reaped task
// is simply never pushed back, so there are no stale entries to skip on
// pop.
package sched

import (
	"container/heap"
	"sync"

	"eduos/config"
	"eduos/internal/proc"
)

type entity struct {
	task     *proc.Task
	vruntime uint64
	weight   uint64
}

type entityHeap []*entity

func (h entityHeap) Len() int            { return len(h) }
func (h entityHeap) Less(i, j int) bool  { return h[i].vruntime < h[j].vruntime }
func (h entityHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *entityHeap) Push(x any)         { *h = append(*h, x.(*entity)) }
func (h *entityHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Scheduler is one hart's CFS run queue.
type Scheduler struct {
	mu     sync.Mutex
	tasks  entityHeap
	period uint64
	sum    uint64
}

// NewScheduler creates an empty run queue.
func NewScheduler() *Scheduler {
	return &Scheduler{period: config.SchedPeriod}
}

// Push enqueues t, calibrating its vruntime against the queue's current
// minimum first so a task that has been blocked for a long time doesn't
// receive an unfair scheduling advantage.
func (s *Scheduler) Push(t *proc.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()

	floor := s.calibrationLocked()
	if floor > 0 {
		floor--
	}
	t.Time.Calibrate(floor)

	e := &entity{task: t, vruntime: t.Time.Vruntime, weight: t.Time.Weight}
	s.sum += e.weight
	heap.Push(&s.tasks, e)
	s.recomputePeriodLocked()
}

// Pop removes and returns the task with the lowest vruntime along with
// the time slice it should run for, or ok=false if the queue is empty.
func (s *Scheduler) Pop() (task *proc.Task, slice uint64, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tasks.Len() == 0 {
		return nil, 0, false
	}
	item := heap.Pop(&s.tasks).(*entity)
	s.recomputePeriodLocked()
	s.sum -= item.weight
	slice = s.period * item.weight / (s.sum + item.weight)
	return item.task, slice, true
}

// Peek returns the task at the head of the queue without removing it.
func (s *Scheduler) Peek() *proc.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tasks.Len() == 0 {
		return nil
	}
	return s.tasks[0].task
}

func (s *Scheduler) calibrationLocked() uint64 {
	if s.tasks.Len() == 0 {
		return 0
	}
	return s.tasks[0].task.Time.Vruntime
}

func (s *Scheduler) recomputePeriodLocked() {
	n := uint64(s.tasks.Len())
	if n*config.MinSlice > config.SchedPeriod {
		s.period = n * config.MinSlice
	} else {
		s.period = config.SchedPeriod
	}
}

// Len reports the number of runnable tasks currently queued.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tasks.Len()
}
