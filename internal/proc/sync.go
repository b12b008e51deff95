package proc

import (
	"sync"

	"eduos/internal/klock"
)

// heldMutex pairs a kernel-managed mutex with the guard its current
// holder received from Lock, so unlock and condvar-wait can release the
// mutex on the holder's behalf. guard is only written by the task that
// holds the mutex, so the mutex itself serializes access to it.
type heldMutex struct {
	m     klock.Mutex
	guard *klock.MutexGuard
}

// SyncTable is a process's table of kernel-managed synchronization
// objects, addressed by the small integer ids the sync syscalls hand to
// user space. Ids are slot indices and are never recycled: a process
// rarely creates more than a handful of these over its lifetime.
// Operations on an id the table never allocated report failure rather
// than panicking, since the bad id came from user space.
type SyncTable struct {
	mu       sync.Mutex
	mutexes  []*heldMutex
	sems     []*klock.Semaphore
	condvars []*klock.Condvar
}

// CreateMutex allocates a new mutex and returns its id.
func (st *SyncTable) CreateMutex() int64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.mutexes = append(st.mutexes, &heldMutex{})
	return int64(len(st.mutexes) - 1)
}

func (st *SyncTable) mutex(id int64) (*heldMutex, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if id < 0 || id >= int64(len(st.mutexes)) {
		return nil, false
	}
	return st.mutexes[id], true
}

// LockMutex acquires mutex id on behalf of w, suspending it on
// contention. Reports false for an unknown id.
func (st *SyncTable) LockMutex(w klock.Waiter, id int64) bool {
	hm, ok := st.mutex(id)
	if !ok {
		return false
	}
	hm.guard = hm.m.Lock(w)
	return true
}

// UnlockMutex releases mutex id. Reports false for an unknown id or a
// mutex that is not currently held.
func (st *SyncTable) UnlockMutex(id int64) bool {
	hm, ok := st.mutex(id)
	if !ok || hm.guard == nil {
		return false
	}
	g := hm.guard
	hm.guard = nil
	g.Unlock()
	return true
}

// CreateSemaphore allocates a new semaphore with n initial permits and
// returns its id.
func (st *SyncTable) CreateSemaphore(n int64) int64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.sems = append(st.sems, klock.NewSemaphore(n))
	return int64(len(st.sems) - 1)
}

func (st *SyncTable) semaphore(id int64) (*klock.Semaphore, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if id < 0 || id >= int64(len(st.sems)) {
		return nil, false
	}
	return st.sems[id], true
}

// SemUp releases one permit of semaphore id. Reports false for an
// unknown id.
func (st *SyncTable) SemUp(id int64) bool {
	s, ok := st.semaphore(id)
	if !ok {
		return false
	}
	s.Up()
	return true
}

// SemDown acquires one permit of semaphore id on behalf of w, suspending
// it while none are available. Reports false for an unknown id.
func (st *SyncTable) SemDown(w klock.Waiter, id int64) bool {
	s, ok := st.semaphore(id)
	if !ok {
		return false
	}
	s.Down(w)
	return true
}

// CreateCondvar allocates a new condition variable and returns its id.
func (st *SyncTable) CreateCondvar() int64 {
	st.mu.Lock()
	defer st.mu.Unlock()
	st.condvars = append(st.condvars, &klock.Condvar{})
	return int64(len(st.condvars) - 1)
}

func (st *SyncTable) condvar(id int64) (*klock.Condvar, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if id < 0 || id >= int64(len(st.condvars)) {
		return nil, false
	}
	return st.condvars[id], true
}

// CondSignal wakes one waiter of condvar id. Reports false for an
// unknown id.
func (st *SyncTable) CondSignal(id int64) bool {
	cv, ok := st.condvar(id)
	if !ok {
		return false
	}
	cv.NotifyOne()
	return true
}

// CondWait atomically releases mutex mid (which w must hold), suspends w
// on condvar cid, and reacquires the mutex before returning. Reports
// false for an unknown condvar or mutex id, or a mutex not currently
// held.
func (st *SyncTable) CondWait(w klock.Waiter, cid, mid int64) bool {
	cv, ok := st.condvar(cid)
	if !ok {
		return false
	}
	hm, ok := st.mutex(mid)
	if !ok || hm.guard == nil {
		return false
	}
	g := hm.guard
	hm.guard = nil
	hm.guard = cv.WaitMutex(w, g)
	return true
}
