// Package proc implements the process/thread model: processes own an
// address space, file descriptor table and signal actions; tasks are
// the schedulable unit within a process.
package proc

import "sync"

// IDAllocator hands out small positive integer identifiers (pid/tid/gid),
// recycling released ones.
type IDAllocator struct {
	mu       sync.Mutex
	next     uint64
	recycled []uint64
}

// NewIDAllocator creates an allocator starting at 1; 0 is reserved to
// mean "no id" / the idle task.
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{next: 1}
}

// Alloc returns a fresh or recycled id.
func (a *IDAllocator) Alloc() uint64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if n := len(a.recycled); n > 0 {
		id := a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
		return id
	}
	id := a.next
	a.next++
	return id
}

// Dealloc returns id to the recycle pool.
func (a *IDAllocator) Dealloc(id uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.recycled = append(a.recycled, id)
}

var (
	pidAllocator = NewIDAllocator()
	gidAllocator = NewIDAllocator()
)

// AllocPID hands out a fresh process id from the package-global pool.
func AllocPID() uint64 { return pidAllocator.Alloc() }

// DeallocPID returns pid to the package-global pool.
func DeallocPID(pid uint64) { pidAllocator.Dealloc(pid) }

// AllocGID hands out a fresh globally-unique task id, used by the
// scheduler to identify a task independent of which process owns it.
func AllocGID() uint64 { return gidAllocator.Alloc() }

// DeallocGID returns gid to the package-global pool.
func DeallocGID(gid uint64) { gidAllocator.Dealloc(gid) }
