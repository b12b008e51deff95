package memory

import "sync"

// FrameAllocator is a per-page bump allocator with a recycle list, used
// for kernel frames (page-table nodes, framed-area backing pages) that
// don't go through the slab allocator.
type FrameAllocator struct {
	mu       sync.Mutex
	next     PPN
	end      PPN
	recycled []PPN
}

// NewFrameAllocator creates an allocator serving PPNs in [start, end).
func NewFrameAllocator(start, end PPN) *FrameAllocator {
	return &FrameAllocator{next: start, end: end}
}

// AllocPage returns a recycled PPN if one is available, otherwise
// advances the bump pointer. It reports false once the arena and recycle
// list are both exhausted.
func (f *FrameAllocator) AllocPage() (PPN, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if n := len(f.recycled); n > 0 {
		ppn := f.recycled[n-1]
		f.recycled = f.recycled[:n-1]
		return ppn, true
	}
	if f.next < f.end {
		ppn := f.next
		f.next++
		return ppn, true
	}
	return 0, false
}

// DeallocPage returns ppn to the recycle list for future reuse.
func (f *FrameAllocator) DeallocPage(ppn PPN) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recycled = append(f.recycled, ppn)
}
