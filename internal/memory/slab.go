package memory

import (
	"sync"

	"eduos/config"
)

// maxSlabOrder is the top object-size order the slab allocator services;
// 1<<12 == PageSize.
const maxSlabOrder = 12

// PageAllocator is the interface the slab allocator draws whole pages
// from. NewPageBuddy adapts a BuddyAllocator to it.
type PageAllocator interface {
	AllocPage() (Addr, bool)
	DeallocPage(Addr)
}

// pageBuddy adapts a *BuddyAllocator to PageAllocator.
type pageBuddy struct{ b *BuddyAllocator }

func (p pageBuddy) AllocPage() (Addr, bool) { return p.b.Alloc(config.PageSize, config.PageSize) }
func (p pageBuddy) DeallocPage(a Addr)      { p.b.Dealloc(a, config.PageSize, config.PageSize) }

// NewPageBuddy wraps a BuddyAllocator as a PageAllocator for the slab
// allocator (or any other page-granularity consumer) to draw pages from.
func NewPageBuddy(b *BuddyAllocator) PageAllocator { return pageBuddy{b} }

func ppnOf(a Addr) PPN  { return PPN(uint64(a) >> config.PageShift) }
func addrOf(p PPN) Addr { return Addr(uint64(p) << config.PageShift) }

// cache is one order's slab cache: curr is the page new slots are drawn
// from, head leads the list of partially-used pages not currently
// selected. It holds only PPN identities; all other per-page bookkeeping
// (the free-slot list, inuse count, and next/prev links among
// partially-used pages) lives in the page-metadata table's SlabMeta,
// fetched through table.Get(ppn).AsSlab() on every access, so the table
// stays the single source of truth for what a frame holds.
type cache struct {
	curr    PPN
	hasCurr bool
	head    PPN
	hasHead bool
}

// SlabAllocator layers fixed-size object caches over a PageAllocator.
// Per-page metadata is tagged KindSlab in the shared page-metadata table
// rather than kept in a private map, so the table always has a truthful
// answer for what a given frame currently holds.
type SlabAllocator struct {
	mu     sync.Mutex
	pages  PageAllocator
	table  *Table
	caches [maxSlabOrder + 1]cache
}

// NewSlabAllocator creates a slab allocator drawing pages from pages and
// recording per-page ownership in table.
func NewSlabAllocator(pages PageAllocator, table *Table) *SlabAllocator {
	return &SlabAllocator{pages: pages, table: table}
}

// sizeToOrder rounds a request up to the smallest order whose slot size
// is at least max(8, r) bytes — 8 is sizeof(pointer) on a 64-bit host.
func sizeToOrder(r uint64) int {
	if r < 8 {
		r = 8
	}
	order := 0
	for (uint64(1) << order) < r {
		order++
	}
	return order
}

// Alloc services a request of `size` bytes. Requests of PageSize or more
// are forwarded directly to the backing PageAllocator.
func (s *SlabAllocator) Alloc(size uint64) (Addr, bool) {
	if size >= config.PageSize {
		return s.pages.AllocPage()
	}

	order := sizeToOrder(size)

	s.mu.Lock()
	defer s.mu.Unlock()

	c := &s.caches[order]
	if !c.hasCurr {
		if c.hasHead {
			// Take the first page from the partially-used list.
			p := c.head
			meta := s.table.Get(p).AsSlab()
			c.head = meta.Next
			c.hasHead = meta.HasNext
			if c.hasHead {
				next := s.table.Get(c.head).AsSlab()
				next.HasPrev = false
			}
			meta.HasNext = false
			c.curr, c.hasCurr = p, true
		} else {
			base, ok := s.pages.AllocPage()
			if !ok {
				return 0, false
			}
			ppn := ppnOf(base)
			s.table.Get(ppn).SetSlab(newSlabMeta(order))
			c.curr, c.hasCurr = ppn, true
		}
	}

	ppn := c.curr
	meta := s.table.Get(ppn).AsSlab()
	n := len(meta.FreeList)
	off := meta.FreeList[n-1]
	meta.FreeList = meta.FreeList[:n-1]
	meta.InUse++
	slot := addrOf(ppn) + Addr(off)
	if len(meta.FreeList) == 0 {
		// The page is now full: it is detached from curr and is not
		// re-linked until a Dealloc returns a slot to it.
		c.hasCurr = false
	}
	return slot, true
}

// newSlabMeta formats a fresh page's metadata into 1<<order-sized slots,
// pushing their offsets onto the free list from high to low so the first
// slot handed out has the lowest address, a deterministic, testable
// choice.
func newSlabMeta(order int) *SlabMeta {
	slotSize := uint64(1) << order
	count := int(config.PageSize / slotSize)
	meta := &SlabMeta{Order: order, FreeList: make([]uint32, 0, count)}
	for i := count - 1; i >= 0; i-- {
		meta.FreeList = append(meta.FreeList, uint32(uint64(i)*slotSize))
	}
	return meta
}

// Dealloc returns a slot of `size` bytes at ptr to its cache, reclaiming
// the backing page to the PageAllocator once it becomes wholly unused and
// is not the cache's current page.
func (s *SlabAllocator) Dealloc(ptr Addr, size uint64) {
	if size >= config.PageSize {
		s.pages.DeallocPage(ptr)
		return
	}

	order := sizeToOrder(size)

	s.mu.Lock()
	defer s.mu.Unlock()

	base := Addr(uint64(ptr) &^ (config.PageSize - 1))
	ppn := ppnOf(base)
	slot := s.table.Get(ppn)
	if slot == nil {
		panic("memory: dealloc of slot not owned by slab allocator")
	}
	meta := slot.AsSlab()

	c := &s.caches[order]
	isCurr := c.hasCurr && c.curr == ppn
	wasFull := len(meta.FreeList) == 0
	if wasFull && !isCurr {
		meta.Next = c.head
		meta.HasNext = c.hasHead
		meta.HasPrev = false
		if c.hasHead {
			head := s.table.Get(c.head).AsSlab()
			head.Prev, head.HasPrev = ppn, true
		}
		c.head, c.hasHead = ppn, true
	}

	off := uint32(uint64(ptr) - uint64(base))
	meta.FreeList = append(meta.FreeList, off)
	meta.InUse--
	if meta.InUse < 0 {
		panic("memory: slab double free")
	}

	if meta.InUse == 0 && !isCurr {
		s.unlink(c, ppn, meta)
		slot.SetEmpty()
		s.pages.DeallocPage(base)
	}
}

func (s *SlabAllocator) unlink(c *cache, ppn PPN, meta *SlabMeta) {
	if meta.HasPrev {
		prev := s.table.Get(meta.Prev).AsSlab()
		prev.Next, prev.HasNext = meta.Next, meta.HasNext
	} else if c.hasHead && c.head == ppn {
		c.head, c.hasHead = meta.Next, meta.HasNext
	}
	if meta.HasNext {
		next := s.table.Get(meta.Next).AsSlab()
		next.Prev, next.HasPrev = meta.Prev, meta.HasPrev
	}
	meta.HasPrev, meta.HasNext = false, false
}
