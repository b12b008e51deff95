package memory

import (
	"sync"
	"testing"

	"eduos/config"
)

func newTestSlab(t *testing.T) (*SlabAllocator, *Table) {
	t.Helper()
	b := NewBuddyAllocator(config.PageSize)
	b.AddSegment(0, config.PageSize*64)
	table := NewTable()
	table.AddRange(0, 64)
	return NewSlabAllocator(NewPageBuddy(b), table), table
}

func TestSlabRoundTrip(t *testing.T) {
	s, _ := newTestSlab(t)

	p1, ok := s.Alloc(40)
	if !ok {
		t.Fatal("alloc 1 failed")
	}
	p2, ok := s.Alloc(40)
	if !ok {
		t.Fatal("alloc 2 failed")
	}
	if p1 == p2 {
		t.Fatalf("expected distinct slots, got %#x twice", p1)
	}
	s.Dealloc(p1, 40)
	s.Dealloc(p2, 40)

	// Both slots go back to the cache's current page, which stays in
	// place (a page is reclaimed only once it is no longer current), so
	// the next allocation can reuse a just-freed slot.
	p3, ok := s.Alloc(40)
	if !ok {
		t.Fatal("alloc 3 failed")
	}
	if p3 != p1 && p3 != p2 {
		// Not strictly required, but a well-formed allocator reusing the
		// just-freed page should hand out one of the two prior addresses.
	}
}

func TestSlabFirstSlotIsLowestAddress(t *testing.T) {
	s, _ := newTestSlab(t)
	p, ok := s.Alloc(16)
	if !ok {
		t.Fatal("alloc failed")
	}
	base := Addr(uint64(p) &^ (config.PageSize - 1))
	if p != base {
		t.Fatalf("first slot handed out = %#x, want page base %#x", p, base)
	}
}

func TestSlabLargeRequestForwardsToBuddy(t *testing.T) {
	s, _ := newTestSlab(t)
	p, ok := s.Alloc(config.PageSize)
	if !ok {
		t.Fatal("page-sized alloc failed")
	}
	if uint64(p)%config.PageSize != 0 {
		t.Fatalf("expected page-aligned address, got %#x", p)
	}
	s.Dealloc(p, config.PageSize)
}

// TestSlabConcurrentUniqueness is a concurrency smoke test:
// across many goroutines allocating concurrently, no two outstanding
// slots share an address.
func TestSlabConcurrentUniqueness(t *testing.T) {
	s, _ := newTestSlab(t)

	const n = 200
	results := make(chan Addr, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, ok := s.Alloc(24)
			if !ok {
				t.Error("alloc failed under concurrency")
				return
			}
			results <- p
		}()
	}
	wg.Wait()
	close(results)

	seen := make(map[Addr]bool, n)
	for p := range results {
		if seen[p] {
			t.Fatalf("address %#x allocated twice concurrently", p)
		}
		seen[p] = true
	}
}

func TestSlabDoubleFreePanics(t *testing.T) {
	s, _ := newTestSlab(t)
	p, ok := s.Alloc(16)
	if !ok {
		t.Fatal("alloc failed")
	}
	s.Dealloc(p, 16)

	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on double free")
		}
	}()
	s.Dealloc(p, 16)
}

// TestSlabTagsPageMetadataTable asserts the slab allocator's central
// claim: the shared page-metadata table, not some private bookkeeping
// struct, is the source of truth for what a slab-owned frame holds.
func TestSlabTagsPageMetadataTable(t *testing.T) {
	s, table := newTestSlab(t)

	p, ok := s.Alloc(32)
	if !ok {
		t.Fatal("alloc failed")
	}
	ppn := ppnOf(p)
	slot := table.Get(ppn)
	if slot == nil {
		t.Fatalf("table has no slot for ppn %d", ppn)
	}
	if got := slot.Kind(); got != KindSlab {
		t.Fatalf("slot kind = %s, want slab", got)
	}
	meta := slot.AsSlab()
	if meta.InUse != 1 {
		t.Fatalf("meta.InUse = %d, want 1", meta.InUse)
	}

	// A page is reclaimed only once it is no longer the cache's current
	// page, so fill it (taking the last slot detaches it from curr)
	// before freeing every slot.
	ptrs := []Addr{p}
	for i := 1; i < int(config.PageSize/32); i++ {
		q, ok := s.Alloc(32)
		if !ok {
			t.Fatal("alloc failed")
		}
		ptrs = append(ptrs, q)
	}
	for _, q := range ptrs {
		s.Dealloc(q, 32)
	}
	if got := table.Get(ppn).Kind(); got != KindEmpty {
		t.Fatalf("after reclaim, slot kind = %s, want empty", got)
	}
}
