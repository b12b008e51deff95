package memory

import "sync"

// unit is one contiguous shard of the page-metadata table, covering the
// PPN range [startPPN, endPPN).
type unit struct {
	startPPN PPN
	endPPN   PPN
	slots    []Slot
}

// Table is the page-metadata table: every physical frame in the system
// has exactly one Slot here, found by scanning the (few) registered
// units. Sharded rather than one giant slice so hot-adding an arena via
// BuddyAllocator.AddSegment doesn't require reallocating the whole table.
type Table struct {
	mu    sync.RWMutex
	units []*unit
}

// NewTable creates an empty page-metadata table.
func NewTable() *Table {
	return &Table{}
}

// AddRange registers a fresh, all-KindEmpty metadata shard covering
// [startPPN, endPPN). The caller must ensure ranges never overlap.
func (t *Table) AddRange(startPPN, endPPN PPN) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.units = append(t.units, &unit{
		startPPN: startPPN,
		endPPN:   endPPN,
		slots:    make([]Slot, endPPN-startPPN),
	})
}

// Get returns the metadata slot for ppn, or nil if ppn is not covered by
// any registered range.
func (t *Table) Get(ppn PPN) *Slot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, u := range t.units {
		if ppn >= u.startPPN && ppn < u.endPPN {
			return &u.slots[ppn-u.startPPN]
		}
	}
	return nil
}
