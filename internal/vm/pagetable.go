package vm

import (
	"fmt"

	"eduos/config"
	"eduos/internal/memory"
)

// PageTable is a 3-level SV39 page table: a root frame plus whatever
// intermediate frames get allocated as mappings are added, all drawn
// from a shared FrameAllocator and tracked in the page-metadata Table as
// KindPageTable. Frames are released by an explicit Close.
type PageTable struct {
	mem    *PhysMem
	frames *memory.FrameAllocator
	table  *memory.Table
	root   memory.PPN
	owned  []memory.PPN
}

// NewPageTable allocates a fresh, zeroed root frame and returns a page
// table over it.
func NewPageTable(mem *PhysMem, frames *memory.FrameAllocator, table *memory.Table) (*PageTable, bool) {
	root, ok := frames.AllocPage()
	if !ok {
		return nil, false
	}
	clear(mem.Page(root))
	if slot := table.Get(root); slot != nil {
		slot.SetPageTable()
	}
	return &PageTable{mem: mem, frames: frames, table: table, root: root, owned: []memory.PPN{root}}, true
}

// SatpValue packs the root PPN into the form the riscv satp CSR expects:
// mode 8 (SV39) in the top 4 bits, root PPN in the low 44.
func (pt *PageTable) SatpValue() uint64 {
	return uint64(config.SV39ModeBits)<<60 | uint64(pt.root)
}

// Map installs ppn -> vpn in the table with the given permission flags,
// allocating any missing intermediate page-table frames along the way.
// flags should not include FlagV; it is added automatically.
func (pt *PageTable) Map(vpn VPN, ppn memory.PPN, flags PTEFlags) bool {
	page, idx, ok := pt.walkCreate(vpn)
	if !ok {
		return false
	}
	e := newPTE(ppn, flags|FlagV)
	writePTE(page, idx, e)
	return true
}

// Unmap clears the valid bit of vpn's leaf entry. Panics if vpn was
// never mapped: unmapping a mapping that doesn't exist means the
// caller's area bookkeeping has already gone wrong.
func (pt *PageTable) Unmap(vpn VPN) {
	page, idx, ok := pt.walkFind(vpn)
	if !ok {
		panic(fmt.Sprintf("vm: unmap of unmapped vpn %#x", vpn))
	}
	e := readPTE(page, idx)
	e.setFlags(0)
	writePTE(page, idx, e)
}

// Translate returns the leaf PTE for vpn, if mapped and valid.
func (pt *PageTable) Translate(vpn VPN) (PageTableEntry, bool) {
	page, idx, ok := pt.walkFind(vpn)
	if !ok {
		return 0, false
	}
	e := readPTE(page, idx)
	if !e.Valid() {
		return 0, false
	}
	return e, true
}

// walkFind finds the leaf PTE slot for vpn without creating intermediate
// tables, returning false if any level along the way is unmapped.
func (pt *PageTable) walkFind(vpn VPN) (page []byte, idx int, ok bool) {
	indices := vpn.Indices()
	cur := pt.root
	for i, ix := range indices {
		page := pt.mem.Page(cur)
		e := readPTE(page, ix)
		if !e.Valid() {
			return nil, 0, false
		}
		if i == 2 {
			return page, ix, true
		}
		cur = e.PPN()
	}
	panic("unreachable")
}

// walkCreate finds the leaf PTE slot for vpn, allocating zeroed
// intermediate page-table frames as needed.
func (pt *PageTable) walkCreate(vpn VPN) (page []byte, idx int, ok bool) {
	indices := vpn.Indices()
	cur := pt.root
	for i, ix := range indices {
		page := pt.mem.Page(cur)
		e := readPTE(page, ix)
		if i == 2 {
			return page, ix, true
		}
		if !e.Valid() {
			next, allocated := pt.frames.AllocPage()
			if !allocated {
				return nil, 0, false
			}
			clear(pt.mem.Page(next))
			if slot := pt.table.Get(next); slot != nil {
				slot.SetPageTable()
			}
			pt.owned = append(pt.owned, next)
			e = newPTE(next, FlagV)
			writePTE(page, ix, e)
		}
		cur = e.PPN()
	}
	panic("unreachable")
}

// Close releases every page-table frame this table owns back to the
// frame allocator.
func (pt *PageTable) Close() {
	for _, ppn := range pt.owned {
		if slot := pt.table.Get(ppn); slot != nil {
			slot.SetEmpty()
		}
		pt.frames.DeallocPage(ppn)
	}
	pt.owned = nil
}
