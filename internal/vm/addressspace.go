package vm

import "eduos/internal/memory"

// AddressSpace owns a PageTable and the Areas pushed into it.
type AddressSpace struct {
	pt    *PageTable
	areas []*Area
}

// NewAddressSpace creates an address space with a fresh, empty page
// table.
func NewAddressSpace(mem *PhysMem, frames *memory.FrameAllocator, table *memory.Table) (*AddressSpace, bool) {
	pt, ok := NewPageTable(mem, frames, table)
	if !ok {
		return nil, false
	}
	return &AddressSpace{pt: pt}, true
}

// PushArea records a (already-mapped) area as belonging to this address
// space.
func (as *AddressSpace) PushArea(a *Area) {
	as.areas = append(as.areas, a)
}

// Areas returns the areas pushed into this address space, in push order.
func (as *AddressSpace) Areas() []*Area { return as.areas }

// SatpValue returns the satp-register value for this address space's
// page table.
func (as *AddressSpace) SatpValue() uint64 { return as.pt.SatpValue() }

// PageTable exposes the underlying page table for Map/Translate calls
// outside of area management (e.g. mapping the trampoline/trap frame).
func (as *AddressSpace) PageTable() *PageTable { return as.pt }

// Fork creates a new address space with the same Identical/Linear
// mappings (re-created directly, since those frames are owned by the
// kernel rather than this address space) and deep copies of every
// Framed area, so the parent and child never alias user memory.
func (as *AddressSpace) Fork(mem *PhysMem, frames *memory.FrameAllocator, table *memory.Table) (*AddressSpace, bool) {
	child, ok := NewAddressSpace(mem, frames, table)
	if !ok {
		return nil, false
	}
	for _, a := range as.areas {
		switch a.kind {
		case KindIdentical:
			child.PushArea(NewIdenticalArea(child.pt, a.start, a.end, a.perm))
		case KindLinear:
			child.PushArea(NewLinearArea(child.pt, a.start, a.linearBase, a.Len(), a.perm))
		case KindFramed:
			na, ok := NewFramedArea(child.pt, frames, table, mem, a.start, a.end, a.perm)
			if !ok {
				child.Close(mem)
				return nil, false
			}
			na.CopyFromExisting(mem, a)
			child.PushArea(na)
		}
	}
	return child, true
}

// Close tears down every area and the page table itself, releasing all
// frames this address space owns.
func (as *AddressSpace) Close(mem *PhysMem) {
	for _, a := range as.areas {
		a.Unmap(mem)
	}
	as.areas = nil
	as.pt.Close()
}
