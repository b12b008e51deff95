package vm

import (
	"eduos/internal/memory"
)

// AreaKind selects how an area's pages are backed: identical (vpn ==
// ppn, used for the kernel's own image), framed (independently allocated
// backing pages, used for user address spaces), and linear (a fixed
// offset from a given physical base, used for the kernel's direct map of
// all of physical memory).
type AreaKind int

const (
	KindIdentical AreaKind = iota
	KindFramed
	KindLinear
)

// Area is one contiguous mapped region of an address space.
type Area struct {
	start, end VPN
	kind       AreaKind
	perm       PTEFlags
	frames     []memory.PPN // populated for KindFramed only
	linearBase memory.PPN   // populated for KindLinear only
	pt         *PageTable
	fr         *memory.FrameAllocator
	table      *memory.Table
}

// NewIdenticalArea maps every vpn in [start, end) to the physical frame
// of the same number.
func NewIdenticalArea(pt *PageTable, start, end VPN, perm PTEFlags) *Area {
	a := &Area{start: start, end: end, kind: KindIdentical, perm: perm, pt: pt}
	for vpn := start; vpn < end; vpn++ {
		pt.Map(vpn, memory.PPN(vpn), perm)
	}
	return a
}

// NewLinearArea maps [start, start+len) to a contiguous physical range
// beginning at startPPN, used for the kernel's direct-mapped view of all
// physical memory.
func NewLinearArea(pt *PageTable, start VPN, startPPN memory.PPN, length int, perm PTEFlags) *Area {
	a := &Area{start: start, end: start + VPN(length), kind: KindLinear, perm: perm, pt: pt, linearBase: startPPN}
	for i := 0; i < length; i++ {
		pt.Map(start+VPN(i), startPPN+memory.PPN(i), perm)
	}
	return a
}

// NewFramedArea allocates one fresh, zeroed frame per vpn in [start, end)
// and maps it, used for a process's own heap/stack/code mappings so two
// address spaces never alias the same physical page.
func NewFramedArea(pt *PageTable, fr *memory.FrameAllocator, table *memory.Table, mem *PhysMem, start, end VPN, perm PTEFlags) (*Area, bool) {
	a := &Area{start: start, end: end, kind: KindFramed, perm: perm, pt: pt, fr: fr, table: table}
	for vpn := start; vpn < end; vpn++ {
		ppn, ok := fr.AllocPage()
		if !ok {
			a.unmapAndFree(mem)
			return nil, false
		}
		clear(mem.Page(ppn))
		if slot := table.Get(ppn); slot != nil {
			slot.SetNormal()
		}
		a.frames = append(a.frames, ppn)
		pt.Map(vpn, ppn, perm)
	}
	return a, true
}

// Frames returns the backing physical frames of a KindFramed area, in
// vpn order.
func (a *Area) Frames() []memory.PPN { return a.frames }

// Kind reports the area's mapping type.
func (a *Area) Kind() AreaKind { return a.kind }

// Range reports the area's virtual page range [start, end).
func (a *Area) Range() (start, end VPN) { return a.start, a.end }

// Len reports the number of pages covered by the area.
func (a *Area) Len() int { return int(a.end - a.start) }

// CopyFromRawBytes copies data into the area's backing pages in order,
// page by page, used to load a program image into a fresh framed area.
func (a *Area) CopyFromRawBytes(mem *PhysMem, data []byte) {
	off := 0
	for _, ppn := range a.frames {
		if off >= len(data) {
			return
		}
		page := mem.Page(ppn)
		n := copy(page, data[off:])
		off += n
	}
}

// CopyFromExisting deep-copies another framed area's backing bytes into
// this one's, used when forking a process's address space.
func (a *Area) CopyFromExisting(mem *PhysMem, other *Area) {
	if len(a.frames) != len(other.frames) {
		panic("vm: CopyFromExisting between areas of different length")
	}
	for i, dst := range a.frames {
		copy(mem.Page(dst), mem.Page(other.frames[i]))
	}
}

// Unmap removes this area's mappings and, for a framed area, releases
// its backing frames. Identical and linear areas share frames owned
// elsewhere (the kernel's own physical memory) and so only drop the
// mapping.
func (a *Area) Unmap(mem *PhysMem) {
	for vpn := a.start; vpn < a.end; vpn++ {
		a.pt.Unmap(vpn)
	}
	if a.kind == KindFramed {
		a.freeFrames()
	}
}

func (a *Area) unmapAndFree(mem *PhysMem) {
	for vpn := a.start; vpn < a.start+VPN(len(a.frames)); vpn++ {
		a.pt.Unmap(vpn)
	}
	a.freeFrames()
}

func (a *Area) freeFrames() {
	for _, ppn := range a.frames {
		if slot := a.table.Get(ppn); slot != nil {
			slot.SetEmpty()
		}
		a.fr.DeallocPage(ppn)
	}
	a.frames = nil
}
