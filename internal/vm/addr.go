// Package vm implements SV39 page tables and address-space areas, the
// kernel's virtual-memory layer. Physical memory is modeled as a flat byte
// arena (PhysMem) indexed by the internal/memory package's PPN, so page
// table walks and framed-area contents are real bytes rather than pure
// arithmetic — unlike the buddy/slab layer, a page table's entries must
// actually be readable and writable to be useful.
package vm

import (
	"eduos/config"
	"eduos/internal/memory"
)

// VPN is a virtual page number: a virtual address with its low 12 page
// offset bits stripped off.
type VPN uint64

// VAddrToVPN truncates a virtual address down to its page number.
func VAddrToVPN(va uint64) VPN {
	return VPN(va >> config.PageShift)
}

// Addr reconstructs the page-aligned virtual address for v.
func (v VPN) Addr() uint64 {
	return uint64(v) << config.PageShift
}

// Indices returns the three 9-bit SV39 page-table indices for v, ordered
// [level2, level1, level0], level0 being the leaf.
func (v VPN) Indices() [3]int {
	const mask = config.VPNIndexMask
	level0 := uint64(v) & mask
	level1 := (uint64(v) >> config.VPNIndexBits) & mask
	level2 := (uint64(v) >> (2 * config.VPNIndexBits)) & mask
	return [3]int{int(level2), int(level1), int(level0)}
}

// PhysMem is the simulated physical byte arena every PageTable and
// Framed Area draws its storage from.
type PhysMem struct {
	bytes []byte
}

// NewPhysMem allocates an arena covering `frames` pages.
func NewPhysMem(frames uint64) *PhysMem {
	return &PhysMem{bytes: make([]byte, frames*config.PageSize)}
}

// Page returns the PageSize-length byte slice backing ppn.
func (m *PhysMem) Page(ppn memory.PPN) []byte {
	off := uint64(ppn) * config.PageSize
	return m.bytes[off : off+config.PageSize]
}
