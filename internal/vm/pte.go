package vm

import (
	"encoding/binary"

	"eduos/internal/memory"
)

// PTEFlags is the SV39 page-table-entry flag byte. It doubles as the
// mapping permission an Area is created with; the two vocabularies are
// bit-identical, so one type serves both.
type PTEFlags uint8

const (
	FlagV PTEFlags = 1 << 0 // valid
	FlagR PTEFlags = 1 << 1 // readable
	FlagW PTEFlags = 1 << 2 // writable
	FlagX PTEFlags = 1 << 3 // executable
	FlagU PTEFlags = 1 << 4 // user-accessible
	FlagG PTEFlags = 1 << 5 // global
	FlagA PTEFlags = 1 << 6 // accessed
	FlagD PTEFlags = 1 << 7 // dirty
)

const ptePPNShift = 8 // config.PTESize*8 - 8 flag bits reserved, matching PTE_FLAG_WIDTH
const ptePPNMask = (uint64(1) << 44) - 1

// PageTableEntry is the 64-bit on-"disk" representation of one SV39 PTE:
// a 44-bit PPN shifted above 8 flag bits.
type PageTableEntry uint64

func newPTE(ppn memory.PPN, flags PTEFlags) PageTableEntry {
	return PageTableEntry(uint64(ppn)<<ptePPNShift | uint64(flags))
}

func (e PageTableEntry) PPN() memory.PPN {
	return memory.PPN((uint64(e) >> ptePPNShift) & ptePPNMask)
}

func (e PageTableEntry) Flags() PTEFlags {
	return PTEFlags(e)
}

func (e PageTableEntry) Valid() bool {
	return e.Flags()&FlagV != 0
}

func (e *PageTableEntry) setPPN(ppn memory.PPN) {
	flags := uint64(*e) & ((1 << ptePPNShift) - 1)
	*e = PageTableEntry(uint64(ppn)<<ptePPNShift | flags)
}

func (e *PageTableEntry) setFlags(flags PTEFlags) {
	ppn := e.PPN()
	*e = newPTE(ppn, flags)
}

// readPTE/writePTE decode a PTE at slot index idx within a page's raw
// bytes.
func readPTE(page []byte, idx int) PageTableEntry {
	off := idx * 8
	return PageTableEntry(binary.LittleEndian.Uint64(page[off : off+8]))
}

func writePTE(page []byte, idx int, pte PageTableEntry) {
	off := idx * 8
	binary.LittleEndian.PutUint64(page[off:off+8], uint64(pte))
}
