package kernel

import (
	"eduos/internal/memory"
	"eduos/internal/vm"
)

// TrampolineVPN is the top page of the SV39 virtual address space (27
// VPN bits), where both the kernel space and every user space map the
// trap trampoline so a context switch never changes the page the
// executing code lives on.
const TrampolineVPN = vm.VPN(1<<27 - 1)

// kernelStackPages is the number of pages in one task's kernel stack.
// Stacks descend from the trampoline, one guard page between neighbors,
// indexed by the task's GID so two tasks never overlap.
const kernelStackPages = 2

// ImageLayout describes where the kernel image's segments sit in
// physical memory, in page units. On real hardware these come from
// linker symbols; the hosted simulation passes in whatever slice of the
// arena it reserved for the "image".
type ImageLayout struct {
	TextStart, TextEnd     memory.PPN // mapped R|X
	RodataStart, RodataEnd memory.PPN // mapped R
	DataStart, DataEnd     memory.PPN // .data and .bss, mapped R|W
}

// BuildKernelSpace constructs the kernel's own address space: the image
// segments mapped identically with their segment permissions, the rest
// of the physical arena mapped linearly so the kernel can reach any
// frame through its own page table, and the trampoline page at the top
// virtual address. Hart 0 builds this once before publishing INITED;
// every hart then activates the same space via SatpValue.
func BuildKernelSpace(mem *vm.PhysMem, frames *memory.FrameAllocator, table *memory.Table, layout ImageLayout, arenaPages uint64) (*vm.AddressSpace, bool) {
	as, ok := vm.NewAddressSpace(mem, frames, table)
	if !ok {
		return nil, false
	}
	pt := as.PageTable()

	as.PushArea(vm.NewIdenticalArea(pt, vm.VPN(layout.TextStart), vm.VPN(layout.TextEnd), vm.FlagR|vm.FlagX))
	as.PushArea(vm.NewIdenticalArea(pt, vm.VPN(layout.RodataStart), vm.VPN(layout.RodataEnd), vm.FlagR))
	as.PushArea(vm.NewIdenticalArea(pt, vm.VPN(layout.DataStart), vm.VPN(layout.DataEnd), vm.FlagR|vm.FlagW))

	// Direct map of the remaining arena above the image, so frames
	// handed out to page tables and user areas stay reachable.
	if end := memory.PPN(arenaPages); layout.DataEnd < end {
		as.PushArea(vm.NewLinearArea(pt, vm.VPN(layout.DataEnd), layout.DataEnd, int(end-layout.DataEnd), vm.FlagR|vm.FlagW))
	}

	// The trampoline itself lives in the text segment; its high mapping
	// is a single linear page rather than an area of its own.
	pt.Map(TrampolineVPN, layout.TextStart, vm.FlagR|vm.FlagX)
	return as, true
}

// KernelStackRange returns the virtual page range [lo, hi) of the kernel
// stack belonging to the task with the given gid: stacks descend from
// the trampoline, separated by unmapped guard pages.
func KernelStackRange(gid uint64) (lo, hi vm.VPN) {
	hi = TrampolineVPN - vm.VPN(gid*(kernelStackPages+1))
	return hi - kernelStackPages, hi
}

// MapKernelStack maps a fresh framed kernel stack for gid into the
// kernel's address space and returns its top virtual address (the
// initial stack pointer).
func MapKernelStack(as *vm.AddressSpace, mem *vm.PhysMem, frames *memory.FrameAllocator, table *memory.Table, gid uint64) (uint64, bool) {
	lo, hi := KernelStackRange(gid)
	area, ok := vm.NewFramedArea(as.PageTable(), frames, table, mem, lo, hi, vm.FlagR|vm.FlagW)
	if !ok {
		return 0, false
	}
	as.PushArea(area)
	return hi.Addr(), true
}
