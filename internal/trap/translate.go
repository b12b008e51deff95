// Package trap implements the syscall dispatch and signal-delivery
// path: translating user-space pointers through a process's page
// table, dispatching syscall ids to handlers, and rewriting a task's
// trap context to run a signal handler (or abort) on the kernel-return
// path.
package trap

import (
	"eduos/config"
	"eduos/internal/vm"
)

func pageOffset(vaddr uint64) int {
	return int(vaddr & config.PageOffsetMask)
}

// ReadBytes copies length bytes starting at user virtual address vaddr
// out of the process's address space, gathering across page boundaries
// into one owned copy. Returns ok=false if any page in the range is
// unmapped.
func ReadBytes(mem *vm.PhysMem, as *vm.AddressSpace, vaddr uint64, length int) ([]byte, bool) {
	out := make([]byte, 0, length)
	pt := as.PageTable()
	for len(out) < length {
		pte, ok := pt.Translate(vm.VAddrToVPN(vaddr))
		if !ok {
			return nil, false
		}
		page := mem.Page(pte.PPN())
		off := pageOffset(vaddr)
		n := min(len(page)-off, length-len(out))
		out = append(out, page[off:off+n]...)
		vaddr += uint64(n)
	}
	return out, true
}

// WriteBytes copies data into the process's address space starting at
// user virtual address vaddr, mirroring ReadBytes but in reverse.
func WriteBytes(mem *vm.PhysMem, as *vm.AddressSpace, vaddr uint64, data []byte) bool {
	pt := as.PageTable()
	written := 0
	for written < len(data) {
		pte, ok := pt.Translate(vm.VAddrToVPN(vaddr))
		if !ok {
			return false
		}
		page := mem.Page(pte.PPN())
		n := copy(page[pageOffset(vaddr):], data[written:])
		written += n
		vaddr += uint64(n)
	}
	return true
}

// ReadCString reads a NUL-terminated string starting at vaddr, stopping
// at the first zero byte (or failing if it crosses into an unmapped
// page first).
func ReadCString(mem *vm.PhysMem, as *vm.AddressSpace, vaddr uint64) (string, bool) {
	pt := as.PageTable()
	var out []byte
	for {
		pte, ok := pt.Translate(vm.VAddrToVPN(vaddr))
		if !ok {
			return "", false
		}
		page := mem.Page(pte.PPN())
		off := pageOffset(vaddr)
		for ; off < len(page); off++ {
			if page[off] == 0 {
				return string(out), true
			}
			out = append(out, page[off])
		}
		vaddr += uint64(len(page) - pageOffset(vaddr))
	}
}
