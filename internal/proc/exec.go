package proc

import (
	"eduos/config"
	"eduos/internal/vm"
)

// Exec replaces p's address space in place with newAS, preserving the
// identity of its main task, and packs argv onto the new
// user stack ending at stackTop: the string bodies first (growing down
// from stackTop), then a NULL-terminated vector of pointers to them
// immediately below. The caller installs the returned (a0, a1) as the
// main task's argc/argv registers and sepc as the new entry point.
func (p *Process) Exec(mem *vm.PhysMem, newAS *vm.AddressSpace, stackTop uint64, argv []string) (a0 int64, a1 uint64) {
	p.mu.Lock()
	old := p.AddrSpace
	p.AddrSpace = newAS
	p.mu.Unlock()
	if old != nil {
		old.Close(mem)
	}

	ptr := stackTop
	ptrs := make([]uint64, len(argv))
	for i := len(argv) - 1; i >= 0; i-- {
		body := append([]byte(argv[i]), 0)
		ptr -= uint64(len(body))
		writeBytes(mem, newAS, ptr, body)
		ptrs[i] = ptr
	}

	vecBytes := uint64(len(ptrs)+1) * 8
	ptr -= vecBytes
	ptr &^= 7 // 8-byte align the pointer vector itself
	vecBase := ptr
	for i, pv := range ptrs {
		writeUint64(mem, newAS, vecBase+uint64(i)*8, pv)
	}
	writeUint64(mem, newAS, vecBase+uint64(len(ptrs))*8, 0)

	return int64(len(argv)), vecBase
}

// writeBytes copies data into newAS starting at vaddr, a minimal local
// twin of trap.WriteBytes (proc cannot import trap: trap already imports
// proc for the syscall dispatch table).
func writeBytes(mem *vm.PhysMem, as *vm.AddressSpace, vaddr uint64, data []byte) {
	pt := as.PageTable()
	written := 0
	for written < len(data) {
		pte, ok := pt.Translate(vm.VAddrToVPN(vaddr))
		if !ok {
			panic("proc: exec argv write to unmapped stack page")
		}
		page := mem.Page(pte.PPN())
		off := int(vaddr & config.PageOffsetMask)
		n := copy(page[off:], data[written:])
		written += n
		vaddr += uint64(n)
	}
}

func writeUint64(mem *vm.PhysMem, as *vm.AddressSpace, vaddr, v uint64) {
	var b [8]byte
	for i := range b {
		b[i] = byte(v >> (8 * i))
	}
	writeBytes(mem, as, vaddr, b[:])
}
