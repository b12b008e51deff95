package ipc

import (
	"encoding/binary"

	"eduos/internal/proc"
	"eduos/internal/trap"
	"eduos/internal/vm"
)

// SyscallPipe creates an anonymous pipe, continuing trap's Linux-riscv64
// syscall numbering (pipe2 is 59 on that ABI).
const SyscallPipe = 59

// RegisterSyscalls installs the pipe syscall into trap.Table, closing
// over mem the same way fs.RegisterSyscalls does for the filesystem
// syscalls, so trap itself never needs to import ipc.
func RegisterSyscalls(mem *vm.PhysMem) {
	trap.Table[SyscallPipe] = func(t *proc.Task, args [3]uint64) int64 {
		rd, wr := New()
		rdFd := t.Proc.AllocFd(rd)
		wrFd := t.Proc.AllocFd(wr)

		var out [16]byte
		binary.LittleEndian.PutUint64(out[0:8], uint64(rdFd))
		binary.LittleEndian.PutUint64(out[8:16], uint64(wrFd))
		if !trap.WriteBytes(mem, t.Proc.AddrSpace, args[0], out[:]) {
			t.Proc.CloseFd(rdFd)
			t.Proc.CloseFd(wrFd)
			return -1
		}
		return 0
	}
}
