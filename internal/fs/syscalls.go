package fs

import (
	"eduos/internal/proc"
	"eduos/internal/trap"
	"eduos/internal/vm"
)

// Syscall ids for the filesystem operations the trap dispatcher
// forwards here, continuing trap's Linux-riscv64-numbered sequence.
// trap itself never imports fs (see dispatch.go's note on avoiding the
// cycle); RegisterSyscalls is how a kernel boot sequence wires these
// into trap.Table instead.
const (
	SyscallOpen  = 56
	SyscallClose = 57
	SyscallLseek = 62
)

// fdReadWriter is satisfied by anything a descriptor table slot can hold
// that the read/write syscalls can drive: *FileHandle, but also an
// ipc.Pipe end — read(2)/write(2) don't care what kind of stream backs
// a descriptor, only that it can move bytes.
type fdReadWriter interface {
	Read(buf []byte) int
	Write(buf []byte) (int, error)
}

// RegisterSyscalls installs open/close/read/write/lseek handlers into
// trap.Table, closing over mem (the single simulated physical memory
// arena) and fsys (the mounted root filesystem) the way a real kernel's
// boot sequence would bind syscall handlers to the live subsystems they
// drive.
func RegisterSyscalls(mem *vm.PhysMem, fsys *FileSystem) {
	trap.Table[SyscallOpen] = func(t *proc.Task, args [3]uint64) int64 {
		path, ok := trap.ReadCString(mem, t.Proc.AddrSpace, args[0])
		if !ok {
			return -1
		}
		flags := OpenFlags(args[1])
		fh, err := fsys.Root().Open(path, flags)
		if err != nil {
			return -1
		}
		return int64(t.Proc.AllocFd(fh))
	}

	trap.Table[SyscallClose] = func(t *proc.Task, args [3]uint64) int64 {
		t.Proc.CloseFd(int(args[0]))
		return 0
	}

	trap.Table[SyscallLseek] = func(t *proc.Task, args [3]uint64) int64 {
		fh, ok := t.Proc.Fd(int(args[0])).(*FileHandle)
		if !ok {
			return -1
		}
		fh.Seek(uint32(args[1]))
		return int64(fh.Offset())
	}

	trap.Table[trap.SyscallRead] = func(t *proc.Task, args [3]uint64) int64 {
		rw, ok := t.Proc.Fd(int(args[0])).(fdReadWriter)
		if !ok {
			return -1
		}
		// Bind the calling task to the handle so a cold read parks it
		// on the disk's completion ack rather than blocking inline.
		if fh, ok := rw.(*FileHandle); ok {
			fh.SetWaiter(t)
		}
		length := int(args[2])
		buf := make([]byte, length)
		n := rw.Read(buf)
		if n > 0 && !trap.WriteBytes(mem, t.Proc.AddrSpace, args[1], buf[:n]) {
			return -1
		}
		return int64(n)
	}

	trap.Table[trap.SyscallWrite] = func(t *proc.Task, args [3]uint64) int64 {
		rw, ok := t.Proc.Fd(int(args[0])).(fdReadWriter)
		if !ok {
			return -1
		}
		if fh, ok := rw.(*FileHandle); ok {
			fh.SetWaiter(t)
		}
		length := int(args[2])
		buf, ok := trap.ReadBytes(mem, t.Proc.AddrSpace, args[1], length)
		if !ok {
			return -1
		}
		n, err := rw.Write(buf)
		if err != nil {
			return -1
		}
		return int64(n)
	}
}
