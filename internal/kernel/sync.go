package kernel

import (
	"eduos/internal/proc"
	"eduos/internal/trap"
)

// Syscall ids for the kernel-managed synchronization objects, in a
// private number range well above the Linux riscv64 ABI ids the rest of
// the table uses — these calls have no Linux analog, since a Linux
// futex-style interface would put the object's state in user memory
// rather than in a per-process kernel table.
const (
	SyscallMutexCreate     = 1010
	SyscallMutexLock       = 1011
	SyscallMutexUnlock     = 1012
	SyscallSemaphoreCreate = 1020
	SyscallSemaphoreUp     = 1021
	SyscallSemaphoreDown   = 1022
	SyscallCondvarCreate   = 1030
	SyscallCondvarSignal   = 1031
	SyscallCondvarWait     = 1032
)

// registerSyncSyscalls wires the mutex/semaphore/condvar syscalls into
// trap.Table. Each operates on the calling process's own SyncTable;
// lock/unlock/up/down/wait of an id the table never allocated returns
// -1 rather than aborting, since the bad id came from user space.
func registerSyncSyscalls() {
	trap.Table[SyscallMutexCreate] = func(t *proc.Task, args [3]uint64) int64 {
		return t.Proc.Sync.CreateMutex()
	}
	trap.Table[SyscallMutexLock] = func(t *proc.Task, args [3]uint64) int64 {
		if !t.Proc.Sync.LockMutex(t, int64(args[0])) {
			return -1
		}
		return 0
	}
	trap.Table[SyscallMutexUnlock] = func(t *proc.Task, args [3]uint64) int64 {
		if !t.Proc.Sync.UnlockMutex(int64(args[0])) {
			return -1
		}
		return 0
	}

	trap.Table[SyscallSemaphoreCreate] = func(t *proc.Task, args [3]uint64) int64 {
		return t.Proc.Sync.CreateSemaphore(int64(args[0]))
	}
	trap.Table[SyscallSemaphoreUp] = func(t *proc.Task, args [3]uint64) int64 {
		if !t.Proc.Sync.SemUp(int64(args[0])) {
			return -1
		}
		return 0
	}
	trap.Table[SyscallSemaphoreDown] = func(t *proc.Task, args [3]uint64) int64 {
		if !t.Proc.Sync.SemDown(t, int64(args[0])) {
			return -1
		}
		return 0
	}

	trap.Table[SyscallCondvarCreate] = func(t *proc.Task, args [3]uint64) int64 {
		return t.Proc.Sync.CreateCondvar()
	}
	trap.Table[SyscallCondvarSignal] = func(t *proc.Task, args [3]uint64) int64 {
		if !t.Proc.Sync.CondSignal(int64(args[0])) {
			return -1
		}
		return 0
	}
	trap.Table[SyscallCondvarWait] = func(t *proc.Task, args [3]uint64) int64 {
		if !t.Proc.Sync.CondWait(t, int64(args[0]), int64(args[1])) {
			return -1
		}
		return 0
	}
}
