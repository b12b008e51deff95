// Package kernel is the boot glue that ties the subsystems together: it
// builds the kernel's address space and physical memory arena, mounts a
// SimpleFS image, stands up the per-hart schedulers and timer wheel, and
// registers the process/filesystem syscalls that trap.Dispatch forwards
// to. On real hardware hart 0 clears BSS, inits UART, the heap and the
// frame allocator, activates the page table, pushes initproc and enters
// the scheduler loop, while other harts spin on an INITED flag; this
// package is the hosted-simulation equivalent, without the assembly
// trampoline and UART bring-up.
package kernel

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"eduos/config"
	"eduos/internal/fs"
	"eduos/internal/ipc"
	"eduos/internal/memory"
	"eduos/internal/proc"
	"eduos/internal/sched"
	"eduos/internal/trap"
	"eduos/internal/vm"
)

// execStackPages is the number of framed pages given to a freshly
// exec'd program's user stack — a fixed allowance, since this hosted
// simulation has no demand-paged stack growth.
const execStackPages = 4

// SyscallSleep parks the caller until the simulated clock has advanced
// by the requested number of cycles (nanosleep's Linux riscv64 id).
const SyscallSleep = 101

// imagePages is the slice of the arena the simulated kernel image
// occupies. The frame allocator starts past it, so freshly allocated
// frames never collide with identically mapped image pages.
const imagePages = 24

// dmaSlots bounds how many disk requests the simulated VirtIO
// controller may have in flight at once.
const dmaSlots = 8

// Kernel bundles every boot-time singleton: the one process table, the
// physical memory arena, the frame allocator and page-metadata table
// backing every address space, the per-hart schedulers, and the global
// timer wheel.
type Kernel struct {
	Mem    *vm.PhysMem
	Frames *memory.FrameAllocator
	Table  *memory.Table
	Harts  *sched.Harts
	Timer  *sched.Timer
	FS     *fs.FileSystem

	// Disk is the simulated VirtIO block device the filesystem sits on.
	// It boots in blocking mode; MarkInited flips it non-blocking, after
	// which a task's read/write syscalls park on its completion acks.
	Disk *fs.NonBlockingDisk

	inited atomic.Bool

	// clock is the simulated cycle counter every hart shares: it
	// advances by a task's granted slice each time the dispatch loop
	// takes a trap boundary, standing in for the machine-mode time CSR.
	clock atomic.Uint64

	procsMu sync.Mutex
	procs   map[uint64]*proc.Process
}

// New builds a Kernel over a physical memory arena of the given number
// of pages, wired to a freshly formatted in-memory filesystem image
// sized numInode/numDnode bits.
func New(frameCount uint64, numInode, numDnode uint32) (*Kernel, error) {
	mem := vm.NewPhysMem(frameCount)
	frames := memory.NewFrameAllocator(imagePages, memory.PPN(frameCount))
	table := memory.NewTable()
	table.AddRange(0, memory.PPN(frameCount))

	disk := fs.NewNonBlockingDisk(fs.NewMemDisk(), dmaSlots)
	numBlks := 1 + numInode/config.BitsPerBitmapBlock + numInode/config.InodesPerBlock +
		numDnode/config.BitsPerBitmapBlock + numDnode
	fsys, err := fs.Format(disk, numBlks, numInode, numDnode)
	if err != nil {
		return nil, err
	}

	k := &Kernel{
		Mem:    mem,
		Frames: frames,
		Table:  table,
		Harts:  sched.NewHarts(),
		Timer:  sched.NewTimer(),
		FS:     fsys,
		Disk:   disk,
		procs:  make(map[uint64]*proc.Process),
	}
	k.registerSyscalls()
	return k, nil
}

// NewProcess allocates a fresh address space and registers a new
// process over it in the kernel's process table.
func (k *Kernel) NewProcess(parent *proc.Process) (*proc.Process, bool) {
	as, ok := vm.NewAddressSpace(k.Mem, k.Frames, k.Table)
	if !ok {
		return nil, false
	}
	p := proc.NewProcess(as, parent)
	k.procsMu.Lock()
	k.procs[p.PID] = p
	k.procsMu.Unlock()
	return p, true
}

// Forget removes a process from the kernel's process table, called once
// it has been reaped by waitpid.
func (k *Kernel) Forget(pid uint64) {
	k.procsMu.Lock()
	delete(k.procs, pid)
	k.procsMu.Unlock()
}

// Lookup finds a registered process by pid.
func (k *Kernel) Lookup(pid uint64) (*proc.Process, bool) {
	k.procsMu.Lock()
	defer k.procsMu.Unlock()
	p, ok := k.procs[pid]
	return p, ok
}

// registerSyscalls wires the process and filesystem syscalls into
// trap.Table, closing over this Kernel's singletons — the same pattern
// fs.RegisterSyscalls uses, so trap itself never needs to import proc's
// scheduling glue or fs.
func (k *Kernel) registerSyscalls() {
	fs.RegisterSyscalls(k.Mem, k.FS)
	ipc.RegisterSyscalls(k.Mem)
	registerSyncSyscalls()

	// kill(pid, sig) raises sig on every task of the target process;
	// delivery happens on each task's next kernel-return path.
	trap.Table[trap.SyscallKill] = func(t *proc.Task, args [3]uint64) int64 {
		if int(args[1]) >= config.NumSignal {
			return -1
		}
		target, ok := k.Lookup(args[0])
		if !ok {
			return -1
		}
		target.Lock()
		tasks := append([]*proc.Task(nil), target.Tasks...)
		target.Unlock()
		for _, tt := range tasks {
			tt.RaiseSignal(int(args[1]))
		}
		return 0
	}

	// sleep(cycles) parks the caller on the global timer wheel until the
	// simulated clock passes now+cycles; the dispatch loop's Notify
	// drains expired subscriptions between pops.
	trap.Table[SyscallSleep] = func(t *proc.Task, args [3]uint64) int64 {
		deadline := k.clock.Load() + args[0]
		k.Timer.Subscribe(deadline, t)
		t.Suspend()
		return 0
	}

	trap.Table[trap.SyscallFork] = func(t *proc.Task, args [3]uint64) int64 {
		childAS, ok := t.Proc.AddrSpace.Fork(k.Mem, k.Frames, k.Table)
		if !ok {
			return -1
		}
		child := t.Proc.Fork(childAS)
		k.procsMu.Lock()
		k.procs[child.PID] = child
		k.procsMu.Unlock()
		mainTask := child.SpawnTask()
		mainTask.Trap = t.Trap
		k.Harts.PushTo(0, mainTask)
		return int64(child.PID)
	}

	trap.Table[trap.SyscallWaitpid] = func(t *proc.Task, args [3]uint64) int64 {
		pid := int64(args[0])
		if pid == 0 {
			pid = -1
		}
		childPID, exitCode, status := t.Proc.WaitPID(pid)
		if status != 0 {
			return status
		}
		// A null status pointer skips the exit-code write.
		if args[1] != 0 && !trap.WriteBytes(k.Mem, t.Proc.AddrSpace, args[1], encodeExitCode(exitCode)) {
			return -1
		}
		k.Forget(childPID)
		return int64(childPID)
	}

	// thread_create(entry, arg): spawns a task sharing the caller's
	// address space and fd table. Its user/kernel stacks and
	// trap frame are the same per-task allocations every task gets from
	// SpawnTask; this hosted simulation has no separate kernel-stack
	// memory to place them in.
	trap.Table[trap.SyscallThreadCreate] = func(t *proc.Task, args [3]uint64) int64 {
		nt := t.Proc.ThreadCreate()
		nt.Trap.Sepc = args[0]
		nt.Trap.Regs[10] = args[1]
		k.Harts.PushTo(0, nt)
		return int64(nt.TID)
	}

	// exec(path, argv): loads path's raw bytes as a fresh framed code area
	// plus a stack area, replacing the caller's address space in place
	// via Process.Exec. There is no ELF loader in this repository, so
	// the "program image" is path's bytes mapped executable starting at
	// vpn 0 — the same
	// CopyFromRawBytes path vm.Area documents for "load a program image
	// into a fresh framed area".
	trap.Table[trap.SyscallExec] = func(t *proc.Task, args [3]uint64) int64 {
		path, ok := trap.ReadCString(k.Mem, t.Proc.AddrSpace, args[0])
		if !ok {
			return -1
		}
		argv, ok := readArgv(k.Mem, t.Proc.AddrSpace, args[1])
		if !ok {
			return -1
		}

		fh, err := k.FS.Root().Open(path, fs.ORdOnly)
		if err != nil {
			return -1
		}
		data := make([]byte, fh.Size())
		fh.Read(data)

		newAS, ok := vm.NewAddressSpace(k.Mem, k.Frames, k.Table)
		if !ok {
			return -1
		}
		codePages := vm.VPN((uint64(len(data)) + config.PageSize - 1) / config.PageSize)
		if codePages == 0 {
			codePages = 1
		}
		codeArea, ok := vm.NewFramedArea(newAS.PageTable(), k.Frames, k.Table, k.Mem, 0, codePages, vm.FlagR|vm.FlagX|vm.FlagU)
		if !ok {
			return -1
		}
		codeArea.CopyFromRawBytes(k.Mem, data)
		newAS.PushArea(codeArea)

		stackArea, ok := vm.NewFramedArea(newAS.PageTable(), k.Frames, k.Table, k.Mem, codePages, codePages+execStackPages, vm.FlagR|vm.FlagW|vm.FlagU)
		if !ok {
			return -1
		}
		newAS.PushArea(stackArea)
		stackTop := (codePages + execStackPages).Addr()

		a0, a1 := t.Proc.Exec(k.Mem, newAS, stackTop, argv)
		t.Trap.Regs[10] = uint64(a0)
		t.Trap.Regs[11] = a1
		t.Trap.Sepc = 0
		return a0
	}

	// waittid mirrors waitpid at thread granularity: block-by-poll
	// isn't meaningful outside a real trap-return loop, so this reports
	// "not a zombie yet" rather than spinning.
	trap.Table[trap.SyscallWaitTID] = func(t *proc.Task, args [3]uint64) int64 {
		status, found := t.Proc.WaitTID(args[0])
		if !found {
			return -1
		}
		if status != proc.TaskZombie {
			return -2
		}
		return 0
	}
}

// readArgv walks a NULL-terminated vector of 8-byte string pointers
// starting at vaddr, reading each string, matching the argv convention
// Process.Exec's caller is expected to have packed on a prior exec or
// the initial program load.
func readArgv(mem *vm.PhysMem, as *vm.AddressSpace, vaddr uint64) ([]string, bool) {
	var argv []string
	for {
		raw, ok := trap.ReadBytes(mem, as, vaddr, 8)
		if !ok {
			return nil, false
		}
		ptr := binary.LittleEndian.Uint64(raw)
		if ptr == 0 {
			break
		}
		s, ok := trap.ReadCString(mem, as, ptr)
		if !ok {
			return nil, false
		}
		argv = append(argv, s)
		vaddr += 8
	}
	return argv, true
}

func encodeExitCode(code int64) []byte {
	u := uint64(code)
	return []byte{
		byte(u), byte(u >> 8), byte(u >> 16), byte(u >> 24),
		byte(u >> 32), byte(u >> 40), byte(u >> 48), byte(u >> 56),
	}
}

// RunHart executes hart's dispatch loop once control is handed to it:
// pop a task, run it to its next suspension point, account for elapsed
// time, drain timer wakeups, and repeat — the hosted equivalent of a
// per-hart dispatch loop driven by a machine-mode timer IRQ. exec is
// the caller-supplied "run this task until it
// yields/blocks/exits" step, since this repository has no real trap
// entry/exit to drive that transition.
func (k *Kernel) RunHart(hart int, exec func(t *proc.Task)) {
	for {
		task, slice, ok := k.Harts.PopFrom(hart)
		if !ok {
			// Idle: keep advancing the clock while sleepers remain on
			// the timer wheel, so a lone sleeping task still wakes.
			if k.Timer.Len() > 0 {
				k.Timer.Notify(k.clock.Add(config.SchedPeriod))
				continue
			}
			return
		}
		task.Status = proc.TaskRunning
		task.Time.Restore(k.clock.Load())
		task.Time.Setup(slice)
		exec(task)
		// The hosted simulation has no cycle counter to sample, so a
		// dispatched task is accounted as having consumed its whole
		// granted slice by the time control returns here.
		now := k.clock.Add(slice)
		task.Time.Trap(now, slice)
		if task.Status == proc.TaskRunning {
			task.Status = proc.TaskReady
			k.Harts.PushTo(hart, task)
		}
		k.Timer.Notify(now)
	}
}

// Now reports the simulated clock's current cycle count.
func (k *Kernel) Now() uint64 { return k.clock.Load() }

// MarkInited publishes the INITED flag hart 0 sets once boot is
// complete, which other harts spin on before entering their own loop.
// Device enablement happens here too: the disk switches to non-blocking
// completion, now that there are tasks to park on it. Boot-time disk
// traffic (formatting the fresh image) ran inline before this.
func (k *Kernel) MarkInited() {
	k.Disk.SetNonBlocking(true)
	k.inited.Store(true)
}

// Inited reports whether hart 0 has finished boot.
func (k *Kernel) Inited() bool { return k.inited.Load() }
