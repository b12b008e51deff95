package proc

import (
	"sync"

	"eduos/config"
	"eduos/internal/vm"
)

// ProcStatus is a process's lifecycle state.
type ProcStatus int

const (
	ProcRunning ProcStatus = iota
	ProcStopped
	ProcZombie
)

// SignalAction is a user-installed signal handler entry. Handler is an
// opaque dispatch token (interpreted by the trap package as an entry
// point in the process's address space) rather than a raw pointer.
type SignalAction struct {
	Handler uint64
	Mask    uint32
}

// Process owns an address space, its tasks, and everything that's
// per-process rather than per-task: file descriptors, signal actions,
// working directory, and the process hierarchy.
type Process struct {
	mu sync.Mutex

	PID uint64

	AddrSpace *vm.AddressSpace
	tids      *IDAllocator

	Status   ProcStatus
	ExitCode int64

	Parent   *Process
	Children []*Process

	Tasks []*Task

	Fds []any // nil slot == closed descriptor
	Cwd string

	SigActions [config.NumSignal]SignalAction
	SigMask    uint32

	// Sync holds the kernel-managed mutexes, semaphores and condvars
	// this process created through the sync syscalls. Not inherited by
	// fork: sync object ids are only meaningful within the process that
	// created them.
	Sync SyncTable
}

// NewProcess creates a process with no tasks yet and an empty address
// space; the caller pushes areas and creates the main task separately
// once the address space is populated.
func NewProcess(as *vm.AddressSpace, parent *Process) *Process {
	p := &Process{
		PID:       AllocPID(),
		AddrSpace: as,
		tids:      NewIDAllocator(),
		Status:    ProcRunning,
		Parent:    parent,
		Cwd:       "/",
	}
	return p
}

// Lock/Unlock expose the process's own mutex for callers (the scheduler,
// trap dispatch) that need to mutate several fields atomically.
func (p *Process) Lock()   { p.mu.Lock() }
func (p *Process) Unlock() { p.mu.Unlock() }

// MainTask returns the process's first task, the
// one exec/thread operations and the initial scheduler push target.
func (p *Process) MainTask() *Task {
	if len(p.Tasks) == 0 {
		return nil
	}
	return p.Tasks[0]
}

// SpawnTask creates and registers a new task under this process, used
// both for the initial main task and for ThreadCreate.
func (p *Process) SpawnTask() *Task {
	t := NewTask(p, config.DefaultWeight)
	p.mu.Lock()
	p.Tasks = append(p.Tasks, t)
	p.mu.Unlock()
	return t
}

// ThreadCreate spawns an additional task sharing this process's address
// space, the backing for the thread-creation syscall.
func (p *Process) ThreadCreate() *Task {
	return p.SpawnTask()
}

// WaitTID returns the current status of the task identified by tid
// without blocking; if that task is a zombie it is also removed from the
// task list and its ids are released. Returns found=false if tid does
// not belong to this process.
func (p *Process) WaitTID(tid uint64) (status TaskStatus, found bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, t := range p.Tasks {
		if t.TID == tid {
			if t.Status == TaskZombie {
				p.Tasks = append(p.Tasks[:i], p.Tasks[i+1:]...)
				DeallocGID(t.TID)
				DeallocGID(t.GID)
			}
			return t.Status, true
		}
	}
	return 0, false
}

// Exit marks the process, and with it all its tasks, zombie with the
// given exit code.
func (p *Process) Exit(code int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Status = ProcZombie
	p.ExitCode = code
	for _, t := range p.Tasks {
		t.Status = TaskZombie
	}
}

// WaitPID searches for a child matching pid (-1 meaning "any child") and
// currently a zombie: if found, it is removed from the child list and
// its pid and exit code are returned. Returns status -1 if no such child
// exists at all, -2 if matching children exist but none are zombies yet.
func (p *Process) WaitPID(pid int64) (childPID uint64, exitCode int64, status int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	anyMatch := false
	for i, c := range p.Children {
		if pid != -1 && int64(c.PID) != pid {
			continue
		}
		anyMatch = true
		if c.Status == ProcZombie {
			p.Children = append(p.Children[:i], p.Children[i+1:]...)
			DeallocPID(c.PID)
			return c.PID, c.ExitCode, 0
		}
	}
	if anyMatch {
		return 0, 0, -2
	}
	return 0, 0, -1
}

// Stop/Cont implement the SIGSTOP/SIGCONT kernel-handled signal pair.
func (p *Process) Stop() {
	p.mu.Lock()
	p.Status = ProcStopped
	p.mu.Unlock()
}

func (p *Process) Cont() {
	p.mu.Lock()
	if p.Status == ProcStopped {
		p.Status = ProcRunning
	}
	p.mu.Unlock()
}

// Fork creates a child process that shares nothing but the memory
// contents: a deep-copied address space (per vm.AddressSpace.Fork) and a
// copy of open file descriptors, registered as a child of p. The child
// starts with no tasks; the caller spawns its main task.
func (p *Process) Fork(as *vm.AddressSpace) *Process {
	child := NewProcess(as, p)

	p.mu.Lock()
	child.Fds = append([]any(nil), p.Fds...)
	child.Cwd = p.Cwd
	child.SigActions = p.SigActions
	child.SigMask = p.SigMask
	p.Children = append(p.Children, child)
	p.mu.Unlock()

	return child
}

// AllocFd finds the lowest-numbered free descriptor slot, installs obj
// there, and returns its number.
func (p *Process) AllocFd(obj any) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, slot := range p.Fds {
		if slot == nil {
			p.Fds[i] = obj
			return i
		}
	}
	p.Fds = append(p.Fds, obj)
	return len(p.Fds) - 1
}

// Fd returns the object installed at descriptor fd, or nil if it is out
// of range or closed.
func (p *Process) Fd(fd int) any {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fd < 0 || fd >= len(p.Fds) {
		return nil
	}
	return p.Fds[fd]
}

// CloseFd clears descriptor fd.
func (p *Process) CloseFd(fd int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if fd >= 0 && fd < len(p.Fds) {
		p.Fds[fd] = nil
	}
}
