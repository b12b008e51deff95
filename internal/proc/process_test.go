package proc

import (
	"testing"

	"eduos/internal/memory"
	"eduos/internal/vm"
)

func newTestProcess(t *testing.T) *Process {
	t.Helper()
	mem := vm.NewPhysMem(64)
	frames := memory.NewFrameAllocator(0, 64)
	table := memory.NewTable()
	table.AddRange(0, 64)
	as, ok := vm.NewAddressSpace(mem, frames, table)
	if !ok {
		t.Fatal("NewAddressSpace failed")
	}
	p := NewProcess(as, nil)
	p.SpawnTask()
	return p
}

func TestProcessForkIsolatesFds(t *testing.T) {
	p := newTestProcess(t)
	fd := p.AllocFd("stdin")

	child := p.Fork(p.AddrSpace)
	child.CloseFd(fd)

	if p.Fd(fd) == nil {
		t.Fatal("closing fd in child closed it in parent too")
	}
}

func TestWaitTIDRemovesZombieTask(t *testing.T) {
	p := newTestProcess(t)
	second := p.SpawnTask()
	second.Status = TaskZombie

	status, found := p.WaitTID(second.TID)
	if !found {
		t.Fatal("WaitTID did not find task")
	}
	if status != TaskZombie {
		t.Fatalf("status = %v, want zombie", status)
	}
	if _, found := p.WaitTID(second.TID); found {
		t.Fatal("zombie task not removed from task list after first WaitTID")
	}
}

// TestWaitPIDReapsZombieChild: waitpid(-1) before the child
// exits returns status -2, and after Exit(7) it returns the child's pid
// and code.
func TestWaitPIDReapsZombieChild(t *testing.T) {
	parent := newTestProcess(t)
	child := parent.Fork(parent.AddrSpace)

	if _, _, status := parent.WaitPID(-1); status != -2 {
		t.Fatalf("waitpid before exit: status = %d, want -2", status)
	}

	child.Exit(7)
	pid, code, status := parent.WaitPID(-1)
	if status != 0 {
		t.Fatalf("waitpid after exit: status = %d, want 0", status)
	}
	if pid != child.PID || code != 7 {
		t.Fatalf("waitpid returned pid=%d code=%d, want pid=%d code=7", pid, code, child.PID)
	}

	if _, _, status := parent.WaitPID(-1); status != -1 {
		t.Fatalf("waitpid with no children left: status = %d, want -1", status)
	}
}

func TestExitMarksAllTasksZombie(t *testing.T) {
	p := newTestProcess(t)
	p.SpawnTask()
	p.Exit(7)
	for _, task := range p.Tasks {
		if task.Status != TaskZombie {
			t.Fatalf("task %d status = %v, want zombie", task.TID, task.Status)
		}
	}
	if p.ExitCode != 7 {
		t.Fatalf("exit code = %d, want 7", p.ExitCode)
	}
}
