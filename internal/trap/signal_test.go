package trap

import (
	"testing"

	"eduos/internal/proc"
)

func TestDeliverSignalsKernelHandledKill(t *testing.T) {
	p, _ := newTestProcess(t)
	task := p.MainTask()
	task.RaiseSignal(SigKill)

	if DeliverSignals(task) {
		t.Fatal("DeliverSignals reported runnable after SIGKILL")
	}
	if p.ExitCode != -2 {
		t.Fatalf("exit code = %d, want -2", p.ExitCode)
	}
}

func TestDeliverSignalsUserHandlerRedirectsTrap(t *testing.T) {
	p, _ := newTestProcess(t)
	task := p.MainTask()
	const handlerAddr = 0x4000
	p.SigActions[3] = proc.SignalAction{Handler: handlerAddr}
	task.Trap.Sepc = 0x1000
	task.RaiseSignal(3)

	if !DeliverSignals(task) {
		t.Fatal("DeliverSignals reported not-runnable for a plain user signal")
	}
	if task.Trap.Sepc != handlerAddr {
		t.Fatalf("sepc = %#x, want handler %#x", task.Trap.Sepc, handlerAddr)
	}
	if task.TrapBackup == nil || task.TrapBackup.Sepc != 0x1000 {
		t.Fatal("original trap context was not backed up")
	}

	SigReturn(task)
	if task.Trap.Sepc != 0x1000 {
		t.Fatalf("sepc after sigreturn = %#x, want restored 0x1000", task.Trap.Sepc)
	}
	if task.TrapBackup != nil {
		t.Fatal("trap backup not cleared after sigreturn")
	}
}

func TestDeliverSignalsMaskedSignalWaits(t *testing.T) {
	p, _ := newTestProcess(t)
	task := p.MainTask()
	p.SigMask = 1 << 5
	task.RaiseSignal(5)

	DeliverSignals(task)
	if !task.SignalPending(5) {
		t.Fatal("masked signal was delivered/cleared anyway")
	}
}

func TestSigactionSyscall(t *testing.T) {
	p, _ := newTestProcess(t)
	task := p.MainTask()

	for _, sig := range []uint64{SigKill, SigStop, 64} {
		if got := Dispatch(task, SyscallSigaction, [3]uint64{sig, 0x4000, 0}); got != -1 {
			t.Fatalf("sigaction(%d) = %d, want -1", sig, got)
		}
	}

	if got := Dispatch(task, SyscallSigaction, [3]uint64{3, 0x4000, 1 << 3}); got != 0 {
		t.Fatalf("sigaction(3) = %d, want 0", got)
	}
	if p.SigActions[3].Handler != 0x4000 || p.SigActions[3].Mask != 1<<3 {
		t.Fatalf("installed action = %+v, want handler 0x4000 mask 0x8", p.SigActions[3])
	}
}

func TestSigprocmaskReturnsOldMask(t *testing.T) {
	p, _ := newTestProcess(t)
	task := p.MainTask()
	p.SigMask = 0x30

	if got := Dispatch(task, SyscallSigprocmask, [3]uint64{0x5, 0, 0}); got != 0x30 {
		t.Fatalf("sigprocmask = %#x, want old mask 0x30", got)
	}
	if p.SigMask != 0x5 {
		t.Fatalf("mask after syscall = %#x, want 0x5", p.SigMask)
	}
}

func TestSigreturnSyscall(t *testing.T) {
	p, _ := newTestProcess(t)
	task := p.MainTask()

	if got := Dispatch(task, SyscallSigreturn, [3]uint64{}); got != -1 {
		t.Fatalf("sigreturn with no handler in flight = %d, want -1", got)
	}

	p.SigActions[3] = proc.SignalAction{Handler: 0x4000}
	task.Trap.Sepc = 0x1000
	task.Trap.Regs[10] = 77
	task.RaiseSignal(3)
	DeliverSignals(task)

	if got := Dispatch(task, SyscallSigreturn, [3]uint64{}); got != 77 {
		t.Fatalf("sigreturn = %d, want the restored a0 77", got)
	}
	if task.Trap.Sepc != 0x1000 {
		t.Fatalf("sepc after sigreturn = %#x, want 0x1000", task.Trap.Sepc)
	}
}
