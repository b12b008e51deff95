package trap

import (
	"eduos/config"
	"eduos/internal/proc"
)

// Kernel-handled signals bypass user handlers entirely; the numbers
// follow the conventional POSIX assignments.
const (
	SigKill = 9
	SigStop = 19
	SigCont = 18
)

// DeliverSignals runs on the kernel-return path: it finds every signal
// pending for t that isn't masked (by the task's own mask, or — while
// already inside a handler — that handler's own mask), and delivers the
// lowest-numbered one. SIGKILL/SIGSTOP/SIGCONT are handled directly by
// the kernel; anything else backs up the task's trap context and
// redirects it to the user-installed handler, to be restored by a later
// sigreturn. Returns false if the task should stop running (it was
// killed, or is stopped and has not yet received SIGCONT).
func DeliverSignals(t *proc.Task) bool {
	for {
		sig := nextDeliverable(t)
		if sig < 0 {
			break
		}
		t.ClearSignal(sig)

		switch sig {
		case SigKill:
			t.Proc.Exit(-2)
			return false
		case SigStop:
			t.Proc.Stop()
		case SigCont:
			t.Proc.Cont()
		default:
			deliverUserSignal(t, sig)
			// A user handler is dispatched at most once per kernel
			// return; further pending signals wait for the next trap.
			return t.Proc.Status != proc.ProcStopped
		}
	}
	return t.Proc.Status != proc.ProcStopped
}

func nextDeliverable(t *proc.Task) int {
	masked := t.Proc.SigMask
	if t.SigHandling >= 0 {
		masked |= t.Proc.SigActions[t.SigHandling].Mask
	}
	for sig := 0; sig < config.NumSignal; sig++ {
		if t.SignalPending(sig) && masked&(1<<uint(sig)) == 0 {
			return sig
		}
	}
	return -1
}

// deliverUserSignal rewrites t's trap context to resume at the
// installed handler, saving the interrupted context so sigreturn can
// restore it. Handler == 0 means no handler is installed, in which case
// the signal is silently dropped.
func deliverUserSignal(t *proc.Task, sig int) {
	action := t.Proc.SigActions[sig]
	if action.Handler == 0 {
		return
	}
	if t.TrapBackup != nil {
		panic("trap: nested signal delivery without a prior sigreturn")
	}
	backup := t.Trap
	t.TrapBackup = &backup
	t.SigHandling = int32(sig)
	t.Trap.Sepc = action.Handler
	t.Trap.Regs[10] = uint64(sig) // a0
}

// SigReturn restores the trap context saved by deliverUserSignal, the
// kernel side of the sigreturn syscall a user handler calls when done.
func SigReturn(t *proc.Task) {
	if t.TrapBackup == nil {
		panic("trap: sigreturn without a pending signal handler")
	}
	t.Trap = *t.TrapBackup
	t.TrapBackup = nil
	t.SigHandling = -1
}

// handleSigaction installs a user handler for args[0]: handler entry in
// args[1], handler mask in args[2]. SIGKILL and SIGSTOP are reserved to
// the kernel and cannot be caught; installing an action for them, or for
// a signal number out of range, fails with -1.
func handleSigaction(t *proc.Task, args [3]uint64) int64 {
	sig := int(args[0])
	if sig < 0 || sig >= config.NumSignal || sig == SigKill || sig == SigStop {
		return -1
	}
	t.Proc.Lock()
	t.Proc.SigActions[sig] = proc.SignalAction{Handler: args[1], Mask: uint32(args[2])}
	t.Proc.Unlock()
	return 0
}

// handleSigprocmask replaces the process's signal mask with args[0],
// returning the previous mask.
func handleSigprocmask(t *proc.Task, args [3]uint64) int64 {
	t.Proc.Lock()
	old := t.Proc.SigMask
	t.Proc.SigMask = uint32(args[0])
	t.Proc.Unlock()
	return int64(old)
}

// handleSigreturn ends a user handler's execution: the interrupted trap
// context is restored, and the restored a0 is returned so dispatch does
// not clobber the interrupted computation's register. Calling sigreturn
// with no handler in flight fails with -1.
func handleSigreturn(t *proc.Task, args [3]uint64) int64 {
	if t.TrapBackup == nil {
		return -1
	}
	SigReturn(t)
	return int64(t.Trap.Regs[10])
}
