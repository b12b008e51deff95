package proc

import (
	"eduos/config"
)

// TaskStatus is a task's run state.
type TaskStatus int

const (
	TaskReady TaskStatus = iota
	TaskRunning
	TaskBlocked
	TaskZombie
)

func (s TaskStatus) String() string {
	switch s {
	case TaskReady:
		return "ready"
	case TaskRunning:
		return "running"
	case TaskBlocked:
		return "blocked"
	case TaskZombie:
		return "zombie"
	default:
		return "unknown"
	}
}

// TrapContext holds the saved register state a task resumes into after
// a trap: sepc plus the general registers. a0/a1 carry syscall
// arguments/return value, sepc is the resume program counter within the
// simulated program.
type TrapContext struct {
	Regs [32]uint64
	Sepc uint64
}

// Task is the schedulable unit within a Process. Task implements
// klock.Waiter so it can be queued directly on a BlockLock/Semaphore/
// Observable without an adapter.
type Task struct {
	TID    uint64
	GID    uint64
	Proc   *Process
	Status TaskStatus

	// Time is the CFS vruntime/PELT load accounting the sched package
	// reads and mutates on every push/pop/trap.
	Time *Accounting

	SigPending  uint32 // bitmask over [0, config.NumSignal)
	SigHandling int32  // signal currently being handled, or -1

	Trap       TrapContext
	TrapBackup *TrapContext // saved context while inside a user signal handler

	park chan struct{}
}

// NewTask creates a fresh, ready task owned by p with the given CFS
// scheduling weight (config.DefaultWeight for an unnice'd task).
func NewTask(p *Process, weight uint64) *Task {
	return &Task{
		TID:         AllocGID(),
		GID:         AllocGID(),
		Proc:        p,
		Status:      TaskReady,
		Time:        NewAccounting(weight),
		SigHandling: -1,
		park:        make(chan struct{}, 1),
	}
}

// Suspend parks the calling goroutine until Wakeup is called, implementing
// klock.Waiter.
func (t *Task) Suspend() {
	t.Status = TaskBlocked
	<-t.park
	t.Status = TaskRunning
}

// Wakeup releases a goroutine previously parked in Suspend.
func (t *Task) Wakeup() {
	select {
	case t.park <- struct{}{}:
	default:
		// Already has a pending wakeup queued; nothing more to do.
	}
}

// SignalPending reports whether signal sig is pending delivery.
func (t *Task) SignalPending(sig int) bool {
	if sig < 0 || sig >= config.NumSignal {
		return false
	}
	return t.SigPending&(1<<uint(sig)) != 0
}

// RaiseSignal marks sig as pending.
func (t *Task) RaiseSignal(sig int) {
	if sig < 0 || sig >= config.NumSignal {
		return
	}
	t.SigPending |= 1 << uint(sig)
}

// ClearSignal clears sig's pending bit.
func (t *Task) ClearSignal(sig int) {
	if sig < 0 || sig >= config.NumSignal {
		return
	}
	t.SigPending &^= 1 << uint(sig)
}
