package proc

import "eduos/config"

// Accounting is a task's CFS vruntime and PELT-like load bookkeeping.
// `now` is passed in by the caller (the sched package's dispatch loop)
// rather than read from a wall clock, since the simulated scheduler is
// driven entirely by the test/dispatch harness.
type Accounting struct {
	Vruntime uint64
	Weight   uint64

	Remaining   uint64
	LastRestore uint64

	peltPeriod uint64
	Load       uint64
}

// NewAccounting creates per-task accounting state for a task of the
// given scheduling weight, with zero vruntime and load.
func NewAccounting(weight uint64) *Accounting {
	return &Accounting{Weight: weight}
}

// Runout folds whatever time slice remains into vruntime (rounding up),
// used when a task voluntarily
// gives up its slice early.
func (a *Accounting) Runout() {
	a.Vruntime += (a.Remaining + a.Weight - 1) / a.Weight
	a.Remaining = 0
}

// Setup records a freshly granted time slice's length.
func (a *Accounting) Setup(slice uint64) {
	a.Remaining = slice
}

// Calibrate raises vruntime to at least floor, used by Scheduler.Push so
// a long-blocked task doesn't get an unfair head start (nor an unfair
// vruntime deficit) relative to tasks that stayed runnable.
func (a *Accounting) Calibrate(floor uint64) {
	if floor > a.Vruntime {
		a.Vruntime = floor
	}
}

// Trap accounts for `runtime` ticks having elapsed since the task was
// last scheduled in, folding them into vruntime and the PELT-style load
// average. now is the absolute tick count at the time of the trap.
func (a *Accounting) Trap(now, runtime uint64) {
	if runtime > a.Remaining {
		a.Remaining = 0
	} else {
		a.Remaining -= runtime
	}
	a.Vruntime += (runtime + a.Weight - 1) / a.Weight

	period := now / config.PELTPeriod
	if period == a.peltPeriod {
		a.Load += runtime
	} else {
		a.Load = now%config.PELTPeriod + a.Load/config.PELTAttenuation
		a.peltPeriod = period
	}
	a.LastRestore = now
}

// Restore records now as the last point at which the task was dispatched.
func (a *Accounting) Restore(now uint64) {
	a.LastRestore = now
}
