// Command kernel boots the hosted simulation: hart 0 builds the kernel
// singletons and mounts a fresh filesystem image, publishes the INITED
// flag, then every hart (one goroutine each) enters its dispatch loop.
// The real boot sequence's BSS-clear/UART-init/page-table-activation
// steps live in architecture glue; this is the hosted equivalent of "the
// rest of boot" once those have happened.
package main

import (
	"log/slog"
	"os"
	"sync"

	"eduos/config"
	"eduos/internal/kernel"
	"eduos/internal/proc"
	"eduos/internal/trap"
)

func main() {
	log := kernel.InitLogging(slog.LevelInfo)

	const arenaPages = 4096
	k, err := kernel.New(arenaPages, config.BitsPerBitmapBlock, 8*config.BitsPerBitmapBlock)
	if err != nil {
		log.Error("boot failed", "err", err)
		os.Exit(1)
	}

	// The simulated kernel image occupies the first pages of the arena;
	// activating the space means installing its satp image, which on
	// real hardware each hart writes before entering its loop.
	layout := kernel.ImageLayout{
		TextStart: 0, TextEnd: 8,
		RodataStart: 8, RodataEnd: 12,
		DataStart: 12, DataEnd: 24,
	}
	kspace, ok := kernel.BuildKernelSpace(k.Mem, k.Frames, k.Table, layout, arenaPages)
	if !ok {
		log.Error("failed to build the kernel address space")
		os.Exit(1)
	}
	log.Info("kernel page table active", "satp", kspace.SatpValue())

	initproc, ok := k.NewProcess(nil)
	if !ok {
		log.Error("failed to allocate initproc's address space")
		os.Exit(1)
	}
	mainTask := initproc.SpawnTask()
	if _, ok := kernel.MapKernelStack(kspace, k.Mem, k.Frames, k.Table, mainTask.GID); !ok {
		log.Error("failed to map initproc's kernel stack")
		os.Exit(1)
	}
	k.Harts.PushTo(0, mainTask)
	log.Info("pushed initproc", "pid", initproc.PID, "tid", mainTask.TID)

	k.MarkInited()
	log.Info("INITED published, entering per-hart dispatch loops", "harts", config.CPUS)

	var wg sync.WaitGroup
	for hart := 0; hart < config.CPUS; hart++ {
		wg.Add(1)
		go func(hart int) {
			defer wg.Done()
			for !k.Inited() {
				// Spin until hart 0 publishes INITED.
			}
			k.RunHart(hart, func(t *proc.Task) {
				// A real trap-return loop would run t until its next
				// syscall/exception/timer preemption; this hosted build
				// has no user-mode bytecode to execute, so the demo
				// stands in for "initproc ran and exited" with a direct
				// exit syscall dispatch.
				trap.Dispatch(t, trap.SyscallExit, [3]uint64{0, 0, 0})
			})
		}(hart)
	}
	wg.Wait()

	log.Info("all harts idle, shutting down")
}
