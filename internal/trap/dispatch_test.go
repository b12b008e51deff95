package trap

import (
	"testing"

	"eduos/internal/memory"
	"eduos/internal/proc"
	"eduos/internal/vm"
)

func newTestProcess(t *testing.T) (*proc.Process, *vm.PhysMem) {
	t.Helper()
	mem := vm.NewPhysMem(64)
	frames := memory.NewFrameAllocator(0, 64)
	table := memory.NewTable()
	table.AddRange(0, 64)
	as, ok := vm.NewAddressSpace(mem, frames, table)
	if !ok {
		t.Fatal("NewAddressSpace failed")
	}
	p := proc.NewProcess(as, nil)
	p.SpawnTask()
	return p, mem
}

func TestDispatchExit(t *testing.T) {
	p, _ := newTestProcess(t)
	task := p.MainTask()

	Dispatch(task, SyscallExit, [3]uint64{7, 0, 0})
	if p.Status != proc.ProcZombie {
		t.Fatal("exit syscall did not mark process zombie")
	}
	if p.ExitCode != 7 {
		t.Fatalf("exit code = %d, want 7", p.ExitCode)
	}
}

func TestDispatchUnknownSyscallAborts(t *testing.T) {
	p, _ := newTestProcess(t)
	task := p.MainTask()

	ret := Dispatch(task, 0xdead, [3]uint64{})
	if ret != ErrUnknownSyscall {
		t.Fatalf("return = %d, want %d", ret, ErrUnknownSyscall)
	}
	if p.Status != proc.ProcZombie {
		t.Fatal("unknown syscall did not abort the process")
	}
}

func TestReadWriteBytesRoundTrip(t *testing.T) {
	p, mem := newTestProcess(t)
	area, ok := vm.NewFramedArea(p.AddrSpace.PageTable(), memory.NewFrameAllocator(32, 64), memory.NewTable(), mem, vm.VPN(0x10), vm.VPN(0x12), vm.FlagR|vm.FlagW|vm.FlagU)
	if !ok {
		t.Fatal("NewFramedArea failed")
	}
	p.AddrSpace.PushArea(area)

	vaddr := vm.VPN(0x10).Addr() + 100
	payload := []byte("hello trap layer")
	if !WriteBytes(mem, p.AddrSpace, vaddr, payload) {
		t.Fatal("WriteBytes failed")
	}
	got, ok := ReadBytes(mem, p.AddrSpace, vaddr, len(payload))
	if !ok {
		t.Fatal("ReadBytes failed")
	}
	if string(got) != string(payload) {
		t.Fatalf("got %q, want %q", got, payload)
	}
}
