package kernel

import (
	"testing"

	"eduos/internal/memory"
	"eduos/internal/vm"
)

func testLayout() ImageLayout {
	return ImageLayout{
		TextStart: 0, TextEnd: 4,
		RodataStart: 4, RodataEnd: 6,
		DataStart: 6, DataEnd: 10,
	}
}

func TestBuildKernelSpaceSegmentPermissions(t *testing.T) {
	const arenaPages = 128
	mem := vm.NewPhysMem(arenaPages)
	frames := memory.NewFrameAllocator(10, arenaPages)
	table := memory.NewTable()
	table.AddRange(0, arenaPages)

	as, ok := BuildKernelSpace(mem, frames, table, testLayout(), arenaPages)
	if !ok {
		t.Fatal("BuildKernelSpace failed")
	}
	pt := as.PageTable()

	cases := []struct {
		vpn  vm.VPN
		want vm.PTEFlags
	}{
		{0, vm.FlagR | vm.FlagX},
		{4, vm.FlagR},
		{6, vm.FlagR | vm.FlagW},
		{64, vm.FlagR | vm.FlagW}, // direct-mapped arena
	}
	for _, c := range cases {
		pte, ok := pt.Translate(c.vpn)
		if !ok {
			t.Fatalf("vpn %#x not mapped", c.vpn)
		}
		if pte.PPN() != memory.PPN(c.vpn) {
			t.Fatalf("vpn %#x maps to ppn %#x, want identity", c.vpn, pte.PPN())
		}
		if pte.Flags()&c.want != c.want {
			t.Fatalf("vpn %#x flags %#x missing %#x", c.vpn, pte.Flags(), c.want)
		}
	}

	pte, ok := pt.Translate(TrampolineVPN)
	if !ok {
		t.Fatal("trampoline page not mapped")
	}
	if pte.PPN() != 0 {
		t.Fatalf("trampoline maps to ppn %#x, want text start", pte.PPN())
	}
}

func TestKernelStacksDoNotOverlap(t *testing.T) {
	const arenaPages = 256
	mem := vm.NewPhysMem(arenaPages)
	frames := memory.NewFrameAllocator(10, arenaPages)
	table := memory.NewTable()
	table.AddRange(0, arenaPages)

	as, ok := BuildKernelSpace(mem, frames, table, testLayout(), arenaPages)
	if !ok {
		t.Fatal("BuildKernelSpace failed")
	}

	top1, ok := MapKernelStack(as, mem, frames, table, 1)
	if !ok {
		t.Fatal("MapKernelStack(1) failed")
	}
	top2, ok := MapKernelStack(as, mem, frames, table, 2)
	if !ok {
		t.Fatal("MapKernelStack(2) failed")
	}
	if top1 == top2 {
		t.Fatal("two gids share a kernel stack top")
	}

	lo1, hi1 := KernelStackRange(1)
	lo2, hi2 := KernelStackRange(2)
	if hi2 > lo1 {
		t.Fatalf("stack 2 [%#x,%#x) overlaps or touches stack 1 [%#x,%#x)", lo2, hi2, lo1, hi1)
	}
	// The guard page between them stays unmapped.
	if _, mapped := as.PageTable().Translate(lo1 - 1); mapped {
		t.Fatal("guard page below stack 1 is mapped")
	}
}
