package vm

import (
	"testing"

	"eduos/internal/memory"
)

func newTestEnv(t *testing.T, pages uint64) (*PhysMem, *memory.FrameAllocator, *memory.Table) {
	t.Helper()
	mem := NewPhysMem(pages)
	frames := memory.NewFrameAllocator(0, memory.PPN(pages))
	table := memory.NewTable()
	table.AddRange(0, memory.PPN(pages))
	return mem, frames, table
}

// TestPageTableRoundTrip: map then translate returns
// exactly what was mapped, and unmap makes translation fail.
func TestPageTableRoundTrip(t *testing.T) {
	mem, frames, table := newTestEnv(t, 64)
	pt, ok := NewPageTable(mem, frames, table)
	if !ok {
		t.Fatal("NewPageTable failed")
	}

	vpn := VPN(12345)
	target := memory.PPN(7)
	if !pt.Map(vpn, target, FlagR|FlagW) {
		t.Fatal("Map failed")
	}

	pte, ok := pt.Translate(vpn)
	if !ok {
		t.Fatal("Translate failed after Map")
	}
	if pte.PPN() != target {
		t.Fatalf("translated ppn = %d, want %d", pte.PPN(), target)
	}
	if pte.Flags()&(FlagR|FlagW|FlagV) != FlagR|FlagW|FlagV {
		t.Fatalf("flags = %#x, want R|W|V set", pte.Flags())
	}

	pt.Unmap(vpn)
	if _, ok := pt.Translate(vpn); ok {
		t.Fatal("Translate succeeded after Unmap")
	}
}

func TestPageTableDistinctVPNsDontAlias(t *testing.T) {
	mem, frames, table := newTestEnv(t, 64)
	pt, _ := NewPageTable(mem, frames, table)

	pt.Map(VPN(1), memory.PPN(5), FlagR)
	pt.Map(VPN(2), memory.PPN(6), FlagW)

	p1, _ := pt.Translate(VPN(1))
	p2, _ := pt.Translate(VPN(2))
	if p1.PPN() == p2.PPN() {
		t.Fatal("distinct vpns mapped to distinct ppns resolved identically")
	}
}

// TestFramedAreaIsolation: two framed areas never share a
// backing physical frame, and writes to one are invisible in the other.
func TestFramedAreaIsolation(t *testing.T) {
	mem, frames, table := newTestEnv(t, 64)
	pt, _ := NewPageTable(mem, frames, table)

	a1, ok := NewFramedArea(pt, frames, table, mem, VPN(0), VPN(4), FlagR|FlagW|FlagU)
	if !ok {
		t.Fatal("NewFramedArea a1 failed")
	}
	a2, ok := NewFramedArea(pt, frames, table, mem, VPN(4), VPN(8), FlagR|FlagW|FlagU)
	if !ok {
		t.Fatal("NewFramedArea a2 failed")
	}

	seen := make(map[memory.PPN]bool)
	for _, ppn := range append(append([]memory.PPN{}, a1.Frames()...), a2.Frames()...) {
		if seen[ppn] {
			t.Fatalf("frame %d shared between areas", ppn)
		}
		seen[ppn] = true
	}

	mem.Page(a1.Frames()[0])[0] = 0xAB
	if mem.Page(a2.Frames()[0])[0] == 0xAB {
		t.Fatal("write to a1's frame visible through a2's frame")
	}
}

func TestAddressSpaceForkDeepCopiesFramedAreas(t *testing.T) {
	mem, frames, table := newTestEnv(t, 64)
	as, ok := NewAddressSpace(mem, frames, table)
	if !ok {
		t.Fatal("NewAddressSpace failed")
	}
	a, ok := NewFramedArea(as.PageTable(), frames, table, mem, VPN(0), VPN(2), FlagR|FlagW|FlagU)
	if !ok {
		t.Fatal("NewFramedArea failed")
	}
	mem.Page(a.Frames()[0])[0] = 0x42
	as.PushArea(a)

	child, ok := as.Fork(mem, frames, table)
	if !ok {
		t.Fatal("Fork failed")
	}
	childArea := child.Areas()[0]
	if childArea.Frames()[0] == a.Frames()[0] {
		t.Fatal("forked area aliases parent's frame")
	}
	if mem.Page(childArea.Frames()[0])[0] != 0x42 {
		t.Fatal("forked area did not copy parent's data")
	}

	mem.Page(childArea.Frames()[0])[0] = 0x99
	if mem.Page(a.Frames()[0])[0] == 0x99 {
		t.Fatal("write to child's frame visible in parent's frame")
	}
}
