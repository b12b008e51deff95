package fs

import (
	"bytes"
	"testing"

	"eduos/config"
)

// TestInodeIndexingRoundTrip checks write-then-read across all three tiers:
// direct-only, into indirect1, and into indirect2.
func TestInodeIndexingRoundTrip(t *testing.T) {
	fsys := newTestFS(t)
	root := fsys.Root()
	fh, err := root.Touch("f")
	if err != nil {
		t.Fatal(err)
	}
	handle := newFileHandle(fh, ORdWr)

	cases := []struct {
		name   string
		offset uint32
	}{
		{"direct", 0},
		{"direct-tail", (config.DirectLen - 1) * config.BlockSize},
		{"indirect1", config.DirectLen * config.BlockSize},
		{"indirect2", (config.DirectLen + config.PtrsPerBlock) * config.BlockSize},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			want := bytes.Repeat([]byte{0x42}, 37)
			handle.Seek(c.offset)
			if _, err := handle.Write(want); err != nil {
				t.Fatalf("write: %v", err)
			}
			got := make([]byte, len(want))
			handle.Seek(c.offset)
			n := handle.Read(got)
			if n != len(want) || !bytes.Equal(got, want) {
				t.Fatalf("round trip at offset %d: got %v (n=%d), want %v", c.offset, got, n, want)
			}
		})
	}
}

// TestInodeExpandPreservesExistingBlocks checks that writing past the
// current size doesn't disturb already-written lower blocks.
func TestInodeExpandPreservesExistingBlocks(t *testing.T) {
	fsys := newTestFS(t)
	root := fsys.Root()
	fh, err := root.Touch("f")
	if err != nil {
		t.Fatal(err)
	}
	handle := newFileHandle(fh, ORdWr)

	first := []byte("hello")
	if _, err := handle.Write(first); err != nil {
		t.Fatal(err)
	}
	handle.Seek(uint32(config.BlockSize * 3))
	if _, err := handle.Write([]byte("world")); err != nil {
		t.Fatal(err)
	}

	got := make([]byte, len(first))
	handle.Seek(0)
	handle.Read(got)
	if !bytes.Equal(got, first) {
		t.Fatalf("low block corrupted: got %q, want %q", got, first)
	}
}

// TestInodeTruncReleasesBlocks checks that shrinking below the
// indirect1/indirect2 boundary frees the index blocks and that a later
// read reports zero size.
func TestInodeTruncReleasesBlocks(t *testing.T) {
	fsys := newTestFS(t)
	root := fsys.Root()
	fh, err := root.Touch("f")
	if err != nil {
		t.Fatal(err)
	}
	handle := newFileHandle(fh, ORdWr)

	offset := uint32((config.DirectLen + config.PtrsPerBlock + 1) * config.BlockSize)
	handle.Seek(offset)
	if _, err := handle.Write([]byte("x")); err != nil {
		t.Fatal(err)
	}
	if fh.Indirect1 == 0 || fh.Indirect2 == 0 {
		t.Fatal("expected both indirect tiers allocated")
	}
	freeBefore := fsys.dataBitmap.Remaining()

	fh.Trunc(0)
	if fh.Indirect1 != 0 || fh.Indirect2 != 0 {
		t.Fatalf("trunc(0) left index blocks allocated: indirect1=%d indirect2=%d", fh.Indirect1, fh.Indirect2)
	}
	if fsys.dataBitmap.Remaining() <= freeBefore {
		t.Fatal("trunc did not release any data blocks")
	}
}
