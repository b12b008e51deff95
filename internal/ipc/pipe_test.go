package ipc

import (
	"testing"

	"eduos/config"
)

func TestPipeRoundTrip(t *testing.T) {
	rd, wr := New()

	n, err := wr.Write([]byte("Hello, world!\n"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != 14 {
		t.Fatalf("write returned %d, want 14", n)
	}

	buf := make([]byte, 14)
	got := rd.Read(buf)
	if got != 14 {
		t.Fatalf("read returned %d, want 14", got)
	}
	if string(buf) != "Hello, world!\n" {
		t.Fatalf("read %q, want %q", buf, "Hello, world!\n")
	}
}

func TestPipeReadEmptyReturnsZero(t *testing.T) {
	rd, _ := New()
	buf := make([]byte, 4)
	if n := rd.Read(buf); n != 0 {
		t.Fatalf("read from empty pipe returned %d, want 0", n)
	}
}

func TestPipeWriteStopsAtCapacity(t *testing.T) {
	_, wr := New()
	data := make([]byte, config.RingBufferSize+10)
	n, err := wr.Write(data)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if n != config.RingBufferSize-1 {
		t.Fatalf("write returned %d, want %d (one slot always kept empty)", n, config.RingBufferSize-1)
	}
}

func TestPipeEndsAreDirectional(t *testing.T) {
	rd, wr := New()
	if n, _ := rd.Write([]byte("x")); n != 0 {
		t.Fatal("write through the read end should transfer 0 bytes")
	}
	if n := wr.Read(make([]byte, 1)); n != 0 {
		t.Fatal("read through the write end should transfer 0 bytes")
	}
}
