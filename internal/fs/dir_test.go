package fs

import "testing"

func TestOpenCreateAndTrunc(t *testing.T) {
	fsys := newTestFS(t)
	root := fsys.Root()

	if _, err := root.Open("missing", ORdOnly); err != ErrNotFound {
		t.Fatalf("open missing without CREATE: got %v, want ErrNotFound", err)
	}

	fh, err := root.Open("f", OCreate|ORdWr)
	if err != nil {
		t.Fatalf("open create: %v", err)
	}
	if _, err := fh.Write([]byte("data")); err != nil {
		t.Fatal(err)
	}
	if fh.Size() != 4 {
		t.Fatalf("size = %d, want 4", fh.Size())
	}

	reopened, err := root.Open("f", OTrunc|ORdWr)
	if err != nil {
		t.Fatalf("reopen with TRUNC: %v", err)
	}
	if reopened.Size() != 0 {
		t.Fatalf("size after TRUNC-open = %d, want 0", reopened.Size())
	}
}

func TestOpenDirectoryForWriteFails(t *testing.T) {
	fsys := newTestFS(t)
	root := fsys.Root()
	if _, err := root.Mkdir("d"); err != nil {
		t.Fatal(err)
	}
	if _, err := root.Open("d", OWrOnly); err != ErrIsDir {
		t.Fatalf("open directory O_WRONLY: got %v, want ErrIsDir", err)
	}
	if _, err := root.Open("d", ORdOnly); err != nil {
		t.Fatalf("open directory O_RDONLY: %v", err)
	}
}

// TestPermissionMismatchTransfersZero: reading a write-only
// handle (and vice versa) moves 0 bytes without an error.
func TestPermissionMismatchTransfersZero(t *testing.T) {
	fsys := newTestFS(t)
	root := fsys.Root()

	wfh, err := root.Open("f", OCreate|OWrOnly)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := wfh.Write([]byte("abc")); err != nil {
		t.Fatal(err)
	}
	buf := make([]byte, 3)
	if n := wfh.Read(buf); n != 0 {
		t.Fatalf("read on write-only handle returned %d bytes, want 0", n)
	}

	rfh, err := root.Open("f", ORdOnly)
	if err != nil {
		t.Fatal(err)
	}
	if n, err := rfh.Write([]byte("xyz")); n != 0 || err != nil {
		t.Fatalf("write on read-only handle returned n=%d err=%v, want 0,nil", n, err)
	}
}

func TestInvalidNamesRejected(t *testing.T) {
	fsys := newTestFS(t)
	root := fsys.Root()
	for _, name := range []string{"", ".", "..", "a/b", string(make([]byte, 29))} {
		if _, err := root.Touch(name); err != ErrInvalidName {
			t.Errorf("Touch(%q): got %v, want ErrInvalidName", name, err)
		}
	}
}
