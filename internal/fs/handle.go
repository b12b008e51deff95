package fs

import "eduos/internal/klock"

// FileHandle is an open file's cursor plus its access mode, the layer
// both the kernel's fd table and cmd/packfs's writer use rather than
// touching Inode.ReadAt/WriteAt directly.
type FileHandle struct {
	ino    *Inode
	offset uint32
	flags  OpenFlags
	waiter klock.Waiter
}

func newFileHandle(ino *Inode, flags OpenFlags) *FileHandle {
	return &FileHandle{ino: ino, flags: flags}
}

// SetWaiter records the task transfers through this handle run on
// behalf of, so disk-touching reads and writes can park it while the
// device completes. The syscall layer refreshes it on every call; host
// tools leave it nil and block inline.
func (h *FileHandle) SetWaiter(w klock.Waiter) { h.waiter = w }

func (h *FileHandle) readable() bool {
	m := h.flags & accessModeMask
	return m == ORdOnly || m == ORdWr
}

func (h *FileHandle) writable() bool {
	m := h.flags & accessModeMask
	return m == OWrOnly || m == ORdWr
}

// Read copies up to len(buf) bytes from the current offset, advancing
// it. Reading from a write-only handle transfers 0 bytes without
// surfacing an error.
func (h *FileHandle) Read(buf []byte) int {
	if !h.readable() {
		return 0
	}
	n := h.ino.readAtFor(h.waiter, h.offset, buf)
	h.offset += uint32(n)
	return n
}

// Write copies buf to the current offset, advancing it and expanding
// the file as needed. Writing to a read-only handle transfers 0 bytes
// without surfacing an error, mirroring Read's permission semantics.
func (h *FileHandle) Write(buf []byte) (int, error) {
	if !h.writable() {
		return 0, nil
	}
	n, err := h.ino.writeAtFor(h.waiter, h.offset, buf)
	h.offset += uint32(n)
	return n, err
}

// Seek repositions the handle's cursor to an absolute offset.
func (h *FileHandle) Seek(offset uint32) { h.offset = offset }

// Offset reports the handle's current cursor position.
func (h *FileHandle) Offset() uint32 { return h.offset }

// Size reports the underlying inode's current size.
func (h *FileHandle) Size() uint32 { return h.ino.Size }

// Inode exposes the handle's underlying inode, for stat-like callers.
func (h *FileHandle) Inode() *Inode { return h.ino }

// Trunc truncates the underlying inode, used by the TRUNC open flag and
// an explicit truncate syscall alike.
func (h *FileHandle) Trunc(size uint32) { h.ino.Trunc(size) }
