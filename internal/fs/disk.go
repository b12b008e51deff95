package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"eduos/config"
	"eduos/internal/klock"
)

// Block is one on-disk block buffer, passed by reference through the
// DiskManager contract so no per-call copy is made.
type Block [config.BlockSize]byte

// DiskManager is the narrow block-device contract the filesystem is
// written against. Both MemDisk and FileDisk implement it, and the
// simulated VirtIO layer (NonBlockingDisk) wraps either one.
type DiskManager interface {
	Read(bid uint32, buf *Block) error
	Write(bid uint32, buf *Block) error
}

// MemDisk is an in-memory DiskManager, used by the kernel's self-tests
// and the in-process demo.
type MemDisk struct {
	mu     sync.Mutex
	blocks map[uint32]*Block
}

// NewMemDisk creates an empty in-memory disk; blocks read before being
// written come back zeroed, matching a freshly truncated file.
func NewMemDisk() *MemDisk {
	return &MemDisk{blocks: make(map[uint32]*Block)}
}

func (d *MemDisk) Read(bid uint32, buf *Block) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if b, ok := d.blocks[bid]; ok {
		*buf = *b
	} else {
		*buf = Block{}
	}
	return nil
}

func (d *MemDisk) Write(bid uint32, buf *Block) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	cp := *buf
	d.blocks[bid] = &cp
	return nil
}

// FileDisk is a host-file-backed DiskManager: positioned reads and
// writes against a single image file, one block at a time. Used by
// cmd/fusemnt and
// available to the kernel as the concrete backing for its simulated
// VirtIO driver.
type FileDisk struct {
	mu sync.Mutex
	f  *os.File
}

// OpenFileDisk opens (or creates) path as a block-addressable image.
func OpenFileDisk(path string) (*FileDisk, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("fs: open disk image: %w", err)
	}
	return &FileDisk{f: f}, nil
}

// Close closes the underlying image file.
func (d *FileDisk) Close() error {
	return d.f.Close()
}

func (d *FileDisk) Read(bid uint32, buf *Block) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, err := d.f.ReadAt(buf[:], int64(bid)*config.BlockSize)
	if errors.Is(err, io.EOF) {
		// A short read past EOF (e.g. the very first read of a freshly
		// created image) reads as a zero block rather than an I/O
		// error; any other failure is fatal.
		*buf = Block{}
		return nil
	}
	return err
}

func (d *FileDisk) Write(bid uint32, buf *Block) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	n, err := d.f.WriteAt(buf[:], int64(bid)*config.BlockSize)
	if err != nil {
		return fmt.Errorf("fs: disk write block %d: %w", bid, err)
	}
	if n != len(buf) {
		panic(fmt.Sprintf("fs: short disk write of block %d", bid))
	}
	return nil
}

// NonBlockingDisk wraps a DiskManager with a non-blocking toggle: when
// enabled and the caller supplies a waiter, the real I/O completes on a
// goroutine while the calling task suspends, and completion is
// delivered the way a VirtIO IRQ handler delivers it — by acking a DMA
// token against the registration table, which looks up the parked
// waiter and wakes it. The completing side carries nothing but the
// uuid token; if the table lookup could be deleted, completions would
// have no way back to their callers. A bounded x/sync/semaphore stands
// in for the descriptor ring's fixed slot count.
//
// NonBlockingDisk also implements the plain DiskManager contract:
// callers with no task context (image formatting, cache write-back on
// eviction) go through Read/Write and run the I/O inline.
type NonBlockingDisk struct {
	inner DiskManager
	slots *semaphore.Weighted

	mu          sync.Mutex
	nonBlocking bool
	pending     map[uuid.UUID]*pendingReq
}

// pendingReq is one slot of the DMA registration table: the waiter
// parked on the request, and the completion status the ack stores for
// it to read after waking.
type pendingReq struct {
	w   klock.Waiter
	err error
}

// NewNonBlockingDisk wraps inner with a DMA slot table of the given
// capacity (the maximum number of requests the simulated controller may
// have outstanding at once).
func NewNonBlockingDisk(inner DiskManager, slots int) *NonBlockingDisk {
	return &NonBlockingDisk{
		inner:   inner,
		slots:   semaphore.NewWeighted(int64(slots)),
		pending: make(map[uuid.UUID]*pendingReq),
	}
}

// SetNonBlocking toggles non-blocking completion for future requests.
func (d *NonBlockingDisk) SetNonBlocking(on bool) {
	d.mu.Lock()
	d.nonBlocking = on
	d.mu.Unlock()
}

// Read and Write satisfy DiskManager for waiterless callers: the I/O
// runs inline regardless of the non-blocking toggle.
func (d *NonBlockingDisk) Read(bid uint32, buf *Block) error {
	return d.inner.Read(bid, buf)
}

func (d *NonBlockingDisk) Write(bid uint32, buf *Block) error {
	return d.inner.Write(bid, buf)
}

// ReadFor services a read on behalf of task w, suspending it until the
// completion ack when non-blocking mode is enabled.
func (d *NonBlockingDisk) ReadFor(w klock.Waiter, bid uint32, buf *Block) error {
	return d.do(w, func() error { return d.inner.Read(bid, buf) })
}

// WriteFor services a write under the same protocol as ReadFor.
func (d *NonBlockingDisk) WriteFor(w klock.Waiter, bid uint32, buf *Block) error {
	return d.do(w, func() error { return d.inner.Write(bid, buf) })
}

func (d *NonBlockingDisk) do(w klock.Waiter, op func() error) error {
	d.mu.Lock()
	blocking := !d.nonBlocking || w == nil
	d.mu.Unlock()

	if blocking {
		return op()
	}

	token := uuid.New()
	d.mu.Lock()
	d.pending[token] = &pendingReq{w: w}
	d.mu.Unlock()

	if err := d.slots.Acquire(context.Background(), 1); err != nil {
		d.mu.Lock()
		delete(d.pending, token)
		d.mu.Unlock()
		return fmt.Errorf("fs: dma slot acquire: %w", err)
	}

	// The device side: it knows the request only by its token, exactly
	// like an IRQ handler reading a completed descriptor id.
	go func(token uuid.UUID) {
		defer d.slots.Release(1)
		err := op()
		d.complete(token, err)
	}(token)

	w.Suspend()

	d.mu.Lock()
	err := d.pending[token].err
	delete(d.pending, token)
	d.mu.Unlock()
	return err
}

// complete acks token against the registration table, storing the
// result and waking the parked task. An ack for a token that was never
// registered means the table and the device have lost agreement, which
// is fatal.
func (d *NonBlockingDisk) complete(token uuid.UUID, err error) {
	d.mu.Lock()
	req, ok := d.pending[token]
	d.mu.Unlock()
	if !ok {
		panic(fmt.Sprintf("fs: completion ack for unregistered dma token %v", token))
	}
	req.err = err
	req.w.Wakeup()
}

// Pending reports the number of requests currently registered, mainly
// for tests.
func (d *NonBlockingDisk) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.pending)
}
