package fs

import (
	"encoding/binary"
	"fmt"

	"eduos/config"
	"eduos/internal/klock"
)

// InodeKind distinguishes a file from a directory inode.
type InodeKind uint32

const (
	KindFile InodeKind = 0
	KindDir  InodeKind = 1
)

// Inode is the in-memory form of an on-disk inode record: a fixed
// 16-byte header (size, indirect1, indirect2, type) followed by
// config.DirectLen direct block pointers, exactly filling
// config.InodeSize bytes.
type Inode struct {
	fs  *FileSystem
	IID uint32

	Size      uint32
	Indirect1 uint32
	Indirect2 uint32
	Type      InodeKind
	Directs   [config.DirectLen]uint32
}

// inodeLocation returns the block id holding iid's record and the byte
// offset of the record within that block.
func (fs *FileSystem) inodeLocation(iid uint32) (bid uint32, off int) {
	blk := iid / config.InodesPerBlock
	slot := iid % config.InodesPerBlock
	return fs.sb.InodeAreaStart() + blk, int(slot) * config.InodeSize
}

func decodeInode(fs *FileSystem, iid uint32, b []byte) *Inode {
	ino := &Inode{fs: fs, IID: iid}
	ino.Size = binary.LittleEndian.Uint32(b[0:4])
	ino.Indirect1 = binary.LittleEndian.Uint32(b[4:8])
	ino.Indirect2 = binary.LittleEndian.Uint32(b[8:12])
	ino.Type = InodeKind(binary.LittleEndian.Uint32(b[12:16]))
	for i := 0; i < config.DirectLen; i++ {
		off := config.InodeHeaderSize + i*4
		ino.Directs[i] = binary.LittleEndian.Uint32(b[off : off+4])
	}
	return ino
}

func (ino *Inode) encodeInto(b []byte) {
	binary.LittleEndian.PutUint32(b[0:4], ino.Size)
	binary.LittleEndian.PutUint32(b[4:8], ino.Indirect1)
	binary.LittleEndian.PutUint32(b[8:12], ino.Indirect2)
	binary.LittleEndian.PutUint32(b[12:16], uint32(ino.Type))
	for i := 0; i < config.DirectLen; i++ {
		off := config.InodeHeaderSize + i*4
		binary.LittleEndian.PutUint32(b[off:off+4], ino.Directs[i])
	}
}

// save writes the inode's current in-memory fields back to its block in
// the cache, marking the entry dirty.
func (ino *Inode) save() {
	bid, off := ino.fs.inodeLocation(ino.IID)
	e := ino.fs.cache.Get(bid)
	unlock := e.Lock()
	ino.encodeInto(e.Data[off : off+config.InodeSize])
	e.MarkDirty()
	unlock()
}

// LoadInode reads inode iid off disk.
func (fs *FileSystem) LoadInode(iid uint32) *Inode {
	bid, off := fs.inodeLocation(iid)
	e := fs.cache.Get(bid)
	unlock := e.Lock()
	ino := decodeInode(fs, iid, e.Data[off:off+config.InodeSize])
	unlock()
	return ino
}

// Max block capacity: direct + single-indirect + double-indirect tiers.
const maxLogicalBlocks = config.DirectLen + config.PtrsPerBlock + config.PtrsPerBlock*config.PtrsPerBlock

// blockID returns the physical block id backing logical block index
// logicalIdx, or ok=false if that tier hasn't been allocated yet.
func (ino *Inode) blockID(logicalIdx uint32) (uint32, bool) {
	if logicalIdx < config.DirectLen {
		p := ino.Directs[logicalIdx]
		return p, p != 0
	}
	logicalIdx -= config.DirectLen

	if logicalIdx < config.PtrsPerBlock {
		if ino.Indirect1 == 0 {
			return 0, false
		}
		return ino.fs.readPtr(ino.Indirect1, logicalIdx)
	}
	logicalIdx -= config.PtrsPerBlock

	if logicalIdx < config.PtrsPerBlock*config.PtrsPerBlock {
		if ino.Indirect2 == 0 {
			return 0, false
		}
		primaryIdx := logicalIdx / config.PtrsPerBlock
		secIdx := logicalIdx % config.PtrsPerBlock
		primaryBid, ok := ino.fs.readPtr(ino.Indirect2, primaryIdx)
		if !ok {
			return 0, false
		}
		return ino.fs.readPtr(primaryBid, secIdx)
	}
	panic(fmt.Sprintf("fs: logical block %d exceeds inode capacity", logicalIdx))
}

// readPtr reads the idx'th 4-byte pointer out of index block blockBid.
func (fs *FileSystem) readPtr(blockBid, idx uint32) (uint32, bool) {
	e := fs.cache.Get(blockBid)
	unlock := e.Lock()
	off := idx * 4
	p := binary.LittleEndian.Uint32(e.Data[off : off+4])
	unlock()
	return p, p != 0
}

func (fs *FileSystem) writePtr(blockBid, idx, val uint32) {
	e := fs.cache.Get(blockBid)
	unlock := e.Lock()
	off := idx * 4
	binary.LittleEndian.PutUint32(e.Data[off:off+4], val)
	e.MarkDirty()
	unlock()
}

// allocDataBlock allocates one data-area block through the data bitmap,
// zeroes it, and returns its physical block id.
func (fs *FileSystem) allocDataBlock() (uint32, error) {
	local, ok := fs.dataBitmap.Alloc()
	if !ok {
		return 0, ErrNoSpace
	}
	bid := fs.sb.DnodeAreaStart() + local
	e := fs.cache.Get(bid)
	unlock := e.Lock()
	e.Data = Block{}
	e.MarkDirty()
	unlock()
	return bid, nil
}

func (fs *FileSystem) freeDataBlock(bid uint32) {
	local := bid - fs.sb.DnodeAreaStart()
	fs.dataBitmap.Dealloc(local)
}

// ensurePtr returns the idx'th pointer within index block blockBid,
// allocating and zeroing a fresh block and storing it there if the slot
// is currently empty.
func (fs *FileSystem) ensurePtr(blockBid, idx uint32) (uint32, error) {
	if p, ok := fs.readPtr(blockBid, idx); ok {
		return p, nil
	}
	newBid, err := fs.allocDataBlock()
	if err != nil {
		return 0, err
	}
	fs.writePtr(blockBid, idx, newBid)
	return newBid, nil
}

// ensureBlock returns the physical block id backing logical block index
// logicalIdx, allocating data blocks and, as needed, the indirect1/
// indirect2 index blocks in tiered expansion order: direct first, then
// indirect1, then indirect2.
func (ino *Inode) ensureBlock(logicalIdx uint32) (uint32, error) {
	if logicalIdx < config.DirectLen {
		if ino.Directs[logicalIdx] == 0 {
			bid, err := ino.fs.allocDataBlock()
			if err != nil {
				return 0, err
			}
			ino.Directs[logicalIdx] = bid
			ino.save()
		}
		return ino.Directs[logicalIdx], nil
	}
	logicalIdx -= config.DirectLen

	if logicalIdx < config.PtrsPerBlock {
		if ino.Indirect1 == 0 {
			bid, err := ino.fs.allocDataBlock()
			if err != nil {
				return 0, err
			}
			ino.Indirect1 = bid
			ino.save()
		}
		return ino.fs.ensurePtr(ino.Indirect1, logicalIdx)
	}
	logicalIdx -= config.PtrsPerBlock

	if logicalIdx < config.PtrsPerBlock*config.PtrsPerBlock {
		if ino.Indirect2 == 0 {
			bid, err := ino.fs.allocDataBlock()
			if err != nil {
				return 0, err
			}
			ino.Indirect2 = bid
			ino.save()
		}
		primaryIdx := logicalIdx / config.PtrsPerBlock
		secIdx := logicalIdx % config.PtrsPerBlock
		primaryBid, err := ino.fs.ensurePtr(ino.Indirect2, primaryIdx)
		if err != nil {
			return 0, err
		}
		return ino.fs.ensurePtr(primaryBid, secIdx)
	}
	return 0, fmt.Errorf("fs: file exceeds maximum size (%d blocks)", maxLogicalBlocks)
}

// ReadAt copies min(len(buf), Size-offset) bytes starting at offset into
// buf, returning the number of bytes copied.
func (ino *Inode) ReadAt(offset uint32, buf []byte) int {
	return ino.readAtFor(nil, offset, buf)
}

// readAtFor is ReadAt on behalf of task w: data-block cache misses park
// w on the disk's completion ack instead of blocking inline. Index
// blocks stay inline; they are single-block metadata reads.
func (ino *Inode) readAtFor(w klock.Waiter, offset uint32, buf []byte) int {
	if offset >= ino.Size {
		return 0
	}
	n := len(buf)
	if uint32(n) > ino.Size-offset {
		n = int(ino.Size - offset)
	}
	copied := 0
	for copied < n {
		logicalIdx := (offset + uint32(copied)) / config.BlockSize
		inBlk := (offset + uint32(copied)) % config.BlockSize
		bid, ok := ino.blockID(logicalIdx)
		take := min(config.BlockSize-int(inBlk), n-copied)
		if !ok {
			// A hole within an allocated size reads as zero.
			for i := 0; i < take; i++ {
				buf[copied+i] = 0
			}
		} else {
			e := ino.fs.cache.GetFor(w, bid)
			unlock := e.Lock()
			copy(buf[copied:copied+take], e.Data[inBlk:int(inBlk)+take])
			unlock()
		}
		copied += take
	}
	return copied
}

// WriteAt copies buf to offset, expanding the inode (allocating new
// blocks) if offset+len(buf) exceeds the current size.
func (ino *Inode) WriteAt(offset uint32, buf []byte) (int, error) {
	return ino.writeAtFor(nil, offset, buf)
}

// writeAtFor is WriteAt on behalf of task w, with the same parking
// behavior as readAtFor.
func (ino *Inode) writeAtFor(w klock.Waiter, offset uint32, buf []byte) (int, error) {
	end := offset + uint32(len(buf))
	// Growing the file allocates every block between the current end and
	// the new end, direct tier first, then indirect1, then indirect2.
	for idx := blocksFor(ino.Size); idx < blocksFor(end); idx++ {
		if _, err := ino.ensureBlock(idx); err != nil {
			return 0, err
		}
	}
	written := 0
	for written < len(buf) {
		logicalIdx := (offset + uint32(written)) / config.BlockSize
		inBlk := (offset + uint32(written)) % config.BlockSize
		bid, err := ino.ensureBlock(logicalIdx)
		if err != nil {
			return written, err
		}
		take := min(config.BlockSize-int(inBlk), len(buf)-written)
		e := ino.fs.cache.GetFor(w, bid)
		unlock := e.Lock()
		copy(e.Data[inBlk:int(inBlk)+take], buf[written:written+take])
		e.MarkDirty()
		unlock()
		written += take
	}
	if end > ino.Size {
		ino.Size = end
		ino.save()
	}
	return written, nil
}

// Trunc shrinks (or, if newSize >= Size, is a no-op for) the inode to
// newSize, releasing data blocks and then index blocks that become
// entirely unused. Block ids below the new size are never disturbed.
func (ino *Inode) Trunc(newSize uint32) {
	if newSize >= ino.Size {
		return
	}
	oldBlocks := blocksFor(ino.Size)
	newBlocks := blocksFor(newSize)

	for idx := oldBlocks; idx > newBlocks; idx-- {
		ino.freeLogicalBlock(idx - 1)
	}
	ino.reapIndexBlocks(newBlocks)

	ino.Size = newSize
	ino.save()
}

func blocksFor(size uint32) uint32 {
	return (size + config.BlockSize - 1) / config.BlockSize
}

// freeLogicalBlock releases the data block backing logical index idx,
// if any, clearing the owning pointer slot.
func (ino *Inode) freeLogicalBlock(idx uint32) {
	if idx < config.DirectLen {
		if ino.Directs[idx] != 0 {
			ino.fs.freeDataBlock(ino.Directs[idx])
			ino.Directs[idx] = 0
		}
		return
	}
	idx -= config.DirectLen

	if idx < config.PtrsPerBlock {
		if ino.Indirect1 == 0 {
			return
		}
		if p, ok := ino.fs.readPtr(ino.Indirect1, idx); ok {
			ino.fs.freeDataBlock(p)
			ino.fs.writePtr(ino.Indirect1, idx, 0)
		}
		return
	}
	idx -= config.PtrsPerBlock

	if ino.Indirect2 == 0 {
		return
	}
	primaryIdx := idx / config.PtrsPerBlock
	secIdx := idx % config.PtrsPerBlock
	primaryBid, ok := ino.fs.readPtr(ino.Indirect2, primaryIdx)
	if !ok {
		return
	}
	if p, ok := ino.fs.readPtr(primaryBid, secIdx); ok {
		ino.fs.freeDataBlock(p)
		ino.fs.writePtr(primaryBid, secIdx, 0)
	}
}

// reapIndexBlocks releases indirect1 (if newBlocks no longer reaches
// into it) and, for indirect2, any primary index block that has gone
// fully empty, followed by the top index block itself once emptied.
func (ino *Inode) reapIndexBlocks(newBlocks uint32) {
	if newBlocks <= config.DirectLen && ino.Indirect1 != 0 {
		ino.fs.freeDataBlock(ino.Indirect1)
		ino.Indirect1 = 0
	}

	if ino.Indirect2 == 0 {
		return
	}
	tier2Start := uint32(config.DirectLen + config.PtrsPerBlock)
	if newBlocks > tier2Start {
		// Still reaching into tier 2: free only the primary blocks
		// that have gone fully past newBlocks.
		usedPrimaries := (newBlocks - tier2Start + config.PtrsPerBlock - 1) / config.PtrsPerBlock
		for p := usedPrimaries; p < config.PtrsPerBlock; p++ {
			if primaryBid, ok := ino.fs.readPtr(ino.Indirect2, p); ok {
				ino.fs.freeDataBlock(primaryBid)
				ino.fs.writePtr(ino.Indirect2, p, 0)
			}
		}
		return
	}

	// No longer reaching into tier 2 at all: free every remaining
	// primary block, then the top index block.
	for p := uint32(0); p < config.PtrsPerBlock; p++ {
		if primaryBid, ok := ino.fs.readPtr(ino.Indirect2, p); ok {
			ino.fs.freeDataBlock(primaryBid)
		}
	}
	ino.fs.freeDataBlock(ino.Indirect2)
	ino.Indirect2 = 0
}
