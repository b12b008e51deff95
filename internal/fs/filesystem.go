package fs

import (
	"fmt"

	"eduos/config"
)

// FileSystem ties together the superblock, the inode and data bitmaps,
// the block cache, and the root directory. It is the
// top-level handle both the kernel and cmd/packfs construct and operate
// through.
type FileSystem struct {
	disk       DiskManager
	cache      *BlockCache
	sb         *Superblock
	inodeBmp   *Bitmap
	dataBitmap *Bitmap
	root       *Inode
}

const defaultCacheBlocks = 4096

// Format lays down a fresh SimpleFS image over disk: a superblock,
// zeroed inode/data bitmaps, and a root directory inode pre-populated
// with "." and "..". numInode and numDnode must each be a multiple of
// config.BitsPerBitmapBlock; the layout math assumes whole bitmap
// blocks, so the divisibility is enforced rather than assumed.
func Format(disk DiskManager, numBlks, numInode, numDnode uint32) (*FileSystem, error) {
	if numInode%config.BitsPerBitmapBlock != 0 || numDnode%config.BitsPerBitmapBlock != 0 {
		return nil, ErrBadLayout
	}

	sb := &Superblock{
		Magic:             config.SuperblockMagic,
		NumBlks:           numBlks,
		NumInode:          numInode,
		NumInodeBitmapBlk: numInode / config.BitsPerBitmapBlock,
		NumInodeAreaBlk:   numInode / config.InodesPerBlock,
		NumDnode:          numDnode,
		NumDnodeBitmapBlk: numDnode / config.BitsPerBitmapBlock,
		NumDnodeAreaBlk:   numDnode,
	}
	total := sb.DnodeAreaStart() + sb.NumDnodeAreaBlk
	if total > numBlks {
		return nil, fmt.Errorf("fs: layout needs %d blocks, have %d", total, numBlks)
	}

	cache := NewBlockCache(disk, defaultCacheBlocks)
	e := cache.Get(0)
	unlock := e.Lock()
	e.Data = *sb.Encode()
	e.MarkDirty()
	unlock()

	fsys := &FileSystem{
		disk:       disk,
		cache:      cache,
		sb:         sb,
		inodeBmp:   NewBitmap(cache, sb.InodeBitmapStart(), sb.NumInodeBitmapBlk, sb.NumInode),
		dataBitmap: NewBitmap(cache, sb.DnodeBitmapStart(), sb.NumDnodeBitmapBlk, sb.NumDnode),
	}
	fsys.inodeBmp.Format()
	fsys.dataBitmap.Format()

	root, err := fsys.allocInode(KindDir)
	if err != nil {
		return nil, err
	}
	if root.IID != 0 {
		panic("fs: root must be the first inode allocated")
	}
	root.appendEntry(".", root.IID)
	root.appendEntry("..", root.IID)
	fsys.root = root

	cache.Sync()
	return fsys, nil
}

// Open mounts an existing SimpleFS image: reads and validates the
// superblock, then loads the root inode (always iid 0).
func Open(disk DiskManager) (*FileSystem, error) {
	cache := NewBlockCache(disk, defaultCacheBlocks)
	e := cache.Get(0)
	unlock := e.Lock()
	sb := DecodeSuperblock(&e.Data)
	unlock()
	if sb.Magic != config.SuperblockMagic {
		return nil, ErrBadMagic
	}
	fsys := &FileSystem{
		disk:       disk,
		cache:      cache,
		sb:         sb,
		inodeBmp:   NewBitmap(cache, sb.InodeBitmapStart(), sb.NumInodeBitmapBlk, sb.NumInode),
		dataBitmap: NewBitmap(cache, sb.DnodeBitmapStart(), sb.NumDnodeBitmapBlk, sb.NumDnode),
	}
	// Reconstruct the bitmaps' remaining-free counters by scanning, since
	// Bitmap's in-memory counter isn't itself persisted.
	fsys.inodeBmp.recount()
	fsys.dataBitmap.recount()
	fsys.root = fsys.LoadInode(0)
	return fsys, nil
}

// Root returns the filesystem's root directory inode.
func (fs *FileSystem) Root() *Inode { return fs.root }

// Cache exposes the underlying block cache, for callers that manage
// residency directly (flush-and-drop on shutdown, cold-start tests).
func (fs *FileSystem) Cache() *BlockCache { return fs.cache }

// Sync flushes every dirty cached block to disk without dropping them.
func (fs *FileSystem) Sync() { fs.cache.Sync() }

// allocInode allocates a fresh inode through the inode bitmap, zeroes
// its on-disk record, and returns it tagged with kind.
func (fs *FileSystem) allocInode(kind InodeKind) (*Inode, error) {
	iid, ok := fs.inodeBmp.Alloc()
	if !ok {
		return nil, ErrNoSpace
	}
	ino := &Inode{fs: fs, IID: iid, Type: kind}
	ino.save()
	return ino, nil
}
