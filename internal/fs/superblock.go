package fs

import "encoding/binary"

// Superblock is block 0 of a SimpleFS image: eight little-endian u32
// fields, in order magic, num_blks, num_inode, num_inode_bitmap_blks,
// num_inode_area_blks, num_dnode, num_dnode_bitmap_blks,
// num_dnode_area_blks.
type Superblock struct {
	Magic             uint32
	NumBlks           uint32
	NumInode          uint32
	NumInodeBitmapBlk uint32
	NumInodeAreaBlk   uint32
	NumDnode          uint32
	NumDnodeBitmapBlk uint32
	NumDnodeAreaBlk   uint32
}

const superblockFieldCount = 8

func sbFieldOffset(i int) int { return i * 4 }

// Encode serializes the superblock into block 0's on-disk form.
func (sb *Superblock) Encode() *Block {
	var b Block
	fields := [superblockFieldCount]uint32{
		sb.Magic, sb.NumBlks, sb.NumInode, sb.NumInodeBitmapBlk,
		sb.NumInodeAreaBlk, sb.NumDnode, sb.NumDnodeBitmapBlk, sb.NumDnodeAreaBlk,
	}
	for i, v := range fields {
		off := sbFieldOffset(i)
		binary.LittleEndian.PutUint32(b[off:off+4], v)
	}
	return &b
}

// DecodeSuperblock reads a superblock out of a block-0 image.
func DecodeSuperblock(b *Block) *Superblock {
	f := func(i int) uint32 {
		off := sbFieldOffset(i)
		return binary.LittleEndian.Uint32(b[off : off+4])
	}
	return &Superblock{
		Magic:             f(0),
		NumBlks:           f(1),
		NumInode:          f(2),
		NumInodeBitmapBlk: f(3),
		NumInodeAreaBlk:   f(4),
		NumDnode:          f(5),
		NumDnodeBitmapBlk: f(6),
		NumDnodeAreaBlk:   f(7),
	}
}

// InodeBitmapStart is the first block of the inode bitmap region: block
// 0 is the superblock, so it always begins at block 1.
func (sb *Superblock) InodeBitmapStart() uint32 { return 1 }

// InodeAreaStart is the first block of the inode area.
func (sb *Superblock) InodeAreaStart() uint32 {
	return sb.InodeBitmapStart() + sb.NumInodeBitmapBlk
}

// DnodeBitmapStart is the first block of the data bitmap region.
func (sb *Superblock) DnodeBitmapStart() uint32 {
	return sb.InodeAreaStart() + sb.NumInodeAreaBlk
}

// DnodeAreaStart is the first block of the data area.
func (sb *Superblock) DnodeAreaStart() uint32 {
	return sb.DnodeBitmapStart() + sb.NumDnodeBitmapBlk
}
