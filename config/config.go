// Package config collects the compile-time constants shared by every
// kernel subsystem. Keeping them in one place means
// mem, vm, sched and fs all agree on the same page size and block size.
package config

const (
	// PageShift is the base-2 exponent of the page size (4 KiB pages).
	PageShift = 12
	// PageSize is the size of one physical/virtual page in bytes.
	PageSize = 1 << PageShift
	// PageOffsetMask masks the in-page offset of an address.
	PageOffsetMask = PageSize - 1

	// PPNWidth is the number of bits in an SV39 physical page number.
	PPNWidth = 44
	// VPNIndexBits is the width of each of the three SV39 VPN index fields.
	VPNIndexBits = 9
	// VPNIndexMask masks a single 9-bit SV39 index.
	VPNIndexMask = (1 << VPNIndexBits) - 1
	// SV39ModeBits is the mode nibble placed at the top of the satp image.
	SV39ModeBits = 8

	// PTESize is the size in bytes of one page table entry.
	PTESize = 8
	// PTEsPerPage is the number of PTEs that fit in one page table node.
	PTEsPerPage = PageSize / PTESize
)

const (
	// BlockSize is the on-disk block size for SimpleFS.
	BlockSize = 512
	// InodeSize is the fixed on-disk size of one inode record.
	InodeSize = 128
	// InodesPerBlock is the number of packed inodes in one inode-area block.
	InodesPerBlock = BlockSize / InodeSize
	// DirEntrySize is the size of one packed directory entry.
	DirEntrySize = 32
	// DirEntryNameLen is the maximum length of a directory entry name.
	DirEntryNameLen = 28
	// SuperblockMagic identifies a valid SimpleFS superblock.
	SuperblockMagic = 7

	// InodeHeaderSize is the fixed portion of an on-disk inode (size,
	// indirect1, indirect2, type) before the direct-block array.
	InodeHeaderSize = 16
	// DirectLen is the number of direct block pointers an inode carries,
	// sized so the header plus directs exactly fill InodeSize.
	DirectLen = (InodeSize - InodeHeaderSize) / 4
	// PtrsPerBlock is the number of 4-byte block pointers packed into one
	// indirect index block.
	PtrsPerBlock = BlockSize / 4
	// BitsPerBitmapBlock is the number of free-bits one bitmap block
	// indexes. Layout sizes must divide evenly into it; fs.Format
	// enforces that as a precondition rather than masking a remainder.
	BitsPerBitmapBlock = BlockSize * 8
)

const (
	// CPUS is the number of simulated harts in the SMP scheduling model.
	CPUS = 4

	// MinSlice is the smallest scheduling slice handed to any one task.
	MinSlice = 1000
	// SchedPeriod is the default scheduling period in simulated cycles,
	// and the cadence of the machine-mode timer IRQ.
	SchedPeriod = 6000

	// PELTPeriod is the rollover period for the PELT-like load tracker.
	PELTPeriod = 1 << 10
	// PELTAttenuation is the decay divisor applied to carried-over load.
	PELTAttenuation = 2

	// DefaultWeight is the scheduling weight assigned to a task unless
	// otherwise specified (nice level 0, in CFS terms).
	DefaultWeight = 1024
)

const (
	// NumSignal is the number of distinct signal numbers a process can act on.
	NumSignal = 32
)

const (
	// RingBufferSize is the capacity of a pipe's backing ring buffer.
	RingBufferSize = 128
)
