// Package fs implements SimpleFS, the on-disk file system. It layers
// a block cache (LRU, write-back) and a bitmap allocator for inodes and
// data blocks underneath a three-tier indexed inode layout (direct,
// single-indirect, double-indirect), directory entries, and a file
// handle layer shared by the kernel and the host-side image packer
// (cmd/packfs).
package fs

import "errors"

// Sentinel errors; layered failures wrap these with fmt.Errorf so
// callers can still match with errors.Is.
var (
	// ErrNoSpace is returned when a bitmap allocator has no free bits
	// left, propagating up from a data/inode allocation attempt.
	ErrNoSpace = errors.New("fs: no space left")
	// ErrNotFound is returned when a name does not resolve within a
	// directory.
	ErrNotFound = errors.New("fs: not found")
	// ErrExists is returned by Mkdir/Touch for a name already present.
	ErrExists = errors.New("fs: name already exists")
	// ErrNotDir is returned when a non-directory inode is used as one.
	ErrNotDir = errors.New("fs: not a directory")
	// ErrIsDir is returned when a directory inode is opened for writing.
	ErrIsDir = errors.New("fs: is a directory")
	// ErrInvalidName is returned for empty, oversized, "/"-containing,
	// or reserved (".", "..") names passed to a creating operation.
	ErrInvalidName = errors.New("fs: invalid name")
	// ErrBadLayout is returned by Format when the inode/data counts
	// don't divide evenly into bitmap blocks; the layout math would
	// silently strand trailing bits otherwise.
	ErrBadLayout = errors.New("fs: layout sizes must be a multiple of BitsPerBitmapBlock")
	// ErrBadMagic is returned by Open when the superblock magic doesn't match.
	ErrBadMagic = errors.New("fs: bad superblock magic")
)
