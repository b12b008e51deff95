package fs

import (
	"encoding/binary"
	"strings"

	"eduos/config"
)

// DirEntry is one packed 32-byte directory record: a 28-byte NUL-padded
// name followed by a 4-byte little-endian inode id.
type DirEntry struct {
	Name string
	IID  uint32
}

func encodeDirEntry(e DirEntry) [config.DirEntrySize]byte {
	var b [config.DirEntrySize]byte
	copy(b[:config.DirEntryNameLen], e.Name)
	binary.LittleEndian.PutUint32(b[config.DirEntryNameLen:], e.IID)
	return b
}

func decodeDirEntry(b []byte) DirEntry {
	name := strings.TrimRight(string(b[:config.DirEntryNameLen]), "\x00")
	return DirEntry{Name: name, IID: binary.LittleEndian.Uint32(b[config.DirEntryNameLen:])}
}

// ValidName reports whether name is an acceptable argument to a creating
// operation (Mkdir/Touch): non-empty, at most DirEntryNameLen bytes, no
// '/', and not "." or "..".
func ValidName(name string) bool {
	if name == "" || len(name) > config.DirEntryNameLen {
		return false
	}
	if strings.Contains(name, "/") {
		return false
	}
	if name == "." || name == ".." {
		return false
	}
	return true
}

// Ls returns every directory entry's name (including "." and "..").
func (ino *Inode) Ls() []string {
	n := int(ino.Size) / config.DirEntrySize
	names := make([]string, 0, n)
	buf := make([]byte, config.DirEntrySize)
	for i := 0; i < n; i++ {
		ino.ReadAt(uint32(i*config.DirEntrySize), buf)
		names = append(names, decodeDirEntry(buf).Name)
	}
	return names
}

// lookup scans the directory's entries linearly for name, returning its
// entry and byte offset.
func (ino *Inode) lookup(name string) (DirEntry, int, bool) {
	n := int(ino.Size) / config.DirEntrySize
	buf := make([]byte, config.DirEntrySize)
	for i := 0; i < n; i++ {
		off := uint32(i * config.DirEntrySize)
		ino.ReadAt(off, buf)
		de := decodeDirEntry(buf)
		if de.Name == name {
			return de, i * config.DirEntrySize, true
		}
	}
	return DirEntry{}, 0, false
}

// LookupEntry scans the directory for name, returning its entry and the
// entry's byte offset within the directory data.
func (ino *Inode) LookupEntry(name string) (DirEntry, int, bool) {
	return ino.lookup(name)
}

// Cd resolves name within the directory, returning the target inode.
// Returns ok=false if name isn't present or isn't a directory.
func (ino *Inode) Cd(name string) (*Inode, bool) {
	de, _, ok := ino.lookup(name)
	if !ok {
		return nil, false
	}
	target := ino.fs.LoadInode(de.IID)
	if target.Type != KindDir {
		return nil, false
	}
	return target, true
}

// appendEntry appends a new directory entry to the directory's data.
func (ino *Inode) appendEntry(name string, iid uint32) {
	enc := encodeDirEntry(DirEntry{Name: name, IID: iid})
	ino.WriteAt(ino.Size, enc[:])
}

// Mkdir creates a new subdirectory named name, pre-populated with "."
// and "..", and appends its entry to this directory. Fails with
// ErrExists if name is already present, ErrInvalidName if name fails
// ValidName.
func (ino *Inode) Mkdir(name string) (*Inode, error) {
	if !ValidName(name) {
		return nil, ErrInvalidName
	}
	if _, _, ok := ino.lookup(name); ok {
		return nil, ErrExists
	}
	child, err := ino.fs.allocInode(KindDir)
	if err != nil {
		return nil, err
	}
	child.appendEntry(".", child.IID)
	child.appendEntry("..", ino.IID)
	ino.appendEntry(name, child.IID)
	return child, nil
}

// Touch creates an empty file named name and appends its entry. Fails
// with ErrExists/ErrInvalidName under the same conditions as Mkdir.
func (ino *Inode) Touch(name string) (*Inode, error) {
	if !ValidName(name) {
		return nil, ErrInvalidName
	}
	if _, _, ok := ino.lookup(name); ok {
		return nil, ErrExists
	}
	child, err := ino.fs.allocInode(KindFile)
	if err != nil {
		return nil, err
	}
	ino.appendEntry(name, child.IID)
	return child, nil
}

// OpenFlags is the POSIX-ish open(2) flag vocabulary: CREATE, TRUNC,
// and the RDONLY/WRONLY/RDWR access-mode trio.
type OpenFlags uint32

const (
	ORdOnly OpenFlags = 0
	OWrOnly OpenFlags = 1
	ORdWr   OpenFlags = 2
	accessModeMask OpenFlags = 0x3

	OCreate OpenFlags = 1 << 4
	OTrunc  OpenFlags = 1 << 5
)

// Open resolves name within the directory honoring CREATE (creates if
// absent, opens if present) and TRUNC (truncate to zero on open), and
// returns a FileHandle with read/write permission per the access-mode
// bits.
func (ino *Inode) Open(name string, flags OpenFlags) (*FileHandle, error) {
	de, _, ok := ino.lookup(name)
	var target *Inode
	if !ok {
		if flags&OCreate == 0 {
			return nil, ErrNotFound
		}
		created, err := ino.Touch(name)
		if err != nil {
			return nil, err
		}
		target = created
	} else {
		target = ino.fs.LoadInode(de.IID)
	}
	if target.Type == KindDir && flags&accessModeMask != ORdOnly {
		return nil, ErrIsDir
	}
	if flags&OTrunc != 0 {
		target.Trunc(0)
	}
	return newFileHandle(target, flags), nil
}
