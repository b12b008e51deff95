// Command fusemnt mounts a SimpleFS image on a host directory through
// the OS FUSE interface, the inspection-and-edit counterpart to
// cmd/packfs: packfs builds fs.img from a host tree, fusemnt lets the
// host browse and modify the same image in place with ordinary file
// tools. It drives the identical fs.FileSystem/Inode/FileHandle code
// the kernel uses; only the request source differs.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"bazil.org/fuse"
	fusefs "bazil.org/fuse/fs"

	efs "eduos/internal/fs"
)

func main() {
	img := flag.String("img", "fs.img", "SimpleFS image to mount")
	mnt := flag.String("mnt", "", "host directory to mount on")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *mnt == "" {
		fmt.Fprintln(os.Stderr, "Usage: fusemnt --img <fs.img> --mnt <dir>")
		os.Exit(1)
	}

	if err := run(log, *img, *mnt); err != nil {
		log.Error("fusemnt failed", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger, imgPath, mntPath string) error {
	disk, err := efs.OpenFileDisk(imgPath)
	if err != nil {
		return err
	}
	defer disk.Close()

	fsys, err := efs.Open(disk)
	if err != nil {
		return fmt.Errorf("fusemnt: mount image: %w", err)
	}

	conn, err := fuse.Mount(mntPath, fuse.FSName("simplefs"), fuse.Subtype("simplefs"))
	if err != nil {
		return fmt.Errorf("fusemnt: mount %s: %w", mntPath, err)
	}
	defer conn.Close()
	log.Info("mounted", "img", imgPath, "mnt", mntPath)

	// Unmount on interrupt so dirty cache blocks reach the image.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigs
		if err := fuse.Unmount(mntPath); err != nil {
			log.Warn("unmount", "err", err)
		}
	}()

	if err := fusefs.Serve(conn, &hostFS{fsys: fsys}); err != nil {
		return fmt.Errorf("fusemnt: serve: %w", err)
	}
	fsys.Sync()
	log.Info("unmounted, image synced")
	return nil
}

// hostFS adapts a mounted efs.FileSystem to the FUSE server. A single
// lock serializes every operation: the FUSE layer dispatches requests
// on multiple goroutines, and the image's in-memory Inode records are
// not built for two mutating requests racing over the same file.
type hostFS struct {
	mu   sync.Mutex
	fsys *efs.FileSystem
}

func (h *hostFS) Root() (fusefs.Node, error) {
	return &hostDir{host: h, ino: h.fsys.Root()}, nil
}

// fuseInode maps a SimpleFS inode id onto a FUSE inode number; FUSE
// reserves 0, so ids shift up by one and the root comes out as 1.
func fuseInode(iid uint32) uint64 { return uint64(iid) + 1 }

// hostDir serves one directory inode.
type hostDir struct {
	host *hostFS
	ino  *efs.Inode
}

func (d *hostDir) Attr(ctx context.Context, a *fuse.Attr) error {
	d.host.mu.Lock()
	defer d.host.mu.Unlock()
	a.Inode = fuseInode(d.ino.IID)
	a.Mode = os.ModeDir | 0o755
	a.Size = uint64(d.ino.Size)
	return nil
}

func (d *hostDir) Lookup(ctx context.Context, name string) (fusefs.Node, error) {
	d.host.mu.Lock()
	defer d.host.mu.Unlock()
	for _, de := range d.entries() {
		if de.Name != name {
			continue
		}
		target := d.host.fsys.LoadInode(de.IID)
		if target.Type == efs.KindDir {
			return &hostDir{host: d.host, ino: target}, nil
		}
		return &hostFile{host: d.host, ino: target}, nil
	}
	return nil, fuse.Errno(syscall.ENOENT)
}

func (d *hostDir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	d.host.mu.Lock()
	defer d.host.mu.Unlock()
	var out []fuse.Dirent
	for _, de := range d.entries() {
		target := d.host.fsys.LoadInode(de.IID)
		typ := fuse.DT_File
		if target.Type == efs.KindDir {
			typ = fuse.DT_Dir
		}
		out = append(out, fuse.Dirent{Inode: fuseInode(de.IID), Type: typ, Name: de.Name})
	}
	return out, nil
}

// entries resolves names to ids through lookup-by-name on the directory
// inode; caller holds the host lock.
func (d *hostDir) entries() []efs.DirEntry {
	names := d.ino.Ls()
	out := make([]efs.DirEntry, 0, len(names))
	for _, name := range names {
		if name == "." || name == ".." {
			continue
		}
		if target, _, ok := d.ino.LookupEntry(name); ok {
			out = append(out, target)
		}
	}
	return out
}

func (d *hostDir) Mkdir(ctx context.Context, req *fuse.MkdirRequest) (fusefs.Node, error) {
	d.host.mu.Lock()
	defer d.host.mu.Unlock()
	child, err := d.ino.Mkdir(req.Name)
	if err != nil {
		return nil, mapErr(err)
	}
	return &hostDir{host: d.host, ino: child}, nil
}

func (d *hostDir) Create(ctx context.Context, req *fuse.CreateRequest, resp *fuse.CreateResponse) (fusefs.Node, fusefs.Handle, error) {
	d.host.mu.Lock()
	defer d.host.mu.Unlock()
	child, err := d.ino.Touch(req.Name)
	if err != nil {
		return nil, nil, mapErr(err)
	}
	f := &hostFile{host: d.host, ino: child}
	return f, f, nil
}

// hostFile serves one file inode; it doubles as its own handle since a
// SimpleFS inode carries no per-open state the FUSE layer doesn't
// already track (offsets arrive with every request).
type hostFile struct {
	host *hostFS
	ino  *efs.Inode
}

func (f *hostFile) Attr(ctx context.Context, a *fuse.Attr) error {
	f.host.mu.Lock()
	defer f.host.mu.Unlock()
	a.Inode = fuseInode(f.ino.IID)
	a.Mode = 0o644
	a.Size = uint64(f.ino.Size)
	return nil
}

func (f *hostFile) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	f.host.mu.Lock()
	defer f.host.mu.Unlock()
	buf := make([]byte, req.Size)
	n := f.ino.ReadAt(uint32(req.Offset), buf)
	resp.Data = buf[:n]
	return nil
}

func (f *hostFile) Write(ctx context.Context, req *fuse.WriteRequest, resp *fuse.WriteResponse) error {
	f.host.mu.Lock()
	defer f.host.mu.Unlock()
	n, err := f.ino.WriteAt(uint32(req.Offset), req.Data)
	if err != nil {
		return mapErr(err)
	}
	resp.Size = n
	return nil
}

func (f *hostFile) Setattr(ctx context.Context, req *fuse.SetattrRequest, resp *fuse.SetattrResponse) error {
	f.host.mu.Lock()
	defer f.host.mu.Unlock()
	if req.Valid.Size() {
		f.ino.Trunc(uint32(req.Size))
	}
	resp.Attr.Inode = fuseInode(f.ino.IID)
	resp.Attr.Mode = 0o644
	resp.Attr.Size = uint64(f.ino.Size)
	return nil
}

func (f *hostFile) Flush(ctx context.Context, req *fuse.FlushRequest) error {
	f.host.mu.Lock()
	defer f.host.mu.Unlock()
	f.host.fsys.Sync()
	return nil
}

func mapErr(err error) error {
	switch {
	case errors.Is(err, efs.ErrExists):
		return fuse.Errno(syscall.EEXIST)
	case errors.Is(err, efs.ErrNotFound):
		return fuse.Errno(syscall.ENOENT)
	case errors.Is(err, efs.ErrInvalidName):
		return fuse.Errno(syscall.EINVAL)
	case errors.Is(err, efs.ErrNoSpace):
		return fuse.Errno(syscall.ENOSPC)
	case errors.Is(err, efs.ErrNotDir):
		return fuse.Errno(syscall.ENOTDIR)
	case errors.Is(err, efs.ErrIsDir):
		return fuse.Errno(syscall.EISDIR)
	default:
		return fuse.Errno(syscall.EIO)
	}
}
