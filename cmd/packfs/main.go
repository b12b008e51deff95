// Command packfs is the host-side image packer: it lays down a fresh
// SimpleFS image and copies a
// tree of host files into its root directory.
package main

import (
	"flag"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"

	"eduos/config"
	efs "eduos/internal/fs"
)

const (
	// numInode/numDnode must each be a multiple of config.BitsPerBitmapBlock
	// (one bitmap block's worth); these give a skeleton image room for a
	// few thousand inodes and 16 MiB of data.
	numInode = config.BitsPerBitmapBlock
	numDnode = 8 * config.BitsPerBitmapBlock
	imgName  = "fs.img"
)

func main() {
	source := flag.String("source", "", "directory naming the files to pack (structure mirrored into the image)")
	target := flag.String("target", "", "directory holding the actual file contents to read")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *source == "" || *target == "" {
		fmt.Fprintln(os.Stderr, "Usage: packfs --source <src_dir> --target <bin_dir>")
		os.Exit(1)
	}

	if err := run(log, *source, *target); err != nil {
		log.Error("packfs failed", "err", err)
		os.Exit(1)
	}
}

func run(log *slog.Logger, sourceDir, targetDir string) error {
	imgPath := filepath.Join(".", imgName)
	disk, err := newUnixFileDisk(imgPath)
	if err != nil {
		return fmt.Errorf("packfs: open image: %w", err)
	}
	defer disk.Close()

	blks := 1 + numInode/config.BitsPerBitmapBlock + numInode/config.InodesPerBlock +
		numDnode/config.BitsPerBitmapBlock + numDnode

	fsys, err := efs.Format(disk, uint32(blks), numInode, numDnode)
	if err != nil {
		return fmt.Errorf("packfs: format: %w", err)
	}
	log.Info("formatted image", "path", imgPath, "blocks", blks, "inodes", numInode, "data_blocks", numDnode)

	if err := addFiles(log, fsys, sourceDir, targetDir); err != nil {
		return err
	}

	fsys.Sync()
	log.Info("packed filesystem", "source", sourceDir, "target", targetDir)
	return nil
}

// addFiles walks sourceDir, which names the files and directories the
// image should contain, and for each one reads its actual bytes from the
// identically-relative path under targetDir — keeping the split
// between "what to include" and "where the built artifact actually
// lives" (think a staging manifest tree vs. a build output directory).
func addFiles(log *slog.Logger, fsys *efs.FileSystem, sourceDir, targetDir string) error {
	return filepath.WalkDir(sourceDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(sourceDir, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if _, err := mkdirAll(fsys, rel); err != nil {
				return fmt.Errorf("packfs: mkdir %s: %w", rel, err)
			}
			return nil
		}

		dir, name := splitParent(rel)
		parent, err := mkdirAll(fsys, dir)
		if err != nil {
			return fmt.Errorf("packfs: resolve parent of %s: %w", rel, err)
		}
		fh, err := parent.Open(name, efs.OWrOnly|efs.OTrunc|efs.OCreate)
		if err != nil {
			return fmt.Errorf("packfs: open %s: %w", rel, err)
		}

		srcPath := filepath.Join(targetDir, rel)
		data, err := os.ReadFile(srcPath)
		if err != nil {
			return fmt.Errorf("packfs: read %s: %w", srcPath, err)
		}
		if _, err := fh.Write(data); err != nil {
			return fmt.Errorf("packfs: write %s: %w", rel, err)
		}
		log.Debug("packed file", "name", rel, "bytes", len(data))
		return nil
	})
}

// mkdirAll walks/creates rel (slash-separated, "" meaning root) under
// the image's root directory and returns the leaf directory inode.
func mkdirAll(fsys *efs.FileSystem, rel string) (*efs.Inode, error) {
	dir := fsys.Root()
	if rel == "" || rel == "." {
		return dir, nil
	}
	for _, part := range strings.Split(rel, "/") {
		if part == "" {
			continue
		}
		if child, ok := dir.Cd(part); ok {
			dir = child
			continue
		}
		child, err := dir.Mkdir(part)
		if err != nil {
			return nil, err
		}
		dir = child
	}
	return dir, nil
}

func splitParent(rel string) (dir, name string) {
	i := strings.LastIndex(rel, "/")
	if i < 0 {
		return "", rel
	}
	return rel[:i], rel[i+1:]
}

// unixFileDisk is a host-file-backed efs.DiskManager built directly on
// golang.org/x/sys/unix's pread/pwrite, the packer-side counterpart to
// efs.FileDisk's os.File.ReadAt/WriteAt. Positioned I/O keeps
// concurrent block writes from racing over a shared file offset.
type unixFileDisk struct {
	fd int
}

func newUnixFileDisk(path string) (*unixFileDisk, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CREAT, 0o644)
	if err != nil {
		return nil, err
	}
	return &unixFileDisk{fd: fd}, nil
}

func (d *unixFileDisk) Read(bid uint32, buf *efs.Block) error {
	n, err := unix.Pread(d.fd, buf[:], int64(bid)*config.BlockSize)
	if err != nil {
		return fmt.Errorf("packfs: pread block %d: %w", bid, err)
	}
	if n != len(buf) {
		*buf = efs.Block{}
	}
	return nil
}

func (d *unixFileDisk) Write(bid uint32, buf *efs.Block) error {
	n, err := unix.Pwrite(d.fd, buf[:], int64(bid)*config.BlockSize)
	if err != nil {
		return fmt.Errorf("packfs: pwrite block %d: %w", bid, err)
	}
	if n != len(buf) {
		return fmt.Errorf("packfs: short pwrite of block %d", bid)
	}
	return nil
}

func (d *unixFileDisk) Close() error {
	return unix.Close(d.fd)
}
