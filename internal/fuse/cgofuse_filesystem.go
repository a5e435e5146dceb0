//go:build cgofuse
// +build cgofuse

package fuse

import (
	"sync"

	"github.com/winfsp/cgofuse/fuse"
	"golang.org/x/sys/unix"
)

// CgoFuseFS exposes an OperationTable through cgofuse, which calls back
// with paths and errno-style return codes just like the table itself.
type CgoFuseFS struct {
	fuse.FileSystemBase

	table *OperationTable

	readyOnce sync.Once
	ready     chan struct{}
}

// NewCgoFuseFS creates a new cgofuse-based filesystem
func NewCgoFuseFS(table *OperationTable) *CgoFuseFS {
	return &CgoFuseFS{
		table: table,
		ready: make(chan struct{}),
	}
}

// Init is called by the host once the mount is live.
func (c *CgoFuseFS) Init() {
	c.table.Init()
	c.readyOnce.Do(func() { close(c.ready) })
}

// Ready is closed after Init has run.
func (c *CgoFuseFS) Ready() <-chan struct{} {
	return c.ready
}

func (c *CgoFuseFS) Statfs(path string, stat *fuse.Statfs_t) int {
	var st unix.Statfs_t
	if rc := c.table.Statfs(path, &st); rc != 0 {
		return rc
	}
	info := statfsFields(&st)
	stat.Bsize = info.bsize
	stat.Frsize = info.frsize
	stat.Blocks = info.blocks
	stat.Bfree = info.bfree
	stat.Bavail = info.bavail
	stat.Files = info.files
	stat.Ffree = info.ffree
	stat.Favail = info.ffree
	stat.Namemax = info.namelen
	return 0
}

func (c *CgoFuseFS) Getattr(path string, stat *fuse.Stat_t, fh uint64) int {
	var st unix.Stat_t
	var rc int
	if fh != invalidHandle {
		rc = c.table.Fgetattr(path, &st, fh)
	} else {
		rc = c.table.Getattr(path, &st)
	}
	if rc != 0 {
		return rc
	}
	fillCgoStat(&st, stat)
	return 0
}

// Opendir succeeds for any directory; Readdir opens the backend directory
// itself on every call.
func (c *CgoFuseFS) Opendir(path string) (int, uint64) {
	var st unix.Stat_t
	if rc := c.table.Getattr(path, &st); rc != 0 {
		return rc, invalidHandle
	}
	if uint32(st.Mode)&unix.S_IFMT != unix.S_IFDIR {
		return -fuse.ENOTDIR, invalidHandle
	}
	return 0, invalidHandle
}

func (c *CgoFuseFS) Readdir(path string, fill func(name string, stat *fuse.Stat_t, ofst int64) bool, ofst int64, fh uint64) int {
	return c.table.Readdir(path, func(name string, st *unix.Stat_t) bool {
		var stat fuse.Stat_t
		fillCgoStat(st, &stat)
		return fill(name, &stat, 0)
	})
}

func (c *CgoFuseFS) Create(path string, flags int, mode uint32) (int, uint64) {
	return c.table.Create(path, flags, mode)
}

func (c *CgoFuseFS) Open(path string, flags int) (int, uint64) {
	return c.table.Open(path, flags)
}

func (c *CgoFuseFS) Read(path string, buff []byte, ofst int64, fh uint64) int {
	return c.table.Read(path, buff, ofst, fh)
}

func (c *CgoFuseFS) Write(path string, buff []byte, ofst int64, fh uint64) int {
	return c.table.Write(path, buff, ofst, fh)
}

func (c *CgoFuseFS) Unlink(path string) int {
	return c.table.Unlink(path)
}

// Rename carries no flags in cgofuse; the kernel's RENAME_* variants never
// reach this method.
func (c *CgoFuseFS) Rename(oldpath string, newpath string) int {
	return c.table.Rename(oldpath, newpath, 0)
}

func (c *CgoFuseFS) Release(path string, fh uint64) int {
	return c.table.Release(path, fh)
}

func (c *CgoFuseFS) Flush(path string, fh uint64) int {
	return c.table.Flush(path, fh)
}

func (c *CgoFuseFS) Fsync(path string, datasync bool, fh uint64) int {
	return c.table.Fsync(path, fh)
}

func (c *CgoFuseFS) Mkdir(path string, mode uint32) int {
	return c.table.Mkdir(path, mode)
}

func (c *CgoFuseFS) Rmdir(path string) int {
	return c.table.Rmdir(path)
}

func (c *CgoFuseFS) Chmod(path string, mode uint32) int {
	return c.table.Chmod(path, mode)
}

func (c *CgoFuseFS) Truncate(path string, size int64, fh uint64) int {
	if fh != invalidHandle {
		return c.table.Ftruncate(path, size, fh)
	}
	return c.table.Truncate(path, size)
}

func (c *CgoFuseFS) Utimens(path string, tmsp []fuse.Timespec) int {
	if tmsp == nil {
		return c.table.Utimens(path, nil)
	}
	times := make([]unix.Timespec, len(tmsp))
	for i, t := range tmsp {
		times[i] = fromCgoTimespec(t)
	}
	return c.table.Utimens(path, times)
}

func fillCgoStat(st *unix.Stat_t, out *fuse.Stat_t) {
	atime, mtime, ctime := statTimes(st)

	out.Dev = uint64(st.Dev)
	out.Ino = st.Ino
	out.Mode = uint32(st.Mode)
	out.Nlink = uint32(st.Nlink)
	out.Uid = st.Uid
	out.Gid = st.Gid
	out.Rdev = uint64(st.Rdev)
	out.Size = st.Size
	out.Atim = fuse.Timespec{Sec: int64(atime.Sec), Nsec: int64(atime.Nsec)}
	out.Mtim = fuse.Timespec{Sec: int64(mtime.Sec), Nsec: int64(mtime.Nsec)}
	out.Ctim = fuse.Timespec{Sec: int64(ctime.Sec), Nsec: int64(ctime.Nsec)}
	out.Blksize = int64(st.Blksize)
	out.Blocks = st.Blocks
}

// fromCgoTimespec keeps the UTIME_NOW and UTIME_OMIT markers intact.
func fromCgoTimespec(t fuse.Timespec) unix.Timespec {
	switch t.Nsec {
	case unix.UTIME_NOW:
		return unix.Timespec{Nsec: unix.UTIME_NOW}
	case unix.UTIME_OMIT:
		return unix.Timespec{Nsec: unix.UTIME_OMIT}
	}
	return unix.NsecToTimespec(t.Sec*1e9 + t.Nsec)
}
