package fuse

import (
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/objectfs/passthroughfs/internal/passthrough"
	fserrors "github.com/objectfs/passthroughfs/pkg/errors"
	"github.com/objectfs/passthroughfs/pkg/types"
)

// OperationTable is the errno-returning surface a FUSE host drives. Every
// method returns 0 (or a non-negative count) on success and a negative
// POSIX errno on failure. Paths are virtual and rooted at "/". File
// handles are the values returned by Create and Open.
type OperationTable struct {
	fs      *passthrough.FileSystem
	metrics types.MetricsCollector
	logger  types.Logger
}

// NewOperationTable wraps fs. Nil metrics or logger are replaced by no-ops.
func NewOperationTable(fs *passthrough.FileSystem, metrics types.MetricsCollector, logger types.Logger) *OperationTable {
	if metrics == nil {
		metrics = types.NopMetrics{}
	}
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &OperationTable{fs: fs, metrics: metrics, logger: logger}
}

// FileSystem returns the wrapped core.
func (t *OperationTable) FileSystem() *passthrough.FileSystem {
	return t.fs
}

// Init runs once when the host has mounted the filesystem.
func (t *OperationTable) Init() {
	t.logger.Info("filesystem initialized", map[string]interface{}{
		"backend_root": t.fs.Root(),
	})
	t.metrics.SetOpenHandles(t.fs.OpenHandles())
}

// Getattr fills st with the lstat metadata of path.
func (t *OperationTable) Getattr(path string, st *unix.Stat_t) int {
	start := time.Now()
	return t.done("getattr", path, start, 0, t.fs.Getattr(path, st))
}

// Fgetattr fills st with the metadata of the open file behind fh. path is
// used for logging only.
func (t *OperationTable) Fgetattr(path string, st *unix.Stat_t, fh uint64) int {
	start := time.Now()
	return t.done("fgetattr", path, start, 0, t.fs.Fgetattr(passthrough.Handle(fh), st))
}

// Readdir calls fill for every entry of the directory at path, "." and
// ".." included. fill returns false to stop early, which is not an error.
func (t *OperationTable) Readdir(path string, fill func(name string, st *unix.Stat_t) bool) int {
	start := time.Now()
	err := t.fs.ReadDir(path, func(e passthrough.DirEntry) bool {
		return fill(e.Name, &e.Stat)
	})
	return t.done("readdir", path, start, 0, err)
}

// Create creates path for writing and returns a new file handle.
func (t *OperationTable) Create(path string, flags int, mode uint32) (int, uint64) {
	start := time.Now()
	h, err := t.fs.Create(path, flags, mode)
	t.metrics.SetOpenHandles(t.fs.OpenHandles())
	if rc := t.done("create", path, start, 0, err); rc != 0 {
		return rc, invalidHandle
	}
	return 0, uint64(h)
}

// Open opens path with exactly flags and returns a new file handle.
func (t *OperationTable) Open(path string, flags int) (int, uint64) {
	start := time.Now()
	h, err := t.fs.Open(path, flags)
	t.metrics.SetOpenHandles(t.fs.OpenHandles())
	if rc := t.done("open", path, start, 0, err); rc != 0 {
		return rc, invalidHandle
	}
	return 0, uint64(h)
}

// Read reads into buf at off and returns the number of bytes read.
func (t *OperationTable) Read(path string, buf []byte, off int64, fh uint64) int {
	start := time.Now()
	n, err := t.fs.Read(passthrough.Handle(fh), buf, off)
	if rc := t.done("read", path, start, n, err); rc != 0 {
		return rc
	}
	return n
}

// Write writes all of data at off and returns len(data).
func (t *OperationTable) Write(path string, data []byte, off int64, fh uint64) int {
	start := time.Now()
	n, err := t.fs.Write(passthrough.Handle(fh), data, off)
	if rc := t.done("write", path, start, n, err); rc != 0 {
		return rc
	}
	return n
}

// Unlink removes the file at path.
func (t *OperationTable) Unlink(path string) int {
	start := time.Now()
	return t.done("unlink", path, start, 0, t.fs.Unlink(path))
}

// Rename renames from to to. Non-zero flags return -EINVAL.
func (t *OperationTable) Rename(from, to string, flags uint32) int {
	start := time.Now()
	return t.done("rename", from, start, 0, t.fs.Rename(from, to, flags))
}

// Release closes the session behind fh.
func (t *OperationTable) Release(path string, fh uint64) int {
	start := time.Now()
	err := t.fs.Release(passthrough.Handle(fh))
	t.metrics.SetOpenHandles(t.fs.OpenHandles())
	return t.done("release", path, start, 0, err)
}

// Mkdir creates a directory.
func (t *OperationTable) Mkdir(path string, mode uint32) int {
	start := time.Now()
	return t.done("mkdir", path, start, 0, t.fs.Mkdir(path, mode))
}

// Rmdir removes an empty directory.
func (t *OperationTable) Rmdir(path string) int {
	start := time.Now()
	return t.done("rmdir", path, start, 0, t.fs.Rmdir(path))
}

// Chmod changes permission bits.
func (t *OperationTable) Chmod(path string, mode uint32) int {
	start := time.Now()
	return t.done("chmod", path, start, 0, t.fs.Chmod(path, mode))
}

// Truncate sets the size of the file at path.
func (t *OperationTable) Truncate(path string, size int64) int {
	start := time.Now()
	return t.done("truncate", path, start, 0, t.fs.Truncate(path, size))
}

// Ftruncate sets the size of the open file behind fh.
func (t *OperationTable) Ftruncate(path string, size int64, fh uint64) int {
	start := time.Now()
	return t.done("ftruncate", path, start, 0, t.fs.Ftruncate(passthrough.Handle(fh), size))
}

// Utimens sets access and modification times. A nil times slice sets both
// to the current time.
func (t *OperationTable) Utimens(path string, times []unix.Timespec) int {
	start := time.Now()

	atime := unix.Timespec{Nsec: unix.UTIME_NOW}
	mtime := unix.Timespec{Nsec: unix.UTIME_NOW}
	switch len(times) {
	case 0:
	case 2:
		atime, mtime = times[0], times[1]
	default:
		return t.done("utimens", path, start, 0, syscall.EINVAL)
	}

	return t.done("utimens", path, start, 0, t.fs.Utimens(path, atime, mtime))
}

// Statfs fills st for the filesystem holding the backend root.
func (t *OperationTable) Statfs(path string, st *unix.Statfs_t) int {
	start := time.Now()
	return t.done("statfs", path, start, 0, t.fs.Statfs(path, st))
}

// Flush is called on every close of a file descriptor referring to fh.
func (t *OperationTable) Flush(path string, fh uint64) int {
	start := time.Now()
	return t.done("flush", path, start, 0, t.fs.Flush(passthrough.Handle(fh)))
}

// Fsync flushes fh to stable storage.
func (t *OperationTable) Fsync(path string, fh uint64) int {
	start := time.Now()
	return t.done("fsync", path, start, 0, t.fs.Fsync(passthrough.Handle(fh)))
}

// invalidHandle is returned alongside an error from Create and Open.
const invalidHandle = ^uint64(0)

// done records the operation and converts err to the host return code.
func (t *OperationTable) done(op, path string, start time.Time, size int, err error) int {
	errno := fserrors.Errno(err)
	t.metrics.RecordOperation(op, time.Since(start), int64(size), errno)

	if errno == 0 {
		return 0
	}
	t.logger.Debug("operation failed", map[string]interface{}{
		"operation": op,
		"path":      path,
		"errno":     errno.Error(),
	})
	return -int(errno)
}
