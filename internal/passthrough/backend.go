package passthrough

import (
	"os"

	"golang.org/x/sys/unix"
)

// Backend is the set of calls the filesystem forwards to. Each method is a
// single backend system call; errors carry the backend errno.
type Backend interface {
	Open(path string, flags int, mode uint32) (int, error)
	Close(fd int) error
	Dup(fd int) (int, error)
	Pread(fd int, p []byte, off int64) (int, error)
	Pwrite(fd int, p []byte, off int64) (int, error)
	Fsync(fd int) error
	Fstat(fd int, st *unix.Stat_t) error
	Ftruncate(fd int, size int64) error

	Lstat(path string, st *unix.Stat_t) error
	OpenDir(path string) (DirStream, error)
	Statfs(path string, st *unix.Statfs_t) error

	Chmod(path string, mode uint32) error
	Truncate(path string, size int64) error
	Utimens(path string, times []unix.Timespec) error
	Mkdir(path string, mode uint32) error
	Rmdir(path string) error
	Unlink(path string) error
	Rename(from, to string) error
}

// DirStream is an open backend directory. ReadNames returns up to n entry
// names, never "." or "..", and io.EOF once the directory is exhausted.
type DirStream interface {
	ReadNames(n int) ([]string, error)
	Close() error
}

// OSBackend returns the Backend that talks to the local kernel.
func OSBackend() Backend {
	return osBackend{}
}

type osBackend struct{}

func (osBackend) Open(path string, flags int, mode uint32) (int, error) {
	return unix.Open(path, flags, mode)
}

func (osBackend) Close(fd int) error {
	return unix.Close(fd)
}

func (osBackend) Dup(fd int) (int, error) {
	return unix.Dup(fd)
}

func (osBackend) Fstat(fd int, st *unix.Stat_t) error {
	return unix.Fstat(fd, st)
}

func (osBackend) Ftruncate(fd int, size int64) error {
	return unix.Ftruncate(fd, size)
}

func (osBackend) Pread(fd int, p []byte, off int64) (int, error) {
	return unix.Pread(fd, p, off)
}

func (osBackend) Pwrite(fd int, p []byte, off int64) (int, error) {
	return unix.Pwrite(fd, p, off)
}

func (osBackend) Fsync(fd int) error {
	return unix.Fsync(fd)
}

func (osBackend) Lstat(path string, st *unix.Stat_t) error {
	return unix.Lstat(path, st)
}

func (osBackend) OpenDir(path string) (DirStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if !info.IsDir() {
		_ = f.Close()
		return nil, unix.ENOTDIR
	}
	return osDirStream{f: f}, nil
}

func (osBackend) Statfs(path string, st *unix.Statfs_t) error {
	return unix.Statfs(path, st)
}

func (osBackend) Chmod(path string, mode uint32) error {
	return unix.Chmod(path, mode)
}

func (osBackend) Truncate(path string, size int64) error {
	return unix.Truncate(path, size)
}

func (osBackend) Utimens(path string, times []unix.Timespec) error {
	return unix.UtimesNanoAt(unix.AT_FDCWD, path, times, 0)
}

func (osBackend) Mkdir(path string, mode uint32) error {
	return unix.Mkdir(path, mode)
}

func (osBackend) Rmdir(path string) error {
	return unix.Rmdir(path)
}

func (osBackend) Unlink(path string) error {
	return unix.Unlink(path)
}

func (osBackend) Rename(from, to string) error {
	return unix.Rename(from, to)
}

type osDirStream struct {
	f *os.File
}

func (d osDirStream) ReadNames(n int) ([]string, error) {
	return d.f.Readdirnames(n)
}

func (d osDirStream) Close() error {
	return d.f.Close()
}
