package passthrough

import (
	"errors"

	"golang.org/x/sys/unix"

	fserrors "github.com/objectfs/passthroughfs/pkg/errors"
)

// Read issues one positioned read into buf at off. A short count, including
// zero at end of file, is not an error.
func (fs *FileSystem) Read(h Handle, buf []byte, off int64) (int, error) {
	s, err := fs.acquire("read", h)
	if err != nil {
		return 0, err
	}
	defer s.mu.RUnlock()

	n, err := fs.backend.Pread(s.fd, buf, off)
	if err != nil {
		return 0, fserrors.FromSyscall("read", s.path, err)
	}
	return n, nil
}

// Write writes all of data at off, or fails. Partial backend writes are
// continued from where they stopped and EINTR repeats the same write; any
// other error fails the whole call with nothing reported written.
func (fs *FileSystem) Write(h Handle, data []byte, off int64) (int, error) {
	s, err := fs.acquire("write", h)
	if err != nil {
		return 0, err
	}
	defer s.mu.RUnlock()

	remaining := data
	for len(remaining) > 0 {
		n, err := fs.backend.Pwrite(s.fd, remaining, off)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return 0, fserrors.FromSyscall("write", s.path, err)
		}
		// remaining must shrink on every iteration.
		if n <= 0 || n > len(remaining) {
			return 0, fserrors.NewError(fserrors.ErrCodeIO, "backend write made no progress").
				WithComponent("passthrough").
				WithOperation("write").
				WithPath(s.path)
		}
		remaining = remaining[n:]
		off += int64(n)
	}
	return len(data), nil
}

// Flush reports errors deferred by the backend until close (NFS, for
// example) by closing a duplicate of the session's descriptor. The session
// stays open.
func (fs *FileSystem) Flush(h Handle) error {
	s, err := fs.acquire("flush", h)
	if err != nil {
		return err
	}
	defer s.mu.RUnlock()

	dup, err := fs.backend.Dup(s.fd)
	if err != nil {
		return fserrors.FromSyscall("flush", s.path, err)
	}
	return fserrors.FromSyscall("flush", s.path, fs.backend.Close(dup))
}

// Fsync flushes the session's descriptor to stable storage.
func (fs *FileSystem) Fsync(h Handle) error {
	s, err := fs.acquire("fsync", h)
	if err != nil {
		return err
	}
	defer s.mu.RUnlock()

	return fserrors.FromSyscall("fsync", s.path, fs.backend.Fsync(s.fd))
}

// Fgetattr fills st with the metadata of the file behind h. It keeps
// working after the file has been unlinked or renamed.
func (fs *FileSystem) Fgetattr(h Handle, st *unix.Stat_t) error {
	s, err := fs.acquire("fgetattr", h)
	if err != nil {
		return err
	}
	defer s.mu.RUnlock()

	return fserrors.FromSyscall("fgetattr", s.path, fs.backend.Fstat(s.fd, st))
}

// Ftruncate sets the size of the file behind h.
func (fs *FileSystem) Ftruncate(h Handle, size int64) error {
	s, err := fs.acquire("ftruncate", h)
	if err != nil {
		return err
	}
	defer s.mu.RUnlock()

	return fserrors.FromSyscall("ftruncate", s.path, fs.backend.Ftruncate(s.fd, size))
}
