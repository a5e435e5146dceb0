package passthrough

import (
	"path/filepath"
	"sync"

	"golang.org/x/sys/unix"
)

// fakeBackend wraps the OS backend, counting calls and letting tests
// replace individual calls.
type fakeBackend struct {
	Backend

	mu        sync.Mutex
	opens     int
	closes    map[int]int
	dirCloses int

	pwrite     func(fd int, p []byte, off int64) (int, error)
	brokenStat map[string]bool
	readNames  func(n int) ([]string, error)
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		Backend:    OSBackend(),
		closes:     make(map[int]int),
		brokenStat: make(map[string]bool),
	}
}

func (b *fakeBackend) Open(path string, flags int, mode uint32) (int, error) {
	fd, err := b.Backend.Open(path, flags, mode)
	if err == nil {
		b.mu.Lock()
		b.opens++
		b.mu.Unlock()
	}
	return fd, err
}

func (b *fakeBackend) Close(fd int) error {
	b.mu.Lock()
	b.closes[fd]++
	b.mu.Unlock()
	return b.Backend.Close(fd)
}

func (b *fakeBackend) Pwrite(fd int, p []byte, off int64) (int, error) {
	if b.pwrite != nil {
		return b.pwrite(fd, p, off)
	}
	return b.Backend.Pwrite(fd, p, off)
}

func (b *fakeBackend) Lstat(path string, st *unix.Stat_t) error {
	if b.brokenStat[filepath.Base(path)] {
		return unix.ENOENT
	}
	return b.Backend.Lstat(path, st)
}

func (b *fakeBackend) OpenDir(path string) (DirStream, error) {
	d, err := b.Backend.OpenDir(path)
	if err != nil {
		return nil, err
	}
	return &fakeDirStream{DirStream: d, backend: b}, nil
}

func (b *fakeBackend) totalCloses() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	total := 0
	for _, n := range b.closes {
		total += n
	}
	return total
}

type fakeDirStream struct {
	DirStream
	backend *fakeBackend
}

func (d *fakeDirStream) ReadNames(n int) ([]string, error) {
	if d.backend.readNames != nil {
		return d.backend.readNames(n)
	}
	return d.DirStream.ReadNames(n)
}

func (d *fakeDirStream) Close() error {
	d.backend.mu.Lock()
	d.backend.dirCloses++
	d.backend.mu.Unlock()
	return d.DirStream.Close()
}
