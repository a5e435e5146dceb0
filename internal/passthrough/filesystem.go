package passthrough

import (
	"golang.org/x/sys/unix"

	fserrors "github.com/objectfs/passthroughfs/pkg/errors"
)

const defaultDirBatch = 128

// Options configures a FileSystem.
type Options struct {
	// Root is the absolute backend directory projected by the filesystem.
	Root string

	// MaxPathLen bounds translated backend paths, terminating NUL included.
	// Zero selects DefaultMaxPathLen.
	MaxPathLen int

	// Backend receives every forwarded call. Nil selects OSBackend.
	Backend Backend

	// DirBatch is how many names ReadDir pulls from the backend at a time.
	DirBatch int
}

// FileSystem forwards filesystem operations on virtual paths to the backend.
type FileSystem struct {
	translator *Translator
	backend    Backend
	handles    *handleTable
	dirBatch   int
}

// New creates a FileSystem rooted at opts.Root.
func New(opts Options) (*FileSystem, error) {
	translator, err := NewTranslator(opts.Root, opts.MaxPathLen)
	if err != nil {
		return nil, err
	}

	backend := opts.Backend
	if backend == nil {
		backend = OSBackend()
	}

	dirBatch := opts.DirBatch
	if dirBatch <= 0 {
		dirBatch = defaultDirBatch
	}

	return &FileSystem{
		translator: translator,
		backend:    backend,
		handles:    newHandleTable(),
		dirBatch:   dirBatch,
	}, nil
}

// Root returns the backend root.
func (fs *FileSystem) Root() string {
	return fs.translator.Root()
}

// Translate exposes the path translation used by every operation.
func (fs *FileSystem) Translate(path string) (string, error) {
	return fs.translator.Translate(path)
}

// OpenHandles returns the number of sessions that have not been released.
func (fs *FileSystem) OpenHandles() int {
	return fs.handles.len()
}

// Create creates (or opens for writing) the file at path and starts a
// session on it. The backend sees O_CREAT|O_WRONLY, plus O_APPEND when
// flags asks for it; other flags are not forwarded.
func (fs *FileSystem) Create(path string, flags int, mode uint32) (Handle, error) {
	backendPath, err := fs.translator.Translate(path)
	if err != nil {
		return 0, err
	}

	openFlags := unix.O_CREAT | unix.O_WRONLY
	if flags&unix.O_APPEND != 0 {
		openFlags |= unix.O_APPEND
	}

	fd, err := fs.backend.Open(backendPath, openFlags, mode)
	if err != nil {
		return 0, fserrors.FromSyscall("create", path, err)
	}
	return fs.handles.bind(path, fd), nil
}

// Open opens the file at path with exactly the given flags and starts a
// session on it.
func (fs *FileSystem) Open(path string, flags int) (Handle, error) {
	backendPath, err := fs.translator.Translate(path)
	if err != nil {
		return 0, err
	}

	fd, err := fs.backend.Open(backendPath, flags, 0)
	if err != nil {
		return 0, fserrors.FromSyscall("open", path, err)
	}
	return fs.handles.bind(path, fd), nil
}

// Release ends a session and closes its descriptor. The handle is retired
// even when close reports an error. Releasing an unknown or already
// released handle fails with EBADF and touches no descriptor.
func (fs *FileSystem) Release(h Handle) error {
	s, ok := fs.handles.remove(h)
	if !ok {
		return badHandle("release")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed || s.fd < 0 {
		return nil
	}
	fd := s.fd
	s.closed = true
	s.fd = -1

	if err := fs.backend.Close(fd); err != nil {
		return fserrors.FromSyscall("release", s.path, err)
	}
	return nil
}

// acquire returns the live session for h with its lock held shared. The
// caller must call s.mu.RUnlock.
func (fs *FileSystem) acquire(op string, h Handle) (*session, error) {
	s, ok := fs.handles.lookup(h)
	if !ok {
		return nil, badHandle(op)
	}
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return nil, badHandle(op)
	}
	return s, nil
}

func badHandle(op string) error {
	return fserrors.NewError(fserrors.ErrCodeBadHandle, "unknown or released file handle").
		WithComponent("passthrough").
		WithOperation(op)
}
