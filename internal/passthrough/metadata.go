package passthrough

import (
	"golang.org/x/sys/unix"

	fserrors "github.com/objectfs/passthroughfs/pkg/errors"
)

// Getattr fills st with the lstat metadata of path.
func (fs *FileSystem) Getattr(path string, st *unix.Stat_t) error {
	return fs.forward("getattr", path, func(p string) error {
		return fs.backend.Lstat(p, st)
	})
}

// Statfs fills st with the statistics of the filesystem holding path.
func (fs *FileSystem) Statfs(path string, st *unix.Statfs_t) error {
	return fs.forward("statfs", path, func(p string) error {
		return fs.backend.Statfs(p, st)
	})
}

// Chmod changes the permission bits of path.
func (fs *FileSystem) Chmod(path string, mode uint32) error {
	return fs.forward("chmod", path, func(p string) error {
		return fs.backend.Chmod(p, mode)
	})
}

// Truncate sets the size of the file at path.
func (fs *FileSystem) Truncate(path string, size int64) error {
	return fs.forward("truncate", path, func(p string) error {
		return fs.backend.Truncate(p, size)
	})
}

// Utimens sets the access and modification times of path. Either time
// may be unix.UTIME_NOW or unix.UTIME_OMIT in its Nsec field.
func (fs *FileSystem) Utimens(path string, atime, mtime unix.Timespec) error {
	return fs.forward("utimens", path, func(p string) error {
		return fs.backend.Utimens(p, []unix.Timespec{atime, mtime})
	})
}

// Mkdir creates a directory.
func (fs *FileSystem) Mkdir(path string, mode uint32) error {
	return fs.forward("mkdir", path, func(p string) error {
		return fs.backend.Mkdir(p, mode)
	})
}

// Rmdir removes an empty directory.
func (fs *FileSystem) Rmdir(path string) error {
	return fs.forward("rmdir", path, fs.backend.Rmdir)
}

// Unlink removes a file.
func (fs *FileSystem) Unlink(path string) error {
	return fs.forward("unlink", path, fs.backend.Unlink)
}

// Rename atomically renames from to to on the backend. Rename flags
// (RENAME_NOREPLACE, RENAME_EXCHANGE, ...) are not supported: any non-zero
// flags fail with EINVAL before either path is touched.
func (fs *FileSystem) Rename(from, to string, flags uint32) error {
	if flags != 0 {
		return fserrors.NewError(fserrors.ErrCodeInvalidArgument, "rename flags are not supported").
			WithComponent("passthrough").
			WithOperation("rename").
			WithPath(from)
	}

	fromPath, err := fs.translator.Translate(from)
	if err != nil {
		return err
	}
	toPath, err := fs.translator.Translate(to)
	if err != nil {
		return err
	}

	return fserrors.FromSyscall("rename", from, fs.backend.Rename(fromPath, toPath))
}

// forward translates path and runs a single backend call on the result.
func (fs *FileSystem) forward(op, path string, call func(backendPath string) error) error {
	backendPath, err := fs.translator.Translate(path)
	if err != nil {
		return err
	}
	return fserrors.FromSyscall(op, path, call(backendPath))
}
