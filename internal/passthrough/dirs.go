package passthrough

import (
	"errors"
	"io"

	"golang.org/x/sys/unix"

	fserrors "github.com/objectfs/passthroughfs/pkg/errors"
)

// DirEntry is one directory entry with its lstat metadata.
type DirEntry struct {
	Name string
	Stat unix.Stat_t
}

// ReadDir lists the directory at path, calling fill for each entry in
// backend order, starting with "." and "..". Entries whose metadata cannot
// be resolved are skipped. Enumeration stops without error when fill
// returns false. Each call reads the backend directory from the start.
func (fs *FileSystem) ReadDir(path string, fill func(DirEntry) bool) error {
	backendPath, err := fs.translator.Translate(path)
	if err != nil {
		return err
	}

	dir, err := fs.backend.OpenDir(backendPath)
	if err != nil {
		return fserrors.FromSyscall("readdir", path, err)
	}
	defer dir.Close()

	emit := func(name string) bool {
		child, ok := fs.translator.child(backendPath, name)
		if !ok {
			return true
		}
		var entry DirEntry
		if err := fs.backend.Lstat(child, &entry.Stat); err != nil {
			return true
		}
		entry.Name = name
		return fill(entry)
	}

	for _, name := range [...]string{".", ".."} {
		if !emit(name) {
			return nil
		}
	}

	for {
		names, err := dir.ReadNames(fs.dirBatch)
		for _, name := range names {
			if !emit(name) {
				return nil
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fserrors.FromSyscall("readdir", path, err)
		}
		if len(names) == 0 {
			return nil
		}
	}
}
