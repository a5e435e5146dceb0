package fuse

import (
	"context"
	"syscall"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"
)

// Node is one entry of the mounted tree. Nodes carry no state of their own
// beyond the inode; every request is resolved to a virtual path and sent
// through the OperationTable.
type Node struct {
	fs.Inode

	table *OperationTable
}

var (
	_ fs.NodeGetattrer = (*Node)(nil)
	_ fs.NodeLookuper  = (*Node)(nil)
	_ fs.NodeReaddirer = (*Node)(nil)
	_ fs.NodeCreater   = (*Node)(nil)
	_ fs.NodeOpener    = (*Node)(nil)
	_ fs.NodeUnlinker  = (*Node)(nil)
	_ fs.NodeRenamer   = (*Node)(nil)
	_ fs.NodeMkdirer   = (*Node)(nil)
	_ fs.NodeRmdirer   = (*Node)(nil)
	_ fs.NodeSetattrer = (*Node)(nil)
	_ fs.NodeStatfser  = (*Node)(nil)
	_ fs.NodeOnAdder   = (*Node)(nil)
)

// NewRoot returns the root node of a tree served by table.
func NewRoot(table *OperationTable) fs.InodeEmbedder {
	return &Node{table: table}
}

// OnAdd is called once, when the root is attached to a mounted server.
func (n *Node) OnAdd(ctx context.Context) {
	if n.IsRoot() {
		n.table.Init()
	}
}

// path returns the virtual path of n, "/" for the root.
func (n *Node) path() string {
	return "/" + n.Path(n.Root())
}

func (n *Node) childPath(name string) string {
	p := n.path()
	if p == "/" {
		return p + name
	}
	return p + "/" + name
}

func (n *Node) newChild(ctx context.Context, st *unix.Stat_t, out *fuse.EntryOut) *fs.Inode {
	fillAttr(st, &out.Attr)
	return n.NewInode(ctx, &Node{table: n.table}, stableAttr(st))
}

// lookupChild stats the child at p and builds its inode.
func (n *Node) lookupChild(ctx context.Context, p string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	var st unix.Stat_t
	if rc := n.table.Getattr(p, &st); rc != 0 {
		return nil, errnoOf(rc)
	}
	return n.newChild(ctx, &st, out), 0
}

func (n *Node) Lookup(ctx context.Context, name string, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	return n.lookupChild(ctx, n.childPath(name), out)
}

// Getattr prefers the open session when the kernel supplies one, so fstat
// keeps working on a file that has since been unlinked.
func (n *Node) Getattr(ctx context.Context, f fs.FileHandle, out *fuse.AttrOut) syscall.Errno {
	var st unix.Stat_t
	var rc int
	if fh, ok := f.(*fileHandle); ok {
		rc = n.table.Fgetattr(fh.path, &st, fh.fh)
	} else {
		rc = n.table.Getattr(n.path(), &st)
	}
	if rc != 0 {
		return errnoOf(rc)
	}
	fillAttr(&st, &out.Attr)
	return 0
}

// Readdir lists the directory in one pass. The kernel synthesizes "." and
// ".." itself, so the backend's own dot entries are dropped here.
func (n *Node) Readdir(ctx context.Context) (fs.DirStream, syscall.Errno) {
	var entries []fuse.DirEntry
	rc := n.table.Readdir(n.path(), func(name string, st *unix.Stat_t) bool {
		if name == "." || name == ".." {
			return true
		}
		entries = append(entries, fuse.DirEntry{
			Name: name,
			Mode: uint32(st.Mode) & syscall.S_IFMT,
			Ino:  stableAttr(st).Ino,
		})
		return true
	})
	if rc != 0 {
		return nil, errnoOf(rc)
	}
	return fs.NewListDirStream(entries), 0
}

func (n *Node) Create(ctx context.Context, name string, flags uint32, mode uint32, out *fuse.EntryOut) (*fs.Inode, fs.FileHandle, uint32, syscall.Errno) {
	p := n.childPath(name)

	rc, fh := n.table.Create(p, int(flags), mode)
	if rc != 0 {
		return nil, nil, 0, errnoOf(rc)
	}

	var st unix.Stat_t
	if rc := n.table.Getattr(p, &st); rc != 0 {
		n.table.Release(p, fh)
		return nil, nil, 0, errnoOf(rc)
	}

	return n.newChild(ctx, &st, out), &fileHandle{table: n.table, path: p, fh: fh}, 0, 0
}

func (n *Node) Open(ctx context.Context, flags uint32) (fs.FileHandle, uint32, syscall.Errno) {
	p := n.path()
	rc, fh := n.table.Open(p, int(flags))
	if rc != 0 {
		return nil, 0, errnoOf(rc)
	}
	return &fileHandle{table: n.table, path: p, fh: fh}, 0, 0
}

func (n *Node) Unlink(ctx context.Context, name string) syscall.Errno {
	return errnoOf(n.table.Unlink(n.childPath(name)))
}

func (n *Node) Rename(ctx context.Context, name string, newParent fs.InodeEmbedder, newName string, flags uint32) syscall.Errno {
	parent, ok := newParent.(*Node)
	if !ok {
		return syscall.EXDEV
	}
	return errnoOf(n.table.Rename(n.childPath(name), parent.childPath(newName), flags))
}

func (n *Node) Mkdir(ctx context.Context, name string, mode uint32, out *fuse.EntryOut) (*fs.Inode, syscall.Errno) {
	p := n.childPath(name)
	if rc := n.table.Mkdir(p, mode); rc != 0 {
		return nil, errnoOf(rc)
	}
	return n.lookupChild(ctx, p, out)
}

func (n *Node) Rmdir(ctx context.Context, name string) syscall.Errno {
	return errnoOf(n.table.Rmdir(n.childPath(name)))
}

// Setattr maps attribute changes onto chmod, truncate and utimens, in that
// order, stopping at the first failure. Size changes use the open session
// when there is one. Ownership changes are not supported.
func (n *Node) Setattr(ctx context.Context, f fs.FileHandle, in *fuse.SetAttrIn, out *fuse.AttrOut) syscall.Errno {
	if in.Valid&(fuse.FATTR_UID|fuse.FATTR_GID) != 0 {
		return syscall.ENOTSUP
	}

	if in.Valid&fuse.FATTR_MODE != 0 {
		if rc := n.table.Chmod(n.path(), in.Mode&0o7777); rc != 0 {
			return errnoOf(rc)
		}
	}

	if in.Valid&fuse.FATTR_SIZE != 0 {
		var rc int
		if fh, ok := f.(*fileHandle); ok {
			rc = n.table.Ftruncate(fh.path, int64(in.Size), fh.fh)
		} else {
			rc = n.table.Truncate(n.path(), int64(in.Size))
		}
		if rc != 0 {
			return errnoOf(rc)
		}
	}

	if in.Valid&(fuse.FATTR_ATIME|fuse.FATTR_MTIME) != 0 {
		atime := setattrTime(in.Valid, fuse.FATTR_ATIME, fuse.FATTR_ATIME_NOW, in.Atime, in.Atimensec)
		mtime := setattrTime(in.Valid, fuse.FATTR_MTIME, fuse.FATTR_MTIME_NOW, in.Mtime, in.Mtimensec)
		if rc := n.table.Utimens(n.path(), []unix.Timespec{atime, mtime}); rc != 0 {
			return errnoOf(rc)
		}
	}

	return n.Getattr(ctx, f, out)
}

// setattrTime converts one timestamp of a setattr request, leaving it
// untouched when the request does not set it.
func setattrTime(valid, setBit, nowBit uint32, sec uint64, nsec uint32) unix.Timespec {
	switch {
	case valid&setBit == 0:
		return unix.Timespec{Nsec: unix.UTIME_OMIT}
	case valid&nowBit != 0:
		return unix.Timespec{Nsec: unix.UTIME_NOW}
	default:
		return unix.NsecToTimespec(time.Unix(int64(sec), int64(nsec)).UnixNano())
	}
}

func (n *Node) Statfs(ctx context.Context, out *fuse.StatfsOut) syscall.Errno {
	var st unix.Statfs_t
	if rc := n.table.Statfs(n.path(), &st); rc != 0 {
		return errnoOf(rc)
	}
	fillStatfs(&st, out)
	return 0
}

// fileHandle is the go-fuse view of one open session.
type fileHandle struct {
	table *OperationTable
	// path is the virtual path at open time, used for logging only; the
	// session keeps working after the file is renamed.
	path string
	fh   uint64
}

var (
	_ fs.FileReader   = (*fileHandle)(nil)
	_ fs.FileWriter   = (*fileHandle)(nil)
	_ fs.FileFlusher  = (*fileHandle)(nil)
	_ fs.FileFsyncer  = (*fileHandle)(nil)
	_ fs.FileReleaser = (*fileHandle)(nil)
)

func (f *fileHandle) Read(ctx context.Context, dest []byte, off int64) (fuse.ReadResult, syscall.Errno) {
	n := f.table.Read(f.path, dest, off, f.fh)
	if n < 0 {
		return nil, errnoOf(n)
	}
	return fuse.ReadResultData(dest[:n]), 0
}

func (f *fileHandle) Write(ctx context.Context, data []byte, off int64) (uint32, syscall.Errno) {
	n := f.table.Write(f.path, data, off, f.fh)
	if n < 0 {
		return 0, errnoOf(n)
	}
	return uint32(n), 0
}

func (f *fileHandle) Flush(ctx context.Context) syscall.Errno {
	return errnoOf(f.table.Flush(f.path, f.fh))
}

func (f *fileHandle) Fsync(ctx context.Context, flags uint32) syscall.Errno {
	return errnoOf(f.table.Fsync(f.path, f.fh))
}

func (f *fileHandle) Release(ctx context.Context) syscall.Errno {
	return errnoOf(f.table.Release(f.path, f.fh))
}

// errnoOf converts an OperationTable return code to a go-fuse status.
func errnoOf(rc int) syscall.Errno {
	if rc >= 0 {
		return 0
	}
	return syscall.Errno(-rc)
}
