package fuse

import (
	"syscall"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"golang.org/x/sys/unix"
)

// statfsInfo is the platform-neutral subset of statfs results the hosts
// report.
type statfsInfo struct {
	bsize, frsize         uint64
	blocks, bfree, bavail uint64
	files, ffree          uint64
	namelen               uint64
}

// fillAttr copies backend lstat metadata into a go-fuse attribute block.
func fillAttr(st *unix.Stat_t, out *fuse.Attr) {
	atime, mtime, ctime := statTimes(st)

	out.Ino = st.Ino
	out.Size = uint64(st.Size)
	out.Blocks = uint64(st.Blocks)
	out.Mode = uint32(st.Mode)
	out.Nlink = uint32(st.Nlink)
	out.Owner = fuse.Owner{Uid: st.Uid, Gid: st.Gid}
	out.Rdev = uint32(st.Rdev)
	out.Blksize = uint32(st.Blksize)
	out.Atime, out.Atimensec = uint64(atime.Sec), uint32(atime.Nsec)
	out.Mtime, out.Mtimensec = uint64(mtime.Sec), uint32(mtime.Nsec)
	out.Ctime, out.Ctimensec = uint64(ctime.Sec), uint32(ctime.Nsec)
}

// stableAttr derives the kernel inode identity from backend metadata. The
// device number is folded in so that entries from different backend
// filesystems below the root do not collide.
func stableAttr(st *unix.Stat_t) fs.StableAttr {
	dev := uint64(st.Dev)
	swapped := (dev << 32) | (dev >> 32)
	return fs.StableAttr{
		Mode: uint32(st.Mode) & syscall.S_IFMT,
		Gen:  1,
		Ino:  swapped ^ st.Ino,
	}
}

func fillStatfs(st *unix.Statfs_t, out *fuse.StatfsOut) {
	info := statfsFields(st)
	out.Blocks = info.blocks
	out.Bfree = info.bfree
	out.Bavail = info.bavail
	out.Files = info.files
	out.Ffree = info.ffree
	out.Bsize = uint32(info.bsize)
	out.Frsize = uint32(info.frsize)
	out.NameLen = uint32(info.namelen)
}
