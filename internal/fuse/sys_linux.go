//go:build linux

package fuse

import "golang.org/x/sys/unix"

func statTimes(st *unix.Stat_t) (atime, mtime, ctime unix.Timespec) {
	return st.Atim, st.Mtim, st.Ctim
}

func statfsFields(st *unix.Statfs_t) statfsInfo {
	return statfsInfo{
		bsize:   uint64(st.Bsize),
		frsize:  uint64(st.Frsize),
		blocks:  st.Blocks,
		bfree:   st.Bfree,
		bavail:  st.Bavail,
		files:   st.Files,
		ffree:   st.Ffree,
		namelen: uint64(st.Namelen),
	}
}

// forceUnmount detaches the mount even while it is busy.
func forceUnmount(mountPoint string) error {
	return unix.Unmount(mountPoint, unix.MNT_DETACH)
}
