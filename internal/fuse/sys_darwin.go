//go:build darwin

package fuse

import "golang.org/x/sys/unix"

func statTimes(st *unix.Stat_t) (atime, mtime, ctime unix.Timespec) {
	return st.Atimespec, st.Mtimespec, st.Ctimespec
}

func statfsFields(st *unix.Statfs_t) statfsInfo {
	return statfsInfo{
		bsize:   uint64(st.Bsize),
		frsize:  uint64(st.Bsize),
		blocks:  st.Blocks,
		bfree:   st.Bfree,
		bavail:  st.Bavail,
		files:   st.Files,
		ffree:   st.Ffree,
		namelen: 255,
	}
}

func forceUnmount(mountPoint string) error {
	return unix.Unmount(mountPoint, unix.MNT_FORCE)
}
