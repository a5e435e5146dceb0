package passthrough

import (
	"os"
	"path/filepath"
	"sort"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sys/unix"

	fserrors "github.com/objectfs/passthroughfs/pkg/errors"
)

// FileSystemTestSuite exercises the operation surface against a real
// temporary backend directory.
type FileSystemTestSuite struct {
	suite.Suite
	root    string
	backend *fakeBackend
	fs      *FileSystem
}

func TestFileSystem(t *testing.T) {
	suite.Run(t, new(FileSystemTestSuite))
}

func (s *FileSystemTestSuite) SetupTest() {
	s.root = s.T().TempDir()
	s.backend = newFakeBackend()

	fs, err := New(Options{Root: s.root, Backend: s.backend, DirBatch: 2})
	s.Require().NoError(err)
	s.fs = fs
}

func (s *FileSystemTestSuite) TearDownTest() {
	s.Equal(0, s.fs.OpenHandles(), "test leaked open sessions")
}

func (s *FileSystemTestSuite) writeBackendFile(name, content string) {
	full := filepath.Join(s.root, name)
	s.Require().NoError(os.MkdirAll(filepath.Dir(full), 0o755))
	s.Require().NoError(os.WriteFile(full, []byte(content), 0o644))
}

func (s *FileSystemTestSuite) readBackendFile(name string) string {
	data, err := os.ReadFile(filepath.Join(s.root, name))
	s.Require().NoError(err)
	return string(data)
}

func (s *FileSystemTestSuite) listNames(path string) []string {
	var names []string
	err := s.fs.ReadDir(path, func(e DirEntry) bool {
		names = append(names, e.Name)
		return true
	})
	s.Require().NoError(err)
	sort.Strings(names)
	return names
}

func (s *FileSystemTestSuite) TestRoot() {
	s.Equal(filepath.Clean(s.root), s.fs.Root())

	p, err := s.fs.Translate("/x")
	s.Require().NoError(err)
	s.Equal(filepath.Join(s.root, "x"), p)
}

func (s *FileSystemTestSuite) TestReadWriteRoundTrip() {
	t := s.T()
	payload := []byte("hello passthrough")

	h, err := s.fs.Create("/test.txt", unix.O_WRONLY, 0o644)
	require.NoError(t, err)

	n, err := s.fs.Write(h, payload, 0)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	require.NoError(t, s.fs.Release(h))

	h, err = s.fs.Open("/test.txt", unix.O_RDONLY)
	require.NoError(t, err)
	defer s.fs.Release(h)

	buf := make([]byte, len(payload))
	n, err = s.fs.Read(h, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, len(payload), n)
	assert.Equal(t, payload, buf)
}

func (s *FileSystemTestSuite) TestWriteAtOffset() {
	t := s.T()
	s.writeBackendFile("data.bin", "0123456789")

	h, err := s.fs.Open("/data.bin", unix.O_RDWR)
	require.NoError(t, err)

	n, err := s.fs.Write(h, []byte("abc"), 4)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, s.fs.Fsync(h))
	require.NoError(t, s.fs.Release(h))

	assert.Equal(t, "0123abc789", s.readBackendFile("data.bin"))
}

func (s *FileSystemTestSuite) TestReadAtEndOfFile() {
	t := s.T()
	s.writeBackendFile("short.txt", "abc")

	h, err := s.fs.Open("/short.txt", unix.O_RDONLY)
	require.NoError(t, err)
	defer s.fs.Release(h)

	buf := make([]byte, 16)
	n, err := s.fs.Read(h, buf, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, n, "short read is not an error")

	n, err = s.fs.Read(h, buf, 3)
	require.NoError(t, err)
	assert.Equal(t, 0, n, "end of file reads zero bytes")
}

func (s *FileSystemTestSuite) TestCreateAppend() {
	t := s.T()
	s.writeBackendFile("log.txt", "first\n")

	h, err := s.fs.Create("/log.txt", unix.O_WRONLY|unix.O_APPEND, 0o644)
	require.NoError(t, err)
	// With O_APPEND the backend ignores the offset.
	_, err = s.fs.Write(h, []byte("second\n"), 0)
	require.NoError(t, err)
	require.NoError(t, s.fs.Release(h))

	assert.Equal(t, "first\nsecond\n", s.readBackendFile("log.txt"))
}

func (s *FileSystemTestSuite) TestCreateIsWriteOnly() {
	t := s.T()

	h, err := s.fs.Create("/wo.txt", unix.O_RDWR, 0o644)
	require.NoError(t, err)
	defer s.fs.Release(h)

	_, err = s.fs.Read(h, make([]byte, 4), 0)
	require.Error(t, err)
	assert.Equal(t, syscall.EBADF, fserrors.Errno(err))
}

func (s *FileSystemTestSuite) TestCreateInMissingDirectory() {
	_, err := s.fs.Create("/nope/file", unix.O_WRONLY, 0o644)
	s.Require().Error(err)
	s.Equal(syscall.ENOENT, fserrors.Errno(err))
	s.Equal(0, s.fs.OpenHandles())
}

func (s *FileSystemTestSuite) TestOpenUsesRequestedFlags() {
	t := s.T()
	s.writeBackendFile("keep.txt", "content")

	h, err := s.fs.Open("/keep.txt", unix.O_WRONLY|unix.O_TRUNC)
	require.NoError(t, err)
	require.NoError(t, s.fs.Release(h))
	assert.Equal(t, "", s.readBackendFile("keep.txt"))

	_, err = s.fs.Open("/keep.txt", unix.O_WRONLY|unix.O_CREAT|unix.O_EXCL)
	require.Error(t, err)
	assert.Equal(t, syscall.EEXIST, fserrors.Errno(err))
}

func (s *FileSystemTestSuite) TestOpenMissing() {
	_, err := s.fs.Open("/missing", unix.O_RDONLY)
	s.Require().Error(err)
	s.Equal(syscall.ENOENT, fserrors.Errno(err))
}

func (s *FileSystemTestSuite) TestReleaseClosesExactlyOnce() {
	t := s.T()
	s.writeBackendFile("a.txt", "a")

	h1, err := s.fs.Create("/new.txt", unix.O_WRONLY, 0o644)
	require.NoError(t, err)
	h2, err := s.fs.Open("/a.txt", unix.O_RDONLY)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
	assert.Equal(t, 2, s.fs.OpenHandles())

	require.NoError(t, s.fs.Release(h1))
	require.NoError(t, s.fs.Release(h2))

	assert.Equal(t, 2, s.backend.opens)
	assert.Equal(t, 2, s.backend.totalCloses())
	for fd, n := range s.backend.closes {
		assert.Equal(t, 1, n, "fd %d closed %d times", fd, n)
	}
}

func (s *FileSystemTestSuite) TestUseAfterRelease() {
	t := s.T()
	s.writeBackendFile("a.txt", "abc")

	h, err := s.fs.Open("/a.txt", unix.O_RDWR)
	require.NoError(t, err)
	require.NoError(t, s.fs.Release(h))

	_, err = s.fs.Read(h, make([]byte, 3), 0)
	assert.Equal(t, syscall.EBADF, fserrors.Errno(err))

	_, err = s.fs.Write(h, []byte("x"), 0)
	assert.Equal(t, syscall.EBADF, fserrors.Errno(err))

	assert.Equal(t, syscall.EBADF, fserrors.Errno(s.fs.Fsync(h)))
	assert.Equal(t, syscall.EBADF, fserrors.Errno(s.fs.Flush(h)))
	var st unix.Stat_t
	assert.Equal(t, syscall.EBADF, fserrors.Errno(s.fs.Fgetattr(h, &st)))
	assert.Equal(t, syscall.EBADF, fserrors.Errno(s.fs.Ftruncate(h, 0)))
	assert.Equal(t, syscall.EBADF, fserrors.Errno(s.fs.Release(h)))

	// The second release must not reach the backend.
	assert.Equal(t, 1, s.backend.totalCloses())
	assert.Equal(t, "abc", s.readBackendFile("a.txt"))
}

func (s *FileSystemTestSuite) TestFlushKeepsSessionOpen() {
	t := s.T()

	h, err := s.fs.Create("/flushed.txt", unix.O_WRONLY, 0o644)
	require.NoError(t, err)

	_, err = s.fs.Write(h, []byte("one"), 0)
	require.NoError(t, err)
	require.NoError(t, s.fs.Flush(h))

	// Flush closes a duplicate, never the session's own descriptor.
	_, err = s.fs.Write(h, []byte("two"), 3)
	require.NoError(t, err)
	require.NoError(t, s.fs.Release(h))

	assert.Equal(t, "onetwo", s.readBackendFile("flushed.txt"))
	assert.Equal(t, 2, s.backend.totalCloses())
}

func (s *FileSystemTestSuite) TestSessionMetadataSurvivesUnlink() {
	t := s.T()
	s.writeBackendFile("doomed.txt", "0123456789")

	h, err := s.fs.Open("/doomed.txt", unix.O_RDWR)
	require.NoError(t, err)
	defer s.fs.Release(h)

	require.NoError(t, s.fs.Unlink("/doomed.txt"))

	var st unix.Stat_t
	assert.Equal(t, syscall.ENOENT, fserrors.Errno(s.fs.Getattr("/doomed.txt", &st)))

	require.NoError(t, s.fs.Fgetattr(h, &st))
	assert.EqualValues(t, 10, st.Size)
	assert.EqualValues(t, 0, st.Nlink)

	require.NoError(t, s.fs.Ftruncate(h, 4))
	require.NoError(t, s.fs.Fgetattr(h, &st))
	assert.EqualValues(t, 4, st.Size)

	buf := make([]byte, 10)
	n, err := s.fs.Read(h, buf, 0)
	require.NoError(t, err)
	assert.Equal(t, "0123", string(buf[:n]))
}

func (s *FileSystemTestSuite) TestHandlesAreNotReused() {
	t := s.T()
	s.writeBackendFile("a.txt", "abc")

	seen := make(map[Handle]bool)
	for i := 0; i < 5; i++ {
		h, err := s.fs.Open("/a.txt", unix.O_RDONLY)
		require.NoError(t, err)
		assert.NotZero(t, h)
		assert.False(t, seen[h], "handle %d reused", h)
		seen[h] = true
		require.NoError(t, s.fs.Release(h))
	}
}

func (s *FileSystemTestSuite) TestGetattr() {
	t := s.T()
	s.writeBackendFile("f.txt", "12345")

	var st unix.Stat_t
	require.NoError(t, s.fs.Getattr("/f.txt", &st))
	assert.Equal(t, int64(5), st.Size)
	assert.Equal(t, uint32(unix.S_IFREG), st.Mode&unix.S_IFMT)

	require.NoError(t, s.fs.Getattr("/", &st))
	assert.Equal(t, uint32(unix.S_IFDIR), st.Mode&unix.S_IFMT)

	err := s.fs.Getattr("/missing", &st)
	assert.Equal(t, syscall.ENOENT, fserrors.Errno(err))
}

func (s *FileSystemTestSuite) TestGetattrDoesNotFollowSymlinks() {
	t := s.T()
	require.NoError(t, os.Symlink("/does/not/exist", filepath.Join(s.root, "dangling")))

	var st unix.Stat_t
	require.NoError(t, s.fs.Getattr("/dangling", &st))
	assert.Equal(t, uint32(unix.S_IFLNK), st.Mode&unix.S_IFMT)
}

func (s *FileSystemTestSuite) TestReadDirCompleteness() {
	t := s.T()
	require.NoError(t, s.fs.Mkdir("/dir", 0o755))
	for _, name := range []string{"a", "b", "c"} {
		h, err := s.fs.Create("/dir/"+name, unix.O_WRONLY, 0o644)
		require.NoError(t, err)
		require.NoError(t, s.fs.Release(h))
	}

	assert.Equal(t, []string{".", "..", "a", "b", "c"}, s.listNames("/dir"))
	assert.Equal(t, 1, s.backend.dirCloses)
}

func (s *FileSystemTestSuite) TestReadDirMetadata() {
	t := s.T()
	s.writeBackendFile("d/file", "xyz")
	require.NoError(t, os.Mkdir(filepath.Join(s.root, "d", "sub"), 0o755))

	entries := make(map[string]unix.Stat_t)
	require.NoError(t, s.fs.ReadDir("/d", func(e DirEntry) bool {
		entries[e.Name] = e.Stat
		return true
	}))

	assert.Equal(t, int64(3), entries["file"].Size)
	assert.Equal(t, uint32(unix.S_IFREG), entries["file"].Mode&unix.S_IFMT)
	assert.Equal(t, uint32(unix.S_IFDIR), entries["sub"].Mode&unix.S_IFMT)
	assert.Equal(t, uint32(unix.S_IFDIR), entries["."].Mode&unix.S_IFMT)
}

func (s *FileSystemTestSuite) TestReadDirRestartsFromScratch() {
	s.writeBackendFile("d/one", "")
	first := s.listNames("/d")
	second := s.listNames("/d")
	s.Equal(first, second)
	s.Equal(2, s.backend.dirCloses)
}

func (s *FileSystemTestSuite) TestReadDirSkipsBrokenEntries() {
	for _, name := range []string{"good1", "broken", "good2"} {
		s.writeBackendFile("d/"+name, "")
	}
	s.backend.brokenStat["broken"] = true

	s.Equal([]string{".", "..", "good1", "good2"}, s.listNames("/d"))
}

func (s *FileSystemTestSuite) TestReadDirDanglingSymlinkIsListed() {
	s.Require().NoError(os.Mkdir(filepath.Join(s.root, "d"), 0o755))
	s.Require().NoError(os.Symlink("/nowhere", filepath.Join(s.root, "d", "link")))

	s.Contains(s.listNames("/d"), "link")
}

func (s *FileSystemTestSuite) TestReadDirEarlyStop() {
	t := s.T()
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		s.writeBackendFile("many/"+name, "")
	}

	var got []string
	require.NoError(t, s.fs.ReadDir("/many", func(e DirEntry) bool {
		got = append(got, e.Name)
		return len(got) < 3
	}))
	assert.Len(t, got, 3)
	assert.Equal(t, 1, s.backend.dirCloses, "directory must be closed on early stop")
}

func (s *FileSystemTestSuite) TestReadDirErrors() {
	t := s.T()
	s.writeBackendFile("file.txt", "")

	err := s.fs.ReadDir("/missing", func(DirEntry) bool { return true })
	assert.Equal(t, syscall.ENOENT, fserrors.Errno(err))

	err = s.fs.ReadDir("/file.txt", func(DirEntry) bool { return true })
	assert.Equal(t, syscall.ENOTDIR, fserrors.Errno(err))
}

func (s *FileSystemTestSuite) TestReadDirBackendFailureClosesDirectory() {
	t := s.T()
	s.writeBackendFile("d/a", "")
	s.backend.readNames = func(int) ([]string, error) {
		return nil, syscall.EIO
	}

	err := s.fs.ReadDir("/d", func(DirEntry) bool { return true })
	assert.Equal(t, syscall.EIO, fserrors.Errno(err))
	assert.Equal(t, 1, s.backend.dirCloses)
}

func (s *FileSystemTestSuite) TestRename() {
	t := s.T()
	s.writeBackendFile("from.txt", "payload")

	var before unix.Stat_t
	require.NoError(t, s.fs.Getattr("/from.txt", &before))

	require.NoError(t, s.fs.Rename("/from.txt", "/to.txt", 0))

	var st unix.Stat_t
	assert.Equal(t, syscall.ENOENT, fserrors.Errno(s.fs.Getattr("/from.txt", &st)))
	require.NoError(t, s.fs.Getattr("/to.txt", &st))
	assert.Equal(t, before.Ino, st.Ino)
	assert.Equal(t, before.Size, st.Size)
	assert.Equal(t, "payload", s.readBackendFile("to.txt"))
}

func (s *FileSystemTestSuite) TestRenameWithFlagsRejected() {
	t := s.T()
	s.writeBackendFile("from.txt", "one")
	s.writeBackendFile("to.txt", "two")

	for _, flags := range []uint32{1, 2, 4} {
		err := s.fs.Rename("/from.txt", "/to.txt", flags)
		require.Error(t, err)
		assert.Equal(t, syscall.EINVAL, fserrors.Errno(err))
	}

	assert.Equal(t, "one", s.readBackendFile("from.txt"))
	assert.Equal(t, "two", s.readBackendFile("to.txt"))
}

func (s *FileSystemTestSuite) TestRenameMissing() {
	err := s.fs.Rename("/ghost", "/other", 0)
	s.Equal(syscall.ENOENT, fserrors.Errno(err))
}

func (s *FileSystemTestSuite) TestUnlink() {
	t := s.T()
	s.writeBackendFile("gone.txt", "x")

	require.NoError(t, s.fs.Unlink("/gone.txt"))
	_, err := os.Stat(filepath.Join(s.root, "gone.txt"))
	assert.True(t, os.IsNotExist(err))

	assert.Equal(t, syscall.ENOENT, fserrors.Errno(s.fs.Unlink("/gone.txt")))
}

func (s *FileSystemTestSuite) TestMkdirRmdir() {
	t := s.T()

	require.NoError(t, s.fs.Mkdir("/newdir", 0o750))
	info, err := os.Stat(filepath.Join(s.root, "newdir"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())

	assert.Equal(t, syscall.EEXIST, fserrors.Errno(s.fs.Mkdir("/newdir", 0o750)))

	s.writeBackendFile("newdir/child", "")
	assert.Equal(t, syscall.ENOTEMPTY, fserrors.Errno(s.fs.Rmdir("/newdir")))

	require.NoError(t, s.fs.Unlink("/newdir/child"))
	require.NoError(t, s.fs.Rmdir("/newdir"))
	assert.Equal(t, syscall.ENOENT, fserrors.Errno(s.fs.Rmdir("/newdir")))
}

func (s *FileSystemTestSuite) TestChmod() {
	t := s.T()
	s.writeBackendFile("mode.txt", "")

	require.NoError(t, s.fs.Chmod("/mode.txt", 0o600))
	info, err := os.Stat(filepath.Join(s.root, "mode.txt"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	assert.Equal(t, syscall.ENOENT, fserrors.Errno(s.fs.Chmod("/missing", 0o600)))
}

func (s *FileSystemTestSuite) TestTruncate() {
	t := s.T()
	s.writeBackendFile("trunc.txt", "0123456789")

	require.NoError(t, s.fs.Truncate("/trunc.txt", 4))
	assert.Equal(t, "0123", s.readBackendFile("trunc.txt"))

	require.NoError(t, s.fs.Truncate("/trunc.txt", 6))
	assert.Equal(t, "0123\x00\x00", s.readBackendFile("trunc.txt"))
}

func (s *FileSystemTestSuite) TestUtimens() {
	t := s.T()
	s.writeBackendFile("times.txt", "")

	atime := unix.Timespec{Sec: 1000, Nsec: 500}
	mtime := unix.Timespec{Sec: 2000, Nsec: 700}
	require.NoError(t, s.fs.Utimens("/times.txt", atime, mtime))

	var st unix.Stat_t
	require.NoError(t, s.fs.Getattr("/times.txt", &st))
	assert.Equal(t, int64(2000), int64(st.Mtim.Sec))
	assert.Equal(t, int64(700), int64(st.Mtim.Nsec))
	assert.Equal(t, int64(1000), int64(st.Atim.Sec))

	omit := unix.Timespec{Nsec: unix.UTIME_OMIT}
	require.NoError(t, s.fs.Utimens("/times.txt", omit, unix.Timespec{Sec: 3000}))
	require.NoError(t, s.fs.Getattr("/times.txt", &st))
	assert.Equal(t, int64(3000), int64(st.Mtim.Sec))
	assert.Equal(t, int64(1000), int64(st.Atim.Sec), "omitted atime must be kept")
}

func (s *FileSystemTestSuite) TestStatfs() {
	var st unix.Statfs_t
	s.Require().NoError(s.fs.Statfs("/", &st))
	s.NotZero(st.Bsize)
}

func (s *FileSystemTestSuite) TestPathTooLong() {
	t := s.T()
	fs, err := New(Options{Root: s.root, MaxPathLen: len(s.root) + 8})
	require.NoError(t, err)

	_, err = fs.Create("/much-too-long-name", unix.O_WRONLY, 0o644)
	assert.Equal(t, syscall.ENAMETOOLONG, fserrors.Errno(err))

	_, err = os.Stat(filepath.Join(s.root, "much-too"))
	assert.True(t, os.IsNotExist(err), "a truncated path must never be created")
}

func TestNewRejectsRelativeRoot(t *testing.T) {
	_, err := New(Options{Root: "relative/dir"})
	require.Error(t, err)
}
