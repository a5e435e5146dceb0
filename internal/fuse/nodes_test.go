package fuse

import (
	"context"
	"os"
	"path/filepath"
	"syscall"
	"testing"

	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	"github.com/objectfs/passthroughfs/internal/passthrough"
)

func newDetachedNode(t *testing.T) (*Node, string) {
	t.Helper()

	root := t.TempDir()
	core, err := passthrough.New(passthrough.Options{Root: root})
	require.NoError(t, err)
	return &Node{table: NewOperationTable(core, nil, nil)}, root
}

// The kernel passes the open handle for fstat and ftruncate; those must
// not depend on the node still having a path.
func TestNodeAttrsThroughOpenHandleAfterUnlink(t *testing.T) {
	t.Parallel()

	n, root := newDetachedNode(t)
	require.NoError(t, os.WriteFile(filepath.Join(root, "f"), []byte("0123456789"), 0o644))

	rc, fh := n.table.Open("/f", unix.O_RDWR)
	require.Zero(t, rc)
	handle := &fileHandle{table: n.table, path: "/f", fh: fh}
	defer handle.Release(context.Background())

	require.Zero(t, n.table.Unlink("/f"))

	var out fuse.AttrOut
	require.Equal(t, syscall.Errno(0), n.Getattr(context.Background(), handle, &out))
	assert.EqualValues(t, 10, out.Size)

	in := &fuse.SetAttrIn{SetAttrInCommon: fuse.SetAttrInCommon{
		Valid: fuse.FATTR_SIZE,
		Size:  3,
	}}
	require.Equal(t, syscall.Errno(0), n.Setattr(context.Background(), handle, in, &out))
	assert.EqualValues(t, 3, out.Size)

	buf := make([]byte, 10)
	res, errno := handle.Read(context.Background(), buf, 0)
	require.Equal(t, syscall.Errno(0), errno)
	data, _ := res.Bytes(buf)
	assert.Equal(t, "012", string(data))
}

func TestNodeSetattrRejectsOwnership(t *testing.T) {
	t.Parallel()

	n, _ := newDetachedNode(t)
	in := &fuse.SetAttrIn{SetAttrInCommon: fuse.SetAttrInCommon{Valid: fuse.FATTR_UID}}

	var out fuse.AttrOut
	assert.Equal(t, syscall.ENOTSUP, n.Setattr(context.Background(), nil, in, &out))
}
