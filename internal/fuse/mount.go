package fuse

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"

	fserrors "github.com/objectfs/passthroughfs/pkg/errors"
	"github.com/objectfs/passthroughfs/pkg/types"
)

// PlatformFileSystem is a mounted (or mountable) filesystem instance.
type PlatformFileSystem interface {
	Mount(ctx context.Context) error
	Unmount() error
	IsMounted() bool
	Wait()
}

// MountConfig contains mount-specific configuration
type MountConfig struct {
	MountPoint   string
	FSName       string
	Subtype      string
	AllowOther   bool
	Debug        bool
	AttrTimeout  time.Duration
	EntryTimeout time.Duration
	MaxWrite     int
}

// DefaultMountConfig returns the options used when none are supplied.
func DefaultMountConfig(mountPoint string) *MountConfig {
	return &MountConfig{
		MountPoint:   mountPoint,
		FSName:       "passthroughfs",
		Subtype:      "passthroughfs",
		AttrTimeout:  time.Second,
		EntryTimeout: time.Second,
		MaxWrite:     128 * 1024,
	}
}

// MountManager manages a go-fuse mount of an OperationTable.
type MountManager struct {
	mu      sync.Mutex
	table   *OperationTable
	config  *MountConfig
	logger  types.Logger
	server  *fuse.Server
	mounted bool
}

// NewMountManager creates a new mount manager
func NewMountManager(table *OperationTable, config *MountConfig, logger types.Logger) *MountManager {
	if config == nil {
		config = DefaultMountConfig("")
	}
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &MountManager{
		table:  table,
		config: config,
		logger: logger,
	}
}

// Mount mounts the filesystem and serves it in the background.
func (m *MountManager) Mount(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mounted {
		return mountError("filesystem is already mounted", m.config.MountPoint, nil)
	}

	if err := validateMountPoint(m.config.MountPoint, m.logger); err != nil {
		return err
	}

	server, err := fs.Mount(m.config.MountPoint, NewRoot(m.table), m.buildFUSEOptions())
	if err != nil {
		return mountError("failed to mount filesystem", m.config.MountPoint, err)
	}

	m.server = server
	m.mounted = true

	m.logger.Info("filesystem mounted", map[string]interface{}{
		"mount_point":  m.config.MountPoint,
		"backend_root": m.table.FileSystem().Root(),
	})

	go func() {
		server.Wait()
		m.mu.Lock()
		if m.server == server {
			m.mounted = false
		}
		m.mu.Unlock()
		m.logger.Info("FUSE server stopped", map[string]interface{}{
			"mount_point": m.config.MountPoint,
		})
	}()

	return nil
}

// Unmount unmounts the filesystem, falling back to a forced unmount when
// the regular one fails.
func (m *MountManager) Unmount() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.mounted || m.server == nil {
		return fserrors.NewError(fserrors.ErrCodeUnmountFailed, "filesystem is not mounted").
			WithComponent("fuse").
			WithPath(m.config.MountPoint)
	}

	m.logger.Info("unmounting filesystem", map[string]interface{}{
		"mount_point": m.config.MountPoint,
	})

	if err := m.server.Unmount(); err != nil {
		m.logger.Warn("normal unmount failed, forcing", map[string]interface{}{
			"mount_point": m.config.MountPoint,
			"error":       err.Error(),
		})
		if forceErr := forceUnmount(m.config.MountPoint); forceErr != nil {
			return fserrors.NewError(fserrors.ErrCodeUnmountFailed,
				fmt.Sprintf("unmount failed: %v (force unmount also failed: %v)", err, forceErr)).
				WithComponent("fuse").
				WithPath(m.config.MountPoint).
				WithCause(err)
		}
	}

	m.mounted = false
	m.server = nil
	return nil
}

// IsMounted reports whether the filesystem is currently mounted
func (m *MountManager) IsMounted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mounted
}

// Wait blocks until the FUSE server exits.
func (m *MountManager) Wait() {
	m.mu.Lock()
	server := m.server
	m.mu.Unlock()

	if server != nil {
		server.Wait()
	}
}

func (m *MountManager) buildFUSEOptions() *fs.Options {
	attrTimeout := m.config.AttrTimeout
	entryTimeout := m.config.EntryTimeout

	opts := &fs.Options{
		MountOptions: fuse.MountOptions{
			Name:       m.config.Subtype,
			FsName:     m.config.FSName,
			Debug:      m.config.Debug,
			AllowOther: m.config.AllowOther,
			MaxWrite:   m.config.MaxWrite,
		},
		AttrTimeout:  &attrTimeout,
		EntryTimeout: &entryTimeout,
		// Permission checks are left to the backend, which sees the
		// daemon's credentials.
		NullPermissions: true,
	}
	return opts
}

// validateMountPoint checks that mountPoint is an existing directory that
// is not already a mount target.
func validateMountPoint(mountPoint string, logger types.Logger) error {
	if mountPoint == "" {
		return mountError("mount point cannot be empty", mountPoint, nil)
	}

	info, err := os.Stat(mountPoint)
	if err != nil {
		if os.IsNotExist(err) {
			return mountError("mount point does not exist", mountPoint, err)
		}
		return mountError("cannot access mount point", mountPoint, err)
	}
	if !info.IsDir() {
		return mountError("mount point is not a directory", mountPoint, nil)
	}

	entries, err := os.ReadDir(mountPoint)
	if err != nil {
		return mountError("cannot read mount point directory", mountPoint, err)
	}
	if len(entries) > 0 {
		logger.Warn("mount point is not empty", map[string]interface{}{
			"mount_point": mountPoint,
			"entries":     len(entries),
		})
	}

	if isMountTarget("/proc/mounts", mountPoint) {
		return mountError("mount point is already mounted", mountPoint, nil)
	}

	return nil
}

// isMountTarget reports whether mountPoint appears as a target in a
// mounts table such as /proc/mounts. A missing table reads as not mounted.
func isMountTarget(mountsFile, mountPoint string) bool {
	f, err := os.Open(mountsFile)
	if err != nil {
		return false
	}
	defer f.Close()

	target := filepath.Clean(mountPoint)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) >= 2 && unescapeMountField(fields[1]) == target {
			return true
		}
	}
	return false
}

// unescapeMountField undoes the octal escaping /proc/mounts applies to
// spaces, tabs, newlines and backslashes.
func unescapeMountField(s string) string {
	return strings.NewReplacer(`\040`, " ", `\011`, "\t", `\012`, "\n", `\134`, `\`).Replace(s)
}

func mountError(message, mountPoint string, cause error) error {
	err := fserrors.NewError(fserrors.ErrCodeMountFailed, message).
		WithComponent("fuse").
		WithOperation("mount").
		WithPath(mountPoint)
	if cause != nil {
		err = err.WithCause(cause)
	}
	return err
}
