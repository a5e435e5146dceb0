//go:build cgofuse
// +build cgofuse

package fuse

import (
	"context"
	"fmt"
	"sync"

	"github.com/winfsp/cgofuse/fuse"

	fserrors "github.com/objectfs/passthroughfs/pkg/errors"
	"github.com/objectfs/passthroughfs/pkg/types"
)

// CgoFuseMountManager manages cgofuse-based mounts
type CgoFuseMountManager struct {
	mu         sync.Mutex
	filesystem *CgoFuseFS
	config     *MountConfig
	logger     types.Logger
	host       *fuse.FileSystemHost
	done       chan struct{}
	mounted    bool
}

// NewCgoFuseMountManager creates a new cgofuse mount manager
func NewCgoFuseMountManager(table *OperationTable, config *MountConfig, logger types.Logger) *CgoFuseMountManager {
	if config == nil {
		config = DefaultMountConfig("")
	}
	if logger == nil {
		logger = types.NopLogger{}
	}
	return &CgoFuseMountManager{
		filesystem: NewCgoFuseFS(table),
		config:     config,
		logger:     logger,
	}
}

// Mount starts the host and returns once the filesystem has initialized,
// the host has failed, or ctx is done.
func (m *CgoFuseMountManager) Mount(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.mounted {
		return mountError("filesystem is already mounted", m.config.MountPoint, nil)
	}
	if err := validateMountPoint(m.config.MountPoint, m.logger); err != nil {
		return err
	}

	host := fuse.NewFileSystemHost(m.filesystem)
	done := make(chan struct{})
	result := make(chan bool, 1)

	go func() {
		defer close(done)
		result <- host.Mount(m.config.MountPoint, m.mountOptions())
	}()

	select {
	case <-m.filesystem.Ready():
	case ok := <-result:
		if !ok {
			return mountError("cgofuse host failed to mount", m.config.MountPoint, nil)
		}
	case <-ctx.Done():
		host.Unmount()
		return mountError("mount cancelled", m.config.MountPoint, ctx.Err())
	}

	m.host = host
	m.done = done
	m.mounted = true

	m.logger.Info("filesystem mounted", map[string]interface{}{
		"mount_point": m.config.MountPoint,
		"host":        "cgofuse",
	})
	return nil
}

func (m *CgoFuseMountManager) mountOptions() []string {
	opts := fmt.Sprintf("fsname=%s,subtype=%s", m.config.FSName, m.config.Subtype)
	if m.config.MaxWrite > 0 {
		opts += fmt.Sprintf(",max_write=%d", m.config.MaxWrite)
	}
	if m.config.AllowOther {
		opts += ",allow_other"
	}
	args := []string{"-o", opts}
	if m.config.Debug {
		args = append(args, "-d")
	}
	return args
}

// Unmount unmounts the filesystem
func (m *CgoFuseMountManager) Unmount() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.mounted || m.host == nil {
		return fserrors.NewError(fserrors.ErrCodeUnmountFailed, "filesystem is not mounted").
			WithComponent("fuse").
			WithPath(m.config.MountPoint)
	}

	if !m.host.Unmount() {
		return fserrors.NewError(fserrors.ErrCodeUnmountFailed, "cgofuse host refused to unmount").
			WithComponent("fuse").
			WithPath(m.config.MountPoint)
	}

	m.mounted = false
	m.logger.Info("filesystem unmounted", map[string]interface{}{
		"mount_point": m.config.MountPoint,
	})
	return nil
}

// IsMounted returns whether the filesystem is mounted
func (m *CgoFuseMountManager) IsMounted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mounted
}

// Wait blocks until the host's mount loop returns.
func (m *CgoFuseMountManager) Wait() {
	m.mu.Lock()
	done := m.done
	m.mu.Unlock()

	if done != nil {
		<-done
	}
}
