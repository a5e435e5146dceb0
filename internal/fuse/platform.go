//go:build !cgofuse
// +build !cgofuse

package fuse

import "github.com/objectfs/passthroughfs/pkg/types"

// CreatePlatformMountManager returns the go-fuse mount manager.
func CreatePlatformMountManager(table *OperationTable, config *MountConfig, logger types.Logger) PlatformFileSystem {
	return NewMountManager(table, config, logger)
}
