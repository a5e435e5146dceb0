//go:build cgofuse
// +build cgofuse

package fuse

import "github.com/objectfs/passthroughfs/pkg/types"

// CreatePlatformMountManager returns the cgofuse mount manager.
func CreatePlatformMountManager(table *OperationTable, config *MountConfig, logger types.Logger) PlatformFileSystem {
	return NewCgoFuseMountManager(table, config, logger)
}
