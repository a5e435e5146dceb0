package adapter

import (
	"context"
	"fmt"

	"github.com/objectfs/passthroughfs/internal/config"
	"github.com/objectfs/passthroughfs/internal/fuse"
	"github.com/objectfs/passthroughfs/internal/metrics"
	"github.com/objectfs/passthroughfs/internal/passthrough"
	"github.com/objectfs/passthroughfs/pkg/utils"
)

// Adapter owns every component of a running passthrough mount.
type Adapter struct {
	config  *config.Configuration
	logger  *utils.StructuredLogger
	metrics *metrics.Collector
	fs      *passthrough.FileSystem
	table   *fuse.OperationTable
	mount   fuse.PlatformFileSystem

	maxWrite int
	// ownsLogger is set when New opened the log output itself.
	ownsLogger bool
}

// New validates cfg and builds the component graph without touching the
// kernel or the network. A nil logger is built from cfg.Global and closed
// by Stop; a supplied logger stays open.
func New(cfg *config.Configuration, logger *utils.StructuredLogger) (*Adapter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   cfg.Monitoring.Metrics.Enabled,
		Port:      cfg.Monitoring.Metrics.Port,
		Path:      cfg.Monitoring.Metrics.Path,
		Namespace: cfg.Monitoring.Metrics.Namespace,
		Labels:    map[string]string{"mount_point": cfg.Mount.MountPoint},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics collector: %w", err)
	}

	core, err := passthrough.New(passthrough.Options{
		Root:       cfg.Backend.Root,
		MaxPathLen: cfg.Backend.MaxPathLen,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem: %w", err)
	}

	root := core.Root()
	collector.SetHealthCheck(func() error {
		return utils.ValidateDirectory(root)
	})

	maxWrite, err := cfg.MaxWriteBytes()
	if err != nil {
		return nil, err
	}

	// The log file is opened last so no later failure leaves it open.
	ownsLogger := logger == nil
	if ownsLogger {
		logger, err = utils.SetupLogging(cfg.Global.LogLevel, cfg.Global.LogFormat, cfg.Global.LogFile)
		if err != nil {
			return nil, fmt.Errorf("failed to set up logging: %w", err)
		}
	}

	// --debug traces every failed operation even when the global level
	// is quieter.
	if cfg.Mount.Debug {
		logger.SetComponentLevel("fuse", utils.DEBUG)
	}

	table := fuse.NewOperationTable(core, collector, logger.WithComponent("fuse"))
	mountConfig := &fuse.MountConfig{
		MountPoint:   cfg.Mount.MountPoint,
		FSName:       cfg.Mount.FSName,
		Subtype:      cfg.Mount.Subtype,
		AllowOther:   cfg.Mount.AllowOther,
		Debug:        cfg.Mount.Debug,
		AttrTimeout:  cfg.Mount.AttrTimeout,
		EntryTimeout: cfg.Mount.EntryTimeout,
		MaxWrite:     maxWrite,
	}

	return &Adapter{
		config:  cfg,
		logger:  logger,
		metrics: collector,
		fs:      core,
		table:   table,
		mount:   fuse.CreatePlatformMountManager(table, mountConfig, logger.WithComponent("mount")),

		maxWrite:   maxWrite,
		ownsLogger: ownsLogger,
	}, nil
}

// Table returns the operation table served by the mount.
func (a *Adapter) Table() *fuse.OperationTable {
	return a.table
}

// Metrics returns the collector fed by the operation table.
func (a *Adapter) Metrics() *metrics.Collector {
	return a.metrics
}

// Start starts the metrics endpoint and mounts the filesystem. If the
// mount fails the metrics endpoint is stopped again.
func (a *Adapter) Start(ctx context.Context) error {
	a.logger.Info("starting passthroughfs", map[string]interface{}{
		"backend_root": a.fs.Root(),
		"mount_point":  a.config.Mount.MountPoint,
		"max_write":    utils.FormatBytes(int64(a.maxWrite)),
	})

	if err := a.metrics.Start(ctx); err != nil {
		return err
	}
	if addr := a.metrics.Addr(); addr != nil {
		a.logger.Info("metrics endpoint listening", map[string]interface{}{
			"addr": addr.String(),
			"path": a.config.Monitoring.Metrics.Path,
		})
	}

	if err := a.mount.Mount(ctx); err != nil {
		_ = a.metrics.Stop(ctx)
		return err
	}
	return nil
}

// Wait blocks until the kernel drops the mount.
func (a *Adapter) Wait() {
	a.mount.Wait()
}

// Stop unmounts the filesystem if it is still mounted and shuts the
// metrics endpoint down. Sessions left open by the kernel are reported.
func (a *Adapter) Stop(ctx context.Context) error {
	a.logger.Info("stopping passthroughfs", nil)

	var firstErr error
	if a.mount.IsMounted() {
		if err := a.mount.Unmount(); err != nil {
			a.logger.Error("unmount failed", map[string]interface{}{
				"error": err.Error(),
			})
			firstErr = err
		}
	}

	if err := a.metrics.Stop(ctx); err != nil && firstErr == nil {
		firstErr = err
	}

	if n := a.fs.OpenHandles(); n > 0 {
		a.logger.Warn("file sessions still open at shutdown", map[string]interface{}{
			"open_handles": n,
		})
	}

	_ = a.logger.Sync()
	if a.ownsLogger {
		if err := a.logger.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
