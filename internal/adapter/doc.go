/*
Package adapter assembles a passthroughfs mount from a validated
configuration.

New builds the passthrough core, the metrics collector, the FUSE
operation table and the platform mount manager. Start brings up the
metrics endpoint and mounts; Stop reverses both.

	cfg := config.NewDefault()
	cfg.Backend.Root = "/srv/data"
	cfg.Mount.MountPoint = "/mnt/data"

	a, err := adapter.New(cfg, nil)
	if err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		return err
	}
	defer a.Stop(context.Background())
	a.Wait()
*/
package adapter
