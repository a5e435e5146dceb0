/*
Package fuse exposes a passthrough.FileSystem to the kernel.

OperationTable is the host-neutral surface: every method takes a virtual
path, forwards to the core, records a metric and returns zero or a
negative errno. Two hosts sit on top of it.

The default build mounts a go-fuse node tree (Node, fileHandle) whose
methods call the table and convert its return codes back into
syscall.Errno values. Building with the cgofuse tag swaps in CgoFuseFS,
which hands the table's return codes to cgofuse unchanged.

	table := fuse.NewOperationTable(core, collector, logger)
	mgr := fuse.CreatePlatformMountManager(table, fuse.DefaultMountConfig("/mnt/pt"), logger)
	if err := mgr.Mount(ctx); err != nil {
		return err
	}
	defer mgr.Unmount()
	mgr.Wait()

The mount point must exist, be a directory and not already be a mount
target. Unmount falls back to a forced unmount when the kernel reports
the mount busy.
*/
package fuse
