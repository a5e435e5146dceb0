/*
Package types provides the interfaces shared between passthroughfs packages.

The FUSE adapters in internal/fuse depend only on these interfaces, so the
Prometheus collector from internal/metrics and the structured logger from
pkg/utils can be swapped for test doubles or the Nop implementations:

	table := fuse.NewOperationTable(filesystem, collector, logger)
	table := fuse.NewOperationTable(filesystem, types.NopMetrics{}, types.NopLogger{})
*/
package types
