/*
Package metrics provides Prometheus metrics for passthroughfs operations.

# Overview

Every request served by the FUSE adapters is recorded once, with its
duration, the number of bytes transferred and the errno it completed with.

	┌─────────────┐
	│  Collector  │
	└──────┬──────┘
	       │
	   ┌───┴────────────────────────────┐
	   │                                │
	┌──▼───────────┐         ┌──────────▼────────┐
	│  Prometheus  │         │  HTTP Endpoints   │
	│   Registry   │         │  /metrics         │
	│              │         │  /health          │
	│ - Counters   │         │  /debug/operations│
	│ - Histograms │         └───────────────────┘
	│ - Gauges     │
	└──────────────┘

# Exported series

	<ns>_operations_total{operation,status}
	<ns>_operation_duration_seconds{operation}
	<ns>_operation_size_bytes{operation}
	<ns>_errors_total{operation,errno}
	<ns>_open_handles

The errno label carries the symbolic name, for example ENOENT.

# Usage

	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   true,
		Port:      9090,
		Path:      "/metrics",
		Namespace: "passthroughfs",
	})
	if err != nil {
		return err
	}
	collector.SetHealthCheck(func() error {
		_, err := os.Stat(root)
		return err
	})
	if err := collector.Start(ctx); err != nil {
		return err
	}
	defer collector.Stop(ctx)

	start := time.Now()
	n, err := fs.Read(h, buf, off)
	collector.RecordOperation("read", time.Since(start), int64(n), fserrors.Errno(err))

Collector satisfies types.MetricsCollector.
*/
package metrics
