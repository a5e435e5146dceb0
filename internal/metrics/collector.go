package metrics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sort"
	"sync"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sys/unix"
)

// Collector records per-operation counters and latencies for the mounted
// filesystem and serves them over HTTP.
type Collector struct {
	mu       sync.RWMutex
	config   *Config
	registry *prometheus.Registry

	// Prometheus metrics
	operationCounter  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	operationSize     *prometheus.HistogramVec
	errorCounter      *prometheus.CounterVec
	openHandles       prometheus.Gauge

	// Internal tracking
	operations  map[string]*OperationMetrics
	startedAt   time.Time
	healthCheck func() error

	// HTTP server for metrics endpoint
	server   *http.Server
	listener net.Listener
}

// Config represents metrics configuration
type Config struct {
	Enabled   bool              `yaml:"enabled"`
	Port      int               `yaml:"port"`
	Path      string            `yaml:"path"`
	Labels    map[string]string `yaml:"labels"`
	Namespace string            `yaml:"namespace"`
	Subsystem string            `yaml:"subsystem"`
}

// OperationMetrics tracks metrics for a specific operation type
type OperationMetrics struct {
	Count         int64            `json:"count"`
	TotalDuration time.Duration    `json:"total_duration"`
	TotalSize     int64            `json:"total_size"`
	Errors        int64            `json:"errors"`
	ErrnoCounts   map[string]int64 `json:"errno_counts,omitempty"`
	LastOperation time.Time        `json:"last_operation"`
	AvgDuration   time.Duration    `json:"avg_duration"`
	AvgSize       float64          `json:"avg_size"`
}

// DefaultConfig returns the configuration used when NewCollector is given nil.
func DefaultConfig() *Config {
	return &Config{
		Enabled:   true,
		Port:      9090,
		Path:      "/metrics",
		Namespace: "passthroughfs",
		Labels:    make(map[string]string),
	}
}

// NewCollector creates a new metrics collector
func NewCollector(config *Config) (*Collector, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Path == "" {
		config.Path = "/metrics"
	}

	if !config.Enabled {
		return &Collector{config: config}, nil
	}

	collector := &Collector{
		config:     config,
		registry:   prometheus.NewRegistry(),
		operations: make(map[string]*OperationMetrics),
		startedAt:  time.Now(),
	}

	collector.initMetrics()

	if err := collector.registerMetrics(); err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	return collector, nil
}

// SetHealthCheck installs the probe behind /health. A nil check always
// reports healthy.
func (c *Collector) SetHealthCheck(check func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthCheck = check
}

// Handler returns the HTTP handler serving metrics, /health and
// /debug/operations.
func (c *Collector) Handler() http.Handler {
	mux := http.NewServeMux()
	if c.registry != nil {
		mux.Handle(c.config.Path, promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{
			EnableOpenMetrics: true,
		}))
	}
	mux.HandleFunc("/health", c.healthHandler)
	mux.HandleFunc("/debug/operations", c.debugOperationsHandler)
	return mux
}

// Start binds the metrics port and serves in the background. Bind errors
// are returned synchronously.
func (c *Collector) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf(":%d", c.config.Port))
	if err != nil {
		return fmt.Errorf("failed to listen on metrics port %d: %w", c.config.Port, err)
	}

	server := &http.Server{
		Handler:           c.Handler(),
		ReadHeaderTimeout: 30 * time.Second, // Prevent Slowloris attacks
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	c.mu.Lock()
	c.server = server
	c.listener = listener
	c.mu.Unlock()

	go func() {
		_ = server.Serve(listener)
	}()

	return nil
}

// Addr returns the bound address once Start has succeeded.
func (c *Collector) Addr() net.Addr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.listener == nil {
		return nil
	}
	return c.listener.Addr()
}

// Stop stops the metrics collection server
func (c *Collector) Stop(ctx context.Context) error {
	c.mu.Lock()
	server := c.server
	c.server = nil
	c.listener = nil
	c.mu.Unlock()

	if server == nil {
		return nil
	}
	if err := server.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// RecordOperation records one completed filesystem operation. A zero errno
// means success.
func (c *Collector) RecordOperation(operation string, duration time.Duration, size int64, errno syscall.Errno) {
	if !c.config.Enabled {
		return
	}

	status := "success"
	if errno != 0 {
		status = "error"
	}

	c.mu.Lock()
	metrics, exists := c.operations[operation]
	if !exists {
		metrics = &OperationMetrics{}
		c.operations[operation] = metrics
	}
	metrics.Count++
	metrics.TotalDuration += duration
	metrics.TotalSize += size
	metrics.LastOperation = time.Now()
	metrics.AvgDuration = time.Duration(int64(metrics.TotalDuration) / metrics.Count)
	metrics.AvgSize = float64(metrics.TotalSize) / float64(metrics.Count)
	if errno != 0 {
		metrics.Errors++
		if metrics.ErrnoCounts == nil {
			metrics.ErrnoCounts = make(map[string]int64)
		}
		metrics.ErrnoCounts[errnoName(errno)]++
	}
	c.mu.Unlock()

	c.operationCounter.With(prometheus.Labels{
		"operation": operation,
		"status":    status,
	}).Inc()
	c.operationDuration.With(prometheus.Labels{
		"operation": operation,
	}).Observe(duration.Seconds())

	if size > 0 {
		c.operationSize.With(prometheus.Labels{
			"operation": operation,
		}).Observe(float64(size))
	}

	if errno != 0 {
		c.errorCounter.With(prometheus.Labels{
			"operation": operation,
			"errno":     errnoName(errno),
		}).Inc()
	}
}

// SetOpenHandles publishes the number of live file sessions.
func (c *Collector) SetOpenHandles(count int) {
	if !c.config.Enabled {
		return
	}
	c.openHandles.Set(float64(count))
}

// GetMetrics returns a copy of the per-operation counters keyed by
// operation name.
func (c *Collector) GetMetrics() map[string]OperationMetrics {
	c.mu.RLock()
	defer c.mu.RUnlock()

	snapshot := make(map[string]OperationMetrics, len(c.operations))
	for name, op := range c.operations {
		cp := *op
		if op.ErrnoCounts != nil {
			cp.ErrnoCounts = make(map[string]int64, len(op.ErrnoCounts))
			for k, v := range op.ErrnoCounts {
				cp.ErrnoCounts[k] = v
			}
		}
		snapshot[name] = cp
	}
	return snapshot
}

func (c *Collector) initMetrics() {
	c.operationCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "operations_total",
			Help:        "Total number of filesystem operations",
			ConstLabels: c.config.Labels,
		},
		[]string{"operation", "status"},
	)

	c.operationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "operation_duration_seconds",
			Help:        "Duration of filesystem operations in seconds",
			ConstLabels: c.config.Labels,
			Buckets:     prometheus.ExponentialBuckets(0.00001, 4, 12), // 10µs to ~42s
		},
		[]string{"operation"},
	)

	c.operationSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "operation_size_bytes",
			Help:        "Bytes transferred by read and write operations",
			ConstLabels: c.config.Labels,
			Buckets:     prometheus.ExponentialBuckets(512, 2, 16), // 512B to 16MB
		},
		[]string{"operation"},
	)

	c.errorCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "errors_total",
			Help:        "Total number of failed operations by errno",
			ConstLabels: c.config.Labels,
		},
		[]string{"operation", "errno"},
	)

	c.openHandles = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace:   c.config.Namespace,
			Subsystem:   c.config.Subsystem,
			Name:        "open_handles",
			Help:        "Number of open file sessions",
			ConstLabels: c.config.Labels,
		},
	)
}

func (c *Collector) registerMetrics() error {
	metrics := []prometheus.Collector{
		c.operationCounter,
		c.operationDuration,
		c.operationSize,
		c.errorCounter,
		c.openHandles,
	}

	for _, metric := range metrics {
		if err := c.registry.Register(metric); err != nil {
			return err
		}
	}

	return nil
}

// errnoName returns the symbolic name ("ENOENT") or the number when the
// platform has no name for it.
func errnoName(errno syscall.Errno) string {
	if name := unix.ErrnoName(errno); name != "" {
		return name
	}
	return fmt.Sprintf("errno_%d", int(errno))
}

// HTTP handlers

func (c *Collector) healthHandler(w http.ResponseWriter, r *http.Request) {
	c.mu.RLock()
	check := c.healthCheck
	c.mu.RUnlock()

	status := map[string]string{
		"status":  "healthy",
		"service": "passthroughfs",
	}
	code := http.StatusOK
	if check != nil {
		if err := check(); err != nil {
			status["status"] = "unhealthy"
			status["error"] = err.Error()
			code = http.StatusServiceUnavailable
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(status)
}

func (c *Collector) debugOperationsHandler(w http.ResponseWriter, r *http.Request) {
	snapshot := c.GetMetrics()

	c.mu.RLock()
	startedAt := c.startedAt
	c.mu.RUnlock()

	w.Header().Set("Content-Type", "text/plain")

	writef := func(format string, args ...interface{}) { _, _ = fmt.Fprintf(w, format, args...) }

	writef("passthroughfs operations\n")
	writef("========================\n\n")
	writef("Since: %v\n\n", startedAt.Format(time.RFC3339))

	if len(snapshot) == 0 {
		writef("No operations recorded.\n")
		return
	}

	names := make([]string, 0, len(snapshot))
	for name := range snapshot {
		names = append(names, name)
	}
	sort.Strings(names)

	writef("%-12s %10s %10s %14s %12s\n", "Operation", "Count", "Errors", "Avg Duration", "Avg Size")
	writef("%-12s %10s %10s %14s %12s\n", "---------", "-----", "------", "------------", "--------")

	for _, name := range names {
		op := snapshot[name]
		writef("%-12s %10d %10d %14v %12.0f\n", name, op.Count, op.Errors, op.AvgDuration, op.AvgSize)
	}
}
