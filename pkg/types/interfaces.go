package types

import (
	"syscall"
	"time"
)

// MetricsCollector defines the metrics collection interface
type MetricsCollector interface {
	// RecordOperation records one filesystem operation. size is the number
	// of bytes moved (0 for metadata operations) and errno is 0 on success.
	RecordOperation(operation string, duration time.Duration, size int64, errno syscall.Errno)

	// SetOpenHandles reports the number of live file sessions.
	SetOpenHandles(count int)
}

// Logger defines the leveled, field-based logging interface
type Logger interface {
	Debug(message string, fields ...map[string]interface{})
	Info(message string, fields ...map[string]interface{})
	Warn(message string, fields ...map[string]interface{})
	Error(message string, fields ...map[string]interface{})
}

// NopMetrics is a MetricsCollector that discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordOperation(string, time.Duration, int64, syscall.Errno) {}

func (NopMetrics) SetOpenHandles(int) {}

// NopLogger is a Logger that discards everything.
type NopLogger struct{}

func (NopLogger) Debug(string, ...map[string]interface{}) {}
func (NopLogger) Info(string, ...map[string]interface{})  {}
func (NopLogger) Warn(string, ...map[string]interface{})  {}
func (NopLogger) Error(string, ...map[string]interface{}) {}
