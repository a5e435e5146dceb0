package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// LogFormat defines the output format for logs
type LogFormat int

const (
	FormatText LogFormat = iota
	FormatJSON
)

// LogEntry represents a complete log entry
type LogEntry struct {
	Timestamp time.Time              `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller,omitempty"`
}

// sink is shared by a logger and every child derived from it so that
// concurrent writers never interleave partial lines.
type sink struct {
	mu     sync.Mutex
	output io.Writer
}

// StructuredLogger provides structured logging with levels and fields
type StructuredLogger struct {
	mu              *sync.RWMutex
	level           *LogLevel
	componentLevels map[string]LogLevel
	sink            *sink
	format          LogFormat
	includeCaller   bool
	contextFields   map[string]interface{}
}

// StructuredLoggerConfig holds configuration for the logger
type StructuredLoggerConfig struct {
	Level         LogLevel
	Output        io.Writer
	Format        LogFormat
	IncludeCaller bool
}

// DefaultStructuredLoggerConfig returns default configuration
func DefaultStructuredLoggerConfig() *StructuredLoggerConfig {
	return &StructuredLoggerConfig{
		Level:  INFO,
		Output: os.Stderr,
		Format: FormatText,
	}
}

// NewStructuredLogger creates a new structured logger
func NewStructuredLogger(config *StructuredLoggerConfig) (*StructuredLogger, error) {
	if config == nil {
		config = DefaultStructuredLoggerConfig()
	}
	if config.Level < TRACE || config.Level > FATAL {
		return nil, fmt.Errorf("invalid log level: %d", config.Level)
	}

	output := config.Output
	if output == nil {
		output = os.Stderr
	}

	level := config.Level
	return &StructuredLogger{
		mu:              &sync.RWMutex{},
		level:           &level,
		componentLevels: make(map[string]LogLevel),
		sink:            &sink{output: output},
		format:          config.Format,
		includeCaller:   config.IncludeCaller,
		contextFields:   make(map[string]interface{}),
	}, nil
}

// WithField returns a new logger with an additional context field
func (sl *StructuredLogger) WithField(key string, value interface{}) *StructuredLogger {
	return sl.WithFields(map[string]interface{}{key: value})
}

// WithFields returns a new logger with multiple context fields
func (sl *StructuredLogger) WithFields(fields map[string]interface{}) *StructuredLogger {
	merged := make(map[string]interface{}, len(sl.contextFields)+len(fields))
	for k, v := range sl.contextFields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}

	child := *sl
	child.contextFields = merged
	return &child
}

// WithComponent returns a logger with a component field
func (sl *StructuredLogger) WithComponent(component string) *StructuredLogger {
	return sl.WithField("component", component)
}

// SetComponentLevel overrides the level for loggers carrying the given
// component field.
func (sl *StructuredLogger) SetComponentLevel(component string, level LogLevel) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	sl.componentLevels[component] = level
}

// SetLevel sets the global log level
func (sl *StructuredLogger) SetLevel(level LogLevel) {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	*sl.level = level
}

// GetLevel returns the current log level
func (sl *StructuredLogger) GetLevel() LogLevel {
	sl.mu.RLock()
	defer sl.mu.RUnlock()
	return *sl.level
}

func (sl *StructuredLogger) isEnabled(level LogLevel) bool {
	sl.mu.RLock()
	defer sl.mu.RUnlock()

	if component, ok := sl.contextFields["component"].(string); ok {
		if compLevel, exists := sl.componentLevels[component]; exists {
			return level >= compLevel
		}
	}
	return level >= *sl.level
}

func (sl *StructuredLogger) log(level LogLevel, message string, fields map[string]interface{}) {
	if !sl.isEnabled(level) {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now(),
		Level:     level.String(),
		Message:   message,
	}
	if n := len(sl.contextFields) + len(fields); n > 0 {
		entry.Fields = make(map[string]interface{}, n)
		for k, v := range sl.contextFields {
			entry.Fields[k] = v
		}
		for k, v := range fields {
			entry.Fields[k] = v
		}
	}

	if sl.includeCaller {
		// log <- logWithFields <- Info/Warn/... <- caller
		if _, file, line, ok := runtime.Caller(3); ok {
			entry.Caller = fmt.Sprintf("%s:%d", filepath.Base(file), line)
		}
	}

	var line []byte
	if sl.format == FormatJSON {
		encoded, err := json.Marshal(entry)
		if err != nil {
			line = []byte(formatText(entry))
		} else {
			line = append(encoded, '\n')
		}
	} else {
		line = []byte(formatText(entry))
	}

	sl.sink.mu.Lock()
	defer sl.sink.mu.Unlock()
	_, _ = sl.sink.output.Write(line)
}

// formatText renders an entry on one line with fields sorted by key.
func formatText(entry LogEntry) string {
	var sb strings.Builder

	sb.WriteString(entry.Timestamp.Format("2006-01-02 15:04:05.000"))
	sb.WriteString(" [")
	sb.WriteString(entry.Level)
	sb.WriteString("] ")

	if entry.Caller != "" {
		sb.WriteString("[")
		sb.WriteString(entry.Caller)
		sb.WriteString("] ")
	}

	sb.WriteString(entry.Message)

	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteString(" {")
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s=%v", k, entry.Fields[k])
		}
		sb.WriteString("}")
	}

	sb.WriteString("\n")
	return sb.String()
}

// Debug logs a debug message
func (sl *StructuredLogger) Debug(message string, fields ...map[string]interface{}) {
	sl.logWithFields(DEBUG, message, fields...)
}

// Info logs an info message
func (sl *StructuredLogger) Info(message string, fields ...map[string]interface{}) {
	sl.logWithFields(INFO, message, fields...)
}

// Warn logs a warning message
func (sl *StructuredLogger) Warn(message string, fields ...map[string]interface{}) {
	sl.logWithFields(WARN, message, fields...)
}

// Error logs an error message
func (sl *StructuredLogger) Error(message string, fields ...map[string]interface{}) {
	sl.logWithFields(ERROR, message, fields...)
}

// Fatal logs a fatal message and exits
func (sl *StructuredLogger) Fatal(message string, fields ...map[string]interface{}) {
	sl.logWithFields(FATAL, message, fields...)
	_ = sl.Close()
	os.Exit(1)
}

func (sl *StructuredLogger) logWithFields(level LogLevel, message string, fieldMaps ...map[string]interface{}) {
	var fields map[string]interface{}
	switch len(fieldMaps) {
	case 0:
	case 1:
		fields = fieldMaps[0]
	default:
		fields = make(map[string]interface{})
		for _, m := range fieldMaps {
			for k, v := range m {
				fields[k] = v
			}
		}
	}
	sl.log(level, message, fields)
}

// Close closes the output when it is a file other than stdout or stderr.
func (sl *StructuredLogger) Close() error {
	sl.sink.mu.Lock()
	defer sl.sink.mu.Unlock()

	if f, ok := sl.sink.output.(*os.File); ok {
		if f == os.Stdout || f == os.Stderr {
			return nil
		}
		return f.Close()
	}
	if c, ok := sl.sink.output.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// Sync flushes file-backed output.
func (sl *StructuredLogger) Sync() error {
	sl.sink.mu.Lock()
	defer sl.sink.mu.Unlock()

	if f, ok := sl.sink.output.(*os.File); ok && f != os.Stdout && f != os.Stderr {
		return f.Sync()
	}
	return nil
}
