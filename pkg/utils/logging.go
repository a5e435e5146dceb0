package utils

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// LogLevel represents the logging level
type LogLevel int

const (
	TRACE LogLevel = iota
	DEBUG
	INFO
	WARN
	ERROR
	FATAL
)

// String returns the string representation of the log level
func (l LogLevel) String() string {
	switch l {
	case TRACE:
		return "TRACE"
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	case FATAL:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLogLevel parses a string log level
func ParseLogLevel(level string) (LogLevel, error) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "TRACE":
		return TRACE, nil
	case "DEBUG":
		return DEBUG, nil
	case "INFO":
		return INFO, nil
	case "WARN", "WARNING":
		return WARN, nil
	case "ERROR":
		return ERROR, nil
	case "FATAL":
		return FATAL, nil
	default:
		return INFO, fmt.Errorf("invalid log level: %s", level)
	}
}

// ParseLogFormat parses "text" or "json".
func ParseLogFormat(format string) (LogFormat, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	default:
		return FormatText, fmt.Errorf("invalid log format: %s", format)
	}
}

// OpenLogOutput returns stderr for an empty path, otherwise the file opened
// for appending.
func OpenLogOutput(logFile string) (io.Writer, error) {
	if logFile == "" {
		return os.Stderr, nil
	}
	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return file, nil
}

// SetupLogging builds a structured logger from the global configuration
// values.
func SetupLogging(levelStr, formatStr, logFile string) (*StructuredLogger, error) {
	level, err := ParseLogLevel(levelStr)
	if err != nil {
		return nil, err
	}
	format, err := ParseLogFormat(formatStr)
	if err != nil {
		return nil, err
	}
	output, err := OpenLogOutput(logFile)
	if err != nil {
		return nil, err
	}

	return NewStructuredLogger(&StructuredLoggerConfig{
		Level:         level,
		Output:        output,
		Format:        format,
		IncludeCaller: level <= DEBUG,
	})
}

// FormatBytes formats bytes as human-readable string
func FormatBytes(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}

	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}

	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// ParseBytes parses a human-readable byte string such as "128K" or "1MB".
func ParseBytes(s string) (int64, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, fmt.Errorf("empty string")
	}

	s = strings.TrimSuffix(s, "B")
	multiplier := int64(1)
	if n := len(s); n > 0 {
		if idx := strings.IndexByte("KMGTP", s[n-1]); idx >= 0 {
			multiplier = int64(1) << (10 * (idx + 1))
			s = s[:n-1]
		}
	}

	var num float64
	if _, err := fmt.Sscanf(s, "%f", &num); err != nil || num < 0 {
		return 0, fmt.Errorf("invalid number format: %s", s)
	}

	return int64(num * float64(multiplier)), nil
}
