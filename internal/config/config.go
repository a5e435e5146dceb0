package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/objectfs/passthroughfs/internal/passthrough"
	"github.com/objectfs/passthroughfs/pkg/utils"
)

// Configuration represents the complete application configuration
type Configuration struct {
	Global     GlobalConfig     `yaml:"global"`
	Backend    BackendConfig    `yaml:"backend"`
	Mount      MountConfig      `yaml:"mount"`
	Monitoring MonitoringConfig `yaml:"monitoring"`
}

// GlobalConfig represents global application settings
type GlobalConfig struct {
	LogLevel  string `yaml:"log_level"`
	LogFile   string `yaml:"log_file"`
	LogFormat string `yaml:"log_format"`
}

// BackendConfig describes the directory tree being exposed.
type BackendConfig struct {
	Root       string `yaml:"root"`
	MaxPathLen int    `yaml:"max_path_len"`
}

// MountConfig holds FUSE mount options.
type MountConfig struct {
	MountPoint   string        `yaml:"mount_point"`
	FSName       string        `yaml:"fsname"`
	Subtype      string        `yaml:"subtype"`
	AllowOther   bool          `yaml:"allow_other"`
	Debug        bool          `yaml:"debug"`
	AttrTimeout  time.Duration `yaml:"attr_timeout"`
	EntryTimeout time.Duration `yaml:"entry_timeout"`
	MaxWrite     string        `yaml:"max_write"`
}

// MonitoringConfig represents monitoring settings
type MonitoringConfig struct {
	Metrics MetricsConfig `yaml:"metrics"`
}

// MetricsConfig represents metrics settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Port      int    `yaml:"port"`
	Path      string `yaml:"path"`
	Namespace string `yaml:"namespace"`
}

// NewDefault returns a configuration with sensible defaults
func NewDefault() *Configuration {
	return &Configuration{
		Global: GlobalConfig{
			LogLevel:  "INFO",
			LogFile:   "",
			LogFormat: "text",
		},
		Backend: BackendConfig{
			Root:       "/tmp/fuse_data",
			MaxPathLen: passthrough.DefaultMaxPathLen,
		},
		Mount: MountConfig{
			FSName:       "passthroughfs",
			Subtype:      "passthroughfs",
			AttrTimeout:  time.Second,
			EntryTimeout: time.Second,
			MaxWrite:     "128KB",
		},
		Monitoring: MonitoringConfig{
			Metrics: MetricsConfig{
				Enabled:   false,
				Port:      9090,
				Path:      "/metrics",
				Namespace: "passthroughfs",
			},
		},
	}
}

// LoadFromFile loads configuration from a YAML file
func (c *Configuration) LoadFromFile(filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.UnmarshalStrict(data, c); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// LoadFromEnv loads configuration from PASSTHROUGHFS_* environment
// variables. Malformed numeric or boolean values are reported rather than
// ignored.
func (c *Configuration) LoadFromEnv() error {
	if val := os.Getenv("PASSTHROUGHFS_LOG_LEVEL"); val != "" {
		c.Global.LogLevel = val
	}
	if val := os.Getenv("PASSTHROUGHFS_LOG_FILE"); val != "" {
		c.Global.LogFile = val
	}
	if val := os.Getenv("PASSTHROUGHFS_LOG_FORMAT"); val != "" {
		c.Global.LogFormat = val
	}

	if val := os.Getenv("PASSTHROUGHFS_ROOT"); val != "" {
		c.Backend.Root = val
	}
	if err := envInt("PASSTHROUGHFS_MAX_PATH_LEN", &c.Backend.MaxPathLen); err != nil {
		return err
	}

	if val := os.Getenv("PASSTHROUGHFS_MOUNT_POINT"); val != "" {
		c.Mount.MountPoint = val
	}
	if err := envBool("PASSTHROUGHFS_ALLOW_OTHER", &c.Mount.AllowOther); err != nil {
		return err
	}
	if err := envBool("PASSTHROUGHFS_DEBUG", &c.Mount.Debug); err != nil {
		return err
	}
	if val := os.Getenv("PASSTHROUGHFS_MAX_WRITE"); val != "" {
		c.Mount.MaxWrite = val
	}

	if err := envBool("PASSTHROUGHFS_METRICS_ENABLED", &c.Monitoring.Metrics.Enabled); err != nil {
		return err
	}
	if err := envInt("PASSTHROUGHFS_METRICS_PORT", &c.Monitoring.Metrics.Port); err != nil {
		return err
	}

	return nil
}

func envInt(name string, dst *int) error {
	val := os.Getenv(name)
	if val == "" {
		return nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = n
	return nil
}

func envBool(name string, dst *bool) error {
	val := os.Getenv(name)
	if val == "" {
		return nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	*dst = b
	return nil
}

// SaveToFile saves the configuration to a YAML file
func (c *Configuration) SaveToFile(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(filename), 0750); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// MaxWriteBytes returns mount.max_write in bytes.
func (c *Configuration) MaxWriteBytes() (int, error) {
	n, err := utils.ParseBytes(c.Mount.MaxWrite)
	if err != nil {
		return 0, fmt.Errorf("invalid max_write: %w", err)
	}
	return int(n), nil
}

// Validate validates the configuration
func (c *Configuration) Validate() error {
	validLogLevels := []string{"TRACE", "DEBUG", "INFO", "WARN", "ERROR"}
	logLevelValid := false
	for _, level := range validLogLevels {
		if strings.EqualFold(c.Global.LogLevel, level) {
			logLevelValid = true
			break
		}
	}
	if !logLevelValid {
		return fmt.Errorf("invalid log_level: %s (must be one of: %s)",
			c.Global.LogLevel, strings.Join(validLogLevels, ", "))
	}
	if _, err := utils.ParseLogFormat(c.Global.LogFormat); err != nil {
		return fmt.Errorf("invalid log_format: %s (must be text or json)", c.Global.LogFormat)
	}

	if err := utils.ValidateDirectory(c.Backend.Root); err != nil {
		return fmt.Errorf("invalid backend root: %w", err)
	}
	if c.Backend.MaxPathLen < 0 {
		return fmt.Errorf("max_path_len must not be negative")
	}

	if c.Mount.MountPoint == "" {
		return fmt.Errorf("mount_point is required")
	}
	if !filepath.IsAbs(c.Mount.MountPoint) {
		return fmt.Errorf("mount_point must be absolute: %s", c.Mount.MountPoint)
	}
	// A mount inside the backend root would make the filesystem reach
	// itself through the passthrough.
	if utils.IsWithin(c.Backend.Root, c.Mount.MountPoint) {
		return fmt.Errorf("mount_point %s must not be inside backend root %s",
			c.Mount.MountPoint, c.Backend.Root)
	}
	if c.Mount.AttrTimeout < 0 || c.Mount.EntryTimeout < 0 {
		return fmt.Errorf("attr_timeout and entry_timeout must not be negative")
	}
	if n, err := c.MaxWriteBytes(); err != nil {
		return err
	} else if n <= 0 {
		return fmt.Errorf("max_write must be greater than 0")
	}

	if c.Monitoring.Metrics.Enabled {
		if c.Monitoring.Metrics.Port <= 0 || c.Monitoring.Metrics.Port > 65535 {
			return fmt.Errorf("metrics port out of range: %d", c.Monitoring.Metrics.Port)
		}
		if !strings.HasPrefix(c.Monitoring.Metrics.Path, "/") {
			return fmt.Errorf("metrics path must start with /: %s", c.Monitoring.Metrics.Path)
		}
	}

	return nil
}
