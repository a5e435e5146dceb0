/*
Package config provides configuration management for passthroughfs.

Values are layered with the following precedence:

	┌─────────────────────────────────────────────┐
	│        Command-line flags                   │ ← Highest Priority
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│        Environment Variables                │
	│          (PASSTHROUGHFS_*)                  │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│         Configuration File (YAML)           │
	└─────────────────────────────────────────────┘
	                      │
	┌─────────────────────────────────────────────┐
	│           Default Values                    │ ← Lowest Priority
	└─────────────────────────────────────────────┘

# Example

	global:
	  log_level: INFO
	  log_format: text

	backend:
	  root: /tmp/fuse_data
	  max_path_len: 4096

	mount:
	  mount_point: /mnt/passthrough
	  allow_other: false
	  attr_timeout: 1s
	  entry_timeout: 1s
	  max_write: 128KB

	monitoring:
	  metrics:
	    enabled: true
	    port: 9090
	    path: /metrics

# Usage

	cfg := config.NewDefault()
	if err := cfg.LoadFromFile(path); err != nil {
		return err
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

Unknown keys in a configuration file are rejected so that a misspelled
option does not silently fall back to its default.

Validate refuses a mount point that equals or lies inside the backend root.
*/
package config
