package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Display sources.
const (
	DisplaySourceSysfs = "sysfs"
	DisplaySourceRandR = "randr"
)

// Config is the daemon configuration.
type Config struct {
	// Seat names the seat whose devices the session takes over.
	Seat string `yaml:"seat"`

	// LogLevel controls verbosity: debug, info, warning, error.
	LogLevel string `yaml:"log_level"`

	// LogFile, when set, receives a copy of the log and is rotated by size.
	LogFile string `yaml:"log_file,omitempty"`

	LogMaxSizeMB int `yaml:"log_max_size_mb"`
	LogMaxFiles  int `yaml:"log_max_files"`

	SysfsRoot string `yaml:"sysfs_root"`
	DevRoot   string `yaml:"dev_root"`

	// GPU is an explicit device node; empty selects one from sysfs.
	GPU string `yaml:"gpu,omitempty"`

	// DisplaySource is "sysfs" (DRM connectors) or "randr" (outputs of an
	// X server, for running nested).
	DisplaySource string `yaml:"display_source"`

	X11Display string `yaml:"x11_display,omitempty"`

	// Hotplug enables the kernel uevent monitor.
	Hotplug bool `yaml:"hotplug"`

	// RescanIntervalSeconds is the period of the background rescan; 0
	// disables it.
	RescanIntervalSeconds int `yaml:"rescan_interval_seconds"`

	// MetricsListen is the address of the Prometheus endpoint; empty
	// disables it.
	MetricsListen string `yaml:"metrics_listen,omitempty"`
}

// ValidationError reports an invalid setting, with its location in the
// config file when known.
type ValidationError struct {
	Path   string
	Source Source
	Err    error
}

func (e *ValidationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Source.File != "" && e.Source.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s: %v", e.Source.File, e.Source.Line, e.Source.Column, e.Path, e.Err)
	}
	if e.Path != "" {
		return fmt.Sprintf("%s: %v", e.Path, e.Err)
	}
	return e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Seat:                  "seat0",
		LogLevel:              "info",
		LogMaxSizeMB:          10,
		LogMaxFiles:           3,
		SysfsRoot:             "/sys",
		DevRoot:               "/dev",
		DisplaySource:         DisplaySourceSysfs,
		Hotplug:               true,
		RescanIntervalSeconds: 30,
	}
}

// RescanInterval returns the background rescan period, zero when disabled.
func (c *Config) RescanInterval() time.Duration {
	return time.Duration(c.RescanIntervalSeconds) * time.Second
}

// Validate performs strict validation of the configuration.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Seat) == "" {
		return &ValidationError{Path: "seat", Err: fmt.Errorf("seat is required")}
	}
	if strings.ContainsAny(c.Seat, "/\x00") {
		return &ValidationError{Path: "seat", Err: fmt.Errorf("seat must not contain path separators")}
	}
	switch c.LogLevel {
	case "debug", "info", "warning", "error":
	default:
		return &ValidationError{Path: "log_level", Err: fmt.Errorf("log_level must be one of: debug, info, warning, error")}
	}
	if c.LogMaxSizeMB < 0 {
		return &ValidationError{Path: "log_max_size_mb", Err: fmt.Errorf("log_max_size_mb must be >= 0")}
	}
	if c.LogMaxFiles < 0 {
		return &ValidationError{Path: "log_max_files", Err: fmt.Errorf("log_max_files must be >= 0")}
	}
	if c.SysfsRoot == "" {
		return &ValidationError{Path: "sysfs_root", Err: fmt.Errorf("sysfs_root is required")}
	}
	if c.DevRoot == "" {
		return &ValidationError{Path: "dev_root", Err: fmt.Errorf("dev_root is required")}
	}
	switch c.DisplaySource {
	case DisplaySourceSysfs, DisplaySourceRandR:
	default:
		return &ValidationError{Path: "display_source", Err: fmt.Errorf("display_source must be one of: sysfs, randr")}
	}
	if c.RescanIntervalSeconds < 0 {
		return &ValidationError{Path: "rescan_interval_seconds", Err: fmt.Errorf("rescan_interval_seconds must be >= 0")}
	}
	if c.MetricsListen != "" {
		if _, _, err := net.SplitHostPort(c.MetricsListen); err != nil {
			return &ValidationError{Path: "metrics_listen", Err: fmt.Errorf("metrics_listen must be host:port: %w", err)}
		}
	}
	return nil
}

// Marshal renders the configuration as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return data, nil
}
