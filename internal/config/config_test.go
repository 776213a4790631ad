package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestDefaultConfig_Valid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if cfg.RescanInterval() != 30*time.Second {
		t.Fatalf("unexpected rescan interval %v", cfg.RescanInterval())
	}
}

func TestLoadFromPath_MissingFileUsesDefaults(t *testing.T) {
	res, err := LoadFromPath(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.File != "" {
		t.Fatalf("expected no file to be recorded, got %q", res.File)
	}
	if *res.Config != *DefaultConfig() {
		t.Fatalf("expected defaults, got %+v", res.Config)
	}
}

func TestLoadFromPath_EmptyFileUsesDefaults(t *testing.T) {
	res, err := LoadFromPath(writeConfig(t, "# empty\n"))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if res.Config.Seat != "seat0" || !res.Config.Hotplug {
		t.Fatalf("expected defaults, got %+v", res.Config)
	}
}

func TestLoadFromPath_OverridesKeepOtherDefaults(t *testing.T) {
	path := writeConfig(t, strings.Join([]string{
		"seat: seat1",
		"hotplug: false",
		"display_source: randr",
		"x11_display: \":1\"",
		"rescan_interval_seconds: 0",
		"metrics_listen: 127.0.0.1:9464",
		"",
	}, "\n"))

	res, err := LoadFromPath(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	cfg := res.Config
	if cfg.Seat != "seat1" || cfg.Hotplug || cfg.DisplaySource != DisplaySourceRandR || cfg.X11Display != ":1" {
		t.Fatalf("overrides not applied: %+v", cfg)
	}
	if cfg.RescanInterval() != 0 {
		t.Fatalf("expected rescan to be disabled")
	}
	if cfg.SysfsRoot != "/sys" || cfg.LogLevel != "info" {
		t.Fatalf("expected untouched keys to keep defaults: %+v", cfg)
	}
	if src := res.Sources["seat"]; src.Line != 1 || src.File != path {
		t.Fatalf("unexpected source for seat: %+v", src)
	}
}

func TestLoadFromPath_UnknownKeyRejected(t *testing.T) {
	if _, err := LoadFromPath(writeConfig(t, "hotkey: super+t\n")); err == nil {
		t.Fatalf("expected unknown key to be rejected")
	}
}

func TestLoadFromPath_ValidationErrorCarriesSource(t *testing.T) {
	path := writeConfig(t, "seat: seat0\ndisplay_source: wayland\n")

	_, err := LoadFromPath(path)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if verr.Path != "display_source" || verr.Source.Line != 2 {
		t.Fatalf("unexpected validation error: %+v", verr)
	}
	if !strings.HasPrefix(err.Error(), path+":2:") {
		t.Fatalf("expected file:line prefix, got %q", err.Error())
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		path   string
	}{
		{name: "empty seat", mutate: func(c *Config) { c.Seat = " " }, path: "seat"},
		{name: "seat with slash", mutate: func(c *Config) { c.Seat = "a/b" }, path: "seat"},
		{name: "log level", mutate: func(c *Config) { c.LogLevel = "trace" }, path: "log_level"},
		{name: "log size", mutate: func(c *Config) { c.LogMaxSizeMB = -1 }, path: "log_max_size_mb"},
		{name: "log files", mutate: func(c *Config) { c.LogMaxFiles = -1 }, path: "log_max_files"},
		{name: "sysfs", mutate: func(c *Config) { c.SysfsRoot = "" }, path: "sysfs_root"},
		{name: "dev", mutate: func(c *Config) { c.DevRoot = "" }, path: "dev_root"},
		{name: "display source", mutate: func(c *Config) { c.DisplaySource = "fbdev" }, path: "display_source"},
		{name: "rescan interval", mutate: func(c *Config) { c.RescanIntervalSeconds = -5 }, path: "rescan_interval_seconds"},
		{name: "metrics address", mutate: func(c *Config) { c.MetricsListen = "9464" }, path: "metrics_listen"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected *ValidationError, got %v", err)
			}
			if verr.Path != tt.path {
				t.Fatalf("expected path %q, got %q", tt.path, verr.Path)
			}
		})
	}
}

func TestMarshal_RoundTripsThroughLoader(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Seat = "seat9"
	data, err := cfg.Marshal()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	res, err := LoadFromPath(writeConfig(t, string(data)))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if *res.Config != *cfg {
		t.Fatalf("expected %+v, got %+v", cfg, res.Config)
	}
}

func TestDefaultConfigPath(t *testing.T) {
	t.Setenv("HOME", "/home/tester")
	path, err := DefaultConfigPath()
	if err != nil {
		t.Fatalf("path: %v", err)
	}
	if path != "/home/tester/.config/scanout/config.yaml" {
		t.Fatalf("unexpected path %q", path)
	}
}
