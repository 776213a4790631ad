package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Source locates a setting in a config file.
type Source struct {
	File   string
	Line   int
	Column int
}

// LoadResult is a loaded configuration plus where each key was set.
type LoadResult struct {
	Config  *Config
	Sources map[string]Source // YAML key -> position in File
	// File is the loaded file, empty when defaults were used.
	File string
}

func DefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "scanout", "config.yaml"), nil
}

// Load reads the configuration from the standard location. A missing file
// yields the defaults.
func Load() (*Config, error) {
	path, err := DefaultConfigPath()
	if err != nil {
		return nil, err
	}
	res, err := LoadFromPath(path)
	if err != nil {
		return nil, err
	}
	return res.Config, nil
}

// LoadFromPath reads and validates the configuration at path. Keys absent
// from the file keep their defaults; unknown keys are rejected.
func LoadFromPath(path string) (*LoadResult, error) {
	cfg := DefaultConfig()
	res := &LoadResult{Config: cfg, Sources: map[string]Source{}}

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	default:
		if err := decodeStrictYAML(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		var doc yaml.Node
		if err := yaml.Unmarshal(data, &doc); err == nil {
			res.Sources = collectSources(&doc, path)
		}
		res.File = path
	}

	if err := cfg.Validate(); err != nil {
		return nil, attachSourceContext(err, res.Sources)
	}
	return res, nil
}

func decodeStrictYAML(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return nil
}

func collectSources(doc *yaml.Node, file string) map[string]Source {
	out := make(map[string]Source)
	node := doc
	if node.Kind == yaml.DocumentNode && len(node.Content) > 0 {
		node = node.Content[0]
	}
	if node.Kind != yaml.MappingNode {
		return out
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		val := node.Content[i+1]
		out[node.Content[i].Value] = Source{File: file, Line: val.Line, Column: val.Column}
	}
	return out
}

func attachSourceContext(err error, sources map[string]Source) error {
	verr, ok := err.(*ValidationError)
	if !ok || verr.Path == "" {
		return err
	}
	if src, ok := sources[verr.Path]; ok {
		verr.Source = src
	}
	return verr
}
