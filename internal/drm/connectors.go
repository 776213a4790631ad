package drm

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/1broseidon/scanout/internal/backend"
)

// Connector status values reported by sysfs.
const (
	StatusConnected    = "connected"
	StatusDisconnected = "disconnected"
	StatusUnknown      = "unknown"
)

// Connector is a DRM connector as described by sysfs.
type Connector struct {
	ID     uint32
	Name   string
	Status string
	Modes  []backend.Mode
	// KernelID is set when ID is the kernel's connector id rather than a
	// positional stand-in.
	KernelID bool
}

// ListConnectors reads the connectors of card from sysfsRoot/class/drm. IDs
// come from connector_id when the kernel exposes it, otherwise from the
// connector's position in name order.
func ListConnectors(sysfsRoot, card string) ([]Connector, error) {
	dir := filepath.Join(sysfsRoot, "class", "drm")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	prefix := card + "-"
	var names []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), prefix) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	conns := make([]Connector, 0, len(names))
	for i, entry := range names {
		path := filepath.Join(dir, entry)
		c := Connector{
			ID:     uint32(i + 1),
			Name:   strings.TrimPrefix(entry, prefix),
			Status: readStatus(filepath.Join(path, "status")),
			Modes:  readModes(filepath.Join(path, "modes")),
		}
		if raw := readFile(filepath.Join(path, "connector_id")); raw != "" {
			if id, err := strconv.ParseUint(raw, 10, 32); err == nil {
				c.ID = uint32(id)
				c.KernelID = true
			}
		}
		conns = append(conns, c)
	}
	return conns, nil
}

func readStatus(path string) string {
	switch s := readFile(path); s {
	case StatusConnected, StatusDisconnected:
		return s
	default:
		return StatusUnknown
	}
}

func readModes(path string) []backend.Mode {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var modes []backend.Mode
	seen := make(map[backend.Mode]bool)
	for _, line := range strings.Split(string(data), "\n") {
		m, ok := ParseMode(line)
		if !ok || seen[m] {
			continue
		}
		seen[m] = true
		modes = append(modes, m)
	}
	return modes
}

// ParseMode parses a sysfs mode line such as "1920x1080" or "1920x1080i".
func ParseMode(s string) (backend.Mode, bool) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "i")
	w, h, ok := strings.Cut(s, "x")
	if !ok {
		return backend.Mode{}, false
	}
	width, err := strconv.Atoi(w)
	if err != nil || width <= 0 {
		return backend.Mode{}, false
	}
	height, err := strconv.Atoi(h)
	if err != nil || height <= 0 {
		return backend.Mode{}, false
	}
	return backend.Mode{Width: width, Height: height}, true
}

func readFile(path string) string {
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
