//go:build linux

// Package platform assembles the Linux collaborators of a backend from the
// daemon configuration.
package platform

import (
	"fmt"
	"log/slog"

	"github.com/1broseidon/scanout/internal/backend"
	"github.com/1broseidon/scanout/internal/config"
	"github.com/1broseidon/scanout/internal/drm"
	"github.com/1broseidon/scanout/internal/runtimepath"
	"github.com/1broseidon/scanout/internal/session"
	"github.com/1broseidon/scanout/internal/udev"
	"github.com/1broseidon/scanout/internal/x11"
)

// Assembly is a Platform plus the resources it holds outside any Backend.
type Assembly struct {
	Platform backend.Platform

	randr *x11.Manager
}

// Close releases resources that outlive the backend, such as the X
// connection of the RandR display source. Call it after Shutdown.
func (a *Assembly) Close() {
	if a != nil && a.randr != nil {
		a.randr.Close()
	}
}

// New builds the platform described by cfg.
func New(cfg *config.Config, logger *slog.Logger) (*Assembly, error) {
	if logger == nil {
		logger = slog.Default()
	}
	lockPath, err := runtimepath.SeatLockPath(cfg.Seat)
	if err != nil {
		return nil, err
	}

	a := &Assembly{}
	var displays backend.DisplayManager
	switch cfg.DisplaySource {
	case config.DisplaySourceSysfs:
		displays = &drm.Manager{SysfsRoot: cfg.SysfsRoot}
	case config.DisplaySourceRandR:
		a.randr = &x11.Manager{Display: cfg.X11Display}
		displays = a.randr
	default:
		return nil, fmt.Errorf("unknown display source %q", cfg.DisplaySource)
	}

	a.Platform = backend.Platform{
		Loops: LoopFactory{},
		Sessions: SessionStarter{Config: session.Config{
			Seat:     cfg.Seat,
			LockPath: lockPath,
			Logger:   logger,
		}},
		Enumerator: udev.Factory{Config: udev.Config{
			SysfsRoot: cfg.SysfsRoot,
			DevRoot:   cfg.DevRoot,
			GPUPath:   cfg.GPU,
			Hotplug:   cfg.Hotplug,
		}},
		Renderers: drm.RendererFactory{},
		Displays:  displays,
	}
	return a, nil
}
