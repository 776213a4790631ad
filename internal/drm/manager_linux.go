//go:build linux

package drm

import (
	"fmt"
	"path/filepath"

	"github.com/1broseidon/scanout/internal/backend"
)

// ConnectorState is the Display.State of displays created by Manager.
type ConnectorState struct {
	Card      string
	Connector string
	// CRTC is the CRTC state found when the connector was discovered. It is
	// nil when the connector was not lit or its state could not be read.
	CRTC *SavedCRTC
}

// Manager discovers displays from sysfs connectors of the backend's GPU.
type Manager struct {
	SysfsRoot string
	// CRTCs defaults to KernelCRTCs.
	CRTCs CRTCStore
}

// cardFor maps the backend's device node to its sysfs card name.
func cardFor(b *backend.Backend) string {
	path := b.DevicePath()
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	return filepath.Base(path)
}

// Scan implements backend.DisplayManager. Newly connected connectors are
// added in sysfs order; displays whose connector went away are removed.
func (m *Manager) Scan(b *backend.Backend) error {
	card := cardFor(b)
	conns, err := ListConnectors(m.SysfsRoot, card)
	if err != nil {
		return err
	}

	connected := make(map[uint32]bool)
	for _, c := range conns {
		if c.Status != StatusConnected {
			continue
		}
		connected[c.ID] = true
		if _, exists := b.DisplayByID(c.ID); exists {
			continue
		}

		state := &ConnectorState{Card: card, Connector: c.Name}
		if c.KernelID {
			crtc, err := m.crtcStore().Save(b.Device().FD(), c.ID)
			if err != nil {
				b.Logger().Debug("could not read CRTC state", "connector", c.Name, "error", err)
			}
			state.CRTC = crtc
		}
		d := &backend.Display{
			ID:    c.ID,
			Name:  c.Name,
			Modes: c.Modes,
			State: state,
		}
		if err := b.AddDisplay(d); err != nil {
			return err
		}
	}

	for _, d := range b.Displays() {
		if connected[d.ID] {
			continue
		}
		if err := b.RemoveDisplay(d); err != nil {
			return err
		}
	}
	return nil
}

// FreeDisplay implements backend.DisplayManager. A single removal puts the
// connector's CRTC back the way it was found; a full teardown leaves it.
func (m *Manager) FreeDisplay(d *backend.Display, full bool) error {
	state, ok := d.State.(*ConnectorState)
	if !ok {
		return fmt.Errorf("display %s has no connector state", d.Name)
	}
	if full || state.CRTC == nil {
		return nil
	}

	b := d.Backend()
	if err := m.crtcStore().Restore(b.Device().FD(), state.CRTC); err != nil {
		return fmt.Errorf("restore %s: %w", state.Connector, err)
	}
	b.Logger().Debug("restored CRTC",
		"connector", state.Connector,
		"crtc", state.CRTC.CrtcID,
		"mode", state.CRTC.ModeString())
	state.CRTC = nil
	return nil
}
