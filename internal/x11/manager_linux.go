//go:build linux

package x11

import (
	"fmt"
	"sync"

	"github.com/1broseidon/scanout/internal/backend"
	"github.com/1broseidon/scanout/internal/drm"
)

// OutputState is the Display.State of displays created by Manager.
type OutputState struct {
	Output string
}

// Manager is a backend.DisplayManager whose displays are the connected
// outputs of an X server. The connection is opened on the first scan.
type Manager struct {
	Display string

	mu   sync.Mutex
	conn *Connection
	// list is swapped out in tests.
	list func() ([]Output, error)
}

func (m *Manager) outputs() ([]Output, error) {
	if m.list != nil {
		return m.list()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn == nil {
		conn, err := NewConnection(m.Display)
		if err != nil {
			return nil, err
		}
		m.conn = conn
	}
	return m.conn.Outputs()
}

// Scan implements backend.DisplayManager.
func (m *Manager) Scan(b *backend.Backend) error {
	outputs, err := m.outputs()
	if err != nil {
		return err
	}

	connected := make(map[uint32]bool)
	for _, out := range outputs {
		if !out.Connected {
			continue
		}
		connected[out.ID] = true
		if _, exists := b.DisplayByID(out.ID); exists {
			continue
		}
		state := &OutputState{Output: out.Name}
		if err := b.AddDisplay(&backend.Display{
			ID:    out.ID,
			Name:  out.Name,
			Modes: out.Modes,
			State: state,
		}); err != nil {
			return err
		}
	}

	for _, d := range b.Displays() {
		if !connected[d.ID] {
			if err := b.RemoveDisplay(d); err != nil {
				return err
			}
		}
	}
	return nil
}

// FreeDisplay implements backend.DisplayManager. Output modes belong to
// the X server and are never changed here, so there is nothing to restore.
func (m *Manager) FreeDisplay(d *backend.Display, full bool) error {
	if _, ok := d.State.(*OutputState); !ok {
		return fmt.Errorf("display %s has no output state", d.Name)
	}
	return nil
}

// DispatchDeviceEvents implements backend.DisplayManager.
func (m *Manager) DispatchDeviceEvents(b *backend.Backend, dev backend.Device) error {
	return drm.DispatchFlips(b, dev)
}

// Close drops the X connection, if one was opened.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.conn != nil {
		m.conn.Close()
		m.conn = nil
	}
}
