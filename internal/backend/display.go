package backend

import "fmt"

// Mode is a display timing advertised by a connector.
type Mode struct {
	Width      int `json:"width"`
	Height     int `json:"height"`
	RefreshMHz int `json:"refresh_mhz,omitempty"`
}

func (m Mode) String() string {
	if m.RefreshMHz == 0 {
		return fmt.Sprintf("%dx%d", m.Width, m.Height)
	}
	return fmt.Sprintf("%dx%d@%d.%03d", m.Width, m.Height, m.RefreshMHz/1000, m.RefreshMHz%1000)
}

// Display is one connected output. It is valid only while it belongs to an
// initialized Backend.
type Display struct {
	// ID is the hardware identifier of the connector.
	ID uint32
	// Name is the connector name, e.g. "HDMI-A-1".
	Name  string
	Modes []Mode
	// State is owned by the DisplayManager that created the display.
	State any

	backend *Backend
}

// Backend returns the backend that owns d, or nil once d has been removed.
func (d *Display) Backend() *Backend {
	return d.backend
}

// Displays returns the owned displays in discovery order.
func (b *Backend) Displays() []*Display {
	out := make([]*Display, len(b.displays))
	copy(out, b.displays)
	return out
}

// DisplayByID returns the display with the given connector id.
func (b *Backend) DisplayByID(id uint32) (*Display, bool) {
	for _, d := range b.displays {
		if d.ID == id {
			return d, true
		}
	}
	return nil, false
}

// AddDisplay takes ownership of d, appends it to the display list and fires
// DisplayAdded.
func (b *Backend) AddDisplay(d *Display) error {
	if d.backend != nil {
		return fmt.Errorf("display %s already belongs to a backend", d.Name)
	}
	if _, exists := b.DisplayByID(d.ID); exists {
		return fmt.Errorf("display with id %d already exists", d.ID)
	}
	d.backend = b
	b.displays = append(b.displays, d)
	b.metrics.SetDisplays(len(b.displays))
	b.metrics.RecordDisplayEvent("added")

	b.logger.Info("display added", "id", d.ID, "name", d.Name, "modes", len(d.Modes))
	b.Events.DisplayAdded.Emit(d)
	return nil
}

// RemoveDisplay handles a single disconnect: it fires DisplayRemoved, then
// tears d down with its previous mode restored.
func (b *Backend) RemoveDisplay(d *Display) error {
	idx := -1
	for i, cur := range b.displays {
		if cur == d {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("display %s is not owned by this backend", d.Name)
	}

	b.displays = append(b.displays[:idx:idx], b.displays[idx+1:]...)
	b.metrics.SetDisplays(len(b.displays))
	b.metrics.RecordDisplayEvent("removed")

	b.logger.Info("display removed", "id", d.ID, "name", d.Name)
	b.Events.DisplayRemoved.Emit(d)

	err := b.platform.Displays.FreeDisplay(d, false)
	d.backend = nil
	if err != nil {
		return fmt.Errorf("failed to free display %s: %w", d.Name, err)
	}
	return nil
}

// RenderDisplay fires DisplayRender for d.
func (b *Backend) RenderDisplay(d *Display) {
	if d.backend != b {
		return
	}
	b.metrics.RecordDisplayEvent("render")
	b.Events.DisplayRender.Emit(d)
}

// Rescan asks the display manager to reconcile connectors, e.g. after a
// hotplug event.
func (b *Backend) Rescan() error {
	if err := b.platform.Displays.Scan(b); err != nil {
		return &ScanError{Err: err}
	}
	return nil
}
