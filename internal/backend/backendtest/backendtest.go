// Package backendtest provides in-memory collaborators for building a real
// backend.Backend in tests of packages that sit on top of it.
package backendtest

import (
	"context"
	"sync"
	"testing"

	"github.com/1broseidon/scanout/internal/backend"
)

type source struct{ fd int }

func (s *source) FD() int { return s.fd }

// Loop is a dispatch loop that never blocks. Posted functions run inline.
type Loop struct {
	mu      sync.Mutex
	sources map[backend.Source]func(backend.FDEvents)
}

func (l *Loop) AddFD(fd int, fn func(backend.FDEvents)) (backend.Source, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	src := &source{fd: fd}
	l.sources[src] = fn
	return src, nil
}

func (l *Loop) RemoveSource(src backend.Source) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.sources, src)
	return nil
}

func (l *Loop) Post(fn func())                { fn() }
func (l *Loop) Run(ctx context.Context) error { <-ctx.Done(); return nil }
func (l *Loop) Destroy()                      {}

// Fire runs every registered source callback, as if all were readable.
func (l *Loop) Fire() {
	l.FireEvents(backend.FDReadable)
}

// FireEvents runs every registered source callback with ev.
func (l *Loop) FireEvents(ev backend.FDEvents) {
	l.mu.Lock()
	fns := make([]func(backend.FDEvents), 0, len(l.sources))
	for _, fn := range l.sources {
		fns = append(fns, fn)
	}
	l.mu.Unlock()
	for _, fn := range fns {
		fn(ev)
	}
}

// Sources returns the number of registered sources.
func (l *Loop) Sources() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.sources)
}

// Device is a device handle with a caller-chosen descriptor.
type Device struct {
	Descriptor int
	Node       string
}

func (d *Device) FD() int      { return d.Descriptor }
func (d *Device) Path() string { return d.Node }

type session struct{ dev *Device }

func (s *session) Seat() string                              { return "seat0" }
func (s *session) OpenDevice(string) (backend.Device, error) { return s.dev, nil }
func (s *session) ReleaseDevice(backend.Device) error        { return nil }
func (s *session) End() error                                { return nil }

type renderer struct{}

func (renderer) Name() string { return "test" }
func (renderer) Free() error  { return nil }

type platform struct {
	loop *Loop
	dev  *Device
}

func (p *platform) CreateLoop() (backend.Loop, error)      { return p.loop, nil }
func (p *platform) StartSession() (backend.Session, error) { return &session{dev: p.dev}, nil }
func (p *platform) FindGPU(s backend.Session) (backend.Device, error) {
	return s.OpenDevice(p.dev.Node)
}
func (p *platform) Free() error { return nil }

func (p *platform) InitEnumerator(*backend.Backend) (backend.Enumerator, error) {
	return p, nil
}

func (p *platform) InitRenderer(*backend.Backend, backend.Device) (backend.Renderer, error) {
	return renderer{}, nil
}

// New initializes a backend whose displays come from displays and whose GPU
// is dev. The backend is shut down when the test ends.
func New(t testing.TB, displays backend.DisplayManager, dev *Device) (*backend.Backend, *Loop) {
	t.Helper()
	if dev == nil {
		dev = &Device{Descriptor: -1, Node: "/dev/dri/card0"}
	}
	loop := &Loop{sources: make(map[backend.Source]func(backend.FDEvents))}
	p := &platform{loop: loop, dev: dev}
	b, err := backend.New(backend.Platform{
		Loops:      p,
		Sessions:   p,
		Enumerator: p,
		Renderers:  p,
		Displays:   displays,
	}, backend.Config{})
	if err != nil {
		t.Fatalf("backend init: %v", err)
	}
	t.Cleanup(b.Shutdown)
	return b, loop
}

// Displays is a DisplayManager over a mutable list of connected names. A
// name keeps the ID it was first seen with; IDs start at 1.
type Displays struct {
	mu        sync.Mutex
	connected []string
	ids       map[string]uint32
	scanErr   error
	scans     int
}

// SetConnected replaces the list reported by the next scan.
func (m *Displays) SetConnected(names ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = append([]string(nil), names...)
}

// FailScans makes subsequent scans return err; nil restores them.
func (m *Displays) FailScans(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.scanErr = err
}

// ScanCount reports how many scans have run.
func (m *Displays) ScanCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.scans
}

func (m *Displays) Scan(b *backend.Backend) error {
	m.mu.Lock()
	names := append([]string(nil), m.connected...)
	if m.ids == nil {
		m.ids = make(map[string]uint32)
	}
	for _, name := range names {
		if _, ok := m.ids[name]; !ok {
			m.ids[name] = uint32(len(m.ids) + 1)
		}
	}
	ids := make(map[string]uint32, len(m.ids))
	for k, v := range m.ids {
		ids[k] = v
	}
	m.scans++
	err := m.scanErr
	m.mu.Unlock()
	if err != nil {
		return err
	}

	present := make(map[string]bool, len(names))
	for _, name := range names {
		present[name] = true
		if findByName(b, name) != nil {
			continue
		}
		if err := b.AddDisplay(&backend.Display{
			ID:    ids[name],
			Name:  name,
			Modes: []backend.Mode{{Width: 1920, Height: 1080, RefreshMHz: 60000}},
		}); err != nil {
			return err
		}
	}
	for _, d := range b.Displays() {
		if !present[d.Name] {
			if err := b.RemoveDisplay(d); err != nil {
				return err
			}
		}
	}
	return nil
}

func (m *Displays) FreeDisplay(*backend.Display, bool) error { return nil }

func (m *Displays) DispatchDeviceEvents(*backend.Backend, backend.Device) error { return nil }

func findByName(b *backend.Backend, name string) *backend.Display {
	for _, d := range b.Displays() {
		if d.Name == name {
			return d
		}
	}
	return nil
}
