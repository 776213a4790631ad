// Package backend owns the lifecycle of a display hardware backend: the
// dispatch loop, the seat session, device enumeration, the GPU device, the
// renderer context and the displays driven through them.
//
// New acquires those resources in a fixed order and either returns a fully
// initialized Backend or releases everything it acquired. Shutdown releases
// them in reverse order.
package backend

import (
	"io"
	"log/slog"
	"time"

	"github.com/1broseidon/scanout/internal/metrics"
	"github.com/1broseidon/scanout/internal/notify"
)

// Config holds optional dependencies for New.
type Config struct {
	Logger  *slog.Logger
	Metrics *metrics.Backend
}

// Events are the backend's notification channels.
type Events struct {
	DisplayAdded   *notify.Signal[*Display]
	DisplayRemoved *notify.Signal[*Display]
	DisplayRender  *notify.Signal[*Display]
}

// Backend is a fully initialized display backend. It is driven from a single
// goroutine: the one running its Loop.
type Backend struct {
	Events Events

	platform Platform
	logger   *slog.Logger
	metrics  *metrics.Backend

	loop      Loop
	session   Session
	enum      Enumerator
	device    Device
	renderer  Renderer
	deviceSrc Source
	displays  []*Display

	shutdown bool
}

// New initializes a backend from p. On failure every resource acquired so far
// has been released and the returned error is ErrIncompletePlatform or a
// *StageError. A failed connector scan is logged and does not fail New.
func New(p Platform, cfg Config) (*Backend, error) {
	if !p.complete() {
		return nil, ErrIncompletePlatform
	}

	logger := cfg.Logger
	if logger == nil {
		logger = discardLogger()
	}

	b := &Backend{
		platform: p,
		logger:   logger,
		metrics:  cfg.Metrics,
	}

	start := time.Now()
	if err := runStages(b.stages(), logger); err != nil {
		if se, ok := err.(*StageError); ok {
			b.metrics.RecordStageFailure(se.Stage.String())
		}
		return nil, err
	}
	b.metrics.ObserveInit(time.Since(start))

	logger.Info("backend initialized",
		"seat", b.session.Seat(),
		"device", b.device.Path(),
		"renderer", b.renderer.Name(),
		"displays", len(b.displays))
	return b, nil
}

func (b *Backend) stages() []stage {
	return []stage{
		{
			id: StageLoop,
			acquire: func() (err error) {
				b.loop, err = b.platform.Loops.CreateLoop()
				return err
			},
			release: func() {
				b.loop.Destroy()
				b.loop = nil
			},
		},
		{
			id: StageSession,
			acquire: func() (err error) {
				b.session, err = b.platform.Sessions.StartSession()
				return err
			},
			release: func() {
				b.endSession()
			},
		},
		{
			id: StageEnumerator,
			acquire: func() (err error) {
				b.enum, err = b.platform.Enumerator.InitEnumerator(b)
				return err
			},
			release: func() {
				b.freeEnumerator()
			},
		},
		{
			id: StageDevice,
			acquire: func() (err error) {
				b.device, err = b.enum.FindGPU(b.session)
				return err
			},
			release: func() {
				b.releaseDevice()
			},
		},
		{
			id:      StageRenderer,
			acquire: b.initRenderer,
			release: func() {
				b.removeDeviceSource()
				b.freeRenderer()
			},
		},
		{
			id: StageSignals,
			acquire: func() error {
				b.Events = Events{
					DisplayAdded:   notify.New[*Display](),
					DisplayRemoved: notify.New[*Display](),
					DisplayRender:  notify.New[*Display](),
				}
				return nil
			},
		},
		{
			id: StageScan,
			acquire: func() error {
				if err := b.platform.Displays.Scan(b); err != nil {
					b.logger.Warn("initial connector scan failed; continuing without displays",
						"stage", StageScan, "error", &ScanError{Err: err})
				}
				return nil
			},
		},
	}
}

// initRenderer creates the renderer and binds the device descriptor to the
// loop so completed frames are reported.
func (b *Backend) initRenderer() error {
	r, err := b.platform.Renderers.InitRenderer(b, b.device)
	if err != nil {
		return err
	}
	b.renderer = r

	src, err := b.loop.AddFD(b.device.FD(), b.handleDeviceEvents)
	if err != nil {
		b.freeRenderer()
		return err
	}
	b.deviceSrc = src
	return nil
}

func (b *Backend) handleDeviceEvents(ev FDEvents) {
	if ev.Closed() {
		b.logger.Warn("GPU device hung up; no further device events", "device", b.device.Path())
		b.removeDeviceSource()
		return
	}
	if err := b.platform.Displays.DispatchDeviceEvents(b, b.device); err != nil {
		b.logger.Warn("failed to dispatch device events", "device", b.device.Path(), "error", err)
	}
}

// Shutdown releases every resource owned by b in reverse order of acquisition.
// A nil Backend is a no-op. Calling Shutdown twice on the same Backend panics.
func (b *Backend) Shutdown() {
	if b == nil {
		return
	}
	if b.shutdown {
		panic("backend: Shutdown called twice")
	}
	b.shutdown = true

	for i := len(b.displays) - 1; i >= 0; i-- {
		d := b.displays[i]
		if err := b.platform.Displays.FreeDisplay(d, true); err != nil {
			b.logger.Warn("failed to free display", "display", d.Name, "error", err)
		}
		d.backend = nil
	}
	b.displays = nil
	b.metrics.SetDisplays(0)

	b.freeRenderer()
	b.freeEnumerator()
	b.releaseDevice()
	b.endSession()
	b.removeDeviceSource()
	if b.loop != nil {
		b.loop.Destroy()
		b.loop = nil
	}

	b.logger.Info("backend shut down")
}

func (b *Backend) freeRenderer() {
	if b.renderer == nil {
		return
	}
	if err := b.renderer.Free(); err != nil {
		b.logger.Warn("failed to free renderer", "error", err)
	}
	b.renderer = nil
}

func (b *Backend) freeEnumerator() {
	if b.enum == nil {
		return
	}
	if err := b.enum.Free(); err != nil {
		b.logger.Warn("failed to free device enumerator", "error", err)
	}
	b.enum = nil
}

// releaseDevice hands the device back to the session; closing it directly
// would leave the session's bookkeeping stale.
func (b *Backend) releaseDevice() {
	if b.device == nil {
		return
	}
	if err := b.session.ReleaseDevice(b.device); err != nil {
		b.logger.Warn("failed to release device", "device", b.device.Path(), "error", err)
	}
	b.device = nil
}

func (b *Backend) endSession() {
	if b.session == nil {
		return
	}
	if err := b.session.End(); err != nil {
		b.logger.Warn("failed to end session", "error", err)
	}
	b.session = nil
}

func (b *Backend) removeDeviceSource() {
	if b.deviceSrc == nil {
		return
	}
	if err := b.loop.RemoveSource(b.deviceSrc); err != nil {
		b.logger.Warn("failed to remove device event source", "error", err)
	}
	b.deviceSrc = nil
}

// Loop returns the dispatch loop. The caller runs it; the backend owns it.
func (b *Backend) Loop() Loop {
	return b.loop
}

// Seat returns the name of the session's seat.
func (b *Backend) Seat() string {
	return b.session.Seat()
}

// DevicePath returns the path of the GPU device node in use.
func (b *Backend) DevicePath() string {
	return b.device.Path()
}

// Device returns the open GPU device. It is borrowed: collaborators may use
// its descriptor but must not close it, and it is invalid after Shutdown.
func (b *Backend) Device() Device {
	return b.device
}

// RendererName describes the renderer context.
func (b *Backend) RendererName() string {
	return b.renderer.Name()
}

// Logger returns the backend's logger for collaborators.
func (b *Backend) Logger() *slog.Logger {
	if b == nil || b.logger == nil {
		return discardLogger()
	}
	return b.logger
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
