package backend

import "context"

// Source is an event source registered on a Loop.
type Source interface {
	FD() int
}

// FDEvents is the readiness reported to a descriptor callback.
type FDEvents uint32

const (
	FDReadable FDEvents = 1 << iota
	FDHangup
	FDError
)

// Closed reports a descriptor that hung up or failed. Such a descriptor
// stays ready, so its source should be removed.
func (e FDEvents) Closed() bool {
	return e&(FDHangup|FDError) != 0
}

// Loop is the dispatch loop the backend creates and hands to the process.
// The backend registers sources on it but never runs it.
type Loop interface {
	AddFD(fd int, fn func(FDEvents)) (Source, error)
	RemoveSource(src Source) error
	// Post schedules fn to run on the loop goroutine. Safe from any goroutine.
	Post(fn func())
	Run(ctx context.Context) error
	Destroy()
}

// LoopFactory creates dispatch loops.
type LoopFactory interface {
	CreateLoop() (Loop, error)
}

// Device is an open device node granted by a Session.
type Device interface {
	FD() int
	Path() string
}

// Session arbitrates exclusive access to privileged devices. Devices opened
// through it must be released through it before End.
type Session interface {
	Seat() string
	OpenDevice(path string) (Device, error)
	ReleaseDevice(dev Device) error
	End() error
}

// SessionStarter acquires sessions.
type SessionStarter interface {
	StartSession() (Session, error)
}

// Enumerator discovers devices and watches for hotplug on behalf of a backend.
type Enumerator interface {
	FindGPU(s Session) (Device, error)
	Free() error
}

// EnumeratorFactory starts device enumeration for b. Implementations may
// register event sources on b.Loop() and must remove them in Free.
type EnumeratorFactory interface {
	InitEnumerator(b *Backend) (Enumerator, error)
}

// Renderer is the GPU-side context bound to the backend's device. It borrows
// the device; it never closes it.
type Renderer interface {
	Name() string
	Free() error
}

// RendererFactory creates renderer contexts.
type RendererFactory interface {
	InitRenderer(b *Backend, dev Device) (Renderer, error)
}

// DisplayManager detects connectors and tears down displays.
type DisplayManager interface {
	// Scan reconciles b's display list with the hardware, calling b.AddDisplay
	// and b.RemoveDisplay as needed.
	Scan(b *Backend) error
	// FreeDisplay releases per-display state. full is true when the whole
	// backend is being torn down; a single removal must restore the mode
	// the display had before the backend took it over.
	FreeDisplay(d *Display, full bool) error
	// DispatchDeviceEvents drains pending events from the device and reports
	// completed frames through b.RenderDisplay.
	DispatchDeviceEvents(b *Backend, dev Device) error
}

// Platform bundles the collaborators a Backend is built from.
type Platform struct {
	Loops      LoopFactory
	Sessions   SessionStarter
	Enumerator EnumeratorFactory
	Renderers  RendererFactory
	Displays   DisplayManager
}

func (p Platform) complete() bool {
	return p.Loops != nil && p.Sessions != nil && p.Enumerator != nil &&
		p.Renderers != nil && p.Displays != nil
}
