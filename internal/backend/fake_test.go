package backend

import (
	"context"
	"errors"
	"fmt"
)

// recorder logs collaborator calls and tracks outstanding acquisitions.
type recorder struct {
	calls       []string
	outstanding map[string]int
}

func newRecorder() *recorder {
	return &recorder{outstanding: make(map[string]int)}
}

func (r *recorder) acquire(name string) {
	r.calls = append(r.calls, name+".acquire")
	r.outstanding[name]++
}

func (r *recorder) release(name, call string) {
	r.calls = append(r.calls, call)
	r.outstanding[name]--
	if r.outstanding[name] == 0 {
		delete(r.outstanding, name)
	}
}

// releases returns calls that are not acquisitions.
func (r *recorder) releases() []string {
	var out []string
	for _, c := range r.calls {
		if len(c) > len(".acquire") && c[len(c)-len(".acquire"):] == ".acquire" {
			continue
		}
		out = append(out, c)
	}
	return out
}

var errInjected = errors.New("injected failure")

type fakeSource struct{ fd int }

func (s *fakeSource) FD() int { return s.fd }

type fakeLoop struct {
	rec     *recorder
	failAdd bool
	sources map[Source]func(FDEvents)
}

func (l *fakeLoop) AddFD(fd int, fn func(FDEvents)) (Source, error) {
	if l.failAdd {
		return nil, errInjected
	}
	src := &fakeSource{fd: fd}
	l.sources[src] = fn
	l.rec.acquire("source")
	return src, nil
}

func (l *fakeLoop) RemoveSource(src Source) error {
	if _, ok := l.sources[src]; !ok {
		return fmt.Errorf("unknown source")
	}
	delete(l.sources, src)
	l.rec.release("source", "loop.remove_source")
	return nil
}

func (l *fakeLoop) Post(fn func())                { fn() }
func (l *fakeLoop) Run(ctx context.Context) error { <-ctx.Done(); return nil }

func (l *fakeLoop) Destroy() {
	if len(l.sources) > 0 {
		panic("loop destroyed with registered sources")
	}
	l.rec.release("loop", "loop.destroy")
}

type fakeDevice struct{ fd int }

func (d *fakeDevice) FD() int      { return d.fd }
func (d *fakeDevice) Path() string { return "/dev/dri/card0" }

type fakeSession struct {
	rec  *recorder
	open map[Device]bool
}

func (s *fakeSession) Seat() string { return "seat0" }

func (s *fakeSession) OpenDevice(string) (Device, error) {
	d := &fakeDevice{fd: 7}
	s.open[d] = true
	s.rec.acquire("device")
	return d, nil
}

func (s *fakeSession) ReleaseDevice(dev Device) error {
	if !s.open[dev] {
		return fmt.Errorf("device not open")
	}
	delete(s.open, dev)
	s.rec.release("device", "session.release_device")
	return nil
}

func (s *fakeSession) End() error {
	if len(s.open) > 0 {
		panic("session ended with open devices")
	}
	s.rec.release("session", "session.end")
	return nil
}

type fakeEnum struct {
	p *fakePlatform
}

func (e *fakeEnum) FindGPU(s Session) (Device, error) {
	if e.p.fail == StageDevice {
		return nil, errInjected
	}
	return s.OpenDevice("/dev/dri/card0")
}

func (e *fakeEnum) Free() error {
	e.p.rec.release("enum", "enum.free")
	return nil
}

type fakeRenderer struct{ rec *recorder }

func (r *fakeRenderer) Name() string { return "fake" }

func (r *fakeRenderer) Free() error {
	r.rec.release("renderer", "renderer.free")
	return nil
}

// fakePlatform implements every factory and the display manager. fail names
// the stage whose acquisition returns an error.
type fakePlatform struct {
	rec      *recorder
	fail     Stage
	loop     *fakeLoop
	failScan bool
	// scan creates displays with these names on the first Scan.
	scan    []string
	scanned bool
	events  []*Display
}

func newFakePlatform() *fakePlatform {
	rec := newRecorder()
	return &fakePlatform{
		rec:  rec,
		loop: &fakeLoop{rec: rec, sources: make(map[Source]func(FDEvents))},
	}
}

func (p *fakePlatform) platform() Platform {
	return Platform{
		Loops:      p,
		Sessions:   p,
		Enumerator: p,
		Renderers:  p,
		Displays:   p,
	}
}

func (p *fakePlatform) CreateLoop() (Loop, error) {
	if p.fail == StageLoop {
		return nil, errInjected
	}
	p.rec.acquire("loop")
	return p.loop, nil
}

func (p *fakePlatform) StartSession() (Session, error) {
	if p.fail == StageSession {
		return nil, errInjected
	}
	p.rec.acquire("session")
	return &fakeSession{rec: p.rec, open: make(map[Device]bool)}, nil
}

func (p *fakePlatform) InitEnumerator(b *Backend) (Enumerator, error) {
	if p.fail == StageEnumerator {
		return nil, errInjected
	}
	if b.Loop() == nil {
		return nil, fmt.Errorf("enumerator initialized before loop")
	}
	p.rec.acquire("enum")
	return &fakeEnum{p: p}, nil
}

func (p *fakePlatform) InitRenderer(_ *Backend, dev Device) (Renderer, error) {
	if p.fail == StageRenderer {
		return nil, errInjected
	}
	if dev == nil {
		return nil, fmt.Errorf("renderer initialized without device")
	}
	p.rec.acquire("renderer")
	return &fakeRenderer{rec: p.rec}, nil
}

func (p *fakePlatform) Scan(b *Backend) error {
	if p.failScan {
		return errInjected
	}
	if p.scanned {
		return nil
	}
	p.scanned = true
	for i, name := range p.scan {
		p.rec.acquire("display:" + name)
		if err := b.AddDisplay(&Display{ID: uint32(i + 1), Name: name}); err != nil {
			return err
		}
	}
	return nil
}

func (p *fakePlatform) FreeDisplay(d *Display, full bool) error {
	p.rec.release("display:"+d.Name, fmt.Sprintf("display.free(%s,full=%v)", d.Name, full))
	return nil
}

func (p *fakePlatform) DispatchDeviceEvents(b *Backend, _ Device) error {
	for _, d := range p.events {
		b.RenderDisplay(d)
	}
	return nil
}
