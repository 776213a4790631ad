//go:build linux

package platform

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/1broseidon/scanout/internal/backend"
	"github.com/1broseidon/scanout/internal/eventloop"
	"github.com/1broseidon/scanout/internal/session"
)

// Loop exposes an eventloop.Loop as a backend.Loop.
type Loop struct {
	*eventloop.Loop
}

var _ backend.Loop = Loop{}

func (l Loop) AddFD(fd int, fn func(backend.FDEvents)) (backend.Source, error) {
	src, err := l.Loop.AddFD(fd, func(events uint32) {
		fn(fdEvents(events))
	})
	if err != nil {
		return nil, err
	}
	return src, nil
}

func (l Loop) RemoveSource(src backend.Source) error {
	s, ok := src.(*eventloop.Source)
	if !ok {
		return fmt.Errorf("source %T was not created by this loop", src)
	}
	return l.Loop.Remove(s)
}

// fdEvents translates an epoll mask.
func fdEvents(mask uint32) backend.FDEvents {
	var ev backend.FDEvents
	if mask&unix.EPOLLIN != 0 {
		ev |= backend.FDReadable
	}
	if mask&(unix.EPOLLHUP|unix.EPOLLRDHUP) != 0 {
		ev |= backend.FDHangup
	}
	if mask&unix.EPOLLERR != 0 {
		ev |= backend.FDError
	}
	return ev
}

// LoopFactory creates epoll loops.
type LoopFactory struct{}

func (LoopFactory) CreateLoop() (backend.Loop, error) {
	l, err := eventloop.New()
	if err != nil {
		return nil, err
	}
	return Loop{Loop: l}, nil
}

// Session exposes a session.Session as a backend.Session.
type Session struct {
	*session.Session
}

var _ backend.Session = Session{}

func (s Session) OpenDevice(path string) (backend.Device, error) {
	dev, err := s.Session.OpenDevice(path)
	if err != nil {
		return nil, err
	}
	return dev, nil
}

func (s Session) ReleaseDevice(dev backend.Device) error {
	d, ok := dev.(*session.Device)
	if !ok {
		return fmt.Errorf("device %s was not opened by this session", dev.Path())
	}
	return s.Session.ReleaseDevice(d)
}

// SessionStarter takes the seat named in Config.
type SessionStarter struct {
	Config session.Config
}

func (f SessionStarter) StartSession() (backend.Session, error) {
	s, err := session.Start(f.Config)
	if err != nil {
		return nil, err
	}
	return Session{Session: s}, nil
}
