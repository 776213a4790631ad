//go:build linux

package platform

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/sys/unix"

	"github.com/1broseidon/scanout/internal/backend"
	"github.com/1broseidon/scanout/internal/config"
	"github.com/1broseidon/scanout/internal/drm"
	"github.com/1broseidon/scanout/internal/session"
	"github.com/1broseidon/scanout/internal/x11"
)

func TestNew_SelectsDisplaySource(t *testing.T) {
	t.Setenv("XDG_RUNTIME_DIR", t.TempDir())

	cfg := config.DefaultConfig()
	a, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := a.Platform.Displays.(*drm.Manager); !ok {
		t.Fatalf("expected sysfs manager, got %T", a.Platform.Displays)
	}
	a.Close()

	cfg.DisplaySource = config.DisplaySourceRandR
	cfg.X11Display = ":7"
	a, err = New(cfg, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	m, ok := a.Platform.Displays.(*x11.Manager)
	if !ok || m.Display != ":7" {
		t.Fatalf("expected randr manager for :7, got %#v", a.Platform.Displays)
	}
	a.Close()

	cfg.DisplaySource = "fbdev"
	if _, err := New(cfg, nil); err == nil {
		t.Fatalf("expected unknown display source to fail")
	}
}

func TestNew_SessionLockInRuntimeDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_RUNTIME_DIR", dir)

	a, err := New(config.DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	starter := a.Platform.Sessions.(SessionStarter)
	if starter.Config.LockPath != filepath.Join(dir, "scanout-seat0.lock") {
		t.Fatalf("unexpected lock path %q", starter.Config.LockPath)
	}

	s, err := starter.StartSession()
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := starter.StartSession(); !errors.Is(err, session.ErrSeatBusy) {
		t.Fatalf("expected ErrSeatBusy, got %v", err)
	}
	if err := s.End(); err != nil {
		t.Fatalf("end: %v", err)
	}
}

func TestSession_DeviceRoundTrip(t *testing.T) {
	lock := filepath.Join(t.TempDir(), "seat.lock")
	s, err := SessionStarter{Config: session.Config{Seat: "seat0", LockPath: lock}}.StartSession()
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	node := filepath.Join(t.TempDir(), "card0")
	if err := os.WriteFile(node, nil, 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	dev, err := s.OpenDevice(node)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if dev.Path() != node {
		t.Fatalf("unexpected path %q", dev.Path())
	}
	if err := s.ReleaseDevice(&foreignDevice{}); err == nil {
		t.Fatalf("expected foreign device to be rejected")
	}
	if err := s.ReleaseDevice(dev); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := s.End(); err != nil {
		t.Fatalf("end: %v", err)
	}
}

type foreignDevice struct{}

func (foreignDevice) FD() int      { return -1 }
func (foreignDevice) Path() string { return "/dev/null" }

type foreignSource struct{}

func (foreignSource) FD() int { return -1 }

func TestLoop_AddRemoveThroughAdapter(t *testing.T) {
	l, err := LoopFactory{}.CreateLoop()
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	defer l.Destroy()

	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	defer unix.Close(fds[0])
	defer unix.Close(fds[1])

	fired := 0
	src, err := l.AddFD(fds[0], func(backend.FDEvents) {
		var buf [8]byte
		unix.Read(fds[0], buf[:])
		fired++
	})
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if src.FD() != fds[0] {
		t.Fatalf("unexpected source fd %d", src.FD())
	}

	unix.Write(fds[1], []byte{1})
	if err := l.(Loop).Dispatch(time.Second); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if fired != 1 {
		t.Fatalf("expected callback once, got %d", fired)
	}

	if err := l.RemoveSource(foreignSource{}); err == nil {
		t.Fatalf("expected foreign source to be rejected")
	}
	if err := l.RemoveSource(src); err != nil {
		t.Fatalf("remove: %v", err)
	}
}

func TestFDEvents_TranslatesEpollMask(t *testing.T) {
	tests := []struct {
		mask uint32
		want backend.FDEvents
	}{
		{mask: unix.EPOLLIN, want: backend.FDReadable},
		{mask: unix.EPOLLIN | unix.EPOLLHUP, want: backend.FDReadable | backend.FDHangup},
		{mask: unix.EPOLLRDHUP, want: backend.FDHangup},
		{mask: unix.EPOLLERR | unix.EPOLLHUP, want: backend.FDError | backend.FDHangup},
	}
	for _, tt := range tests {
		if got := fdEvents(tt.mask); got != tt.want {
			t.Fatalf("fdEvents(%#x) = %d, want %d", tt.mask, got, tt.want)
		}
	}
}
