//go:build linux

package udev

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"golang.org/x/sys/unix"

	"github.com/1broseidon/scanout/internal/backend"
)

// kernelUeventGroup is the netlink multicast group the kernel broadcasts on.
const kernelUeventGroup = 1

// Config configures device enumeration.
type Config struct {
	SysfsRoot string
	DevRoot   string
	// GPUPath, when set, is opened instead of searching sysfs.
	GPUPath string
	// Hotplug enables the kernel uevent monitor.
	Hotplug bool
}

// Factory starts enumerators for backends.
type Factory struct {
	Config Config
}

// InitEnumerator implements backend.EnumeratorFactory.
func (f Factory) InitEnumerator(b *backend.Backend) (backend.Enumerator, error) {
	return Init(b, f.Config)
}

// Enumerator locates the backend's GPU and rescans connectors on hotplug.
type Enumerator struct {
	cfg    Config
	b      *backend.Backend
	logger *slog.Logger

	sock int
	src  backend.Source
	// card is the sysfs name of the selected GPU, e.g. "card0".
	card string
}

// Init starts enumeration for b. With hotplug enabled it registers a uevent
// socket on b's loop.
func Init(b *backend.Backend, cfg Config) (*Enumerator, error) {
	e := &Enumerator{
		cfg:    cfg,
		b:      b,
		logger: b.Logger(),
		sock:   -1,
	}
	if !cfg.Hotplug {
		return e, nil
	}

	sock, err := unix.Socket(unix.AF_NETLINK, unix.SOCK_DGRAM|unix.SOCK_CLOEXEC|unix.SOCK_NONBLOCK, unix.NETLINK_KOBJECT_UEVENT)
	if err != nil {
		return nil, fmt.Errorf("failed to open uevent socket: %w", err)
	}
	addr := &unix.SockaddrNetlink{Family: unix.AF_NETLINK, Groups: kernelUeventGroup}
	if err := unix.Bind(sock, addr); err != nil {
		unix.Close(sock)
		return nil, fmt.Errorf("failed to bind uevent socket: %w", err)
	}

	src, err := b.Loop().AddFD(sock, e.handleUevents)
	if err != nil {
		unix.Close(sock)
		return nil, fmt.Errorf("failed to watch uevent socket: %w", err)
	}
	e.sock = sock
	e.src = src
	e.logger.Debug("uevent monitor started")
	return e, nil
}

// FindGPU opens the GPU device through s.
func (e *Enumerator) FindGPU(s backend.Session) (backend.Device, error) {
	path := e.cfg.GPUPath
	if path == "" {
		cards, err := ListCards(e.cfg.SysfsRoot)
		if err != nil {
			return nil, err
		}
		card, err := SelectGPU(cards)
		if err != nil {
			return nil, err
		}
		path = filepath.Join(e.cfg.DevRoot, "dri", card.Name)
	}
	e.card = cardName(path)

	dev, err := s.OpenDevice(path)
	if err != nil {
		return nil, err
	}
	e.logger.Info("selected GPU", "device", path)
	return dev, nil
}

// cardName returns the kernel name of the device node at path. Stable
// aliases such as /dev/dri/by-path/pci-...-card resolve to dri/cardN.
func cardName(path string) string {
	if resolved, err := filepath.EvalSymlinks(path); err == nil {
		path = resolved
	}
	return filepath.Base(path)
}

// matches reports whether ev is a connector change on the selected GPU.
func (e *Enumerator) matches(ev Event) bool {
	return ev.IsDRMHotplug() && filepath.Base(ev.DevName) == e.card
}

// Card returns the sysfs name of the selected GPU.
func (e *Enumerator) Card() string {
	return e.card
}

func (e *Enumerator) handleUevents(ev backend.FDEvents) {
	if ev.Closed() {
		e.logger.Warn("uevent socket failed; hotplug detection stopped")
		if err := e.b.Loop().RemoveSource(e.src); err != nil {
			e.logger.Warn("failed to remove uevent source", "error", err)
		}
		e.src = nil
		return
	}

	buf := make([]byte, 8192)
	rescan := false
	for {
		n, _, err := unix.Recvfrom(e.sock, buf, 0)
		if err != nil {
			if !errors.Is(err, unix.EAGAIN) && !errors.Is(err, unix.EINTR) {
				e.logger.Warn("uevent read failed", "error", err)
			}
			break
		}
		ev, err := ParseEvent(buf[:n])
		if err != nil {
			continue
		}
		if e.matches(ev) {
			rescan = true
		}
	}

	if !rescan {
		return
	}
	e.logger.Info("display hotplug detected", "card", e.card)
	if err := e.b.Rescan(); err != nil {
		e.logger.Warn("hotplug rescan failed", "error", err)
	}
}

// Free stops the uevent monitor.
func (e *Enumerator) Free() error {
	var errs []error
	if e.src != nil {
		if err := e.b.Loop().RemoveSource(e.src); err != nil {
			errs = append(errs, err)
		}
		e.src = nil
	}
	if e.sock >= 0 {
		if err := unix.Close(e.sock); err != nil {
			errs = append(errs, fmt.Errorf("failed to close uevent socket: %w", err))
		}
		e.sock = -1
	}
	return errors.Join(errs...)
}
