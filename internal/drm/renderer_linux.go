//go:build linux

package drm

import (
	"errors"
	"fmt"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"

	"github.com/1broseidon/scanout/internal/backend"
)

const (
	capDumbBuffer = 0x1

	ioctlGetCapNr  = 0x0c
	ioctlVersionNr = 0x00
)

// drmVersion mirrors struct drm_version.
type drmVersion struct {
	Major      int32
	Minor      int32
	Patchlevel int32
	NameLen    uintptr
	Name       uintptr
	DateLen    uintptr
	Date       uintptr
	DescLen    uintptr
	Desc       uintptr
}

type drmGetCap struct {
	Capability uint64
	Value      uint64
}

// ErrNoDumbBuffers reports a device that cannot allocate scanout buffers.
var ErrNoDumbBuffers = errors.New("drm device does not support dumb buffers")

// iowr encodes _IOWR('d', nr, size).
func iowr(nr, size uintptr) uintptr {
	const (
		dirRead  = 2
		dirWrite = 1
	)
	return (dirRead|dirWrite)<<30 | size<<16 | uintptr('d')<<8 | nr
}

func ioctl(fd int, req uintptr, arg unsafe.Pointer) error {
	for {
		_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), req, uintptr(arg))
		switch errno {
		case 0:
			return nil
		case unix.EINTR, unix.EAGAIN:
			continue
		default:
			return errno
		}
	}
}

// Renderer is a dumb-buffer renderer context on a DRM device.
type Renderer struct {
	dev     backend.Device
	Driver  string
	Version string
	freed   bool
}

// RendererFactory implements backend.RendererFactory.
type RendererFactory struct{}

func (RendererFactory) InitRenderer(b *backend.Backend, dev backend.Device) (backend.Renderer, error) {
	r, err := NewRenderer(dev)
	if err != nil {
		return nil, err
	}
	b.Logger().Debug("renderer ready", "driver", r.Driver, "version", r.Version)
	return r, nil
}

// NewRenderer queries the driver behind dev and checks it can allocate dumb
// buffers.
func NewRenderer(dev backend.Device) (*Renderer, error) {
	driver, version, err := queryVersion(dev.FD())
	if err != nil {
		return nil, fmt.Errorf("failed to query drm version of %s: %w", dev.Path(), err)
	}
	dumb, err := getCap(dev.FD(), capDumbBuffer)
	if err != nil {
		return nil, fmt.Errorf("failed to query drm capabilities of %s: %w", dev.Path(), err)
	}
	if dumb == 0 {
		return nil, ErrNoDumbBuffers
	}
	return &Renderer{dev: dev, Driver: driver, Version: version}, nil
}

func (r *Renderer) Name() string {
	return "drm/" + r.Driver + " " + r.Version
}

// Free releases the renderer. The device stays open; it belongs to the
// session.
func (r *Renderer) Free() error {
	r.freed = true
	r.dev = nil
	return nil
}

func queryVersion(fd int) (string, string, error) {
	req := iowr(ioctlVersionNr, unsafe.Sizeof(drmVersion{}))

	var v drmVersion
	if err := ioctl(fd, req, unsafe.Pointer(&v)); err != nil {
		return "", "", err
	}
	if v.NameLen == 0 {
		return "", fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patchlevel), nil
	}

	name := make([]byte, v.NameLen)
	v = drmVersion{NameLen: uintptr(len(name)), Name: uintptr(unsafe.Pointer(&name[0]))}
	err := ioctl(fd, req, unsafe.Pointer(&v))
	runtime.KeepAlive(name)
	if err != nil {
		return "", "", err
	}
	n := min(int(v.NameLen), len(name))
	return string(name[:n]), fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patchlevel), nil
}

func getCap(fd int, capability uint64) (uint64, error) {
	c := drmGetCap{Capability: capability}
	if err := ioctl(fd, iowr(ioctlGetCapNr, unsafe.Sizeof(c)), unsafe.Pointer(&c)); err != nil {
		return 0, err
	}
	return c.Value, nil
}
