//go:build linux

// Package session grants exclusive access to a seat's devices.
//
// A session holds an exclusive lock on a per-seat lock file. Devices are
// opened through the session, which keeps track of them and acquires DRM
// master on DRM nodes; they must be released through the session before it
// ends.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	"golang.org/x/sys/unix"
)

// drmMajor is the character device major number of DRM nodes.
const drmMajor = 226

// DRM master ioctls: _IO('d', 0x1e) and _IO('d', 0x1f).
const (
	ioctlSetMaster  = 0x641e
	ioctlDropMaster = 0x641f
)

// ErrSeatBusy is returned by Start when another process holds the seat.
var ErrSeatBusy = errors.New("seat is in use by another session")

// Config configures a session.
type Config struct {
	Seat     string
	LockPath string
	Logger   *slog.Logger
}

// Device is a device node opened through a Session.
type Device struct {
	path   string
	fd     int
	master bool
}

// FD returns the open descriptor.
func (d *Device) FD() int {
	return d.fd
}

// Path returns the device node path.
func (d *Device) Path() string {
	return d.path
}

// Session is an exclusive grant on a seat.
type Session struct {
	seat    string
	lock    *os.File
	logger  *slog.Logger
	devices map[int]*Device
}

// Start acquires the seat.
func Start(cfg Config) (*Session, error) {
	if cfg.Seat == "" {
		return nil, fmt.Errorf("seat name is required")
	}
	if cfg.LockPath == "" {
		return nil, fmt.Errorf("lock path is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	f, err := lockSeat(cfg.Seat, cfg.LockPath)
	if err != nil {
		return nil, err
	}

	logger.Info("session started", "seat", cfg.Seat)
	return &Session{
		seat:    cfg.Seat,
		lock:    f,
		logger:  logger,
		devices: make(map[int]*Device),
	}, nil
}

// lockSeat takes an exclusive lock on the lock file at path. The file is
// never unlinked while sessions run, but someone else may have replaced it
// between open and flock; a lock on an inode no longer at path does not
// guard the seat, so that case is retried.
func lockSeat(seat, path string) (*os.File, error) {
	for attempt := 0; attempt < 3; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0600)
		if err != nil {
			return nil, fmt.Errorf("failed to open seat lock %s: %w", path, err)
		}
		if err := unix.Flock(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB); err != nil {
			f.Close()
			if errors.Is(err, unix.EWOULDBLOCK) {
				return nil, fmt.Errorf("%s: %w", seat, ErrSeatBusy)
			}
			return nil, fmt.Errorf("failed to lock seat %s: %w", seat, err)
		}

		same, err := sameFile(f, path)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to check seat lock %s: %w", path, err)
		}
		if same {
			return f, nil
		}
		f.Close()
	}
	return nil, fmt.Errorf("%s: lock file %s keeps being replaced: %w", seat, path, ErrSeatBusy)
}

// sameFile reports whether f is still the file at path.
func sameFile(f *os.File, path string) (bool, error) {
	var held, cur unix.Stat_t
	if err := unix.Fstat(int(f.Fd()), &held); err != nil {
		return false, err
	}
	if err := unix.Stat(path, &cur); err != nil {
		if errors.Is(err, unix.ENOENT) {
			return false, nil
		}
		return false, err
	}
	return held.Dev == cur.Dev && held.Ino == cur.Ino, nil
}

// Seat returns the seat name.
func (s *Session) Seat() string {
	return s.seat
}

// OpenDevice opens path read-write under the session's authority.
func (s *Session) OpenDevice(path string) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR|unix.O_CLOEXEC|unix.O_NOCTTY|unix.O_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	dev := &Device{path: path, fd: fd}
	if isDRMNode(fd) {
		if err := unix.IoctlSetInt(fd, ioctlSetMaster, 0); err != nil {
			s.logger.Warn("could not become DRM master", "device", path, "error", err)
		} else {
			dev.master = true
		}
	}

	s.devices[fd] = dev
	s.logger.Debug("device opened", "device", path, "fd", fd, "master", dev.master)
	return dev, nil
}

// ReleaseDevice drops master on dev, closes it and forgets it.
func (s *Session) ReleaseDevice(dev *Device) error {
	if dev == nil {
		return fmt.Errorf("nil device")
	}
	cur, ok := s.devices[dev.fd]
	if !ok || cur != dev {
		return fmt.Errorf("device %s was not opened by this session", dev.path)
	}
	delete(s.devices, dev.fd)

	if dev.master {
		if err := unix.IoctlSetInt(dev.fd, ioctlDropMaster, 0); err != nil {
			s.logger.Warn("failed to drop DRM master", "device", dev.path, "error", err)
		}
	}
	if err := unix.Close(dev.fd); err != nil {
		return fmt.Errorf("failed to close %s: %w", dev.path, err)
	}
	s.logger.Debug("device released", "device", dev.path)
	return nil
}

// Devices returns the paths of devices currently open through the session.
func (s *Session) Devices() []string {
	paths := make([]string, 0, len(s.devices))
	for _, d := range s.devices {
		paths = append(paths, d.path)
	}
	sort.Strings(paths)
	return paths
}

// End releases the seat. The lock file stays in place so that a process
// already waiting on it and a newly starting one contend for the same inode.
// Ending a session while devices are still open is a programming error and
// panics.
func (s *Session) End() error {
	if len(s.devices) > 0 {
		panic(fmt.Sprintf("session: End with open devices %v", s.Devices()))
	}
	if err := unix.Flock(int(s.lock.Fd()), unix.LOCK_UN); err != nil {
		s.lock.Close()
		return fmt.Errorf("failed to unlock seat %s: %w", s.seat, err)
	}
	if err := s.lock.Close(); err != nil {
		return fmt.Errorf("failed to close seat lock: %w", err)
	}
	s.logger.Info("session ended", "seat", s.seat)
	return nil
}

func isDRMNode(fd int) bool {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return false
	}
	if st.Mode&unix.S_IFMT != unix.S_IFCHR {
		return false
	}
	return unix.Major(uint64(st.Rdev)) == drmMajor
}
