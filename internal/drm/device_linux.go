//go:build linux

package drm

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/1broseidon/scanout/internal/backend"
)

const eventBufferSize = 1024

// ReadEvents drains every pending drm_event from fd. The descriptor must be
// non-blocking.
func ReadEvents(fd int) ([]Event, error) {
	var out []Event
	buf := make([]byte, eventBufferSize)
	for {
		n, err := unix.Read(fd, buf)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				return out, nil
			}
			return out, fmt.Errorf("failed to read drm events: %w", err)
		}
		if n == 0 {
			return out, nil
		}
		events, err := ParseEvents(buf[:n])
		out = append(out, events...)
		if err != nil {
			return out, err
		}
	}
}

// DispatchDeviceEvents implements backend.DisplayManager.
func (m *Manager) DispatchDeviceEvents(b *backend.Backend, dev backend.Device) error {
	return DispatchFlips(b, dev)
}

// DispatchFlips drains dev and fires b's render signal for every
// flip-complete event. The event's user_data holds the connector id of the
// display that finished its frame.
func DispatchFlips(b *backend.Backend, dev backend.Device) error {
	events, err := ReadEvents(dev.FD())
	for _, ev := range events {
		if ev.Type != EventFlipComplete {
			continue
		}
		if d, ok := b.DisplayByID(uint32(ev.UserData)); ok {
			b.RenderDisplay(d)
		}
	}
	return err
}
