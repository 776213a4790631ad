// Package drm talks to DRM devices: renderer capability probing, connector
// discovery through sysfs, and decoding of device events.
package drm

import (
	"encoding/binary"
	"fmt"
)

// Event types from drm.h.
const (
	EventVblank       = 0x01
	EventFlipComplete = 0x02
	EventCrtcSequence = 0x03

	eventHeaderSize = 8
	vblankEventSize = 32
)

// Event is a decoded drm_event. Only vblank and flip-complete events carry
// the vblank fields.
type Event struct {
	Type     uint32
	UserData uint64
	Sec      uint32
	Usec     uint32
	Sequence uint32
	CrtcID   uint32
}

// ParseEvents decodes the drm_event records read from a device descriptor.
func ParseEvents(buf []byte) ([]Event, error) {
	var events []Event
	for off := 0; off < len(buf); {
		if len(buf)-off < eventHeaderSize {
			return events, fmt.Errorf("truncated drm event header at offset %d", off)
		}
		typ := binary.NativeEndian.Uint32(buf[off:])
		length := int(binary.NativeEndian.Uint32(buf[off+4:]))
		if length < eventHeaderSize || off+length > len(buf) {
			return events, fmt.Errorf("invalid drm event length %d at offset %d", length, off)
		}

		ev := Event{Type: typ}
		if (typ == EventVblank || typ == EventFlipComplete) && length >= vblankEventSize {
			rec := buf[off : off+length]
			ev.UserData = binary.NativeEndian.Uint64(rec[8:])
			ev.Sec = binary.NativeEndian.Uint32(rec[16:])
			ev.Usec = binary.NativeEndian.Uint32(rec[20:])
			ev.Sequence = binary.NativeEndian.Uint32(rec[24:])
			ev.CrtcID = binary.NativeEndian.Uint32(rec[28:])
		}
		events = append(events, ev)
		off += length
	}
	return events, nil
}
