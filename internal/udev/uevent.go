// Package udev finds GPU device nodes through sysfs and watches kernel
// uevents for display hotplug.
package udev

import (
	"bytes"
	"fmt"
	"strings"
)

// Event is a kernel uevent.
type Event struct {
	Action    string
	DevPath   string
	Subsystem string
	DevName   string
	Props     map[string]string
}

// IsDRMHotplug reports whether e signals a connector change on a DRM device.
func (e Event) IsDRMHotplug() bool {
	return e.Subsystem == "drm" && e.Action == "change" && e.Props["HOTPLUG"] == "1"
}

// ParseEvent decodes a kernel uevent datagram:
// "action@devpath\0KEY=VALUE\0KEY=VALUE\0...".
func ParseEvent(msg []byte) (Event, error) {
	fields := bytes.Split(bytes.TrimRight(msg, "\x00"), []byte{0})
	if len(fields) == 0 || len(fields[0]) == 0 {
		return Event{}, fmt.Errorf("empty uevent")
	}

	header := string(fields[0])
	at := strings.IndexByte(header, '@')
	if at <= 0 {
		// libudev messages start with "libudev\0" and are not kernel events.
		return Event{}, fmt.Errorf("not a kernel uevent: %q", header)
	}

	ev := Event{
		Action:  header[:at],
		DevPath: header[at+1:],
		Props:   make(map[string]string, len(fields)-1),
	}
	for _, f := range fields[1:] {
		key, value, ok := strings.Cut(string(f), "=")
		if !ok {
			continue
		}
		ev.Props[key] = value
	}
	ev.Subsystem = ev.Props["SUBSYSTEM"]
	ev.DevName = ev.Props["DEVNAME"]
	if a := ev.Props["ACTION"]; a != "" {
		ev.Action = a
	}
	return ev, nil
}
