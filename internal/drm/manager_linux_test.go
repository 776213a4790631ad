//go:build linux

package drm

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/1broseidon/scanout/internal/backend"
	"github.com/1broseidon/scanout/internal/backend/backendtest"
)

func newManagedBackend(t *testing.T, sysfs string, fd int) (*backend.Backend, *backendtest.Loop) {
	t.Helper()
	dev := &backendtest.Device{Descriptor: fd, Node: filepath.Join(t.TempDir(), "card0")}
	return backendtest.New(t, &Manager{SysfsRoot: sysfs}, dev)
}

func TestManager_InitialScanAddsConnectedDisplays(t *testing.T) {
	sysfs := t.TempDir()
	writeConnectors(t, sysfs, "card0", map[string]fakeConnector{
		"DP-1":     {status: "connected", modes: "2560x1440\n1920x1080"},
		"HDMI-A-1": {status: "disconnected"},
	})

	b, _ := newManagedBackend(t, sysfs, -1)

	displays := b.Displays()
	if len(displays) != 1 || displays[0].Name != "DP-1" {
		t.Fatalf("expected DP-1 only, got %+v", displays)
	}
	state := displays[0].State.(*ConnectorState)
	if state.Card != "card0" || state.Connector != "DP-1" || state.CRTC != nil {
		t.Fatalf("unexpected connector state: %+v", state)
	}
	if displays[0].Modes[0] != (backend.Mode{Width: 2560, Height: 1440}) {
		t.Fatalf("expected preferred mode first, got %v", displays[0].Modes)
	}
}

func TestManager_RescanDiffsDisplays(t *testing.T) {
	sysfs := t.TempDir()
	writeConnectors(t, sysfs, "card0", map[string]fakeConnector{
		"DP-1":     {status: "connected", modes: "1920x1080"},
		"HDMI-A-1": {status: "disconnected"},
	})

	b, _ := newManagedBackend(t, sysfs, -1)

	var added, removed []string
	b.Events.DisplayAdded.Subscribe(func(d *backend.Display) { added = append(added, d.Name) })
	b.Events.DisplayRemoved.Subscribe(func(d *backend.Display) { removed = append(removed, d.Name) })

	if _, ok := b.DisplayByID(1); !ok {
		t.Fatalf("expected DP-1 to be tracked")
	}

	writeConnectors(t, sysfs, "card0", map[string]fakeConnector{
		"DP-1":     {status: "disconnected"},
		"HDMI-A-1": {status: "connected"},
	})
	if err := b.Rescan(); err != nil {
		t.Fatalf("rescan: %v", err)
	}

	if len(added) != 1 || added[0] != "HDMI-A-1" {
		t.Fatalf("expected HDMI-A-1 added, got %v", added)
	}
	if len(removed) != 1 || removed[0] != "DP-1" {
		t.Fatalf("expected DP-1 removed, got %v", removed)
	}
}

func TestManager_RescanMissingSysfsFails(t *testing.T) {
	b, _ := newManagedBackend(t, t.TempDir(), -1)

	if len(b.Displays()) != 0 {
		t.Fatalf("expected no displays after failed initial scan")
	}
	if err := b.Rescan(); err == nil {
		t.Fatalf("expected scan error")
	}
}

func TestManager_FlipCompleteRendersDisplay(t *testing.T) {
	sysfs := t.TempDir()
	writeConnectors(t, sysfs, "card0", map[string]fakeConnector{
		"DP-1": {status: "connected", id: "42"},
	})

	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_NONBLOCK|unix.O_CLOEXEC); err != nil {
		t.Fatalf("pipe: %v", err)
	}
	r := os.NewFile(uintptr(fds[0]), "drm-read")
	w := os.NewFile(uintptr(fds[1]), "drm-write")
	defer r.Close()
	defer w.Close()

	b, loop := newManagedBackend(t, sysfs, fds[0])

	var rendered []uint32
	b.Events.DisplayRender.Subscribe(func(d *backend.Display) { rendered = append(rendered, d.ID) })

	buf := append(vblankRecord(EventVblank, 42, 1), vblankRecord(EventFlipComplete, 42, 2)...)
	buf = append(buf, vblankRecord(EventFlipComplete, 9, 3)...)
	if _, err := w.Write(buf); err != nil {
		t.Fatalf("write: %v", err)
	}
	loop.Fire()

	if len(rendered) != 1 || rendered[0] != 42 {
		t.Fatalf("expected one render for display 42, got %v", rendered)
	}
}

type crtcCall struct {
	op        string
	fd        int
	connector uint32
}

type recordingCRTCs struct {
	calls      []crtcCall
	restoreErr error
}

func (r *recordingCRTCs) Save(fd int, connectorID uint32) (*SavedCRTC, error) {
	r.calls = append(r.calls, crtcCall{"save", fd, connectorID})
	return &SavedCRTC{ConnectorID: connectorID, CrtcID: 100 + connectorID, FbID: 7, ModeValid: true}, nil
}

func (r *recordingCRTCs) Restore(fd int, saved *SavedCRTC) error {
	r.calls = append(r.calls, crtcCall{"restore", fd, saved.ConnectorID})
	return r.restoreErr
}

func TestManager_SingleRemovalRestoresCRTC(t *testing.T) {
	sysfs := t.TempDir()
	writeConnectors(t, sysfs, "card0", map[string]fakeConnector{
		"DP-1":     {status: "connected", id: "42"},
		"HDMI-A-1": {status: "connected", id: "51"},
		"eDP-1":    {status: "connected"},
	})

	crtcs := &recordingCRTCs{}
	m := &Manager{SysfsRoot: sysfs, CRTCs: crtcs}
	dev := &backendtest.Device{Descriptor: 9, Node: filepath.Join(t.TempDir(), "card0")}
	b, _ := backendtest.New(t, m, dev)

	want := []crtcCall{{"save", 9, 42}, {"save", 9, 51}}
	if !equalCalls(crtcs.calls, want) {
		t.Fatalf("expected saves for connectors with kernel ids only, got %v", crtcs.calls)
	}
	dp1, _ := b.DisplayByID(42)
	if dp1.State.(*ConnectorState).CRTC.CrtcID != 142 {
		t.Fatalf("expected saved CRTC on display state")
	}

	writeConnectors(t, sysfs, "card0", map[string]fakeConnector{
		"DP-1":     {status: "disconnected", id: "42"},
		"HDMI-A-1": {status: "connected", id: "51"},
		"eDP-1":    {status: "connected"},
	})
	crtcs.calls = nil
	if err := b.Rescan(); err != nil {
		t.Fatalf("rescan: %v", err)
	}
	if !equalCalls(crtcs.calls, []crtcCall{{"restore", 9, 42}}) {
		t.Fatalf("expected DP-1 CRTC to be restored, got %v", crtcs.calls)
	}

	// Full teardown leaves the remaining CRTCs as they are.
	crtcs.calls = nil
	hdmi, _ := b.DisplayByID(51)
	if err := m.FreeDisplay(hdmi, true); err != nil {
		t.Fatalf("free: %v", err)
	}
	if len(crtcs.calls) != 0 {
		t.Fatalf("expected no restores on full teardown, got %v", crtcs.calls)
	}
}

func TestManager_RestoreFailureIsReported(t *testing.T) {
	sysfs := t.TempDir()
	writeConnectors(t, sysfs, "card0", map[string]fakeConnector{
		"DP-1": {status: "connected", id: "42"},
	})

	crtcs := &recordingCRTCs{restoreErr: unix.EACCES}
	dev := &backendtest.Device{Descriptor: 9, Node: filepath.Join(t.TempDir(), "card0")}
	b, _ := backendtest.New(t, &Manager{SysfsRoot: sysfs, CRTCs: crtcs}, dev)

	writeConnectors(t, sysfs, "card0", map[string]fakeConnector{
		"DP-1": {status: "disconnected", id: "42"},
	})
	if err := b.Rescan(); !errors.Is(err, unix.EACCES) {
		t.Fatalf("expected restore failure to surface, got %v", err)
	}
	if len(b.Displays()) != 0 {
		t.Fatalf("display should be removed even when restore fails")
	}
}

func equalCalls(got, want []crtcCall) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}
