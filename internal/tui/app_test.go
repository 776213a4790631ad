package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/1broseidon/scanout/internal/backend"
	"github.com/1broseidon/scanout/internal/ipc"
)

type fakeClient struct {
	down     bool
	displays []ipc.DisplayInfo
	rescans  int
}

func (c *fakeClient) GetStatus() (*ipc.StatusData, error) {
	if c.down {
		return nil, errors.New("daemon not running")
	}
	return &ipc.StatusData{
		Seat:          "seat0",
		Device:        "/dev/dri/card0",
		Renderer:      "drm/i915 1.6.0",
		DisplayCount:  len(c.displays),
		DaemonRunning: true,
	}, nil
}

func (c *fakeClient) GetDisplays() (*ipc.DisplaysData, error) {
	if c.down {
		return nil, errors.New("daemon not running")
	}
	return &ipc.DisplaysData{Displays: c.displays}, nil
}

func (c *fakeClient) Rescan() (*ipc.RescanData, error) {
	c.rescans++
	return &ipc.RescanData{Added: []string{"DP-2"}, Displays: len(c.displays)}, nil
}

func sized(t *testing.T, c Client) model {
	t.Helper()
	m := newModel(c, time.Second)
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(model)
}

// runCmd executes cmd and feeds its message back into the model.
func runCmd(t *testing.T, m model, cmd tea.Cmd) model {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected a command")
	}
	next, _ := m.Update(cmd())
	return next.(model)
}

func TestModel_SnapshotPopulatesList(t *testing.T) {
	c := &fakeClient{displays: []ipc.DisplayInfo{
		{ID: 1, Name: "eDP-1", Modes: []backend.Mode{{Width: 2560, Height: 1600, RefreshMHz: 60000}}},
		{ID: 2, Name: "HDMI-A-1"},
	}}
	m := sized(t, c)
	m = runCmd(t, m, m.Init())

	if !m.connected {
		t.Fatalf("expected connected after a successful poll")
	}
	if got := len(m.list.Items()); got != 2 {
		t.Fatalf("expected 2 items, got %d", got)
	}
	view := m.View()
	for _, want := range []string{"seat0", "eDP-1", "2560x1600@60.000"} {
		if !strings.Contains(view, want) {
			t.Fatalf("expected view to contain %q", want)
		}
	}
}

func TestModel_DaemonDown(t *testing.T) {
	m := sized(t, &fakeClient{down: true})
	m = runCmd(t, m, m.Init())

	if m.connected {
		t.Fatalf("expected disconnected")
	}
	if !strings.Contains(m.View(), "daemon not running") {
		t.Fatalf("expected disconnected status in view")
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	if cmd != nil {
		t.Fatalf("rescan should be ignored while disconnected")
	}
	if next.(model).statusText != "" {
		t.Fatalf("unexpected status text")
	}
}

func TestModel_Rescan(t *testing.T) {
	c := &fakeClient{displays: []ipc.DisplayInfo{{ID: 1, Name: "DP-2"}}}
	m := sized(t, c)
	m = runCmd(t, m, m.Init())

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("r")})
	m = next.(model)
	if m.statusText != "rescanning..." {
		t.Fatalf("expected rescanning status, got %q", m.statusText)
	}
	m = runCmd(t, m, cmd)
	if c.rescans != 1 {
		t.Fatalf("expected one rescan, got %d", c.rescans)
	}
	if m.statusText != "rescan: +DP-2" {
		t.Fatalf("unexpected status %q", m.statusText)
	}

	next, _ = m.Update(clearStatusMsg{})
	if next.(model).statusText != "" {
		t.Fatalf("expected status to clear")
	}
}

func TestDescribeRescan(t *testing.T) {
	tests := []struct {
		name string
		res  *ipc.RescanData
		want string
	}{
		{name: "nil", res: nil, want: "rescan: no changes"},
		{name: "empty", res: &ipc.RescanData{}, want: "rescan: no changes"},
		{name: "both", res: &ipc.RescanData{Added: []string{"DP-1"}, Removed: []string{"HDMI-A-1"}}, want: "rescan: +DP-1 -HDMI-A-1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describeRescan(tt.res); got != tt.want {
				t.Fatalf("expected %q, got %q", tt.want, got)
			}
		})
	}
}

func TestModel_Quit(t *testing.T) {
	m := sized(t, &fakeClient{})
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Fatalf("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatalf("expected tea.QuitMsg")
	}
}
