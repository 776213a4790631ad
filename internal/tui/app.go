package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/scanout/internal/ipc"
)

// displayItem implements list.Item for the display sidebar.
type displayItem struct {
	info ipc.DisplayInfo
}

func (i displayItem) Title() string {
	return fmt.Sprintf("%s (#%d)", i.info.Name, i.info.ID)
}

func (i displayItem) Description() string {
	if len(i.info.Modes) == 0 {
		return "no modes"
	}
	return i.info.Modes[0].String()
}

func (i displayItem) FilterValue() string { return i.info.Name }

// tickMsg triggers a poll of the daemon.
type tickMsg struct{}

// snapshotMsg carries the result of a poll.
type snapshotMsg struct {
	status   *ipc.StatusData
	displays []ipc.DisplayInfo
	err      error
}

// rescanMsg carries the result of a user-requested rescan.
type rescanMsg struct {
	result *ipc.RescanData
	err    error
}

// clearStatusMsg clears the status line after a delay.
type clearStatusMsg struct{}

// model is the root bubbletea model of the monitor.
type model struct {
	client   Client
	interval time.Duration

	list list.Model

	connected  bool
	status     *ipc.StatusData
	lastError  string
	statusText string

	width  int
	height int
}

func newModel(client Client, interval time.Duration) model {
	delegate := list.NewDefaultDelegate()
	delegate.SetSpacing(0)

	l := list.New(nil, delegate, 0, 0)
	l.Title = "Displays"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.DisableQuitKeybindings()

	return model{
		client:   client,
		interval: interval,
		list:     l,
	}
}

func (m model) poll() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		status, err := client.GetStatus()
		if err != nil {
			return snapshotMsg{err: err}
		}
		data, err := client.GetDisplays()
		if err != nil {
			return snapshotMsg{err: err}
		}
		return snapshotMsg{status: status, displays: data.Displays}
	}
}

func (m model) rescan() tea.Cmd {
	client := m.client
	return func() tea.Msg {
		res, err := client.Rescan()
		return rescanMsg{result: res, err: err}
	}
}

func (m model) scheduleTick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// Init implements tea.Model.
func (m model) Init() tea.Cmd {
	return m.poll()
}

// Update implements tea.Model.
func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "r":
			if !m.connected {
				return m, nil
			}
			m.statusText = "rescanning..."
			return m, m.rescan()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeList()
		return m, nil

	case tickMsg:
		return m, m.poll()

	case snapshotMsg:
		if msg.err != nil {
			m.connected = false
			m.status = nil
			m.lastError = msg.err.Error()
			m.list.SetItems(nil)
			return m, m.scheduleTick()
		}
		m.connected = true
		m.lastError = ""
		m.status = msg.status
		items := make([]list.Item, 0, len(msg.displays))
		for _, d := range msg.displays {
			items = append(items, displayItem{info: d})
		}
		return m, tea.Batch(m.list.SetItems(items), m.scheduleTick())

	case rescanMsg:
		if msg.err != nil {
			m.statusText = "rescan failed: " + msg.err.Error()
		} else {
			m.statusText = describeRescan(msg.result)
		}
		clearCmd := tea.Tick(3*time.Second, func(time.Time) tea.Msg {
			return clearStatusMsg{}
		})
		return m, tea.Batch(m.poll(), clearCmd)

	case clearStatusMsg:
		m.statusText = ""
		return m, nil
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *model) resizeList() {
	w := m.width / 2
	if w < 20 {
		w = m.width
	}
	h := m.height - 3
	if h < 1 {
		h = 1
	}
	m.list.SetSize(w, h)
}

func describeRescan(res *ipc.RescanData) string {
	if res == nil || (len(res.Added) == 0 && len(res.Removed) == 0) {
		return "rescan: no changes"
	}
	var parts []string
	for _, name := range res.Added {
		parts = append(parts, "+"+name)
	}
	for _, name := range res.Removed {
		parts = append(parts, "-"+name)
	}
	return "rescan: " + strings.Join(parts, " ")
}

// selected returns the display under the cursor.
func (m model) selected() (ipc.DisplayInfo, bool) {
	item, ok := m.list.SelectedItem().(displayItem)
	if !ok {
		return ipc.DisplayInfo{}, false
	}
	return item.info, true
}

// View implements tea.Model.
func (m model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	statusBar := renderStatusBar(m.connected, m.status, m.width)
	helpBar := renderHelpBar(m.statusText, m.width)

	contentHeight := m.height - lipgloss.Height(statusBar) - lipgloss.Height(helpBar)
	if contentHeight < 1 {
		contentHeight = 1
	}

	var content string
	if !m.connected {
		content = renderDisconnected(m.lastError, m.width, contentHeight)
	} else {
		detailWidth := m.width - m.list.Width()
		var detail string
		if d, ok := m.selected(); ok && detailWidth > 0 {
			detail = renderDetail(d, detailWidth, contentHeight)
		}
		content = lipgloss.JoinHorizontal(lipgloss.Top, m.list.View(), detail)
	}

	return lipgloss.JoinVertical(lipgloss.Left, statusBar, content, helpBar)
}
