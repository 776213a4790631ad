package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/1broseidon/scanout/internal/ipc"
)

var (
	barStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("235")).
			Foreground(lipgloss.Color("250")).
			Padding(0, 1)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	headingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	preferredStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))
)

// renderStatusBar renders the daemon connection status bar.
func renderStatusBar(connected bool, status *ipc.StatusData, width int) string {
	var text string
	if connected && status != nil {
		dot := lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Render("●")
		parts := []string{
			dot + " " + status.Seat,
			status.Device,
			status.Renderer,
			fmt.Sprintf("displays:%d", status.DisplayCount),
			fmt.Sprintf("up:%ds", status.UptimeSeconds),
		}
		text = strings.Join(parts, "  ")
	} else {
		dot := dimStyle.Render("●")
		text = dot + " daemon not running"
	}
	return barStyle.Width(width).Render(text)
}

// renderHelpBar renders the key bindings, or the transient status line
// when one is set.
func renderHelpBar(statusText string, width int) string {
	text := "↑/↓: select  r: rescan  q/ctrl-c: quit"
	if statusText != "" {
		text = statusText
	}
	return dimStyle.Width(width).Padding(0, 1).Render(text)
}

func renderDisconnected(lastError string, width, height int) string {
	msg := "Waiting for the scanout daemon..."
	if lastError != "" {
		msg += "\n\n" + lastError
	}
	return dimStyle.
		Width(width).
		Height(height).
		Align(lipgloss.Center, lipgloss.Center).
		Render(msg)
}

// renderDetail lists the modes of d, preferred first.
func renderDetail(d ipc.DisplayInfo, width, height int) string {
	var b strings.Builder
	b.WriteString(headingStyle.Render(d.Name))
	b.WriteString("\n\n")
	if len(d.Modes) == 0 {
		b.WriteString(dimStyle.Render("no modes advertised"))
	}
	for i, mode := range d.Modes {
		line := "  " + mode.String()
		if i == 0 {
			line = preferredStyle.Render("* " + mode.String() + " (preferred)")
		}
		b.WriteString(line)
		b.WriteString("\n")
	}
	return lipgloss.NewStyle().
		Width(width).
		MaxHeight(height).
		Padding(1, 2).
		Render(b.String())
}
