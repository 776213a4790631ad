// Package tui implements the interactive display monitor shown by
// "scanout monitor".
package tui

import (
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/1broseidon/scanout/internal/ipc"
)

// Client is the subset of the IPC client the monitor uses.
type Client interface {
	GetStatus() (*ipc.StatusData, error)
	GetDisplays() (*ipc.DisplaysData, error)
	Rescan() (*ipc.RescanData, error)
}

// Run shows the monitor until the user quits. The daemon is polled every
// interval.
func Run(client Client, interval time.Duration) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return fmt.Errorf("monitor requires an interactive terminal (stdin/stdout must be TTYs)")
	}
	if interval <= 0 {
		interval = 2 * time.Second
	}

	p := tea.NewProgram(newModel(client, interval), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
