package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"golang.org/x/term"

	"github.com/1broseidon/scanout/internal/ipc"
)

func isTerminal(f *os.File) bool {
	return term.IsTerminal(int(f.Fd()))
}

func writeStatus(w io.Writer, status *ipc.StatusData) {
	fmt.Fprintf(w, "daemon_running: %v\n", status.DaemonRunning)
	fmt.Fprintf(w, "seat:           %s\n", status.Seat)
	fmt.Fprintf(w, "device:         %s\n", status.Device)
	fmt.Fprintf(w, "renderer:       %s\n", status.Renderer)
	fmt.Fprintf(w, "display_count:  %d\n", status.DisplayCount)
	fmt.Fprintf(w, "uptime_seconds: %d\n", status.UptimeSeconds)
}

// writeDisplays prints one display per line. Terminals get aligned columns;
// pipes get tab-separated fields.
func writeDisplays(w io.Writer, displays []ipc.DisplayInfo, aligned bool) {
	out := w
	var tw *tabwriter.Writer
	if aligned {
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		out = tw
		fmt.Fprintln(out, "ID\tNAME\tPREFERRED\tMODES")
	}
	for _, d := range displays {
		preferred := "-"
		modes := make([]string, 0, len(d.Modes))
		for i, m := range d.Modes {
			if i == 0 {
				preferred = m.String()
			}
			modes = append(modes, m.String())
		}
		fmt.Fprintf(out, "%d\t%s\t%s\t%s\n", d.ID, d.Name, preferred, strings.Join(modes, ","))
	}
	if tw != nil {
		tw.Flush()
	}
}

func writeRescan(w io.Writer, res *ipc.RescanData) {
	for _, name := range res.Added {
		fmt.Fprintf(w, "+ %s\n", name)
	}
	for _, name := range res.Removed {
		fmt.Fprintf(w, "- %s\n", name)
	}
	fmt.Fprintf(w, "displays: %d\n", res.Displays)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
