package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/1broseidon/scanout/internal/ipc"
	"github.com/1broseidon/scanout/internal/tui"
)

func main() {
	if len(os.Args) < 2 {
		printMainUsage(os.Stdout)
		os.Exit(0)
	}

	switch os.Args[1] {
	case "daemon":
		os.Exit(runDaemon(os.Args[2:]))
	case "status":
		os.Exit(runStatus(os.Args[2:]))
	case "displays":
		os.Exit(runDisplays(os.Args[2:]))
	case "rescan":
		os.Exit(runRescan(os.Args[2:]))
	case "monitor":
		os.Exit(runMonitor(os.Args[2:]))
	case "config":
		os.Exit(runConfig(os.Args[2:]))
	case "mcp":
		os.Exit(runMCP(os.Args[2:]))
	case "help", "-h", "--help":
		printMainUsage(os.Stdout)
		os.Exit(0)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printMainUsage(os.Stderr)
		os.Exit(2)
	}
}

func printMainUsage(w io.Writer) {
	fmt.Fprintln(w, "Usage: scanout <command> [options]")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  daemon              Take over the seat's GPU and drive its displays (foreground)")
	fmt.Fprintln(w, "  status              Show daemon status")
	fmt.Fprintln(w, "  displays            List connected displays")
	fmt.Fprintln(w, "  rescan              Rescan connectors now")
	fmt.Fprintln(w, "  monitor             Interactive display monitor")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  config validate     Validate configuration")
	fmt.Fprintln(w, "  config print        Print configuration")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "  mcp serve           Start MCP server (stdio transport)")
	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Run 'scanout <command> --help' for command-specific options.")
}

// parseNoArgs parses a flag set for a command that takes no positional
// arguments. It returns -1 to continue or an exit code.
func parseNoArgs(fs *flag.FlagSet, args []string) int {
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		return 2
	}
	if fs.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "%s takes no arguments\n", fs.Name())
		fs.Usage()
		return 2
	}
	return -1
}

func runStatus(args []string) int {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: scanout status")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show daemon status via IPC.")
	}
	if code := parseNoArgs(fs, args); code >= 0 {
		return code
	}

	status, err := ipc.NewClient().GetStatus()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	writeStatus(os.Stdout, status)
	return 0
}

func runDisplays(args []string) int {
	fs := flag.NewFlagSet("displays", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	jsonOut := fs.Bool("json", false, "Output displays as JSON")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: scanout displays [--json]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "List the displays driven by the daemon, in discovery order.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}
	if code := parseNoArgs(fs, args); code >= 0 {
		return code
	}

	data, err := ipc.NewClient().GetDisplays()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	if *jsonOut {
		if err := writeJSON(os.Stdout, data); err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		return 0
	}
	writeDisplays(os.Stdout, data.Displays, isTerminal(os.Stdout))
	return 0
}

func runRescan(args []string) int {
	fs := flag.NewFlagSet("rescan", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: scanout rescan")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Ask the daemon to rescan connectors and report what changed.")
	}
	if code := parseNoArgs(fs, args); code >= 0 {
		return code
	}

	res, err := ipc.NewClient().Rescan()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	writeRescan(os.Stdout, res)
	return 0
}

func runMonitor(args []string) int {
	fs := flag.NewFlagSet("monitor", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	interval := fs.Duration("interval", 2*time.Second, "Poll interval")
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: scanout monitor [--interval DURATION]")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Show daemon status and connected displays, refreshing periodically.")
		fmt.Fprintln(os.Stderr, "")
		fmt.Fprintln(os.Stderr, "Flags:")
		fs.PrintDefaults()
	}
	if code := parseNoArgs(fs, args); code >= 0 {
		return code
	}

	if err := tui.Run(ipc.NewClient(), *interval); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}
	return 0
}
