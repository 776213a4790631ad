package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/1broseidon/scanout/internal/config"
)

// loadConfig loads path, or the standard location when path is empty.
func loadConfig(path string) (*config.LoadResult, error) {
	if path == "" {
		var err error
		path, err = config.DefaultConfigPath()
		if err != nil {
			return nil, err
		}
	}
	return config.LoadFromPath(path)
}

func runConfig(args []string) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		fmt.Fprintln(os.Stderr, "Usage:")
		fmt.Fprintln(os.Stderr, "  scanout config validate [--path PATH]")
		fmt.Fprintln(os.Stderr, "  scanout config print [--path PATH] [--defaults]")
		return 2
	}

	switch args[0] {
	case "validate":
		fs := flag.NewFlagSet("validate", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/scanout/config.yaml)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		res, err := loadConfig(*path)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		if res.File == "" {
			fmt.Println("config: ok (no file, using defaults)")
			return 0
		}
		fmt.Println("config: ok")
		return 0

	case "print":
		fs := flag.NewFlagSet("print", flag.ContinueOnError)
		fs.SetOutput(os.Stderr)
		path := fs.String("path", "", "Config file path (default: ~/.config/scanout/config.yaml)")
		printDefaults := fs.Bool("defaults", false, "Print built-in defaults (no files)")
		if err := fs.Parse(args[1:]); err != nil {
			return 2
		}

		cfg := config.DefaultConfig()
		if !*printDefaults {
			res, err := loadConfig(*path)
			if err != nil {
				fmt.Fprintln(os.Stderr, err)
				return 1
			}
			cfg = res.Config
		}
		data, err := cfg.Marshal()
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 1
		}
		fmt.Print(string(data))
		return 0

	default:
		fmt.Fprintf(os.Stderr, "Unknown config command: %s\n", args[0])
		return 2
	}
}
