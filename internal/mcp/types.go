package mcp

import "github.com/1broseidon/scanout/internal/backend"

// BackendStatusInput is the input for the backend_status tool.
type BackendStatusInput struct{}

// BackendStatusOutput is the output for the backend_status tool.
type BackendStatusOutput struct {
	Running       bool   `json:"running"`
	Seat          string `json:"seat,omitempty"`
	Device        string `json:"device,omitempty"`
	Renderer      string `json:"renderer,omitempty"`
	DisplayCount  int    `json:"display_count"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Error         string `json:"error,omitempty"`
}

// ListDisplaysInput is the input for the list_displays tool.
type ListDisplaysInput struct {
	Name string `json:"name,omitempty" jsonschema:"Only return the display with this connector name (e.g. HDMI-A-1)"`
}

// DisplayOutput describes one display.
type DisplayOutput struct {
	ID        uint32         `json:"id"`
	Name      string         `json:"name"`
	Preferred string         `json:"preferred_mode,omitempty"`
	Modes     []backend.Mode `json:"modes"`
}

// ListDisplaysOutput is the output for the list_displays tool.
type ListDisplaysOutput struct {
	Displays []DisplayOutput `json:"displays"`
}

// RescanDisplaysInput is the input for the rescan_displays tool.
type RescanDisplaysInput struct{}

// RescanDisplaysOutput is the output for the rescan_displays tool.
type RescanDisplaysOutput struct {
	Added    []string `json:"added"`
	Removed  []string `json:"removed"`
	Displays int      `json:"displays"`
}
