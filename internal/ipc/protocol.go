package ipc

import (
	"encoding/json"
	"fmt"

	"github.com/1broseidon/scanout/internal/backend"
)

// CommandType names a request. Requests and responses are single JSON
// lines.
type CommandType string

const (
	CommandGetStatus   CommandType = "GET_STATUS"
	CommandGetDisplays CommandType = "GET_DISPLAYS"
	CommandRescan      CommandType = "RESCAN"
)

// Response status values.
const (
	StatusOK    = "OK"
	StatusError = "ERROR"
)

type Request struct {
	Command CommandType `json:"command"`
}

type Response struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// StatusData represents the data returned by GET_STATUS
type StatusData struct {
	Seat          string `json:"seat"`
	Device        string `json:"device"`
	Renderer      string `json:"renderer"`
	DisplayCount  int    `json:"display_count"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	DaemonRunning bool   `json:"daemon_running"`
}

// DisplayInfo describes one display owned by the backend
type DisplayInfo struct {
	ID    uint32         `json:"id"`
	Name  string         `json:"name"`
	Modes []backend.Mode `json:"modes"`
}

// DisplaysData represents the data returned by GET_DISPLAYS
type DisplaysData struct {
	Displays []DisplayInfo `json:"displays"`
}

// RescanData represents the data returned by RESCAN
type RescanData struct {
	Added    []string `json:"added"`
	Removed  []string `json:"removed"`
	Displays int      `json:"displays"`
}

// okResponse wraps data in an OK response.
func okResponse(data any) (*Response, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode response data: %w", err)
	}
	return &Response{Status: StatusOK, Data: raw}, nil
}

func errorResponse(msg string) *Response {
	return &Response{Status: StatusError, Error: msg}
}
