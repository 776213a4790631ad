// Package mcp exposes the running daemon to MCP clients over stdio.
package mcp

import (
	"context"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/scanout/internal/ipc"
)

const (
	ServerName    = "scanout"
	ServerVersion = "0.1.0"
)

// DaemonClient is the subset of the IPC client the tools use.
type DaemonClient interface {
	GetStatus() (*ipc.StatusData, error)
	GetDisplays() (*ipc.DisplaysData, error)
	Rescan() (*ipc.RescanData, error)
}

// Server is the MCP server for querying and driving the display daemon.
type Server struct {
	mcpServer *mcpsdk.Server
	client    DaemonClient
}

// NewServer creates a new MCP server that forwards to the daemon via client.
func NewServer(client DaemonClient) *Server {
	s := &Server{client: client}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    ServerName,
			Version: ServerVersion,
		},
		nil,
	)
	s.registerTools()
	return s
}

// Run starts the MCP server on stdio transport, blocking until done.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "backend_status",
		Description: "Report whether the display daemon is running, which seat and GPU device it holds, its renderer and how many displays are connected.",
	}, s.handleBackendStatus)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "list_displays",
		Description: "List the displays driven by the daemon in discovery order, with their connector ids and advertised modes. Optionally filter by connector name.",
	}, s.handleListDisplays)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "rescan_displays",
		Description: "Ask the daemon to rescan connectors now. Returns the displays that were added and removed.",
	}, s.handleRescanDisplays)
}
