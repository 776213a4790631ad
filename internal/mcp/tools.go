package mcp

import (
	"context"
	"errors"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/1broseidon/scanout/internal/ipc"
)

func (s *Server) handleBackendStatus(_ context.Context, _ *mcpsdk.CallToolRequest, _ BackendStatusInput) (*mcpsdk.CallToolResult, BackendStatusOutput, error) {
	status, err := s.client.GetStatus()
	if errors.Is(err, ipc.ErrDaemonNotRunning) {
		// A stopped daemon is a valid answer, not a tool failure.
		return nil, BackendStatusOutput{Running: false, Error: err.Error()}, nil
	}
	if err != nil {
		return nil, BackendStatusOutput{}, err
	}
	return nil, BackendStatusOutput{
		Running:       status.DaemonRunning,
		Seat:          status.Seat,
		Device:        status.Device,
		Renderer:      status.Renderer,
		DisplayCount:  status.DisplayCount,
		UptimeSeconds: status.UptimeSeconds,
	}, nil
}

func (s *Server) handleListDisplays(_ context.Context, _ *mcpsdk.CallToolRequest, args ListDisplaysInput) (*mcpsdk.CallToolResult, ListDisplaysOutput, error) {
	data, err := s.client.GetDisplays()
	if err != nil {
		return nil, ListDisplaysOutput{}, err
	}

	out := ListDisplaysOutput{Displays: make([]DisplayOutput, 0, len(data.Displays))}
	for _, d := range data.Displays {
		if args.Name != "" && d.Name != args.Name {
			continue
		}
		info := DisplayOutput{ID: d.ID, Name: d.Name, Modes: d.Modes}
		if len(d.Modes) > 0 {
			info.Preferred = d.Modes[0].String()
		}
		out.Displays = append(out.Displays, info)
	}
	if args.Name != "" && len(out.Displays) == 0 {
		return nil, ListDisplaysOutput{}, fmt.Errorf("no display named %q", args.Name)
	}
	return nil, out, nil
}

func (s *Server) handleRescanDisplays(_ context.Context, _ *mcpsdk.CallToolRequest, _ RescanDisplaysInput) (*mcpsdk.CallToolResult, RescanDisplaysOutput, error) {
	res, err := s.client.Rescan()
	if err != nil {
		return nil, RescanDisplaysOutput{}, err
	}
	return nil, RescanDisplaysOutput{
		Added:    res.Added,
		Removed:  res.Removed,
		Displays: res.Displays,
	}, nil
}
