package ipc

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/1broseidon/scanout/internal/runtimepath"
)

// ErrDaemonNotRunning is returned when nothing listens on the socket.
var ErrDaemonNotRunning = errors.New("scanout daemon is not running")

// Client talks to the daemon over its unix socket. Each call opens a new
// connection.
type Client struct {
	socketPath string
	timeout    time.Duration
}

// NewClient returns a client for the socket in the runtime directory.
func NewClient() *Client {
	// An unresolvable runtime dir surfaces as a dial error on first use.
	socketPath, _ := runtimepath.SocketPath()
	return NewClientWithSocket(socketPath)
}

// NewClientWithSocket returns a client for socketPath.
func NewClientWithSocket(socketPath string) *Client {
	return &Client{socketPath: socketPath, timeout: 10 * time.Second}
}

func (c *Client) roundTrip(cmd CommandType) (*Response, error) {
	conn, err := net.DialTimeout("unix", c.socketPath, c.timeout)
	if err != nil {
		return nil, fmt.Errorf("%w (%v)", ErrDaemonNotRunning, err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(c.timeout))

	line, err := json.Marshal(&Request{Command: cmd})
	if err != nil {
		return nil, err
	}
	if _, err := conn.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("send %s: %w", cmd, err)
	}

	raw, err := bufio.NewReader(conn).ReadBytes('\n')
	if err != nil {
		return nil, fmt.Errorf("read %s response: %w", cmd, err)
	}
	var resp Response
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", cmd, err)
	}
	if resp.Status != StatusOK {
		return nil, fmt.Errorf("daemon error: %s", resp.Error)
	}
	return &resp, nil
}

// call sends cmd and decodes the response payload into a T.
func call[T any](c *Client, cmd CommandType) (*T, error) {
	resp, err := c.roundTrip(cmd)
	if err != nil {
		return nil, err
	}
	out := new(T)
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return nil, fmt.Errorf("decode %s data: %w", cmd, err)
	}
	return out, nil
}

// GetStatus reports the backend the daemon is driving.
func (c *Client) GetStatus() (*StatusData, error) {
	return call[StatusData](c, CommandGetStatus)
}

// GetDisplays lists the backend's displays in discovery order.
func (c *Client) GetDisplays() (*DisplaysData, error) {
	return call[DisplaysData](c, CommandGetDisplays)
}

// Rescan asks the daemon to scan connectors now and reports what changed.
func (c *Client) Rescan() (*RescanData, error) {
	return call[RescanData](c, CommandRescan)
}

// Ping checks that the daemon answers.
func (c *Client) Ping() error {
	_, err := c.roundTrip(CommandGetStatus)
	return err
}
