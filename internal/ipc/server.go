package ipc

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"
)

// Provider answers IPC queries. Implementations serialize access to the
// backend themselves.
type Provider interface {
	Status(ctx context.Context) (StatusData, error)
	Displays(ctx context.Context) ([]DisplayInfo, error)
	Rescan(ctx context.Context) (RescanData, error)
}

// Server serves one request per connection on a unix socket.
type Server struct {
	socketPath     string
	provider       Provider
	logger         *slog.Logger
	requestTimeout time.Duration
	handlers       map[CommandType]func(context.Context) (any, error)

	mu       sync.Mutex
	listener net.Listener
	stopped  bool
	conns    sync.WaitGroup
}

// NewServer returns a server for socketPath backed by provider.
func NewServer(socketPath string, provider Provider, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		socketPath:     socketPath,
		provider:       provider,
		logger:         logger,
		requestTimeout: 5 * time.Second,
	}
	s.handlers = map[CommandType]func(context.Context) (any, error){
		CommandGetStatus: func(ctx context.Context) (any, error) {
			return provider.Status(ctx)
		},
		CommandGetDisplays: func(ctx context.Context) (any, error) {
			displays, err := provider.Displays(ctx)
			if displays == nil {
				displays = []DisplayInfo{}
			}
			return DisplaysData{Displays: displays}, err
		},
		CommandRescan: func(ctx context.Context) (any, error) {
			return provider.Rescan(ctx)
		},
	}
	return s
}

// Start listens on the socket, replacing a stale one left by a crashed
// daemon, and serves connections in the background.
func (s *Server) Start() error {
	os.Remove(s.socketPath)

	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.socketPath, err)
	}
	if err := os.Chmod(s.socketPath, 0600); err != nil {
		ln.Close()
		return fmt.Errorf("chmod %s: %w", s.socketPath, err)
	}

	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	s.logger.Info("IPC server listening", "socket", s.socketPath)
	go s.acceptLoop(ln)
	return nil
}

func (s *Server) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

func (s *Server) acceptLoop(ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if s.isStopped() {
				return
			}
			s.logger.Warn("IPC accept error", "error", err)
			continue
		}

		s.conns.Add(1)
		go func() {
			defer s.conns.Done()
			s.serveConn(conn)
		}()
	}
}

func (s *Server) serveConn(conn net.Conn) {
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(2 * s.requestTimeout))

	var resp *Response
	line, err := bufio.NewReader(conn).ReadBytes('\n')
	var req Request
	switch {
	case err != nil && len(line) == 0:
		s.logger.Warn("IPC read error", "error", err)
		return
	case json.Unmarshal(line, &req) != nil:
		resp = errorResponse("Invalid request")
	default:
		ctx, cancel := context.WithTimeout(context.Background(), s.requestTimeout)
		resp = s.dispatch(ctx, req.Command)
		cancel()
	}

	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.logger.Warn("failed to send IPC response", "command", req.Command, "error", err)
	}
}

func (s *Server) dispatch(ctx context.Context, cmd CommandType) *Response {
	s.logger.Debug("IPC request", "command", cmd)

	handler, ok := s.handlers[cmd]
	if !ok {
		return errorResponse(fmt.Sprintf("Unknown command: %s", cmd))
	}
	data, err := handler(ctx)
	if err != nil {
		return errorResponse(fmt.Sprintf("%s failed: %v", cmd, err))
	}
	resp, err := okResponse(data)
	if err != nil {
		return errorResponse(err.Error())
	}
	return resp
}

// Stop closes the listener, waits for in-flight requests and removes the
// socket. It is safe to call more than once.
func (s *Server) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	ln := s.listener
	s.mu.Unlock()

	if ln != nil {
		ln.Close()
	}
	s.conns.Wait()
	os.Remove(s.socketPath)
}
