// Package logging builds the daemon's slog logger and the size-rotated file
// it can tee into.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Options configures New.
type Options struct {
	Level     string
	FilePath  string
	MaxSizeMB int
	MaxFiles  int
}

// ParseLevel converts a config level to a slog level. Unknown values map to
// info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New returns a text logger writing to stderr and, when opts.FilePath is
// set, to a rotated file. The returned closer releases the file.
func New(stderr io.Writer, opts Options) (*slog.Logger, io.Closer, error) {
	out := stderr
	var closer io.Closer = nopCloser{}
	if opts.FilePath != "" {
		f, err := OpenRotating(opts.FilePath, opts.MaxSizeMB, opts.MaxFiles)
		if err != nil {
			return nil, nil, err
		}
		out = io.MultiWriter(stderr, f)
		closer = f
	}
	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: ParseLevel(opts.Level),
	}))
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// RotatingFile is an append-only log file rotated by size. With MaxFiles=3
// the rotated copies are path.1, path.2 and path.3.
type RotatingFile struct {
	mu          sync.Mutex
	path        string
	maxBytes    int64
	maxFiles    int
	file        *os.File
	currentSize int64
}

// OpenRotating opens path for appending, creating its directory. A
// maxSizeMB of 0 disables rotation.
func OpenRotating(path string, maxSizeMB, maxFiles int) (*RotatingFile, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat log file: %w", err)
	}

	return &RotatingFile{
		path:        path,
		maxBytes:    int64(maxSizeMB) * 1024 * 1024,
		maxFiles:    maxFiles,
		file:        f,
		currentSize: stat.Size(),
	}, nil
}

func (r *RotatingFile) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return 0, os.ErrClosed
	}
	if r.maxBytes > 0 && r.currentSize > 0 && r.currentSize+int64(len(p)) > r.maxBytes {
		if err := r.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
			if r.file == nil {
				return 0, err
			}
		}
	}

	n, err := r.file.Write(p)
	r.currentSize += int64(n)
	return n, err
}

// Close closes the file. Later writes fail with os.ErrClosed.
func (r *RotatingFile) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.file == nil {
		return nil
	}
	err := r.file.Close()
	r.file = nil
	return err
}

func (r *RotatingFile) rotate() error {
	if r.file != nil {
		r.file.Close()
		r.file = nil
	}

	if r.maxFiles > 0 {
		os.Remove(fmt.Sprintf("%s.%d", r.path, r.maxFiles))
		for i := r.maxFiles - 1; i >= 1; i-- {
			os.Rename(fmt.Sprintf("%s.%d", r.path, i), fmt.Sprintf("%s.%d", r.path, i+1))
		}
		if err := os.Rename(r.path, r.path+".1"); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to rotate log file: %w", err)
		}
	} else {
		os.Remove(r.path)
	}

	f, err := os.OpenFile(r.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open new log file: %w", err)
	}
	r.file = f
	r.currentSize = 0
	return nil
}
