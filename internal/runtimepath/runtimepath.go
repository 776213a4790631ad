// Package runtimepath locates the per-user files the daemon keeps across a
// session: the seat lock files and the IPC socket. Both live in one private
// directory so that a lock taken by one user cannot be held open, replaced
// or removed by another.
package runtimepath

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

const prefix = "scanout"

// Dir returns the directory holding seat locks and the IPC socket:
// $XDG_RUNTIME_DIR, else /run/user/<uid>, else a private directory under
// /tmp that is created on demand.
func Dir() (string, error) {
	uid := os.Getuid()
	return resolve(
		os.Getenv("XDG_RUNTIME_DIR"),
		fmt.Sprintf("/run/user/%d", uid),
		fmt.Sprintf("/tmp/%s-runtime-%d", prefix, uid),
		uid,
	)
}

func resolve(xdg, runUser, fallback string, uid int) (string, error) {
	if xdg != "" {
		return xdg, nil
	}
	if info, err := os.Stat(runUser); err == nil && info.IsDir() {
		return runUser, nil
	}
	return private(fallback, uid)
}

// private creates dir with mode 0700, or accepts an existing one only when
// uid owns it.
func private(dir string, uid int) (string, error) {
	if err := os.Mkdir(dir, 0700); err != nil && !os.IsExist(err) {
		return "", fmt.Errorf("failed to create runtime dir: %w", err)
	}
	info, err := os.Lstat(dir)
	if err != nil {
		return "", fmt.Errorf("failed to stat runtime dir: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("runtime dir %s is not a directory", dir)
	}
	if st, ok := info.Sys().(*syscall.Stat_t); ok && int(st.Uid) != uid {
		return "", fmt.Errorf("runtime dir %s is owned by uid %d", dir, st.Uid)
	}
	if info.Mode().Perm() != 0700 {
		if err := os.Chmod(dir, 0700); err != nil {
			return "", fmt.Errorf("failed to restrict runtime dir: %w", err)
		}
	}
	return dir, nil
}

func file(name string) (string, error) {
	dir, err := Dir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, name), nil
}

// SocketPath returns the socket the daemon serves status and rescan
// requests on.
func SocketPath() (string, error) {
	return file(prefix + ".sock")
}

// SeatLockPath returns the file the session flocks while it owns seat. The
// file outlives the lock; it is never unlinked.
func SeatLockPath(seat string) (string, error) {
	if seat == "" || seat == "." || seat == ".." || seat != filepath.Base(seat) {
		return "", fmt.Errorf("invalid seat name %q", seat)
	}
	return file(prefix + "-" + seat + ".lock")
}
