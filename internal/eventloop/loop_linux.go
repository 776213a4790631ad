//go:build linux

// Package eventloop implements a single-threaded epoll dispatch loop.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// Source is a file descriptor registered on a Loop.
type Source struct {
	fd      int
	fn      func(events uint32)
	removed bool
}

// FD returns the watched descriptor.
func (s *Source) FD() int {
	return s.fd
}

// Loop dispatches readiness callbacks for registered descriptors and runs
// functions posted from other goroutines. Everything except Post must be
// called from the goroutine that runs the loop.
type Loop struct {
	epfd    int
	wakefd  int
	sources map[int]*Source

	mu     sync.Mutex
	posted []func()
}

// New creates a loop.
func New() (*Loop, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll_create1: %w", err)
	}
	wakefd, err := unix.Eventfd(0, unix.EFD_CLOEXEC|unix.EFD_NONBLOCK)
	if err != nil {
		unix.Close(epfd)
		return nil, fmt.Errorf("eventfd: %w", err)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(wakefd)}
	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, wakefd, &ev); err != nil {
		unix.Close(wakefd)
		unix.Close(epfd)
		return nil, fmt.Errorf("epoll_ctl wakefd: %w", err)
	}

	return &Loop{
		epfd:    epfd,
		wakefd:  wakefd,
		sources: make(map[int]*Source),
	}, nil
}

// AddFD calls fn with the epoll event mask whenever fd becomes readable,
// hangs up or fails. EPOLLHUP and EPOLLERR keep firing until the source is
// removed.
func (l *Loop) AddFD(fd int, fn func(events uint32)) (*Source, error) {
	if _, exists := l.sources[fd]; exists {
		return nil, fmt.Errorf("fd %d is already registered", fd)
	}
	ev := unix.EpollEvent{Events: unix.EPOLLIN, Fd: int32(fd)}
	if err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_ADD, fd, &ev); err != nil {
		return nil, fmt.Errorf("epoll_ctl add fd %d: %w", fd, err)
	}
	src := &Source{fd: fd, fn: fn}
	l.sources[fd] = src
	return src, nil
}

// Remove unregisters src. The kernel drops closed descriptors from the epoll
// set on its own, so EBADF and ENOENT are not reported.
func (l *Loop) Remove(src *Source) error {
	if src == nil || src.removed {
		return nil
	}
	src.removed = true
	if cur, ok := l.sources[src.fd]; ok && cur == src {
		delete(l.sources, src.fd)
	}
	err := unix.EpollCtl(l.epfd, unix.EPOLL_CTL_DEL, src.fd, nil)
	if err != nil && !errors.Is(err, unix.EBADF) && !errors.Is(err, unix.ENOENT) {
		return fmt.Errorf("epoll_ctl del fd %d: %w", src.fd, err)
	}
	return nil
}

// Sources returns the number of registered sources.
func (l *Loop) Sources() int {
	return len(l.sources)
}

// Post schedules fn to run on the loop goroutine during the next dispatch.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.posted = append(l.posted, fn)
	l.mu.Unlock()
	l.wake()
}

func (l *Loop) wake() {
	var buf [8]byte
	buf[0] = 1
	// EAGAIN means the counter is already non-zero; the loop will wake anyway.
	_, _ = unix.Write(l.wakefd, buf[:])
}

// Dispatch waits up to timeout for events and runs their callbacks, then any
// posted functions. A negative timeout blocks until something happens.
func (l *Loop) Dispatch(timeout time.Duration) error {
	msec := -1
	if timeout >= 0 {
		msec = int(timeout / time.Millisecond)
	}

	var events [32]unix.EpollEvent
	n, err := unix.EpollWait(l.epfd, events[:], msec)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil
		}
		return fmt.Errorf("epoll_wait: %w", err)
	}

	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		if fd == l.wakefd {
			l.drainWake()
			continue
		}
		// A callback earlier in this batch may have removed the source.
		src, ok := l.sources[fd]
		if !ok || src.removed {
			continue
		}
		src.fn(events[i].Events)
	}

	l.runPosted()
	return nil
}

func (l *Loop) drainWake() {
	var buf [8]byte
	_, _ = unix.Read(l.wakefd, buf[:])
}

func (l *Loop) runPosted() {
	l.mu.Lock()
	posted := l.posted
	l.posted = nil
	l.mu.Unlock()

	for _, fn := range posted {
		fn()
	}
}

// Run dispatches until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, l.wake)
	defer stop()

	for ctx.Err() == nil {
		if err := l.Dispatch(-1); err != nil {
			return err
		}
	}
	return nil
}

// Destroy closes the loop. Destroying a loop that still has registered
// sources is a programming error and panics.
func (l *Loop) Destroy() {
	if len(l.sources) > 0 {
		panic(fmt.Sprintf("eventloop: Destroy with %d registered sources", len(l.sources)))
	}
	unix.Close(l.wakefd)
	unix.Close(l.epfd)
	l.wakefd = -1
	l.epfd = -1
}
