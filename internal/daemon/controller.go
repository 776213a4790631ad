package daemon

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/1broseidon/scanout/internal/backend"
	"github.com/1broseidon/scanout/internal/ipc"
)

// ErrStopped is returned for requests made after the loop stopped.
var ErrStopped = errors.New("daemon is shutting down")

// Controller answers IPC queries by running them on the backend's loop
// goroutine, the only goroutine allowed to touch the backend.
type Controller struct {
	b       *backend.Backend
	loop    backend.Loop
	started time.Time

	stopOnce sync.Once
	stopped  chan struct{}
}

var _ ipc.Provider = (*Controller)(nil)

// NewController serves b. Call Stop once the loop has returned and before
// b is shut down.
func NewController(b *backend.Backend) *Controller {
	return &Controller{
		b:       b,
		loop:    b.Loop(),
		started: time.Now(),
		stopped: make(chan struct{}),
	}
}

// Stop fails pending and future requests with ErrStopped.
func (c *Controller) Stop() {
	c.stopOnce.Do(func() { close(c.stopped) })
}

// call runs fn on the loop and waits for it.
func (c *Controller) call(ctx context.Context, fn func()) error {
	select {
	case <-c.stopped:
		return ErrStopped
	default:
	}

	done := make(chan struct{})
	c.loop.Post(func() {
		select {
		case <-c.stopped:
		default:
			fn()
		}
		close(done)
	})

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-c.stopped:
		return ErrStopped
	}
}

func (c *Controller) Status(ctx context.Context) (ipc.StatusData, error) {
	var status ipc.StatusData
	err := c.call(ctx, func() {
		status = ipc.StatusData{
			Seat:          c.b.Seat(),
			Device:        c.b.DevicePath(),
			Renderer:      c.b.RendererName(),
			DisplayCount:  len(c.b.Displays()),
			UptimeSeconds: int64(time.Since(c.started).Seconds()),
			DaemonRunning: true,
		}
	})
	if err != nil {
		return ipc.StatusData{}, err
	}
	return status, nil
}

func (c *Controller) Displays(ctx context.Context) ([]ipc.DisplayInfo, error) {
	var out []ipc.DisplayInfo
	err := c.call(ctx, func() {
		out = displayInfos(c.b.Displays())
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Rescan reconciles connectors and reports the displays that came and went.
func (c *Controller) Rescan(ctx context.Context) (ipc.RescanData, error) {
	var (
		res     ipc.RescanData
		scanErr error
	)
	err := c.call(ctx, func() {
		res, scanErr = rescan(c.b)
	})
	if err != nil {
		return ipc.RescanData{}, err
	}
	return res, scanErr
}

func rescan(b *backend.Backend) (ipc.RescanData, error) {
	res := ipc.RescanData{Added: []string{}, Removed: []string{}}

	added := b.Events.DisplayAdded.Subscribe(func(d *backend.Display) {
		res.Added = append(res.Added, d.Name)
	})
	removed := b.Events.DisplayRemoved.Subscribe(func(d *backend.Display) {
		res.Removed = append(res.Removed, d.Name)
	})
	err := b.Rescan()
	b.Events.DisplayAdded.Unsubscribe(added)
	b.Events.DisplayRemoved.Unsubscribe(removed)

	res.Displays = len(b.Displays())
	return res, err
}

func displayInfos(displays []*backend.Display) []ipc.DisplayInfo {
	out := make([]ipc.DisplayInfo, 0, len(displays))
	for _, d := range displays {
		out = append(out, ipc.DisplayInfo{
			ID:    d.ID,
			Name:  d.Name,
			Modes: append([]backend.Mode(nil), d.Modes...),
		})
	}
	return out
}
